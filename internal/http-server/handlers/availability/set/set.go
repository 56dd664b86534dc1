package set

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"

	"lingua-schedule/api"
	"lingua-schedule/pkg/response"
	"lingua-schedule/pkg/sl"
)

type AvailabilitySetter interface {
	SetAvailability(ctx context.Context, req *api.AvailabilityWeekRequest) (*api.AvailabilityWeekResponse, error)
}

type Request struct {
	api.AvailabilityWeekRequest
}

var validate = validator.New()

type Response struct {
	response.Response
	Availability *api.AvailabilityWeekResponse `json:"availability,omitempty"`
}

func New(log *slog.Logger, setter AvailabilitySetter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.availability.set.New"

		log = log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		var req Request

		if err := render.DecodeJSON(r.Body, &req); err != nil {
			log.Error("Failed to decode request body", sl.Err(err))
			w.WriteHeader(http.StatusBadRequest)
			render.JSON(w, r, response.Error(string(response.BAD_REQUEST), "failed to decode request"))
			return
		}

		if id := chi.URLParam(r, "id"); id != "" {
			req.TeacherID = id
		}

		if err := validate.Struct(req.AvailabilityWeekRequest); err != nil {
			var validateErrs validator.ValidationErrors
			if errors.As(err, &validateErrs) {
				log.Error("Invalid request", sl.Err(err))
				w.WriteHeader(http.StatusBadRequest)
				render.JSON(w, r, response.ValidationError(validateErrs))
				return
			}
		}

		availability, err := setter.SetAvailability(r.Context(), &req.AvailabilityWeekRequest)

		if errors.Is(err, response.ErrTeacherNotFound) {
			log.Error("teacher not found")
			w.WriteHeader(http.StatusNotFound)
			render.JSON(w, r, response.Error(string(response.TEACHER_NOT_FOUND), "teacher not found"))
			return
		}

		if errors.Is(err, response.ErrBadRequest) {
			log.Error("invalid availability rules", sl.Err(err))
			w.WriteHeader(http.StatusBadRequest)
			render.JSON(w, r, response.Error(string(response.BAD_REQUEST), "invalid availability rules"))
			return
		}

		if err != nil {
			log.Error("Failed to set availability", sl.Err(err))
			w.WriteHeader(http.StatusInternalServerError)
			render.JSON(w, r, response.Error(string(response.FAILED_REQUEST), "failed to set availability"))
			return
		}

		log.Info("Availability replaced", slog.String("teacher_id", req.TeacherID))

		render.JSON(w, r, Response{
			Availability: availability,
		})
	}
}
