package get

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"lingua-schedule/api"
	"lingua-schedule/pkg/response"
	"lingua-schedule/pkg/sl"
)

type AvailabilityGetter interface {
	GetAvailabilityWeek(ctx context.Context, teacherID string) (*api.AvailabilityWeekResponse, error)
}

type Response struct {
	response.Response
	Availability *api.AvailabilityWeekResponse `json:"availability,omitempty"`
}

func New(log *slog.Logger, getter AvailabilityGetter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.availability.get.New"

		log = log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		id := chi.URLParam(r, "id")
		if id == "" {
			log.Error("teacher id is empty")
			w.WriteHeader(http.StatusBadRequest)
			render.JSON(w, r, response.Error(string(response.BAD_REQUEST), "teacher id is required"))
			return
		}

		availability, err := getter.GetAvailabilityWeek(r.Context(), id)

		if errors.Is(err, response.ErrTeacherNotFound) {
			log.Error("teacher not found")
			w.WriteHeader(http.StatusNotFound)
			render.JSON(w, r, response.Error(string(response.TEACHER_NOT_FOUND), "teacher not found"))
			return
		}

		if err != nil {
			log.Error("Failed to get availability", sl.Err(err))
			w.WriteHeader(http.StatusInternalServerError)
			render.JSON(w, r, response.Error(string(response.FAILED_REQUEST), "failed to get availability"))
			return
		}

		render.JSON(w, r, Response{
			Availability: availability,
		})
	}
}
