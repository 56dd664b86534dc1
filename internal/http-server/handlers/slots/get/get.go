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
	"lingua-schedule/internal/timecodec"
	"lingua-schedule/pkg/response"
	"lingua-schedule/pkg/sl"
)

type BookableSlotsQuerier interface {
	QueryBookableSlots(ctx context.Context, teacherID, courseID string, day timecodec.Day) (*api.BookableSlotsResponse, error)
}

type Response struct {
	response.Response
	Bookable *api.BookableSlotsResponse `json:"bookable,omitempty"`
}

func New(log *slog.Logger, querier BookableSlotsQuerier) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.slots.get.New"

		log = log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		teacherID := chi.URLParam(r, "id")
		if teacherID == "" {
			log.Error("teacher id is empty")
			w.WriteHeader(http.StatusBadRequest)
			render.JSON(w, r, response.Error(string(response.BAD_REQUEST), "teacher id is required"))
			return
		}

		day, err := timecodec.ParseDay(r.URL.Query().Get("day"))
		if err != nil {
			log.Error("invalid day", sl.Err(err))
			w.WriteHeader(http.StatusBadRequest)
			render.JSON(w, r, response.Error(string(response.BAD_REQUEST), "day must be YYYY-MM-DD"))
			return
		}

		courseID := r.URL.Query().Get("course_id")

		bookable, err := querier.QueryBookableSlots(r.Context(), teacherID, courseID, day)

		if errors.Is(err, response.ErrTeacherNotFound) {
			log.Error("teacher not found")
			w.WriteHeader(http.StatusNotFound)
			render.JSON(w, r, response.Error(string(response.TEACHER_NOT_FOUND), "teacher not found"))
			return
		}

		if errors.Is(err, response.ErrInvalidDuration) {
			log.Error("invalid class duration", sl.Err(err))
			w.WriteHeader(http.StatusUnprocessableEntity)
			render.JSON(w, r, response.Error(string(response.INVALID_DURATION), "invalid class duration"))
			return
		}

		if err != nil {
			log.Error("Failed to query bookable slots", sl.Err(err))
			w.WriteHeader(http.StatusInternalServerError)
			render.JSON(w, r, response.Error(string(response.FAILED_REQUEST), "failed to query bookable slots"))
			return
		}

		render.JSON(w, r, Response{
			Bookable: bookable,
		})
	}
}
