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
	"lingua-schedule/internal/models"
	"lingua-schedule/internal/timecodec"
	"lingua-schedule/pkg/response"
	"lingua-schedule/pkg/sl"
)

type BookingGetter interface {
	GetBooking(ctx context.Context, id string) (*api.BookingResponse, error)
	ListBookings(ctx context.Context, studentID, teacherID *string, day *timecodec.Day, status *models.BookingStatus) ([]*api.BookingResponse, error)
}

type Response struct {
	response.Response
	Booking  *api.BookingResponse  `json:"booking,omitempty"`
	Bookings []api.BookingResponse `json:"bookings,omitempty"`
}

func New(log *slog.Logger, getter BookingGetter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.bookings.get.New"

		log = log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		id := chi.URLParam(r, "id")

		if id != "" {
			booking, err := getter.GetBooking(r.Context(), id)

			if errors.Is(err, response.ErrBookingNotFound) {
				log.Error("booking not found")
				w.WriteHeader(http.StatusNotFound)
				render.JSON(w, r, response.Error(string(response.BOOKING_NOT_FOUND), "booking not found"))
				return
			}

			if err != nil {
				log.Error("Failed to get booking", sl.Err(err))
				w.WriteHeader(http.StatusInternalServerError)
				render.JSON(w, r, response.Error(string(response.FAILED_REQUEST), "failed to get booking"))
				return
			}

			render.JSON(w, r, Response{Booking: booking})
			return
		}

		// List with optional filters.
		var studentID, teacherID *string
		var day *timecodec.Day
		var status *models.BookingStatus

		if v := r.URL.Query().Get("student_id"); v != "" {
			studentID = &v
		}
		if v := r.URL.Query().Get("teacher_id"); v != "" {
			teacherID = &v
		}
		if v := r.URL.Query().Get("day"); v != "" {
			parsed, err := timecodec.ParseDay(v)
			if err != nil {
				log.Error("invalid day", sl.Err(err))
				w.WriteHeader(http.StatusBadRequest)
				render.JSON(w, r, response.Error(string(response.BAD_REQUEST), "day must be YYYY-MM-DD"))
				return
			}
			day = &parsed
		}
		if v := r.URL.Query().Get("status"); v != "" {
			parsed, err := models.ParseBookingStatus(v)
			if err != nil {
				log.Error("invalid status", sl.Err(err))
				w.WriteHeader(http.StatusBadRequest)
				render.JSON(w, r, response.Error(string(response.BAD_REQUEST), "unknown booking status"))
				return
			}
			status = &parsed
		}

		bookings, err := getter.ListBookings(r.Context(), studentID, teacherID, day, status)
		if err != nil {
			log.Error("Failed to list bookings", sl.Err(err))
			w.WriteHeader(http.StatusInternalServerError)
			render.JSON(w, r, response.Error(string(response.FAILED_REQUEST), "failed to list bookings"))
			return
		}

		out := make([]api.BookingResponse, len(bookings))
		for i, b := range bookings {
			out[i] = *b
		}

		render.JSON(w, r, Response{Bookings: out})
	}
}
