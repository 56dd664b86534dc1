package delete

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"lingua-schedule/pkg/response"
	"lingua-schedule/pkg/sl"
)

type BookingDeleter interface {
	DeleteBooking(ctx context.Context, bookingID string) error
}

func New(log *slog.Logger, deleter BookingDeleter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.bookings.delete.New"

		log = log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		id := chi.URLParam(r, "id")
		if id == "" {
			log.Error("booking id is empty")
			w.WriteHeader(http.StatusBadRequest)
			render.JSON(w, r, response.Error(string(response.BAD_REQUEST), "booking id is required"))
			return
		}

		err := deleter.DeleteBooking(r.Context(), id)

		if errors.Is(err, response.ErrBookingNotFound) {
			log.Error("booking not found")
			w.WriteHeader(http.StatusNotFound)
			render.JSON(w, r, response.Error(string(response.BOOKING_NOT_FOUND), "booking not found"))
			return
		}

		if err != nil {
			log.Error("Failed to delete booking", sl.Err(err))
			w.WriteHeader(http.StatusInternalServerError)
			render.JSON(w, r, response.Error(string(response.FAILED_REQUEST), "failed to delete booking"))
			return
		}

		log.Info("Booking deleted", slog.String("booking_id", id))

		w.WriteHeader(http.StatusNoContent)
	}
}
