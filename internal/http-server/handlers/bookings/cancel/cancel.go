package cancel

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

type BookingCanceller interface {
	CancelBooking(ctx context.Context, bookingID, reason string) (*api.BookingResponse, error)
}

type Request struct {
	api.BookingCancelRequest
}

type Response struct {
	response.Response
	Booking api.BookingResponse `json:"booking,omitempty"`
}

func New(log *slog.Logger, canceller BookingCanceller) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.bookings.cancel.New"

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

		var req Request
		// The reason body is optional.
		_ = render.DecodeJSON(r.Body, &req)

		booking, err := canceller.CancelBooking(r.Context(), id, req.Reason)

		if errors.Is(err, response.ErrBookingNotFound) {
			log.Error("booking not found")
			w.WriteHeader(http.StatusNotFound)
			render.JSON(w, r, response.Error(string(response.BOOKING_NOT_FOUND), "booking not found"))
			return
		}

		if errors.Is(err, response.ErrInvalidStateTransition) {
			log.Error("invalid state transition")
			w.WriteHeader(http.StatusConflict)
			render.JSON(w, r, response.Error(string(response.INVALID_STATE_TRANSITION), "booking is already completed or no-show"))
			return
		}

		if err != nil {
			log.Error("Failed to cancel booking", sl.Err(err))
			w.WriteHeader(http.StatusInternalServerError)
			render.JSON(w, r, response.Error(string(response.FAILED_REQUEST), "failed to cancel booking"))
			return
		}

		log.Info("Booking cancelled", slog.String("booking_id", id))

		render.JSON(w, r, Response{
			Booking: *booking,
		})
	}
}
