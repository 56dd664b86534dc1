package finish

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

type BookingFinisher interface {
	FinishBooking(ctx context.Context, bookingID string, req *api.BookingFinishRequest) (*api.BookingResponse, error)
}

type Request struct {
	api.BookingFinishRequest
}

type Response struct {
	response.Response
	Booking api.BookingResponse `json:"booking,omitempty"`
}

func New(log *slog.Logger, finisher BookingFinisher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.bookings.finish.New"

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

		if err := render.DecodeJSON(r.Body, &req); err != nil {
			log.Error("Failed to decode request body", sl.Err(err))
			w.WriteHeader(http.StatusBadRequest)
			render.JSON(w, r, response.Error(string(response.BAD_REQUEST), "failed to decode request"))
			return
		}

		if req.Status == "" {
			log.Error("status is empty")
			w.WriteHeader(http.StatusBadRequest)
			render.JSON(w, r, response.Error(string(response.BAD_REQUEST), "status is required"))
			return
		}

		booking, err := finisher.FinishBooking(r.Context(), id, &req.BookingFinishRequest)

		if errors.Is(err, response.ErrBookingNotFound) {
			log.Error("booking not found")
			w.WriteHeader(http.StatusNotFound)
			render.JSON(w, r, response.Error(string(response.BOOKING_NOT_FOUND), "booking not found"))
			return
		}

		if errors.Is(err, response.ErrInvalidStateTransition) {
			log.Error("invalid state transition")
			w.WriteHeader(http.StatusConflict)
			render.JSON(w, r, response.Error(string(response.INVALID_STATE_TRANSITION), "booking is not in a confirmable state"))
			return
		}

		if errors.Is(err, response.ErrBadRequest) {
			log.Error("unknown status", sl.Err(err))
			w.WriteHeader(http.StatusBadRequest)
			render.JSON(w, r, response.Error(string(response.BAD_REQUEST), "status must be COMPLETED or NO_SHOW"))
			return
		}

		if err != nil {
			log.Error("Failed to finish booking", sl.Err(err))
			w.WriteHeader(http.StatusInternalServerError)
			render.JSON(w, r, response.Error(string(response.FAILED_REQUEST), "failed to finish booking"))
			return
		}

		log.Info("Booking finished", slog.String("booking_id", id), slog.String("status", req.Status))

		render.JSON(w, r, Response{
			Booking: *booking,
		})
	}
}
