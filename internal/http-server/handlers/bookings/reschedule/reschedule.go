package reschedule

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"

	"lingua-schedule/api"
	"lingua-schedule/pkg/response"
	"lingua-schedule/pkg/sl"
)

type BookingRescheduler interface {
	RescheduleBooking(ctx context.Context, req *api.BookingRescheduleRequest) (*api.BookingResponse, error)
}

type Request struct {
	api.BookingRescheduleRequest
}

var validate = validator.New()

type Response struct {
	response.Response
	Booking api.BookingResponse `json:"booking,omitempty"`
}

func New(log *slog.Logger, rescheduler BookingRescheduler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.bookings.reschedule.New"

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

		if err := validate.Struct(req.BookingRescheduleRequest); err != nil {
			var validateErrs validator.ValidationErrors
			if errors.As(err, &validateErrs) {
				log.Error("Invalid request", sl.Err(err))
				w.WriteHeader(http.StatusBadRequest)
				render.JSON(w, r, response.ValidationError(validateErrs))
				return
			}
		}

		booking, err := rescheduler.RescheduleBooking(r.Context(), &req.BookingRescheduleRequest)

		if errors.Is(err, response.ErrBookingNotFound) {
			log.Error("booking not found")
			w.WriteHeader(http.StatusNotFound)
			render.JSON(w, r, response.Error(string(response.BOOKING_NOT_FOUND), "booking not found"))
			return
		}

		if errors.Is(err, response.ErrSlotAlreadyBooked) {
			log.Error("slot is already booked")
			w.WriteHeader(http.StatusConflict)
			render.JSON(w, r, response.Error(string(response.SLOT_ALREADY_BOOKED), "slot is already booked"))
			return
		}

		if errors.Is(err, response.ErrSlotOutsideAvailability) {
			log.Error("slot is outside availability")
			w.WriteHeader(http.StatusUnprocessableEntity)
			render.JSON(w, r, response.Error(string(response.SLOT_OUTSIDE_AVAILABILITY), "slot is outside teacher availability"))
			return
		}

		if errors.Is(err, response.ErrQuotaExhausted) {
			log.Error("reschedule quota exhausted")
			w.WriteHeader(http.StatusUnprocessableEntity)
			render.JSON(w, r, response.Error(string(response.QUOTA_EXHAUSTED), "reschedule quota exhausted"))
			return
		}

		if errors.Is(err, response.ErrTooCloseToStart) {
			log.Error("class is too close to start")
			w.WriteHeader(http.StatusUnprocessableEntity)
			render.JSON(w, r, response.Error(string(response.TOO_CLOSE_TO_START), "class is too close to its start time"))
			return
		}

		if errors.Is(err, response.ErrAlreadyCancelled) {
			log.Error("booking already cancelled")
			w.WriteHeader(http.StatusConflict)
			render.JSON(w, r, response.Error(string(response.ALREADY_CANCELLED), "booking already cancelled"))
			return
		}

		if errors.Is(err, response.ErrAlreadyCompleted) {
			log.Error("booking already completed")
			w.WriteHeader(http.StatusConflict)
			render.JSON(w, r, response.Error(string(response.ALREADY_COMPLETED), "booking already completed"))
			return
		}

		if errors.Is(err, response.ErrInvalidTimezone) {
			log.Error("invalid timezone")
			w.WriteHeader(http.StatusBadRequest)
			render.JSON(w, r, response.Error(string(response.INVALID_TIMEZONE), "invalid timezone identifier"))
			return
		}

		if errors.Is(err, response.ErrBadRequest) {
			log.Error("malformed day or time slot", sl.Err(err))
			w.WriteHeader(http.StatusBadRequest)
			render.JSON(w, r, response.Error(string(response.BAD_REQUEST), "malformed day or time slot"))
			return
		}

		if err != nil {
			log.Error("Failed to reschedule booking", sl.Err(err))
			w.WriteHeader(http.StatusInternalServerError)
			render.JSON(w, r, response.Error(string(response.FAILED_REQUEST), "failed to reschedule booking"))
			return
		}

		log.Info("Booking rescheduled", slog.Any("booking", booking))

		render.JSON(w, r, Response{
			Booking: *booking,
		})
	}
}
