package create

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

type BookingCreator interface {
	CreateBooking(ctx context.Context, req *api.BookingRequest) (*api.BookingResponse, error)
}

type Request struct {
	api.BookingRequest
}

var validate = validator.New()

type Response struct {
	response.Response
	Booking api.BookingResponse `json:"booking,omitempty"`
}

func New(log *slog.Logger, creator BookingCreator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.bookings.create.New"

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

		log.Info("Request body decoded", slog.Any("request", req))

		if err := validate.Struct(req.BookingRequest); err != nil {
			var validateErrs validator.ValidationErrors
			if errors.As(err, &validateErrs) {
				log.Error("Invalid request", sl.Err(err))
				w.WriteHeader(http.StatusBadRequest)
				render.JSON(w, r, response.ValidationError(validateErrs))
				return
			}
		}

		booking, err := creator.CreateBooking(r.Context(), &req.BookingRequest)

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

		if errors.Is(err, response.ErrInvalidTimezone) {
			log.Error("invalid timezone")
			w.WriteHeader(http.StatusBadRequest)
			render.JSON(w, r, response.Error(string(response.INVALID_TIMEZONE), "invalid timezone identifier"))
			return
		}

		if errors.Is(err, response.ErrTeacherNotFound) {
			log.Error("teacher not found")
			w.WriteHeader(http.StatusNotFound)
			render.JSON(w, r, response.Error(string(response.TEACHER_NOT_FOUND), "teacher not found"))
			return
		}

		if errors.Is(err, response.ErrStudentNotFound) {
			log.Error("student not found")
			w.WriteHeader(http.StatusNotFound)
			render.JSON(w, r, response.Error(string(response.STUDENT_NOT_FOUND), "student not found"))
			return
		}

		if errors.Is(err, response.ErrBadRequest) {
			log.Error("malformed day or time slot", sl.Err(err))
			w.WriteHeader(http.StatusBadRequest)
			render.JSON(w, r, response.Error(string(response.BAD_REQUEST), "malformed day or time slot"))
			return
		}

		if err != nil {
			log.Error("Failed to create booking", sl.Err(err))
			w.WriteHeader(http.StatusInternalServerError)
			render.JSON(w, r, response.Error(string(response.FAILED_REQUEST), "failed to create booking"))
			return
		}

		log.Info("Booking created", slog.Any("booking", booking))

		w.WriteHeader(http.StatusCreated)
		responseOK(w, r, booking)
	}
}

func responseOK(w http.ResponseWriter, r *http.Request, booking *api.BookingResponse) {
	render.JSON(w, r, Response{
		Booking: *booking,
	})
}
