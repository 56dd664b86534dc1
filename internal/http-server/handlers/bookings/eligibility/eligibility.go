package eligibility

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

type EligibilityChecker interface {
	CheckEligibility(ctx context.Context, bookingID string) (*api.EligibilityResponse, error)
}

type Response struct {
	response.Response
	Eligibility *api.EligibilityResponse `json:"eligibility,omitempty"`
}

func New(log *slog.Logger, checker EligibilityChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.bookings.eligibility.New"

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

		eligibility, err := checker.CheckEligibility(r.Context(), id)

		if errors.Is(err, response.ErrBookingNotFound) {
			log.Error("booking not found")
			w.WriteHeader(http.StatusNotFound)
			render.JSON(w, r, response.Error(string(response.BOOKING_NOT_FOUND), "booking not found"))
			return
		}

		if err != nil {
			log.Error("Failed to check eligibility", sl.Err(err))
			w.WriteHeader(http.StatusInternalServerError)
			render.JSON(w, r, response.Error(string(response.FAILED_REQUEST), "failed to check eligibility"))
			return
		}

		render.JSON(w, r, Response{
			Eligibility: eligibility,
		})
	}
}
