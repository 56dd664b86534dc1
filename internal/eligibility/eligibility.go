// Package eligibility decides whether a booking may be rescheduled and
// whether a class is currently joinable. Read-only; the storage layer
// re-enforces the same conditions inside the atomic move.
package eligibility

import (
	"fmt"
	"time"

	"lingua-schedule/internal/models"
	"lingua-schedule/internal/timecodec"
)

// Clock abstracts the current time so policy tests can pin it.
type Clock interface {
	Now() time.Time
}

type RealClock struct{}

func (RealClock) Now() time.Time {
	return time.Now()
}

// MockClock returns a fixed instant, e.g. "pretend it is 23:59 on Friday".
type MockClock struct {
	MockTime time.Time
}

func (m MockClock) Now() time.Time {
	return m.MockTime
}

type Policy struct {
	// MaxReschedules is the per-booking quota of student-initiated moves.
	MaxReschedules int
	// MinLeadTime is how far before the class start a reschedule must land.
	MinLeadTime time.Duration
	// JoinableBefore/JoinableAfter bound the "class is joinable" window
	// around the start instant.
	JoinableBefore time.Duration
	JoinableAfter  time.Duration
}

type Engine struct {
	policy Policy
	clock  Clock
}

func New(policy Policy, clock Clock) *Engine {
	if clock == nil {
		clock = RealClock{}
	}
	return &Engine{policy: policy, clock: clock}
}

func (e *Engine) Policy() Policy {
	return e.policy
}

// Check evaluates the reschedule policy for a booking. The conditions are
// ordered so the most final reason wins: terminal status, then lead time,
// then quota.
func (e *Engine) Check(booking *models.ClassBooking) (*models.RescheduleEligibility, error) {
	const op = "eligibility.Engine.Check"

	result := &models.RescheduleEligibility{
		ReschedulesUsed: booking.RescheduleCount,
		MaxReschedules:  e.policy.MaxReschedules,
	}

	switch booking.Status {
	case models.BookingCompleted, models.BookingNoShow:
		result.Reason = models.ReasonAlreadyCompleted
		return result, nil
	case models.BookingCancelled:
		result.Reason = models.ReasonAlreadyCancelled
		return result, nil
	}

	start, err := timecodec.ToUTC(booking.Day, booking.TimeSlot.Start, booking.Timezone)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if e.clock.Now().Add(e.policy.MinLeadTime).After(start) {
		result.Reason = models.ReasonTooCloseToStart
		return result, nil
	}

	if booking.RescheduleCount >= e.policy.MaxReschedules {
		result.Reason = models.ReasonQuotaExhausted
		return result, nil
	}

	result.CanReschedule = true
	return result, nil
}

// Joinable reports whether the class can be entered right now from the
// viewer's perspective, i.e. now is within [start-JoinableBefore,
// start+JoinableAfter) and the booking is still confirmed.
func (e *Engine) Joinable(booking *models.ClassBooking) (bool, error) {
	const op = "eligibility.Engine.Joinable"

	if booking.Status != models.BookingConfirmed {
		return false, nil
	}

	start, err := timecodec.ToUTC(booking.Day, booking.TimeSlot.Start, booking.Timezone)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}

	now := e.clock.Now()

	return !now.Before(start.Add(-e.policy.JoinableBefore)) && now.Before(start.Add(e.policy.JoinableAfter)), nil
}
