package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"lingua-schedule/api"
	"lingua-schedule/internal/config"
	"lingua-schedule/internal/eligibility"
	"lingua-schedule/internal/events"
	"lingua-schedule/internal/lock"
	"lingua-schedule/internal/models"
	"lingua-schedule/internal/slots"
	"lingua-schedule/internal/timecodec"
	"lingua-schedule/pkg/response"
	"lingua-schedule/pkg/sl"
)

// Store is the persistence boundary. Every conflict-sensitive write is a
// single atomic conditional statement on the store side; the service never
// sees a transaction handle.
type Store interface {
	// Availability
	ReplaceAvailability(ctx context.Context, teacherID string, rules []models.AvailabilityRule) error
	GetAvailability(ctx context.Context, teacherID string) ([]models.AvailabilityRule, error)
	TeacherExists(ctx context.Context, teacherID string) (bool, error)

	// Bookings
	CreateBookingIfFree(ctx context.Context, booking *models.ClassBooking) error
	MoveBookingIfFree(ctx context.Context, bookingID string, newDay timecodec.Day, newSlot timecodec.TimeSlot, tz string, maxReschedules int, leadTime time.Duration, override bool) (*models.ClassBooking, error)
	GetBooking(ctx context.Context, id string) (*models.ClassBooking, error)
	ListBookedSlots(ctx context.Context, teacherID string, day timecodec.Day) ([]timecodec.TimeSlot, error)
	ListBookings(ctx context.Context, studentID, teacherID *string, day *timecodec.Day, status *models.BookingStatus) ([]*models.ClassBooking, error)
	CancelBooking(ctx context.Context, id, reason string) (alreadyCancelled bool, err error)
	FinishBooking(ctx context.Context, id string, status models.BookingStatus, isPayable bool) (*models.ClassBooking, error)
	DeleteBooking(ctx context.Context, id string) error
}

type Service struct {
	store     Store
	locker    lock.Locker
	publisher events.Publisher
	engine    *eligibility.Engine
	catalog   CourseCatalog
	cfg       config.Scheduling
	log       *slog.Logger
}

func NewService(store Store, locker lock.Locker, publisher events.Publisher, engine *eligibility.Engine, catalog CourseCatalog, cfg config.Scheduling, log *slog.Logger) *Service {
	return &Service{
		store:     store,
		locker:    locker,
		publisher: publisher,
		engine:    engine,
		catalog:   catalog,
		cfg:       cfg,
		log:       log,
	}
}

// #### availability ####

func (s *Service) SetAvailability(ctx context.Context, req *api.AvailabilityWeekRequest) (*api.AvailabilityWeekResponse, error) {
	const op = "service.SetAvailability"

	rules := make([]models.AvailabilityRule, 0, len(req.Rules))
	seen := make(map[string]struct{}, len(req.Rules))

	for _, r := range req.Rules {
		day, err := models.ParseDayOfWeek(r.DayOfWeek)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}

		start, err := timecodec.ParseClock(r.StartTime)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}

		end, err := timecodec.ParseClock(r.EndTime)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}

		if start >= end {
			return nil, fmt.Errorf("%s: window %s-%s: %w", op, r.StartTime, r.EndTime, response.ErrBadRequest)
		}

		// The rule set is keyed on (day_of_week, start_time), not a list
		// with duplicates.
		key := string(day) + "|" + r.StartTime
		if _, dup := seen[key]; dup {
			return nil, fmt.Errorf("%s: duplicate rule %s %s: %w", op, day, r.StartTime, response.ErrBadRequest)
		}
		seen[key] = struct{}{}

		rules = append(rules, models.AvailabilityRule{
			TeacherID:   req.TeacherID,
			DayOfWeek:   day,
			Start:       r.StartTime,
			End:         r.EndTime,
			IsAvailable: r.IsAvailable,
		})
	}

	if err := s.store.ReplaceAvailability(ctx, req.TeacherID, rules); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return s.GetAvailabilityWeek(ctx, req.TeacherID)
}

func (s *Service) GetAvailabilityWeek(ctx context.Context, teacherID string) (*api.AvailabilityWeekResponse, error) {
	const op = "service.GetAvailabilityWeek"

	exists, err := s.store.TeacherExists(ctx, teacherID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if !exists {
		return nil, fmt.Errorf("%s: %w", op, response.ErrTeacherNotFound)
	}

	rules, err := s.store.GetAvailability(ctx, teacherID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	out := make([]api.AvailabilityRule, 0, len(rules))
	for _, rule := range rules {
		out = append(out, api.AvailabilityRule{
			DayOfWeek:   string(rule.DayOfWeek),
			StartTime:   rule.Start,
			EndTime:     rule.End,
			IsAvailable: rule.IsAvailable,
		})
	}

	return &api.AvailabilityWeekResponse{TeacherID: teacherID, Rules: out}, nil
}

// #### slots ####

// QueryBookableSlots generates the teacher's slots for one day at the
// course's duration and subtracts slots still held by bookings. Cancelled
// and no-show bookings have released their slot.
func (s *Service) QueryBookableSlots(ctx context.Context, teacherID, courseID string, day timecodec.Day) (*api.BookableSlotsResponse, error) {
	const op = "service.QueryBookableSlots"

	free, err := s.bookableSlots(ctx, teacherID, courseID, day)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	out := make([]string, 0, len(free))
	for _, slot := range free {
		out = append(out, slot.String())
	}

	return &api.BookableSlotsResponse{
		TeacherID: teacherID,
		Day:       string(day),
		Slots:     out,
	}, nil
}

func (s *Service) bookableSlots(ctx context.Context, teacherID, courseID string, day timecodec.Day) ([]timecodec.TimeSlot, error) {
	generated, err := s.generatedSlots(ctx, teacherID, courseID, day)
	if err != nil {
		return nil, err
	}

	taken, err := s.store.ListBookedSlots(ctx, teacherID, day)
	if err != nil {
		return nil, err
	}

	return slots.Subtract(generated, taken), nil
}

// generatedSlots is the availability-window view before booked-slot
// subtraction; membership here is what SlotOutsideAvailability means.
func (s *Service) generatedSlots(ctx context.Context, teacherID, courseID string, day timecodec.Day) ([]timecodec.TimeSlot, error) {
	exists, err := s.store.TeacherExists(ctx, teacherID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, response.ErrTeacherNotFound
	}

	rules, err := s.store.GetAvailability(ctx, teacherID)
	if err != nil {
		return nil, err
	}

	duration, err := s.catalog.ClassDuration(ctx, courseID)
	if err != nil {
		return nil, err
	}

	generated, err := slots.Generate(rules, duration, []timecodec.Day{day})
	if err != nil {
		return nil, err
	}

	return generated[day], nil
}

// #### bookings ####

func (s *Service) CreateBooking(ctx context.Context, req *api.BookingRequest) (*api.BookingResponse, error) {
	const op = "service.CreateBooking"

	if _, err := timecodec.LoadLocation(req.Timezone); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	day, err := timecodec.ParseDay(req.Day)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	slot, err := timecodec.ParseTimeSlot(req.TimeSlot)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if req.AdminOverride {
		s.log.Warn("admin override on booking create",
			slog.String("teacher_id", req.TeacherID),
			slog.String("student_id", req.StudentID),
			slog.String("day", req.Day),
			slog.String("slot", req.TimeSlot),
		)
	} else {
		generated, err := s.generatedSlots(ctx, req.TeacherID, req.CourseID, day)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}

		if !slots.Contains(generated, slot) {
			return nil, fmt.Errorf("%s: %w", op, response.ErrSlotOutsideAvailability)
		}
	}

	// The lock only thins the herd; the store's conditional insert is the
	// correctness authority, so a missed lock falls through to it and the
	// loser sees the same conflict either way.
	lockKey := lock.SlotKey(req.TeacherID, day, slot)
	locked, err := s.locker.Lock(ctx, lockKey, s.cfg.LockTTL)
	if err != nil {
		return nil, fmt.Errorf("%s: lock error: %w", op, err)
	}
	if locked {
		defer func() {
			_ = s.locker.Unlock(ctx, lockKey)
		}()
	}

	booking := &models.ClassBooking{
		ID:        uuid.NewString(),
		StudentID: req.StudentID,
		TeacherID: req.TeacherID,
		Day:       day,
		TimeSlot:  slot,
		Status:    models.BookingConfirmed,
		Timezone:  req.Timezone,
	}

	if err := s.store.CreateBookingIfFree(ctx, booking); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s.publish(ctx, events.BookingCreated, booking)

	return s.bookingResponse(booking)
}

func (s *Service) GetBooking(ctx context.Context, id string) (*api.BookingResponse, error) {
	const op = "service.GetBooking"

	booking, err := s.store.GetBooking(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return s.bookingResponse(booking)
}

func (s *Service) ListBookings(ctx context.Context, studentID, teacherID *string, day *timecodec.Day, status *models.BookingStatus) ([]*api.BookingResponse, error) {
	const op = "service.ListBookings"

	bookings, err := s.store.ListBookings(ctx, studentID, teacherID, day, status)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	result := make([]*api.BookingResponse, 0, len(bookings))
	for _, booking := range bookings {
		resp, err := s.bookingResponse(booking)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}

		result = append(result, resp)
	}

	return result, nil
}

func (s *Service) CheckEligibility(ctx context.Context, bookingID string) (*api.EligibilityResponse, error) {
	const op = "service.CheckEligibility"

	booking, err := s.store.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	result, err := s.engine.Check(booking)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &api.EligibilityResponse{
		CanReschedule:   result.CanReschedule,
		Reason:          string(result.Reason),
		ReschedulesUsed: result.ReschedulesUsed,
		MaxReschedules:  result.MaxReschedules,
	}, nil
}

// RescheduleBooking moves a booking to a new slot. The eligibility check
// runs up front for a precise refusal reason, and its status, quota and
// lead-time conditions run again inside the store's conditional update, so a
// stale read can never let two concurrent moves consume the same quota slot
// or move a class that another move just brought inside the lead window.
func (s *Service) RescheduleBooking(ctx context.Context, req *api.BookingRescheduleRequest) (*api.BookingResponse, error) {
	const op = "service.RescheduleBooking"

	if _, err := timecodec.LoadLocation(req.Timezone); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	newDay, err := timecodec.ParseDay(req.NewDay)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	newSlot, err := timecodec.ParseTimeSlot(req.NewTimeSlot)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	booking, err := s.store.GetBooking(ctx, req.BookingID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	// Moving a booking onto its own current slot is a no-op success, not a
	// conflict, and costs no quota.
	if booking.Day == newDay && booking.TimeSlot == newSlot && booking.Status == models.BookingConfirmed {
		return s.bookingResponse(booking)
	}

	if req.AdminOverride {
		s.log.Warn("admin override on reschedule",
			slog.String("booking_id", booking.ID),
			slog.String("new_day", req.NewDay),
			slog.String("new_slot", req.NewTimeSlot),
		)

		if booking.Status.Terminal() {
			return nil, fmt.Errorf("%s: %w", op, terminalErr(booking.Status))
		}
	} else {
		result, err := s.engine.Check(booking)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}

		if !result.CanReschedule {
			return nil, fmt.Errorf("%s: %w", op, reasonErr(result.Reason))
		}

		generated, err := s.generatedSlots(ctx, booking.TeacherID, req.CourseID, newDay)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}

		if !slots.Contains(generated, newSlot) {
			return nil, fmt.Errorf("%s: %w", op, response.ErrSlotOutsideAvailability)
		}
	}

	lockKey := lock.BookingKey(booking.ID)
	locked, err := s.locker.Lock(ctx, lockKey, s.cfg.LockTTL)
	if err != nil {
		return nil, fmt.Errorf("%s: lock error: %w", op, err)
	}
	if locked {
		defer func() {
			_ = s.locker.Unlock(ctx, lockKey)
		}()
	}

	moved, err := s.store.MoveBookingIfFree(ctx, booking.ID, newDay, newSlot, req.Timezone, s.cfg.MaxReschedules, s.cfg.RescheduleLeadTime, req.AdminOverride)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s.publish(ctx, events.BookingRescheduled, moved)

	return s.bookingResponse(moved)
}

// CancelBooking is idempotent: cancelling an already cancelled booking
// succeeds without effect. Cancelling a completed or no-show booking is an
// invalid transition.
func (s *Service) CancelBooking(ctx context.Context, bookingID, reason string) (*api.BookingResponse, error) {
	const op = "service.CancelBooking"

	alreadyCancelled, err := s.store.CancelBooking(ctx, bookingID, reason)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	booking, err := s.store.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if !alreadyCancelled {
		s.publish(ctx, events.BookingCancelled, booking)
	}

	return s.bookingResponse(booking)
}

func (s *Service) FinishBooking(ctx context.Context, bookingID string, req *api.BookingFinishRequest) (*api.BookingResponse, error) {
	const op = "service.FinishBooking"

	status, err := models.ParseBookingStatus(req.Status)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if status != models.BookingCompleted && status != models.BookingNoShow {
		return nil, fmt.Errorf("%s: target %s: %w", op, status, response.ErrInvalidStateTransition)
	}

	booking, err := s.store.FinishBooking(ctx, bookingID, status, req.IsPayable)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	eventType := events.BookingCompleted
	if status == models.BookingNoShow {
		eventType = events.BookingNoShow
	}
	s.publish(ctx, eventType, booking)

	return s.bookingResponse(booking)
}

// DeleteBooking is the distinct administrative removal, separate from
// cancellation and always audit-logged.
func (s *Service) DeleteBooking(ctx context.Context, bookingID string) error {
	const op = "service.DeleteBooking"

	booking, err := s.store.GetBooking(ctx, bookingID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	s.log.Warn("administrative booking delete",
		slog.String("booking_id", booking.ID),
		slog.String("teacher_id", booking.TeacherID),
		slog.String("student_id", booking.StudentID),
		slog.String("day", string(booking.Day)),
		slog.String("slot", booking.TimeSlot.String()),
		slog.String("status", string(booking.Status)),
	)

	if err := s.store.DeleteBooking(ctx, bookingID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// #### helpers ####

func (s *Service) bookingResponse(b *models.ClassBooking) (*api.BookingResponse, error) {
	const op = "service.bookingResponse"

	joinable, err := s.engine.Joinable(b)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &api.BookingResponse{
		ID:              b.ID,
		StudentID:       b.StudentID,
		TeacherID:       b.TeacherID,
		Day:             string(b.Day),
		TimeSlot:        b.TimeSlot.String(),
		Status:          string(b.Status),
		Timezone:        b.Timezone,
		RescheduleCount: b.RescheduleCount,
		IsPayable:       b.IsPayable,
		Joinable:        joinable,
		CompletedAt:     b.CompletedAt,
		CancelledAt:     b.CancelledAt,
	}, nil
}

func (s *Service) publish(ctx context.Context, eventType events.EventType, b *models.ClassBooking) {
	err := s.publisher.Publish(ctx, events.BookingEvent{
		Type:       eventType,
		BookingID:  b.ID,
		TeacherID:  b.TeacherID,
		StudentID:  b.StudentID,
		Day:        b.Day,
		TimeSlot:   b.TimeSlot.String(),
		Timezone:   b.Timezone,
		OccurredAt: time.Now().UTC(),
	})
	if err != nil {
		// Delivery is best-effort; the booking change already committed.
		s.log.Error("failed to publish booking event", sl.Err(err))
	}
}

func reasonErr(reason models.RescheduleEligibilityReason) error {
	switch reason {
	case models.ReasonAlreadyCompleted:
		return response.ErrAlreadyCompleted
	case models.ReasonAlreadyCancelled:
		return response.ErrAlreadyCancelled
	case models.ReasonTooCloseToStart:
		return response.ErrTooCloseToStart
	case models.ReasonQuotaExhausted:
		return response.ErrQuotaExhausted
	default:
		return response.ErrInvalidStateTransition
	}
}

func terminalErr(status models.BookingStatus) error {
	if status == models.BookingCancelled {
		return response.ErrAlreadyCancelled
	}
	return response.ErrAlreadyCompleted
}
