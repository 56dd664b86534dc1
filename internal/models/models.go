package models

import (
	"fmt"
	"strings"
	"time"

	"lingua-schedule/internal/timecodec"
	"lingua-schedule/pkg/response"
)

type BookingStatus string

const (
	BookingConfirmed BookingStatus = "CONFIRMED"
	BookingCompleted BookingStatus = "COMPLETED"
	BookingCancelled BookingStatus = "CANCELLED"
	BookingNoShow    BookingStatus = "NO_SHOW"
)

// Terminal reports whether no further transition out of the status is
// permitted.
func (s BookingStatus) Terminal() bool {
	switch s {
	case BookingCompleted, BookingCancelled, BookingNoShow:
		return true
	default:
		return false
	}
}

func ParseBookingStatus(s string) (BookingStatus, error) {
	const op = "models.ParseBookingStatus"

	switch BookingStatus(strings.ToUpper(strings.TrimSpace(s))) {
	case BookingConfirmed:
		return BookingConfirmed, nil
	case BookingCompleted:
		return BookingCompleted, nil
	case BookingCancelled:
		return BookingCancelled, nil
	case BookingNoShow:
		return BookingNoShow, nil
	default:
		return "", fmt.Errorf("%s: %q: %w", op, s, response.ErrBadRequest)
	}
}

// DayOfWeek uses the lower-case English day name as the canonical storage
// key, independent of display locale.
type DayOfWeek string

const (
	Sunday    DayOfWeek = "sunday"
	Monday    DayOfWeek = "monday"
	Tuesday   DayOfWeek = "tuesday"
	Wednesday DayOfWeek = "wednesday"
	Thursday  DayOfWeek = "thursday"
	Friday    DayOfWeek = "friday"
	Saturday  DayOfWeek = "saturday"
)

var weekdayByName = map[DayOfWeek]time.Weekday{
	Sunday:    time.Sunday,
	Monday:    time.Monday,
	Tuesday:   time.Tuesday,
	Wednesday: time.Wednesday,
	Thursday:  time.Thursday,
	Friday:    time.Friday,
	Saturday:  time.Saturday,
}

var nameByWeekday = map[time.Weekday]DayOfWeek{
	time.Sunday:    Sunday,
	time.Monday:    Monday,
	time.Tuesday:   Tuesday,
	time.Wednesday: Wednesday,
	time.Thursday:  Thursday,
	time.Friday:    Friday,
	time.Saturday:  Saturday,
}

func ParseDayOfWeek(s string) (DayOfWeek, error) {
	const op = "models.ParseDayOfWeek"

	d := DayOfWeek(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := weekdayByName[d]; !ok {
		return "", fmt.Errorf("%s: %q: %w", op, s, response.ErrBadRequest)
	}

	return d, nil
}

func (d DayOfWeek) Weekday() time.Weekday {
	return weekdayByName[d]
}

func DayOfWeekFromWeekday(wd time.Weekday) DayOfWeek {
	return nameByWeekday[wd]
}

// AvailabilityRule is one recurring weekly window in which a teacher may be
// booked. IsAvailable false marks an explicit block inside the week. The set
// of rules is keyed by (TeacherID, DayOfWeek, Start) and replaced as a whole
// whenever the teacher edits their week.
type AvailabilityRule struct {
	TeacherID   string    `db:"teacher_id"`
	DayOfWeek   DayOfWeek `db:"day_of_week"`
	Start       string    `db:"start_time"`
	End         string    `db:"end_time"`
	IsAvailable bool      `db:"is_available"`
}

// ClassBooking is the occupancy of one time slot on one civil day for a
// teacher/student pair. Day and TimeSlot are local to Timezone, the zone of
// the party who created or last moved the booking.
type ClassBooking struct {
	ID              string            `db:"id"`
	StudentID       string            `db:"student_id"`
	TeacherID       string            `db:"teacher_id"`
	Day             timecodec.Day     `db:"day"`
	TimeSlot        timecodec.TimeSlot
	Status          BookingStatus     `db:"status"`
	Timezone        string            `db:"timezone"`
	RescheduleCount int               `db:"reschedule_count"`
	IsPayable       bool              `db:"is_payable"`
	CompletedAt     *time.Time        `db:"completed_at"`
	CancelledAt     *time.Time        `db:"cancelled_at"`
}

// RescheduleEligibilityReason is the closed set of reasons a reschedule may
// be refused.
type RescheduleEligibilityReason string

const (
	ReasonAlreadyCompleted RescheduleEligibilityReason = "ALREADY_COMPLETED"
	ReasonAlreadyCancelled RescheduleEligibilityReason = "ALREADY_CANCELLED"
	ReasonTooCloseToStart  RescheduleEligibilityReason = "TOO_CLOSE_TO_START"
	ReasonQuotaExhausted   RescheduleEligibilityReason = "QUOTA_EXHAUSTED"
)

// RescheduleEligibility is derived from a booking, never persisted.
type RescheduleEligibility struct {
	CanReschedule   bool
	Reason          RescheduleEligibilityReason
	ReschedulesUsed int
	MaxReschedules  int
}
