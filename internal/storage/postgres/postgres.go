package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"lingua-schedule/internal/models"
	"lingua-schedule/internal/timecodec"
	"lingua-schedule/pkg/response"
)

// Schema (see migrations/0001_init.up.sql). The partial unique index
// uq_booking_slot on (teacher_id, day, time_slot) over slot-holding rows
// (cancelled and no-show excluded) is the single authority preventing
// double-booking: both CreateBookingIfFree and MoveBookingIfFree are one
// conditional statement each, so a losing racer observes exactly the same
// conflict as a pre-existing booking.
type Storage struct {
	db *sql.DB
}

func New(storagePath string) (*Storage, error) {
	const op = "storage.postgres.New"

	db, err := sql.Open("postgres", storagePath)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &Storage{db: db}, nil
}

// NewWithDB wraps an existing handle. Used by tests.
func NewWithDB(db *sql.DB) *Storage {
	return &Storage{db: db}
}

func (s *Storage) Close() error {
	if s == nil || s.db == nil {
		return nil
	}

	return s.db.Close()
}

// #### availability ####

// ReplaceAvailability swaps a teacher's whole week in one transaction.
// Editing is always a full-week replace, never an incremental patch.
func (s *Storage) ReplaceAvailability(ctx context.Context, teacherID string, rules []models.AvailabilityRule) error {
	const op = "storage.postgres.ReplaceAvailability"

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%s: begin tx: %w", op, err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, `DELETE FROM availability_rules WHERE teacher_id=$1`, teacherID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if len(rules) > 0 {
		placeholders := make([]string, 0, len(rules))
		args := make([]any, 0, len(rules)*5)
		for i, rule := range rules {
			base := i * 5
			placeholders = append(placeholders, fmt.Sprintf("($%d, $%d, $%d, $%d, $%d)",
				base+1, base+2, base+3, base+4, base+5))
			args = append(args, teacherID, string(rule.DayOfWeek), rule.Start, rule.End, rule.IsAvailable)
		}

		query := fmt.Sprintf(`
			INSERT INTO availability_rules (teacher_id, day_of_week, start_time, end_time, is_available)
			VALUES %s`,
			strings.Join(placeholders, ","),
		)

		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			sqlErr, ok := err.(*pq.Error)
			if ok && sqlErr.Code == "23503" {
				return fmt.Errorf("%s: %w", op, response.ErrTeacherNotFound)
			}

			return fmt.Errorf("%s: %w", op, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%s: commit: %w", op, err)
	}

	return nil
}

func (s *Storage) GetAvailability(ctx context.Context, teacherID string) ([]models.AvailabilityRule, error) {
	const op = "storage.postgres.GetAvailability"

	rows, err := s.db.QueryContext(ctx, `
		SELECT teacher_id, day_of_week, start_time, end_time, is_available
		FROM availability_rules
		WHERE teacher_id=$1
		ORDER BY day_of_week, start_time`,
		teacherID,
	)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var rules []models.AvailabilityRule
	for rows.Next() {
		var rule models.AvailabilityRule
		var day string
		if err := rows.Scan(&rule.TeacherID, &day, &rule.Start, &rule.End, &rule.IsAvailable); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}

		rule.DayOfWeek, err = models.ParseDayOfWeek(day)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}

		rules = append(rules, rule)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return rules, nil
}

func (s *Storage) TeacherExists(ctx context.Context, teacherID string) (bool, error) {
	const op = "storage.postgres.TeacherExists"

	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM teachers WHERE id=$1`, teacherID).Scan(&one)
	if err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}

		return false, fmt.Errorf("%s: %w", op, err)
	}

	return true, nil
}

// #### bookings ####

const bookingColumns = `id, student_id, teacher_id, day, time_slot, status, timezone, reschedule_count, is_payable, completed_at, cancelled_at`

func scanBooking(row interface{ Scan(...any) error }) (*models.ClassBooking, error) {
	var b models.ClassBooking
	var day, slot, status string

	err := row.Scan(
		&b.ID,
		&b.StudentID,
		&b.TeacherID,
		&day,
		&slot,
		&status,
		&b.Timezone,
		&b.RescheduleCount,
		&b.IsPayable,
		&b.CompletedAt,
		&b.CancelledAt,
	)
	if err != nil {
		return nil, err
	}

	b.Day = timecodec.Day(day)

	b.TimeSlot, err = timecodec.ParseTimeSlot(slot)
	if err != nil {
		return nil, err
	}

	b.Status, err = models.ParseBookingStatus(status)
	if err != nil {
		return nil, err
	}

	return &b, nil
}

// CreateBookingIfFree inserts the booking as one atomic conditional write.
// A conflict with any slot-holding booking on the same slot identity
// surfaces as ErrSlotAlreadyBooked whether the competitor committed a
// millisecond or a month ago. Cancelled and no-show rows never conflict.
func (s *Storage) CreateBookingIfFree(ctx context.Context, b *models.ClassBooking) error {
	const op = "storage.postgres.CreateBookingIfFree"

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO class_bookings
		(id, student_id, teacher_id, day, time_slot, status, timezone, reschedule_count, is_payable)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		b.ID,
		b.StudentID,
		b.TeacherID,
		string(b.Day),
		b.TimeSlot.String(),
		string(b.Status),
		b.Timezone,
		b.RescheduleCount,
		b.IsPayable,
	)
	if err != nil {
		sqlErr, ok := err.(*pq.Error)
		if ok && sqlErr.Code == "23505" {
			return fmt.Errorf("%s: %w", op, response.ErrSlotAlreadyBooked)
		}
		if ok && sqlErr.Code == "23503" {
			if strings.Contains(sqlErr.Constraint, "student") {
				return fmt.Errorf("%s: %w", op, response.ErrStudentNotFound)
			}
			return fmt.Errorf("%s: %w", op, response.ErrTeacherNotFound)
		}

		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// MoveBookingIfFree moves a confirmed booking to a new slot, incrementing
// the reschedule counter, in a single statement. Status, quota and lead-time
// conditions all sit in the WHERE clause so none of them can go stale between
// read and write: the class start is re-derived from the row's current
// day/time_slot/timezone, so a concurrent move into the lead-time window
// makes a second move lose here even when its pre-check read an older slot.
// With override the quota and lead-time conditions are dropped
// (administrative path).
func (s *Storage) MoveBookingIfFree(ctx context.Context, bookingID string, newDay timecodec.Day, newSlot timecodec.TimeSlot, tz string, maxReschedules int, leadTime time.Duration, override bool) (*models.ClassBooking, error) {
	const op = "storage.postgres.MoveBookingIfFree"

	query := `
		UPDATE class_bookings
		SET day=$2, time_slot=$3, timezone=$4, reschedule_count=reschedule_count+1
		WHERE id=$1 AND status=$5 AND reschedule_count < $6
		AND ((day || ' ' || substring(time_slot from 1 for 5))::timestamp AT TIME ZONE timezone) > now() + make_interval(mins => $7)
		RETURNING ` + bookingColumns
	args := []any{bookingID, string(newDay), newSlot.String(), tz, string(models.BookingConfirmed), maxReschedules, int(leadTime.Minutes())}

	if override {
		query = `
			UPDATE class_bookings
			SET day=$2, time_slot=$3, timezone=$4, reschedule_count=reschedule_count+1
			WHERE id=$1 AND status=$5
			RETURNING ` + bookingColumns
		args = args[:5]
	}

	row := s.db.QueryRowContext(ctx, query, args...)

	booking, err := scanBooking(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, s.classifyMoveFailure(ctx, bookingID, maxReschedules, leadTime, override)
		}

		sqlErr, ok := err.(*pq.Error)
		if ok && sqlErr.Code == "23505" {
			return nil, fmt.Errorf("%s: %w", op, response.ErrSlotAlreadyBooked)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return booking, nil
}

// classifyMoveFailure distinguishes why the conditional update matched no
// row. Purely diagnostic; the refusal itself already happened atomically.
func (s *Storage) classifyMoveFailure(ctx context.Context, bookingID string, maxReschedules int, leadTime time.Duration, override bool) error {
	const op = "storage.postgres.classifyMoveFailure"

	booking, err := s.GetBooking(ctx, bookingID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	switch booking.Status {
	case models.BookingCancelled:
		return fmt.Errorf("%s: %w", op, response.ErrAlreadyCancelled)
	case models.BookingCompleted, models.BookingNoShow:
		return fmt.Errorf("%s: %w", op, response.ErrAlreadyCompleted)
	}

	if !override {
		start, err := timecodec.ToUTC(booking.Day, booking.TimeSlot.Start, booking.Timezone)
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		if time.Now().Add(leadTime).After(start) {
			return fmt.Errorf("%s: %w", op, response.ErrTooCloseToStart)
		}

		if booking.RescheduleCount >= maxReschedules {
			return fmt.Errorf("%s: %w", op, response.ErrQuotaExhausted)
		}
	}

	return fmt.Errorf("%s: %w", op, response.ErrInvalidStateTransition)
}

func (s *Storage) GetBooking(ctx context.Context, id string) (*models.ClassBooking, error) {
	const op = "storage.postgres.GetBooking"

	row := s.db.QueryRowContext(ctx,
		`SELECT `+bookingColumns+` FROM class_bookings WHERE id=$1`, id)

	booking, err := scanBooking(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("%s: %w", op, response.ErrBookingNotFound)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return booking, nil
}

// ListBookedSlots returns the time slots still held by bookings of a teacher
// on one day, ascending. Cancelled and no-show bookings have released their
// slot and are not listed.
func (s *Storage) ListBookedSlots(ctx context.Context, teacherID string, day timecodec.Day) ([]timecodec.TimeSlot, error) {
	const op = "storage.postgres.ListBookedSlots"

	rows, err := s.db.QueryContext(ctx, `
		SELECT time_slot FROM class_bookings
		WHERE teacher_id=$1 AND day=$2 AND status NOT IN ($3, $4)
		ORDER BY time_slot`,
		teacherID, string(day), string(models.BookingCancelled), string(models.BookingNoShow),
	)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var taken []timecodec.TimeSlot
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}

		slot, err := timecodec.ParseTimeSlot(raw)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}

		taken = append(taken, slot)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return taken, nil
}

func (s *Storage) ListBookings(ctx context.Context, studentID, teacherID *string, day *timecodec.Day, status *models.BookingStatus) ([]*models.ClassBooking, error) {
	const op = "storage.postgres.ListBookings"

	query := `SELECT ` + bookingColumns + ` FROM class_bookings WHERE 1=1`
	var args []any

	if studentID != nil {
		args = append(args, *studentID)
		query += fmt.Sprintf(" AND student_id=$%d", len(args))
	}
	if teacherID != nil {
		args = append(args, *teacherID)
		query += fmt.Sprintf(" AND teacher_id=$%d", len(args))
	}
	if day != nil {
		args = append(args, string(*day))
		query += fmt.Sprintf(" AND day=$%d", len(args))
	}
	if status != nil {
		args = append(args, string(*status))
		query += fmt.Sprintf(" AND status=$%d", len(args))
	}

	query += " ORDER BY day, time_slot"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var bookings []*models.ClassBooking
	for rows.Next() {
		booking, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}

		bookings = append(bookings, booking)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return bookings, nil
}

// CancelBooking transitions CONFIRMED -> CANCELLED. Cancelling an already
// cancelled booking reports alreadyCancelled with no error; cancelling a
// completed or no-show booking is an invalid transition.
func (s *Storage) CancelBooking(ctx context.Context, id, reason string) (alreadyCancelled bool, err error) {
	const op = "storage.postgres.CancelBooking"

	res, err := s.db.ExecContext(ctx, `
		UPDATE class_bookings
		SET status=$2, cancelled_at=$3, cancel_reason=$4
		WHERE id=$1 AND status=$5`,
		id, string(models.BookingCancelled), time.Now().UTC(), reason, string(models.BookingConfirmed),
	)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	if n > 0 {
		return false, nil
	}

	booking, err := s.GetBooking(ctx, id)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}

	if booking.Status == models.BookingCancelled {
		return true, nil
	}

	return false, fmt.Errorf("%s: %s: %w", op, booking.Status, response.ErrInvalidStateTransition)
}

// FinishBooking transitions CONFIRMED -> COMPLETED or NO_SHOW and stamps
// completed_at.
func (s *Storage) FinishBooking(ctx context.Context, id string, status models.BookingStatus, isPayable bool) (*models.ClassBooking, error) {
	const op = "storage.postgres.FinishBooking"

	row := s.db.QueryRowContext(ctx, `
		UPDATE class_bookings
		SET status=$2, completed_at=$3, is_payable=$4
		WHERE id=$1 AND status=$5
		RETURNING `+bookingColumns,
		id, string(status), time.Now().UTC(), isPayable, string(models.BookingConfirmed),
	)

	booking, err := scanBooking(row)
	if err != nil {
		if err == sql.ErrNoRows {
			if _, getErr := s.GetBooking(ctx, id); getErr != nil {
				return nil, fmt.Errorf("%s: %w", op, getErr)
			}

			return nil, fmt.Errorf("%s: %w", op, response.ErrInvalidStateTransition)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return booking, nil
}

// DeleteBooking physically removes a booking. Administrative path only,
// audited by the caller; cancellation never deletes.
func (s *Storage) DeleteBooking(ctx context.Context, id string) error {
	const op = "storage.postgres.DeleteBooking"

	res, err := s.db.ExecContext(ctx, `DELETE FROM class_bookings WHERE id=$1`, id)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", op, response.ErrBookingNotFound)
	}

	return nil
}
