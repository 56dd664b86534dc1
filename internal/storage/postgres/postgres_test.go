package postgres

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lingua-schedule/internal/models"
	"lingua-schedule/internal/timecodec"
	"lingua-schedule/pkg/response"
)

func newMockStorage(t *testing.T) (*Storage, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return NewWithDB(db), mock
}

func mustSlot(t *testing.T, s string) timecodec.TimeSlot {
	t.Helper()

	slot, err := timecodec.ParseTimeSlot(s)
	require.NoError(t, err)
	return slot
}

var bookingRowColumns = []string{
	"id", "student_id", "teacher_id", "day", "time_slot", "status",
	"timezone", "reschedule_count", "is_payable", "completed_at", "cancelled_at",
}

func bookingRow(id string, day, slot, status string, rescheduleCount int) *sqlmock.Rows {
	return sqlmock.NewRows(bookingRowColumns).
		AddRow(id, "s1", "t1", day, slot, status, "America/Lima", rescheduleCount, false, nil, nil)
}

func TestCreateBookingIfFree(t *testing.T) {
	storage, mock := newMockStorage(t)

	booking := &models.ClassBooking{
		ID:        "b1",
		StudentID: "s1",
		TeacherID: "t1",
		Day:       "2026-03-09",
		TimeSlot:  mustSlot(t, "09:00-10:00"),
		Status:    models.BookingConfirmed,
		Timezone:  "America/Lima",
	}

	mock.ExpectExec("INSERT INTO class_bookings").
		WithArgs("b1", "s1", "t1", "2026-03-09", "09:00-10:00", "CONFIRMED", "America/Lima", 0, false).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := storage.CreateBookingIfFree(context.Background(), booking)
	require.NoError(t, err)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateBookingIfFreeSlotTaken(t *testing.T) {
	storage, mock := newMockStorage(t)

	booking := &models.ClassBooking{
		ID:        "b1",
		StudentID: "s1",
		TeacherID: "t1",
		Day:       "2026-03-09",
		TimeSlot:  mustSlot(t, "09:00-10:00"),
		Status:    models.BookingConfirmed,
		Timezone:  "America/Lima",
	}

	mock.ExpectExec("INSERT INTO class_bookings").
		WillReturnError(&pq.Error{Code: "23505", Constraint: "uq_booking_slot"})

	err := storage.CreateBookingIfFree(context.Background(), booking)
	require.ErrorIs(t, err, response.ErrSlotAlreadyBooked)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateBookingIfFreeForeignKeys(t *testing.T) {
	cases := []struct {
		name       string
		constraint string
		want       error
	}{
		{"unknown student", "class_bookings_student_id_fkey", response.ErrStudentNotFound},
		{"unknown teacher", "class_bookings_teacher_id_fkey", response.ErrTeacherNotFound},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			storage, mock := newMockStorage(t)

			booking := &models.ClassBooking{
				ID:        "b1",
				StudentID: "s1",
				TeacherID: "t1",
				Day:       "2026-03-09",
				TimeSlot:  mustSlot(t, "09:00-10:00"),
				Status:    models.BookingConfirmed,
				Timezone:  "America/Lima",
			}

			mock.ExpectExec("INSERT INTO class_bookings").
				WillReturnError(&pq.Error{Code: "23503", Constraint: tc.constraint})

			err := storage.CreateBookingIfFree(context.Background(), booking)
			require.ErrorIs(t, err, tc.want)

			require.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestReplaceAvailability(t *testing.T) {
	storage, mock := newMockStorage(t)

	rules := []models.AvailabilityRule{
		{TeacherID: "t1", DayOfWeek: models.Monday, Start: "09:00", End: "11:00", IsAvailable: true},
		{TeacherID: "t1", DayOfWeek: models.Friday, Start: "14:00", End: "16:00", IsAvailable: true},
	}

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM availability_rules").
		WithArgs("t1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO availability_rules").
		WithArgs("t1", "monday", "09:00", "11:00", true, "t1", "friday", "14:00", "16:00", true).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectCommit()

	err := storage.ReplaceAvailability(context.Background(), "t1", rules)
	require.NoError(t, err)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReplaceAvailabilityClearsWeek(t *testing.T) {
	storage, mock := newMockStorage(t)

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM availability_rules").
		WithArgs("t1").
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectCommit()

	err := storage.ReplaceAvailability(context.Background(), "t1", nil)
	require.NoError(t, err)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReplaceAvailabilityUnknownTeacher(t *testing.T) {
	storage, mock := newMockStorage(t)

	rules := []models.AvailabilityRule{
		{TeacherID: "ghost", DayOfWeek: models.Monday, Start: "09:00", End: "11:00", IsAvailable: true},
	}

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM availability_rules").
		WithArgs("ghost").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("INSERT INTO availability_rules").
		WillReturnError(&pq.Error{Code: "23503", Constraint: "availability_rules_teacher_id_fkey"})
	mock.ExpectRollback()

	err := storage.ReplaceAvailability(context.Background(), "ghost", rules)
	require.ErrorIs(t, err, response.ErrTeacherNotFound)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMoveBookingIfFree(t *testing.T) {
	storage, mock := newMockStorage(t)

	mock.ExpectQuery("UPDATE class_bookings").
		WithArgs("b1", "2026-03-09", "09:00-10:00", "America/Lima", "CONFIRMED", 2, 1440).
		WillReturnRows(bookingRow("b1", "2026-03-09", "09:00-10:00", "CONFIRMED", 1))

	booking, err := storage.MoveBookingIfFree(context.Background(),
		"b1", "2026-03-09", mustSlot(t, "09:00-10:00"), "America/Lima", 2, 24*time.Hour, false)
	require.NoError(t, err)

	assert.Equal(t, timecodec.Day("2026-03-09"), booking.Day)
	assert.Equal(t, "09:00-10:00", booking.TimeSlot.String())
	assert.Equal(t, 1, booking.RescheduleCount)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMoveBookingIfFreeQuotaExhausted(t *testing.T) {
	storage, mock := newMockStorage(t)

	// The conditional update matches no row, so the failure is classified
	// from a re-read. The booking sits a year out, so the refusal is the
	// quota and not the lead window.
	farDay := time.Now().UTC().AddDate(1, 0, 0).Format(timecodec.DayLayout)

	mock.ExpectQuery("UPDATE class_bookings").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery("SELECT (.+) FROM class_bookings WHERE id=").
		WithArgs("b1").
		WillReturnRows(bookingRow("b1", farDay, "10:00-11:00", "CONFIRMED", 2))

	_, err := storage.MoveBookingIfFree(context.Background(),
		"b1", timecodec.Day(farDay), mustSlot(t, "09:00-10:00"), "America/Lima", 2, 24*time.Hour, false)
	require.ErrorIs(t, err, response.ErrQuotaExhausted)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMoveBookingIfFreeTooCloseToStart(t *testing.T) {
	storage, mock := newMockStorage(t)

	// The row's current start is already inside the lead window when the
	// conditional update runs, as after a competing move landed first. Quota
	// remains untouched, so the classification must be the lead window.
	today := time.Now().UTC().Format(timecodec.DayLayout)

	mock.ExpectQuery("UPDATE class_bookings").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery("SELECT (.+) FROM class_bookings WHERE id=").
		WithArgs("b1").
		WillReturnRows(bookingRow("b1", today, "09:00-10:00", "CONFIRMED", 0))

	_, err := storage.MoveBookingIfFree(context.Background(),
		"b1", "2026-03-09", mustSlot(t, "10:00-11:00"), "America/Lima", 2, 24*time.Hour, false)
	require.ErrorIs(t, err, response.ErrTooCloseToStart)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMoveBookingIfFreeAlreadyCancelled(t *testing.T) {
	storage, mock := newMockStorage(t)

	mock.ExpectQuery("UPDATE class_bookings").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery("SELECT (.+) FROM class_bookings WHERE id=").
		WithArgs("b1").
		WillReturnRows(bookingRow("b1", "2026-03-09", "10:00-11:00", "CANCELLED", 0))

	_, err := storage.MoveBookingIfFree(context.Background(),
		"b1", "2026-03-09", mustSlot(t, "09:00-10:00"), "America/Lima", 2, 24*time.Hour, false)
	require.ErrorIs(t, err, response.ErrAlreadyCancelled)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMoveBookingIfFreeTargetTaken(t *testing.T) {
	storage, mock := newMockStorage(t)

	mock.ExpectQuery("UPDATE class_bookings").
		WillReturnError(&pq.Error{Code: "23505", Constraint: "uq_booking_slot"})

	_, err := storage.MoveBookingIfFree(context.Background(),
		"b1", "2026-03-09", mustSlot(t, "09:00-10:00"), "America/Lima", 2, 24*time.Hour, false)
	require.ErrorIs(t, err, response.ErrSlotAlreadyBooked)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMoveBookingIfFreeOverrideSkipsQuota(t *testing.T) {
	storage, mock := newMockStorage(t)

	// Five args: the quota and lead-time conditions are dropped on the
	// override path.
	mock.ExpectQuery("UPDATE class_bookings").
		WithArgs("b1", "2026-03-09", "09:00-10:00", "America/Lima", "CONFIRMED").
		WillReturnRows(bookingRow("b1", "2026-03-09", "09:00-10:00", "CONFIRMED", 3))

	booking, err := storage.MoveBookingIfFree(context.Background(),
		"b1", "2026-03-09", mustSlot(t, "09:00-10:00"), "America/Lima", 2, 24*time.Hour, true)
	require.NoError(t, err)
	assert.Equal(t, 3, booking.RescheduleCount)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetBookingNotFound(t *testing.T) {
	storage, mock := newMockStorage(t)

	mock.ExpectQuery("SELECT (.+) FROM class_bookings WHERE id=").
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := storage.GetBooking(context.Background(), "missing")
	require.ErrorIs(t, err, response.ErrBookingNotFound)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCancelBooking(t *testing.T) {
	storage, mock := newMockStorage(t)

	mock.ExpectExec("UPDATE class_bookings").
		WithArgs("b1", "CANCELLED", sqlmock.AnyArg(), "schedule change", "CONFIRMED").
		WillReturnResult(sqlmock.NewResult(0, 1))

	already, err := storage.CancelBooking(context.Background(), "b1", "schedule change")
	require.NoError(t, err)
	assert.False(t, already)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCancelBookingIdempotent(t *testing.T) {
	storage, mock := newMockStorage(t)

	mock.ExpectExec("UPDATE class_bookings").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT (.+) FROM class_bookings WHERE id=").
		WithArgs("b1").
		WillReturnRows(bookingRow("b1", "2026-03-09", "09:00-10:00", "CANCELLED", 0))

	already, err := storage.CancelBooking(context.Background(), "b1", "repeat")
	require.NoError(t, err)
	assert.True(t, already)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCancelBookingCompletedConflicts(t *testing.T) {
	storage, mock := newMockStorage(t)

	mock.ExpectExec("UPDATE class_bookings").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT (.+) FROM class_bookings WHERE id=").
		WithArgs("b1").
		WillReturnRows(bookingRow("b1", "2026-03-09", "09:00-10:00", "COMPLETED", 0))

	_, err := storage.CancelBooking(context.Background(), "b1", "")
	require.ErrorIs(t, err, response.ErrInvalidStateTransition)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFinishBooking(t *testing.T) {
	storage, mock := newMockStorage(t)

	completedAt := time.Now().UTC()
	rows := sqlmock.NewRows(bookingRowColumns).
		AddRow("b1", "s1", "t1", "2026-03-09", "09:00-10:00", "COMPLETED",
			"America/Lima", 0, true, completedAt, nil)

	mock.ExpectQuery("UPDATE class_bookings").
		WithArgs("b1", "COMPLETED", sqlmock.AnyArg(), true, "CONFIRMED").
		WillReturnRows(rows)

	booking, err := storage.FinishBooking(context.Background(), "b1", models.BookingCompleted, true)
	require.NoError(t, err)

	assert.Equal(t, models.BookingCompleted, booking.Status)
	assert.True(t, booking.IsPayable)
	assert.NotNil(t, booking.CompletedAt)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListBookedSlots(t *testing.T) {
	storage, mock := newMockStorage(t)

	rows := sqlmock.NewRows([]string{"time_slot"}).
		AddRow("09:00-10:00").
		AddRow("10:00-11:00")

	mock.ExpectQuery("SELECT time_slot FROM class_bookings").
		WithArgs("t1", "2026-03-09", "CANCELLED", "NO_SHOW").
		WillReturnRows(rows)

	taken, err := storage.ListBookedSlots(context.Background(), "t1", "2026-03-09")
	require.NoError(t, err)

	require.Len(t, taken, 2)
	assert.Equal(t, "09:00-10:00", taken[0].String())
	assert.Equal(t, "10:00-11:00", taken[1].String())

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteBookingNotFound(t *testing.T) {
	storage, mock := newMockStorage(t)

	mock.ExpectExec("DELETE FROM class_bookings").
		WithArgs("missing").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := storage.DeleteBooking(context.Background(), "missing")
	require.ErrorIs(t, err, response.ErrBookingNotFound)

	require.NoError(t, mock.ExpectationsWereMet())
}
