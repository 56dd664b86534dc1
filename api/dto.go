package api

import "time"

type AvailabilityRule struct {
	DayOfWeek   string `json:"day_of_week" validate:"required"`
	StartTime   string `json:"start_time" validate:"required"`
	EndTime     string `json:"end_time" validate:"required"`
	IsAvailable bool   `json:"is_available"`
}

// AvailabilityWeekRequest replaces the teacher's whole week at once.
type AvailabilityWeekRequest struct {
	TeacherID string             `json:"teacher_id" validate:"required"`
	Rules     []AvailabilityRule `json:"rules" validate:"dive"`
}

type AvailabilityWeekResponse struct {
	TeacherID string             `json:"teacher_id"`
	Rules     []AvailabilityRule `json:"rules"`
}

type BookableSlotsResponse struct {
	TeacherID string   `json:"teacher_id"`
	Day       string   `json:"day"`
	Slots     []string `json:"slots"`
}

type BookingRequest struct {
	StudentID string `json:"student_id" validate:"required"`
	TeacherID string `json:"teacher_id" validate:"required"`
	CourseID  string `json:"course_id"`
	Day       string `json:"day" validate:"required"`
	TimeSlot  string `json:"time_slot" validate:"required"`
	Timezone  string `json:"timezone" validate:"required"`
	// AdminOverride bypasses the availability-window check. Never a default;
	// every use is audit-logged.
	AdminOverride bool `json:"admin_override,omitempty"`
}

type BookingRescheduleRequest struct {
	BookingID   string `json:"booking_id" validate:"required"`
	CourseID    string `json:"course_id"`
	NewDay      string `json:"new_day" validate:"required"`
	NewTimeSlot string `json:"new_time_slot" validate:"required"`
	Timezone    string `json:"timezone" validate:"required"`
	// AdminOverride bypasses the availability-window, quota and lead-time
	// checks. Audit-logged.
	AdminOverride bool `json:"admin_override,omitempty"`
}

type BookingCancelRequest struct {
	Reason string `json:"reason"`
}

// BookingFinishRequest closes out a confirmed class as completed or no_show.
type BookingFinishRequest struct {
	Status    string `json:"status" validate:"required"`
	IsPayable bool   `json:"is_payable"`
}

type BookingResponse struct {
	ID              string     `json:"id"`
	StudentID       string     `json:"student_id"`
	TeacherID       string     `json:"teacher_id"`
	Day             string     `json:"day"`
	TimeSlot        string     `json:"time_slot"`
	Status          string     `json:"status"`
	Timezone        string     `json:"timezone"`
	RescheduleCount int        `json:"reschedule_count"`
	IsPayable       bool       `json:"is_payable"`
	Joinable        bool       `json:"joinable"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
	CancelledAt     *time.Time `json:"cancelled_at,omitempty"`
}

type EligibilityResponse struct {
	CanReschedule   bool   `json:"can_reschedule"`
	Reason          string `json:"reason,omitempty"`
	ReschedulesUsed int    `json:"reschedules_used"`
	MaxReschedules  int    `json:"max_reschedules"`
}
