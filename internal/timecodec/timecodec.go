// Package timecodec is the single place where civil dates, wall-clock times
// and IANA timezones are parsed, formatted and converted. No other package
// may construct or parse a date/time string directly.
package timecodec

import (
	"fmt"
	"time"

	"lingua-schedule/pkg/response"
)

const (
	DayLayout   = "2006-01-02"
	ClockLayout = "15:04"
)

// Day is a civil calendar date with no attached timezone, e.g. "2026-03-09".
type Day string

// TimeSlot is a closed-open local interval [Start, End) at minute
// granularity. Slot identity is always the pair (Day, TimeSlot); the
// boundaries never shift with DST, only the derived UTC instant does.
type TimeSlot struct {
	Start string
	End   string
}

func ParseDay(s string) (Day, error) {
	const op = "timecodec.ParseDay"

	if _, err := time.Parse(DayLayout, s); err != nil {
		return "", fmt.Errorf("%s: %w", op, response.ErrBadRequest)
	}

	return Day(s), nil
}

func ParseClock(s string) (int, error) {
	const op = "timecodec.ParseClock"

	t, err := time.Parse(ClockLayout, s)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, response.ErrBadRequest)
	}

	return t.Hour()*60 + t.Minute(), nil
}

func FormatClock(minutes int) string {
	minutes = ((minutes % (24 * 60)) + 24*60) % (24 * 60)
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

// ParseTimeSlot parses "HH:MM-HH:MM". Start must be strictly before End.
func ParseTimeSlot(s string) (TimeSlot, error) {
	const op = "timecodec.ParseTimeSlot"

	if len(s) != 11 || s[5] != '-' {
		return TimeSlot{}, fmt.Errorf("%s: %w", op, response.ErrBadRequest)
	}

	start, err := ParseClock(s[:5])
	if err != nil {
		return TimeSlot{}, fmt.Errorf("%s: %w", op, err)
	}

	end, err := ParseClock(s[6:])
	if err != nil {
		return TimeSlot{}, fmt.Errorf("%s: %w", op, err)
	}

	if start >= end {
		return TimeSlot{}, fmt.Errorf("%s: %w", op, response.ErrBadRequest)
	}

	return TimeSlot{Start: s[:5], End: s[6:]}, nil
}

func (s TimeSlot) String() string {
	return s.Start + "-" + s.End
}

// DurationMinutes is wrap-aware: a converted slot whose End landed past
// midnight still reports its true length.
func (s TimeSlot) DurationMinutes() int {
	start, _ := ParseClock(s.Start)
	end, _ := ParseClock(s.End)
	if end <= start {
		end += 24 * 60
	}
	return end - start
}

// LoadLocation resolves an IANA identifier, mapping failures to the
// InvalidTimezone business error.
func LoadLocation(tz string) (*time.Location, error) {
	const op = "timecodec.LoadLocation"

	if tz == "" {
		return nil, fmt.Errorf("%s: %w", op, response.ErrInvalidTimezone)
	}

	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("%s: %q: %w", op, tz, response.ErrInvalidTimezone)
	}

	return loc, nil
}

// ToUTC composes a civil day and a local wall-clock time under tz into an
// absolute instant.
func ToUTC(day Day, clock string, tz string) (time.Time, error) {
	const op = "timecodec.ToUTC"

	loc, err := LoadLocation(tz)
	if err != nil {
		return time.Time{}, fmt.Errorf("%s: %w", op, err)
	}

	d, err := time.Parse(DayLayout, string(day))
	if err != nil {
		return time.Time{}, fmt.Errorf("%s: %w", op, response.ErrBadRequest)
	}

	minutes, err := ParseClock(clock)
	if err != nil {
		return time.Time{}, fmt.Errorf("%s: %w", op, err)
	}

	local := time.Date(d.Year(), d.Month(), d.Day(), minutes/60, minutes%60, 0, 0, loc)

	return local.UTC(), nil
}

// FromUTC is the inverse of ToUTC: total for any instant and valid tz.
func FromUTC(instant time.Time, tz string) (Day, string, error) {
	const op = "timecodec.FromUTC"

	loc, err := LoadLocation(tz)
	if err != nil {
		return "", "", fmt.Errorf("%s: %w", op, err)
	}

	local := instant.In(loc)

	return Day(local.Format(DayLayout)), local.Format(ClockLayout), nil
}

// ConvertTimeSlotToUTC converts a whole local slot to its UTC representation.
// The returned Day is the UTC calendar day of the slot's *start*: a late
// evening slot in a western zone lands on the next UTC day.
func ConvertTimeSlotToUTC(day Day, slot TimeSlot, sourceTz string) (Day, TimeSlot, error) {
	const op = "timecodec.ConvertTimeSlotToUTC"

	startUTC, err := ToUTC(day, slot.Start, sourceTz)
	if err != nil {
		return "", TimeSlot{}, fmt.Errorf("%s: %w", op, err)
	}

	endUTC := startUTC.Add(time.Duration(slot.DurationMinutes()) * time.Minute)

	return Day(startUTC.Format(DayLayout)), TimeSlot{
		Start: startUTC.Format(ClockLayout),
		End:   endUTC.Format(ClockLayout),
	}, nil
}

// ConvertTimeSlotFromUTC converts a UTC day/slot pair back into targetTz,
// re-deriving the day when the conversion crosses midnight.
func ConvertTimeSlotFromUTC(day Day, slot TimeSlot, targetTz string) (Day, TimeSlot, error) {
	const op = "timecodec.ConvertTimeSlotFromUTC"

	loc, err := LoadLocation(targetTz)
	if err != nil {
		return "", TimeSlot{}, fmt.Errorf("%s: %w", op, err)
	}

	startUTC, err := ToUTC(day, slot.Start, "UTC")
	if err != nil {
		return "", TimeSlot{}, fmt.Errorf("%s: %w", op, err)
	}

	startLocal := startUTC.In(loc)
	endLocal := startLocal.Add(time.Duration(slot.DurationMinutes()) * time.Minute)

	return Day(startLocal.Format(DayLayout)), TimeSlot{
		Start: startLocal.Format(ClockLayout),
		End:   endLocal.Format(ClockLayout),
	}, nil
}

// DayOfWeek returns the weekday of a civil day, 0 = Sunday.
func DayOfWeek(day Day) (time.Weekday, error) {
	const op = "timecodec.DayOfWeek"

	d, err := time.Parse(DayLayout, string(day))
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, response.ErrBadRequest)
	}

	return d.Weekday(), nil
}

// DateRange returns every day from start to end inclusive. Empty when end
// precedes start.
func DateRange(start, end Day) ([]Day, error) {
	const op = "timecodec.DateRange"

	from, err := time.Parse(DayLayout, string(start))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, response.ErrBadRequest)
	}

	to, err := time.Parse(DayLayout, string(end))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, response.ErrBadRequest)
	}

	var days []Day
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		days = append(days, Day(d.Format(DayLayout)))
	}

	return days, nil
}

func FilterByDayOfWeek(days []Day, wd time.Weekday) []Day {
	var out []Day
	for _, day := range days {
		if got, err := DayOfWeek(day); err == nil && got == wd {
			out = append(out, day)
		}
	}
	return out
}

// AddDays shifts a civil day by n calendar days.
func AddDays(day Day, n int) (Day, error) {
	const op = "timecodec.AddDays"

	d, err := time.Parse(DayLayout, string(day))
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, response.ErrBadRequest)
	}

	return Day(d.AddDate(0, 0, n).Format(DayLayout)), nil
}
