// Package slots turns recurring weekly availability into concrete bookable
// time slots for a date range. Pure, no storage access.
package slots

import (
	"fmt"
	"sort"

	"lingua-schedule/internal/models"
	"lingua-schedule/internal/timecodec"
	"lingua-schedule/pkg/response"
)

type window struct {
	start int // minutes since midnight
	end   int
}

// Generate tiles each day's availability windows into consecutive slots of
// durationMinutes, dropping any trailing partial slot. Overlapping or
// contiguous windows on the same day are coalesced first, so two adjacent
// rules never produce duplicate or overlapping slots. Blocked rules
// (IsAvailable false) punch holes into the remaining windows. Days with no
// matching rule map to an empty list.
func Generate(rules []models.AvailabilityRule, durationMinutes int, days []timecodec.Day) (map[timecodec.Day][]timecodec.TimeSlot, error) {
	const op = "slots.Generate"

	if durationMinutes <= 0 {
		return nil, fmt.Errorf("%s: duration %d: %w", op, durationMinutes, response.ErrInvalidDuration)
	}

	open := make(map[models.DayOfWeek][]window)
	blocked := make(map[models.DayOfWeek][]window)

	for _, rule := range rules {
		w, err := ruleWindow(rule)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}

		if rule.IsAvailable {
			open[rule.DayOfWeek] = append(open[rule.DayOfWeek], w)
		} else {
			blocked[rule.DayOfWeek] = append(blocked[rule.DayOfWeek], w)
		}
	}

	result := make(map[timecodec.Day][]timecodec.TimeSlot, len(days))

	for _, day := range days {
		wd, err := timecodec.DayOfWeek(day)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}

		name := models.DayOfWeekFromWeekday(wd)
		windows := subtractWindows(coalesce(open[name]), coalesce(blocked[name]))

		daySlots := []timecodec.TimeSlot{}
		for _, w := range windows {
			for cur := w.start; cur+durationMinutes <= w.end; cur += durationMinutes {
				daySlots = append(daySlots, timecodec.TimeSlot{
					Start: timecodec.FormatClock(cur),
					End:   timecodec.FormatClock(cur + durationMinutes),
				})
			}
		}

		result[day] = daySlots
	}

	return result, nil
}

// Subtract removes every slot that exactly coincides with a taken one.
func Subtract(generated []timecodec.TimeSlot, taken []timecodec.TimeSlot) []timecodec.TimeSlot {
	if len(taken) == 0 {
		return generated
	}

	occupied := make(map[string]struct{}, len(taken))
	for _, s := range taken {
		occupied[s.String()] = struct{}{}
	}

	free := make([]timecodec.TimeSlot, 0, len(generated))
	for _, s := range generated {
		if _, ok := occupied[s.String()]; !ok {
			free = append(free, s)
		}
	}

	return free
}

// Contains reports whether slot is one of the generated slots.
func Contains(generated []timecodec.TimeSlot, slot timecodec.TimeSlot) bool {
	for _, s := range generated {
		if s == slot {
			return true
		}
	}
	return false
}

func ruleWindow(rule models.AvailabilityRule) (window, error) {
	start, err := timecodec.ParseClock(rule.Start)
	if err != nil {
		return window{}, err
	}

	end, err := timecodec.ParseClock(rule.End)
	if err != nil {
		return window{}, err
	}

	if start >= end {
		return window{}, fmt.Errorf("rule window %s-%s: %w", rule.Start, rule.End, response.ErrBadRequest)
	}

	return window{start: start, end: end}, nil
}

// coalesce merges overlapping or touching windows into one, sorted by start.
func coalesce(ws []window) []window {
	if len(ws) < 2 {
		return ws
	}

	sorted := make([]window, len(ws))
	copy(sorted, ws)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].start < sorted[j].start })

	merged := []window{sorted[0]}
	for _, w := range sorted[1:] {
		last := &merged[len(merged)-1]
		if w.start <= last.end {
			if w.end > last.end {
				last.end = w.end
			}
			continue
		}
		merged = append(merged, w)
	}

	return merged
}

// subtractWindows removes every blocked interval from the open ones. Both
// inputs must already be coalesced.
func subtractWindows(open, blocked []window) []window {
	if len(blocked) == 0 {
		return open
	}

	var out []window
	for _, w := range open {
		remaining := []window{w}
		for _, b := range blocked {
			var next []window
			for _, r := range remaining {
				if b.end <= r.start || b.start >= r.end {
					next = append(next, r)
					continue
				}
				if b.start > r.start {
					next = append(next, window{start: r.start, end: b.start})
				}
				if b.end < r.end {
					next = append(next, window{start: b.end, end: r.end})
				}
			}
			remaining = next
		}
		out = append(out, remaining...)
	}

	return out
}
