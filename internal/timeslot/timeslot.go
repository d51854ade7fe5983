package timeslot

import (
	"fmt"
	"strconv"
	"strings"
)

const MinutesPerDay = 24 * 60

// TimeOfDay is a day-local clock time expressed as minutes since midnight.
type TimeOfDay int

// Valid reports whether t falls inside a single day.
func (t TimeOfDay) Valid() bool {
	return t >= 0 && t < MinutesPerDay
}

// String formats t as "HH:MM".
func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", int(t)/60, int(t)%60)
}

// Parse converts "HH:MM" into a TimeOfDay.
func Parse(s string) (TimeOfDay, error) {
	parts := strings.SplitN(strings.TrimSpace(s), ":", 2)
	if len(parts) != 2 {
		return 0, fmt.Errorf("invalid time %q: expected HH:MM", s)
	}
	hours, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, fmt.Errorf("invalid hours in %q: %w", s, err)
	}
	minutes, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, fmt.Errorf("invalid minutes in %q: %w", s, err)
	}
	if hours < 0 || hours > 23 || minutes < 0 || minutes > 59 {
		return 0, fmt.Errorf("time %q out of range", s)
	}
	return TimeOfDay(hours*60 + minutes), nil
}

// Interval is a half-open time range [Start, End) within a single day.
type Interval struct {
	Start TimeOfDay `json:"start"`
	End   TimeOfDay `json:"end"`
}

// NewInterval validates the bounds and returns the interval.
func NewInterval(start, end TimeOfDay) (Interval, error) {
	if !start.Valid() || end < 0 || end > MinutesPerDay {
		return Interval{}, fmt.Errorf("interval %s-%s out of range", start, end)
	}
	if end <= start {
		return Interval{}, fmt.Errorf("interval end %s must be after start %s", end, start)
	}
	return Interval{Start: start, End: end}, nil
}

// Minutes returns the interval length.
func (iv Interval) Minutes() int {
	return int(iv.End - iv.Start)
}

func (iv Interval) String() string {
	return iv.Start.String() + "-" + iv.End.String()
}

// Overlaps reports whether two half-open intervals intersect.
// Touching intervals (a.End == b.Start) do not overlap.
func Overlaps(a, b Interval) bool {
	return a.Start < b.End && b.Start < a.End
}

// GenerateSlots produces the ordered set of bookable start times on the step
// grid between open and close. Every returned slot leaves at least minDuration
// minutes before close, so the shortest reservation always fits. Invalid
// parameters yield an empty slice.
func GenerateSlots(open, close TimeOfDay, step, minDuration int) []TimeOfDay {
	if close <= open || step <= 0 || minDuration <= 0 {
		return nil
	}
	if !open.Valid() || close > MinutesPerDay {
		return nil
	}

	var slots []TimeOfDay
	seen := make(map[TimeOfDay]bool)
	for t := open; t+TimeOfDay(minDuration) <= close; t += TimeOfDay(step) {
		if !seen[t] {
			seen[t] = true
			slots = append(slots, t)
		}
	}
	return slots
}

// ValidEndTimes filters candidate end times for a reservation starting at
// start: strictly after start, duration within [minDuration, maxDuration], and
// not past close. The closing time itself is always considered, even when it
// is off the step grid (a facility closing at 21:45 still accepts a booking
// ending exactly then).
func ValidEndTimes(start TimeOfDay, candidates []TimeOfDay, minDuration, maxDuration int, close TimeOfDay) []TimeOfDay {
	if minDuration <= 0 || maxDuration < minDuration || close <= start {
		return nil
	}

	var ends []TimeOfDay
	seen := make(map[TimeOfDay]bool)
	consider := func(end TimeOfDay) {
		if end <= start || end > close || seen[end] {
			return
		}
		d := int(end - start)
		if d < minDuration || d > maxDuration {
			return
		}
		seen[end] = true
		ends = append(ends, end)
	}

	for _, c := range candidates {
		consider(c)
	}
	consider(close)

	for i := 1; i < len(ends); i++ {
		for j := i; j > 0 && ends[j] < ends[j-1]; j-- {
			ends[j], ends[j-1] = ends[j-1], ends[j]
		}
	}
	return ends
}
