package guard

import (
	"errors"
	"time"
)

var ErrInvalidWindowDay = errors.New("invalid_reading_window_end_day")

// ValidateWindowDay checks a building's configured reading window end day.
func ValidateWindowDay(day int) error {
	if day < 1 || day > 31 {
		return ErrInvalidWindowDay
	}
	return nil
}

// EffectiveDay is the day of month a window end day falls on in the given month.
// Days past the end of a short month move to its last day.
func EffectiveDay(day int, year int, month time.Month) int {
	last := time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
	if day > last {
		return last
	}
	return day
}

// IsDue reports whether a building whose reading window ends on day is billed on today.
// today must already be in the trigger location.
func IsDue(day int, today time.Time) bool {
	if ValidateWindowDay(day) != nil {
		return false
	}
	return EffectiveDay(day, today.Year(), today.Month()) == today.Day()
}
