package service

import (
	"fmt"
	"strings"
	"time"
	_ "time/tzdata"
)

var relativeDays = map[string]int{
	"":                     0,
	"today":                0,
	"hoje":                 0,
	"yesterday":            -1,
	"ontem":                -1,
	"day before yesterday": -2,
	"anteontem":            -2,
	"antes de ontem":       -2,
	"tomorrow":             1,
	"amanhã":               1,
	"amanha":               1,
}

var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"02/01/2006",
	"02/01/06",
}

// resolveDate turns the model's date string into a calendar day in now's
// location. Relative words resolve against now.
func resolveDate(raw string, now time.Time) (time.Time, error) {
	loc := now.Location()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)

	key := strings.ToLower(strings.TrimSpace(raw))
	key = strings.TrimPrefix(key, "the ")
	if offset, ok := relativeDays[key]; ok {
		return today.AddDate(0, 0, offset), nil
	}

	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, strings.TrimSpace(raw), loc); err == nil {
			if layout == time.RFC3339 {
				t = t.In(loc)
			}
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc), nil
		}
	}

	// dd/mm without a year means the current year
	if t, err := time.ParseInLocation("02/01", strings.TrimSpace(raw), loc); err == nil {
		return time.Date(now.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc), nil
	}

	return time.Time{}, fmt.Errorf("%w: %q", ErrUnresolvableDate, raw)
}
