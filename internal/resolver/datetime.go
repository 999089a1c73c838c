package resolver

import (
	"fmt"
	"strings"
	"time"
)

var weekdays = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

// ResolveDate turns a raw date slot into a calendar day in loc. Relative
// expressions resolve against now; a bare weekday means its nearest future
// occurrence.
func ResolveDate(raw string, now time.Time, loc *time.Location) (time.Time, error) {
	raw = strings.ToLower(strings.TrimSpace(raw))
	today := now.In(loc)
	midnight := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, loc)

	switch raw {
	case "today":
		return midnight, nil
	case "tomorrow":
		return midnight.AddDate(0, 0, 1), nil
	case "day after tomorrow":
		return midnight.AddDate(0, 0, 2), nil
	}

	name := strings.TrimPrefix(raw, "next ")
	if wd, ok := weekdays[name]; ok {
		days := (int(wd) - int(today.Weekday()) + 7) % 7
		if days == 0 {
			days = 7
		}
		return midnight.AddDate(0, 0, days), nil
	}

	d, err := time.ParseInLocation("2006-01-02", raw, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("unrecognized date %q", raw)
	}
	return d, nil
}

var timeLayouts = []string{"15:04", "15:04:05", "3:04 PM", "3:04PM", "3 PM", "3PM"}

// resolveTime parses a raw time slot into hour and minute.
func resolveTime(raw string) (hour, minute int, err error) {
	raw = strings.TrimSpace(raw)
	for _, layout := range timeLayouts {
		if t, perr := time.Parse(layout, strings.ToUpper(raw)); perr == nil {
			return t.Hour(), t.Minute(), nil
		}
	}
	return 0, 0, fmt.Errorf("unrecognized time %q", raw)
}
