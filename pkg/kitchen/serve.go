package kitchen

import (
	"fmt"
	"strings"
	"time"
)

// ParseServe reads a serve time relative to now: a clock time such as
// "19:30" (tomorrow if already past today) or an offset such as "45m".
func ParseServe(arg string, now time.Time) (time.Time, error) {
	arg = strings.TrimSpace(arg)
	if arg == "" {
		return time.Time{}, fmt.Errorf("empty serve time")
	}
	if d, err := time.ParseDuration(arg); err == nil {
		if d < 0 {
			return time.Time{}, fmt.Errorf("serve offset %s is negative", arg)
		}
		return now.Add(d), nil
	}
	for _, layout := range []string{"15:04", "3:04pm", "3pm"} {
		clock, err := time.ParseInLocation(layout, strings.ToLower(arg), now.Location())
		if err != nil {
			continue
		}
		serve := time.Date(now.Year(), now.Month(), now.Day(), clock.Hour(), clock.Minute(), 0, 0, now.Location())
		if serve.Before(now) {
			serve = serve.AddDate(0, 0, 1)
		}
		return serve, nil
	}
	return time.Time{}, fmt.Errorf("cannot read serve time %q, use 19:30 or 45m", arg)
}
