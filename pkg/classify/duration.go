package classify

import (
	"errors"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/korjavin/mise/pkg/models"
)

// Ladder is the set of preset durations approximate values are rounded up to
var Ladder = []int{1, 2, 3, 5, 8, 10, 12, 15, 20, 25, 30, 40, 45, 50, 60, 90, 120, 180}

const (
	minutesUnit = `(?:minutes?|mins?)\b`
	hoursUnit   = `(?:hours?|hrs?)\b`
)

var (
	approxMarker = regexp.MustCompile(`(?i)\b(?:about|around|approximately|approx\.?|roughly)\b|~`)
	suffixDur    = regexp.MustCompile(`(?i)(?:—|-{1,2})\s*(\d+)\s*` + minutesUnit + `\.?\s*$`)
	combinedDur  = regexp.MustCompile(`(?i)(\d+)\s*(?:hours?|hrs?|h)\s*(?:and\s+)?(\d+)\s*` + minutesUnit)
	rangeMinDur  = regexp.MustCompile(`(?i)(\d+)\s*(?:-|to|or)\s*(\d+)[\s-]*` + minutesUnit)
	rangeHourDur = regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)\s*(?:-|to|or)\s*(\d+(?:\.\d+)?)[\s-]*` + hoursUnit)
	singleMinDur = regexp.MustCompile(`(?i)(\d+)[\s-]*` + minutesUnit)
	hoursDur     = regexp.MustCompile(`(?i)(?:(\d+)\s+)?(\d+/\d+|\d+(?:\.\d+)?)[\s-]*` + hoursUnit)
	wordHourDur  = regexp.MustCompile(`(?i)\b(half an|an|one) hour\b`)
	secondsDur   = regexp.MustCompile(`(?i)(\d+)\s*(?:seconds?|secs?)\b`)
)

// ExtractDuration returns the planned minutes stated in text, or nil when the
// text carries no duration. Values are clamped to [1, 1440].
func ExtractDuration(text string) *int {
	approx := approxMarker.MatchString(text)

	// the dash of a trailing range ("15-17 minutes") is not a suffix
	if m := suffixDur.FindStringSubmatchIndex(text); m != nil && !afterNumber(text[:m[0]]) {
		return clamped(atoi(text[m[2]:m[3]]))
	}
	if m := combinedDur.FindStringSubmatch(text); m != nil {
		return clamped(atoi(m[1])*60 + atoi(m[2]))
	}
	if m := rangeMinDur.FindStringSubmatch(text); m != nil {
		return clamped(maybeRound(atoi(m[2]), approx))
	}
	if m := rangeHourDur.FindStringSubmatch(text); m != nil {
		return clamped(maybeRound(hoursToMinutes(parseNumber(m[2])), approx))
	}
	if m := singleMinDur.FindStringSubmatch(text); m != nil {
		return clamped(maybeRound(atoi(m[1]), approx))
	}
	if m := hoursDur.FindStringSubmatch(text); m != nil {
		h := parseNumber(m[2])
		if m[1] != "" {
			h += float64(atoi(m[1]))
		}
		return clamped(hoursToMinutes(h))
	}
	if m := wordHourDur.FindStringSubmatch(text); m != nil {
		if strings.EqualFold(m[1], "half an") {
			return clamped(30)
		}
		return clamped(60)
	}
	if m := secondsDur.FindStringSubmatch(text); m != nil {
		return clamped(int(math.Ceil(float64(atoi(m[1])) / 60)))
	}
	return nil
}

// RoundToLadder rounds minutes up to the next preset value. Values above the
// largest preset are returned unchanged.
func RoundToLadder(minutes int) int {
	for _, v := range Ladder {
		if v >= minutes {
			return v
		}
	}
	return minutes
}

func maybeRound(minutes int, approx bool) int {
	if approx {
		return RoundToLadder(minutes)
	}
	return minutes
}

func clamped(minutes int) *int {
	v := models.ClampDuration(minutes)
	return &v
}

func hoursToMinutes(h float64) int {
	m := math.Round(h * 60)
	if m > models.MaxDuration {
		return models.MaxDuration
	}
	return int(m)
}

// afterNumber reports whether s ends in a digit, ignoring trailing spaces
func afterNumber(s string) bool {
	s = strings.TrimRight(s, " \t")
	return s != "" && s[len(s)-1] >= '0' && s[len(s)-1] <= '9'
}

// parseNumber reads "2", "1.5" or "1/2"
func parseNumber(s string) float64 {
	if num, den, ok := strings.Cut(s, "/"); ok {
		d := atoi(den)
		if d == 0 {
			return 0
		}
		return float64(atoi(num)) / float64(d)
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return f
}

// overflowCount stands in for numbers too large to parse. It clamps to the
// maximum duration whether read as minutes or seconds.
const overflowCount = models.MaxDuration * 60

func atoi(s string) int {
	n, err := strconv.Atoi(s)
	if errors.Is(err, strconv.ErrRange) {
		return overflowCount
	}
	if err != nil {
		return 0
	}
	return n
}
