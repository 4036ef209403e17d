package dates

import (
	"fmt"
	"regexp"
	"strings"
)

// ClockLayout is the canonical wall-clock format persisted in dialogue state.
const ClockLayout = "15:04"

var clockRE = regexp.MustCompile(`^(\d{1,2})(?:[:.](\d{2}))?\s*(a\.?m\.?|p\.?m\.?|am|pm|a|p)?(?:\s+(pagi|siang|sore|malam|morning|afternoon|evening|tonight))?$`)

var clockPrefixes = []string{"jam ", "pukul ", "at ", "around ", "about ", "sekitar ", "@"}

var noonPhrases = map[string]struct{}{
	"noon":        {},
	"midday":      {},
	"12 noon":     {},
	"tengah hari": {},
}

// ParseClock canonicalises a time expression such as "2pm", "14.30" or
// "jam 2 siang" to HH:MM. A bare hour without minutes, meridiem, day period or
// a leading "jam"/"at" is rejected because it is indistinguishable from an
// option number.
func ParseClock(expr string) (string, bool) {
	s := normalize(expr)
	if s == "" {
		return "", false
	}
	if _, ok := noonPhrases[s]; ok {
		return "12:00", true
	}

	prefixed := false
	for _, p := range clockPrefixes {
		if strings.HasPrefix(s, p) {
			s = strings.TrimSpace(strings.TrimPrefix(s, p))
			prefixed = true
			break
		}
	}

	m := clockRE.FindStringSubmatch(s)
	if m == nil {
		return "", false
	}
	hour := atoi(m[1])
	minute := 0
	if m[2] != "" {
		minute = atoi(m[2])
	}
	meridiem := strings.ReplaceAll(m[3], ".", "")
	period := m[4]

	if m[2] == "" && meridiem == "" && period == "" && !prefixed && hour < 13 {
		return "", false
	}

	switch meridiem {
	case "":
	case "a", "am":
		if hour < 1 || hour > 12 {
			return "", false
		}
		if hour == 12 {
			hour = 0
		}
	case "p", "pm":
		if hour < 1 || hour > 12 {
			return "", false
		}
		if hour != 12 {
			hour += 12
		}
	}

	if meridiem == "" && period != "" {
		hour = applyDayPeriod(hour, period)
	}

	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return "", false
	}
	return fmt.Sprintf("%02d:%02d", hour, minute), true
}

func applyDayPeriod(hour int, period string) int {
	afternoon := dayPeriods[period]
	switch {
	case !afternoon:
		if hour == 12 {
			return 0
		}
		return hour
	case period == "siang":
		// "jam 11 siang" is late morning, "jam 1 siang" is 13:00.
		if hour >= 11 {
			return hour
		}
		return hour + 12
	case hour < 12:
		return hour + 12
	default:
		return hour
	}
}

// ClockMinutes converts a canonical HH:MM into minutes after midnight.
func ClockMinutes(clock string) (int, error) {
	var h, m int
	if _, err := fmt.Sscanf(clock, "%d:%d", &h, &m); err != nil {
		return 0, fmt.Errorf("dates: invalid clock %q: %w", clock, err)
	}
	if h < 0 || h > 24 || m < 0 || m > 59 || (h == 24 && m != 0) {
		return 0, fmt.Errorf("dates: invalid clock %q", clock)
	}
	return h*60 + m, nil
}
