package dates

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Layout is the canonical date format persisted in dialogue state.
const Layout = "2006-01-02"

var (
	isoDateRE     = regexp.MustCompile(`^(\d{4})-(\d{1,2})-(\d{1,2})$`)
	numericDateRE = regexp.MustCompile(`^(\d{1,2})[/\-](\d{1,2})(?:[/\-](\d{2}|\d{4}))?$`)
	// "12.05" is a clock time, so dotted dates need a year.
	dottedDateRE  = regexp.MustCompile(`^(\d{1,2})\.(\d{1,2})\.(\d{2}|\d{4})$`)
	dayMonthRE    = regexp.MustCompile(`^(\d{1,2})(?:st|nd|rd|th)?\s+([a-z]+)\.?,?(?:\s+(\d{4}))?$`)
	monthDayRE    = regexp.MustCompile(`^([a-z]+)\.?\s+(\d{1,2})(?:st|nd|rd|th)?,?(?:\s+(\d{4}))?$`)
	spaceRE       = regexp.MustCompile(`\s+`)
)

// Resolve turns a date expression into a calendar date relative to today.
// The result is midnight in today's location. The second return value is false
// when the expression is not understood.
//
// A bare weekday always resolves to a future date: naming today's weekday yields
// the same weekday next week, never today.
func Resolve(expression string, today time.Time) (time.Time, bool) {
	expr := normalize(expression)
	if expr == "" {
		return time.Time{}, false
	}
	base := midnight(today)

	for _, rel := range relativePhrases {
		if _, ok := rel.phrases[expr]; ok {
			return base.AddDate(0, 0, rel.offset), true
		}
	}

	if wd, ok := weekdayOf(expr); ok {
		return nextWeekday(base, wd), true
	}

	if d, ok := parseCalendarDate(expr, base); ok {
		return d, true
	}

	return time.Time{}, false
}

// Format renders a date in the canonical layout.
func Format(d time.Time) string {
	return d.Format(Layout)
}

// Parse reads a canonical date in loc.
func Parse(value string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	return time.ParseInLocation(Layout, strings.TrimSpace(value), loc)
}

// nextWeekday returns the first date strictly after base falling on wd.
func nextWeekday(base time.Time, wd time.Weekday) time.Time {
	diff := (int(wd) - int(base.Weekday()) + 7) % 7
	if diff == 0 {
		diff = 7
	}
	return base.AddDate(0, 0, diff)
}

func weekdayOf(expr string) (time.Weekday, bool) {
	var found []time.Weekday
	for _, tok := range strings.Fields(expr) {
		if _, filler := weekdayFillers[tok]; filler {
			continue
		}
		wd, ok := weekdayTokens[tok]
		if !ok {
			return 0, false
		}
		found = append(found, wd)
	}
	if len(found) != 1 {
		return 0, false
	}
	return found[0], true
}

func parseCalendarDate(expr string, base time.Time) (time.Time, bool) {
	if m := isoDateRE.FindStringSubmatch(expr); m != nil {
		return buildDate(atoi(m[1]), atoi(m[2]), atoi(m[3]), base)
	}
	if m := numericDateRE.FindStringSubmatch(expr); m != nil {
		return withOptionalYear(m[3], time.Month(atoi(m[2])), atoi(m[1]), base)
	}
	if m := dottedDateRE.FindStringSubmatch(expr); m != nil {
		return withOptionalYear(m[3], time.Month(atoi(m[2])), atoi(m[1]), base)
	}
	if m := dayMonthRE.FindStringSubmatch(expr); m != nil {
		month, ok := monthTokens[m[2]]
		if !ok {
			return time.Time{}, false
		}
		return withOptionalYear(m[3], month, atoi(m[1]), base)
	}
	if m := monthDayRE.FindStringSubmatch(expr); m != nil {
		month, ok := monthTokens[m[1]]
		if !ok {
			return time.Time{}, false
		}
		return withOptionalYear(m[3], month, atoi(m[2]), base)
	}
	return time.Time{}, false
}

// withOptionalYear picks the next occurrence on or after base when no year is given.
func withOptionalYear(yearStr string, month time.Month, day int, base time.Time) (time.Time, bool) {
	if yearStr != "" {
		year := atoi(yearStr)
		if len(yearStr) == 2 {
			year += 2000
		}
		return buildDate(year, int(month), day, base)
	}
	// 29 February may be up to four years away.
	for year := base.Year(); year <= base.Year()+4; year++ {
		d, ok := buildDate(year, int(month), day, base)
		if ok && !d.Before(base) {
			return d, true
		}
	}
	return time.Time{}, false
}

func buildDate(year, month, day int, base time.Time) (time.Time, bool) {
	if month < 1 || month > 12 || day < 1 || day > 31 {
		return time.Time{}, false
	}
	d := time.Date(year, time.Month(month), day, 0, 0, 0, 0, base.Location())
	// time.Date normalises overflow (31 April -> 1 May); reject those.
	if d.Year() != year || int(d.Month()) != month || d.Day() != day {
		return time.Time{}, false
	}
	return d, true
}

func midnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func normalize(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.TrimRight(s, ".!?,;")
	return spaceRE.ReplaceAllString(strings.TrimSpace(s), " ")
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
