// Package dates turns customer date and time expressions into calendar values.
//
// Two locales are recognised: English and Indonesian. Every phrase list lives in
// this file so the resolver, the slot matcher and the extractor hint all read the
// same vocabulary.
package dates

import "time"

// Locale identifies a supported language.
type Locale string

const (
	LocaleEnglish    Locale = "en"
	LocaleIndonesian Locale = "id"
)

// relativePhrases are checked in order: today, tomorrow, day after tomorrow.
var relativePhrases = []struct {
	offset  int
	phrases map[string]Locale
}{
	{0, map[string]Locale{
		"today":    LocaleEnglish,
		"hari ini": LocaleIndonesian,
	}},
	{1, map[string]Locale{
		"tomorrow": LocaleEnglish,
		"besok":    LocaleIndonesian,
		"esok":     LocaleIndonesian,
	}},
	{2, map[string]Locale{
		"day after tomorrow":     LocaleEnglish,
		"the day after tomorrow": LocaleEnglish,
		"lusa":                   LocaleIndonesian,
		"besok lusa":             LocaleIndonesian,
	}},
}

// weekdayTokens maps every accepted weekday spelling to its weekday.
var weekdayTokens = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"sun":       time.Sunday,
	"monday":    time.Monday,
	"mon":       time.Monday,
	"tuesday":   time.Tuesday,
	"tues":      time.Tuesday,
	"tue":       time.Tuesday,
	"wednesday": time.Wednesday,
	"wed":       time.Wednesday,
	"thursday":  time.Thursday,
	"thurs":     time.Thursday,
	"thu":       time.Thursday,
	"friday":    time.Friday,
	"fri":       time.Friday,
	"saturday":  time.Saturday,
	"sat":       time.Saturday,

	"minggu": time.Sunday,
	"ahad":   time.Sunday,
	"senin":  time.Monday,
	"selasa": time.Tuesday,
	"rabu":   time.Wednesday,
	"kamis":  time.Thursday,
	"jumat":  time.Friday,
	"jum'at": time.Friday,
	"sabtu":  time.Saturday,
}

// weekdayFillers may surround a weekday name without changing its meaning.
var weekdayFillers = map[string]struct{}{
	"on":     {},
	"next":   {},
	"this":   {},
	"coming": {},
	"hari":   {},
	"depan":  {},
	"pada":   {},
}

// monthTokens maps English and Indonesian month names and abbreviations.
var monthTokens = map[string]time.Month{
	"january":   time.January,
	"jan":       time.January,
	"february":  time.February,
	"feb":       time.February,
	"march":     time.March,
	"mar":       time.March,
	"april":     time.April,
	"apr":       time.April,
	"may":       time.May,
	"june":      time.June,
	"jun":       time.June,
	"july":      time.July,
	"jul":       time.July,
	"august":    time.August,
	"aug":       time.August,
	"september": time.September,
	"sept":      time.September,
	"sep":       time.September,
	"october":   time.October,
	"oct":       time.October,
	"november":  time.November,
	"nov":       time.November,
	"december":  time.December,
	"dec":       time.December,

	"januari":  time.January,
	"februari": time.February,
	"pebruari": time.February,
	"maret":    time.March,
	"mei":      time.May,
	"juni":     time.June,
	"juli":     time.July,
	"agustus":  time.August,
	"agu":      time.August,
	"agt":      time.August,
	"ags":      time.August,
	"oktober":  time.October,
	"okt":      time.October,
	"desember": time.December,
	"des":      time.December,
}

// dayPeriods shift a bare hour into the afternoon or evening.
var dayPeriods = map[string]bool{
	"pagi":      false,
	"morning":   false,
	"siang":     true,
	"sore":      true,
	"afternoon": true,
	"malam":     true,
	"evening":   true,
	"tonight":   true,
}

// WeekdayFromToken reports the weekday named by a single token.
func WeekdayFromToken(token string) (time.Weekday, bool) {
	wd, ok := weekdayTokens[normalize(token)]
	return wd, ok
}
