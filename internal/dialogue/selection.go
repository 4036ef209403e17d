package dialogue

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/wolfman30/wa-booking-assistant/internal/dates"
)

var (
	optionRE  = regexp.MustCompile(`^(?:option|opsi|pilihan|nomor|number|no\.?|choice|#)\s*(\d{1,2})$`)
	bareNumRE = regexp.MustCompile(`^(?:yang\s+|the\s+)?(\d{1,2})$`)
	tokenRE   = regexp.MustCompile(`[^\p{L}\p{N}:.#']+`)
)

// ordinalWords maps ordinal words in both locales to 1-based positions.
var ordinalWords = map[string]int{
	"first": 1, "second": 2, "third": 3, "fourth": 4, "fifth": 5, "sixth": 6,
	"1st": 1, "2nd": 2, "3rd": 3, "4th": 4, "5th": 5, "6th": 6,
	"pertama": 1, "kedua": 2, "ketiga": 3, "keempat": 4, "kelima": 5, "keenam": 6,
	"last": -1, "terakhir": -1,
}

var moreTimesPhrases = []string{
	"more times", "more options", "other times", "other options",
	"different times", "later times", "earlier times", "any other",
	"jam lain", "waktu lain", "pilihan lain", "yang lain",
}

var affirmatives = map[string]struct{}{
	"yes": {}, "yeah": {}, "yep": {}, "yup": {}, "y": {}, "sure": {}, "ok": {}, "okay": {},
	"confirm": {}, "confirmed": {}, "correct": {}, "deal": {},
	"ya": {}, "iya": {}, "yaa": {}, "iyaa": {}, "oke": {}, "okey": {}, "sip": {}, "siap": {},
	"betul": {}, "benar": {}, "setuju": {}, "jadi": {}, "boleh": {}, "lanjut": {}, "mantap": {},
}

var affirmativePhrases = []string{"go ahead", "book it", "sounds good", "that works", "lanjutkan", "tolong dibooking"}

var negatives = map[string]struct{}{
	"no": {}, "nope": {}, "nah": {}, "not": {}, "cancel": {}, "stop": {},
	"tidak": {}, "tdk": {}, "nggak": {}, "ngga": {}, "gak": {}, "ga": {}, "enggak": {},
	"engga": {}, "bukan": {}, "jangan": {}, "batal": {}, "batalkan": {}, "belum": {},
}

func tokens(message string) []string {
	fields := tokenRE.Split(strings.ToLower(strings.TrimSpace(message)), -1)
	out := fields[:0]
	for _, f := range fields {
		f = strings.Trim(f, ".")
		if f != "" {
			out = append(out, f)
		}
	}
	return out
}

func cleanMessage(message string) string {
	s := strings.ToLower(strings.TrimSpace(message))
	return strings.TrimRight(s, "!?. ")
}

// SelectSlot matches a reply against the offered HH:MM slots. It accepts
// "option 2", "#2", ordinal words, a literal time and a bare index.
func SelectSlot(message string, offered []string) (string, bool) {
	msg := cleanMessage(message)
	if msg == "" || len(offered) == 0 || WantsMoreTimes(msg) {
		return "", false
	}

	if m := optionRE.FindStringSubmatch(msg); m != nil {
		return byIndex(m[1], offered)
	}

	toks := tokens(msg)
	for _, tok := range toks {
		if pos, ok := ordinalWords[tok]; ok {
			if pos == -1 {
				return offered[len(offered)-1], true
			}
			if pos <= len(offered) {
				return offered[pos-1], true
			}
		}
	}

	if clock, ok := findClock(toks); ok {
		for _, slot := range offered {
			if slot == clock {
				return slot, true
			}
		}
		return "", false
	}

	if m := bareNumRE.FindStringSubmatch(msg); m != nil {
		if slot, ok := byIndex(m[1], offered); ok {
			return slot, true
		}
		return byBareHour(m[1], offered)
	}
	return "", false
}

// WantsMoreTimes reports a request to see slots other than the ones offered.
func WantsMoreTimes(message string) bool {
	msg := cleanMessage(message)
	for _, phrase := range moreTimesPhrases {
		if strings.Contains(msg, phrase) {
			return true
		}
	}
	return false
}

func byIndex(raw string, offered []string) (string, bool) {
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 || n > len(offered) {
		return "", false
	}
	return offered[n-1], true
}

// byBareHour picks the single offered slot on the hour n, morning or afternoon.
func byBareHour(raw string, offered []string) (string, bool) {
	n, err := strconv.Atoi(raw)
	if err != nil {
		return "", false
	}
	var match string
	count := 0
	for _, slot := range offered {
		minutes, err := dates.ClockMinutes(slot)
		if err != nil || minutes%60 != 0 {
			continue
		}
		if h := minutes / 60; h == n || h == n+12 {
			match = slot
			count++
		}
	}
	return match, count == 1
}

// findClock looks for the longest token window that reads as a wall-clock time.
func findClock(toks []string) (string, bool) {
	for size := 4; size >= 1; size-- {
		for i := 0; i+size <= len(toks); i++ {
			if clock, ok := dates.ParseClock(strings.Join(toks[i:i+size], " ")); ok {
				return clock, true
			}
		}
	}
	return "", false
}

// IsAffirmative reports an explicit yes in English or Indonesian.
func IsAffirmative(message string) bool {
	msg := cleanMessage(message)
	toks := tokens(msg)
	if len(toks) == 0 || IsNegative(message) {
		return false
	}
	if _, ok := affirmatives[toks[0]]; ok {
		return true
	}
	for _, phrase := range affirmativePhrases {
		if strings.HasPrefix(msg, phrase) {
			return true
		}
	}
	return false
}

// cancelWords reject the booking wherever they appear in a reply.
var cancelWords = map[string]struct{}{
	"cancel": {}, "batal": {}, "batalkan": {}, "jangan": {},
}

// IsNegative reports an explicit no in English or Indonesian.
func IsNegative(message string) bool {
	toks := tokens(cleanMessage(message))
	if len(toks) == 0 {
		return false
	}
	if _, ok := negatives[toks[0]]; ok {
		return true
	}
	for _, tok := range toks[1:] {
		if _, ok := cancelWords[tok]; ok {
			return true
		}
	}
	return false
}
