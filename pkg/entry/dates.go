package entry

import (
	"regexp"
	"sort"
	"strings"
	"time"
)

// Raw date strings arrive in whatever format the producer of the day
// used. ParseWhen tries these layouts in order after cleanup.
var whenLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"January 2, 2006 3:04:05 PM",
	"January 2, 2006 3:04 PM",
	"January 2, 2006",
	"Jan 2, 2006 3:04:05 PM",
	"Jan 2, 2006 3:04 PM",
	"Jan 2, 2006",
	"1/2/2006 3:04:05 PM",
	"1/2/2006 3:04 PM",
	"1/2/2006 15:04",
	"1/2/2006",
	"Mon Jan 2 2006 15:04:05",
}

var (
	parenthetical  = regexp.MustCompile(`\s*\([^)]*\)\s*$`)
	trailingOffset = regexp.MustCompile(`\s+(?:UTC|GMT)[+-]\d{1,2}(?::\d{2})?$`)
)

// ParseWhen parses a raw date string best-effort. It strips a trailing
// parenthetical timezone annotation, a literal " at " separator, and a
// trailing UTC/GMT offset token before trying the known layouts. An
// unparseable value means "undated", never an error.
func ParseWhen(raw string) (time.Time, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return time.Time{}, false
	}
	s = parenthetical.ReplaceAllString(s, "")
	s = strings.Replace(s, " at ", " ", 1)
	s = trailingOffset.ReplaceAllString(s, "")
	s = strings.TrimSpace(s)

	for _, layout := range whenLayouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// Sort orders entries by placement time descending. Undated entries
// sort last. The sort is stable so repeated polls keep a stable order.
func Sort(entries []Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.Dated != b.Dated {
			return a.Dated
		}
		return a.PlacedAt.After(b.PlacedAt)
	})
}

// SameDay reports whether t falls on the same calendar day as ref.
func SameDay(t, ref time.Time) bool {
	ty, tm, td := t.Date()
	ry, rm, rd := ref.Date()
	return ty == ry && tm == rm && td == rd
}

// DayKey is the archive bucket key for a placement time.
func DayKey(t time.Time) string {
	return t.Format("2006-01-02")
}
