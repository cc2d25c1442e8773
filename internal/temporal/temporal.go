// Package temporal resolves natural-language date/time phrases against a
// reference instant. Resolution is forward-biased: ambiguous relative
// expressions ("Monday", a bare clock time) resolve to the nearest
// occurrence at or after the reference, never into the past. All results
// are produced in the reference instant's location.
package temporal

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Range is a resolved point in time with an optional explicit end. When
// End is nil the caller decides the duration.
type Range struct {
	Start time.Time
	End   *time.Time
}

// Default hour for phrases that name a day but no clock time.
const defaultHour = 9

var (
	clockRe    = regexp.MustCompile(`(?i)\b(\d{1,2})(?::(\d{2}))?\s*(am|pm)\b|\b(\d{1,2}):(\d{2})\b`)
	rangeRe    = regexp.MustCompile(`(?i)\bfrom\s+(.+?)\s+(?:to|until)\s+(.+)$`)
	timePairRe = regexp.MustCompile(`(?i)\b(\d{1,2}(?::\d{2})?\s*(?:am|pm)|noon|midnight)\s+to\s+(\d{1,2}(?::\d{2})?\s*(?:am|pm)|noon|midnight)\b`)
	inRelRe    = regexp.MustCompile(`(?i)^in\s+(a|an|\d+)\s+(minute|hour|day|week|month)s?$`)
	monthDayRe = regexp.MustCompile(`(?i)\b(january|february|march|april|may|june|july|august|september|october|november|december|jan|feb|mar|apr|jun|jul|aug|sep|sept|oct|nov|dec)\.?\s+(\d{1,2})(?:st|nd|rd|th)?(?:,?\s+(\d{4}))?\b`)
	isoDateRe    = regexp.MustCompile(`\b(\d{4})-(\d{1,2})-(\d{1,2})\b`)
	slashRe      = regexp.MustCompile(`\b(\d{1,2})/(\d{1,2})(?:/(\d{2,4}))?\b`)
	namedClockRe = regexp.MustCompile(`\b(noon|midnight)\b`)
)

// Parse resolves text against ref. It returns false when no date or time
// expression is recognized; callers treat that as a user-facing parse
// failure rather than an error.
func Parse(text string, ref time.Time) (Range, bool) {
	s := normalize(text)
	if s == "" {
		return Range{}, false
	}

	// "from 2pm to 4pm tomorrow" style ranges, and the bare "2pm to 4pm".
	if m := rangeRe.FindStringSubmatchIndex(s); m != nil {
		prefix := strings.TrimSpace(s[:m[0]])
		first := s[m[2]:m[3]]
		second := s[m[4]:m[5]]
		if r, ok := parseClockRange(prefix, first, second, ref); ok {
			return r, true
		}
	}
	if m := timePairRe.FindStringSubmatchIndex(s); m != nil {
		prefix := strings.TrimSpace(s[:m[0]] + " " + s[m[1]:])
		if r, ok := parseClockRange(prefix, s[m[2]:m[3]], s[m[4]:m[5]], ref); ok {
			return r, true
		}
	}

	start, ok := parseMoment(s, ref)
	if !ok {
		return Range{}, false
	}
	return Range{Start: start}, true
}

// DayWindow returns the [00:00, 23:59:59.999...] window of t's calendar
// day in t's location.
func DayWindow(t time.Time) (time.Time, time.Time) {
	start := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	// AddDate keeps the window calendar-correct on DST-transition days.
	end := start.AddDate(0, 0, 1).Add(-time.Nanosecond)
	return start, end
}

func parseClockRange(dayPhrase, first, second string, ref time.Time) (Range, bool) {
	h1, m1, ok := parseClock(first)
	if !ok {
		return Range{}, false
	}
	h2, m2, ok := parseClock(second)
	if !ok {
		return Range{}, false
	}

	day, hasDay := parseDay(dayPhrase, ref)
	if !hasDay {
		if strings.TrimSpace(dayPhrase) != "" {
			return Range{}, false
		}
		day = dateOf(ref)
	}
	start := day.Add(time.Duration(h1)*time.Hour + time.Duration(m1)*time.Minute)
	if !hasDay && start.Before(ref) {
		start = start.AddDate(0, 0, 1)
	}
	end := time.Date(start.Year(), start.Month(), start.Day(), h2, m2, 0, 0, start.Location())
	if !end.After(start) {
		// "11pm to 1am" crosses midnight.
		end = end.AddDate(0, 0, 1)
	}
	return Range{Start: start, End: &end}, true
}

// parseMoment resolves a single date and/or time phrase.
func parseMoment(s string, ref time.Time) (time.Time, bool) {
	if t, ok := parseRelativeOffset(s, ref); ok {
		return t, true
	}

	hour, minute := -1, 0
	if t, ok := extractNamedClock(&s); ok {
		hour, minute = t[0], t[1]
	} else if m := clockRe.FindStringSubmatchIndex(s); m != nil {
		h, mm, ok := parseClock(s[m[0]:m[1]])
		if ok {
			hour, minute = h, mm
			s = normalize(s[:m[0]] + " " + s[m[1]:])
		}
	}
	s = stripConnectors(s)

	day, hasDay := parseDay(s, ref)
	switch {
	case hasDay && hour >= 0:
		t := day.Add(time.Duration(hour)*time.Hour + time.Duration(minute)*time.Minute)
		if isBareWeekday(s) && t.Before(ref) {
			t = t.AddDate(0, 0, 7)
		}
		return t, true
	case hasDay:
		h := defaultHour
		if s == "tonight" {
			h = 20
		}
		return day.Add(time.Duration(h) * time.Hour), true
	case hour >= 0 && s == "":
		t := dateOf(ref).Add(time.Duration(hour)*time.Hour + time.Duration(minute)*time.Minute)
		if t.Before(ref) {
			t = t.AddDate(0, 0, 1)
		}
		return t, true
	default:
		return time.Time{}, false
	}
}

// parseDay resolves a date-only phrase to midnight of that day.
func parseDay(s string, ref time.Time) (time.Time, bool) {
	s = stripConnectors(s)
	switch s {
	case "":
		return time.Time{}, false
	case "today", "tonight":
		return dateOf(ref), true
	case "tomorrow":
		return dateOf(ref).AddDate(0, 0, 1), true
	case "yesterday":
		return dateOf(ref).AddDate(0, 0, -1), true
	case "day after tomorrow", "the day after tomorrow":
		return dateOf(ref).AddDate(0, 0, 2), true
	case "next week":
		return dateOf(ref).AddDate(0, 0, 7), true
	case "this week":
		return dateOf(ref), true
	case "next month":
		return dateOf(ref).AddDate(0, 1, 0), true
	}

	if dow, ok := parseWeekday(strings.TrimPrefix(s, "next ")); ok {
		nextWeek := strings.HasPrefix(s, "next ")
		return nextWeekday(ref, dow, nextWeek), true
	}
	if m := monthDayRe.FindStringSubmatch(s); m != nil {
		month, ok := parseMonth(m[1])
		if !ok {
			return time.Time{}, false
		}
		day, _ := strconv.Atoi(m[2])
		if day < 1 || day > 31 {
			return time.Time{}, false
		}
		year := ref.Year()
		explicitYear := m[3] != ""
		if explicitYear {
			year, _ = strconv.Atoi(m[3])
		}
		t := time.Date(year, month, day, 0, 0, 0, 0, ref.Location())
		if !explicitYear && t.Before(dateOf(ref)) {
			t = t.AddDate(1, 0, 0)
		}
		return t, true
	}
	if m := isoDateRe.FindStringSubmatch(s); m != nil {
		year, _ := strconv.Atoi(m[1])
		month, _ := strconv.Atoi(m[2])
		day, _ := strconv.Atoi(m[3])
		if month < 1 || month > 12 || day < 1 || day > 31 {
			return time.Time{}, false
		}
		return time.Date(year, time.Month(month), day, 0, 0, 0, 0, ref.Location()), true
	}
	if m := slashRe.FindStringSubmatch(s); m != nil {
		month, _ := strconv.Atoi(m[1])
		day, _ := strconv.Atoi(m[2])
		if month < 1 || month > 12 || day < 1 || day > 31 {
			return time.Time{}, false
		}
		year := ref.Year()
		explicitYear := m[3] != ""
		if explicitYear {
			year, _ = strconv.Atoi(m[3])
			if year < 100 {
				year += 2000
			}
		}
		t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, ref.Location())
		if !explicitYear && t.Before(dateOf(ref)) {
			t = t.AddDate(1, 0, 0)
		}
		return t, true
	}
	return time.Time{}, false
}

// parseRelativeOffset handles "in 30 minutes", "in 2 hours", "in a week".
func parseRelativeOffset(s string, ref time.Time) (time.Time, bool) {
	m := inRelRe.FindStringSubmatch(s)
	if m == nil {
		return time.Time{}, false
	}
	n := 1
	if m[1] != "a" && m[1] != "an" {
		n, _ = strconv.Atoi(m[1])
	}
	switch m[2] {
	case "minute":
		return ref.Add(time.Duration(n) * time.Minute), true
	case "hour":
		return ref.Add(time.Duration(n) * time.Hour), true
	case "day":
		return dateOf(ref).AddDate(0, 0, n).Add(time.Duration(defaultHour) * time.Hour), true
	case "week":
		return dateOf(ref).AddDate(0, 0, 7*n).Add(time.Duration(defaultHour) * time.Hour), true
	case "month":
		return dateOf(ref).AddDate(0, n, 0).Add(time.Duration(defaultHour) * time.Hour), true
	}
	return time.Time{}, false
}

// parseClock parses "3pm", "3:30 pm", "15:00", "noon", "midnight".
func parseClock(s string) (int, int, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	switch s {
	case "noon":
		return 12, 0, true
	case "midnight":
		return 0, 0, true
	}
	m := clockRe.FindStringSubmatch(s)
	if m == nil {
		return 0, 0, false
	}
	if m[1] != "" {
		h, _ := strconv.Atoi(m[1])
		minute := 0
		if m[2] != "" {
			minute, _ = strconv.Atoi(m[2])
		}
		if h < 1 || h > 12 || minute > 59 {
			return 0, 0, false
		}
		if m[3] == "pm" && h != 12 {
			h += 12
		}
		if m[3] == "am" && h == 12 {
			h = 0
		}
		return h, minute, true
	}
	h, _ := strconv.Atoi(m[4])
	minute, _ := strconv.Atoi(m[5])
	if h > 23 || minute > 59 {
		return 0, 0, false
	}
	return h, minute, true
}

func extractNamedClock(s *string) ([2]int, bool) {
	m := namedClockRe.FindStringIndex(*s)
	if m == nil {
		return [2]int{}, false
	}
	name := (*s)[m[0]:m[1]]
	*s = normalize((*s)[:m[0]] + " " + (*s)[m[1]:])
	if name == "noon" {
		return [2]int{12, 0}, true
	}
	return [2]int{0, 0}, true
}

func parseWeekday(s string) (time.Weekday, bool) {
	switch {
	case strings.HasPrefix(s, "sun"):
		return time.Sunday, sameWord(s, "sunday")
	case strings.HasPrefix(s, "mon"):
		return time.Monday, sameWord(s, "monday")
	case strings.HasPrefix(s, "tue"):
		return time.Tuesday, sameWord(s, "tuesday")
	case strings.HasPrefix(s, "wed"):
		return time.Wednesday, sameWord(s, "wednesday")
	case strings.HasPrefix(s, "thu"):
		return time.Thursday, sameWord(s, "thursday")
	case strings.HasPrefix(s, "fri"):
		return time.Friday, sameWord(s, "friday")
	case strings.HasPrefix(s, "sat"):
		return time.Saturday, sameWord(s, "saturday")
	}
	return 0, false
}

// sameWord accepts the full weekday name or its common abbreviations.
func sameWord(s, full string) bool {
	if s == full {
		return true
	}
	switch len(s) {
	case 3:
		return strings.HasPrefix(full, s)
	case 4:
		return s == "thur" || s == "tues"
	case 5:
		return s == "thurs"
	}
	return false
}

func parseMonth(s string) (time.Month, bool) {
	months := map[string]time.Month{
		"jan": time.January, "feb": time.February, "mar": time.March,
		"apr": time.April, "may": time.May, "jun": time.June,
		"jul": time.July, "aug": time.August, "sep": time.September,
		"oct": time.October, "nov": time.November, "dec": time.December,
	}
	key := strings.ToLower(s)
	if len(key) > 3 && key != "sept" {
		key = key[:3]
	}
	if key == "sept" {
		key = "sep"
	}
	m, ok := months[key]
	return m, ok
}

// nextWeekday returns the nearest occurrence of target at or after ref.
// With nextWeek it always skips into the following week.
func nextWeekday(ref time.Time, target time.Weekday, nextWeek bool) time.Time {
	daysAhead := int(target) - int(ref.Weekday())
	if daysAhead < 0 {
		daysAhead += 7
	}
	if nextWeek {
		daysAhead += 7
	}
	return dateOf(ref).AddDate(0, 0, daysAhead)
}

func isBareWeekday(s string) bool {
	_, ok := parseWeekday(stripConnectors(s))
	return ok
}

func dateOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func normalize(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.Join(strings.Fields(s), " ")
}

// stripConnectors drops filler tokens ("at", "on", "the") so that the
// leftover of a phrase after clock extraction reduces to a bare day
// expression.
func stripConnectors(s string) string {
	fields := strings.Fields(normalize(s))
	out := fields[:0]
	for _, f := range fields {
		f = strings.Trim(f, ",.")
		switch f {
		case "", "at", "on", "the":
			continue
		}
		out = append(out, f)
	}
	return strings.Join(out, " ")
}
