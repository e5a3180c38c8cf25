// Package recurrence implements the recurrence rule engine: structured
// RFC-5545-style rules, their expansion into concrete occurrences, canonical
// rule-string serialization, human-readable descriptions and anchor-derived
// suggestions.
package recurrence

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"calview/internal/temporal"
)

func monthOf(m int) time.Month { return time.Month(m) }

// Frequency is the base repetition unit of a rule.
type Frequency string

const (
	Secondly Frequency = "SECONDLY"
	Minutely Frequency = "MINUTELY"
	Hourly   Frequency = "HOURLY"
	Daily    Frequency = "DAILY"
	Weekly   Frequency = "WEEKLY"
	Monthly  Frequency = "MONTHLY"
	Yearly   Frequency = "YEARLY"
)

// WeekdayCodes in RFC 5545 order starting from Monday.
var WeekdayCodes = []string{"MO", "TU", "WE", "TH", "FR", "SA", "SU"}

var weekdayNames = map[string]string{
	"MO": "Monday", "TU": "Tuesday", "WE": "Wednesday", "TH": "Thursday",
	"FR": "Friday", "SA": "Saturday", "SU": "Sunday",
}

// Recurrence is a structured recurrence rule. A plain weekday code in ByDay
// ("MO") means every matching weekday in the period; an ordinal prefix
// ("2TU") or a BySetPos entry selects a specific occurrence within the
// period ("the 2nd Tuesday").
//
// Count and Until are mutually exclusive end conditions; with neither set
// the rule is unbounded and expansion is always capped by the caller's
// window. A rule without Freq is legal only when it carries a non-empty
// ExDates list; such an exceptions-only rule expands to just its anchor
// slot, minus the excluded dates.
type Recurrence struct {
	Freq     Frequency
	Interval int
	Count    int
	Until    temporal.Value

	ByDay      []string
	ByMonth    []int
	ByMonthDay []int
	ByYearDay  []int
	ByWeekNo   []int
	ByHour     []int
	ByMinute   []int
	BySecond   []int
	BySetPos   []int

	// WeekStart is the ISO weekday the week begins on for WEEKLY expansion
	// (Monday=1 .. Sunday=7). Zero means the RFC default (Monday).
	WeekStart int

	RDates  []temporal.Value
	ExDates []temporal.Value
}

var (
	// ErrCountAndUntil is returned when both end conditions are set.
	ErrCountAndUntil = errors.New("recurrence: count and until are mutually exclusive")
	// ErrMissingFreq is returned for a rule with no frequency and no
	// exception dates.
	ErrMissingFreq = errors.New("recurrence: rule without freq requires a non-empty exDate list")
)

// Validate enforces the boundary invariants on a rule. Expansion assumes a
// validated rule and does not re-check.
func Validate(rec Recurrence) error {
	if rec.Count > 0 && rec.Until != nil {
		return ErrCountAndUntil
	}
	if rec.Freq == "" && len(rec.ExDates) == 0 {
		return ErrMissingFreq
	}
	if rec.Freq != "" {
		switch rec.Freq {
		case Secondly, Minutely, Hourly, Daily, Weekly, Monthly, Yearly:
		default:
			return fmt.Errorf("recurrence: unsupported freq %q", rec.Freq)
		}
	}
	for _, day := range rec.ByDay {
		if _, _, err := splitOrdinalDay(day); err != nil {
			return err
		}
	}
	if rec.Interval < 0 {
		return fmt.Errorf("recurrence: negative interval %d", rec.Interval)
	}
	return nil
}

// splitOrdinalDay splits an RFC weekday token like "MO" or "-1FR" into its
// ordinal (0 when absent) and weekday code.
func splitOrdinalDay(token string) (ordinal int, code string, err error) {
	t := strings.TrimSpace(strings.ToUpper(token))
	if len(t) < 2 {
		return 0, "", fmt.Errorf("recurrence: invalid byDay token %q", token)
	}
	code = t[len(t)-2:]
	if _, ok := weekdayNames[code]; !ok {
		return 0, "", fmt.Errorf("recurrence: invalid weekday code %q", token)
	}
	if prefix := t[:len(t)-2]; prefix != "" {
		ordinal, err = strconv.Atoi(prefix)
		if err != nil || ordinal == 0 {
			return 0, "", fmt.Errorf("recurrence: invalid byDay ordinal %q", token)
		}
	}
	return ordinal, code, nil
}

// RuleString serializes the rule into its canonical RRULE form. Components
// are emitted in a fixed order so equal rules always serialize identically.
func RuleString(rec Recurrence) string {
	var parts []string
	add := func(key, value string) {
		if value != "" {
			parts = append(parts, key+"="+value)
		}
	}

	add("FREQ", string(rec.Freq))
	if rec.Interval > 1 {
		add("INTERVAL", strconv.Itoa(rec.Interval))
	}
	if rec.Count > 0 {
		add("COUNT", strconv.Itoa(rec.Count))
	}
	if rec.Until != nil {
		add("UNTIL", formatUntil(rec.Until))
	}
	add("BYDAY", strings.Join(rec.ByDay, ","))
	add("BYMONTH", joinInts(rec.ByMonth))
	add("BYMONTHDAY", joinInts(rec.ByMonthDay))
	add("BYYEARDAY", joinInts(rec.ByYearDay))
	add("BYWEEKNO", joinInts(rec.ByWeekNo))
	add("BYHOUR", joinInts(rec.ByHour))
	add("BYMINUTE", joinInts(rec.ByMinute))
	add("BYSECOND", joinInts(rec.BySecond))
	add("BYSETPOS", joinInts(rec.BySetPos))
	if rec.WeekStart > 0 {
		add("WKST", WeekdayCodes[rec.WeekStart-1])
	}

	return "RRULE:" + strings.Join(parts, ";")
}

func joinInts(ns []int) string {
	if len(ns) == 0 {
		return ""
	}
	ss := make([]string, len(ns))
	for i, n := range ns {
		ss[i] = strconv.Itoa(n)
	}
	return strings.Join(ss, ",")
}

func formatUntil(v temporal.Value) string {
	switch t := v.(type) {
	case temporal.PlainDate:
		return fmt.Sprintf("%04d%02d%02d", t.Year, int(t.Month), t.Day)
	case temporal.Instant:
		return t.Time().Format("20060102T150405Z")
	case temporal.ZonedDateTime:
		return t.ToInstant().Time().Format("20060102T150405Z")
	default:
		return ""
	}
}

// ParseRuleString parses an RRULE string (with or without the "RRULE:"
// prefix) into a Recurrence. Floating UNTIL values are interpreted in the
// given zone; UTC values keep their instant.
func ParseRuleString(s, timeZone string) (Recurrence, error) {
	body := strings.TrimSpace(s)
	body = strings.TrimPrefix(body, "RRULE:")
	if body == "" {
		return Recurrence{}, errors.New("recurrence: empty rule string")
	}

	var rec Recurrence
	for _, part := range strings.Split(body, ";") {
		key, value, ok := strings.Cut(part, "=")
		if !ok || value == "" {
			continue
		}
		switch strings.ToUpper(key) {
		case "FREQ":
			rec.Freq = Frequency(strings.ToUpper(value))
		case "INTERVAL":
			n, err := strconv.Atoi(value)
			if err != nil || n < 1 {
				return Recurrence{}, fmt.Errorf("recurrence: invalid INTERVAL %q", value)
			}
			rec.Interval = n
		case "COUNT":
			n, err := strconv.Atoi(value)
			if err != nil || n < 1 {
				return Recurrence{}, fmt.Errorf("recurrence: invalid COUNT %q", value)
			}
			rec.Count = n
		case "UNTIL":
			until, err := parseUntil(value, timeZone)
			if err != nil {
				return Recurrence{}, err
			}
			rec.Until = until
		case "BYDAY":
			rec.ByDay = splitUpper(value)
		case "BYMONTH":
			var err error
			if rec.ByMonth, err = splitInts(value); err != nil {
				return Recurrence{}, err
			}
		case "BYMONTHDAY":
			var err error
			if rec.ByMonthDay, err = splitInts(value); err != nil {
				return Recurrence{}, err
			}
		case "BYYEARDAY":
			var err error
			if rec.ByYearDay, err = splitInts(value); err != nil {
				return Recurrence{}, err
			}
		case "BYWEEKNO":
			var err error
			if rec.ByWeekNo, err = splitInts(value); err != nil {
				return Recurrence{}, err
			}
		case "BYHOUR":
			var err error
			if rec.ByHour, err = splitInts(value); err != nil {
				return Recurrence{}, err
			}
		case "BYMINUTE":
			var err error
			if rec.ByMinute, err = splitInts(value); err != nil {
				return Recurrence{}, err
			}
		case "BYSECOND":
			var err error
			if rec.BySecond, err = splitInts(value); err != nil {
				return Recurrence{}, err
			}
		case "BYSETPOS":
			var err error
			if rec.BySetPos, err = splitInts(value); err != nil {
				return Recurrence{}, err
			}
		case "WKST":
			for i, code := range WeekdayCodes {
				if strings.EqualFold(code, value) {
					rec.WeekStart = i + 1
				}
			}
		}
	}

	if err := Validate(rec); err != nil {
		return Recurrence{}, err
	}
	return rec, nil
}

func splitUpper(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(strings.ToUpper(p))
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func splitInts(v string) ([]int, error) {
	parts := strings.Split(v, ",")
	out := make([]int, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil, fmt.Errorf("recurrence: invalid numeric list entry %q", p)
		}
		out = append(out, n)
	}
	return out, nil
}

// parseUntil handles the three UNTIL shapes: 20250101 (civil date),
// 20250101T090000Z (UTC instant) and 20250101T090000 (floating, resolved in
// the rule's zone).
func parseUntil(v, timeZone string) (temporal.Value, error) {
	v = strings.TrimSpace(v)

	parseDate := func(s string) (int, int, int, error) {
		if len(s) < 8 {
			return 0, 0, 0, fmt.Errorf("recurrence: invalid UNTIL %q", v)
		}
		y, err1 := strconv.Atoi(s[0:4])
		m, err2 := strconv.Atoi(s[4:6])
		d, err3 := strconv.Atoi(s[6:8])
		if err1 != nil || err2 != nil || err3 != nil {
			return 0, 0, 0, fmt.Errorf("recurrence: invalid UNTIL %q", v)
		}
		return y, m, d, nil
	}
	parseTime := func(s string) (int, int, int, error) {
		if len(s) < 6 {
			return 0, 0, 0, fmt.Errorf("recurrence: invalid UNTIL %q", v)
		}
		h, err1 := strconv.Atoi(s[0:2])
		mi, err2 := strconv.Atoi(s[2:4])
		se, err3 := strconv.Atoi(s[4:6])
		if err1 != nil || err2 != nil || err3 != nil {
			return 0, 0, 0, fmt.Errorf("recurrence: invalid UNTIL %q", v)
		}
		return h, mi, se, nil
	}

	utc := strings.HasSuffix(v, "Z")
	s := strings.TrimSuffix(v, "Z")
	datePart, timePart, hasTime := strings.Cut(s, "T")

	y, m, d, err := parseDate(datePart)
	if err != nil {
		return nil, err
	}
	if !hasTime {
		return temporal.NewPlainDate(y, monthOf(m), d), nil
	}

	h, mi, se, err := parseTime(timePart)
	if err != nil {
		return nil, err
	}
	zone := timeZone
	if utc {
		zone = "UTC"
	}
	zdt, err := temporal.NewZonedDateTime(y, monthOf(m), d, h, mi, se, zone)
	if err != nil {
		return nil, err
	}
	if utc {
		return zdt.ToInstant(), nil
	}
	return zdt, nil
}
