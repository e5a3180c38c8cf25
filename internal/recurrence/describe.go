package recurrence

import (
	"fmt"
	"strings"
	"time"

	"calview/internal/temporal"
)

// Describe renders the rule as a human-readable sentence, e.g.
// "Every week on Monday, Wednesday until Jan 1, 2026".
func (r *Rule) Describe() string {
	return Describe(r.rec)
}

// Describe renders a structured rule as a sentence. Weekday and month names
// are English; localization happens in the rendering layer.
func Describe(rec Recurrence) string {
	if rec.Freq == "" {
		return fmt.Sprintf("Excluding %d dates", len(rec.ExDates))
	}

	var b strings.Builder
	b.WriteString(frequencyPhrase(rec.Freq, rec.Interval))

	if phrase := byDayPhrase(rec); phrase != "" {
		b.WriteString(" on ")
		b.WriteString(phrase)
	} else if len(rec.ByMonthDay) > 0 && (rec.Freq == Monthly || rec.Freq == Yearly) {
		b.WriteString(" on the ")
		b.WriteString(joinPhrases(ordinalList(rec.ByMonthDay)))
	}

	if len(rec.ByMonth) > 0 && rec.Freq == Yearly {
		names := make([]string, len(rec.ByMonth))
		for i, m := range rec.ByMonth {
			names[i] = time.Month(m).String()
		}
		b.WriteString(" in ")
		b.WriteString(joinPhrases(names))
	}

	if rec.Count > 0 {
		fmt.Fprintf(&b, ", %d times", rec.Count)
	}
	if rec.Until != nil {
		b.WriteString(" until ")
		b.WriteString(untilPhrase(rec.Until))
	}

	return b.String()
}

func frequencyPhrase(freq Frequency, interval int) string {
	singular := map[Frequency]string{
		Secondly: "second", Minutely: "minute", Hourly: "hour",
		Daily: "day", Weekly: "week", Monthly: "month", Yearly: "year",
	}[freq]

	if interval <= 1 {
		return "Every " + singular
	}
	if interval == 2 {
		return "Every other " + singular
	}
	return fmt.Sprintf("Every %d %ss", interval, singular)
}

// byDayPhrase renders ByDay, folding BySetPos into an ordinal weekday
// ("the 2nd Tuesday") when both select a single position.
func byDayPhrase(rec Recurrence) string {
	if len(rec.ByDay) == 0 {
		return ""
	}

	if isWeekdayRun(rec.ByDay) {
		return "weekdays"
	}

	if len(rec.BySetPos) == 1 && len(rec.ByDay) == 1 {
		_, code, err := splitOrdinalDay(rec.ByDay[0])
		if err == nil {
			return fmt.Sprintf("the %s %s", ordinal(rec.BySetPos[0]), weekdayNames[code])
		}
	}

	names := make([]string, 0, len(rec.ByDay))
	for _, token := range rec.ByDay {
		ord, code, err := splitOrdinalDay(token)
		if err != nil {
			continue
		}
		if ord != 0 {
			names = append(names, fmt.Sprintf("the %s %s", ordinal(ord), weekdayNames[code]))
		} else {
			names = append(names, weekdayNames[code])
		}
	}
	return joinPhrases(names)
}

func isWeekdayRun(byDay []string) bool {
	if len(byDay) != 5 {
		return false
	}
	want := map[string]bool{"MO": true, "TU": true, "WE": true, "TH": true, "FR": true}
	for _, d := range byDay {
		if !want[d] {
			return false
		}
		delete(want, d)
	}
	return len(want) == 0
}

func untilPhrase(v temporal.Value) string {
	switch t := v.(type) {
	case temporal.PlainDate:
		return fmt.Sprintf("%s %d, %d", t.Month.String()[:3], t.Day, t.Year)
	case temporal.ZonedDateTime:
		d := t.ToPlainDate()
		return fmt.Sprintf("%s %d, %d", d.Month.String()[:3], d.Day, d.Year)
	case temporal.Instant:
		d := temporal.DateOf(t.Time())
		return fmt.Sprintf("%s %d, %d", d.Month.String()[:3], d.Day, d.Year)
	default:
		return ""
	}
}

func ordinal(n int) string {
	if n < 0 {
		if n == -1 {
			return "last"
		}
		return fmt.Sprintf("%s-to-last", ordinal(-n - 1))
	}
	suffix := "th"
	if n%100 < 11 || n%100 > 13 {
		switch n % 10 {
		case 1:
			suffix = "st"
		case 2:
			suffix = "nd"
		case 3:
			suffix = "rd"
		}
	}
	return fmt.Sprintf("%d%s", n, suffix)
}

func ordinalList(ns []int) []string {
	out := make([]string, len(ns))
	for i, n := range ns {
		out[i] = ordinal(n)
	}
	return out
}

func joinPhrases(parts []string) string {
	switch len(parts) {
	case 0:
		return ""
	case 1:
		return parts[0]
	default:
		return strings.Join(parts[:len(parts)-1], ", ") + " and " + parts[len(parts)-1]
	}
}
