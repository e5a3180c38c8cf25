package temporal

import "time"

// Boundary helpers. PlainDate variants stay zone-naive; a PlainDate only
// needs a zone when the result must become a ZonedDateTime (start/end of
// day). WeekStartsOn uses ISO numbering (Monday=1 .. Sunday=7).

// StartOfWeek returns the first day of d's week.
func (d PlainDate) StartOfWeek(weekStartsOn int) PlainDate {
	diff := (d.DayOfWeek() - weekStartsOn + 7) % 7
	return d.AddDays(-diff)
}

// EndOfWeek returns the last day of d's week.
func (d PlainDate) EndOfWeek(weekStartsOn int) PlainDate {
	diff := (d.DayOfWeek() - weekStartsOn + 7) % 7
	return d.AddDays(6 - diff)
}

// StartOfMonth returns the first day of d's month.
func (d PlainDate) StartOfMonth() PlainDate {
	return PlainDate{Year: d.Year, Month: d.Month, Day: 1}
}

// EndOfMonth returns the last day of d's month.
func (d PlainDate) EndOfMonth() PlainDate {
	return PlainDate{Year: d.Year, Month: d.Month, Day: d.DaysInMonth()}
}

// StartOfWeek returns midnight of the first day of z's week in z's zone.
func (z ZonedDateTime) StartOfWeek(weekStartsOn int) ZonedDateTime {
	diff := (z.DayOfWeek() - weekStartsOn + 7) % 7
	return z.AddDays(-diff).StartOfDay()
}

// EndOfWeek returns the last representable moment of the last day of z's
// week in z's zone.
func (z ZonedDateTime) EndOfWeek(weekStartsOn int) ZonedDateTime {
	diff := (z.DayOfWeek() - weekStartsOn + 7) % 7
	return z.AddDays(6 - diff).EndOfDay()
}

// StartOfDay returns midnight of z's civil date in z's zone.
func (z ZonedDateTime) StartOfDay() ZonedDateTime {
	t := time.Date(z.t.Year(), z.t.Month(), z.t.Day(), 0, 0, 0, 0, z.t.Location())
	return ZonedDateTime{t: t, zone: z.zone}
}

// EndOfDay returns the last nanosecond of z's civil date in z's zone.
func (z ZonedDateTime) EndOfDay() ZonedDateTime {
	t := time.Date(z.t.Year(), z.t.Month(), z.t.Day(), 23, 59, 59, int(time.Second-time.Nanosecond), z.t.Location())
	return ZonedDateTime{t: t, zone: z.zone}
}

// StartOfMonth returns midnight of the first day of z's month.
func (z ZonedDateTime) StartOfMonth() ZonedDateTime {
	t := time.Date(z.t.Year(), z.t.Month(), 1, 0, 0, 0, 0, z.t.Location())
	return ZonedDateTime{t: t, zone: z.zone}
}

// EndOfMonth returns the last nanosecond of the last day of z's month.
func (z ZonedDateTime) EndOfMonth() ZonedDateTime {
	first := time.Date(z.t.Year(), z.t.Month(), 1, 0, 0, 0, 0, z.t.Location())
	last := first.AddDate(0, 1, -1)
	t := time.Date(last.Year(), last.Month(), last.Day(), 23, 59, 59, int(time.Second-time.Nanosecond), z.t.Location())
	return ZonedDateTime{t: t, zone: z.zone}
}

// StartOfDayIn converts a PlainDate into midnight in the given zone.
func StartOfDayIn(d PlainDate, timeZone string) (ZonedDateTime, error) {
	return NewZonedDateTime(d.Year, d.Month, d.Day, 0, 0, 0, timeZone)
}

// EndOfDayIn converts a PlainDate into the last nanosecond of the day in the
// given zone.
func EndOfDayIn(d PlainDate, timeZone string) (ZonedDateTime, error) {
	z, err := NewZonedDateTime(d.Year, d.Month, d.Day, 0, 0, 0, timeZone)
	if err != nil {
		return ZonedDateTime{}, err
	}
	return z.EndOfDay(), nil
}

// EachDay returns the inclusive day sequence from start to end. When start
// is after end the result is empty; callers are expected to pass an ordered
// pair, and a degenerate range is treated as an empty view rather than an
// error.
func EachDay(start, end PlainDate) []PlainDate {
	if start.Compare(end) > 0 {
		return nil
	}
	days := make([]PlainDate, 0, start.DaysUntil(end)+1)
	for d := start; d.Compare(end) <= 0; d = d.AddDays(1) {
		days = append(days, d)
	}
	return days
}

// EachDayZoned returns the inclusive sequence of day starts between two
// zoned values, normalized to midnight in start's zone. Empty when start's
// date is after end's date.
func EachDayZoned(start, end ZonedDateTime) []ZonedDateTime {
	first := start.StartOfDay()
	lastDate := end.ToPlainDate()

	var days []ZonedDateTime
	for z := first; z.ToPlainDate().Compare(lastDate) <= 0; z = z.AddDays(1).StartOfDay() {
		days = append(days, z)
	}
	return days
}
