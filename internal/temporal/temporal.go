// Package temporal provides the three date/time representations used across
// the calendar core and the conversions between them:
//
//   - PlainDate: a civil calendar date with no time or zone (all-day events)
//   - Instant: an absolute point on the UTC timeline
//   - ZonedDateTime: a civil date+time bound to an IANA time zone
//
// A ZonedDateTime never stores its UTC offset; the offset is always derived
// from (zone, civil time) so values stay correct across DST rule changes.
package temporal

import (
	"errors"
	"fmt"
	"time"
)

// Kind discriminates the temporal union.
type Kind int

const (
	KindPlainDate Kind = iota + 1
	KindInstant
	KindZonedDateTime
)

func (k Kind) String() string {
	switch k {
	case KindPlainDate:
		return "PlainDate"
	case KindInstant:
		return "Instant"
	case KindZonedDateTime:
		return "ZonedDateTime"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Value is the temporal union. Exactly three types implement it:
// PlainDate, Instant and ZonedDateTime.
type Value interface {
	Kind() Kind
}

// ErrTimeZoneRequired is returned where an operation needs an explicit time
// zone and none was given: comparators over heterogeneous inputs, and any
// construction or conversion handed an empty zone name (which
// time.LoadLocation would silently resolve to UTC). This is a programmer
// error and is surfaced loudly instead of guessing a zone.
var ErrTimeZoneRequired = errors.New("temporal: time zone required")

// Options carries the explicit target time zone for conversions and for
// comparisons between values of different kinds or zones.
type Options struct {
	TimeZone string
}

// PlainDate is a civil calendar date in the proleptic Gregorian calendar.
type PlainDate struct {
	Year  int
	Month time.Month
	Day   int
}

// NewPlainDate normalizes its arguments the way time.Date does, so
// out-of-range components roll over into adjacent months.
func NewPlainDate(year int, month time.Month, day int) PlainDate {
	t := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	return PlainDate{Year: t.Year(), Month: t.Month(), Day: t.Day()}
}

// DateOf projects a time.Time onto its civil date in its own location.
func DateOf(t time.Time) PlainDate {
	return PlainDate{Year: t.Year(), Month: t.Month(), Day: t.Day()}
}

func (d PlainDate) Kind() Kind { return KindPlainDate }

func (d PlainDate) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

// AddDays returns the date n days after d (n may be negative).
func (d PlainDate) AddDays(n int) PlainDate {
	return DateOf(d.midnightUTC().AddDate(0, 0, n))
}

// Compare returns -1, 0 or 1.
func (d PlainDate) Compare(o PlainDate) int {
	a, b := d.midnightUTC(), o.midnightUTC()
	switch {
	case a.Before(b):
		return -1
	case a.After(b):
		return 1
	default:
		return 0
	}
}

// DaysUntil returns the signed number of days from d to o.
func (d PlainDate) DaysUntil(o PlainDate) int {
	return int(o.midnightUTC().Sub(d.midnightUTC()) / (24 * time.Hour))
}

// DayOfWeek returns the ISO weekday number: Monday=1 .. Sunday=7.
func (d PlainDate) DayOfWeek() int {
	return isoWeekday(d.midnightUTC().Weekday())
}

// DaysInMonth returns the number of days in d's month.
func (d PlainDate) DaysInMonth() int {
	first := time.Date(d.Year, d.Month, 1, 0, 0, 0, 0, time.UTC)
	return first.AddDate(0, 1, -1).Day()
}

func (d PlainDate) midnightUTC() time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
}

// Instant is an absolute point on the UTC timeline with no calendar
// association.
type Instant struct {
	t time.Time
}

// InstantOf converts a time.Time into an Instant, discarding its location.
func InstantOf(t time.Time) Instant {
	return Instant{t: t.UTC()}
}

func (i Instant) Kind() Kind { return KindInstant }

// Time returns the instant as a time.Time in UTC.
func (i Instant) Time() time.Time { return i.t }

func (i Instant) String() string { return i.t.Format(time.RFC3339Nano) }

// Compare returns -1, 0 or 1.
func (i Instant) Compare(o Instant) int {
	return i.t.Compare(o.t)
}

// ZonedDateTime is a civil date+time bound to an IANA time zone. The wall
// clock fields and the zone are authoritative; the offset is resolved on
// construction and whenever the zone changes.
type ZonedDateTime struct {
	t    time.Time
	zone string
}

// NewZonedDateTime builds a ZonedDateTime from civil components in the given
// IANA zone. Components are normalized like time.Date; nonexistent wall times
// during a DST gap resolve the way the Go runtime resolves them.
func NewZonedDateTime(year int, month time.Month, day, hour, min, sec int, timeZone string) (ZonedDateTime, error) {
	if timeZone == "" {
		return ZonedDateTime{}, ErrTimeZoneRequired
	}
	loc, err := time.LoadLocation(timeZone)
	if err != nil {
		return ZonedDateTime{}, fmt.Errorf("temporal: load zone %q: %w", timeZone, err)
	}
	return ZonedDateTime{
		t:    time.Date(year, month, day, hour, min, sec, 0, loc),
		zone: timeZone,
	}, nil
}

// ZonedFromTime reprojects an absolute time into the given zone.
func ZonedFromTime(t time.Time, timeZone string) (ZonedDateTime, error) {
	if timeZone == "" {
		return ZonedDateTime{}, ErrTimeZoneRequired
	}
	loc, err := time.LoadLocation(timeZone)
	if err != nil {
		return ZonedDateTime{}, fmt.Errorf("temporal: load zone %q: %w", timeZone, err)
	}
	return ZonedDateTime{t: t.In(loc), zone: timeZone}, nil
}

// Now returns the current wall time in the given zone.
func Now(timeZone string) (ZonedDateTime, error) {
	return ZonedFromTime(time.Now(), timeZone)
}

func (z ZonedDateTime) Kind() Kind { return KindZonedDateTime }

// TimeZone returns the IANA zone identifier.
func (z ZonedDateTime) TimeZone() string { return z.zone }

// Time returns the underlying time.Time, located in z's zone.
func (z ZonedDateTime) Time() time.Time { return z.t }

func (z ZonedDateTime) String() string {
	return z.t.Format(time.RFC3339) + "[" + z.zone + "]"
}

func (z ZonedDateTime) Year() int         { return z.t.Year() }
func (z ZonedDateTime) Month() time.Month { return z.t.Month() }
func (z ZonedDateTime) Day() int          { return z.t.Day() }
func (z ZonedDateTime) Hour() int         { return z.t.Hour() }
func (z ZonedDateTime) Minute() int       { return z.t.Minute() }
func (z ZonedDateTime) Second() int       { return z.t.Second() }

// DayOfWeek returns the ISO weekday number: Monday=1 .. Sunday=7.
func (z ZonedDateTime) DayOfWeek() int {
	return isoWeekday(z.t.Weekday())
}

// ToInstant returns the absolute point in time of z.
func (z ZonedDateTime) ToInstant() Instant { return InstantOf(z.t) }

// ToPlainDate projects z onto its civil date in its own zone.
func (z ZonedDateTime) ToPlainDate() PlainDate { return DateOf(z.t) }

// WithTimeZone reprojects the same instant into another zone.
func (z ZonedDateTime) WithTimeZone(timeZone string) (ZonedDateTime, error) {
	return ZonedFromTime(z.t, timeZone)
}

// AddDays advances the civil date by n days, preserving the wall time across
// DST transitions (a 09:00 event stays at 09:00 local).
func (z ZonedDateTime) AddDays(n int) ZonedDateTime {
	return ZonedDateTime{t: z.t.AddDate(0, 0, n), zone: z.zone}
}

// Add advances by an absolute duration.
func (z ZonedDateTime) Add(d time.Duration) ZonedDateTime {
	return ZonedDateTime{t: z.t.Add(d), zone: z.zone}
}

// Sub returns the absolute duration between two zoned values.
func (z ZonedDateTime) Sub(o ZonedDateTime) time.Duration {
	return z.t.Sub(o.t)
}

// ToInstant converts any temporal value into an absolute instant. A
// PlainDate becomes start-of-day in opts.TimeZone; the other kinds do not
// consult the options.
func ToInstant(v Value, opts Options) (Instant, error) {
	switch t := v.(type) {
	case Instant:
		return t, nil
	case ZonedDateTime:
		return t.ToInstant(), nil
	case PlainDate:
		z, err := StartOfDayIn(t, opts.TimeZone)
		if err != nil {
			return Instant{}, err
		}
		return z.ToInstant(), nil
	default:
		return Instant{}, fmt.Errorf("temporal: unknown kind %v", v.Kind())
	}
}

// ToPlainDate projects any temporal value onto a civil date in
// opts.TimeZone. A PlainDate is returned unchanged.
func ToPlainDate(v Value, opts Options) (PlainDate, error) {
	switch t := v.(type) {
	case PlainDate:
		return t, nil
	case ZonedDateTime:
		z, err := t.WithTimeZone(opts.TimeZone)
		if err != nil {
			return PlainDate{}, err
		}
		return z.ToPlainDate(), nil
	case Instant:
		z, err := ZonedFromTime(t.Time(), opts.TimeZone)
		if err != nil {
			return PlainDate{}, err
		}
		return z.ToPlainDate(), nil
	default:
		return PlainDate{}, fmt.Errorf("temporal: unknown kind %v", v.Kind())
	}
}

// ToZonedDateTime attaches or reprojects a time zone. A PlainDate becomes
// start-of-day in the zone.
func ToZonedDateTime(v Value, opts Options) (ZonedDateTime, error) {
	switch t := v.(type) {
	case ZonedDateTime:
		return t.WithTimeZone(opts.TimeZone)
	case Instant:
		return ZonedFromTime(t.Time(), opts.TimeZone)
	case PlainDate:
		return StartOfDayIn(t, opts.TimeZone)
	default:
		return ZonedDateTime{}, fmt.Errorf("temporal: unknown kind %v", v.Kind())
	}
}

func isoWeekday(w time.Weekday) int {
	if w == time.Sunday {
		return 7
	}
	return int(w)
}
