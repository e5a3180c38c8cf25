package temporal

// Comparators over the temporal union. Two values of the same kind (and, for
// ZonedDateTime, the same zone) compare directly; mixing kinds or zones
// requires an explicit target zone via Options, otherwise the comparison
// fails with ErrTimeZoneRequired.

// Dated restricts weekday queries to the kinds that carry a civil date.
type Dated interface {
	DayOfWeek() int
}

// IsWeekend reports whether the value falls on Saturday or Sunday.
func IsWeekend(d Dated) bool {
	return d.DayOfWeek() > 5
}

// IsBefore reports whether a is strictly before b on the timeline.
func IsBefore(a, b Value, opts *Options) (bool, error) {
	c, err := compareInstants(a, b, opts)
	if err != nil {
		return false, err
	}
	return c < 0, nil
}

// IsAfter reports whether a is strictly after b on the timeline.
func IsAfter(a, b Value, opts *Options) (bool, error) {
	c, err := compareInstants(a, b, opts)
	if err != nil {
		return false, err
	}
	return c > 0, nil
}

func compareInstants(a, b Value, opts *Options) (int, error) {
	if pa, ok := a.(PlainDate); ok {
		if pb, ok := b.(PlainDate); ok {
			return pa.Compare(pb), nil
		}
	}
	if ia, ok := a.(Instant); ok {
		if ib, ok := b.(Instant); ok {
			return ia.Compare(ib), nil
		}
	}
	if za, ok := a.(ZonedDateTime); ok {
		if zb, ok := b.(ZonedDateTime); ok && za.zone == zb.zone {
			return za.ToInstant().Compare(zb.ToInstant()), nil
		}
	}

	if opts == nil || opts.TimeZone == "" {
		return 0, ErrTimeZoneRequired
	}
	ia, err := ToInstant(a, *opts)
	if err != nil {
		return 0, err
	}
	ib, err := ToInstant(b, *opts)
	if err != nil {
		return 0, err
	}
	return ia.Compare(ib), nil
}

// IsSameDay reports whether a and b fall on the same civil date.
func IsSameDay(a, b Value, opts *Options) (bool, error) {
	da, db, err := projectPair(a, b, opts)
	if err != nil {
		return false, err
	}
	return da.Compare(db) == 0, nil
}

// IsSameMonth reports whether a and b fall in the same civil month.
func IsSameMonth(a, b Value, opts *Options) (bool, error) {
	da, db, err := projectPair(a, b, opts)
	if err != nil {
		return false, err
	}
	return da.Year == db.Year && da.Month == db.Month, nil
}

// IsSameYear reports whether a and b fall in the same civil year.
func IsSameYear(a, b Value, opts *Options) (bool, error) {
	da, db, err := projectPair(a, b, opts)
	if err != nil {
		return false, err
	}
	return da.Year == db.Year, nil
}

// WeekOptions parameterizes week comparisons. WeekStartsOn uses ISO weekday
// numbering (Monday=1 .. Sunday=7). TimeZone is only consulted for
// heterogeneous inputs.
type WeekOptions struct {
	WeekStartsOn int
	TimeZone     string
}

// IsSameWeek reports whether a and b fall in the same week given the
// configured week start.
func IsSameWeek(a, b Value, opts WeekOptions) (bool, error) {
	var cmpOpts *Options
	if opts.TimeZone != "" {
		cmpOpts = &Options{TimeZone: opts.TimeZone}
	}
	da, db, err := projectPair(a, b, cmpOpts)
	if err != nil {
		return false, err
	}
	return da.StartOfWeek(opts.WeekStartsOn) == db.StartOfWeek(opts.WeekStartsOn), nil
}

// IsToday reports whether the value falls on today's date in the given zone.
func IsToday(v Value, timeZone string) (bool, error) {
	now, err := Now(timeZone)
	if err != nil {
		return false, err
	}
	d, err := ToPlainDate(v, Options{TimeZone: timeZone})
	if err != nil {
		return false, err
	}
	return now.ToPlainDate() == d, nil
}

// Interval is an inclusive [Start, End] pair of temporal values.
type Interval struct {
	Start Value
	End   Value
}

// IsWithinInterval reports whether v lies within the inclusive interval,
// compared on the timeline.
func IsWithinInterval(v Value, iv Interval, opts *Options) (bool, error) {
	beforeStart, err := IsBefore(v, iv.Start, opts)
	if err != nil {
		return false, err
	}
	afterEnd, err := IsAfter(v, iv.End, opts)
	if err != nil {
		return false, err
	}
	return !beforeStart && !afterEnd, nil
}

// projectPair projects both values onto civil dates. Same-kind-same-zone
// pairs project without needing options; anything else requires an explicit
// zone.
func projectPair(a, b Value, opts *Options) (PlainDate, PlainDate, error) {
	if pa, ok := a.(PlainDate); ok {
		if pb, ok := b.(PlainDate); ok {
			return pa, pb, nil
		}
	}
	if za, ok := a.(ZonedDateTime); ok {
		if zb, ok := b.(ZonedDateTime); ok && za.zone == zb.zone {
			return za.ToPlainDate(), zb.ToPlainDate(), nil
		}
	}

	if opts == nil || opts.TimeZone == "" {
		return PlainDate{}, PlainDate{}, ErrTimeZoneRequired
	}
	da, err := ToPlainDate(a, *opts)
	if err != nil {
		return PlainDate{}, PlainDate{}, err
	}
	db, err := ToPlainDate(b, *opts)
	if err != nil {
		return PlainDate{}, PlainDate{}, err
	}
	return da, db, nil
}
