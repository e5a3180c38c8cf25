package recurrence

import (
	"fmt"
	"time"

	"github.com/teambition/rrule-go"

	"calview/internal/temporal"
)

// defaultMaxOccurrences caps a single expansion so a malformed or extremely
// dense rule can never materialize unbounded output. The visible window is
// the primary bound; this is the backstop.
const defaultMaxOccurrences = 5000

var freqMap = map[Frequency]rrule.Frequency{
	Secondly: rrule.SECONDLY,
	Minutely: rrule.MINUTELY,
	Hourly:   rrule.HOURLY,
	Daily:    rrule.DAILY,
	Weekly:   rrule.WEEKLY,
	Monthly:  rrule.MONTHLY,
	Yearly:   rrule.YEARLY,
}

var rruleWeekdays = map[string]rrule.Weekday{
	"MO": rrule.MO, "TU": rrule.TU, "WE": rrule.WE, "TH": rrule.TH,
	"FR": rrule.FR, "SA": rrule.SA, "SU": rrule.SU,
}

// Rule is an expandable recurrence: a Recurrence bound to an anchor
// (DTSTART) and a target display zone. It is immutable and safe for
// concurrent use.
type Rule struct {
	rec      Recurrence
	dtstart  temporal.ZonedDateTime
	timeZone string

	set *rrule.Set

	// Date-granular exceptions cannot be matched by exact timestamp, so
	// they are filtered after generation.
	exDateDays map[temporal.PlainDate]struct{}
}

// Expand binds a recurrence rule to its anchor and target zone. The anchor's
// own zone drives candidate generation (so weekly rules keep their civil
// time across DST); results are reported in timeZone.
//
// Expand assumes a rule that already passed Validate; end-condition
// exclusivity is a boundary concern, not re-checked here.
func Expand(rec Recurrence, dtstart temporal.ZonedDateTime, timeZone string) (*Rule, error) {
	if timeZone == "" {
		return nil, temporal.ErrTimeZoneRequired
	}
	if _, err := time.LoadLocation(timeZone); err != nil {
		return nil, fmt.Errorf("recurrence: load zone %q: %w", timeZone, err)
	}

	r := &Rule{
		rec:        rec,
		dtstart:    dtstart,
		timeZone:   timeZone,
		set:        &rrule.Set{},
		exDateDays: make(map[temporal.PlainDate]struct{}),
	}
	r.set.DTStart(dtstart.Time())

	if rec.Freq != "" {
		opt, err := toROption(rec, dtstart)
		if err != nil {
			return nil, err
		}
		rr, err := rrule.NewRRule(*opt)
		if err != nil {
			return nil, fmt.Errorf("recurrence: build rule: %w", err)
		}
		r.set.RRule(rr)
	} else {
		// Exceptions-only rule: without a generator the anchor slot itself
		// is the series' one occurrence, and the exception dates filter it
		// like any other.
		r.set.RDate(dtstart.Time())
	}

	for _, rd := range rec.RDates {
		t, err := r.anchorTimeOn(rd)
		if err != nil {
			return nil, err
		}
		r.set.RDate(t)
	}

	for _, ex := range rec.ExDates {
		switch v := ex.(type) {
		case temporal.PlainDate:
			r.exDateDays[v] = struct{}{}
		default:
			inst, err := temporal.ToInstant(ex, temporal.Options{TimeZone: dtstart.TimeZone()})
			if err != nil {
				return nil, err
			}
			r.set.ExDate(inst.Time().In(dtstart.Time().Location()))
		}
	}

	return r, nil
}

// toROption translates the structured rule into rrule-go's options.
func toROption(rec Recurrence, dtstart temporal.ZonedDateTime) (*rrule.ROption, error) {
	opt := &rrule.ROption{
		Freq:       freqMap[rec.Freq],
		Dtstart:    dtstart.Time(),
		Bymonth:    rec.ByMonth,
		Bymonthday: rec.ByMonthDay,
		Byyearday:  rec.ByYearDay,
		Byweekno:   rec.ByWeekNo,
		Byhour:     rec.ByHour,
		Byminute:   rec.ByMinute,
		Bysecond:   rec.BySecond,
		Bysetpos:   rec.BySetPos,
	}
	if rec.Interval > 0 {
		opt.Interval = rec.Interval
	}
	if rec.Count > 0 {
		opt.Count = rec.Count
	}
	if rec.Until != nil {
		until, err := untilBound(rec.Until, dtstart)
		if err != nil {
			return nil, err
		}
		opt.Until = until
	}
	if rec.WeekStart > 0 {
		opt.Wkst = rruleWeekdays[WeekdayCodes[rec.WeekStart-1]]
	}
	for _, token := range rec.ByDay {
		ordinal, code, err := splitOrdinalDay(token)
		if err != nil {
			return nil, err
		}
		wd := rruleWeekdays[code]
		if ordinal != 0 {
			wd = wd.Nth(ordinal)
		}
		opt.Byweekday = append(opt.Byweekday, wd)
	}
	return opt, nil
}

// untilBound resolves the inclusive UNTIL end condition against the anchor
// zone. A civil until date includes the whole of that day.
func untilBound(until temporal.Value, dtstart temporal.ZonedDateTime) (time.Time, error) {
	switch v := until.(type) {
	case temporal.PlainDate:
		z, err := temporal.EndOfDayIn(v, dtstart.TimeZone())
		if err != nil {
			return time.Time{}, err
		}
		return z.Time(), nil
	default:
		inst, err := temporal.ToInstant(until, temporal.Options{TimeZone: dtstart.TimeZone()})
		if err != nil {
			return time.Time{}, err
		}
		return inst.Time(), nil
	}
}

// anchorTimeOn places an RDATE value on the timeline. A PlainDate inherits
// the anchor's wall time on that date so occurrence duration stays aligned.
func (r *Rule) anchorTimeOn(v temporal.Value) (time.Time, error) {
	if d, ok := v.(temporal.PlainDate); ok {
		z, err := temporal.NewZonedDateTime(d.Year, d.Month, d.Day,
			r.dtstart.Hour(), r.dtstart.Minute(), r.dtstart.Second(), r.dtstart.TimeZone())
		if err != nil {
			return time.Time{}, err
		}
		return z.Time(), nil
	}
	inst, err := temporal.ToInstant(v, temporal.Options{TimeZone: r.dtstart.TimeZone()})
	if err != nil {
		return time.Time{}, err
	}
	return inst.Time().In(r.dtstart.Time().Location()), nil
}

// OccurrencesBetween returns all occurrences in the inclusive window [a, b],
// expressed in the rule's target zone. Unbounded rules are capped by the
// window (plus the global occurrence backstop); nothing is ever materialized
// eagerly beyond it.
func (r *Rule) OccurrencesBetween(a, b temporal.ZonedDateTime) []temporal.ZonedDateTime {
	loc := r.dtstart.Time().Location()
	starts := r.set.Between(a.Time().In(loc), b.Time().In(loc), true)
	if len(starts) > defaultMaxOccurrences {
		starts = starts[:defaultMaxOccurrences]
	}

	out := make([]temporal.ZonedDateTime, 0, len(starts))
	for _, t := range starts {
		if r.excludedDay(t) {
			continue
		}
		z, err := temporal.ZonedFromTime(t, r.timeZone)
		if err != nil {
			continue
		}
		out = append(out, z)
	}
	return out
}

// NextAfter returns the first occurrence strictly after t, if any.
func (r *Rule) NextAfter(t temporal.ZonedDateTime) (temporal.ZonedDateTime, bool) {
	cur := t.Time().In(r.dtstart.Time().Location())
	for i := 0; i < defaultMaxOccurrences; i++ {
		next := r.set.After(cur, false)
		if next.IsZero() {
			return temporal.ZonedDateTime{}, false
		}
		if !r.excludedDay(next) {
			z, err := temporal.ZonedFromTime(next, r.timeZone)
			if err != nil {
				return temporal.ZonedDateTime{}, false
			}
			return z, true
		}
		cur = next
	}
	return temporal.ZonedDateTime{}, false
}

// excludedDay reports whether the occurrence falls on a date-granular
// exception, compared in the anchor's zone.
func (r *Rule) excludedDay(t time.Time) bool {
	if len(r.exDateDays) == 0 {
		return false
	}
	_, ok := r.exDateDays[temporal.DateOf(t.In(r.dtstart.Time().Location()))]
	return ok
}

// RuleString returns the canonical serialized form of the underlying rule.
func (r *Rule) RuleString() string {
	return RuleString(r.rec)
}

// Recurrence returns a copy of the structured rule.
func (r *Rule) Recurrence() Recurrence {
	return r.rec
}
