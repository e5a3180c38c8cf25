// Package collection builds the view-scoped occurrence index: recurring
// masters are expanded against the visible window, stored exceptions replace
// or cancel their naive occurrences, and every resulting item is bucketed
// into each visible day it overlaps.
//
// A Collection is a pure function of its inputs. It is recomputed whole on
// every input change and holds no mutable state of its own.
package collection

import (
	"fmt"
	"sort"

	"calview/internal/event"
	"calview/internal/recurrence"
	"calview/internal/temporal"
)

// Granularity selects the view shape a collection is built for.
type Granularity string

const (
	GranularityDay   Granularity = "day"
	GranularityWeek  Granularity = "week"
	GranularityMonth Granularity = "month"
)

// VisibleRange is the inclusive civil-date window of a view.
type VisibleRange struct {
	Start temporal.PlainDate
	End   temporal.PlainDate
}

// RangeFor derives the visible window for a granularity anchored at date.
// Month views expand to whole weeks so leading/trailing grid cells are
// covered.
func RangeFor(date temporal.PlainDate, granularity Granularity, weekStartsOn int) VisibleRange {
	switch granularity {
	case GranularityWeek:
		return VisibleRange{
			Start: date.StartOfWeek(weekStartsOn),
			End:   date.EndOfWeek(weekStartsOn),
		}
	case GranularityMonth:
		return VisibleRange{
			Start: date.StartOfMonth().StartOfWeek(weekStartsOn),
			End:   date.EndOfMonth().EndOfWeek(weekStartsOn),
		}
	default:
		return VisibleRange{Start: date, End: date}
	}
}

// Options configures a build.
type Options struct {
	// TimeZone is the view's display zone; every item is reprojected into
	// it before bucketing and layout.
	TimeZone string
	// WeekStartsOn uses ISO numbering (Monday=1 .. Sunday=7).
	WeekStartsOn int
}

// Item is one concrete occurrence resolved into the view zone. Synthetic
// occurrences of a recurring master carry the master's id in
// Event.RecurringEventID and preserve the master's duration.
type Item struct {
	Event event.CalendarEvent
	Start temporal.ZonedDateTime
	End   temporal.ZonedDateTime
	// AllDay marks items for the all-day/spanning lane row: explicit
	// all-day events plus timed events spanning multiple days.
	AllDay bool
}

// SpanDays returns the inclusive number of civil days the item covers.
func (it Item) SpanDays() int {
	return it.Start.ToPlainDate().DaysUntil(it.End.ToPlainDate()) + 1
}

// DayBucket holds the items overlapping one visible day.
type DayBucket struct {
	Day temporal.PlainDate
	// AllDay items overlap this day and belong to the lane row, ordered
	// by start ascending then span descending.
	AllDay []Item
	// Timed items are single-day timed occurrences, ordered by start
	// ascending then duration descending (feeds layout packing).
	Timed []Item
}

// Collection is the derived per-view index.
type Collection struct {
	Granularity Granularity
	Range       VisibleRange
	TimeZone    string
	Days        []DayBucket
	// AllDayEvents is the distinct set of lane-row items across the whole
	// range, in packing order.
	AllDayEvents []Item
}

// Build expands and buckets events for the visible range. Input events are
// assumed validated (see event.Validate); Build fails only on zone
// resolution or rule construction errors.
func Build(events []event.CalendarEvent, visible VisibleRange, granularity Granularity, opts Options) (*Collection, error) {
	col := &Collection{
		Granularity: granularity,
		Range:       visible,
		TimeZone:    opts.TimeZone,
	}

	days := temporal.EachDay(visible.Start, visible.End)
	if len(days) == 0 {
		return col, nil
	}

	rangeStart, err := temporal.StartOfDayIn(visible.Start, opts.TimeZone)
	if err != nil {
		return nil, err
	}
	rangeEnd, err := temporal.EndOfDayIn(visible.End, opts.TimeZone)
	if err != nil {
		return nil, err
	}

	var masters, rest []event.CalendarEvent
	exceptions := make(map[string]event.CalendarEvent)
	for _, ev := range events {
		switch {
		case ev.IsRecurringMaster():
			masters = append(masters, ev)
		case ev.IsException():
			day, derr := exceptionDay(ev, opts.TimeZone)
			if derr != nil {
				return nil, derr
			}
			exceptions[occurrenceKey(ev.RecurringEventID, day)] = ev
			rest = append(rest, ev)
		default:
			rest = append(rest, ev)
		}
	}

	items := make([]Item, 0, len(events))
	seen := make(map[string]struct{})

	for _, ev := range rest {
		if ev.Cancelled {
			continue
		}
		it, ok, rerr := resolveItem(ev, rangeStart, rangeEnd, opts.TimeZone)
		if rerr != nil {
			return nil, rerr
		}
		if !ok {
			continue
		}
		key := itemKey(it)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		items = append(items, it)
	}

	for _, master := range masters {
		occ, oerr := expandMaster(master, exceptions, rangeStart, rangeEnd, opts.TimeZone)
		if oerr != nil {
			return nil, oerr
		}
		for _, it := range occ {
			key := itemKey(it)
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			items = append(items, it)
		}
	}

	bucketByDay := make(map[temporal.PlainDate]*DayBucket, len(days))
	col.Days = make([]DayBucket, len(days))
	for i, d := range days {
		col.Days[i] = DayBucket{Day: d}
		bucketByDay[d] = &col.Days[i]
	}

	for _, it := range items {
		firstDay := it.Start.ToPlainDate()
		lastDay := it.End.ToPlainDate()
		if firstDay.Compare(visible.Start) < 0 {
			firstDay = visible.Start
		}
		if lastDay.Compare(visible.End) > 0 {
			lastDay = visible.End
		}
		for _, d := range temporal.EachDay(firstDay, lastDay) {
			b := bucketByDay[d]
			if it.AllDay {
				b.AllDay = append(b.AllDay, it)
			} else {
				b.Timed = append(b.Timed, it)
			}
		}
		if it.AllDay {
			col.AllDayEvents = append(col.AllDayEvents, it)
		}
	}

	for i := range col.Days {
		sortItems(col.Days[i].AllDay)
		sortItems(col.Days[i].Timed)
	}
	sortItems(col.AllDayEvents)

	return col, nil
}

// resolveItem reprojects a non-recurring event into the view zone and
// reports whether it overlaps the window. The window is inclusive on both
// ends so an event touching a boundary day is kept.
func resolveItem(ev event.CalendarEvent, rangeStart, rangeEnd temporal.ZonedDateTime, timeZone string) (Item, bool, error) {
	start, end, err := ev.Duration(timeZone)
	if err != nil {
		return Item{}, false, err
	}
	if end.Time().Before(rangeStart.Time()) || start.Time().After(rangeEnd.Time()) {
		return Item{}, false, nil
	}
	multi := start.ToPlainDate() != end.ToPlainDate()
	return Item{
		Event:  ev,
		Start:  start,
		End:    end,
		AllDay: ev.AllDay || multi,
	}, true, nil
}

// expandMaster materializes a recurring master's occurrences that overlap
// the window. The expansion window is widened backwards by the master's own
// duration so occurrences starting before the range but reaching into it
// are not missed.
func expandMaster(master event.CalendarEvent, exceptions map[string]event.CalendarEvent, rangeStart, rangeEnd temporal.ZonedDateTime, timeZone string) ([]Item, error) {
	start, end, err := master.Duration(timeZone)
	if err != nil {
		return nil, err
	}
	duration := end.Sub(start)

	dtstart := start
	if z, ok := master.Start.(temporal.ZonedDateTime); ok {
		dtstart = z
	}

	rule, err := recurrence.Expand(*master.Recurrence, dtstart, timeZone)
	if err != nil {
		return nil, fmt.Errorf("expand master %s: %w", master.ID, err)
	}

	windowStart := rangeStart.Add(-duration)
	occurrences := rule.OccurrencesBetween(windowStart, rangeEnd)

	items := make([]Item, 0, len(occurrences))
	for _, occStart := range occurrences {
		occEnd := occStart.Add(duration)
		if occEnd.Time().Before(rangeStart.Time()) || occStart.Time().After(rangeEnd.Time()) {
			continue
		}

		// A stored exception owns this occurrence; the naive expansion
		// must neither duplicate nor resurrect it.
		if _, overridden := exceptions[occurrenceKey(master.ID, occStart.ToPlainDate())]; overridden {
			continue
		}

		items = append(items, synthesize(master, occStart, occEnd))
	}
	return items, nil
}

// synthesize builds the occurrence item, preserving the master's all-day
// shape and duration.
func synthesize(master event.CalendarEvent, occStart, occEnd temporal.ZonedDateTime) Item {
	ev := master
	ev.Recurrence = nil
	ev.RecurringEventID = master.ID
	ev.ID = fmt.Sprintf("%s_%s", master.ID, occStart.ToPlainDate())

	if master.AllDay {
		// Span in civil days, taken from the master's own dates so DST
		// never stretches or shrinks an all-day occurrence.
		spanDays := 0
		if sd, ok := master.Start.(temporal.PlainDate); ok {
			if ed, ok := master.End.(temporal.PlainDate); ok {
				spanDays = sd.DaysUntil(ed)
			}
		}
		startDate := occStart.ToPlainDate()
		ev.Start = startDate
		ev.End = startDate.AddDays(spanDays)
		occStart = occStart.StartOfDay()
		occEnd = occStart.AddDays(spanDays).EndOfDay()
	} else {
		ev.Start = occStart
		ev.End = occEnd
	}

	multi := occStart.ToPlainDate() != occEnd.ToPlainDate()
	return Item{
		Event:  ev,
		Start:  occStart,
		End:    occEnd,
		AllDay: master.AllDay || multi,
	}
}

// occurrenceKey is the de-duplication key for one occurrence of a series.
func occurrenceKey(recurringEventID string, day temporal.PlainDate) string {
	return recurringEventID + "|" + day.String()
}

// exceptionDay is the civil date of the series slot an exception occupies:
// the recorded original start when present, the exception's own start
// otherwise. Keying on the original slot keeps a rescheduled occurrence
// bound to the slot it replaces, so the naive occurrence there stays
// suppressed while the occurrence native to the new day survives.
func exceptionDay(ev event.CalendarEvent, timeZone string) (temporal.PlainDate, error) {
	if ev.OriginalStart != nil {
		return temporal.ToPlainDate(ev.OriginalStart, temporal.Options{TimeZone: timeZone})
	}
	start, _, err := ev.Duration(timeZone)
	if err != nil {
		return temporal.PlainDate{}, err
	}
	return start.ToPlainDate(), nil
}

// itemKey identifies an item across the naive-expansion / stored-exception
// overlap: series occurrences collapse on (series id, original slot date),
// everything else on its own id.
func itemKey(it Item) string {
	if rid := it.Event.RecurringEventID; rid != "" {
		day := it.Start.ToPlainDate()
		if it.Event.OriginalStart != nil {
			if d, err := temporal.ToPlainDate(it.Event.OriginalStart, temporal.Options{TimeZone: it.Start.TimeZone()}); err == nil {
				day = d
			}
		}
		return occurrenceKey(rid, day)
	}
	return it.Event.ID
}

// sortItems orders by start ascending, longer spans first on ties, stable
// beyond that.
func sortItems(items []Item) {
	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i], items[j]
		if c := a.Start.ToInstant().Compare(b.Start.ToInstant()); c != 0 {
			return c < 0
		}
		return a.End.Sub(a.Start) > b.End.Sub(b.Start)
	})
}
