package layout

import (
	"sort"

	"calview/internal/collection"
	"calview/internal/temporal"
)

// DayOptions configures the timed-grid geometry for one day column.
type DayOptions struct {
	// StartHour is the first hour rendered by the grid (0 = midnight).
	StartHour int
	// PixelsPerHour scales the vertical axis.
	PixelsPerHour float64
}

// PositionedEvent is one timed occurrence with its pixel geometry. Top and
// Height are pixels; Left and Width are normalized [0, 1] fractions of the
// day column.
type PositionedEvent struct {
	Item   collection.Item
	Top    float64
	Height float64
	Left   float64
	Width  float64
	ZIndex int
}

// LayoutDay positions the timed items of one day column. Event times are
// taken in the view zone the items were resolved into, so a DST-shifted day
// compresses or expands the grid correctly. Events spilling past midnight
// are clamped to the day's bounds; their remainder belongs to the next
// day's column.
//
// Horizontal overlaps resolve into side-by-side columns: within a run of
// transitively overlapping events, each event takes the lowest column not
// occupied by a still-active overlapping event, and every event in the run
// shares width 1/columns. ZIndex increases with start order so later events
// layer above earlier ones.
func LayoutDay(items []collection.Item, day temporal.PlainDate, opts DayOptions) ([]PositionedEvent, error) {
	if len(items) == 0 {
		return nil, nil
	}

	timeZone := items[0].Start.TimeZone()
	dayStart, err := temporal.StartOfDayIn(day, timeZone)
	if err != nil {
		return nil, err
	}
	dayEnd, err := temporal.EndOfDayIn(day, timeZone)
	if err != nil {
		return nil, err
	}

	type clamped struct {
		item       collection.Item
		start, end temporal.ZonedDateTime
	}

	events := make([]clamped, 0, len(items))
	for _, it := range items {
		c := clamped{item: it, start: it.Start, end: it.End}
		if c.start.Time().Before(dayStart.Time()) {
			c.start = dayStart
		}
		if c.end.Time().After(dayEnd.Time()) {
			c.end = dayEnd
		}
		if !c.end.Time().After(c.start.Time()) {
			continue
		}
		events = append(events, c)
	}
	if len(events) == 0 {
		return nil, nil
	}

	sort.SliceStable(events, func(i, j int) bool {
		a, b := events[i], events[j]
		if c := a.start.ToInstant().Compare(b.start.ToInstant()); c != 0 {
			return c < 0
		}
		return a.end.Sub(a.start) > b.end.Sub(b.start)
	})

	positioned := make([]PositionedEvent, len(events))
	for i, ev := range events {
		startHours := hoursSince(dayStart, ev.start)
		endHours := hoursSince(dayStart, ev.end)
		positioned[i] = PositionedEvent{
			Item:   ev.item,
			Top:    (startHours - float64(opts.StartHour)) * opts.PixelsPerHour,
			Height: (endHours - startHours) * opts.PixelsPerHour,
			ZIndex: 10 + i,
		}
	}

	// Resolve horizontal overlap per run of transitively overlapping
	// events. Runs are delimited wherever an event starts at or after
	// everything before it has ended.
	runStart := 0
	runEnd := events[0].end
	colEnds := []temporal.ZonedDateTime{}
	cols := make([]int, len(events))

	flush := func(from, to int) {
		width := 1.0 / float64(len(colEnds))
		for i := from; i < to; i++ {
			positioned[i].Width = width
			positioned[i].Left = float64(cols[i]) * width
		}
	}

	for i, ev := range events {
		if i > 0 && !ev.start.Time().Before(runEnd.Time()) {
			flush(runStart, i)
			runStart = i
			colEnds = colEnds[:0]
		}
		if ev.end.Time().After(runEnd.Time()) || i == runStart {
			runEnd = ev.end
		}

		assigned := -1
		for c, colEnd := range colEnds {
			if !ev.start.Time().Before(colEnd.Time()) {
				assigned = c
				break
			}
		}
		if assigned == -1 {
			colEnds = append(colEnds, ev.end)
			assigned = len(colEnds) - 1
		} else {
			colEnds[assigned] = ev.end
		}
		cols[i] = assigned
	}
	flush(runStart, len(events))

	return positioned, nil
}

// LayoutWeek positions each day column of a built collection, in day order.
func LayoutWeek(col *collection.Collection, opts DayOptions) ([][]PositionedEvent, error) {
	out := make([][]PositionedEvent, len(col.Days))
	for i, bucket := range col.Days {
		positioned, err := LayoutDay(bucket.Timed, bucket.Day, opts)
		if err != nil {
			return nil, err
		}
		out[i] = positioned
	}
	return out, nil
}

// hoursSince measures elapsed wall-grid hours from the start of day. Using
// absolute elapsed time keeps geometry linear on DST days, where the grid
// itself is shorter or longer.
func hoursSince(dayStart, t temporal.ZonedDateTime) float64 {
	return t.Sub(dayStart).Hours()
}
