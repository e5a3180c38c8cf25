package layout

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"calview/internal/collection"
	"calview/internal/event"
	"calview/internal/temporal"
)

func mustZoned(t *testing.T, year int, month time.Month, day, hour, min int, zone string) temporal.ZonedDateTime {
	t.Helper()
	z, err := temporal.NewZonedDateTime(year, month, day, hour, min, 0, zone)
	require.NoError(t, err)
	return z
}

func item(t *testing.T, id string, start, end temporal.ZonedDateTime) collection.Item {
	t.Helper()
	return collection.Item{
		Event: event.CalendarEvent{ID: id, Title: id},
		Start: start,
		End:   end,
	}
}

func laneIDs(lane []collection.Item) []string {
	ids := make([]string, len(lane))
	for i, it := range lane {
		ids[i] = it.Event.ID
	}
	return ids
}

func TestPackLanesFirstFit(t *testing.T) {
	a := item(t, "a",
		mustZoned(t, 2025, time.January, 6, 9, 0, "UTC"),
		mustZoned(t, 2025, time.January, 6, 10, 0, "UTC"))
	b := item(t, "b",
		mustZoned(t, 2025, time.January, 6, 9, 30, "UTC"),
		mustZoned(t, 2025, time.January, 6, 11, 0, "UTC"))
	// Starts exactly where a ends; the boundary is free.
	c := item(t, "c",
		mustZoned(t, 2025, time.January, 6, 10, 0, "UTC"),
		mustZoned(t, 2025, time.January, 6, 10, 30, "UTC"))

	res := PackLanes([]collection.Item{a, b, c}, PackOptions{})

	require.Len(t, res.VisibleLanes, 2)
	assert.Equal(t, []string{"a", "c"}, laneIDs(res.VisibleLanes[0]))
	assert.Equal(t, []string{"b"}, laneIDs(res.VisibleLanes[1]))
	assert.Equal(t, 2, res.TotalLanes)
	assert.False(t, res.HasOverflow)
}

func TestPackLanesLongerSpanWinsTies(t *testing.T) {
	short := item(t, "short",
		mustZoned(t, 2025, time.January, 6, 0, 0, "UTC"),
		mustZoned(t, 2025, time.January, 6, 23, 59, "UTC"))
	long := item(t, "long",
		mustZoned(t, 2025, time.January, 6, 0, 0, "UTC"),
		mustZoned(t, 2025, time.January, 8, 23, 59, "UTC"))

	// Input order must not matter for the lane assignment.
	res := PackLanes([]collection.Item{short, long}, PackOptions{})
	assert.Equal(t, []string{"long"}, laneIDs(res.VisibleLanes[0]))
	assert.Equal(t, []string{"short"}, laneIDs(res.VisibleLanes[1]))

	res = PackLanes([]collection.Item{long, short}, PackOptions{})
	assert.Equal(t, []string{"long"}, laneIDs(res.VisibleLanes[0]))
	assert.Equal(t, []string{"short"}, laneIDs(res.VisibleLanes[1]))
}

func TestPackLanesOverflow(t *testing.T) {
	day := func(id string) collection.Item {
		return item(t, id,
			mustZoned(t, 2025, time.January, 6, 0, 0, "UTC"),
			mustZoned(t, 2025, time.January, 7, 23, 59, "UTC"))
	}
	items := []collection.Item{day("a"), day("b"), day("c")}

	res := PackLanes(items, PackOptions{MinVisibleLanes: 2})

	assert.Equal(t, 3, res.TotalLanes)
	require.Len(t, res.VisibleLanes, 2)
	require.Len(t, res.OverflowLanes, 1)
	assert.True(t, res.HasOverflow)
	assert.Equal(t, 1, res.OverflowCount)
	require.Len(t, res.OverflowEvents, 1)
	assert.Equal(t, "c", res.OverflowEvents[0].Event.ID)

	// The overflowed item is active on both of its days.
	assert.Len(t, res.OverflowByDay[temporal.NewPlainDate(2025, time.January, 6)], 1)
	assert.Len(t, res.OverflowByDay[temporal.NewPlainDate(2025, time.January, 7)], 1)
}

func TestPackLanesReservesMinimumCapacity(t *testing.T) {
	res := PackLanes(nil, PackOptions{})
	assert.Equal(t, 2, res.TotalLanes)
	assert.Empty(t, res.VisibleLanes)
	assert.False(t, res.HasOverflow)

	one := item(t, "only",
		mustZoned(t, 2025, time.January, 6, 0, 0, "UTC"),
		mustZoned(t, 2025, time.January, 6, 23, 59, "UTC"))
	res = PackLanes([]collection.Item{one}, PackOptions{MinVisibleLanes: 3})
	assert.Equal(t, 3, res.TotalLanes)
	require.Len(t, res.VisibleLanes, 1)
}

func TestLayoutDayGeometry(t *testing.T) {
	day := temporal.NewPlainDate(2025, time.January, 6)
	opts := DayOptions{StartHour: 0, PixelsPerHour: 60}

	a := item(t, "a",
		mustZoned(t, 2025, time.January, 6, 9, 0, "UTC"),
		mustZoned(t, 2025, time.January, 6, 10, 0, "UTC"))
	b := item(t, "b",
		mustZoned(t, 2025, time.January, 6, 9, 30, "UTC"),
		mustZoned(t, 2025, time.January, 6, 10, 30, "UTC"))
	c := item(t, "c",
		mustZoned(t, 2025, time.January, 6, 11, 0, "UTC"),
		mustZoned(t, 2025, time.January, 6, 12, 0, "UTC"))

	positioned, err := LayoutDay([]collection.Item{c, a, b}, day, opts)
	require.NoError(t, err)
	require.Len(t, positioned, 3)

	byID := map[string]PositionedEvent{}
	for _, pe := range positioned {
		byID[pe.Item.Event.ID] = pe
	}

	assert.InDelta(t, 540, byID["a"].Top, 1e-9)
	assert.InDelta(t, 60, byID["a"].Height, 1e-9)
	assert.InDelta(t, 0, byID["a"].Left, 1e-9)
	assert.InDelta(t, 0.5, byID["a"].Width, 1e-9)

	assert.InDelta(t, 570, byID["b"].Top, 1e-9)
	assert.InDelta(t, 0.5, byID["b"].Left, 1e-9)
	assert.InDelta(t, 0.5, byID["b"].Width, 1e-9)

	// c does not overlap the a/b run and gets the full width back.
	assert.InDelta(t, 660, byID["c"].Top, 1e-9)
	assert.InDelta(t, 0, byID["c"].Left, 1e-9)
	assert.InDelta(t, 1.0, byID["c"].Width, 1e-9)

	// Later starts stack above earlier ones.
	assert.Greater(t, byID["b"].ZIndex, byID["a"].ZIndex)
	assert.Greater(t, byID["c"].ZIndex, byID["b"].ZIndex)
}

func TestLayoutDayClampsToDayBounds(t *testing.T) {
	day := temporal.NewPlainDate(2025, time.January, 6)
	opts := DayOptions{StartHour: 0, PixelsPerHour: 10}

	overnight := item(t, "overnight",
		mustZoned(t, 2025, time.January, 5, 22, 0, "UTC"),
		mustZoned(t, 2025, time.January, 6, 2, 0, "UTC"))
	yesterday := item(t, "yesterday",
		mustZoned(t, 2025, time.January, 5, 9, 0, "UTC"),
		mustZoned(t, 2025, time.January, 5, 10, 0, "UTC"))

	positioned, err := LayoutDay([]collection.Item{overnight, yesterday}, day, opts)
	require.NoError(t, err)
	require.Len(t, positioned, 1, "events emptied by the clamp are dropped")

	pe := positioned[0]
	assert.Equal(t, "overnight", pe.Item.Event.ID)
	assert.InDelta(t, 0, pe.Top, 1e-9)
	assert.InDelta(t, 20, pe.Height, 1e-9)
}

func TestLayoutDayStartHourOffset(t *testing.T) {
	day := temporal.NewPlainDate(2025, time.January, 6)
	opts := DayOptions{StartHour: 8, PixelsPerHour: 60}

	a := item(t, "a",
		mustZoned(t, 2025, time.January, 6, 9, 0, "UTC"),
		mustZoned(t, 2025, time.January, 6, 10, 0, "UTC"))

	positioned, err := LayoutDay([]collection.Item{a}, day, opts)
	require.NoError(t, err)
	require.Len(t, positioned, 1)
	assert.InDelta(t, 60, positioned[0].Top, 1e-9)
}

func TestLayoutWeek(t *testing.T) {
	ev := event.CalendarEvent{
		ID:    "standup",
		Title: "standup",
		Start: mustZoned(t, 2025, time.January, 7, 9, 0, "UTC"),
		End:   mustZoned(t, 2025, time.January, 7, 9, 30, "UTC"),
	}

	col, err := collection.Build([]event.CalendarEvent{ev}, collection.VisibleRange{
		Start: temporal.NewPlainDate(2025, time.January, 6),
		End:   temporal.NewPlainDate(2025, time.January, 12),
	}, collection.GranularityWeek, collection.Options{TimeZone: "UTC", WeekStartsOn: 1})
	require.NoError(t, err)

	positioned, err := LayoutWeek(col, DayOptions{StartHour: 0, PixelsPerHour: 48})
	require.NoError(t, err)
	require.Len(t, positioned, 7)
	assert.Empty(t, positioned[0])
	require.Len(t, positioned[1], 1)
	assert.InDelta(t, 9*48, positioned[1][0].Top, 1e-9)
	assert.InDelta(t, 24, positioned[1][0].Height, 1e-9)
}
