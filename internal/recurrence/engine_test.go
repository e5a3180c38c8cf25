package recurrence

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"calview/internal/temporal"
)

func mustZoned(t *testing.T, year int, month time.Month, day, hour, min int, zone string) temporal.ZonedDateTime {
	t.Helper()
	z, err := temporal.NewZonedDateTime(year, month, day, hour, min, 0, zone)
	require.NoError(t, err)
	return z
}

func TestExpandDailyCount(t *testing.T) {
	dtstart := mustZoned(t, 2025, time.January, 1, 9, 0, "UTC")
	rule, err := Expand(Recurrence{Freq: Daily, Count: 5}, dtstart, "UTC")
	require.NoError(t, err)

	occ := rule.OccurrencesBetween(
		mustZoned(t, 2025, time.January, 1, 0, 0, "UTC"),
		mustZoned(t, 2025, time.January, 31, 0, 0, "UTC"),
	)
	require.Len(t, occ, 5)
	for i, z := range occ {
		assert.Equal(t, temporal.NewPlainDate(2025, time.January, 1+i), z.ToPlainDate())
		assert.Equal(t, 9, z.Hour())
	}
}

func TestExpandWeeklyPreservesWallTimeAcrossDST(t *testing.T) {
	// Tuesdays at 09:00 New York; US DST begins 2025-03-09.
	dtstart := mustZoned(t, 2025, time.March, 4, 9, 0, "America/New_York")
	rule, err := Expand(Recurrence{Freq: Weekly}, dtstart, "America/New_York")
	require.NoError(t, err)

	occ := rule.OccurrencesBetween(
		mustZoned(t, 2025, time.March, 1, 0, 0, "America/New_York"),
		mustZoned(t, 2025, time.March, 31, 23, 59, "America/New_York"),
	)
	require.Len(t, occ, 4)

	assert.Equal(t, temporal.NewPlainDate(2025, time.March, 11), occ[1].ToPlainDate())
	for _, z := range occ {
		assert.Equal(t, 9, z.Hour(), "civil start time must survive the DST shift")
		assert.Equal(t, 2, z.DayOfWeek())
	}
}

func TestExpandUntilDateIsInclusive(t *testing.T) {
	dtstart := mustZoned(t, 2025, time.January, 1, 9, 0, "UTC")
	rule, err := Expand(Recurrence{
		Freq:  Daily,
		Until: temporal.NewPlainDate(2025, time.January, 5),
	}, dtstart, "UTC")
	require.NoError(t, err)

	occ := rule.OccurrencesBetween(
		mustZoned(t, 2025, time.January, 1, 0, 0, "UTC"),
		mustZoned(t, 2025, time.January, 31, 0, 0, "UTC"),
	)
	require.Len(t, occ, 5)
	assert.Equal(t, temporal.NewPlainDate(2025, time.January, 5), occ[4].ToPlainDate())
}

func TestExpandDateGranularExDates(t *testing.T) {
	dtstart := mustZoned(t, 2025, time.January, 1, 9, 0, "UTC")
	rule, err := Expand(Recurrence{
		Freq:    Daily,
		Count:   5,
		ExDates: []temporal.Value{temporal.NewPlainDate(2025, time.January, 3)},
	}, dtstart, "UTC")
	require.NoError(t, err)

	occ := rule.OccurrencesBetween(
		mustZoned(t, 2025, time.January, 1, 0, 0, "UTC"),
		mustZoned(t, 2025, time.January, 31, 0, 0, "UTC"),
	)
	require.Len(t, occ, 4)
	for _, z := range occ {
		assert.NotEqual(t, temporal.NewPlainDate(2025, time.January, 3), z.ToPlainDate())
	}
}

func TestExpandExceptionsOnlyRuleYieldsAnchorSlot(t *testing.T) {
	dtstart := mustZoned(t, 2025, time.January, 6, 9, 0, "UTC")
	windowStart := mustZoned(t, 2025, time.January, 1, 0, 0, "UTC")
	windowEnd := mustZoned(t, 2025, time.January, 31, 0, 0, "UTC")

	rule, err := Expand(Recurrence{
		ExDates: []temporal.Value{temporal.NewPlainDate(2025, time.January, 7)},
	}, dtstart, "UTC")
	require.NoError(t, err)

	occ := rule.OccurrencesBetween(windowStart, windowEnd)
	require.Len(t, occ, 1)
	assert.Equal(t, temporal.NewPlainDate(2025, time.January, 6), occ[0].ToPlainDate())
	assert.Equal(t, 9, occ[0].Hour())

	// An exception date on the anchor itself removes the only occurrence.
	excluded, err := Expand(Recurrence{
		ExDates: []temporal.Value{temporal.NewPlainDate(2025, time.January, 6)},
	}, dtstart, "UTC")
	require.NoError(t, err)
	assert.Empty(t, excluded.OccurrencesBetween(windowStart, windowEnd))
}

func TestExpandRDateInheritsAnchorWallTime(t *testing.T) {
	dtstart := mustZoned(t, 2025, time.January, 1, 9, 30, "UTC")
	rule, err := Expand(Recurrence{
		Freq:   Daily,
		Count:  2,
		RDates: []temporal.Value{temporal.NewPlainDate(2025, time.January, 10)},
	}, dtstart, "UTC")
	require.NoError(t, err)

	occ := rule.OccurrencesBetween(
		mustZoned(t, 2025, time.January, 1, 0, 0, "UTC"),
		mustZoned(t, 2025, time.January, 31, 0, 0, "UTC"),
	)
	require.Len(t, occ, 3)
	last := occ[len(occ)-1]
	assert.Equal(t, temporal.NewPlainDate(2025, time.January, 10), last.ToPlainDate())
	assert.Equal(t, 9, last.Hour())
	assert.Equal(t, 30, last.Minute())
}

func TestExpandNthWeekdayOfMonth(t *testing.T) {
	// Second Tuesday of each month.
	dtstart := mustZoned(t, 2025, time.January, 14, 9, 0, "UTC")
	rule, err := Expand(Recurrence{
		Freq:  Monthly,
		ByDay: []string{"TU"},
		BySetPos: []int{
			2,
		},
	}, dtstart, "UTC")
	require.NoError(t, err)

	occ := rule.OccurrencesBetween(
		mustZoned(t, 2025, time.January, 1, 0, 0, "UTC"),
		mustZoned(t, 2025, time.March, 31, 0, 0, "UTC"),
	)
	require.Len(t, occ, 3)
	assert.Equal(t, temporal.NewPlainDate(2025, time.January, 14), occ[0].ToPlainDate())
	assert.Equal(t, temporal.NewPlainDate(2025, time.February, 11), occ[1].ToPlainDate())
	assert.Equal(t, temporal.NewPlainDate(2025, time.March, 11), occ[2].ToPlainDate())
}

func TestExpandResultsInTargetZone(t *testing.T) {
	dtstart := mustZoned(t, 2025, time.June, 2, 9, 0, "America/New_York")
	rule, err := Expand(Recurrence{Freq: Daily, Count: 1}, dtstart, "Europe/Berlin")
	require.NoError(t, err)

	occ := rule.OccurrencesBetween(
		mustZoned(t, 2025, time.June, 1, 0, 0, "Europe/Berlin"),
		mustZoned(t, 2025, time.June, 30, 0, 0, "Europe/Berlin"),
	)
	require.Len(t, occ, 1)
	assert.Equal(t, "Europe/Berlin", occ[0].TimeZone())
	assert.Equal(t, 15, occ[0].Hour())
}

func TestNextAfter(t *testing.T) {
	dtstart := mustZoned(t, 2025, time.January, 1, 9, 0, "UTC")
	rule, err := Expand(Recurrence{Freq: Daily, Count: 3}, dtstart, "UTC")
	require.NoError(t, err)

	next, ok := rule.NextAfter(mustZoned(t, 2025, time.January, 1, 9, 0, "UTC"))
	require.True(t, ok)
	assert.Equal(t, temporal.NewPlainDate(2025, time.January, 2), next.ToPlainDate())

	_, ok = rule.NextAfter(mustZoned(t, 2025, time.January, 3, 9, 0, "UTC"))
	assert.False(t, ok, "a COUNT-bounded rule runs out")
}

func TestValidateRejectsCountAndUntil(t *testing.T) {
	err := Validate(Recurrence{
		Freq:  Daily,
		Count: 3,
		Until: temporal.NewPlainDate(2025, time.June, 1),
	})
	assert.ErrorIs(t, err, ErrCountAndUntil)
}

func TestValidateFreqlessRule(t *testing.T) {
	assert.ErrorIs(t, Validate(Recurrence{}), ErrMissingFreq)

	// Exceptions-only rules are a legal construct.
	assert.NoError(t, Validate(Recurrence{
		ExDates: []temporal.Value{temporal.NewPlainDate(2025, time.June, 1)},
	}))
}

func TestValidateRejectsBadByDay(t *testing.T) {
	assert.Error(t, Validate(Recurrence{Freq: Weekly, ByDay: []string{"XX"}}))
	assert.Error(t, Validate(Recurrence{Freq: Monthly, ByDay: []string{"0TU"}}))
	assert.NoError(t, Validate(Recurrence{Freq: Monthly, ByDay: []string{"-1FR", "2TU"}}))
}

func TestRuleStringRoundTrip(t *testing.T) {
	rec := Recurrence{
		Freq:     Weekly,
		Interval: 2,
		ByDay:    []string{"MO", "WE"},
	}
	s := RuleString(rec)
	assert.Equal(t, "RRULE:FREQ=WEEKLY;INTERVAL=2;BYDAY=MO,WE", s)

	parsed, err := ParseRuleString(s, "UTC")
	require.NoError(t, err)
	assert.Equal(t, s, RuleString(parsed))
}

func TestParseRuleStringUntilShapes(t *testing.T) {
	rec, err := ParseRuleString("FREQ=DAILY;UNTIL=20250601", "America/New_York")
	require.NoError(t, err)
	assert.Equal(t, temporal.NewPlainDate(2025, time.June, 1), rec.Until)

	rec, err = ParseRuleString("FREQ=DAILY;UNTIL=20250601T120000Z", "America/New_York")
	require.NoError(t, err)
	assert.Equal(t, temporal.KindInstant, rec.Until.Kind())

	rec, err = ParseRuleString("FREQ=DAILY;UNTIL=20250601T120000", "America/New_York")
	require.NoError(t, err)
	require.Equal(t, temporal.KindZonedDateTime, rec.Until.Kind())
	assert.Equal(t, "America/New_York", rec.Until.(temporal.ZonedDateTime).TimeZone())
}

func TestParseRuleStringRejectsGarbage(t *testing.T) {
	_, err := ParseRuleString("", "UTC")
	assert.Error(t, err)
	_, err = ParseRuleString("FREQ=DAILY;INTERVAL=0", "UTC")
	assert.Error(t, err)
	_, err = ParseRuleString("FREQ=DAILY;COUNT=abc", "UTC")
	assert.Error(t, err)
}

func TestDescribe(t *testing.T) {
	assert.Equal(t, "Every day", Describe(Recurrence{Freq: Daily}))
	assert.Equal(t, "Every other week on Tuesday",
		Describe(Recurrence{Freq: Weekly, Interval: 2, ByDay: []string{"TU"}}))
	assert.Equal(t, "Every week on weekdays",
		Describe(Recurrence{Freq: Weekly, ByDay: []string{"MO", "TU", "WE", "TH", "FR"}}))
	assert.Equal(t, "Every month on the 2nd Tuesday",
		Describe(Recurrence{Freq: Monthly, ByDay: []string{"TU"}, BySetPos: []int{2}}))
	assert.Equal(t, "Every 3 months on the 15th",
		Describe(Recurrence{Freq: Monthly, Interval: 3, ByMonthDay: []int{15}}))
	assert.Equal(t, "Every day until Jun 1, 2025",
		Describe(Recurrence{Freq: Daily, Until: temporal.NewPlainDate(2025, time.June, 1)}))
	assert.Equal(t, "Every day, 10 times",
		Describe(Recurrence{Freq: Daily, Count: 10}))
}

func TestSuggestDerivesFromAnchor(t *testing.T) {
	// 2025-03-11 is the second Tuesday of March.
	anchor := mustZoned(t, 2025, time.March, 11, 9, 0, "America/New_York")
	groups := Suggest(anchor)
	require.Len(t, groups, 3)

	byID := map[string]Suggestion{}
	for _, g := range groups {
		for _, s := range g.Items {
			byID[s.ID] = s
		}
	}

	assert.Equal(t, "Every Tuesday", byID["every-specific-day"].Label)
	assert.Equal(t, "RRULE:FREQ=WEEKLY;BYDAY=TU", byID["every-specific-day"].RuleString)

	assert.Equal(t, "Every month on the 2nd Tuesday", byID["every-month-on-nth-weekday"].Label)
	assert.Contains(t, byID["every-month-on-nth-weekday"].RuleString, "BYSETPOS=2")

	assert.Equal(t, "Every year on March 11", byID["every-year-on-day"].Label)

	// Every suggestion must be expandable as-is.
	for id, s := range byID {
		rec, err := ParseRuleString(s.RuleString, "America/New_York")
		require.NoError(t, err, id)
		_, err = Expand(rec, anchor, "America/New_York")
		require.NoError(t, err, id)
	}
}
