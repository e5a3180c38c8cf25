package recurrence

import (
	"fmt"

	"calview/internal/temporal"
)

// Suggestion is one quick-pick recurrence preset derived from an anchor
// date.
type Suggestion struct {
	ID         string     `json:"id"`
	Label      string     `json:"label"`
	RuleString string     `json:"rrule"`
	Recurrence Recurrence `json:"-"`
}

// SuggestionGroup clusters presets for the picker UI.
type SuggestionGroup struct {
	ID    string       `json:"id"`
	Label string       `json:"label"`
	Items []Suggestion `json:"items"`
}

// Suggest derives the common recurrence presets purely from the anchor date:
// its weekday drives the weekly options, its day-of-month and the ordinal of
// its weekday within the month (ceil(day/7)) drive the monthly options, and
// its month+day drive the yearly option.
func Suggest(anchor temporal.ZonedDateTime) []SuggestionGroup {
	weekdayCode := WeekdayCodes[anchor.DayOfWeek()-1]
	weekdayName := weekdayNames[weekdayCode]
	nthOfMonth := (anchor.Day() + 6) / 7

	mk := func(id, label string, rec Recurrence) Suggestion {
		return Suggestion{ID: id, Label: label, RuleString: RuleString(rec), Recurrence: rec}
	}

	return []SuggestionGroup{
		{
			ID:    "daily",
			Label: "Daily",
			Items: []Suggestion{
				mk("every-day", "Every day",
					Recurrence{Freq: Daily}),
				mk("every-weekday", "Every weekday",
					Recurrence{Freq: Weekly, ByDay: []string{"MO", "TU", "WE", "TH", "FR"}}),
				mk("every-specific-day", "Every "+weekdayName,
					Recurrence{Freq: Weekly, ByDay: []string{weekdayCode}}),
				mk("every-other-specific-day", "Every other "+weekdayName,
					Recurrence{Freq: Weekly, Interval: 2, ByDay: []string{weekdayCode}}),
			},
		},
		{
			ID:    "monthly",
			Label: "Monthly",
			Items: []Suggestion{
				mk("every-month-on-day",
					fmt.Sprintf("Every month on the %s", ordinal(anchor.Day())),
					Recurrence{Freq: Monthly, ByMonthDay: []int{anchor.Day()}}),
				mk("every-month-on-nth-weekday",
					fmt.Sprintf("Every month on the %s %s", ordinal(nthOfMonth), weekdayName),
					Recurrence{Freq: Monthly, ByDay: []string{weekdayCode}, BySetPos: []int{nthOfMonth}}),
			},
		},
		{
			ID:    "yearly",
			Label: "Yearly",
			Items: []Suggestion{
				mk("every-year-on-day",
					fmt.Sprintf("Every year on %s %d", anchor.Month().String(), anchor.Day()),
					Recurrence{Freq: Yearly, ByMonth: []int{int(anchor.Month())}, ByMonthDay: []int{anchor.Day()}}),
			},
		},
	}
}
