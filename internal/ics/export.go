package ics

import (
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	"calview/internal/event"
	"calview/internal/recurrence"
	"calview/internal/temporal"
)

// Export serializes events into an ICS payload. Timed bounds are emitted as
// UTC instants; all-day bounds as VALUE=DATE with the exclusive DTEND the
// format requires.
func Export(events []event.CalendarEvent) (string, error) {
	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId("-//calview//calview//EN")

	now := time.Now().UTC()
	for i := range events {
		if err := exportEvent(cal, &events[i], now); err != nil {
			return "", err
		}
	}
	return cal.Serialize(), nil
}

func exportEvent(cal *ical.Calendar, ev *event.CalendarEvent, stamp time.Time) error {
	ve := cal.AddEvent(ev.ID)
	ve.SetDtStampTime(stamp)

	if ev.Title != "" {
		ve.SetSummary(ev.Title)
	}
	if ev.Description != "" {
		ve.SetDescription(ev.Description)
	}
	if ev.Location != "" {
		ve.SetLocation(ev.Location)
	}
	if ev.Cancelled {
		ve.SetStatus(ical.ObjectStatusCancelled)
	}

	if ev.AllDay {
		sd, ok1 := ev.Start.(temporal.PlainDate)
		ed, ok2 := ev.End.(temporal.PlainDate)
		if ok1 && ok2 {
			ve.SetAllDayStartAt(dateUTC(sd))
			// Inclusive model End becomes the exclusive DTEND.
			ve.SetAllDayEndAt(dateUTC(ed.AddDays(1)))
		}
	} else {
		start, err := temporal.ToInstant(ev.Start, temporal.Options{TimeZone: "UTC"})
		if err != nil {
			return err
		}
		end, err := temporal.ToInstant(ev.End, temporal.Options{TimeZone: "UTC"})
		if err != nil {
			return err
		}
		ve.SetStartAt(start.Time())
		ve.SetEndAt(end.Time())
	}

	if ev.Recurrence != nil {
		rule := strings.TrimPrefix(recurrence.RuleString(*ev.Recurrence), "RRULE:")
		ve.AddRrule(rule)
		for _, ex := range ev.Recurrence.ExDates {
			ve.AddExdate(exdateValue(ex))
		}
	}

	for _, a := range ev.Attendees {
		if a.Email == "" {
			continue
		}
		ve.AddAttendee(a.Email)
	}

	return nil
}

func dateUTC(d temporal.PlainDate) time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
}

func exdateValue(v temporal.Value) string {
	switch t := v.(type) {
	case temporal.PlainDate:
		return dateUTC(t).Format("20060102")
	case temporal.Instant:
		return t.Time().Format("20060102T150405Z")
	case temporal.ZonedDateTime:
		return t.ToInstant().Time().Format("20060102T150405Z")
	default:
		return ""
	}
}
