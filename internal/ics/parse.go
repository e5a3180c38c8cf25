// Package ics subscribes to ICS feeds: fetching with HTTP caching, parsing
// VEVENTs into the event model, and exporting events back out.
package ics

import (
	"bytes"
	"errors"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	"calview/internal/event"
	appLog "calview/internal/log"
	"calview/internal/recurrence"
	"calview/internal/temporal"
)

// Source is a single ICS subscription feed.
type Source struct {
	// ID is an internal identifier (config source ID).
	ID string
	// URL is the ICS endpoint.
	URL string
	// CalendarID maps parsed events onto a calendar.
	CalendarID string
}

// Parse parses an ICS payload into calendar events. Timed events resolve
// into their own TZID zone when it is a valid IANA name, falling back to
// defaultZone otherwise. VEVENTs that fail to parse are logged and skipped
// so one bad entry does not sink the whole feed.
func Parse(src Source, body []byte, defaultZone string) ([]event.CalendarEvent, error) {
	if len(body) == 0 {
		return nil, errors.New("empty ICS body")
	}

	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	events := make([]event.CalendarEvent, 0)
	for _, ve := range cal.Events() {
		ev, perr := parseVEvent(src, ve, defaultZone)
		if perr != nil {
			appLog.Warn("ics vevent skipped", "id", src.ID, "err", perr)
			continue
		}
		events = append(events, ev)
	}

	appLog.Debug("ics parse completed", "id", src.ID, "event_count", len(events))
	return events, nil
}

func parseVEvent(src Source, ve *ical.VEvent, defaultZone string) (event.CalendarEvent, error) {
	var ev event.CalendarEvent
	ev.CalendarID = src.CalendarID
	ev.ProviderID = src.ID

	uid := ve.GetProperty(ical.ComponentPropertyUniqueId)
	if uid == nil || uid.Value == "" {
		return ev, errors.New("missing UID")
	}
	ev.ID = uid.Value

	if p := ve.GetProperty(ical.ComponentPropertySummary); p != nil {
		ev.Title = p.Value
	}
	if p := ve.GetProperty(ical.ComponentPropertyDescription); p != nil {
		ev.Description = p.Value
	}
	if p := ve.GetProperty(ical.ComponentPropertyLocation); p != nil {
		ev.Location = p.Value
	}
	if p := ve.GetProperty(ical.ComponentPropertyStatus); p != nil {
		ev.Cancelled = strings.EqualFold(p.Value, "CANCELLED")
	}

	dtstart := ve.GetProperty(ical.ComponentPropertyDtStart)
	allDay, zone := startShape(dtstart, defaultZone)
	ev.AllDay = allDay

	var start, end time.Time
	var err, endErr error
	if allDay {
		start, err = ve.GetAllDayStartAt()
		end, endErr = ve.GetAllDayEndAt()
	} else {
		start, err = ve.GetStartAt()
		end, endErr = ve.GetEndAt()
	}
	if err != nil {
		return ev, err
	}

	if allDay {
		sd := temporal.DateOf(start)
		ed := sd
		if endErr == nil {
			// DTEND is exclusive for all-day events; the model's End is
			// the last covered day.
			ed = temporal.DateOf(end).AddDays(-1)
		}
		if ed.Compare(sd) < 0 {
			ed = sd
		}
		ev.Start = sd
		ev.End = ed
	} else {
		zs, zerr := temporal.ZonedFromTime(start, zone)
		if zerr != nil {
			return ev, zerr
		}
		if endErr != nil {
			end = start.Add(time.Hour)
		}
		ze, zerr := temporal.ZonedFromTime(end, zone)
		if zerr != nil {
			return ev, zerr
		}
		if !ze.Time().After(zs.Time()) {
			ze = zs.Add(time.Hour)
		}
		ev.Start = zs
		ev.End = ze
	}

	if p := ve.GetProperty(ical.ComponentPropertyRrule); p != nil && p.Value != "" {
		rec, rerr := recurrence.ParseRuleString(p.Value, zone)
		if rerr != nil {
			return ev, rerr
		}
		rec.ExDates = parseExDates(ve, zone)
		ev.Recurrence = &rec
	}

	// A RECURRENCE-ID marks this VEVENT as an override of one occurrence
	// of the series sharing its UID.
	if p := ve.GetProperty("RECURRENCE-ID"); p != nil && p.Value != "" {
		rid, rerr := parseTemporalValue(p.Value, zone)
		if rerr != nil {
			return ev, rerr
		}
		ev.RecurringEventID = ev.ID
		ev.OriginalStart = rid
		ev.ID = ev.ID + "_" + ridSuffix(rid, zone)
	}

	ev.Attendees = parseAttendees(ve)

	if verr := ev.Validate(); verr != nil {
		return ev, verr
	}
	return ev, nil
}

// startShape inspects DTSTART parameters: VALUE=DATE (or a value without a
// time part) means all-day, and a TZID naming a loadable zone overrides the
// feed default.
func startShape(dtstart *ical.IANAProperty, defaultZone string) (allDay bool, zone string) {
	zone = defaultZone
	if dtstart == nil {
		return false, zone
	}

	if params := dtstart.ICalParameters; params != nil {
		if vs, ok := params["VALUE"]; ok && len(vs) > 0 && strings.EqualFold(vs[0], "DATE") {
			allDay = true
		}
		if tzs, ok := params["TZID"]; ok && len(tzs) > 0 {
			if _, err := time.LoadLocation(tzs[0]); err == nil {
				zone = tzs[0]
			}
		}
	}
	if !strings.Contains(dtstart.Value, "T") {
		allDay = true
	}
	if strings.HasSuffix(dtstart.Value, "Z") {
		zone = "UTC"
	}
	return allDay, zone
}

func parseExDates(ve *ical.VEvent, zone string) []temporal.Value {
	var out []temporal.Value
	for _, p := range ve.GetProperties(ical.ComponentPropertyExdate) {
		for _, part := range strings.Split(p.Value, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			v, err := parseTemporalValue(part, zone)
			if err != nil {
				continue
			}
			out = append(out, v)
		}
	}
	return out
}

func parseAttendees(ve *ical.VEvent) []event.Attendee {
	var out []event.Attendee

	organizer := ""
	if p := ve.GetProperty(ical.ComponentPropertyOrganizer); p != nil {
		organizer = mailAddress(p.Value)
	}

	for _, p := range ve.GetProperties(ical.ComponentPropertyAttendee) {
		a := event.Attendee{
			Email:  mailAddress(p.Value),
			Status: event.StatusUnknown,
			Type:   event.TypeRequired,
		}
		if params := p.ICalParameters; params != nil {
			if vs, ok := params["CN"]; ok && len(vs) > 0 {
				a.Name = vs[0]
			}
			if vs, ok := params["PARTSTAT"]; ok && len(vs) > 0 {
				switch strings.ToUpper(vs[0]) {
				case "ACCEPTED":
					a.Status = event.StatusAccepted
				case "TENTATIVE":
					a.Status = event.StatusTentative
				case "DECLINED":
					a.Status = event.StatusDeclined
				}
			}
			if vs, ok := params["ROLE"]; ok && len(vs) > 0 && strings.EqualFold(vs[0], "OPT-PARTICIPANT") {
				a.Type = event.TypeOptional
			}
			if vs, ok := params["CUTYPE"]; ok && len(vs) > 0 {
				switch strings.ToUpper(vs[0]) {
				case "RESOURCE", "ROOM":
					a.Type = event.TypeResource
				}
			}
		}
		a.Organizer = organizer != "" && a.Email == organizer
		out = append(out, a)
	}
	return out
}

func mailAddress(v string) string {
	v = strings.TrimSpace(v)
	if strings.HasPrefix(strings.ToLower(v), "mailto:") {
		v = v[len("mailto:"):]
	}
	return strings.ToLower(v)
}

// parseTemporalValue parses the three ICS date shapes into the matching
// temporal kind: date-only, UTC date-time and floating date-time.
func parseTemporalValue(v, zone string) (temporal.Value, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil, errors.New("empty time value")
	}

	if strings.HasSuffix(v, "Z") {
		t, err := time.Parse("20060102T150405Z", v)
		if err != nil {
			return nil, err
		}
		return temporal.InstantOf(t), nil
	}

	if strings.Contains(v, "T") {
		loc, err := time.LoadLocation(zone)
		if err != nil {
			return nil, err
		}
		t, err := time.ParseInLocation("20060102T150405", v, loc)
		if err != nil {
			return nil, err
		}
		return temporal.ZonedFromTime(t, zone)
	}

	t, err := time.Parse("20060102", v)
	if err != nil {
		return nil, err
	}
	return temporal.DateOf(t), nil
}

// ridSuffix renders a RECURRENCE-ID value as the civil date of the occurrence
// it overrides, matching the synthetic occurrence id scheme.
func ridSuffix(v temporal.Value, zone string) string {
	d, err := temporal.ToPlainDate(v, temporal.Options{TimeZone: zone})
	if err != nil {
		return "unknown"
	}
	return d.String()
}
