// Package event defines the calendar event model shared by the expansion,
// bucketing and layout packages.
package event

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"calview/internal/recurrence"
	"calview/internal/temporal"
)

// AttendeeStatus is an attendee's response state.
type AttendeeStatus string

const (
	StatusAccepted  AttendeeStatus = "accepted"
	StatusTentative AttendeeStatus = "tentative"
	StatusDeclined  AttendeeStatus = "declined"
	StatusUnknown   AttendeeStatus = "unknown"
)

// AttendeeType distinguishes people from booked resources.
type AttendeeType string

const (
	TypeRequired AttendeeType = "required"
	TypeOptional AttendeeType = "optional"
	TypeResource AttendeeType = "resource"
)

// Attendee is one participant of an event.
type Attendee struct {
	Email     string         `json:"email"`
	Name      string         `json:"name,omitempty"`
	Status    AttendeeStatus `json:"status"`
	Type      AttendeeType   `json:"type"`
	Organizer bool           `json:"organizer,omitempty"`
}

// CalendarEvent is one base (possibly recurring) event or one materialized
// occurrence/exception of a recurring series.
//
// Start and End are temporal values of the same kind: PlainDate pairs for
// all-day events, ZonedDateTime (or Instant) pairs for timed ones. A
// non-nil Recurrence marks a recurring master; a non-empty RecurringEventID
// marks a stored occurrence or exception of the master with that id (the
// rule is inherited via lookup, never copied onto occurrences).
type CalendarEvent struct {
	ID string

	Title       string
	Description string
	Location    string

	Start temporal.Value
	End   temporal.Value

	AllDay bool

	Recurrence       *recurrence.Recurrence
	RecurringEventID string

	// OriginalStart is, for a stored exception, the start of the series
	// occurrence it modifies. A rescheduled occurrence keeps its original
	// slot here while Start/End carry the new time; without it the
	// exception is taken to sit on its own start.
	OriginalStart temporal.Value

	// Cancelled marks a stored exception that removes its occurrence from
	// the series instead of moving it.
	Cancelled bool

	CalendarID string
	AccountID  string
	ProviderID string

	Attendees []Attendee

	// ReadOnly is informational here; mutation rejection happens in the
	// API layer that owns writes.
	ReadOnly bool
}

// NewID returns a fresh event identifier.
func NewID() string {
	return uuid.NewString()
}

// IsRecurringMaster reports whether this event carries the series rule.
func (e *CalendarEvent) IsRecurringMaster() bool {
	return e.Recurrence != nil
}

// IsException reports whether this event is a stored per-occurrence
// modification of a recurring series.
func (e *CalendarEvent) IsException() bool {
	return e.RecurringEventID != ""
}

// Validate enforces the boundary invariants: same-kind start/end, start
// strictly before end, PlainDate bounds for all-day events, and recurrence
// rule validity.
func (e *CalendarEvent) Validate() error {
	if e.Start == nil || e.End == nil {
		return errors.New("event: start and end are required")
	}
	if e.Start.Kind() != e.End.Kind() {
		return fmt.Errorf("event: start is %v but end is %v", e.Start.Kind(), e.End.Kind())
	}
	if e.AllDay && e.Start.Kind() != temporal.KindPlainDate {
		return errors.New("event: all-day events require PlainDate bounds")
	}

	if e.AllDay {
		// End is the last day of the span, so a one-day event has
		// Start == End.
		sd := e.Start.(temporal.PlainDate)
		ed := e.End.(temporal.PlainDate)
		if sd.Compare(ed) > 0 {
			return errors.New("event: start must not be after end")
		}
	} else {
		before, err := temporal.IsBefore(e.Start, e.End, &temporal.Options{TimeZone: "UTC"})
		if err != nil {
			return err
		}
		if !before {
			return errors.New("event: start must be before end")
		}
	}

	if e.Recurrence != nil {
		if e.RecurringEventID != "" {
			return errors.New("event: an occurrence cannot carry its own rule")
		}
		if err := recurrence.Validate(*e.Recurrence); err != nil {
			return err
		}
	}
	if e.OriginalStart != nil && e.RecurringEventID == "" {
		return errors.New("event: original start requires a recurring event id")
	}
	return nil
}

// Duration returns the absolute span of the event. All-day events span
// whole days from start-of-day to end's start-of-day plus one day
// (exclusive end convention is not used in this model; End is the last
// day of the span).
func (e *CalendarEvent) Duration(timeZone string) (start, end temporal.ZonedDateTime, err error) {
	if e.AllDay {
		sd, ok1 := e.Start.(temporal.PlainDate)
		ed, ok2 := e.End.(temporal.PlainDate)
		if !ok1 || !ok2 {
			return start, end, errors.New("event: all-day events require PlainDate bounds")
		}
		if start, err = temporal.StartOfDayIn(sd, timeZone); err != nil {
			return
		}
		end, err = temporal.EndOfDayIn(ed, timeZone)
		return
	}

	if start, err = temporal.ToZonedDateTime(e.Start, temporal.Options{TimeZone: timeZone}); err != nil {
		return
	}
	end, err = temporal.ToZonedDateTime(e.End, temporal.Options{TimeZone: timeZone})
	return
}

// IsMultiDay reports whether the event spans more than one civil day in the
// given zone.
func (e *CalendarEvent) IsMultiDay(timeZone string) (bool, error) {
	if e.AllDay {
		return true, nil
	}
	start, end, err := e.Duration(timeZone)
	if err != nil {
		return false, err
	}
	return start.ToPlainDate() != end.ToPlainDate(), nil
}
