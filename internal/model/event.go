package model

import (
	"slices"
	"time"
)

type EventStatus string

const (
	EventUpcoming  EventStatus = "upcoming"
	EventOngoing   EventStatus = "ongoing"
	EventCompleted EventStatus = "completed"
	EventCancelled EventStatus = "cancelled"
)

var eventStatuses = []EventStatus{EventUpcoming, EventOngoing, EventCompleted, EventCancelled}

func (s EventStatus) Valid() bool { return slices.Contains(eventStatuses, s) }

// Joinable reports whether participants may still sign up.
func (s EventStatus) Joinable() bool { return s == EventUpcoming || s == EventOngoing }

// Event is a community activity run by an organization.
type Event struct {
	ID              int64       `json:"id"`
	OrganizerID     int64       `json:"organizerId"`
	Title           string      `json:"title"`
	Description     string      `json:"description"`
	Location        string      `json:"location"`
	Date            time.Time   `json:"date"`
	Status          EventStatus `json:"status"`
	MaxParticipants *int        `json:"maxParticipants"`
	Image           *string     `json:"image"`
	CreatedAt       time.Time   `json:"createdAt"`
}

func (e Event) Clone() Event {
	if e.MaxParticipants != nil {
		n := *e.MaxParticipants
		e.MaxParticipants = &n
	}
	if e.Image != nil {
		s := *e.Image
		e.Image = &s
	}
	return e
}

type EventPatch struct {
	Title           *string
	Description     *string
	Location        *string
	Date            *time.Time
	Status          *EventStatus
	MaxParticipants *int
	Image           *string
}

func (p EventPatch) Apply(e *Event) {
	if p.Title != nil {
		e.Title = *p.Title
	}
	if p.Description != nil {
		e.Description = *p.Description
	}
	if p.Location != nil {
		e.Location = *p.Location
	}
	if p.Date != nil {
		e.Date = *p.Date
	}
	if p.Status != nil {
		e.Status = *p.Status
	}
	if p.MaxParticipants != nil {
		n := *p.MaxParticipants
		e.MaxParticipants = &n
	}
	if p.Image != nil {
		s := *p.Image
		e.Image = &s
	}
}

// EventFilter narrows ListEvents. After, when set, keeps events dated
// strictly after it.
type EventFilter struct {
	OrganizerID int64
	Statuses    []EventStatus
	After       *time.Time
}

func (f EventFilter) Match(e *Event) bool {
	if f.OrganizerID != 0 && e.OrganizerID != f.OrganizerID {
		return false
	}
	if f.After != nil && !e.Date.After(*f.After) {
		return false
	}
	return len(f.Statuses) == 0 || slices.Contains(f.Statuses, e.Status)
}

// EventParticipant records one user's registration for one event.
// (EventID, UserID) is unique.
type EventParticipant struct {
	ID       int64     `json:"id"`
	EventID  int64     `json:"eventId"`
	UserID   int64     `json:"userId"`
	JoinedAt time.Time `json:"joinedAt"`
}

func (p EventParticipant) Clone() EventParticipant { return p }
