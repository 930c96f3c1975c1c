package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/greenpath/greenpath/internal/apperror"
	"github.com/greenpath/greenpath/internal/model"
	"github.com/greenpath/greenpath/internal/policy"
	"github.com/greenpath/greenpath/internal/repository"
	"github.com/greenpath/greenpath/internal/workflow"
)

// EventService manages community events and their participant lists.
type EventService struct {
	Deps
	now func() time.Time
}

func NewEventService(d Deps) *EventService {
	return &EventService{Deps: d.withDefaults(), now: time.Now}
}

// EventDetails is an event with its current head count.
type EventDetails struct {
	model.Event
	CurrentParticipants int `json:"currentParticipants"`
}

type EventInput struct {
	Title           string
	Description     string
	Location        string
	Date            time.Time
	MaxParticipants *int
	Image           *string
}

type EventUpdate struct {
	Title           *string
	Description     *string
	Location        *string
	Date            *time.Time
	MaxParticipants *int
	Image           *string
	Status          *model.EventStatus
}

func (u EventUpdate) editsDetails() bool {
	return u.Title != nil || u.Description != nil || u.Location != nil ||
		u.Date != nil || u.MaxParticipants != nil || u.Image != nil
}

// List returns every event, or with upcomingOnly the upcoming events dated
// after now. Anonymous callers are allowed.
func (s *EventService) List(ctx context.Context, actor *model.User, upcomingOnly bool) ([]EventDetails, error) {
	if err := policy.Authorize(policy.Request{Actor: actor, Resource: policy.Event, Action: policy.List}); err != nil {
		return nil, err
	}
	var filter model.EventFilter
	if upcomingOnly {
		filter.Statuses = []model.EventStatus{model.EventUpcoming}
		filter.After = ptr(s.now().UTC())
	}
	events, err := s.Store.ListEvents(ctx, filter)
	if err != nil {
		return nil, err
	}

	out := make([]EventDetails, 0, len(events))
	for _, e := range events {
		n, err := s.headCount(ctx, s.Store, e.ID)
		if err != nil {
			return nil, err
		}
		out = append(out, EventDetails{Event: e, CurrentParticipants: n})
	}
	return out, nil
}

func (s *EventService) Get(ctx context.Context, actor *model.User, id int64) (*EventDetails, error) {
	if err := policy.Authorize(policy.Request{Actor: actor, Resource: policy.Event, Action: policy.Read}); err != nil {
		return nil, err
	}
	e, err := s.Store.GetEvent(ctx, id)
	if err != nil {
		return nil, err
	}
	n, err := s.headCount(ctx, s.Store, id)
	if err != nil {
		return nil, err
	}
	return &EventDetails{Event: *e, CurrentParticipants: n}, nil
}

func (s *EventService) Create(ctx context.Context, actor *model.User, in EventInput) (*model.Event, error) {
	if err := policy.Authorize(policy.Request{Actor: actor, Resource: policy.Event, Action: policy.Create}); err != nil {
		return nil, err
	}
	title, err := requireText("title", in.Title, MaxTitleLength)
	if err != nil {
		return nil, err
	}
	location, err := requireText("location", in.Location, MaxTitleLength)
	if err != nil {
		return nil, err
	}
	if in.Date.IsZero() {
		return nil, apperror.ValidationFailed("date", "date is required")
	}
	if in.MaxParticipants != nil && *in.MaxParticipants < 1 {
		return nil, apperror.ValidationFailed("maxParticipants", "maxParticipants must be at least 1")
	}

	event := &model.Event{
		OrganizerID:     actor.ID,
		Title:           title,
		Description:     in.Description,
		Location:        location,
		Date:            in.Date.UTC(),
		Status:          model.EventUpcoming,
		MaxParticipants: in.MaxParticipants,
		Image:           in.Image,
	}
	if err := s.Store.CreateEvent(ctx, event); err != nil {
		s.Logger.Error("failed to create event", slog.Int64("organizerID", actor.ID), errAttr(err))
		return nil, err
	}

	s.Logger.Info("event created", slog.Int64("id", event.ID), slog.Int64("organizerID", actor.ID))
	s.notify("event_created", event)
	return event, nil
}

// Update edits an event the actor organizes. Moving it to completed awards
// points to the organizer and every participant.
func (s *EventService) Update(ctx context.Context, actor *model.User, id int64, upd EventUpdate) (*model.Event, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}

	var (
		out    *model.Event
		from   model.EventStatus
		awards []award
	)
	err := s.Store.WithinTx(ctx, func(tx repository.Store) error {
		awards = nil
		e, err := tx.GetEvent(ctx, id)
		if err != nil {
			return err
		}
		if err := policy.Authorize(policy.Request{
			Actor: actor, Resource: policy.Event, Action: policy.Update, OwnerID: e.OrganizerID,
		}); err != nil {
			return err
		}
		from = e.Status

		patch, err := s.eventPatch(ctx, tx, e, upd)
		if err != nil {
			return err
		}
		out, err = tx.UpdateEvent(ctx, id, patch)
		if err != nil {
			return err
		}
		if from != model.EventCompleted && out.Status == model.EventCompleted {
			awards, err = s.completionAwards(ctx, tx, out)
			if err != nil {
				return err
			}
			return grant(ctx, tx, awards...)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.afterTransition(actor.ID, out, from, awards)
	return out, nil
}

func (s *EventService) eventPatch(ctx context.Context, tx repository.Store, e *model.Event, upd EventUpdate) (model.EventPatch, error) {
	var patch model.EventPatch

	if upd.editsDetails() {
		if workflow.Events.Terminal(e.Status) {
			return patch, apperror.ValidationFailed("status", "a "+string(e.Status)+" event can no longer be edited")
		}
		if upd.Title != nil {
			title, err := requireText("title", *upd.Title, MaxTitleLength)
			if err != nil {
				return patch, err
			}
			patch.Title = &title
		}
		if upd.Location != nil {
			loc, err := requireText("location", *upd.Location, MaxTitleLength)
			if err != nil {
				return patch, err
			}
			patch.Location = &loc
		}
		if upd.Date != nil {
			if upd.Date.IsZero() {
				return patch, apperror.ValidationFailed("date", "date is required")
			}
			patch.Date = ptr(upd.Date.UTC())
		}
		if upd.MaxParticipants != nil {
			n, err := s.headCount(ctx, tx, e.ID)
			if err != nil {
				return patch, err
			}
			if *upd.MaxParticipants < 1 || *upd.MaxParticipants < n {
				return patch, apperror.ValidationFailed("maxParticipants", "maxParticipants cannot be below the current number of participants")
			}
			patch.MaxParticipants = upd.MaxParticipants
		}
		patch.Description = upd.Description
		patch.Image = upd.Image
	}

	if upd.Status != nil && *upd.Status != e.Status {
		if !upd.Status.Valid() {
			return patch, apperror.ValidationFailed("status", "unknown event status")
		}
		if err := workflow.Events.Check(e.Status, *upd.Status); err != nil {
			return patch, err
		}
		patch.Status = upd.Status
	}
	return patch, nil
}

// Join registers actor for the event. A full event, an event that is over
// and a repeat registration are all rejected with a validation error.
func (s *EventService) Join(ctx context.Context, actor *model.User, eventID int64) (*model.EventParticipant, error) {
	if err := policy.Authorize(policy.Request{Actor: actor, Resource: policy.Participant, Action: policy.Create}); err != nil {
		return nil, err
	}

	p := &model.EventParticipant{EventID: eventID, UserID: actor.ID}
	err := s.Store.WithinTx(ctx, func(tx repository.Store) error {
		e, err := tx.GetEvent(ctx, eventID)
		if err != nil {
			return err
		}
		if !e.Status.Joinable() {
			return apperror.ValidationFailed("eventId", "Event is not open for registration")
		}
		// A repeat registration is reported as such even when the event is full.
		if _, err := tx.GetEventParticipant(ctx, eventID, actor.ID); err == nil {
			return apperror.ValidationFailed("eventId", "Already registered")
		} else if !errors.Is(err, apperror.ErrNotFound) {
			return err
		}
		if e.MaxParticipants != nil {
			n, err := s.headCount(ctx, tx, eventID)
			if err != nil {
				return err
			}
			if n >= *e.MaxParticipants {
				return apperror.ValidationFailed("eventId", "Event is full")
			}
		}
		return tx.AddEventParticipant(ctx, p)
	})
	if err != nil {
		if errors.Is(err, apperror.ErrConflict) {
			return nil, apperror.ValidationFailed("eventId", "Already registered")
		}
		return nil, err
	}

	s.Logger.Info("event joined", slog.Int64("eventID", eventID), slog.Int64("userID", actor.ID))
	s.Notifier.Publish(ChannelEvents, "event_joined", p)
	s.Notifier.Publish(EventChannel(eventID), "event_joined", p)
	return p, nil
}

// Leave removes actor's registration. Leaving an event the actor never
// joined is a not-found error.
func (s *EventService) Leave(ctx context.Context, actor *model.User, eventID int64) error {
	if err := policy.Authorize(policy.Request{Actor: actor, Resource: policy.Participant, Action: policy.Delete, OwnerID: actor.ID}); err != nil {
		return err
	}
	if _, err := s.Store.GetEvent(ctx, eventID); err != nil {
		return err
	}
	if err := s.Store.RemoveEventParticipant(ctx, eventID, actor.ID); err != nil {
		return err
	}

	s.Logger.Info("event left", slog.Int64("eventID", eventID), slog.Int64("userID", actor.ID))
	data := map[string]int64{"eventId": eventID, "userId": actor.ID}
	s.Notifier.Publish(ChannelEvents, "event_left", data)
	s.Notifier.Publish(EventChannel(eventID), "event_left", data)
	return nil
}

func (s *EventService) Participants(ctx context.Context, actor *model.User, eventID int64) ([]model.EventParticipant, error) {
	if err := policy.Authorize(policy.Request{Actor: actor, Resource: policy.Participant, Action: policy.List}); err != nil {
		return nil, err
	}
	if _, err := s.Store.GetEvent(ctx, eventID); err != nil {
		return nil, err
	}
	return s.Store.ListEventParticipants(ctx, eventID)
}

// AdvanceStatuses moves events along the clock: upcoming events whose date
// has arrived become ongoing, and ongoing events become completed once
// duration has passed since their start. It returns how many events
// changed. One failing event does not stop the sweep.
func (s *EventService) AdvanceStatuses(ctx context.Context, now time.Time, duration time.Duration) (int, error) {
	events, err := s.Store.ListEvents(ctx, model.EventFilter{
		Statuses: []model.EventStatus{model.EventUpcoming, model.EventOngoing},
	})
	if err != nil {
		return 0, err
	}

	var (
		changed int
		errs    []error
	)
	for _, e := range events {
		target := e.Status
		if !now.Before(e.Date) {
			target = model.EventOngoing
		}
		if !now.Before(e.Date.Add(duration)) {
			target = model.EventCompleted
		}
		if target == e.Status {
			continue
		}
		if err := s.advance(ctx, e.ID, target); err != nil {
			s.Logger.Error("failed to advance event", slog.Int64("id", e.ID), errAttr(err))
			errs = append(errs, err)
			continue
		}
		changed++
	}
	return changed, errors.Join(errs...)
}

// advance walks one event to target through every intermediate status, so
// an upcoming event whose whole window has passed still goes through
// ongoing before completing.
func (s *EventService) advance(ctx context.Context, id int64, target model.EventStatus) error {
	var (
		out    *model.Event
		from   model.EventStatus
		awards []award
	)
	err := s.Store.WithinTx(ctx, func(tx repository.Store) error {
		awards = nil
		e, err := tx.GetEvent(ctx, id)
		if err != nil {
			return err
		}
		from = e.Status
		out = e
		for out.Status != target {
			next := model.EventOngoing
			if out.Status == model.EventOngoing {
				next = model.EventCompleted
			}
			if err := workflow.Events.Check(out.Status, next); err != nil {
				return err
			}
			out, err = tx.UpdateEvent(ctx, id, model.EventPatch{Status: &next})
			if err != nil {
				return err
			}
		}
		if from != model.EventCompleted && out.Status == model.EventCompleted {
			awards, err = s.completionAwards(ctx, tx, out)
			if err != nil {
				return err
			}
			return grant(ctx, tx, awards...)
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.afterTransition(0, out, from, awards)
	return nil
}

func (s *EventService) completionAwards(ctx context.Context, tx repository.Store, e *model.Event) ([]award, error) {
	participants, err := tx.ListEventParticipants(ctx, e.ID)
	if err != nil {
		return nil, err
	}
	awards := make([]award, 0, len(participants)+1)
	awards = append(awards, award{userID: e.OrganizerID, points: PointsEventOrganizer, reason: "event_organized"})
	for _, p := range participants {
		awards = append(awards, award{userID: p.UserID, points: PointsEventParticipant, reason: "event_attended"})
	}
	return awards, nil
}

// afterTransition logs, counts and broadcasts a committed change. actorID
// is zero when the scheduler made it.
func (s *EventService) afterTransition(actorID int64, e *model.Event, from model.EventStatus, awards []award) {
	recordAwards(s.Metrics, awards)
	if from != e.Status {
		s.Metrics.Transition(string(policy.Event), string(e.Status))
		s.Logger.Info("event transitioned",
			slog.Int64("id", e.ID),
			slog.Int64("actorID", actorID),
			slog.String("from", string(from)),
			slog.String("to", string(e.Status)),
		)
	} else {
		s.Logger.Info("event updated", slog.Int64("id", e.ID), slog.Int64("actorID", actorID))
	}
	s.notify("event_updated", e)
}

func (s *EventService) headCount(ctx context.Context, store repository.EventRepository, eventID int64) (int, error) {
	ps, err := store.ListEventParticipants(ctx, eventID)
	if err != nil {
		return 0, err
	}
	return len(ps), nil
}

func (s *EventService) notify(kind string, e *model.Event) {
	s.Notifier.Publish(ChannelEvents, kind, e)
	s.Notifier.Publish(EventChannel(e.ID), kind, e)
}
