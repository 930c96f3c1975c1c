package sqlite

import (
	"context"
	"database/sql"

	"github.com/greenpath/greenpath/internal/apperror"
	"github.com/greenpath/greenpath/internal/model"
)

const eventColumns = `id, organizer_id, title, description, location, date, status, max_participants, image, created_at`

func scanEvent(s scanner) (model.Event, error) {
	var (
		e     model.Event
		limit sql.NullInt64
		image sql.NullString
	)
	err := s.Scan(
		&e.ID, &e.OrganizerID, &e.Title, &e.Description, &e.Location, &e.Date,
		&e.Status, &limit, &image, &e.CreatedAt,
	)
	if err != nil {
		return e, err
	}
	if limit.Valid {
		n := int(limit.Int64)
		e.MaxParticipants = &n
	}
	if image.Valid {
		e.Image = &image.String
	}
	e.Date = e.Date.UTC()
	e.CreatedAt = e.CreatedAt.UTC()
	return e, nil
}

func nullInt(n *int) sql.NullInt64 {
	if n == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*n), Valid: true}
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func (db *DB) CreateEvent(ctx context.Context, e *model.Event) error {
	if e.Status == "" {
		e.Status = model.EventUpcoming
	}
	e.Date = e.Date.UTC()
	createdAt := db.now()

	id, err := db.insert(ctx, "event",
		`INSERT INTO events (organizer_id, title, description, location, date, status, max_participants, image, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.OrganizerID, e.Title, e.Description, e.Location, e.Date,
		string(e.Status), nullInt(e.MaxParticipants), nullString(e.Image), createdAt,
	)
	if err != nil {
		return err
	}
	e.ID = id
	e.CreatedAt = createdAt
	return nil
}

func (db *DB) GetEvent(ctx context.Context, id int64) (*model.Event, error) {
	return queryOne(ctx, db, scanEvent, "event", id,
		`SELECT `+eventColumns+` FROM events WHERE id = ?`, id)
}

// ListEvents filters on organizer and status in SQL. The date cut-off is
// applied after scanning because SQLite compares the stored timestamps as
// text.
func (db *DB) ListEvents(ctx context.Context, f model.EventFilter) ([]model.Event, error) {
	var w where
	if f.OrganizerID != 0 {
		w.eq("organizer_id", f.OrganizerID)
	}
	in(&w, "status", f.Statuses)
	events, err := queryList(ctx, db, scanEvent, "events",
		`SELECT `+eventColumns+` FROM events`+w.String()+` ORDER BY id`, w.args...)
	if err != nil || f.After == nil {
		return events, err
	}

	out := events[:0]
	for i := range events {
		if f.Match(&events[i]) {
			out = append(out, events[i])
		}
	}
	return out, nil
}

func (db *DB) UpdateEvent(ctx context.Context, id int64, p model.EventPatch) (*model.Event, error) {
	var out *model.Event
	err := db.atomically(ctx, func(tx *DB) error {
		e, err := tx.GetEvent(ctx, id)
		if err != nil {
			return err
		}
		p.Apply(e)
		e.Date = e.Date.UTC()

		if _, err := tx.exec(ctx, "updating event",
			`UPDATE events
			 SET title = ?, description = ?, location = ?, date = ?, status = ?, max_participants = ?, image = ?
			 WHERE id = ?`,
			e.Title, e.Description, e.Location, e.Date, string(e.Status),
			nullInt(e.MaxParticipants), nullString(e.Image), id,
		); err != nil {
			return err
		}
		out = e
		return nil
	})
	return out, err
}

const participantColumns = `id, event_id, user_id, joined_at`

func scanParticipant(s scanner) (model.EventParticipant, error) {
	var p model.EventParticipant
	err := s.Scan(&p.ID, &p.EventID, &p.UserID, &p.JoinedAt)
	p.JoinedAt = p.JoinedAt.UTC()
	return p, err
}

func (db *DB) AddEventParticipant(ctx context.Context, p *model.EventParticipant) error {
	return db.atomically(ctx, func(tx *DB) error {
		if _, err := tx.GetEvent(ctx, p.EventID); err != nil {
			return err
		}
		joinedAt := tx.now()
		id, err := tx.insert(ctx, "event participant",
			`INSERT INTO event_participants (event_id, user_id, joined_at) VALUES (?, ?, ?)`,
			p.EventID, p.UserID, joinedAt,
		)
		if err != nil {
			return err
		}
		p.ID = id
		p.JoinedAt = joinedAt
		return nil
	})
}

func (db *DB) GetEventParticipant(ctx context.Context, eventID, userID int64) (*model.EventParticipant, error) {
	return queryOne(ctx, db, scanParticipant, "event participant", userID,
		`SELECT `+participantColumns+` FROM event_participants WHERE event_id = ? AND user_id = ?`,
		eventID, userID)
}

func (db *DB) ListEventParticipants(ctx context.Context, eventID int64) ([]model.EventParticipant, error) {
	return queryList(ctx, db, scanParticipant, "event participants",
		`SELECT `+participantColumns+` FROM event_participants WHERE event_id = ? ORDER BY id`, eventID)
}

func (db *DB) RemoveEventParticipant(ctx context.Context, eventID, userID int64) error {
	n, err := db.exec(ctx, "removing event participant",
		`DELETE FROM event_participants WHERE event_id = ? AND user_id = ?`, eventID, userID)
	if err != nil {
		return err
	}
	if n == 0 {
		return apperror.NotFound("event participant", userID)
	}
	return nil
}
