package sqlite

import (
	"context"
	"database/sql"

	"github.com/greenpath/greenpath/internal/model"
)

// caseWhere translates a CaseFilter shared by issues and help requests.
func caseWhere(f model.CaseFilter) where {
	var w where
	if f.UserID != 0 {
		w.eq("user_id", f.UserID)
	}
	if f.AssignedOrganizationID != 0 {
		if f.IncludeUnassigned {
			w.raw("(assigned_organization_id = ? OR assigned_organization_id IS NULL)", f.AssignedOrganizationID)
		} else {
			w.eq("assigned_organization_id", f.AssignedOrganizationID)
		}
	}
	in(&w, "status", f.Statuses)
	return w
}

// === ISSUES ===

const issueColumns = `id, user_id, title, description, category, location, status, assigned_organization_id, created_at`

func scanIssue(s scanner) (model.Issue, error) {
	var (
		i        model.Issue
		location string
		orgID    sql.NullInt64
	)
	err := s.Scan(
		&i.ID, &i.UserID, &i.Title, &i.Description, &i.Category, &location,
		&i.Status, &orgID, &i.CreatedAt,
	)
	if err != nil {
		return i, err
	}
	if err := decodeJSON(location, &i.Location); err != nil {
		return i, err
	}
	i.AssignedOrganizationID = idPtr(orgID)
	i.CreatedAt = i.CreatedAt.UTC()
	return i, nil
}

func (db *DB) CreateIssue(ctx context.Context, i *model.Issue) error {
	if i.Status == "" {
		i.Status = model.CaseOpen
	}
	location, err := encodeJSON(i.Location)
	if err != nil {
		return err
	}
	createdAt := db.now()

	id, err := db.insert(ctx, "issue",
		`INSERT INTO issues (user_id, title, description, category, location, status, assigned_organization_id, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		i.UserID, i.Title, i.Description, string(i.Category), location,
		string(i.Status), nullID(i.AssignedOrganizationID), createdAt,
	)
	if err != nil {
		return err
	}
	i.ID = id
	i.CreatedAt = createdAt
	return nil
}

func (db *DB) GetIssue(ctx context.Context, id int64) (*model.Issue, error) {
	return queryOne(ctx, db, scanIssue, "issue", id,
		`SELECT `+issueColumns+` FROM issues WHERE id = ?`, id)
}

func (db *DB) ListIssues(ctx context.Context, f model.CaseFilter) ([]model.Issue, error) {
	w := caseWhere(f)
	return queryList(ctx, db, scanIssue, "issues",
		`SELECT `+issueColumns+` FROM issues`+w.String()+` ORDER BY id`, w.args...)
}

func (db *DB) UpdateIssue(ctx context.Context, id int64, p model.CasePatch) (*model.Issue, error) {
	var out *model.Issue
	err := db.atomically(ctx, func(tx *DB) error {
		i, err := tx.GetIssue(ctx, id)
		if err != nil {
			return err
		}
		p.ApplyIssue(i)

		location, err := encodeJSON(i.Location)
		if err != nil {
			return err
		}
		if _, err := tx.exec(ctx, "updating issue",
			`UPDATE issues
			 SET title = ?, description = ?, category = ?, location = ?, status = ?, assigned_organization_id = ?
			 WHERE id = ?`,
			i.Title, i.Description, string(i.Category), location, string(i.Status),
			nullID(i.AssignedOrganizationID), id,
		); err != nil {
			return err
		}
		out = i
		return nil
	})
	return out, err
}

// === HELP REQUESTS ===

const helpRequestColumns = `id, user_id, title, description, urgency, location, status, assigned_organization_id, created_at`

func scanHelpRequest(s scanner) (model.HelpRequest, error) {
	var (
		h        model.HelpRequest
		location string
		orgID    sql.NullInt64
	)
	err := s.Scan(
		&h.ID, &h.UserID, &h.Title, &h.Description, &h.Urgency, &location,
		&h.Status, &orgID, &h.CreatedAt,
	)
	if err != nil {
		return h, err
	}
	if err := decodeJSON(location, &h.Location); err != nil {
		return h, err
	}
	h.AssignedOrganizationID = idPtr(orgID)
	h.CreatedAt = h.CreatedAt.UTC()
	return h, nil
}

func (db *DB) CreateHelpRequest(ctx context.Context, h *model.HelpRequest) error {
	if h.Status == "" {
		h.Status = model.CaseOpen
	}
	if h.Urgency == "" {
		h.Urgency = model.UrgencyMedium
	}
	location, err := encodeJSON(h.Location)
	if err != nil {
		return err
	}
	createdAt := db.now()

	id, err := db.insert(ctx, "help request",
		`INSERT INTO help_requests (user_id, title, description, urgency, location, status, assigned_organization_id, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		h.UserID, h.Title, h.Description, string(h.Urgency), location,
		string(h.Status), nullID(h.AssignedOrganizationID), createdAt,
	)
	if err != nil {
		return err
	}
	h.ID = id
	h.CreatedAt = createdAt
	return nil
}

func (db *DB) GetHelpRequest(ctx context.Context, id int64) (*model.HelpRequest, error) {
	return queryOne(ctx, db, scanHelpRequest, "help request", id,
		`SELECT `+helpRequestColumns+` FROM help_requests WHERE id = ?`, id)
}

func (db *DB) ListHelpRequests(ctx context.Context, f model.CaseFilter) ([]model.HelpRequest, error) {
	w := caseWhere(f)
	return queryList(ctx, db, scanHelpRequest, "help requests",
		`SELECT `+helpRequestColumns+` FROM help_requests`+w.String()+` ORDER BY id`, w.args...)
}

func (db *DB) UpdateHelpRequest(ctx context.Context, id int64, p model.CasePatch) (*model.HelpRequest, error) {
	var out *model.HelpRequest
	err := db.atomically(ctx, func(tx *DB) error {
		h, err := tx.GetHelpRequest(ctx, id)
		if err != nil {
			return err
		}
		p.ApplyHelpRequest(h)

		location, err := encodeJSON(h.Location)
		if err != nil {
			return err
		}
		if _, err := tx.exec(ctx, "updating help request",
			`UPDATE help_requests
			 SET title = ?, description = ?, urgency = ?, location = ?, status = ?, assigned_organization_id = ?
			 WHERE id = ?`,
			h.Title, h.Description, string(h.Urgency), location, string(h.Status),
			nullID(h.AssignedOrganizationID), id,
		); err != nil {
			return err
		}
		out = h
		return nil
	})
	return out, err
}

// === FEEDBACK ===

const feedbackColumns = `id, user_id, subject, message, rating, status, created_at`

func scanFeedback(s scanner) (model.Feedback, error) {
	var fb model.Feedback
	err := s.Scan(&fb.ID, &fb.UserID, &fb.Subject, &fb.Message, &fb.Rating, &fb.Status, &fb.CreatedAt)
	fb.CreatedAt = fb.CreatedAt.UTC()
	return fb, err
}

func (db *DB) CreateFeedback(ctx context.Context, fb *model.Feedback) error {
	if fb.Status == "" {
		fb.Status = model.FeedbackSubmitted
	}
	createdAt := db.now()

	id, err := db.insert(ctx, "feedback",
		`INSERT INTO feedback (user_id, subject, message, rating, status, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		fb.UserID, fb.Subject, fb.Message, fb.Rating, string(fb.Status), createdAt,
	)
	if err != nil {
		return err
	}
	fb.ID = id
	fb.CreatedAt = createdAt
	return nil
}

func (db *DB) GetFeedback(ctx context.Context, id int64) (*model.Feedback, error) {
	return queryOne(ctx, db, scanFeedback, "feedback", id,
		`SELECT `+feedbackColumns+` FROM feedback WHERE id = ?`, id)
}

func (db *DB) ListFeedback(ctx context.Context, f model.FeedbackFilter) ([]model.Feedback, error) {
	var w where
	if f.UserID != 0 {
		w.eq("user_id", f.UserID)
	}
	if f.Status != "" {
		w.eq("status", string(f.Status))
	}
	return queryList(ctx, db, scanFeedback, "feedback",
		`SELECT `+feedbackColumns+` FROM feedback`+w.String()+` ORDER BY id`, w.args...)
}

func (db *DB) UpdateFeedback(ctx context.Context, id int64, p model.FeedbackPatch) (*model.Feedback, error) {
	var out *model.Feedback
	err := db.atomically(ctx, func(tx *DB) error {
		fb, err := tx.GetFeedback(ctx, id)
		if err != nil {
			return err
		}
		p.Apply(fb)
		if _, err := tx.exec(ctx, "updating feedback",
			`UPDATE feedback SET status = ? WHERE id = ?`, string(fb.Status), id,
		); err != nil {
			return err
		}
		out = fb
		return nil
	})
	return out, err
}
