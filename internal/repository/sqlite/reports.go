package sqlite

import (
	"context"
	"database/sql"

	"github.com/greenpath/greenpath/internal/model"
)

const wasteReportColumns = `id, user_id, title, description, category, location, images, status, is_segregated, assigned_dealer_id, scheduled_date, created_at, rejected_by_dealer_id`

func scanWasteReport(s scanner) (model.WasteReport, error) {
	var (
		r         model.WasteReport
		location  string
		images    string
		dealerID  sql.NullInt64
		scheduled sql.NullTime
		rejecter  sql.NullInt64
	)
	err := s.Scan(
		&r.ID, &r.UserID, &r.Title, &r.Description, &r.Category, &location, &images,
		&r.Status, &r.IsSegregated, &dealerID, &scheduled, &r.CreatedAt, &rejecter,
	)
	if err != nil {
		return r, err
	}
	if err := decodeJSON(location, &r.Location); err != nil {
		return r, err
	}
	r.Images = []string{}
	if err := decodeJSON(images, &r.Images); err != nil {
		return r, err
	}
	r.AssignedDealerID = idPtr(dealerID)
	r.ScheduledDate = timePtr(scheduled)
	r.RejectedByDealerID = idPtr(rejecter)
	r.CreatedAt = r.CreatedAt.UTC()
	return r, nil
}

func (db *DB) CreateWasteReport(ctx context.Context, r *model.WasteReport) error {
	if r.Status == "" {
		r.Status = model.WasteReportPending
	}
	if r.Images == nil {
		r.Images = []string{}
	}
	location, err := encodeJSON(r.Location)
	if err != nil {
		return err
	}
	images, err := encodeJSON(r.Images)
	if err != nil {
		return err
	}
	createdAt := db.now()

	id, err := db.insert(ctx, "waste report",
		`INSERT INTO waste_reports (user_id, title, description, category, location, images, status, is_segregated, assigned_dealer_id, scheduled_date, created_at, rejected_by_dealer_id)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.UserID, r.Title, r.Description, string(r.Category), location, images,
		string(r.Status), r.IsSegregated, nullID(r.AssignedDealerID), nullTime(r.ScheduledDate), createdAt, nullID(r.RejectedByDealerID),
	)
	if err != nil {
		return err
	}
	r.ID = id
	r.CreatedAt = createdAt
	return nil
}

func (db *DB) GetWasteReport(ctx context.Context, id int64) (*model.WasteReport, error) {
	return queryOne(ctx, db, scanWasteReport, "waste report", id,
		`SELECT `+wasteReportColumns+` FROM waste_reports WHERE id = ?`, id)
}

func (db *DB) ListWasteReports(ctx context.Context, f model.WasteReportFilter) ([]model.WasteReport, error) {
	var w where
	if f.UserID != 0 {
		w.eq("user_id", f.UserID)
	}
	if f.AssignedDealerID != 0 {
		w.eq("assigned_dealer_id", f.AssignedDealerID)
	}
	in(&w, "status", f.Statuses)
	return queryList(ctx, db, scanWasteReport, "waste reports",
		`SELECT `+wasteReportColumns+` FROM waste_reports`+w.String()+` ORDER BY id`, w.args...)
}

func (db *DB) UpdateWasteReport(ctx context.Context, id int64, p model.WasteReportPatch) (*model.WasteReport, error) {
	var out *model.WasteReport
	err := db.atomically(ctx, func(tx *DB) error {
		r, err := tx.GetWasteReport(ctx, id)
		if err != nil {
			return err
		}
		p.Apply(r)

		location, err := encodeJSON(r.Location)
		if err != nil {
			return err
		}
		images, err := encodeJSON(r.Images)
		if err != nil {
			return err
		}
		if _, err := tx.exec(ctx, "updating waste report",
			`UPDATE waste_reports
			 SET title = ?, description = ?, category = ?, location = ?, images = ?, status = ?,
			     is_segregated = ?, assigned_dealer_id = ?, scheduled_date = ?, rejected_by_dealer_id = ?
			 WHERE id = ?`,
			r.Title, r.Description, string(r.Category), location, images, string(r.Status),
			r.IsSegregated, nullID(r.AssignedDealerID), nullTime(r.ScheduledDate), nullID(r.RejectedByDealerID), id,
		); err != nil {
			return err
		}
		out = r
		return nil
	})
	return out, err
}
