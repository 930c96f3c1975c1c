package sqlite

import (
	"context"
	"database/sql"

	"github.com/greenpath/greenpath/internal/model"
)

const donationColumns = `id, user_id, item_name, description, category, images, status, requested_by_organization_id, created_at`

func scanDonation(s scanner) (model.Donation, error) {
	var (
		d      model.Donation
		images string
		orgID  sql.NullInt64
	)
	err := s.Scan(
		&d.ID, &d.UserID, &d.ItemName, &d.Description, &d.Category, &images,
		&d.Status, &orgID, &d.CreatedAt,
	)
	if err != nil {
		return d, err
	}
	d.Images = []string{}
	if err := decodeJSON(images, &d.Images); err != nil {
		return d, err
	}
	d.RequestedByOrganizationID = idPtr(orgID)
	d.CreatedAt = d.CreatedAt.UTC()
	return d, nil
}

func (db *DB) CreateDonation(ctx context.Context, d *model.Donation) error {
	if d.Status == "" {
		d.Status = model.DonationAvailable
	}
	if d.Images == nil {
		d.Images = []string{}
	}
	images, err := encodeJSON(d.Images)
	if err != nil {
		return err
	}
	createdAt := db.now()

	id, err := db.insert(ctx, "donation",
		`INSERT INTO donations (user_id, item_name, description, category, images, status, requested_by_organization_id, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		d.UserID, d.ItemName, d.Description, string(d.Category), images,
		string(d.Status), nullID(d.RequestedByOrganizationID), createdAt,
	)
	if err != nil {
		return err
	}
	d.ID = id
	d.CreatedAt = createdAt
	return nil
}

func (db *DB) GetDonation(ctx context.Context, id int64) (*model.Donation, error) {
	return queryOne(ctx, db, scanDonation, "donation", id,
		`SELECT `+donationColumns+` FROM donations WHERE id = ?`, id)
}

func (db *DB) ListDonations(ctx context.Context, f model.DonationFilter) ([]model.Donation, error) {
	var w where
	if f.UserID != 0 {
		w.eq("user_id", f.UserID)
	}
	if f.RequestedByOrganizationID != 0 {
		w.eq("requested_by_organization_id", f.RequestedByOrganizationID)
	}
	in(&w, "status", f.Statuses)
	return queryList(ctx, db, scanDonation, "donations",
		`SELECT `+donationColumns+` FROM donations`+w.String()+` ORDER BY id`, w.args...)
}

func (db *DB) UpdateDonation(ctx context.Context, id int64, p model.DonationPatch) (*model.Donation, error) {
	var out *model.Donation
	err := db.atomically(ctx, func(tx *DB) error {
		d, err := tx.GetDonation(ctx, id)
		if err != nil {
			return err
		}
		p.Apply(d)

		images, err := encodeJSON(d.Images)
		if err != nil {
			return err
		}
		if _, err := tx.exec(ctx, "updating donation",
			`UPDATE donations
			 SET item_name = ?, description = ?, category = ?, images = ?, status = ?, requested_by_organization_id = ?
			 WHERE id = ?`,
			d.ItemName, d.Description, string(d.Category), images, string(d.Status),
			nullID(d.RequestedByOrganizationID), id,
		); err != nil {
			return err
		}
		out = d
		return nil
	})
	return out, err
}
