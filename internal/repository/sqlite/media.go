package sqlite

import (
	"context"
	"database/sql"

	"github.com/greenpath/greenpath/internal/model"
)

const mediaColumns = `id, title, description, content_type, author_id, content, tags, published, created_at`

func scanMedia(s scanner) (model.MediaContent, error) {
	var (
		m        model.MediaContent
		authorID sql.NullInt64
		tags     string
	)
	err := s.Scan(
		&m.ID, &m.Title, &m.Description, &m.ContentType, &authorID,
		&m.Content, &tags, &m.Published, &m.CreatedAt,
	)
	if err != nil {
		return m, err
	}
	m.Tags = []string{}
	if err := decodeJSON(tags, &m.Tags); err != nil {
		return m, err
	}
	m.AuthorID = idPtr(authorID)
	m.CreatedAt = m.CreatedAt.UTC()
	return m, nil
}

func (db *DB) CreateMedia(ctx context.Context, m *model.MediaContent) error {
	if m.Tags == nil {
		m.Tags = []string{}
	}
	tags, err := encodeJSON(m.Tags)
	if err != nil {
		return err
	}
	createdAt := db.now()

	id, err := db.insert(ctx, "media content",
		`INSERT INTO media_content (title, description, content_type, author_id, content, tags, published, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		m.Title, m.Description, string(m.ContentType), nullID(m.AuthorID),
		m.Content, tags, m.Published, createdAt,
	)
	if err != nil {
		return err
	}
	m.ID = id
	m.CreatedAt = createdAt
	return nil
}

func (db *DB) GetMedia(ctx context.Context, id int64) (*model.MediaContent, error) {
	return queryOne(ctx, db, scanMedia, "media content", id,
		`SELECT `+mediaColumns+` FROM media_content WHERE id = ?`, id)
}

// ListMedia matches Tag against the decoded tag list rather than the JSON
// text, so "eco" never matches a post tagged "eco-friendly".
func (db *DB) ListMedia(ctx context.Context, f model.MediaFilter) ([]model.MediaContent, error) {
	var w where
	if f.PublishedOnly {
		w.raw("published = 1")
	}
	if f.ContentType != "" {
		w.eq("content_type", string(f.ContentType))
	}
	if f.AuthorID != 0 {
		w.eq("author_id", f.AuthorID)
	}
	if f.Tag != "" {
		w.raw("EXISTS (SELECT 1 FROM json_each(media_content.tags) WHERE json_each.value = ?)", f.Tag)
	}
	return queryList(ctx, db, scanMedia, "media content",
		`SELECT `+mediaColumns+` FROM media_content`+w.String()+` ORDER BY id`, w.args...)
}

func (db *DB) UpdateMedia(ctx context.Context, id int64, p model.MediaPatch) (*model.MediaContent, error) {
	var out *model.MediaContent
	err := db.atomically(ctx, func(tx *DB) error {
		m, err := tx.GetMedia(ctx, id)
		if err != nil {
			return err
		}
		p.Apply(m)

		tags, err := encodeJSON(m.Tags)
		if err != nil {
			return err
		}
		if _, err := tx.exec(ctx, "updating media content",
			`UPDATE media_content
			 SET title = ?, description = ?, content_type = ?, content = ?, tags = ?, published = ?
			 WHERE id = ?`,
			m.Title, m.Description, string(m.ContentType), m.Content, tags, m.Published, id,
		); err != nil {
			return err
		}
		out = m
		return nil
	})
	return out, err
}
