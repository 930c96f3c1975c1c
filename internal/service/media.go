package service

import (
	"context"
	"log/slog"
	"strings"

	"github.com/greenpath/greenpath/internal/apperror"
	"github.com/greenpath/greenpath/internal/model"
	"github.com/greenpath/greenpath/internal/policy"
)

const (
	MaxContentLength = 100_000
	MaxTags          = 20
)

// MediaService publishes educational content. Drafts are visible only to
// their author and to admins.
type MediaService struct {
	Deps
}

func NewMediaService(d Deps) *MediaService {
	return &MediaService{Deps: d.withDefaults()}
}

type MediaInput struct {
	Title       string
	Description string
	ContentType model.ContentType
	Content     string
	Tags        []string
	Published   bool
}

type MediaUpdate struct {
	Title       *string
	Description *string
	ContentType *model.ContentType
	Content     *string
	Tags        []string
	Published   *bool
}

// MediaQuery narrows List. Mine lists the caller's own content, drafts
// included, and needs a session.
type MediaQuery struct {
	ContentType model.ContentType
	Tag         string
	Mine        bool
}

func (s *MediaService) List(ctx context.Context, actor *model.User, q MediaQuery) ([]model.MediaContent, error) {
	if err := policy.Authorize(policy.Request{Actor: actor, Resource: policy.Media, Action: policy.List}); err != nil {
		return nil, err
	}
	if q.ContentType != "" && !q.ContentType.Valid() {
		return nil, apperror.ValidationFailed("type", "unknown content type")
	}

	filter := model.MediaFilter{ContentType: q.ContentType, Tag: strings.TrimSpace(q.Tag), PublishedOnly: true}
	if q.Mine {
		if err := requireActor(actor); err != nil {
			return nil, err
		}
		filter.AuthorID = actor.ID
		filter.PublishedOnly = false
	}
	return s.Store.ListMedia(ctx, filter)
}

// Get hides drafts from everyone but their author and admins by reporting
// them as missing.
func (s *MediaService) Get(ctx context.Context, actor *model.User, id int64) (*model.MediaContent, error) {
	if err := policy.Authorize(policy.Request{Actor: actor, Resource: policy.Media, Action: policy.Read}); err != nil {
		return nil, err
	}
	m, err := s.Store.GetMedia(ctx, id)
	if err != nil {
		return nil, err
	}
	if !m.Published && !canSeeDraft(actor, m) {
		return nil, apperror.NotFound("media content", id)
	}
	return m, nil
}

func canSeeDraft(actor *model.User, m *model.MediaContent) bool {
	if actor == nil {
		return false
	}
	return actor.Role == model.RoleAdmin || assignedTo(m.AuthorID, actor.ID)
}

func (s *MediaService) Create(ctx context.Context, actor *model.User, in MediaInput) (*model.MediaContent, error) {
	if err := policy.Authorize(policy.Request{Actor: actor, Resource: policy.Media, Action: policy.Create}); err != nil {
		return nil, err
	}
	title, err := requireText("title", in.Title, MaxTitleLength)
	if err != nil {
		return nil, err
	}
	if !in.ContentType.Valid() {
		return nil, apperror.ValidationFailed("contentType", "unknown content type")
	}
	if len(in.Content) > MaxContentLength {
		return nil, apperror.ValidationFailed("content", "content is too long")
	}
	tags, err := cleanTags(in.Tags)
	if err != nil {
		return nil, err
	}

	m := &model.MediaContent{
		Title:       title,
		Description: in.Description,
		ContentType: in.ContentType,
		AuthorID:    &actor.ID,
		Content:     in.Content,
		Tags:        tags,
		Published:   in.Published,
	}
	if err := s.Store.CreateMedia(ctx, m); err != nil {
		s.Logger.Error("failed to create media content", slog.Int64("authorID", actor.ID), errAttr(err))
		return nil, err
	}
	s.Logger.Info("media content created",
		slog.Int64("id", m.ID),
		slog.Int64("authorID", actor.ID),
		slog.Bool("published", m.Published),
	)
	return m, nil
}

func (s *MediaService) Update(ctx context.Context, actor *model.User, id int64, upd MediaUpdate) (*model.MediaContent, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	m, err := s.Store.GetMedia(ctx, id)
	if err != nil {
		return nil, err
	}
	var owner int64
	if m.AuthorID != nil {
		owner = *m.AuthorID
	}
	if err := policy.Authorize(policy.Request{Actor: actor, Resource: policy.Media, Action: policy.Update, OwnerID: owner}); err != nil {
		return nil, err
	}

	patch := model.MediaPatch{
		Description: upd.Description,
		Content:     upd.Content,
		Published:   upd.Published,
	}
	if upd.Title != nil {
		title, err := requireText("title", *upd.Title, MaxTitleLength)
		if err != nil {
			return nil, err
		}
		patch.Title = &title
	}
	if upd.ContentType != nil {
		if !upd.ContentType.Valid() {
			return nil, apperror.ValidationFailed("contentType", "unknown content type")
		}
		patch.ContentType = upd.ContentType
	}
	if upd.Content != nil && len(*upd.Content) > MaxContentLength {
		return nil, apperror.ValidationFailed("content", "content is too long")
	}
	if upd.Tags != nil {
		if patch.Tags, err = cleanTags(upd.Tags); err != nil {
			return nil, err
		}
	}

	out, err := s.Store.UpdateMedia(ctx, id, patch)
	if err != nil {
		return nil, err
	}
	s.Logger.Info("media content updated", slog.Int64("id", id), slog.Int64("actorID", actor.ID))
	return out, nil
}

// cleanTags trims tags and drops empties and repeats, keeping first-seen
// order. The result is never nil.
func cleanTags(tags []string) ([]string, error) {
	out := make([]string, 0, len(tags))
	seen := make(map[string]bool, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	if len(out) > MaxTags {
		return nil, apperror.ValidationFailed("tags", "too many tags")
	}
	return out, nil
}
