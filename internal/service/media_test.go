package service

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/greenpath/greenpath/internal/apperror"
	"github.com/greenpath/greenpath/internal/model"
)

func TestMedia_DraftsAreHidden(t *testing.T) {
	f := newFixture(t)
	svc := NewMediaService(f.deps)

	draft, err := svc.Create(f.ctx, f.org, MediaInput{
		Title:       "Composting at home",
		ContentType: model.ContentArticle,
		Content:     "Start with a bin.",
		Tags:        []string{" compost ", "compost", "home"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"compost", "home"}, draft.Tags)
	require.NotNil(t, draft.AuthorID)
	assert.Equal(t, f.org.ID, *draft.AuthorID)

	public, err := svc.List(f.ctx, nil, MediaQuery{})
	require.NoError(t, err)
	assert.Empty(t, public)

	_, err = svc.Get(f.ctx, nil, draft.ID)
	assert.True(t, errors.Is(err, apperror.ErrNotFound))
	_, err = svc.Get(f.ctx, f.customer, draft.ID)
	assert.True(t, errors.Is(err, apperror.ErrNotFound))

	got, err := svc.Get(f.ctx, f.org, draft.ID)
	require.NoError(t, err)
	assert.False(t, got.Published)

	mine, err := svc.List(f.ctx, f.org, MediaQuery{Mine: true})
	require.NoError(t, err)
	assert.Len(t, mine, 1)

	_, err = svc.List(f.ctx, nil, MediaQuery{Mine: true})
	assert.True(t, errors.Is(err, apperror.ErrUnauthorized))

	published := true
	_, err = svc.Update(f.ctx, f.customer, draft.ID, MediaUpdate{Published: &published})
	assert.True(t, errors.Is(err, apperror.ErrForbidden), "only the author publishes")

	_, err = svc.Update(f.ctx, f.org, draft.ID, MediaUpdate{Published: &published})
	require.NoError(t, err)

	public, err = svc.List(f.ctx, nil, MediaQuery{Tag: "compost"})
	require.NoError(t, err)
	assert.Len(t, public, 1)

	public, err = svc.List(f.ctx, nil, MediaQuery{ContentType: model.ContentVideo})
	require.NoError(t, err)
	assert.Empty(t, public)

	_, err = svc.List(f.ctx, nil, MediaQuery{ContentType: "podcast"})
	assert.True(t, errors.Is(err, apperror.ErrValidation))
}

func TestMedia_AnonymousCannotCreate(t *testing.T) {
	f := newFixture(t)
	svc := NewMediaService(f.deps)

	_, err := svc.Create(f.ctx, nil, MediaInput{Title: "x", ContentType: model.ContentBlog})
	assert.True(t, errors.Is(err, apperror.ErrUnauthorized))

	_, err = svc.Create(f.ctx, f.customer, MediaInput{Title: "x", ContentType: "podcast"})
	assert.True(t, errors.Is(err, apperror.ErrValidation))
}
