package service

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/greenpath/greenpath/internal/apperror"
	"github.com/greenpath/greenpath/internal/model"
)

func TestFeedback(t *testing.T) {
	f := newFixture(t)
	svc := NewFeedbackService(f.deps)

	for _, rating := range []int{0, 6} {
		_, err := svc.Create(f.ctx, f.customer, FeedbackInput{Subject: "App", Message: "Nice", Rating: rating})
		assert.True(t, errors.Is(err, apperror.ErrValidation), "rating %d", rating)
	}

	fb, err := svc.Create(f.ctx, f.customer, FeedbackInput{Subject: "App", Message: "Pickups are fast", Rating: 5})
	require.NoError(t, err)
	assert.Equal(t, model.FeedbackSubmitted, fb.Status)
	_, err = svc.Create(f.ctx, f.dealer, FeedbackInput{Subject: "Routes", Message: "More dealers please", Rating: 3})
	require.NoError(t, err)

	own, err := svc.List(f.ctx, f.customer)
	require.NoError(t, err)
	assert.Len(t, own, 1)
	all, err := svc.List(f.ctx, f.admin)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	_, err = svc.Get(f.ctx, f.dealer, fb.ID)
	assert.True(t, errors.Is(err, apperror.ErrForbidden))

	_, err = svc.SetStatus(f.ctx, f.customer, fb.ID, model.FeedbackReviewed)
	assert.True(t, errors.Is(err, apperror.ErrForbidden))

	reviewed, err := svc.SetStatus(f.ctx, f.admin, fb.ID, model.FeedbackReviewed)
	require.NoError(t, err)
	assert.Equal(t, model.FeedbackReviewed, reviewed.Status)

	_, err = svc.SetStatus(f.ctx, f.admin, fb.ID, model.FeedbackSubmitted)
	assert.True(t, errors.Is(err, apperror.ErrConflict))
}

func TestFeedback_ConcurrentReviewsTransitionOnce(t *testing.T) {
	f := newFixture(t)
	var logs bytes.Buffer
	deps := f.deps
	deps.Logger = slog.New(slog.NewTextHandler(&logs, nil))
	svc := NewFeedbackService(deps)

	fb, err := svc.Create(f.ctx, f.customer, FeedbackInput{Subject: "App", Message: "Pickups are fast", Rating: 5})
	require.NoError(t, err)
	logs.Reset()

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.SetStatus(f.ctx, f.admin, fb.ID, model.FeedbackReviewed)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, strings.Count(logs.String(), "feedback reviewed"))
}
