package service

import (
	"context"
	"log/slog"

	"github.com/greenpath/greenpath/internal/apperror"
	"github.com/greenpath/greenpath/internal/model"
	"github.com/greenpath/greenpath/internal/policy"
	"github.com/greenpath/greenpath/internal/repository"
	"github.com/greenpath/greenpath/internal/workflow"
)

const MaxMessageLength = 5000

type FeedbackService struct {
	Deps
}

func NewFeedbackService(d Deps) *FeedbackService {
	return &FeedbackService{Deps: d.withDefaults()}
}

type FeedbackInput struct {
	Subject string
	Message string
	Rating  int
}

func (s *FeedbackService) Create(ctx context.Context, actor *model.User, in FeedbackInput) (*model.Feedback, error) {
	if err := policy.Authorize(policy.Request{Actor: actor, Resource: policy.Feedback, Action: policy.Create}); err != nil {
		return nil, err
	}
	subject, err := requireText("subject", in.Subject, MaxTitleLength)
	if err != nil {
		return nil, err
	}
	message, err := requireText("message", in.Message, MaxMessageLength)
	if err != nil {
		return nil, err
	}
	if in.Rating < 1 || in.Rating > 5 {
		return nil, apperror.ValidationFailed("rating", "rating must be between 1 and 5")
	}

	fb := &model.Feedback{
		UserID:  actor.ID,
		Subject: subject,
		Message: message,
		Rating:  in.Rating,
		Status:  model.FeedbackSubmitted,
	}
	if err := s.Store.CreateFeedback(ctx, fb); err != nil {
		s.Logger.Error("failed to create feedback", slog.Int64("userID", actor.ID), errAttr(err))
		return nil, err
	}
	s.Logger.Info("feedback submitted", slog.Int64("id", fb.ID), slog.Int("rating", fb.Rating))
	return fb, nil
}

// List returns every submission to admins and the caller's own to everyone
// else.
func (s *FeedbackService) List(ctx context.Context, actor *model.User) ([]model.Feedback, error) {
	filter, err := policy.ScopeFeedback(actor)
	if err != nil {
		return nil, err
	}
	return s.Store.ListFeedback(ctx, filter)
}

func (s *FeedbackService) Get(ctx context.Context, actor *model.User, id int64) (*model.Feedback, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	fb, err := s.Store.GetFeedback(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := policy.Authorize(policy.Request{Actor: actor, Resource: policy.Feedback, Action: policy.Read, OwnerID: fb.UserID}); err != nil {
		return nil, err
	}
	return fb, nil
}

// SetStatus is the admin review step.
func (s *FeedbackService) SetStatus(ctx context.Context, actor *model.User, id int64, status model.FeedbackStatus) (*model.Feedback, error) {
	if err := policy.Authorize(policy.Request{Actor: actor, Resource: policy.Feedback, Action: policy.Update}); err != nil {
		return nil, err
	}
	if !status.Valid() {
		return nil, apperror.ValidationFailed("status", "unknown feedback status")
	}
	var fb, out *model.Feedback
	err := s.Store.WithinTx(ctx, func(tx repository.Store) error {
		var err error
		fb, err = tx.GetFeedback(ctx, id)
		if err != nil {
			return err
		}
		if err := workflow.Feedback.Check(fb.Status, status); err != nil {
			return err
		}
		out, err = tx.UpdateFeedback(ctx, id, model.FeedbackPatch{Status: &status})
		return err
	})
	if err != nil {
		return nil, err
	}
	if fb.Status != out.Status {
		s.Metrics.Transition(string(policy.Feedback), string(out.Status))
		s.Logger.Info("feedback reviewed", slog.Int64("id", id), slog.Int64("actorID", actor.ID))
	}
	return out, nil
}
