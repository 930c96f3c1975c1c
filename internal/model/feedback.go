package model

import "time"

type FeedbackStatus string

const (
	FeedbackSubmitted FeedbackStatus = "submitted"
	FeedbackReviewed  FeedbackStatus = "reviewed"
)

func (s FeedbackStatus) Valid() bool { return s == FeedbackSubmitted || s == FeedbackReviewed }

// Feedback is a user's rating and comment about the platform.
type Feedback struct {
	ID        int64          `json:"id"`
	UserID    int64          `json:"userId"`
	Subject   string         `json:"subject"`
	Message   string         `json:"message"`
	Rating    int            `json:"rating"`
	Status    FeedbackStatus `json:"status"`
	CreatedAt time.Time      `json:"createdAt"`
}

type FeedbackPatch struct {
	Status *FeedbackStatus
}

func (p FeedbackPatch) Apply(f *Feedback) {
	if p.Status != nil {
		f.Status = *p.Status
	}
}

type FeedbackFilter struct {
	UserID int64
	Status FeedbackStatus
}

func (f FeedbackFilter) Match(fb *Feedback) bool {
	if f.UserID != 0 && fb.UserID != f.UserID {
		return false
	}
	return f.Status == "" || fb.Status == f.Status
}

func (f Feedback) Clone() Feedback { return f }
