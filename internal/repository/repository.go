// Package repository defines the storage contract the services depend on.
//
// The contract is engine-agnostic: the memory package implements it for
// tests and local development, the sqlite package for production. Both
// honour the same semantics:
//
//   - Create* assigns the next id for that entity type (strictly increasing,
//     never reused), stamps the creation time and fills defaults.
//   - Get* returns apperror.ErrNotFound on a miss and nothing else for a miss.
//   - List* returns matches in insertion order.
//   - Update* merges the patch into the stored record (last write wins) and
//     returns the result, or apperror.ErrNotFound leaving the store unchanged.
//   - Owner and assignee ids must reference existing users; violations are
//     reported as apperror.ErrValidation.
package repository

import (
	"context"

	"github.com/greenpath/greenpath/internal/model"
)

type UserRepository interface {
	CreateUser(ctx context.Context, user *model.User) error
	GetUser(ctx context.Context, id int64) (*model.User, error)
	GetUserByUsername(ctx context.Context, username string) (*model.User, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	GetUserByGitHubID(ctx context.Context, githubID int64) (*model.User, error)
	ListUsers(ctx context.Context, filter model.UserFilter) ([]model.User, error)
	UpdateUser(ctx context.Context, id int64, patch model.UserPatch) (*model.User, error)
	// AddSocialPoints adds delta to the user's score. Negative deltas are
	// rejected: points never decrease.
	AddSocialPoints(ctx context.Context, id int64, delta int) (*model.User, error)
}

type WasteReportRepository interface {
	CreateWasteReport(ctx context.Context, report *model.WasteReport) error
	GetWasteReport(ctx context.Context, id int64) (*model.WasteReport, error)
	ListWasteReports(ctx context.Context, filter model.WasteReportFilter) ([]model.WasteReport, error)
	UpdateWasteReport(ctx context.Context, id int64, patch model.WasteReportPatch) (*model.WasteReport, error)
}

type DonationRepository interface {
	CreateDonation(ctx context.Context, donation *model.Donation) error
	GetDonation(ctx context.Context, id int64) (*model.Donation, error)
	ListDonations(ctx context.Context, filter model.DonationFilter) ([]model.Donation, error)
	UpdateDonation(ctx context.Context, id int64, patch model.DonationPatch) (*model.Donation, error)
}

type EventRepository interface {
	CreateEvent(ctx context.Context, event *model.Event) error
	GetEvent(ctx context.Context, id int64) (*model.Event, error)
	ListEvents(ctx context.Context, filter model.EventFilter) ([]model.Event, error)
	UpdateEvent(ctx context.Context, id int64, patch model.EventPatch) (*model.Event, error)

	// AddEventParticipant returns apperror.ErrConflict when the user has
	// already joined the event.
	AddEventParticipant(ctx context.Context, p *model.EventParticipant) error
	GetEventParticipant(ctx context.Context, eventID, userID int64) (*model.EventParticipant, error)
	ListEventParticipants(ctx context.Context, eventID int64) ([]model.EventParticipant, error)
	RemoveEventParticipant(ctx context.Context, eventID, userID int64) error
}

type MediaRepository interface {
	CreateMedia(ctx context.Context, media *model.MediaContent) error
	GetMedia(ctx context.Context, id int64) (*model.MediaContent, error)
	ListMedia(ctx context.Context, filter model.MediaFilter) ([]model.MediaContent, error)
	UpdateMedia(ctx context.Context, id int64, patch model.MediaPatch) (*model.MediaContent, error)
}

type IssueRepository interface {
	CreateIssue(ctx context.Context, issue *model.Issue) error
	GetIssue(ctx context.Context, id int64) (*model.Issue, error)
	ListIssues(ctx context.Context, filter model.CaseFilter) ([]model.Issue, error)
	UpdateIssue(ctx context.Context, id int64, patch model.CasePatch) (*model.Issue, error)
}

type HelpRequestRepository interface {
	CreateHelpRequest(ctx context.Context, req *model.HelpRequest) error
	GetHelpRequest(ctx context.Context, id int64) (*model.HelpRequest, error)
	ListHelpRequests(ctx context.Context, filter model.CaseFilter) ([]model.HelpRequest, error)
	UpdateHelpRequest(ctx context.Context, id int64, patch model.CasePatch) (*model.HelpRequest, error)
}

type FeedbackRepository interface {
	CreateFeedback(ctx context.Context, fb *model.Feedback) error
	GetFeedback(ctx context.Context, id int64) (*model.Feedback, error)
	ListFeedback(ctx context.Context, filter model.FeedbackFilter) ([]model.Feedback, error)
	UpdateFeedback(ctx context.Context, id int64, patch model.FeedbackPatch) (*model.Feedback, error)
}

type AnalyticsRepository interface {
	Stats(ctx context.Context) (model.Stats, error)
	// Leaderboard returns up to limit non-admin users ordered by social
	// points descending, ties broken by registration order.
	Leaderboard(ctx context.Context, limit int) ([]model.User, error)
}

// Store is the full contract.
type Store interface {
	UserRepository
	WasteReportRepository
	DonationRepository
	EventRepository
	MediaRepository
	IssueRepository
	HelpRequestRepository
	FeedbackRepository
	AnalyticsRepository

	// WithinTx runs fn against a transactional view of the store. If fn
	// returns an error none of its writes are visible; otherwise all are.
	// Calling WithinTx on a transactional view runs fn in the same
	// transaction.
	WithinTx(ctx context.Context, fn func(tx Store) error) error

	Close() error
}
