package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/greenpath/greenpath/internal/apperror"
	"github.com/greenpath/greenpath/internal/model"
	"github.com/greenpath/greenpath/internal/policy"
	"github.com/greenpath/greenpath/internal/repository"
)

// UserService is the admin's view of accounts.
type UserService struct {
	Deps
}

func NewUserService(d Deps) *UserService {
	return &UserService{Deps: d.withDefaults()}
}

func (s *UserService) List(ctx context.Context, actor *model.User, role model.Role) ([]model.User, error) {
	if err := policy.Authorize(policy.Request{Actor: actor, Resource: policy.User, Action: policy.List}); err != nil {
		return nil, err
	}
	if role != "" && !role.Valid() {
		return nil, apperror.ValidationFailed("role", "unknown role")
	}
	return s.Store.ListUsers(ctx, model.UserFilter{Role: role})
}

func (s *UserService) Get(ctx context.Context, actor *model.User, id int64) (*model.User, error) {
	if err := policy.Authorize(policy.Request{Actor: actor, Resource: policy.User, Action: policy.Read, OwnerID: id}); err != nil {
		return nil, err
	}
	return s.Store.GetUser(ctx, id)
}

// SetRole changes another user's role. Admins cannot demote themselves, so
// there is always a way back in.
func (s *UserService) SetRole(ctx context.Context, actor *model.User, id int64, role model.Role) (*model.User, error) {
	if err := policy.Authorize(policy.Request{Actor: actor, Resource: policy.User, Action: policy.Update, OwnerID: id}); err != nil {
		return nil, err
	}
	if !role.Valid() {
		return nil, apperror.ValidationFailed("role", "unknown role")
	}
	if id == actor.ID && role != model.RoleAdmin {
		return nil, apperror.ValidationFailed("role", "admins cannot change their own role")
	}

	var before, u *model.User
	err := s.Store.WithinTx(ctx, func(tx repository.Store) error {
		var err error
		before, err = tx.GetUser(ctx, id)
		if err != nil {
			return err
		}
		if before.Role == role {
			u = before
			return nil
		}
		if err := checkNoOpenAssignments(ctx, tx, before); err != nil {
			return err
		}
		u, err = tx.UpdateUser(ctx, id, model.UserPatch{Role: &role})
		return err
	})
	if err != nil {
		return nil, err
	}
	if before.Role == role {
		return u, nil
	}
	s.Logger.Info("user role changed",
		slog.Int64("id", id),
		slog.Int64("actorID", actor.ID),
		slog.String("from", string(before.Role)),
		slog.String("to", string(role)),
	)
	return u, nil
}

// checkNoOpenAssignments refuses a role change while the user still carries
// work their current role was assigned: pickups in scheduled or in_progress,
// donations in requested or matched, cases in assigned. Assignees must keep
// the role the assignment requires until the work is finished or released.
func checkNoOpenAssignments(ctx context.Context, tx repository.Store, u *model.User) error {
	reports, err := tx.ListWasteReports(ctx, model.WasteReportFilter{
		AssignedDealerID: u.ID,
		Statuses:         []model.WasteReportStatus{model.WasteReportScheduled, model.WasteReportInProgress},
	})
	if err != nil {
		return err
	}
	if len(reports) > 0 {
		return stillAssigned(u.ID, len(reports), "waste reports")
	}

	donations, err := tx.ListDonations(ctx, model.DonationFilter{
		RequestedByOrganizationID: u.ID,
		Statuses:                  []model.DonationStatus{model.DonationRequested, model.DonationMatched},
	})
	if err != nil {
		return err
	}
	if len(donations) > 0 {
		return stillAssigned(u.ID, len(donations), "donations")
	}

	assigned := model.CaseFilter{AssignedOrganizationID: u.ID, Statuses: []model.CaseStatus{model.CaseAssigned}}
	issues, err := tx.ListIssues(ctx, assigned)
	if err != nil {
		return err
	}
	if len(issues) > 0 {
		return stillAssigned(u.ID, len(issues), "issues")
	}
	helpRequests, err := tx.ListHelpRequests(ctx, assigned)
	if err != nil {
		return err
	}
	if len(helpRequests) > 0 {
		return stillAssigned(u.ID, len(helpRequests), "help requests")
	}
	return nil
}

func stillAssigned(id int64, n int, kind string) error {
	return &apperror.AppError{
		Err:     apperror.ErrConflict,
		Message: fmt.Sprintf("user %d still has %d open %s; finish or release them before changing the role", id, n, kind),
		Field:   "role",
	}
}
