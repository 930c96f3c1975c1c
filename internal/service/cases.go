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

// Issues and help requests share one lifecycle:
//
//	open     → assigned   an organization takes it on (admins name one)
//	assigned → resolved   the assigned organization finishes it
//	open | assigned → closed
//
// caseState is the part of either record the rules look at.
type caseState struct {
	id       int64
	ownerID  int64
	assignee *int64
	status   model.CaseStatus
}

// CaseUpdate is a partial update for an issue or help request. Category is
// read for issues only and Urgency for help requests only.
type CaseUpdate struct {
	Title       *string
	Description *string
	Location    *model.Location
	Category    *model.IssueCategory
	Urgency     *model.Urgency

	Status                 *model.CaseStatus
	AssignedOrganizationID *int64
}

func (u CaseUpdate) editsDetails() bool {
	return u.Title != nil || u.Description != nil || u.Location != nil ||
		u.Category != nil || u.Urgency != nil
}

type CaseInput struct {
	Title       string
	Description string
	Location    model.Location
	Category    model.IssueCategory
	Urgency     model.Urgency
}

func authorizeCase(actor *model.User, resource policy.Resource, action policy.Action, c caseState) error {
	return policy.Authorize(policy.Request{
		Actor:      actor,
		Resource:   resource,
		Action:     action,
		OwnerID:    c.ownerID,
		AssigneeID: c.assignee,
	})
}

// casePatch validates upd against the current state and builds the store
// patch, leaving the entity-specific Category/Urgency to the caller.
func casePatch(ctx context.Context, tx repository.Store, actor *model.User, c caseState, upd CaseUpdate) (model.CasePatch, error) {
	var patch model.CasePatch

	if upd.editsDetails() {
		if actor.ID != c.ownerID && actor.Role != model.RoleAdmin {
			return patch, apperror.Forbidden("only the reporter can edit the details")
		}
		if c.status != model.CaseOpen {
			return patch, apperror.ValidationFailed("status", "details can only be edited while the case is open")
		}
		if upd.Title != nil {
			title, err := requireText("title", *upd.Title, MaxTitleLength)
			if err != nil {
				return patch, err
			}
			patch.Title = &title
		}
		if upd.Location != nil {
			if err := validateLocation(*upd.Location); err != nil {
				return patch, err
			}
		}
		patch.Description = upd.Description
		patch.Location = upd.Location
	}

	to := c.status
	if upd.Status != nil {
		to = *upd.Status
		if !to.Valid() {
			return patch, apperror.ValidationFailed("status", "unknown status")
		}
	}
	if to == c.status {
		if upd.AssignedOrganizationID != nil && !assignedTo(c.assignee, *upd.AssignedOrganizationID) {
			return patch, apperror.ValidationFailed("assignedOrganizationId", "an organization is assigned by moving the case to assigned")
		}
		return patch, nil
	}

	if err := workflow.Cases.Check(c.status, to); err != nil {
		return patch, err
	}
	patch.Status = &to

	switch to {
	case model.CaseAssigned:
		orgID, err := assigningOrganization(ctx, tx, actor, upd.AssignedOrganizationID)
		if err != nil {
			return patch, err
		}
		patch.AssignedOrganizationID = &orgID
	case model.CaseResolved:
		if actor.Role != model.RoleAdmin && !assignedTo(c.assignee, actor.ID) {
			return patch, apperror.Forbidden("only the assigned organization can resolve this")
		}
	case model.CaseClosed:
		if actor.Role != model.RoleAdmin && actor.ID != c.ownerID && !assignedTo(c.assignee, actor.ID) {
			return patch, apperror.Forbidden("only the reporter or the assigned organization can close this")
		}
	}
	return patch, nil
}

func assigningOrganization(ctx context.Context, tx repository.Store, actor *model.User, requested *int64) (int64, error) {
	switch actor.Role {
	case model.RoleOrganization:
		if requested != nil && *requested != actor.ID {
			return 0, apperror.Forbidden("organizations can only assign themselves")
		}
		return actor.ID, nil
	case model.RoleAdmin:
		if requested == nil {
			return 0, apperror.ValidationFailed("assignedOrganizationId", "name the organization to assign")
		}
		org, err := requireRole(ctx, tx, *requested, model.RoleOrganization, "assignedOrganizationId")
		if err != nil {
			return 0, err
		}
		return org.ID, nil
	}
	return 0, apperror.Forbidden("only organizations and admins can assign a case")
}

func resolutionAwards(c caseState, reason string) []award {
	awards := []award{{userID: c.ownerID, points: PointsCaseReporter, reason: reason + "_reported"}}
	if c.assignee != nil {
		awards = append(awards, award{userID: *c.assignee, points: PointsCaseOrganization, reason: reason + "_resolved"})
	}
	return awards
}

func logCaseChange(logger *slog.Logger, resource policy.Resource, actorID int64, id int64, from, to model.CaseStatus) {
	if from == to {
		logger.Info(string(resource)+" updated", slog.Int64("id", id), slog.Int64("actorID", actorID))
		return
	}
	logger.Info(string(resource)+" transitioned",
		slog.Int64("id", id),
		slog.Int64("actorID", actorID),
		slog.String("from", string(from)),
		slog.String("to", string(to)),
	)
}

// IssueService handles civic issue reports.
type IssueService struct {
	Deps
}

func NewIssueService(d Deps) *IssueService {
	return &IssueService{Deps: d.withDefaults()}
}

func issueState(i *model.Issue) caseState {
	return caseState{id: i.ID, ownerID: i.UserID, assignee: i.AssignedOrganizationID, status: i.Status}
}

func (s *IssueService) Create(ctx context.Context, actor *model.User, in CaseInput) (*model.Issue, error) {
	if err := policy.Authorize(policy.Request{Actor: actor, Resource: policy.Issue, Action: policy.Create}); err != nil {
		return nil, err
	}
	title, err := requireText("title", in.Title, MaxTitleLength)
	if err != nil {
		return nil, err
	}
	if !in.Category.Valid() {
		return nil, apperror.ValidationFailed("category", "unknown issue category")
	}
	if err := validateLocation(in.Location); err != nil {
		return nil, err
	}

	issue := &model.Issue{
		UserID:      actor.ID,
		Title:       title,
		Description: in.Description,
		Category:    in.Category,
		Location:    in.Location,
		Status:      model.CaseOpen,
	}
	if err := s.Store.CreateIssue(ctx, issue); err != nil {
		s.Logger.Error("failed to create issue", slog.Int64("userID", actor.ID), errAttr(err))
		return nil, err
	}
	s.Logger.Info("issue created", slog.Int64("id", issue.ID), slog.Int64("userID", actor.ID))
	return issue, nil
}

func (s *IssueService) List(ctx context.Context, actor *model.User) ([]model.Issue, error) {
	filter, err := policy.ScopeIssues(actor)
	if err != nil {
		return nil, err
	}
	return s.Store.ListIssues(ctx, filter)
}

func (s *IssueService) Get(ctx context.Context, actor *model.User, id int64) (*model.Issue, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	issue, err := s.Store.GetIssue(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := authorizeCase(actor, policy.Issue, policy.Read, issueState(issue)); err != nil {
		return nil, err
	}
	return issue, nil
}

func (s *IssueService) Update(ctx context.Context, actor *model.User, id int64, upd CaseUpdate) (*model.Issue, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	var (
		out    *model.Issue
		from   model.CaseStatus
		awards []award
	)
	err := s.Store.WithinTx(ctx, func(tx repository.Store) error {
		awards = nil
		issue, err := tx.GetIssue(ctx, id)
		if err != nil {
			return err
		}
		state := issueState(issue)
		if err := authorizeCase(actor, policy.Issue, policy.Update, state); err != nil {
			return err
		}
		from = issue.Status

		patch, err := casePatch(ctx, tx, actor, state, upd)
		if err != nil {
			return err
		}
		if upd.Category != nil {
			if !upd.Category.Valid() {
				return apperror.ValidationFailed("category", "unknown issue category")
			}
			patch.Category = upd.Category
		}

		out, err = tx.UpdateIssue(ctx, id, patch)
		if err != nil {
			return err
		}
		if from != model.CaseResolved && out.Status == model.CaseResolved {
			awards = resolutionAwards(issueState(out), "issue")
			return grant(ctx, tx, awards...)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	recordAwards(s.Metrics, awards)
	if from != out.Status {
		s.Metrics.Transition(string(policy.Issue), string(out.Status))
	}
	logCaseChange(s.Logger, policy.Issue, actor.ID, out.ID, from, out.Status)
	s.Notifier.Publish(UserChannel(out.UserID), "issue_updated", out)
	return out, nil
}

// HelpRequestService handles requests for hands-on help.
type HelpRequestService struct {
	Deps
}

func NewHelpRequestService(d Deps) *HelpRequestService {
	return &HelpRequestService{Deps: d.withDefaults()}
}

func helpState(h *model.HelpRequest) caseState {
	return caseState{id: h.ID, ownerID: h.UserID, assignee: h.AssignedOrganizationID, status: h.Status}
}

func (s *HelpRequestService) Create(ctx context.Context, actor *model.User, in CaseInput) (*model.HelpRequest, error) {
	if err := policy.Authorize(policy.Request{Actor: actor, Resource: policy.HelpRequest, Action: policy.Create}); err != nil {
		return nil, err
	}
	title, err := requireText("title", in.Title, MaxTitleLength)
	if err != nil {
		return nil, err
	}
	urgency := in.Urgency
	if urgency == "" {
		urgency = model.UrgencyMedium
	}
	if !urgency.Valid() {
		return nil, apperror.ValidationFailed("urgency", "urgency must be low, medium or high")
	}
	if err := validateLocation(in.Location); err != nil {
		return nil, err
	}

	req := &model.HelpRequest{
		UserID:      actor.ID,
		Title:       title,
		Description: in.Description,
		Urgency:     urgency,
		Location:    in.Location,
		Status:      model.CaseOpen,
	}
	if err := s.Store.CreateHelpRequest(ctx, req); err != nil {
		s.Logger.Error("failed to create help request", slog.Int64("userID", actor.ID), errAttr(err))
		return nil, err
	}
	s.Logger.Info("help request created",
		slog.Int64("id", req.ID),
		slog.Int64("userID", actor.ID),
		slog.String("urgency", string(req.Urgency)),
	)
	return req, nil
}

func (s *HelpRequestService) List(ctx context.Context, actor *model.User) ([]model.HelpRequest, error) {
	filter, err := policy.ScopeHelpRequests(actor)
	if err != nil {
		return nil, err
	}
	return s.Store.ListHelpRequests(ctx, filter)
}

func (s *HelpRequestService) Get(ctx context.Context, actor *model.User, id int64) (*model.HelpRequest, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	req, err := s.Store.GetHelpRequest(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := authorizeCase(actor, policy.HelpRequest, policy.Read, helpState(req)); err != nil {
		return nil, err
	}
	return req, nil
}

func (s *HelpRequestService) Update(ctx context.Context, actor *model.User, id int64, upd CaseUpdate) (*model.HelpRequest, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	var (
		out    *model.HelpRequest
		from   model.CaseStatus
		awards []award
	)
	err := s.Store.WithinTx(ctx, func(tx repository.Store) error {
		awards = nil
		req, err := tx.GetHelpRequest(ctx, id)
		if err != nil {
			return err
		}
		state := helpState(req)
		if err := authorizeCase(actor, policy.HelpRequest, policy.Update, state); err != nil {
			return err
		}
		from = req.Status

		patch, err := casePatch(ctx, tx, actor, state, upd)
		if err != nil {
			return err
		}
		if upd.Urgency != nil {
			if !upd.Urgency.Valid() {
				return apperror.ValidationFailed("urgency", "urgency must be low, medium or high")
			}
			patch.Urgency = upd.Urgency
		}

		out, err = tx.UpdateHelpRequest(ctx, id, patch)
		if err != nil {
			return err
		}
		if from != model.CaseResolved && out.Status == model.CaseResolved {
			awards = resolutionAwards(helpState(out), "help_request")
			return grant(ctx, tx, awards...)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	recordAwards(s.Metrics, awards)
	if from != out.Status {
		s.Metrics.Transition(string(policy.HelpRequest), string(out.Status))
	}
	logCaseChange(s.Logger, policy.HelpRequest, actor.ID, out.ID, from, out.Status)
	s.Notifier.Publish(UserChannel(out.UserID), "help_request_updated", out)
	return out, nil
}
