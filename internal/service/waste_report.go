package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/greenpath/greenpath/internal/apperror"
	"github.com/greenpath/greenpath/internal/model"
	"github.com/greenpath/greenpath/internal/policy"
	"github.com/greenpath/greenpath/internal/repository"
	"github.com/greenpath/greenpath/internal/workflow"
)

const (
	MaxTitleLength       = 200
	MaxDescriptionLength = 5000
	MaxImages            = 10
)

// WasteReportService runs the pickup lifecycle:
//
//	pending → scheduled → in_progress → completed
//	pending → rejected
type WasteReportService struct {
	Deps
}

func NewWasteReportService(d Deps) *WasteReportService {
	return &WasteReportService{Deps: d.withDefaults()}
}

type WasteReportInput struct {
	Title        string
	Description  string
	Category     model.WasteCategory
	Location     model.Location
	Images       []string
	IsSegregated bool
}

// WasteReportUpdate is a partial update. Nil fields are left alone.
// Title through IsSegregated are details only the reporter may edit while
// the report is pending; Status, AssignedDealerID and ScheduledDate drive
// the lifecycle.
type WasteReportUpdate struct {
	Title        *string
	Description  *string
	Category     *model.WasteCategory
	Location     *model.Location
	Images       []string
	IsSegregated *bool

	Status           *model.WasteReportStatus
	AssignedDealerID *int64
	ScheduledDate    *time.Time
}

func (u WasteReportUpdate) editsDetails() bool {
	return u.Title != nil || u.Description != nil || u.Category != nil ||
		u.Location != nil || u.Images != nil || u.IsSegregated != nil
}

func (s *WasteReportService) Create(ctx context.Context, actor *model.User, in WasteReportInput) (*model.WasteReport, error) {
	if err := policy.Authorize(policy.Request{Actor: actor, Resource: policy.WasteReport, Action: policy.Create}); err != nil {
		return nil, err
	}

	title, err := requireText("title", in.Title, MaxTitleLength)
	if err != nil {
		return nil, err
	}
	if !in.Category.Valid() {
		return nil, apperror.ValidationFailed("category", "unknown waste category")
	}
	if err := validateLocation(in.Location); err != nil {
		return nil, err
	}
	if len(in.Images) > MaxImages {
		return nil, apperror.ValidationFailed("images", "too many images")
	}

	report := &model.WasteReport{
		UserID:       actor.ID,
		Title:        title,
		Description:  in.Description,
		Category:     in.Category,
		Location:     in.Location,
		Images:       in.Images,
		IsSegregated: in.IsSegregated,
		Status:       model.WasteReportPending,
	}
	if err := s.Store.CreateWasteReport(ctx, report); err != nil {
		s.Logger.Error("failed to create waste report", slog.Int64("userID", actor.ID), errAttr(err))
		return nil, err
	}

	s.Logger.Info("waste report created",
		slog.Int64("id", report.ID),
		slog.Int64("userID", report.UserID),
		slog.String("category", string(report.Category)),
	)
	s.notify("waste_report_created", report)
	return report, nil
}

// List returns the reports actor's role may see. assignedToMe switches a
// dealer from the pending queue to the pickups they have accepted.
func (s *WasteReportService) List(ctx context.Context, actor *model.User, assignedToMe bool) ([]model.WasteReport, error) {
	filter, err := policy.ScopeWasteReports(actor, assignedToMe)
	if err != nil {
		return nil, err
	}
	return s.Store.ListWasteReports(ctx, filter)
}

func (s *WasteReportService) Get(ctx context.Context, actor *model.User, id int64) (*model.WasteReport, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	report, err := s.Store.GetWasteReport(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := authorizeReport(actor, policy.Read, report); err != nil {
		return nil, err
	}
	return report, nil
}

// Update applies upd to report id. The read, the transition check, the
// write and any points it earns happen in one transaction.
func (s *WasteReportService) Update(ctx context.Context, actor *model.User, id int64, upd WasteReportUpdate) (*model.WasteReport, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}

	var (
		out    *model.WasteReport
		from   model.WasteReportStatus
		awards []award
	)
	err := s.Store.WithinTx(ctx, func(tx repository.Store) error {
		awards = nil
		report, err := tx.GetWasteReport(ctx, id)
		if err != nil {
			return err
		}
		if err := authorizeReport(actor, policy.Update, report); err != nil {
			return err
		}
		from = report.Status

		patch, err := s.detailsPatch(actor, report, upd)
		if err != nil {
			return err
		}
		if err := s.lifecyclePatch(ctx, tx, actor, report, upd, &patch); err != nil {
			return err
		}

		out, err = tx.UpdateWasteReport(ctx, id, patch)
		if err != nil {
			return err
		}

		if from != model.WasteReportCompleted && out.Status == model.WasteReportCompleted {
			awards = pickupAwards(out)
			return grant(ctx, tx, awards...)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	recordAwards(s.Metrics, awards)
	if from != out.Status {
		s.Metrics.Transition(string(policy.WasteReport), string(out.Status))
		s.Logger.Info("waste report transitioned",
			slog.Int64("id", out.ID),
			slog.Int64("actorID", actor.ID),
			slog.String("from", string(from)),
			slog.String("to", string(out.Status)),
		)
	} else {
		s.Logger.Info("waste report updated", slog.Int64("id", out.ID), slog.Int64("actorID", actor.ID))
	}
	s.notify("waste_report_updated", out)
	return out, nil
}

func authorizeReport(actor *model.User, action policy.Action, r *model.WasteReport) error {
	return policy.Authorize(policy.Request{
		Actor:      actor,
		Resource:   policy.WasteReport,
		Action:     action,
		OwnerID:    r.UserID,
		AssigneeID: r.AssignedDealerID,
	})
}

// detailsPatch validates edits to the descriptive fields.
func (s *WasteReportService) detailsPatch(actor *model.User, report *model.WasteReport, upd WasteReportUpdate) (model.WasteReportPatch, error) {
	var patch model.WasteReportPatch
	if !upd.editsDetails() {
		return patch, nil
	}
	if actor.ID != report.UserID && actor.Role != model.RoleAdmin {
		return patch, apperror.Forbidden("only the reporter can edit a waste report's details")
	}
	if report.Status != model.WasteReportPending {
		return patch, apperror.ValidationFailed("status", "details can only be edited while the report is pending")
	}

	if upd.Title != nil {
		title, err := requireText("title", *upd.Title, MaxTitleLength)
		if err != nil {
			return patch, err
		}
		patch.Title = &title
	}
	if upd.Category != nil && !upd.Category.Valid() {
		return patch, apperror.ValidationFailed("category", "unknown waste category")
	}
	if upd.Location != nil {
		if err := validateLocation(*upd.Location); err != nil {
			return patch, err
		}
	}
	if len(upd.Images) > MaxImages {
		return patch, apperror.ValidationFailed("images", "too many images")
	}
	patch.Description = upd.Description
	patch.Category = upd.Category
	patch.Location = upd.Location
	patch.Images = upd.Images
	patch.IsSegregated = upd.IsSegregated
	return patch, nil
}

// lifecyclePatch validates a status change and fills in the dealer and
// schedule fields it implies.
func (s *WasteReportService) lifecyclePatch(ctx context.Context, tx repository.Store, actor *model.User, report *model.WasteReport, upd WasteReportUpdate, patch *model.WasteReportPatch) error {
	to := report.Status
	if upd.Status != nil {
		to = *upd.Status
		if !to.Valid() {
			return apperror.ValidationFailed("status", "unknown waste report status")
		}
	}
	changing := to != report.Status

	if !changing {
		if upd.AssignedDealerID != nil {
			return apperror.ValidationFailed("assignedDealerId", "a dealer is assigned by accepting the report")
		}
		if upd.ScheduledDate != nil {
			return s.reschedule(actor, report, *upd.ScheduledDate, patch)
		}
		return nil
	}

	if actor.Role == model.RoleCustomer {
		return apperror.Forbidden("customers cannot change the status of a waste report")
	}
	if err := workflow.WasteReports.Check(report.Status, to); err != nil {
		return err
	}
	patch.Status = &to

	switch to {
	case model.WasteReportScheduled:
		if upd.ScheduledDate == nil {
			return apperror.ValidationFailed("scheduledDate", "a scheduled date is required to accept a report")
		}
		dealerID, err := s.acceptingDealer(ctx, tx, actor, upd.AssignedDealerID)
		if err != nil {
			return err
		}
		patch.AssignedDealerID = &dealerID
		patch.ScheduledDate = ptr(upd.ScheduledDate.UTC())

	case model.WasteReportRejected:
		if upd.AssignedDealerID != nil {
			return apperror.ValidationFailed("assignedDealerId", "a rejected report has no dealer")
		}
		// A dealer's rejection records who turned it down; the report
		// never gets an assignee.
		if actor.Role == model.RoleDealer {
			patch.RejectedByDealerID = &actor.ID
		}

	case model.WasteReportInProgress, model.WasteReportCompleted:
		if upd.AssignedDealerID != nil {
			return apperror.ValidationFailed("assignedDealerId", "the dealer cannot change after acceptance")
		}
		if actor.Role == model.RoleDealer && !assignedTo(report.AssignedDealerID, actor.ID) {
			return apperror.Forbidden("only the assigned dealer can progress this pickup")
		}
		if upd.ScheduledDate != nil {
			patch.ScheduledDate = ptr(upd.ScheduledDate.UTC())
		}
	}
	return nil
}

// acceptingDealer decides who takes the pickup: a dealer takes it
// themselves, an organization or admin must name a dealer.
func (s *WasteReportService) acceptingDealer(ctx context.Context, tx repository.Store, actor *model.User, requested *int64) (int64, error) {
	if actor.Role == model.RoleDealer {
		if requested != nil && *requested != actor.ID {
			return 0, apperror.Forbidden("dealers can only accept pickups for themselves")
		}
		return actor.ID, nil
	}
	if requested == nil {
		return 0, apperror.ValidationFailed("assignedDealerId", "name the dealer who will do the pickup")
	}
	dealer, err := requireRole(ctx, tx, *requested, model.RoleDealer, "assignedDealerId")
	if err != nil {
		return 0, err
	}
	return dealer.ID, nil
}

func (s *WasteReportService) reschedule(actor *model.User, report *model.WasteReport, when time.Time, patch *model.WasteReportPatch) error {
	if report.Status != model.WasteReportScheduled {
		return apperror.ValidationFailed("scheduledDate", "only a scheduled pickup can be rescheduled")
	}
	if actor.Role == model.RoleCustomer ||
		(actor.Role == model.RoleDealer && !assignedTo(report.AssignedDealerID, actor.ID)) {
		return apperror.Forbidden("only the assigned dealer can reschedule this pickup")
	}
	patch.ScheduledDate = ptr(when.UTC())
	return nil
}

func pickupAwards(r *model.WasteReport) []award {
	reporter := PointsPickupReporter
	if r.IsSegregated {
		reporter += PointsPickupSegregationBonus
	}
	awards := []award{{userID: r.UserID, points: reporter, reason: "waste_report_completed"}}
	if r.AssignedDealerID != nil {
		awards = append(awards, award{userID: *r.AssignedDealerID, points: PointsPickupDealer, reason: "pickup_completed"})
	}
	return awards
}

func (s *WasteReportService) notify(kind string, r *model.WasteReport) {
	s.Notifier.Publish(ChannelWasteReports, kind, r)
	s.Notifier.Publish(UserChannel(r.UserID), kind, r)
	if r.AssignedDealerID != nil {
		s.Notifier.Publish(UserChannel(*r.AssignedDealerID), kind, r)
	}
}

func assignedTo(id *int64, userID int64) bool {
	return id != nil && *id == userID
}

func validateLocation(l model.Location) error {
	fields := map[string]string{}
	if l.Address == "" {
		fields["location.address"] = "address is required"
	}
	if l.City == "" {
		fields["location.city"] = "city is required"
	}
	if c := l.Coordinates; c != nil && (c.Lat < -90 || c.Lat > 90 || c.Lng < -180 || c.Lng > 180) {
		fields["location.coordinates"] = "coordinates are out of range"
	}
	if len(fields) > 0 {
		return apperror.Invalid("location is invalid", fields)
	}
	return nil
}
