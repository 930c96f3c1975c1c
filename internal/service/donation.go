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

// DonationService matches customer donations with organizations:
//
//	available → requested   organization asks for the item
//	requested → matched     donor accepts the request
//	requested → available   donor declines or organization withdraws
//	matched   → completed   organization confirms hand-over
type DonationService struct {
	Deps
}

func NewDonationService(d Deps) *DonationService {
	return &DonationService{Deps: d.withDefaults()}
}

type DonationInput struct {
	ItemName    string
	Description string
	Category    model.DonationCategory
	Images      []string
}

type DonationUpdate struct {
	ItemName    *string
	Description *string
	Category    *model.DonationCategory
	Images      []string
	Status      *model.DonationStatus
}

func (u DonationUpdate) editsDetails() bool {
	return u.ItemName != nil || u.Description != nil || u.Category != nil || u.Images != nil
}

func (s *DonationService) Create(ctx context.Context, actor *model.User, in DonationInput) (*model.Donation, error) {
	if err := policy.Authorize(policy.Request{Actor: actor, Resource: policy.Donation, Action: policy.Create}); err != nil {
		return nil, err
	}
	name, err := requireText("itemName", in.ItemName, MaxTitleLength)
	if err != nil {
		return nil, err
	}
	if !in.Category.Valid() {
		return nil, apperror.ValidationFailed("category", "unknown donation category")
	}
	if len(in.Images) > MaxImages {
		return nil, apperror.ValidationFailed("images", "too many images")
	}

	donation := &model.Donation{
		UserID:      actor.ID,
		ItemName:    name,
		Description: in.Description,
		Category:    in.Category,
		Images:      in.Images,
		Status:      model.DonationAvailable,
	}
	if err := s.Store.CreateDonation(ctx, donation); err != nil {
		s.Logger.Error("failed to create donation", slog.Int64("userID", actor.ID), errAttr(err))
		return nil, err
	}

	s.Logger.Info("donation created", slog.Int64("id", donation.ID), slog.Int64("userID", actor.ID))
	s.notify("donation_created", donation)
	return donation, nil
}

// List returns what the role may see: customers their own donations,
// organizations the available ones (or with claimedByMe those they have
// asked for), admins everything.
func (s *DonationService) List(ctx context.Context, actor *model.User, claimedByMe bool) ([]model.Donation, error) {
	filter, err := policy.ScopeDonations(actor, claimedByMe)
	if err != nil {
		return nil, err
	}
	return s.Store.ListDonations(ctx, filter)
}

// Available lists every donation still waiting for an organization.
func (s *DonationService) Available(ctx context.Context, actor *model.User) ([]model.Donation, error) {
	if err := policy.Authorize(policy.Request{Actor: actor, Resource: policy.Donation, Action: policy.List}); err != nil {
		return nil, err
	}
	return s.Store.ListDonations(ctx, policy.AvailableDonations())
}

func (s *DonationService) Get(ctx context.Context, actor *model.User, id int64) (*model.Donation, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	d, err := s.Store.GetDonation(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := authorizeDonation(actor, policy.Read, d); err != nil {
		return nil, err
	}
	return d, nil
}

func (s *DonationService) Update(ctx context.Context, actor *model.User, id int64, upd DonationUpdate) (*model.Donation, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}

	var (
		out       *model.Donation
		from      model.DonationStatus
		requester *int64
		awards    []award
	)
	err := s.Store.WithinTx(ctx, func(tx repository.Store) error {
		awards = nil
		d, err := tx.GetDonation(ctx, id)
		if err != nil {
			return err
		}
		if err := authorizeDonation(actor, policy.Update, d); err != nil {
			return err
		}
		from, requester = d.Status, d.RequestedByOrganizationID

		patch, err := donationDetailsPatch(actor, d, upd)
		if err != nil {
			return err
		}
		if upd.Status != nil && *upd.Status != d.Status {
			if err := donationTransition(actor, d, *upd.Status, &patch); err != nil {
				return err
			}
		}

		out, err = tx.UpdateDonation(ctx, id, patch)
		if err != nil {
			return err
		}
		if from != model.DonationCompleted && out.Status == model.DonationCompleted {
			awards = []award{
				{userID: out.UserID, points: PointsDonationDonor, reason: "donation_completed"},
				{userID: *out.RequestedByOrganizationID, points: PointsDonationOrganization, reason: "donation_received"},
			}
			return grant(ctx, tx, awards...)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	recordAwards(s.Metrics, awards)
	if from != out.Status {
		s.Metrics.Transition(string(policy.Donation), string(out.Status))
		s.Logger.Info("donation transitioned",
			slog.Int64("id", out.ID),
			slog.Int64("actorID", actor.ID),
			slog.String("from", string(from)),
			slog.String("to", string(out.Status)),
		)
	} else {
		s.Logger.Info("donation updated", slog.Int64("id", out.ID), slog.Int64("actorID", actor.ID))
	}
	// The organization whose request was declined or withdrawn no longer
	// appears on the record, so tell it directly.
	if requester != nil && out.RequestedByOrganizationID == nil {
		s.Notifier.Publish(UserChannel(*requester), "donation_released", out)
	}
	s.notify("donation_updated", out)
	return out, nil
}

func authorizeDonation(actor *model.User, action policy.Action, d *model.Donation) error {
	return policy.Authorize(policy.Request{
		Actor:      actor,
		Resource:   policy.Donation,
		Action:     action,
		OwnerID:    d.UserID,
		AssigneeID: d.RequestedByOrganizationID,
	})
}

func donationDetailsPatch(actor *model.User, d *model.Donation, upd DonationUpdate) (model.DonationPatch, error) {
	var patch model.DonationPatch
	if !upd.editsDetails() {
		return patch, nil
	}
	if actor.ID != d.UserID {
		return patch, apperror.Forbidden("only the donor can edit a donation's details")
	}
	if d.Status != model.DonationAvailable {
		return patch, apperror.ValidationFailed("status", "details can only be edited while the donation is available")
	}
	if upd.ItemName != nil {
		name, err := requireText("itemName", *upd.ItemName, MaxTitleLength)
		if err != nil {
			return patch, err
		}
		patch.ItemName = &name
	}
	if upd.Category != nil && !upd.Category.Valid() {
		return patch, apperror.ValidationFailed("category", "unknown donation category")
	}
	if len(upd.Images) > MaxImages {
		return patch, apperror.ValidationFailed("images", "too many images")
	}
	patch.Description = upd.Description
	patch.Category = upd.Category
	patch.Images = upd.Images
	return patch, nil
}

// donationTransition checks that actor is the party allowed to take the
// edge d.Status → to and sets the requester fields that go with it.
func donationTransition(actor *model.User, d *model.Donation, to model.DonationStatus, patch *model.DonationPatch) error {
	if !to.Valid() {
		return apperror.ValidationFailed("status", "unknown donation status")
	}
	if err := workflow.Donations.Check(d.Status, to); err != nil {
		return err
	}

	isDonor := actor.ID == d.UserID
	isRequester := assignedTo(d.RequestedByOrganizationID, actor.ID)

	switch to {
	case model.DonationRequested:
		if actor.Role != model.RoleOrganization {
			return apperror.Forbidden("only organizations can request a donation")
		}
		patch.RequestedByOrganizationID = &actor.ID
	case model.DonationMatched:
		if !isDonor {
			return apperror.Forbidden("only the donor can accept a request")
		}
	case model.DonationAvailable:
		if !isDonor && !isRequester {
			return apperror.Forbidden("only the donor or the requesting organization can release a request")
		}
		patch.ClearRequester = true
	case model.DonationCompleted:
		if !isRequester {
			return apperror.Forbidden("only the requesting organization can complete a donation")
		}
	}
	patch.Status = &to
	return nil
}

func (s *DonationService) notify(kind string, d *model.Donation) {
	s.Notifier.Publish(ChannelDonations, kind, d)
	s.Notifier.Publish(UserChannel(d.UserID), kind, d)
	if d.RequestedByOrganizationID != nil {
		s.Notifier.Publish(UserChannel(*d.RequestedByOrganizationID), kind, d)
	}
}
