package policy

import (
	"github.com/greenpath/greenpath/internal/apperror"
	"github.com/greenpath/greenpath/internal/model"
)

// ScopeWasteReports returns the reports a role may list. Customers see their
// own, dealers the pending queue (or, with assignedToMe, the pickups they
// accepted), organizations everything still open, admins everything.
func ScopeWasteReports(actor *model.User, assignedToMe bool) (model.WasteReportFilter, error) {
	if err := Authorize(Request{Actor: actor, Resource: WasteReport, Action: List}); err != nil {
		return model.WasteReportFilter{}, err
	}
	switch actor.Role {
	case model.RoleCustomer:
		return model.WasteReportFilter{UserID: actor.ID}, nil
	case model.RoleDealer:
		if assignedToMe {
			return model.WasteReportFilter{AssignedDealerID: actor.ID}, nil
		}
		return model.WasteReportFilter{Statuses: []model.WasteReportStatus{model.WasteReportPending}}, nil
	case model.RoleOrganization:
		return model.WasteReportFilter{Statuses: []model.WasteReportStatus{
			model.WasteReportPending, model.WasteReportScheduled, model.WasteReportInProgress,
		}}, nil
	case model.RoleAdmin:
		return model.WasteReportFilter{}, nil
	}
	return model.WasteReportFilter{}, apperror.Forbidden("unknown role")
}

// ScopeDonations returns the donations a role may list. With claimedByMe an
// organization sees the donations it has requested instead of the
// available ones.
func ScopeDonations(actor *model.User, claimedByMe bool) (model.DonationFilter, error) {
	if err := Authorize(Request{Actor: actor, Resource: Donation, Action: List}); err != nil {
		return model.DonationFilter{}, err
	}
	switch actor.Role {
	case model.RoleCustomer:
		return model.DonationFilter{UserID: actor.ID}, nil
	case model.RoleOrganization:
		if claimedByMe {
			return model.DonationFilter{RequestedByOrganizationID: actor.ID}, nil
		}
		return AvailableDonations(), nil
	case model.RoleAdmin:
		return model.DonationFilter{}, nil
	}
	return model.DonationFilter{}, apperror.Forbidden("unknown role")
}

// AvailableDonations is the public "available donations" view.
func AvailableDonations() model.DonationFilter {
	return model.DonationFilter{Statuses: []model.DonationStatus{model.DonationAvailable}}
}

func scopeCases(actor *model.User, resource Resource) (model.CaseFilter, error) {
	if err := Authorize(Request{Actor: actor, Resource: resource, Action: List}); err != nil {
		return model.CaseFilter{}, err
	}
	switch actor.Role {
	case model.RoleOrganization:
		return model.CaseFilter{AssignedOrganizationID: actor.ID, IncludeUnassigned: true}, nil
	case model.RoleAdmin:
		return model.CaseFilter{}, nil
	}
	return model.CaseFilter{UserID: actor.ID}, nil
}

func ScopeIssues(actor *model.User) (model.CaseFilter, error) {
	return scopeCases(actor, Issue)
}

func ScopeHelpRequests(actor *model.User) (model.CaseFilter, error) {
	return scopeCases(actor, HelpRequest)
}

// ScopeFeedback lets admins read every submission and everyone else their own.
func ScopeFeedback(actor *model.User) (model.FeedbackFilter, error) {
	if err := Authorize(Request{Actor: actor, Resource: Feedback, Action: List}); err != nil {
		return model.FeedbackFilter{}, err
	}
	if actor.Role == model.RoleAdmin {
		return model.FeedbackFilter{}, nil
	}
	return model.FeedbackFilter{UserID: actor.ID}, nil
}
