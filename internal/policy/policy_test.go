package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/greenpath/greenpath/internal/apperror"
	"github.com/greenpath/greenpath/internal/model"
)

var (
	customer = &model.User{ID: 1, Role: model.RoleCustomer}
	dealer   = &model.User{ID: 2, Role: model.RoleDealer}
	org      = &model.User{ID: 3, Role: model.RoleOrganization}
	admin    = &model.User{ID: 4, Role: model.RoleAdmin}
	other    = &model.User{ID: 5, Role: model.RoleCustomer}
)

func TestAuthorize(t *testing.T) {
	tests := []struct {
		name string
		req  Request
		want error
	}{
		// Anonymous callers reach public reads only.
		{"anon lists events", Request{Resource: Event, Action: List}, nil},
		{"anon reads media", Request{Resource: Media, Action: Read}, nil},
		{"anon lists reports", Request{Resource: WasteReport, Action: List}, apperror.ErrUnauthorized},
		{"anon creates media", Request{Resource: Media, Action: Create}, apperror.ErrUnauthorized},

		// Waste reports.
		{"customer creates report", Request{Actor: customer, Resource: WasteReport, Action: Create}, nil},
		{"dealer cannot create report", Request{Actor: dealer, Resource: WasteReport, Action: Create}, apperror.ErrForbidden},
		{"admin cannot create report", Request{Actor: admin, Resource: WasteReport, Action: Create}, apperror.ErrForbidden},
		{"customer updates own report", Request{Actor: customer, Resource: WasteReport, Action: Update, OwnerID: 1}, nil},
		{"customer cannot update others", Request{Actor: customer, Resource: WasteReport, Action: Update, OwnerID: 5}, apperror.ErrForbidden},
		{"customer cannot read others", Request{Actor: customer, Resource: WasteReport, Action: Read, OwnerID: 5}, apperror.ErrForbidden},
		{"dealer updates any report", Request{Actor: dealer, Resource: WasteReport, Action: Update, OwnerID: 1}, nil},
		{"org updates any report", Request{Actor: org, Resource: WasteReport, Action: Update, OwnerID: 1}, nil},

		// Donations.
		{"dealer cannot list donations", Request{Actor: dealer, Resource: Donation, Action: List}, apperror.ErrForbidden},
		{"dealer cannot read donation", Request{Actor: dealer, Resource: Donation, Action: Read, OwnerID: 1}, apperror.ErrForbidden},
		{"org requests donation", Request{Actor: org, Resource: Donation, Action: Update, OwnerID: 1}, nil},
		{"admin cannot update donation", Request{Actor: admin, Resource: Donation, Action: Update, OwnerID: 1}, apperror.ErrForbidden},
		{"org cannot create donation", Request{Actor: org, Resource: Donation, Action: Create}, apperror.ErrForbidden},

		// Events.
		{"org creates event", Request{Actor: org, Resource: Event, Action: Create}, nil},
		{"customer cannot create event", Request{Actor: customer, Resource: Event, Action: Create}, apperror.ErrForbidden},
		{"org updates own event", Request{Actor: org, Resource: Event, Action: Update, OwnerID: 3}, nil},
		{"org cannot update others event", Request{Actor: org, Resource: Event, Action: Update, OwnerID: 99}, apperror.ErrForbidden},
		{"admin cannot update event", Request{Actor: admin, Resource: Event, Action: Update, OwnerID: 3}, apperror.ErrForbidden},
		{"anyone joins event", Request{Actor: dealer, Resource: Participant, Action: Create}, nil},

		// Media.
		{"author edits media", Request{Actor: customer, Resource: Media, Action: Update, OwnerID: 1}, nil},
		{"non-author cannot edit media", Request{Actor: dealer, Resource: Media, Action: Update, OwnerID: 1}, apperror.ErrForbidden},
		{"admin edits any media", Request{Actor: admin, Resource: Media, Action: Update}, nil},

		// Issues and help requests.
		{"reporter reads own issue", Request{Actor: customer, Resource: Issue, Action: Read, OwnerID: 1}, nil},
		{"org reads unassigned issue", Request{Actor: org, Resource: Issue, Action: Read, OwnerID: 1}, nil},
		{"org reads its issue", Request{Actor: org, Resource: Issue, Action: Read, OwnerID: 1, AssigneeID: model.ID(3)}, nil},
		{"org cannot read another org's issue", Request{Actor: org, Resource: Issue, Action: Read, OwnerID: 1, AssigneeID: model.ID(8)}, apperror.ErrForbidden},
		{"dealer cannot update others help request", Request{Actor: dealer, Resource: HelpRequest, Action: Update, OwnerID: 1}, apperror.ErrForbidden},

		// Feedback, users, analytics.
		{"customer cannot review feedback", Request{Actor: customer, Resource: Feedback, Action: Update, OwnerID: 1}, apperror.ErrForbidden},
		{"admin reviews feedback", Request{Actor: admin, Resource: Feedback, Action: Update, OwnerID: 1}, nil},
		{"customer cannot list users", Request{Actor: customer, Resource: User, Action: List}, apperror.ErrForbidden},
		{"admin lists users", Request{Actor: admin, Resource: User, Action: List}, nil},
		{"org reads impact", Request{Actor: org, Resource: ImpactAnalytics, Action: Read}, nil},
		{"dealer cannot read impact", Request{Actor: dealer, Resource: ImpactAnalytics, Action: Read}, apperror.ErrForbidden},
		{"unknown action is forbidden", Request{Actor: admin, Resource: WasteReport, Action: Delete}, apperror.ErrForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Authorize(tt.req)
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestScopeWasteReports(t *testing.T) {
	f, err := ScopeWasteReports(customer, false)
	require.NoError(t, err)
	assert.Equal(t, model.WasteReportFilter{UserID: 1}, f)

	f, err = ScopeWasteReports(dealer, false)
	require.NoError(t, err)
	assert.Equal(t, []model.WasteReportStatus{model.WasteReportPending}, f.Statuses)
	assert.Zero(t, f.UserID)

	f, err = ScopeWasteReports(dealer, true)
	require.NoError(t, err)
	assert.Equal(t, int64(2), f.AssignedDealerID)

	f, err = ScopeWasteReports(org, false)
	require.NoError(t, err)
	assert.Len(t, f.Statuses, 3)
	assert.NotContains(t, f.Statuses, model.WasteReportCompleted)

	f, err = ScopeWasteReports(admin, false)
	require.NoError(t, err)
	assert.Equal(t, model.WasteReportFilter{}, f)

	_, err = ScopeWasteReports(nil, false)
	assert.ErrorIs(t, err, apperror.ErrUnauthorized)
}

func TestScopeDonations(t *testing.T) {
	_, err := ScopeDonations(dealer, false)
	assert.ErrorIs(t, err, apperror.ErrForbidden)

	f, err := ScopeDonations(customer, false)
	require.NoError(t, err)
	assert.Equal(t, int64(1), f.UserID)

	f, err = ScopeDonations(org, false)
	require.NoError(t, err)
	assert.Equal(t, AvailableDonations(), f)

	f, err = ScopeDonations(org, true)
	require.NoError(t, err)
	assert.Equal(t, int64(3), f.RequestedByOrganizationID)
}

func TestScopeCasesAndFeedback(t *testing.T) {
	f, err := ScopeIssues(org)
	require.NoError(t, err)
	assert.Equal(t, model.CaseFilter{AssignedOrganizationID: 3, IncludeUnassigned: true}, f)

	f, err = ScopeHelpRequests(other)
	require.NoError(t, err)
	assert.Equal(t, model.CaseFilter{UserID: 5}, f)

	fb, err := ScopeFeedback(admin)
	require.NoError(t, err)
	assert.Equal(t, model.FeedbackFilter{}, fb)

	fb, err = ScopeFeedback(dealer)
	require.NoError(t, err)
	assert.Equal(t, int64(2), fb.UserID)
}
