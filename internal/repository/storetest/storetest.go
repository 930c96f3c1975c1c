// Package storetest is the behavioural contract every repository.Store must
// satisfy. Each implementation calls Run from its own tests so the memory
// and sqlite stores cannot drift apart.
package storetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/greenpath/greenpath/internal/apperror"
	"github.com/greenpath/greenpath/internal/model"
	"github.com/greenpath/greenpath/internal/repository"
)

// Factory returns a fresh, empty store.
type Factory func(t *testing.T) repository.Store

// Run executes the full contract against stores built by newStore.
func Run(t *testing.T, newStore Factory) {
	tests := []struct {
		name string
		fn   func(t *testing.T, s repository.Store)
	}{
		{"UserCreateAndLookup", testUserCreateAndLookup},
		{"UserDuplicates", testUserDuplicates},
		{"UserUpdate", testUserUpdate},
		{"SocialPointsNeverDecrease", testSocialPoints},
		{"IDsIncrease", testIDsIncrease},
		{"GetMissingIsNotFound", testGetMissing},
		{"UpdateMissingLeavesStoreUnchanged", testUpdateMissing},
		{"ReferentialIntegrity", testReferentialIntegrity},
		{"WasteReportLifecycle", testWasteReports},
		{"DonationClaimAndRelease", testDonations},
		{"EventParticipants", testEventParticipants},
		{"EventFilterAfter", testEventFilterAfter},
		{"MediaFilters", testMediaFilters},
		{"CaseFilters", testCaseFilters},
		{"Feedback", testFeedback},
		{"TxCommit", testTxCommit},
		{"TxRollback", testTxRollback},
		{"StatsAndLeaderboard", testStatsAndLeaderboard},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			s := newStore(t)
			t.Cleanup(func() { _ = s.Close() })
			tc.fn(t, s)
		})
	}
}

// === HELPERS ===

func newUser(t *testing.T, s repository.Store, username string, role model.Role) *model.User {
	t.Helper()
	u := &model.User{
		Username: username,
		Email:    username + "@example.com",
		Password: "hash",
		FullName: username,
		Role:     role,
	}
	require.NoError(t, s.CreateUser(context.Background(), u))
	return u
}

func isNotFound(err error) bool   { return errors.Is(err, apperror.ErrNotFound) }
func isValidation(err error) bool { return errors.Is(err, apperror.ErrValidation) }

// === USERS ===

func testUserCreateAndLookup(t *testing.T, s repository.Store) {
	ctx := context.Background()
	u := &model.User{
		Username: "asha",
		Email:    "asha@example.com",
		Password: "hash",
		Address:  model.Address{City: "Pune", PinCode: "411001"},
	}
	require.NoError(t, s.CreateUser(ctx, u))
	assert.NotZero(t, u.ID)
	assert.False(t, u.CreatedAt.IsZero())
	assert.Equal(t, model.RoleCustomer, u.Role, "role defaults to customer")

	got, err := s.GetUser(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "asha", got.Username)
	assert.Equal(t, "hash", got.Password)
	assert.Equal(t, "Pune", got.Address.City)
	assert.Nil(t, got.GitHubID)

	byName, err := s.GetUserByUsername(ctx, "ASHA")
	require.NoError(t, err, "username lookups ignore case")
	assert.Equal(t, u.ID, byName.ID)

	byEmail, err := s.GetUserByEmail(ctx, "Asha@Example.com")
	require.NoError(t, err)
	assert.Equal(t, u.ID, byEmail.ID)

	gh := &model.User{Username: "octo", Email: "octo@example.com", GitHubID: model.ID(583231)}
	require.NoError(t, s.CreateUser(ctx, gh))
	byGitHub, err := s.GetUserByGitHubID(ctx, 583231)
	require.NoError(t, err)
	assert.Equal(t, gh.ID, byGitHub.ID)

	_, err = s.GetUserByGitHubID(ctx, 1)
	assert.True(t, isNotFound(err))

	dealer := newUser(t, s, "dev", model.RoleDealer)
	dealers, err := s.ListUsers(ctx, model.UserFilter{Role: model.RoleDealer})
	require.NoError(t, err)
	require.Len(t, dealers, 1)
	assert.Equal(t, dealer.ID, dealers[0].ID)

	all, err := s.ListUsers(ctx, model.UserFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func testUserDuplicates(t *testing.T, s repository.Store) {
	ctx := context.Background()
	newUser(t, s, "ravi", model.RoleCustomer)

	err := s.CreateUser(ctx, &model.User{Username: "Ravi", Email: "other@example.com"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperror.ErrConflict), "got %v", err)

	err = s.CreateUser(ctx, &model.User{Username: "ravi2", Email: "RAVI@example.com"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperror.ErrConflict), "got %v", err)

	users, err := s.ListUsers(ctx, model.UserFilter{})
	require.NoError(t, err)
	assert.Len(t, users, 1)
}

func testUserUpdate(t *testing.T, s repository.Store) {
	ctx := context.Background()
	u := newUser(t, s, "meera", model.RoleCustomer)
	other := newUser(t, s, "kiran", model.RoleCustomer)

	name := "Meera Nair"
	role := model.RoleDealer
	got, err := s.UpdateUser(ctx, u.ID, model.UserPatch{FullName: &name, Role: &role})
	require.NoError(t, err)
	assert.Equal(t, name, got.FullName)
	assert.Equal(t, model.RoleDealer, got.Role)
	assert.Equal(t, u.Email, got.Email, "untouched fields survive")

	taken := other.Email
	_, err = s.UpdateUser(ctx, u.ID, model.UserPatch{Email: &taken})
	assert.True(t, errors.Is(err, apperror.ErrConflict), "got %v", err)
}

func testSocialPoints(t *testing.T, s repository.Store) {
	ctx := context.Background()
	u := newUser(t, s, "leela", model.RoleCustomer)

	got, err := s.AddSocialPoints(ctx, u.ID, 10)
	require.NoError(t, err)
	assert.Equal(t, 10, got.SocialPoints)

	got, err = s.AddSocialPoints(ctx, u.ID, 5)
	require.NoError(t, err)
	assert.Equal(t, 15, got.SocialPoints)

	_, err = s.AddSocialPoints(ctx, u.ID, -1)
	assert.True(t, isValidation(err))

	_, err = s.AddSocialPoints(ctx, 9999, 5)
	assert.True(t, isNotFound(err))

	stored, err := s.GetUser(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, 15, stored.SocialPoints)
}

// === IDENTITY AND ERRORS ===

func testIDsIncrease(t *testing.T, s repository.Store) {
	ctx := context.Background()
	u := newUser(t, s, "anil", model.RoleCustomer)

	var last int64
	for i := 0; i < 5; i++ {
		fb := &model.Feedback{UserID: u.ID, Subject: "s", Message: "m", Rating: 4}
		require.NoError(t, s.CreateFeedback(ctx, fb))
		assert.Greater(t, fb.ID, last)
		last = fb.ID
	}

	// Ids are never reused, even after a row is removed.
	org := newUser(t, s, "greenorg", model.RoleOrganization)
	e := &model.Event{OrganizerID: org.ID, Title: "Cleanup", Date: time.Now().Add(24 * time.Hour)}
	require.NoError(t, s.CreateEvent(ctx, e))
	first := &model.EventParticipant{EventID: e.ID, UserID: u.ID}
	require.NoError(t, s.AddEventParticipant(ctx, first))
	require.NoError(t, s.RemoveEventParticipant(ctx, e.ID, u.ID))
	second := &model.EventParticipant{EventID: e.ID, UserID: u.ID}
	require.NoError(t, s.AddEventParticipant(ctx, second))
	assert.Greater(t, second.ID, first.ID)
}

func testGetMissing(t *testing.T, s repository.Store) {
	ctx := context.Background()
	checks := map[string]func() error{
		"user":         func() error { _, err := s.GetUser(ctx, 42); return err },
		"waste report": func() error { _, err := s.GetWasteReport(ctx, 42); return err },
		"donation":     func() error { _, err := s.GetDonation(ctx, 42); return err },
		"event":        func() error { _, err := s.GetEvent(ctx, 42); return err },
		"participant":  func() error { _, err := s.GetEventParticipant(ctx, 42, 42); return err },
		"media":        func() error { _, err := s.GetMedia(ctx, 42); return err },
		"issue":        func() error { _, err := s.GetIssue(ctx, 42); return err },
		"help request": func() error { _, err := s.GetHelpRequest(ctx, 42); return err },
		"feedback":     func() error { _, err := s.GetFeedback(ctx, 42); return err },
	}
	for name, get := range checks {
		err := get()
		assert.True(t, isNotFound(err), "%s: got %v", name, err)
	}
}

func testUpdateMissing(t *testing.T, s repository.Store) {
	ctx := context.Background()
	u := newUser(t, s, "nisha", model.RoleCustomer)
	r := &model.WasteReport{UserID: u.ID, Title: "Bags", Category: model.WastePlastic}
	require.NoError(t, s.CreateWasteReport(ctx, r))

	status := model.WasteReportCompleted
	_, err := s.UpdateWasteReport(ctx, r.ID+100, model.WasteReportPatch{Status: &status})
	assert.True(t, isNotFound(err))

	title := "x"
	_, err = s.UpdateDonation(ctx, 7, model.DonationPatch{ItemName: &title})
	assert.True(t, isNotFound(err))
	_, err = s.UpdateEvent(ctx, 7, model.EventPatch{Title: &title})
	assert.True(t, isNotFound(err))
	_, err = s.UpdateMedia(ctx, 7, model.MediaPatch{Title: &title})
	assert.True(t, isNotFound(err))
	_, err = s.UpdateIssue(ctx, 7, model.CasePatch{Title: &title})
	assert.True(t, isNotFound(err))
	_, err = s.UpdateHelpRequest(ctx, 7, model.CasePatch{Title: &title})
	assert.True(t, isNotFound(err))
	_, err = s.UpdateUser(ctx, 77, model.UserPatch{FullName: &title})
	assert.True(t, isNotFound(err))

	reports, err := s.ListWasteReports(ctx, model.WasteReportFilter{})
	require.NoError(t, err)
	require.Len(t, reports, 1)
	assert.Equal(t, model.WasteReportPending, reports[0].Status)
}

func testReferentialIntegrity(t *testing.T, s repository.Store) {
	ctx := context.Background()

	err := s.CreateWasteReport(ctx, &model.WasteReport{UserID: 404, Title: "t", Category: model.WasteMixed})
	assert.True(t, isValidation(err), "got %v", err)

	err = s.CreateDonation(ctx, &model.Donation{UserID: 404, ItemName: "chair", Category: model.DonationFurniture})
	assert.True(t, isValidation(err), "got %v", err)

	err = s.CreateEvent(ctx, &model.Event{OrganizerID: 404, Title: "t", Date: time.Now()})
	assert.True(t, isValidation(err), "got %v", err)

	u := newUser(t, s, "sam", model.RoleCustomer)
	r := &model.WasteReport{UserID: u.ID, Title: "t", Category: model.WasteMixed}
	require.NoError(t, s.CreateWasteReport(ctx, r))
	_, err = s.UpdateWasteReport(ctx, r.ID, model.WasteReportPatch{AssignedDealerID: model.ID(404)})
	assert.True(t, isValidation(err), "got %v", err)

	got, err := s.GetWasteReport(ctx, r.ID)
	require.NoError(t, err)
	assert.Nil(t, got.AssignedDealerID)
}

// === ENTITIES ===

func testWasteReports(t *testing.T, s repository.Store) {
	ctx := context.Background()
	customer := newUser(t, s, "priya", model.RoleCustomer)
	dealer := newUser(t, s, "deepak", model.RoleDealer)

	r := &model.WasteReport{
		UserID:       customer.ID,
		Title:        "Old newspapers",
		Category:     model.WastePaper,
		IsSegregated: true,
		Location: model.Location{
			Address:     "12 MG Road",
			City:        "Bengaluru",
			Coordinates: &model.Coordinates{Lat: 12.97, Lng: 77.59},
		},
	}
	require.NoError(t, s.CreateWasteReport(ctx, r))
	assert.Equal(t, model.WasteReportPending, r.Status)
	assert.Equal(t, []string{}, r.Images)

	when := time.Date(2030, 1, 2, 10, 0, 0, 0, time.UTC)
	status := model.WasteReportScheduled
	got, err := s.UpdateWasteReport(ctx, r.ID, model.WasteReportPatch{
		Status:           &status,
		AssignedDealerID: model.ID(dealer.ID),
		ScheduledDate:    &when,
		Images:           []string{"a.jpg"},
	})
	require.NoError(t, err)
	assert.Equal(t, model.WasteReportScheduled, got.Status)
	require.NotNil(t, got.ScheduledDate)
	assert.True(t, when.Equal(*got.ScheduledDate))

	stored, err := s.GetWasteReport(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, "Old newspapers", stored.Title)
	assert.True(t, stored.IsSegregated)
	assert.Equal(t, []string{"a.jpg"}, stored.Images)
	require.NotNil(t, stored.Location.Coordinates)
	assert.InDelta(t, 12.97, stored.Location.Coordinates.Lat, 1e-9)
	require.NotNil(t, stored.AssignedDealerID)
	assert.Equal(t, dealer.ID, *stored.AssignedDealerID)

	other := &model.WasteReport{UserID: customer.ID, Title: "Bottles", Category: model.WasteGlass}
	require.NoError(t, s.CreateWasteReport(ctx, other))

	mine, err := s.ListWasteReports(ctx, model.WasteReportFilter{AssignedDealerID: dealer.ID})
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, r.ID, mine[0].ID)

	pending, err := s.ListWasteReports(ctx, model.WasteReportFilter{
		Statuses: []model.WasteReportStatus{model.WasteReportPending, model.WasteReportRejected},
	})
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, other.ID, pending[0].ID)

	rejected := model.WasteReportRejected
	_, err = s.UpdateWasteReport(ctx, other.ID, model.WasteReportPatch{
		Status:             &rejected,
		RejectedByDealerID: model.ID(dealer.ID),
	})
	require.NoError(t, err)
	stored, err = s.GetWasteReport(ctx, other.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.RejectedByDealerID)
	assert.Equal(t, dealer.ID, *stored.RejectedByDealerID)
	assert.Nil(t, stored.AssignedDealerID)

	all, err := s.ListWasteReports(ctx, model.WasteReportFilter{UserID: customer.ID})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, r.ID, all[0].ID, "insertion order")
}

func testDonations(t *testing.T, s repository.Store) {
	ctx := context.Background()
	donor := newUser(t, s, "farah", model.RoleCustomer)
	org := newUser(t, s, "helpinghands", model.RoleOrganization)

	d := &model.Donation{UserID: donor.ID, ItemName: "Winter coats", Category: model.DonationClothing}
	require.NoError(t, s.CreateDonation(ctx, d))
	assert.Equal(t, model.DonationAvailable, d.Status)

	requested := model.DonationRequested
	got, err := s.UpdateDonation(ctx, d.ID, model.DonationPatch{
		Status:                    &requested,
		RequestedByOrganizationID: model.ID(org.ID),
	})
	require.NoError(t, err)
	require.NotNil(t, got.RequestedByOrganizationID)

	claimed, err := s.ListDonations(ctx, model.DonationFilter{RequestedByOrganizationID: org.ID})
	require.NoError(t, err)
	assert.Len(t, claimed, 1)

	available := model.DonationAvailable
	got, err = s.UpdateDonation(ctx, d.ID, model.DonationPatch{Status: &available, ClearRequester: true})
	require.NoError(t, err)
	assert.Nil(t, got.RequestedByOrganizationID)

	stored, err := s.GetDonation(ctx, d.ID)
	require.NoError(t, err)
	assert.Nil(t, stored.RequestedByOrganizationID)
	assert.Equal(t, model.DonationAvailable, stored.Status)

	open, err := s.ListDonations(ctx, model.DonationFilter{Statuses: []model.DonationStatus{model.DonationAvailable}})
	require.NoError(t, err)
	assert.Len(t, open, 1)
}

func testEventParticipants(t *testing.T, s repository.Store) {
	ctx := context.Background()
	org := newUser(t, s, "ecoclub", model.RoleOrganization)
	a := newUser(t, s, "arjun", model.RoleCustomer)
	b := newUser(t, s, "bina", model.RoleCustomer)

	limit := 10
	e := &model.Event{
		OrganizerID:     org.ID,
		Title:           "Beach cleanup",
		Location:        "Juhu",
		Date:            time.Date(2030, 6, 5, 7, 0, 0, 0, time.UTC),
		MaxParticipants: &limit,
	}
	require.NoError(t, s.CreateEvent(ctx, e))
	assert.Equal(t, model.EventUpcoming, e.Status)

	stored, err := s.GetEvent(ctx, e.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.MaxParticipants)
	assert.Equal(t, 10, *stored.MaxParticipants)
	assert.Nil(t, stored.Image)
	assert.True(t, e.Date.Equal(stored.Date))

	require.NoError(t, s.AddEventParticipant(ctx, &model.EventParticipant{EventID: e.ID, UserID: a.ID}))
	require.NoError(t, s.AddEventParticipant(ctx, &model.EventParticipant{EventID: e.ID, UserID: b.ID}))

	err = s.AddEventParticipant(ctx, &model.EventParticipant{EventID: e.ID, UserID: a.ID})
	assert.True(t, errors.Is(err, apperror.ErrConflict), "got %v", err)

	err = s.AddEventParticipant(ctx, &model.EventParticipant{EventID: 999, UserID: a.ID})
	assert.True(t, isNotFound(err), "got %v", err)

	ps, err := s.ListEventParticipants(ctx, e.ID)
	require.NoError(t, err)
	require.Len(t, ps, 2)
	assert.Equal(t, a.ID, ps[0].UserID)

	p, err := s.GetEventParticipant(ctx, e.ID, b.ID)
	require.NoError(t, err)
	assert.Equal(t, e.ID, p.EventID)

	require.NoError(t, s.RemoveEventParticipant(ctx, e.ID, a.ID))
	err = s.RemoveEventParticipant(ctx, e.ID, a.ID)
	assert.True(t, isNotFound(err))

	ps, err = s.ListEventParticipants(ctx, e.ID)
	require.NoError(t, err)
	assert.Len(t, ps, 1)
}

func testEventFilterAfter(t *testing.T, s repository.Store) {
	ctx := context.Background()
	org := newUser(t, s, "treeplanters", model.RoleOrganization)
	now := time.Date(2030, 1, 1, 12, 0, 0, 0, time.UTC)

	past := &model.Event{OrganizerID: org.ID, Title: "past", Date: now.Add(-time.Hour)}
	future := &model.Event{OrganizerID: org.ID, Title: "future", Date: now.Add(90 * time.Minute)}
	cancelled := &model.Event{OrganizerID: org.ID, Title: "off", Date: now.Add(time.Hour), Status: model.EventCancelled}
	for _, e := range []*model.Event{past, future, cancelled} {
		require.NoError(t, s.CreateEvent(ctx, e))
	}

	got, err := s.ListEvents(ctx, model.EventFilter{
		After:    &now,
		Statuses: []model.EventStatus{model.EventUpcoming, model.EventOngoing},
	})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, future.ID, got[0].ID)

	byOrg, err := s.ListEvents(ctx, model.EventFilter{OrganizerID: org.ID})
	require.NoError(t, err)
	assert.Len(t, byOrg, 3)
}

func testMediaFilters(t *testing.T, s repository.Store) {
	ctx := context.Background()
	admin := newUser(t, s, "root", model.RoleAdmin)

	published := &model.MediaContent{
		Title: "Composting 101", ContentType: model.ContentArticle,
		AuthorID: model.ID(admin.ID), Tags: []string{"compost", "eco"}, Published: true,
	}
	draft := &model.MediaContent{Title: "Draft", ContentType: model.ContentBlog, Tags: []string{"eco-friendly"}}
	require.NoError(t, s.CreateMedia(ctx, published))
	require.NoError(t, s.CreateMedia(ctx, draft))
	stored, err := s.GetMedia(ctx, draft.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"eco-friendly"}, stored.Tags)
	assert.Nil(t, stored.AuthorID)

	public, err := s.ListMedia(ctx, model.MediaFilter{PublishedOnly: true})
	require.NoError(t, err)
	require.Len(t, public, 1)
	assert.Equal(t, published.ID, public[0].ID)

	tagged, err := s.ListMedia(ctx, model.MediaFilter{Tag: "eco"})
	require.NoError(t, err)
	require.Len(t, tagged, 1, "tag matches whole tags only")
	assert.Equal(t, published.ID, tagged[0].ID)

	blogs, err := s.ListMedia(ctx, model.MediaFilter{ContentType: model.ContentBlog})
	require.NoError(t, err)
	require.Len(t, blogs, 1)

	yes := true
	got, err := s.UpdateMedia(ctx, draft.ID, model.MediaPatch{Published: &yes})
	require.NoError(t, err)
	assert.True(t, got.Published)
}

func testCaseFilters(t *testing.T, s repository.Store) {
	ctx := context.Background()
	citizen := newUser(t, s, "vikram", model.RoleCustomer)
	orgA := newUser(t, s, "orga", model.RoleOrganization)
	orgB := newUser(t, s, "orgb", model.RoleOrganization)

	unassigned := &model.Issue{UserID: citizen.ID, Title: "Dumping", Category: model.IssueIllegalDumping}
	mine := &model.Issue{UserID: citizen.ID, Title: "Bin", Category: model.IssueOverflowingBin, AssignedOrganizationID: model.ID(orgA.ID)}
	theirs := &model.Issue{UserID: citizen.ID, Title: "Smoke", Category: model.IssuePollution, AssignedOrganizationID: model.ID(orgB.ID)}
	for _, i := range []*model.Issue{unassigned, mine, theirs} {
		require.NoError(t, s.CreateIssue(ctx, i))
		assert.Equal(t, model.CaseOpen, i.Status)
	}

	onlyMine, err := s.ListIssues(ctx, model.CaseFilter{AssignedOrganizationID: orgA.ID})
	require.NoError(t, err)
	require.Len(t, onlyMine, 1)
	assert.Equal(t, mine.ID, onlyMine[0].ID)

	visible, err := s.ListIssues(ctx, model.CaseFilter{AssignedOrganizationID: orgA.ID, IncludeUnassigned: true})
	require.NoError(t, err)
	require.Len(t, visible, 2)
	assert.Equal(t, unassigned.ID, visible[0].ID)
	assert.Equal(t, mine.ID, visible[1].ID)

	h := &model.HelpRequest{UserID: citizen.ID, Title: "Need bins"}
	require.NoError(t, s.CreateHelpRequest(ctx, h))
	assert.Equal(t, model.UrgencyMedium, h.Urgency)

	resolved := model.CaseResolved
	high := model.UrgencyHigh
	got, err := s.UpdateHelpRequest(ctx, h.ID, model.CasePatch{
		Status: &resolved, Urgency: &high, AssignedOrganizationID: model.ID(orgB.ID),
	})
	require.NoError(t, err)
	assert.Equal(t, model.CaseResolved, got.Status)
	assert.Equal(t, model.UrgencyHigh, got.Urgency)

	done, err := s.ListHelpRequests(ctx, model.CaseFilter{Statuses: []model.CaseStatus{model.CaseResolved}})
	require.NoError(t, err)
	assert.Len(t, done, 1)
}

func testFeedback(t *testing.T, s repository.Store) {
	ctx := context.Background()
	u := newUser(t, s, "zoya", model.RoleCustomer)

	fb := &model.Feedback{UserID: u.ID, Subject: "Great", Message: "Pickup was quick", Rating: 5}
	require.NoError(t, s.CreateFeedback(ctx, fb))
	assert.Equal(t, model.FeedbackSubmitted, fb.Status)

	reviewed := model.FeedbackReviewed
	got, err := s.UpdateFeedback(ctx, fb.ID, model.FeedbackPatch{Status: &reviewed})
	require.NoError(t, err)
	assert.Equal(t, model.FeedbackReviewed, got.Status)

	list, err := s.ListFeedback(ctx, model.FeedbackFilter{Status: model.FeedbackSubmitted})
	require.NoError(t, err)
	assert.Empty(t, list)

	list, err = s.ListFeedback(ctx, model.FeedbackFilter{UserID: u.ID})
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

// === TRANSACTIONS ===

func testTxCommit(t *testing.T, s repository.Store) {
	ctx := context.Background()
	u := newUser(t, s, "tara", model.RoleCustomer)
	r := &model.WasteReport{UserID: u.ID, Title: "t", Category: model.WasteMetal}
	require.NoError(t, s.CreateWasteReport(ctx, r))

	err := s.WithinTx(ctx, func(tx repository.Store) error {
		done := model.WasteReportCompleted
		if _, err := tx.UpdateWasteReport(ctx, r.ID, model.WasteReportPatch{Status: &done}); err != nil {
			return err
		}
		_, err := tx.AddSocialPoints(ctx, u.ID, 10)
		return err
	})
	require.NoError(t, err)

	got, err := s.GetWasteReport(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, model.WasteReportCompleted, got.Status)
	user, err := s.GetUser(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, 10, user.SocialPoints)
}

func testTxRollback(t *testing.T, s repository.Store) {
	ctx := context.Background()
	u := newUser(t, s, "uma", model.RoleCustomer)
	r := &model.WasteReport{UserID: u.ID, Title: "t", Category: model.WasteMetal}
	require.NoError(t, s.CreateWasteReport(ctx, r))

	boom := errors.New("boom")
	err := s.WithinTx(ctx, func(tx repository.Store) error {
		done := model.WasteReportCompleted
		if _, err := tx.UpdateWasteReport(ctx, r.ID, model.WasteReportPatch{Status: &done}); err != nil {
			return err
		}
		if _, err := tx.AddSocialPoints(ctx, u.ID, 10); err != nil {
			return err
		}
		// Nested calls join the outer transaction.
		if err := tx.WithinTx(ctx, func(inner repository.Store) error {
			return inner.CreateFeedback(ctx, &model.Feedback{UserID: u.ID, Subject: "s", Message: "m", Rating: 3})
		}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	got, err := s.GetWasteReport(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, model.WasteReportPending, got.Status)
	user, err := s.GetUser(ctx, u.ID)
	require.NoError(t, err)
	assert.Zero(t, user.SocialPoints)
	fbs, err := s.ListFeedback(ctx, model.FeedbackFilter{})
	require.NoError(t, err)
	assert.Empty(t, fbs)
}

// === ANALYTICS ===

func testStatsAndLeaderboard(t *testing.T, s repository.Store) {
	ctx := context.Background()
	admin := newUser(t, s, "admin", model.RoleAdmin)
	first := newUser(t, s, "first", model.RoleCustomer)
	second := newUser(t, s, "second", model.RoleDealer)
	third := newUser(t, s, "third", model.RoleOrganization)

	_, err := s.AddSocialPoints(ctx, admin.ID, 500)
	require.NoError(t, err)
	_, err = s.AddSocialPoints(ctx, first.ID, 20)
	require.NoError(t, err)
	_, err = s.AddSocialPoints(ctx, second.ID, 20)
	require.NoError(t, err)
	_, err = s.AddSocialPoints(ctx, third.ID, 30)
	require.NoError(t, err)

	board, err := s.Leaderboard(ctx, 10)
	require.NoError(t, err)
	require.Len(t, board, 3, "admins are excluded")
	assert.Equal(t, third.ID, board[0].ID)
	assert.Equal(t, first.ID, board[1].ID, "ties keep registration order")
	assert.Equal(t, second.ID, board[2].ID)

	top, err := s.Leaderboard(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, top, 1)

	done := &model.WasteReport{UserID: first.ID, Title: "t", Category: model.WastePlastic, Status: model.WasteReportCompleted}
	open := &model.WasteReport{UserID: first.ID, Title: "t", Category: model.WastePlastic}
	require.NoError(t, s.CreateWasteReport(ctx, done))
	require.NoError(t, s.CreateWasteReport(ctx, open))
	e := &model.Event{OrganizerID: third.ID, Title: "e", Date: time.Now()}
	require.NoError(t, s.CreateEvent(ctx, e))
	require.NoError(t, s.AddEventParticipant(ctx, &model.EventParticipant{EventID: e.ID, UserID: first.ID}))

	st, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, model.Stats{
		CompletedWasteReports: 1,
		CompletedDonations:    0,
		TotalEvents:           1,
		TotalUsers:            4,
		EventParticipations:   1,
	}, st)
}
