package service

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/greenpath/greenpath/internal/apperror"
	"github.com/greenpath/greenpath/internal/model"
)

func newReport(t *testing.T, f *fixture, svc *WasteReportService, owner *model.User) *model.WasteReport {
	t.Helper()
	r, err := svc.Create(f.ctx, owner, WasteReportInput{
		Title:        "Bottles behind the market",
		Category:     model.WastePlastic,
		Location:     testLocation(),
		IsSegregated: true,
	})
	require.NoError(t, err)
	return r
}

func status(s model.WasteReportStatus) *model.WasteReportStatus { return &s }

func TestWasteReport_PickupScenario(t *testing.T) {
	f := newFixture(t)
	svc := NewWasteReportService(f.deps)

	// A customer reports, a dealer finds it in the pending queue.
	report := newReport(t, f, svc, f.customer)
	assert.Equal(t, model.WasteReportPending, report.Status)
	assert.Nil(t, report.AssignedDealerID)

	queue, err := svc.List(f.ctx, f.dealer, false)
	require.NoError(t, err)
	require.Len(t, queue, 1)
	assert.Equal(t, report.ID, queue[0].ID)

	// The dealer accepts with a date.
	when := time.Date(2026, 11, 2, 9, 0, 0, 0, time.UTC)
	accepted, err := svc.Update(f.ctx, f.dealer, report.ID, WasteReportUpdate{
		Status:        status(model.WasteReportScheduled),
		ScheduledDate: &when,
	})
	require.NoError(t, err)
	assert.Equal(t, model.WasteReportScheduled, accepted.Status)
	require.NotNil(t, accepted.AssignedDealerID)
	assert.Equal(t, f.dealer.ID, *accepted.AssignedDealerID)
	assert.True(t, accepted.ScheduledDate.Equal(when))

	// The reporter still sees it, now scheduled.
	mine, err := svc.List(f.ctx, f.customer, false)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, model.WasteReportScheduled, mine[0].Status)

	// It has left the dealer queue and moved to the dealer's own list.
	queue, err = svc.List(f.ctx, f.dealer, false)
	require.NoError(t, err)
	assert.Empty(t, queue)
	assigned, err := svc.List(f.ctx, f.dealer, true)
	require.NoError(t, err)
	assert.Len(t, assigned, 1)

	assert.True(t, f.notifier.sent(ChannelWasteReports, "waste_report_updated"))
	assert.True(t, f.notifier.sent(UserChannel(f.customer.ID), "waste_report_updated"))
}

func TestWasteReport_CompletionAwardsPoints(t *testing.T) {
	f := newFixture(t)
	svc := NewWasteReportService(f.deps)
	report := newReport(t, f, svc, f.customer)
	when := time.Now().Add(24 * time.Hour)

	for _, step := range []WasteReportUpdate{
		{Status: status(model.WasteReportScheduled), ScheduledDate: &when},
		{Status: status(model.WasteReportInProgress)},
		{Status: status(model.WasteReportCompleted)},
	} {
		_, err := svc.Update(f.ctx, f.dealer, report.ID, step)
		require.NoError(t, err)
	}

	assert.Equal(t, PointsPickupReporter+PointsPickupSegregationBonus, f.points(t, f.customer))
	assert.Equal(t, PointsPickupDealer, f.points(t, f.dealer))
}

func TestWasteReport_IllegalTransitionsAreConflicts(t *testing.T) {
	f := newFixture(t)
	svc := NewWasteReportService(f.deps)
	report := newReport(t, f, svc, f.customer)

	_, err := svc.Update(f.ctx, f.dealer, report.ID, WasteReportUpdate{Status: status(model.WasteReportCompleted)})
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperror.ErrConflict))

	got, err := svc.Get(f.ctx, f.customer, report.ID)
	require.NoError(t, err)
	assert.Equal(t, model.WasteReportPending, got.Status, "failed update must leave the report unchanged")

	_, err = svc.Update(f.ctx, f.dealer, report.ID, WasteReportUpdate{Status: status(model.WasteReportRejected)})
	require.NoError(t, err)
	_, err = svc.Update(f.ctx, f.dealer, report.ID, WasteReportUpdate{Status: status(model.WasteReportPending)})
	assert.True(t, errors.Is(err, apperror.ErrConflict), "rejected is terminal")
}

func TestWasteReport_UpdateRules(t *testing.T) {
	when := time.Now().Add(48 * time.Hour)
	dealerID := func(f *fixture) *int64 { return &f.dealer.ID }

	tests := []struct {
		name    string
		actor   func(f *fixture) *model.User
		upd     func(f *fixture) WasteReportUpdate
		wantErr error
	}{
		{
			name:    "accept without a date",
			actor:   func(f *fixture) *model.User { return f.dealer },
			upd:     func(*fixture) WasteReportUpdate { return WasteReportUpdate{Status: status(model.WasteReportScheduled)} },
			wantErr: apperror.ErrValidation,
		},
		{
			name:  "dealer accepting for another dealer",
			actor: func(f *fixture) *model.User { return f.dealer2 },
			upd: func(f *fixture) WasteReportUpdate {
				return WasteReportUpdate{Status: status(model.WasteReportScheduled), ScheduledDate: &when, AssignedDealerID: dealerID(f)}
			},
			wantErr: apperror.ErrForbidden,
		},
		{
			name:  "organization must name a dealer",
			actor: func(f *fixture) *model.User { return f.org },
			upd: func(*fixture) WasteReportUpdate {
				return WasteReportUpdate{Status: status(model.WasteReportScheduled), ScheduledDate: &when}
			},
			wantErr: apperror.ErrValidation,
		},
		{
			name:  "organization naming a non-dealer",
			actor: func(f *fixture) *model.User { return f.org },
			upd: func(f *fixture) WasteReportUpdate {
				return WasteReportUpdate{Status: status(model.WasteReportScheduled), ScheduledDate: &when, AssignedDealerID: &f.customer2.ID}
			},
			wantErr: apperror.ErrValidation,
		},
		{
			name:  "organization naming a dealer",
			actor: func(f *fixture) *model.User { return f.org },
			upd: func(f *fixture) WasteReportUpdate {
				return WasteReportUpdate{Status: status(model.WasteReportScheduled), ScheduledDate: &when, AssignedDealerID: dealerID(f)}
			},
		},
		{
			name:    "customer changing status",
			actor:   func(f *fixture) *model.User { return f.customer },
			upd:     func(*fixture) WasteReportUpdate { return WasteReportUpdate{Status: status(model.WasteReportRejected)} },
			wantErr: apperror.ErrForbidden,
		},
		{
			name:    "another customer's report",
			actor:   func(f *fixture) *model.User { return f.customer2 },
			upd:     func(*fixture) WasteReportUpdate { return WasteReportUpdate{Title: ptr("mine now")} },
			wantErr: apperror.ErrForbidden,
		},
		{
			name:  "reporter edits details while pending",
			actor: func(f *fixture) *model.User { return f.customer },
			upd:   func(*fixture) WasteReportUpdate { return WasteReportUpdate{Title: ptr("Bottles and cans")} },
		},
		{
			name:    "dealer editing details",
			actor:   func(f *fixture) *model.User { return f.dealer },
			upd:     func(*fixture) WasteReportUpdate { return WasteReportUpdate{Title: ptr("dealer title")} },
			wantErr: apperror.ErrForbidden,
		},
		{
			name:    "assigning a dealer without accepting",
			actor:   func(f *fixture) *model.User { return f.admin },
			upd:     func(f *fixture) WasteReportUpdate { return WasteReportUpdate{AssignedDealerID: dealerID(f)} },
			wantErr: apperror.ErrValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			svc := NewWasteReportService(f.deps)
			report := newReport(t, f, svc, f.customer)

			_, err := svc.Update(f.ctx, tt.actor(f), report.ID, tt.upd(f))
			if tt.wantErr == nil {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
		})
	}
}

func TestWasteReport_OnlyAssignedDealerProgresses(t *testing.T) {
	f := newFixture(t)
	svc := NewWasteReportService(f.deps)
	report := newReport(t, f, svc, f.customer)
	when := time.Now().Add(time.Hour)

	_, err := svc.Update(f.ctx, f.dealer, report.ID, WasteReportUpdate{Status: status(model.WasteReportScheduled), ScheduledDate: &when})
	require.NoError(t, err)

	_, err = svc.Update(f.ctx, f.dealer2, report.ID, WasteReportUpdate{Status: status(model.WasteReportInProgress)})
	assert.True(t, errors.Is(err, apperror.ErrForbidden))

	// Organizations may move any pickup along.
	_, err = svc.Update(f.ctx, f.org, report.ID, WasteReportUpdate{Status: status(model.WasteReportInProgress)})
	assert.NoError(t, err)
}

func TestWasteReport_DealerFieldsFollowStatus(t *testing.T) {
	f := newFixture(t)
	svc := NewWasteReportService(f.deps)
	when := time.Now().Add(time.Hour)

	a := newReport(t, f, svc, f.customer)
	b := newReport(t, f, svc, f.customer)
	c := newReport(t, f, svc, f.customer)
	_, err := svc.Update(f.ctx, f.dealer, a.ID, WasteReportUpdate{Status: status(model.WasteReportScheduled), ScheduledDate: &when})
	require.NoError(t, err)
	byDealer, err := svc.Update(f.ctx, f.dealer2, b.ID, WasteReportUpdate{Status: status(model.WasteReportRejected)})
	require.NoError(t, err)
	byOrg, err := svc.Update(f.ctx, f.org, c.ID, WasteReportUpdate{Status: status(model.WasteReportRejected)})
	require.NoError(t, err)

	// The rejecting dealer is recorded apart from the assignee.
	require.NotNil(t, byDealer.RejectedByDealerID)
	assert.Equal(t, f.dealer2.ID, *byDealer.RejectedByDealerID)
	assert.Nil(t, byOrg.RejectedByDealerID)

	all, err := svc.List(f.ctx, f.admin, false)
	require.NoError(t, err)
	for _, r := range all {
		switch r.Status {
		case model.WasteReportScheduled, model.WasteReportInProgress, model.WasteReportCompleted:
			assert.NotNil(t, r.AssignedDealerID, "report %d is %s without a dealer", r.ID, r.Status)
		default:
			assert.Nil(t, r.AssignedDealerID, "report %d is %s with a dealer", r.ID, r.Status)
		}
	}
}

func TestWasteReport_ListScoping(t *testing.T) {
	f := newFixture(t)
	svc := NewWasteReportService(f.deps)
	when := time.Now().Add(time.Hour)

	mine := newReport(t, f, svc, f.customer)
	theirs := newReport(t, f, svc, f.customer2)
	done := newReport(t, f, svc, f.customer2)
	for _, st := range []model.WasteReportStatus{model.WasteReportScheduled, model.WasteReportInProgress, model.WasteReportCompleted} {
		_, err := svc.Update(f.ctx, f.dealer, done.ID, WasteReportUpdate{Status: status(st), ScheduledDate: &when})
		require.NoError(t, err)
	}

	ids := func(rs []model.WasteReport) []int64 {
		out := []int64{}
		for _, r := range rs {
			out = append(out, r.ID)
		}
		return out
	}

	got, err := svc.List(f.ctx, f.customer, false)
	require.NoError(t, err)
	assert.Equal(t, []int64{mine.ID}, ids(got), "customers see only their own")

	got, err = svc.List(f.ctx, f.dealer, false)
	require.NoError(t, err)
	assert.Equal(t, []int64{mine.ID, theirs.ID}, ids(got), "dealers see the pending queue")

	got, err = svc.List(f.ctx, f.org, false)
	require.NoError(t, err)
	assert.Equal(t, []int64{mine.ID, theirs.ID}, ids(got), "organizations see open work")

	got, err = svc.List(f.ctx, f.admin, false)
	require.NoError(t, err)
	assert.Len(t, got, 3)

	_, err = svc.List(f.ctx, nil, false)
	assert.True(t, errors.Is(err, apperror.ErrUnauthorized))
}

func TestWasteReport_CreateRules(t *testing.T) {
	f := newFixture(t)
	svc := NewWasteReportService(f.deps)

	_, err := svc.Create(f.ctx, f.dealer, WasteReportInput{Title: "x", Category: model.WasteGlass, Location: testLocation()})
	assert.True(t, errors.Is(err, apperror.ErrForbidden), "only customers report pickups")

	_, err = svc.Create(f.ctx, f.customer, WasteReportInput{Title: "x", Category: "rubble", Location: testLocation()})
	assert.True(t, errors.Is(err, apperror.ErrValidation))

	_, err = svc.Create(f.ctx, f.customer, WasteReportInput{Title: "x", Category: model.WasteGlass})
	var appErr *apperror.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Contains(t, appErr.Fields, "location.address")

	_, err = svc.Get(f.ctx, f.customer, 999)
	assert.True(t, errors.Is(err, apperror.ErrNotFound))
}
