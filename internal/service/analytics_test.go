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

func TestAnalytics_StatsAreCached(t *testing.T) {
	f := newFixture(t)
	cached := NewAnalyticsService(f.deps, time.Minute)
	live := NewAnalyticsService(f.deps, 0)

	st, err := cached.Stats(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, 7, st.TotalUsers)

	f.user(t, "late", model.RoleCustomer)

	st, err = cached.Stats(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, 7, st.TotalUsers, "served from cache")

	st, err = live.Stats(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, 8, st.TotalUsers)
}

func TestAnalytics_Leaderboard(t *testing.T) {
	f := newFixture(t)
	svc := NewAnalyticsService(f.deps, 0)

	for u, pts := range map[*model.User]int{
		f.customer:  60,
		f.customer2: 60,
		f.dealer:    400,
		f.admin:     5000,
	} {
		_, err := f.store.AddSocialPoints(f.ctx, u.ID, pts)
		require.NoError(t, err)
	}

	board, err := svc.Leaderboard(f.ctx, 3)
	require.NoError(t, err)
	require.Len(t, board, 3)

	assert.Equal(t, 1, board[0].Rank)
	assert.Equal(t, f.dealer.ID, board[0].UserID)
	assert.Equal(t, model.BadgeTree, board[0].Badge)

	// Ties keep registration order with distinct ranks.
	assert.Equal(t, f.customer.ID, board[1].UserID)
	assert.Equal(t, 2, board[1].Rank)
	assert.Equal(t, f.customer2.ID, board[2].UserID)
	assert.Equal(t, 3, board[2].Rank)
	assert.Equal(t, model.BadgeSprout, board[2].Badge)

	full, err := svc.Leaderboard(f.ctx, 0)
	require.NoError(t, err)
	for _, e := range full {
		assert.NotEqual(t, f.admin.ID, e.UserID, "admins are not ranked")
	}
	assert.Len(t, full, 6)
}

func TestAnalytics_EnvironmentalImpact(t *testing.T) {
	f := newFixture(t)
	svc := NewAnalyticsService(f.deps, 0)

	for _, seg := range []bool{true, false} {
		require.NoError(t, f.store.CreateWasteReport(f.ctx, &model.WasteReport{
			UserID:           f.customer.ID,
			Title:            "bottles",
			Category:         model.WastePlastic,
			Location:         testLocation(),
			Status:           model.WasteReportCompleted,
			IsSegregated:     seg,
			AssignedDealerID: &f.dealer.ID,
		}))
	}
	require.NoError(t, f.store.CreateWasteReport(f.ctx, &model.WasteReport{
		UserID: f.customer.ID, Title: "glass", Category: model.WasteGlass,
		Location: testLocation(), Status: model.WasteReportPending,
	}))
	require.NoError(t, f.store.CreateDonation(f.ctx, &model.Donation{
		UserID: f.customer.ID, ItemName: "sofa", Category: model.DonationFurniture,
		Status: model.DonationCompleted, RequestedByOrganizationID: &f.org.ID,
	}))

	_, err := svc.EnvironmentalImpact(f.ctx, f.customer)
	assert.True(t, errors.Is(err, apperror.ErrForbidden))

	impact, err := svc.EnvironmentalImpact(f.ctx, f.org)
	require.NoError(t, err)

	require.Len(t, impact.Waste, len(model.WasteCategories))
	plastic := impact.Waste[0]
	assert.Equal(t, model.WastePlastic, plastic.Category)
	assert.Equal(t, 2, plastic.CompletedPickups)
	assert.InDelta(t, 10.0, plastic.KilogramsDiverted, 0.001)
	assert.InDelta(t, 15.0, plastic.CO2SavedKg, 0.001)

	assert.InDelta(t, 35.0, impact.TotalKgDiverted, 0.001)
	assert.InDelta(t, 15.0, impact.TotalCO2SavedKg, 0.001)
	assert.InDelta(t, 0.69, impact.TreesEquivalent, 0.001)
	assert.Equal(t, 1, impact.SegregatedPickups)
	assert.InDelta(t, 0.5, impact.SegregationRate, 0.001)
}
