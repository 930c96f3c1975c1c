package service

import (
	"context"
	"math"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/greenpath/greenpath/internal/model"
	"github.com/greenpath/greenpath/internal/policy"
)

const (
	DefaultLeaderboardSize = 10
	MaxLeaderboardSize     = 100

	// kgCO2PerTree is what one mature tree absorbs in a year.
	kgCO2PerTree = 21.77
)

// pickupWeight is the estimated mass of one completed pickup and the CO2e
// saved per kilogram kept out of landfill.
type pickupWeight struct {
	kg       float64
	co2PerKg float64
}

var pickupWeights = map[model.WasteCategory]pickupWeight{
	model.WastePlastic:    {kg: 5, co2PerKg: 1.5},
	model.WastePaper:      {kg: 8, co2PerKg: 0.9},
	model.WasteGlass:      {kg: 6, co2PerKg: 0.3},
	model.WasteMetal:      {kg: 4, co2PerKg: 4.0},
	model.WasteOrganic:    {kg: 10, co2PerKg: 0.5},
	model.WasteElectronic: {kg: 3, co2PerKg: 2.0},
	model.WasteMixed:      {kg: 7, co2PerKg: 0.4},
}

// donationKg is the estimated mass of one reused item.
var donationKg = map[model.DonationCategory]float64{
	model.DonationClothing:    1,
	model.DonationFurniture:   25,
	model.DonationElectronics: 5,
	model.DonationBooks:       1.5,
	model.DonationToys:        1,
	model.DonationKitchenware: 2,
	model.DonationOther:       2,
}

// AnalyticsService computes the read-only aggregate views.
type AnalyticsService struct {
	Deps
	stats *expirable.LRU[string, model.Stats]
}

// NewAnalyticsService caches Stats for statsTTL. A zero TTL disables the
// cache.
func NewAnalyticsService(d Deps, statsTTL time.Duration) *AnalyticsService {
	s := &AnalyticsService{Deps: d.withDefaults()}
	if statsTTL > 0 {
		s.stats = expirable.NewLRU[string, model.Stats](1, nil, statsTTL)
	}
	return s
}

const statsKey = "stats"

// Stats returns the landing page counters. They may be up to one cache TTL
// stale.
func (s *AnalyticsService) Stats(ctx context.Context) (model.Stats, error) {
	if s.stats != nil {
		if st, ok := s.stats.Get(statsKey); ok {
			return st, nil
		}
	}
	st, err := s.Store.Stats(ctx)
	if err != nil {
		return model.Stats{}, err
	}
	if s.stats != nil {
		s.stats.Add(statsKey, st)
	}
	return st, nil
}

// Leaderboard ranks non-admin users by social points. Ties keep
// registration order and still get distinct ranks.
func (s *AnalyticsService) Leaderboard(ctx context.Context, limit int) ([]model.LeaderboardEntry, error) {
	if limit <= 0 {
		limit = DefaultLeaderboardSize
	}
	if limit > MaxLeaderboardSize {
		limit = MaxLeaderboardSize
	}
	users, err := s.Store.Leaderboard(ctx, limit)
	if err != nil {
		return nil, err
	}

	out := make([]model.LeaderboardEntry, len(users))
	for i, u := range users {
		out[i] = model.LeaderboardEntry{
			Rank:         i + 1,
			UserID:       u.ID,
			Username:     u.Username,
			FullName:     u.FullName,
			Role:         u.Role,
			SocialPoints: u.SocialPoints,
			Badge:        model.BadgeFor(u.SocialPoints),
		}
	}
	return out, nil
}

// EnvironmentalImpact estimates what completed pickups and donations kept
// out of landfill, using the fixed per-category weights above. Only the
// waste category drives CO2 figures; donations count toward mass only.
func (s *AnalyticsService) EnvironmentalImpact(ctx context.Context, actor *model.User) (*model.EnvironmentalImpact, error) {
	if err := policy.Authorize(policy.Request{Actor: actor, Resource: policy.ImpactAnalytics, Action: policy.Read}); err != nil {
		return nil, err
	}

	reports, err := s.Store.ListWasteReports(ctx, model.WasteReportFilter{
		Statuses: []model.WasteReportStatus{model.WasteReportCompleted},
	})
	if err != nil {
		return nil, err
	}
	donations, err := s.Store.ListDonations(ctx, model.DonationFilter{
		Statuses: []model.DonationStatus{model.DonationCompleted},
	})
	if err != nil {
		return nil, err
	}

	pickups := make(map[model.WasteCategory]int)
	segregated := 0
	for _, r := range reports {
		pickups[r.Category]++
		if r.IsSegregated {
			segregated++
		}
	}
	reused := make(map[model.DonationCategory]int)
	for _, d := range donations {
		reused[d.Category]++
	}

	impact := &model.EnvironmentalImpact{
		Waste:             make([]model.CategoryImpact, 0, len(model.WasteCategories)),
		Donations:         make([]model.DonationImpact, 0, len(model.DonationCategories)),
		SegregatedPickups: segregated,
	}
	for _, c := range model.WasteCategories {
		w := pickupWeights[c]
		n := pickups[c]
		kg := float64(n) * w.kg
		ci := model.CategoryImpact{
			Category:          c,
			CompletedPickups:  n,
			KilogramsDiverted: round2(kg),
			CO2SavedKg:        round2(kg * w.co2PerKg),
		}
		impact.Waste = append(impact.Waste, ci)
		impact.TotalKgDiverted += kg
		impact.TotalCO2SavedKg += kg * w.co2PerKg
	}
	for _, c := range model.DonationCategories {
		n := reused[c]
		kg := float64(n) * donationKg[c]
		impact.Donations = append(impact.Donations, model.DonationImpact{
			Category:       c,
			ItemsReused:    n,
			KilogramsSaved: round2(kg),
		})
		impact.TotalKgDiverted += kg
	}

	impact.TreesEquivalent = round2(impact.TotalCO2SavedKg / kgCO2PerTree)
	impact.TotalKgDiverted = round2(impact.TotalKgDiverted)
	impact.TotalCO2SavedKg = round2(impact.TotalCO2SavedKg)
	if len(reports) > 0 {
		impact.SegregationRate = round2(float64(segregated) / float64(len(reports)))
	}
	return impact, nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
