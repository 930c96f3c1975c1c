package model

// Stats are the headline counters shown on the landing page.
type Stats struct {
	CompletedWasteReports int `json:"completedWasteReports"`
	CompletedDonations    int `json:"completedDonations"`
	TotalEvents           int `json:"totalEvents"`
	TotalUsers            int `json:"totalUsers"`
	EventParticipations   int `json:"eventParticipations"`
}

type Badge string

const (
	BadgeSeedling Badge = "seedling"
	BadgeSprout   Badge = "sprout"
	BadgeSapling  Badge = "sapling"
	BadgeTree     Badge = "tree"
	BadgeForest   Badge = "forest"
)

// badgeThresholds is ordered from the highest tier down.
var badgeThresholds = []struct {
	min   int
	badge Badge
}{
	{1000, BadgeForest},
	{400, BadgeTree},
	{150, BadgeSapling},
	{50, BadgeSprout},
}

// BadgeFor maps a social point total to its badge tier.
func BadgeFor(points int) Badge {
	for _, t := range badgeThresholds {
		if points >= t.min {
			return t.badge
		}
	}
	return BadgeSeedling
}

type LeaderboardEntry struct {
	Rank         int    `json:"rank"`
	UserID       int64  `json:"userId"`
	Username     string `json:"username"`
	FullName     string `json:"fullName"`
	Role         Role   `json:"role"`
	SocialPoints int    `json:"socialPoints"`
	Badge        Badge  `json:"badge"`
}

type CategoryImpact struct {
	Category          WasteCategory `json:"category"`
	CompletedPickups  int           `json:"completedPickups"`
	KilogramsDiverted float64       `json:"kilogramsDiverted"`
	CO2SavedKg        float64       `json:"co2SavedKg"`
}

type DonationImpact struct {
	Category       DonationCategory `json:"category"`
	ItemsReused    int              `json:"itemsReused"`
	KilogramsSaved float64          `json:"kilogramsSaved"`
}

// EnvironmentalImpact aggregates completed pickups and donations.
type EnvironmentalImpact struct {
	Waste             []CategoryImpact `json:"waste"`
	Donations         []DonationImpact `json:"donations"`
	TotalKgDiverted   float64          `json:"totalKgDiverted"`
	TotalCO2SavedKg   float64          `json:"totalCo2SavedKg"`
	TreesEquivalent   float64          `json:"treesEquivalent"`
	SegregatedPickups int              `json:"segregatedPickups"`
	SegregationRate   float64          `json:"segregationRate"`
}
