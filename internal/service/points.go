package service

import (
	"context"

	"github.com/greenpath/greenpath/internal/metrics"
	"github.com/greenpath/greenpath/internal/repository"
)

// Social points awarded when work is finished. Points only ever go up.
const (
	PointsPickupReporter         = 10
	PointsPickupSegregationBonus = 5
	PointsPickupDealer           = 5

	PointsDonationDonor        = 20
	PointsDonationOrganization = 5

	PointsEventParticipant = 15
	PointsEventOrganizer   = 10

	PointsCaseReporter     = 5
	PointsCaseOrganization = 10
)

// award is one grant of points to one user.
type award struct {
	userID int64
	points int
	reason string
}

// grant applies awards against tx. It must run inside the same WithinTx as
// the status change that earned them.
func grant(ctx context.Context, tx repository.UserRepository, awards ...award) error {
	for _, a := range awards {
		if a.points <= 0 {
			continue
		}
		if _, err := tx.AddSocialPoints(ctx, a.userID, a.points); err != nil {
			return err
		}
	}
	return nil
}

// recordAwards reports committed awards to the metrics registry. Call it
// only after the transaction has committed.
func recordAwards(m *metrics.Metrics, awards []award) {
	for _, a := range awards {
		m.PointsAwarded(a.reason, a.points)
	}
}
