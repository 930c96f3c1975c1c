package service

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/greenpath/greenpath/internal/apperror"
	"github.com/greenpath/greenpath/internal/model"
)

func donationStatus(s model.DonationStatus) *model.DonationStatus { return &s }

func newDonation(t *testing.T, f *fixture, svc *DonationService) *model.Donation {
	t.Helper()
	d, err := svc.Create(f.ctx, f.customer, DonationInput{
		ItemName: "Winter jackets",
		Category: model.DonationClothing,
	})
	require.NoError(t, err)
	return d
}

func TestDonation_RequestScenario(t *testing.T) {
	f := newFixture(t)
	svc := NewDonationService(f.deps)
	d := newDonation(t, f, svc)
	assert.Equal(t, model.DonationAvailable, d.Status)

	available, err := svc.Available(f.ctx, f.org)
	require.NoError(t, err)
	require.Len(t, available, 1)

	requested, err := svc.Update(f.ctx, f.org, d.ID, DonationUpdate{Status: donationStatus(model.DonationRequested)})
	require.NoError(t, err)
	assert.Equal(t, model.DonationRequested, requested.Status)
	require.NotNil(t, requested.RequestedByOrganizationID)
	assert.Equal(t, f.org.ID, *requested.RequestedByOrganizationID)

	available, err = svc.Available(f.ctx, f.org2)
	require.NoError(t, err)
	assert.Empty(t, available, "a requested donation leaves the available list")

	claimed, err := svc.List(f.ctx, f.org, true)
	require.NoError(t, err)
	assert.Len(t, claimed, 1)

	assert.True(t, f.notifier.sent(UserChannel(f.customer.ID), "donation_updated"))
}

func TestDonation_CompletionAwardsPoints(t *testing.T) {
	f := newFixture(t)
	svc := NewDonationService(f.deps)
	d := newDonation(t, f, svc)

	_, err := svc.Update(f.ctx, f.org, d.ID, DonationUpdate{Status: donationStatus(model.DonationRequested)})
	require.NoError(t, err)
	_, err = svc.Update(f.ctx, f.customer, d.ID, DonationUpdate{Status: donationStatus(model.DonationMatched)})
	require.NoError(t, err)

	// Only the requesting organization confirms the handover.
	_, err = svc.Update(f.ctx, f.customer, d.ID, DonationUpdate{Status: donationStatus(model.DonationCompleted)})
	assert.True(t, errors.Is(err, apperror.ErrForbidden))

	done, err := svc.Update(f.ctx, f.org, d.ID, DonationUpdate{Status: donationStatus(model.DonationCompleted)})
	require.NoError(t, err)
	assert.Equal(t, model.DonationCompleted, done.Status)

	assert.Equal(t, PointsDonationDonor, f.points(t, f.customer))
	assert.Equal(t, PointsDonationOrganization, f.points(t, f.org))
}

func TestDonation_DeclineReleasesRequest(t *testing.T) {
	f := newFixture(t)
	svc := NewDonationService(f.deps)
	d := newDonation(t, f, svc)

	_, err := svc.Update(f.ctx, f.org, d.ID, DonationUpdate{Status: donationStatus(model.DonationRequested)})
	require.NoError(t, err)

	released, err := svc.Update(f.ctx, f.customer, d.ID, DonationUpdate{Status: donationStatus(model.DonationAvailable)})
	require.NoError(t, err)
	assert.Equal(t, model.DonationAvailable, released.Status)
	assert.Nil(t, released.RequestedByOrganizationID)
	assert.True(t, f.notifier.sent(UserChannel(f.org.ID), "donation_released"))

	available, err := svc.Available(f.ctx, f.org2)
	require.NoError(t, err)
	assert.Len(t, available, 1, "a declined donation is back on offer")
}

func TestDonation_Rules(t *testing.T) {
	f := newFixture(t)
	svc := NewDonationService(f.deps)
	d := newDonation(t, f, svc)

	_, err := svc.Create(f.ctx, f.dealer, DonationInput{ItemName: "x", Category: model.DonationBooks})
	assert.True(t, errors.Is(err, apperror.ErrForbidden), "dealers cannot donate")

	_, err = svc.List(f.ctx, f.dealer, false)
	assert.True(t, errors.Is(err, apperror.ErrForbidden), "dealers cannot list donations")

	_, err = svc.Get(f.ctx, f.customer2, d.ID)
	assert.True(t, errors.Is(err, apperror.ErrForbidden))

	_, err = svc.Update(f.ctx, f.customer, d.ID, DonationUpdate{Status: donationStatus(model.DonationRequested)})
	assert.True(t, errors.Is(err, apperror.ErrForbidden), "donors cannot request their own donation")

	_, err = svc.Update(f.ctx, f.customer, d.ID, DonationUpdate{Status: donationStatus(model.DonationCompleted)})
	assert.True(t, errors.Is(err, apperror.ErrConflict), "available cannot jump to completed")

	_, err = svc.Create(f.ctx, f.customer, DonationInput{ItemName: "  ", Category: model.DonationBooks})
	assert.True(t, errors.Is(err, apperror.ErrValidation))

	name := "Wool jackets"
	edited, err := svc.Update(f.ctx, f.customer, d.ID, DonationUpdate{ItemName: &name})
	require.NoError(t, err)
	assert.Equal(t, name, edited.ItemName)

	_, err = svc.Update(f.ctx, f.org, d.ID, DonationUpdate{Status: donationStatus(model.DonationRequested)})
	require.NoError(t, err)
	_, err = svc.Update(f.ctx, f.customer, d.ID, DonationUpdate{ItemName: &name})
	assert.True(t, errors.Is(err, apperror.ErrValidation), "details freeze once requested")
}
