package model

import (
	"slices"
	"time"
)

type DonationStatus string

const (
	DonationAvailable DonationStatus = "available"
	DonationRequested DonationStatus = "requested"
	DonationMatched   DonationStatus = "matched"
	DonationCompleted DonationStatus = "completed"
)

var donationStatuses = []DonationStatus{
	DonationAvailable, DonationRequested, DonationMatched, DonationCompleted,
}

func (s DonationStatus) Valid() bool { return slices.Contains(donationStatuses, s) }

type DonationCategory string

const (
	DonationClothing    DonationCategory = "clothing"
	DonationFurniture   DonationCategory = "furniture"
	DonationElectronics DonationCategory = "electronics"
	DonationBooks       DonationCategory = "books"
	DonationToys        DonationCategory = "toys"
	DonationKitchenware DonationCategory = "kitchenware"
	DonationOther       DonationCategory = "other"
)

var DonationCategories = []DonationCategory{
	DonationClothing, DonationFurniture, DonationElectronics, DonationBooks,
	DonationToys, DonationKitchenware, DonationOther,
}

func (c DonationCategory) Valid() bool { return slices.Contains(DonationCategories, c) }

// Donation is an item a customer offers for reuse.
type Donation struct {
	ID                        int64            `json:"id"`
	UserID                    int64            `json:"userId"`
	ItemName                  string           `json:"itemName"`
	Description               string           `json:"description"`
	Category                  DonationCategory `json:"category"`
	Images                    []string         `json:"images"`
	Status                    DonationStatus   `json:"status"`
	RequestedByOrganizationID *int64           `json:"requestedByOrganizationId"`
	CreatedAt                 time.Time        `json:"createdAt"`
}

func (d Donation) Clone() Donation {
	d.Images = cloneStrings(d.Images)
	d.RequestedByOrganizationID = cloneID(d.RequestedByOrganizationID)
	return d
}

// DonationPatch merges into a Donation. ClearRequester wins over
// RequestedByOrganizationID and resets the claim.
type DonationPatch struct {
	ItemName                  *string
	Description               *string
	Category                  *DonationCategory
	Images                    []string
	Status                    *DonationStatus
	RequestedByOrganizationID *int64
	ClearRequester            bool
}

func (p DonationPatch) Apply(d *Donation) {
	if p.ItemName != nil {
		d.ItemName = *p.ItemName
	}
	if p.Description != nil {
		d.Description = *p.Description
	}
	if p.Category != nil {
		d.Category = *p.Category
	}
	if p.Images != nil {
		d.Images = cloneStrings(p.Images)
	}
	if p.Status != nil {
		d.Status = *p.Status
	}
	if p.RequestedByOrganizationID != nil {
		d.RequestedByOrganizationID = cloneID(p.RequestedByOrganizationID)
	}
	if p.ClearRequester {
		d.RequestedByOrganizationID = nil
	}
}

type DonationFilter struct {
	UserID                    int64
	RequestedByOrganizationID int64
	Statuses                  []DonationStatus
}

func (f DonationFilter) Match(d *Donation) bool {
	if f.UserID != 0 && d.UserID != f.UserID {
		return false
	}
	if f.RequestedByOrganizationID != 0 &&
		(d.RequestedByOrganizationID == nil || *d.RequestedByOrganizationID != f.RequestedByOrganizationID) {
		return false
	}
	return len(f.Statuses) == 0 || slices.Contains(f.Statuses, d.Status)
}
