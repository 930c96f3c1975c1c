package model

import (
	"slices"
	"time"
)

type WasteReportStatus string

const (
	WasteReportPending    WasteReportStatus = "pending"
	WasteReportScheduled  WasteReportStatus = "scheduled"
	WasteReportInProgress WasteReportStatus = "in_progress"
	WasteReportCompleted  WasteReportStatus = "completed"
	WasteReportRejected   WasteReportStatus = "rejected"
)

var wasteReportStatuses = []WasteReportStatus{
	WasteReportPending, WasteReportScheduled, WasteReportInProgress,
	WasteReportCompleted, WasteReportRejected,
}

func (s WasteReportStatus) Valid() bool { return slices.Contains(wasteReportStatuses, s) }

// WasteCategory is the structured classification a reporter picks when
// requesting a pickup. Impact analytics are computed from it.
type WasteCategory string

const (
	WastePlastic    WasteCategory = "plastic"
	WastePaper      WasteCategory = "paper"
	WasteGlass      WasteCategory = "glass"
	WasteMetal      WasteCategory = "metal"
	WasteOrganic    WasteCategory = "organic"
	WasteElectronic WasteCategory = "electronic"
	WasteMixed      WasteCategory = "mixed"
)

// WasteCategories lists every category in reporting order.
var WasteCategories = []WasteCategory{
	WastePlastic, WastePaper, WasteGlass, WasteMetal,
	WasteOrganic, WasteElectronic, WasteMixed,
}

func (c WasteCategory) Valid() bool { return slices.Contains(WasteCategories, c) }

// WasteReport is a customer's request for a waste pickup.
type WasteReport struct {
	ID               int64             `json:"id"`
	UserID           int64             `json:"userId"`
	Title            string            `json:"title"`
	Description      string            `json:"description"`
	Category         WasteCategory     `json:"category"`
	Location         Location          `json:"location"`
	Images           []string          `json:"images"`
	Status           WasteReportStatus `json:"status"`
	IsSegregated     bool              `json:"isSegregated"`
	AssignedDealerID *int64            `json:"assignedDealerId"`
	ScheduledDate    *time.Time        `json:"scheduledDate"`
	CreatedAt        time.Time         `json:"createdAt"`

	// RejectedByDealerID names the dealer who turned a report down. It is
	// only ever set on rejected reports; AssignedDealerID stays nil there.
	RejectedByDealerID *int64 `json:"rejectedByDealerId,omitempty"`
}

func (r WasteReport) Clone() WasteReport {
	r.Location = r.Location.clone()
	r.Images = cloneStrings(r.Images)
	r.AssignedDealerID = cloneID(r.AssignedDealerID)
	r.RejectedByDealerID = cloneID(r.RejectedByDealerID)
	r.ScheduledDate = cloneTime(r.ScheduledDate)
	return r
}

type WasteReportPatch struct {
	Title            *string
	Description      *string
	Category         *WasteCategory
	Location         *Location
	Images           []string
	IsSegregated     *bool
	Status           *WasteReportStatus
	AssignedDealerID *int64
	ScheduledDate    *time.Time

	RejectedByDealerID *int64
}

func (p WasteReportPatch) Apply(r *WasteReport) {
	if p.Title != nil {
		r.Title = *p.Title
	}
	if p.Description != nil {
		r.Description = *p.Description
	}
	if p.Category != nil {
		r.Category = *p.Category
	}
	if p.Location != nil {
		r.Location = p.Location.clone()
	}
	if p.Images != nil {
		r.Images = cloneStrings(p.Images)
	}
	if p.IsSegregated != nil {
		r.IsSegregated = *p.IsSegregated
	}
	if p.Status != nil {
		r.Status = *p.Status
	}
	if p.AssignedDealerID != nil {
		r.AssignedDealerID = cloneID(p.AssignedDealerID)
	}
	if p.ScheduledDate != nil {
		r.ScheduledDate = cloneTime(p.ScheduledDate)
	}
	if p.RejectedByDealerID != nil {
		r.RejectedByDealerID = cloneID(p.RejectedByDealerID)
	}
}

// WasteReportFilter narrows ListWasteReports. Zero fields match everything;
// a non-empty Statuses matches any of the listed statuses.
type WasteReportFilter struct {
	UserID           int64
	AssignedDealerID int64
	Statuses         []WasteReportStatus
}

func (f WasteReportFilter) Match(r *WasteReport) bool {
	if f.UserID != 0 && r.UserID != f.UserID {
		return false
	}
	if f.AssignedDealerID != 0 && (r.AssignedDealerID == nil || *r.AssignedDealerID != f.AssignedDealerID) {
		return false
	}
	return len(f.Statuses) == 0 || slices.Contains(f.Statuses, r.Status)
}
