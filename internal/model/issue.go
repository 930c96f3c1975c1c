package model

import (
	"slices"
	"time"
)

// CaseStatus is the lifecycle shared by issues and help requests: a user
// opens one, an organization takes it on, then resolves or closes it.
type CaseStatus string

const (
	CaseOpen     CaseStatus = "open"
	CaseAssigned CaseStatus = "assigned"
	CaseResolved CaseStatus = "resolved"
	CaseClosed   CaseStatus = "closed"
)

var caseStatuses = []CaseStatus{CaseOpen, CaseAssigned, CaseResolved, CaseClosed}

func (s CaseStatus) Valid() bool { return slices.Contains(caseStatuses, s) }

type IssueCategory string

const (
	IssueIllegalDumping IssueCategory = "illegal_dumping"
	IssueOverflowingBin IssueCategory = "overflowing_bin"
	IssueMissedPickup   IssueCategory = "missed_pickup"
	IssuePollution      IssueCategory = "pollution"
	IssueOther          IssueCategory = "other"
)

var issueCategories = []IssueCategory{
	IssueIllegalDumping, IssueOverflowingBin, IssueMissedPickup, IssuePollution, IssueOther,
}

func (c IssueCategory) Valid() bool { return slices.Contains(issueCategories, c) }

// Issue is a civic problem reported by a user, such as an overflowing bin.
type Issue struct {
	ID                     int64         `json:"id"`
	UserID                 int64         `json:"userId"`
	Title                  string        `json:"title"`
	Description            string        `json:"description"`
	Category               IssueCategory `json:"category"`
	Location               Location      `json:"location"`
	Status                 CaseStatus    `json:"status"`
	AssignedOrganizationID *int64        `json:"assignedOrganizationId"`
	CreatedAt              time.Time     `json:"createdAt"`
}

func (i Issue) Clone() Issue {
	i.Location = i.Location.clone()
	i.AssignedOrganizationID = cloneID(i.AssignedOrganizationID)
	return i
}

type Urgency string

const (
	UrgencyLow    Urgency = "low"
	UrgencyMedium Urgency = "medium"
	UrgencyHigh   Urgency = "high"
)

func (u Urgency) Valid() bool {
	return u == UrgencyLow || u == UrgencyMedium || u == UrgencyHigh
}

// HelpRequest asks an organization for hands-on assistance.
type HelpRequest struct {
	ID                     int64      `json:"id"`
	UserID                 int64      `json:"userId"`
	Title                  string     `json:"title"`
	Description            string     `json:"description"`
	Urgency                Urgency    `json:"urgency"`
	Location               Location   `json:"location"`
	Status                 CaseStatus `json:"status"`
	AssignedOrganizationID *int64     `json:"assignedOrganizationId"`
	CreatedAt              time.Time  `json:"createdAt"`
}

func (h HelpRequest) Clone() HelpRequest {
	h.Location = h.Location.clone()
	h.AssignedOrganizationID = cloneID(h.AssignedOrganizationID)
	return h
}

// CasePatch updates either an Issue or a HelpRequest. Category applies to
// issues only and Urgency to help requests only.
type CasePatch struct {
	Title                  *string
	Description            *string
	Location               *Location
	Category               *IssueCategory
	Urgency                *Urgency
	Status                 *CaseStatus
	AssignedOrganizationID *int64
}

func (p CasePatch) ApplyIssue(i *Issue) {
	p.applyCommon(&i.Title, &i.Description, &i.Location, &i.Status, &i.AssignedOrganizationID)
	if p.Category != nil {
		i.Category = *p.Category
	}
}

func (p CasePatch) ApplyHelpRequest(h *HelpRequest) {
	p.applyCommon(&h.Title, &h.Description, &h.Location, &h.Status, &h.AssignedOrganizationID)
	if p.Urgency != nil {
		h.Urgency = *p.Urgency
	}
}

func (p CasePatch) applyCommon(title, desc *string, loc *Location, status *CaseStatus, org **int64) {
	if p.Title != nil {
		*title = *p.Title
	}
	if p.Description != nil {
		*desc = *p.Description
	}
	if p.Location != nil {
		*loc = p.Location.clone()
	}
	if p.Status != nil {
		*status = *p.Status
	}
	if p.AssignedOrganizationID != nil {
		*org = cloneID(p.AssignedOrganizationID)
	}
}

// CaseFilter narrows issue and help request listings. IncludeUnassigned
// widens an AssignedOrganizationID filter to also match open, unassigned
// cases so organizations can see what they could pick up.
type CaseFilter struct {
	UserID                 int64
	AssignedOrganizationID int64
	IncludeUnassigned      bool
	Statuses               []CaseStatus
}

func (f CaseFilter) match(userID int64, org *int64, status CaseStatus) bool {
	if f.UserID != 0 && userID != f.UserID {
		return false
	}
	if f.AssignedOrganizationID != 0 {
		mine := org != nil && *org == f.AssignedOrganizationID
		unassigned := f.IncludeUnassigned && org == nil
		if !mine && !unassigned {
			return false
		}
	}
	return len(f.Statuses) == 0 || slices.Contains(f.Statuses, status)
}

func (f CaseFilter) MatchIssue(i *Issue) bool {
	return f.match(i.UserID, i.AssignedOrganizationID, i.Status)
}

func (f CaseFilter) MatchHelpRequest(h *HelpRequest) bool {
	return f.match(h.UserID, h.AssignedOrganizationID, h.Status)
}
