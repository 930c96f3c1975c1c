// Package workflow holds the status lifecycles of every entity that has one.
//
// A Machine is a fixed transition table. Services consult it before writing
// a new status so a request body can never move a record along an edge that
// does not exist, for example straight from pending to completed.
package workflow

import (
	"slices"

	"github.com/greenpath/greenpath/internal/apperror"
	"github.com/greenpath/greenpath/internal/model"
)

// Machine is an immutable transition table over the status type S.
type Machine[S ~string] struct {
	resource string
	edges    map[S][]S
}

// New builds a machine. States that appear only as targets are terminal.
func New[S ~string](resource string, edges map[S][]S) *Machine[S] {
	return &Machine[S]{resource: resource, edges: edges}
}

// Can reports whether from -> to is an edge of the table.
func (m *Machine[S]) Can(from, to S) bool {
	return slices.Contains(m.edges[from], to)
}

// Check returns nil for a legal edge or when the status is unchanged, and
// an apperror.InvalidTransition (409) otherwise.
func (m *Machine[S]) Check(from, to S) error {
	if from == to || m.Can(from, to) {
		return nil
	}
	return apperror.InvalidTransition(m.resource, string(from), string(to))
}

// Terminal reports whether s has no outgoing edges.
func (m *Machine[S]) Terminal(s S) bool {
	return len(m.edges[s]) == 0
}

// Next lists the states reachable from s in one step.
func (m *Machine[S]) Next(s S) []S {
	return slices.Clone(m.edges[s])
}

var WasteReports = New("waste report", map[model.WasteReportStatus][]model.WasteReportStatus{
	model.WasteReportPending:    {model.WasteReportScheduled, model.WasteReportRejected},
	model.WasteReportScheduled:  {model.WasteReportInProgress},
	model.WasteReportInProgress: {model.WasteReportCompleted},
})

// Donations: a declined or withdrawn request returns the item to available.
var Donations = New("donation", map[model.DonationStatus][]model.DonationStatus{
	model.DonationAvailable: {model.DonationRequested},
	model.DonationRequested: {model.DonationMatched, model.DonationAvailable},
	model.DonationMatched:   {model.DonationCompleted},
})

var Events = New("event", map[model.EventStatus][]model.EventStatus{
	model.EventUpcoming: {model.EventOngoing, model.EventCancelled},
	model.EventOngoing:  {model.EventCompleted, model.EventCancelled},
})

// Cases covers both issues and help requests.
var Cases = New("case", map[model.CaseStatus][]model.CaseStatus{
	model.CaseOpen:     {model.CaseAssigned, model.CaseClosed},
	model.CaseAssigned: {model.CaseResolved, model.CaseClosed},
})

var Feedback = New("feedback", map[model.FeedbackStatus][]model.FeedbackStatus{
	model.FeedbackSubmitted: {model.FeedbackReviewed},
})
