// Package policy makes every authorization decision in one place.
//
// Handlers and services never compare roles themselves. They describe what
// is being attempted as a Request and call Authorize, or ask one of the
// Scope functions for the list filter a role is allowed to see.
package policy

import (
	"github.com/greenpath/greenpath/internal/apperror"
	"github.com/greenpath/greenpath/internal/model"
)

type Resource string

const (
	WasteReport     Resource = "waste report"
	Donation        Resource = "donation"
	Event           Resource = "event"
	Participant     Resource = "event participant"
	Media           Resource = "media content"
	Issue           Resource = "issue"
	HelpRequest     Resource = "help request"
	Feedback        Resource = "feedback"
	User            Resource = "user"
	ImpactAnalytics Resource = "environmental impact"
)

type Action string

const (
	List   Action = "list"
	Read   Action = "read"
	Create Action = "create"
	Update Action = "update"
	Delete Action = "delete"
)

// Scope says which records of a resource a role may touch.
type Scope uint8

const (
	// Own matches records whose owner is the actor.
	Own Scope = 1 << iota
	// Assigned matches records assigned to the actor.
	Assigned
	// Unassigned matches records nobody has taken on yet.
	Unassigned

	Any Scope = 0xff
)

// Request describes one attempted action. OwnerID and AssigneeID describe
// the target record and are ignored for List and Create.
type Request struct {
	Actor      *model.User
	Resource   Resource
	Action     Action
	OwnerID    int64
	AssigneeID *int64
}

type rule struct {
	public bool
	roles  map[model.Role]Scope
}

type key struct {
	resource Resource
	action   Action
}

var (
	everyone = map[model.Role]Scope{
		model.RoleCustomer: Any, model.RoleDealer: Any,
		model.RoleOrganization: Any, model.RoleAdmin: Any,
	}
	adminOnly = map[model.Role]Scope{model.RoleAdmin: Any}
)

// rules is the role table. A missing role means 403; a missing key means
// nobody may do it.
var rules = map[key]rule{
	{WasteReport, List}:   {roles: everyone},
	{WasteReport, Create}: {roles: map[model.Role]Scope{model.RoleCustomer: Any}},
	{WasteReport, Read}: {roles: map[model.Role]Scope{
		model.RoleCustomer: Own, model.RoleDealer: Any,
		model.RoleOrganization: Any, model.RoleAdmin: Any,
	}},
	{WasteReport, Update}: {roles: map[model.Role]Scope{
		model.RoleCustomer: Own, model.RoleDealer: Any,
		model.RoleOrganization: Any, model.RoleAdmin: Any,
	}},

	// Dealers have no path to donations at all.
	{Donation, List}: {roles: map[model.Role]Scope{
		model.RoleCustomer: Any, model.RoleOrganization: Any, model.RoleAdmin: Any,
	}},
	{Donation, Create}: {roles: map[model.Role]Scope{model.RoleCustomer: Any}},
	{Donation, Read}: {roles: map[model.Role]Scope{
		model.RoleCustomer: Own, model.RoleOrganization: Any, model.RoleAdmin: Any,
	}},
	{Donation, Update}: {roles: map[model.Role]Scope{
		model.RoleCustomer: Own, model.RoleOrganization: Any,
	}},

	{Event, List}:   {public: true, roles: everyone},
	{Event, Read}:   {public: true, roles: everyone},
	{Event, Create}: {roles: map[model.Role]Scope{model.RoleOrganization: Any}},
	{Event, Update}: {roles: map[model.Role]Scope{model.RoleOrganization: Own}},

	{Participant, List}:   {roles: everyone},
	{Participant, Create}: {roles: everyone},
	{Participant, Delete}: {roles: everyone},

	{Media, List}:   {public: true, roles: everyone},
	{Media, Read}:   {public: true, roles: everyone},
	{Media, Create}: {roles: everyone},
	{Media, Update}: {roles: map[model.Role]Scope{
		model.RoleCustomer: Own, model.RoleDealer: Own,
		model.RoleOrganization: Own, model.RoleAdmin: Any,
	}},

	{Issue, List}:   {roles: everyone},
	{Issue, Create}: {roles: everyone},
	{Issue, Read}:   {roles: caseAccess},
	{Issue, Update}: {roles: caseAccess},

	{HelpRequest, List}:   {roles: everyone},
	{HelpRequest, Create}: {roles: everyone},
	{HelpRequest, Read}:   {roles: caseAccess},
	{HelpRequest, Update}: {roles: caseAccess},

	{Feedback, List}:   {roles: everyone},
	{Feedback, Create}: {roles: everyone},
	{Feedback, Read}: {roles: map[model.Role]Scope{
		model.RoleCustomer: Own, model.RoleDealer: Own,
		model.RoleOrganization: Own, model.RoleAdmin: Any,
	}},
	{Feedback, Update}: {roles: adminOnly},

	{User, List}:   {roles: adminOnly},
	{User, Read}:   {roles: adminOnly},
	{User, Update}: {roles: adminOnly},

	{ImpactAnalytics, Read}: {roles: map[model.Role]Scope{
		model.RoleOrganization: Any, model.RoleAdmin: Any,
	}},
}

// caseAccess lets reporters see their own cases and organizations see the
// cases they hold plus the ones still waiting for someone.
var caseAccess = map[model.Role]Scope{
	model.RoleCustomer:     Own,
	model.RoleDealer:       Own,
	model.RoleOrganization: Own | Assigned | Unassigned,
	model.RoleAdmin:        Any,
}

// Authorize returns nil when the request is allowed, apperror.ErrUnauthorized
// when a session is required but missing, and apperror.ErrForbidden otherwise.
func Authorize(req Request) error {
	r, ok := rules[key{req.Resource, req.Action}]
	if req.Actor == nil {
		if ok && r.public {
			return nil
		}
		return apperror.Unauthorized("authentication required")
	}
	if !ok {
		return forbidden(req)
	}

	scope, ok := r.roles[req.Actor.Role]
	if !ok {
		return forbidden(req)
	}
	if req.Action == List || req.Action == Create || scope.allows(req) {
		return nil
	}
	return forbidden(req)
}

func (s Scope) allows(req Request) bool {
	if s == Any {
		return true
	}
	id := req.Actor.ID
	if s&Own != 0 && req.OwnerID == id {
		return true
	}
	if s&Assigned != 0 && req.AssigneeID != nil && *req.AssigneeID == id {
		return true
	}
	return s&Unassigned != 0 && req.AssigneeID == nil
}

func forbidden(req Request) error {
	return apperror.Forbidden("you are not allowed to " + string(req.Action) + " this " + string(req.Resource))
}
