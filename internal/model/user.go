// Package model defines the entities shared by every layer of the service.
//
// Entities are plain structs with JSON tags; they carry no behaviour beyond
// enum validation and patch merging, so the same values flow unchanged from
// the store through the services to the HTTP responses.
package model

import (
	"slices"
	"time"
)

// Role decides what a user may see and change.
type Role string

const (
	RoleCustomer     Role = "customer"
	RoleDealer       Role = "dealer"
	RoleOrganization Role = "organization"
	RoleAdmin        Role = "admin"
)

var roles = []Role{RoleCustomer, RoleDealer, RoleOrganization, RoleAdmin}

// Valid reports whether r is one of the four known roles.
func (r Role) Valid() bool { return slices.Contains(roles, r) }

// SelfRegistrable reports whether a visitor may pick r when signing up.
// Admin accounts are only created by another admin or by cmd/create-admin.
func (r Role) SelfRegistrable() bool { return r.Valid() && r != RoleAdmin }

type Address struct {
	Street  string `json:"street"`
	City    string `json:"city"`
	State   string `json:"state"`
	PinCode string `json:"pinCode"`
}

// User is a registered account.
//
// Password holds the salted scrypt hash and is never serialised. GitHubID is
// nil for accounts created through username/password registration.
type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	Password     string    `json:"-"`
	FullName     string    `json:"fullName"`
	Phone        string    `json:"phone"`
	Address      Address   `json:"address"`
	Role         Role      `json:"role"`
	SocialPoints int       `json:"socialPoints"`
	GitHubID     *int64    `json:"githubId,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

// UserPatch lists the user fields that may change after registration.
// Nil fields are left untouched.
type UserPatch struct {
	FullName *string
	Phone    *string
	Address  *Address
	Role     *Role
	Email    *string
}

// Apply merges p into u.
func (p UserPatch) Apply(u *User) {
	if p.FullName != nil {
		u.FullName = *p.FullName
	}
	if p.Phone != nil {
		u.Phone = *p.Phone
	}
	if p.Address != nil {
		u.Address = *p.Address
	}
	if p.Role != nil {
		u.Role = *p.Role
	}
	if p.Email != nil {
		u.Email = *p.Email
	}
}

// UserFilter narrows ListUsers. A zero filter matches everyone.
type UserFilter struct {
	Role Role
}

func (f UserFilter) Match(u *User) bool {
	return f.Role == "" || u.Role == f.Role
}

// Clone returns a deep copy of u.
func (u User) Clone() User {
	if u.GitHubID != nil {
		id := *u.GitHubID
		u.GitHubID = &id
	}
	return u
}
