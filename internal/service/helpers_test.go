package service

import (
	"context"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/greenpath/greenpath/internal/model"
	"github.com/greenpath/greenpath/internal/repository/memory"
)

// published is one recorded Notifier call.
type published struct {
	channel string
	kind    string
	data    any
}

// fakeNotifier records every Publish call.
type fakeNotifier struct {
	mu   sync.Mutex
	msgs []published
}

func (f *fakeNotifier) Publish(channel, kind string, data any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.msgs = append(f.msgs, published{channel, kind, data})
}

func (f *fakeNotifier) sent(channel, kind string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range f.msgs {
		if m.channel == channel && m.kind == kind {
			return true
		}
	}
	return false
}

// fixture is a memory store seeded with one user per role plus a second
// customer, dealer and organization.
type fixture struct {
	ctx      context.Context
	store    *memory.Store
	notifier *fakeNotifier
	deps     Deps

	customer, customer2 *model.User
	dealer, dealer2     *model.User
	org, org2           *model.User
	admin               *model.User
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		ctx:      context.Background(),
		store:    memory.New(),
		notifier: &fakeNotifier{},
	}
	f.deps = Deps{
		Store:    f.store,
		Notifier: f.notifier,
		Logger:   slog.New(slog.DiscardHandler),
	}

	f.customer = f.user(t, "asha", model.RoleCustomer)
	f.customer2 = f.user(t, "bilal", model.RoleCustomer)
	f.dealer = f.user(t, "dev", model.RoleDealer)
	f.dealer2 = f.user(t, "dina", model.RoleDealer)
	f.org = f.user(t, "greenhands", model.RoleOrganization)
	f.org2 = f.user(t, "cleancity", model.RoleOrganization)
	f.admin = f.user(t, "root", model.RoleAdmin)
	return f
}

func (f *fixture) user(t *testing.T, name string, role model.Role) *model.User {
	t.Helper()
	u := &model.User{Username: name, Email: name + "@example.com", Role: role}
	require.NoError(t, f.store.CreateUser(f.ctx, u))
	return u
}

// points reloads a user's current score.
func (f *fixture) points(t *testing.T, u *model.User) int {
	t.Helper()
	got, err := f.store.GetUser(f.ctx, u.ID)
	require.NoError(t, err)
	return got.SocialPoints
}

func testLocation() model.Location {
	return model.Location{Address: "12 MG Road", City: "Pune", PinCode: "411001"}
}
