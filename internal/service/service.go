// Package service contains the business rules of Green Path.
//
// THE THREE LAYERS:
//
//	Handler (HTTP)     → decodes requests, writes responses
//	Service (business) → authorizes, validates transitions, awards points
//	Store (data)       → reads and writes records
//
// Services take the acting user as an explicit argument and ask the policy
// package whether the action is allowed. They never look at HTTP requests,
// so the same rules apply to the REST API, the scheduler and the admin CLI.
//
// Every mutation that touches more than one record (a status change plus the
// social points it earns, a capacity check plus a registration) runs inside
// Store.WithinTx so either all of it lands or none of it does.
package service

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"

	"github.com/greenpath/greenpath/internal/apperror"
	"github.com/greenpath/greenpath/internal/metrics"
	"github.com/greenpath/greenpath/internal/model"
	"github.com/greenpath/greenpath/internal/repository"
)

// Notifier pushes change notifications to connected clients. The realtime
// hub implements it; Publish must not block.
type Notifier interface {
	Publish(channel, kind string, data any)
}

// NopNotifier drops every notification.
type NopNotifier struct{}

func (NopNotifier) Publish(string, string, any) {}

// Channel names clients can subscribe to.
const (
	ChannelWasteReports = "waste-reports"
	ChannelDonations    = "donations"
	ChannelEvents       = "events"
)

func UserChannel(id int64) string  { return "user:" + strconv.FormatInt(id, 10) }
func EventChannel(id int64) string { return "event:" + strconv.FormatInt(id, 10) }

// Deps are the collaborators every service shares. Notifier and Metrics may
// be nil.
type Deps struct {
	Store    repository.Store
	Notifier Notifier
	Metrics  *metrics.Metrics
	Logger   *slog.Logger
}

func (d Deps) withDefaults() Deps {
	if d.Notifier == nil {
		d.Notifier = NopNotifier{}
	}
	if d.Logger == nil {
		d.Logger = slog.New(slog.DiscardHandler)
	}
	return d
}

// requireActor turns a missing session into a 401 before anything else is
// checked.
func requireActor(actor *model.User) error {
	if actor == nil {
		return apperror.Unauthorized("authentication required")
	}
	return nil
}

// requireText trims s and reports a validation error naming field when the
// result is empty or longer than max runes.
func requireText(field, s string, max int) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", apperror.ValidationFailed(field, field+" is required")
	}
	if len([]rune(s)) > max {
		return "", apperror.ValidationFailed(field, field+" must be "+strconv.Itoa(max)+" characters or less")
	}
	return s, nil
}

// requireRole loads id and checks it belongs to a user with role. field
// names the request field the id came from.
func requireRole(ctx context.Context, store repository.UserRepository, id int64, role model.Role, field string) (*model.User, error) {
	u, err := store.GetUser(ctx, id)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, apperror.ValidationFailed(field, field+" does not reference an existing user")
		}
		return nil, err
	}
	if u.Role != role {
		return nil, apperror.ValidationFailed(field, field+" must reference a user with role "+string(role))
	}
	return u, nil
}

func errAttr(err error) slog.Attr { return slog.String("error", err.Error()) }

func ptr[T any](v T) *T { return &v }
