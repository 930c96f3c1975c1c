// Package memory is an in-process implementation of repository.Store.
//
// Records live in one map per entity type guarded by a single RWMutex.
// Reads and writes hand out deep copies so callers can never mutate stored
// state behind the lock. WithinTx works copy-on-write: the transaction runs
// against a cloned snapshot which replaces the live state only if the
// callback succeeds. Cloning is linear in the store size, which is fine for
// fixtures and tests; use the sqlite package for anything larger.
package memory

import (
	"context"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/greenpath/greenpath/internal/apperror"
	"github.com/greenpath/greenpath/internal/model"
	"github.com/greenpath/greenpath/internal/repository"
)

var _ repository.Store = (*Store)(nil)

type cloner[T any] interface {
	Clone() T
}

// table holds one entity type. seq only grows, so ids are never reused even
// after a row is removed.
type table[T cloner[T]] struct {
	seq   int64
	order []int64
	rows  map[int64]T
}

func newTable[T cloner[T]]() *table[T] {
	return &table[T]{rows: make(map[int64]T)}
}

func (t *table[T]) next() int64 {
	t.seq++
	return t.seq
}

func (t *table[T]) put(id int64, v T) {
	if _, ok := t.rows[id]; !ok {
		t.order = append(t.order, id)
	}
	t.rows[id] = v.Clone()
}

func (t *table[T]) get(id int64) (T, bool) {
	v, ok := t.rows[id]
	if !ok {
		return v, false
	}
	return v.Clone(), true
}

func (t *table[T]) remove(id int64) {
	delete(t.rows, id)
	t.order = slices.DeleteFunc(t.order, func(x int64) bool { return x == id })
}

func (t *table[T]) scan(match func(*T) bool) []T {
	out := make([]T, 0)
	for _, id := range t.order {
		v := t.rows[id]
		if match == nil || match(&v) {
			out = append(out, v.Clone())
		}
	}
	return out
}

func (t *table[T]) clone() *table[T] {
	return &table[T]{
		seq:   t.seq,
		order: slices.Clone(t.order),
		rows:  cloneRows(t.rows),
	}
}

// cloneRows copies the map only. Stored values are never mutated in place
// (put always stores a fresh Clone), so sharing them between snapshots is safe.
func cloneRows[T any](m map[int64]T) map[int64]T {
	out := make(map[int64]T, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

type state struct {
	users        *table[model.User]
	reports      *table[model.WasteReport]
	donations    *table[model.Donation]
	events       *table[model.Event]
	participants *table[model.EventParticipant]
	media        *table[model.MediaContent]
	issues       *table[model.Issue]
	helpRequests *table[model.HelpRequest]
	feedback     *table[model.Feedback]
}

func newState() *state {
	return &state{
		users:        newTable[model.User](),
		reports:      newTable[model.WasteReport](),
		donations:    newTable[model.Donation](),
		events:       newTable[model.Event](),
		participants: newTable[model.EventParticipant](),
		media:        newTable[model.MediaContent](),
		issues:       newTable[model.Issue](),
		helpRequests: newTable[model.HelpRequest](),
		feedback:     newTable[model.Feedback](),
	}
}

func (s *state) clone() *state {
	return &state{
		users:        s.users.clone(),
		reports:      s.reports.clone(),
		donations:    s.donations.clone(),
		events:       s.events.clone(),
		participants: s.participants.clone(),
		media:        s.media.clone(),
		issues:       s.issues.clone(),
		helpRequests: s.helpRequests.clone(),
		feedback:     s.feedback.clone(),
	}
}

// Store implements repository.Store in memory.
type Store struct {
	mu   *sync.RWMutex
	st   *state
	inTx bool
	now  func() time.Time
}

// New returns an empty store.
func New() *Store {
	return &Store{
		mu:  &sync.RWMutex{},
		st:  newState(),
		now: func() time.Time { return time.Now().UTC() },
	}
}

// Close is a no-op; it exists to satisfy repository.Store.
func (s *Store) Close() error { return nil }

// read and write return the matching unlock. Inside a transaction the
// outer WithinTx already holds the write lock.
func (s *Store) read() func() {
	if s.inTx {
		return func() {}
	}
	s.mu.RLock()
	return s.mu.RUnlock
}

func (s *Store) write() func() {
	if s.inTx {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

func (s *Store) WithinTx(ctx context.Context, fn func(tx repository.Store) error) error {
	if s.inTx {
		return fn(s)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	draft := s.st.clone()
	if err := fn(&Store{mu: s.mu, st: draft, inTx: true, now: s.now}); err != nil {
		return err
	}
	s.st = draft
	return nil
}

// requireUser enforces referential integrity for owner/assignee columns.
func (s *Store) requireUser(field string, id int64) error {
	if _, ok := s.st.users.rows[id]; !ok {
		return apperror.ValidationFailed(field, "referenced user does not exist")
	}
	return nil
}

func (s *Store) requireOptionalUser(field string, id *int64) error {
	if id == nil {
		return nil
	}
	return s.requireUser(field, *id)
}

// === USERS ===

func (s *Store) CreateUser(_ context.Context, user *model.User) error {
	defer s.write()()

	for _, id := range s.st.users.order {
		existing := s.st.users.rows[id]
		if strings.EqualFold(existing.Username, user.Username) {
			return apperror.Duplicate("user", "username")
		}
		if strings.EqualFold(existing.Email, user.Email) {
			return apperror.Duplicate("user", "email")
		}
		if user.GitHubID != nil && existing.GitHubID != nil && *existing.GitHubID == *user.GitHubID {
			return apperror.Duplicate("user", "githubId")
		}
	}

	user.ID = s.st.users.next()
	user.CreatedAt = s.now()
	if user.Role == "" {
		user.Role = model.RoleCustomer
	}
	s.st.users.put(user.ID, *user)
	return nil
}

func (s *Store) GetUser(_ context.Context, id int64) (*model.User, error) {
	defer s.read()()
	u, ok := s.st.users.get(id)
	if !ok {
		return nil, apperror.NotFound("user", id)
	}
	return &u, nil
}

func (s *Store) findUser(match func(*model.User) bool) (*model.User, bool) {
	found := s.st.users.scan(match)
	if len(found) == 0 {
		return nil, false
	}
	return &found[0], true
}

func (s *Store) GetUserByUsername(_ context.Context, username string) (*model.User, error) {
	defer s.read()()
	u, ok := s.findUser(func(u *model.User) bool { return strings.EqualFold(u.Username, username) })
	if !ok {
		return nil, apperror.NotFound("user", username)
	}
	return u, nil
}

func (s *Store) GetUserByEmail(_ context.Context, email string) (*model.User, error) {
	defer s.read()()
	u, ok := s.findUser(func(u *model.User) bool { return strings.EqualFold(u.Email, email) })
	if !ok {
		return nil, apperror.NotFound("user", email)
	}
	return u, nil
}

func (s *Store) GetUserByGitHubID(_ context.Context, githubID int64) (*model.User, error) {
	defer s.read()()
	u, ok := s.findUser(func(u *model.User) bool { return u.GitHubID != nil && *u.GitHubID == githubID })
	if !ok {
		return nil, apperror.NotFound("user", githubID)
	}
	return u, nil
}

func (s *Store) ListUsers(_ context.Context, filter model.UserFilter) ([]model.User, error) {
	defer s.read()()
	return s.st.users.scan(filter.Match), nil
}

func (s *Store) UpdateUser(_ context.Context, id int64, patch model.UserPatch) (*model.User, error) {
	defer s.write()()
	u, ok := s.st.users.get(id)
	if !ok {
		return nil, apperror.NotFound("user", id)
	}
	if patch.Email != nil {
		for _, otherID := range s.st.users.order {
			if otherID != id && strings.EqualFold(s.st.users.rows[otherID].Email, *patch.Email) {
				return nil, apperror.Duplicate("user", "email")
			}
		}
	}
	patch.Apply(&u)
	s.st.users.put(id, u)
	return &u, nil
}

func (s *Store) AddSocialPoints(_ context.Context, id int64, delta int) (*model.User, error) {
	if delta < 0 {
		return nil, apperror.ValidationFailed("socialPoints", "social points cannot decrease")
	}
	defer s.write()()
	u, ok := s.st.users.get(id)
	if !ok {
		return nil, apperror.NotFound("user", id)
	}
	u.SocialPoints += delta
	s.st.users.put(id, u)
	return &u, nil
}

// === ANALYTICS ===

func (s *Store) Stats(_ context.Context) (model.Stats, error) {
	defer s.read()()
	return model.Stats{
		CompletedWasteReports: len(s.st.reports.scan(func(r *model.WasteReport) bool {
			return r.Status == model.WasteReportCompleted
		})),
		CompletedDonations: len(s.st.donations.scan(func(d *model.Donation) bool {
			return d.Status == model.DonationCompleted
		})),
		TotalEvents:         len(s.st.events.rows),
		TotalUsers:          len(s.st.users.rows),
		EventParticipations: len(s.st.participants.rows),
	}, nil
}

func (s *Store) Leaderboard(_ context.Context, limit int) ([]model.User, error) {
	defer s.read()()
	users := s.st.users.scan(func(u *model.User) bool { return u.Role != model.RoleAdmin })
	// scan returns insertion order, so a stable sort breaks ties by registration.
	sort.SliceStable(users, func(i, j int) bool {
		return users[i].SocialPoints > users[j].SocialPoints
	})
	if limit > 0 && len(users) > limit {
		users = users[:limit]
	}
	return users, nil
}
