package sqlite

import (
	"context"
	"database/sql"

	"github.com/greenpath/greenpath/internal/apperror"
	"github.com/greenpath/greenpath/internal/model"
)

const userColumns = `id, username, email, password, full_name, phone, address, role, social_points, github_id, created_at`

func scanUser(s scanner) (model.User, error) {
	var (
		u        model.User
		address  string
		githubID sql.NullInt64
	)
	err := s.Scan(
		&u.ID, &u.Username, &u.Email, &u.Password, &u.FullName, &u.Phone,
		&address, &u.Role, &u.SocialPoints, &githubID, &u.CreatedAt,
	)
	if err != nil {
		return u, err
	}
	if err := decodeJSON(address, &u.Address); err != nil {
		return u, err
	}
	u.GitHubID = idPtr(githubID)
	return u, nil
}

func (db *DB) CreateUser(ctx context.Context, user *model.User) error {
	if user.Role == "" {
		user.Role = model.RoleCustomer
	}
	address, err := encodeJSON(user.Address)
	if err != nil {
		return err
	}
	createdAt := db.now()

	id, err := db.insert(ctx, "user",
		`INSERT INTO users (username, email, password, full_name, phone, address, role, social_points, github_id, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		user.Username, user.Email, user.Password, user.FullName, user.Phone,
		address, string(user.Role), user.SocialPoints, nullID(user.GitHubID), createdAt,
	)
	if err != nil {
		return err
	}
	user.ID = id
	user.CreatedAt = createdAt
	return nil
}

func (db *DB) GetUser(ctx context.Context, id int64) (*model.User, error) {
	return queryOne(ctx, db, scanUser, "user", id,
		`SELECT `+userColumns+` FROM users WHERE id = ?`, id)
}

func (db *DB) GetUserByUsername(ctx context.Context, username string) (*model.User, error) {
	return queryOne(ctx, db, scanUser, "user", username,
		`SELECT `+userColumns+` FROM users WHERE username = ?`, username)
}

func (db *DB) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	return queryOne(ctx, db, scanUser, "user", email,
		`SELECT `+userColumns+` FROM users WHERE email = ?`, email)
}

func (db *DB) GetUserByGitHubID(ctx context.Context, githubID int64) (*model.User, error) {
	return queryOne(ctx, db, scanUser, "user", githubID,
		`SELECT `+userColumns+` FROM users WHERE github_id = ?`, githubID)
}

func (db *DB) ListUsers(ctx context.Context, filter model.UserFilter) ([]model.User, error) {
	var w where
	if filter.Role != "" {
		w.eq("role", string(filter.Role))
	}
	return queryList(ctx, db, scanUser, "users",
		`SELECT `+userColumns+` FROM users`+w.String()+` ORDER BY id`, w.args...)
}

func (db *DB) UpdateUser(ctx context.Context, id int64, patch model.UserPatch) (*model.User, error) {
	var out *model.User
	err := db.atomically(ctx, func(tx *DB) error {
		u, err := tx.GetUser(ctx, id)
		if err != nil {
			return err
		}
		patch.Apply(u)

		address, err := encodeJSON(u.Address)
		if err != nil {
			return err
		}
		if _, err := tx.exec(ctx, "updating user",
			`UPDATE users SET email = ?, full_name = ?, phone = ?, address = ?, role = ? WHERE id = ?`,
			u.Email, u.FullName, u.Phone, address, string(u.Role), id,
		); err != nil {
			return err
		}
		out = u
		return nil
	})
	return out, err
}

func (db *DB) AddSocialPoints(ctx context.Context, id int64, delta int) (*model.User, error) {
	if delta < 0 {
		return nil, apperror.ValidationFailed("socialPoints", "social points cannot decrease")
	}

	var out *model.User
	err := db.atomically(ctx, func(tx *DB) error {
		n, err := tx.exec(ctx, "adding social points",
			`UPDATE users SET social_points = social_points + ? WHERE id = ?`, delta, id)
		if err != nil {
			return err
		}
		if n == 0 {
			return apperror.NotFound("user", id)
		}
		out, err = tx.GetUser(ctx, id)
		return err
	})
	return out, err
}

func (db *DB) Stats(ctx context.Context) (model.Stats, error) {
	scan := func(s scanner) (model.Stats, error) {
		var st model.Stats
		err := s.Scan(
			&st.CompletedWasteReports, &st.CompletedDonations,
			&st.TotalEvents, &st.TotalUsers, &st.EventParticipations,
		)
		return st, err
	}
	st, err := queryOne(ctx, db, scan, "stats", "",
		`SELECT
			(SELECT COUNT(*) FROM waste_reports WHERE status = 'completed'),
			(SELECT COUNT(*) FROM donations WHERE status = 'completed'),
			(SELECT COUNT(*) FROM events),
			(SELECT COUNT(*) FROM users),
			(SELECT COUNT(*) FROM event_participants)`)
	if err != nil {
		return model.Stats{}, err
	}
	return *st, nil
}

func (db *DB) Leaderboard(ctx context.Context, limit int) ([]model.User, error) {
	if limit <= 0 {
		limit = -1 // SQLite: no limit
	}
	return queryList(ctx, db, scanUser, "leaderboard",
		`SELECT `+userColumns+` FROM users
		 WHERE role != 'admin'
		 ORDER BY social_points DESC, id ASC
		 LIMIT ?`, limit)
}
