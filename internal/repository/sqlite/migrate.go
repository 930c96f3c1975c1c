package sqlite

import "fmt"

// migrations run in order on every start. Each statement is idempotent
// (IF NOT EXISTS), so re-running them against an existing file is safe.
var migrations = []struct {
	name string
	sql  string
}{
	{"users", `
		CREATE TABLE IF NOT EXISTS users (
			id            INTEGER PRIMARY KEY AUTOINCREMENT,
			username      TEXT NOT NULL COLLATE NOCASE UNIQUE,
			email         TEXT NOT NULL COLLATE NOCASE UNIQUE,
			password      TEXT NOT NULL DEFAULT '',
			full_name     TEXT NOT NULL DEFAULT '',
			phone         TEXT NOT NULL DEFAULT '',
			address       TEXT NOT NULL DEFAULT '{}',
			role          TEXT NOT NULL CHECK (role IN ('customer', 'dealer', 'organization', 'admin')),
			social_points INTEGER NOT NULL DEFAULT 0 CHECK (social_points >= 0),
			github_id     INTEGER UNIQUE,
			created_at    DATETIME NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_users_role ON users(role);
		CREATE INDEX IF NOT EXISTS idx_users_points ON users(social_points DESC, id);`},
	{"waste_reports", `
		CREATE TABLE IF NOT EXISTS waste_reports (
			id                    INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id               INTEGER NOT NULL REFERENCES users(id),
			title                 TEXT NOT NULL,
			description           TEXT NOT NULL DEFAULT '',
			category              TEXT NOT NULL,
			location              TEXT NOT NULL DEFAULT '{}',
			images                TEXT NOT NULL DEFAULT '[]',
			status                TEXT NOT NULL,
			is_segregated         INTEGER NOT NULL DEFAULT 0,
			assigned_dealer_id    INTEGER REFERENCES users(id),
			rejected_by_dealer_id INTEGER REFERENCES users(id),
			scheduled_date        DATETIME,
			created_at            DATETIME NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_waste_reports_user ON waste_reports(user_id);
		CREATE INDEX IF NOT EXISTS idx_waste_reports_status ON waste_reports(status);
		CREATE INDEX IF NOT EXISTS idx_waste_reports_dealer ON waste_reports(assigned_dealer_id);`},
	{"donations", `
		CREATE TABLE IF NOT EXISTS donations (
			id                           INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id                      INTEGER NOT NULL REFERENCES users(id),
			item_name                    TEXT NOT NULL,
			description                  TEXT NOT NULL DEFAULT '',
			category                     TEXT NOT NULL,
			images                       TEXT NOT NULL DEFAULT '[]',
			status                       TEXT NOT NULL,
			requested_by_organization_id INTEGER REFERENCES users(id),
			created_at                   DATETIME NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_donations_user ON donations(user_id);
		CREATE INDEX IF NOT EXISTS idx_donations_status ON donations(status);`},
	{"events", `
		CREATE TABLE IF NOT EXISTS events (
			id               INTEGER PRIMARY KEY AUTOINCREMENT,
			organizer_id     INTEGER NOT NULL REFERENCES users(id),
			title            TEXT NOT NULL,
			description      TEXT NOT NULL DEFAULT '',
			location         TEXT NOT NULL DEFAULT '',
			date             DATETIME NOT NULL,
			status           TEXT NOT NULL,
			max_participants INTEGER,
			image            TEXT,
			created_at       DATETIME NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_events_status_date ON events(status, date);
		CREATE INDEX IF NOT EXISTS idx_events_organizer ON events(organizer_id);`},
	{"event_participants", `
		CREATE TABLE IF NOT EXISTS event_participants (
			id        INTEGER PRIMARY KEY AUTOINCREMENT,
			event_id  INTEGER NOT NULL REFERENCES events(id),
			user_id   INTEGER NOT NULL REFERENCES users(id),
			joined_at DATETIME NOT NULL,
			UNIQUE (event_id, user_id)
		);`},
	{"media_content", `
		CREATE TABLE IF NOT EXISTS media_content (
			id           INTEGER PRIMARY KEY AUTOINCREMENT,
			title        TEXT NOT NULL,
			description  TEXT NOT NULL DEFAULT '',
			content_type TEXT NOT NULL,
			author_id    INTEGER REFERENCES users(id),
			content      TEXT NOT NULL DEFAULT '',
			tags         TEXT NOT NULL DEFAULT '[]',
			published    INTEGER NOT NULL DEFAULT 0,
			created_at   DATETIME NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_media_published ON media_content(published);`},
	{"issues", `
		CREATE TABLE IF NOT EXISTS issues (
			id                       INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id                  INTEGER NOT NULL REFERENCES users(id),
			title                    TEXT NOT NULL,
			description              TEXT NOT NULL DEFAULT '',
			category                 TEXT NOT NULL,
			location                 TEXT NOT NULL DEFAULT '{}',
			status                   TEXT NOT NULL,
			assigned_organization_id INTEGER REFERENCES users(id),
			created_at               DATETIME NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_issues_user ON issues(user_id);
		CREATE INDEX IF NOT EXISTS idx_issues_org ON issues(assigned_organization_id);`},
	{"help_requests", `
		CREATE TABLE IF NOT EXISTS help_requests (
			id                       INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id                  INTEGER NOT NULL REFERENCES users(id),
			title                    TEXT NOT NULL,
			description              TEXT NOT NULL DEFAULT '',
			urgency                  TEXT NOT NULL,
			location                 TEXT NOT NULL DEFAULT '{}',
			status                   TEXT NOT NULL,
			assigned_organization_id INTEGER REFERENCES users(id),
			created_at               DATETIME NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_help_requests_user ON help_requests(user_id);
		CREATE INDEX IF NOT EXISTS idx_help_requests_org ON help_requests(assigned_organization_id);`},
	{"feedback", `
		CREATE TABLE IF NOT EXISTS feedback (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id    INTEGER NOT NULL REFERENCES users(id),
			subject    TEXT NOT NULL,
			message    TEXT NOT NULL,
			rating     INTEGER NOT NULL CHECK (rating BETWEEN 1 AND 5),
			status     TEXT NOT NULL,
			created_at DATETIME NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_feedback_user ON feedback(user_id);`},
}

func (db *DB) migrate() error {
	for _, m := range migrations {
		if _, err := db.conn.Exec(m.sql); err != nil {
			return fmt.Errorf("creating %s: %w", m.name, err)
		}
	}
	return nil
}
