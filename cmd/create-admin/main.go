// Command create-admin bootstraps an administrator account.
//
// Admins cannot register through the API, so the first one is created on
// the server host with direct access to the database:
//
//	JWT_SECRET=... go run ./cmd/create-admin -username root -email root@example.com
//
// The password is read from the ADMIN_PASSWORD environment variable, so it
// never shows up in the shell history or the process list.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/greenpath/greenpath/internal/auth"
	"github.com/greenpath/greenpath/internal/config"
	"github.com/greenpath/greenpath/internal/repository/sqlite"
	"github.com/greenpath/greenpath/internal/service"
)

func main() {
	username := flag.String("username", "", "admin username")
	email := flag.String("email", "", "admin email address")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	if err := run(*username, *email, os.Getenv("ADMIN_PASSWORD"), logger); err != nil {
		logger.Error("create-admin failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(username, email, password string, logger *slog.Logger) error {
	if username == "" || email == "" {
		return errors.New("both -username and -email are required")
	}
	if password == "" {
		return errors.New("ADMIN_PASSWORD must be set")
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if cfg.Store != config.StoreSQLite {
		return fmt.Errorf("STORE=%s keeps nothing between runs; create-admin needs the sqlite store", cfg.Store)
	}
	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
		return fmt.Errorf("creating database directory: %w", err)
	}

	db, err := sqlite.New(cfg.DBPath)
	if err != nil {
		return err
	}
	defer db.Close()

	tokens, err := auth.NewTokenService(cfg.JWTSecret, cfg.SessionTTL)
	if err != nil {
		return err
	}
	svc := service.NewAuthService(
		service.Deps{Store: db, Logger: logger},
		tokens,
		auth.NewPasswordService(),
		auth.NewOTPStore(cfg.OTPTTL),
		auth.NewRevocations(cfg.SessionTTL),
		nil,
	)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	user, err := svc.CreateAdmin(ctx, username, email, password)
	if err != nil {
		return err
	}
	fmt.Printf("created admin %q (id %d) in %s\n", user.Username, user.ID, cfg.DBPath)
	return nil
}
