package itests

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/jackc/pgx/v5/stdlib"
)

const (
	testDBName    = "criteria_test"
	migrationsDir = "testdata/migrations"
)

// DeriveTestDSN points baseDSN at the scratch database and at the postgres
// maintenance database used to create and drop it. Only local hosts are
// accepted.
func DeriveTestDSN(baseDSN string) (testDSN, adminDSN string, err error) {
	u, err := url.Parse(baseDSN)
	if err != nil {
		return "", "", fmt.Errorf("parse DSN: %w", err)
	}
	if u.Scheme != "postgres" && u.Scheme != "postgresql" {
		return "", "", errors.New("only URL DSN supported: postgres://...")
	}
	if host := u.Hostname(); host != "localhost" && host != "127.0.0.1" {
		return "", "", fmt.Errorf("refuse non-local host for tests: %s", host)
	}

	u.Path = "/" + testDBName
	testDSN = u.String()
	u.Path = "/postgres"
	adminDSN = u.String()
	return testDSN, adminDSN, nil
}

func createDatabase(ctx context.Context, adminDSN string) error {
	conn, err := sql.Open("pgx", adminDSN)
	if err != nil {
		return err
	}
	defer conn.Close()

	// Leftovers from an aborted run would make migrations a no-op.
	if err := dropDatabase(ctx, conn); err != nil {
		return err
	}
	_, err = conn.ExecContext(ctx, `CREATE DATABASE `+quoteIdent(testDBName))
	return err
}

func dropDatabase(ctx context.Context, conn *sql.DB) error {
	_, _ = conn.ExecContext(ctx, `
		SELECT pg_terminate_backend(pid)
		FROM pg_stat_activity
		WHERE datname = $1 AND pid <> pg_backend_pid()
	`, testDBName)
	_, err := conn.ExecContext(ctx, `DROP DATABASE IF EXISTS `+quoteIdent(testDBName))
	return err
}

func quoteIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

func applyMigrations(testDSN string) error {
	abs, err := filepath.Abs(migrationsDir)
	if err != nil {
		return fmt.Errorf("abs migrations: %w", err)
	}
	// golang-migrate's file source wants an absolute, slash-separated path.
	m, err := migrate.New("file://"+filepath.ToSlash(abs), testDSN)
	if err != nil {
		return fmt.Errorf("migrate.New: %w", err)
	}
	defer func() { _, _ = m.Close() }()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate up: %w", err)
	}
	return nil
}

// SetupTestDB creates and migrates the scratch database. The returned
// teardown drops it again.
func SetupTestDB(baseDSN string) (testDSN string, teardown func() error, err error) {
	if os.Getenv("APP_ENV") == "production" {
		return "", nil, errors.New("APP_ENV=production, aborting tests")
	}
	testDSN, adminDSN, err := DeriveTestDSN(baseDSN)
	if err != nil {
		return "", nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := createDatabase(ctx, adminDSN); err != nil {
		return "", nil, fmt.Errorf("create DB %q via %s: %w", testDBName, redactDSN(adminDSN), err)
	}
	log.Printf("test DB %q created", testDBName)

	teardown = func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		conn, err := sql.Open("pgx", adminDSN)
		if err != nil {
			return err
		}
		defer conn.Close()
		return dropDatabase(ctx, conn)
	}

	if err := applyMigrations(testDSN); err != nil {
		_ = teardown()
		return "", nil, err
	}
	log.Printf("migrations applied to test DB")
	return testDSN, teardown, nil
}

func redactDSN(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil || u.User == nil || u.User.Username() == "" {
		return dsn
	}
	u.User = url.UserPassword(u.User.Username(), "******")
	return u.String()
}
