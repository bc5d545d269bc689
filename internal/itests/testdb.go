//go:build integration

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

	"MQueryAPI/internal/config"
	"MQueryAPI/internal/db"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// DeriveTestDSN points the DSN at the "test" database and derives an admin DSN for "postgres".
func DeriveTestDSN(baseDSN string) (testDSN, adminDSN, testDBName string, err error) {
	u, e := url.Parse(baseDSN)
	if e != nil {
		return "", "", "", fmt.Errorf("parse DSN: %w", e)
	}
	if u.Scheme != "postgres" && u.Scheme != "postgresql" {
		return "", "", "", errors.New("only URL DSN supported: postgres://...")
	}

	// never run against a remote host
	if host := u.Hostname(); host != "localhost" && host != "127.0.0.1" {
		return "", "", "", fmt.Errorf("refuse non-local host for tests: %s", host)
	}

	u.Path = "/test"
	testDBName = "test"
	testDSN = u.String()

	u.Path = "/postgres"
	adminDSN = u.String()

	return testDSN, adminDSN, testDBName, nil
}

func CreateTestDatabase(adminDSN, dbName string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	db, err := sql.Open("pgx", adminDSN)
	if err != nil {
		return err
	}
	defer db.Close()

	var exists bool
	if err := db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM pg_database WHERE datname=$1)`, dbName,
	).Scan(&exists); err != nil {
		return err
	}
	if exists {
		return nil
	}
	_, err = db.ExecContext(ctx, `CREATE DATABASE `+pqIdent(dbName))
	return err
}

func DropTestDatabase(adminDSN, dbName string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	db, err := sql.Open("pgx", adminDSN)
	if err != nil {
		return err
	}
	defer db.Close()

	_, _ = db.ExecContext(ctx, `
		SELECT pg_terminate_backend(pid)
		FROM pg_stat_activity
		WHERE datname = $1 AND pid <> pg_backend_pid()
	`, dbName)

	_, err = db.ExecContext(ctx, `DROP DATABASE IF EXISTS `+pqIdent(dbName))
	return err
}

func pqIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}
func applyMigrationsFromDir(testDSN string) error {
	root, err := config.FindRepoRoot()
	if err != nil {
		return fmt.Errorf("repo root not found: %w", err)
	}
	return db.RunMigrations(filepath.Join(root, "migrations"), testDSN)
}

// SetupAndTeardownTestDB creates and migrates the test database, then calls
// initFunc with its DSN. The returned func drops the database.
func SetupAndTeardownTestDB(baseDSN string, initFunc func(string) error) (teardown func() error, err error) {
	testDSN, adminDSN, testDB, err := DeriveTestDSN(baseDSN)
	if err != nil {
		return nil, err
	}

	if os.Getenv("APP_ENV") == "production" {
		return nil, errors.New("APP_ENV=production, aborting tests")
	}

	if err := CreateTestDatabase(adminDSN, testDB); err != nil {
		return nil, fmt.Errorf("create DB %q: %w (POSTGRES_DSN=%s); is Postgres running?", testDB, err, redactDSN(baseDSN))
	}
	log.Printf("test DB %q created", testDB)
	if err := applyMigrationsFromDir(testDSN); err != nil {
		_ = DropTestDatabase(adminDSN, testDB)
		return nil, err
	}
	log.Printf("migrations applied to test DB")
	if initFunc != nil {
		if err := initFunc(testDSN); err != nil {
			_ = DropTestDatabase(adminDSN, testDB)
			return nil, fmt.Errorf("init postgres: %w (POSTGRES_DSN=%s)", err, redactDSN(baseDSN))
		}
	}

	teardown = func() error {
		return DropTestDatabase(adminDSN, testDB)
	}
	return teardown, nil
}

func redactDSN(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil || u.User == nil {
		return dsn
	}
	username := u.User.Username()
	if username == "" {
		return dsn
	}
	u.User = url.UserPassword(username, "******")
	return u.String()
}

// fixtures are inserted once per test run, one row per document.
var fixtures = map[string][]string{
	"users": {
		`{"name":"Ann","age":30,"status":"active","tags":["admin","dev"],"address":{"city":"Paris"},"owner":"u-1"}`,
		`{"name":"Bob","age":41,"status":"inactive","tags":["dev"],"address":{"city":"Berlin"},"owner":"u-2"}`,
		`{"name":"Cid","age":17,"status":"active","tags":[],"owner":"u-1"}`,
		`{"name":"dana","status":"pending","owner":"u-2","joined":"2016-03-01T00:00:00Z"}`,
	},
	"tasks": {
		`{"title":"write docs","done":false}`,
	},
}

func seedDocuments(ctx context.Context) error {
	for collection, docs := range fixtures {
		for _, doc := range docs {
			if _, err := db.Pool.Exec(ctx,
				`INSERT INTO documents (collection, doc) VALUES ($1, $2::jsonb)`, collection, doc,
			); err != nil {
				return fmt.Errorf("seed %s: %w", collection, err)
			}
		}
	}
	return nil
}
