package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/mauv0809/scoreline/migrations"
	"github.com/pressly/goose/v3"
	goosedb "github.com/pressly/goose/v3/database"
	_ "github.com/tursodatabase/libsql-client-go/libsql"
)

// InitDB opens the database and applies the embedded migrations. A local file
// (or ":memory:") is used when primaryURL is empty, otherwise the remote
// Turso database. The returned teardown closes the connection pool.
func InitDB(dbPath string, primaryURL string, authToken string) (*sql.DB, func(), error) {
	var (
		db  *sql.DB
		err error
	)
	if primaryURL == "" {
		log.Info("Initializing local SQLite database", "path", dbPath)
		db, err = sql.Open("sqlite3", localDSN(dbPath))
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open local database: %w", err)
		}
		if dbPath == ":memory:" {
			// Shared-cache memory databases lock per table; one connection
			// serialises writers instead of failing them.
			db.SetMaxOpenConns(1)
		}
	} else {
		log.Info("Initializing Turso database", "url", primaryURL)
		db, err = sql.Open("libsql", primaryURL+"?authToken="+authToken)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open db %s: %w", primaryURL, err)
		}
	}

	if err := migrate(db, dialectFor(primaryURL)); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	teardown := func() {
		if err := db.Close(); err != nil {
			log.Error("Failed to close database", "error", err)
		}
	}
	log.Info("Database initialized successfully")
	return db, teardown, nil
}

// dialectFor picks the goose dialect for the connection InitDB opens.
func dialectFor(primaryURL string) goose.Dialect {
	if primaryURL == "" {
		return goose.DialectSQLite3
	}
	return goosedb.DialectTurso
}

// localDSN builds the go-sqlite3 DSN. Every ":memory:" database gets its own
// name so that pooled connections share one store and tests stay isolated.
func localDSN(dbPath string) string {
	const params = "_foreign_keys=on&_busy_timeout=5000"
	if dbPath == ":memory:" {
		return fmt.Sprintf("file:mem-%s?mode=memory&cache=shared&%s", uuid.NewString(), params)
	}
	if strings.HasPrefix(dbPath, "file:") {
		return dbPath
	}
	return fmt.Sprintf("file:%s?%s", dbPath, params)
}

func migrate(db *sql.DB, dialect goose.Dialect) error {
	provider, err := goose.NewProvider(dialect, db, migrations.FS)
	if err != nil {
		return fmt.Errorf("failed to create migration provider: %w", err)
	}
	results, err := provider.Up(context.Background())
	if err != nil {
		return err
	}
	for _, r := range results {
		log.Debug("Applied migration", "version", r.Source.Version, "path", r.Source.Path, "duration", r.Duration)
	}
	return nil
}
