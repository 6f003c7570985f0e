// Copyright 2022 The Matrix.org Foundation C.I.C.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package sqlutil

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/matrix-org/eventview/internal"
)

const createMigrationsSQL = "" +
	"CREATE TABLE IF NOT EXISTS eventview_migrations (" +
	" version TEXT PRIMARY KEY NOT NULL," +
	" applied_at TEXT NOT NULL," +
	" eventview_version TEXT NOT NULL" +
	");"

const insertMigrationSQL = "" +
	"INSERT INTO eventview_migrations (version, applied_at, eventview_version)" +
	" VALUES ($1, $2, $3)"

const selectMigrationsSQL = "SELECT version FROM eventview_migrations"

// Migration is a named schema change applied at most once per database.
type Migration struct {
	Version string
	Up      func(ctx context.Context, txn *sql.Tx) error
}

// Migrator applies migrations in the order they were added, recording each
// one in eventview_migrations so it is skipped on the next start.
type Migrator struct {
	db         *sql.DB
	mu         sync.Mutex
	migrations []Migration
	known      map[string]struct{}
}

func NewMigrator(db *sql.DB) *Migrator {
	return &Migrator{
		db:    db,
		known: make(map[string]struct{}),
	}
}

// AddMigrations appends migrations, ignoring any whose Version was already added.
func (m *Migrator) AddMigrations(migrations ...Migration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, mig := range migrations {
		if _, ok := m.known[mig.Version]; ok {
			continue
		}
		m.migrations = append(m.migrations, mig)
		m.known[mig.Version] = struct{}{}
	}
}

// Up runs every migration that has not been applied yet. All of them run in
// a single transaction, so a failure leaves the schema untouched.
func (m *Migrator) Up(ctx context.Context) error {
	executed, err := m.ExecutedMigrations(ctx)
	if err != nil {
		return fmt.Errorf("unable to create/get migrations: %w", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return WithTransaction(ctx, m.db, func(txn *sql.Tx) error {
		for _, migration := range m.migrations {
			if _, ok := executed[migration.Version]; ok {
				continue
			}
			logrus.WithField("version", migration.Version).Debug("Executing database migration")
			if err := migration.Up(ctx, txn); err != nil {
				return fmt.Errorf("unable to execute migration '%s': %w", migration.Version, err)
			}
			if _, err := txn.ExecContext(ctx, insertMigrationSQL,
				migration.Version, time.Now().UTC().Format(time.RFC3339), internal.VersionString(),
			); err != nil {
				return fmt.Errorf("unable to record migration '%s': %w", migration.Version, err)
			}
		}
		return nil
	})
}

// ExecutedMigrations creates the migrations table if needed and returns the
// set of versions already applied.
func (m *Migrator) ExecutedMigrations(ctx context.Context) (map[string]struct{}, error) {
	if _, err := m.db.ExecContext(ctx, createMigrationsSQL); err != nil {
		return nil, fmt.Errorf("unable to create eventview_migrations: %w", err)
	}
	rows, err := m.db.QueryContext(ctx, selectMigrationsSQL)
	if err != nil {
		return nil, fmt.Errorf("unable to query eventview_migrations: %w", err)
	}
	defer internal.CloseAndLogIfError(ctx, rows, "ExecutedMigrations: rows.close() failed")
	result := make(map[string]struct{})
	var version string
	for rows.Next() {
		if err = rows.Scan(&version); err != nil {
			return nil, fmt.Errorf("unable to scan version: %w", err)
		}
		result[version] = struct{}{}
	}
	return result, rows.Err()
}
