// Copyright 2024 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package stats

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"golang.org/x/xerrors"
)

// Archive persists run Counters to, and retrieves them from, a MySQL
// database, for the --input-stats-file mysql:// DSN path.
type Archive struct {
	db *sql.DB
}

// OpenArchive opens a connection to dsn and verifies it is reachable.
func OpenArchive(dsn string) (*Archive, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, xerrors.Errorf("stats: could not open archive db: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		return nil, xerrors.Errorf("stats: could not ping archive db: %w", err)
	}

	return &Archive{db: db}, nil
}

// Close releases the underlying connection.
func (a *Archive) Close() error {
	return a.db.Close()
}

// CreateSchema creates the run_stats table if it does not already exist.
func (a *Archive) CreateSchema(ctx context.Context) error {
	const stmt = `CREATE TABLE IF NOT EXISTS run_stats (
		run_number BIGINT UNSIGNED NOT NULL PRIMARY KEY,
		recorded_at DATETIME NOT NULL,
		counters_json TEXT NOT NULL
	)`
	_, err := a.db.ExecContext(ctx, stmt)
	if err != nil {
		return xerrors.Errorf("stats: could not create run_stats schema: %w", err)
	}
	return nil
}

// Store persists c under runNumber, replacing any prior entry for that run.
func (a *Archive) Store(ctx context.Context, runNumber uint64, c Counters) error {
	blob, err := json.Marshal(c)
	if err != nil {
		return xerrors.Errorf("stats: could not marshal counters: %w", err)
	}

	const stmt = `REPLACE INTO run_stats (run_number, recorded_at, counters_json) VALUES (?, ?, ?)`
	_, err = a.db.ExecContext(ctx, stmt, runNumber, time.Now().UTC(), string(blob))
	if err != nil {
		return xerrors.Errorf("stats: could not store run %d: %w", runNumber, err)
	}
	return nil
}

// Fetch retrieves the Counters recorded for runNumber.
func (a *Archive) Fetch(ctx context.Context, runNumber uint64) (Counters, error) {
	c := newCounters()

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	row := a.db.QueryRowContext(ctx, `SELECT counters_json FROM run_stats WHERE run_number = ?`, runNumber)

	var blob string
	if err := row.Scan(&blob); err != nil {
		return c, xerrors.Errorf("stats: could not fetch run %d: %w", runNumber, err)
	}
	if err := json.Unmarshal([]byte(blob), &c); err != nil {
		return c, xerrors.Errorf("stats: could not unmarshal run %d: %w", runNumber, err)
	}
	return c, nil
}
