// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3" // SQLite driver

	"github.com/wingedpig/gamepanel/internal/instance"
)

const schema = `
CREATE TABLE IF NOT EXISTS instances (
	id TEXT PRIMARY KEY,
	position INTEGER NOT NULL,
	name TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	working_directory TEXT NOT NULL,
	start_command TEXT NOT NULL DEFAULT '',
	stop_command TEXT NOT NULL,
	auto_start BOOLEAN NOT NULL DEFAULT 0,
	type TEXT NOT NULL,
	java_version TEXT NOT NULL DEFAULT '',
	forward_mode BOOLEAN NOT NULL DEFAULT 0,
	program_path TEXT NOT NULL DEFAULT '',
	run_as_user TEXT NOT NULL DEFAULT '',
	cols INTEGER NOT NULL DEFAULT 0,
	rows INTEGER NOT NULL DEFAULT 0,
	created_at TEXT NOT NULL DEFAULT '',
	last_started TEXT NOT NULL DEFAULT '',
	last_stopped TEXT NOT NULL DEFAULT ''
)
`

const insertSQL = `
INSERT INTO instances (
	id, position, name, description, working_directory, start_command, stop_command,
	auto_start, type, java_version, forward_mode, program_path, run_as_user, cols, rows,
	created_at, last_started, last_stopped
) VALUES (
	:id, :position, :name, :description, :working_directory, :start_command, :stop_command,
	:auto_start, :type, :java_version, :forward_mode, :program_path, :run_as_user, :cols, :rows,
	:created_at, :last_started, :last_stopped
)
`

type instanceRow struct {
	ID               string `db:"id"`
	Position         int    `db:"position"`
	Name             string `db:"name"`
	Description      string `db:"description"`
	WorkingDirectory string `db:"working_directory"`
	StartCommand     string `db:"start_command"`
	StopCommand      string `db:"stop_command"`
	AutoStart        bool   `db:"auto_start"`
	Type             string `db:"type"`
	JavaVersion      string `db:"java_version"`
	ForwardMode      bool   `db:"forward_mode"`
	ProgramPath      string `db:"program_path"`
	RunAsUser        string `db:"run_as_user"`
	Cols             int    `db:"cols"`
	Rows             int    `db:"rows"`
	CreatedAt        string `db:"created_at"`
	LastStarted      string `db:"last_started"`
	LastStopped      string `db:"last_stopped"`
}

// SQLStore keeps records in a SQLite database.
type SQLStore struct {
	db *sqlx.DB
}

// OpenSQLStore opens (creating if needed) the database at path.
func OpenSQLStore(path string) (*SQLStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create database dir: %w", err)
	}
	db, err := sqlx.Connect("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// SQLite allows one writer; a single connection avoids busy errors.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &SQLStore{db: db}, nil
}

// Load returns every record in stored order.
func (s *SQLStore) Load() ([]instance.Record, error) {
	var rows []instanceRow
	if err := s.db.Select(&rows, "SELECT * FROM instances ORDER BY position"); err != nil {
		return nil, fmt.Errorf("select instances: %w", err)
	}

	records := make([]instance.Record, 0, len(rows))
	for _, row := range rows {
		rec, err := row.record()
		if err != nil {
			return nil, fmt.Errorf("instance %s: %w", row.ID, err)
		}
		records = append(records, rec)
	}
	return records, nil
}

// Save replaces the stored records in one transaction.
func (s *SQLStore) Save(records []instance.Record) error {
	tx, err := s.db.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM instances"); err != nil {
		return fmt.Errorf("clear instances: %w", err)
	}
	for i, rec := range records {
		if _, err := tx.NamedExec(insertSQL, newInstanceRow(i, rec)); err != nil {
			return fmt.Errorf("insert instance %s: %w", rec.ID, err)
		}
	}
	return tx.Commit()
}

// Close closes the database.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

func newInstanceRow(position int, rec instance.Record) instanceRow {
	return instanceRow{
		ID:               rec.ID,
		Position:         position,
		Name:             rec.Name,
		Description:      rec.Description,
		WorkingDirectory: rec.WorkingDirectory,
		StartCommand:     rec.StartCommand,
		StopCommand:      string(rec.StopCommand),
		AutoStart:        rec.AutoStart,
		Type:             string(rec.Type),
		JavaVersion:      rec.JavaVersion,
		ForwardMode:      rec.ForwardMode,
		ProgramPath:      rec.ProgramPath,
		RunAsUser:        rec.RunAsUser,
		Cols:             rec.Cols,
		Rows:             rec.Rows,
		CreatedAt:        formatTime(rec.CreatedAt),
		LastStarted:      formatTime(rec.LastStarted),
		LastStopped:      formatTime(rec.LastStopped),
	}
}

func (r instanceRow) record() (instance.Record, error) {
	rec := instance.Record{
		ID:               r.ID,
		Name:             r.Name,
		Description:      r.Description,
		WorkingDirectory: r.WorkingDirectory,
		StartCommand:     r.StartCommand,
		StopCommand:      instance.StopCommand(r.StopCommand),
		AutoStart:        r.AutoStart,
		Type:             instance.Type(r.Type),
		JavaVersion:      r.JavaVersion,
		ForwardMode:      r.ForwardMode,
		ProgramPath:      r.ProgramPath,
		RunAsUser:        r.RunAsUser,
		Cols:             r.Cols,
		Rows:             r.Rows,
	}
	var err error
	if rec.CreatedAt, err = parseTime(r.CreatedAt); err != nil {
		return rec, err
	}
	if rec.LastStarted, err = parseTime(r.LastStarted); err != nil {
		return rec, err
	}
	if rec.LastStopped, err = parseTime(r.LastStopped); err != nil {
		return rec, err
	}
	return rec, nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse time %q: %w", s, err)
	}
	return t, nil
}
