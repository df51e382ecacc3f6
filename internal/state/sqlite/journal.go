package sqlite

import (
	"context"
	"database/sql"
	"time"

	_ "modernc.org/sqlite"

	"etf-mm-bot/internal/state"
)

type Journal struct {
	db *sql.DB
}

func New(path string) (*Journal, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Journal{db: db}, nil
}

func initSchema(db *sql.DB) error {
	_, err := db.Exec(`CREATE TABLE IF NOT EXISTS events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		ts INTEGER NOT NULL,
		kind TEXT NOT NULL,
		payload TEXT NOT NULL
	)`)
	return err
}

func (j *Journal) Append(ctx context.Context, entry state.Entry) error {
	_, err := j.db.ExecContext(ctx,
		`INSERT INTO events (ts, kind, payload) VALUES (?, ?, ?)`,
		entry.Time.UnixMilli(), entry.Kind, entry.Payload)
	return err
}

func (j *Journal) Recent(ctx context.Context, limit int) ([]state.Entry, error) {
	rows, err := j.db.QueryContext(ctx,
		`SELECT ts, kind, payload FROM events ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var entries []state.Entry
	for rows.Next() {
		var ts int64
		var entry state.Entry
		if err := rows.Scan(&ts, &entry.Kind, &entry.Payload); err != nil {
			return nil, err
		}
		entry.Time = time.UnixMilli(ts).UTC()
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func (j *Journal) Close() error {
	return j.db.Close()
}
