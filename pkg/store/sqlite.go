package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/astromechza/ink-relay/pkg/ink"
)

// SQLite stores strokes in a single table of a sqlite database file.
type SQLite struct {
	database *sql.DB
	clock    clock
}

// OpenSQLite opens (or creates) the database at path and ensures the schema exists.
func OpenSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// sqlite serialises writers anyway, and a single connection keeps :memory: databases coherent
	db.SetMaxOpenConns(1)
	s := &SQLite{database: db}
	if err := s.init(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLite) init() error {
	if _, err := s.database.Exec(
		`CREATE TABLE IF NOT EXISTS strokes (
		id text not null primary key,
		session_id text not null,
		owner_id text not null,
		color text not null,
		width integer not null,
		points text not null,
		created_at integer not null
		)`,
	); err != nil {
		return fmt.Errorf("failed to create strokes table: %w", err)
	}
	if _, err := s.database.Exec(
		`CREATE INDEX IF NOT EXISTS strokes_session_created ON strokes (session_id, created_at)`,
	); err != nil {
		return fmt.Errorf("failed to create strokes index: %w", err)
	}
	slog.Debug("ensured strokes table exists")
	return nil
}

func (s *SQLite) Close() error {
	return s.database.Close()
}

func (s *SQLite) Upsert(ctx context.Context, stroke ink.Stroke) error {
	points := stroke.Points
	if points == nil {
		points = []float64{}
	}
	rawPoints, err := json.Marshal(points)
	if err != nil {
		return fmt.Errorf("failed to encode points: %w", err)
	}
	createdAt := stroke.CreatedAt
	if createdAt.IsZero() {
		createdAt = s.clock.next()
	}
	if _, err := s.database.ExecContext(
		ctx,
		`INSERT INTO strokes (id, session_id, owner_id, color, width, points, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			session_id = excluded.session_id,
			owner_id = excluded.owner_id,
			color = excluded.color,
			width = excluded.width,
			points = excluded.points`,
		stroke.ID, stroke.SessionID, stroke.OwnerID, stroke.Color, stroke.Width, string(rawPoints), createdAt.UnixNano(),
	); err != nil {
		return fmt.Errorf("failed to upsert stroke %s: %w", stroke.ID, err)
	}
	return nil
}

func (s *SQLite) DeleteByID(ctx context.Context, sessionID, id string) (int64, error) {
	res, err := s.database.ExecContext(ctx, `DELETE FROM strokes WHERE session_id = ? AND id = ?`, sessionID, id)
	if err != nil {
		return 0, fmt.Errorf("failed to delete stroke %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count deleted rows: %w", err)
	}
	return n, nil
}

func (s *SQLite) ListBySession(ctx context.Context, sessionID string) ([]ink.Stroke, error) {
	rows, err := s.database.QueryContext(
		ctx,
		`SELECT id, session_id, owner_id, color, width, points, created_at FROM strokes
		WHERE session_id = ? ORDER BY created_at, rowid`,
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query: %w", err)
	}
	defer func(rows *sql.Rows) {
		if err := rows.Close(); err != nil {
			slog.Error("failed to close rows", "err", err)
		}
	}(rows)

	out := make([]ink.Stroke, 0)
	for rows.Next() {
		var st ink.Stroke
		var rawPoints string
		var createdAt int64
		if err := rows.Scan(&st.ID, &st.SessionID, &st.OwnerID, &st.Color, &st.Width, &rawPoints, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan: %w", err)
		}
		if err := json.Unmarshal([]byte(rawPoints), &st.Points); err != nil {
			return nil, fmt.Errorf("failed to decode points of %s: %w", st.ID, err)
		}
		st.CreatedAt = time.Unix(0, createdAt).UTC()
		out = append(out, st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate: %w", err)
	}
	return out, nil
}
