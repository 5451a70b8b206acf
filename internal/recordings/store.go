package recordings

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"murmur/internal/config"
)

// ErrNotFound is returned when a recording id has no row.
var ErrNotFound = errors.New("recording not found")

// Store manages the recordings library backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the recordings database and applies
// migrations.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}
	return OpenPath(filepath.Join(cfg.Paths.DataDir, "recordings.db"))
}

// OpenPath opens the database at an explicit path.
func OpenPath(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath}
	if err := store.applyMigrations(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Path returns the database file location.
func (s *Store) Path() string { return s.path }

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// NewRecording carries the fields persisted by Save.
type NewRecording struct {
	Title           string
	AudioPath       string
	TranscriptPath  string
	TextPath        string
	DurationSeconds int64
}

// Save inserts a finished memo and returns the stored row.
func (s *Store) Save(ctx context.Context, rec NewRecording) (*Recording, error) {
	timestamp := time.Now().UTC().Format(time.RFC3339Nano)

	res, err := s.db.ExecContext(
		ctx,
		`INSERT INTO recordings (
            title, audio_path, transcript_path, text_path,
            duration_seconds, created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.Title,
		rec.AudioPath,
		rec.TranscriptPath,
		nullableString(rec.TextPath),
		rec.DurationSeconds,
		timestamp,
		timestamp,
	)
	if err != nil {
		return nil, fmt.Errorf("insert recording: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(ctx, id)
}

const recordingColumns = `id, title, audio_path, transcript_path, text_path,
    duration_seconds, created_at, updated_at`

// GetByID fetches one recording.
func (s *Store) GetByID(ctx context.Context, id int64) (*Recording, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+recordingColumns+" FROM recordings WHERE id = ?", id)
	rec, err := scanRecording(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: id %d", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get recording: %w", err)
	}
	return rec, nil
}

// List returns all recordings, newest first.
func (s *Store) List(ctx context.Context) ([]*Recording, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+recordingColumns+" FROM recordings ORDER BY created_at DESC, id DESC")
	if err != nil {
		return nil, fmt.Errorf("list recordings: %w", err)
	}
	defer rows.Close()

	var out []*Recording
	for rows.Next() {
		rec, err := scanRecording(rows)
		if err != nil {
			return nil, fmt.Errorf("scan recording: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate recordings: %w", err)
	}
	return out, nil
}

// Remove deletes a recording row and returns the removed record so callers can
// clean up its artifacts.
func (s *Store) Remove(ctx context.Context, id int64) (*Recording, error) {
	rec, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, err := s.db.ExecContext(ctx, "DELETE FROM recordings WHERE id = ?", id); err != nil {
		return nil, fmt.Errorf("delete recording: %w", err)
	}
	return rec, nil
}

// Stats summarizes the library.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT COUNT(1), COALESCE(SUM(duration_seconds), 0) FROM recordings")
	var stats Stats
	if err := row.Scan(&stats.Total, &stats.TotalDurationSeconds); err != nil {
		return Stats{}, fmt.Errorf("scan stats: %w", err)
	}
	return stats, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecording(row rowScanner) (*Recording, error) {
	var (
		rec       Recording
		textPath  sql.NullString
		createdAt string
		updatedAt string
	)
	if err := row.Scan(
		&rec.ID, &rec.Title, &rec.AudioPath, &rec.TranscriptPath, &textPath,
		&rec.DurationSeconds, &createdAt, &updatedAt,
	); err != nil {
		return nil, err
	}
	rec.TextPath = textPath.String

	var err error
	if rec.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	if rec.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAt); err != nil {
		return nil, fmt.Errorf("parse updated_at: %w", err)
	}
	return &rec, nil
}

func nullableString(v string) any {
	if v == "" {
		return nil
	}
	return v
}
