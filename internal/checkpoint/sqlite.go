package checkpoint

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

const (
	kindProgress = "progress"
	kindPaused   = "paused"
)

// SQLiteStore implements Store on a local SQLite file. One row per
// (campaign, kind) pair; the record itself is stored as JSON so the schema
// never has to migrate when a record grows a field.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens (creating if needed) the checkpoint database at dbPath.
func NewSQLite(dbPath string) (*SQLiteStore, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create checkpoint directory: %w", err)
		}
	}

	dsn := dbPath + "?_journal=WAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open checkpoint database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping checkpoint database: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize checkpoint schema: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	CREATE TABLE IF NOT EXISTS checkpoints (
		campaign_id TEXT NOT NULL,
		kind        TEXT NOT NULL,
		payload     TEXT NOT NULL,
		updated_at  INTEGER NOT NULL,
		PRIMARY KEY (campaign_id, kind)
	);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

func (s *SQLiteStore) save(ctx context.Context, campaignID, kind string, rec any) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal %s checkpoint: %w", kind, err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO checkpoints (campaign_id, kind, payload, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (campaign_id, kind) DO UPDATE SET
			payload = excluded.payload,
			updated_at = excluded.updated_at
	`, campaignID, kind, string(payload), time.Now().Unix())
	if err != nil {
		return fmt.Errorf("save %s checkpoint: %w", kind, err)
	}
	return nil
}

func (s *SQLiteStore) load(ctx context.Context, campaignID, kind string, rec any) (bool, error) {
	var payload string
	err := s.db.QueryRowContext(ctx,
		`SELECT payload FROM checkpoints WHERE campaign_id = ? AND kind = ?`,
		campaignID, kind).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("load %s checkpoint: %w", kind, err)
	}
	if err := json.Unmarshal([]byte(payload), rec); err != nil {
		return false, fmt.Errorf("decode %s checkpoint: %w", kind, err)
	}
	return true, nil
}

func (s *SQLiteStore) clear(ctx context.Context, campaignID, kind string) error {
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM checkpoints WHERE campaign_id = ? AND kind = ?`,
		campaignID, kind); err != nil {
		return fmt.Errorf("clear %s checkpoint: %w", kind, err)
	}
	return nil
}

func (s *SQLiteStore) SaveProgress(ctx context.Context, campaignID string, rec ProgressRecord) error {
	return s.save(ctx, campaignID, kindProgress, rec)
}

func (s *SQLiteStore) LoadProgress(ctx context.Context, campaignID string) (*ProgressRecord, error) {
	var rec ProgressRecord
	found, err := s.load(ctx, campaignID, kindProgress, &rec)
	if err != nil || !found {
		return nil, err
	}
	return &rec, nil
}

func (s *SQLiteStore) ClearProgress(ctx context.Context, campaignID string) error {
	return s.clear(ctx, campaignID, kindProgress)
}

func (s *SQLiteStore) SavePaused(ctx context.Context, campaignID string, rec PausedRecord) error {
	return s.save(ctx, campaignID, kindPaused, rec)
}

func (s *SQLiteStore) LoadPaused(ctx context.Context, campaignID string) (*PausedRecord, error) {
	var rec PausedRecord
	found, err := s.load(ctx, campaignID, kindPaused, &rec)
	if err != nil || !found {
		return nil, err
	}
	return &rec, nil
}

func (s *SQLiteStore) ClearPaused(ctx context.Context, campaignID string) error {
	return s.clear(ctx, campaignID, kindPaused)
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
