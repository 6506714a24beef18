// Package checkpoint provides the campaign-keyed local cache of interview
// progress. Records here are informational only: they survive restarts so
// the UI can say things like "resumed - 12 messages", but the backend's
// view of a conversation always wins over anything stored locally.
package checkpoint

import (
	"context"
	"time"
)

// ProgressRecord is the rolling checkpoint written after state-changing
// operations on an active conversation.
type ProgressRecord struct {
	ConversationID string    `json:"conversation_id"`
	Progress       int       `json:"progress"`
	Phase          string    `json:"phase"`
	LastSaved      time.Time `json:"last_saved"`
}

// PausedRecord marks a conversation the user paused deliberately, so a
// later session can tell "gracefully paused" apart from "abandoned mid-flow".
type PausedRecord struct {
	ConversationID string    `json:"conversation_id"`
	PausedAt       time.Time `json:"paused_at"`
	MessageCount   int       `json:"message_count"`
	Progress       int       `json:"progress"`
}

// Store persists checkpoint records keyed by campaign id. Loads return
// (nil, nil) when no record exists; clears are idempotent.
type Store interface {
	SaveProgress(ctx context.Context, campaignID string, rec ProgressRecord) error
	LoadProgress(ctx context.Context, campaignID string) (*ProgressRecord, error)
	ClearProgress(ctx context.Context, campaignID string) error

	SavePaused(ctx context.Context, campaignID string, rec PausedRecord) error
	LoadPaused(ctx context.Context, campaignID string) (*PausedRecord, error)
	ClearPaused(ctx context.Context, campaignID string) error

	Close() error
}
