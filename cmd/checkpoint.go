package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/pipecast/interview/internal/checkpoint"
	"github.com/pipecast/interview/internal/config"
)

// CheckpointCommand returns the checkpoint command
func CheckpointCommand() *cli.Command {
	return &cli.Command{
		Name:  "checkpoint",
		Usage: "Inspect the local checkpoint cache",
		Subcommands: []*cli.Command{
			{
				Name:   "show",
				Usage:  "Show cached progress for the configured campaign",
				Action: runCheckpointShow,
			},
			{
				Name:   "clear",
				Usage:  "Drop all cached records for the configured campaign",
				Action: runCheckpointClear,
			},
		},
	}
}

func openCheckpointStore(c *cli.Context) (*checkpoint.SQLiteStore, string, error) {
	cfg, err := config.LoadConfig(c.String("config"))
	if err != nil {
		return nil, "", fmt.Errorf("failed to load config: %w", err)
	}
	if cfg.Campaign.ID == "" {
		return nil, "", fmt.Errorf("campaign id is required")
	}
	store, err := checkpoint.NewSQLite(cfg.Checkpoint.Path)
	if err != nil {
		return nil, "", fmt.Errorf("failed to open checkpoint store: %w", err)
	}
	return store, cfg.Campaign.ID, nil
}

func runCheckpointShow(c *cli.Context) error {
	store, campaignID, err := openCheckpointStore(c)
	if err != nil {
		return err
	}
	defer store.Close()
	ctx := context.Background()

	progress, err := store.LoadProgress(ctx, campaignID)
	if err != nil {
		return fmt.Errorf("failed to load progress checkpoint: %w", err)
	}
	if progress == nil {
		fmt.Printf("No progress checkpoint for campaign %s\n", campaignID)
	} else {
		fmt.Printf("Conversation %s - %d%% complete, phase %q, saved %s\n",
			progress.ConversationID, progress.Progress, progress.Phase,
			progress.LastSaved.Format(time.RFC3339))
	}

	paused, err := store.LoadPaused(ctx, campaignID)
	if err != nil {
		return fmt.Errorf("failed to load paused checkpoint: %w", err)
	}
	if paused != nil {
		fmt.Printf("Paused at %s with %d messages\n",
			paused.PausedAt.Format(time.RFC3339), paused.MessageCount)
	}

	return nil
}

func runCheckpointClear(c *cli.Context) error {
	store, campaignID, err := openCheckpointStore(c)
	if err != nil {
		return err
	}
	defer store.Close()
	ctx := context.Background()

	if err := store.ClearProgress(ctx, campaignID); err != nil {
		return fmt.Errorf("failed to clear progress checkpoint: %w", err)
	}
	if err := store.ClearPaused(ctx, campaignID); err != nil {
		return fmt.Errorf("failed to clear paused checkpoint: %w", err)
	}

	fmt.Printf("Cleared checkpoints for campaign %s\n", campaignID)
	return nil
}
