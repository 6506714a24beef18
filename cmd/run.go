package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	"github.com/pipecast/interview/internal/checkpoint"
	"github.com/pipecast/interview/internal/config"
	"github.com/pipecast/interview/internal/logging"
	"github.com/pipecast/interview/internal/orchestrator"
	"github.com/pipecast/interview/internal/session"
	"github.com/pipecast/interview/internal/transport"
)

// RunCommand returns the run command
func RunCommand() *cli.Command {
	return &cli.Command{
		Name:  "run",
		Usage: "Run an interactive interview session against the conversation engine",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "campaign",
				Aliases: []string{"C"},
				Usage:   "Override the campaign id from the config",
			},
			&cli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"v"},
				Usage:   "Enable verbose output for this command",
			},
		},
		Action: runInterview,
	}
}

func runInterview(c *cli.Context) error {
	logging.Setup(c.Bool("verbose"))

	cfg, err := config.LoadConfig(c.String("config"))
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if campaign := c.String("campaign"); campaign != "" {
		cfg.Campaign.ID = campaign
	}
	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	store, err := checkpoint.NewSQLite(cfg.Checkpoint.Path)
	if err != nil {
		return fmt.Errorf("failed to open checkpoint store: %w", err)
	}
	defer store.Close()

	api := transport.NewClient(cfg.API.BaseURL, cfg.API.Token)
	orch := orchestrator.New(api, store, orchestrator.Options{
		CampaignID:     cfg.Campaign.ID,
		Onboarding:     cfg.Campaign.Onboarding,
		AutoStartDelay: cfg.AutoStartDelay(),
	})
	defer orch.Close()

	ctx := context.Background()

	outcome, err := orch.Resolve(ctx)
	if err != nil {
		return fmt.Errorf("failed to resolve session state: %w", err)
	}

	switch outcome {
	case orchestrator.OutcomeAlreadyComplete:
		fmt.Println("This interview is already complete. Type /restart to start over, or /quit to leave.")
	case orchestrator.OutcomeResuming:
		sess := orch.Session()
		fmt.Printf("Resumed conversation %s - %d messages, %d%% complete\n",
			sess.ConversationID, len(sess.Messages), sess.Progress)
		if paused, err := store.LoadPaused(ctx, cfg.Campaign.ID); err == nil && paused != nil {
			fmt.Printf("(paused %s ago)\n", time.Since(paused.PausedAt).Round(time.Minute))
		}
		printTranscript(sess)
	case orchestrator.OutcomeIdleReady:
		fmt.Println("No previous session found, starting a new interview...")
		if err := waitForConversation(orch, cfg.AutoStartDelay()+30*time.Second); err != nil {
			return err
		}
		printTranscript(orch.Session())
	}

	var transcript *logging.TranscriptLogger
	if sess := orch.Session(); sess.ConversationID != "" {
		dir := filepath.Join(filepath.Dir(cfg.Checkpoint.Path), "transcripts")
		transcript, err = logging.StartTranscript(dir, sess.ConversationID)
		if err != nil {
			log.Warn().Err(err).Msg("transcript logging disabled")
		} else {
			defer transcript.Close()
		}
	}

	return interactiveLoop(ctx, orch, transcript)
}

// waitForConversation blocks until the debounced auto-start has produced a
// conversation id, or gives up.
func waitForConversation(orch *orchestrator.Orchestrator, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		sess := orch.Session()
		if sess.ConversationID != "" {
			return nil
		}
		if sess.Connection == session.StatusError {
			return fmt.Errorf("could not start a new conversation")
		}
		time.Sleep(200 * time.Millisecond)
	}
	return fmt.Errorf("timed out waiting for the conversation to start")
}

func printTranscript(sess session.ConversationSession) {
	for _, m := range sess.Messages {
		printMessage(m)
	}
}

func printMessage(m session.Message) {
	prefix := "you"
	if m.Sender == session.SenderBot {
		prefix = "bot"
	}
	suffix := ""
	if m.Delivery == session.DeliveryFailed {
		suffix = " (not delivered)"
	}
	fmt.Printf("[%s] %s%s\n", prefix, m.Text, suffix)
	if len(m.QuickReplies) > 0 {
		fmt.Printf("    suggestions: %s\n", strings.Join(m.QuickReplies, " | "))
	}
}

func interactiveLoop(ctx context.Context, orch *orchestrator.Orchestrator, transcript *logging.TranscriptLogger) error {
	scanner := bufio.NewScanner(os.Stdin)
	fmt.Println("Type your answers. Commands: /pause /complete /restart /summary /quit")

	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		switch line {
		case "/quit":
			return nil

		case "/pause":
			if err := orch.PauseConversation(ctx); err != nil {
				fmt.Printf("Pause failed: %v\n", err)
				continue
			}
			fmt.Println("Conversation paused. Run `interview run` later to pick it back up.")
			return nil

		case "/complete":
			if err := orch.CompleteConversation(ctx); err != nil {
				fmt.Printf("Completion failed, you can retry: %v\n", err)
				continue
			}
			fmt.Println("Interview complete. Thanks!")
			return nil

		case "/restart":
			if err := orch.RestartConversation(ctx); err != nil {
				fmt.Printf("Restart failed: %v\n", err)
				continue
			}
			fmt.Println("Starting over.")
			printTranscript(orch.Session())

		case "/summary":
			doc, err := orch.GetSummary(ctx)
			if err != nil {
				fmt.Printf("Could not fetch summary: %v\n", err)
				continue
			}
			for k, v := range doc {
				fmt.Printf("%s: %v\n", k, v)
			}

		default:
			transcript.LogExchange("you", line)
			res, err := orch.SendMessage(ctx, line)
			if err != nil {
				switch {
				case errors.Is(err, orchestrator.ErrConversationGone):
					fmt.Println("This conversation no longer exists - it may have been completed elsewhere. Type /restart to begin a new one.")
				case errors.Is(err, orchestrator.ErrSessionComplete):
					fmt.Println("The interview is already complete. Type /restart to start over.")
				case errors.Is(err, orchestrator.ErrNoConversation):
					fmt.Println("No active conversation yet. Type /restart to start one.")
				default:
					fmt.Printf("Send failed, try again: %v\n", err)
				}
				continue
			}

			sess := orch.Session()
			if last := sess.LastMessage(); last != nil && last.Sender == session.SenderBot {
				printMessage(*last)
				transcript.LogExchange("bot", last.Text)
			}
			fmt.Printf("    [%d%% complete, %d keywords]\n", sess.Progress, sess.KeywordsCount)
			if res.ReadyForCompletion {
				fmt.Println("    We have enough for your media kit - type /complete when you're ready.")
			}
		}
	}
}
