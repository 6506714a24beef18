package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/pipecast/interview/cmd"
)

const (
	version = "0.1.0"
)

func main() {
	app := &cli.App{
		Name:    "interview",
		Usage:   "Conversation session orchestrator for AI-assisted guest onboarding interviews",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Load configuration from `FILE`",
			},
		},
		Commands: []*cli.Command{
			cmd.RunCommand(),
			cmd.ConfigCommand(),
			cmd.CheckpointCommand(),
		},
	}

	err := app.Run(os.Args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}
