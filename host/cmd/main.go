package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"

	"github.com/l2verify/fault-proof/host"
	"github.com/l2verify/fault-proof/host/config"
	"github.com/l2verify/fault-proof/host/flags"
	oplog "github.com/l2verify/fault-proof/log"
)

func main() {
	// Best-effort: most invocations pass every flag via the environment or
	// the command line directly, so a missing .env file is not an error.
	_ = godotenv.Load()

	app := &cli.App{
		Name:  "fault-proof-host",
		Usage: "serve a pre-populated preimage store to the fault proof verifier client",
		Flags: flags.Flags,
		Action: func(ctx *cli.Context) error {
			logger := oplog.NewLogger(os.Stdout, oplog.DefaultCLIConfig())
			cfg, err := config.NewConfigFromCLI(ctx)
			if err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}
			return host.Run(logger, cfg)
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
}
