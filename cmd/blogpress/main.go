package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"blogpress/internal/config"

	"github.com/joho/godotenv"
)

const usage = `usage: blogpress <command> [args]

commands:
  serve                          run the API server (default)
  migrate                        apply database migrations
  create-admin <email> <pass>    create an admin account
  hash-password <pass>           print a bcrypt hash
  import <dir>                   import markdown posts from dir
  sync-replica                   copy uploads missing from the S3 replica
`

// commands that need only the configuration and a logger
type command func(ctx context.Context, cfg *config.Config, logger *slog.Logger, args []string) error

var commands = map[string]command{
	"serve":         serve,
	"migrate":       migrateCmd,
	"create-admin":  createAdmin,
	"hash-password": hashPassword,
	"import":        importCmd,
	"sync-replica":  syncReplica,
}

func main() {
	// a missing .env is normal in containers
	_ = godotenv.Load()

	cfg := config.LoadWithDefaults()
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(2)
	}

	logHandler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.Logger.Level})
	logger := slog.New(logHandler).With("app", cfg.App.Name)

	name, args := "serve", os.Args[1:]
	if len(args) > 0 {
		name, args = args[0], args[1:]
	}

	cmd, ok := commands[name]
	if !ok {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	rootCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cmd(rootCtx, cfg, logger, args); err != nil {
		logger.Error("command failed", "command", name, "err", err)
		stop()
		os.Exit(1)
	}
}
