// Command ledger-admin prepares and inspects the configured storage.
//
//	ledger-admin init
//	ledger-admin reset -yes
//	ledger-admin seed
//	ledger-admin stats -email someone@example.com [-period week|month|year]
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"ledger/internal/cli"
	"ledger/internal/gateway"
	"ledger/internal/log"
	"ledger/internal/repository"
	"ledger/internal/stats"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}
	cli.LoadEnvFile()

	cfg, err := cli.LoadAndValidateConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	logger := cli.SetupLogger(cfg, log.ComponentAdmin)

	ctx, stop := cli.SignalContext()
	defer stop()

	store, err := cli.OpenGateway(ctx, cfg, logger, true)
	if err != nil {
		logger.Error("Failed to open storage", log.FieldError, err)
		os.Exit(1)
	}
	defer store.Cleanup()

	if err := dispatch(ctx, store.Gateway, logger, os.Args[1], os.Args[2:]); err != nil {
		logger.Error("Command failed", "command", os.Args[1], log.FieldError, err)
		os.Exit(1)
	}
}

func dispatch(ctx context.Context, gw gateway.Gateway, logger *log.Logger, cmd string, args []string) error {
	repos := repository.New(gw, repository.WithLogger(logger.Logger))
	switch cmd {
	case "init":
		// Opening the store already ran migrations or created collections.
		logger.Info("Storage ready", log.FieldBackend, gw.Name())
		return nil

	case "reset":
		fs := flag.NewFlagSet("reset", flag.ContinueOnError)
		yes := fs.Bool("yes", false, "confirm dropping every table")
		if err := fs.Parse(args); err != nil {
			return err
		}
		if !*yes {
			return errors.New("reset deletes all data; pass -yes to confirm")
		}
		if err := gw.Reset(ctx); err != nil {
			return err
		}
		logger.Warn("Storage reset", log.FieldBackend, gw.Name())
		return nil

	case "seed":
		n, err := repos.Categories.InitializeDefaults(ctx)
		if err != nil {
			return err
		}
		logger.Info("Default categories seeded", "created", n)
		return nil

	case "stats":
		fs := flag.NewFlagSet("stats", flag.ContinueOnError)
		email := fs.String("email", "", "user email")
		period := fs.String("period", "month", "week, month or year")
		if err := fs.Parse(args); err != nil {
			return err
		}
		return printStats(ctx, repos, *email, *period)

	default:
		usage()
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func printStats(ctx context.Context, repos *repository.Repositories, email, period string) error {
	p, err := stats.ParsePeriod(period)
	if err != nil {
		return err
	}
	u, err := repos.Users.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	if u == nil {
		return fmt.Errorf("no user with email %q", email)
	}
	expenses, err := repos.Expenses.GetByUser(ctx, u.ID)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(stats.Compute(expenses, p, time.Now()))
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: ledger-admin init | reset -yes | seed | stats -email ADDR [-period P]")
}
