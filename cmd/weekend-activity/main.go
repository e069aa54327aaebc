// cmd/weekend-activity/main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jackc/pgx/v5/pgxpool"

	"weekend-activity/internal/config"
	"weekend-activity/internal/diff"
	custom_errors "weekend-activity/internal/errors"
	"weekend-activity/internal/fetcher"
	"weekend-activity/internal/github"
	"weekend-activity/internal/report"
	"weekend-activity/internal/retry"
	"weekend-activity/internal/slack"
	"weekend-activity/internal/store"
	"weekend-activity/internal/summarizer"
	"weekend-activity/internal/tracker"
)

const defaultConfigPath = "config.yaml"

func main() {
	if err := run(os.Args[1:]); err != nil {
		slog.Error("Command failed", "error", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: weekend-activity <report|add-repo> [flags]")
	}

	switch args[0] {
	case "report":
		return runReport(args[1:])
	case "add-repo":
		return runAddRepo(args[1:])
	default:
		return fmt.Errorf("unknown command %q, expected report or add-repo", args[0])
	}
}

func runReport(args []string) error {
	fs := flag.NewFlagSet("report", flag.ContinueOnError)
	dateFlag := fs.String("date", "", "reference date for the weekend window (YYYY-MM-DD, default today)")
	configPath := fs.String("config", defaultConfigPath, "path to the YAML config file")
	formatFlag := fs.String("format", "text", "report format: text or slack")
	notify := fs.Bool("notify", false, "send the report to the configured Slack webhook")
	noNotify := fs.Bool("no-notify", false, "suppress Slack delivery even when --notify is set")
	if err := fs.Parse(args); err != nil {
		return err
	}
	sendNotify := shouldNotify(*notify, *noNotify)

	// 1. Initialize structured logger
	logLevel := new(slog.LevelVar)
	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})
	logger := slog.New(handler)
	slog.SetDefault(logger)

	// 2. Load configuration
	env, err := config.LoadEnv()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	setLogLevel(env.LogLevel, logLevel)

	cfg, err := config.LoadFile(*configPath)
	if err != nil {
		return err
	}
	logger.Info("Configuration loaded successfully", "repos", len(cfg.Repositories), "timezone", cfg.Timezone)

	format, err := report.ParseFormat(*formatFlag)
	if err != nil {
		return err
	}

	var refDate time.Time
	if *dateFlag != "" {
		loc, err := time.LoadLocation(cfg.Timezone)
		if err != nil {
			return &custom_errors.InvalidTimeZoneError{Zone: cfg.Timezone, Err: err}
		}
		refDate, err = time.ParseInLocation("2006-01-02", *dateFlag, loc)
		if err != nil {
			return fmt.Errorf("invalid --date %q, expected YYYY-MM-DD: %w", *dateFlag, err)
		}
	}

	// 3. Setup context for graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// 4. Initialize database connection and run migrations
	dbpool, err := pgxpool.New(ctx, env.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer dbpool.Close()

	if err := runMigrations(env.DatabaseURL); err != nil {
		return fmt.Errorf("failed to run database migrations: %w", err)
	}
	logger.Info("Database migrations applied successfully")

	// 5. Initialize application components
	policy := retry.DefaultPolicy()
	ghClient := github.NewClient(env.GithubToken, logger)
	activityStore := store.New(dbpool, logger)
	activityFetcher := fetcher.NewFetcher(ghClient, activityStore, logger, policy)

	excludes := append(append([]string{}, diff.DefaultExcludes...), cfg.ExcludeFiles...)
	filter := diff.NewFilter(excludes, cfg.Summary.DiffCharBudget)

	var generator summarizer.Generator
	if env.AnthropicAPIKey != "" && !cfg.Summary.DisableAI {
		generator = summarizer.NewAnthropicGenerator(env.AnthropicAPIKey, env.AnthropicModel)
	} else {
		logger.Info("AI summaries disabled, every record gets the deterministic fallback")
	}
	engine := summarizer.NewEngine(generator, ghClient, activityStore, filter, policy, logger)

	var notifier tracker.Notifier
	if env.SlackWebhookURL != "" {
		notifier = slack.NewNotifier(env.SlackWebhookURL, cfg.Slack.Channel, cfg.Slack.Username, cfg.Slack.IconEmoji, policy, logger)
	} else if sendNotify {
		return fmt.Errorf("--notify requires SLACK_WEBHOOK_URL to be configured")
	}

	builder := report.NewBuilder(cfg.Summary.MaxCommitsPerUser, cfg.Summary.MaxPRsPerUser)

	// 6. Run the report
	t := tracker.New(activityFetcher, engine, activityStore, builder, notifier, cfg, logger)
	text, err := t.Run(ctx, tracker.Options{Date: refDate, Format: format, Notify: sendNotify})
	if err != nil {
		return err
	}

	fmt.Println(text)
	return nil
}

func runAddRepo(args []string) error {
	fs := flag.NewFlagSet("add-repo", flag.ContinueOnError)
	configPath := fs.String("config", defaultConfigPath, "path to the YAML config file")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("usage: weekend-activity add-repo [--config path] owner/repo")
	}

	spec, err := config.ParseRepoSpec(fs.Arg(0))
	if err != nil {
		return err
	}

	added, err := config.AddRepository(*configPath, spec)
	if err != nil {
		return err
	}
	if added {
		fmt.Printf("Added %s/%s to %s\n", spec.Owner, spec.Repo, *configPath)
	} else {
		fmt.Printf("%s/%s is already tracked in %s\n", spec.Owner, spec.Repo, *configPath)
	}
	return nil
}

// shouldNotify resolves the --notify/--no-notify pair; the explicit opt-out
// always wins.
func shouldNotify(notify, noNotify bool) bool {
	return notify && !noNotify
}

func runMigrations(dbURL string) error {
	m, err := migrate.New("file://migrations", dbURL)
	if err != nil {
		return err
	}
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return err
	}
	return nil
}

func setLogLevel(level string, v *slog.LevelVar) {
	switch level {
	case "debug":
		v.Set(slog.LevelDebug)
	case "warn":
		v.Set(slog.LevelWarn)
	case "error":
		v.Set(slog.LevelError)
	default:
		v.Set(slog.LevelInfo)
	}
}
