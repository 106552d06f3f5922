package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/spf13/cobra"

	"igtracker/internal/worker"
	"igtracker/pkg/auth"
	"igtracker/pkg/checker"
	"igtracker/pkg/config"
	"igtracker/pkg/instagram"
	"igtracker/pkg/logger"
	"igtracker/pkg/ratelimit"
	"igtracker/pkg/retry"
	"igtracker/pkg/store"
	"igtracker/pkg/telegram"
)

var checkWorkers int

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the tracker bot",
	Long: `Start the Telegram bot and serve subscriber commands until interrupted.

The bot needs a Telegram bot token (IGTRACKER_BOT_TOKEN or telegram.token in
the config file) and an Instagram web session. Sessions stored with
'igtracker auth login' are picked up automatically.`,
	Example: `  # Start with defaults
  igtracker run

  # Start with an explicit config file
  igtracker run --config /etc/igtracker.yaml`,
	RunE: runBot,
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().IntVar(&checkWorkers, "check-workers", 2, "number of concurrent check workers")
}

func runBot(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return err
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}

	if err := logger.Initialize(&cfg.Logging); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	log := logger.GetLogger()
	log.WithField("version", version).Info("Instagram Tracker starting")

	if cfg.Telegram.Token == "" {
		return errors.New("telegram bot token is required (set IGTRACKER_BOT_TOKEN or telegram.token)")
	}

	resolveSession(cfg, log)
	if cfg.Instagram.SessionID == "" {
		log.Warn("no Instagram session configured, private API limits will apply")
	}

	st, err := store.New(cfg.Store.Path)
	if err != nil {
		return fmt.Errorf("failed to open subscriber store: %w", err)
	}
	cleared, err := st.Reconcile()
	if err != nil {
		return fmt.Errorf("failed to reconcile subscriber store: %w", err)
	}
	if cleared > 0 {
		log.WithField("subscribers", cleared).Warn("cleared stale busy flags left by a previous run")
	}

	client := instagram.NewClient(cfg.Instagram.RequestTimeout, retryConfig(cfg), log)
	client.SetHeaders(sessionHeaders(cfg))

	limiter := ratelimit.NewTokenBucket(cfg.RateLimit.RequestsPerMinute, time.Minute)
	source := instagram.NewSource(client, limiter)

	api, err := tgbotapi.NewBotAPI(cfg.Telegram.Token)
	if err != nil {
		return fmt.Errorf("failed to connect to Telegram: %w", err)
	}
	log.WithField("bot", api.Self.UserName).Info("connected to Telegram")

	dispatcher := telegram.NewDispatcher(api)
	chk := checker.New(st, source, dispatcher, checker.Options{
		Window:       cfg.Pacing.LookaheadWindow,
		PullDelay:    cfg.Pacing.PostFetchDelay,
		PacingBase:   cfg.Pacing.CheckDelayBase,
		PacingJitter: cfg.Pacing.CheckDelayJitter,
	})

	pool := worker.NewPool(checkWorkers, chk, log)
	pool.Start()
	go func() {
		for range pool.Results() {
		}
	}()

	bot := telegram.New(api, st, chk, dispatcher, pool, cfg.Telegram.AllowedUserID)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err = bot.Run(ctx)
	log.Info("shutting down")
	pool.Shutdown()

	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// resolveSession fills missing Instagram session fields from the credential
// store chain
func resolveSession(cfg *config.Config, log logger.Logger) {
	if cfg.Instagram.SessionID != "" {
		return
	}

	manager, err := auth.NewManager()
	if err != nil {
		log.WithError(err).Debug("credential manager unavailable")
		return
	}

	session, err := manager.RetrieveDefault()
	if err != nil {
		return
	}

	cfg.Instagram.SessionID = session.SessionID
	if session.CSRFToken != "" {
		cfg.Instagram.CSRFToken = session.CSRFToken
	}
	if session.UserAgent != "" {
		cfg.Instagram.UserAgent = session.UserAgent
	}
	log.WithField("label", session.Label).Info("loaded Instagram session from credential store")
}

func sessionHeaders(cfg *config.Config) map[string]string {
	headers := map[string]string{
		"User-Agent": cfg.Instagram.UserAgent,
		"Referer":    "https://www.instagram.com/",
	}
	if cfg.Instagram.SessionID != "" {
		headers["Cookie"] = fmt.Sprintf("sessionid=%s; csrftoken=%s", cfg.Instagram.SessionID, cfg.Instagram.CSRFToken)
		headers["X-CSRFToken"] = cfg.Instagram.CSRFToken
	}
	return headers
}

func retryConfig(cfg *config.Config) *retry.Config {
	return &retry.Config{
		MaxAttempts: cfg.Retry.MaxAttempts,
		Backoff: &retry.ExponentialBackoff{
			BaseDelay:    cfg.Retry.BaseDelay,
			MaxDelay:     cfg.Retry.MaxDelay,
			Multiplier:   cfg.Retry.Multiplier,
			JitterFactor: 0.1,
		},
		RetryIf: retry.DefaultRetryIf,
		Context: context.Background(),
		Logger:  logger.GetLogger(),
	}
}
