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

	"igtracker/pkg/checker"
	"igtracker/pkg/config"
	"igtracker/pkg/instagram"
	"igtracker/pkg/logger"
	"igtracker/pkg/ratelimit"
	"igtracker/pkg/store"
	"igtracker/pkg/telegram"
)

// checkCmd represents the check command
var checkCmd = &cobra.Command{
	Use:   "check <subscriber-id>",
	Short: "Run one sync cycle for a subscriber",
	Long: `Run a single sync cycle for the given subscriber without starting the
bot update loop. New posts are delivered to the subscriber's Telegram chat,
so a bot token is still required.

Useful from cron or for debugging a stuck subscription.`,
	Example: `  # Check subscriber 123456789 once
  igtracker check 123456789`,
	Args: cobra.ExactArgs(1),
	RunE: runCheckOnce,
}

func init() {
	rootCmd.AddCommand(checkCmd)
}

func runCheckOnce(cmd *cobra.Command, args []string) error {
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

	if cfg.Telegram.Token == "" {
		return errors.New("telegram bot token is required (set IGTRACKER_BOT_TOKEN or telegram.token)")
	}
	resolveSession(cfg, log)

	st, err := store.New(cfg.Store.Path)
	if err != nil {
		return fmt.Errorf("failed to open subscriber store: %w", err)
	}
	if _, err := st.Reconcile(); err != nil {
		return fmt.Errorf("failed to reconcile subscriber store: %w", err)
	}

	client := instagram.NewClient(cfg.Instagram.RequestTimeout, retryConfig(cfg), log)
	client.SetHeaders(sessionHeaders(cfg))
	source := instagram.NewSource(client, ratelimit.NewTokenBucket(cfg.RateLimit.RequestsPerMinute, time.Minute))

	api, err := tgbotapi.NewBotAPI(cfg.Telegram.Token)
	if err != nil {
		return fmt.Errorf("failed to connect to Telegram: %w", err)
	}

	chk := checker.New(st, source, telegram.NewDispatcher(api), checker.Options{
		Window:       cfg.Pacing.LookaheadWindow,
		PullDelay:    cfg.Pacing.PostFetchDelay,
		PacingBase:   cfg.Pacing.CheckDelayBase,
		PacingJitter: cfg.Pacing.CheckDelayJitter,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return chk.RunCheck(ctx, args[0])
}
