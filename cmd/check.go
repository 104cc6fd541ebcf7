package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"restockwatch/internal/clock/system"
	"restockwatch/internal/config"
	collyfetcher "restockwatch/internal/fetcher/colly"
	"restockwatch/internal/logging"
	"restockwatch/internal/notify"
	"restockwatch/internal/state"
	"restockwatch/internal/watch"
)

// newCheckCmd creates and configures the 'check' subcommand, which performs
// one fetch-classify-notify-persist cycle.
func newCheckCmd() *cobra.Command {
	var (
		urlOverride string
		stateFile   string
		dryRun      bool
	)

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Checks the product page once and reports the verdict",
		Long: `Fetches the watched product page, classifies its availability, and prints
exactly one line: "<VERDICT> - <reason>". A transition into BUYABLE triggers
the configured webhook. State is kept in a small JSON file between runs.`,

		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return err
			}
			if urlOverride != "" {
				cfg.Watch.URL = urlOverride
				if err := cfg.Validate(); err != nil {
					return err
				}
			}
			if stateFile != "" {
				cfg.State.File = stateFile
			}

			logger, err := logging.New(verbose || cfg.Logging.Development)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			defer func() { _ = logger.Sync() }()
			if !verbose {
				// Keep stderr quiet under a scheduler unless something is off.
				logger = logger.WithOptions(zap.IncreaseLevel(zapcore.WarnLevel))
			}

			runner := buildRunner(cfg, dryRun, logger)
			result, err := runner.Run(cmd.Context())
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%s - %s\n", result.Verdict.Status, result.Verdict.Reason)
			if !result.Verdict.Buyable() {
				return errNotBuyable
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&urlOverride, "url", "", "override the watched product URL")
	cmd.Flags().StringVar(&stateFile, "state-file", "", "override the state file path")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "never deliver notifications")

	return cmd
}

func buildRunner(cfg config.Config, dryRun bool, logger *zap.Logger) *watch.Runner {
	fetcher := collyfetcher.New(collyfetcher.Config{
		UserAgent: cfg.Watch.UserAgent,
		Timeout:   cfg.HTTP.Timeout,
	})
	classifier := watch.NewClassifier(cfg.Profile())
	store := state.NewFileStore(cfg.State.File, logger)

	var notifier watch.Notifier
	if cfg.Notify.WebhookURL != "" {
		notifier = notify.NewWebhook(cfg.Notify.WebhookURL, cfg.Notify.Timeout, logger)
	}

	policy := watch.NewRetryPolicy(cfg.HTTP.MaxRetries, cfg.HTTP.BackoffInitial, cfg.HTTP.BackoffMax)

	return watch.NewRunner(
		fetcher,
		classifier,
		store,
		notifier,
		policy,
		system.New(),
		watch.RunnerConfig{URL: cfg.Watch.URL, DryRun: dryRun},
		logger,
	)
}
