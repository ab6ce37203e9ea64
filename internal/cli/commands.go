// Package cli wires configuration, notification and the execution engine
// into the autotrader command tree.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"autotrader/internal/broker"
	"autotrader/internal/broker/robinhood"
	"autotrader/internal/broker/schwab"
	"autotrader/internal/broker/sofi"
	"autotrader/internal/config"
	"autotrader/internal/credentials"
	"autotrader/internal/engine"
	"autotrader/internal/logger"
	"autotrader/internal/notify"
	"autotrader/internal/registry"
	"autotrader/internal/twofactor"
)

const version = "0.3.0"

// NewRootCmd creates the root command.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "autotrader",
		Short: "autotrader - the same order on every brokerage account at once",
		Long: `autotrader logs into each configured brokerage identity, discovers its
accounts, and either reports holdings or places the same order everywhere.
Credentials come from the environment (or a .env file); sessions are cached
encrypted between runs.`,
		SilenceUsage: true,
	}

	rootCmd.AddCommand(newHoldingsCmd())
	rootCmd.AddCommand(newTradeCmd())
	rootCmd.AddCommand(newVersionCmd())

	return rootCmd
}

func newHoldingsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "holdings",
		Short: "Report holdings across all configured accounts",
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, _, err := buildEngine()
			if err != nil {
				return err
			}

			ctx, stop := signalContext()
			defer stop()

			eng.CollectHoldings(ctx)
			return nil
		},
	}
}

func newTradeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "trade SYMBOL...",
		Short: "Place the same order on every selected account",
		Long: `Place the same order for each listed symbol on every selected account of
every configured identity.
Example: autotrader trade --action buy --amount 1 AAPL MSFT`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			action, _ := cmd.Flags().GetString("action")
			amount, _ := cmd.Flags().GetFloat64("amount")
			dryRun, _ := cmd.Flags().GetBool("dry-run")

			var side broker.Side
			switch action {
			case "buy":
				side = broker.Buy
			case "sell":
				side = broker.Sell
			default:
				return fmt.Errorf("invalid --action %q (want buy or sell)", action)
			}
			if amount <= 0 {
				return fmt.Errorf("invalid --amount %g (must be positive)", amount)
			}

			symbols := make([]string, 0, len(args))
			for _, s := range args {
				symbols = append(symbols, strings.ToUpper(s))
			}

			eng, log, err := buildEngine()
			if err != nil {
				return err
			}

			ctx, stop := signalContext()
			defer stop()

			results := eng.ExecuteOrders(ctx, engine.OrderRequest{
				Symbols: symbols,
				Side:    side,
				Amount:  amount,
				DryRun:  dryRun,
			})

			var failed int
			for _, r := range results {
				if !r.Succeeded {
					failed++
				}
			}
			log.Info().Int("orders", len(results)).Int("failed", failed).Msg("trade run finished")
			if failed > 0 {
				return fmt.Errorf("%d of %d orders failed", failed, len(results))
			}
			return nil
		},
	}

	cmd.Flags().String("action", "", "Order side: buy or sell")
	cmd.Flags().Float64("amount", 0, "Quantity of shares per symbol per account")
	cmd.Flags().Bool("dry-run", false, "Report what would be ordered without sending anything")
	cmd.MarkFlagRequired("action")
	cmd.MarkFlagRequired("amount")

	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("autotrader %s\n", version)
		},
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// buildEngine assembles the engine from the environment: logging, the
// notification channel, the session store, the two-factor resolver and one
// backend client per configured credential.
func buildEngine() (*engine.Engine, zerolog.Logger, error) {
	cfg := config.New()
	log := logger.New(logger.Config{Level: cfg.LogLevel, Pretty: cfg.LogPretty})
	logger.SetGlobalLogger(log)

	var notifier notify.Notifier = notify.NewConsole()
	if cfg.TelegramToken != "" && cfg.TelegramChatID != "" {
		tg := notify.NewTelegram(cfg.TelegramToken, cfg.TelegramChatID, log)
		// Codes are relayed through Telegram; notices go to both.
		notifier = notify.NewFanout(tg, notifier, tg)
	}

	resolver := twofactor.NewResolver(notifier, cfg.TwoFactorTimeout, log)

	store, err := broker.NewSessionStore(cfg.CredsDir, cfg.EncryptionSecret, log)
	if err != nil {
		return nil, log, fmt.Errorf("opening session store: %w", err)
	}

	identities, err := buildIdentities(cfg, resolver, log)
	if err != nil {
		return nil, log, err
	}
	if len(identities) == 0 {
		return nil, log, fmt.Errorf("no brokerage credentials configured")
	}

	selection := func(brokerage string) engine.SelectionPolicy {
		return engine.SelectionPolicy{
			AllowList: cfg.AccountAllowList(brokerage),
			Suffix:    cfg.AccountSuffix(brokerage),
		}
	}

	eng := engine.New(engine.Config{
		Store:     store,
		Registry:  registry.New(),
		Notifier:  notifier,
		Selection: selection,
		Pace:      time.Second,
		Log:       log,
	}, identities...)
	return eng, log, nil
}

// buildIdentities parses each brokerage's credential list and creates one
// backend client per credential, labelled "Robinhood 1", "Robinhood 2" and
// so on in list order.
func buildIdentities(cfg *config.Config, resolver *twofactor.Resolver, log zerolog.Logger) ([]engine.Identity, error) {
	var identities []engine.Identity

	add := func(brokerage, raw string, build func(label string) (broker.Broker, error)) error {
		if raw == "" {
			return nil
		}
		creds, err := credentials.ParseList(raw)
		if err != nil {
			return fmt.Errorf("parsing %s credentials: %w", brokerage, err)
		}
		for i, cred := range creds {
			label := fmt.Sprintf("%s %d", brokerage, i+1)
			b, err := build(label)
			if err != nil {
				return fmt.Errorf("creating %s client: %w", label, err)
			}
			identities = append(identities, engine.Identity{Label: label, Broker: b, Cred: cred})
		}
		return nil
	}

	if err := add("Robinhood", cfg.Robinhood, func(label string) (broker.Broker, error) {
		return robinhood.New(label, resolver, log), nil
	}); err != nil {
		return nil, err
	}
	if err := add("Schwab", cfg.Schwab, func(label string) (broker.Broker, error) {
		return schwab.New(label, resolver, log), nil
	}); err != nil {
		return nil, err
	}
	if err := add("SoFi", cfg.SoFi, func(label string) (broker.Broker, error) {
		return sofi.New(label, resolver, log)
	}); err != nil {
		return nil, err
	}

	return identities, nil
}
