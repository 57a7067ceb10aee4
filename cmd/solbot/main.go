package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"solbot/internal/bus"
	"solbot/internal/channel"
	"solbot/internal/config"
	"solbot/internal/domain"
	"solbot/internal/flow"
	"solbot/internal/history"
	"solbot/internal/metrics"
	"solbot/internal/payment"
	"solbot/internal/session"
	"solbot/internal/solana"
	"solbot/internal/wallet"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
)

var (
	version    = "0.1.0"
	logger     *slog.Logger
	configPath string // overridable via --config flag
)

func main() {
	logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	root := &cobra.Command{
		Use:   "solbot",
		Short: "Solana Magic Bot: Telegram wallet assistant",
		Long:  "solbot binds Solana wallet addresses to Telegram users, reads balances over RPC, and issues Phantom payment links.",
	}

	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config file (default: ~/.solbot/config.json)")

	root.AddCommand(initCmd())
	root.AddCommand(runCmd())
	root.AddCommand(balanceCmd())
	root.AddCommand(historyCmd())
	root.AddCommand(statusCmd())
	root.AddCommand(configCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// resolveConfigPath returns the config path from --config flag or default.
func resolveConfigPath() string {
	if configPath != "" {
		return configPath
	}
	return config.DefaultConfigPath()
}

func loadConfig() (*config.Config, error) {
	if err := godotenv.Load(); err == nil {
		logger.Info(".env loaded")
	}
	return config.Load(resolveConfigPath())
}

func setLogLevel(level string) {
	var l slog.Level
	switch level {
	case "debug":
		l = slog.LevelDebug
	case "warn":
		l = slog.LevelWarn
	case "error":
		l = slog.LevelError
	default:
		l = slog.LevelInfo
	}
	logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: l}))
}

func initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Write a default config file",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath := resolveConfigPath()
			if _, err := os.Stat(cfgPath); err == nil {
				return fmt.Errorf("config already exists: %s", cfgPath)
			}
			if err := config.Save(cfgPath, config.Defaults()); err != nil {
				return err
			}
			logger.Info("initialized", "config", cfgPath)
			logger.Info("now set telegram.token and payment.receiver before running")
			return nil
		},
	}
}

func runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Start the bot (Telegram polling + dispatcher)",
		RunE:  runBot,
	}
}

func runBot(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	setLogLevel(cfg.General.LogLevel)

	if cfg.Telegram.Token == "" {
		return fmt.Errorf("telegram.token is not configured")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	messageBus := bus.New(100, logger)

	var hist domain.HistoryStore = history.Nop{}
	if cfg.History.Enabled {
		store, err := history.NewSQLiteStore(cfg.History.DBPath, logger)
		if err != nil {
			return fmt.Errorf("history store: %w", err)
		}
		hist = store
		logger.Info("history store opened", "path", cfg.History.DBPath)
	}
	defer hist.Close()

	sessions := session.NewStore()
	oracle := solana.NewClient(solana.Config{
		RPCURL:         cfg.Solana.RPCURL,
		Timeout:        time.Duration(cfg.Solana.TimeoutSeconds) * time.Second,
		LamportsPerSol: cfg.Solana.LamportsPerSol,
		Logger:         logger,
	})
	intents := payment.NewBuilder(cfg.Payment.Receiver, cfg.Payment.Amount, cfg.Payment.Asset)

	var m *metrics.Metrics
	var metricsSrv *metrics.Server
	if cfg.Metrics.Enabled {
		reg := prometheus.NewRegistry()
		m = metrics.New(reg)
		metricsSrv = metrics.NewServer(cfg.Metrics.Listen, reg, sessions.Len, logger)
		go func() {
			if err := metricsSrv.Serve(); err != nil {
				logger.Warn("metrics listener stopped", "err", err)
			}
		}()
	} else {
		m = metrics.NewNop()
	}

	controller := flow.NewController(flow.Config{
		Sessions:  sessions,
		Oracle:    oracle,
		Intents:   intents,
		Validator: wallet.Validator{Strict: cfg.Wallet.StrictValidation},
		History:   hist,
		Metrics:   m,
		Logger:    logger,
	})

	dispatcher := flow.NewDispatcher(flow.DispatcherConfig{
		Controller:  controller,
		Bus:         messageBus,
		Logger:      logger,
		Metrics:     m,
		Concurrency: cfg.General.MaxConcurrentEvents,
	})
	go dispatcher.Run(ctx)

	telegramCh := channel.NewTelegram(channel.TelegramConfig{
		Token:     cfg.Telegram.Token,
		AllowFrom: cfg.Telegram.AllowFrom,
		ParseMode: cfg.Telegram.ParseMode,
		Logger:    logger,
	})
	go func() {
		if err := telegramCh.Start(ctx, messageBus); err != nil {
			logger.Error("telegram channel error", "err", err)
			stop()
		}
	}()

	logger.Info("solbot started", "version", version, "rpc", cfg.Solana.RPCURL)

	<-ctx.Done()
	logger.Info("shutting down...")

	const shutdownTimeout = 10 * time.Second
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		telegramCh.Stop()
		if metricsSrv != nil {
			_ = metricsSrv.Shutdown(shutdownCtx)
		}
		messageBus.Close()
	}()

	select {
	case <-done:
		logger.Info("shutdown complete")
		return nil
	case <-shutdownCtx.Done():
		logger.Warn("shutdown timed out, forcing exit")
		return fmt.Errorf("shutdown timed out")
	}
}

func balanceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "balance [address]",
		Short: "Query an address's balance once and print it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				logger.Warn("config not found, using defaults", "err", err)
				cfg = config.Defaults()
			}

			address := wallet.Normalize(args[0])
			v := wallet.Validator{Strict: cfg.Wallet.StrictValidation}
			if !v.Valid(address) {
				return fmt.Errorf("address fails the plausibility check (32-60 chars)")
			}

			oracle := solana.NewClient(solana.Config{
				RPCURL:         cfg.Solana.RPCURL,
				Timeout:        time.Duration(cfg.Solana.TimeoutSeconds) * time.Second,
				LamportsPerSol: cfg.Solana.LamportsPerSol,
				Logger:         logger,
			})

			sol, err := oracle.GetBalance(cmd.Context(), address)
			if err != nil {
				return fmt.Errorf("balance unavailable: %w", err)
			}
			fmt.Printf("%.6f SOL\n", sol)
			return nil
		},
	}
}

func historyCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent wallet bindings and balance queries",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if !cfg.History.Enabled {
				return fmt.Errorf("history is disabled in config")
			}

			store, err := history.NewSQLiteStore(cfg.History.DBPath, logger)
			if err != nil {
				return fmt.Errorf("history store: %w", err)
			}
			defer store.Close()

			ctx := cmd.Context()
			bindings, err := store.ListBindings(ctx, limit)
			if err != nil {
				return err
			}
			fmt.Printf("Bindings (%d):\n", len(bindings))
			for _, b := range bindings {
				fmt.Printf("  %s  user=%d  %s\n", b.CreatedAt.Format(time.RFC3339), b.UserID, b.Address)
			}

			queries, err := store.ListQueries(ctx, limit)
			if err != nil {
				return err
			}
			fmt.Printf("Balance queries (%d):\n", len(queries))
			for _, q := range queries {
				status := fmt.Sprintf("%.6f SOL", q.Sol)
				if !q.OK {
					status = "failed: " + q.Detail
				}
				fmt.Printf("  %s  %s  %s\n", q.CreatedAt.Format(time.RFC3339), q.Address, status)
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of rows per section")
	return cmd
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show configuration and RPC reachability",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath := resolveConfigPath()
			cfg, err := config.Load(cfgPath)
			if err != nil {
				logger.Info("config", "path", cfgPath, "loaded", false, "err", err)
				return nil
			}
			logger.Info("config", "path", cfgPath, "loaded", true)

			oracle := solana.NewClient(solana.Config{
				RPCURL:         cfg.Solana.RPCURL,
				Timeout:        time.Duration(cfg.Solana.TimeoutSeconds) * time.Second,
				LamportsPerSol: cfg.Solana.LamportsPerSol,
				Logger:         logger,
			})
			if _, err := oracle.GetBalance(cmd.Context(), cfg.Payment.Receiver); err != nil {
				logger.Info("rpc", "url", cfg.Solana.RPCURL, "reachable", false, "err", err)
			} else {
				logger.Info("rpc", "url", cfg.Solana.RPCURL, "reachable", true)
			}
			return nil
		},
	}
}

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "View and modify configuration",
		Long:  "Get, set, and list configuration values. Changes are saved to the config file.",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "get [path]",
		Short: "Get a config value (e.g. solana.rpcUrl)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(resolveConfigPath())
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			val, err := config.GetByPath(cfg, args[0])
			if err != nil {
				return err
			}
			data, _ := json.MarshalIndent(val, "", "  ")
			fmt.Println(string(data))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "set [path] [value]",
		Short: "Set a config value (e.g. payment.amount 0.25)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath := resolveConfigPath()
			cfg, err := config.Load(cfgPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if err := config.SetByPath(cfg, args[0], args[1]); err != nil {
				return fmt.Errorf("set value: %w", err)
			}
			if err := config.Save(cfgPath, cfg); err != nil {
				return fmt.Errorf("save config: %w", err)
			}
			logger.Info("config updated", "path", args[0], "value", args[1], "file", cfgPath)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List all config values",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(resolveConfigPath())
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			sanitized := config.Sanitize(cfg)
			data, _ := json.MarshalIndent(sanitized, "", "  ")
			fmt.Println(string(data))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show config file path",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(resolveConfigPath())
		},
	})

	return cmd
}
