package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"spot_bot/internal/models"
	"spot_bot/internal/modules/config"
	"spot_bot/internal/modules/health"
	"spot_bot/internal/modules/hyperliquid"
	"spot_bot/internal/modules/state"
	"spot_bot/internal/runner"
	"spot_bot/pkg/logger"
	"spot_bot/pkg/tracing"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

const serviceName = "spot_bot"

func newRootCmd() *cobra.Command {
	v := viper.New()

	root := &cobra.Command{
		Use:           "bot",
		Short:         "Spot position bot: random entries, ±band take-profit/stop-loss",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// config.NewConfig and applyEnv read these
			if p := v.GetString("config"); p != "" {
				if err := os.Setenv("CONFIG_FILE", p); err != nil {
					return err
				}
			}
			if lvl := v.GetString("log-level"); lvl != "" {
				return os.Setenv("LOG_LEVEL", lvl)
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBot()
		},
	}

	root.PersistentFlags().String("config", config.DefaultPath, "YAML config file (env CONFIG_FILE)")
	root.PersistentFlags().String("log-level", "", "debug|info|warn|error (env LOG_LEVEL)")
	_ = v.BindPFlag("config", root.PersistentFlags().Lookup("config"))
	_ = v.BindPFlag("log-level", root.PersistentFlags().Lookup("log-level"))
	_ = v.BindEnv("config", "CONFIG_FILE")
	_ = v.BindEnv("log-level", "LOG_LEVEL")

	root.AddCommand(
		&cobra.Command{
			Use:   "run",
			Short: "Run the trading loop (default)",
			RunE: func(cmd *cobra.Command, args []string) error {
				return runBot()
			},
		},
		newStateCmd(),
		newAssetCmd(),
	)
	return root
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	logger.SetServiceName(serviceName)
	tracing.SetServiceName(serviceName)
	return logger.New(cfg.Logging)
}

func newTracer(lc fx.Lifecycle, cfg *config.Config) error {
	_, closer, err := tracing.InitTracer(cfg.Tracing)
	if err != nil {
		return errors.Wrap(err, "init tracer")
	}
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			closer()
			return nil
		},
	})
	return nil
}

func runBot() error {
	app := fx.New(
		fx.WithLogger(func(l *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: l.Named("fx")}
		}),
		config.Module(),
		fx.Provide(newLogger),
		fx.Invoke(newTracer),
		state.Module(),
		hyperliquid.Module(),
		health.Module(),
		runner.Module(),
	)
	if err := app.Err(); err != nil {
		return err
	}
	// blocks until SIGINT/SIGTERM or a Shutdowner call; exits non-zero on ExitCode(1)
	app.Run()
	return nil
}

func loadConfig() (*config.Config, *zap.Logger, error) {
	cfg, err := config.NewConfig()
	if err != nil {
		return nil, nil, err
	}
	log, err := newLogger(cfg)
	if err != nil {
		return nil, nil, err
	}
	return cfg, log, nil
}

func newStateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "state",
		Short: "Inspect or repair the persisted stop-loss",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "show",
			Short: "Print the persisted stop-loss and the state it encodes",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
				defer cancel()
				cfg, _, err := loadConfig()
				if err != nil {
					return err
				}
				store, err := state.New(ctx, cfg)
				if err != nil {
					return err
				}
				defer func() { _ = store.Close() }()

				sl, err := store.Load(ctx)
				if err != nil {
					return err
				}
				pos, err := models.PositionFromStopLoss(sl)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s backend=%s sl=%s\n", pos.State, cfg.State.Backend, sl)
				return nil
			},
		},
		&cobra.Command{
			Use:   "set <stop-loss>",
			Short: "Overwrite the persisted stop-loss (0 = idle)",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				value, err := decimal.NewFromString(args[0])
				if err != nil {
					return errors.Wrapf(err, "parse %q", args[0])
				}
				if _, err := models.PositionFromStopLoss(value); err != nil {
					return err
				}
				ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
				defer cancel()
				cfg, log, err := loadConfig()
				if err != nil {
					return err
				}
				store, err := state.New(ctx, cfg)
				if err != nil {
					return err
				}
				defer func() { _ = store.Close() }()

				if _, err := store.Init(ctx); err != nil && !errors.Is(err, models.ErrStateCorrupt) {
					return err
				}
				if err := store.Save(ctx, value); err != nil {
					return err
				}
				log.Info("stop-loss overwritten by operator", zap.Stringer("stop_loss", value))
				fmt.Fprintf(cmd.OutOrStdout(), "sl=%s\n", value)
				return nil
			},
		},
	)
	return cmd
}

func newAssetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "asset",
		Short: "Resolve the configured coin against spot metadata",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadConfig()
			if err != nil {
				return err
			}
			client, _, err := hyperliquid.NewClient(cfg)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), cfg.Hyperliquid.Timeout*2)
			defer cancel()

			as, err := hyperliquid.LoadAsset(ctx, client, cfg.Trade.Coin)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(),
				"coin=%s token=%d szDecimals=%d weiDecimals=%d pair=%s asset=%d\n",
				as.Coin, as.TokenIndex, as.SzDecimals, as.WeiDecimals, as.PairName, as.Asset())
			return nil
		},
	}
}
