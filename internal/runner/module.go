package runner

import (
	"context"

	"spot_bot/internal/models"
	"spot_bot/internal/modules/config"
	healthservice "spot_bot/internal/modules/health/service"
	hlservice "spot_bot/internal/modules/hyperliquid/service"
	stateservice "spot_bot/internal/modules/state/service"
	"spot_bot/internal/notify"

	"github.com/pkg/errors"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type notifiers struct {
	fx.Out

	Notifier notify.Notifier
	Telegram *notify.Telegram // nil when Telegram is not configured
}

func newNotifiers(cfg *config.Config, log *zap.Logger) notifiers {
	if cfg.Telegram.Token == "" || cfg.Telegram.ChatID == 0 {
		log.Info("telegram not configured, notifications go to the log")
		return notifiers{Notifier: notify.NewStdout(log.Named("notify"))}
	}
	tg, err := notify.NewTelegram(cfg.Telegram.Token, cfg.Telegram.ChatID, log.Named("telegram"))
	if err != nil {
		log.Warn("telegram unavailable, notifications go to the log", zap.Error(err))
		return notifiers{Notifier: notify.NewStdout(log.Named("notify"))}
	}
	return notifiers{Notifier: tg, Telegram: tg}
}

func newTradeConfig(cfg *config.Config, client *hlservice.Client) (TradeConfig, error) {
	tc := NewTradeConfig(cfg)
	if tc.Account == "" {
		tc.Account = client.Address()
	}
	if tc.Account == "" {
		return TradeConfig{}, errors.New("account.address or a secret key is required")
	}
	return tc, nil
}

func Module() fx.Option {
	return fx.Module("runner",
		fx.Provide(
			newTradeConfig,
			newNotifiers,
			func(
				cfg TradeConfig,
				asset models.AssetSpec,
				client *hlservice.Client,
				store stateservice.Store,
				n notify.Notifier,
				log *zap.Logger,
			) *Engine {
				return NewEngine(cfg, asset, client, client, store, n, log.Named("engine"))
			},
			func(e *Engine, state *healthservice.State, cfg TradeConfig, asset models.AssetSpec, log *zap.Logger) *Runner {
				return NewRunner(e, state, cfg, asset.Coin, log.Named("runner"))
			},
		),
		fx.Invoke(run),
	)
}

type runParams struct {
	fx.In

	Lifecycle  fx.Lifecycle
	Shutdowner fx.Shutdowner
	Runner     *Runner
	Store      stateservice.Store
	Telegram   *notify.Telegram
	State      *healthservice.State
	Log        *zap.Logger
}

func run(p runParams) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	p.Lifecycle.Append(fx.Hook{
		OnStart: func(startCtx context.Context) error {
			created, err := p.Store.Init(startCtx)
			if err != nil {
				return errors.Wrap(err, "bootstrap stop-loss state")
			}
			if created {
				p.Log.Info("no stop-loss record found, starting IDLE")
			}

			if p.Telegram != nil {
				p.Telegram.SetStatusSource(p.State)
				p.Telegram.Start(ctx)
			}

			go func() {
				defer close(done)
				if err := p.Runner.Start(ctx); err != nil {
					p.Log.Error("runner halted", zap.Error(err))
					_ = p.Shutdowner.Shutdown(fx.ExitCode(1))
				}
			}()
			return nil
		},
		OnStop: func(stopCtx context.Context) error {
			cancel()
			select {
			case <-done:
				return nil
			case <-stopCtx.Done():
				return stopCtx.Err()
			}
		},
	})
}
