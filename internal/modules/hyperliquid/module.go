package hyperliquid

import (
	"context"

	"spot_bot/internal/models"
	"spot_bot/internal/modules/config"
	"spot_bot/internal/modules/hyperliquid/service"
	"spot_bot/pkg/logger"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/fx"
)

// NewClient builds the exchange client, with the websocket mid cache when
// price_feed is ws. The stream is started by the caller.
func NewClient(cfg *config.Config) (*service.Client, *service.MidStream, error) {
	var stream *service.MidStream
	opts := service.Options{
		BaseURL:    cfg.Hyperliquid.BaseURL,
		Mainnet:    cfg.Hyperliquid.Mainnet,
		SecretKey:  cfg.Account.SecretKey,
		Slippage:   decimal.NewFromFloat(cfg.Hyperliquid.Slippage),
		Timeout:    cfg.Hyperliquid.Timeout,
		RetryCount: cfg.Hyperliquid.RetryCount,
	}
	if cfg.Hyperliquid.PriceFeed == config.PriceFeedWS {
		stream = service.NewMidStream(cfg.Hyperliquid.WSURL, cfg.Hyperliquid.MidMaxAge)
		opts.Mids = stream
	}
	client, err := service.NewClient(opts)
	if err != nil {
		return nil, nil, err
	}
	return client, stream, nil
}

// LoadAsset resolves the configured coin; any failure is a startup fault.
func LoadAsset(ctx context.Context, client *service.Client, coin string) (models.AssetSpec, error) {
	meta, err := client.SpotMeta(ctx)
	if err != nil {
		return models.AssetSpec{}, errors.Wrapf(models.ErrStartupFault, "spot meta: %v", err)
	}
	return service.ResolveAsset(meta, coin)
}

func Module() fx.Option {
	return fx.Module("hyperliquid",
		fx.Provide(
			func(lc fx.Lifecycle, cfg *config.Config) (*service.Client, error) {
				client, stream, err := NewClient(cfg)
				if err != nil {
					return nil, err
				}
				if stream != nil {
					ctx, cancel := context.WithCancel(context.Background())
					lc.Append(fx.Hook{
						OnStart: func(context.Context) error {
							go stream.Run(ctx)
							return nil
						},
						OnStop: func(context.Context) error {
							cancel()
							return nil
						},
					})
				}
				return client, nil
			},
			func(cfg *config.Config, client *service.Client) (models.AssetSpec, error) {
				ctx, cancel := context.WithTimeout(context.Background(), cfg.Hyperliquid.Timeout*2)
				defer cancel()
				spec, err := LoadAsset(ctx, client, cfg.Trade.Coin)
				if err != nil {
					return models.AssetSpec{}, err
				}
				logger.Info("resolved %s: pair=%s asset=%d szDecimals=%d", spec.Coin, spec.PairName, spec.Asset(), spec.SzDecimals)
				return spec, nil
			},
		),
	)
}
