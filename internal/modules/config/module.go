package config

import "go.uber.org/fx"

// Module provides *Config read from CONFIG_FILE. Commands that already loaded
// a config supply it with fx.Supply instead.
func Module() fx.Option {
	return fx.Module("config",
		fx.Provide(
			NewConfig,
		),
	)
}
