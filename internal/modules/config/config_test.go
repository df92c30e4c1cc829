package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "values.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	path := writeConfig(t, "trade:\n  coin: PURR\n")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "PURR", cfg.Trade.Coin)
	assert.Equal(t, "USDC", cfg.Trade.QuoteCoin)
	assert.Equal(t, 100.0, cfg.Trade.MinQuote)
	assert.Equal(t, 0.2, cfg.Trade.OpenProbability)
	assert.Equal(t, 30*time.Second, cfg.Schedule.TrackingInterval)
	assert.Equal(t, 300*time.Second, cfg.Schedule.IdleInterval)
	assert.Equal(t, 5000*time.Second, cfg.Schedule.Cooldown)
	assert.Equal(t, 5*time.Second, cfg.Schedule.SettleDelay)
	assert.Equal(t, BackendFile, cfg.State.Backend)
	assert.Equal(t, "0.04", cfg.Trade.Band().String())
}

func TestLoadEnvOverrides(t *testing.T) {
	path := writeConfig(t, `
trade:
  coin: HYPE
  amount: 250
schedule:
  idle_interval: 1m
telegram:
  token: from-file
`)
	t.Setenv("TELEGRAM_TOKEN", "from-env")
	t.Setenv("TELEGRAM_CHAT_ID", "-100123")
	t.Setenv("HL_SECRET_KEY", "0xabc")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.Telegram.Token)
	assert.Equal(t, int64(-100123), cfg.Telegram.ChatID)
	assert.Equal(t, "0xabc", cfg.Account.SecretKey)
	assert.Equal(t, time.Minute, cfg.Schedule.IdleInterval)
	assert.Equal(t, "250", cfg.Trade.TradeAmount().String())
}

func TestLoadRejectsInvalid(t *testing.T) {
	cases := map[string]string{
		"missing coin":   "trade:\n  coin: \"\"\n",
		"probability":    "trade:\n  coin: PURR\n  open_probability: 1.5\n",
		"band":           "trade:\n  coin: PURR\n  band_pct: 0\n",
		"backend":        "trade:\n  coin: PURR\nstate:\n  backend: redis\n",
		"postgres dsn":   "trade:\n  coin: PURR\nstate:\n  backend: postgres\n",
		"price feed":     "trade:\n  coin: PURR\nhyperliquid:\n  price_feed: grpc\n",
		"zero intervals": "trade:\n  coin: PURR\nschedule:\n  tracking_interval: 0s\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, body))
			assert.Error(t, err)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
