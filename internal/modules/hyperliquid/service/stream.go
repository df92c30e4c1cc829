package service

import (
	"context"
	"sync"
	"time"

	"spot_bot/pkg/logger"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
)

const (
	pingInterval   = 50 * time.Second
	maxDialBackoff = 30 * time.Second
)

type midsFrame struct {
	Channel string `json:"channel"`
	Data    struct {
		Mids map[string]decimal.Decimal `json:"mids"`
	} `json:"data"`
}

type midQuote struct {
	px decimal.Decimal
	at time.Time
}

// MidStream keeps the latest allMids push per pair. Quotes older than maxAge
// are reported as missing so callers fall back to REST.
type MidStream struct {
	url    string
	maxAge time.Duration
	dialer *websocket.Dialer

	mu   sync.RWMutex
	mids map[string]midQuote
	now  func() time.Time
}

func NewMidStream(url string, maxAge time.Duration) *MidStream {
	return &MidStream{
		url:    url,
		maxAge: maxAge,
		dialer: &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		mids:   make(map[string]midQuote),
		now:    time.Now,
	}
}

func (m *MidStream) Mid(pair string) (decimal.Decimal, bool) {
	m.mu.RLock()
	q, ok := m.mids[pair]
	m.mu.RUnlock()
	if !ok || (m.maxAge > 0 && m.now().Sub(q.at) > m.maxAge) {
		return decimal.Zero, false
	}
	return q.px, true
}

func (m *MidStream) apply(msg []byte) {
	var frame midsFrame
	if err := sonic.Unmarshal(msg, &frame); err != nil || frame.Channel != "allMids" {
		return
	}
	at := m.now()
	m.mu.Lock()
	for pair, px := range frame.Data.Mids {
		m.mids[pair] = midQuote{px: px, at: at}
	}
	m.mu.Unlock()
}

// Run reconnects until ctx is done.
func (m *MidStream) Run(ctx context.Context) {
	backoff := time.Second
	for {
		err := m.session(ctx)
		if ctx.Err() != nil {
			return
		}
		logger.Error("allMids stream dropped: %v, reconnect in %s", err, backoff)
		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		if backoff *= 2; backoff > maxDialBackoff {
			backoff = maxDialBackoff
		}
	}
}

func (m *MidStream) session(ctx context.Context) error {
	conn, _, err := m.dialer.DialContext(ctx, m.url, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = conn.Close()
	}()

	var writeMu sync.Mutex
	write := func(v any) error {
		writeMu.Lock()
		defer writeMu.Unlock()
		return conn.WriteJSON(v)
	}

	if err := write(map[string]any{
		"method":       "subscribe",
		"subscription": map[string]string{"type": "allMids"},
	}); err != nil {
		return err
	}
	logger.Info("allMids stream subscribed")

	stopPing := make(chan struct{})
	defer close(stopPing)
	go func() {
		t := time.NewTicker(pingInterval)
		defer t.Stop()
		for {
			select {
			case <-stopPing:
				return
			case <-ctx.Done():
				// unblock ReadMessage
				_ = conn.Close()
				return
			case <-t.C:
				_ = write(map[string]string{"method": "ping"})
			}
		}
	}()

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		m.apply(msg)
	}
}
