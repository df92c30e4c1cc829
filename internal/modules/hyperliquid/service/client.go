package service

import (
	"context"
	"net/http"
	"strings"
	"time"

	"spot_bot/internal/models"
	"spot_bot/pkg/tracing"

	"github.com/bytedance/sonic"
	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

type Options struct {
	BaseURL    string
	Mainnet    bool
	SecretKey  string // empty => read-only client
	Slippage   decimal.Decimal
	Timeout    time.Duration
	RetryCount int
	// Mids, when set, answers MidPrice before falling back to allMids over REST.
	Mids MidSource
}

// MidSource is a local cache of mid prices, e.g. the allMids websocket feed.
type MidSource interface {
	Mid(pair string) (decimal.Decimal, bool)
}

// Client talks to the /info and /exchange endpoints.
type Client struct {
	http     *resty.Client
	signer   *Signer
	slippage decimal.Decimal
	mids     MidSource
	now      func() time.Time
}

func NewClient(opts Options) (*Client, error) {
	if opts.BaseURL == "" {
		return nil, errors.New("hyperliquid: empty base url")
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}

	rc := resty.New().
		SetBaseURL(strings.TrimRight(opts.BaseURL, "/")).
		SetTimeout(opts.Timeout).
		SetHeader("Content-Type", "application/json").
		SetJSONMarshaler(sonic.Marshal).
		SetJSONUnmarshaler(sonic.Unmarshal).
		SetRetryCount(opts.RetryCount).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(5 * time.Second).
		AddRetryCondition(retryInfoOnly)

	c := &Client{
		http:     rc,
		slippage: opts.Slippage,
		mids:     opts.Mids,
		now:      time.Now,
	}
	if opts.SecretKey != "" {
		s, err := NewSigner(opts.SecretKey, opts.Mainnet)
		if err != nil {
			return nil, err
		}
		c.signer = s
	}
	return c, nil
}

// Only read requests are retried; a replayed /exchange POST could double an order.
func retryInfoOnly(r *resty.Response, err error) bool {
	if r == nil || r.Request == nil || !strings.HasSuffix(r.Request.URL, "/info") {
		return false
	}
	if err != nil {
		return true
	}
	return r.StatusCode() == http.StatusTooManyRequests || r.StatusCode() >= http.StatusInternalServerError
}

// Address of the signing key, empty for a read-only client.
func (c *Client) Address() string {
	if c.signer == nil {
		return ""
	}
	return c.signer.Address()
}

func (c *Client) post(ctx context.Context, path string, body any, out any) (err error) {
	span, ctx := tracing.Start(ctx, "hyperliquid"+path)
	defer func() { tracing.Finish(span, err) }()

	payload, err := sonic.Marshal(body)
	if err != nil {
		return errors.Wrapf(models.ErrGatewayFault, "encode %s: %v", path, err)
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(payload).
		Post(path)
	if err != nil {
		return errors.Wrapf(models.ErrGatewayFault, "post %s: %v", path, err)
	}
	if resp.IsError() {
		return errors.Wrapf(models.ErrGatewayFault, "post %s: http %d: %s", path, resp.StatusCode(), truncateBody(resp.Body()))
	}
	if err := sonic.Unmarshal(resp.Body(), out); err != nil {
		return errors.Wrapf(models.ErrGatewayFault, "decode %s: %v RAW=%s", path, err, truncateBody(resp.Body()))
	}
	return nil
}

func truncateBody(b []byte) string {
	const limit = 512
	if len(b) > limit {
		return string(b[:limit]) + "..."
	}
	return string(b)
}
