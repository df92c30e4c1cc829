package service

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"spot_bot/internal/helper"
	"spot_bot/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKey = "4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"

const spotMetaJSON = `{
  "tokens": [
    {"name":"USDC","szDecimals":8,"weiDecimals":8,"index":0,"tokenId":"0x6d1e","isCanonical":true},
    {"name":"PURR","szDecimals":0,"weiDecimals":5,"index":1,"tokenId":"0xc1fb","isCanonical":true},
    {"name":"HFUN","szDecimals":2,"weiDecimals":8,"index":2,"tokenId":"0xbaf2","isCanonical":false},
    {"name":"LONE","szDecimals":1,"weiDecimals":8,"index":9,"tokenId":"0x0009","isCanonical":false}
  ],
  "universe": [
    {"name":"PURR/USDC","tokens":[1,0],"index":0,"isCanonical":true},
    {"name":"@1","tokens":[2,0],"index":1,"isCanonical":false}
  ]
}`

type infoBody struct {
	Type string `json:"type"`
	User string `json:"user"`
}

type exchangeBody struct {
	Action    map[string]any `json:"action"`
	Nonce     int64          `json:"nonce"`
	Signature Signature      `json:"signature"`
}

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	c, err := NewClient(Options{
		BaseURL:   srv.URL,
		Mainnet:   true,
		SecretKey: testKey,
		Slippage:  decimal.RequireFromString("0.05"),
		Timeout:   2 * time.Second,
	})
	require.NoError(t, err)
	c.now = func() time.Time { return time.UnixMilli(1700000000000) }
	return c
}

func writeJSON(w http.ResponseWriter, body string) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = io.WriteString(w, body)
}

func TestResolveAsset(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var b infoBody
		require.NoError(t, json.NewDecoder(r.Body).Decode(&b))
		assert.Equal(t, "/info", r.URL.Path)
		assert.Equal(t, "spotMeta", b.Type)
		writeJSON(w, spotMetaJSON)
	})

	meta, err := c.SpotMeta(context.Background())
	require.NoError(t, err)

	asset, err := ResolveAsset(meta, "PURR")
	require.NoError(t, err)
	assert.Equal(t, "PURR/USDC", asset.PairName)
	assert.Equal(t, 10000, asset.Asset())
	assert.EqualValues(t, 0, asset.SzDecimals)
	assert.EqualValues(t, 5, asset.WeiDecimals)

	asset, err = ResolveAsset(meta, "HFUN")
	require.NoError(t, err)
	assert.Equal(t, "@1", asset.PairName)
	assert.Equal(t, 10001, asset.Asset())

	_, err = ResolveAsset(meta, "NOPE")
	assert.ErrorIs(t, err, models.ErrStartupFault)

	_, err = ResolveAsset(meta, "LONE")
	assert.ErrorIs(t, err, models.ErrStartupFault, "token without a pair")
}

func TestBalances(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var b infoBody
		require.NoError(t, json.NewDecoder(r.Body).Decode(&b))
		assert.Equal(t, "spotClearinghouseState", b.Type)
		assert.Equal(t, "0xabc", b.User)
		writeJSON(w, `{"balances":[
			{"coin":"USDC","token":0,"hold":"0.0","total":"150.12345678","entryNtl":"0.0"},
			{"coin":"PURR","token":1,"hold":"0.0","total":"12.5","entryNtl":"2.1"}
		]}`)
	})

	bals, err := c.Balances(context.Background(), "0xabc")
	require.NoError(t, err)
	require.Len(t, bals, 2)
	assert.Equal(t, "USDC", bals[0].Coin)
	assert.True(t, bals[0].Total.Equal(decimal.RequireFromString("150.12345678")))
	assert.Equal(t, 1, bals[1].Token)
}

func TestMidPrice(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, `{"PURR/USDC":"0.18432","@1":"7.2"}`)
	})
	ctx := context.Background()

	px, err := c.MidPrice(ctx, "PURR/USDC")
	require.NoError(t, err)
	assert.True(t, px.Equal(decimal.RequireFromString("0.18432")))

	_, err = c.MidPrice(ctx, "@99")
	assert.ErrorIs(t, err, models.ErrGatewayFault)
}

type fixedMids map[string]decimal.Decimal

func (f fixedMids) Mid(pair string) (decimal.Decimal, bool) {
	px, ok := f[pair]
	return px, ok
}

func TestMidPricePrefersStream(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		writeJSON(w, `{"PURR/USDC":"1","@1":"2"}`)
	})
	c.mids = fixedMids{"PURR/USDC": decimal.RequireFromString("0.5")}

	px, err := c.MidPrice(context.Background(), "PURR/USDC")
	require.NoError(t, err)
	assert.True(t, px.Equal(decimal.RequireFromString("0.5")))
	assert.EqualValues(t, 0, calls.Load())

	px, err = c.MidPrice(context.Background(), "@1")
	require.NoError(t, err)
	assert.True(t, px.Equal(decimal.NewFromInt(2)))
	assert.EqualValues(t, 1, calls.Load())
}

func TestMarketOrderSendsSignedIOC(t *testing.T) {
	var got exchangeBody
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/info":
			writeJSON(w, `{"PURR/USDC":"0.2"}`)
		case "/exchange":
			require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
			writeJSON(w, `{"status":"ok","response":{"type":"order","data":{"statuses":[
				{"filled":{"totalSz":"750.0","avgPx":"0.20012","oid":77738308}}]}}}`)
		default:
			http.NotFound(w, r)
		}
	})

	res, err := c.MarketOrder(context.Background(), models.MarketOrder{
		Asset:    10000,
		PairName: "PURR/USDC",
		IsBuy:    true,
		Size:     decimal.NewFromInt(750),
	})
	require.NoError(t, err)

	fill, err := res.Filled()
	require.NoError(t, err)
	assert.EqualValues(t, 77738308, fill.OrderID)
	assert.True(t, fill.AvgPrice.Equal(decimal.RequireFromString("0.20012")))
	assert.True(t, fill.TotalSize.Equal(decimal.NewFromInt(750)))

	assert.Equal(t, int64(1700000000000), got.Nonce)
	assert.Contains(t, []int{27, 28}, got.Signature.V)
	assert.Equal(t, "order", got.Action["type"])
	assert.Equal(t, "na", got.Action["grouping"])

	orders := got.Action["orders"].([]any)
	require.Len(t, orders, 1)
	o := orders[0].(map[string]any)
	assert.EqualValues(t, 10000, o["a"])
	assert.Equal(t, true, o["b"])
	assert.Equal(t, "0.21", o["p"])
	assert.Equal(t, "750", o["s"])
	assert.Equal(t, false, o["r"])
	assert.Equal(t, map[string]any{"limit": map[string]any{"tif": "Ioc"}}, o["t"])
}

func TestLimitOrderResting(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var b exchangeBody
		require.NoError(t, json.NewDecoder(r.Body).Decode(&b))
		o := b.Action["orders"].([]any)[0].(map[string]any)
		assert.Equal(t, false, o["b"])
		assert.Equal(t, map[string]any{"limit": map[string]any{"tif": "Gtc"}}, o["t"])
		writeJSON(w, `{"status":"ok","response":{"type":"order","data":{"statuses":[{"resting":{"oid":991}}]}}}`)
	})

	res, err := c.LimitOrder(context.Background(), models.LimitOrder{
		Asset: 10000,
		Size:  decimal.NewFromInt(10),
		Price: helper.RoundPrice(decimal.RequireFromString("0.2081248")),
		Tif:   models.TifGtc,
	})
	require.NoError(t, err)
	require.NoError(t, res.Accepted())
	require.Len(t, res.Statuses, 1)
	assert.EqualValues(t, 991, res.Statuses[0].Resting.OrderID)

	_, err = res.Filled()
	assert.ErrorIs(t, err, models.ErrOrderRejected, "resting is not a fill")
}

func TestOrderRejections(t *testing.T) {
	cases := map[string]struct {
		body string
		msg  string
	}{
		"status err": {
			body: `{"status":"err","response":"User or API Wallet 0x1 does not exist."}`,
			msg:  "does not exist",
		},
		"error entry": {
			body: `{"status":"ok","response":{"type":"order","data":{"statuses":[{"error":"Order must have minimum value of $10."}]}}}`,
			msg:  "minimum value",
		},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, tc.body)
			})
			res, err := c.LimitOrder(context.Background(), models.LimitOrder{
				Asset: 10000, IsBuy: true, Size: decimal.NewFromInt(1), Price: decimal.NewFromInt(1),
			})
			require.NoError(t, err)

			_, err = res.Filled()
			require.ErrorIs(t, err, models.ErrOrderRejected)
			assert.Contains(t, err.Error(), tc.msg)
			assert.ErrorIs(t, res.Accepted(), models.ErrOrderRejected)
		})
	}
}

func TestLimitOrderRejectsZeroSize(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no request expected")
	})
	_, err := c.LimitOrder(context.Background(), models.LimitOrder{Asset: 10000, Size: decimal.Zero, Price: decimal.NewFromInt(1)})
	assert.ErrorIs(t, err, models.ErrOrderRejected)
}

func TestCancel(t *testing.T) {
	var reply atomic.Value
	reply.Store(`{"status":"ok","response":{"type":"cancel","data":{"statuses":["success"]}}}`)

	var got exchangeBody
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		writeJSON(w, reply.Load().(string))
	})
	ctx := context.Background()

	require.NoError(t, c.Cancel(ctx, 10000, 42))
	assert.Equal(t, "cancel", got.Action["type"])
	assert.Equal(t, []any{map[string]any{"a": float64(10000), "o": float64(42)}}, got.Action["cancels"])

	reply.Store(`{"status":"ok","response":{"type":"cancel","data":{"statuses":[{"error":"Order was never placed, already canceled, or filled."}]}}}`)
	assert.ErrorIs(t, c.Cancel(ctx, 10000, 42), models.ErrOrderRejected)
}

func TestExchangeHTTPErrorIsGatewayFault(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	})
	c.http.SetRetryCount(3)

	_, err := c.LimitOrder(context.Background(), models.LimitOrder{
		Asset: 10000, IsBuy: true, Size: decimal.NewFromInt(1), Price: decimal.NewFromInt(1),
	})
	assert.ErrorIs(t, err, models.ErrGatewayFault)
	assert.EqualValues(t, 1, calls.Load(), "exchange posts are never retried")
}

func TestReadOnlyClientCannotTrade(t *testing.T) {
	c, err := NewClient(Options{BaseURL: "http://127.0.0.1:1"})
	require.NoError(t, err)
	assert.Empty(t, c.Address())

	err = c.Cancel(context.Background(), 10000, 1)
	assert.ErrorIs(t, err, models.ErrGatewayFault)
}
