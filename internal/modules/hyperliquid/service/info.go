package service

import (
	"context"

	"spot_bot/internal/models"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

type infoRequest struct {
	Type string `json:"type"`
	User string `json:"user,omitempty"`
}

func (c *Client) SpotMeta(ctx context.Context) (models.SpotMeta, error) {
	var meta models.SpotMeta
	if err := c.post(ctx, "/info", infoRequest{Type: "spotMeta"}, &meta); err != nil {
		return models.SpotMeta{}, err
	}
	return meta, nil
}

func (c *Client) Balances(ctx context.Context, account string) ([]models.Balance, error) {
	var state struct {
		Balances []models.Balance `json:"balances"`
	}
	if err := c.post(ctx, "/info", infoRequest{Type: "spotClearinghouseState", User: account}, &state); err != nil {
		return nil, err
	}
	return state.Balances, nil
}

func (c *Client) AllMids(ctx context.Context) (map[string]decimal.Decimal, error) {
	var raw map[string]decimal.Decimal
	if err := c.post(ctx, "/info", infoRequest{Type: "allMids"}, &raw); err != nil {
		return nil, err
	}
	return raw, nil
}

// MidPrice prefers the streaming cache and falls back to allMids.
func (c *Client) MidPrice(ctx context.Context, pair string) (decimal.Decimal, error) {
	if c.mids != nil {
		if px, ok := c.mids.Mid(pair); ok {
			return px, nil
		}
	}
	mids, err := c.AllMids(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	px, ok := mids[pair]
	if !ok || !px.IsPositive() {
		return decimal.Zero, errors.Wrapf(models.ErrGatewayFault, "no mid price for %s", pair)
	}
	return px, nil
}

func (c *Client) OpenOrders(ctx context.Context, account string) ([]models.OpenOrder, error) {
	var orders []models.OpenOrder
	if err := c.post(ctx, "/info", infoRequest{Type: "openOrders", User: account}, &orders); err != nil {
		return nil, err
	}
	return orders, nil
}
