package service

import (
	"bytes"
	"context"
	"encoding/json"

	"spot_bot/internal/helper"
	"spot_bot/internal/models"

	"github.com/bytedance/sonic"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// Field order matters: the action is hashed in msgpack form.
type orderWire struct {
	Asset      int           `json:"a"`
	IsBuy      bool          `json:"b"`
	Price      string        `json:"p"`
	Size       string        `json:"s"`
	ReduceOnly bool          `json:"r"`
	Type       orderTypeWire `json:"t"`
}

type orderTypeWire struct {
	Limit limitWire `json:"limit"`
}

type limitWire struct {
	Tif string `json:"tif"`
}

type orderAction struct {
	Type     string      `json:"type"`
	Orders   []orderWire `json:"orders"`
	Grouping string      `json:"grouping"`
}

type cancelWire struct {
	Asset   int   `json:"a"`
	OrderID int64 `json:"o"`
}

type cancelAction struct {
	Type    string       `json:"type"`
	Cancels []cancelWire `json:"cancels"`
}

type exchangeRequest struct {
	Action       any       `json:"action"`
	Nonce        int64     `json:"nonce"`
	Signature    Signature `json:"signature"`
	VaultAddress *string   `json:"vaultAddress"`
	ExpiresAfter *int64    `json:"expiresAfter"`
}

type exchangeResponse struct {
	Status   string          `json:"status"`
	Response json.RawMessage `json:"response"`
}

type statusWire struct {
	Filled *struct {
		TotalSz decimal.Decimal `json:"totalSz"`
		AvgPx   decimal.Decimal `json:"avgPx"`
		Oid     int64           `json:"oid"`
	} `json:"filled"`
	Resting *struct {
		Oid int64 `json:"oid"`
	} `json:"resting"`
	Error string `json:"error"`
}

// MarketOrder is an IOC limit priced through the book by the configured slippage.
func (c *Client) MarketOrder(ctx context.Context, o models.MarketOrder) (models.OrderResult, error) {
	mid, err := c.MidPrice(ctx, o.PairName)
	if err != nil {
		return models.OrderResult{}, err
	}
	return c.LimitOrder(ctx, models.LimitOrder{
		Asset: o.Asset,
		IsBuy: o.IsBuy,
		Size:  o.Size,
		Price: helper.SlippagePrice(mid, o.IsBuy, c.slippage, o.SzDecimals),
		Tif:   models.TifIoc,
	})
}

func (c *Client) LimitOrder(ctx context.Context, o models.LimitOrder) (models.OrderResult, error) {
	if !o.Size.IsPositive() {
		return models.OrderResult{}, errors.Wrapf(models.ErrOrderRejected, "size %s must be positive", o.Size)
	}
	wire, err := toOrderWire(o)
	if err != nil {
		return models.OrderResult{}, err
	}
	action := orderAction{Type: "order", Orders: []orderWire{wire}, Grouping: "na"}

	var resp exchangeResponse
	if err := c.exchange(ctx, action, &resp); err != nil {
		return models.OrderResult{}, err
	}
	return parseOrderResponse(resp)
}

func (c *Client) Cancel(ctx context.Context, asset int, orderID int64) error {
	action := cancelAction{Type: "cancel", Cancels: []cancelWire{{Asset: asset, OrderID: orderID}}}

	var resp exchangeResponse
	if err := c.exchange(ctx, action, &resp); err != nil {
		return err
	}
	if resp.Status != models.StatusOK {
		return errors.Wrapf(models.ErrOrderRejected, "cancel %d: %s", orderID, responseMessage(resp.Response))
	}
	var body struct {
		Data struct {
			Statuses []json.RawMessage `json:"statuses"`
		} `json:"data"`
	}
	if err := sonic.Unmarshal(resp.Response, &body); err != nil {
		return errors.Wrapf(models.ErrGatewayFault, "decode cancel response: %v", err)
	}
	for _, raw := range body.Data.Statuses {
		if bytes.HasPrefix(bytes.TrimSpace(raw), []byte(`"`)) {
			continue // "success"
		}
		var st statusWire
		if err := sonic.Unmarshal(raw, &st); err == nil && st.Error != "" {
			return errors.Wrapf(models.ErrOrderRejected, "cancel %d: %s", orderID, st.Error)
		}
	}
	return nil
}

func (c *Client) exchange(ctx context.Context, action any, out *exchangeResponse) error {
	if c.signer == nil {
		return errors.Wrap(models.ErrGatewayFault, "exchange call without a secret key")
	}
	nonce := c.now().UnixMilli()
	sig, err := c.signer.Sign(action, nonce)
	if err != nil {
		return errors.Wrapf(models.ErrGatewayFault, "sign: %v", err)
	}
	return c.post(ctx, "/exchange", exchangeRequest{
		Action:    action,
		Nonce:     nonce,
		Signature: sig,
	}, out)
}

func toOrderWire(o models.LimitOrder) (orderWire, error) {
	px, err := helper.FloatToWire(o.Price)
	if err != nil {
		return orderWire{}, errors.Wrapf(models.ErrOrderRejected, "price: %v", err)
	}
	sz, err := helper.FloatToWire(o.Size)
	if err != nil {
		return orderWire{}, errors.Wrapf(models.ErrOrderRejected, "size: %v", err)
	}
	tif := o.Tif
	if tif == "" {
		tif = models.TifGtc
	}
	return orderWire{
		Asset:      o.Asset,
		IsBuy:      o.IsBuy,
		Price:      px,
		Size:       sz,
		ReduceOnly: o.ReduceOnly,
		Type:       orderTypeWire{Limit: limitWire{Tif: string(tif)}},
	}, nil
}

func parseOrderResponse(resp exchangeResponse) (models.OrderResult, error) {
	res := models.OrderResult{Status: resp.Status}
	if resp.Status != models.StatusOK {
		res.Message = responseMessage(resp.Response)
		return res, nil
	}

	var body struct {
		Data struct {
			Statuses []json.RawMessage `json:"statuses"`
		} `json:"data"`
	}
	if err := sonic.Unmarshal(resp.Response, &body); err != nil {
		return models.OrderResult{}, errors.Wrapf(models.ErrGatewayFault, "decode order response: %v", err)
	}
	for _, raw := range body.Data.Statuses {
		var st statusWire
		if err := sonic.Unmarshal(raw, &st); err != nil {
			res.Statuses = append(res.Statuses, models.OrderStatus{Error: string(raw)})
			continue
		}
		switch {
		case st.Filled != nil:
			res.Statuses = append(res.Statuses, models.OrderStatus{Filled: &models.Fill{
				OrderID:   st.Filled.Oid,
				TotalSize: st.Filled.TotalSz,
				AvgPrice:  st.Filled.AvgPx,
			}})
		case st.Resting != nil:
			res.Statuses = append(res.Statuses, models.OrderStatus{Resting: &models.Resting{OrderID: st.Resting.Oid}})
		default:
			msg := st.Error
			if msg == "" {
				msg = string(raw)
			}
			res.Statuses = append(res.Statuses, models.OrderStatus{Error: msg})
		}
	}
	return res, nil
}

// responseMessage: err responses carry a bare string.
func responseMessage(raw json.RawMessage) string {
	var s string
	if err := sonic.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}
