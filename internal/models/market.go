package models

import "github.com/shopspring/decimal"

// SpotAssetOffset: spot pairs are addressed as 10000 + universe index in order actions.
const SpotAssetOffset = 10000

type SpotToken struct {
	Name        string `json:"name"`
	SzDecimals  int32  `json:"szDecimals"`
	WeiDecimals int32  `json:"weiDecimals"`
	Index       int    `json:"index"`
	TokenID     string `json:"tokenId"`
	IsCanonical bool   `json:"isCanonical"`
}

type SpotPair struct {
	Name        string `json:"name"`
	Tokens      []int  `json:"tokens"` // [base, quote]
	Index       int    `json:"index"`
	IsCanonical bool   `json:"isCanonical"`
}

type SpotMeta struct {
	Tokens   []SpotToken `json:"tokens"`
	Universe []SpotPair  `json:"universe"`
}

// AssetSpec: resolved once at startup, immutable afterwards.
type AssetSpec struct {
	Coin        string // human-facing symbol, e.g. "PURR"
	SzDecimals  int32
	WeiDecimals int32
	TokenIndex  int
	PairName    string // canonical pair name used for mids/orders, e.g. "PURR/USDC" or "@107"
	PairIndex   int
}

// Asset is the order-action asset id of the pair.
func (a AssetSpec) Asset() int { return SpotAssetOffset + a.PairIndex }

type Balance struct {
	Coin  string          `json:"coin"`
	Token int             `json:"token"`
	Hold  decimal.Decimal `json:"hold"`
	Total decimal.Decimal `json:"total"`
}

// MarketSnapshot: one observation, discarded after the cycle.
type MarketSnapshot struct {
	CoinBalance  decimal.Decimal // truncated to size precision
	QuoteBalance decimal.Decimal
	Mid          decimal.Decimal // raw mid, used for the stop-loss trigger
	Price        decimal.Decimal // RoundPrice(Mid), used for sizing and reports
}
