package stream

import (
	"github.com/dorskfr/bitvavo/api"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Channel string

const (
	ChannelTicker    Channel = "ticker"
	ChannelTicker24h Channel = "ticker24h"
	ChannelBook      Channel = "book"
	ChannelTrades    Channel = "trades"
	ChannelCandles   Channel = "candles"
	// ChannelAccount delivers order and fill events and requires authentication.
	ChannelAccount Channel = "account"
)

// Subscription selects a channel for a set of markets. Interval is only used
// by the candles channel.
type Subscription struct {
	Name     Channel              `json:"name"`
	Markets  []string             `json:"markets"`
	Interval []api.CandleInterval `json:"interval,omitempty"`
}

// TickerEvent carries the fields that changed; the others are null.
type TickerEvent struct {
	Market      string              `json:"market"`
	BestBid     decimal.NullDecimal `json:"bestBid"`
	BestBidSize decimal.NullDecimal `json:"bestBidSize"`
	BestAsk     decimal.NullDecimal `json:"bestAsk"`
	BestAskSize decimal.NullDecimal `json:"bestAskSize"`
	LastPrice   decimal.NullDecimal `json:"lastPrice"`
}

// BookEvent is an incremental book update. An amount of zero removes the level.
type BookEvent struct {
	Market string      `json:"market"`
	Nonce  int64       `json:"nonce"`
	Bids   []api.Quote `json:"bids"`
	Asks   []api.Quote `json:"asks"`
}

type TradeEvent struct {
	Market string `json:"market"`
	api.Trade
}

type CandleEvent struct {
	Market   string             `json:"market"`
	Interval api.CandleInterval `json:"interval"`
	Candles  []api.Candle       `json:"candle"`
}

// OrderEvent is an update to one of the account's orders.
type OrderEvent struct {
	api.Order
	OnHold         decimal.NullDecimal `json:"onHold"`
	OnHoldCurrency string              `json:"onHoldCurrency,omitempty"`
	TimeInForce    api.TimeInForce     `json:"timeInForce,omitempty"`
	PostOnly       bool                `json:"postOnly"`
}

type FillEvent struct {
	Market        string              `json:"market"`
	OrderID       uuid.UUID           `json:"orderId"`
	ClientOrderID uuid.NullUUID       `json:"clientOrderId"`
	FillID        string              `json:"fillId"`
	Timestamp     int64               `json:"timestamp"`
	Amount        decimal.Decimal     `json:"amount"`
	Price         decimal.Decimal     `json:"price"`
	Side          api.Side            `json:"side"`
	Taker         bool                `json:"taker"`
	Fee           decimal.NullDecimal `json:"fee"`
	FeeCurrency   string              `json:"feeCurrency,omitempty"`
}

// Handler receives decoded events. Nil callbacks are skipped.
type Handler struct {
	Ticker    func(TickerEvent)
	Ticker24h func(api.Ticker24h)
	Book      func(BookEvent)
	Trade     func(TradeEvent)
	Candle    func(CandleEvent)
	Order     func(OrderEvent)
	Fill      func(FillEvent)
	// Error receives error frames sent by the exchange and undecodable events.
	Error func(error)
}

func (h Handler) onError(err error) {
	if h.Error != nil {
		h.Error(err)
	}
}
