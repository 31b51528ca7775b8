package api

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type AssetStatus string

const (
	AssetStatusOK          AssetStatus = "OK"
	AssetStatusMaintenance AssetStatus = "MAINTENANCE"
	AssetStatusDelisted    AssetStatus = "DELISTED"
)

func (s *AssetStatus) UnmarshalJSON(data []byte) error {
	return decodeEnum(data, s, AssetStatusOK, AssetStatusMaintenance, AssetStatusDelisted)
}

// Asset supported by Bitvavo.
type Asset struct {
	Symbol               string          `json:"symbol"`
	Name                 string          `json:"name"`
	Decimals             int             `json:"decimals"`
	DepositFee           decimal.Decimal `json:"depositFee"`
	DepositConfirmations int             `json:"depositConfirmations"`
	DepositStatus        AssetStatus     `json:"depositStatus"`
	WithdrawalFee        decimal.Decimal `json:"withdrawalFee"`
	WithdrawalMinAmount  decimal.Decimal `json:"withdrawalMinAmount"`
	WithdrawalStatus     AssetStatus     `json:"withdrawalStatus"`
	Networks             []string        `json:"networks"`
	Message              string          `json:"message,omitempty"`
}

type MarketStatus string

const (
	MarketStatusTrading MarketStatus = "trading"
	MarketStatusHalted  MarketStatus = "halted"
	MarketStatusAuction MarketStatus = "auction"
)

func (s *MarketStatus) UnmarshalJSON(data []byte) error {
	return decodeEnum(data, s, MarketStatusTrading, MarketStatusHalted, MarketStatusAuction)
}

// Market describes a trading pair such as BTC-EUR.
type Market struct {
	Market               string          `json:"market"`
	Status               MarketStatus    `json:"status"`
	Base                 string          `json:"base"`
	Quote                string          `json:"quote"`
	PricePrecision       int             `json:"pricePrecision"`
	MinOrderInBaseAsset  decimal.Decimal `json:"minOrderInBaseAsset"`
	MinOrderInQuoteAsset decimal.Decimal `json:"minOrderInQuoteAsset"`
	MaxOrderInBaseAsset  decimal.Decimal `json:"maxOrderInBaseAsset"`
	MaxOrderInQuoteAsset decimal.Decimal `json:"maxOrderInQuoteAsset"`
	OrderTypes           []string        `json:"orderTypes"`
}

type OrderBook struct {
	Market string  `json:"market"`
	Nonce  int64   `json:"nonce"`
	Bids   []Quote `json:"bids"`
	Asks   []Quote `json:"asks"`
}

// Quote is a single price level. On the wire it is a ["price", "amount"] pair.
type Quote struct {
	Price  decimal.Decimal
	Amount decimal.Decimal
}

func (q *Quote) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if len(raw) < 2 {
		return fmt.Errorf("quote: expected 2 elements, got %d", len(raw))
	}
	if err := json.Unmarshal(raw[0], &q.Price); err != nil {
		return fmt.Errorf("quote price: %w", err)
	}
	if err := json.Unmarshal(raw[1], &q.Amount); err != nil {
		return fmt.Errorf("quote amount: %w", err)
	}
	return nil
}

func (q Quote) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]decimal.Decimal{q.Price, q.Amount})
}

type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

func (s *Side) UnmarshalJSON(data []byte) error {
	return decodeEnum(data, s, SideBuy, SideSell)
}

// Trade is a public trade on a market.
type Trade struct {
	ID        string          `json:"id"`
	Timestamp int64           `json:"timestamp"`
	Amount    decimal.Decimal `json:"amount"`
	Price     decimal.Decimal `json:"price"`
	Side      Side            `json:"side"`
}

type CandleInterval string

const (
	OneMinute      CandleInterval = "1m"
	FiveMinutes    CandleInterval = "5m"
	FifteenMinutes CandleInterval = "15m"
	ThirtyMinutes  CandleInterval = "30m"
	OneHour        CandleInterval = "1h"
	TwoHours       CandleInterval = "2h"
	FourHours      CandleInterval = "4h"
	SixHours       CandleInterval = "6h"
	EightHours     CandleInterval = "8h"
	TwelveHours    CandleInterval = "12h"
	OneDay         CandleInterval = "1d"
)

var candleIntervals = []CandleInterval{
	OneMinute, FiveMinutes, FifteenMinutes, ThirtyMinutes, OneHour, TwoHours,
	FourHours, SixHours, EightHours, TwelveHours, OneDay,
}

// ParseCandleInterval validates an interval string such as "1h".
func ParseCandleInterval(s string) (CandleInterval, error) {
	for _, iv := range candleIntervals {
		if string(iv) == s {
			return iv, nil
		}
	}
	return "", fmt.Errorf("invalid candle interval %q, expected one of %v", s, candleIntervals)
}

// Candle is an OHLCV bucket. On the wire it is [time, open, high, low, close, volume].
type Candle struct {
	Time   int64
	Open   decimal.Decimal
	High   decimal.Decimal
	Low    decimal.Decimal
	Close  decimal.Decimal
	Volume decimal.Decimal
}

func (c *Candle) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if len(raw) < 6 {
		return fmt.Errorf("candle: expected 6 elements, got %d", len(raw))
	}
	if err := json.Unmarshal(raw[0], &c.Time); err != nil {
		return fmt.Errorf("candle time: %w", err)
	}
	fields := []*decimal.Decimal{&c.Open, &c.High, &c.Low, &c.Close, &c.Volume}
	for i, f := range fields {
		if err := json.Unmarshal(raw[i+1], f); err != nil {
			return fmt.Errorf("candle element %d: %w", i+1, err)
		}
	}
	return nil
}

func (c Candle) MarshalJSON() ([]byte, error) {
	return json.Marshal([]any{c.Time, c.Open, c.High, c.Low, c.Close, c.Volume})
}

type TickerPrice struct {
	Market string              `json:"market"`
	Price  decimal.NullDecimal `json:"price"`
}

// TickerBook holds the best bid and ask currently available for a market.
type TickerBook struct {
	Market  string              `json:"market"`
	Bid     decimal.NullDecimal `json:"bid"`
	BidSize decimal.NullDecimal `json:"bidSize"`
	Ask     decimal.NullDecimal `json:"ask"`
	AskSize decimal.NullDecimal `json:"askSize"`
}

// Ticker24h holds high, low, open, last and volume over the previous 24h.
type Ticker24h struct {
	Market         string              `json:"market"`
	StartTimestamp int64               `json:"startTimestamp"`
	Timestamp      int64               `json:"timestamp"`
	Open           decimal.NullDecimal `json:"open"`
	OpenTimestamp  int64               `json:"openTimestamp"`
	High           decimal.NullDecimal `json:"high"`
	Low            decimal.NullDecimal `json:"low"`
	Last           decimal.NullDecimal `json:"last"`
	CloseTimestamp int64               `json:"closeTimestamp"`
	Bid            decimal.NullDecimal `json:"bid"`
	BidSize        decimal.NullDecimal `json:"bidSize"`
	Ask            decimal.NullDecimal `json:"ask"`
	AskSize        decimal.NullDecimal `json:"askSize"`
	Volume         decimal.NullDecimal `json:"volume"`
	VolumeQuote    decimal.NullDecimal `json:"volumeQuote"`
}

type Account struct {
	Fees AccountFees `json:"fees"`
}

type AccountFees struct {
	Taker  decimal.Decimal `json:"taker"`
	Maker  decimal.Decimal `json:"maker"`
	Volume decimal.Decimal `json:"volume"`
}

type Balance struct {
	Symbol    string          `json:"symbol"`
	Available decimal.Decimal `json:"available"`
	InOrder   decimal.Decimal `json:"inOrder"`
}

// Fees charged for a market on the account.
type Fees struct {
	Tier   int             `json:"tier"`
	Volume decimal.Decimal `json:"volume"`
	Taker  decimal.Decimal `json:"taker"`
	Maker  decimal.Decimal `json:"maker"`
}

type DepositInfo struct {
	Address   string `json:"address"`
	PaymentID string `json:"paymentId,omitempty"`
}

type DepositStatus string

const (
	DepositCompleted DepositStatus = "completed"
	DepositCanceled  DepositStatus = "canceled"
)

func (s *DepositStatus) UnmarshalJSON(data []byte) error {
	return decodeEnum(data, s, DepositCompleted, DepositCanceled)
}

type Deposit struct {
	Timestamp int64           `json:"timestamp"`
	Symbol    string          `json:"symbol"`
	Amount    decimal.Decimal `json:"amount"`
	Fee       decimal.Decimal `json:"fee"`
	Status    DepositStatus   `json:"status"`
	TxID      string          `json:"txId,omitempty"`
	Address   string          `json:"address,omitempty"`
	PaymentID string          `json:"paymentId,omitempty"`
}

type WithdrawalStatus string

const (
	WithdrawalAwaitingProcessing        WithdrawalStatus = "awaiting_processing"
	WithdrawalAwaitingEmailConfirmation WithdrawalStatus = "awaiting_email_confirmation"
	WithdrawalAwaitingInspection        WithdrawalStatus = "awaiting_bitvavo_inspection"
	WithdrawalApproved                  WithdrawalStatus = "approved"
	WithdrawalSending                   WithdrawalStatus = "sending"
	WithdrawalInMempool                 WithdrawalStatus = "in_mempool"
	WithdrawalProcessed                 WithdrawalStatus = "processed"
	WithdrawalCompleted                 WithdrawalStatus = "completed"
	WithdrawalCanceled                  WithdrawalStatus = "canceled"
)

func (s *WithdrawalStatus) UnmarshalJSON(data []byte) error {
	return decodeEnum(data, s,
		WithdrawalAwaitingProcessing,
		WithdrawalAwaitingEmailConfirmation,
		WithdrawalAwaitingInspection,
		WithdrawalApproved,
		WithdrawalSending,
		WithdrawalInMempool,
		WithdrawalProcessed,
		WithdrawalCompleted,
		WithdrawalCanceled,
	)
}

type Withdrawal struct {
	Timestamp int64            `json:"timestamp"`
	Symbol    string           `json:"symbol"`
	Amount    decimal.Decimal  `json:"amount"`
	Address   string           `json:"address,omitempty"`
	PaymentID string           `json:"paymentId,omitempty"`
	TxID      string           `json:"txId,omitempty"`
	Fee       decimal.Decimal  `json:"fee"`
	Status    WithdrawalStatus `json:"status"`
}

type WithdrawRequest struct {
	Symbol           string          `json:"symbol"`
	Amount           decimal.Decimal `json:"amount"`
	Address          string          `json:"address"`
	PaymentID        string          `json:"paymentId,omitempty"`
	Internal         bool            `json:"internal"`
	AddWithdrawalFee bool            `json:"addWithdrawalFee"`
}

type WithdrawalResponse struct {
	Success bool            `json:"success"`
	Symbol  string          `json:"symbol"`
	Amount  decimal.Decimal `json:"amount"`
}

type OrderType string

const (
	OrderTypeMarket          OrderType = "market"
	OrderTypeLimit           OrderType = "limit"
	OrderTypeStopLoss        OrderType = "stopLoss"
	OrderTypeStopLossLimit   OrderType = "stopLossLimit"
	OrderTypeTakeProfit      OrderType = "takeProfit"
	OrderTypeTakeProfitLimit OrderType = "takeProfitLimit"
)

func (t *OrderType) UnmarshalJSON(data []byte) error {
	return decodeEnum(data, t,
		OrderTypeMarket,
		OrderTypeLimit,
		OrderTypeStopLoss,
		OrderTypeStopLossLimit,
		OrderTypeTakeProfit,
		OrderTypeTakeProfitLimit,
	)
}

type TriggerType string

const TriggerTypePrice TriggerType = "price"

type TriggerReference string

const (
	TriggerLastTrade TriggerReference = "lastTrade"
	TriggerBestBid   TriggerReference = "bestBid"
	TriggerBestAsk   TriggerReference = "bestAsk"
	TriggerMidPrice  TriggerReference = "midPrice"
)

type TimeInForce string

const (
	GoodTillCancelled TimeInForce = "GTC"
	FillOrKill        TimeInForce = "FOK"
	ImmediateOrCancel TimeInForce = "IOC"
)

type SelfTradePrevention string

const (
	DecrementAndCancel SelfTradePrevention = "decrementAndCancel"
	CancelBoth         SelfTradePrevention = "cancelBoth"
	CancelNewest       SelfTradePrevention = "cancelNewest"
	CancelOldest       SelfTradePrevention = "cancelOldest"
)

// OrderRequest is the body of POST /order. Optional fields are left out of
// the request when nil or empty.
type OrderRequest struct {
	Market                  string              `json:"market"`
	Side                    Side                `json:"side"`
	OrderType               OrderType           `json:"orderType"`
	ClientOrderID           *uuid.UUID          `json:"clientOrderId,omitempty"`
	Amount                  *decimal.Decimal    `json:"amount,omitempty"`
	AmountQuote             *decimal.Decimal    `json:"amountQuote,omitempty"`
	Price                   *decimal.Decimal    `json:"price,omitempty"`
	TriggerAmount           *decimal.Decimal    `json:"triggerAmount,omitempty"`
	TriggerType             TriggerType         `json:"triggerType,omitempty"`
	TriggerReference        TriggerReference    `json:"triggerReference,omitempty"`
	TimeInForce             TimeInForce         `json:"timeInForce,omitempty"`
	PostOnly                *bool               `json:"postOnly,omitempty"`
	SelfTradePrevention     SelfTradePrevention `json:"selfTradePrevention,omitempty"`
	DisableMarketProtection bool                `json:"disableMarketProtection"`
	ResponseRequired        bool                `json:"responseRequired"`
}

type OrderStatus string

const (
	OrderStatusNew             OrderStatus = "new"
	OrderStatusAwaitingTrigger OrderStatus = "awaitingTrigger"
	OrderStatusCanceled        OrderStatus = "canceled"
	OrderStatusFilled          OrderStatus = "filled"
	OrderStatusPartiallyFilled OrderStatus = "partiallyFilled"
	OrderStatusExpired         OrderStatus = "expired"
	OrderStatusRejected        OrderStatus = "rejected"
)

// Order is the exchange's view of an order. Fields other than the ids and
// timestamps are only present when the request asked for a full response.
type Order struct {
	OrderID           uuid.UUID           `json:"orderId"`
	ClientOrderID     uuid.NullUUID       `json:"clientOrderId"`
	Market            string              `json:"market"`
	Created           int64               `json:"created"`
	Updated           int64               `json:"updated"`
	Status            OrderStatus         `json:"status,omitempty"`
	Side              Side                `json:"side,omitempty"`
	OrderType         OrderType           `json:"orderType,omitempty"`
	Amount            decimal.NullDecimal `json:"amount"`
	AmountRemaining   decimal.NullDecimal `json:"amountRemaining"`
	Price             decimal.NullDecimal `json:"price"`
	FilledAmount      decimal.NullDecimal `json:"filledAmount"`
	FilledAmountQuote decimal.NullDecimal `json:"filledAmountQuote"`
	FeePaid           decimal.NullDecimal `json:"feePaid"`
	FeeCurrency       string              `json:"feeCurrency,omitempty"`
}

type cancelledOrder struct {
	OrderID uuid.UUID `json:"orderId"`
}

// decodeEnum rejects any string outside the allowed set.
func decodeEnum[T ~string](data []byte, dst *T, allowed ...T) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	for _, a := range allowed {
		if T(s) == a {
			*dst = a
			return nil
		}
	}
	return fmt.Errorf("invalid value %q, expected one of %v", s, allowed)
}
