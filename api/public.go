package api

import (
	"context"
	"net/http"
	"net/url"
	"time"
)

// Time returns the exchange server time.
func (c *Client) Time(ctx context.Context) (time.Time, error) {
	var resp struct {
		Time int64 `json:"time"`
	}
	if err := c.do(ctx, request{method: http.MethodGet, path: "/time"}, &resp); err != nil {
		return time.Time{}, err
	}
	return time.UnixMilli(resp.Time), nil
}

func (c *Client) Assets(ctx context.Context) ([]Asset, error) {
	var assets []Asset
	err := c.do(ctx, request{method: http.MethodGet, path: "/assets"}, &assets)
	return assets, err
}

func (c *Client) Asset(ctx context.Context, symbol string) (Asset, error) {
	var asset Asset
	err := c.do(ctx, request{
		method: http.MethodGet,
		path:   "/assets",
		query:  url.Values{"symbol": {symbol}},
	}, &asset)
	return asset, err
}

func (c *Client) Markets(ctx context.Context) ([]Market, error) {
	var markets []Market
	err := c.do(ctx, request{method: http.MethodGet, path: "/markets"}, &markets)
	return markets, err
}

func (c *Client) Market(ctx context.Context, market string) (Market, error) {
	var m Market
	err := c.do(ctx, request{
		method: http.MethodGet,
		path:   "/markets",
		query:  url.Values{"market": {market}},
	}, &m)
	return m, err
}

// OrderBook returns the book for a market. depth <= 0 returns the full book.
func (c *Client) OrderBook(ctx context.Context, market string, depth int) (OrderBook, error) {
	q := url.Values{}
	setInt(q, "depth", depth)

	var ob OrderBook
	err := c.do(ctx, request{method: http.MethodGet, path: marketPath(market, "/book"), query: q}, &ob)
	return ob, err
}

// TradesParams narrows a trades query. Zero values are not sent.
type TradesParams struct {
	Limit       int
	Start       time.Time
	End         time.Time
	TradeIDFrom string
	TradeIDTo   string
}

func (p TradesParams) values() url.Values {
	q := url.Values{}
	setInt(q, "limit", p.Limit)
	setTime(q, "start", p.Start)
	setTime(q, "end", p.End)
	setString(q, "tradeIdFrom", p.TradeIDFrom)
	setString(q, "tradeIdTo", p.TradeIDTo)
	return q
}

func (c *Client) Trades(ctx context.Context, market string, params TradesParams) ([]Trade, error) {
	var trades []Trade
	err := c.do(ctx, request{
		method: http.MethodGet,
		path:   marketPath(market, "/trades"),
		query:  params.values(),
	}, &trades)
	return trades, err
}

type CandlesParams struct {
	Limit int
	Start time.Time
	End   time.Time
}

func (c *Client) Candles(ctx context.Context, market string, interval CandleInterval, params CandlesParams) ([]Candle, error) {
	q := url.Values{"interval": {string(interval)}}
	setInt(q, "limit", params.Limit)
	setTime(q, "start", params.Start)
	setTime(q, "end", params.End)

	var candles []Candle
	err := c.do(ctx, request{method: http.MethodGet, path: marketPath(market, "/candles"), query: q}, &candles)
	return candles, err
}

func (c *Client) TickerPrices(ctx context.Context) ([]TickerPrice, error) {
	var tickers []TickerPrice
	err := c.do(ctx, request{method: http.MethodGet, path: "/ticker/price"}, &tickers)
	return tickers, err
}

func (c *Client) TickerPrice(ctx context.Context, market string) (TickerPrice, error) {
	var ticker TickerPrice
	err := c.do(ctx, request{
		method: http.MethodGet,
		path:   "/ticker/price",
		query:  url.Values{"market": {market}},
	}, &ticker)
	return ticker, err
}

// TickerBooks returns the best bid and ask for every market.
func (c *Client) TickerBooks(ctx context.Context) ([]TickerBook, error) {
	var books []TickerBook
	err := c.do(ctx, request{method: http.MethodGet, path: "/ticker/book"}, &books)
	return books, err
}

func (c *Client) TickerBook(ctx context.Context, market string) (TickerBook, error) {
	var book TickerBook
	err := c.do(ctx, request{
		method: http.MethodGet,
		path:   "/ticker/book",
		query:  url.Values{"market": {market}},
	}, &book)
	return book, err
}

func (c *Client) Tickers24h(ctx context.Context) ([]Ticker24h, error) {
	var tickers []Ticker24h
	err := c.do(ctx, request{method: http.MethodGet, path: "/ticker/24h"}, &tickers)
	return tickers, err
}

func (c *Client) Ticker24h(ctx context.Context, market string) (Ticker24h, error) {
	var ticker Ticker24h
	err := c.do(ctx, request{
		method: http.MethodGet,
		path:   "/ticker/24h",
		query:  url.Values{"market": {market}},
	}, &ticker)
	return ticker, err
}
