package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/dorskfr/bitvavo/api"
	"github.com/dorskfr/bitvavo/internal/orderbook"
	"github.com/dorskfr/bitvavo/internal/recorder"
	"github.com/dorskfr/bitvavo/internal/utils"
	"github.com/dorskfr/bitvavo/stream"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

type command struct {
	args    string
	minArgs int
	run     func(ctx context.Context, a *app, args []string) (any, error)
}

var commands = map[string]command{
	"time":         {run: runTime},
	"assets":       {args: "[symbol]", run: runAssets},
	"markets":      {args: "[market]", run: runMarkets},
	"book":         {args: "<market> [depth]", minArgs: 1, run: runBook},
	"trades":       {args: "<market> [limit]", minArgs: 1, run: runTrades},
	"candles":      {args: "<market> <interval> [limit]", minArgs: 2, run: runCandles},
	"ticker-price": {args: "[market]", run: runTickerPrice},
	"ticker-book":  {args: "[market]", run: runTickerBook},
	"ticker-24h":   {args: "[market]", run: runTicker24h},
	"account":      {run: runAccount},
	"fees":         {args: "[market]", run: runFees},
	"balance":      {args: "[symbol]", run: runBalance},
	"open-orders":  {args: "[market]", run: runOpenOrders},
	"cancel-order": {args: "<market> <orderId>", minArgs: 2, run: runCancelOrder},
	"watch":        {args: "<market...>", minArgs: 1, run: runWatch},
	"local-book":   {args: "<market>", minArgs: 1, run: runLocalBook},
	"record":       {args: "<market> <interval> [limit]", minArgs: 2, run: runRecord},
	"version":      {run: runVersion},
}

func optArg(args []string, i int) string {
	if i < len(args) {
		return args[i]
	}
	return ""
}

func optInt(args []string, i int, name string) (int, error) {
	s := optArg(args, i)
	if s == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid %s %q: expected a non-negative integer", name, s)
	}
	return n, nil
}

func runTime(ctx context.Context, a *app, _ []string) (any, error) {
	t, err := a.client.Time(ctx)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"time": t.UnixMilli(),
		"iso":  t.UTC().Format(time.RFC3339Nano),
	}, nil
}

func runAssets(ctx context.Context, a *app, args []string) (any, error) {
	if symbol := optArg(args, 0); symbol != "" {
		return a.client.Asset(ctx, symbol)
	}
	return a.client.Assets(ctx)
}

func runMarkets(ctx context.Context, a *app, args []string) (any, error) {
	if market := optArg(args, 0); market != "" {
		return a.client.Market(ctx, market)
	}
	return a.client.Markets(ctx)
}

func runBook(ctx context.Context, a *app, args []string) (any, error) {
	depth, err := optInt(args, 1, "depth")
	if err != nil {
		return nil, err
	}
	return a.client.OrderBook(ctx, args[0], depth)
}

func runTrades(ctx context.Context, a *app, args []string) (any, error) {
	limit, err := optInt(args, 1, "limit")
	if err != nil {
		return nil, err
	}
	return a.client.Trades(ctx, args[0], api.TradesParams{Limit: limit})
}

func runCandles(ctx context.Context, a *app, args []string) (any, error) {
	interval, err := api.ParseCandleInterval(args[1])
	if err != nil {
		return nil, err
	}
	limit, err := optInt(args, 2, "limit")
	if err != nil {
		return nil, err
	}
	return a.client.Candles(ctx, args[0], interval, api.CandlesParams{Limit: limit})
}

func runTickerPrice(ctx context.Context, a *app, args []string) (any, error) {
	if market := optArg(args, 0); market != "" {
		return a.client.TickerPrice(ctx, market)
	}
	return a.client.TickerPrices(ctx)
}

func runTickerBook(ctx context.Context, a *app, args []string) (any, error) {
	if market := optArg(args, 0); market != "" {
		return a.client.TickerBook(ctx, market)
	}
	return a.client.TickerBooks(ctx)
}

func runTicker24h(ctx context.Context, a *app, args []string) (any, error) {
	if market := optArg(args, 0); market != "" {
		return a.client.Ticker24h(ctx, market)
	}
	return a.client.Tickers24h(ctx)
}

func runAccount(ctx context.Context, a *app, _ []string) (any, error) {
	return a.client.Account(ctx)
}

func runFees(ctx context.Context, a *app, args []string) (any, error) {
	return a.client.Fees(ctx, optArg(args, 0))
}

func runBalance(ctx context.Context, a *app, args []string) (any, error) {
	return a.client.Balance(ctx, optArg(args, 0))
}

func runOpenOrders(ctx context.Context, a *app, args []string) (any, error) {
	return a.client.OpenOrders(ctx, optArg(args, 0))
}

func runCancelOrder(ctx context.Context, a *app, args []string) (any, error) {
	orderID, err := uuid.Parse(args[1])
	if err != nil {
		return nil, fmt.Errorf("invalid order id %q: %w", args[1], err)
	}
	id, err := a.client.CancelOrder(ctx, args[0], orderID)
	if err != nil {
		return nil, err
	}
	return map[string]string{"orderId": id.String()}, nil
}

type streamLine struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// runWatch prints ticker and trade events as JSON lines until interrupted.
func runWatch(ctx context.Context, a *app, args []string) (any, error) {
	enc := json.NewEncoder(a.out)
	emit := func(event string, data any) {
		if err := enc.Encode(streamLine{Event: event, Data: data}); err != nil {
			log.Error().Err(err).Msg("Failed to write event")
		}
	}

	subs := []stream.Subscription{
		{Name: stream.ChannelTicker, Markets: args},
		{Name: stream.ChannelTrades, Markets: args},
	}
	handler := stream.Handler{
		Ticker: func(e stream.TickerEvent) { emit("ticker", e) },
		Trade:  func(e stream.TradeEvent) { emit("trade", e) },
		Error:  func(err error) { log.Error().Err(err).Msg("Stream error") },
	}

	client := stream.NewClient(a.cfg.StreamOptions()...)
	return nil, client.Run(ctx, subs, handler)
}

type localBookResult struct {
	Market string      `json:"market"`
	Nonce  int64       `json:"nonce"`
	Bids   []api.Quote `json:"bids"`
	Asks   []api.Quote `json:"asks"`
}

// runLocalBook keeps a synced local book and prints every change of the best
// bid or ask as a JSON line. On shutdown it returns the top of the book.
func runLocalBook(ctx context.Context, a *app, args []string) (any, error) {
	market := args[0]
	enc := json.NewEncoder(a.out)
	updates := make(chan orderbook.MajorUpdate, 100)
	book := orderbook.NewOrderBook(market, updates)
	syncer := orderbook.NewSyncer(a.client, book, 0)

	if err := syncer.Resync(ctx); err != nil {
		return nil, err
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case u := <-updates:
				log.Info().
					Str("market", u.Market).
					Str("bestBid", u.BestBid.String()).
					Str("bestAsk", u.BestAsk.String()).
					Int64("nonce", u.Nonce).
					Msg("Best bid/ask changed")
				if err := enc.Encode(streamLine{Event: "best", Data: u}); err != nil {
					log.Error().Err(err).Msg("Failed to write update")
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	client := stream.NewClient(a.cfg.StreamOptions()...)
	err := client.Run(ctx, []stream.Subscription{{Name: stream.ChannelBook, Markets: []string{market}}}, stream.Handler{
		Book:  syncer.Handler(ctx),
		Error: func(err error) { log.Error().Err(err).Msg("Stream error") },
	})
	utils.ShutdownWg(&wg, 5*time.Second)
	if err != nil {
		return nil, err
	}

	bids, asks := book.TopLevels(10)
	return localBookResult{Market: market, Nonce: book.Nonce(), Bids: bids, Asks: asks}, nil
}

type recordResult struct {
	Market         string             `json:"market"`
	Interval       api.CandleInterval `json:"interval"`
	Database       string             `json:"database"`
	CandlesFetched int                `json:"candlesFetched"`
	CandlesWritten int64              `json:"candlesWritten"`
	CandlesStored  int                `json:"candlesStored"`
	TradesFetched  int                `json:"tradesFetched"`
	TradesWritten  int64              `json:"tradesWritten"`
}

// runRecord fetches candles and recent trades and stores them in SQLite.
func runRecord(ctx context.Context, a *app, args []string) (any, error) {
	market := args[0]
	interval, err := api.ParseCandleInterval(args[1])
	if err != nil {
		return nil, err
	}
	limit, err := optInt(args, 2, "limit")
	if err != nil {
		return nil, err
	}

	rec, err := recorder.Open(a.cfg.Recorder.Path)
	if err != nil {
		return nil, err
	}
	defer rec.Close()

	candles, err := a.client.Candles(ctx, market, interval, api.CandlesParams{Limit: limit})
	if err != nil {
		return nil, fmt.Errorf("error fetching candles: %w", err)
	}
	trades, err := a.client.Trades(ctx, market, api.TradesParams{Limit: limit})
	if err != nil {
		return nil, fmt.Errorf("error fetching trades: %w", err)
	}

	result := recordResult{
		Market:         market,
		Interval:       interval,
		Database:       a.cfg.Recorder.Path,
		CandlesFetched: len(candles),
		TradesFetched:  len(trades),
	}
	if result.CandlesWritten, err = rec.SaveCandles(ctx, market, interval, candles); err != nil {
		return nil, err
	}
	if result.TradesWritten, err = rec.SaveTrades(ctx, market, trades); err != nil {
		return nil, err
	}
	stored, err := rec.Candles(ctx, market, interval)
	if err != nil {
		return nil, err
	}
	result.CandlesStored = len(stored)

	log.Info().
		Str("market", market).
		Str("interval", string(interval)).
		Int64("candles", result.CandlesWritten).
		Int64("trades", result.TradesWritten).
		Msg("Recorded market data")
	return result, nil
}

func runVersion(context.Context, *app, []string) (any, error) {
	return map[string]string{"version": api.Version}, nil
}
