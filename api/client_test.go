package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/dorskfr/bitvavo/internal/bitvavotest"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) *bitvavotest.Server {
	t.Helper()
	srv := bitvavotest.NewServer()
	t.Cleanup(srv.Close)
	return srv
}

func newPublicClient(srv *bitvavotest.Server, opts ...Option) *Client {
	return NewClient(append([]Option{WithBaseURL(srv.URL())}, opts...)...)
}

func newPrivateClient(srv *bitvavotest.Server, opts ...Option) *Client {
	return NewClient(append([]Option{
		WithBaseURL(srv.URL()),
		WithCredentials(bitvavotest.Key, bitvavotest.Secret),
	}, opts...)...)
}

func TestTime(t *testing.T) {
	srv := newTestServer(t)
	c := newPublicClient(srv)

	ts, err := c.Time(context.Background())
	require.NoError(t, err)
	assert.Equal(t, bitvavotest.ServerTime, ts.UnixMilli())

	req := srv.LastRequest()
	assert.Equal(t, "/v2/time", req.Path)
	assert.Equal(t, "bitvavo-go/"+Version, req.Header.Get("User-Agent"))
	assert.Empty(t, req.Header.Get(HeaderAccessKey))
}

func TestAssetsAndMarkets(t *testing.T) {
	srv := newTestServer(t)
	c := newPublicClient(srv)
	ctx := context.Background()

	assets, err := c.Assets(ctx)
	require.NoError(t, err)
	require.Len(t, assets, 2)
	assert.Equal(t, "BTC", assets[0].Symbol)
	assert.Equal(t, AssetStatusMaintenance, assets[1].WithdrawalStatus)

	asset, err := c.Asset(ctx, "BTC")
	require.NoError(t, err)
	assert.Equal(t, 8, asset.Decimals)
	assert.Equal(t, "symbol=BTC", srv.LastRequest().Query)

	markets, err := c.Markets(ctx)
	require.NoError(t, err)
	require.Len(t, markets, 2)
	assert.Equal(t, MarketStatusHalted, markets[1].Status)

	market, err := c.Market(ctx, "BTC-EUR")
	require.NoError(t, err)
	assert.Equal(t, "0.0001", market.MinOrderInBaseAsset.String())
	assert.Contains(t, market.OrderTypes, "stopLossLimit")
}

func TestUnknownMarketReturnsAPIError(t *testing.T) {
	srv := newTestServer(t)
	c := newPublicClient(srv)

	_, err := c.Market(context.Background(), "BAD-MARKET")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Equal(t, 205, apiErr.Code)
	assert.False(t, errors.Is(err, ErrAuthentication))
	assert.False(t, errors.Is(err, ErrTransport))
}

func TestOrderBook(t *testing.T) {
	srv := newTestServer(t)
	srv.SetBookNonce(4242)
	c := newPublicClient(srv)
	ctx := context.Background()

	book, err := c.OrderBook(ctx, "BTC-EUR", 2)
	require.NoError(t, err)
	assert.Equal(t, "/v2/BTC-EUR/book", srv.LastRequest().Path)
	assert.Equal(t, "depth=2", srv.LastRequest().Query)
	assert.EqualValues(t, 4242, book.Nonce)
	require.Len(t, book.Bids, 2)
	assert.Equal(t, "30000", book.Bids[0].Price.String())
	assert.Equal(t, "0.8", book.Asks[0].Amount.String())

	full, err := c.OrderBook(ctx, "BTC-EUR", 0)
	require.NoError(t, err)
	assert.Empty(t, srv.LastRequest().Query)
	assert.Len(t, full.Bids, 3)
}

func TestOptionalQueryParameters(t *testing.T) {
	srv := newTestServer(t)
	c := newPublicClient(srv)
	ctx := context.Background()

	trades, err := c.Trades(ctx, "BTC-EUR", TradesParams{})
	require.NoError(t, err)
	assert.Empty(t, srv.LastRequest().Query)
	require.Len(t, trades, 2)
	assert.Equal(t, SideSell, trades[0].Side)

	_, err = c.Trades(ctx, "BTC-EUR", TradesParams{
		Limit: 5,
		Start: time.UnixMilli(1699999000000),
		End:   time.UnixMilli(1700000000000),
	})
	require.NoError(t, err)
	assert.Equal(t, "end=1700000000000&limit=5&start=1699999000000", srv.LastRequest().Query)

	candles, err := c.Candles(ctx, "BTC-EUR", OneHour, CandlesParams{Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, "interval=1h&limit=2", srv.LastRequest().Query)
	require.Len(t, candles, 2)
	assert.EqualValues(t, 1700000000000, candles[0].Time)
	assert.Equal(t, "30050", candles[0].Close.String())

	_, err = c.Candles(ctx, "BTC-EUR", OneDay, CandlesParams{})
	require.NoError(t, err)
	assert.Equal(t, "interval=1d", srv.LastRequest().Query)
}

func TestTickers(t *testing.T) {
	srv := newTestServer(t)
	c := newPublicClient(srv)
	ctx := context.Background()

	prices, err := c.TickerPrices(ctx)
	require.NoError(t, err)
	require.Len(t, prices, 3)
	assert.False(t, prices[2].Price.Valid)

	price, err := c.TickerPrice(ctx, "ETH-EUR")
	require.NoError(t, err)
	assert.Equal(t, "2000.5", price.Price.Decimal.String())

	books, err := c.TickerBooks(ctx)
	require.NoError(t, err)
	assert.Len(t, books, 2)

	book, err := c.TickerBook(ctx, "BTC-EUR")
	require.NoError(t, err)
	assert.Equal(t, "30010", book.Ask.Decimal.String())

	all, err := c.Tickers24h(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.False(t, all[1].Open.Valid)

	t24, err := c.Ticker24h(ctx, "BTC-EUR")
	require.NoError(t, err)
	assert.Equal(t, "412.5", t24.Volume.Decimal.String())
	assert.Equal(t, "market=BTC-EUR", srv.LastRequest().Query)
}

func TestPrivateEndpointsRequireCredentials(t *testing.T) {
	srv := newTestServer(t)
	c := newPublicClient(srv)
	ctx := context.Background()

	_, err := c.Balance(ctx, "")
	assert.ErrorIs(t, err, ErrMissingCredentials)
	assert.ErrorIs(t, err, ErrAuthentication)

	_, err = c.CancelOrders(ctx, "")
	assert.ErrorIs(t, err, ErrMissingCredentials)

	assert.Empty(t, srv.Requests())
	assert.False(t, c.HasCredentials())
}

func TestPrivateEndpoints(t *testing.T) {
	srv := newTestServer(t)
	c := newPrivateClient(srv)
	ctx := context.Background()
	orderID := uuid.MustParse(bitvavotest.OrderID)

	account, err := c.Account(ctx)
	require.NoError(t, err)
	assert.Equal(t, "0.0025", account.Fees.Taker.String())

	fees, err := c.Fees(ctx, "BTC-EUR")
	require.NoError(t, err)
	assert.Equal(t, 1, fees.Tier)
	assert.Equal(t, "market=BTC-EUR", srv.LastRequest().Query)

	balances, err := c.Balance(ctx, "")
	require.NoError(t, err)
	require.Len(t, balances, 2)
	assert.Equal(t, "0.74832374", balances[0].InOrder.String())

	info, err := c.DepositInfo(ctx, "BTC")
	require.NoError(t, err)
	assert.Equal(t, "10002653", info.PaymentID)

	deposits, err := c.DepositHistory(ctx, HistoryParams{Symbol: "BTC", Limit: 10})
	require.NoError(t, err)
	require.Len(t, deposits, 1)
	assert.Equal(t, DepositCompleted, deposits[0].Status)
	assert.Equal(t, "limit=10&symbol=BTC", srv.LastRequest().Query)

	withdrawals, err := c.WithdrawalHistory(ctx, HistoryParams{})
	require.NoError(t, err)
	require.Len(t, withdrawals, 1)
	assert.Equal(t, WithdrawalAwaitingProcessing, withdrawals[0].Status)

	resp, err := c.Withdraw(ctx, WithdrawRequest{
		Symbol:  "BTC",
		Amount:  decimal.RequireFromString("0.5"),
		Address: "bc1qotheraddress",
	})
	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.Equal(t, "0.5", resp.Amount.String())

	order, err := c.GetOrder(ctx, "BTC-EUR", orderID)
	require.NoError(t, err)
	assert.Equal(t, orderID, order.OrderID)
	assert.False(t, order.ClientOrderID.Valid)
	assert.Equal(t, OrderStatusPartiallyFilled, order.Status)
	assert.Equal(t, "0.3", order.AmountRemaining.Decimal.String())

	open, err := c.OpenOrders(ctx, "")
	require.NoError(t, err)
	assert.Len(t, open, 1)

	cancelled, err := c.CancelOrder(ctx, "BTC-EUR", orderID)
	require.NoError(t, err)
	assert.Equal(t, orderID, cancelled)
	assert.Equal(t, http.MethodDelete, srv.LastRequest().Method)

	ids, err := c.CancelOrders(ctx, "BTC-EUR")
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{orderID}, ids)

	for _, req := range srv.Requests() {
		assert.Equal(t, bitvavotest.Key, req.Header.Get(HeaderAccessKey))
		assert.Equal(t, "10000", req.Header.Get(HeaderAccessWindow))
	}
}

func TestPlaceOrder(t *testing.T) {
	srv := newTestServer(t)
	c := newPrivateClient(srv)

	amount := decimal.RequireFromString("0.5")
	price := decimal.RequireFromString("29000")
	clientID := uuid.New()
	order, err := c.PlaceOrder(context.Background(), OrderRequest{
		Market:        "BTC-EUR",
		Side:          SideBuy,
		OrderType:     OrderTypeLimit,
		ClientOrderID: &clientID,
		Amount:        &amount,
		Price:         &price,
	})
	require.NoError(t, err)
	assert.Equal(t, bitvavotest.OrderID, order.OrderID.String())
	assert.Equal(t, clientID, order.ClientOrderID.UUID)
	assert.Equal(t, OrderTypeLimit, order.OrderType)

	req := srv.LastRequest()
	assert.Equal(t, http.MethodPost, req.Method)
	assert.Equal(t, "application/json", req.Header.Get("Content-Type"))

	var body map[string]any
	require.NoError(t, json.Unmarshal(req.Body, &body))
	assert.Equal(t, "0.5", body["amount"])
	assert.NotContains(t, body, "amountQuote")
}

func TestInvalidSignatureIsAuthenticationError(t *testing.T) {
	srv := newTestServer(t)
	c := NewClient(WithBaseURL(srv.URL()), WithCredentials(bitvavotest.Key, "wrong"))

	_, err := c.Balance(context.Background(), "BTC")
	assert.ErrorIs(t, err, ErrAuthentication)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 309, apiErr.Code)
	assert.Equal(t, http.StatusForbidden, apiErr.StatusCode)
}

func TestTransportErrors(t *testing.T) {
	c := NewClient(WithBaseURL("http://127.0.0.1:1/v2"), WithTimeout(time.Second))

	_, err := c.Time(context.Background())
	assert.ErrorIs(t, err, ErrTransport)

	srv := newTestServer(t)
	c = newPublicClient(srv)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = c.Time(ctx)
	assert.ErrorIs(t, err, ErrTransport)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRetries(t *testing.T) {
	srv := newTestServer(t)

	srv.FailNext("/v2/time", 1)
	_, err := newPublicClient(srv).Time(context.Background())
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusServiceUnavailable, apiErr.StatusCode)
	assert.Equal(t, "service unavailable", apiErr.Message)

	srv.FailNext("/v2/time", 2)
	_, err = newPublicClient(srv, WithRetries(2)).Time(context.Background())
	assert.NoError(t, err)
}

func TestServerRateLimitIsHonoured(t *testing.T) {
	srv := newTestServer(t)
	c := newPublicClient(srv)
	ctx := context.Background()

	srv.SetRateLimit(5, time.Now().Add(300*time.Millisecond))
	_, err := c.Time(ctx)
	require.NoError(t, err)

	state := c.RateLimit()
	assert.True(t, state.Known)
	assert.Equal(t, 5, state.Remaining)

	start := time.Now()
	_, err = c.Time(ctx)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 250*time.Millisecond)

	c = newPublicClient(srv, WithMinRemaining(0))
	srv.SetRateLimit(5, time.Now().Add(time.Hour))
	_, err = c.Time(ctx)
	require.NoError(t, err)
	start = time.Now()
	_, err = c.Time(ctx)
	require.NoError(t, err)
	assert.Less(t, time.Since(start), time.Second)
}
