package api

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
)

// Account returns the fee schedule of the authenticated account.
func (c *Client) Account(ctx context.Context) (Account, error) {
	var account Account
	err := c.do(ctx, request{method: http.MethodGet, path: "/account", auth: true}, &account)
	return account, err
}

// Fees returns the fees charged on a market. An empty market returns the
// account-wide tier.
func (c *Client) Fees(ctx context.Context, market string) (Fees, error) {
	q := url.Values{}
	setString(q, "market", market)

	var fees Fees
	err := c.do(ctx, request{method: http.MethodGet, path: "/account/fees", query: q, auth: true}, &fees)
	return fees, err
}

// Balance returns the balance per asset. An empty symbol returns all assets.
func (c *Client) Balance(ctx context.Context, symbol string) ([]Balance, error) {
	q := url.Values{}
	setString(q, "symbol", symbol)

	var balances []Balance
	err := c.do(ctx, request{method: http.MethodGet, path: "/balance", query: q, auth: true}, &balances)
	return balances, err
}

func (c *Client) DepositInfo(ctx context.Context, symbol string) (DepositInfo, error) {
	var info DepositInfo
	err := c.do(ctx, request{
		method: http.MethodGet,
		path:   "/deposit",
		query:  url.Values{"symbol": {symbol}},
		auth:   true,
	}, &info)
	return info, err
}

// HistoryParams narrows deposit and withdrawal history queries.
type HistoryParams struct {
	Symbol string
	Limit  int
	Start  time.Time
	End    time.Time
}

func (p HistoryParams) values() url.Values {
	q := url.Values{}
	setString(q, "symbol", p.Symbol)
	setInt(q, "limit", p.Limit)
	setTime(q, "start", p.Start)
	setTime(q, "end", p.End)
	return q
}

func (c *Client) DepositHistory(ctx context.Context, params HistoryParams) ([]Deposit, error) {
	var deposits []Deposit
	err := c.do(ctx, request{method: http.MethodGet, path: "/depositHistory", query: params.values(), auth: true}, &deposits)
	return deposits, err
}

func (c *Client) WithdrawalHistory(ctx context.Context, params HistoryParams) ([]Withdrawal, error) {
	var withdrawals []Withdrawal
	err := c.do(ctx, request{method: http.MethodGet, path: "/withdrawalHistory", query: params.values(), auth: true}, &withdrawals)
	return withdrawals, err
}

func (c *Client) Withdraw(ctx context.Context, w WithdrawRequest) (WithdrawalResponse, error) {
	var resp WithdrawalResponse
	err := c.do(ctx, request{method: http.MethodPost, path: "/withdrawal", body: w, auth: true}, &resp)
	return resp, err
}

func (c *Client) PlaceOrder(ctx context.Context, o OrderRequest) (Order, error) {
	var order Order
	err := c.do(ctx, request{method: http.MethodPost, path: "/order", body: o, auth: true}, &order)
	return order, err
}

func (c *Client) GetOrder(ctx context.Context, market string, orderID uuid.UUID) (Order, error) {
	var order Order
	err := c.do(ctx, request{
		method: http.MethodGet,
		path:   "/order",
		query:  url.Values{"market": {market}, "orderId": {orderID.String()}},
		auth:   true,
	}, &order)
	return order, err
}

// CancelOrder cancels one order and returns the id the exchange confirmed.
func (c *Client) CancelOrder(ctx context.Context, market string, orderID uuid.UUID) (uuid.UUID, error) {
	var resp cancelledOrder
	err := c.do(ctx, request{
		method: http.MethodDelete,
		path:   "/order",
		query:  url.Values{"market": {market}, "orderId": {orderID.String()}},
		auth:   true,
	}, &resp)
	return resp.OrderID, err
}

// OpenOrders lists open orders. An empty market lists all markets.
func (c *Client) OpenOrders(ctx context.Context, market string) ([]Order, error) {
	q := url.Values{}
	setString(q, "market", market)

	var orders []Order
	err := c.do(ctx, request{method: http.MethodGet, path: "/ordersOpen", query: q, auth: true}, &orders)
	return orders, err
}

// CancelOrders cancels every open order, optionally restricted to a market.
func (c *Client) CancelOrders(ctx context.Context, market string) ([]uuid.UUID, error) {
	q := url.Values{}
	setString(q, "market", market)

	var resp []cancelledOrder
	if err := c.do(ctx, request{method: http.MethodDelete, path: "/orders", query: q, auth: true}, &resp); err != nil {
		return nil, err
	}
	ids := make([]uuid.UUID, 0, len(resp))
	for _, r := range resp {
		ids = append(ids, r.OrderID)
	}
	return ids, nil
}
