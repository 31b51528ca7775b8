package orderbook

import (
	"testing"

	"github.com/dorskfr/bitvavo/api"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func q(price, amount string) api.Quote {
	return api.Quote{Price: decimal.RequireFromString(price), Amount: decimal.RequireFromString(amount)}
}

func snapshot(nonce int64) api.OrderBook {
	return api.OrderBook{
		Market: "BTC-EUR",
		Nonce:  nonce,
		Bids:   []api.Quote{q("30000", "1"), q("29990", "2")},
		Asks:   []api.Quote{q("30010", "1"), q("30020", "3")},
	}
}

func assertBest(t *testing.T, ob *OrderBook, bid, ask string) {
	t.Helper()
	gotBid, gotAsk := ob.BestBidAsk()
	assert.Equal(t, bid, gotBid.String(), "best bid")
	assert.Equal(t, ask, gotAsk.String(), "best ask")
}

func TestApplySnapshotReplacesBook(t *testing.T) {
	ob := NewOrderBook("BTC-EUR", nil)
	ob.ApplyUpdate(1, []api.Quote{q("1", "1")}, nil)

	ob.ApplySnapshot(snapshot(10))

	assertBest(t, ob, "30000", "30010")
	assert.EqualValues(t, 10, ob.Nonce())
	bids, asks := ob.TopLevels(0)
	assert.Len(t, bids, 2)
	assert.Len(t, asks, 2)
}

func TestApplyUpdate(t *testing.T) {
	ob := NewOrderBook("BTC-EUR", nil)
	ob.ApplySnapshot(snapshot(10))

	t.Run("zero amount removes level", func(t *testing.T) {
		major := ob.ApplyUpdate(11, []api.Quote{q("30000", "0")}, nil)
		assert.True(t, major)
		assertBest(t, ob, "29990", "30010")
	})

	t.Run("price keys are normalised", func(t *testing.T) {
		major := ob.ApplyUpdate(12, nil, []api.Quote{q("30020.00", "5")})
		assert.False(t, major)
		_, asks := ob.TopLevels(0)
		require.Len(t, asks, 2)
		assert.Equal(t, "5", asks[1].Amount.String())
	})

	t.Run("amount change at best is not major", func(t *testing.T) {
		assert.False(t, ob.ApplyUpdate(13, nil, []api.Quote{q("30010", "7")}))
	})

	t.Run("empty side has zero best", func(t *testing.T) {
		ob.ApplyUpdate(14, []api.Quote{q("29990", "0")}, nil)
		bid, _ := ob.BestBidAsk()
		assert.True(t, bid.IsZero())
	})

	assert.EqualValues(t, 14, ob.Nonce())
}

func TestTopLevelsOrdering(t *testing.T) {
	ob := NewOrderBook("BTC-EUR", nil)
	ob.ApplySnapshot(api.OrderBook{
		Nonce: 1,
		Bids:  []api.Quote{q("99", "1"), q("101", "1"), q("100", "1")},
		Asks:  []api.Quote{q("105", "1"), q("103", "1"), q("104", "1")},
	})

	bids, asks := ob.TopLevels(2)
	require.Len(t, bids, 2)
	require.Len(t, asks, 2)
	assert.Equal(t, "101", bids[0].Price.String())
	assert.Equal(t, "100", bids[1].Price.String())
	assert.Equal(t, "103", asks[0].Price.String())
	assert.Equal(t, "104", asks[1].Price.String())
}

func TestMajorUpdatesNeverBlock(t *testing.T) {
	updates := make(chan MajorUpdate, 1)
	ob := NewOrderBook("BTC-EUR", updates)

	ob.ApplySnapshot(snapshot(10))
	ob.ApplyUpdate(11, []api.Quote{q("30005", "1")}, nil)
	ob.ApplyUpdate(12, []api.Quote{q("30006", "1")}, nil)

	require.Len(t, updates, 1)
	first := <-updates
	assert.Equal(t, "BTC-EUR", first.Market)
	assert.Equal(t, "30000", first.BestBid.String())
	assert.EqualValues(t, 10, first.Nonce)
}
