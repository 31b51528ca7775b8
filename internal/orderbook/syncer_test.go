package orderbook

import (
	"context"
	"errors"
	"testing"

	"github.com/dorskfr/bitvavo/api"
	"github.com/dorskfr/bitvavo/internal/bitvavotest"
	"github.com/dorskfr/bitvavo/stream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	snapshots []api.OrderBook
	err       error
	calls     int
}

func (f *fakeSource) OrderBook(ctx context.Context, market string, depth int) (api.OrderBook, error) {
	f.calls++
	if f.err != nil {
		return api.OrderBook{}, f.err
	}
	s := f.snapshots[min(f.calls-1, len(f.snapshots)-1)]
	s.Market = market
	return s, nil
}

func update(nonce int64, bids ...api.Quote) stream.BookEvent {
	return stream.BookEvent{Market: "BTC-EUR", Nonce: nonce, Bids: bids}
}

func TestSyncerFetchesSnapshotOnFirstUpdate(t *testing.T) {
	source := &fakeSource{snapshots: []api.OrderBook{snapshot(10)}}
	s := NewSyncer(source, NewOrderBook("BTC-EUR", nil), 0)
	ctx := context.Background()

	require.NoError(t, s.HandleUpdate(ctx, update(9, q("40000", "1"))))
	assert.Equal(t, 1, source.calls)
	assertBest(t, s.Book(), "30000", "30010")

	require.NoError(t, s.HandleUpdate(ctx, update(10, q("40000", "1"))))
	assertBest(t, s.Book(), "30000", "30010")

	require.NoError(t, s.HandleUpdate(ctx, update(11, q("30001", "1"))))
	assertBest(t, s.Book(), "30001", "30010")
	assert.EqualValues(t, 11, s.Book().Nonce())
	assert.Equal(t, 1, source.calls)
}

func TestSyncerResyncsOnGap(t *testing.T) {
	source := &fakeSource{snapshots: []api.OrderBook{snapshot(10), snapshot(20)}}
	s := NewSyncer(source, NewOrderBook("BTC-EUR", nil), 0)
	ctx := context.Background()

	require.NoError(t, s.Resync(ctx))
	require.NoError(t, s.HandleUpdate(ctx, update(11, q("30002", "1"))))
	assertBest(t, s.Book(), "30002", "30010")

	require.NoError(t, s.HandleUpdate(ctx, update(21, q("30003", "1"))))
	assert.Equal(t, 2, source.calls)
	assertBest(t, s.Book(), "30003", "30010")
	assert.EqualValues(t, 21, s.Book().Nonce())
}

func TestSyncerSnapshotStillBehind(t *testing.T) {
	source := &fakeSource{snapshots: []api.OrderBook{snapshot(10), snapshot(12), snapshot(30)}}
	s := NewSyncer(source, NewOrderBook("BTC-EUR", nil), 0)
	ctx := context.Background()

	require.NoError(t, s.Resync(ctx))
	require.NoError(t, s.HandleUpdate(ctx, update(25, q("30004", "1"))))
	assert.EqualValues(t, 12, s.Book().Nonce())

	require.NoError(t, s.HandleUpdate(ctx, update(26, q("30004", "1"))))
	assert.Equal(t, 3, source.calls)
	assert.EqualValues(t, 30, s.Book().Nonce())
}

func TestSyncerSnapshotError(t *testing.T) {
	source := &fakeSource{err: api.ErrTransport}
	s := NewSyncer(source, NewOrderBook("BTC-EUR", nil), 0)

	err := s.HandleUpdate(context.Background(), update(1))
	assert.True(t, errors.Is(err, api.ErrTransport))
}

func TestSyncerIgnoresOtherMarkets(t *testing.T) {
	source := &fakeSource{snapshots: []api.OrderBook{snapshot(10)}}
	s := NewSyncer(source, NewOrderBook("BTC-EUR", nil), 0)

	require.NoError(t, s.HandleUpdate(context.Background(), stream.BookEvent{Market: "ETH-EUR", Nonce: 1}))
	assert.Zero(t, source.calls)
}

func TestSyncerWithRESTClient(t *testing.T) {
	srv := bitvavotest.NewServer()
	defer srv.Close()
	srv.SetBookNonce(500)

	client := api.NewClient(api.WithBaseURL(srv.URL()))
	updates := make(chan MajorUpdate, 4)
	s := NewSyncer(client, NewOrderBook("BTC-EUR", updates), 25)

	handle := s.Handler(context.Background())
	handle(update(501, q("30005", "0.5")))

	assertBest(t, s.Book(), "30005", "30010")
	assert.Equal(t, "depth=25", srv.LastRequest().Query)
	require.Len(t, updates, 2)
}
