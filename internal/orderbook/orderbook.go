package orderbook

import (
	"sort"
	"sync"

	"github.com/dorskfr/bitvavo/api"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// MajorUpdate signals that the best bid or best ask of a market moved.
type MajorUpdate struct {
	Market  string          `json:"market"`
	BestBid decimal.Decimal `json:"bestBid"`
	BestAsk decimal.Decimal `json:"bestAsk"`
	Nonce   int64           `json:"nonce"`
}

// OrderBook is a local copy of one market's book. Levels are keyed by the
// normalised decimal price, so "30000" and "30000.00" are the same level.
type OrderBook struct {
	market       string
	bids         map[string]api.Quote
	asks         map[string]api.Quote
	bestBid      decimal.Decimal
	bestAsk      decimal.Decimal
	nonce        int64
	mu           sync.RWMutex
	MajorUpdates chan<- MajorUpdate
}

// NewOrderBook creates an empty book. majorUpdates may be nil; sends on it
// never block and are dropped when the channel is full.
func NewOrderBook(market string, majorUpdates chan<- MajorUpdate) *OrderBook {
	return &OrderBook{
		market:       market,
		bids:         make(map[string]api.Quote),
		asks:         make(map[string]api.Quote),
		MajorUpdates: majorUpdates,
	}
}

func (ob *OrderBook) Market() string {
	return ob.market
}

func (ob *OrderBook) Nonce() int64 {
	ob.mu.RLock()
	defer ob.mu.RUnlock()
	return ob.nonce
}

// BestBidAsk returns zero for a side that has no levels.
func (ob *OrderBook) BestBidAsk() (decimal.Decimal, decimal.Decimal) {
	ob.mu.RLock()
	defer ob.mu.RUnlock()
	return ob.bestBid, ob.bestAsk
}

// ApplySnapshot replaces the whole book.
func (ob *OrderBook) ApplySnapshot(snapshot api.OrderBook) {
	ob.mu.Lock()
	clear(ob.bids)
	clear(ob.asks)
	for _, q := range snapshot.Bids {
		setLevel(ob.bids, q)
	}
	for _, q := range snapshot.Asks {
		setLevel(ob.asks, q)
	}
	ob.nonce = snapshot.Nonce
	major := ob.refreshBest()
	update := ob.majorUpdate()
	ob.mu.Unlock()

	log.Debug().
		Str("market", ob.market).
		Int64("nonce", snapshot.Nonce).
		Int("bids", len(snapshot.Bids)).
		Int("asks", len(snapshot.Asks)).
		Msg("Applied order book snapshot")

	if major {
		ob.emit(update)
	}
}

// ApplyUpdate applies an incremental update. A zero amount removes the level.
// It reports whether the best bid or ask changed.
func (ob *OrderBook) ApplyUpdate(nonce int64, bids, asks []api.Quote) bool {
	ob.mu.Lock()
	for _, q := range bids {
		setLevel(ob.bids, q)
	}
	for _, q := range asks {
		setLevel(ob.asks, q)
	}
	ob.nonce = nonce
	major := ob.refreshBest()
	update := ob.majorUpdate()
	ob.mu.Unlock()

	if major {
		ob.emit(update)
	}
	return major
}

// TopLevels returns up to n levels per side, best first. n <= 0 returns all.
func (ob *OrderBook) TopLevels(n int) (bids, asks []api.Quote) {
	ob.mu.RLock()
	defer ob.mu.RUnlock()

	bids = sortedLevels(ob.bids, func(a, b decimal.Decimal) bool { return a.GreaterThan(b) })
	asks = sortedLevels(ob.asks, func(a, b decimal.Decimal) bool { return a.LessThan(b) })
	if n > 0 {
		bids = bids[:min(n, len(bids))]
		asks = asks[:min(n, len(asks))]
	}
	return bids, asks
}

func setLevel(side map[string]api.Quote, q api.Quote) {
	key := q.Price.String()
	if q.Amount.IsZero() {
		delete(side, key)
		return
	}
	side[key] = q
}

// refreshBest must be called with mu held.
func (ob *OrderBook) refreshBest() bool {
	bestBid := extreme(ob.bids, decimal.Decimal.GreaterThan)
	bestAsk := extreme(ob.asks, decimal.Decimal.LessThan)
	major := !bestBid.Equal(ob.bestBid) || !bestAsk.Equal(ob.bestAsk)
	ob.bestBid = bestBid
	ob.bestAsk = bestAsk
	return major
}

func (ob *OrderBook) majorUpdate() MajorUpdate {
	return MajorUpdate{Market: ob.market, BestBid: ob.bestBid, BestAsk: ob.bestAsk, Nonce: ob.nonce}
}

func (ob *OrderBook) emit(update MajorUpdate) {
	if ob.MajorUpdates == nil {
		return
	}
	select {
	case ob.MajorUpdates <- update:
	default:
		log.Debug().Str("market", ob.market).Msg("Major update channel full, dropping update")
	}
}

func extreme(side map[string]api.Quote, better func(a, b decimal.Decimal) bool) decimal.Decimal {
	var best decimal.Decimal
	first := true
	for _, q := range side {
		if first || better(q.Price, best) {
			best = q.Price
			first = false
		}
	}
	return best
}

func sortedLevels(side map[string]api.Quote, better func(a, b decimal.Decimal) bool) []api.Quote {
	levels := make([]api.Quote, 0, len(side))
	for _, q := range side {
		levels = append(levels, q)
	}
	sort.Slice(levels, func(i, j int) bool { return better(levels[i].Price, levels[j].Price) })
	return levels
}
