package orderbook

import (
	"context"
	"fmt"
	"sync"

	"github.com/dorskfr/bitvavo/api"
	"github.com/dorskfr/bitvavo/stream"
	"github.com/rs/zerolog/log"
)

// SnapshotSource fetches a full book. *api.Client satisfies it.
type SnapshotSource interface {
	OrderBook(ctx context.Context, market string, depth int) (api.OrderBook, error)
}

// Syncer keeps an OrderBook consistent with the stream by fetching a REST
// snapshot at start and again whenever a nonce gap shows updates were lost.
type Syncer struct {
	source SnapshotSource
	book   *OrderBook
	depth  int

	mu     sync.Mutex
	synced bool
}

func NewSyncer(source SnapshotSource, book *OrderBook, depth int) *Syncer {
	return &Syncer{source: source, book: book, depth: depth}
}

func (s *Syncer) Book() *OrderBook {
	return s.book
}

// Resync replaces the book with a fresh snapshot.
func (s *Syncer) Resync(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.resync(ctx)
}

func (s *Syncer) resync(ctx context.Context) error {
	snapshot, err := s.source.OrderBook(ctx, s.book.Market(), s.depth)
	if err != nil {
		s.synced = false
		return fmt.Errorf("error getting order book snapshot for %s: %w", s.book.Market(), err)
	}
	s.book.ApplySnapshot(snapshot)
	s.synced = true
	return nil
}

// HandleUpdate applies one stream update. Updates already covered by the
// snapshot are discarded; a gap triggers a resync.
func (s *Syncer) HandleUpdate(ctx context.Context, update stream.BookEvent) error {
	if update.Market != s.book.Market() {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.synced {
		if err := s.resync(ctx); err != nil {
			return err
		}
	}

	last := s.book.Nonce()
	if update.Nonce > last+1 {
		log.Warn().
			Str("market", update.Market).
			Int64("nonce", update.Nonce).
			Int64("expected", last+1).
			Msg("Missed updates, resyncing")
		if err := s.resync(ctx); err != nil {
			return err
		}
		last = s.book.Nonce()
	}

	if update.Nonce <= last {
		log.Debug().Str("market", update.Market).Int64("nonce", update.Nonce).Int64("last", last).Msg("Discarding stale update")
		return nil
	}
	if update.Nonce > last+1 {
		// The snapshot is still behind; the next update retries.
		s.synced = false
		return nil
	}

	s.book.ApplyUpdate(update.Nonce, update.Bids, update.Asks)
	return nil
}

// Handler adapts the syncer to a stream book callback.
func (s *Syncer) Handler(ctx context.Context) func(stream.BookEvent) {
	return func(update stream.BookEvent) {
		if err := s.HandleUpdate(ctx, update); err != nil {
			log.Error().Err(err).Str("market", update.Market).Msg("Error syncing order book")
		}
	}
}
