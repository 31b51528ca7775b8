package recorder

import (
	"context"
	"fmt"

	"github.com/dorskfr/bitvavo/api"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// CandleRecord is one stored candle, unique per market, interval and open time.
type CandleRecord struct {
	gorm.Model
	Market   string          `gorm:"uniqueIndex:idx_candle_key"`
	Interval string          `gorm:"uniqueIndex:idx_candle_key"`
	Time     int64           `gorm:"uniqueIndex:idx_candle_key"`
	Open     decimal.Decimal `gorm:"type:text"`
	High     decimal.Decimal `gorm:"type:text"`
	Low      decimal.Decimal `gorm:"type:text"`
	Close    decimal.Decimal `gorm:"type:text"`
	Volume   decimal.Decimal `gorm:"type:text"`
}

type TradeRecord struct {
	gorm.Model
	TradeID   string `gorm:"uniqueIndex"`
	Market    string `gorm:"index"`
	Timestamp int64
	Amount    decimal.Decimal `gorm:"type:text"`
	Price     decimal.Decimal `gorm:"type:text"`
	Side      string
}

// Recorder stores market data fetched from the REST API in SQLite.
type Recorder struct {
	db *gorm.DB
}

func Open(path string) (*Recorder, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{Logger: logger.Discard})
	if err != nil {
		return nil, fmt.Errorf("error opening database %s: %w", path, err)
	}
	if err := db.AutoMigrate(&CandleRecord{}, &TradeRecord{}); err != nil {
		return nil, fmt.Errorf("error migrating database: %w", err)
	}
	log.Debug().Str("path", path).Msg("Recorder database opened")
	return &Recorder{db: db}, nil
}

func (r *Recorder) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// SaveCandles upserts candles; a candle already stored for the same open
// time is overwritten. It returns the number of rows written.
func (r *Recorder) SaveCandles(ctx context.Context, market string, interval api.CandleInterval, candles []api.Candle) (int64, error) {
	if len(candles) == 0 {
		return 0, nil
	}
	records := make([]CandleRecord, 0, len(candles))
	for _, c := range candles {
		records = append(records, CandleRecord{
			Market:   market,
			Interval: string(interval),
			Time:     c.Time,
			Open:     c.Open,
			High:     c.High,
			Low:      c.Low,
			Close:    c.Close,
			Volume:   c.Volume,
		})
	}

	res := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "market"}, {Name: "interval"}, {Name: "time"}},
		DoUpdates: clause.AssignmentColumns([]string{"open", "high", "low", "close", "volume", "updated_at"}),
	}).Create(&records)
	if res.Error != nil {
		return 0, fmt.Errorf("error saving candles for %s: %w", market, res.Error)
	}
	return res.RowsAffected, nil
}

// SaveTrades stores trades not seen before. Trades are immutable, so known
// ids are skipped.
func (r *Recorder) SaveTrades(ctx context.Context, market string, trades []api.Trade) (int64, error) {
	if len(trades) == 0 {
		return 0, nil
	}
	records := make([]TradeRecord, 0, len(trades))
	for _, t := range trades {
		records = append(records, TradeRecord{
			TradeID:   t.ID,
			Market:    market,
			Timestamp: t.Timestamp,
			Amount:    t.Amount,
			Price:     t.Price,
			Side:      string(t.Side),
		})
	}

	res := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "trade_id"}},
		DoNothing: true,
	}).Create(&records)
	if res.Error != nil {
		return 0, fmt.Errorf("error saving trades for %s: %w", market, res.Error)
	}
	return res.RowsAffected, nil
}

// Candles returns stored candles ordered by open time, oldest first.
func (r *Recorder) Candles(ctx context.Context, market string, interval api.CandleInterval) ([]api.Candle, error) {
	var records []CandleRecord
	err := r.db.WithContext(ctx).
		Where("market = ? AND interval = ?", market, string(interval)).
		Order("time").
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("error loading candles for %s: %w", market, err)
	}

	candles := make([]api.Candle, 0, len(records))
	for _, rec := range records {
		candles = append(candles, api.Candle{
			Time:   rec.Time,
			Open:   rec.Open,
			High:   rec.High,
			Low:    rec.Low,
			Close:  rec.Close,
			Volume: rec.Volume,
		})
	}
	return candles, nil
}

// Trades returns stored trades for a market ordered by timestamp.
func (r *Recorder) Trades(ctx context.Context, market string) ([]api.Trade, error) {
	var records []TradeRecord
	err := r.db.WithContext(ctx).Where("market = ?", market).Order("timestamp").Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("error loading trades for %s: %w", market, err)
	}

	trades := make([]api.Trade, 0, len(records))
	for _, rec := range records {
		trades = append(trades, api.Trade{
			ID:        rec.TradeID,
			Timestamp: rec.Timestamp,
			Amount:    rec.Amount,
			Price:     rec.Price,
			Side:      api.Side(rec.Side),
		})
	}
	return trades, nil
}
