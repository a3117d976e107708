package storage

import (
	"fmt"
	"os"
	"path/filepath"

	"tradecore/internal/domain"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Journal is the append-only decision and trade store. It replaces the old
// free-form experiment logs with a fixed schema: per-bar decision records
// and closed-trade outcomes, insert-only. Rows are never updated or deleted.
type Journal struct {
	db *gorm.DB
}

// NewJournal opens (or creates) the SQLite journal at path.
func NewJournal(path string) (*Journal, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create journal directory: %w", err)
	}

	// Pure Go SQLite
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}

	if err := db.AutoMigrate(&domain.DecisionRecord{}, &domain.TradeRecord{}); err != nil {
		return nil, fmt.Errorf("failed to migrate journal: %w", err)
	}

	return &Journal{db: db}, nil
}

// AppendDecision writes one per-bar decision record.
func (j *Journal) AppendDecision(rec *domain.DecisionRecord) error {
	return j.db.Create(rec).Error
}

// AppendTrade writes one closed-trade outcome.
func (j *Journal) AppendTrade(rec *domain.TradeRecord) error {
	return j.db.Create(rec).Error
}

// Decisions returns the most recent decision records for an instrument,
// newest first.
func (j *Journal) Decisions(instrument string, limit int) ([]domain.DecisionRecord, error) {
	var recs []domain.DecisionRecord
	err := j.db.
		Where("instrument = ?", instrument).
		Order("idx DESC").
		Limit(limit).
		Find(&recs).Error
	return recs, err
}

// Trades returns all closed trades for an instrument in entry order.
func (j *Journal) Trades(instrument string) ([]domain.TradeRecord, error) {
	var recs []domain.TradeRecord
	err := j.db.
		Where("instrument = ?", instrument).
		Order("entry_idx ASC").
		Find(&recs).Error
	return recs, err
}

// CountTradesByResult returns the number of closed trades with the given
// result ("WIN" or "LOSS").
func (j *Journal) CountTradesByResult(instrument, result string) (int64, error) {
	var n int64
	err := j.db.Model(&domain.TradeRecord{}).
		Where("instrument = ? AND result = ?", instrument, result).
		Count(&n).Error
	return n, err
}
