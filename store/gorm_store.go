package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/web3guy0/positioncore/types"
)

// ═══════════════════════════════════════════════════════════════════════════════
// GORM STORE - Durable Store Adapter over gorm, dual Postgres/SQLite backend
// ═══════════════════════════════════════════════════════════════════════════════
//
// Grounded on internal/database/database.go's New(dbPath)'s connection-
// string sniffing (postgres:// vs a filesystem path) and AutoMigrate-on-
// startup pattern, generalized from that file's per-feature tables (Market,
// Opportunity, ArbTrade, ...) down to the single `positions` table this core
// needs, with exit data folded into one nullable JSON column rather than a
// second table - there is at most one ExitRecord per position, so a join
// buys nothing.
//
// ═══════════════════════════════════════════════════════════════════════════════

// positionRecord is the gorm model backing the positions table.
type positionRecord struct {
	ID          string `gorm:"primaryKey"`
	TradeID     string `gorm:"column:trade_id;uniqueIndex"`
	UserID      string `gorm:"column:user_id"`
	SafeAddress string `gorm:"column:safe_address"`
	NetworkKey  string `gorm:"column:network_key"`
	TokenSymbol string `gorm:"column:token_symbol;index"`
	Side        string `gorm:"column:side"`

	EntryPrice  string `gorm:"column:entry_price"`
	EntryAmount string `gorm:"column:entry_amount"`
	TP1         string `gorm:"column:tp1"`
	TP2         string `gorm:"column:tp2"`
	SL          string `gorm:"column:sl"`
	MaxExitTime time.Time `gorm:"column:max_exit_time"`

	Status string `gorm:"column:status;index"`

	HighestFavorablePrice string `gorm:"column:highest_favorable_price"`
	TrailingStopPrice     string `gorm:"column:trailing_stop_price"`
	TrailingStopEnabled   bool   `gorm:"column:trailing_stop_enabled"`

	PriceCheckCount int        `gorm:"column:price_check_count"`
	LastPriceCheck  *time.Time `gorm:"column:last_price_check"`
	ExecutedAt      time.Time  `gorm:"column:executed_at"`

	ExitData string `gorm:"column:exit_data;type:text"` // JSON-encoded types.ExitRecord, empty if still active

	CreatedAt time.Time `gorm:"column:created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at"`
}

func (positionRecord) TableName() string {
	return "positions"
}

// GormStore implements Store over gorm.DB.
type GormStore struct {
	db *gorm.DB
}

// Open connects to dsn, auto-detecting Postgres ("postgres://"/"postgresql://"
// prefix) vs SQLite (a filesystem path), and runs AutoMigrate.
func Open(dsn string) (*GormStore, error) {
	var db *gorm.DB
	var err error

	cfg := &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)}

	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		db, err = gorm.Open(postgres.Open(dsn), cfg)
		if err != nil {
			return nil, fmt.Errorf("open postgres store: %w", err)
		}
		log.Info().Msg("💾 durable store connected (postgres)")
	} else {
		if dir := filepath.Dir(dsn); dir != "." {
			if mkErr := os.MkdirAll(dir, 0o755); mkErr != nil {
				return nil, fmt.Errorf("create store directory: %w", mkErr)
			}
		}
		db, err = gorm.Open(sqlite.Open(dsn), cfg)
		if err != nil {
			return nil, fmt.Errorf("open sqlite store: %w", err)
		}
		log.Info().Str("path", dsn).Msg("💾 durable store connected (sqlite)")
	}

	if err := db.AutoMigrate(&positionRecord{}); err != nil {
		return nil, fmt.Errorf("migrate store: %w", err)
	}

	return &GormStore{db: db}, nil
}

// Insert durably persists p and assigns/stabilizes its identity.
func (s *GormStore) Insert(p *types.MonitoredPosition) (string, error) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}

	rec := toRecord(p)
	if err := s.db.Create(&rec).Error; err != nil {
		return "", fmt.Errorf("insert position: %w", err)
	}
	return rec.ID, nil
}

// ListActive returns every record whose status is still active.
func (s *GormStore) ListActive() ([]*types.MonitoredPosition, error) {
	var recs []positionRecord
	if err := s.db.Where("status = ?", string(types.StatusActive)).Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("list active positions: %w", err)
	}

	out := make([]*types.MonitoredPosition, 0, len(recs))
	for _, r := range recs {
		out = append(out, fromRecord(r))
	}
	return out, nil
}

// UpdateStatus performs the terminal write. Repeated terminal writes for the
// same id are last-writer-wins, which is safe because the exit state
// machine only ever calls this once per id by construction.
func (s *GormStore) UpdateStatus(id string, status types.Status, exit *types.ExitRecord) error {
	updates := map[string]any{"status": string(status)}

	if exit != nil {
		data, err := json.Marshal(exit)
		if err != nil {
			return fmt.Errorf("encode exit record: %w", err)
		}
		updates["exit_data"] = string(data)
	}

	if err := s.db.Model(&positionRecord{}).Where("id = ?", id).Updates(updates).Error; err != nil {
		return fmt.Errorf("update position status: %w", err)
	}
	return nil
}

// GetHistory returns terminal records matching filter.
func (s *GormStore) GetHistory(filter HistoryFilter) ([]*types.MonitoredPosition, error) {
	q := s.db.Where("status != ?", string(types.StatusActive))

	if filter.TokenSymbol != "" {
		q = q.Where("token_symbol = ?", filter.TokenSymbol)
	}
	if filter.Status != "" {
		q = q.Where("status = ?", string(filter.Status))
	}
	if !filter.Since.IsZero() {
		q = q.Where("updated_at >= ?", filter.Since)
	}
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}
	q = q.Order("updated_at DESC")

	var recs []positionRecord
	if err := q.Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("get history: %w", err)
	}

	out := make([]*types.MonitoredPosition, 0, len(recs))
	for _, r := range recs {
		out = append(out, fromRecord(r))
	}
	return out, nil
}

func toRecord(p *types.MonitoredPosition) positionRecord {
	rec := positionRecord{
		ID:                    p.ID,
		TradeID:               p.TradeID,
		UserID:                p.UserID,
		SafeAddress:           p.SafeAddress,
		NetworkKey:            p.NetworkKey,
		TokenSymbol:           p.TokenSymbol,
		Side:                  string(p.Side),
		EntryPrice:            decimalString(p.EntryPrice),
		EntryAmount:           decimalString(p.EntryAmount),
		TP1:                   decimalString(p.TP1),
		TP2:                   decimalString(p.TP2),
		SL:                    decimalString(p.SL),
		MaxExitTime:           p.MaxExitTime,
		Status:                string(p.Status),
		HighestFavorablePrice: decimalString(p.HighestFavorablePrice),
		TrailingStopPrice:     decimalString(p.TrailingStopPrice),
		TrailingStopEnabled:   p.TrailingStopEnabled,
		PriceCheckCount:       p.PriceCheckCount,
		LastPriceCheck:        p.LastPriceCheck,
		ExecutedAt:            p.ExecutedAt,
	}

	if p.Exit != nil {
		if data, err := json.Marshal(p.Exit); err == nil {
			rec.ExitData = string(data)
		}
	}
	return rec
}

func fromRecord(r positionRecord) *types.MonitoredPosition {
	p := &types.MonitoredPosition{
		ID:                    r.ID,
		TradeID:               r.TradeID,
		UserID:                r.UserID,
		SafeAddress:           r.SafeAddress,
		NetworkKey:            r.NetworkKey,
		TokenSymbol:           r.TokenSymbol,
		Side:                  types.Side(r.Side),
		EntryPrice:            parseDecimal(r.EntryPrice),
		EntryAmount:           parseDecimal(r.EntryAmount),
		TP1:                   parseDecimal(r.TP1),
		TP2:                   parseDecimal(r.TP2),
		SL:                    parseDecimal(r.SL),
		MaxExitTime:           r.MaxExitTime,
		Status:                types.Status(r.Status),
		HighestFavorablePrice: parseDecimal(r.HighestFavorablePrice),
		TrailingStopPrice:     parseDecimal(r.TrailingStopPrice),
		TrailingStopEnabled:   r.TrailingStopEnabled,
		PriceCheckCount:       r.PriceCheckCount,
		LastPriceCheck:        r.LastPriceCheck,
		ExecutedAt:            r.ExecutedAt,
	}

	if r.ExitData != "" {
		var exit types.ExitRecord
		if err := json.Unmarshal([]byte(r.ExitData), &exit); err == nil {
			p.Exit = &exit
		}
	}
	return p
}
