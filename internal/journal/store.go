package journal

import (
	"mt5-journal-sync/internal/metrics"
	"mt5-journal-sync/internal/models"
	"mt5-journal-sync/internal/mt5"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Store persists classified trades. Ingestion is idempotent: the
// composite unique index on (account_id, deal_id) makes replaying a sync
// with overlapping history a no-op for trades already on file, and the
// derived fields of an existing row are never touched again.
type Store struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewStore creates a new trade store.
func NewStore(db *gorm.DB, logger *zap.Logger) *Store {
	return &Store{
		db:     db,
		logger: logger.Named("store"),
	}
}

// Ingest classifies and inserts a batch of raw trades for an account.
// Each insertion is independent: a failing trade is logged and skipped
// without blocking the rest of the batch. Returns the count of trades the
// broker reported and the count actually inserted by this call.
func (s *Store) Ingest(accountID uint, trades []mt5.Trade, startingBalance float64, cfg metrics.Config) (reported, inserted int) {
	for _, trade := range trades {
		m := metrics.Build(trade, startingBalance, cfg)

		row := models.Trade{
			AccountID:  accountID,
			DealID:     trade.DealID,
			Ticket:     trade.Ticket,
			Symbol:     trade.Symbol,
			Direction:  trade.Direction,
			Volume:     trade.Volume,
			OpenPrice:  trade.OpenPrice,
			ClosePrice: trade.ClosePrice,
			StopLoss:   trade.StopLoss,
			TakeProfit: trade.TakeProfit,
			OpenTime:   trade.OpenTime,
			CloseTime:  trade.CloseTime,
			Profit:     trade.Profit,
			Commission: m.Commission,
			Swap:       trade.Swap,

			Weekday:       m.Weekday,
			Session:       m.Session,
			RiskPercent:   m.RiskPercent,
			RiskReward:    m.RiskReward,
			Result:        m.Result,
			ProfitPercent: m.ProfitPercent,
		}

		res := s.db.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "account_id"}, {Name: "deal_id"}},
			DoNothing: true,
		}).Create(&row)

		if res.Error != nil {
			s.logger.Error("Failed to insert trade",
				zap.Uint("account_id", accountID),
				zap.Int64("deal_id", trade.DealID),
				zap.Error(res.Error),
			)
			continue
		}
		if res.RowsAffected > 0 {
			inserted++
		}
	}

	s.logger.Info("Ingested trade batch",
		zap.Uint("account_id", accountID),
		zap.Int("reported", len(trades)),
		zap.Int("inserted", inserted),
	)
	return len(trades), inserted
}
