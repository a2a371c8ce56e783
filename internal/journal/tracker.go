package journal

import (
	"fmt"

	"mt5-journal-sync/internal/models"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Tracker owns the Notion mirror state of stored trades. A trade starts
// unmirrored, moves to mirrored exactly once, and only ResetAll brings it
// back.
type Tracker struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewTracker creates a new mirror state tracker.
func NewTracker(db *gorm.DB, logger *zap.Logger) *Tracker {
	return &Tracker{
		db:     db,
		logger: logger.Named("tracker"),
	}
}

// MirrorState reports whether a trade exists in the store and whether it
// has already been mirrored.
func (t *Tracker) MirrorState(accountID uint, dealID int64) (exists, mirrored bool) {
	var trade models.Trade
	err := t.db.Select("id", "mirrored").
		Where("account_id = ? AND deal_id = ?", accountID, dealID).
		First(&trade).Error
	if err != nil {
		return false, false
	}
	return true, trade.Mirrored
}

// NeedsMirror is true iff the trade is on file and not yet mirrored.
func (t *Tracker) NeedsMirror(accountID uint, dealID int64) bool {
	exists, mirrored := t.MirrorState(accountID, dealID)
	return exists && !mirrored
}

// MarkMirrored transitions a trade to mirrored and records the Notion
// page id. The update is guarded on the unmirrored state, which gives it
// compare-and-set semantics: of any concurrent callers, exactly one
// claims the transition. Calling it again for an already-mirrored trade is
// harmless and reports claimed=false.
func (t *Tracker) MarkMirrored(accountID uint, dealID int64, pageID string) (claimed bool, err error) {
	res := t.db.Model(&models.Trade{}).
		Where("account_id = ? AND deal_id = ? AND mirrored = ?", accountID, dealID, false).
		Updates(map[string]interface{}{
			"mirrored":       true,
			"notion_page_id": pageID,
		})
	if res.Error != nil {
		return false, fmt.Errorf("failed to mark trade mirrored: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}

// ResetAll forces every trade of an account back to unmirrored and clears
// the stored page ids. Used when the operator wants a full re-mirror.
func (t *Tracker) ResetAll(accountID uint) error {
	res := t.db.Model(&models.Trade{}).
		Where("account_id = ?", accountID).
		Updates(map[string]interface{}{
			"mirrored":       false,
			"notion_page_id": nil,
		})
	if res.Error != nil {
		return fmt.Errorf("failed to reset mirror state: %w", res.Error)
	}

	t.logger.Info("Reset mirror state for account",
		zap.Uint("account_id", accountID),
		zap.Int64("trades", res.RowsAffected),
	)
	return nil
}
