package journal

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"mt5-journal-sync/internal/config"
	"mt5-journal-sync/internal/metrics"
	"mt5-journal-sync/internal/models"
	"mt5-journal-sync/internal/mt5"
	"mt5-journal-sync/internal/telemetry"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Decrypter resolves an encrypted credential into the plaintext secret.
type Decrypter interface {
	Decrypt(ciphertext string) (string, error)
}

// SyncResult summarizes one completed sync run.
type SyncResult struct {
	Success        bool            `json:"success"`
	Message        string          `json:"message"`
	AccountInfo    mt5.AccountInfo `json:"account_info"`
	TradesReported int             `json:"trades_reported"`
}

// Syncer coordinates one account sync: fetch the remote batch, overwrite
// the account snapshot, ingest new trades and mirror them to Notion. The
// steps run strictly in that order because each depends on store state
// written by the one before. Concurrent syncs for the same account must
// be serialized by the caller.
type Syncer struct {
	db         *gorm.DB
	store      *Store
	tracker    *Tracker
	dispatcher *Dispatcher
	bridge     mt5.Client
	decrypter  Decrypter
	cfg        *config.Sync
	logger     *zap.Logger
}

// NewSyncer creates a new sync orchestrator.
func NewSyncer(db *gorm.DB, store *Store, tracker *Tracker, dispatcher *Dispatcher, bridge mt5.Client, decrypter Decrypter, cfg *config.Sync, logger *zap.Logger) *Syncer {
	return &Syncer{
		db:         db,
		store:      store,
		tracker:    tracker,
		dispatcher: dispatcher,
		bridge:     bridge,
		decrypter:  decrypter,
		cfg:        cfg,
		logger:     logger.Named("syncer"),
	}
}

// metricsConfig maps the sync settings onto the classifier's config.
func (s *Syncer) metricsConfig() metrics.Config {
	return metrics.Config{
		BEThresholdPercent:  s.cfg.BEThresholdPercent,
		SLTolerancePercent:  s.cfg.SLTolerancePercent,
		ContractSize:        s.cfg.ContractSize,
		TimezoneOffsetHours: s.cfg.TimezoneOffsetHours,
	}
}

// Sync runs a full sync for one account. Credential and upstream
// failures abort the run before anything is written and propagate to the
// caller; per-trade persistence and mirror failures are absorbed into
// logs and the trades' stored state.
func (s *Syncer) Sync(ctx context.Context, accountID uint, forceRemirror bool) (*SyncResult, error) {
	started := time.Now()
	l := s.logger.With(
		zap.String("run_id", uuid.NewString()),
		zap.Uint("account_id", accountID),
	)
	l.Info("Starting account sync", zap.Bool("force_remirror", forceRemirror))

	var account models.Account
	if err := s.db.First(&account, accountID).Error; err != nil {
		telemetry.RecordSync("not_found", started)
		return nil, fmt.Errorf("account %d not found: %w", accountID, err)
	}

	// 1. Resolve credentials. A ciphertext that does not decrypt is
	// fatal for this run; nothing has been written yet.
	password, err := s.decrypter.Decrypt(account.MT5PasswordEncrypted)
	if err != nil {
		telemetry.RecordSync("credential_error", started)
		return nil, &CredentialError{Err: err}
	}

	login, err := strconv.ParseInt(account.MT5Login, 10, 64)
	if err != nil {
		telemetry.RecordSync("credential_error", started)
		return nil, &CredentialError{Err: fmt.Errorf("invalid MT5 login %q: %w", account.MT5Login, err)}
	}

	// 2. Fetch the remote trade batch and account snapshot.
	syncData, err := s.bridge.SyncAccount(ctx, mt5.Credentials{
		Login:    login,
		Password: password,
		Server:   account.MT5Server,
	})
	if err != nil {
		telemetry.RecordSync("upstream_error", started)
		return nil, &UpstreamFetchError{Err: err}
	}

	// 3. Overwrite the account snapshot unconditionally; last sync wins.
	now := time.Now()
	if err := s.db.Model(&account).Updates(map[string]interface{}{
		"balance":        syncData.AccountInfo.Balance,
		"equity":         syncData.AccountInfo.Equity,
		"margin":         syncData.AccountInfo.Margin,
		"margin_free":    syncData.AccountInfo.MarginFree,
		"profit":         syncData.AccountInfo.Profit,
		"currency":       syncData.AccountInfo.Currency,
		"leverage":       syncData.AccountInfo.Leverage,
		"last_synced_at": &now,
	}).Error; err != nil {
		telemetry.RecordSync("snapshot_error", started)
		return nil, fmt.Errorf("failed to update account snapshot: %w", err)
	}

	// 4. Ingest the batch; already-known trades are skipped silently.
	mcfg := s.metricsConfig()
	reported, inserted := s.store.Ingest(accountID, syncData.Trades, s.cfg.StartBalance, mcfg)
	telemetry.RecordIngested(inserted)

	// 5. Optional forced re-mirror before dispatch.
	if forceRemirror {
		if err := s.tracker.ResetAll(accountID); err != nil {
			l.Error("Failed to reset mirror state, dispatching anyway", zap.Error(err))
		}
	}

	// 6. Mirror the batch best-effort.
	outcomes := s.dispatcher.Dispatch(ctx, accountID, account.AccountName, syncData.Trades, s.cfg.StartBalance, mcfg)
	var mirrored, failed int
	for _, o := range outcomes {
		switch o.Status {
		case MirrorStatusMirrored:
			mirrored++
		case MirrorStatusFailed:
			failed++
		}
	}

	l.Info("Account sync finished",
		zap.Int("trades_reported", reported),
		zap.Int("trades_inserted", inserted),
		zap.Int("mirrored", mirrored),
		zap.Int("mirror_failed", failed),
		zap.Duration("took", time.Since(started)),
	)
	telemetry.RecordSync("success", started)

	return &SyncResult{
		Success:        true,
		Message:        fmt.Sprintf("Synced %d trades", syncData.TradesCount),
		AccountInfo:    syncData.AccountInfo,
		TradesReported: syncData.TradesCount,
	}, nil
}
