package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"mt5-journal-sync/internal/crypto"
	"mt5-journal-sync/internal/journal"
	"mt5-journal-sync/internal/models"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// APIHandler holds dependencies for the API endpoints.
type APIHandler struct {
	log    *zap.Logger
	db     *gorm.DB
	cipher *crypto.Cipher
	syncer *journal.Syncer
}

// NewAPIHandler creates a new APIHandler.
func NewAPIHandler(log *zap.Logger, db *gorm.DB, cipher *crypto.Cipher, syncer *journal.Syncer) *APIHandler {
	return &APIHandler{log: log, db: db, cipher: cipher, syncer: syncer}
}

// accountView is the public shape of an account; it never exposes the
// encrypted password.
type accountView struct {
	ID           uint    `json:"id"`
	MT5Login     string  `json:"mt5_login"`
	MT5Server    string  `json:"mt5_server"`
	AccountName  string  `json:"account_name"`
	Balance      float64 `json:"balance"`
	Equity       float64 `json:"equity"`
	Currency     string  `json:"currency"`
	Leverage     int     `json:"leverage"`
	LastSyncedAt *string `json:"last_synced_at"`
	IsActive     bool    `json:"is_active"`
}

func toAccountView(a models.Account) accountView {
	view := accountView{
		ID:          a.ID,
		MT5Login:    a.MT5Login,
		MT5Server:   a.MT5Server,
		AccountName: a.AccountName,
		Balance:     a.Balance,
		Equity:      a.Equity,
		Currency:    a.Currency,
		Leverage:    a.Leverage,
		IsActive:    a.IsActive,
	}
	if a.LastSyncedAt != nil {
		ts := a.LastSyncedAt.UTC().Format("2006-01-02T15:04:05Z")
		view.LastSyncedAt = &ts
	}
	return view
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// pathID extracts the numeric id from paths like /api/accounts/{id}.
func pathID(r *http.Request) (uint, error) {
	id, err := strconv.ParseUint(r.PathValue("id"), 10, 32)
	if err != nil {
		return 0, err
	}
	return uint(id), nil
}

// createAccountRequest is the payload for registering a new MT5 account.
type createAccountRequest struct {
	MT5Login    string `json:"mt5_login"`
	MT5Server   string `json:"mt5_server"`
	MT5Password string `json:"mt5_password"`
	AccountName string `json:"account_name"`
}

// CreateAccountHandler registers a new account; the password is encrypted
// before it touches the database.
func (h *APIHandler) CreateAccountHandler(w http.ResponseWriter, r *http.Request) {
	var req createAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.MT5Login == "" || req.MT5Server == "" || req.MT5Password == "" {
		writeError(w, http.StatusBadRequest, "mt5_login, mt5_server and mt5_password are required")
		return
	}

	encrypted, err := h.cipher.Encrypt(req.MT5Password)
	if err != nil {
		h.log.Error("Failed to encrypt password", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to encrypt password")
		return
	}

	account := models.Account{
		MT5Login:             req.MT5Login,
		MT5Server:            req.MT5Server,
		MT5PasswordEncrypted: encrypted,
		AccountName:          req.AccountName,
		IsActive:             true,
	}
	if err := h.db.Create(&account).Error; err != nil {
		h.log.Error("Failed to create account", zap.Error(err))
		writeError(w, http.StatusConflict, "account with this login already exists")
		return
	}

	writeJSON(w, http.StatusCreated, toAccountView(account))
}

// ListAccountsHandler returns all active accounts.
func (h *APIHandler) ListAccountsHandler(w http.ResponseWriter, r *http.Request) {
	var accounts []models.Account
	if err := h.db.Where("is_active = ?", true).Order("created_at desc").Find(&accounts).Error; err != nil {
		h.log.Error("Failed to list accounts", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list accounts")
		return
	}

	views := make([]accountView, 0, len(accounts))
	for _, a := range accounts {
		views = append(views, toAccountView(a))
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"accounts": views})
}

// GetAccountHandler returns one account by id.
func (h *APIHandler) GetAccountHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid account id")
		return
	}

	var account models.Account
	if err := h.db.First(&account, id).Error; err != nil {
		writeError(w, http.StatusNotFound, "account not found")
		return
	}
	writeJSON(w, http.StatusOK, toAccountView(account))
}

// DeactivateAccountHandler soft-deletes an account. Its trade history stays.
func (h *APIHandler) DeactivateAccountHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid account id")
		return
	}

	res := h.db.Model(&models.Account{}).Where("id = ?", id).Update("is_active", false)
	if res.Error != nil {
		h.log.Error("Failed to deactivate account", zap.Error(res.Error))
		writeError(w, http.StatusInternalServerError, "failed to deactivate account")
		return
	}
	if res.RowsAffected == 0 {
		writeError(w, http.StatusNotFound, "account not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"deactivated": true})
}

// SyncAccountHandler runs a full sync for one account. Passing
// ?resync_notion=1 resets mirror state first so every trade is sent again.
func (h *APIHandler) SyncAccountHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid account id")
		return
	}

	forceRemirror := r.URL.Query().Get("resync_notion") == "1"

	result, err := h.syncer.Sync(r.Context(), id, forceRemirror)
	if err != nil {
		var credErr *journal.CredentialError
		var fetchErr *journal.UpstreamFetchError
		switch {
		case errors.As(err, &credErr):
			h.log.Error("Sync failed on credentials", zap.Uint("account_id", id), zap.Error(err))
			writeError(w, http.StatusInternalServerError, err.Error())
		case errors.As(err, &fetchErr):
			h.log.Error("Sync failed upstream", zap.Uint("account_id", id), zap.Error(err))
			writeError(w, http.StatusBadGateway, err.Error())
		case errors.Is(err, gorm.ErrRecordNotFound):
			writeError(w, http.StatusNotFound, "account not found")
		default:
			h.log.Error("Sync failed", zap.Uint("account_id", id), zap.Error(err))
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// ListTradesHandler returns stored trades, filterable by account, symbol,
// session and result.
func (h *APIHandler) ListTradesHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	query := h.db.Model(&models.Trade{})
	if v := q.Get("account_id"); v != "" {
		query = query.Where("account_id = ?", v)
	}
	if v := q.Get("symbol"); v != "" {
		query = query.Where("symbol = ?", v)
	}
	if v := q.Get("session"); v != "" {
		query = query.Where("session = ?", v)
	}
	if v := q.Get("result"); v != "" {
		query = query.Where("result = ?", v)
	}

	limit := 100
	if v, err := strconv.Atoi(q.Get("limit")); err == nil && v > 0 {
		limit = v
	}
	offset := 0
	if v, err := strconv.Atoi(q.Get("offset")); err == nil && v > 0 {
		offset = v
	}

	var trades []models.Trade
	if err := query.Order("open_time desc").Limit(limit).Offset(offset).Find(&trades).Error; err != nil {
		h.log.Error("Failed to list trades", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list trades")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"trades": trades, "count": len(trades)})
}

// tradeNotesRequest carries the user-editable journal fields. Raw and
// derived trade fields are owned by the sync pipeline and cannot be
// edited here.
type tradeNotesRequest struct {
	Mistakes *string `json:"mistakes"`
	Note     *string `json:"note"`
	Trigger  *string `json:"trigger"`
	Bias     *string `json:"bias"`
}

// UpdateTradeNotesHandler updates the journal fields of one trade.
func (h *APIHandler) UpdateTradeNotesHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid trade id")
		return
	}

	var req tradeNotesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	updates := map[string]interface{}{}
	if req.Mistakes != nil {
		updates["mistakes"] = *req.Mistakes
	}
	if req.Note != nil {
		updates["note"] = *req.Note
	}
	if req.Trigger != nil {
		updates["trigger"] = *req.Trigger
	}
	if req.Bias != nil {
		updates["bias"] = *req.Bias
	}
	if len(updates) == 0 {
		writeError(w, http.StatusBadRequest, "no editable fields in request")
		return
	}

	res := h.db.Model(&models.Trade{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		h.log.Error("Failed to update trade notes", zap.Error(res.Error))
		writeError(w, http.StatusInternalServerError, "failed to update trade")
		return
	}
	if res.RowsAffected == 0 {
		writeError(w, http.StatusNotFound, "trade not found")
		return
	}

	var trade models.Trade
	if err := h.db.First(&trade, id).Error; err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load updated trade")
		return
	}
	writeJSON(w, http.StatusOK, trade)
}

// accountStats holds aggregate statistics for one account.
type accountStats struct {
	TotalTrades   int64    `json:"total_trades"`
	WinningTrades int64    `json:"winning_trades"`
	LosingTrades  int64    `json:"losing_trades"`
	WinRate       float64  `json:"win_rate"`
	TotalProfit   float64  `json:"total_profit"`
	AvgProfit     float64  `json:"avg_profit"`
	BestTrade     *float64 `json:"best_trade"`
	WorstTrade    *float64 `json:"worst_trade"`
}

// AccountStatsHandler returns aggregate statistics over an account's
// closed trades.
func (h *APIHandler) AccountStatsHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid account id")
		return
	}

	var trades []models.Trade
	if err := h.db.Where("account_id = ?", id).Find(&trades).Error; err != nil {
		h.log.Error("Failed to load trades for stats", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to calculate statistics")
		return
	}

	stats := accountStats{}
	for _, trade := range trades {
		stats.TotalTrades++
		stats.TotalProfit += trade.Profit
		if trade.Profit > 0 {
			stats.WinningTrades++
		} else if trade.Profit < 0 {
			stats.LosingTrades++
		}
		if stats.BestTrade == nil || trade.Profit > *stats.BestTrade {
			p := trade.Profit
			stats.BestTrade = &p
		}
		if stats.WorstTrade == nil || trade.Profit < *stats.WorstTrade {
			p := trade.Profit
			stats.WorstTrade = &p
		}
	}
	if stats.TotalTrades > 0 {
		stats.WinRate = float64(stats.WinningTrades) / float64(stats.TotalTrades)
		stats.AvgProfit = stats.TotalProfit / float64(stats.TotalTrades)
	}

	writeJSON(w, http.StatusOK, stats)
}

// HealthHandler reports liveness.
func (h *APIHandler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK\n"))
}
