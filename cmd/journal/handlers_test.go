package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"mt5-journal-sync/internal/config"
	"mt5-journal-sync/internal/crypto"
	"mt5-journal-sync/internal/journal"
	"mt5-journal-sync/internal/models"
	"mt5-journal-sync/internal/mt5"
	"mt5-journal-sync/internal/notion"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// stubBridge returns a canned response or error.
type stubBridge struct {
	resp *mt5.SyncResponse
	err  error
}

func (s *stubBridge) SyncAccount(ctx context.Context, creds mt5.Credentials) (*mt5.SyncResponse, error) {
	return s.resp, s.err
}

// stubSink records created pages.
type stubSink struct {
	pages int
}

func (s *stubSink) CreatePage(ctx context.Context, page notion.PageRequest) (string, error) {
	s.pages++
	return "page-1", nil
}

func setupHandler(t *testing.T, bridge mt5.Client) (*APIHandler, *gorm.DB) {
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Account{}, &models.Trade{}))

	log := zap.NewNop()
	cipher, err := crypto.NewCipher("test-secret")
	require.NoError(t, err)

	syncCfg := &config.Sync{
		StartBalance:       10000,
		BEThresholdPercent: 0.15,
		SLTolerancePercent: 10,
		ContractSize:       100000,
		MirrorWorkers:      1,
	}
	notionCfg := &config.Notion{DatabaseID: "db-1", TitleProp: "Name"}

	store := journal.NewStore(db, log)
	tracker := journal.NewTracker(db, log)
	dispatcher := journal.NewDispatcher(tracker, &stubSink{}, notionCfg, 1, log)
	syncer := journal.NewSyncer(db, store, tracker, dispatcher, bridge, cipher, syncCfg, log)

	return NewAPIHandler(log, db, cipher, syncer), db
}

func newMux(h *APIHandler) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/accounts", h.CreateAccountHandler)
	mux.HandleFunc("GET /api/accounts", h.ListAccountsHandler)
	mux.HandleFunc("GET /api/accounts/{id}", h.GetAccountHandler)
	mux.HandleFunc("DELETE /api/accounts/{id}", h.DeactivateAccountHandler)
	mux.HandleFunc("POST /api/accounts/{id}/sync", h.SyncAccountHandler)
	mux.HandleFunc("GET /api/accounts/{id}/stats", h.AccountStatsHandler)
	mux.HandleFunc("GET /api/trades", h.ListTradesHandler)
	mux.HandleFunc("PATCH /api/trades/{id}", h.UpdateTradeNotesHandler)
	return mux
}

func TestCreateAccountHandler(t *testing.T) {
	// Arrange
	h, db := setupHandler(t, &stubBridge{})
	mux := newMux(h)

	body := `{"mt5_login": "12345", "mt5_server": "Broker-Demo", "mt5_password": "secret-pw", "account_name": "Main"}`
	req := httptest.NewRequest(http.MethodPost, "/api/accounts", strings.NewReader(body))
	rec := httptest.NewRecorder()

	// Act
	mux.ServeHTTP(rec, req)

	// Assert
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.NotContains(t, rec.Body.String(), "secret-pw")

	// The stored password is encrypted but recoverable.
	var account models.Account
	require.NoError(t, db.Where("mt5_login = ?", "12345").First(&account).Error)
	assert.NotEqual(t, "secret-pw", account.MT5PasswordEncrypted)

	cipher, err := crypto.NewCipher("test-secret")
	require.NoError(t, err)
	plain, err := cipher.Decrypt(account.MT5PasswordEncrypted)
	require.NoError(t, err)
	assert.Equal(t, "secret-pw", plain)
}

func TestCreateAccountHandler_MissingFields(t *testing.T) {
	h, _ := setupHandler(t, &stubBridge{})
	mux := newMux(h)

	req := httptest.NewRequest(http.MethodPost, "/api/accounts", strings.NewReader(`{"mt5_login": "1"}`))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSyncAccountHandler_UpstreamFailure(t *testing.T) {
	// Arrange: the bridge is down; the handler maps it to 502.
	bridge := &stubBridge{err: errors.New("connection refused")}
	h, db := setupHandler(t, bridge)
	mux := newMux(h)

	cipher, err := crypto.NewCipher("test-secret")
	require.NoError(t, err)
	encrypted, err := cipher.Encrypt("pw")
	require.NoError(t, err)
	account := models.Account{MT5Login: "12345", MT5Server: "Broker-Demo", MT5PasswordEncrypted: encrypted, IsActive: true}
	require.NoError(t, db.Create(&account).Error)

	req := httptest.NewRequest(http.MethodPost, "/api/accounts/1/sync", nil)
	rec := httptest.NewRecorder()

	// Act
	mux.ServeHTTP(rec, req)

	// Assert
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Contains(t, rec.Body.String(), "connection refused")
}

func TestSyncAccountHandler_Success(t *testing.T) {
	// Arrange
	openTime := time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC).Unix()
	bridge := &stubBridge{resp: &mt5.SyncResponse{
		Success:     true,
		AccountInfo: mt5.AccountInfo{Balance: 10500, Currency: "USD"},
		Trades: []mt5.Trade{{
			DealID: 1, Symbol: "EURUSD", Direction: "LONG", Volume: 1,
			OpenPrice: 1.1, StopLoss: 1.095, OpenTime: openTime, Profit: 1000,
		}},
		TradesCount: 1,
	}}
	h, db := setupHandler(t, bridge)
	mux := newMux(h)

	cipher, err := crypto.NewCipher("test-secret")
	require.NoError(t, err)
	encrypted, err := cipher.Encrypt("pw")
	require.NoError(t, err)
	account := models.Account{MT5Login: "12345", MT5Server: "Broker-Demo", MT5PasswordEncrypted: encrypted, IsActive: true}
	require.NoError(t, db.Create(&account).Error)

	req := httptest.NewRequest(http.MethodPost, "/api/accounts/1/sync", nil)
	rec := httptest.NewRecorder()

	// Act
	mux.ServeHTTP(rec, req)

	// Assert
	assert.Equal(t, http.StatusOK, rec.Code)

	var result journal.SyncResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.True(t, result.Success)
	assert.Equal(t, "Synced 1 trades", result.Message)
	assert.Equal(t, 1, result.TradesReported)

	var count int64
	require.NoError(t, db.Model(&models.Trade{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestListTradesHandler_Filters(t *testing.T) {
	// Arrange
	h, db := setupHandler(t, &stubBridge{})
	mux := newMux(h)

	require.NoError(t, db.Create(&models.Trade{AccountID: 1, DealID: 1, Symbol: "EURUSD", Direction: "LONG", Volume: 1, OpenPrice: 1.1, Session: "LONDON", Result: "TP", OpenTime: 100}).Error)
	require.NoError(t, db.Create(&models.Trade{AccountID: 1, DealID: 2, Symbol: "GBPUSD", Direction: "SHORT", Volume: 1, OpenPrice: 1.2, Session: "ASIA", Result: "SL", OpenTime: 200}).Error)

	req := httptest.NewRequest(http.MethodGet, "/api/trades?session=LONDON", nil)
	rec := httptest.NewRecorder()

	// Act
	mux.ServeHTTP(rec, req)

	// Assert
	assert.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Trades []models.Trade `json:"trades"`
		Count  int            `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Count)
	assert.Equal(t, "EURUSD", resp.Trades[0].Symbol)
}

func TestUpdateTradeNotesHandler(t *testing.T) {
	// Arrange
	h, db := setupHandler(t, &stubBridge{})
	mux := newMux(h)

	trade := models.Trade{AccountID: 1, DealID: 1, Symbol: "EURUSD", Direction: "LONG", Volume: 1, OpenPrice: 1.1, OpenTime: 100}
	require.NoError(t, db.Create(&trade).Error)

	body := `{"note": "entered too early", "bias": "bullish"}`
	req := httptest.NewRequest(http.MethodPatch, "/api/trades/1", strings.NewReader(body))
	rec := httptest.NewRecorder()

	// Act
	mux.ServeHTTP(rec, req)

	// Assert
	assert.Equal(t, http.StatusOK, rec.Code)

	var updated models.Trade
	require.NoError(t, db.First(&updated, trade.ID).Error)
	assert.Equal(t, "entered too early", updated.Note)
	assert.Equal(t, "bullish", updated.Bias)
	// Pipeline-owned fields were not touched.
	assert.Equal(t, "EURUSD", updated.Symbol)
}

func TestAccountStatsHandler(t *testing.T) {
	// Arrange
	h, db := setupHandler(t, &stubBridge{})
	mux := newMux(h)

	require.NoError(t, db.Create(&models.Trade{AccountID: 1, DealID: 1, Symbol: "A", Direction: "LONG", Volume: 1, OpenPrice: 1, Profit: 500, OpenTime: 1}).Error)
	require.NoError(t, db.Create(&models.Trade{AccountID: 1, DealID: 2, Symbol: "B", Direction: "LONG", Volume: 1, OpenPrice: 1, Profit: -200, OpenTime: 2}).Error)

	req := httptest.NewRequest(http.MethodGet, "/api/accounts/1/stats", nil)
	rec := httptest.NewRecorder()

	// Act
	mux.ServeHTTP(rec, req)

	// Assert
	assert.Equal(t, http.StatusOK, rec.Code)

	var stats struct {
		TotalTrades   int64   `json:"total_trades"`
		WinningTrades int64   `json:"winning_trades"`
		LosingTrades  int64   `json:"losing_trades"`
		WinRate       float64 `json:"win_rate"`
		TotalProfit   float64 `json:"total_profit"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, int64(2), stats.TotalTrades)
	assert.Equal(t, int64(1), stats.WinningTrades)
	assert.Equal(t, int64(1), stats.LosingTrades)
	assert.Equal(t, 0.5, stats.WinRate)
	assert.Equal(t, 300.0, stats.TotalProfit)
}

func TestDeactivateAccountHandler(t *testing.T) {
	// Arrange
	h, db := setupHandler(t, &stubBridge{})
	mux := newMux(h)

	account := models.Account{MT5Login: "12345", MT5Server: "Broker-Demo", MT5PasswordEncrypted: "x", IsActive: true}
	require.NoError(t, db.Create(&account).Error)

	req := httptest.NewRequest(http.MethodDelete, "/api/accounts/1", nil)
	rec := httptest.NewRecorder()

	// Act
	mux.ServeHTTP(rec, req)

	// Assert
	assert.Equal(t, http.StatusOK, rec.Code)

	var updated models.Account
	require.NoError(t, db.First(&updated, account.ID).Error)
	assert.False(t, updated.IsActive)

	// Deactivated accounts disappear from the listing.
	listReq := httptest.NewRequest(http.MethodGet, "/api/accounts", nil)
	listRec := httptest.NewRecorder()
	mux.ServeHTTP(listRec, listReq)
	var listResp struct {
		Accounts []accountView `json:"accounts"`
	}
	require.NoError(t, json.Unmarshal(listRec.Body.Bytes(), &listResp))
	assert.Empty(t, listResp.Accounts)
}
