package mt5

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-resty/resty/v2"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// setupTestServer creates a new test server and a RestClient configured to use it.
func setupTestServer(handler http.Handler) (*RestClient, *httptest.Server) {
	server := httptest.NewServer(handler)

	rc := &RestClient{
		client:  resty.New().SetBaseURL(server.URL),
		logger:  zap.NewNop(), // Use a no-op logger for tests
		limiter: rate.NewLimiter(rate.Inf, 1),
	}

	return rc, server
}

func TestSyncAccount(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		// Arrange
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/sync-account", r.URL.Path)
			assert.Equal(t, http.MethodPost, r.Method)

			var creds Credentials
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&creds))
			assert.Equal(t, int64(12345), creds.Login)
			assert.Equal(t, "Broker-Demo", creds.Server)

			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{
				"success": true,
				"account_info": {"login": 12345, "balance": 10250.5, "currency": "USD", "leverage": 100},
				"trades": [{"deal_id": 1, "symbol": "EURUSD", "direction": "LONG", "volume": 0.5, "open_price": 1.1, "profit": 120}],
				"trades_count": 1
			}`))
		})

		rc, server := setupTestServer(handler)
		defer server.Close()

		// Act
		resp, err := rc.SyncAccount(context.Background(), Credentials{Login: 12345, Password: "pw", Server: "Broker-Demo"})

		// Assert
		assert.NoError(t, err)
		assert.True(t, resp.Success)
		assert.Equal(t, 10250.5, resp.AccountInfo.Balance)
		assert.Len(t, resp.Trades, 1)
		assert.Equal(t, int64(1), resp.Trades[0].DealID)
		assert.Equal(t, 1, resp.TradesCount)
	})

	t.Run("BridgeErrorDetail", func(t *testing.T) {
		// Arrange
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"detail": "MT5 login failed: invalid credentials"}`))
		})

		rc, server := setupTestServer(handler)
		defer server.Close()

		// Act
		resp, err := rc.SyncAccount(context.Background(), Credentials{Login: 1})

		// Assert
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "failed to sync account")
		assert.Contains(t, err.Error(), "MT5 login failed: invalid credentials")
		assert.Nil(t, resp)
	})

	t.Run("RetriesServerErrors", func(t *testing.T) {
		// Arrange
		var calls int
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls++
			if calls < 3 {
				w.WriteHeader(http.StatusBadGateway)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"success": true, "account_info": {}, "trades": [], "trades_count": 0}`))
		})

		rc, server := setupTestServer(handler)
		defer server.Close()

		// Act
		resp, err := rc.SyncAccount(context.Background(), Credentials{Login: 1})

		// Assert
		assert.NoError(t, err)
		assert.Equal(t, 3, calls)
		assert.True(t, resp.Success)
	})
}
