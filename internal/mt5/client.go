package mt5

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"time"

	"mt5-journal-sync/internal/config"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Client defines the interface for the MT5 bridge API client.
type Client interface {
	SyncAccount(ctx context.Context, creds Credentials) (*SyncResponse, error)
}

// RestClient is a client for the MT5 bridge API. It implements Client.
type RestClient struct {
	client  *resty.Client
	logger  *zap.Logger
	limiter *rate.Limiter
}

// ensure RestClient implements the interface
var _ Client = (*RestClient)(nil)

// NewRestClient creates a new MT5 bridge API client.
func NewRestClient(cfg *config.MT5, logger *zap.Logger) *RestClient {
	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(time.Duration(cfg.TimeoutSeconds) * time.Second)

	// Initialize the rate limiter
	// rate.Limit is requests per second.
	limiter := rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateLimitBurst)

	return &RestClient{
		client:  client,
		logger:  logger,
		limiter: limiter,
	}
}

// bridgeError is the error body the bridge returns on a non-2xx response.
type bridgeError struct {
	Detail string `json:"detail"`
}

// SyncAccount logs into the broker with the given credentials and fetches
// the account snapshot plus the closed-trade history in one call.
func (c *RestClient) SyncAccount(ctx context.Context, creds Credentials) (*SyncResponse, error) {
	req := c.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(creds).
		SetResult(&SyncResponse{}).
		SetError(&bridgeError{})

	resp, err := c.doRequest(ctx, http.MethodPost, "/sync-account", req)
	if err != nil {
		c.logger.Error("Failed to sync account", zap.Int64("login", creds.Login), zap.Error(err))
		return nil, fmt.Errorf("failed to sync account: %w", err)
	}

	result := resp.Result().(*SyncResponse)
	c.logger.Info("Fetched trade history from bridge",
		zap.Int64("login", creds.Login),
		zap.Int("trades", result.TradesCount),
	)
	return result, nil
}

// doRequest handles the actual request execution with rate limiting and retry logic.
func (c *RestClient) doRequest(ctx context.Context, method, url string, req *resty.Request) (*resty.Response, error) {
	var resp *resty.Response
	var err error
	const maxRetries = 3

	for i := 0; i < maxRetries; i++ {
		// Wait for the rate limiter
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter wait failed: %w", err)
		}

		c.logger.Debug("Executing request", zap.String("method", method), zap.String("url", c.client.BaseURL+url))
		resp, err = req.Execute(method, url)

		if err == nil && !resp.IsError() {
			return resp, nil // Success
		}

		// Analyze error and decide whether to retry
		shouldRetry := false
		var retryAfter time.Duration

		if resp != nil && err == nil {
			statusCode := resp.StatusCode()
			if statusCode == http.StatusTooManyRequests {
				shouldRetry = true
				retryAfterHeader := resp.Header().Get("Retry-After")
				if seconds, err := strconv.Atoi(retryAfterHeader); err == nil {
					retryAfter = time.Duration(seconds) * time.Second
				}
			} else if statusCode >= 500 {
				shouldRetry = true
			}
		} else { // Network or other client-side errors
			shouldRetry = true
		}

		if !shouldRetry {
			return nil, fmt.Errorf("request failed with status %s: %s", resp.Status(), errorDetail(resp))
		}

		// If we should retry, calculate wait time
		if retryAfter == 0 {
			// Exponential backoff: 1s, 2s, 4s
			retryAfter = time.Duration(math.Pow(2, float64(i))) * time.Second
		}

		c.logger.Warn("Request failed, retrying...",
			zap.Int("attempt", i+1),
			zap.Duration("retry_after", retryAfter),
			zap.Error(err),
		)

		select {
		case <-time.After(retryAfter):
			continue
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if err == nil && resp != nil {
		return nil, fmt.Errorf("request failed after %d attempts with status %s: %s", maxRetries, resp.Status(), errorDetail(resp))
	}
	return nil, fmt.Errorf("request failed after %d attempts: %w", maxRetries, err)
}

// errorDetail extracts the bridge's detail string, falling back to the raw body.
func errorDetail(resp *resty.Response) string {
	if be, ok := resp.Error().(*bridgeError); ok && be != nil && be.Detail != "" {
		return be.Detail
	}
	return resp.String()
}
