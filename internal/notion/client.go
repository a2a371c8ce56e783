// Package notion is a minimal client for the Notion pages API, covering
// just what trade mirroring needs: creating one database page per trade.
package notion

import (
	"context"
	"fmt"
	"time"

	"mt5-journal-sync/internal/config"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	defaultBaseURL = "https://api.notion.com/v1"
	notionVersion  = "2022-06-28"
)

// PageCreator defines the narrow interface the mirror dispatcher needs.
// CreatePage returns the created page id, or an empty string when the
// sink is not configured.
type PageCreator interface {
	CreatePage(ctx context.Context, page PageRequest) (string, error)
}

// PageRequest is a pages.create call: a parent database plus the
// property values of the new page.
type PageRequest struct {
	Parent     Parent                 `json:"parent"`
	Properties map[string]interface{} `json:"properties"`
}

// Parent identifies the database the page is created under.
type Parent struct {
	DatabaseID string `json:"database_id"`
}

type pageResponse struct {
	ID string `json:"id"`
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// RestClient is a client for the Notion API. It implements PageCreator.
type RestClient struct {
	client     *resty.Client
	apiKey     string
	databaseID string
	logger     *zap.Logger
	limiter    *rate.Limiter
}

// ensure RestClient implements the interface
var _ PageCreator = (*RestClient)(nil)

// NewRestClient creates a new Notion API client. With no API key or
// database id configured the client still works: every CreatePage call
// returns an empty page id without touching the network.
func NewRestClient(cfg *config.Notion, logger *zap.Logger) *RestClient {
	client := resty.New().
		SetBaseURL(defaultBaseURL).
		SetTimeout(time.Duration(cfg.TimeoutSeconds)*time.Second).
		SetAuthToken(cfg.APIKey).
		SetHeader("Notion-Version", notionVersion)

	// Notion enforces a low request rate per integration.
	limiter := rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateLimitBurst)

	if cfg.APIKey == "" || cfg.DatabaseID == "" {
		logger.Warn("Notion sink not configured, trade mirroring is disabled")
	}

	return &RestClient{
		client:     client,
		apiKey:     cfg.APIKey,
		databaseID: cfg.DatabaseID,
		logger:     logger,
		limiter:    limiter,
	}
}

// DatabaseID returns the configured parent database id.
func (c *RestClient) DatabaseID() string {
	return c.databaseID
}

// CreatePage creates one page in the configured database and returns its id.
func (c *RestClient) CreatePage(ctx context.Context, page PageRequest) (string, error) {
	if c.apiKey == "" || c.databaseID == "" {
		return "", nil // unconfigured sink, not an error
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limiter wait failed: %w", err)
	}

	resp, err := c.client.R().
		SetContext(ctx).
		SetBody(page).
		SetResult(&pageResponse{}).
		SetError(&apiError{}).
		Post("/pages")
	if err != nil {
		return "", fmt.Errorf("failed to create notion page: %w", err)
	}

	if resp.IsError() {
		if ae, ok := resp.Error().(*apiError); ok && ae.Message != "" {
			return "", fmt.Errorf("notion api error (%s): %s", ae.Code, ae.Message)
		}
		return "", fmt.Errorf("notion api error with status %s: %s", resp.Status(), resp.String())
	}

	result := resp.Result().(*pageResponse)
	c.logger.Debug("Created notion page", zap.String("page_id", result.ID))
	return result.ID, nil
}

// Property constructors for the handful of value types the mirror uses.
// Notion rejects unknown property names, so callers add a property only
// when its name is configured.

// TitleProp builds a title property value.
func TitleProp(content string) map[string]interface{} {
	return map[string]interface{}{
		"title": []map[string]interface{}{
			{"text": map[string]interface{}{"content": content}},
		},
	}
}

// TextProp builds a rich_text property value.
func TextProp(content string) map[string]interface{} {
	return map[string]interface{}{
		"rich_text": []map[string]interface{}{
			{"text": map[string]interface{}{"content": content}},
		},
	}
}

// SelectProp builds a select property value.
func SelectProp(name string) map[string]interface{} {
	return map[string]interface{}{
		"select": map[string]interface{}{"name": name},
	}
}

// NumberProp builds a number property value.
func NumberProp(value float64) map[string]interface{} {
	return map[string]interface{}{"number": value}
}

// DateProp builds a date property value from an ISO date string.
func DateProp(start string) map[string]interface{} {
	return map[string]interface{}{
		"date": map[string]interface{}{"start": start},
	}
}
