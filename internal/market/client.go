// Package market holds the clients for the external collaborators the
// engine pulls from each cycle: the market analyzer, the performance
// reader, and the ROI strategy module.
package market

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/adaptive-amm/apo/internal/analyzer"
	"github.com/adaptive-amm/apo/internal/logger"
	"github.com/adaptive-amm/apo/internal/types"
)

const requestTimeout = 10 * time.Second

// Client pulls market analysis and realized performance metrics from the
// external analyzer/reader service.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a client for the analyzer service at baseURL.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: requestTimeout},
	}
}

// FetchAnalysis pulls the current market analysis snapshot. When the
// feed omits its aggregate volatility, the client derives it from the
// per-asset data so downstream consumers always see a usable figure.
func (c *Client) FetchAnalysis(ctx context.Context) (*types.MarketAnalysis, error) {
	var analysis types.MarketAnalysis
	if err := c.getJSON(ctx, c.baseURL+"/api/v1/analysis", &analysis); err != nil {
		return nil, fmt.Errorf("failed to fetch market analysis: %w", err)
	}

	if analysis.Overview.AvgVolatility <= 0 {
		derived, err := analyzer.AggregateVolatility(analysis.Assets)
		if err == nil {
			analysis.Overview.AvgVolatility = derived
			log := logger.GetForComponent("market_client")
			log.Debug().Float64("volatility", derived).Msg("Derived aggregate volatility from per-asset series")
		}
	}

	if analysis.Timestamp.IsZero() {
		analysis.Timestamp = time.Now()
	}
	return &analysis, nil
}

// FetchPerformance pulls the most recent realized performance metrics
// for the managed pool from the external contract reader.
func (c *Client) FetchPerformance(ctx context.Context, poolID uint64) (*types.PerformanceMetrics, error) {
	var metrics types.PerformanceMetrics
	url := fmt.Sprintf("%s/api/v1/pools/%d/performance", c.baseURL, poolID)
	if err := c.getJSON(ctx, url, &metrics); err != nil {
		return nil, fmt.Errorf("failed to fetch performance metrics: %w", err)
	}
	return &metrics, nil
}

func (c *Client) getJSON(ctx context.Context, url string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d from %s", resp.StatusCode, url)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
