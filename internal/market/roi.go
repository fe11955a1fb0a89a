package market

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/adaptive-amm/apo/internal/logger"
	"github.com/adaptive-amm/apo/internal/types"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// ErrROIUnavailable indicates no fresh recommendation could be obtained
// from either delivery path. Callers treat this as absent input, not a
// failure.
var ErrROIUnavailable = errors.New("no fresh ROI recommendation available")

// ROIClient obtains recommendations from the external ROI strategy
// module over two paths: an event callback (Redis pub/sub, latest
// message cached) and a synchronous HTTP pull. Latest prefers whichever
// is freshest. A missing or unreachable Redis degrades the client to
// pull-only.
type ROIClient struct {
	baseURL    string
	httpClient *http.Client
	staleAfter time.Duration
	logger     zerolog.Logger

	rdb     *redis.Client
	channel string

	mu       sync.RWMutex
	latest   *types.ROIRecommendation
	latestAt time.Time
}

// NewROIClient creates a client. redisAddr may be empty to disable the
// subscription path.
func NewROIClient(baseURL, redisAddr, channel string, staleAfter time.Duration) *ROIClient {
	c := &ROIClient{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: requestTimeout},
		staleAfter: staleAfter,
		channel:    channel,
		logger:     logger.GetForComponent("roi_client"),
	}
	if redisAddr != "" {
		c.rdb = redis.NewClient(&redis.Options{
			Addr:         redisAddr,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		})
	}
	return c
}

// Start launches the pub/sub subscription goroutine. It returns
// immediately; subscription failures are logged and the client keeps
// serving pulls.
func (c *ROIClient) Start(ctx context.Context) {
	if c.rdb == nil {
		c.logger.Info().Msg("Redis not configured, ROI delivery is pull-only")
		return
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := c.rdb.Ping(pingCtx).Err(); err != nil {
		c.logger.Warn().Err(err).Msg("Redis unreachable, ROI delivery degraded to pull-only")
		return
	}

	sub := c.rdb.Subscribe(ctx, c.channel)
	c.logger.Info().Str("channel", c.channel).Msg("Subscribed to ROI recommendation channel")

	go func() {
		defer sub.Close()
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					c.logger.Warn().Msg("ROI subscription channel closed")
					return
				}
				c.handleMessage(msg.Payload)
			}
		}
	}()
}

func (c *ROIClient) handleMessage(payload string) {
	var rec types.ROIRecommendation
	if err := json.Unmarshal([]byte(payload), &rec); err != nil {
		c.logger.Warn().Err(err).Msg("Discarding malformed ROI recommendation event")
		return
	}
	if rec.GeneratedAt.IsZero() {
		rec.GeneratedAt = time.Now()
	}

	c.mu.Lock()
	c.latest = &rec
	c.latestAt = time.Now()
	c.mu.Unlock()

	c.logger.Debug().
		Str("regime", rec.MarketRegime).
		Float64("confidence", rec.Confidence).
		Msg("Cached ROI recommendation from event channel")
}

// Latest returns the freshest recommendation available: the cached
// event-delivered one if it is still fresh, otherwise a synchronous
// pull. Both paths failing (or only stale data existing) returns
// ErrROIUnavailable.
func (c *ROIClient) Latest(ctx context.Context) (*types.ROIRecommendation, error) {
	c.mu.RLock()
	cached := c.latest
	cachedAt := c.latestAt
	c.mu.RUnlock()

	if cached != nil && time.Since(cachedAt) < c.staleAfter {
		out := *cached
		return &out, nil
	}

	rec, err := c.pull(ctx)
	if err != nil {
		c.logger.Debug().Err(err).Msg("ROI pull failed")
		return nil, ErrROIUnavailable
	}
	if c.staleAfter > 0 && !rec.GeneratedAt.IsZero() && time.Since(rec.GeneratedAt) > c.staleAfter {
		return nil, ErrROIUnavailable
	}
	return rec, nil
}

func (c *ROIClient) pull(ctx context.Context) (*types.ROIRecommendation, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/v1/recommendation", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d from ROI service", resp.StatusCode)
	}

	var rec types.ROIRecommendation
	if err := json.NewDecoder(resp.Body).Decode(&rec); err != nil {
		return nil, fmt.Errorf("failed to decode recommendation: %w", err)
	}
	return &rec, nil
}

// Close releases the Redis connection if one was configured.
func (c *ROIClient) Close() error {
	if c.rdb != nil {
		return c.rdb.Close()
	}
	return nil
}
