package deploy

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/adaptive-amm/apo/internal/logger"
	"github.com/adaptive-amm/apo/internal/types"
	"github.com/rs/zerolog"
)

// HTTPDeployer submits approved parameter sets to the external
// deployment executor over HTTP. The executor owns signing, broadcast,
// and cross-chain propagation; this client only delivers the payload
// and reports the outcome.
type HTTPDeployer struct {
	baseURL    string
	poolID     uint64
	httpClient *http.Client
	logger     zerolog.Logger
}

// NewHTTPDeployer creates a live deployer targeting the executor at
// baseURL. No in-core timeout beyond the transport's: the deployment
// call is the cycle's one blocking suspension point.
func NewHTTPDeployer(baseURL string, poolID uint64) *HTTPDeployer {
	return &HTTPDeployer{
		baseURL:    baseURL,
		poolID:     poolID,
		httpClient: &http.Client{},
		logger:     logger.GetForComponent("deployer"),
	}
}

type deployRequest struct {
	PoolID     uint64             `json:"pool_id"`
	Parameters types.ParameterSet `json:"parameters"`
}

// Deploy posts the parameter set and waits for the executor's result.
func (d *HTTPDeployer) Deploy(ctx context.Context, params types.ParameterSet) (*types.DeploymentResult, error) {
	body, err := json.Marshal(deployRequest{PoolID: d.poolID, Parameters: params})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal deployment request: %w", err)
	}

	url := fmt.Sprintf("%s/api/v1/deployments", d.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build deployment request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	d.logger.Info().
		Int64("fee_rate", params.FeeRate).
		Int64("spread", params.SpreadMultiplier).
		Msg("Submitting parameter deployment")

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("deployment request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, fmt.Errorf("deployment executor returned status %d", resp.StatusCode)
	}

	var result types.DeploymentResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode deployment result: %w", err)
	}
	if result.Timestamp.IsZero() {
		result.Timestamp = time.Now()
	}

	d.logger.Info().
		Str("reference", result.Reference).
		Bool("confirmed", result.Confirmed).
		Msg("Deployment result received")

	return &result, nil
}

// Mode identifies this deployer as live.
func (d *HTTPDeployer) Mode() string { return "live" }

// Close is a no-op for the HTTP deployer.
func (d *HTTPDeployer) Close() error { return nil }
