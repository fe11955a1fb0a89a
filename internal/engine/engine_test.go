package engine

import (
	"context"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/adaptive-amm/apo/internal/config"
	"github.com/adaptive-amm/apo/internal/deploy"
	"github.com/adaptive-amm/apo/internal/market"
	"github.com/adaptive-amm/apo/internal/types"
)

func newTestOptimizer(t *testing.T, roi *market.ROIClient) *Optimizer {
	t.Helper()
	o, err := NewOptimizer(Config{
		Params:        config.DefaultOptimizerParameters,
		MarketClient:  market.NewClient("http://127.0.0.1:1"),
		ROIClient:     roi,
		Deployer:      deploy.NewDryRunDeployer(),
		PoolID:        1,
		ConfigName:    DEFAULT_OPTIMIZER_CONFIG_NAME,
		ConfigVersion: DEFAULT_OPTIMIZER_CONFIG_VERSION,
		Rng:           rand.New(rand.NewSource(1)),
	})
	if err != nil {
		t.Fatalf("failed to build optimizer: %v", err)
	}
	return o
}

func deployResult(reference string) *types.DeploymentResult {
	return &types.DeploymentResult{Reference: reference, Confirmed: true, Timestamp: time.Now()}
}

func TestRecordDeploymentCommitsBookkeeping(t *testing.T) {
	o := newTestOptimizer(t, nil)
	normal := types.ParameterSet{FeeRate: 40, SpreadMultiplier: 1100, Weights: types.EqualWeights(4)}

	o.mu.Lock()
	gen := o.emergencyGen
	o.mu.Unlock()

	deployed, kept := o.recordDeployment(normal, deployResult("normal-1"), "0.50,0.50,0.50,0.50,0.50", 1, gen)
	if !kept {
		t.Fatalf("deployment discarded with no emergency in flight")
	}
	if deployed.FeeRate != 40 || !deployed.IsActive {
		t.Fatalf("recorded set not committed: %+v", deployed)
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.lastDeployed == nil || o.lastDeployed.FeeRate != 40 {
		t.Fatalf("lastDeployed not updated")
	}
	if o.pending == nil || o.pending.action != 1 {
		t.Fatalf("pending reward update not armed")
	}
}

func TestEmergencyDeploymentSupersedesInFlightCycle(t *testing.T) {
	o := newTestOptimizer(t, nil)

	// The cycle reads the generation at the gate, then releases the lock
	// for its deploy call.
	o.mu.Lock()
	gen := o.emergencyGen
	o.mu.Unlock()

	// While that call is in flight, the monitor deploys the conservative
	// set.
	conservative := types.ParameterSet{FeeRate: 200, SpreadMultiplier: 1900, Weights: types.EqualWeights(4)}
	o.recordEmergencyDeployment(conservative, deployResult("emergency-1"))

	// The cycle's deploy completes afterwards; its bookkeeping must be
	// discarded, not overwrite the conservative set.
	normal := types.ParameterSet{FeeRate: 40, SpreadMultiplier: 1100, Weights: types.EqualWeights(4)}
	if _, kept := o.recordDeployment(normal, deployResult("normal-1"), "0.50,0.50,0.50,0.50,0.50", 1, gen); kept {
		t.Fatalf("stale normal-cycle deployment must be discarded after an emergency deployment")
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.lastDeployed == nil || o.lastDeployed.FeeRate != 200 || o.lastDeployed.SpreadMultiplier != 1900 {
		t.Fatalf("conservative parameters no longer authoritative: %+v", o.lastDeployed)
	}
	if o.pending != nil {
		t.Fatalf("pending reward must stay cleared after an emergency deployment")
	}
}

func TestEmergencyDeploymentClearsPendingReward(t *testing.T) {
	o := newTestOptimizer(t, nil)
	normal := types.ParameterSet{FeeRate: 40, SpreadMultiplier: 1100, Weights: types.EqualWeights(4)}

	o.mu.Lock()
	gen := o.emergencyGen
	o.mu.Unlock()
	if _, kept := o.recordDeployment(normal, deployResult("normal-1"), "key", 1, gen); !kept {
		t.Fatalf("setup: normal deployment should commit")
	}

	conservative := types.ParameterSet{FeeRate: 200, SpreadMultiplier: 1900, Weights: types.EqualWeights(4)}
	o.recordEmergencyDeployment(conservative, deployResult("emergency-1"))

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.pending != nil {
		t.Fatalf("reward for superseded parameters must not be settled")
	}
}

func TestStatusResponsiveDuringROIPull(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(entered)
		<-release
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	roi := market.NewROIClient(srv.URL, "", "", time.Minute)
	o := newTestOptimizer(t, roi)

	pullDone := make(chan struct{})
	go func() {
		defer close(pullDone)
		o.latestROI(context.Background(), o.logger)
	}()
	<-entered

	// The engine lock must stay free while the pull is in flight, or the
	// emergency monitor cannot observe volatility.
	statusDone := make(chan struct{})
	go func() {
		defer close(statusDone)
		o.Status()
	}()
	select {
	case <-statusDone:
	case <-time.After(2 * time.Second):
		t.Fatalf("engine lock held during ROI pull")
	}

	close(release)
	<-pullDone
}
