// Package lifecycle implements the agent lifecycle controller (spec §4.5):
// token verification, registration, the heartbeat loop, degradation,
// anti-tamper, reconnection, and graceful shutdown.
package lifecycle

import (
	"context"
	"crypto/rsa"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/clk-66/licensefabric/internal/agent/antitamper"
	"github.com/clk-66/licensefabric/internal/agent/cache"
	"github.com/clk-66/licensefabric/internal/agent/client"
	"github.com/clk-66/licensefabric/internal/machineinfo"
	"github.com/clk-66/licensefabric/internal/token"
)

const maxConsecutiveFailures = 3

// Snapshot is the agent's publicly observable state, published atomically
// so request-intercepting middleware can read it without a lock (spec §5).
type Snapshot struct {
	Status  Status
	Payload *token.Payload
	NodeID  string
	Message string
}

// Agent is the process-local lifecycle controller singleton described in
// spec §4.5. Callers construct one explicitly (spec §9's Design Notes: an
// explicit handle, not a package-global) and pass it to whatever request
// interceptor needs to read Snapshot.
type Agent struct {
	pubKey      *rsa.PublicKey
	licenseCode string
	machineInfo machineinfo.MachineInfo
	cachePath   string
	cacheKey    string // PEM public-key text, used to derive the cache's AES key
	client      *client.Client
	heartbeatInterval time.Duration

	antitamper *antitamper.State

	state atomic.Pointer[Snapshot]

	failures int

	loopStarted atomic.Bool
	stopCh      chan struct{}
	doneCh      chan struct{}
}

// Config collects everything New needs to construct an Agent.
type Config struct {
	PubKey            *rsa.PublicKey
	LicenseCode       string
	MachineInfo       machineinfo.MachineInfo
	CachePath         string
	CacheKey          string
	ServerURL         string
	HeartbeatInterval time.Duration
	GracePeriod       time.Duration
}

func New(cfg Config) *Agent {
	a := &Agent{
		pubKey:            cfg.PubKey,
		licenseCode:       cfg.LicenseCode,
		machineInfo:       cfg.MachineInfo,
		cachePath:         cfg.CachePath,
		cacheKey:          cfg.CacheKey,
		client:            client.New(cfg.ServerURL),
		heartbeatInterval: cfg.HeartbeatInterval,
		antitamper:        antitamper.New(antitamper.RealClock(), cfg.GracePeriod),
		stopCh:            make(chan struct{}),
		doneCh:            make(chan struct{}),
	}
	a.publish(Invalid, nil, "", "not started")
	return a
}

func (a *Agent) publish(status Status, payload *token.Payload, nodeID, message string) {
	a.state.Store(&Snapshot{Status: status, Payload: payload, NodeID: nodeID, Message: message})
}

// Snapshot returns the current observable state. Lock-free.
func (a *Agent) Snapshot() Snapshot {
	return *a.state.Load()
}

// Start implements spec §4.5 start(). Fingerprint/public-key loading is the
// caller's job (Config is already populated); this begins at step 3
// ("read configured license code").
func (a *Agent) Start(ctx context.Context) {
	if a.licenseCode == "" {
		a.publish(Invalid, nil, "", "missing code")
		return
	}

	payload, err := token.Verify(a.licenseCode, a.pubKey)
	if err != nil {
		a.publish(Invalid, nil, "", "bad signature")
		return
	}

	if a.tryRegister(ctx) {
		a.startHeartbeatLoop()
		return
	}

	degraded, hadCache := a.tryDegradeFromCache()
	if degraded {
		a.startHeartbeatLoop()
		return
	}
	if hadCache {
		// tryDegradeFromCache already published INVALID (expired cache or an
		// anti-tamper rejection) — that verdict stands, it must not be
		// overwritten by the no-prior-contact branch below.
		return
	}

	// No cache, but the token itself verifies — first-time offline start is
	// allowed because the token's own expiry still binds us (spec §4.5 step 7,
	// flagged for review in spec §9's Design Notes).
	a.antitamper.RecordOnlineVerify()
	a.antitamper.MarkOffline()
	p := payload
	a.publish(ValidDegraded, &p, "", "grace period started (no prior contact with authority)")
	a.writeCache(payload, "")
	a.startHeartbeatLoop()
}

// startHeartbeatLoop launches the heartbeat scheduler and records that it
// did, so Shutdown knows whether to wait on doneCh.
func (a *Agent) startHeartbeatLoop() {
	a.loopStarted.Store(true)
	go a.heartbeatLoop()
}

// tryRegister implements spec §4.5 tryRegister(). Returns true on success.
func (a *Agent) tryRegister(ctx context.Context) bool {
	resp, err := a.client.Register(ctx, a.licenseCode, a.machineInfo)
	if err != nil {
		// Transport error: return false without changing state.
		return false
	}

	if resp.StatusCode != 200 {
		a.publish(Invalid, nil, "", resp.Message)
		return false
	}

	// Data is the bare nodeId string per spec §6; unwrap it directly.
	var nodeID string
	if err := json.Unmarshal(resp.Data, &nodeID); err != nil {
		a.publish(Invalid, nil, "", "malformed register response")
		return false
	}

	payload, err := token.Verify(a.licenseCode, a.pubKey)
	if err != nil {
		a.publish(Invalid, nil, "", "bad signature")
		return false
	}

	a.antitamper.RecordOnlineVerify()
	a.failures = 0
	p := payload
	a.publish(ValidOnline, &p, nodeID, "online")
	a.writeCache(payload, nodeID)
	return true
}

// tryDegradeFromCache implements spec §4.5 tryDegradeFromCache(). hadCache
// reports whether a cache file was found at all — callers must not fall
// back to a fresh degrade when hadCache is true, since a rejected cache
// (expired, or anti-tamper refusing the window) already published INVALID.
func (a *Agent) tryDegradeFromCache() (degraded bool, hadCache bool) {
	rec, err := cache.Load(a.cachePath, a.cacheKey)
	if err != nil {
		return false, false
	}

	now := time.Now().UnixMilli()
	if rec.Payload.ExpiryTime != 0 && rec.Payload.ExpiryTime < now {
		a.publish(Invalid, nil, "", "expired")
		return false, true
	}

	a.antitamper.AdoptCachedVerify(rec.LastVerifyWall)
	a.antitamper.MarkOffline()

	if !a.antitamper.IsDegradationValid() {
		a.publish(Invalid, nil, "", "degradation window exceeded")
		return false, true
	}

	hours := a.antitamper.RemainingGraceHours()
	p := rec.Payload
	a.publish(ValidDegraded, &p, rec.NodeID, graceMessage(hours))
	return true, true
}

func graceMessage(hours float64) string {
	return fmt.Sprintf("grace remaining %.1f hours", hours)
}

// heartbeatLoop implements spec §4.5's heartbeat loop. Runs until Shutdown
// is called; never runs concurrently with itself.
func (a *Agent) heartbeatLoop() {
	defer close(a.doneCh)

	ticker := time.NewTicker(a.heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-a.stopCh:
			return
		case <-ticker.C:
			a.heartbeatTick()
		}
	}
}

func (a *Agent) heartbeatTick() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	snap := a.Snapshot()
	if snap.NodeID == "" {
		a.tryRegister(ctx)
		return
	}

	resp, err := a.client.Heartbeat(ctx, snap.NodeID)
	if err != nil {
		a.onHeartbeatFailure()
		return
	}

	switch resp.StatusCode {
	case 200:
		a.antitamper.RecordOnlineVerify()
		a.failures = 0
		if snap.Status == ValidDegraded {
			payload, err := token.Verify(a.licenseCode, a.pubKey)
			if err == nil {
				p := payload
				a.publish(ValidOnline, &p, snap.NodeID, "online")
				a.writeCache(payload, snap.NodeID)
			}
		}
	case 404:
		// Node unknown (e.g. swept by the authority) — re-register immediately.
		a.tryRegister(ctx)
	default:
		a.onHeartbeatFailure()
	}
}

func (a *Agent) onHeartbeatFailure() {
	a.failures++
	if a.failures < maxConsecutiveFailures {
		return
	}

	a.antitamper.MarkOffline()
	if a.antitamper.IsDegradationValid() {
		hours := a.antitamper.RemainingGraceHours()
		snap := a.Snapshot()
		a.publish(ValidDegraded, snap.Payload, snap.NodeID, graceMessage(hours))
	} else {
		a.publish(Invalid, nil, "", "offline grace period exceeded")
	}
}

// writeCache seals and writes the current payload/nodeId to disk.
func (a *Agent) writeCache(payload token.Payload, nodeID string) {
	rec := cache.Record{
		Payload:        payload,
		NodeID:         nodeID,
		LastVerifyWall: a.antitamper.LastVerifyWallMs(),
		LicenseCode:    a.licenseCode,
	}
	if err := cache.Save(a.cachePath, a.cacheKey, rec); err != nil {
		slog.Warn("write agent cache", "err", err)
	}
}

// Shutdown implements spec §4.5 shutdown(): stop the heartbeat scheduler,
// then best-effort unregister (errors swallowed). A no-op beyond publishing
// nothing new if Start never got far enough to launch the heartbeat loop
// (e.g. missing code, bad signature) — doneCh is only ever closed by that
// loop, so waiting on it unconditionally would hang forever.
func (a *Agent) Shutdown(ctx context.Context) {
	close(a.stopCh)
	if a.loopStarted.Load() {
		<-a.doneCh
	}

	snap := a.Snapshot()
	if snap.NodeID == "" {
		return
	}
	_, _ = a.client.Unregister(ctx, snap.NodeID)
}
