// Package protocol implements the authority's register/heartbeat/unregister/
// sweep state machine (spec §4.4): the four operations that mutate the node
// registry, all serialized behind one writer lock.
package protocol

import (
	"crypto/rsa"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/clk-66/licensefabric/internal/apperr"
	"github.com/clk-66/licensefabric/internal/authority/store"
	"github.com/clk-66/licensefabric/internal/machineinfo"
	"github.com/clk-66/licensefabric/internal/token"
)

// Clock abstracts wall-clock time so tests can control it deterministically.
// The zero value is not usable; use NewEngine which defaults to time.Now.
type Clock func() time.Time

// Counters tracks per-operation call counts for Stats().
type Counters struct {
	Register   uint64
	Heartbeat  uint64
	Unregister uint64
}

// Engine is the authority protocol state machine.
type Engine struct {
	nodes    *store.NodeStore
	licenses *store.LicenseStore
	pubKey   *rsa.PublicKey
	nodeTimeoutMs int64
	now      Clock

	mu       sync.Mutex // serializes register/heartbeat/unregister/sweep (spec §5)
	counters Counters
}

func NewEngine(nodes *store.NodeStore, licenses *store.LicenseStore, pubKey *rsa.PublicKey, nodeTimeoutMs int64) *Engine {
	return &Engine{
		nodes:         nodes,
		licenses:      licenses,
		pubKey:        pubKey,
		nodeTimeoutMs: nodeTimeoutMs,
		now:           time.Now,
	}
}

// WithClock overrides the wall clock, for tests.
func (e *Engine) WithClock(c Clock) *Engine {
	e.now = c
	return e
}

func (e *Engine) nowMs() int64 {
	return e.now().UnixMilli()
}

func newNodeID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// Register implements spec §4.4 register(). It verifies the token,
// enforces the validity window, and either idempotently re-registers an
// existing machine or admits a new one under the maxMachineCount cap.
func (e *Engine) Register(licenseCode string, mi machineinfo.MachineInfo) (string, error) {
	payload, err := token.Verify(licenseCode, e.pubKey)
	if err != nil {
		if appErr, ok := err.(*apperr.Error); ok {
			reason := "BAD_SIGNATURE"
			if appErr.Code == apperr.Format {
				reason = "FORMAT"
			}
			return "", apperr.UnauthorizedErr(reason, appErr.Message)
		}
		return "", apperr.UnauthorizedErr("BAD_SIGNATURE", err.Error())
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.nowMs()
	if payload.ExpiryTime != 0 && now > payload.ExpiryTime {
		return "", apperr.UnauthorizedErr("EXPIRED", "license token has expired")
	}
	if payload.IssuedTime != 0 && now < payload.IssuedTime {
		return "", apperr.UnauthorizedErr("NOT_YET_VALID", "license token is not yet valid")
	}

	existing := e.nodes.NodesFor(licenseCode)
	for _, n := range existing {
		if n.MachineInfo.Equal(mi) {
			n.LastHeartbeatTimeMs = now
			e.nodes.Put(n)
			e.counters.Register++
			return n.NodeID, nil
		}
	}

	if len(existing) >= payload.MaxMachineCount {
		return "", apperr.CapacityErr(payload.MaxMachineCount, len(existing))
	}

	n := store.NodeInfo{
		NodeID:              newNodeID(),
		LicenseCode:         licenseCode,
		MachineInfo:         mi,
		RegisterTimeMs:      now,
		LastHeartbeatTimeMs: now,
	}
	e.nodes.Put(n)
	e.counters.Register++
	return n.NodeID, nil
}

// Heartbeat implements spec §4.4 heartbeat(). Never persists.
func (e *Engine) Heartbeat(nodeID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	ok := e.nodes.TouchHeartbeat(nodeID, e.nowMs())
	if ok {
		e.counters.Heartbeat++
	}
	return ok
}

// Unregister implements spec §4.4 unregister(). Idempotent.
func (e *Engine) Unregister(nodeID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.nodes.Remove(nodeID)
	e.counters.Unregister++
}

// Sweep implements spec §4.4 sweep(): removes every node whose last
// heartbeat exceeds nodeTimeoutMs, under the same writer lock, and logs one
// summary line.
func (e *Engine) Sweep() []string {
	e.mu.Lock()
	defer e.mu.Unlock()

	stale := e.nodes.StaleNodeIDs(e.nowMs(), e.nodeTimeoutMs)
	if len(stale) == 0 {
		return nil
	}
	e.nodes.RemoveMany(stale)
	e.counters.Unregister += uint64(len(stale))
	slog.Info("sweep removed stale nodes", "count", len(stale))
	return stale
}

// Stats implements spec §4.4 stats().
type Stats struct {
	OnlineNodeCount int
	LicenseCount    int
	Counters        Counters
}

func (e *Engine) Stats() Stats {
	e.mu.Lock()
	counters := e.counters
	e.mu.Unlock()

	return Stats{
		OnlineNodeCount: e.nodes.OnlineCount(),
		LicenseCount:    e.nodes.LicenseCount(),
		Counters:        counters,
	}
}

// ListNodes returns every live node, for the admin nodes endpoint.
func (e *Engine) ListNodes() []store.NodeInfo {
	return e.nodes.ListAll()
}
