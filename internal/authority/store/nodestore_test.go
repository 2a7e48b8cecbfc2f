package store

import (
	"path/filepath"
	"testing"

	"github.com/clk-66/licensefabric/internal/machineinfo"
)

func TestNodeStorePutGetRemove(t *testing.T) {
	dir := t.TempDir()
	s := NewNodeStore(filepath.Join(dir, "nodes.json"), 1000, 300000)

	n := NodeInfo{NodeID: "n1", LicenseCode: "lic-a", LastHeartbeatTimeMs: 1000}
	s.Put(n)

	got, ok := s.Get("n1")
	if !ok {
		t.Fatal("Get: node not found after Put")
	}
	if got.LicenseCode != "lic-a" {
		t.Errorf("LicenseCode = %q, want %q", got.LicenseCode, "lic-a")
	}

	if len(s.NodesFor("lic-a")) != 1 {
		t.Errorf("NodesFor(lic-a) count = %d, want 1", len(s.NodesFor("lic-a")))
	}

	s.Remove("n1")
	if _, ok := s.Get("n1"); ok {
		t.Error("Get: node still present after Remove")
	}
	if len(s.NodesFor("lic-a")) != 0 {
		t.Error("NodesFor(lic-a) still returns nodes after Remove")
	}
}

func TestNodeStoreRecoveryDropsStaleNodes(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nodes.json")

	s := NewNodeStore(path, 1_000_000, 300_000)
	s.Put(NodeInfo{NodeID: "fresh", LicenseCode: "lic", LastHeartbeatTimeMs: 900_000})
	s.Put(NodeInfo{NodeID: "stale", LicenseCode: "lic", LastHeartbeatTimeMs: 1})

	// Reload from disk at a time where "stale" exceeds the timeout and
	// "fresh" does not.
	reloaded := NewNodeStore(path, 1_000_000, 300_000)
	if _, ok := reloaded.Get("stale"); ok {
		t.Error("recovery kept a node past nodeTimeoutMs, want dropped")
	}
	if _, ok := reloaded.Get("fresh"); !ok {
		t.Error("recovery dropped a node within nodeTimeoutMs, want kept")
	}
}

func TestStaleNodeIDsBoundaryIsStrictlyGreaterThan(t *testing.T) {
	dir := t.TempDir()
	s := NewNodeStore(filepath.Join(dir, "nodes.json"), 0, 300_000)

	s.Put(NodeInfo{NodeID: "exactly-at-threshold", LicenseCode: "lic", LastHeartbeatTimeMs: 0})

	// nowMs - lastHeartbeat == nodeTimeoutMs exactly: spec keeps this node.
	stale := s.StaleNodeIDs(300_000, 300_000)
	if len(stale) != 0 {
		t.Errorf("StaleNodeIDs at exact threshold = %v, want empty (boundary is kept)", stale)
	}

	// One millisecond past the threshold: now swept.
	stale = s.StaleNodeIDs(300_001, 300_000)
	if len(stale) != 1 || stale[0] != "exactly-at-threshold" {
		t.Errorf("StaleNodeIDs past threshold = %v, want [exactly-at-threshold]", stale)
	}
}

func TestTouchHeartbeatDoesNotPersist(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nodes.json")
	s := NewNodeStore(path, 0, 300_000)
	s.Put(NodeInfo{NodeID: "n1", LicenseCode: "lic", LastHeartbeatTimeMs: 0})

	if !s.TouchHeartbeat("n1", 5000) {
		t.Fatal("TouchHeartbeat: expected true for known node")
	}

	// Reload from disk: the persisted snapshot predates the heartbeat touch.
	reloaded := NewNodeStore(path, 5000, 300_000)
	got, ok := reloaded.Get("n1")
	if !ok {
		t.Fatal("reloaded node missing")
	}
	if got.LastHeartbeatTimeMs != 0 {
		t.Errorf("persisted LastHeartbeatTimeMs = %d, want 0 (heartbeat must never persist)", got.LastHeartbeatTimeMs)
	}

	if s.TouchHeartbeat("unknown", 1) {
		t.Error("TouchHeartbeat: expected false for unknown node")
	}
}

func TestRemoveManyAndListAll(t *testing.T) {
	dir := t.TempDir()
	s := NewNodeStore(filepath.Join(dir, "nodes.json"), 0, 300_000)
	s.Put(NodeInfo{NodeID: "a", LicenseCode: "lic", LastHeartbeatTimeMs: 0})
	s.Put(NodeInfo{NodeID: "b", LicenseCode: "lic", LastHeartbeatTimeMs: 0})
	s.Put(NodeInfo{NodeID: "c", LicenseCode: "lic2", LastHeartbeatTimeMs: 0, MachineInfo: machineinfo.MachineInfo{MachineID: "m"}})

	s.RemoveMany([]string{"a", "b"})

	all := s.ListAll()
	if len(all) != 1 || all[0].NodeID != "c" {
		t.Errorf("ListAll after RemoveMany = %+v, want only node c", all)
	}
	if s.LicenseCount() != 1 {
		t.Errorf("LicenseCount = %d, want 1", s.LicenseCount())
	}
}
