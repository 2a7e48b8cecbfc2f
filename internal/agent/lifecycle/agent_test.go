package lifecycle

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/clk-66/licensefabric/internal/machineinfo"
	"github.com/clk-66/licensefabric/internal/token"
)

func testKeyPair(t *testing.T) (*rsa.PrivateKey, *rsa.PublicKey) {
	t.Helper()
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	return priv, &priv.PublicKey
}

func mintCode(t *testing.T, priv *rsa.PrivateKey, payload token.Payload) string {
	t.Helper()
	code, err := token.Mint(payload, priv)
	if err != nil {
		t.Fatalf("Mint: %v", err)
	}
	return code
}

func writeEnvelope(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]any{"code": status, "message": "", "data": data})
}

func TestStartGoesValidOnlineOnSuccessfulRegister(t *testing.T) {
	priv, pub := testKeyPair(t)
	code := mintCode(t, priv, token.Payload{Subject: "acme", ExpiryTime: time.Now().Add(time.Hour).UnixMilli(), MaxMachineCount: 1})

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/node/register":
			writeEnvelope(w, 200, "node-1")
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	a := New(Config{
		PubKey:            pub,
		LicenseCode:       code,
		MachineInfo:       machineinfo.MachineInfo{MachineID: "m1"},
		CachePath:         filepath.Join(t.TempDir(), "cache"),
		CacheKey:          "cache-key",
		ServerURL:         srv.URL,
		HeartbeatInterval: time.Hour, // long enough not to fire during the test
		GracePeriod:       24 * time.Hour,
	})

	a.Start(context.Background())
	defer a.Shutdown(context.Background())

	snap := a.Snapshot()
	if snap.Status != ValidOnline {
		t.Fatalf("Status = %v, want ValidOnline", snap.Status)
	}
	if snap.NodeID != "node-1" {
		t.Errorf("NodeID = %q, want node-1", snap.NodeID)
	}
	if !snap.Status.IsValid() {
		t.Error("IsValid() = false for ValidOnline")
	}
}

func TestStartGoesInvalidWhenTokenDoesNotVerify(t *testing.T) {
	_, pub := testKeyPair(t)
	otherPriv, _ := testKeyPair(t)
	badCode := mintCode(t, otherPriv, token.Payload{Subject: "acme", ExpiryTime: time.Now().Add(time.Hour).UnixMilli(), MaxMachineCount: 1})

	a := New(Config{
		PubKey:      pub,
		LicenseCode: badCode,
		CachePath:   filepath.Join(t.TempDir(), "cache"),
		CacheKey:    "cache-key",
		ServerURL:   "http://127.0.0.1:1",
	})

	a.Start(context.Background())
	snap := a.Snapshot()
	if snap.Status != Invalid {
		t.Fatalf("Status = %v, want Invalid", snap.Status)
	}
	if snap.Status.IsValid() {
		t.Error("IsValid() = true for Invalid")
	}
}

func TestStartDegradesWhenAuthorityUnreachableButNoCacheYet(t *testing.T) {
	priv, pub := testKeyPair(t)
	code := mintCode(t, priv, token.Payload{Subject: "acme", ExpiryTime: time.Now().Add(time.Hour).UnixMilli(), MaxMachineCount: 1})

	a := New(Config{
		PubKey:            pub,
		LicenseCode:       code,
		CachePath:         filepath.Join(t.TempDir(), "cache"),
		CacheKey:          "cache-key",
		ServerURL:         "http://127.0.0.1:1", // nothing listens here
		HeartbeatInterval: time.Hour,
		GracePeriod:       24 * time.Hour,
	})

	a.Start(context.Background())
	defer a.Shutdown(context.Background())

	snap := a.Snapshot()
	if snap.Status != ValidDegraded {
		t.Fatalf("Status = %v, want ValidDegraded", snap.Status)
	}
	if !snap.Status.IsValid() {
		t.Error("IsValid() = false for ValidDegraded")
	}
}

func TestStartDegradesFromExistingCacheWhenAuthorityUnreachable(t *testing.T) {
	priv, pub := testKeyPair(t)
	code := mintCode(t, priv, token.Payload{Subject: "acme", ExpiryTime: time.Now().Add(time.Hour).UnixMilli(), MaxMachineCount: 1})
	cachePath := filepath.Join(t.TempDir(), "cache")

	// First start: authority reachable, seeds node id and cache.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, 200, "node-1")
	}))

	cfg := Config{
		PubKey:            pub,
		LicenseCode:       code,
		CachePath:         cachePath,
		CacheKey:          "cache-key",
		ServerURL:         srv.URL,
		HeartbeatInterval: time.Hour,
		GracePeriod:       24 * time.Hour,
	}

	first := New(cfg)
	first.Start(context.Background())
	if first.Snapshot().Status != ValidOnline {
		t.Fatalf("first Start: Status = %v, want ValidOnline", first.Snapshot().Status)
	}
	first.Shutdown(context.Background())
	srv.Close()

	// Second start: authority now unreachable, should degrade from the cache
	// written during the first run.
	cfg.ServerURL = "http://127.0.0.1:1"
	second := New(cfg)
	second.Start(context.Background())
	defer second.Shutdown(context.Background())

	snap := second.Snapshot()
	if snap.Status != ValidDegraded {
		t.Fatalf("second Start: Status = %v, want ValidDegraded", snap.Status)
	}
	if snap.NodeID != "node-1" {
		t.Errorf("NodeID = %q, want node-1 (restored from cache)", snap.NodeID)
	}
}

func TestSnapshotIsLockFreeUnderConcurrentReads(t *testing.T) {
	_, pub := testKeyPair(t)
	priv, _ := testKeyPair(t)
	code := mintCode(t, priv, token.Payload{Subject: "acme", ExpiryTime: time.Now().Add(time.Hour).UnixMilli(), MaxMachineCount: 1})

	a := New(Config{PubKey: pub, LicenseCode: code, CachePath: filepath.Join(t.TempDir(), "cache"), CacheKey: "k"})

	var wg sync.WaitGroup
	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 1000; i++ {
				_ = a.Snapshot()
			}
		}()
	}
	wg.Wait()
}
