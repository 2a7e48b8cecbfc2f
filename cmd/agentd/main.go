// Command agentd runs a standalone instance of the agent lifecycle
// controller (spec §4.5) against a configured authority, logging state
// transitions until terminated. Grounded on the teacher's cmd/server/main.go
// startup/shutdown shape.
package main

import (
	"context"
	"crypto/rsa"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/clk-66/licensefabric/internal/agent/config"
	"github.com/clk-66/licensefabric/internal/agent/lifecycle"
	"github.com/clk-66/licensefabric/internal/machineinfo"
	"github.com/clk-66/licensefabric/internal/pemkeys"
)

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	cfg := config.Load()
	if cfg.Code == "" {
		slog.Error("LICENSEFABRIC_AGENT_CODE is required")
		os.Exit(1)
	}

	pubKey, pubKeyPEM, err := loadPublicKey(cfg)
	if err != nil {
		slog.Error("load authority public key", "err", err)
		os.Exit(1)
	}

	mi := machineinfo.MachineInfo{
		Hostname: hostnameOrEmpty(),
	}

	agent := lifecycle.New(lifecycle.Config{
		PubKey:            pubKey,
		LicenseCode:       cfg.Code,
		MachineInfo:       mi,
		CachePath:         cfg.CachePath,
		CacheKey:          pubKeyPEM,
		ServerURL:         cfg.ServerURL,
		HeartbeatInterval: cfg.HeartbeatInterval,
		GracePeriod:       cfg.GracePeriod,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	agent.Start(ctx)
	logSnapshot(agent)

	watchState(ctx, agent)

	<-ctx.Done()
	slog.Info("agent shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	agent.Shutdown(shutdownCtx)
}

// watchState polls the lock-free snapshot and logs transitions, standing in
// for whatever request interceptor would otherwise read Agent.Snapshot().
func watchState(ctx context.Context, agent *lifecycle.Agent) {
	go func() {
		var last lifecycle.Status
		ticker := time.NewTicker(2 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				snap := agent.Snapshot()
				if snap.Status != last {
					slog.Info("agent state changed", "status", snap.Status, "message", snap.Message, "nodeId", snap.NodeID)
					last = snap.Status
				}
			}
		}
	}()
}

func logSnapshot(agent *lifecycle.Agent) {
	snap := agent.Snapshot()
	slog.Info("agent started", "status", snap.Status, "message", snap.Message, "nodeId", snap.NodeID)
}

// loadPublicKey resolves the authority's RSA public key from either literal
// PEM text or a file path, and returns the PEM text too — it doubles as the
// cache's symmetric-key material (spec §3).
func loadPublicKey(cfg *config.Config) (*rsa.PublicKey, string, error) {
	if cfg.PublicKey != "" {
		pub, err := pemkeys.LoadPublicKey([]byte(cfg.PublicKey))
		if err != nil {
			return nil, "", err
		}
		return pub, cfg.PublicKey, nil
	}

	data, err := os.ReadFile(cfg.PublicKeyPath)
	if err != nil {
		return nil, "", err
	}
	pub, err := pemkeys.LoadPublicKey(data)
	if err != nil {
		return nil, "", err
	}
	return pub, string(data), nil
}

func hostnameOrEmpty() string {
	h, err := os.Hostname()
	if err != nil {
		return ""
	}
	return h
}
