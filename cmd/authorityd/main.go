// Command authorityd runs the licensing authority: token issuer plus node
// registrar (spec §1/§2). Grounded on the teacher's cmd/server/main.go.
package main

import (
	"crypto/rand"
	"crypto/rsa"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/clk-66/licensefabric/internal/authority/adminauth"
	"github.com/clk-66/licensefabric/internal/authority/audit"
	"github.com/clk-66/licensefabric/internal/authority/config"
	"github.com/clk-66/licensefabric/internal/authority/httpapi"
	"github.com/clk-66/licensefabric/internal/authority/httpapi/live"
	"github.com/clk-66/licensefabric/internal/authority/issuer"
	"github.com/clk-66/licensefabric/internal/authority/protocol"
	"github.com/clk-66/licensefabric/internal/authority/store"
	"github.com/clk-66/licensefabric/internal/pemkeys"
)

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	cfg := config.Load()

	privKey, pubKey, pubKeyPEM, err := loadKeys(cfg)
	if err != nil {
		slog.Error("load RSA keys", "err", err)
		os.Exit(1)
	}

	now := time.Now().UnixMilli()
	nodeTimeoutMs := int64(cfg.NodeTimeoutSeconds) * 1000

	nodeStore := store.NewNodeStore(cfg.NodePersistPath, now, nodeTimeoutMs)
	licenseStore := store.NewLicenseStore(cfg.LicensePersistPath)

	engine := protocol.NewEngine(nodeStore, licenseStore, pubKey, nodeTimeoutMs)
	iss := issuer.New(licenseStore, privKey)

	var auditLog *audit.Log
	if cfg.AuditDBPath != "" {
		auditLog, err = audit.Open(cfg.AuditDBPath)
		if err != nil {
			slog.Warn("open audit log, continuing without it", "err", err)
			auditLog = nil
		} else {
			defer auditLog.Close()
		}
	}

	liveHub := live.NewHub()
	go liveHub.Run()

	adminSvc, err := adminauth.New(
		getEnv("LICENSEFABRIC_ADMIN_USERNAME", "admin"),
		getEnv("LICENSEFABRIC_ADMIN_PASSWORD", ""),
		cfg.AdminJWTSecret,
		cfg.AdminOpen,
	)
	if err != nil {
		slog.Error("init admin auth", "err", err)
		os.Exit(1)
	}
	if !cfg.AdminOpen && cfg.AdminJWTSecret == "" {
		slog.Error("LICENSEFABRIC_ADMIN_JWT_SECRET must be set unless LICENSEFABRIC_ADMIN_OPEN=true")
		os.Exit(1)
	}

	adminH := httpapi.NewAdminHandlers(adminSvc)
	licenseH := httpapi.NewLicenseHandlers(iss, engine, auditLog, pubKeyPEM)
	nodeH := httpapi.NewNodeHandlers(engine, auditLog, liveHub)

	router := httpapi.NewRouter(adminSvc, adminH, licenseH, nodeH, liveHub)

	// External scheduler for sweep() (spec §4.4): fixed 60s cadence.
	go runSweepLoop(engine, auditLog, liveHub, 60*time.Second)

	slog.Info("authority listening", "port", cfg.Port)
	if err := http.ListenAndServe(":"+cfg.Port, router); err != nil {
		slog.Error("authority stopped", "err", err)
		os.Exit(1)
	}
}

func runSweepLoop(engine *protocol.Engine, auditLog *audit.Log, liveHub *live.Hub, period time.Duration) {
	ticker := time.NewTicker(period)
	defer ticker.Stop()
	for range ticker.C {
		swept := engine.Sweep()
		if len(swept) == 0 {
			continue
		}
		liveHub.Publish(live.Envelope{Type: live.EventSweep, At: time.Now().UnixMilli()})
		if auditLog == nil {
			continue
		}
		for _, nodeID := range swept {
			if err := auditLog.Record(audit.KindSweep, nodeID, "", "swept on heartbeat timeout"); err != nil {
				slog.Warn("record sweep audit event", "err", err)
			}
		}
	}
}

// loadKeys loads the RSA keypair from the configured paths and returns the
// public key PEM text for GET /api/license/publicKey.
func loadKeys(cfg *config.Config) (*rsa.PrivateKey, *rsa.PublicKey, string, error) {
	if cfg.PrivateKeyPath == "" || cfg.PublicKeyPath == "" {
		slog.Warn("no RSA keys configured, generating an ephemeral keypair (development only)")
		priv, err := rsa.GenerateKey(rand.Reader, 2048)
		if err != nil {
			return nil, nil, "", err
		}
		pubPEM, err := pemkeys.EncodePublicKeyPEM(&priv.PublicKey)
		if err != nil {
			return nil, nil, "", err
		}
		return priv, &priv.PublicKey, pubPEM, nil
	}

	priv, err := pemkeys.LoadPrivateKeyFile(cfg.PrivateKeyPath)
	if err != nil {
		return nil, nil, "", err
	}
	pub, err := pemkeys.LoadPublicKeyFile(cfg.PublicKeyPath)
	if err != nil {
		return nil, nil, "", err
	}
	pubBytes, err := os.ReadFile(cfg.PublicKeyPath)
	if err != nil {
		return nil, nil, "", err
	}
	return priv, pub, string(pubBytes), nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return fallback
}
