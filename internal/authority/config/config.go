// Package config loads the authority's configuration from the environment,
// the same flat-struct-plus-getEnv shape the teacher uses.
package config

import (
	"os"
	"strconv"
)

type Config struct {
	Port               string
	PublicKeyPath      string
	PrivateKeyPath     string
	NodeTimeoutSeconds int
	NodePersistPath    string
	LicensePersistPath string
	AdminToken         string // read but not used by the authority; admin auth is JWT-based, see AdminOpen/AdminJWTSecret
	AdminOpen          bool
	AdminJWTSecret     string
	AuditDBPath        string
}

func Load() *Config {
	return &Config{
		Port:               getEnv("LICENSEFABRIC_PORT", "8100"),
		PublicKeyPath:      getEnv("LICENSEFABRIC_PUBLIC_KEY_PATH", ""),
		PrivateKeyPath:     getEnv("LICENSEFABRIC_PRIVATE_KEY_PATH", ""),
		NodeTimeoutSeconds: getEnvInt("LICENSEFABRIC_NODE_TIMEOUT_SECONDS", 300),
		NodePersistPath:    getEnv("LICENSEFABRIC_NODE_PERSIST_PATH", "./data/nodes.json"),
		LicensePersistPath: getEnv("LICENSEFABRIC_LICENSE_PERSIST_PATH", "./data/licenses.json"),
		AdminToken:         getEnv("LICENSEFABRIC_ADMIN_TOKEN", ""),
		AdminOpen:          getEnvBool("LICENSEFABRIC_ADMIN_OPEN", false),
		AdminJWTSecret:     getEnv("LICENSEFABRIC_ADMIN_JWT_SECRET", ""),
		AuditDBPath:        getEnv("LICENSEFABRIC_AUDIT_DB_PATH", "./data/audit.db"),
	}
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}
