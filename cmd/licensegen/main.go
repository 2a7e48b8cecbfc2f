// Command licensegen is an admin CLI that mints license tokens by calling
// the authority's POST /api/license/generate over HTTP, rather than linking
// against the authority's private key directly. Grounded on the teacher's
// flag-based cmd/ entrypoints and internal/auth login flow.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/clk-66/licensefabric/internal/token"
)

func main() {
	var (
		serverURL  = flag.String("server", "http://localhost:8100", "authority base URL")
		adminToken = flag.String("token", os.Getenv("LICENSEFABRIC_ADMIN_TOKEN"), "admin bearer token (or set LICENSEFABRIC_ADMIN_TOKEN)")
		username   = flag.String("username", "", "admin username, used with -password instead of -token")
		password   = flag.String("password", "", "admin password, used with -username instead of -token")
		subject    = flag.String("subject", "", "license subject (required)")
		expiry     = flag.Duration("expires-in", 365*24*time.Hour, "validity duration from now")
		maxMachine = flag.Int("max-machines", 1, "maximum concurrent machines")
		modules    = flag.String("modules", "", "comma-separated module names")
		desc       = flag.String("description", "", "free-text description")
	)
	flag.Parse()

	if *subject == "" {
		fmt.Fprintln(os.Stderr, "licensegen: -subject is required")
		os.Exit(2)
	}

	client := &http.Client{Timeout: 10 * time.Second}

	bearer := *adminToken
	if bearer == "" && *username != "" {
		var err error
		bearer, err = login(client, *serverURL, *username, *password)
		if err != nil {
			slog.Error("admin login failed", "err", err)
			os.Exit(1)
		}
	}

	var mods []string
	if *modules != "" {
		mods = strings.Split(*modules, ",")
	}

	payload := token.Payload{
		Subject:         *subject,
		IssuedTime:      time.Now().UnixMilli(),
		ExpiryTime:      time.Now().Add(*expiry).UnixMilli(),
		MaxMachineCount: *maxMachine,
		Modules:         mods,
		Description:     *desc,
	}

	rec, err := generate(client, *serverURL, bearer, payload)
	if err != nil {
		slog.Error("generate license", "err", err)
		os.Exit(1)
	}

	out, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		slog.Error("encode result", "err", err)
		os.Exit(1)
	}
	fmt.Println(string(out))
}

func login(client *http.Client, serverURL, username, password string) (string, error) {
	body, _ := json.Marshal(map[string]string{"username": username, "password": password})
	resp, err := client.Post(serverURL+"/api/admin/login", "application/json", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var env struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Data    struct {
			Token string `json:"token"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("login failed: %s", env.Message)
	}
	return env.Data.Token, nil
}

func generate(client *http.Client, serverURL, bearer string, payload token.Payload) (json.RawMessage, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequest(http.MethodPost, serverURL+"/api/license/generate", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var env struct {
		Code    int             `json:"code"`
		Message string          `json:"message"`
		Data    json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(respBody, &env); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("authority rejected request: %s", env.Message)
	}
	return env.Data, nil
}
