// Package client is the agent's HTTP client to the authority: register,
// heartbeat, unregister. Modeled on the teacher's internal/media.Client —
// one private "do" helper wrapping a timeout-bounded http.Client, with
// typed methods on top.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/clk-66/licensefabric/internal/machineinfo"
)

const requestTimeout = 5 * time.Second

// Client talks to the authority's /api/node/* endpoints.
type Client struct {
	baseURL string
	http    *http.Client
}

func New(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		http: &http.Client{
			Timeout: requestTimeout,
		},
	}
}

// envelope mirrors the authority's {code, message, data} response shape
// (spec §6).
type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// Response is what callers get back from a single RPC: the HTTP status code
// (used to distinguish 200/404/other per spec §4.5), the envelope message,
// and the raw data payload.
type Response struct {
	StatusCode int
	Message    string
	Data       json.RawMessage
}

// Register calls POST /api/node/register. Data, on success, is the nodeId
// string.
func (c *Client) Register(ctx context.Context, licenseCode string, mi machineinfo.MachineInfo) (Response, error) {
	body, _ := json.Marshal(map[string]any{
		"licenseCode": licenseCode,
		"machineInfo": mi,
	})
	return c.do(ctx, "/api/node/register", body)
}

// Heartbeat calls POST /api/node/heartbeat.
func (c *Client) Heartbeat(ctx context.Context, nodeID string) (Response, error) {
	body, _ := json.Marshal(map[string]string{"nodeId": nodeID})
	return c.do(ctx, "/api/node/heartbeat", body)
}

// Unregister calls POST /api/node/unregister. Always 200 per spec §6; errors
// here are transport-only and are swallowed by the caller (best-effort
// shutdown).
func (c *Client) Unregister(ctx context.Context, nodeID string) (Response, error) {
	body, _ := json.Marshal(map[string]string{"nodeId": nodeID})
	return c.do(ctx, "/api/node/unregister", body)
}

func (c *Client) do(ctx context.Context, path string, body []byte) (Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return Response{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return Response{}, fmt.Errorf("%s: %w", path, err)
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return Response{StatusCode: resp.StatusCode}, fmt.Errorf("%s: decode response: %w", path, err)
	}

	return Response{
		StatusCode: resp.StatusCode,
		Message:    env.Message,
		Data:       env.Data,
	}, nil
}
