package httpapi

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/clk-66/licensefabric/internal/authority/audit"
	"github.com/clk-66/licensefabric/internal/authority/httpapi/live"
	"github.com/clk-66/licensefabric/internal/authority/protocol"
	"github.com/clk-66/licensefabric/internal/machineinfo"
)

// NodeHandlers serves POST /api/node/register, /heartbeat, /unregister and
// GET /api/node/stats — the registrar half of spec.md's authority.
type NodeHandlers struct {
	engine   *protocol.Engine
	auditLog *audit.Log // may be nil
	live     *live.Hub  // may be nil
}

func NewNodeHandlers(engine *protocol.Engine, auditLog *audit.Log, liveHub *live.Hub) *NodeHandlers {
	return &NodeHandlers{engine: engine, auditLog: auditLog, live: liveHub}
}

func (h *NodeHandlers) record(kind audit.Kind, nodeID, licenseCode, detail string) {
	if h.auditLog == nil {
		return
	}
	if err := h.auditLog.Record(kind, nodeID, licenseCode, detail); err != nil {
		// Audit failures never affect the protocol operation they observed.
		slog.Warn("record audit event", "kind", kind, "err", err)
	}
}

func (h *NodeHandlers) publish(evt live.EventType, nodeID, licenseCode string) {
	if h.live == nil {
		return
	}
	h.live.Publish(live.Envelope{Type: evt, NodeID: nodeID, LicenseCode: licenseCode, At: time.Now().UnixMilli()})
}

func (h *NodeHandlers) Register(w http.ResponseWriter, r *http.Request) {
	var body struct {
		LicenseCode string                  `json:"licenseCode"`
		MachineInfo machineinfo.MachineInfo `json:"machineInfo"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	nodeID, err := h.engine.Register(body.LicenseCode, body.MachineInfo)
	if err != nil {
		status, msg := statusFor(err)
		writeError(w, status, msg)
		return
	}

	h.record(audit.KindRegister, nodeID, body.LicenseCode, "")
	h.publish(live.EventRegister, nodeID, body.LicenseCode)
	writeOK(w, nodeID)
}

func (h *NodeHandlers) Heartbeat(w http.ResponseWriter, r *http.Request) {
	var body struct {
		NodeID string `json:"nodeId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if !h.engine.Heartbeat(body.NodeID) {
		h.record(audit.KindHeartbeatMiss, body.NodeID, "", "")
		h.publish(live.EventHeartbeatMiss, body.NodeID, "")
		writeError(w, http.StatusNotFound, "node not found, re-register")
		return
	}
	writeOK(w, true)
}

func (h *NodeHandlers) Unregister(w http.ResponseWriter, r *http.Request) {
	var body struct {
		NodeID string `json:"nodeId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	h.engine.Unregister(body.NodeID)
	h.record(audit.KindUnregister, body.NodeID, "", "")
	h.publish(live.EventUnregister, body.NodeID, "")
	writeOK(w, nil)
}

func (h *NodeHandlers) Stats(w http.ResponseWriter, r *http.Request) {
	stats := h.engine.Stats()
	writeOK(w, map[string]any{
		"onlineNodeCount": stats.OnlineNodeCount,
		"licenseCount":    stats.LicenseCount,
		"counters": map[string]uint64{
			"register":   stats.Counters.Register,
			"heartbeat":  stats.Counters.Heartbeat,
			"unregister": stats.Counters.Unregister,
		},
	})
}
