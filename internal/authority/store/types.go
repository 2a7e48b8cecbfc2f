package store

import (
	"github.com/clk-66/licensefabric/internal/machineinfo"
	"github.com/clk-66/licensefabric/internal/token"
)

// NodeInfo is one registered instance of a licensed application.
type NodeInfo struct {
	NodeID               string                  `json:"nodeId"`
	LicenseCode          string                  `json:"licenseCode"`
	MachineInfo          machineinfo.MachineInfo `json:"machineInfo"`
	RegisterTimeMs       int64                   `json:"registerTimeMs"`
	LastHeartbeatTimeMs  int64                   `json:"lastHeartbeatTimeMs"`
}

// LicenseRecord is an authority-side record of a minted token.
type LicenseRecord struct {
	ID          string        `json:"id"`
	Subject     string        `json:"subject"`
	LicenseCode string        `json:"licenseCode"`
	Payload     token.Payload `json:"payload"`
	CreateTimeMs int64        `json:"createTimeMs"`
}
