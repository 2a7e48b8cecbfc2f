package live

// EventType enumerates the node-lifecycle events pushed to connected admin
// dashboards.
type EventType string

const (
	EventRegister      EventType = "register"
	EventHeartbeatMiss EventType = "heartbeat_miss"
	EventUnregister    EventType = "unregister"
	EventSweep         EventType = "sweep"
)

// Envelope is one message sent over the admin live stream.
type Envelope struct {
	Type        EventType `json:"type"`
	NodeID      string    `json:"nodeId,omitempty"`
	LicenseCode string    `json:"licenseCode,omitempty"`
	At          int64     `json:"at"`
}
