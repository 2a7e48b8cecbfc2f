package antitamper

import "time"

// processStart anchors the monotonic clock: time.Since(processStart) reads
// Go's monotonic clock reading (time.Time carries one as long as neither
// value has been through a wall-clock-only round trip), which is immune to
// wall-clock adjustments such as NTP steps or manual changes.
var processStart = time.Now()

func monotonicNow() int64 {
	return time.Since(processStart).Nanoseconds()
}
