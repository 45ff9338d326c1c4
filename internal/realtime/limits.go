package realtime

import "time"

// Security/performance limits for the websocket gateway.
const (
	// Max bytes per websocket frame read (hard limit).
	maxFrameBytes = 64 << 10 // 64 KiB
)

const (
	// Heartbeat defaults (can be overridden by env in gateway.go).
	heartbeatInterval = 25 * time.Second
	heartbeatTimeout  = 5 * time.Second
)

// Ephemeral record TTLs. Absence of a record means "offline"/"no cursor";
// TTL expiry is the sole teardown mechanism besides an explicit leave.
const (
	cursorTTL   = 30 * time.Second
	presenceTTL = 60 * time.Second
)
