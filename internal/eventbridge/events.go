package eventbridge

import (
	"github.com/kingrea/character-lock/internal/lock"
	"github.com/kingrea/character-lock/internal/task"
)

const (
	// ProtocolVersion identifies the bridge contract version exposed via /health.
	ProtocolVersion = "1.0.0"

	// TierHeader carries the lock tier chosen for a before_task_enqueue call.
	TierHeader = "X-Charlock-Tier"
)

// Dispatcher runs the hooks registered for an event. host.Registry satisfies it.
type Dispatcher interface {
	Dispatch(event string, d task.Descriptor) (task.Descriptor, error)
	HasHooks(event string) bool
}

// SettingsStore exposes the live lock settings. lock.Store satisfies it.
// The revision lets the bridge report the tier a hook call actually used.
type SettingsStore interface {
	Snapshot() lock.Settings
	SnapshotRevision() (lock.Settings, uint64)
	Revision() uint64
	Update(lock.Settings)
}

// Logger records bridge status information. It matches logging.Logger's signature.
type Logger interface {
	Printf(format string, args ...any)
}

type healthResponse struct {
	Status        string `json:"status"`
	Version       string `json:"version"`
	Hooks         bool   `json:"hooks_ready"`
	UptimeSeconds int64  `json:"uptime_seconds"`
}
