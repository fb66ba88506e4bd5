package model

// ConnectivityState is the process-wide view of whether the remote ledger is reachable.
type ConnectivityState string

// Connectivity states.
const (
	ConnectivityUnknown ConnectivityState = "unknown"
	ConnectivityOnline  ConnectivityState = "online"
	ConnectivityOffline ConnectivityState = "offline"
)

// ConnectivityChange is broadcast whenever the state transitions.
type ConnectivityChange struct {
	From ConnectivityState
	To   ConnectivityState
}

// Restored reports whether the change is an Offline to Online transition.
func (c ConnectivityChange) Restored() bool {
	return c.From == ConnectivityOffline && c.To == ConnectivityOnline
}

// SyncStatus is the sync engine's externally visible state.
type SyncStatus string

// Sync statuses.
const (
	SyncIdle    SyncStatus = "idle"
	SyncSyncing SyncStatus = "syncing"
	SyncError   SyncStatus = "error"
)
