package schema

// SyncStatus tags a locally-held record with its upload state.
type SyncStatus string

const (
	// StatusSynced means the local row matches (or is assumed to match)
	// the remote copy.
	StatusSynced SyncStatus = "synced"

	// StatusPending means a local write has not yet been confirmed
	// uploaded. Pending rows are never overwritten by a pull pass.
	StatusPending SyncStatus = "pending"

	// StatusError means the last upload attempt failed in a way worth
	// surfacing to the user. Error rows are treated like synced rows
	// during pulls; flipping them back to pending re-queues the upload.
	StatusError SyncStatus = "error"
)

// Valid reports whether s is one of the recognized status values.
func (s SyncStatus) Valid() bool {
	switch s {
	case StatusSynced, StatusPending, StatusError:
		return true
	}
	return false
}
