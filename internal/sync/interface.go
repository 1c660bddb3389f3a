// Package sync reconciles the on-device store with the remote data
// service: a push pass uploads pending local writes, a pull pass merges
// remote state back without ever clobbering an unsynced local write.
package sync

import (
	"context"

	"github.com/huntmate/grindsync/internal/schema"
)

// RemoteService is the contract the sync manager depends on. It is
// satisfied by the Postgres-backed client in internal/remote and by
// in-memory fakes in tests.
//
// Every call may fail with a network or service error. Each call is
// all-or-nothing on its own, but there is no atomicity across calls;
// callers must treat each record's upload as independently retryable.
type RemoteService interface {
	// UpsertSession inserts or replaces a session by ID. Server-computed
	// aggregate columns are never overwritten by this call.
	UpsertSession(ctx context.Context, session *schema.GrindSession) error

	// UpsertKill inserts or replaces a kill record by ID. Idempotent:
	// re-uploading the same ID with the same payload creates no
	// duplicates and no duplicate side effects.
	UpsertKill(ctx context.Context, kill *schema.KillRecord) error

	// DeleteKill removes a kill record by ID. Idempotent: deleting an ID
	// the remote never saw is a no-op, so replaying a deletion is safe.
	DeleteKill(ctx context.Context, id string) error

	// SelectActiveSessions returns all sessions with is_active true for
	// the user.
	SelectActiveSessions(ctx context.Context, userID string) ([]*schema.GrindSession, error)

	// SelectStatistics returns aggregate rows for the session ID set.
	SelectStatistics(ctx context.Context, sessionIDs []string) ([]*schema.SessionStatistics, error)

	// DeleteAllForUser cascades: kill records first, then sessions.
	DeleteAllForUser(ctx context.Context, userID string) error
}
