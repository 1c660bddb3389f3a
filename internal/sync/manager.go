package sync

import (
	"context"
	"fmt"
	"log"
	"os"
	stdsync "sync"
	"sync/atomic"
	"time"

	"github.com/huntmate/grindsync/internal/identity"
	"github.com/huntmate/grindsync/internal/schema"
	"github.com/huntmate/grindsync/internal/store"
)

// Manager orchestrates push and pull passes between the local store and
// the remote data service.
//
// A Manager is owned by the application's composition root and passed by
// reference; there is no package-level instance. It is safe to invoke
// concurrently with itself: a push already in flight causes a new push
// invocation to no-op immediately.
type Manager struct {
	store  *store.Store
	remote RemoteService
	logger *log.Logger

	// syncing is the push re-entrancy guard. CAS rather than a mutex so
	// an overlapping invocation returns instead of queueing.
	syncing atomic.Bool

	mu       stdsync.Mutex
	userID   string
	lastPush time.Time
	lastPull time.Time
}

// New creates a sync manager over the given store and remote service.
// If logger is nil, a default logger writing to stderr is used.
func New(st *store.Store, remote RemoteService, logger *log.Logger) *Manager {
	if logger == nil {
		logger = log.New(os.Stderr, "[sync] ", log.LstdFlags)
	}
	return &Manager{
		store:  st,
		remote: remote,
		logger: logger,
	}
}

// SetUserID binds the manager to a primary-system identifier, converting
// it to the secondary-system identifier all records are scoped by.
// An empty primaryID clears the scope, turning both passes into no-ops.
func (m *Manager) SetUserID(primaryID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if primaryID == "" {
		if m.userID != "" {
			m.logger.Println("User scope cleared, sync disabled")
		}
		m.userID = ""
		return
	}

	mapped := identity.UserID(primaryID)
	if mapped != m.userID {
		m.logger.Printf("User scope bound: %s", mapped)
	}
	m.userID = mapped
}

// UserID returns the current secondary-system user scope, or "" when
// sync is disabled.
func (m *Manager) UserID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.userID
}

// PushResult summarizes one push pass.
type PushResult struct {
	// Skipped is true when the pass no-opped: either a push was already
	// in flight or no user scope is bound.
	Skipped bool

	Sessions int
	Kills    int
	Deleted  int
	Failed   int
	Duration time.Duration
}

// PushPendingChanges uploads every pending session, then every pending
// kill record, then replays queued kill deletions, for the bound user.
//
// One bad record never blocks the rest of the queue: a failed upload is
// logged and the record stays pending for the next scheduled pass.
func (m *Manager) PushPendingChanges(ctx context.Context) PushResult {
	userID := m.UserID()
	if userID == "" {
		return PushResult{Skipped: true}
	}
	if !m.syncing.CompareAndSwap(false, true) {
		return PushResult{Skipped: true}
	}
	defer m.syncing.Store(false)

	start := time.Now()
	var result PushResult

	sessions, err := m.store.PendingSessions(ctx, userID)
	if err != nil {
		m.logger.Printf("Failed to query pending sessions: %v", err)
	}
	for _, session := range sessions {
		if err := m.remote.UpsertSession(ctx, session); err != nil {
			m.logger.Printf("Failed to upload session %s: %v", session.ID, err)
			result.Failed++
			continue
		}
		if err := m.store.MarkSessionSynced(ctx, session.ID, time.Now().UTC()); err != nil {
			m.logger.Printf("Failed to mark session %s synced: %v", session.ID, err)
			continue
		}
		result.Sessions++
	}

	kills, err := m.store.PendingKills(ctx, userID)
	if err != nil {
		m.logger.Printf("Failed to query pending kills: %v", err)
	}
	for _, kill := range kills {
		if err := m.remote.UpsertKill(ctx, kill); err != nil {
			m.logger.Printf("Failed to upload kill %s: %v", kill.ID, err)
			result.Failed++
			continue
		}
		if err := m.store.MarkKillSynced(ctx, kill.ID, time.Now().UTC()); err != nil {
			m.logger.Printf("Failed to mark kill %s synced: %v", kill.ID, err)
			continue
		}
		result.Kills++
	}

	// Undone-after-upload kills leave tombstones; replaying them keeps
	// the remote's trigger-maintained counts honest.
	deletions, err := m.store.PendingKillDeletions(ctx, userID)
	if err != nil {
		m.logger.Printf("Failed to query kill deletions: %v", err)
	}
	for _, id := range deletions {
		if err := m.remote.DeleteKill(ctx, id); err != nil {
			m.logger.Printf("Failed to delete kill %s remotely: %v", id, err)
			result.Failed++
			continue
		}
		if err := m.store.ClearKillDeletion(ctx, id); err != nil {
			m.logger.Printf("Failed to clear tombstone %s: %v", id, err)
			continue
		}
		result.Deleted++
	}

	result.Duration = time.Since(start)

	m.mu.Lock()
	m.lastPush = time.Now()
	m.mu.Unlock()

	if result.Sessions > 0 || result.Kills > 0 || result.Deleted > 0 || result.Failed > 0 {
		m.logger.Printf("Push complete: sessions=%d kills=%d deleted=%d failed=%d (%v)",
			result.Sessions, result.Kills, result.Deleted, result.Failed,
			result.Duration.Round(time.Millisecond))
	}
	return result
}

// PullResult summarizes one pull pass.
type PullResult struct {
	// Skipped is true when no user scope is bound.
	Skipped bool

	// Sessions is the number of local rows overwritten from remote.
	Sessions int
	// PendingKept is the number of remote rows ignored because the local
	// copy had unsynced writes.
	PendingKept int
	// Statistics is the number of aggregate rows cached.
	Statistics int
}

// PullLatestData retrieves the user's active remote sessions and merges
// them into the local store.
//
// The one conflict rule: a local row whose sync status is pending is
// never overwritten, because the remote copy may predate the local write.
// Rows in any other status are overwritten whenever the remote kill count
// differs (or the row is missing locally) and come out tagged synced.
//
// Statistics rows are upserted unconditionally; they are server-computed
// and never locally mutated, so no conflict is possible.
//
// A network error aborts the remainder of the pass. Writes already
// applied are kept: pulls are idempotent and repeat on the next trigger.
func (m *Manager) PullLatestData(ctx context.Context) (PullResult, error) {
	userID := m.UserID()
	if userID == "" {
		return PullResult{Skipped: true}, nil
	}

	var result PullResult

	remoteSessions, err := m.remote.SelectActiveSessions(ctx, userID)
	if err != nil {
		return result, fmt.Errorf("failed to fetch remote sessions: %w", err)
	}

	sessionIDs := make([]string, 0, len(remoteSessions))
	now := time.Now().UTC()

	for _, remote := range remoteSessions {
		sessionIDs = append(sessionIDs, remote.ID)

		local, err := m.store.GetSession(ctx, remote.ID)
		if err != nil {
			m.logger.Printf("Failed to read local session %s: %v", remote.ID, err)
			continue
		}

		// An unsynced local write always wins until it has been pushed.
		if local != nil && local.SyncStatus == schema.StatusPending {
			result.PendingKept++
			continue
		}

		if local != nil && local.TotalKills == remote.TotalKills {
			continue
		}

		remote.SyncStatus = schema.StatusSynced
		remote.LastSyncedAt = &now
		if err := m.store.PutSession(ctx, remote); err != nil {
			m.logger.Printf("Failed to apply remote session %s: %v", remote.ID, err)
			continue
		}
		result.Sessions++
	}

	stats, err := m.remote.SelectStatistics(ctx, sessionIDs)
	if err != nil {
		return result, fmt.Errorf("failed to fetch statistics: %w", err)
	}
	for _, st := range stats {
		if err := m.store.PutStatistics(ctx, st); err != nil {
			m.logger.Printf("Failed to cache statistics for %s: %v", st.SessionID, err)
			continue
		}
		result.Statistics++
	}

	m.mu.Lock()
	m.lastPull = time.Now()
	m.mu.Unlock()

	m.logger.Printf("Pull complete: sessions=%d kept=%d stats=%d",
		result.Sessions, result.PendingKept, result.Statistics)
	return result, nil
}

// ResetAllData deletes the bound user's records remotely and locally.
//
// Unlike the passes, this is a destructive user-initiated action and
// propagates real errors: the local wipe only happens after the remote
// cascade succeeded, so an offline reset fails loudly instead of leaving
// remote ghosts behind.
func (m *Manager) ResetAllData(ctx context.Context) error {
	userID := m.UserID()
	if userID == "" {
		return fmt.Errorf("no user identity bound")
	}

	if err := m.remote.DeleteAllForUser(ctx, userID); err != nil {
		return fmt.Errorf("remote reset failed: %w", err)
	}
	if err := m.store.ResetAllData(ctx, userID); err != nil {
		return fmt.Errorf("local reset failed: %w", err)
	}

	m.logger.Printf("All data reset for user %s", userID)
	return nil
}

// Status is a point-in-time snapshot for status displays.
type Status struct {
	UserID          string    `json:"user_id,omitempty"`
	PendingSessions int       `json:"pending_sessions"`
	PendingKills    int       `json:"pending_kills"`
	LastPush        time.Time `json:"last_push,omitzero"`
	LastPull        time.Time `json:"last_pull,omitzero"`
}

// Status reports the current sync state for the bound user.
func (m *Manager) Status(ctx context.Context) (Status, error) {
	m.mu.Lock()
	st := Status{
		UserID:   m.userID,
		LastPush: m.lastPush,
		LastPull: m.lastPull,
	}
	m.mu.Unlock()

	if st.UserID == "" {
		return st, nil
	}

	sessions, kills, err := m.store.PendingCounts(ctx, st.UserID)
	if err != nil {
		return st, err
	}
	st.PendingSessions = sessions
	st.PendingKills = kills
	return st, nil
}
