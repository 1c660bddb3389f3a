package sync

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"path/filepath"
	"testing"
	"time"

	"github.com/huntmate/grindsync/internal/identity"
	"github.com/huntmate/grindsync/internal/schema"
	"github.com/huntmate/grindsync/internal/store"
)

// testUserID is already in canonical form, so identity mapping passes it
// through unchanged and local rows can be seeded with the same value.
const testUserID = "9d70a766-98e1-5049-be83-e4d31a28f936"

// fakeRemote is an in-memory RemoteService. Individual calls can be
// made to fail, and hooks allow tests to interleave work mid-upload.
type fakeRemote struct {
	sessions map[string]*schema.GrindSession
	kills    map[string]*schema.KillRecord
	stats    map[string]*schema.SessionStatistics

	failSessionIDs map[string]bool
	failKillIDs    map[string]bool
	failDeleteIDs  map[string]bool
	selectErr      error
	statsErr       error
	deleteErr      error

	onUpsertSession func()
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{
		sessions:       make(map[string]*schema.GrindSession),
		kills:          make(map[string]*schema.KillRecord),
		stats:          make(map[string]*schema.SessionStatistics),
		failSessionIDs: make(map[string]bool),
		failKillIDs:    make(map[string]bool),
		failDeleteIDs:  make(map[string]bool),
	}
}

func (f *fakeRemote) UpsertSession(ctx context.Context, session *schema.GrindSession) error {
	if f.onUpsertSession != nil {
		f.onUpsertSession()
	}
	if f.failSessionIDs[session.ID] {
		return fmt.Errorf("service unavailable")
	}
	clone := *session
	f.sessions[session.ID] = &clone
	return nil
}

func (f *fakeRemote) UpsertKill(ctx context.Context, kill *schema.KillRecord) error {
	if f.failKillIDs[kill.ID] {
		return fmt.Errorf("service unavailable")
	}
	clone := *kill
	f.kills[kill.ID] = &clone
	return nil
}

func (f *fakeRemote) DeleteKill(ctx context.Context, id string) error {
	if f.failDeleteIDs[id] {
		return fmt.Errorf("service unavailable")
	}
	delete(f.kills, id)
	return nil
}

func (f *fakeRemote) SelectActiveSessions(ctx context.Context, userID string) ([]*schema.GrindSession, error) {
	if f.selectErr != nil {
		return nil, f.selectErr
	}
	var out []*schema.GrindSession
	for _, s := range f.sessions {
		if s.UserID == userID && s.IsActive {
			clone := *s
			out = append(out, &clone)
		}
	}
	return out, nil
}

func (f *fakeRemote) SelectStatistics(ctx context.Context, sessionIDs []string) ([]*schema.SessionStatistics, error) {
	if f.statsErr != nil {
		return nil, f.statsErr
	}
	var out []*schema.SessionStatistics
	for _, id := range sessionIDs {
		if st, ok := f.stats[id]; ok {
			clone := *st
			out = append(out, &clone)
		}
	}
	return out, nil
}

func (f *fakeRemote) DeleteAllForUser(ctx context.Context, userID string) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	for id, k := range f.kills {
		if k.UserID == userID {
			delete(f.kills, id)
		}
	}
	for id, s := range f.sessions {
		if s.UserID == userID {
			delete(f.sessions, id)
		}
	}
	return nil
}

// setupManager wires a manager over a real on-disk store and the fake
// remote, bound to the test user.
func setupManager(t *testing.T) (*Manager, *store.Store, *fakeRemote) {
	t.Helper()

	st, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	if err := st.InitSchema(); err != nil {
		t.Fatalf("failed to initialize schema: %v", err)
	}

	remote := newFakeRemote()
	m := New(st, remote, log.New(io.Discard, "", 0))
	m.SetUserID(testUserID)
	return m, st, remote
}

func seedSession(t *testing.T, st *store.Store, id string, status schema.SyncStatus) *schema.GrindSession {
	t.Helper()
	session := &schema.GrindSession{
		ID:         id,
		UserID:     testUserID,
		AnimalID:   "moose",
		AnimalName: "Moose",
		StartDate:  time.Now().UTC(),
		IsActive:   true,
		UpdatedAt:  time.Now().UTC(),
		SyncStatus: status,
	}
	if err := st.PutSession(context.Background(), session); err != nil {
		t.Fatalf("failed to seed session %s: %v", id, err)
	}
	return session
}

func TestSetUserIDMapsPrimaryIdentifier(t *testing.T) {
	m, _, _ := setupManager(t)

	m.SetUserID("hunter-001")
	want := identity.UserID("hunter-001")
	if got := m.UserID(); got != want {
		t.Errorf("expected mapped ID %s, got %s", want, got)
	}

	m.SetUserID("")
	if got := m.UserID(); got != "" {
		t.Errorf("expected cleared scope, got %s", got)
	}
}

func TestPushUploadsAndMarksSynced(t *testing.T) {
	m, st, remote := setupManager(t)
	ctx := context.Background()

	seedSession(t, st, "s1", schema.StatusPending)
	if err := st.RecordKill(ctx, &schema.KillRecord{ID: "k1", SessionID: "s1"}); err != nil {
		t.Fatalf("RecordKill failed: %v", err)
	}

	result := m.PushPendingChanges(ctx)
	if result.Skipped {
		t.Fatal("push should not skip with a bound user")
	}
	// RecordKill re-flagged s1, so one session and one kill go up.
	if result.Sessions != 1 || result.Kills != 1 || result.Failed != 0 {
		t.Errorf("unexpected result: %+v", result)
	}

	if _, ok := remote.sessions["s1"]; !ok {
		t.Error("session never reached the remote")
	}
	if _, ok := remote.kills["k1"]; !ok {
		t.Error("kill never reached the remote")
	}

	sessions, kills, err := st.PendingCounts(ctx, testUserID)
	if err != nil {
		t.Fatalf("PendingCounts failed: %v", err)
	}
	if sessions != 0 || kills != 0 {
		t.Errorf("expected empty queue after push, got %d/%d", sessions, kills)
	}

	// A second push finds nothing to do.
	result = m.PushPendingChanges(ctx)
	if result.Sessions != 0 || result.Kills != 0 {
		t.Errorf("expected empty second push, got %+v", result)
	}
}

func TestPushSkipsWithoutUser(t *testing.T) {
	m, _, _ := setupManager(t)
	m.SetUserID("")

	result := m.PushPendingChanges(context.Background())
	if !result.Skipped {
		t.Error("expected push to skip with no user bound")
	}
}

func TestPushOneFailureDoesNotBlockQueue(t *testing.T) {
	m, st, remote := setupManager(t)
	ctx := context.Background()

	seedSession(t, st, "bad", schema.StatusPending)
	seedSession(t, st, "good", schema.StatusPending)
	remote.failSessionIDs["bad"] = true

	result := m.PushPendingChanges(ctx)
	if result.Sessions != 1 || result.Failed != 1 {
		t.Errorf("expected 1 uploaded, 1 failed, got %+v", result)
	}

	// The failed record stays queued and converges once the fault clears.
	pending, err := st.PendingSessions(ctx, testUserID)
	if err != nil {
		t.Fatalf("PendingSessions failed: %v", err)
	}
	if len(pending) != 1 || pending[0].ID != "bad" {
		t.Fatalf("expected only 'bad' still pending, got %+v", pending)
	}

	delete(remote.failSessionIDs, "bad")
	result = m.PushPendingChanges(ctx)
	if result.Sessions != 1 || result.Failed != 0 {
		t.Errorf("expected retry to succeed, got %+v", result)
	}
}

func TestPushReplaysUndoneKillDeletions(t *testing.T) {
	m, st, remote := setupManager(t)
	ctx := context.Background()

	seedSession(t, st, "s1", schema.StatusPending)
	if err := st.RecordKill(ctx, &schema.KillRecord{ID: "k1", SessionID: "s1"}); err != nil {
		t.Fatalf("RecordKill failed: %v", err)
	}

	m.PushPendingChanges(ctx)
	if _, ok := remote.kills["k1"]; !ok {
		t.Fatal("kill never reached the remote")
	}

	// Undo after upload: the local row is gone, so only a queued deletion
	// can remove the remote copy.
	if _, err := st.UndoLastKill(ctx, "s1"); err != nil {
		t.Fatalf("UndoLastKill failed: %v", err)
	}

	// Remote unreachable: the tombstone survives for the next pass.
	remote.failDeleteIDs["k1"] = true
	result := m.PushPendingChanges(ctx)
	if result.Deleted != 0 || result.Failed == 0 {
		t.Errorf("expected failed deletion, got %+v", result)
	}
	if _, ok := remote.kills["k1"]; !ok {
		t.Fatal("remote copy vanished despite failed delete")
	}

	delete(remote.failDeleteIDs, "k1")
	result = m.PushPendingChanges(ctx)
	if result.Deleted != 1 {
		t.Errorf("expected 1 deletion replayed, got %+v", result)
	}
	if _, ok := remote.kills["k1"]; ok {
		t.Error("undone kill still present remotely")
	}

	// Queue drained; nothing replays twice.
	ids, err := st.PendingKillDeletions(ctx, m.UserID())
	if err != nil {
		t.Fatalf("PendingKillDeletions failed: %v", err)
	}
	if len(ids) != 0 {
		t.Errorf("expected empty deletion queue, got %v", ids)
	}
}

func TestPushReentrancyGuard(t *testing.T) {
	m, st, remote := setupManager(t)
	ctx := context.Background()

	seedSession(t, st, "s1", schema.StatusPending)

	// Re-invoke mid-upload; the inner call must no-op instead of
	// uploading the same queue twice.
	var inner PushResult
	remote.onUpsertSession = func() {
		inner = m.PushPendingChanges(ctx)
	}

	outer := m.PushPendingChanges(ctx)
	if outer.Skipped || outer.Sessions != 1 {
		t.Errorf("unexpected outer result: %+v", outer)
	}
	if !inner.Skipped {
		t.Errorf("expected overlapping push to skip, got %+v", inner)
	}

	// The guard releases once the pass completes.
	remote.onUpsertSession = nil
	seedSession(t, st, "s2", schema.StatusPending)
	if result := m.PushPendingChanges(ctx); result.Skipped {
		t.Error("guard never released after push completed")
	}
}

func TestPullOverwritesStaleSyncedRows(t *testing.T) {
	m, st, remote := setupManager(t)
	ctx := context.Background()

	local := seedSession(t, st, "s1", schema.StatusSynced)
	local.TotalKills = 10
	if err := st.PutSession(ctx, local); err != nil {
		t.Fatalf("PutSession failed: %v", err)
	}

	remoteCopy := *local
	remoteCopy.TotalKills = 25
	remote.sessions["s1"] = &remoteCopy

	result, err := m.PullLatestData(ctx)
	if err != nil {
		t.Fatalf("PullLatestData failed: %v", err)
	}
	if result.Sessions != 1 || result.PendingKept != 0 {
		t.Errorf("unexpected result: %+v", result)
	}

	got, _ := st.GetSession(ctx, "s1")
	if got.TotalKills != 25 {
		t.Errorf("expected remote kill count 25, got %d", got.TotalKills)
	}
	if got.SyncStatus != schema.StatusSynced || got.LastSyncedAt == nil {
		t.Errorf("pulled row must come out synced: %+v", got)
	}
}

func TestPullNeverClobbersPendingRows(t *testing.T) {
	m, st, remote := setupManager(t)
	ctx := context.Background()

	local := seedSession(t, st, "s1", schema.StatusPending)
	local.TotalKills = 10
	if err := st.PutSession(ctx, local); err != nil {
		t.Fatalf("PutSession failed: %v", err)
	}

	remoteCopy := *local
	remoteCopy.TotalKills = 99
	remote.sessions["s1"] = &remoteCopy

	result, err := m.PullLatestData(ctx)
	if err != nil {
		t.Fatalf("PullLatestData failed: %v", err)
	}
	if result.PendingKept != 1 || result.Sessions != 0 {
		t.Errorf("unexpected result: %+v", result)
	}

	got, _ := st.GetSession(ctx, "s1")
	if got.TotalKills != 10 || got.SyncStatus != schema.StatusPending {
		t.Errorf("pending local write was clobbered: %+v", got)
	}
}

func TestPullSkipsEqualKillCounts(t *testing.T) {
	m, st, remote := setupManager(t)
	ctx := context.Background()

	local := seedSession(t, st, "s1", schema.StatusSynced)
	remoteCopy := *local
	remote.sessions["s1"] = &remoteCopy

	result, err := m.PullLatestData(ctx)
	if err != nil {
		t.Fatalf("PullLatestData failed: %v", err)
	}
	if result.Sessions != 0 {
		t.Errorf("equal counts must not rewrite the row: %+v", result)
	}
}

func TestPullInsertsMissingSessionsAndCachesStatistics(t *testing.T) {
	m, st, remote := setupManager(t)
	ctx := context.Background()

	remote.sessions["new"] = &schema.GrindSession{
		ID:         "new",
		UserID:     testUserID,
		AnimalID:   "bear",
		AnimalName: "Black Bear",
		StartDate:  time.Now().UTC(),
		IsActive:   true,
		TotalKills: 3,
		UpdatedAt:  time.Now().UTC(),
	}
	remote.stats["new"] = &schema.SessionStatistics{
		SessionID:  "new",
		TotalKills: 3,
		Diamonds:   1,
	}

	result, err := m.PullLatestData(ctx)
	if err != nil {
		t.Fatalf("PullLatestData failed: %v", err)
	}
	if result.Sessions != 1 || result.Statistics != 1 {
		t.Errorf("unexpected result: %+v", result)
	}

	got, _ := st.GetSession(ctx, "new")
	if got == nil || got.TotalKills != 3 {
		t.Fatalf("remote session was not cached: %+v", got)
	}
	stats, _ := st.GetStatistics(ctx, "new")
	if stats == nil || stats.Diamonds != 1 {
		t.Errorf("statistics were not cached: %+v", stats)
	}
}

func TestPullOverwritesErrorStatusRows(t *testing.T) {
	m, st, remote := setupManager(t)
	ctx := context.Background()

	local := seedSession(t, st, "s1", schema.StatusError)
	remoteCopy := *local
	remoteCopy.TotalKills = local.TotalKills + 5
	remote.sessions["s1"] = &remoteCopy

	result, err := m.PullLatestData(ctx)
	if err != nil {
		t.Fatalf("PullLatestData failed: %v", err)
	}
	if result.Sessions != 1 {
		t.Errorf("error-status rows should be overwritable: %+v", result)
	}

	got, _ := st.GetSession(ctx, "s1")
	if got.SyncStatus != schema.StatusSynced {
		t.Errorf("expected error row healed to synced, got %s", got.SyncStatus)
	}
}

func TestPullAbortsOnNetworkError(t *testing.T) {
	m, _, remote := setupManager(t)

	remote.selectErr = errors.New("connection refused")
	if _, err := m.PullLatestData(context.Background()); err == nil {
		t.Error("expected pull to surface the network error")
	}

	remote.selectErr = nil
	remote.statsErr = errors.New("connection refused")
	if _, err := m.PullLatestData(context.Background()); err == nil {
		t.Error("expected statistics failure to surface")
	}
}

func TestPullSkipsWithoutUser(t *testing.T) {
	m, _, _ := setupManager(t)
	m.SetUserID("")

	result, err := m.PullLatestData(context.Background())
	if err != nil {
		t.Fatalf("PullLatestData failed: %v", err)
	}
	if !result.Skipped {
		t.Error("expected pull to skip with no user bound")
	}
}

func TestResetAllDataRemoteFirst(t *testing.T) {
	m, st, remote := setupManager(t)
	ctx := context.Background()

	seedSession(t, st, "s1", schema.StatusSynced)

	// Offline reset: remote delete fails, local data must survive.
	remote.deleteErr = errors.New("connection refused")
	if err := m.ResetAllData(ctx); err == nil {
		t.Fatal("expected reset to fail while remote is unreachable")
	}
	if got, _ := st.GetSession(ctx, "s1"); got == nil {
		t.Fatal("local data wiped despite remote failure")
	}

	remote.deleteErr = nil
	if err := m.ResetAllData(ctx); err != nil {
		t.Fatalf("ResetAllData failed: %v", err)
	}
	if got, _ := st.GetSession(ctx, "s1"); got != nil {
		t.Error("expected local session deleted")
	}
}

func TestStatusSnapshot(t *testing.T) {
	m, st, _ := setupManager(t)
	ctx := context.Background()

	seedSession(t, st, "s1", schema.StatusPending)

	st2, err := m.Status(ctx)
	if err != nil {
		t.Fatalf("Status failed: %v", err)
	}
	if st2.UserID != testUserID {
		t.Errorf("unexpected user: %s", st2.UserID)
	}
	if st2.PendingSessions != 1 {
		t.Errorf("expected 1 pending session, got %d", st2.PendingSessions)
	}
	if !st2.LastPush.IsZero() {
		t.Error("expected zero last push before any pass ran")
	}

	m.PushPendingChanges(ctx)
	st2, _ = m.Status(ctx)
	if st2.LastPush.IsZero() {
		t.Error("expected last push recorded")
	}
}
