// Package daemon provides the background process that keeps the local
// store and the remote service converged.
//
// The daemon:
//  1. Pushes pending changes immediately on start, then on a fixed interval
//  2. Watches the desktop shell's auth-state file and rebinds the sync
//     scope (plus one pull pass) whenever it changes
//  3. Broadcasts pass results for status displays
//  4. Handles graceful shutdown
//
// Pulls are deliberately not on the timer: they are more expensive and
// less urgent than pushes, so they run only on auth changes and explicit
// requests.
package daemon

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	stdsync "sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/huntmate/grindsync/internal/sync"
)

// Broadcaster receives pass results for live status displays. The
// websocket dashboard implements it; a nil Broadcaster disables
// notifications.
type Broadcaster interface {
	PushCompleted(result sync.PushResult, status sync.Status)
	PullCompleted(result sync.PullResult, status sync.Status)
}

// Config holds configuration for the daemon.
type Config struct {
	// PushInterval is how often pending changes are uploaded.
	PushInterval time.Duration

	// AuthStateFile is the JSON file the desktop shell writes on auth
	// changes. Empty disables auth watching.
	AuthStateFile string

	// Broadcaster for pass results. May be nil.
	Broadcaster Broadcaster

	// Logger for daemon activity.
	Logger *log.Logger
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		PushInterval: 30 * time.Second,
		Logger:       log.New(os.Stderr, "[daemon] ", log.LstdFlags),
	}
}

// Daemon owns the recurring push loop and the auth-state watcher.
type Daemon struct {
	manager *sync.Manager
	config  *Config

	watcher *fsnotify.Watcher

	ctx    context.Context
	cancel context.CancelFunc
	wg     stdsync.WaitGroup
}

// New creates a daemon over an existing sync manager.
func New(manager *sync.Manager, config *Config) (*Daemon, error) {
	if manager == nil {
		return nil, fmt.Errorf("manager cannot be nil")
	}
	if config == nil {
		config = DefaultConfig()
	}
	if config.Logger == nil {
		config.Logger = log.New(os.Stderr, "[daemon] ", log.LstdFlags)
	}
	if config.PushInterval <= 0 {
		config.PushInterval = 30 * time.Second
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Daemon{
		manager: manager,
		config:  config,
		ctx:     ctx,
		cancel:  cancel,
	}, nil
}

// Start begins the daemon's operation and blocks until ctx is cancelled.
func (d *Daemon) Start(ctx context.Context) error {
	d.config.Logger.Println("Starting sync daemon")

	// Bind identity from the current auth state, then pull once so a
	// fresh install converges before the first kill is recorded.
	if d.config.AuthStateFile != "" {
		d.applyAuthState()

		// Watch the parent directory: the shell replaces the file
		// atomically, so events arrive as create/rename on the dir.
		watcher, err := fsnotify.NewWatcher()
		if err != nil {
			return fmt.Errorf("failed to create watcher: %w", err)
		}
		d.watcher = watcher
		if err := watcher.Add(filepath.Dir(d.config.AuthStateFile)); err != nil {
			return fmt.Errorf("failed to watch auth state directory: %w", err)
		}

		d.wg.Add(1)
		go d.watchAuthEvents()
	}

	// Immediate push on start, then the fixed interval.
	d.push()

	d.wg.Add(1)
	go d.pushLoop()

	select {
	case <-ctx.Done():
		d.config.Logger.Println("Shutdown signal received")
		return d.Stop()
	case <-d.ctx.Done():
		return nil
	}
}

// Stop gracefully shuts down the daemon.
func (d *Daemon) Stop() error {
	d.config.Logger.Println("Stopping sync daemon")

	d.cancel()

	if d.watcher != nil {
		if err := d.watcher.Close(); err != nil {
			d.config.Logger.Printf("Error closing watcher: %v", err)
		}
	}

	d.wg.Wait()

	d.config.Logger.Println("Sync daemon stopped")
	return nil
}

// Pull runs one pull pass on demand (app foreground, user request).
func (d *Daemon) Pull() {
	result, err := d.manager.PullLatestData(d.ctx)
	if err != nil {
		// Partial pulls are fine; the next trigger repeats the pass.
		d.config.Logger.Printf("Pull aborted: %v", err)
	}
	d.notifyPull(result)
}

// pushLoop uploads pending changes on the configured interval.
func (d *Daemon) pushLoop() {
	defer d.wg.Done()

	ticker := time.NewTicker(d.config.PushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-d.ctx.Done():
			return
		case <-ticker.C:
			d.push()
		}
	}
}

func (d *Daemon) push() {
	result := d.manager.PushPendingChanges(d.ctx)
	if result.Skipped {
		return
	}
	if d.config.Broadcaster != nil {
		status, err := d.manager.Status(d.ctx)
		if err != nil {
			d.config.Logger.Printf("Failed to read sync status: %v", err)
		}
		d.config.Broadcaster.PushCompleted(result, status)
	}
}

func (d *Daemon) notifyPull(result sync.PullResult) {
	if d.config.Broadcaster == nil {
		return
	}
	status, err := d.manager.Status(d.ctx)
	if err != nil {
		d.config.Logger.Printf("Failed to read sync status: %v", err)
	}
	d.config.Broadcaster.PullCompleted(result, status)
}

// watchAuthEvents reacts to auth-state file changes.
func (d *Daemon) watchAuthEvents() {
	defer d.wg.Done()

	for {
		select {
		case <-d.ctx.Done():
			return

		case event, ok := <-d.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(d.config.AuthStateFile) {
				continue
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}

			d.config.Logger.Printf("Auth state changed: %s", event.Op)
			d.applyAuthState()

		case err, ok := <-d.watcher.Errors:
			if !ok {
				return
			}
			d.config.Logger.Printf("Watcher error: %v", err)
		}
	}
}

// applyAuthState reads the auth file, rebinds the sync scope, and runs a
// pull pass when a user is signed in.
func (d *Daemon) applyAuthState() {
	state, err := ReadAuthState(d.config.AuthStateFile)
	if err != nil {
		d.config.Logger.Printf("Failed to load auth state: %v", err)
		return
	}

	previous := d.manager.UserID()
	d.manager.SetUserID(state.PrimaryID)

	if state.PrimaryID == "" {
		return
	}
	if d.manager.UserID() != previous {
		d.Pull()
	}
}
