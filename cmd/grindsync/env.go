package main

import (
	"fmt"

	"github.com/huntmate/grindsync/internal/config"
	"github.com/huntmate/grindsync/internal/daemon"
	"github.com/huntmate/grindsync/internal/remote"
	"github.com/huntmate/grindsync/internal/store"
	"github.com/huntmate/grindsync/internal/sync"
)

// env bundles the pieces most commands need.
type env struct {
	cfg     *config.Config
	store   *store.Store
	manager *sync.Manager
}

func (e *env) close() {
	if e.store != nil {
		_ = e.store.Close()
	}
}

// openEnv loads config, opens the local store, and builds a sync manager.
// withRemote controls whether a remote connection is required; status-only
// commands work fully offline.
func openEnv(withRemote bool) (*env, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	st, err := store.Open(cfg.Database.Path)
	if err != nil {
		return nil, err
	}
	if err := st.InitSchema(); err != nil {
		_ = st.Close()
		return nil, err
	}

	var svc sync.RemoteService
	if withRemote {
		if cfg.Remote.DSN == "" {
			_ = st.Close()
			return nil, fmt.Errorf("remote.dsn is not configured")
		}
		svc, err = remote.Open(cfg.Remote.DSN)
		if err != nil {
			_ = st.Close()
			return nil, err
		}
	}

	logger := config.NewLogger("[sync] ", cfg.Log)
	manager := sync.New(st, svc, logger)

	// Bind whatever identity the shell last wrote; a missing file just
	// leaves sync disabled.
	state, err := daemon.ReadAuthState(cfg.Sync.AuthStateFile)
	if err == nil {
		manager.SetUserID(state.PrimaryID)
	}

	return &env{cfg: cfg, store: st, manager: manager}, nil
}
