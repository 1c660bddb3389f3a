package daemon

import (
	"encoding/json"
	"fmt"
	"os"
)

// AuthState is the file the desktop shell writes on every auth change.
// It carries the primary-system subject; the daemon maps it to the
// secondary identifier itself and never stores the mapping.
type AuthState struct {
	PrimaryID string `json:"primary_id"`
	Email     string `json:"email,omitempty"`
}

// ReadAuthState reads the auth-state file.
//
// A missing file is the signed-out state, not an error: it returns an
// empty AuthState so the caller clears the sync scope.
func ReadAuthState(path string) (AuthState, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return AuthState{}, nil
	}
	if err != nil {
		return AuthState{}, fmt.Errorf("failed to read auth state: %w", err)
	}

	var state AuthState
	if err := json.Unmarshal(data, &state); err != nil {
		return AuthState{}, fmt.Errorf("failed to parse auth state %s: %w", path, err)
	}
	return state, nil
}
