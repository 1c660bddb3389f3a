package daemon

import (
	"os"
	"path/filepath"
	"testing"
)

func TestReadAuthStateMissingFile(t *testing.T) {
	state, err := ReadAuthState(filepath.Join(t.TempDir(), "auth.json"))
	if err != nil {
		t.Fatalf("missing file must read as signed-out, got error: %v", err)
	}
	if state.PrimaryID != "" || state.Email != "" {
		t.Errorf("expected empty state, got %+v", state)
	}
}

func TestReadAuthState(t *testing.T) {
	path := filepath.Join(t.TempDir(), "auth.json")
	content := `{"primary_id":"steam:76561198012345678","email":"hunter@example.com"}`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write auth file: %v", err)
	}

	state, err := ReadAuthState(path)
	if err != nil {
		t.Fatalf("ReadAuthState failed: %v", err)
	}
	if state.PrimaryID != "steam:76561198012345678" {
		t.Errorf("unexpected primary ID: %s", state.PrimaryID)
	}
	if state.Email != "hunter@example.com" {
		t.Errorf("unexpected email: %s", state.Email)
	}
}

func TestReadAuthStateInvalidJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "auth.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("failed to write auth file: %v", err)
	}

	if _, err := ReadAuthState(path); err == nil {
		t.Error("expected parse error for invalid JSON")
	}
}
