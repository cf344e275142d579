package testutil

import (
	"context"
	"os/exec"
	"testing"

	"github.com/speleodb/speleodb/pkg/kv"
	_ "github.com/speleodb/speleodb/pkg/kv/mem"
	"github.com/speleodb/speleodb/pkg/repository"
)

// RequireGit skips the test when no git binary is available.
func RequireGit(t testing.TB) {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git binary not found in PATH")
	}
}

// GetKVStore returns a fresh in-memory kv store.
func GetKVStore(t testing.TB, ctx context.Context) kv.Store {
	t.Helper()
	store, err := kv.Open(ctx, "mem", "")
	if err != nil {
		t.Fatalf("failed to open mem kv store: %s", err)
	}
	t.Cleanup(store.Close)
	return store
}

// GetRepositoryManager returns a repository manager rooted at a temp dir.
func GetRepositoryManager(t testing.TB) *repository.Manager {
	t.Helper()
	RequireGit(t)
	return repository.NewManager(t.TempDir())
}
