package catalog_test

import (
	"context"
	"errors"
	"testing"

	"github.com/speleodb/speleodb/pkg/catalog"
	"github.com/speleodb/speleodb/pkg/repository"
	"github.com/speleodb/speleodb/pkg/testutil"
)

var syncAuthor = repository.Author{Name: "Test Caver", Email: "caver@example.com"}

func TestSyncCommits(t *testing.T) {
	testutil.RequireGit(t)
	ctx := context.Background()
	c := catalog.New(testutil.GetKVStore(t, ctx))
	manager := testutil.GetRepositoryManager(t)

	repo, err := manager.Init("proj-1")
	if err != nil {
		t.Fatalf("Init failed: %s", err)
	}
	sha1, _, err := repo.WriteAndCommit(map[string][]byte{"a.txt": []byte("1")}, syncAuthor, "first")
	if err != nil {
		t.Fatalf("commit 1 failed: %s", err)
	}
	sha2, _, err := repo.WriteAndCommit(map[string][]byte{"a.txt": []byte("2")}, syncAuthor, "second")
	if err != nil {
		t.Fatalf("commit 2 failed: %s", err)
	}

	if err := c.SyncCommits(ctx, "proj-1", repo); err != nil {
		t.Fatalf("SyncCommits failed: %s", err)
	}

	commits, err := c.ListCommits(ctx, "proj-1")
	if err != nil {
		t.Fatalf("ListCommits failed: %s", err)
	}
	if len(commits) != 2 {
		t.Fatalf("mirrored commits: got %d, expected 2", len(commits))
	}

	root, err := c.GetCommit(ctx, "proj-1", sha1)
	if err != nil {
		t.Fatalf("GetCommit root failed: %s", err)
	}
	if len(root.Parents) != 0 {
		t.Fatalf("root parents: got %v", root.Parents)
	}
	if root.Message != "first" {
		t.Fatalf("root message: got %q", root.Message)
	}
	child, err := c.GetCommit(ctx, "proj-1", sha2)
	if err != nil {
		t.Fatalf("GetCommit child failed: %s", err)
	}
	if len(child.Parents) != 1 || child.Parents[0] != sha1 {
		t.Fatalf("child parents: got %v, expected [%s]", child.Parents, sha1)
	}
	if len(child.Tree) == 0 {
		t.Fatal("child tree snapshot missing")
	}
}

func TestSyncCommits_Idempotent(t *testing.T) {
	testutil.RequireGit(t)
	ctx := context.Background()
	c := catalog.New(testutil.GetKVStore(t, ctx))
	manager := testutil.GetRepositoryManager(t)

	repo, err := manager.Init("proj-1")
	if err != nil {
		t.Fatalf("Init failed: %s", err)
	}
	if _, _, err := repo.WriteAndCommit(map[string][]byte{"a.txt": []byte("1")}, syncAuthor, "first"); err != nil {
		t.Fatalf("commit failed: %s", err)
	}

	if err := c.SyncCommits(ctx, "proj-1", repo); err != nil {
		t.Fatalf("first SyncCommits failed: %s", err)
	}
	if err := c.SyncCommits(ctx, "proj-1", repo); err != nil {
		t.Fatalf("re-run SyncCommits failed: %s", err)
	}
	commits, err := c.ListCommits(ctx, "proj-1")
	if err != nil {
		t.Fatalf("ListCommits failed: %s", err)
	}
	if len(commits) != 1 {
		t.Fatalf("mirrored commits after re-run: got %d, expected 1", len(commits))
	}

	// new commit appears after an incremental sync
	if _, _, err := repo.WriteAndCommit(map[string][]byte{"a.txt": []byte("2")}, syncAuthor, "second"); err != nil {
		t.Fatalf("commit failed: %s", err)
	}
	if err := c.SyncCommits(ctx, "proj-1", repo); err != nil {
		t.Fatalf("incremental SyncCommits failed: %s", err)
	}
	commits, err = c.ListCommits(ctx, "proj-1")
	if err != nil {
		t.Fatalf("ListCommits failed: %s", err)
	}
	if len(commits) != 2 {
		t.Fatalf("mirrored commits after incremental sync: got %d, expected 2", len(commits))
	}
}

func TestSyncCommits_EmptyRepository(t *testing.T) {
	testutil.RequireGit(t)
	ctx := context.Background()
	c := catalog.New(testutil.GetKVStore(t, ctx))
	manager := testutil.GetRepositoryManager(t)

	repo, err := manager.Init("proj-1")
	if err != nil {
		t.Fatalf("Init failed: %s", err)
	}
	if err := c.SyncCommits(ctx, "proj-1", repo); err != nil {
		t.Fatalf("SyncCommits on empty repo failed: %s", err)
	}
	commits, err := c.ListCommits(ctx, "proj-1")
	if err != nil {
		t.Fatalf("ListCommits failed: %s", err)
	}
	if len(commits) != 0 {
		t.Fatalf("empty repo mirrored %d commits", len(commits))
	}
}

func TestGetCommit_InvalidSHA(t *testing.T) {
	ctx := context.Background()
	c := catalog.New(testutil.GetKVStore(t, ctx))
	for _, sha := range []string{"", "main", "HEAD", "xyz", "ABCDEF1234567890ABCDEF1234567890ABCDEF12"} {
		_, err := c.GetCommit(ctx, "proj-1", sha)
		if !errors.Is(err, catalog.ErrInvalidCommitRef) {
			t.Fatalf("sha %q: err=%v, expected ErrInvalidCommitRef", sha, err)
		}
	}
}
