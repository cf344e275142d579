package repository_test

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/speleodb/speleodb/pkg/repository"
	"github.com/speleodb/speleodb/pkg/testutil"
)

var testAuthor = repository.Author{Name: "Test Caver", Email: "caver@example.com"}

func TestManager_OpenMissing(t *testing.T) {
	testutil.RequireGit(t)
	manager := testutil.GetRepositoryManager(t)
	_, err := manager.Open("no-such-project")
	if !errors.Is(err, repository.ErrRepositoryNotFound) {
		t.Fatalf("Open missing repo: err=%v, expected ErrRepositoryNotFound", err)
	}
}

func TestManager_InitOpen(t *testing.T) {
	testutil.RequireGit(t)
	manager := testutil.GetRepositoryManager(t)
	if _, err := manager.Init("proj-1"); err != nil {
		t.Fatalf("Init failed: %s", err)
	}
	if _, err := manager.Open("proj-1"); err != nil {
		t.Fatalf("Open after Init failed: %s", err)
	}
}

func TestRepository_WriteAndCommit(t *testing.T) {
	testutil.RequireGit(t)
	manager := testutil.GetRepositoryManager(t)
	repo, err := manager.Init("proj-1")
	if err != nil {
		t.Fatalf("Init failed: %s", err)
	}

	files := map[string][]byte{
		"cave.mak":        []byte("#cave.dat;\n"),
		"data/cave.dat":   []byte("survey\n"),
		"notes/readme.md": []byte("first trip\n"),
	}
	sha1, created, err := repo.WriteAndCommit(files, testAuthor, "initial upload")
	if err != nil {
		t.Fatalf("WriteAndCommit failed: %s", err)
	}
	if !created {
		t.Fatal("expected first commit to be created")
	}

	// identical content again - no commit, same sha
	sha2, created, err := repo.WriteAndCommit(files, testAuthor, "duplicate upload")
	if err != nil {
		t.Fatalf("duplicate WriteAndCommit failed: %s", err)
	}
	if created {
		t.Fatal("identical content produced a new commit")
	}
	if sha2 != sha1 {
		t.Fatalf("duplicate upload sha: got %s, expected %s", sha2, sha1)
	}

	// changed content - new commit
	files["data/cave.dat"] = []byte("survey v2\n")
	sha3, created, err := repo.WriteAndCommit(files, testAuthor, "second upload")
	if err != nil {
		t.Fatalf("second WriteAndCommit failed: %s", err)
	}
	if !created || sha3 == sha1 {
		t.Fatalf("changed content: created=%t sha=%s (previous %s)", created, sha3, sha1)
	}
}

func TestRepository_WriteAndCommit_InvalidPath(t *testing.T) {
	testutil.RequireGit(t)
	manager := testutil.GetRepositoryManager(t)
	repo, err := manager.Init("proj-1")
	if err != nil {
		t.Fatalf("Init failed: %s", err)
	}
	for _, name := range []string{"/etc/passwd", "../escape.dat", "a/../../escape.dat"} {
		_, _, err := repo.WriteAndCommit(map[string][]byte{name: []byte("x")}, testAuthor, "bad")
		if !errors.Is(err, repository.ErrInvalidPath) {
			t.Fatalf("path %q: err=%v, expected ErrInvalidPath", name, err)
		}
	}
}

func TestRepository_LogEmpty(t *testing.T) {
	testutil.RequireGit(t)
	manager := testutil.GetRepositoryManager(t)
	repo, err := manager.Init("proj-1")
	if err != nil {
		t.Fatalf("Init failed: %s", err)
	}
	commits, err := repo.Log(repository.DefaultBranch)
	if err != nil {
		t.Fatalf("Log on empty repo failed: %s", err)
	}
	if len(commits) != 0 {
		t.Fatalf("Log on empty repo: got %d commits", len(commits))
	}
}

func TestRepository_Log(t *testing.T) {
	testutil.RequireGit(t)
	manager := testutil.GetRepositoryManager(t)
	repo, err := manager.Init("proj-1")
	if err != nil {
		t.Fatalf("Init failed: %s", err)
	}
	sha1, _, err := repo.WriteAndCommit(map[string][]byte{"a.txt": []byte("1")}, testAuthor, "first\n\nwith body")
	if err != nil {
		t.Fatalf("commit 1 failed: %s", err)
	}
	sha2, _, err := repo.WriteAndCommit(map[string][]byte{"a.txt": []byte("2")}, testAuthor, "second")
	if err != nil {
		t.Fatalf("commit 2 failed: %s", err)
	}

	commits, err := repo.Log(repository.DefaultBranch)
	if err != nil {
		t.Fatalf("Log failed: %s", err)
	}
	if len(commits) != 2 {
		t.Fatalf("Log: got %d commits, expected 2", len(commits))
	}
	// newest first
	if commits[0].SHA != sha2 || commits[1].SHA != sha1 {
		t.Fatalf("Log order: got %s,%s expected %s,%s", commits[0].SHA, commits[1].SHA, sha2, sha1)
	}
	if commits[0].Message != "second" {
		t.Fatalf("message: got %q", commits[0].Message)
	}
	if commits[1].Message != "first\n\nwith body" {
		t.Fatalf("multi-line message: got %q", commits[1].Message)
	}
	if len(commits[1].Parents) != 0 {
		t.Fatalf("root commit parents: got %v", commits[1].Parents)
	}
	if len(commits[0].Parents) != 1 || commits[0].Parents[0] != sha1 {
		t.Fatalf("child parents: got %v, expected [%s]", commits[0].Parents, sha1)
	}
	if commits[0].AuthorName != testAuthor.Name || commits[0].AuthorEmail != testAuthor.Email {
		t.Fatalf("author: got %s <%s>", commits[0].AuthorName, commits[0].AuthorEmail)
	}
}

func TestRepository_Log_SeparatorBytesInMessage(t *testing.T) {
	testutil.RequireGit(t)
	manager := testutil.GetRepositoryManager(t)
	repo, err := manager.Init("proj-1")
	if err != nil {
		t.Fatalf("Init failed: %s", err)
	}
	// control bytes in a message must not break record parsing
	message := "survey\x1fnotes\x1eand more"
	sha, _, err := repo.WriteAndCommit(map[string][]byte{"a.txt": []byte("1")}, testAuthor, message)
	if err != nil {
		t.Fatalf("commit failed: %s", err)
	}
	commits, err := repo.Log(repository.DefaultBranch)
	if err != nil {
		t.Fatalf("Log failed: %s", err)
	}
	if len(commits) != 1 {
		t.Fatalf("Log: got %d commits, expected 1", len(commits))
	}
	if commits[0].SHA != sha {
		t.Fatalf("sha: got %s, expected %s", commits[0].SHA, sha)
	}
	if commits[0].Message != message {
		t.Fatalf("message round-trip: got %q, expected %q", commits[0].Message, message)
	}
}

func TestRepository_CheckoutCommit(t *testing.T) {
	testutil.RequireGit(t)
	manager := testutil.GetRepositoryManager(t)
	repo, err := manager.Init("proj-1")
	if err != nil {
		t.Fatalf("Init failed: %s", err)
	}
	sha1, _, err := repo.WriteAndCommit(map[string][]byte{"a.txt": []byte("1")}, testAuthor, "first")
	if err != nil {
		t.Fatalf("commit 1 failed: %s", err)
	}
	sha2, _, err := repo.WriteAndCommit(map[string][]byte{"a.txt": []byte("2")}, testAuthor, "second")
	if err != nil {
		t.Fatalf("commit 2 failed: %s", err)
	}

	// detached checkout of the older commit moves HEAD and the work tree
	if err := repo.CheckoutCommit(sha1); err != nil {
		t.Fatalf("CheckoutCommit failed: %s", err)
	}
	head, err := repo.Head()
	if err != nil {
		t.Fatalf("Head failed: %s", err)
	}
	if head != sha1 {
		t.Fatalf("HEAD after checkout: got %s, expected %s", head, sha1)
	}
	content, err := os.ReadFile(filepath.Join(repo.Dir(), "a.txt"))
	if err != nil {
		t.Fatalf("read work tree failed: %s", err)
	}
	if string(content) != "1" {
		t.Fatalf("work tree content at old commit: got %q", content)
	}

	// CheckoutDefault returns to the branch tip; no remote configured is fine
	if err := repo.CheckoutDefault(); err != nil {
		t.Fatalf("CheckoutDefault failed: %s", err)
	}
	head, err = repo.Head()
	if err != nil {
		t.Fatalf("Head failed: %s", err)
	}
	if head != sha2 {
		t.Fatalf("HEAD after default checkout: got %s, expected %s", head, sha2)
	}
}

func TestRepository_WriteAndCommit_AfterDetachedCheckout(t *testing.T) {
	testutil.RequireGit(t)
	manager := testutil.GetRepositoryManager(t)
	repo, err := manager.Init("proj-1")
	if err != nil {
		t.Fatalf("Init failed: %s", err)
	}
	sha1, _, err := repo.WriteAndCommit(map[string][]byte{"a.txt": []byte("1")}, testAuthor, "first")
	if err != nil {
		t.Fatalf("commit 1 failed: %s", err)
	}
	if _, _, err := repo.WriteAndCommit(map[string][]byte{"a.txt": []byte("2")}, testAuthor, "second"); err != nil {
		t.Fatalf("commit 2 failed: %s", err)
	}
	if err := repo.CheckoutCommit(sha1); err != nil {
		t.Fatalf("CheckoutCommit failed: %s", err)
	}

	// an upload lands on the default branch even when an editing session left
	// HEAD detached
	sha3, created, err := repo.WriteAndCommit(map[string][]byte{"a.txt": []byte("3")}, testAuthor, "third")
	if err != nil {
		t.Fatalf("WriteAndCommit after detach failed: %s", err)
	}
	if !created {
		t.Fatal("expected a new commit")
	}
	commits, err := repo.Log(repository.DefaultBranch)
	if err != nil {
		t.Fatalf("Log failed: %s", err)
	}
	if len(commits) != 3 || commits[0].SHA != sha3 {
		t.Fatalf("branch tip after detached upload: got %d commits, tip %s", len(commits), commits[0].SHA)
	}
}

func TestRepository_TreeAndReadFileAt(t *testing.T) {
	testutil.RequireGit(t)
	manager := testutil.GetRepositoryManager(t)
	repo, err := manager.Init("proj-1")
	if err != nil {
		t.Fatalf("Init failed: %s", err)
	}
	content := []byte("FROM TO LEN\nA1 A2 10.0\n")
	sha, _, err := repo.WriteAndCommit(map[string][]byte{"data/cave.dat": content}, testAuthor, "upload")
	if err != nil {
		t.Fatalf("WriteAndCommit failed: %s", err)
	}

	entries, err := repo.Tree(sha)
	if err != nil {
		t.Fatalf("Tree failed: %s", err)
	}
	var blobPath string
	sawDir := false
	for _, e := range entries {
		switch {
		case e.Type == "blob":
			blobPath = e.Path
		case e.Type == "tree" && e.Path == "data":
			sawDir = true
		}
	}
	if blobPath != "data/cave.dat" {
		t.Fatalf("blob path: got %q", blobPath)
	}
	if !sawDir {
		t.Fatal("tree entry for data/ directory missing")
	}

	read, err := repo.ReadFileAt(sha, "data/cave.dat")
	if err != nil {
		t.Fatalf("ReadFileAt failed: %s", err)
	}
	if !bytes.Equal(read, content) {
		t.Fatalf("ReadFileAt content mismatch: got %q", read)
	}
}
