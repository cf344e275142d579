package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/speleodb/speleodb/pkg/kv"
	"github.com/speleodb/speleodb/pkg/repository"
)

// Commit is an immutable mirrored commit record. Rows are only ever inserted,
// never updated or deleted.
type Commit struct {
	SHA         string                 `json:"sha"`
	Parents     []string               `json:"parents"`
	AuthorName  string                 `json:"author_name"`
	AuthorEmail string                 `json:"author_email"`
	AuthoredAt  time.Time              `json:"authored_at"`
	Message     string                 `json:"message"`
	Tree        []repository.TreeEntry `json:"tree"`
}

func commitKey(projectID, sha string) []byte {
	return []byte(kv.FormatPath(commitsPrefix, projectID, sha))
}

// insertCommit writes a commit record if absent. Returns false when the sha
// was already mirrored.
func (c *Catalog) insertCommit(ctx context.Context, projectID string, commit *Commit) (bool, error) {
	value, err := json.Marshal(commit)
	if err != nil {
		return false, err
	}
	err = c.store.SetIf(ctx, commitKey(projectID, commit.SHA), value, nil)
	if errors.Is(err, kv.ErrPredicateFailed) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// GetCommit returns the mirrored record for the given sha.
func (c *Catalog) GetCommit(ctx context.Context, projectID, sha string) (*Commit, error) {
	if err := ValidateSHA(sha); err != nil {
		return nil, err
	}
	value, err := c.store.Get(ctx, commitKey(projectID, sha))
	if errors.Is(err, kv.ErrNotFound) {
		return nil, fmt.Errorf("commit %s: %w", sha, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	var commit Commit
	if err := json.Unmarshal(value, &commit); err != nil {
		return nil, err
	}
	return &commit, nil
}

// HasCommit reports whether the sha is already mirrored.
func (c *Catalog) HasCommit(ctx context.Context, projectID, sha string) (bool, error) {
	_, err := c.store.Get(ctx, commitKey(projectID, sha))
	if errors.Is(err, kv.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// ListCommits returns all mirrored commit records for the project, ordered by sha.
func (c *Catalog) ListCommits(ctx context.Context, projectID string) ([]*Commit, error) {
	prefix := kv.FormatPath(commitsPrefix, projectID) + kv.PathDelimiter
	iter, err := kv.ScanPrefix(ctx, c.store, []byte(prefix))
	if err != nil {
		return nil, err
	}
	defer iter.Close()
	var commits []*Commit
	for iter.Next() {
		var commit Commit
		if err := json.Unmarshal(iter.Entry().Value, &commit); err != nil {
			return nil, err
		}
		commits = append(commits, &commit)
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	return commits, nil
}
