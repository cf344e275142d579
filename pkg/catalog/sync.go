package catalog

import (
	"context"
	"sort"

	"github.com/speleodb/speleodb/pkg/logging"
	"github.com/speleodb/speleodb/pkg/repository"
)

// SyncCommits mirrors the repository commit graph of the default branch into
// commit records. Commits are inserted in topological order, parents strictly
// before children, so a mirrored commit never references a parent that is not
// mirrored yet. Parents outside the walked ref (shallow or partial history)
// are dropped from the record. The operation is idempotent: a re-run with no
// new commits in the backing repository leaves the mirror unchanged.
func (c *Catalog) SyncCommits(ctx context.Context, projectID string, repo *repository.Repository) error {
	raw, err := repo.Log(repository.DefaultBranch)
	if err != nil {
		return err
	}
	if len(raw) == 0 {
		return nil
	}

	bySHA := make(map[string]repository.RawCommit, len(raw))
	for _, rc := range raw {
		bySHA[rc.SHA] = rc
	}

	inserted := 0
	for _, rc := range topoSort(raw, bySHA) {
		mirrored, err := c.HasCommit(ctx, projectID, rc.SHA)
		if err != nil {
			return err
		}
		if mirrored {
			continue
		}
		tree, err := repo.Tree(rc.SHA)
		if err != nil {
			return err
		}
		parents := make([]string, 0, len(rc.Parents))
		for _, parent := range rc.Parents {
			if _, ok := bySHA[parent]; ok {
				parents = append(parents, parent)
			}
		}
		created, err := c.insertCommit(ctx, projectID, &Commit{
			SHA:         rc.SHA,
			Parents:     parents,
			AuthorName:  rc.AuthorName,
			AuthorEmail: rc.AuthorEmail,
			AuthoredAt:  rc.AuthoredAt,
			Message:     rc.Message,
			Tree:        tree,
		})
		if err != nil {
			return err
		}
		if created {
			inserted++
		}
	}
	if inserted > 0 {
		c.log.WithContext(ctx).
			WithField(logging.ProjectFieldKey, projectID).
			WithField("commits", inserted).
			Info("commit history mirrored")
	}
	return nil
}

// topoSort orders commits so that every parent precedes its children.
// Authored date ascending is used as the visit order to keep the result
// stable; correctness relies only on the DFS, the commit graph is acyclic.
func topoSort(raw []repository.RawCommit, bySHA map[string]repository.RawCommit) []repository.RawCommit {
	seeds := make([]repository.RawCommit, len(raw))
	copy(seeds, raw)
	sort.SliceStable(seeds, func(i, j int) bool {
		return seeds[i].AuthoredAt.Before(seeds[j].AuthoredAt)
	})

	visited := make(map[string]bool, len(raw))
	ordered := make([]repository.RawCommit, 0, len(raw))
	var visit func(sha string)
	visit = func(sha string) {
		if visited[sha] {
			return
		}
		rc, ok := bySHA[sha]
		if !ok {
			return
		}
		visited[sha] = true
		for _, parent := range rc.Parents {
			visit(parent)
		}
		ordered = append(ordered, rc)
	}
	for _, rc := range seeds {
		visit(rc.SHA)
	}
	return ordered
}
