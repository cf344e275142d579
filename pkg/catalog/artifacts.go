package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/speleodb/speleodb/pkg/kv"
)

// Artifact is a derived GeoJSON object record, keyed by (project, commit sha).
// The commit author, message and date are denormalized so listings do not
// re-read the commit record. Immutable once created; never edited, only
// created or left absent.
type Artifact struct {
	ProjectID  string    `json:"project_id"`
	CommitSHA  string    `json:"commit_sha"`
	AuthorName string    `json:"author_name"`
	Message    string    `json:"message"`
	CommitDate time.Time `json:"commit_date"`
	StorageKey string    `json:"storage_key"`
	CreatedAt  time.Time `json:"created_at"`
}

func artifactKey(projectID, sha string) []byte {
	return []byte(kv.FormatPath(artifactsPrefix, projectID, sha))
}

// ArtifactStorageKey is the object storage key of a materialized artifact.
func ArtifactStorageKey(projectID, sha string) string {
	return fmt.Sprintf("geojson/%s/%s.json", projectID, sha)
}

// InsertArtifact records a materialized artifact if absent. Returns false when
// an artifact already exists for the (project, sha) key.
func (c *Catalog) InsertArtifact(ctx context.Context, artifact *Artifact) (bool, error) {
	value, err := json.Marshal(artifact)
	if err != nil {
		return false, err
	}
	err = c.store.SetIf(ctx, artifactKey(artifact.ProjectID, artifact.CommitSHA), value, nil)
	if errors.Is(err, kv.ErrPredicateFailed) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// GetArtifact returns the artifact for the (project, sha) key.
func (c *Catalog) GetArtifact(ctx context.Context, projectID, sha string) (*Artifact, error) {
	if err := ValidateSHA(sha); err != nil {
		return nil, err
	}
	value, err := c.store.Get(ctx, artifactKey(projectID, sha))
	if errors.Is(err, kv.ErrNotFound) {
		return nil, fmt.Errorf("artifact %s@%s: %w", projectID, sha, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	var artifact Artifact
	if err := json.Unmarshal(value, &artifact); err != nil {
		return nil, err
	}
	return &artifact, nil
}

// ListArtifacts returns all artifacts of the project, ordered by commit sha.
func (c *Catalog) ListArtifacts(ctx context.Context, projectID string) ([]*Artifact, error) {
	prefix := kv.FormatPath(artifactsPrefix, projectID) + kv.PathDelimiter
	iter, err := kv.ScanPrefix(ctx, c.store, []byte(prefix))
	if err != nil {
		return nil, err
	}
	defer iter.Close()
	var artifacts []*Artifact
	for iter.Next() {
		var artifact Artifact
		if err := json.Unmarshal(iter.Entry().Value, &artifact); err != nil {
			return nil, err
		}
		artifacts = append(artifacts, &artifact)
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	return artifacts, nil
}

// LatestArtifact returns the project artifact with the most recent commit
// date, or ErrNotFound when the project has none.
func (c *Catalog) LatestArtifact(ctx context.Context, projectID string) (*Artifact, error) {
	artifacts, err := c.ListArtifacts(ctx, projectID)
	if err != nil {
		return nil, err
	}
	var latest *Artifact
	for _, artifact := range artifacts {
		if latest == nil || artifact.CommitDate.After(latest.CommitDate) {
			latest = artifact
		}
	}
	if latest == nil {
		return nil, fmt.Errorf("artifacts for %s: %w", projectID, ErrNotFound)
	}
	return latest, nil
}
