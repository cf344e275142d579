package geojson

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/speleodb/speleodb/pkg/block"
	"github.com/speleodb/speleodb/pkg/catalog"
	"github.com/speleodb/speleodb/pkg/logging"
	"github.com/speleodb/speleodb/pkg/repository"
	"github.com/speleodb/speleodb/pkg/survey"
)

var ErrMaterialization = errors.New("materialization failed")

// Materializer derives GeoJSON artifacts from survey data at a specific
// commit and persists them keyed by (project, commit sha).
type Materializer struct {
	catalog *catalog.Catalog
	adapter block.Adapter
	log     logging.Logger
}

func NewMaterializer(c *catalog.Catalog, adapter block.Adapter) *Materializer {
	return &Materializer{
		catalog: c,
		adapter: adapter,
		log:     logging.Default().WithField(logging.ServiceNameFieldKey, "geojson_materializer"),
	}
}

// Materialize builds and stores the artifact for (project, sha).
// Skips with no error (skipped=true, nil artifact) when the project excludes
// GeoJSON or the committed bundle is structurally incomplete for its format.
// When an artifact already exists for the key, the call is a no-op and the
// existing artifact is returned. A geometry build failure on otherwise valid
// data is reported to the caller; the commit is never rolled back.
func (m *Materializer) Materialize(ctx context.Context, project *catalog.Project, repo *repository.Repository, sha string) (*catalog.Artifact, bool, error) {
	if err := catalog.ValidateSHA(sha); err != nil {
		return nil, false, err
	}
	log := m.log.WithContext(ctx).
		WithField(logging.ProjectFieldKey, project.ID).
		WithField(logging.CommitFieldKey, sha)

	if project.ExcludeGeoJSON {
		log.Debug("materialization skipped: project excludes geojson")
		return nil, true, nil
	}
	existing, err := m.catalog.GetArtifact(ctx, project.ID, sha)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, catalog.ErrNotFound) {
		return nil, false, err
	}

	commit, err := m.catalog.GetCommit(ctx, project.ID, sha)
	if err != nil {
		return nil, false, err
	}
	var paths []string
	for _, entry := range commit.Tree {
		if entry.Type == "blob" {
			paths = append(paths, entry.Path)
		}
	}

	format, err := survey.ByName(project.Format)
	if err != nil {
		return nil, false, err
	}
	if !format.IsComplete(paths) {
		log.Info("materialization skipped: bundle incomplete at commit")
		return nil, true, nil
	}

	network, err := format.ParseNetwork(func(path string) ([]byte, error) {
		return repo.ReadFileAt(sha, path)
	}, paths)
	if err != nil {
		return nil, false, fmt.Errorf("%w: %s", ErrMaterialization, err)
	}

	collection := BuildFeatureCollection(project, sha, network)
	payload, err := json.Marshal(collection)
	if err != nil {
		return nil, false, fmt.Errorf("%w: %s", ErrMaterialization, err)
	}

	key := catalog.ArtifactStorageKey(project.ID, sha)
	if err := m.adapter.Put(ctx, key, bytes.NewReader(payload)); err != nil {
		return nil, false, fmt.Errorf("%w: %s", ErrMaterialization, err)
	}

	artifact := &catalog.Artifact{
		ProjectID:  project.ID,
		CommitSHA:  sha,
		AuthorName: commit.AuthorName,
		Message:    commit.Message,
		CommitDate: commit.AuthoredAt,
		StorageKey: key,
		CreatedAt:  time.Now().UTC(),
	}
	created, err := m.catalog.InsertArtifact(ctx, artifact)
	if err != nil {
		return nil, false, err
	}
	if created {
		log.WithField(logging.StorageKeyFieldKey, key).Info("geojson artifact materialized")
	}
	return artifact, false, nil
}
