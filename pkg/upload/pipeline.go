package upload

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/xid"
	"github.com/speleodb/speleodb/pkg/catalog"
	"github.com/speleodb/speleodb/pkg/geojson"
	"github.com/speleodb/speleodb/pkg/logging"
	"github.com/speleodb/speleodb/pkg/repository"
	"github.com/speleodb/speleodb/pkg/survey"
)

// ErrIncompleteBundle is the pre-mutation rejection of a structurally
// incomplete upload. Alias of the survey package sentinel so callers can
// check either.
var ErrIncompleteBundle = survey.ErrIncompleteBundle

var ErrFormatMismatch = errors.New("bundle format does not match project format")

// Result of an upload. Created is false for a no-op upload whose content is
// byte-identical to HEAD; that is a success, not an error.
type Result struct {
	SHA      string
	Created  bool
	Artifact *catalog.Artifact
}

// Pipeline turns a named file-format bundle into a commit and, unless the
// project opts out, a derived GeoJSON artifact. The caller holds the project
// mutex for the whole call; the pipeline itself never touches it.
type Pipeline struct {
	catalog      *catalog.Catalog
	repos        *repository.Manager
	materializer *geojson.Materializer
	log          logging.Logger
}

func NewPipeline(c *catalog.Catalog, repos *repository.Manager, materializer *geojson.Materializer) *Pipeline {
	return &Pipeline{
		catalog:      c,
		repos:        repos,
		materializer: materializer,
		log:          logging.Default().WithField(logging.ServiceNameFieldKey, "upload_pipeline"),
	}
}

// Upload validates and commits a survey bundle on behalf of author.
// Failure order matters: everything up to WriteAndCommit leaves no partial
// state. After a commit exists, sync and materialization errors are returned
// alongside a non-nil Result and never undo the commit.
func (p *Pipeline) Upload(ctx context.Context, projectID, format string, bundle map[string][]byte, message string, author repository.Author) (*Result, error) {
	uploadID := xid.New().String()
	log := p.log.WithContext(ctx).WithFields(logging.Fields{
		logging.ProjectFieldKey:  projectID,
		logging.FormatFieldKey:   format,
		logging.UploadIDFieldKey: uploadID,
		logging.UserFieldKey:     author.Name,
	})

	project, err := p.catalog.GetProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if format != project.Format {
		return nil, fmt.Errorf("%w: %q uploaded to %q project", ErrFormatMismatch, format, project.Format)
	}
	surveyFormat, err := survey.ByName(format)
	if err != nil {
		return nil, err
	}
	if err := surveyFormat.ValidateBundle(bundle); err != nil {
		log.WithError(err).Info("upload rejected")
		return nil, err
	}
	files, err := surveyFormat.Layout(bundle)
	if err != nil {
		return nil, err
	}

	repo, err := p.repos.Open(projectID)
	if err != nil {
		return nil, err
	}
	sha, created, err := repo.WriteAndCommit(files, author, message)
	if err != nil {
		return nil, err
	}
	result := &Result{SHA: sha, Created: created}
	if !created {
		log.WithField(logging.CommitFieldKey, sha).Info("upload is a no-op, content identical to HEAD")
		return result, nil
	}
	log = log.WithField(logging.CommitFieldKey, sha)
	log.Info("upload committed")

	if err := p.catalog.SyncCommits(ctx, projectID, repo); err != nil {
		return result, err
	}
	if project.ExcludeGeoJSON {
		return result, nil
	}
	artifact, skipped, err := p.materializer.Materialize(ctx, project, repo, sha)
	if err != nil {
		log.WithError(err).Error("materialization failed, commit kept")
		return result, err
	}
	if !skipped {
		result.Artifact = artifact
	}
	return result, nil
}
