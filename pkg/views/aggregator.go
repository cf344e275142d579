package views

import (
	"context"
	"errors"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/speleodb/speleodb/pkg/block"
	"github.com/speleodb/speleodb/pkg/catalog"
	"github.com/speleodb/speleodb/pkg/logging"
)

// ResolvedEntry is one consumable map-data feed entry: a signed, time-limited
// download URL for a project artifact.
type ResolvedEntry struct {
	ProjectID   string    `json:"project_id"`
	ProjectName string    `json:"project_name"`
	CommitSHA   string    `json:"commit_sha"`
	CommitDate  time.Time `json:"commit_date"`
	URL         string    `json:"url"`
	UseLatest   bool      `json:"use_latest"`
}

// Aggregator resolves views into signed artifact URLs. Read-only: never
// touches the project mutex and never caches resolution results.
type Aggregator struct {
	catalog *catalog.Catalog
	adapter block.Adapter
	log     logging.Logger
}

func NewAggregator(c *catalog.Catalog, adapter block.Adapter) *Aggregator {
	return &Aggregator{
		catalog: c,
		adapter: adapter,
		log:     logging.Default().WithField(logging.ServiceNameFieldKey, "view_aggregator"),
	}
}

// Resolve materializes the view into available entries. expiresIn is clamped
// to the accepted signing range before use. Entries whose artifact is missing
// or whose URL cannot be signed are omitted; partial results are a success.
// A deactivated view resolves to an empty list.
func (a *Aggregator) Resolve(ctx context.Context, viewID string, expiresIn time.Duration) ([]ResolvedEntry, error) {
	view, err := a.catalog.GetView(ctx, viewID)
	if err != nil {
		return nil, err
	}
	log := a.log.WithContext(ctx).WithField(logging.ViewFieldKey, viewID)
	if !view.Active {
		log.Debug("view is inactive, resolving to empty result")
		return nil, nil
	}
	expiresIn = block.ClampExpiry(expiresIn)

	var (
		resolved []ResolvedEntry
		signErrs *multierror.Error
	)
	for _, entry := range view.Entries {
		artifact, err := a.lookupArtifact(ctx, entry)
		if err != nil {
			if !errors.Is(err, catalog.ErrNotFound) {
				return nil, err
			}
			log.WithField(logging.ProjectFieldKey, entry.ProjectID).
				Debug("no artifact for view entry, omitted")
			continue
		}
		project, err := a.catalog.GetProject(ctx, entry.ProjectID)
		if err != nil {
			if !errors.Is(err, catalog.ErrNotFound) {
				return nil, err
			}
			continue
		}
		url, err := a.adapter.GetPreSignedURL(ctx, artifact.StorageKey, expiresIn)
		if err != nil {
			signErrs = multierror.Append(signErrs, err)
			continue
		}
		resolved = append(resolved, ResolvedEntry{
			ProjectID:   project.ID,
			ProjectName: project.Name,
			CommitSHA:   artifact.CommitSHA,
			CommitDate:  artifact.CommitDate,
			URL:         url,
			UseLatest:   entry.UseLatest,
		})
	}
	if err := signErrs.ErrorOrNil(); err != nil {
		// per-entry failures are logged and omitted, the call still succeeds
		log.WithError(err).Warn("some view entries could not be signed")
	}
	return resolved, nil
}

func (a *Aggregator) lookupArtifact(ctx context.Context, entry catalog.ViewEntry) (*catalog.Artifact, error) {
	if entry.UseLatest {
		return a.catalog.LatestArtifact(ctx, entry.ProjectID)
	}
	return a.catalog.GetArtifact(ctx, entry.ProjectID, entry.CommitSHA)
}
