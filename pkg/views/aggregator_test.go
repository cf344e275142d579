package views_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/speleodb/speleodb/pkg/block/mem"
	"github.com/speleodb/speleodb/pkg/catalog"
	"github.com/speleodb/speleodb/pkg/testutil"
	"github.com/speleodb/speleodb/pkg/views"
)

type aggregatorEnv struct {
	catalog    *catalog.Catalog
	adapter    *mem.Adapter
	aggregator *views.Aggregator
}

func setupAggregator(t *testing.T, ctx context.Context) *aggregatorEnv {
	t.Helper()
	c := catalog.New(testutil.GetKVStore(t, ctx))
	adapter := mem.New(ctx)
	return &aggregatorEnv{
		catalog:    c,
		adapter:    adapter,
		aggregator: views.NewAggregator(c, adapter),
	}
}

// addArtifact registers a project with one stored artifact and returns the
// project id and commit sha.
func (env *aggregatorEnv) addArtifact(t *testing.T, ctx context.Context, name string, shaByte byte, commitDate time.Time) (string, string) {
	t.Helper()
	project, err := env.catalog.CreateProject(ctx, name, catalog.FormatAriane, false, "alice")
	require.NoError(t, err)
	sha := strings.Repeat(string(shaByte), 40)
	key := catalog.ArtifactStorageKey(project.ID, sha)
	require.NoError(t, env.adapter.Put(ctx, key, strings.NewReader(`{"type":"FeatureCollection"}`)))
	created, err := env.catalog.InsertArtifact(ctx, &catalog.Artifact{
		ProjectID:  project.ID,
		CommitSHA:  sha,
		AuthorName: "alice",
		Message:    "survey",
		CommitDate: commitDate,
		StorageKey: key,
		CreatedAt:  time.Now().UTC(),
	})
	require.NoError(t, err)
	require.True(t, created)
	return project.ID, sha
}

func TestResolve(t *testing.T) {
	ctx := context.Background()
	env := setupAggregator(t, ctx)

	pinnedProject, pinnedSHA := env.addArtifact(t, ctx, "Pinned Cave", 'a', time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC))
	latestProject, _ := env.addArtifact(t, ctx, "Latest Cave", 'b', time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC))
	// a newer artifact on the latest-tracking project
	newerSHA := strings.Repeat("c", 40)
	newerKey := catalog.ArtifactStorageKey(latestProject, newerSHA)
	require.NoError(t, env.adapter.Put(ctx, newerKey, strings.NewReader(`{}`)))
	created, err := env.catalog.InsertArtifact(ctx, &catalog.Artifact{
		ProjectID:  latestProject,
		CommitSHA:  newerSHA,
		CommitDate: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
		StorageKey: newerKey,
		CreatedAt:  time.Now().UTC(),
	})
	require.NoError(t, err)
	require.True(t, created)

	view, err := env.catalog.CreateView(ctx, "overview", []catalog.ViewEntry{
		{ProjectID: pinnedProject, CommitSHA: pinnedSHA},
		{ProjectID: latestProject, UseLatest: true},
	}, "alice")
	require.NoError(t, err)

	resolved, err := env.aggregator.Resolve(ctx, view.ID, time.Hour)
	require.NoError(t, err)
	require.Len(t, resolved, 2)

	byProject := make(map[string]views.ResolvedEntry, len(resolved))
	for _, entry := range resolved {
		byProject[entry.ProjectID] = entry
	}
	require.Equal(t, pinnedSHA, byProject[pinnedProject].CommitSHA)
	require.False(t, byProject[pinnedProject].UseLatest)
	// the latest-tracking entry picked the newer artifact
	require.Equal(t, newerSHA, byProject[latestProject].CommitSHA)
	require.True(t, byProject[latestProject].UseLatest)
	for _, entry := range resolved {
		require.Contains(t, entry.URL, "expires=3600")
	}
}

func TestResolve_ExpiryClamped(t *testing.T) {
	ctx := context.Background()
	env := setupAggregator(t, ctx)
	projectID, sha := env.addArtifact(t, ctx, "Cave", 'a', time.Now().UTC())

	view, err := env.catalog.CreateView(ctx, "overview", []catalog.ViewEntry{
		{ProjectID: projectID, CommitSHA: sha},
	}, "alice")
	require.NoError(t, err)

	// below the minimum: clamped up to one minute
	resolved, err := env.aggregator.Resolve(ctx, view.ID, time.Second)
	require.NoError(t, err)
	require.Len(t, resolved, 1)
	require.Contains(t, resolved[0].URL, "expires=60")

	// above the maximum: clamped down to 24 hours
	resolved, err = env.aggregator.Resolve(ctx, view.ID, 30*24*time.Hour)
	require.NoError(t, err)
	require.Len(t, resolved, 1)
	require.Contains(t, resolved[0].URL, "expires=86400")
}

func TestResolve_MissingArtifactOmitted(t *testing.T) {
	ctx := context.Background()
	env := setupAggregator(t, ctx)
	projectID, sha := env.addArtifact(t, ctx, "Cave", 'a', time.Now().UTC())

	// a second project with no artifact at all
	emptyProject, err := env.catalog.CreateProject(ctx, "Unsurveyed Cave", catalog.FormatAriane, false, "alice")
	require.NoError(t, err)

	view, err := env.catalog.CreateView(ctx, "overview", []catalog.ViewEntry{
		{ProjectID: projectID, CommitSHA: sha},
		{ProjectID: emptyProject.ID, UseLatest: true},
	}, "alice")
	require.NoError(t, err)

	resolved, err := env.aggregator.Resolve(ctx, view.ID, time.Hour)
	require.NoError(t, err)
	require.Len(t, resolved, 1)
	require.Equal(t, projectID, resolved[0].ProjectID)
}

func TestResolve_SignFailureOmitted(t *testing.T) {
	ctx := context.Background()
	env := setupAggregator(t, ctx)
	okProject, okSHA := env.addArtifact(t, ctx, "Good Cave", 'a', time.Now().UTC())
	badProject, badSHA := env.addArtifact(t, ctx, "Bad Cave", 'b', time.Now().UTC())
	env.adapter.SetPreSignFailure(catalog.ArtifactStorageKey(badProject, badSHA))

	view, err := env.catalog.CreateView(ctx, "overview", []catalog.ViewEntry{
		{ProjectID: okProject, CommitSHA: okSHA},
		{ProjectID: badProject, CommitSHA: badSHA},
	}, "alice")
	require.NoError(t, err)

	// the signing failure is omitted, the rest of the view still resolves
	resolved, err := env.aggregator.Resolve(ctx, view.ID, time.Hour)
	require.NoError(t, err)
	require.Len(t, resolved, 1)
	require.Equal(t, okProject, resolved[0].ProjectID)
}

func TestResolve_InactiveView(t *testing.T) {
	ctx := context.Background()
	env := setupAggregator(t, ctx)
	projectID, sha := env.addArtifact(t, ctx, "Cave", 'a', time.Now().UTC())

	view, err := env.catalog.CreateView(ctx, "overview", []catalog.ViewEntry{
		{ProjectID: projectID, CommitSHA: sha},
	}, "alice")
	require.NoError(t, err)
	require.NoError(t, env.catalog.DeactivateView(ctx, view.ID, "alice"))

	resolved, err := env.aggregator.Resolve(ctx, view.ID, time.Hour)
	require.NoError(t, err)
	require.Empty(t, resolved)

	// reactivation is an explicit grant that restores resolution
	require.NoError(t, env.catalog.ReactivateView(ctx, view.ID, "alice"))
	resolved, err = env.aggregator.Resolve(ctx, view.ID, time.Hour)
	require.NoError(t, err)
	require.Len(t, resolved, 1)
}

func TestResolve_UnknownView(t *testing.T) {
	ctx := context.Background()
	env := setupAggregator(t, ctx)
	_, err := env.aggregator.Resolve(ctx, "no-such-view", time.Hour)
	require.ErrorIs(t, err, catalog.ErrNotFound)
}
