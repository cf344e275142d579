package upload_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/speleodb/speleodb/pkg/block/mem"
	"github.com/speleodb/speleodb/pkg/catalog"
	"github.com/speleodb/speleodb/pkg/geojson"
	"github.com/speleodb/speleodb/pkg/repository"
	"github.com/speleodb/speleodb/pkg/testutil"
	"github.com/speleodb/speleodb/pkg/upload"
)

const testTML = `<?xml version="1.0" encoding="UTF-8"?>
<CaveFile>
  <caveName>Test Cave</caveName>
  <Data>
    <SurveyData><Name>A1</Name><Type>START</Type></SurveyData>
    <SurveyData><Name>A2</Name><FromName>A1</FromName><Type>REAL</Type><Length>10</Length><Azimut>90</Azimut><Inclination>0</Inclination></SurveyData>
  </Data>
</CaveFile>
`

var testAuthor = repository.Author{Name: "Test Caver", Email: "caver@example.com"}

type pipelineEnv struct {
	catalog  *catalog.Catalog
	adapter  *mem.Adapter
	pipeline *upload.Pipeline
	project  *catalog.Project
}

func setupPipeline(t *testing.T, ctx context.Context, format string, excludeGeoJSON bool) *pipelineEnv {
	t.Helper()
	testutil.RequireGit(t)
	c := catalog.New(testutil.GetKVStore(t, ctx))
	adapter := mem.New(ctx)
	repos := testutil.GetRepositoryManager(t)
	project, err := c.CreateProject(ctx, "Test Cave", format, excludeGeoJSON, "alice")
	require.NoError(t, err)
	_, err = repos.Init(project.ID)
	require.NoError(t, err)
	return &pipelineEnv{
		catalog:  c,
		adapter:  adapter,
		pipeline: upload.NewPipeline(c, repos, geojson.NewMaterializer(c, adapter)),
		project:  project,
	}
}

func TestUpload(t *testing.T) {
	ctx := context.Background()
	env := setupPipeline(t, ctx, catalog.FormatAriane, false)

	bundle := map[string][]byte{"Uploads/Cave.TML": []byte(testTML)}
	result, err := env.pipeline.Upload(ctx, env.project.ID, catalog.FormatAriane, bundle, "first survey", testAuthor)
	require.NoError(t, err)
	require.True(t, result.Created)
	require.NotEmpty(t, result.SHA)

	// commit mirrored
	commit, err := env.catalog.GetCommit(ctx, env.project.ID, result.SHA)
	require.NoError(t, err)
	require.Equal(t, "first survey", commit.Message)

	// artifact materialized and stored
	require.NotNil(t, result.Artifact)
	require.Equal(t, result.SHA, result.Artifact.CommitSHA)
	exists, err := env.adapter.Exists(ctx, result.Artifact.StorageKey)
	require.NoError(t, err)
	require.True(t, exists)
}

func TestUpload_DuplicateIsNoOp(t *testing.T) {
	ctx := context.Background()
	env := setupPipeline(t, ctx, catalog.FormatAriane, false)

	bundle := map[string][]byte{"cave.tml": []byte(testTML)}
	first, err := env.pipeline.Upload(ctx, env.project.ID, catalog.FormatAriane, bundle, "first survey", testAuthor)
	require.NoError(t, err)
	require.True(t, first.Created)

	// byte-identical content: success, no new commit, same sha
	second, err := env.pipeline.Upload(ctx, env.project.ID, catalog.FormatAriane, bundle, "accidental re-upload", testAuthor)
	require.NoError(t, err)
	require.False(t, second.Created)
	require.Equal(t, first.SHA, second.SHA)

	commits, err := env.catalog.ListCommits(ctx, env.project.ID)
	require.NoError(t, err)
	require.Len(t, commits, 1)
	artifacts, err := env.catalog.ListArtifacts(ctx, env.project.ID)
	require.NoError(t, err)
	require.Len(t, artifacts, 1)
}

func TestUpload_IncompleteBundleRejected(t *testing.T) {
	ctx := context.Background()
	env := setupPipeline(t, ctx, catalog.FormatCompass, false)

	// .dat without the .mak control file: rejected before any mutation
	bundle := map[string][]byte{"cave.dat": []byte("data")}
	_, err := env.pipeline.Upload(ctx, env.project.ID, catalog.FormatCompass, bundle, "partial", testAuthor)
	require.ErrorIs(t, err, upload.ErrIncompleteBundle)

	commits, err := env.catalog.ListCommits(ctx, env.project.ID)
	require.NoError(t, err)
	require.Empty(t, commits)
}

func TestUpload_FormatMismatch(t *testing.T) {
	ctx := context.Background()
	env := setupPipeline(t, ctx, catalog.FormatAriane, false)

	bundle := map[string][]byte{"cave.mak": []byte("#cave.dat;"), "cave.dat": []byte("data")}
	_, err := env.pipeline.Upload(ctx, env.project.ID, catalog.FormatCompass, bundle, "wrong format", testAuthor)
	require.ErrorIs(t, err, upload.ErrFormatMismatch)
}

func TestUpload_ExcludeGeoJSON(t *testing.T) {
	ctx := context.Background()
	env := setupPipeline(t, ctx, catalog.FormatAriane, true)

	bundle := map[string][]byte{"cave.tml": []byte(testTML)}
	result, err := env.pipeline.Upload(ctx, env.project.ID, catalog.FormatAriane, bundle, "first survey", testAuthor)
	require.NoError(t, err)
	require.True(t, result.Created)
	require.Nil(t, result.Artifact)

	artifacts, err := env.catalog.ListArtifacts(ctx, env.project.ID)
	require.NoError(t, err)
	require.Empty(t, artifacts)
}

func TestUpload_MalformedSurveyKeepsCommit(t *testing.T) {
	ctx := context.Background()
	env := setupPipeline(t, ctx, catalog.FormatAriane, false)

	// structurally a valid bundle, but the content cannot be parsed:
	// the commit lands, the materialization error is reported
	bundle := map[string][]byte{"cave.tml": []byte("not xml at all")}
	result, err := env.pipeline.Upload(ctx, env.project.ID, catalog.FormatAriane, bundle, "broken upload", testAuthor)
	require.ErrorIs(t, err, geojson.ErrMaterialization)
	require.NotNil(t, result)
	require.True(t, result.Created)

	commits, err := env.catalog.ListCommits(ctx, env.project.ID)
	require.NoError(t, err)
	require.Len(t, commits, 1)
}

func TestUpload_UnknownProject(t *testing.T) {
	ctx := context.Background()
	env := setupPipeline(t, ctx, catalog.FormatAriane, false)

	bundle := map[string][]byte{"cave.tml": []byte(testTML)}
	_, err := env.pipeline.Upload(ctx, "no-such-project", catalog.FormatAriane, bundle, "upload", testAuthor)
	require.ErrorIs(t, err, catalog.ErrNotFound)
}
