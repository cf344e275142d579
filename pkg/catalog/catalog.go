package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"
	"github.com/speleodb/speleodb/pkg/kv"
	"github.com/speleodb/speleodb/pkg/logging"
)

// kv key prefixes
const (
	projectsPrefix  = "projects"
	commitsPrefix   = "commits"
	artifactsPrefix = "artifacts"
	viewsPrefix     = "views"
	locksPrefix     = "locks"
	fieldSetsPrefix = "fieldsets"
)

// Format families of survey bundles
const (
	// FormatAriane single-file format (.tml / .tmlu)
	FormatAriane = "ariane"
	// FormatCompass control file (.mak) plus one or more survey data files (.dat)
	FormatCompass = "compass"
)

// ReValidSHA matches a full lowercase hex commit sha. Applied to every
// externally supplied sha before any repository or database access.
var ReValidSHA = regexp.MustCompile(`^[0-9a-f]{40}$`)

// Project is the owning entity of a survey repository.
type Project struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Format         string    `json:"format"`
	ExcludeGeoJSON bool      `json:"exclude_geojson"`
	CreatedBy      string    `json:"created_by"`
	CreatedAt      time.Time `json:"created_at"`
}

// Catalog provides access to the mirrored project metadata: projects,
// commit records, derived artifacts, views and the per-project mutex.
// Commit and artifact records are insert-only which keeps reads torn-free
// without locking.
type Catalog struct {
	store kv.Store
	log   logging.Logger
}

func New(store kv.Store) *Catalog {
	return &Catalog{
		store: store,
		log:   logging.Default().WithField(logging.ServiceNameFieldKey, "catalog"),
	}
}

func projectKey(projectID string) []byte {
	return []byte(kv.FormatPath(projectsPrefix, projectID))
}

// ValidateSHA rejects a malformed commit sha before any repository or
// database access happens.
func ValidateSHA(sha string) error {
	if !ReValidSHA.MatchString(sha) {
		return fmt.Errorf("%w: %q", ErrInvalidCommitRef, sha)
	}
	return nil
}

// CreateProject registers a new project. The acting user is recorded as the
// creator and is always passed explicitly.
func (c *Catalog) CreateProject(ctx context.Context, name, format string, excludeGeoJSON bool, user string) (*Project, error) {
	if format != FormatAriane && format != FormatCompass {
		return nil, fmt.Errorf("%w: %q", ErrInvalidFormat, format)
	}
	project := &Project{
		ID:             uuid.New().String(),
		Name:           name,
		Format:         format,
		ExcludeGeoJSON: excludeGeoJSON,
		CreatedBy:      user,
		CreatedAt:      time.Now().UTC(),
	}
	value, err := json.Marshal(project)
	if err != nil {
		return nil, err
	}
	err = c.store.SetIf(ctx, projectKey(project.ID), value, nil)
	if errors.Is(err, kv.ErrPredicateFailed) {
		return nil, fmt.Errorf("project %s: %w", project.ID, ErrAlreadyExists)
	}
	if err != nil {
		return nil, err
	}
	c.log.WithContext(ctx).
		WithField(logging.ProjectFieldKey, project.ID).
		WithField(logging.UserFieldKey, user).
		Info("project created")
	return project, nil
}

func (c *Catalog) GetProject(ctx context.Context, projectID string) (*Project, error) {
	value, err := c.store.Get(ctx, projectKey(projectID))
	if errors.Is(err, kv.ErrNotFound) {
		return nil, fmt.Errorf("project %s: %w", projectID, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	var project Project
	if err := json.Unmarshal(value, &project); err != nil {
		return nil, err
	}
	return &project, nil
}

// UpdateProjectSettings changes the rarely mutated administrative attributes.
func (c *Catalog) UpdateProjectSettings(ctx context.Context, projectID, format string, excludeGeoJSON bool, user string) (*Project, error) {
	project, err := c.GetProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if format != FormatAriane && format != FormatCompass {
		return nil, fmt.Errorf("%w: %q", ErrInvalidFormat, format)
	}
	project.Format = format
	project.ExcludeGeoJSON = excludeGeoJSON
	value, err := json.Marshal(project)
	if err != nil {
		return nil, err
	}
	if err := c.store.Set(ctx, projectKey(project.ID), value); err != nil {
		return nil, err
	}
	c.log.WithContext(ctx).
		WithField(logging.ProjectFieldKey, project.ID).
		WithField(logging.UserFieldKey, user).
		Info("project settings updated")
	return project, nil
}

// ListProjects returns all registered projects ordered by id.
func (c *Catalog) ListProjects(ctx context.Context) ([]*Project, error) {
	iter, err := kv.ScanPrefix(ctx, c.store, []byte(projectsPrefix+kv.PathDelimiter))
	if err != nil {
		return nil, err
	}
	defer iter.Close()
	var projects []*Project
	for iter.Next() {
		var project Project
		if err := json.Unmarshal(iter.Entry().Value, &project); err != nil {
			return nil, err
		}
		projects = append(projects, &project)
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	return projects, nil
}
