package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/speleodb/speleodb/pkg/kv"
	"github.com/speleodb/speleodb/pkg/logging"
)

// ViewEntry selects a commit of a project: either an explicit pinned sha or
// "use latest". Exactly one of the two is set.
type ViewEntry struct {
	ProjectID string `json:"project_id"`
	CommitSHA string `json:"commit_sha,omitempty"`
	UseLatest bool   `json:"use_latest"`
}

// View is a named, owned collection of per-project commit selectors.
// Deactivated instead of deleted; reactivation requires a fresh grant by the
// owner.
type View struct {
	ID        string      `json:"id"`
	Name      string      `json:"name"`
	OwnerID   string      `json:"owner_id"`
	Active    bool        `json:"is_active"`
	CreatedAt time.Time   `json:"created_at"`
	Entries   []ViewEntry `json:"entries"`
}

func viewKey(viewID string) []byte {
	return []byte(kv.FormatPath(viewsPrefix, viewID))
}

func validateViewEntries(entries []ViewEntry) error {
	seen := make(map[string]bool, len(entries))
	for _, entry := range entries {
		if entry.ProjectID == "" {
			return fmt.Errorf("%w: entry without project", ErrInvalidView)
		}
		if seen[entry.ProjectID] {
			return fmt.Errorf("%w: duplicate entry for project %s", ErrInvalidView, entry.ProjectID)
		}
		seen[entry.ProjectID] = true
		if entry.UseLatest == (entry.CommitSHA != "") {
			return fmt.Errorf("%w: entry for project %s must set exactly one of pinned sha or use-latest", ErrInvalidView, entry.ProjectID)
		}
		if entry.CommitSHA != "" {
			if err := ValidateSHA(entry.CommitSHA); err != nil {
				return err
			}
		}
	}
	return nil
}

// CreateView creates a named view owned by user.
func (c *Catalog) CreateView(ctx context.Context, name string, entries []ViewEntry, user string) (*View, error) {
	if err := validateViewEntries(entries); err != nil {
		return nil, err
	}
	view := &View{
		ID:        uuid.New().String(),
		Name:      name,
		OwnerID:   user,
		Active:    true,
		CreatedAt: time.Now().UTC(),
		Entries:   entries,
	}
	value, err := json.Marshal(view)
	if err != nil {
		return nil, err
	}
	if err := c.store.SetIf(ctx, viewKey(view.ID), value, nil); err != nil {
		return nil, err
	}
	c.log.WithContext(ctx).
		WithField(logging.ViewFieldKey, view.ID).
		WithField(logging.UserFieldKey, user).
		Info("view created")
	return view, nil
}

// GetView returns the view by id.
func (c *Catalog) GetView(ctx context.Context, viewID string) (*View, error) {
	value, err := c.store.Get(ctx, viewKey(viewID))
	if errors.Is(err, kv.ErrNotFound) {
		return nil, fmt.Errorf("view %s: %w", viewID, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	var view View
	if err := json.Unmarshal(value, &view); err != nil {
		return nil, err
	}
	return &view, nil
}

// UpdateViewEntries replaces the view's entries. Only the owner may update.
func (c *Catalog) UpdateViewEntries(ctx context.Context, viewID string, entries []ViewEntry, user string) (*View, error) {
	view, err := c.GetView(ctx, viewID)
	if err != nil {
		return nil, err
	}
	if view.OwnerID != user {
		return nil, fmt.Errorf("%w: view %s owned by %s", ErrInvalidView, viewID, view.OwnerID)
	}
	if err := validateViewEntries(entries); err != nil {
		return nil, err
	}
	view.Entries = entries
	value, err := json.Marshal(view)
	if err != nil {
		return nil, err
	}
	if err := c.store.Set(ctx, viewKey(view.ID), value); err != nil {
		return nil, err
	}
	return view, nil
}

// DeactivateView flips the view inactive. One-directional: there is no
// implicit reactivation, ReactivateView is an explicit fresh grant.
func (c *Catalog) DeactivateView(ctx context.Context, viewID, user string) error {
	return c.setViewActive(ctx, viewID, user, false)
}

// ReactivateView re-enables a deactivated view.
func (c *Catalog) ReactivateView(ctx context.Context, viewID, user string) error {
	return c.setViewActive(ctx, viewID, user, true)
}

func (c *Catalog) setViewActive(ctx context.Context, viewID, user string, active bool) error {
	view, err := c.GetView(ctx, viewID)
	if err != nil {
		return err
	}
	if view.OwnerID != user {
		return fmt.Errorf("%w: view %s owned by %s", ErrInvalidView, viewID, view.OwnerID)
	}
	if view.Active == active {
		return nil
	}
	view.Active = active
	value, err := json.Marshal(view)
	if err != nil {
		return err
	}
	if err := c.store.Set(ctx, viewKey(view.ID), value); err != nil {
		return err
	}
	c.log.WithContext(ctx).
		WithField(logging.ViewFieldKey, viewID).
		WithField(logging.UserFieldKey, user).
		WithField("active", active).
		Info("view active state changed")
	return nil
}

// DeleteView removes the view entirely. Only the owner may delete.
func (c *Catalog) DeleteView(ctx context.Context, viewID, user string) error {
	view, err := c.GetView(ctx, viewID)
	if err != nil {
		return err
	}
	if view.OwnerID != user {
		return fmt.Errorf("%w: view %s owned by %s", ErrInvalidView, viewID, view.OwnerID)
	}
	return c.store.Delete(ctx, viewKey(viewID))
}
