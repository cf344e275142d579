package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/speleodb/speleodb/pkg/kv"
	"github.com/speleodb/speleodb/pkg/logging"
)

// lockRecord is the persisted holder of a project mutex.
type lockRecord struct {
	Holder     string    `json:"holder"`
	AcquiredAt time.Time `json:"acquired_at"`
}

func lockKey(projectID string) []byte {
	return []byte(kv.FormatPath(locksPrefix, projectID))
}

// AcquireLock takes the project mutex for user. Acquire is atomic: the
// insert-if-absent on the kv store guarantees two concurrent calls for the
// same project cannot both succeed. Re-acquiring a mutex already held by the
// same user succeeds. There is no timeout based expiry, a stale holder is
// cleared with ForceReleaseLock.
func (c *Catalog) AcquireLock(ctx context.Context, projectID, user string) error {
	record := lockRecord{
		Holder:     user,
		AcquiredAt: time.Now().UTC(),
	}
	value, err := json.Marshal(record)
	if err != nil {
		return err
	}
	err = c.store.SetIf(ctx, lockKey(projectID), value, nil)
	if errors.Is(err, kv.ErrPredicateFailed) {
		holder, herr := c.LockHolder(ctx, projectID)
		if herr == nil && holder == user {
			return nil
		}
		return fmt.Errorf("%w: project %s held by %s", ErrLockContention, projectID, holder)
	}
	if err != nil {
		return err
	}
	c.log.WithContext(ctx).
		WithField(logging.ProjectFieldKey, projectID).
		WithField(logging.UserFieldKey, user).
		Debug("project mutex acquired")
	return nil
}

// ReleaseLock drops the project mutex. Releasing a mutex held by a different
// user, or one that is not held at all, fails with ErrNotLockHolder and
// changes nothing; callers are expected to call ReleaseLock on every exit
// path of the guarded section. The holder check and the delete are two kv
// operations: only ForceReleaseLock can clear the mutex underneath the
// holder between them, and an admin doing so owns the outcome.
func (c *Catalog) ReleaseLock(ctx context.Context, projectID, user string) error {
	holder, err := c.LockHolder(ctx, projectID)
	if errors.Is(err, ErrNotFound) {
		return fmt.Errorf("%w: project %s is not locked", ErrNotLockHolder, projectID)
	}
	if err != nil {
		return err
	}
	if holder != user {
		return fmt.Errorf("%w: project %s held by %s", ErrNotLockHolder, projectID, holder)
	}
	if err := c.store.Delete(ctx, lockKey(projectID)); err != nil {
		return err
	}
	c.log.WithContext(ctx).
		WithField(logging.ProjectFieldKey, projectID).
		WithField(logging.UserFieldKey, user).
		Debug("project mutex released")
	return nil
}

// ForceReleaseLock clears the mutex regardless of holder. Administrative
// operation for stale locks.
func (c *Catalog) ForceReleaseLock(ctx context.Context, projectID, admin string) error {
	if err := c.store.Delete(ctx, lockKey(projectID)); err != nil {
		return err
	}
	c.log.WithContext(ctx).
		WithField(logging.ProjectFieldKey, projectID).
		WithField(logging.UserFieldKey, admin).
		Warn("project mutex force released")
	return nil
}

// LockHolder returns the current mutex holder, or ErrNotFound when unlocked.
func (c *Catalog) LockHolder(ctx context.Context, projectID string) (string, error) {
	value, err := c.store.Get(ctx, lockKey(projectID))
	if errors.Is(err, kv.ErrNotFound) {
		return "", fmt.Errorf("lock %s: %w", projectID, ErrNotFound)
	}
	if err != nil {
		return "", err
	}
	var record lockRecord
	if err := json.Unmarshal(value, &record); err != nil {
		return "", err
	}
	return record.Holder, nil
}
