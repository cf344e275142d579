package catalog

import (
	"errors"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrAlreadyExists     = errors.New("already exists")
	ErrLockContention    = errors.New("project locked by another user")
	ErrNotLockHolder     = errors.New("not the lock holder")
	ErrInvalidCommitRef  = errors.New("invalid commit reference")
	ErrInvalidFormat     = errors.New("invalid bundle format")
	ErrInvalidView       = errors.New("invalid view")
	ErrInvalidFieldSet   = errors.New("invalid field set")
	ErrFieldSetImmutable = errors.New("field definition is immutable")
)
