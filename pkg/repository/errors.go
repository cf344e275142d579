package repository

import (
	"errors"
)

var (
	ErrRepositoryNotFound = errors.New("repository not found")
	ErrGitError           = errors.New("git error")
	ErrInvalidPath        = errors.New("invalid file path")
)
