package block

import (
	"context"
	"errors"
	"io"
	"time"
)

var (
	ErrDataNotFound  = errors.New("no data")
	ErrSigningFailed = errors.New("signing failed")
)

// Signed URL expiry bounds. Values outside the range are clamped, not
// rejected.
const (
	MinPreSignExpiry = time.Minute
	MaxPreSignExpiry = 24 * time.Hour
)

// ClampExpiry forces d into the accepted pre-sign expiry range.
func ClampExpiry(d time.Duration) time.Duration {
	if d < MinPreSignExpiry {
		return MinPreSignExpiry
	}
	if d > MaxPreSignExpiry {
		return MaxPreSignExpiry
	}
	return d
}

// Adapter is the object storage interface the system depends on: store an
// artifact, check for it, read it back and issue a time-limited signed URL
// for it. Retrieval by external consumers is exclusively via signed URLs.
type Adapter interface {
	Put(ctx context.Context, key string, reader io.Reader) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Exists(ctx context.Context, key string) (bool, error)
	GetPreSignedURL(ctx context.Context, key string, expiry time.Duration) (string, error)
	BlockstoreType() string
}
