package mem

import (
	"bytes"
	"context"
	"crypto/md5" //nolint:gosec
	"encoding/hex"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/speleodb/speleodb/pkg/block"
)

const BlockstoreType = "mem"

var ErrNoDataForKey = fmt.Errorf("no data for key: %w", block.ErrDataNotFound)

// Adapter is an in-memory object store for tests and local development.
type Adapter struct {
	data        map[string][]byte
	failPreSign map[string]bool
	mutex       sync.RWMutex
}

func New(_ context.Context, opts ...func(a *Adapter)) *Adapter {
	a := &Adapter{
		data:        make(map[string][]byte),
		failPreSign: make(map[string]bool),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *Adapter) Put(_ context.Context, key string, reader io.Reader) error {
	data, err := io.ReadAll(reader)
	if err != nil {
		return err
	}
	a.mutex.Lock()
	defer a.mutex.Unlock()
	a.data[key] = data
	return nil
}

func (a *Adapter) Get(_ context.Context, key string) (io.ReadCloser, error) {
	a.mutex.RLock()
	defer a.mutex.RUnlock()
	data, ok := a.data[key]
	if !ok {
		return nil, ErrNoDataForKey
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (a *Adapter) Exists(_ context.Context, key string) (bool, error) {
	a.mutex.RLock()
	defer a.mutex.RUnlock()
	_, ok := a.data[key]
	return ok, nil
}

func (a *Adapter) GetPreSignedURL(_ context.Context, key string, expiry time.Duration) (string, error) {
	a.mutex.RLock()
	defer a.mutex.RUnlock()
	if a.failPreSign[key] {
		return "", block.ErrSigningFailed
	}
	if _, ok := a.data[key]; !ok {
		return "", ErrNoDataForKey
	}
	sig := md5.Sum([]byte(key)) //nolint:gosec
	return fmt.Sprintf("mem://%s?expires=%d&signature=%s",
		key, int64(expiry.Seconds()), hex.EncodeToString(sig[:])), nil
}

func (a *Adapter) BlockstoreType() string {
	return BlockstoreType
}

// SetPreSignFailure makes GetPreSignedURL fail for the given key. Test hook
// for the partial-failure path of view resolution.
func (a *Adapter) SetPreSignFailure(key string) {
	a.mutex.Lock()
	defer a.mutex.Unlock()
	a.failPreSign[key] = true
}
