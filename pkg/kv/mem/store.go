package mem

import (
	"bytes"
	"context"
	"sort"
	"sync"

	"github.com/speleodb/speleodb/pkg/kv"
)

const DriverName = "mem"

type Driver struct{}

type Store struct {
	data map[string][]byte
	mu   sync.RWMutex
}

type EntriesIterator struct {
	entries []kv.Entry
	index   int
	err     error
}

//nolint:gochecknoinits
func init() {
	kv.Register(DriverName, &Driver{})
}

func (d *Driver) Open(_ context.Context, _ string) (kv.Store, error) {
	return &Store{
		data: make(map[string][]byte),
	}, nil
}

func (s *Store) Get(_ context.Context, key []byte) ([]byte, error) {
	if key == nil {
		return nil, kv.ErrMissingKey
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	value, ok := s.data[string(key)]
	if !ok {
		return nil, kv.ErrNotFound
	}
	return append([]byte(nil), value...), nil
}

func (s *Store) Set(_ context.Context, key, value []byte) error {
	if key == nil {
		return kv.ErrMissingKey
	}
	if value == nil {
		return kv.ErrMissingValue
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[string(key)] = append([]byte(nil), value...)
	return nil
}

func (s *Store) SetIf(_ context.Context, key, value, valuePredicate []byte) error {
	if key == nil {
		return kv.ErrMissingKey
	}
	if value == nil {
		return kv.ErrMissingValue
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	curr, ok := s.data[string(key)]
	if valuePredicate == nil {
		if ok {
			return kv.ErrPredicateFailed
		}
	} else if !ok || !bytes.Equal(curr, valuePredicate) {
		return kv.ErrPredicateFailed
	}
	s.data[string(key)] = append([]byte(nil), value...)
	return nil
}

func (s *Store) Delete(_ context.Context, key []byte) error {
	if key == nil {
		return kv.ErrMissingKey
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, string(key))
	return nil
}

func (s *Store) Scan(_ context.Context, start []byte) (kv.EntriesIterator, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.data))
	for k := range s.data {
		if start == nil || k >= string(start) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	entries := make([]kv.Entry, 0, len(keys))
	for _, k := range keys {
		entries = append(entries, kv.Entry{
			Key:   []byte(k),
			Value: append([]byte(nil), s.data[k]...),
		})
	}
	return &EntriesIterator{
		entries: entries,
		index:   -1,
	}, nil
}

func (s *Store) Close() {}

func (e *EntriesIterator) Next() bool {
	if e.err != nil || e.index+1 >= len(e.entries) {
		return false
	}
	e.index++
	return true
}

func (e *EntriesIterator) Entry() *kv.Entry {
	if e.index < 0 || e.index >= len(e.entries) {
		return nil
	}
	return &e.entries[e.index]
}

func (e *EntriesIterator) Err() error {
	return e.err
}

func (e *EntriesIterator) Close() {
	e.entries = nil
	e.err = kv.ErrClosedEntries
}
