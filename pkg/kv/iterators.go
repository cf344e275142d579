package kv

import (
	"bytes"
	"context"
)

// PrefixIterator holds EntriesIterator and yields only entries whose key
// starts with the given prefix. Iteration ends on the first key past the
// prefix range, as Scan returns entries in key order.
type PrefixIterator struct {
	Iterator  EntriesIterator
	Prefix    []byte
	completed bool
}

func (b *PrefixIterator) Next() bool {
	if b.completed {
		return false
	}
	if !b.Iterator.Next() {
		b.completed = true
		return false
	}
	entry := b.Iterator.Entry()
	if !bytes.HasPrefix(entry.Key, b.Prefix) {
		b.completed = true
		return false
	}
	return true
}

func (b *PrefixIterator) Entry() *Entry {
	if b.completed {
		return nil
	}
	return b.Iterator.Entry()
}

func (b *PrefixIterator) Err() error {
	return b.Iterator.Err()
}

func (b *PrefixIterator) Close() {
	b.Iterator.Close()
	b.completed = true
}

// ScanPrefix returns an iterator limited to keys with the given prefix
func ScanPrefix(ctx context.Context, store Store, prefix []byte) (EntriesIterator, error) {
	iter, err := store.Scan(ctx, prefix)
	if err != nil {
		return nil, err
	}
	return &PrefixIterator{
		Iterator: iter,
		Prefix:   prefix,
	}, nil
}
