package kvtest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/go-test/deep"
	nanoid "github.com/matoous/go-nanoid/v2"
	"github.com/speleodb/speleodb/pkg/kv"
)

type MakeStore func(t *testing.T, ctx context.Context) kv.Store

var runTestID = nanoid.MustGenerate("abcdef1234567890", 8)

func uniqueKey(k string) []byte {
	return []byte(runTestID + "-" + k)
}

func setupSampleData(t *testing.T, ctx context.Context, store kv.Store, prefix string, items int) []kv.Entry {
	t.Helper()
	entries := make([]kv.Entry, 0, items)
	for i := 0; i < items; i++ {
		entry := sampleEntry(prefix, i)
		err := store.Set(ctx, entry.Key, entry.Value)
		if err != nil {
			t.Fatalf("failed to setup data with '%s': %s", &entry, err)
		}
		entries = append(entries, entry)
	}
	return entries
}

func sampleEntry(prefix string, n int) kv.Entry {
	k := fmt.Sprintf("%s-key-%04d", prefix, n)
	v := fmt.Sprintf("%s-value-%04d", prefix, n)
	return kv.Entry{Key: []byte(k), Value: []byte(v)}
}

// TestDriver runs the driver conformance suite against the named registered driver.
func TestDriver(t *testing.T, name, dsn string) {
	ms := MakeStoreByName(name, dsn)
	t.Run("Driver_Open", func(t *testing.T) { testDriverOpen(t, ms) })
	t.Run("Store_SetGet", func(t *testing.T) { testStoreSetGet(t, ms) })
	t.Run("Store_SetIf", func(t *testing.T) { testStoreSetIf(t, ms) })
	t.Run("Store_Delete", func(t *testing.T) { testStoreDelete(t, ms) })
	t.Run("Store_Scan", func(t *testing.T) { testStoreScan(t, ms) })
	t.Run("Store_MissingArgument", func(t *testing.T) { testStoreMissingArgument(t, ms) })
}

func MakeStoreByName(name, dsn string) MakeStore {
	return func(t *testing.T, ctx context.Context) kv.Store {
		t.Helper()
		store, err := kv.Open(ctx, name, dsn)
		if err != nil {
			t.Fatalf("failed to open kv '%s' (dsn '%s'): %s", name, dsn, err)
		}
		t.Cleanup(store.Close)
		return store
	}
}

func testDriverOpen(t *testing.T, ms MakeStore) {
	ctx := context.Background()
	store := ms(t, ctx)
	if store == nil {
		t.Fatal("store is nil")
	}
}

func testStoreSetGet(t *testing.T, ms MakeStore) {
	ctx := context.Background()
	store := ms(t, ctx)

	k := uniqueKey("set-get")
	v := []byte("hello")
	if err := store.Set(ctx, k, v); err != nil {
		t.Fatalf("Set failed: %s", err)
	}
	got, err := store.Get(ctx, k)
	if err != nil {
		t.Fatalf("Get failed: %s", err)
	}
	if !bytes.Equal(got, v) {
		t.Fatalf("Get value mismatch: got %q, expected %q", got, v)
	}

	// overwrite
	v2 := []byte("shalom")
	if err := store.Set(ctx, k, v2); err != nil {
		t.Fatalf("Set (overwrite) failed: %s", err)
	}
	got, err = store.Get(ctx, k)
	if err != nil {
		t.Fatalf("Get after overwrite failed: %s", err)
	}
	if !bytes.Equal(got, v2) {
		t.Fatalf("Get after overwrite mismatch: got %q, expected %q", got, v2)
	}

	// missing key
	_, err = store.Get(ctx, uniqueKey("no-such-key"))
	if !errors.Is(err, kv.ErrNotFound) {
		t.Fatalf("Get missing key: err=%v, expected ErrNotFound", err)
	}
}

func testStoreSetIf(t *testing.T, ms MakeStore) {
	ctx := context.Background()
	store := ms(t, ctx)

	k := uniqueKey("set-if")
	v1 := []byte("v1")
	// nil predicate requires the key to be absent
	if err := store.SetIf(ctx, k, v1, nil); err != nil {
		t.Fatalf("SetIf (nil predicate, absent key) failed: %s", err)
	}
	err := store.SetIf(ctx, k, []byte("v2"), nil)
	if !errors.Is(err, kv.ErrPredicateFailed) {
		t.Fatalf("SetIf (nil predicate, existing key): err=%v, expected ErrPredicateFailed", err)
	}

	// swap with matching predicate
	v2 := []byte("v2")
	if err := store.SetIf(ctx, k, v2, v1); err != nil {
		t.Fatalf("SetIf (matching predicate) failed: %s", err)
	}
	// swap with stale predicate
	err = store.SetIf(ctx, k, []byte("v3"), v1)
	if !errors.Is(err, kv.ErrPredicateFailed) {
		t.Fatalf("SetIf (stale predicate): err=%v, expected ErrPredicateFailed", err)
	}

	got, err := store.Get(ctx, k)
	if err != nil {
		t.Fatalf("Get failed: %s", err)
	}
	if !bytes.Equal(got, v2) {
		t.Fatalf("value after failed swap: got %q, expected %q", got, v2)
	}
}

func testStoreDelete(t *testing.T, ms MakeStore) {
	ctx := context.Background()
	store := ms(t, ctx)

	k := uniqueKey("delete")
	if err := store.Set(ctx, k, []byte("data")); err != nil {
		t.Fatalf("Set failed: %s", err)
	}
	if err := store.Delete(ctx, k); err != nil {
		t.Fatalf("Delete failed: %s", err)
	}
	_, err := store.Get(ctx, k)
	if !errors.Is(err, kv.ErrNotFound) {
		t.Fatalf("Get after delete: err=%v, expected ErrNotFound", err)
	}
	// delete of missing key is not an error
	if err := store.Delete(ctx, uniqueKey("no-such-key")); err != nil {
		t.Fatalf("Delete missing key failed: %s", err)
	}
}

func testStoreScan(t *testing.T, ms MakeStore) {
	ctx := context.Background()
	store := ms(t, ctx)

	const items = 10
	prefix := string(uniqueKey("scan"))
	entries := setupSampleData(t, ctx, store, prefix, items)

	iter, err := kv.ScanPrefix(ctx, store, []byte(prefix))
	if err != nil {
		t.Fatalf("ScanPrefix failed: %s", err)
	}
	defer iter.Close()

	var got []kv.Entry
	for iter.Next() {
		e := iter.Entry()
		got = append(got, kv.Entry{Key: e.Key, Value: e.Value})
	}
	if err := iter.Err(); err != nil {
		t.Fatalf("iterator error: %s", err)
	}
	if diff := deep.Equal(got, entries); diff != nil {
		t.Fatalf("scanned entries diff: %s", diff)
	}
}

func testStoreMissingArgument(t *testing.T, ms MakeStore) {
	ctx := context.Background()
	store := ms(t, ctx)

	if _, err := store.Get(ctx, nil); !errors.Is(err, kv.ErrMissingKey) {
		t.Errorf("Get nil key: err=%v, expected ErrMissingKey", err)
	}
	if err := store.Set(ctx, nil, []byte("v")); !errors.Is(err, kv.ErrMissingKey) {
		t.Errorf("Set nil key: err=%v, expected ErrMissingKey", err)
	}
	if err := store.Set(ctx, uniqueKey("k"), nil); !errors.Is(err, kv.ErrMissingValue) {
		t.Errorf("Set nil value: err=%v, expected ErrMissingValue", err)
	}
	if err := store.SetIf(ctx, nil, []byte("v"), nil); !errors.Is(err, kv.ErrMissingKey) {
		t.Errorf("SetIf nil key: err=%v, expected ErrMissingKey", err)
	}
	if err := store.Delete(ctx, nil); !errors.Is(err, kv.ErrMissingKey) {
		t.Errorf("Delete nil key: err=%v, expected ErrMissingKey", err)
	}
}
