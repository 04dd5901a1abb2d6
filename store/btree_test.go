package store

import (
	"bytes"
	"testing"
)

func TestCacheWrapWriteAndDiscard(t *testing.T) {
	base := MemStore()
	if err := base.Set([]byte("a"), []byte("1")); err != nil {
		t.Fatalf("cannot set: %s", err)
	}

	// A discarded wrap must not modify the backing store.
	wrap := base.CacheWrap()
	if err := wrap.Set([]byte("a"), []byte("2")); err != nil {
		t.Fatalf("cannot set: %s", err)
	}
	if err := wrap.Set([]byte("b"), []byte("3")); err != nil {
		t.Fatalf("cannot set: %s", err)
	}
	wrap.Discard()

	assertValue(t, base, "a", "1")
	assertValue(t, base, "b", "")

	// A written wrap must flush all changes.
	wrap = base.CacheWrap()
	if err := wrap.Set([]byte("a"), []byte("2")); err != nil {
		t.Fatalf("cannot set: %s", err)
	}
	if err := wrap.Delete([]byte("missing")); err != nil {
		t.Fatalf("cannot delete: %s", err)
	}
	if err := wrap.Write(); err != nil {
		t.Fatalf("cannot write: %s", err)
	}
	assertValue(t, base, "a", "2")
}

func TestCacheWrapShadowsParent(t *testing.T) {
	base := MemStore()
	if err := base.Set([]byte("k"), []byte("parent")); err != nil {
		t.Fatalf("cannot set: %s", err)
	}

	wrap := base.CacheWrap()
	assertValue(t, wrap, "k", "parent")

	if err := wrap.Delete([]byte("k")); err != nil {
		t.Fatalf("cannot delete: %s", err)
	}
	assertValue(t, wrap, "k", "")
	has, err := wrap.Has([]byte("k"))
	if err != nil {
		t.Fatalf("cannot check: %s", err)
	}
	if has {
		t.Fatal("deleted key must not be reported")
	}

	// parent still holds the original value
	assertValue(t, base, "k", "parent")
}

func TestIteratorCombinesLayers(t *testing.T) {
	base := MemStore()
	for _, kv := range [][2]string{{"a", "1"}, {"c", "3"}, {"e", "5"}} {
		if err := base.Set([]byte(kv[0]), []byte(kv[1])); err != nil {
			t.Fatalf("cannot set: %s", err)
		}
	}

	wrap := base.CacheWrap()
	if err := wrap.Set([]byte("b"), []byte("2")); err != nil {
		t.Fatalf("cannot set: %s", err)
	}
	if err := wrap.Set([]byte("c"), []byte("3!")); err != nil {
		t.Fatalf("cannot set: %s", err)
	}
	if err := wrap.Delete([]byte("e")); err != nil {
		t.Fatalf("cannot delete: %s", err)
	}

	it, err := wrap.Iterator(nil, nil)
	if err != nil {
		t.Fatalf("cannot iterate: %s", err)
	}
	defer it.Close()

	var keys, values []string
	for ; it.Valid(); mustNext(t, it) {
		keys = append(keys, string(it.Key()))
		values = append(values, string(it.Value()))
	}
	assertStrings(t, []string{"a", "b", "c"}, keys)
	assertStrings(t, []string{"1", "2", "3!"}, values)
}

func TestIteratorRange(t *testing.T) {
	base := MemStore()
	for _, k := range []string{"a", "b", "c", "d"} {
		if err := base.Set([]byte(k), []byte(k)); err != nil {
			t.Fatalf("cannot set: %s", err)
		}
	}

	it, err := base.Iterator([]byte("b"), []byte("d"))
	if err != nil {
		t.Fatalf("cannot iterate: %s", err)
	}
	defer it.Close()

	var keys []string
	for ; it.Valid(); mustNext(t, it) {
		keys = append(keys, string(it.Key()))
	}
	assertStrings(t, []string{"b", "c"}, keys)
}

func TestReverseIterator(t *testing.T) {
	base := MemStore()
	for _, k := range []string{"a", "b", "c"} {
		if err := base.Set([]byte(k), []byte(k)); err != nil {
			t.Fatalf("cannot set: %s", err)
		}
	}

	it, err := base.ReverseIterator(nil, nil)
	if err != nil {
		t.Fatalf("cannot iterate: %s", err)
	}
	defer it.Close()

	var keys []string
	for ; it.Valid(); mustNext(t, it) {
		keys = append(keys, string(it.Key()))
	}
	assertStrings(t, []string{"c", "b", "a"}, keys)
}

func mustNext(t *testing.T, it Iterator) {
	t.Helper()
	if err := it.Next(); err != nil {
		t.Fatalf("cannot advance iterator: %s", err)
	}
}

func assertValue(t *testing.T, db ReadOnlyKVStore, key, want string) {
	t.Helper()
	raw, err := db.Get([]byte(key))
	if err != nil {
		t.Fatalf("cannot get %q: %s", key, err)
	}
	if want == "" {
		if raw != nil {
			t.Fatalf("want no value for %q, got %q", key, raw)
		}
		return
	}
	if !bytes.Equal(raw, []byte(want)) {
		t.Fatalf("want %q=%q, got %q", key, want, raw)
	}
}

func assertStrings(t *testing.T, want, got []string) {
	t.Helper()
	if len(want) != len(got) {
		t.Fatalf("want %v, got %v", want, got)
	}
	for i := range want {
		if want[i] != got[i] {
			t.Fatalf("want %v, got %v", want, got)
		}
	}
}
