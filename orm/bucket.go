// Package orm provides a thin entity layer on top of the key-value store.
//
// Every entity type gets its own bucket. A bucket prefixes all keys with
// the bucket name, so multiple buckets can share a single store without
// collisions. Models are serialized with CBOR.
package orm

import (
	"github.com/streampay/streampay"
	"github.com/streampay/streampay/errors"
)

// Model is implemented by any entity that can be stored in a bucket.
type Model interface {
	streampay.Persistent
	Validate() error
}

// Bucket stores model instances under a common key prefix.
type Bucket struct {
	prefix []byte
}

// NewBucket creates a bucket with the given name. The name becomes part of
// every key and must not change once data is written.
func NewBucket(name string) Bucket {
	return Bucket{
		prefix: append([]byte(name), ':'),
	}
}

// DBKey returns the full storage key for given entity key.
func (b Bucket) DBKey(key []byte) []byte {
	return append(append([]byte(nil), b.prefix...), key...)
}

// One loads a single entity into dest. It returns ErrNotFound when no
// entity is stored under the given key.
func (b Bucket) One(db streampay.ReadOnlyKVStore, key []byte, dest Model) error {
	raw, err := db.Get(b.DBKey(key))
	if err != nil {
		return err
	}
	if raw == nil {
		return errors.Wrapf(errors.ErrNotFound, "%T not in the store", dest)
	}
	if err := dest.Unmarshal(raw); err != nil {
		return errors.Wrapf(err, "cannot unmarshal %T", dest)
	}
	return nil
}

// Has returns true if an entity is stored under the given key.
func (b Bucket) Has(db streampay.ReadOnlyKVStore, key []byte) (bool, error) {
	return db.Has(b.DBKey(key))
}

// Put validates and saves given model under the given key.
func (b Bucket) Put(db streampay.KVStore, key []byte, m Model) error {
	if err := m.Validate(); err != nil {
		return errors.Wrap(err, "invalid model")
	}
	raw, err := m.Marshal()
	if err != nil {
		return errors.Wrapf(err, "cannot marshal %T", m)
	}
	return db.Set(b.DBKey(key), raw)
}

// Delete removes an entity with given key from the bucket. It returns
// ErrNotFound if an entity with given key does not exist.
func (b Bucket) Delete(db streampay.KVStore, key []byte) error {
	dbkey := b.DBKey(key)
	has, err := db.Has(dbkey)
	if err != nil {
		return err
	}
	if !has {
		return errors.ErrNotFound
	}
	return db.Delete(dbkey)
}

// Iterator returns an iterator over all entities of this bucket with keys
// in the [start, end) range. Nil boundaries mean the bucket boundaries.
// Returned keys have the bucket prefix stripped.
func (b Bucket) Iterator(db streampay.ReadOnlyKVStore, start, end []byte) (streampay.Iterator, error) {
	from := b.DBKey(start)
	var to []byte
	if end != nil {
		to = b.DBKey(end)
	} else {
		to = prefixEnd(b.prefix)
	}
	it, err := db.Iterator(from, to)
	if err != nil {
		return nil, err
	}
	return &prefixIterator{parent: it, prefixLen: len(b.prefix)}, nil
}

// prefixEnd returns the smallest key that is greater than every key with
// the given prefix.
func prefixEnd(prefix []byte) []byte {
	end := append([]byte(nil), prefix...)
	for i := len(end) - 1; i >= 0; i-- {
		if end[i] < 0xff {
			end[i]++
			return end[:i+1]
		}
	}
	// all 0xff, iterate until the end of the store
	return nil
}

type prefixIterator struct {
	parent    streampay.Iterator
	prefixLen int
}

var _ streampay.Iterator = (*prefixIterator)(nil)

func (i *prefixIterator) Valid() bool  { return i.parent.Valid() }
func (i *prefixIterator) Next() error  { return i.parent.Next() }
func (i *prefixIterator) Key() []byte  { return i.parent.Key()[i.prefixLen:] }
func (i *prefixIterator) Value() []byte { return i.parent.Value() }
func (i *prefixIterator) Close()       { i.parent.Close() }
