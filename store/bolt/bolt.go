// Package bolt provides a CommitKVStore implementation backed by a bbolt
// database file. It is the durable counterpart of the in-memory store used
// in tests: the same btree cache wrap is layered on top, so ledger code
// cannot tell the difference.
package bolt

import (
	"bytes"
	"encoding/binary"

	bolt "go.etcd.io/bbolt"

	"github.com/streampay/streampay/errors"
	"github.com/streampay/streampay/store"
)

var (
	dataBucket = []byte("data")
	metaBucket = []byte("meta")
	versionKey = []byte("version")
)

// CommitStore is a store.CommitKVStore backed by a single bbolt file.
type CommitStore struct {
	db      *bolt.DB
	version int64
}

var _ store.CommitKVStore = (*CommitStore)(nil)

// NewCommitStore opens (creating when missing) a bbolt database under the
// given path.
func NewCommitStore(path string) (*CommitStore, error) {
	db, err := bolt.Open(path, 0600, nil)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrDatabase, "open %q: %s", path, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(dataBucket); err != nil {
			return err
		}
		_, err := tx.CreateBucketIfNotExists(metaBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, errors.Wrapf(errors.ErrDatabase, "prepare buckets: %s", err)
	}
	return &CommitStore{db: db}, nil
}

// Get returns the value at the last committed state.
func (s *CommitStore) Get(key []byte) ([]byte, error) {
	var value []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		if v := tx.Bucket(dataBucket).Get(key); v != nil {
			value = append([]byte(nil), v...)
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrapf(errors.ErrDatabase, "get: %s", err)
	}
	return value, nil
}

// CacheWrap returns a btree cache wrap around this store. Write flushes
// all accumulated changes in a single bolt transaction.
func (s *CommitStore) CacheWrap() store.KVCacheWrap {
	r := reader{db: s.db}
	return store.NewBTreeCacheWrap(r, &batch{db: s.db}, nil)
}

// Commit bumps and persists the version counter.
func (s *CommitStore) Commit() (store.CommitID, error) {
	s.version++
	raw := make([]byte, 8)
	binary.BigEndian.PutUint64(raw, uint64(s.version))
	err := s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(metaBucket).Put(versionKey, raw)
	})
	if err != nil {
		return store.CommitID{}, errors.Wrapf(errors.ErrDatabase, "commit: %s", err)
	}
	return store.CommitID{Version: s.version}, nil
}

// LoadLatestVersion loads the latest persisted version counter.
func (s *CommitStore) LoadLatestVersion() error {
	return s.db.View(func(tx *bolt.Tx) error {
		if raw := tx.Bucket(metaBucket).Get(versionKey); raw != nil {
			s.version = int64(binary.BigEndian.Uint64(raw))
		}
		return nil
	})
}

// LatestVersion returns info on the latest version saved to disk.
func (s *CommitStore) LatestVersion() store.CommitID {
	return store.CommitID{Version: s.version}
}

// Close releases the database file.
func (s *CommitStore) Close() error {
	return s.db.Close()
}

// reader adapts read access on the bolt file to the ReadOnlyKVStore
// interface. Ranged reads are materialized within one view transaction,
// so the returned iterator stays valid after the transaction ends.
type reader struct {
	db *bolt.DB
}

var _ store.ReadOnlyKVStore = reader{}

func (r reader) Get(key []byte) ([]byte, error) {
	var value []byte
	err := r.db.View(func(tx *bolt.Tx) error {
		if v := tx.Bucket(dataBucket).Get(key); v != nil {
			value = append([]byte(nil), v...)
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrapf(errors.ErrDatabase, "get: %s", err)
	}
	return value, nil
}

func (r reader) Has(key []byte) (bool, error) {
	value, err := r.Get(key)
	return value != nil, err
}

func (r reader) Iterator(start, end []byte) (store.Iterator, error) {
	models, err := r.collect(start, end)
	if err != nil {
		return nil, err
	}
	return store.NewSliceIterator(models), nil
}

func (r reader) ReverseIterator(start, end []byte) (store.Iterator, error) {
	models, err := r.collect(end, start)
	if err != nil {
		return nil, err
	}
	// collect returns ascending order; flip it.
	for i, j := 0, len(models)-1; i < j; i, j = i+1, j-1 {
		models[i], models[j] = models[j], models[i]
	}
	return store.NewSliceIterator(models), nil
}

func (r reader) collect(start, end []byte) ([]store.Model, error) {
	var models []store.Model
	err := r.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(dataBucket).Cursor()

		var k, v []byte
		if start == nil {
			k, v = c.First()
		} else {
			k, v = c.Seek(start)
		}
		for ; k != nil; k, v = c.Next() {
			if end != nil && bytes.Compare(k, end) >= 0 {
				break
			}
			models = append(models, store.Model{
				Key:   append([]byte(nil), k...),
				Value: append([]byte(nil), v...),
			})
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrapf(errors.ErrDatabase, "iterate: %s", err)
	}
	return models, nil
}

// batch accumulates operations and applies them in a single bolt
// transaction on Write.
type batch struct {
	db  *bolt.DB
	ops []store.Op
}

var _ store.Batch = (*batch)(nil)

func (b *batch) Set(key, value []byte) error {
	b.ops = append(b.ops, store.SetOp(key, value))
	return nil
}

func (b *batch) Delete(key []byte) error {
	b.ops = append(b.ops, store.DelOp(key))
	return nil
}

func (b *batch) Write() error {
	err := b.db.Update(func(tx *bolt.Tx) error {
		bkt := tx.Bucket(dataBucket)
		for _, op := range b.ops {
			if op.IsSetOp() {
				if err := bkt.Put(op.Key(), op.Value()); err != nil {
					return err
				}
			} else if err := bkt.Delete(op.Key()); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return errors.Wrapf(errors.ErrDatabase, "write batch: %s", err)
	}
	b.ops = nil
	return nil
}
