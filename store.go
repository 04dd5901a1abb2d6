package streampay

// This file defines all public interfaces for interacting with stores.
// KVStore and Iterator are the basic objects used by all business logic.

// ReadOnlyKVStore is a simple interface to read data.
type ReadOnlyKVStore interface {
	// Get returns nil iff key doesn't exist. Errors on nil key.
	Get(key []byte) ([]byte, error)

	// Has checks if a key exists. Errors on nil key.
	Has(key []byte) (bool, error)

	// Iterator over a domain of keys in ascending order. End is exclusive.
	// Start must be less than end, or the Iterator is invalid.
	// CONTRACT: No writes may happen within a domain while an iterator
	// exists over it.
	Iterator(start, end []byte) (Iterator, error)

	// ReverseIterator over a domain of keys in descending order. End is
	// exclusive. Start must be greater than end, or the Iterator is
	// invalid.
	ReverseIterator(start, end []byte) (Iterator, error)
}

// SetDeleter is a minimal interface for writing.
type SetDeleter interface {
	Set(key, value []byte) error
	Delete(key []byte) error
}

// KVStore is a simple interface to get/set data.
type KVStore interface {
	ReadOnlyKVStore
	SetDeleter

	// NewBatch returns a batch that can write multiple ops atomically.
	NewBatch() Batch
}

// Batch can write multiple ops atomically to an underlying KVStore.
type Batch interface {
	SetDeleter
	Write() error
}

// Iterator allows us to access a set of items within a range of keys.
//
//	var itr Iterator = ...
//	defer itr.Close()
//
//	for ; itr.Valid(); itr.Next() {
//	    k, v := itr.Key(), itr.Value()
//	    ...
//	}
type Iterator interface {
	// Valid returns whether the current position is valid.
	// Once invalid, an Iterator is forever invalid.
	Valid() bool

	// Next moves the iterator to the next sequential key in the database.
	// If Valid returns false, this method will panic.
	Next() error

	// Key returns the key of the cursor.
	// CONTRACT: key readonly []byte
	Key() (key []byte)

	// Value returns the value of the cursor.
	// CONTRACT: value readonly []byte
	Value() (value []byte)

	// Close releases the Iterator.
	Close()
}

// CacheableKVStore is a KVStore that supports CacheWrapping.
//
// CacheWrap() should not return a Committer, since Commit() on
// cache-wraps makes no sense.
type CacheableKVStore interface {
	KVStore
	CacheWrap() KVCacheWrap
}

// KVCacheWrap allows us to maintain a scratch-pad of uncommitted data
// that can be read by all queries.
//
// At the end, call Write to flush the cached writes to the parent store,
// or Discard to drop them. This is how every public ledger operation gets
// its all-or-nothing semantics: all writes go to a cache wrap and are
// flushed only after the whole operation succeeded.
type KVCacheWrap interface {
	// CacheableKVStore allows the cache to be wrapped recursively.
	CacheableKVStore

	// Write syncs with the underlying store.
	Write() error

	// Discard invalidates this CacheWrap and releases all data.
	Discard()
}

// CommitKVStore is a store that can persist a sequence of committed
// states to disk.
type CommitKVStore interface {
	// Get returns the value at the last committed state.
	Get(key []byte) ([]byte, error)

	// CacheWrap returns a scratch-pad to perform a set of actions on.
	CacheWrap() KVCacheWrap

	// Commit persists the pending writes and returns info on the saved
	// version.
	Commit() (CommitID, error)

	// LoadLatestVersion loads the latest persisted version. If there was
	// a crash during the last commit it is guaranteed to return a stable
	// state, even if older.
	LoadLatestVersion() error

	// LatestVersion returns info on the latest version saved to disk.
	LatestVersion() CommitID

	// Close releases the underlying engine resources.
	Close() error
}

// CommitID identifies a committed version of the store.
type CommitID struct {
	Version int64
}

// Persistent objects can be serialized to and from binary format. All
// models stored through the orm package implement this interface, backed
// by the CBOR codec.
type Persistent interface {
	Marshal() ([]byte, error)
	Unmarshal([]byte) error
}
