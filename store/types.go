package store

import "github.com/streampay/streampay"

// Aliases for all storage types of the root package, for shorter names
// everywhere.

type ReadOnlyKVStore = streampay.ReadOnlyKVStore
type KVStore = streampay.KVStore
type SetDeleter = streampay.SetDeleter
type Batch = streampay.Batch
type Iterator = streampay.Iterator
type CacheableKVStore = streampay.CacheableKVStore
type KVCacheWrap = streampay.KVCacheWrap
type CommitKVStore = streampay.CommitKVStore
type CommitID = streampay.CommitID
