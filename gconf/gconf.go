package gconf

import (
	"github.com/streampay/streampay/errors"
)

// ReadStore is a subset of streampay.ReadOnlyKVStore.
type ReadStore interface {
	Get([]byte) ([]byte, error)
}

// Store is a subset of streampay.KVStore.
type Store interface {
	ReadStore
	Set([]byte, []byte) error
}

// Save will Validate the object, before writing it to a special
// "configuration" singleton for that package name.
func Save(db Store, pkg string, src ValidMarshaler) error {
	key := []byte("_c:" + pkg)
	if err := src.Validate(); err != nil {
		return errors.Wrapf(err, "validation: key %q", key)
	}
	raw, err := src.Marshal()
	if err != nil {
		return errors.Wrapf(err, "marshal: key %q", key)
	}
	return db.Set(key, raw)
}

// ValidMarshaler is implemented by objects that can serialize themselves
// to a binary representation. You must add your own Validate method.
type ValidMarshaler interface {
	Marshal() ([]byte, error)
	Validate() error
}

// Load sets dst to the configuration stored for the given package. It
// returns ErrNotFound when no configuration was saved yet.
func Load(db ReadStore, pkg string, dst Unmarshaler) error {
	key := []byte("_c:" + pkg)
	raw, err := db.Get(key)
	if err != nil {
		return err
	}
	if raw == nil {
		return errors.Wrapf(errors.ErrNotFound, "key %q", key)
	}
	if err := dst.Unmarshal(raw); err != nil {
		return errors.Wrapf(err, "unmarshal: key %q", key)
	}
	return nil
}

// Unmarshaler is implemented by objects that can load their state from a
// given binary representation.
type Unmarshaler interface {
	Unmarshal([]byte) error
}

// Configuration combines the serialization interfaces that a package
// configuration entity must provide.
type Configuration interface {
	ValidMarshaler
	Unmarshaler
}

// Exists returns true if a configuration was saved for the given package.
func Exists(db ReadStore, pkg string) (bool, error) {
	raw, err := db.Get([]byte("_c:" + pkg))
	if err != nil {
		return false, err
	}
	return raw != nil, nil
}
