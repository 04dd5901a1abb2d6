package orm

import (
	"encoding/binary"

	"github.com/streampay/streampay"
)

// Sequence maintains a counter and generates a series of keys. Each key is
// greater than the last, both NextInt() as well as bytes.Compare() on
// NextVal().
type Sequence struct {
	id []byte
}

// NewSequence returns a sequence counter. A sequence is using the
// following pattern to construct a key:
//
//	_s.<bucket>:<name>
func NewSequence(bucket, name string) Sequence {
	id := "_s." + bucket + ":" + name
	return Sequence{
		id: []byte(id),
	}
}

// NextVal increments the sequence and returns its state as 8 bytes.
func (s *Sequence) NextVal(db streampay.KVStore) ([]byte, error) {
	_, bz, err := s.increment(db, 1)
	return bz, err
}

// NextInt increments the sequence and returns its state as an int.
func (s *Sequence) NextInt(db streampay.KVStore) (int64, error) {
	val, _, err := s.increment(db, 1)
	return val, err
}

// Latest returns the recently returned value of the sequence. This method
// does not modify the sequence state. Use NextVal or NextInt to acquire a
// sequence value that was not given to anyone else.
func (s *Sequence) Latest(db streampay.ReadOnlyKVStore) (int64, []byte, error) {
	raw, err := db.Get(s.id)
	if err != nil {
		return 0, nil, err
	}
	return DecodeSequence(raw), raw, nil
}

func (s *Sequence) increment(db streampay.KVStore, inc int64) (int64, []byte, error) {
	raw, err := db.Get(s.id)
	if err != nil {
		return 0, nil, err
	}
	val := DecodeSequence(raw) + inc
	raw = EncodeSequence(val)
	return val, raw, db.Set(s.id, raw)
}

// DecodeSequence converts a raw sequence value to an int. A nil value
// decodes to zero.
func DecodeSequence(bz []byte) int64 {
	if bz == nil {
		return 0
	}
	return int64(binary.BigEndian.Uint64(bz))
}

// EncodeSequence converts an int to the binary sequence representation.
func EncodeSequence(val int64) []byte {
	bz := make([]byte, 8)
	binary.BigEndian.PutUint64(bz, uint64(val))
	return bz
}
