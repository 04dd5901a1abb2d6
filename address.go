package streampay

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"regexp"

	"github.com/streampay/streampay/errors"
)

// AddressLength is the length of all addresses. It must not change during
// the lifetime of a store.
const AddressLength = 20

// it must have (?s) flags, otherwise it errors when the data section
// contains 0x20 (newline)
var conditionFormat = regexp.MustCompile(`(?s)^([a-z0-9_\-]{3,10})/([a-z0-9_\-]{3,10})/(.+)$`)

// Condition is a specially formatted array describing who controls an
// account. It is of the format:
//
//	sprintf("%s/%s/%s", extension, type, data)
//
// Conditions are used to derive addresses for accounts that are owned by
// an extension rather than by a keypair, for example the escrow account
// holding the deposited funds of a single stream.
type Condition []byte

// NewCondition composes a condition out of an extension name, a type and
// arbitrary binary data.
func NewCondition(ext, typ string, data []byte) Condition {
	pre := fmt.Sprintf("%s/%s/", ext, typ)
	return append([]byte(pre), data...)
}

// Parse extracts the sections from the condition bytes and verifies it is
// properly formatted.
func (c Condition) Parse() (string, string, []byte, error) {
	chunks := conditionFormat.FindSubmatch(c)
	if len(chunks) == 0 {
		return "", "", nil, errors.Wrapf(errors.ErrInvalidInput, "condition: %X", []byte(c))
	}
	return string(chunks[1]), string(chunks[2]), chunks[3], nil
}

// Address converts a condition into its account address.
func (c Condition) Address() Address {
	return NewAddress(c)
}

// Equals checks if two conditions are the same.
func (c Condition) Equals(o Condition) bool {
	return bytes.Equal(c, o)
}

// Validate returns an error if the condition is not in the proper format.
func (c Condition) Validate() error {
	if !conditionFormat.Match(c) {
		return errors.Wrapf(errors.ErrInvalidInput, "condition: %X", []byte(c))
	}
	return nil
}

// String keeps the extension and type readable and hex-encodes the data.
func (c Condition) String() string {
	ext, typ, data, err := c.Parse()
	if err != nil {
		return fmt.Sprintf("Invalid Condition: %X", []byte(c))
	}
	return fmt.Sprintf("%s/%s/%X", ext, typ, data)
}

// Address represents a collision-free, one-way digest of a condition or a
// public key. It is always of AddressLength bytes.
type Address []byte

// NewAddress hashes and truncates into the proper size.
func NewAddress(data []byte) Address {
	if data == nil {
		return nil
	}
	h := sha256.Sum256(data)
	return h[:AddressLength]
}

// ParseAddress decodes a hex encoded address into its binary form.
func ParseAddress(enc string) (Address, error) {
	raw, err := hex.DecodeString(enc)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrInvalidInput, "malformed address: %s", err)
	}
	addr := Address(raw)
	return addr, addr.Validate()
}

// Validate returns an error if the address is not the proper size.
func (a Address) Validate() error {
	if len(a) != AddressLength {
		return errors.Wrapf(errors.ErrInvalidInput, "address length: %d", len(a))
	}
	return nil
}

// Equals checks if two addresses are the same.
func (a Address) Equals(o Address) bool {
	return bytes.Equal(a, o)
}

// String returns a human readable hex representation.
func (a Address) String() string {
	if len(a) == 0 {
		return "(nil)"
	}
	return fmt.Sprintf("%X", []byte(a))
}

func (a Address) MarshalJSON() ([]byte, error) {
	return json.Marshal(hex.EncodeToString(a))
}

func (a *Address) UnmarshalJSON(raw []byte) error {
	var enc string
	if err := json.Unmarshal(raw, &enc); err != nil {
		return errors.Wrap(err, "cannot decode json")
	}
	if enc == "" {
		*a = nil
		return nil
	}
	addr, err := ParseAddress(enc)
	if err != nil {
		return err
	}
	*a = addr
	return nil
}

// Clone returns an independent copy of this address.
func (a Address) Clone() Address {
	if a == nil {
		return nil
	}
	cpy := make(Address, len(a))
	copy(cpy, a)
	return cpy
}
