// Package streamtest provides fixtures shared by tests across the
// repository: deterministic addresses, a manually advanced clock and a
// funded store helper.
package streamtest

import (
	"fmt"
	"math/big"
	"sync/atomic"
	"testing"

	"github.com/streampay/streampay"
	"github.com/streampay/streampay/store"
	"github.com/streampay/streampay/x/cash"
)

var addrCounter int64

// NewAddress returns a new unique address.
func NewAddress() streampay.Address {
	n := atomic.AddInt64(&addrCounter, 1)
	return streampay.NewAddress([]byte(fmt.Sprintf("test-address-%d", n)))
}

// NamedAddress returns the deterministic address for a label, so tests
// can refer to "alice" or "token" repeatedly.
func NamedAddress(label string) streampay.Address {
	return streampay.NewAddress([]byte(label))
}

// Clock is a manually controlled time source.
type Clock struct {
	now streampay.UnixTime
}

// NewClock returns a clock set to the given unix time.
func NewClock(now int64) *Clock {
	return &Clock{now: streampay.UnixTime(now)}
}

// Now is the time source to plug into a controller.
func (c *Clock) Now() streampay.UnixTime {
	return c.now
}

// Set moves the clock to an absolute unix time.
func (c *Clock) Set(now int64) {
	c.now = streampay.UnixTime(now)
}

// Advance moves the clock forward by the given number of seconds.
func (c *Clock) Advance(seconds int64) {
	c.now += streampay.UnixTime(seconds)
}

// Fund issues the given token balance into an account, failing the test
// on error.
func Fund(t testing.TB, db streampay.KVStore, account, token streampay.Address, value int64) {
	t.Helper()
	if err := cash.NewController().IssueCoins(db, account, token, big.NewInt(value)); err != nil {
		t.Fatalf("fund %s: %+v", account, err)
	}
}

// Balance returns the token balance of an account, failing the test on
// error.
func Balance(t testing.TB, db streampay.ReadOnlyKVStore, account, token streampay.Address) *big.Int {
	t.Helper()
	b, err := cash.NewController().Balance(db, account, token)
	if err != nil {
		t.Fatalf("balance of %s: %+v", account, err)
	}
	return b
}

// NewStore returns an empty in-memory store.
func NewStore() streampay.CacheableKVStore {
	return store.MemStore()
}
