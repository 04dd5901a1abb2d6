package stream

import (
	"math/big"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/streampay/streampay/store/bolt"
	"github.com/streampay/streampay/streamtest"
	"github.com/streampay/streampay/x/cash"
)

// The ledger runs unchanged on the durable store: operations work on a
// cache wrap of the bolt file and the state survives a reopen.
func TestLedgerOnDurableStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "streams.db")

	admin := streamtest.NamedAddress("admin")
	collector := streamtest.NamedAddress("collector")
	sender := streamtest.NamedAddress("sender")
	recipient := streamtest.NamedAddress("recipient")
	token := streamtest.NamedAddress("token")

	clock := streamtest.NewClock(0)
	ledger := NewLedger(cash.NewController(), nil).WithClock(clock.Now)

	cs, err := bolt.NewCommitStore(path)
	require.NoError(t, err)

	db := cs.CacheWrap()
	require.NoError(t, ledger.Initialize(db, admin, collector, 0))
	streamtest.Fund(t, db, sender, token, 1000)
	id, err := ledger.CreateStream(db, sender, recipient, token,
		big.NewInt(1000), big.NewInt(1000), 0, 1000)
	require.NoError(t, err)
	require.NoError(t, db.Write())
	_, err = cs.Commit()
	require.NoError(t, err)
	require.NoError(t, cs.Close())

	// Reopen and keep operating on the persisted state.
	cs, err = bolt.NewCommitStore(path)
	require.NoError(t, err)
	defer cs.Close()
	require.NoError(t, cs.LoadLatestVersion())
	assert.Equal(t, int64(1), cs.LatestVersion().Version)

	db = cs.CacheWrap()
	s, err := ledger.GetStream(db, id)
	require.NoError(t, err)
	assert.Equal(t, int64(1000), s.TotalAmount.Int64())

	clock.Set(500)
	require.NoError(t, ledger.Withdraw(db, recipient, id, big.NewInt(500)))
	require.NoError(t, db.Write())

	balance := streamtest.Balance(t, cs.CacheWrap(), recipient, token)
	assert.Equal(t, int64(500), balance.Int64())
}
