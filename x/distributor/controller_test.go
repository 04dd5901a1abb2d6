package distributor

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/streampay/streampay"
	"github.com/streampay/streampay/errors"
	"github.com/streampay/streampay/events"
	"github.com/streampay/streampay/streamtest"
	"github.com/streampay/streampay/x/cash"
)

type testEngine struct {
	db     streampay.CacheableKVStore
	clock  *streamtest.Clock
	bus    *events.Bus
	engine *Engine

	admin      streampay.Address
	feeAddress streampay.Address
	sender     streampay.Address
	token      streampay.Address
}

// newTestEngine returns an initialized engine with the sender funded
// with 100000 tokens.
func newTestEngine(t *testing.T, feePercent uint32) *testEngine {
	t.Helper()

	te := &testEngine{
		db:         streamtest.NewStore(),
		clock:      streamtest.NewClock(1000),
		bus:        events.NewBus(),
		admin:      streamtest.NamedAddress("admin"),
		feeAddress: streamtest.NamedAddress("fee address"),
		sender:     streamtest.NamedAddress("sender"),
		token:      streamtest.NamedAddress("token"),
	}
	te.engine = NewEngine(cash.NewController(), te.bus).WithClock(te.clock.Now)
	require.NoError(t, te.engine.Initialize(te.db, te.admin, feePercent, te.feeAddress))
	streamtest.Fund(t, te.db, te.sender, te.token, 100000)
	return te
}

func (te *testEngine) balance(t *testing.T, account streampay.Address) int64 {
	t.Helper()
	return streamtest.Balance(t, te.db, account, te.token).Int64()
}

func recipients(labels ...string) []streampay.Address {
	out := make([]streampay.Address, len(labels))
	for i, l := range labels {
		out[i] = streamtest.NamedAddress(l)
	}
	return out
}

func TestInitializeOnlyOnce(t *testing.T) {
	te := newTestEngine(t, 0)
	err := te.engine.Initialize(te.db, te.admin, 0, te.feeAddress)
	assert.True(t, errors.ErrAlreadyInitialized.Is(err), "unexpected error: %+v", err)
}

func TestInitializeRejectsFeeAboveMax(t *testing.T) {
	db := streamtest.NewStore()
	engine := NewEngine(cash.NewController(), nil)
	err := engine.Initialize(db, streamtest.NamedAddress("admin"), MaxFeePercent+1, streamtest.NamedAddress("fee address"))
	assert.True(t, errors.ErrFeeTooHigh.Is(err), "unexpected error: %+v", err)
}

func TestDistributeRequiresInitialization(t *testing.T) {
	db := streamtest.NewStore()
	engine := NewEngine(cash.NewController(), nil)
	err := engine.DistributeEqual(db, streamtest.NamedAddress("sender"),
		streamtest.NamedAddress("token"), big.NewInt(100), recipients("a"))
	assert.True(t, errors.ErrNotInitialized.Is(err), "unexpected error: %+v", err)
}

func TestDistributeEqualExact(t *testing.T) {
	te := newTestEngine(t, 0)
	rs := recipients("r1", "r2", "r3", "r4")

	require.NoError(t, te.engine.DistributeEqual(te.db, te.sender, te.token, big.NewInt(1000), rs))

	for _, r := range rs {
		assert.Equal(t, int64(250), te.balance(t, r))
	}
	assert.Equal(t, int64(99000), te.balance(t, te.sender))
}

func TestDistributeEqualRemainderStaysWithSender(t *testing.T) {
	te := newTestEngine(t, 0)
	rs := recipients("r1", "r2", "r3")

	require.NoError(t, te.engine.DistributeEqual(te.db, te.sender, te.token, big.NewInt(100), rs))

	// 100/3 floors to 33, the 1 unit remainder is not distributed.
	for _, r := range rs {
		assert.Equal(t, int64(33), te.balance(t, r))
	}
	assert.Equal(t, int64(100000-99), te.balance(t, te.sender))
}

func TestDistributeEqualWithFee(t *testing.T) {
	te := newTestEngine(t, 10)
	rs := recipients("r1", "r2")

	require.NoError(t, te.engine.DistributeEqual(te.db, te.sender, te.token, big.NewInt(1000), rs))

	// Fee 10% of 1000 = 100, net 900 split into two.
	assert.Equal(t, int64(100), te.balance(t, te.feeAddress))
	for _, r := range rs {
		assert.Equal(t, int64(450), te.balance(t, r))
	}
}

func TestDistributeEqualValidation(t *testing.T) {
	te := newTestEngine(t, 0)

	err := te.engine.DistributeEqual(te.db, te.sender, te.token, big.NewInt(100), nil)
	assert.True(t, ErrNoRecipients.Is(err), "unexpected error: %+v", err)

	err = te.engine.DistributeEqual(te.db, te.sender, te.token, big.NewInt(0), recipients("r1"))
	assert.True(t, errors.ErrInvalidAmount.Is(err), "unexpected error: %+v", err)

	// Net amount must give every recipient at least one unit.
	err = te.engine.DistributeEqual(te.db, te.sender, te.token, big.NewInt(2), recipients("r1", "r2", "r3"))
	assert.True(t, ErrAmountTooSmall.Is(err), "unexpected error: %+v", err)
}

func TestDistributeEqualInsufficientFunds(t *testing.T) {
	te := newTestEngine(t, 0)
	rs := recipients("r1", "r2")

	err := te.engine.DistributeEqual(te.db, te.sender, te.token, big.NewInt(200001), rs)
	assert.True(t, cash.ErrInsufficientFunds.Is(err), "unexpected error: %+v", err)

	// Nothing moved, nothing recorded.
	assert.Equal(t, int64(100000), te.balance(t, te.sender))
	total, err := te.engine.GetTotalDistributions(te.db)
	require.NoError(t, err)
	assert.Equal(t, int64(0), total)
}

func TestDistributeWeightedExact(t *testing.T) {
	te := newTestEngine(t, 0)
	rs := recipients("r1", "r2")

	require.NoError(t, te.engine.DistributeWeighted(te.db, te.sender, te.token, rs,
		[]*big.Int{big.NewInt(30), big.NewInt(70)}))

	assert.Equal(t, int64(30), te.balance(t, rs[0]))
	assert.Equal(t, int64(70), te.balance(t, rs[1]))
}

func TestDistributeWeightedWithFee(t *testing.T) {
	te := newTestEngine(t, 10)
	rs := recipients("r1", "r2")

	require.NoError(t, te.engine.DistributeWeighted(te.db, te.sender, te.token, rs,
		[]*big.Int{big.NewInt(30), big.NewInt(70)}))

	// Sum 100, fee 10, net 90. Shares are rescaled to the net amount.
	assert.Equal(t, int64(27), te.balance(t, rs[0]))
	assert.Equal(t, int64(63), te.balance(t, rs[1]))
	assert.Equal(t, int64(10), te.balance(t, te.feeAddress))
}

func TestDistributeWeightedValidation(t *testing.T) {
	te := newTestEngine(t, 0)

	err := te.engine.DistributeWeighted(te.db, te.sender, te.token, nil, nil)
	assert.True(t, ErrNoRecipients.Is(err), "unexpected error: %+v", err)

	err = te.engine.DistributeWeighted(te.db, te.sender, te.token, recipients("r1", "r2"),
		[]*big.Int{big.NewInt(10)})
	assert.True(t, ErrRecipientsMismatch.Is(err), "unexpected error: %+v", err)

	err = te.engine.DistributeWeighted(te.db, te.sender, te.token, recipients("r1", "r2"),
		[]*big.Int{big.NewInt(10), big.NewInt(0)})
	assert.True(t, errors.ErrInvalidAmount.Is(err), "unexpected error: %+v", err)
}

func TestStatisticsAndHistory(t *testing.T) {
	te := newTestEngine(t, 0)
	other := streamtest.NamedAddress("other sender")
	streamtest.Fund(t, te.db, other, te.token, 1000)

	require.NoError(t, te.engine.DistributeEqual(te.db, te.sender, te.token, big.NewInt(1000), recipients("r1", "r2")))
	te.clock.Advance(50)
	require.NoError(t, te.engine.DistributeWeighted(te.db, te.sender, te.token, recipients("r3"),
		[]*big.Int{big.NewInt(500)}))
	te.clock.Advance(50)
	require.NoError(t, te.engine.DistributeEqual(te.db, other, te.token, big.NewInt(300), recipients("r1")))

	user, err := te.engine.GetUserStats(te.db, te.sender)
	require.NoError(t, err)
	assert.Equal(t, int64(2), user.DistributionsInitiated)
	assert.Equal(t, int64(1500), user.TotalAmount.Int64())

	user, err = te.engine.GetUserStats(te.db, other)
	require.NoError(t, err)
	assert.Equal(t, int64(1), user.DistributionsInitiated)
	assert.Equal(t, int64(300), user.TotalAmount.Int64())

	tokenStats, err := te.engine.GetTokenStats(te.db, te.token)
	require.NoError(t, err)
	assert.Equal(t, int64(3), tokenStats.DistributionCount)
	assert.Equal(t, int64(1800), tokenStats.TotalAmount.Int64())
	assert.Equal(t, streampay.UnixTime(1100), tokenStats.LastTime)

	total, err := te.engine.GetTotalDistributions(te.db)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)

	amount, err := te.engine.GetTotalDistributedAmount(te.db)
	require.NoError(t, err)
	assert.Equal(t, int64(1800), amount.Int64())

	history, err := te.engine.GetDistributionHistory(te.db, 0, 0)
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, int64(1), history[0].ID)
	assert.Equal(t, int64(1000), history[0].Amount.Int64())
	assert.Equal(t, 2, history[0].RecipientsCount)
	assert.True(t, history[2].Sender.Equals(other))
}

func TestHistoryPagination(t *testing.T) {
	te := newTestEngine(t, 0)
	for i := 0; i < 5; i++ {
		require.NoError(t, te.engine.DistributeEqual(te.db, te.sender, te.token, big.NewInt(100), recipients("r1")))
	}

	page, err := te.engine.GetDistributionHistory(te.db, 2, 2)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, int64(2), page[0].ID)
	assert.Equal(t, int64(3), page[1].ID)

	page, err = te.engine.GetDistributionHistory(te.db, 5, 10)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, int64(5), page[0].ID)

	page, err = te.engine.GetDistributionHistory(te.db, 6, 10)
	require.NoError(t, err)
	assert.Empty(t, page)
}

func TestUnknownStatsAreZero(t *testing.T) {
	te := newTestEngine(t, 0)

	user, err := te.engine.GetUserStats(te.db, streamtest.NamedAddress("nobody"))
	require.NoError(t, err)
	assert.Equal(t, int64(0), user.DistributionsInitiated)
	assert.Equal(t, int64(0), user.TotalAmount.Int64())

	tokenStats, err := te.engine.GetTokenStats(te.db, streamtest.NamedAddress("no token"))
	require.NoError(t, err)
	assert.Equal(t, int64(0), tokenStats.DistributionCount)
}

func TestSetProtocolFee(t *testing.T) {
	te := newTestEngine(t, 5)

	err := te.engine.SetProtocolFee(te.db, te.sender, 20)
	assert.True(t, errors.ErrUnauthorized.Is(err), "unexpected error: %+v", err)

	err = te.engine.SetProtocolFee(te.db, te.admin, MaxFeePercent+1)
	assert.True(t, errors.ErrFeeTooHigh.Is(err), "unexpected error: %+v", err)

	require.NoError(t, te.engine.SetProtocolFee(te.db, te.admin, 20))
	fee, err := te.engine.GetProtocolFee(te.db)
	require.NoError(t, err)
	assert.Equal(t, uint32(20), fee)

	admin, err := te.engine.GetAdmin(te.db)
	require.NoError(t, err)
	assert.True(t, admin.Equals(te.admin))

	feeAddr, err := te.engine.GetFeeAddress(te.db)
	require.NoError(t, err)
	assert.True(t, feeAddr.Equals(te.feeAddress))
}

func TestDistributionEvent(t *testing.T) {
	te := newTestEngine(t, 10)
	rec := events.Record(te.bus, DistributedEvent{})

	require.NoError(t, te.engine.DistributeEqual(te.db, te.sender, te.token, big.NewInt(1000), recipients("r1", "r2")))

	got := rec.Events()
	require.Len(t, got, 1)
	ev := got[0].(DistributedEvent)
	assert.Equal(t, int64(1), ev.DistributionID)
	assert.Equal(t, int64(900), ev.Net.Int64())
	assert.Equal(t, int64(100), ev.Fee.Int64())
	assert.Equal(t, 2, ev.RecipientsCount)
}
