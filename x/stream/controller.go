package stream

import (
	"math/big"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/streampay/streampay"
	"github.com/streampay/streampay/amount"
	"github.com/streampay/streampay/errors"
	"github.com/streampay/streampay/events"
	"github.com/streampay/streampay/gconf"
	"github.com/streampay/streampay/orm"
	"github.com/streampay/streampay/x/cash"
)

// Ledger owns all streams and implements their lifecycle. Every mutating
// method is atomic: it works on a cache wrap of the given store and the
// writes become visible, and events observable, only if the whole
// operation succeeded.
//
// Caller identity is an explicit parameter on every mutating method. The
// ledger verifies it against the stream's stored addresses; it is the
// hosting layer's job to authenticate the caller before handing it in.
type Ledger struct {
	streams orm.Bucket
	metrics orm.Bucket
	proto   orm.Bucket
	ids     orm.Sequence
	cash    cash.Controller
	bus     *events.Bus
	now     func() streampay.UnixTime
	log     *logrus.Entry
}

// NewLedger returns a ledger that escrows deposits through the given
// cash controller and publishes events on the given bus after commit.
func NewLedger(cashCtrl cash.Controller, bus *events.Bus) *Ledger {
	return &Ledger{
		streams: NewStreamBucket(),
		metrics: NewMetricsBucket(),
		proto:   NewProtocolMetricsBucket(),
		ids:     NewStreamSeq(),
		cash:    cashCtrl,
		bus:     bus,
		now:     func() streampay.UnixTime { return streampay.AsUnixTime(time.Now()) },
		log:     logrus.WithField("module", "stream"),
	}
}

// WithClock replaces the ledger's time source. Intended for tests.
func (l *Ledger) WithClock(now func() streampay.UnixTime) *Ledger {
	l.now = now
	return l
}

// WithLogger makes the ledger log through the given logger.
func (l *Ledger) WithLogger(log logrus.FieldLogger) *Ledger {
	l.log = log.WithField("module", "stream")
	return l
}

// Initialize writes the ledger configuration. It can be called exactly
// once.
func (l *Ledger) Initialize(db streampay.CacheableKVStore, admin, feeCollector streampay.Address, feeRate uint32) error {
	return l.atomically(db, func(tx streampay.KVStore, emit emitFn) error {
		switch ok, err := gconf.Exists(tx, configPackage); {
		case err != nil:
			return err
		case ok:
			return errors.Wrap(errors.ErrAlreadyInitialized, "stream ledger")
		}
		conf := Configuration{
			Admin:        admin.Clone(),
			FeeCollector: feeCollector.Clone(),
			FeeRate:      feeRate,
		}
		if err := saveConf(tx, &conf); err != nil {
			return err
		}
		if err := l.proto.Put(tx, protocolMetricsKey, &ProtocolMetrics{
			TotalTokensStreamed: amount.Zero(),
		}); err != nil {
			return err
		}
		l.log.WithFields(logrus.Fields{
			"admin":    admin,
			"fee_rate": feeRate,
		}).Info("stream ledger initialized")
		return nil
	})
}

// CreateStream creates a new stream, escrows the initial deposit and
// returns the assigned stream id.
func (l *Ledger) CreateStream(
	db streampay.CacheableKVStore,
	sender, recipient, token streampay.Address,
	total, initial *big.Int,
	startTime, endTime streampay.UnixTime,
) (int64, error) {
	var streamID int64
	err := l.atomically(db, func(tx streampay.KVStore, emit emitFn) error {
		if _, err := loadConf(tx); err != nil {
			return err
		}
		if err := sender.Validate(); err != nil {
			return errors.Wrap(err, "sender")
		}
		if err := recipient.Validate(); err != nil {
			return errors.Wrap(ErrInvalidRecipient, err.Error())
		}
		if recipient.Equals(sender) {
			return errors.Wrap(ErrInvalidRecipient, "recipient equals sender")
		}
		if err := token.Validate(); err != nil {
			return errors.Wrap(err, "token")
		}
		if err := amount.ValidatePositive(total); err != nil {
			return errors.Wrap(err, "total amount")
		}
		if err := amount.ValidateNonNegative(initial); err != nil {
			return errors.Wrap(err, "initial amount")
		}
		if initial.Cmp(total) > 0 {
			return errors.Wrap(ErrDepositExceedsTotal, "initial amount above total")
		}
		if endTime <= startTime {
			return errors.Wrapf(ErrInvalidTimeRange, "start %d, end %d", startTime, endTime)
		}

		id, err := l.ids.NextInt(tx)
		if err != nil {
			return err
		}
		streamID = id

		s := Stream{
			ID:              id,
			Sender:          sender.Clone(),
			Recipient:       recipient.Clone(),
			Token:           token.Clone(),
			TotalAmount:     amount.Clone(total),
			Balance:         amount.Clone(initial),
			WithdrawnAmount: amount.Zero(),
			StartTime:       startTime,
			EndTime:         endTime,
			Status:          StreamStatusActive,
		}
		if initial.Sign() > 0 {
			if err := l.cash.MoveCoins(tx, sender, s.Account(), token, initial); err != nil {
				return err
			}
		}
		if err := l.streams.Put(tx, orm.EncodeSequence(id), &s); err != nil {
			return err
		}
		m := Metrics{
			StreamID:       id,
			TotalWithdrawn: amount.Zero(),
			LastActivity:   l.now(),
		}
		if err := l.metrics.Put(tx, orm.EncodeSequence(id), &m); err != nil {
			return err
		}

		if err := l.updateProtocolMetrics(tx, func(p *ProtocolMetrics) error {
			p.TotalStreamsCreated++
			p.TotalActiveStreams++
			return nil
		}); err != nil {
			return err
		}

		emit(StreamCreatedEvent{
			StreamID:  id,
			Sender:    s.Sender,
			Recipient: s.Recipient,
			Token:     s.Token,
			Total:     amount.Clone(total),
			Initial:   amount.Clone(initial),
			StartTime: startTime,
			EndTime:   endTime,
		})
		l.log.WithFields(logrus.Fields{
			"stream_id": id,
			"total":     total,
		}).Info("stream created")
		return nil
	})
	return streamID, err
}

// Deposit adds funds to an existing stream. Anyone may deposit, the
// funds are taken from the caller's wallet.
func (l *Ledger) Deposit(db streampay.CacheableKVStore, from streampay.Address, streamID int64, value *big.Int) error {
	return l.atomically(db, func(tx streampay.KVStore, emit emitFn) error {
		if err := amount.ValidatePositive(value); err != nil {
			return err
		}
		s, err := l.stream(tx, streamID)
		if err != nil {
			return err
		}
		if s.Status.Terminal() {
			return errors.Wrapf(ErrStreamNotActive, "stream %d is %s", streamID, s.Status)
		}
		balance, err := amount.Add(s.Balance, value)
		if err != nil {
			return err
		}
		if balance.Cmp(s.TotalAmount) > 0 {
			return errors.Wrapf(ErrDepositExceedsTotal, "balance %s, total %s", balance, s.TotalAmount)
		}
		if err := l.cash.MoveCoins(tx, from, s.Account(), s.Token, value); err != nil {
			return err
		}
		s.Balance = balance
		if err := l.streams.Put(tx, orm.EncodeSequence(streamID), &s); err != nil {
			return err
		}
		if err := l.touchMetrics(tx, streamID, func(m *Metrics) error { return nil }); err != nil {
			return err
		}

		emit(StreamDepositedEvent{
			StreamID: streamID,
			From:     from.Clone(),
			Amount:   amount.Clone(value),
			Balance:  amount.Clone(balance),
		})
		return nil
	})
}

// WithdrawableAmount returns how much the recipient could withdraw right
// now. While the stream is paused the value is computed at the pause
// instant, so it stays constant for the whole pause interval.
func (l *Ledger) WithdrawableAmount(db streampay.ReadOnlyKVStore, streamID int64) (*big.Int, error) {
	s, err := l.stream(db, streamID)
	if err != nil {
		return nil, err
	}
	if s.Status == StreamStatusCanceled {
		return nil, errors.Wrapf(ErrStreamNotActive, "stream %d is canceled", streamID)
	}
	return withdrawable(&s, l.now())
}

// Withdraw pays out the given amount of vested funds to the caller. The
// caller must be the recipient or the current delegate. The protocol fee
// is deducted from the paid amount.
func (l *Ledger) Withdraw(db streampay.CacheableKVStore, caller streampay.Address, streamID int64, value *big.Int) error {
	return l.withdraw(db, caller, streamID, value, false)
}

// WithdrawMax withdraws everything that is currently withdrawable. It
// fails when nothing is withdrawable.
func (l *Ledger) WithdrawMax(db streampay.CacheableKVStore, caller streampay.Address, streamID int64) error {
	return l.withdraw(db, caller, streamID, nil, true)
}

func (l *Ledger) withdraw(db streampay.CacheableKVStore, caller streampay.Address, streamID int64, value *big.Int, max bool) error {
	return l.atomically(db, func(tx streampay.KVStore, emit emitFn) error {
		conf, err := loadConf(tx)
		if err != nil {
			return err
		}
		s, err := l.stream(tx, streamID)
		if err != nil {
			return err
		}
		var m Metrics
		if err := l.metrics.One(tx, orm.EncodeSequence(streamID), &m); err != nil {
			return err
		}
		if !caller.Equals(s.Recipient) && !caller.Equals(m.CurrentDelegate) {
			return errors.Wrapf(errors.ErrUnauthorized, "%s may not withdraw from stream %d", caller, streamID)
		}
		if s.Status != StreamStatusActive && s.Status != StreamStatusPaused {
			return errors.Wrapf(ErrStreamNotActive, "stream %d is %s", streamID, s.Status)
		}

		now := l.now()
		available, err := withdrawable(&s, now)
		if err != nil {
			return err
		}
		if max {
			value = available
		}
		if err := amount.ValidatePositive(value); err != nil {
			if max {
				return errors.Wrapf(ErrInsufficientWithdrawable, "stream %d has nothing to withdraw", streamID)
			}
			return err
		}
		if value.Cmp(available) > 0 {
			return errors.Wrapf(ErrInsufficientWithdrawable, "requested %s, withdrawable %s", value, available)
		}

		fee, err := amount.Ratio(value, uint64(conf.FeeRate), 10000)
		if err != nil {
			return err
		}
		net, err := amount.Sub(value, fee)
		if err != nil {
			return err
		}
		if net.Sign() > 0 {
			if err := l.cash.MoveCoins(tx, s.Account(), caller, s.Token, net); err != nil {
				return err
			}
		}
		if fee.Sign() > 0 {
			if err := l.cash.MoveCoins(tx, s.Account(), conf.FeeCollector, s.Token, fee); err != nil {
				return err
			}
		}

		if s.WithdrawnAmount, err = amount.Add(s.WithdrawnAmount, value); err != nil {
			return err
		}
		completed := s.WithdrawnAmount.Cmp(s.TotalAmount) == 0 && now >= s.EndTime
		if completed {
			s.Status = StreamStatusCompleted
			s.PausedAt = 0
		}
		if err := l.streams.Put(tx, orm.EncodeSequence(streamID), &s); err != nil {
			return err
		}

		m.WithdrawalCount++
		if m.TotalWithdrawn, err = amount.Add(m.TotalWithdrawn, value); err != nil {
			return err
		}
		m.LastActivity = now
		if err := l.metrics.Put(tx, orm.EncodeSequence(streamID), &m); err != nil {
			return err
		}

		if err := l.updateProtocolMetrics(tx, func(p *ProtocolMetrics) error {
			var err error
			if p.TotalTokensStreamed, err = amount.Add(p.TotalTokensStreamed, value); err != nil {
				return err
			}
			if completed {
				p.TotalActiveStreams--
			}
			return nil
		}); err != nil {
			return err
		}

		emit(StreamWithdrawnEvent{
			StreamID: streamID,
			To:       caller.Clone(),
			Amount:   amount.Clone(value),
		})
		if fee.Sign() > 0 {
			emit(FeeCollectedEvent{
				StreamID:     streamID,
				Token:        s.Token,
				Fee:          fee,
				FeeCollector: conf.FeeCollector,
			})
		}
		if completed {
			emit(StreamCompletedEvent{StreamID: streamID})
		}
		return nil
	})
}

// PauseStream freezes the vesting clock. Only the sender may pause and
// only an active stream can be paused.
func (l *Ledger) PauseStream(db streampay.CacheableKVStore, caller streampay.Address, streamID int64) error {
	return l.atomically(db, func(tx streampay.KVStore, emit emitFn) error {
		s, err := l.stream(tx, streamID)
		if err != nil {
			return err
		}
		if !caller.Equals(s.Sender) {
			return errors.Wrapf(errors.ErrUnauthorized, "%s may not pause stream %d", caller, streamID)
		}
		if s.Status != StreamStatusActive {
			return errors.Wrapf(ErrStreamNotActive, "stream %d is %s", streamID, s.Status)
		}
		now := l.now()
		s.Status = StreamStatusPaused
		s.PausedAt = now
		if err := l.streams.Put(tx, orm.EncodeSequence(streamID), &s); err != nil {
			return err
		}
		if err := l.touchMetrics(tx, streamID, func(m *Metrics) error {
			m.PauseCount++
			return nil
		}); err != nil {
			return err
		}

		emit(StreamPausedEvent{StreamID: streamID, PausedAt: now})
		return nil
	})
}

// ResumeStream restarts the vesting clock of a paused stream. The time
// spent paused is excluded from vesting permanently.
func (l *Ledger) ResumeStream(db streampay.CacheableKVStore, caller streampay.Address, streamID int64) error {
	return l.atomically(db, func(tx streampay.KVStore, emit emitFn) error {
		s, err := l.stream(tx, streamID)
		if err != nil {
			return err
		}
		if !caller.Equals(s.Sender) {
			return errors.Wrapf(errors.ErrUnauthorized, "%s may not resume stream %d", caller, streamID)
		}
		if s.Status != StreamStatusPaused {
			return errors.Wrapf(ErrStreamNotPaused, "stream %d is %s", streamID, s.Status)
		}
		now := l.now()
		pausedFor := int64(now - s.PausedAt)
		if pausedFor < 0 {
			return errors.Wrapf(errors.ErrInvalidState, "paused at %d is in the future", s.PausedAt)
		}
		s.TotalPausedDuration += pausedFor
		s.PausedAt = 0
		s.Status = StreamStatusActive
		if err := l.streams.Put(tx, orm.EncodeSequence(streamID), &s); err != nil {
			return err
		}
		if err := l.touchMetrics(tx, streamID, func(m *Metrics) error { return nil }); err != nil {
			return err
		}

		emit(StreamResumedEvent{
			StreamID:       streamID,
			ResumedAt:      now,
			PausedDuration: pausedFor,
		})
		return nil
	})
}

// CancelStream settles a stream early. The vested but not yet withdrawn
// part goes to the recipient, the rest of the deposit back to the
// sender. Only the sender may cancel.
func (l *Ledger) CancelStream(db streampay.CacheableKVStore, caller streampay.Address, streamID int64) error {
	return l.atomically(db, func(tx streampay.KVStore, emit emitFn) error {
		s, err := l.stream(tx, streamID)
		if err != nil {
			return err
		}
		if !caller.Equals(s.Sender) {
			return errors.Wrapf(errors.ErrUnauthorized, "%s may not cancel stream %d", caller, streamID)
		}
		if s.Status != StreamStatusActive && s.Status != StreamStatusPaused {
			return errors.Wrapf(ErrStreamCannotBeCanceled, "stream %d is %s", streamID, s.Status)
		}

		payout, err := withdrawable(&s, l.now())
		if err != nil {
			return err
		}
		// Escrow still holds balance - withdrawn. Whatever is not vested
		// goes back to the sender.
		held, err := amount.Sub(s.Balance, s.WithdrawnAmount)
		if err != nil {
			return err
		}
		refund, err := amount.Sub(held, payout)
		if err != nil {
			return err
		}

		if payout.Sign() > 0 {
			if err := l.cash.MoveCoins(tx, s.Account(), s.Recipient, s.Token, payout); err != nil {
				return err
			}
		}
		if refund.Sign() > 0 {
			if err := l.cash.MoveCoins(tx, s.Account(), s.Sender, s.Token, refund); err != nil {
				return err
			}
		}

		if s.WithdrawnAmount, err = amount.Add(s.WithdrawnAmount, payout); err != nil {
			return err
		}
		s.Status = StreamStatusCanceled
		s.PausedAt = 0
		if err := l.streams.Put(tx, orm.EncodeSequence(streamID), &s); err != nil {
			return err
		}
		if err := l.touchMetrics(tx, streamID, func(m *Metrics) error { return nil }); err != nil {
			return err
		}
		if err := l.updateProtocolMetrics(tx, func(p *ProtocolMetrics) error {
			p.TotalActiveStreams--
			return nil
		}); err != nil {
			return err
		}

		emit(StreamCanceledEvent{
			StreamID:     streamID,
			VestedPayout: payout,
			SenderRefund: refund,
		})
		l.log.WithFields(logrus.Fields{
			"stream_id": streamID,
			"payout":    payout,
			"refund":    refund,
		}).Info("stream canceled")
		return nil
	})
}

// SetDelegate grants the withdrawal right of a stream to a delegate. Any
// previous delegate is replaced. Only the recipient may delegate, and
// not to itself.
func (l *Ledger) SetDelegate(db streampay.CacheableKVStore, caller streampay.Address, streamID int64, delegate streampay.Address) error {
	return l.atomically(db, func(tx streampay.KVStore, emit emitFn) error {
		s, err := l.stream(tx, streamID)
		if err != nil {
			return err
		}
		if !caller.Equals(s.Recipient) {
			return errors.Wrapf(errors.ErrUnauthorized, "%s may not delegate stream %d", caller, streamID)
		}
		if s.Status.Terminal() {
			return errors.Wrapf(ErrStreamNotActive, "stream %d is %s", streamID, s.Status)
		}
		if err := delegate.Validate(); err != nil {
			return errors.Wrap(ErrInvalidDelegate, err.Error())
		}
		if delegate.Equals(s.Recipient) {
			return errors.Wrap(ErrInvalidDelegate, "delegate equals recipient")
		}

		now := l.now()
		var replaced streampay.Address
		if err := l.touchMetrics(tx, streamID, func(m *Metrics) error {
			replaced = m.CurrentDelegate
			m.CurrentDelegate = delegate.Clone()
			m.TotalDelegations++
			m.LastDelegationTime = now
			return nil
		}); err != nil {
			return err
		}
		if err := l.updateProtocolMetrics(tx, func(p *ProtocolMetrics) error {
			p.TotalDelegations++
			return nil
		}); err != nil {
			return err
		}

		if len(replaced) != 0 {
			emit(DelegationRevokedEvent{StreamID: streamID, Delegate: replaced})
		}
		emit(DelegationGrantedEvent{StreamID: streamID, Delegate: delegate.Clone()})
		return nil
	})
}

// RevokeDelegate clears the delegate of a stream. Revoking when no
// delegate is set is a no-op.
func (l *Ledger) RevokeDelegate(db streampay.CacheableKVStore, caller streampay.Address, streamID int64) error {
	return l.atomically(db, func(tx streampay.KVStore, emit emitFn) error {
		s, err := l.stream(tx, streamID)
		if err != nil {
			return err
		}
		if !caller.Equals(s.Recipient) {
			return errors.Wrapf(errors.ErrUnauthorized, "%s may not revoke delegation of stream %d", caller, streamID)
		}
		var revoked streampay.Address
		if err := l.touchMetrics(tx, streamID, func(m *Metrics) error {
			revoked = m.CurrentDelegate
			m.CurrentDelegate = nil
			return nil
		}); err != nil {
			return err
		}
		if len(revoked) != 0 {
			emit(DelegationRevokedEvent{StreamID: streamID, Delegate: revoked})
		}
		return nil
	})
}

// GetDelegate returns the current delegate of a stream, or nil when none
// is set.
func (l *Ledger) GetDelegate(db streampay.ReadOnlyKVStore, streamID int64) (streampay.Address, error) {
	var m Metrics
	if err := l.metrics.One(db, orm.EncodeSequence(streamID), &m); err != nil {
		if errors.ErrNotFound.Is(err) {
			return nil, errors.Wrapf(ErrStreamNotFound, "stream %d", streamID)
		}
		return nil, err
	}
	return m.CurrentDelegate, nil
}

// GetStream returns a stream by id.
func (l *Ledger) GetStream(db streampay.ReadOnlyKVStore, streamID int64) (Stream, error) {
	return l.stream(db, streamID)
}

// GetStreamMetrics returns the per-stream metrics by stream id.
func (l *Ledger) GetStreamMetrics(db streampay.ReadOnlyKVStore, streamID int64) (Metrics, error) {
	var m Metrics
	if err := l.metrics.One(db, orm.EncodeSequence(streamID), &m); err != nil {
		if errors.ErrNotFound.Is(err) {
			return m, errors.Wrapf(ErrStreamNotFound, "stream %d", streamID)
		}
		return m, err
	}
	return m, nil
}

// GetProtocolMetrics returns the ledger-wide counters.
func (l *Ledger) GetProtocolMetrics(db streampay.ReadOnlyKVStore) (ProtocolMetrics, error) {
	var p ProtocolMetrics
	if err := l.proto.One(db, protocolMetricsKey, &p); err != nil {
		if errors.ErrNotFound.Is(err) {
			return p, errors.Wrap(errors.ErrNotInitialized, "stream ledger")
		}
		return p, err
	}
	return p, nil
}

// GetProtocolFeeRate returns the withdrawal fee in basis points.
func (l *Ledger) GetProtocolFeeRate(db streampay.ReadOnlyKVStore) (uint32, error) {
	conf, err := loadConf(db)
	if err != nil {
		return 0, err
	}
	return conf.FeeRate, nil
}

// GetFeeCollector returns the address receiving withdrawal fees.
func (l *Ledger) GetFeeCollector(db streampay.ReadOnlyKVStore) (streampay.Address, error) {
	conf, err := loadConf(db)
	if err != nil {
		return nil, err
	}
	return conf.FeeCollector, nil
}

// GetAdmin returns the ledger admin address.
func (l *Ledger) GetAdmin(db streampay.ReadOnlyKVStore) (streampay.Address, error) {
	conf, err := loadConf(db)
	if err != nil {
		return nil, err
	}
	return conf.Admin, nil
}

// SetProtocolFeeRate updates the withdrawal fee. Only the admin may call
// this and the rate is capped at MaxFeeRate.
func (l *Ledger) SetProtocolFeeRate(db streampay.CacheableKVStore, caller streampay.Address, feeRate uint32) error {
	return l.atomically(db, func(tx streampay.KVStore, emit emitFn) error {
		conf, err := loadConf(tx)
		if err != nil {
			return err
		}
		if !caller.Equals(conf.Admin) {
			return errors.Wrapf(errors.ErrUnauthorized, "%s is not the admin", caller)
		}
		if feeRate > MaxFeeRate {
			return errors.Wrapf(errors.ErrFeeTooHigh, "%d basis points, max %d", feeRate, MaxFeeRate)
		}
		conf.FeeRate = feeRate
		return saveConf(tx, &conf)
	})
}

// SetFeeCollector updates the address receiving withdrawal fees. Only
// the admin may call this.
func (l *Ledger) SetFeeCollector(db streampay.CacheableKVStore, caller, feeCollector streampay.Address) error {
	return l.atomically(db, func(tx streampay.KVStore, emit emitFn) error {
		conf, err := loadConf(tx)
		if err != nil {
			return err
		}
		if !caller.Equals(conf.Admin) {
			return errors.Wrapf(errors.ErrUnauthorized, "%s is not the admin", caller)
		}
		if err := feeCollector.Validate(); err != nil {
			return errors.Wrap(err, "fee collector")
		}
		conf.FeeCollector = feeCollector.Clone()
		return saveConf(tx, &conf)
	})
}

// withdrawable computes how much can be withdrawn from the stream at the
// given time.
//
// The vesting clock excludes time spent paused. While the stream is
// paused the reference time is pinned to the pause instant, so the
// result stays constant for the whole pause interval and after a resume
// continues exactly where it left off, shifted by the pause length.
func withdrawable(s *Stream, now streampay.UnixTime) (*big.Int, error) {
	ref := now
	if s.Status == StreamStatusPaused {
		ref = s.PausedAt
	}
	duration := int64(s.EndTime - s.StartTime)
	elapsed := int64(ref-s.StartTime) - s.TotalPausedDuration
	if elapsed < 0 {
		elapsed = 0
	}
	if elapsed > duration {
		elapsed = duration
	}
	vested, err := amount.Proportion(s.TotalAmount, big.NewInt(elapsed), big.NewInt(duration))
	if err != nil {
		return nil, err
	}
	// Vesting cannot release more than was actually deposited.
	available, err := amount.Sub(amount.Min(vested, s.Balance), s.WithdrawnAmount)
	if err != nil {
		return nil, err
	}
	if available.Sign() < 0 {
		return amount.Zero(), nil
	}
	return available, nil
}

func (l *Ledger) stream(db streampay.ReadOnlyKVStore, streamID int64) (Stream, error) {
	var s Stream
	if err := l.streams.One(db, orm.EncodeSequence(streamID), &s); err != nil {
		if errors.ErrNotFound.Is(err) {
			return s, errors.Wrapf(ErrStreamNotFound, "stream %d", streamID)
		}
		return s, err
	}
	return s, nil
}

// touchMetrics applies fn to the stream metrics, refreshes the last
// activity timestamp and stores the result.
func (l *Ledger) touchMetrics(db streampay.KVStore, streamID int64, fn func(*Metrics) error) error {
	var m Metrics
	if err := l.metrics.One(db, orm.EncodeSequence(streamID), &m); err != nil {
		return err
	}
	if err := fn(&m); err != nil {
		return err
	}
	m.LastActivity = l.now()
	return l.metrics.Put(db, orm.EncodeSequence(streamID), &m)
}

func (l *Ledger) updateProtocolMetrics(db streampay.KVStore, fn func(*ProtocolMetrics) error) error {
	var p ProtocolMetrics
	if err := l.proto.One(db, protocolMetricsKey, &p); err != nil {
		return err
	}
	if err := fn(&p); err != nil {
		return err
	}
	return l.proto.Put(db, protocolMetricsKey, &p)
}

type emitFn func(event interface{})

// atomically runs fn against a cache wrap of the store. On success the
// writes are flushed and the buffered events published; on failure
// everything is discarded.
func (l *Ledger) atomically(db streampay.CacheableKVStore, fn func(tx streampay.KVStore, emit emitFn) error) error {
	tx := db.CacheWrap()
	var pending []interface{}
	emit := func(e interface{}) { pending = append(pending, e) }
	if err := fn(tx, emit); err != nil {
		tx.Discard()
		return err
	}
	if err := tx.Write(); err != nil {
		return err
	}
	if l.bus != nil {
		l.bus.PublishAll(pending)
	}
	return nil
}
