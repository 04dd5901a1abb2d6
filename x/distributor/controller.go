package distributor

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

// Engine splits deposits among recipients. Every mutating method is
// atomic: it works on a cache wrap of the given store and the writes
// become visible, and events observable, only if the whole operation
// succeeded.
type Engine struct {
	history  orm.Bucket
	users    orm.Bucket
	tokens   orm.Bucket
	counters orm.Bucket
	ids      orm.Sequence
	cash     cash.Controller
	bus      *events.Bus
	now      func() streampay.UnixTime
	log      *logrus.Entry
}

// NewEngine returns an engine that pays out through the given cash
// controller and publishes events on the given bus after commit.
func NewEngine(cashCtrl cash.Controller, bus *events.Bus) *Engine {
	return &Engine{
		history:  NewHistoryBucket(),
		users:    NewUserStatsBucket(),
		tokens:   NewTokenStatsBucket(),
		counters: NewCountersBucket(),
		ids:      NewHistorySeq(),
		cash:     cashCtrl,
		bus:      bus,
		now:      func() streampay.UnixTime { return streampay.AsUnixTime(time.Now()) },
		log:      logrus.WithField("module", "distributor"),
	}
}

// WithClock replaces the engine's time source. Intended for tests.
func (e *Engine) WithClock(now func() streampay.UnixTime) *Engine {
	e.now = now
	return e
}

// WithLogger makes the engine log through the given logger.
func (e *Engine) WithLogger(log logrus.FieldLogger) *Engine {
	e.log = log.WithField("module", "distributor")
	return e
}

// Initialize writes the engine configuration. It can be called exactly
// once.
func (e *Engine) Initialize(db streampay.CacheableKVStore, admin streampay.Address, feePercent uint32, feeAddress streampay.Address) error {
	return e.atomically(db, func(tx streampay.KVStore, emit emitFn) error {
		switch ok, err := gconf.Exists(tx, configPackage); {
		case err != nil:
			return err
		case ok:
			return errors.Wrap(errors.ErrAlreadyInitialized, "distributor")
		}
		conf := Configuration{
			Admin:      admin.Clone(),
			FeeAddress: feeAddress.Clone(),
			FeePercent: feePercent,
		}
		if err := gconf.Save(tx, configPackage, &conf); err != nil {
			return err
		}
		if err := e.counters.Put(tx, countersKey, &Counters{
			TotalDistributedAmount: amount.Zero(),
		}); err != nil {
			return err
		}
		e.log.WithFields(logrus.Fields{
			"admin":       admin,
			"fee_percent": feePercent,
		}).Info("distributor initialized")
		return nil
	})
}

// DistributeEqual splits a deposit into equal shares. The fee is
// deducted first and each recipient receives the floor of net divided by
// the number of recipients. The floor division remainder is not
// distributed and stays with the sender.
func (e *Engine) DistributeEqual(db streampay.CacheableKVStore, sender, token streampay.Address, total *big.Int, recipients []streampay.Address) error {
	return e.atomically(db, func(tx streampay.KVStore, emit emitFn) error {
		conf, err := loadConf(tx)
		if err != nil {
			return err
		}
		if len(recipients) == 0 {
			return errors.Wrap(ErrNoRecipients, "equal distribution")
		}
		if err := validateParties(sender, token, recipients); err != nil {
			return err
		}
		if err := amount.ValidatePositive(total); err != nil {
			return err
		}

		fee, err := amount.Ratio(total, uint64(conf.FeePercent), 100)
		if err != nil {
			return err
		}
		net, err := amount.Sub(total, fee)
		if err != nil {
			return err
		}
		count := big.NewInt(int64(len(recipients)))
		if net.Cmp(count) < 0 {
			return errors.Wrapf(ErrAmountTooSmall, "net %s for %d recipients", net, len(recipients))
		}
		share := new(big.Int).Quo(net, count)

		if err := e.payFee(tx, sender, token, conf.FeeAddress, fee); err != nil {
			return err
		}
		for _, recipient := range recipients {
			if err := e.cash.MoveCoins(tx, sender, recipient, token, share); err != nil {
				return err
			}
		}

		return e.record(tx, emit, sender, token, net, fee, len(recipients))
	})
}

// DistributeWeighted splits a deposit proportionally to declared
// weights. The deposit is the sum of the weights; the fee is deducted
// from it and each recipient receives its weight scaled down to the net
// amount.
func (e *Engine) DistributeWeighted(db streampay.CacheableKVStore, sender, token streampay.Address, recipients []streampay.Address, amounts []*big.Int) error {
	return e.atomically(db, func(tx streampay.KVStore, emit emitFn) error {
		conf, err := loadConf(tx)
		if err != nil {
			return err
		}
		if len(recipients) == 0 {
			return errors.Wrap(ErrNoRecipients, "weighted distribution")
		}
		if len(recipients) != len(amounts) {
			return errors.Wrapf(ErrRecipientsMismatch, "%d recipients, %d amounts", len(recipients), len(amounts))
		}
		if err := validateParties(sender, token, recipients); err != nil {
			return err
		}

		sum := amount.Zero()
		for i, a := range amounts {
			if err := amount.ValidatePositive(a); err != nil {
				return errors.Wrapf(err, "amount %d", i)
			}
			if sum, err = amount.Add(sum, a); err != nil {
				return err
			}
		}

		fee, err := amount.Ratio(sum, uint64(conf.FeePercent), 100)
		if err != nil {
			return err
		}
		net, err := amount.Sub(sum, fee)
		if err != nil {
			return err
		}

		if err := e.payFee(tx, sender, token, conf.FeeAddress, fee); err != nil {
			return err
		}
		for i, recipient := range recipients {
			share, err := amount.Proportion(amounts[i], net, sum)
			if err != nil {
				return err
			}
			if share.Sign() == 0 {
				continue
			}
			if err := e.cash.MoveCoins(tx, sender, recipient, token, share); err != nil {
				return err
			}
		}

		return e.record(tx, emit, sender, token, net, fee, len(recipients))
	})
}

// SetProtocolFee updates the distribution fee percent. Only the admin
// may call this.
func (e *Engine) SetProtocolFee(db streampay.CacheableKVStore, caller streampay.Address, feePercent uint32) error {
	return e.atomically(db, func(tx streampay.KVStore, emit emitFn) error {
		conf, err := loadConf(tx)
		if err != nil {
			return err
		}
		if !caller.Equals(conf.Admin) {
			return errors.Wrapf(errors.ErrUnauthorized, "%s is not the admin", caller)
		}
		if feePercent > MaxFeePercent {
			return errors.Wrapf(errors.ErrFeeTooHigh, "%d percent, max %d", feePercent, MaxFeePercent)
		}
		conf.FeePercent = feePercent
		return gconf.Save(tx, configPackage, &conf)
	})
}

// GetUserStats returns the statistics of a sender. Unknown senders have
// zero statistics.
func (e *Engine) GetUserStats(db streampay.ReadOnlyKVStore, user streampay.Address) (UserStats, error) {
	var s UserStats
	if err := e.users.One(db, user, &s); err != nil {
		if errors.ErrNotFound.Is(err) {
			return UserStats{Address: user.Clone(), TotalAmount: amount.Zero()}, nil
		}
		return s, err
	}
	return s, nil
}

// GetTokenStats returns the statistics of a token. Unknown tokens have
// zero statistics.
func (e *Engine) GetTokenStats(db streampay.ReadOnlyKVStore, token streampay.Address) (TokenStats, error) {
	var s TokenStats
	if err := e.tokens.One(db, token, &s); err != nil {
		if errors.ErrNotFound.Is(err) {
			return TokenStats{Token: token.Clone(), TotalAmount: amount.Zero()}, nil
		}
		return s, err
	}
	return s, nil
}

// GetDistributionHistory returns up to limit history entries with ids
// greater or equal to startID, in ascending id order.
func (e *Engine) GetDistributionHistory(db streampay.ReadOnlyKVStore, startID int64, limit int) ([]Distribution, error) {
	if startID < 1 {
		startID = 1
	}
	it, err := e.history.Iterator(db, orm.EncodeSequence(startID), nil)
	if err != nil {
		return nil, err
	}
	defer it.Close()

	var out []Distribution
	for it.Valid() && (limit <= 0 || len(out) < limit) {
		var d Distribution
		if err := d.Unmarshal(it.Value()); err != nil {
			return nil, errors.Wrapf(err, "distribution %d", orm.DecodeSequence(it.Key()))
		}
		out = append(out, d)
		if err := it.Next(); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// GetTotalDistributions returns how many distributions were executed.
func (e *Engine) GetTotalDistributions(db streampay.ReadOnlyKVStore) (int64, error) {
	c, err := e.loadCounters(db)
	if err != nil {
		return 0, err
	}
	return c.TotalDistributions, nil
}

// GetTotalDistributedAmount returns the sum of all net distributed
// amounts.
func (e *Engine) GetTotalDistributedAmount(db streampay.ReadOnlyKVStore) (*big.Int, error) {
	c, err := e.loadCounters(db)
	if err != nil {
		return nil, err
	}
	return c.TotalDistributedAmount, nil
}

// GetProtocolFee returns the distribution fee percent.
func (e *Engine) GetProtocolFee(db streampay.ReadOnlyKVStore) (uint32, error) {
	conf, err := loadConf(db)
	if err != nil {
		return 0, err
	}
	return conf.FeePercent, nil
}

// GetFeeAddress returns the address receiving distribution fees.
func (e *Engine) GetFeeAddress(db streampay.ReadOnlyKVStore) (streampay.Address, error) {
	conf, err := loadConf(db)
	if err != nil {
		return nil, err
	}
	return conf.FeeAddress, nil
}

// GetAdmin returns the engine admin address.
func (e *Engine) GetAdmin(db streampay.ReadOnlyKVStore) (streampay.Address, error) {
	conf, err := loadConf(db)
	if err != nil {
		return nil, err
	}
	return conf.Admin, nil
}

func validateParties(sender, token streampay.Address, recipients []streampay.Address) error {
	if err := sender.Validate(); err != nil {
		return errors.Wrap(err, "sender")
	}
	if err := token.Validate(); err != nil {
		return errors.Wrap(err, "token")
	}
	for i, r := range recipients {
		if err := r.Validate(); err != nil {
			return errors.Wrapf(err, "recipient %d", i)
		}
	}
	return nil
}

func (e *Engine) payFee(db streampay.KVStore, sender, token, feeAddress streampay.Address, fee *big.Int) error {
	if fee.Sign() == 0 {
		return nil
	}
	return e.cash.MoveCoins(db, sender, feeAddress, token, fee)
}

// record appends the history entry and updates all statistics for one
// successful distribution.
func (e *Engine) record(db streampay.KVStore, emit emitFn, sender, token streampay.Address, net, fee *big.Int, recipientsCount int) error {
	id, err := e.ids.NextInt(db)
	if err != nil {
		return err
	}
	now := e.now()

	d := Distribution{
		ID:              id,
		Sender:          sender.Clone(),
		Token:           token.Clone(),
		Amount:          amount.Clone(net),
		RecipientsCount: recipientsCount,
		Timestamp:       now,
	}
	if err := e.history.Put(db, orm.EncodeSequence(id), &d); err != nil {
		return err
	}

	user, err := e.GetUserStats(db, sender)
	if err != nil {
		return err
	}
	user.DistributionsInitiated++
	if user.TotalAmount, err = amount.Add(user.TotalAmount, net); err != nil {
		return err
	}
	if err := e.users.Put(db, sender, &user); err != nil {
		return err
	}

	tokenStats, err := e.GetTokenStats(db, token)
	if err != nil {
		return err
	}
	tokenStats.DistributionCount++
	tokenStats.LastTime = now
	if tokenStats.TotalAmount, err = amount.Add(tokenStats.TotalAmount, net); err != nil {
		return err
	}
	if err := e.tokens.Put(db, token, &tokenStats); err != nil {
		return err
	}

	counters, err := e.loadCounters(db)
	if err != nil {
		return err
	}
	counters.TotalDistributions++
	if counters.TotalDistributedAmount, err = amount.Add(counters.TotalDistributedAmount, net); err != nil {
		return err
	}
	if err := e.counters.Put(db, countersKey, &counters); err != nil {
		return err
	}

	emit(DistributedEvent{
		DistributionID:  id,
		Sender:          d.Sender,
		Token:           d.Token,
		Net:             d.Amount,
		Fee:             amount.Clone(fee),
		RecipientsCount: recipientsCount,
	})
	e.log.WithFields(logrus.Fields{
		"distribution_id": id,
		"net":             net,
		"recipients":      recipientsCount,
	}).Info("distribution executed")
	return nil
}

func (e *Engine) loadCounters(db streampay.ReadOnlyKVStore) (Counters, error) {
	var c Counters
	if err := e.counters.One(db, countersKey, &c); err != nil {
		if errors.ErrNotFound.Is(err) {
			return c, errors.Wrap(errors.ErrNotInitialized, "distributor")
		}
		return c, err
	}
	return c, nil
}

type emitFn func(event interface{})

// atomically runs fn against a cache wrap of the store. On success the
// writes are flushed and the buffered events published; on failure
// everything is discarded.
func (e *Engine) atomically(db streampay.CacheableKVStore, fn func(tx streampay.KVStore, emit emitFn) error) error {
	tx := db.CacheWrap()
	var pending []interface{}
	emit := func(ev interface{}) { pending = append(pending, ev) }
	if err := fn(tx, emit); err != nil {
		tx.Discard()
		return err
	}
	if err := tx.Write(); err != nil {
		return err
	}
	if e.bus != nil {
		e.bus.PublishAll(pending)
	}
	return nil
}
