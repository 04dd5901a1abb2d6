package distributor

import (
	"math/big"

	"github.com/fxamacker/cbor/v2"

	"github.com/streampay/streampay"
	"github.com/streampay/streampay/amount"
	"github.com/streampay/streampay/errors"
	"github.com/streampay/streampay/gconf"
	"github.com/streampay/streampay/orm"
)

// Distribution is one entry of the append-only distribution history.
// Amount is the net amount split among the recipients, after the fee
// cut.
type Distribution struct {
	ID              int64              `cbor:"1,keyasint"`
	Sender          streampay.Address  `cbor:"2,keyasint"`
	Token           streampay.Address  `cbor:"3,keyasint"`
	Amount          *big.Int           `cbor:"4,keyasint"`
	RecipientsCount int                `cbor:"5,keyasint"`
	Timestamp       streampay.UnixTime `cbor:"6,keyasint"`
}

var _ orm.Model = (*Distribution)(nil)

func (d *Distribution) Marshal() ([]byte, error) {
	return cbor.Marshal(d)
}

func (d *Distribution) Unmarshal(raw []byte) error {
	return cbor.Unmarshal(raw, d)
}

func (d *Distribution) Validate() error {
	if d.ID <= 0 {
		return errors.Wrap(errors.ErrInvalidInput, "id")
	}
	if err := d.Sender.Validate(); err != nil {
		return errors.Wrap(err, "sender")
	}
	if err := d.Token.Validate(); err != nil {
		return errors.Wrap(err, "token")
	}
	if err := amount.ValidateNonNegative(d.Amount); err != nil {
		return errors.Wrap(err, "amount")
	}
	if d.RecipientsCount <= 0 {
		return errors.Wrap(errors.ErrInvalidInput, "recipients count")
	}
	return nil
}

// UserStats aggregates the distributions initiated by one address.
type UserStats struct {
	Address                streampay.Address `cbor:"1,keyasint"`
	DistributionsInitiated int64             `cbor:"2,keyasint,omitempty"`
	TotalAmount            *big.Int          `cbor:"3,keyasint"`
}

var _ orm.Model = (*UserStats)(nil)

func (s *UserStats) Marshal() ([]byte, error) {
	return cbor.Marshal(s)
}

func (s *UserStats) Unmarshal(raw []byte) error {
	return cbor.Unmarshal(raw, s)
}

func (s *UserStats) Validate() error {
	if err := s.Address.Validate(); err != nil {
		return errors.Wrap(err, "address")
	}
	if s.DistributionsInitiated < 0 {
		return errors.Wrap(errors.ErrInvalidState, "negative counter")
	}
	return amount.ValidateNonNegative(s.TotalAmount)
}

// TokenStats aggregates the distributions of one token.
type TokenStats struct {
	Token             streampay.Address  `cbor:"1,keyasint"`
	DistributionCount int64              `cbor:"2,keyasint,omitempty"`
	LastTime          streampay.UnixTime `cbor:"3,keyasint,omitempty"`
	TotalAmount       *big.Int           `cbor:"4,keyasint"`
}

var _ orm.Model = (*TokenStats)(nil)

func (s *TokenStats) Marshal() ([]byte, error) {
	return cbor.Marshal(s)
}

func (s *TokenStats) Unmarshal(raw []byte) error {
	return cbor.Unmarshal(raw, s)
}

func (s *TokenStats) Validate() error {
	if err := s.Token.Validate(); err != nil {
		return errors.Wrap(err, "token")
	}
	if s.DistributionCount < 0 {
		return errors.Wrap(errors.ErrInvalidState, "negative counter")
	}
	return amount.ValidateNonNegative(s.TotalAmount)
}

// Counters is the singleton with engine-wide totals.
type Counters struct {
	TotalDistributions     int64    `cbor:"1,keyasint,omitempty"`
	TotalDistributedAmount *big.Int `cbor:"2,keyasint"`
}

var _ orm.Model = (*Counters)(nil)

func (c *Counters) Marshal() ([]byte, error) {
	return cbor.Marshal(c)
}

func (c *Counters) Unmarshal(raw []byte) error {
	return cbor.Unmarshal(raw, c)
}

func (c *Counters) Validate() error {
	if c.TotalDistributions < 0 {
		return errors.Wrap(errors.ErrInvalidState, "negative counter")
	}
	return amount.ValidateNonNegative(c.TotalDistributedAmount)
}

// MaxFeePercent caps the distribution fee at 100 percent.
const MaxFeePercent uint32 = 100

// Configuration is the engine's singleton configuration.
type Configuration struct {
	Admin      streampay.Address `cbor:"1,keyasint"`
	FeeAddress streampay.Address `cbor:"2,keyasint"`
	// FeePercent is deducted from every deposit before splitting.
	FeePercent uint32 `cbor:"3,keyasint,omitempty"`
}

var _ gconf.Configuration = (*Configuration)(nil)

func (c *Configuration) Marshal() ([]byte, error) {
	return cbor.Marshal(c)
}

func (c *Configuration) Unmarshal(raw []byte) error {
	return cbor.Unmarshal(raw, c)
}

func (c *Configuration) Validate() error {
	if err := c.Admin.Validate(); err != nil {
		return errors.Wrap(err, "admin")
	}
	if err := c.FeeAddress.Validate(); err != nil {
		return errors.Wrap(err, "fee address")
	}
	if c.FeePercent > MaxFeePercent {
		return errors.Wrapf(errors.ErrFeeTooHigh, "%d percent, max %d", c.FeePercent, MaxFeePercent)
	}
	return nil
}

const configPackage = "distributor"

func loadConf(db gconf.ReadStore) (Configuration, error) {
	var c Configuration
	if err := gconf.Load(db, configPackage, &c); err != nil {
		if errors.ErrNotFound.Is(err) {
			return c, errors.Wrap(errors.ErrNotInitialized, "distributor")
		}
		return c, err
	}
	return c, nil
}

var countersKey = []byte("global")

// NewHistoryBucket returns the bucket with the distribution history,
// keyed by the big endian encoding of the distribution id.
func NewHistoryBucket() orm.Bucket {
	return orm.NewBucket("dist")
}

// NewUserStatsBucket returns the bucket with per-user statistics, keyed
// by address.
func NewUserStatsBucket() orm.Bucket {
	return orm.NewBucket("distuser")
}

// NewTokenStatsBucket returns the bucket with per-token statistics,
// keyed by token address.
func NewTokenStatsBucket() orm.Bucket {
	return orm.NewBucket("disttoken")
}

// NewCountersBucket returns the bucket holding the counters singleton.
func NewCountersBucket() orm.Bucket {
	return orm.NewBucket("distcounter")
}

// NewHistorySeq returns the sequence assigning distribution ids.
func NewHistorySeq() orm.Sequence {
	return orm.NewSequence("dist", "id")
}
