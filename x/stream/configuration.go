package stream

import (
	"github.com/fxamacker/cbor/v2"

	"github.com/streampay/streampay"
	"github.com/streampay/streampay/errors"
	"github.com/streampay/streampay/gconf"
)

// MaxFeeRate is the highest allowed protocol fee in basis points (5%).
const MaxFeeRate uint32 = 500

// Configuration is the ledger's singleton configuration, written once by
// Initialize and updated only by the admin.
type Configuration struct {
	// Admin may update the fee rate and the fee collector.
	Admin streampay.Address `cbor:"1,keyasint"`
	// FeeCollector receives the protocol fee cut of every withdrawal.
	FeeCollector streampay.Address `cbor:"2,keyasint"`
	// FeeRate is the withdrawal fee in basis points.
	FeeRate uint32 `cbor:"3,keyasint,omitempty"`
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
	if err := c.FeeCollector.Validate(); err != nil {
		return errors.Wrap(err, "fee collector")
	}
	if c.FeeRate > MaxFeeRate {
		return errors.Wrapf(errors.ErrFeeTooHigh, "%d basis points, max %d", c.FeeRate, MaxFeeRate)
	}
	return nil
}

const configPackage = "stream"

func loadConf(db gconf.ReadStore) (Configuration, error) {
	var c Configuration
	if err := gconf.Load(db, configPackage, &c); err != nil {
		if errors.ErrNotFound.Is(err) {
			return c, errors.Wrap(errors.ErrNotInitialized, "stream ledger")
		}
		return c, err
	}
	return c, nil
}

func saveConf(db gconf.Store, c *Configuration) error {
	return gconf.Save(db, configPackage, c)
}
