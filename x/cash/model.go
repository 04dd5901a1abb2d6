package cash

import (
	"math/big"

	"github.com/fxamacker/cbor/v2"

	"github.com/streampay/streampay"
	"github.com/streampay/streampay/amount"
	"github.com/streampay/streampay/errors"
	"github.com/streampay/streampay/orm"
)

// Wallet holds the token balances of a single account. Balances are keyed
// by the hex form of the token address.
type Wallet struct {
	Address streampay.Address   `cbor:"1,keyasint"`
	Coins   map[string]*big.Int `cbor:"2,keyasint,omitempty"`
}

var _ orm.Model = (*Wallet)(nil)

func (w *Wallet) Marshal() ([]byte, error) {
	return cbor.Marshal(w)
}

func (w *Wallet) Unmarshal(raw []byte) error {
	return cbor.Unmarshal(raw, w)
}

func (w *Wallet) Validate() error {
	if err := w.Address.Validate(); err != nil {
		return errors.Wrap(err, "address")
	}
	for token, balance := range w.Coins {
		if _, err := streampay.ParseAddress(token); err != nil {
			return errors.Wrapf(err, "token %q", token)
		}
		if err := amount.ValidateNonNegative(balance); err != nil {
			return errors.Wrapf(err, "token %q balance", token)
		}
	}
	return nil
}

// Balance returns the wallet's balance of the given token. An unknown
// token balance is zero.
func (w *Wallet) Balance(token streampay.Address) *big.Int {
	return amount.Clone(w.Coins[token.String()])
}

// Add increases the wallet's balance of the given token.
func (w *Wallet) Add(token streampay.Address, value *big.Int) error {
	balance, err := amount.Add(w.balanceRef(token), value)
	if err != nil {
		return err
	}
	if balance.Sign() < 0 {
		return errors.Wrapf(ErrInsufficientFunds, "token %s", token)
	}
	w.setBalance(token, balance)
	return nil
}

// Subtract decreases the wallet's balance of the given token, failing
// when the balance would go negative.
func (w *Wallet) Subtract(token streampay.Address, value *big.Int) error {
	return w.Add(token, new(big.Int).Neg(value))
}

func (w *Wallet) balanceRef(token streampay.Address) *big.Int {
	if b, ok := w.Coins[token.String()]; ok {
		return b
	}
	return new(big.Int)
}

func (w *Wallet) setBalance(token streampay.Address, balance *big.Int) {
	if balance.Sign() == 0 {
		delete(w.Coins, token.String())
		return
	}
	if w.Coins == nil {
		w.Coins = make(map[string]*big.Int)
	}
	w.Coins[token.String()] = balance
}

// NewBucket returns the bucket holding all wallets, keyed by account
// address.
func NewBucket() orm.Bucket {
	return orm.NewBucket("wallet")
}
