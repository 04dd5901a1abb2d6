package cash

import (
	"math/big"

	"github.com/streampay/streampay"
	"github.com/streampay/streampay/amount"
	"github.com/streampay/streampay/errors"
	"github.com/streampay/streampay/orm"
)

// Controller is the functionality needed by other modules to move value
// between accounts. All amounts are positive.
type Controller struct {
	bucket orm.Bucket
}

// NewController returns a controller over the wallet bucket.
func NewController() Controller {
	return Controller{bucket: NewBucket()}
}

// Balance returns the balance the given account holds of the given
// token. Accounts without a wallet have a zero balance.
func (c Controller) Balance(db streampay.ReadOnlyKVStore, account, token streampay.Address) (*big.Int, error) {
	wallet, err := c.wallet(db, account)
	if err != nil {
		if errors.ErrNotFound.Is(err) {
			return amount.Zero(), nil
		}
		return nil, err
	}
	return wallet.Balance(token), nil
}

// MoveCoins moves the given amount of a token from src to dest. It fails
// if src does not exist or does not hold enough of the token.
func (c Controller) MoveCoins(db streampay.KVStore, src, dest, token streampay.Address, value *big.Int) error {
	if err := amount.ValidatePositive(value); err != nil {
		return err
	}

	var sender Wallet
	if err := c.bucket.One(db, src, &sender); err != nil {
		if errors.ErrNotFound.Is(err) {
			return errors.Wrapf(ErrEmptyAccount, "%s", src)
		}
		return err
	}
	if err := sender.Subtract(token, value); err != nil {
		return err
	}

	recipient, err := c.walletOrCreate(db, dest)
	if err != nil {
		return err
	}
	if err := recipient.Add(token, value); err != nil {
		return err
	}

	if err := c.bucket.Put(db, src, &sender); err != nil {
		return err
	}
	return c.bucket.Put(db, dest, &recipient)
}

// IssueCoins mints the given amount of a token into the destination
// account.
func (c Controller) IssueCoins(db streampay.KVStore, dest, token streampay.Address, value *big.Int) error {
	if err := amount.ValidatePositive(value); err != nil {
		return err
	}
	wallet, err := c.walletOrCreate(db, dest)
	if err != nil {
		return err
	}
	if err := wallet.Add(token, value); err != nil {
		return err
	}
	return c.bucket.Put(db, dest, &wallet)
}

func (c Controller) wallet(db streampay.ReadOnlyKVStore, account streampay.Address) (Wallet, error) {
	var w Wallet
	err := c.bucket.One(db, account, &w)
	return w, err
}

func (c Controller) walletOrCreate(db streampay.ReadOnlyKVStore, account streampay.Address) (Wallet, error) {
	w, err := c.wallet(db, account)
	switch {
	case err == nil:
		return w, nil
	case errors.ErrNotFound.Is(err):
		return Wallet{Address: account.Clone()}, nil
	default:
		return Wallet{}, err
	}
}
