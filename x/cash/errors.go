package cash

import "github.com/streampay/streampay/errors"

var (
	// ErrInsufficientFunds is returned when a wallet does not hold
	// enough of a token to cover a transfer.
	ErrInsufficientFunds = errors.Register(1000, "insufficient funds")

	// ErrEmptyAccount is returned when moving coins out of an account
	// that was never funded.
	ErrEmptyAccount = errors.Register(1001, "empty account")
)
