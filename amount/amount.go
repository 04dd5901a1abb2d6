// Package amount implements the checked arithmetic used for all monetary
// values of the ledger.
//
// Amounts are 128-bit signed integers, represented as big.Int. Every
// operation validates that its inputs and its result stay within the
// 128-bit range, so a value read from or written to the store can never
// silently truncate. Intermediate products (amount times elapsed seconds)
// routinely exceed 128 bits, which big.Int absorbs without a dedicated
// wide-integer type.
package amount

import (
	"math/big"

	"github.com/streampay/streampay/errors"
)

var (
	// maxInt128 is 2^127 - 1, the largest storable amount.
	maxInt128 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 127), big.NewInt(1))
	// minInt128 is -2^127, the smallest storable amount.
	minInt128 = new(big.Int).Neg(new(big.Int).Lsh(big.NewInt(1), 127))
)

// New returns an amount with the given value.
func New(v int64) *big.Int {
	return big.NewInt(v)
}

// Zero returns a zero amount.
func Zero() *big.Int {
	return new(big.Int)
}

// Validate returns an error if given value cannot be used as an amount.
func Validate(a *big.Int) error {
	if a == nil {
		return errors.Wrap(errors.ErrInvalidAmount, "nil amount")
	}
	return checkRange(a)
}

// ValidateNonNegative returns an error if given value cannot be used as a
// non-negative amount. All public amount parameters of the ledger are
// checked with this.
func ValidateNonNegative(a *big.Int) error {
	if err := Validate(a); err != nil {
		return err
	}
	if a.Sign() < 0 {
		return errors.Wrapf(errors.ErrInvalidAmount, "negative amount %s", a)
	}
	return nil
}

// ValidatePositive returns an error if given value is not a strictly
// positive amount.
func ValidatePositive(a *big.Int) error {
	if err := Validate(a); err != nil {
		return err
	}
	if a.Sign() <= 0 {
		return errors.Wrapf(errors.ErrInvalidAmount, "amount %s is not positive", a)
	}
	return nil
}

func checkRange(a *big.Int) error {
	if a.Cmp(maxInt128) > 0 || a.Cmp(minInt128) < 0 {
		return errors.Wrapf(errors.ErrOverflow, "amount %s exceeds 128 bits", a)
	}
	return nil
}

// Add returns a+b, failing when the result leaves the 128-bit range.
func Add(a, b *big.Int) (*big.Int, error) {
	if a == nil || b == nil {
		return nil, errors.Wrap(errors.ErrInvalidAmount, "nil amount")
	}
	sum := new(big.Int).Add(a, b)
	if err := checkRange(sum); err != nil {
		return nil, err
	}
	return sum, nil
}

// Sub returns a-b, failing when the result leaves the 128-bit range.
func Sub(a, b *big.Int) (*big.Int, error) {
	if a == nil || b == nil {
		return nil, errors.Wrap(errors.ErrInvalidAmount, "nil amount")
	}
	diff := new(big.Int).Sub(a, b)
	if err := checkRange(diff); err != nil {
		return nil, err
	}
	return diff, nil
}

// Proportion returns amount*numerator/denominator, floor-rounded toward
// zero. The multiplication is performed at arbitrary precision, so it
// cannot overflow; only the final result is required to fit the 128-bit
// range. All inputs must be non-negative and the denominator must not be
// zero.
func Proportion(amount, numerator, denominator *big.Int) (*big.Int, error) {
	if amount == nil || numerator == nil || denominator == nil {
		return nil, errors.Wrap(errors.ErrInvalidAmount, "nil amount")
	}
	if amount.Sign() < 0 || numerator.Sign() < 0 {
		return nil, errors.Wrap(errors.ErrOverflow, "negative proportion input")
	}
	if denominator.Sign() <= 0 {
		return nil, errors.Wrap(errors.ErrOverflow, "non-positive denominator")
	}
	res := new(big.Int).Mul(amount, numerator)
	res.Quo(res, denominator)
	if err := checkRange(res); err != nil {
		return nil, err
	}
	return res, nil
}

// Ratio is a convenience form of Proportion for integer rates, for
// example basis-point fee calculations.
func Ratio(amount *big.Int, numerator, denominator uint64) (*big.Int, error) {
	return Proportion(amount, new(big.Int).SetUint64(numerator), new(big.Int).SetUint64(denominator))
}

// Min returns the smaller of two amounts.
func Min(a, b *big.Int) *big.Int {
	if a.Cmp(b) <= 0 {
		return a
	}
	return b
}

// Clone returns an independent copy of the amount. A nil amount clones to
// zero.
func Clone(a *big.Int) *big.Int {
	if a == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(a)
}
