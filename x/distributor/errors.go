package distributor

import "github.com/streampay/streampay/errors"

var (
	// ErrNoRecipients is returned when distributing to an empty
	// recipient list.
	ErrNoRecipients = errors.Register(1030, "no recipients")

	// ErrAmountTooSmall is returned when the net amount cannot give
	// every recipient at least one unit.
	ErrAmountTooSmall = errors.Register(1031, "amount too small to distribute")

	// ErrRecipientsMismatch is returned when the recipients and weights
	// lists of a weighted distribution differ in length.
	ErrRecipientsMismatch = errors.Register(1032, "recipients and amounts length mismatch")
)
