package stream

import "github.com/streampay/streampay/errors"

var (
	// ErrInvalidTimeRange is returned when a stream's end time is not
	// after its start time.
	ErrInvalidTimeRange = errors.Register(1010, "invalid time range")

	// ErrStreamNotFound is returned when referencing an unknown stream id.
	ErrStreamNotFound = errors.Register(1011, "stream not found")

	// ErrStreamNotActive is returned when an operation requires a live
	// stream but the stream is in another lifecycle state.
	ErrStreamNotActive = errors.Register(1012, "stream not active")

	// ErrStreamNotPaused is returned when resuming a stream that is not
	// paused.
	ErrStreamNotPaused = errors.Register(1013, "stream not paused")

	// ErrStreamCannotBeCanceled is returned when canceling a stream that
	// already reached a terminal state.
	ErrStreamCannotBeCanceled = errors.Register(1014, "stream cannot be canceled")

	// ErrInsufficientWithdrawable is returned when a withdrawal requests
	// more than the vested and deposited amount.
	ErrInsufficientWithdrawable = errors.Register(1015, "insufficient withdrawable amount")

	// ErrDepositExceedsTotal is returned when a deposit would push the
	// stream balance above its funding target.
	ErrDepositExceedsTotal = errors.Register(1016, "deposit exceeds total amount")

	// ErrInvalidDelegate is returned for a malformed delegate address or
	// an attempt of the recipient to delegate to itself.
	ErrInvalidDelegate = errors.Register(1017, "invalid delegate")

	// ErrInvalidRecipient is returned for a malformed recipient address
	// or a recipient equal to the sender.
	ErrInvalidRecipient = errors.Register(1018, "invalid recipient")
)
