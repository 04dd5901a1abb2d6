package stream

import (
	"math/big"

	"github.com/streampay/streampay"
)

// StreamCreatedEvent is published when a new stream was created.
type StreamCreatedEvent struct {
	StreamID  int64
	Sender    streampay.Address
	Recipient streampay.Address
	Token     streampay.Address
	Total     *big.Int
	Initial   *big.Int
	StartTime streampay.UnixTime
	EndTime   streampay.UnixTime
}

// StreamDepositedEvent is published for every successful deposit.
type StreamDepositedEvent struct {
	StreamID int64
	From     streampay.Address
	Amount   *big.Int
	// Balance is the cumulative deposited amount after this deposit.
	Balance *big.Int
}

// StreamWithdrawnEvent is published for every successful withdrawal. The
// amount is gross, before the protocol fee cut.
type StreamWithdrawnEvent struct {
	StreamID int64
	To       streampay.Address
	Amount   *big.Int
}

// FeeCollectedEvent is published when a withdrawal paid a non-zero
// protocol fee.
type FeeCollectedEvent struct {
	StreamID     int64
	Token        streampay.Address
	Fee          *big.Int
	FeeCollector streampay.Address
}

// StreamPausedEvent is published when the sender paused the vesting
// clock.
type StreamPausedEvent struct {
	StreamID int64
	PausedAt streampay.UnixTime
}

// StreamResumedEvent is published when the sender resumed a paused
// stream.
type StreamResumedEvent struct {
	StreamID  int64
	ResumedAt streampay.UnixTime
	// PausedDuration is the length in seconds of the pause interval that
	// just ended.
	PausedDuration int64
}

// StreamCanceledEvent is published when the sender canceled a stream.
type StreamCanceledEvent struct {
	StreamID int64
	// VestedPayout went to the recipient, SenderRefund back to the
	// sender.
	VestedPayout *big.Int
	SenderRefund *big.Int
}

// StreamCompletedEvent is published when a fully withdrawn stream past
// its end time moved to the completed state.
type StreamCompletedEvent struct {
	StreamID int64
}

// DelegationGrantedEvent is published when the recipient granted the
// withdrawal right to a delegate.
type DelegationGrantedEvent struct {
	StreamID int64
	Delegate streampay.Address
}

// DelegationRevokedEvent is published when a delegate lost the
// withdrawal right, either by an explicit revoke or by being replaced.
type DelegationRevokedEvent struct {
	StreamID int64
	Delegate streampay.Address
}
