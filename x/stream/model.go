package stream

import (
	"math/big"

	"github.com/fxamacker/cbor/v2"

	"github.com/streampay/streampay"
	"github.com/streampay/streampay/amount"
	"github.com/streampay/streampay/errors"
	"github.com/streampay/streampay/orm"
)

// StreamStatus is the lifecycle state of a stream. Canceled and Completed
// are terminal.
type StreamStatus uint8

const (
	StreamStatusInvalid StreamStatus = iota
	StreamStatusActive
	StreamStatusPaused
	StreamStatusCanceled
	StreamStatusCompleted
)

func (s StreamStatus) String() string {
	switch s {
	case StreamStatusActive:
		return "active"
	case StreamStatusPaused:
		return "paused"
	case StreamStatusCanceled:
		return "canceled"
	case StreamStatusCompleted:
		return "completed"
	default:
		return "invalid"
	}
}

// Terminal returns true for lifecycle states that allow no further
// mutation.
func (s StreamStatus) Terminal() bool {
	return s == StreamStatusCanceled || s == StreamStatusCompleted
}

// Stream is a single vesting schedule.
//
// TotalAmount is the funding target and is immutable after creation.
// Balance is what was actually deposited so far and never exceeds
// TotalAmount. WithdrawnAmount never exceeds Balance.
type Stream struct {
	ID                  int64              `cbor:"1,keyasint"`
	Sender              streampay.Address  `cbor:"2,keyasint"`
	Recipient           streampay.Address  `cbor:"3,keyasint"`
	Token               streampay.Address  `cbor:"4,keyasint"`
	TotalAmount         *big.Int           `cbor:"5,keyasint"`
	Balance             *big.Int           `cbor:"6,keyasint"`
	WithdrawnAmount     *big.Int           `cbor:"7,keyasint"`
	StartTime           streampay.UnixTime `cbor:"8,keyasint"`
	EndTime             streampay.UnixTime `cbor:"9,keyasint"`
	Status              StreamStatus       `cbor:"10,keyasint"`
	PausedAt            streampay.UnixTime `cbor:"11,keyasint,omitempty"`
	TotalPausedDuration int64              `cbor:"12,keyasint,omitempty"`
}

var _ orm.Model = (*Stream)(nil)

func (s *Stream) Marshal() ([]byte, error) {
	return cbor.Marshal(s)
}

func (s *Stream) Unmarshal(raw []byte) error {
	return cbor.Unmarshal(raw, s)
}

func (s *Stream) Validate() error {
	if s.ID <= 0 {
		return errors.Wrap(errors.ErrInvalidInput, "id")
	}
	if err := s.Sender.Validate(); err != nil {
		return errors.Wrap(err, "sender")
	}
	if err := s.Recipient.Validate(); err != nil {
		return errors.Wrap(err, "recipient")
	}
	if s.Recipient.Equals(s.Sender) {
		return errors.Wrap(ErrInvalidRecipient, "recipient equals sender")
	}
	if err := s.Token.Validate(); err != nil {
		return errors.Wrap(err, "token")
	}
	if err := amount.ValidatePositive(s.TotalAmount); err != nil {
		return errors.Wrap(err, "total amount")
	}
	if err := amount.ValidateNonNegative(s.Balance); err != nil {
		return errors.Wrap(err, "balance")
	}
	if err := amount.ValidateNonNegative(s.WithdrawnAmount); err != nil {
		return errors.Wrap(err, "withdrawn amount")
	}
	if s.Balance.Cmp(s.TotalAmount) > 0 {
		return errors.Wrap(errors.ErrInvalidState, "balance above total amount")
	}
	if s.WithdrawnAmount.Cmp(s.Balance) > 0 {
		return errors.Wrap(errors.ErrInvalidState, "withdrawn above balance")
	}
	if err := s.StartTime.Validate(); err != nil {
		return errors.Wrap(err, "start time")
	}
	if err := s.EndTime.Validate(); err != nil {
		return errors.Wrap(err, "end time")
	}
	if s.EndTime <= s.StartTime {
		return errors.Wrap(ErrInvalidTimeRange, "end time not after start time")
	}
	if (s.Status == StreamStatusPaused) != !s.PausedAt.IsZero() {
		return errors.Wrap(errors.ErrInvalidState, "paused at set does not match status")
	}
	if s.TotalPausedDuration < 0 {
		return errors.Wrap(errors.ErrInvalidState, "negative paused duration")
	}
	switch s.Status {
	case StreamStatusActive, StreamStatusPaused, StreamStatusCanceled, StreamStatusCompleted:
		return nil
	default:
		return errors.Wrapf(errors.ErrInvalidState, "status %d", s.Status)
	}
}

// Account returns the escrow address that holds this stream's deposits.
func (s *Stream) Account() streampay.Address {
	return StreamAccount(s.ID)
}

// StreamAccount derives the deterministic escrow address for a stream id.
func StreamAccount(streamID int64) streampay.Address {
	return streampay.NewCondition("stream", "seq", orm.EncodeSequence(streamID)).Address()
}

// Metrics is the per-stream activity bookkeeping, maintained alongside
// the stream by every mutating operation.
type Metrics struct {
	StreamID           int64              `cbor:"1,keyasint"`
	PauseCount         int64              `cbor:"2,keyasint,omitempty"`
	WithdrawalCount    int64              `cbor:"3,keyasint,omitempty"`
	TotalWithdrawn     *big.Int           `cbor:"4,keyasint"`
	TotalDelegations   int64              `cbor:"5,keyasint,omitempty"`
	LastActivity       streampay.UnixTime `cbor:"6,keyasint,omitempty"`
	LastDelegationTime streampay.UnixTime `cbor:"7,keyasint,omitempty"`
	CurrentDelegate    streampay.Address  `cbor:"8,keyasint,omitempty"`
}

var _ orm.Model = (*Metrics)(nil)

func (m *Metrics) Marshal() ([]byte, error) {
	return cbor.Marshal(m)
}

func (m *Metrics) Unmarshal(raw []byte) error {
	return cbor.Unmarshal(raw, m)
}

func (m *Metrics) Validate() error {
	if m.StreamID <= 0 {
		return errors.Wrap(errors.ErrInvalidInput, "stream id")
	}
	if err := amount.ValidateNonNegative(m.TotalWithdrawn); err != nil {
		return errors.Wrap(err, "total withdrawn")
	}
	if len(m.CurrentDelegate) != 0 {
		if err := m.CurrentDelegate.Validate(); err != nil {
			return errors.Wrap(err, "current delegate")
		}
	}
	return nil
}

// ProtocolMetrics is the singleton with ledger-wide counters.
type ProtocolMetrics struct {
	TotalStreamsCreated int64    `cbor:"1,keyasint,omitempty"`
	TotalActiveStreams  int64    `cbor:"2,keyasint,omitempty"`
	TotalDelegations    int64    `cbor:"3,keyasint,omitempty"`
	TotalTokensStreamed *big.Int `cbor:"4,keyasint"`
}

var _ orm.Model = (*ProtocolMetrics)(nil)

func (m *ProtocolMetrics) Marshal() ([]byte, error) {
	return cbor.Marshal(m)
}

func (m *ProtocolMetrics) Unmarshal(raw []byte) error {
	return cbor.Unmarshal(raw, m)
}

func (m *ProtocolMetrics) Validate() error {
	if m.TotalStreamsCreated < 0 || m.TotalActiveStreams < 0 || m.TotalDelegations < 0 {
		return errors.Wrap(errors.ErrInvalidState, "negative counter")
	}
	if err := amount.ValidateNonNegative(m.TotalTokensStreamed); err != nil {
		return errors.Wrap(err, "total tokens streamed")
	}
	return nil
}

var protocolMetricsKey = []byte("global")

// NewStreamBucket returns the bucket with all streams, keyed by the big
// endian encoding of the stream id.
func NewStreamBucket() orm.Bucket {
	return orm.NewBucket("stream")
}

// NewMetricsBucket returns the bucket with per-stream metrics, keyed the
// same way as the stream bucket.
func NewMetricsBucket() orm.Bucket {
	return orm.NewBucket("strmetric")
}

// NewProtocolMetricsBucket returns the bucket holding the protocol
// metrics singleton.
func NewProtocolMetricsBucket() orm.Bucket {
	return orm.NewBucket("protometric")
}

// NewStreamSeq returns the sequence that assigns stream ids.
func NewStreamSeq() orm.Sequence {
	return orm.NewSequence("stream", "id")
}
