package stream

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/streampay/streampay/errors"
	"github.com/streampay/streampay/streamtest"
)

func validStream() Stream {
	return Stream{
		ID:              1,
		Sender:          streamtest.NamedAddress("sender"),
		Recipient:       streamtest.NamedAddress("recipient"),
		Token:           streamtest.NamedAddress("token"),
		TotalAmount:     big.NewInt(1000),
		Balance:         big.NewInt(400),
		WithdrawnAmount: big.NewInt(100),
		StartTime:       0,
		EndTime:         1000,
		Status:          StreamStatusActive,
	}
}

func TestStreamValidate(t *testing.T) {
	cases := map[string]struct {
		mutate  func(*Stream)
		wantErr *errors.Error
	}{
		"valid": {
			mutate: func(s *Stream) {},
		},
		"valid paused": {
			mutate: func(s *Stream) {
				s.Status = StreamStatusPaused
				s.PausedAt = 500
			},
		},
		"recipient equals sender": {
			mutate:  func(s *Stream) { s.Recipient = s.Sender },
			wantErr: ErrInvalidRecipient,
		},
		"zero total": {
			mutate:  func(s *Stream) { s.TotalAmount = big.NewInt(0) },
			wantErr: errors.ErrInvalidAmount,
		},
		"balance above total": {
			mutate:  func(s *Stream) { s.Balance = big.NewInt(1001) },
			wantErr: errors.ErrInvalidState,
		},
		"withdrawn above balance": {
			mutate:  func(s *Stream) { s.WithdrawnAmount = big.NewInt(401) },
			wantErr: errors.ErrInvalidState,
		},
		"end not after start": {
			mutate:  func(s *Stream) { s.EndTime = s.StartTime },
			wantErr: ErrInvalidTimeRange,
		},
		"paused at without paused status": {
			mutate:  func(s *Stream) { s.PausedAt = 500 },
			wantErr: errors.ErrInvalidState,
		},
		"paused status without paused at": {
			mutate:  func(s *Stream) { s.Status = StreamStatusPaused },
			wantErr: errors.ErrInvalidState,
		},
	}

	for testName, tc := range cases {
		t.Run(testName, func(t *testing.T) {
			s := validStream()
			tc.mutate(&s)
			err := s.Validate()
			if tc.wantErr == nil {
				assert.NoError(t, err)
			} else {
				assert.True(t, tc.wantErr.Is(err), "unexpected error: %+v", err)
			}
		})
	}
}

func TestStreamSerialization(t *testing.T) {
	s := validStream()
	raw, err := s.Marshal()
	require.NoError(t, err)

	var loaded Stream
	require.NoError(t, loaded.Unmarshal(raw))
	assert.Equal(t, s.ID, loaded.ID)
	assert.True(t, loaded.Sender.Equals(s.Sender))
	assert.Zero(t, s.TotalAmount.Cmp(loaded.TotalAmount))
	assert.Equal(t, s.Status, loaded.Status)
}

func TestStreamAccountIsDeterministic(t *testing.T) {
	a := StreamAccount(7)
	b := StreamAccount(7)
	assert.True(t, a.Equals(b))
	assert.False(t, a.Equals(StreamAccount(8)))
	assert.NoError(t, a.Validate())
}
