package distributor

import (
	"math/big"

	"github.com/streampay/streampay"
)

// DistributedEvent is published for every successful distribution.
type DistributedEvent struct {
	DistributionID  int64
	Sender          streampay.Address
	Token           streampay.Address
	// Net is the amount split among the recipients, Fee went to the fee
	// address.
	Net             *big.Int
	Fee             *big.Int
	RecipientsCount int
}
