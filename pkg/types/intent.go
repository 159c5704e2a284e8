package types

import (
	"math/big"
	"time"
)

// IntentStatus is the lifecycle state of an intent on its source chain.
type IntentStatus string

const (
	// StatusPending is the state after creation, funds locked, not yet filled.
	StatusPending IntentStatus = "PENDING"
	// StatusFilled means the fill was proven and the relayer repaid.
	StatusFilled IntentStatus = "FILLED"
	// StatusFailed means a delivered proof did not match the stored intent.
	// Recoverable only through the admin API, never automatically.
	StatusFailed IntentStatus = "FAILED"
	// StatusRefunded means the locked funds went back to the refund address.
	StatusRefunded IntentStatus = "REFUNDED"
)

// Terminal reports whether the status can never change through protocol
// transitions. Failed is recoverable by an admin and is not terminal here.
func (s IntentStatus) Terminal() bool {
	return s == StatusFilled || s == StatusRefunded
}

// IntentID is the opaque 32-byte intent identifier, generated off-chain.
type IntentID [32]byte

// Hex returns the 0x-prefixed hex form of the id.
func (id IntentID) Hex() string {
	return Address{Raw: [32]byte(id)}.Hex()
}

// Intent is a cross-chain payment request with locked source funds.
// Owned by the source chain's intent ledger; mutated only by its
// transition functions.
type Intent struct {
	ID                 IntentID
	Sender             Address
	RefundAddress      Address
	SourceToken        Address
	SourceAmount       *big.Int
	DestinationChainID uint64
	DestinationToken   Address
	Receiver           Address
	DestinationAmount  *big.Int
	Deadline           time.Time
	CreatedAt          time.Time
	AssignedRelayer    Address // zero sentinel = open to any relayer
	Status             IntentStatus
}

// Clone returns a deep copy so ledger internals never leak to callers.
func (i *Intent) Clone() *Intent {
	c := *i
	if i.SourceAmount != nil {
		c.SourceAmount = new(big.Int).Set(i.SourceAmount)
	}
	if i.DestinationAmount != nil {
		c.DestinationAmount = new(big.Int).Set(i.DestinationAmount)
	}
	return &c
}

// Data projects the intent into its destination-chain-visible form.
func (i *Intent) Data(sourceChainID uint64) IntentData {
	return IntentData{
		IntentID:           i.ID,
		SourceChainID:      sourceChainID,
		Sender:             i.Sender,
		SourceToken:        i.SourceToken,
		SourceAmount:       new(big.Int).Set(i.SourceAmount),
		DestinationChainID: i.DestinationChainID,
		DestinationToken:   i.DestinationToken,
		Receiver:           i.Receiver,
		DestinationAmount:  new(big.Int).Set(i.DestinationAmount),
		Deadline:           i.Deadline,
		CreatedAt:          i.CreatedAt,
		AssignedRelayer:    i.AssignedRelayer,
	}
}

// IntentData is the projection of an intent that the destination settlement
// gate verifies against. It carries everything needed to recompute the exact
// canonical encoding the source ledger will use at notify time.
type IntentData struct {
	IntentID           IntentID
	SourceChainID      uint64
	Sender             Address
	SourceToken        Address
	SourceAmount       *big.Int
	DestinationChainID uint64
	DestinationToken   Address
	Receiver           Address
	DestinationAmount  *big.Int
	Deadline           time.Time
	CreatedAt          time.Time
	AssignedRelayer    Address
}

// FillRecord is the destination-chain record of who filled an intent and
// where they want to be repaid. Keyed by fill hash; it outlives the intent
// so the original filler can retry proof delivery at any time.
type FillRecord struct {
	Filler           Address
	RepaymentAddress Address
}

// IntentCreatedEvent is emitted by a source ledger when an intent is stored.
type IntentCreatedEvent struct {
	SourceChainID uint64
	Intent        *Intent
}
