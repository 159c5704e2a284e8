package types

import (
	"math/big"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleData() IntentData {
	var id IntentID
	id[0] = 0xaa
	mk := func(b byte) Address {
		var raw [32]byte
		raw[31] = b
		return AddressFromBytes32(raw)
	}
	created := time.Unix(1_700_000_000, 0)
	return IntentData{
		IntentID:           id,
		SourceChainID:      1500,
		Sender:             mk(1),
		SourceToken:        mk(2),
		SourceAmount:       big.NewInt(1_000_000),
		DestinationChainID: 8453,
		DestinationToken:   mk(3),
		Receiver:           mk(4),
		DestinationAmount:  big.NewInt(997_000),
		Deadline:           created.Add(time.Hour),
		CreatedAt:          created,
		AssignedRelayer:    mk(5),
	}
}

// Any single-field mutation between fill time and notify time must change
// the commitment.
func TestFillHashBindsEveryField(t *testing.T) {
	base := sampleData()
	baseHash := FillHash(base, base.DestinationChainID)

	tests := []struct {
		name   string
		mutate func(d *IntentData)
	}{
		{"amount", func(d *IntentData) { d.DestinationAmount = big.NewInt(997_001) }},
		{"source amount", func(d *IntentData) { d.SourceAmount = big.NewInt(999_999) }},
		{"receiver", func(d *IntentData) { d.Receiver = Address{} }},
		{"destination token", func(d *IntentData) { d.DestinationToken = d.SourceToken }},
		{"source token", func(d *IntentData) { d.SourceToken = d.DestinationToken }},
		{"deadline", func(d *IntentData) { d.Deadline = d.Deadline.Add(time.Second) }},
		{"created at", func(d *IntentData) { d.CreatedAt = d.CreatedAt.Add(time.Second) }},
		{"sender", func(d *IntentData) { d.Sender = d.Receiver }},
		{"assigned relayer", func(d *IntentData) { d.AssignedRelayer = Address{} }},
		{"intent id", func(d *IntentData) { d.IntentID[31] = 0xff }},
		{"source chain", func(d *IntentData) { d.SourceChainID++ }},
		{"destination chain", func(d *IntentData) { d.DestinationChainID++ }},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			d := sampleData()
			tc.mutate(&d)
			assert.NotEqual(t, baseHash, FillHash(d, base.DestinationChainID))
		})
	}

	t.Run("chain replay", func(t *testing.T) {
		// Same data hashed by a different chain must not collide.
		assert.NotEqual(t, baseHash, FillHash(base, base.DestinationChainID+1))
	})

	t.Run("deterministic", func(t *testing.T) {
		assert.Equal(t, baseHash, FillHash(sampleData(), base.DestinationChainID))
	})
}

func TestNotifyPayloadRoundTrip(t *testing.T) {
	d := sampleData()
	p := NotifyPayload{
		IntentID:         d.IntentID,
		FillHash:         FillHash(d, d.DestinationChainID),
		RepaymentAddress: d.Sender,
		Filler:           d.Receiver,
	}

	encoded := p.Encode()
	require.Len(t, encoded, NotifyPayloadLength)

	decoded, err := DecodeNotifyPayload(encoded)
	require.NoError(t, err)
	assert.Equal(t, p.IntentID, decoded.IntentID)
	assert.Equal(t, p.FillHash, decoded.FillHash)
	assert.True(t, p.RepaymentAddress.Equal(decoded.RepaymentAddress))
	assert.True(t, p.Filler.Equal(decoded.Filler))
}

func TestDecodeNotifyPayloadRejectsBadLength(t *testing.T) {
	_, err := DecodeNotifyPayload(make([]byte, 127))
	assert.True(t, errors.Is(err, ErrInvalidPayload))
}

func TestAddressOpenSentinel(t *testing.T) {
	assert.True(t, Address{}.IsZero())

	a, ok := AddressFromHex("0x01")
	require.True(t, ok)
	assert.False(t, a.IsZero())
	assert.Equal(t, byte(1), a.Raw[31])
}
