package types

import (
	"encoding/binary"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// FillHash computes the commitment binding a fill to the exact intent it
// claims to satisfy. It is computed twice, independently: by the settlement
// gate at fill time (passing its own chain id) and by the source ledger at
// notify time (passing the stored intent's destination chain id). Equality
// of both computations is the sole authorization for releasing funds.
//
// The encoding is fixed-width so every chain produces identical bytes:
// all amounts as 32-byte big-endian values, all timestamps and chain ids
// as 8-byte big-endian unix seconds.
func FillHash(d IntentData, destinationChainID uint64) common.Hash {
	buf := make([]byte, 0, 32*7+8*5)
	buf = append(buf, d.IntentID[:]...)
	buf = appendUint64(buf, d.SourceChainID)
	buf = append(buf, d.Sender.Raw[:]...)
	buf = append(buf, d.SourceToken.Raw[:]...)
	buf = append(buf, bigTo32(d.SourceAmount)...)
	buf = appendUint64(buf, d.DestinationChainID)
	buf = append(buf, d.DestinationToken.Raw[:]...)
	buf = append(buf, d.Receiver.Raw[:]...)
	buf = append(buf, bigTo32(d.DestinationAmount)...)
	buf = appendUint64(buf, uint64(d.Deadline.Unix()))
	buf = appendUint64(buf, uint64(d.CreatedAt.Unix()))
	buf = append(buf, d.AssignedRelayer.Raw[:]...)
	buf = appendUint64(buf, destinationChainID)
	return crypto.Keccak256Hash(buf)
}

func appendUint64(buf []byte, v uint64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	return append(buf, b[:]...)
}

func bigTo32(v *big.Int) []byte {
	var b [32]byte
	if v != nil {
		v.FillBytes(b[:])
	}
	return b[:]
}
