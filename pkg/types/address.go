package types

import (
	"encoding/hex"

	"github.com/ethereum/go-ethereum/common"
)

// AddressKind distinguishes the address formats that can be packed into the
// 32-byte universal representation.
type AddressKind uint8

const (
	// KindAccount is a regular account-style address.
	KindAccount AddressKind = iota
	// KindContract is a contract-style address.
	KindContract
)

// Address is a chain-agnostic 32-byte address. Shorter native formats are
// left-padded with zeros when converted. The zero value is the open sentinel:
// on an intent it means "open to any authorized relayer".
type Address struct {
	Kind AddressKind
	Raw  [32]byte
}

// AddressFromBytes32 wraps raw 32 bytes as an account-style address.
func AddressFromBytes32(raw [32]byte) Address {
	return Address{Kind: KindAccount, Raw: raw}
}

// AddressFromEVM converts a 20-byte EVM address, left-padded to 32 bytes.
func AddressFromEVM(addr common.Address) Address {
	var raw [32]byte
	copy(raw[12:], addr.Bytes())
	return Address{Kind: KindAccount, Raw: raw}
}

// AddressFromHex parses a hex string (with or without 0x prefix) of up to
// 32 bytes into an account-style address, left-padded.
func AddressFromHex(s string) (Address, bool) {
	if len(s) >= 2 && s[0:2] == "0x" {
		s = s[2:]
	}
	b, err := hex.DecodeString(s)
	if err != nil || len(b) > 32 {
		return Address{}, false
	}
	var raw [32]byte
	copy(raw[32-len(b):], b)
	return Address{Kind: KindAccount, Raw: raw}, true
}

// EVM truncates the address to its low 20 bytes as an EVM address.
func (a Address) EVM() common.Address {
	return common.BytesToAddress(a.Raw[12:])
}

// IsZero reports whether the address is the zero/open sentinel.
func (a Address) IsZero() bool {
	return a.Raw == [32]byte{}
}

// Equal compares the raw bytes of two addresses. The kind tag is metadata
// for chain clients and does not participate in identity.
func (a Address) Equal(b Address) bool {
	return a.Raw == b.Raw
}

// Hex returns the 0x-prefixed hex form of the raw bytes.
func (a Address) Hex() string {
	return "0x" + hex.EncodeToString(a.Raw[:])
}

func (a Address) String() string {
	return a.Hex()
}
