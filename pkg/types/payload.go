package types

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
)

// NotifyPayloadLength is the fixed wire size of a notify payload:
// four 32-byte fields.
const NotifyPayloadLength = 128

// ErrInvalidPayload is returned when a notify payload has the wrong size.
var ErrInvalidPayload = errors.New("invalid notify payload")

// NotifyPayload is the messenger-agnostic proof content delivered from the
// destination settlement gate to the source ledger. Transports may wrap it
// in an authenticity envelope but must deliver exactly these four fields.
type NotifyPayload struct {
	IntentID         IntentID
	FillHash         common.Hash
	RepaymentAddress Address
	Filler           Address
}

// Encode serializes the payload into its fixed 128-byte wire form.
func (p NotifyPayload) Encode() []byte {
	buf := make([]byte, 0, NotifyPayloadLength)
	buf = append(buf, p.IntentID[:]...)
	buf = append(buf, p.FillHash.Bytes()...)
	buf = append(buf, p.RepaymentAddress.Raw[:]...)
	buf = append(buf, p.Filler.Raw[:]...)
	return buf
}

// DecodeNotifyPayload parses the fixed 128-byte wire form. Address kind
// tags are not carried on the wire; decoded addresses default to
// account-style and are re-tagged by the receiving chain client if needed.
func DecodeNotifyPayload(b []byte) (NotifyPayload, error) {
	if len(b) != NotifyPayloadLength {
		return NotifyPayload{}, errors.Wrapf(ErrInvalidPayload, "got %d bytes, want %d", len(b), NotifyPayloadLength)
	}
	var p NotifyPayload
	copy(p.IntentID[:], b[0:32])
	p.FillHash = common.BytesToHash(b[32:64])
	var repay, filler [32]byte
	copy(repay[:], b[64:96])
	copy(filler[:], b[96:128])
	p.RepaymentAddress = AddressFromBytes32(repay)
	p.Filler = AddressFromBytes32(filler)
	return p, nil
}
