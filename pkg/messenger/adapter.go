// Package messenger provides pluggable cross-chain proof transports. The
// ledger's notify logic never needs to know which verification scheme
// produced a proof: every adapter yields the same 4-field payload, and the
// fill-hash check on the source ledger is the real authorization.
package messenger

import (
	"context"
	"encoding/binary"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"

	"github.com/rozo-hq/intent-relayer/pkg/types"
)

var (
	// ErrUntrustedSource means the envelope's authenticity proof does not
	// come from a trusted signer or validator set.
	ErrUntrustedSource = errors.New("untrusted message source")
	// ErrInvalidProof means the envelope is malformed or its signatures do
	// not verify.
	ErrInvalidProof = errors.New("invalid message proof")
	// ErrUnknownAdapter means no adapter is registered under the given id.
	ErrUnknownAdapter = errors.New("unknown messenger adapter")
)

// Envelope wraps a wire payload with transport-specific authenticity data.
type Envelope struct {
	Payload    []byte
	Signatures [][]byte
}

// Adapter is one concrete cross-chain messaging scheme. Send is
// side-effecting and may be asynchronous; its failure is non-fatal to a
// fill, only repayment is delayed. Verify is deterministic.
type Adapter interface {
	// Send dispatches a payload toward destChainID and returns a message id.
	Send(ctx context.Context, destChainID uint64, payload types.NotifyPayload) (string, error)

	// Verify validates an inbound envelope that claims to originate on
	// sourceChainID and returns the decoded payload.
	Verify(sourceChainID uint64, env Envelope) (types.NotifyPayload, error)
}

// DeliverFunc hands a sealed envelope to the transport for a target chain.
type DeliverFunc func(ctx context.Context, destChainID uint64, env Envelope) error

// Registry maps stable small integer ids to adapters. The relayer picks the
// adapter per fill; the id travels with the fill so retries can switch
// schemes.
type Registry struct {
	mu       sync.RWMutex
	adapters map[uint8]Adapter
}

// NewRegistry creates an empty adapter registry.
func NewRegistry() *Registry {
	return &Registry{adapters: make(map[uint8]Adapter)}
}

// Register binds an adapter to an id, replacing any previous binding.
func (r *Registry) Register(id uint8, a Adapter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.adapters[id] = a
}

// Get resolves an adapter id.
func (r *Registry) Get(id uint8) (Adapter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.adapters[id]
	if !ok {
		return nil, errors.Wrapf(ErrUnknownAdapter, "id %d", id)
	}
	return a, nil
}

// IDs returns the registered adapter ids in unspecified order.
func (r *Registry) IDs() []uint8 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]uint8, 0, len(r.adapters))
	for id := range r.adapters {
		ids = append(ids, id)
	}
	return ids
}

// proofDigest is the value adapters sign: the payload bound to both the
// origin and target chain ids, so an attested message for one corridor can
// never be replayed on another.
func proofDigest(originChainID, targetChainID uint64, payload []byte) common.Hash {
	var chains [16]byte
	binary.BigEndian.PutUint64(chains[0:8], originChainID)
	binary.BigEndian.PutUint64(chains[8:16], targetChainID)
	return crypto.Keccak256Hash([]byte("rozo-notify-v1"), chains[:], payload)
}
