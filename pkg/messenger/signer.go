package messenger

import (
	"context"
	"crypto/ecdsa"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"

	"github.com/rozo-hq/intent-relayer/pkg/logger"
	"github.com/rozo-hq/intent-relayer/pkg/types"
)

// SignerAdapter is the single-trusted-signer scheme: one operator key
// attests every proof. Low latency, weakest trust assumptions; suited for
// fast repayment corridors.
type SignerAdapter struct {
	localChainID uint64
	key          *ecdsa.PrivateKey // nil on verify-only deployments
	trusted      common.Address
	deliver      DeliverFunc
	logger       logger.Logger
}

// NewSignerAdapter creates a signer adapter for the chain it runs on.
// key may be nil when the adapter only verifies inbound envelopes.
func NewSignerAdapter(localChainID uint64, key *ecdsa.PrivateKey, trusted common.Address, deliver DeliverFunc, log logger.Logger) *SignerAdapter {
	if log == nil {
		log = &logger.EmptyLogger{}
	}
	return &SignerAdapter{
		localChainID: localChainID,
		key:          key,
		trusted:      trusted,
		deliver:      deliver,
		logger:       log,
	}
}

// Send signs the payload for the local->dest corridor and hands the sealed
// envelope to the transport.
func (a *SignerAdapter) Send(ctx context.Context, destChainID uint64, payload types.NotifyPayload) (string, error) {
	if a.key == nil {
		return "", errors.New("signer adapter has no signing key")
	}
	encoded := payload.Encode()
	digest := proofDigest(a.localChainID, destChainID, encoded)

	sig, err := crypto.Sign(digest.Bytes(), a.key)
	if err != nil {
		return "", errors.Wrap(err, "failed to sign proof")
	}

	env := Envelope{Payload: encoded, Signatures: [][]byte{sig}}
	if err := a.deliver(ctx, destChainID, env); err != nil {
		return "", errors.Wrapf(err, "failed to deliver proof to chain %d", destChainID)
	}

	msgID := fmt.Sprintf("signer-%d-%d-%s", a.localChainID, destChainID, payload.FillHash.Hex())
	a.logger.DebugWithChain(destChainID, "Dispatched signed proof %s", msgID)
	return msgID, nil
}

// Verify checks that the envelope carries exactly one signature from the
// trusted signer over the sourceChainID->local corridor digest.
func (a *SignerAdapter) Verify(sourceChainID uint64, env Envelope) (types.NotifyPayload, error) {
	if len(env.Signatures) != 1 {
		return types.NotifyPayload{}, errors.Wrapf(ErrInvalidProof, "want 1 signature, got %d", len(env.Signatures))
	}

	payload, err := types.DecodeNotifyPayload(env.Payload)
	if err != nil {
		return types.NotifyPayload{}, errors.Wrap(ErrInvalidProof, err.Error())
	}

	digest := proofDigest(sourceChainID, a.localChainID, env.Payload)
	pub, err := crypto.SigToPub(digest.Bytes(), env.Signatures[0])
	if err != nil {
		return types.NotifyPayload{}, errors.Wrap(ErrInvalidProof, err.Error())
	}

	if crypto.PubkeyToAddress(*pub) != a.trusted {
		return types.NotifyPayload{}, errors.Wrapf(ErrUntrustedSource, "signer %s", crypto.PubkeyToAddress(*pub).Hex())
	}
	return payload, nil
}
