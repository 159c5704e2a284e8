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

// QuorumAdapter is the validator-network scheme: a proof is accepted when at
// least threshold distinct members of the validator set have signed it.
// Higher latency than the single-signer scheme, stronger trust minimization.
type QuorumAdapter struct {
	localChainID uint64
	validators   map[common.Address]bool
	threshold    int
	keys         []*ecdsa.PrivateKey // local validator keys, empty on verify-only deployments
	deliver      DeliverFunc
	logger       logger.Logger
}

// NewQuorumAdapter creates a quorum adapter. keys holds the validator keys
// this process controls; in production each validator signs on its own node
// and the transport aggregates, but the verification rules are identical.
func NewQuorumAdapter(localChainID uint64, validators []common.Address, threshold int, keys []*ecdsa.PrivateKey, deliver DeliverFunc, log logger.Logger) (*QuorumAdapter, error) {
	if threshold <= 0 || threshold > len(validators) {
		return nil, errors.Errorf("invalid quorum threshold %d for %d validators", threshold, len(validators))
	}
	if log == nil {
		log = &logger.EmptyLogger{}
	}
	set := make(map[common.Address]bool, len(validators))
	for _, v := range validators {
		set[v] = true
	}
	return &QuorumAdapter{
		localChainID: localChainID,
		validators:   set,
		threshold:    threshold,
		keys:         keys,
		deliver:      deliver,
		logger:       log,
	}, nil
}

// Send collects signatures from the locally held validator keys and hands
// the sealed envelope to the transport.
func (a *QuorumAdapter) Send(ctx context.Context, destChainID uint64, payload types.NotifyPayload) (string, error) {
	if len(a.keys) < a.threshold {
		return "", errors.Errorf("have %d validator keys, quorum needs %d", len(a.keys), a.threshold)
	}
	encoded := payload.Encode()
	digest := proofDigest(a.localChainID, destChainID, encoded)

	sigs := make([][]byte, 0, len(a.keys))
	for _, key := range a.keys {
		sig, err := crypto.Sign(digest.Bytes(), key)
		if err != nil {
			return "", errors.Wrap(err, "failed to sign proof")
		}
		sigs = append(sigs, sig)
	}

	env := Envelope{Payload: encoded, Signatures: sigs}
	if err := a.deliver(ctx, destChainID, env); err != nil {
		return "", errors.Wrapf(err, "failed to deliver proof to chain %d", destChainID)
	}

	msgID := fmt.Sprintf("quorum-%d-%d-%s", a.localChainID, destChainID, payload.FillHash.Hex())
	a.logger.DebugWithChain(destChainID, "Dispatched quorum proof %s (%d signatures)", msgID, len(sigs))
	return msgID, nil
}

// Verify accepts the envelope once threshold distinct validators have
// signed the corridor digest. Duplicate or non-validator signatures are
// ignored rather than fatal, so a single bad co-signer cannot censor an
// otherwise valid proof.
func (a *QuorumAdapter) Verify(sourceChainID uint64, env Envelope) (types.NotifyPayload, error) {
	payload, err := types.DecodeNotifyPayload(env.Payload)
	if err != nil {
		return types.NotifyPayload{}, errors.Wrap(ErrInvalidProof, err.Error())
	}

	digest := proofDigest(sourceChainID, a.localChainID, env.Payload)
	seen := make(map[common.Address]bool)
	for _, sig := range env.Signatures {
		pub, err := crypto.SigToPub(digest.Bytes(), sig)
		if err != nil {
			continue
		}
		addr := crypto.PubkeyToAddress(*pub)
		if a.validators[addr] {
			seen[addr] = true
		}
	}

	if len(seen) < a.threshold {
		return types.NotifyPayload{}, errors.Wrapf(ErrUntrustedSource, "quorum %d/%d", len(seen), a.threshold)
	}
	return payload, nil
}
