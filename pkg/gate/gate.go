// Package gate models the destination-chain side of the settlement
// protocol: paying the receiver, committing the fill parameters into a fill
// hash, and dispatching the proof back to the source chain.
package gate

import (
	"context"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"

	"github.com/rozo-hq/intent-relayer/pkg/logger"
	"github.com/rozo-hq/intent-relayer/pkg/messenger"
	"github.com/rozo-hq/intent-relayer/pkg/policy"
	"github.com/rozo-hq/intent-relayer/pkg/types"
)

var (
	// ErrWrongChain means the intent data targets a different chain.
	ErrWrongChain = errors.New("intent targets a different chain")
	// ErrIntentExpired means the deadline has passed; the fill must be
	// abandoned, never submitted.
	ErrIntentExpired = errors.New("intent expired")
	// ErrNotAssignedRelayer means the caller is not authorized to fill at
	// this time.
	ErrNotAssignedRelayer = errors.New("caller not authorized to fill")
	// ErrAlreadyFilled means a fill record already exists for this hash.
	ErrAlreadyFilled = errors.New("intent already filled")
	// ErrNotFilled means no fill record exists for the hash.
	ErrNotFilled = errors.New("no fill record for intent")
	// ErrNotOriginalFiller means a retry was attempted by someone other
	// than the recorded filler.
	ErrNotOriginalFiller = errors.New("caller is not the original filler")
)

// TokenVault is the opaque token transfer capability of the chain this
// gate lives on.
type TokenVault interface {
	Transfer(ctx context.Context, token, from, to types.Address, amount *big.Int) error
}

// Gate executes payouts to receivers and records fills. The fill record
// store is keyed by fill hash and outlives the intent; it is what lets the
// original filler retry a lost proof delivery without letting anyone else
// hijack the retry.
type Gate struct {
	chainID  uint64
	vault    TokenVault
	adapters *messenger.Registry
	policy   policy.FallbackPolicy
	logger   logger.Logger
	now      func() time.Time

	mu    sync.Mutex
	fills map[common.Hash]types.FillRecord
}

// New creates a settlement gate for the given chain.
func New(chainID uint64, vault TokenVault, adapters *messenger.Registry, pol policy.FallbackPolicy, log logger.Logger) *Gate {
	if log == nil {
		log = &logger.EmptyLogger{}
	}
	return &Gate{
		chainID:  chainID,
		vault:    vault,
		adapters: adapters,
		policy:   pol,
		logger:   log,
		now:      time.Now,
		fills:    make(map[common.Hash]types.FillRecord),
	}
}

// SetNow overrides the clock. Used by tests to exercise deadlines.
func (g *Gate) SetNow(now func() time.Time) {
	g.now = now
}

// ChainID returns the chain this gate lives on.
func (g *Gate) ChainID() uint64 {
	return g.chainID
}

// FillAndNotify pays the receiver, records the fill, and dispatches the
// proof through the chosen adapter. The payout and the fill record are
// atomic: a vault failure leaves no record behind. Proof delivery failure
// is non-fatal; the fill already happened and RetryNotify can redeliver.
func (g *Gate) FillAndNotify(ctx context.Context, caller types.Address, d types.IntentData, repayment types.Address, adapterID uint8) (common.Hash, error) {
	if d.DestinationChainID != g.chainID {
		return common.Hash{}, errors.Wrapf(ErrWrongChain, "intent targets chain %d, this is chain %d", d.DestinationChainID, g.chainID)
	}

	now := g.now()
	if !now.Before(d.Deadline) {
		return common.Hash{}, errors.Wrapf(ErrIntentExpired, "deadline %s", d.Deadline)
	}
	if !g.policy.Authorized(caller, d.AssignedRelayer, d.CreatedAt, now) {
		return common.Hash{}, errors.Wrapf(ErrNotAssignedRelayer, "caller %s, assigned %s", caller.Hex(), d.AssignedRelayer.Hex())
	}

	adapter, err := g.adapters.Get(adapterID)
	if err != nil {
		return common.Hash{}, err
	}

	fillHash := types.FillHash(d, g.chainID)

	g.mu.Lock()
	if _, ok := g.fills[fillHash]; ok {
		g.mu.Unlock()
		return common.Hash{}, errors.Wrapf(ErrAlreadyFilled, "fill hash %s", fillHash.Hex())
	}
	// Payout and record are committed under one lock; there is never a
	// stored FillRecord without its payment.
	if err := g.vault.Transfer(ctx, d.DestinationToken, caller, d.Receiver, d.DestinationAmount); err != nil {
		g.mu.Unlock()
		return common.Hash{}, errors.Wrap(err, "payout transfer failed")
	}
	g.fills[fillHash] = types.FillRecord{Filler: caller, RepaymentAddress: repayment}
	g.mu.Unlock()

	g.logger.InfoWithChain(g.chainID, "Filled intent %s: paid %s to %s (fill hash %s)",
		d.IntentID.Hex(), d.DestinationAmount.String(), d.Receiver.Hex(), fillHash.Hex())

	payload := types.NotifyPayload{
		IntentID:         d.IntentID,
		FillHash:         fillHash,
		RepaymentAddress: repayment,
		Filler:           caller,
	}
	if _, err := adapter.Send(ctx, d.SourceChainID, payload); err != nil {
		g.logger.ErrorWithChain(g.chainID, "Proof delivery failed for intent %s via adapter %d: %v (retry with another adapter)",
			d.IntentID.Hex(), adapterID, err)
	}
	return fillHash, nil
}

// RetryNotify re-sends the proof for an existing fill via the chosen
// adapter. Only the original filler may retry; no new transfer occurs.
func (g *Gate) RetryNotify(ctx context.Context, caller types.Address, d types.IntentData, adapterID uint8) error {
	fillHash := types.FillHash(d, g.chainID)

	g.mu.Lock()
	record, ok := g.fills[fillHash]
	g.mu.Unlock()

	if !ok {
		return errors.Wrapf(ErrNotFilled, "fill hash %s", fillHash.Hex())
	}
	if !record.Filler.Equal(caller) {
		return errors.Wrapf(ErrNotOriginalFiller, "caller %s, filler %s", caller.Hex(), record.Filler.Hex())
	}

	adapter, err := g.adapters.Get(adapterID)
	if err != nil {
		return err
	}

	payload := types.NotifyPayload{
		IntentID:         d.IntentID,
		FillHash:         fillHash,
		RepaymentAddress: record.RepaymentAddress,
		Filler:           record.Filler,
	}
	if _, err := adapter.Send(ctx, d.SourceChainID, payload); err != nil {
		return errors.Wrapf(err, "retry delivery failed via adapter %d", adapterID)
	}

	g.logger.InfoWithChain(g.chainID, "Re-sent proof for intent %s via adapter %d", d.IntentID.Hex(), adapterID)
	return nil
}

// FillRecord returns the record stored for a fill hash, if any.
func (g *Gate) FillRecord(fillHash common.Hash) (types.FillRecord, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	record, ok := g.fills[fillHash]
	return record, ok
}
