// Package ledger models the source-chain side of the settlement protocol:
// intent storage, the Pending -> Filled/Failed/Refunded state machine, and
// the notify entry point that releases locked funds.
package ledger

import (
	"context"
	"math/big"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/rozo-hq/intent-relayer/pkg/fees"
	"github.com/rozo-hq/intent-relayer/pkg/logger"
	"github.com/rozo-hq/intent-relayer/pkg/messenger"
	"github.com/rozo-hq/intent-relayer/pkg/types"
)

// TokenVault is the opaque token transfer capability of the chain this
// ledger lives on.
type TokenVault interface {
	Transfer(ctx context.Context, token, from, to types.Address, amount *big.Int) error
}

// Ledger owns the intents created on one source chain. All transitions are
// serialized under its mutex; no partial state survives a vault failure.
type Ledger struct {
	chainID  uint64
	escrow   types.Address
	engine   *fees.Engine
	vault    TokenVault
	adapters *messenger.Registry
	logger   logger.Logger
	now      func() time.Time

	mu      sync.Mutex
	intents map[types.IntentID]*types.Intent
	accrued map[types.Address]*big.Int // protocol fees by token
	subs    []chan types.IntentCreatedEvent
}

// New creates a ledger for the given chain. escrow is the account holding
// locked funds between creation and release.
func New(chainID uint64, escrow types.Address, engine *fees.Engine, vault TokenVault, adapters *messenger.Registry, log logger.Logger) *Ledger {
	if log == nil {
		log = &logger.EmptyLogger{}
	}
	return &Ledger{
		chainID:  chainID,
		escrow:   escrow,
		engine:   engine,
		vault:    vault,
		adapters: adapters,
		logger:   log,
		now:      time.Now,
		intents:  make(map[types.IntentID]*types.Intent),
		accrued:  make(map[types.Address]*big.Int),
	}
}

// SetNow overrides the clock. Used by tests to exercise deadlines.
func (l *Ledger) SetNow(now func() time.Time) {
	l.now = now
}

// ChainID returns the chain this ledger lives on.
func (l *Ledger) ChainID() uint64 {
	return l.chainID
}

// CreateIntent validates and stores a new intent, locking sourceAmount of
// sourceToken from the sender into escrow. The id is generated off-chain
// and must be globally unique.
func (l *Ledger) CreateIntent(ctx context.Context, in *types.Intent) error {
	if in.SourceAmount == nil || in.SourceAmount.Sign() <= 0 ||
		in.DestinationAmount == nil || in.DestinationAmount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	now := l.now()
	if !in.Deadline.After(now) {
		return ErrInvalidDeadline
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.intents[in.ID]; ok {
		return errors.Wrapf(ErrAlreadyExists, "intent %s", in.ID.Hex())
	}

	if err := l.vault.Transfer(ctx, in.SourceToken, in.Sender, l.escrow, in.SourceAmount); err != nil {
		return errors.Wrap(err, "failed to lock source funds")
	}

	stored := in.Clone()
	stored.CreatedAt = now
	stored.Status = types.StatusPending
	l.intents[in.ID] = stored

	l.logger.InfoWithChain(l.chainID, "Intent %s created: %s %s -> chain %d",
		in.ID.Hex(), in.SourceAmount.String(), in.SourceToken.Hex(), in.DestinationChainID)

	l.publish(types.IntentCreatedEvent{SourceChainID: l.chainID, Intent: stored.Clone()})
	return nil
}

// Notify is the only path that releases locked funds. The envelope is
// verified by the adapter registered under adapterID; the decoded payload's
// fill hash is then checked against a hash recomputed from the stored
// intent. A mismatch is a soft failure: the intent moves to Failed for
// administrative recovery and the call returns nil, so the messenger is not
// penalized for a relayer's bad data.
func (l *Ledger) Notify(ctx context.Context, adapterID uint8, msgSourceChainID uint64, env messenger.Envelope) error {
	adapter, err := l.adapters.Get(adapterID)
	if err != nil {
		return err
	}

	payload, err := adapter.Verify(msgSourceChainID, env)
	if err != nil {
		return errors.Wrap(err, "proof verification failed")
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	intent, ok := l.intents[payload.IntentID]
	if !ok {
		return errors.Wrapf(ErrIntentNotFound, "intent %s", payload.IntentID.Hex())
	}
	if intent.Status != types.StatusPending {
		return errors.Wrapf(ErrInvalidStatus, "intent %s is %s", payload.IntentID.Hex(), intent.Status)
	}

	expected := types.FillHash(intent.Data(l.chainID), intent.DestinationChainID)
	if expected != payload.FillHash {
		intent.Status = types.StatusFailed
		l.logger.ErrorWithChain(l.chainID, "Intent %s fill hash mismatch (got %s, want %s), marked FAILED",
			payload.IntentID.Hex(), payload.FillHash.Hex(), expected.Hex())
		return nil
	}

	fee, payout := l.engine.ComputePayout(intent.SourceAmount)
	if err := l.vault.Transfer(ctx, intent.SourceToken, l.escrow, payload.RepaymentAddress, payout); err != nil {
		// Funds stay locked and the intent stays Pending; the relayer can
		// redeliver the proof once the transfer path recovers.
		return errors.Wrap(err, "failed to pay relayer")
	}

	intent.Status = types.StatusFilled
	if fee.Sign() > 0 {
		acc, ok := l.accrued[intent.SourceToken]
		if !ok {
			acc = new(big.Int)
			l.accrued[intent.SourceToken] = acc
		}
		acc.Add(acc, fee)
	}

	l.logger.NoticeWithChain(l.chainID, "Intent %s FILLED, repaid %s to %s (fee %s)",
		payload.IntentID.Hex(), payout.String(), payload.RepaymentAddress.Hex(), fee.String())
	return nil
}

// Refund returns the full locked amount, fee-free, after the deadline.
// Only the sender or the refund address may call it, and only while the
// intent is Pending or Failed.
func (l *Ledger) Refund(ctx context.Context, id types.IntentID, caller types.Address) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	intent, ok := l.intents[id]
	if !ok {
		return errors.Wrapf(ErrIntentNotFound, "intent %s", id.Hex())
	}
	if intent.Status != types.StatusPending && intent.Status != types.StatusFailed {
		return errors.Wrapf(ErrInvalidStatus, "intent %s is %s", id.Hex(), intent.Status)
	}
	if !caller.Equal(intent.Sender) && !caller.Equal(intent.RefundAddress) {
		return errors.Wrapf(ErrNotAuthorized, "caller %s", caller.Hex())
	}
	if l.now().Before(intent.Deadline) {
		return errors.Wrapf(ErrNotExpired, "deadline %s", intent.Deadline)
	}

	if err := l.vault.Transfer(ctx, intent.SourceToken, l.escrow, intent.RefundAddress, intent.SourceAmount); err != nil {
		return errors.Wrap(err, "failed to refund")
	}
	intent.Status = types.StatusRefunded

	l.logger.NoticeWithChain(l.chainID, "Intent %s REFUNDED, %s returned to %s",
		id.Hex(), intent.SourceAmount.String(), intent.RefundAddress.Hex())
	return nil
}

// GetIntent returns a copy of the stored intent.
func (l *Ledger) GetIntent(id types.IntentID) (*types.Intent, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	intent, ok := l.intents[id]
	if !ok {
		return nil, errors.Wrapf(ErrIntentNotFound, "intent %s", id.Hex())
	}
	return intent.Clone(), nil
}

// PendingIntents returns copies of all intents still in Pending state.
func (l *Ledger) PendingIntents() []*types.Intent {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []*types.Intent
	for _, intent := range l.intents {
		if intent.Status == types.StatusPending {
			out = append(out, intent.Clone())
		}
	}
	return out
}

// AccruedFees returns the protocol fees accrued for a token.
func (l *Ledger) AccruedFees(token types.Address) *big.Int {
	l.mu.Lock()
	defer l.mu.Unlock()
	if acc, ok := l.accrued[token]; ok {
		return new(big.Int).Set(acc)
	}
	return new(big.Int)
}

// Subscribe returns a channel receiving intent-created events. Events are
// dropped, not blocked on, when a subscriber falls behind; the rescan path
// covers missed events.
func (l *Ledger) Subscribe() <-chan types.IntentCreatedEvent {
	l.mu.Lock()
	defer l.mu.Unlock()
	ch := make(chan types.IntentCreatedEvent, 64)
	l.subs = append(l.subs, ch)
	return ch
}

func (l *Ledger) publish(ev types.IntentCreatedEvent) {
	for _, ch := range l.subs {
		select {
		case ch <- ev:
		default:
			l.logger.ErrorWithChain(l.chainID, "Dropping intent-created event %s: subscriber backlogged", ev.Intent.ID.Hex())
		}
	}
}
