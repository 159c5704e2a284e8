package chainclient

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"

	"github.com/rozo-hq/intent-relayer/pkg/gate"
	"github.com/rozo-hq/intent-relayer/pkg/ledger"
	"github.com/rozo-hq/intent-relayer/pkg/types"
)

// DefaultCallTimeout bounds every chain call issued through a Local client.
const DefaultCallTimeout = 10 * time.Second

// Local is an in-process chain backend: the chain's intent ledger (source
// role) and settlement gate (destination role) live in this process. It is
// the backend for local deployments and tests; a remote RPC client slots in
// behind the same Client interface.
type Local struct {
	chainID     uint64
	ledger      *ledger.Ledger
	gate        *gate.Gate
	callTimeout time.Duration
}

var _ Client = (*Local)(nil)

// NewLocal wraps a ledger and gate as a chain client.
func NewLocal(chainID uint64, l *ledger.Ledger, g *gate.Gate) *Local {
	return &Local{
		chainID:     chainID,
		ledger:      l,
		gate:        g,
		callTimeout: DefaultCallTimeout,
	}
}

// ChainID identifies the chain.
func (c *Local) ChainID() uint64 {
	return c.chainID
}

// Ledger exposes the underlying ledger for wiring message delivery.
func (c *Local) Ledger() *ledger.Ledger {
	return c.ledger
}

// Gate exposes the underlying settlement gate.
func (c *Local) Gate() *gate.Gate {
	return c.gate
}

// GetIntent reads an intent from the chain's ledger.
func (c *Local) GetIntent(ctx context.Context, id types.IntentID) (*types.Intent, error) {
	ctx, cancel := context.WithTimeout(ctx, c.callTimeout)
	defer cancel()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return c.ledger.GetIntent(id)
}

// PendingIntents lists intents still awaiting a fill.
func (c *Local) PendingIntents(ctx context.Context) ([]*types.Intent, error) {
	ctx, cancel := context.WithTimeout(ctx, c.callTimeout)
	defer cancel()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return c.ledger.PendingIntents(), nil
}

// SubscribeIntentCreated streams intent-created events from the ledger.
func (c *Local) SubscribeIntentCreated(ctx context.Context) (<-chan types.IntentCreatedEvent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return c.ledger.Subscribe(), nil
}

// SubmitFill executes fill-and-notify on this chain's settlement gate.
func (c *Local) SubmitFill(ctx context.Context, caller types.Address, d types.IntentData, repayment types.Address, adapterID uint8) (common.Hash, error) {
	if c.gate == nil {
		return common.Hash{}, errors.Errorf("chain %d has no settlement gate", c.chainID)
	}
	ctx, cancel := context.WithTimeout(ctx, c.callTimeout)
	defer cancel()
	return c.gate.FillAndNotify(ctx, caller, d, repayment, adapterID)
}

// SubmitRetry re-sends the proof for an existing fill.
func (c *Local) SubmitRetry(ctx context.Context, caller types.Address, d types.IntentData, adapterID uint8) error {
	if c.gate == nil {
		return errors.Errorf("chain %d has no settlement gate", c.chainID)
	}
	ctx, cancel := context.WithTimeout(ctx, c.callTimeout)
	defer cancel()
	return c.gate.RetryNotify(ctx, caller, d, adapterID)
}

// Refund triggers a post-deadline refund on this chain's ledger.
func (c *Local) Refund(ctx context.Context, caller types.Address, id types.IntentID) error {
	ctx, cancel := context.WithTimeout(ctx, c.callTimeout)
	defer cancel()
	return c.ledger.Refund(ctx, id, caller)
}
