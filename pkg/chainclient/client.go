// Package chainclient defines the uniform per-chain capability the relayer
// orchestrator drives, and the in-process backend used for local
// deployments and tests. Conversions between a chain's native address
// format and the universal 32-byte form are isolated behind each client.
package chainclient

import (
	"context"

	"github.com/ethereum/go-ethereum/common"

	"github.com/rozo-hq/intent-relayer/pkg/types"
)

// Client is one chain as seen by the orchestrator. Every call is
// context-bounded so a stalled endpoint on one chain never blocks progress
// on another.
type Client interface {
	// ChainID identifies the chain.
	ChainID() uint64

	// GetIntent reads an intent from the chain's ledger.
	GetIntent(ctx context.Context, id types.IntentID) (*types.Intent, error)

	// PendingIntents lists intents still awaiting a fill.
	PendingIntents(ctx context.Context) ([]*types.Intent, error)

	// SubscribeIntentCreated streams intent-created events.
	SubscribeIntentCreated(ctx context.Context) (<-chan types.IntentCreatedEvent, error)

	// SubmitFill executes fill-and-notify on this chain's settlement gate.
	SubmitFill(ctx context.Context, caller types.Address, d types.IntentData, repayment types.Address, adapterID uint8) (common.Hash, error)

	// SubmitRetry re-sends the proof for an existing fill.
	SubmitRetry(ctx context.Context, caller types.Address, d types.IntentData, adapterID uint8) error

	// Refund triggers a post-deadline refund on this chain's ledger.
	Refund(ctx context.Context, caller types.Address, id types.IntentID) error
}
