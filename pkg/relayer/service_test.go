package relayer

import (
	"context"
	"math/big"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rozo-hq/intent-relayer/pkg/chainclient"
	"github.com/rozo-hq/intent-relayer/pkg/config"
	"github.com/rozo-hq/intent-relayer/pkg/fees"
	"github.com/rozo-hq/intent-relayer/pkg/gate"
	"github.com/rozo-hq/intent-relayer/pkg/ledger"
	"github.com/rozo-hq/intent-relayer/pkg/messenger"
	"github.com/rozo-hq/intent-relayer/pkg/policy"
	"github.com/rozo-hq/intent-relayer/pkg/types"
	"github.com/rozo-hq/intent-relayer/pkg/vault"
)

const (
	sourceChainID = uint64(1500)
	destChainID   = uint64(8453)
)

var (
	sender      = addr(0x10)
	receiver    = addr(0x11)
	relayerAddr = addr(0x12)
	escrow      = addr(0x13)
	srcToken    = addr(0x14)
	destToken   = addr(0x15)
)

var baseTime = time.Unix(1_700_000_000, 0)

func addr(b byte) types.Address {
	var raw [32]byte
	raw[31] = b
	return types.AddressFromBytes32(raw)
}

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = t
}

// testEnv is a two-chain in-process deployment: intents lock on the source
// chain, fills happen on the destination chain, and proofs travel back over
// a signer adapter whose delivery can be cut to simulate a messenger outage.
type testEnv struct {
	clock     *fakeClock
	srcVault  *vault.MemoryVault
	destVault *vault.MemoryVault
	srcLedger *ledger.Ledger
	destGate  *gate.Gate
	clients   map[uint64]chainclient.Client
	service   *Service
	outage    atomic.Bool
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	e := &testEnv{
		clock:     &fakeClock{t: baseTime},
		srcVault:  vault.NewMemoryVault(),
		destVault: vault.NewMemoryVault(),
	}

	e.srcVault.Mint(srcToken, sender, big.NewInt(1_000_000))
	e.destVault.Mint(destToken, relayerAddr, big.NewInt(10_000_000))

	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	trusted := crypto.PubkeyToAddress(key.PublicKey)

	engine, err := fees.NewEngine(3)
	require.NoError(t, err)

	deliverToSource := func(ctx context.Context, targetChainID uint64, env messenger.Envelope) error {
		if e.outage.Load() {
			return errors.New("messenger outage")
		}
		return e.srcLedger.Notify(ctx, 0, destChainID, env)
	}

	srcRegistry := messenger.NewRegistry()
	srcRegistry.Register(0, messenger.NewSignerAdapter(sourceChainID, nil, trusted, nil, nil))

	destRegistry := messenger.NewRegistry()
	destRegistry.Register(0, messenger.NewSignerAdapter(destChainID, key, trusted, deliverToSource, nil))

	e.srcLedger = ledger.New(sourceChainID, escrow, engine, e.srcVault, srcRegistry, nil)
	e.srcLedger.SetNow(e.clock.Now)

	pol := policy.FallbackPolicy{FallbackThreshold: 5 * time.Minute}
	e.destGate = gate.New(destChainID, e.destVault, destRegistry, pol, nil)
	e.destGate.SetNow(e.clock.Now)

	destLedger := ledger.New(destChainID, escrow, engine, e.destVault, destRegistry, nil)
	destLedger.SetNow(e.clock.Now)

	e.clients = map[uint64]chainclient.Client{
		sourceChainID: chainclient.NewLocal(sourceChainID, e.srcLedger, nil),
		destChainID:   chainclient.NewLocal(destChainID, destLedger, e.destGate),
	}

	cfg := &config.Config{
		RelayerAddress:    relayerAddr,
		RepaymentAddress:  relayerAddr,
		FallbackThreshold: 5 * time.Minute,
		AdapterOrder:      []uint8{0},
		RescanInterval:    20 * time.Millisecond,
		WorkerCount:       2,
		MaxRetries:        2,
		MinSpread:         big.NewInt(0),
		Chains:            []config.ChainConfig{{ChainID: sourceChainID}, {ChainID: destChainID}},
		CircuitBreaker: config.CircuitBreakerConfig{
			Enabled:        true,
			Threshold:      5,
			WindowDuration: time.Minute,
			ResetTimeout:   time.Minute,
		},
	}

	e.service, err = NewService(cfg, e.clients, nil)
	require.NoError(t, err)
	e.service.SetNow(e.clock.Now)
	return e
}

func (e *testEnv) start(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		e.service.Start(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Error("service did not shut down")
		}
	})
}

func (e *testEnv) createIntent(t *testing.T, id byte, destAmount int64) types.IntentID {
	t.Helper()
	var intentID types.IntentID
	intentID[31] = id
	err := e.srcLedger.CreateIntent(context.Background(), &types.Intent{
		ID:                 intentID,
		Sender:             sender,
		RefundAddress:      sender,
		SourceToken:        srcToken,
		SourceAmount:       big.NewInt(1_000_000),
		DestinationChainID: destChainID,
		DestinationToken:   destToken,
		Receiver:           receiver,
		DestinationAmount:  big.NewInt(destAmount),
		Deadline:           baseTime.Add(time.Hour),
	})
	require.NoError(t, err)
	return intentID
}

func intentStatus(t *testing.T, l *ledger.Ledger, id types.IntentID) types.IntentStatus {
	t.Helper()
	intent, err := l.GetIntent(id)
	require.NoError(t, err)
	return intent.Status
}

// fillTap wraps a chain client to count fill submissions and, when release
// is set, stall them until it is closed.
type fillTap struct {
	chainclient.Client
	fills   atomic.Int32
	entered chan struct{}
	release chan struct{}
}

func (c *fillTap) SubmitFill(ctx context.Context, caller types.Address, d types.IntentData, repayment types.Address, adapterID uint8) (common.Hash, error) {
	c.fills.Add(1)
	if c.entered != nil {
		select {
		case c.entered <- struct{}{}:
		default:
		}
	}
	if c.release != nil {
		<-c.release
	}
	return c.Client.SubmitFill(ctx, caller, d, repayment, adapterID)
}

func TestServiceFillsIntentEndToEnd(t *testing.T) {
	e := newTestEnv(t)
	id := e.createIntent(t, 1, 997_000)
	e.start(t)

	require.Eventually(t, func() bool {
		return intentStatus(t, e.srcLedger, id) == types.StatusFilled
	}, 5*time.Second, 10*time.Millisecond)

	// Receiver paid on the destination chain, relayer repaid the
	// fee-reduced amount on the source chain, fee accrued in the ledger.
	assert.Equal(t, int64(997_000), e.destVault.Balance(destToken, receiver).Int64())
	assert.Equal(t, int64(999_700), e.srcVault.Balance(srcToken, relayerAddr).Int64())
	assert.Equal(t, int64(300), e.srcLedger.AccruedFees(srcToken).Int64())
	// Only the accrued fee remains in escrow.
	assert.Equal(t, int64(300), e.srcVault.Balance(srcToken, escrow).Int64())

	// A filled intent can never be refunded, even past the deadline.
	e.clock.Set(baseTime.Add(time.Hour + time.Second))
	err := e.srcLedger.Refund(context.Background(), id, sender)
	assert.True(t, errors.Is(err, ledger.ErrInvalidStatus))
	assert.Zero(t, e.srcVault.Balance(srcToken, sender).Int64())
}

func TestServiceSkipsUnprofitableIntent(t *testing.T) {
	e := newTestEnv(t)
	id := e.createIntent(t, 1, 1_000_100) // payout exceeds locked amount
	e.start(t)

	time.Sleep(150 * time.Millisecond)
	assert.Equal(t, types.StatusPending, intentStatus(t, e.srcLedger, id))

	// After the deadline the sender recovers the full amount, fee-free.
	e.clock.Set(baseTime.Add(time.Hour))
	refunder := e.clients[sourceChainID]
	require.NoError(t, refunder.Refund(context.Background(), sender, id))
	assert.Equal(t, types.StatusRefunded, intentStatus(t, e.srcLedger, id))
	assert.Equal(t, int64(1_000_000), e.srcVault.Balance(srcToken, sender).Int64())
}

func TestRetryNotificationAfterOutage(t *testing.T) {
	e := newTestEnv(t)
	e.outage.Store(true)
	id := e.createIntent(t, 1, 997_000)
	e.start(t)

	// The fill lands on the destination chain but the proof never arrives.
	require.Eventually(t, func() bool {
		return e.destVault.Balance(destToken, receiver).Int64() == 997_000
	}, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, types.StatusPending, intentStatus(t, e.srcLedger, id))

	// Once the messenger recovers, the operator re-dispatches the proof.
	e.outage.Store(false)
	require.NoError(t, e.service.RetryNotification(context.Background(), sourceChainID, id, 0))
	assert.Equal(t, types.StatusFilled, intentStatus(t, e.srcLedger, id))
	assert.Equal(t, int64(999_700), e.srcVault.Balance(srcToken, relayerAddr).Int64())
}

func TestShutdownWaitsForInFlightFill(t *testing.T) {
	e := newTestEnv(t)
	tap := &fillTap{
		Client:  e.clients[destChainID],
		entered: make(chan struct{}, 1),
		release: make(chan struct{}),
	}
	e.clients[destChainID] = tap
	id := e.createIntent(t, 1, 997_000)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		e.service.Start(ctx)
		close(done)
	}()

	select {
	case <-tap.entered:
	case <-time.After(5 * time.Second):
		t.Fatal("fill submission never started")
	}

	// Cancellation lands with the fill still in flight: Start must wait
	// for the chain call to finish before returning.
	cancel()
	select {
	case <-done:
		t.Fatal("service shut down with a fill in flight")
	case <-time.After(100 * time.Millisecond):
	}

	close(tap.release)
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("service did not shut down after the fill completed")
	}

	assert.Equal(t, types.StatusFilled, intentStatus(t, e.srcLedger, id))
}

func TestProcessJobAbandonsExpiredIntent(t *testing.T) {
	e := newTestEnv(t)
	tap := &fillTap{Client: e.clients[destChainID]}
	e.clients[destChainID] = tap

	id := e.createIntent(t, 1, 997_000)
	intent, err := e.srcLedger.GetIntent(id)
	require.NoError(t, err)

	// The deadline passes while the job sits in the queue or the retry
	// backlog. The fill is abandoned, never submitted.
	e.clock.Set(baseTime.Add(time.Hour))
	e.service.processJob(context.Background(), 0, fillJob{SourceChainID: sourceChainID, Intent: intent})

	assert.Zero(t, tap.fills.Load())
	assert.Equal(t, types.StatusPending, intentStatus(t, e.srcLedger, id))
	assert.Zero(t, e.destVault.Balance(destToken, receiver).Int64())
}

func TestEnqueueAbortsOnCancelledContext(t *testing.T) {
	e := newTestEnv(t)
	// Service never started: nothing drains the job queue.
	for i := 0; i < cap(e.service.pendingJobs); i++ {
		e.service.pendingJobs <- fillJob{}
	}

	id := e.createIntent(t, 1, 997_000)
	intent, err := e.srcLedger.GetIntent(id)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan struct{})
	go func() {
		e.service.enqueue(ctx, sourceChainID, intent)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("enqueue blocked on a full queue after cancellation")
	}
}

func TestRetryNotificationRejectsUnknownChain(t *testing.T) {
	e := newTestEnv(t)
	err := e.service.RetryNotification(context.Background(), 99, types.IntentID{}, 0)
	assert.Error(t, err)
}

func TestViable(t *testing.T) {
	e := newTestEnv(t)

	base := &types.Intent{
		Status:             types.StatusPending,
		SourceAmount:       big.NewInt(1_000_000),
		DestinationAmount:  big.NewInt(997_000),
		DestinationChainID: destChainID,
		Deadline:           baseTime.Add(time.Hour),
		CreatedAt:          baseTime,
	}

	t.Run("open intent is viable", func(t *testing.T) {
		reason, ok := e.service.viable(sourceChainID, base)
		assert.True(t, ok)
		assert.Empty(t, reason)
	})

	t.Run("same chain", func(t *testing.T) {
		in := *base
		in.DestinationChainID = sourceChainID
		reason, ok := e.service.viable(sourceChainID, &in)
		assert.False(t, ok)
		assert.Equal(t, "same_chain", reason)
	})

	t.Run("unknown destination", func(t *testing.T) {
		in := *base
		in.DestinationChainID = 99
		reason, ok := e.service.viable(sourceChainID, &in)
		assert.False(t, ok)
		assert.Equal(t, "unknown_destination", reason)
	})

	t.Run("expired", func(t *testing.T) {
		in := *base
		in.Deadline = baseTime
		reason, ok := e.service.viable(sourceChainID, &in)
		assert.False(t, ok)
		assert.Equal(t, "expired", reason)
	})

	t.Run("assigned to someone else", func(t *testing.T) {
		in := *base
		in.AssignedRelayer = addr(0x77)
		reason, ok := e.service.viable(sourceChainID, &in)
		assert.False(t, ok)
		assert.Equal(t, "assigned_elsewhere", reason)
	})

	t.Run("assigned to us", func(t *testing.T) {
		in := *base
		in.AssignedRelayer = relayerAddr
		_, ok := e.service.viable(sourceChainID, &in)
		assert.True(t, ok)
	})

	t.Run("unprofitable", func(t *testing.T) {
		in := *base
		in.DestinationAmount = big.NewInt(1_000_001)
		reason, ok := e.service.viable(sourceChainID, &in)
		assert.False(t, ok)
		assert.Equal(t, "unprofitable", reason)
	})
}

func TestViableFallbackWindow(t *testing.T) {
	e := newTestEnv(t)
	e.service.fallbackRelayer = relayerAddr

	in := &types.Intent{
		Status:             types.StatusPending,
		SourceAmount:       big.NewInt(1_000_000),
		DestinationAmount:  big.NewInt(997_000),
		DestinationChainID: destChainID,
		Deadline:           baseTime.Add(time.Hour),
		CreatedAt:          baseTime,
		AssignedRelayer:    addr(0x77),
	}

	// Inside the exclusivity window: silently deferred, not skipped.
	reason, ok := e.service.viable(sourceChainID, in)
	assert.False(t, ok)
	assert.Empty(t, reason)

	e.clock.Set(baseTime.Add(5 * time.Minute))
	_, ok = e.service.viable(sourceChainID, in)
	assert.True(t, ok)
}

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		retry     bool
		errorType string
	}{
		{"already filled", gate.ErrAlreadyFilled, false, "already_filled"},
		{"expired", errors.Wrap(gate.ErrIntentExpired, "deadline"), false, "expired"},
		{"wrong chain", gate.ErrWrongChain, false, "wrong_chain"},
		{"unknown adapter", messenger.ErrUnknownAdapter, false, "unknown_adapter"},
		{"insufficient funds", errors.Wrap(vault.ErrInsufficientBalance, "payout"), false, "insufficient_funds"},
		{"not yet authorized", gate.ErrNotAssignedRelayer, true, "not_authorized"},
		{"timeout", context.DeadlineExceeded, true, "timeout"},
		{"anything else", errors.New("boom"), true, "unknown_error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			retry, errorType := classifyError(tt.err)
			assert.Equal(t, tt.retry, retry)
			assert.Equal(t, tt.errorType, errorType)
		})
	}
}
