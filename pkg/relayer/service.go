// Package relayer runs the autonomous fill loop: it watches every
// configured chain for created intents, decides which are worth filling,
// submits fill-and-notify on the destination chain through a worker pool,
// and retries transient failures with backoff and adapter rotation.
package relayer

import (
	"context"
	"math/big"
	"sync"
	"time"

	"github.com/jellydator/ttlcache/v3"
	"github.com/pkg/errors"

	"github.com/rozo-hq/intent-relayer/pkg/chainclient"
	"github.com/rozo-hq/intent-relayer/pkg/circuitbreaker"
	"github.com/rozo-hq/intent-relayer/pkg/config"
	"github.com/rozo-hq/intent-relayer/pkg/logger"
	"github.com/rozo-hq/intent-relayer/pkg/metrics"
	"github.com/rozo-hq/intent-relayer/pkg/types"
)

// seenTTL bounds how long a picked-up intent id stays in the dedup cache.
// Rescans re-surface intents that are still pending after this window.
const seenTTL = 10 * time.Minute

type seenKey struct {
	chainID uint64
	id      types.IntentID
}

// fillJob is one fill attempt flowing through the worker pool.
type fillJob struct {
	SourceChainID uint64
	Intent        *types.Intent
	RetryCount    int
	AdapterIndex  int
}

// retryJob is a fill job parked until its next attempt time.
type retryJob struct {
	Job         fillJob
	NextAttempt time.Time
	ErrorType   string
}

// Service handles the intent fill process across all configured chains.
type Service struct {
	relayer           types.Address
	repayment         types.Address
	fallbackRelayer   types.Address
	fallbackThreshold time.Duration
	minSpread         *big.Int
	adapterOrder      []uint8
	maxRetries        int
	workers           int
	rescanInterval    time.Duration

	chains          map[uint64]chainclient.Client
	circuitBreakers map[uint64]*circuitbreaker.CircuitBreaker
	logger          logger.Logger

	pendingJobs chan fillJob
	retryJobs   chan retryJob
	seen        *ttlcache.Cache[seenKey, struct{}]
	wg          sync.WaitGroup
	now         func() time.Time
}

// NewService creates a relayer service over the given chain clients.
func NewService(cfg *config.Config, chains map[uint64]chainclient.Client, log logger.Logger) (*Service, error) {
	if log == nil {
		log = &logger.EmptyLogger{}
	}
	if len(chains) == 0 {
		return nil, errors.New("at least one chain client is required")
	}
	for _, chainCfg := range cfg.Chains {
		if _, ok := chains[chainCfg.ChainID]; !ok {
			return nil, errors.Errorf("no client for configured chain %d", chainCfg.ChainID)
		}
	}

	circuitBreakers := make(map[uint64]*circuitbreaker.CircuitBreaker)
	for chainID := range chains {
		circuitBreakers[chainID] = circuitbreaker.New(
			chainID,
			cfg.CircuitBreaker.Enabled,
			cfg.CircuitBreaker.Threshold,
			cfg.CircuitBreaker.WindowDuration,
			cfg.CircuitBreaker.ResetTimeout,
			log,
		)
	}

	minSpread := cfg.MinSpread
	if minSpread == nil {
		minSpread = big.NewInt(0)
	}

	return &Service{
		relayer:           cfg.RelayerAddress,
		repayment:         cfg.RepaymentAddress,
		fallbackRelayer:   cfg.FallbackRelayer,
		fallbackThreshold: cfg.FallbackThreshold,
		minSpread:         minSpread,
		adapterOrder:      cfg.AdapterOrder,
		maxRetries:        cfg.MaxRetries,
		workers:           cfg.WorkerCount,
		rescanInterval:    cfg.RescanInterval,
		chains:            chains,
		circuitBreakers:   circuitBreakers,
		logger:            log,
		pendingJobs:       make(chan fillJob, 100),
		retryJobs:         make(chan retryJob, 100),
		seen: ttlcache.New[seenKey, struct{}](
			ttlcache.WithTTL[seenKey, struct{}](seenTTL),
		),
		now: time.Now,
	}, nil
}

// SetNow overrides the clock. Used by tests.
func (s *Service) SetNow(now func() time.Time) {
	s.now = now
}

// CircuitBreakers exposes the per-chain breakers for the health server.
func (s *Service) CircuitBreakers() map[uint64]*circuitbreaker.CircuitBreaker {
	return s.circuitBreakers
}

// Start runs the relayer until the context is cancelled, then drains
// in-flight jobs before returning.
func (s *Service) Start(ctx context.Context) {
	go s.seen.Start()

	s.logger.Notice("Starting %d worker goroutines", s.workers)
	for i := 0; i < s.workers; i++ {
		s.wg.Add(1)
		go s.worker(ctx, i)
	}

	go s.retryHandler(ctx)

	for chainID, client := range s.chains {
		go s.watchChain(ctx, chainID, client)
	}

	<-ctx.Done()
	s.logger.Notice("Context cancelled, shutting down relayer")
	s.wg.Wait()
	s.seen.Stop()
}

// RetryNotification re-dispatches the settlement proof for an intent this
// relayer already filled, via the chosen adapter. Operator escape hatch for
// a lost or stuck messenger delivery.
func (s *Service) RetryNotification(ctx context.Context, sourceChainID uint64, id types.IntentID, adapterID uint8) error {
	source, ok := s.chains[sourceChainID]
	if !ok {
		return errors.Errorf("unknown source chain %d", sourceChainID)
	}

	intent, err := source.GetIntent(ctx, id)
	if err != nil {
		return errors.Wrapf(err, "failed to load intent %s", id.Hex())
	}

	dest, ok := s.chains[intent.DestinationChainID]
	if !ok {
		return errors.Errorf("unknown destination chain %d", intent.DestinationChainID)
	}

	if err := dest.SubmitRetry(ctx, s.relayer, intent.Data(sourceChainID), adapterID); err != nil {
		return errors.Wrapf(err, "retry notification failed for intent %s", id.Hex())
	}

	metrics.NotifyRetries.WithLabelValues(chainLabel(intent.DestinationChainID), adapterLabel(adapterID)).Inc()
	s.logger.InfoWithChain(intent.DestinationChainID, "Re-dispatched proof for intent %s via adapter %d", id.Hex(), adapterID)
	return nil
}
