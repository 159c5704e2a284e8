package relayer

import (
	"context"
	"math/big"
	"time"

	"github.com/jellydator/ttlcache/v3"

	"github.com/rozo-hq/intent-relayer/pkg/chainclient"
	"github.com/rozo-hq/intent-relayer/pkg/metrics"
	"github.com/rozo-hq/intent-relayer/pkg/types"
)

// watchChain feeds the worker pool from two sources: the chain's
// intent-created event stream and a periodic rescan of pending intents.
// The rescan recovers intents whose events were missed and re-surfaces
// intents that became fillable later, like an opened fallback window.
func (s *Service) watchChain(ctx context.Context, chainID uint64, client chainclient.Client) {
	events, err := client.SubscribeIntentCreated(ctx)
	if err != nil {
		s.logger.ErrorWithChain(chainID, "Failed to subscribe to intent events: %v (rescan only)", err)
		events = nil
	}

	ticker := time.NewTicker(s.rescanInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.DebugWithChain(chainID, "Chain watcher shutting down")
			return
		case ev, ok := <-events:
			if !ok {
				s.logger.ErrorWithChain(chainID, "Intent event stream closed, falling back to rescan")
				events = nil
				continue
			}
			s.enqueue(ctx, ev.SourceChainID, ev.Intent)
		case <-ticker.C:
			pending, err := client.PendingIntents(ctx)
			if err != nil {
				s.logger.ErrorWithChain(chainID, "Failed to rescan pending intents: %v", err)
				continue
			}
			metrics.RescansExecuted.WithLabelValues(chainLabel(chainID)).Inc()
			metrics.PendingIntents.Set(float64(len(pending)))
			for _, intent := range pending {
				s.enqueue(ctx, chainID, intent)
			}
		}
	}
}

// enqueue applies the viability checks and hands the intent to the worker
// pool. The dedup cache keeps event and rescan pickup from double-filling;
// an entry is only written once the job is actually queued, so an intent
// skipped today can still be picked up by a later rescan.
func (s *Service) enqueue(ctx context.Context, sourceChainID uint64, intent *types.Intent) {
	if intent == nil || intent.Status != types.StatusPending {
		return
	}

	key := seenKey{chainID: sourceChainID, id: intent.ID}
	if s.seen.Has(key) {
		return
	}

	if reason, ok := s.viable(sourceChainID, intent); !ok {
		if reason != "" {
			s.logger.DebugWithChain(sourceChainID, "Skipping intent %s: %s", intent.ID.Hex(), reason)
			metrics.IntentsSkipped.WithLabelValues(chainLabel(sourceChainID), reason).Inc()
		}
		return
	}

	s.seen.Set(key, struct{}{}, ttlcache.DefaultTTL)
	select {
	case s.pendingJobs <- fillJob{SourceChainID: sourceChainID, Intent: intent}:
	case <-ctx.Done():
	}
}

// viable decides whether this relayer should attempt the fill. A "" reason
// means the intent may become viable later and should not be counted as
// skipped.
func (s *Service) viable(sourceChainID uint64, intent *types.Intent) (string, bool) {
	if intent.DestinationChainID == sourceChainID {
		return "same_chain", false
	}
	if _, ok := s.chains[intent.DestinationChainID]; !ok {
		return "unknown_destination", false
	}

	now := s.now()
	if !now.Before(intent.Deadline) {
		return "expired", false
	}

	if !intent.AssignedRelayer.IsZero() && !intent.AssignedRelayer.Equal(s.relayer) {
		if !s.relayer.Equal(s.fallbackRelayer) {
			return "assigned_elsewhere", false
		}
		// We are the fallback: wait out the exclusivity window.
		if now.Before(intent.CreatedAt.Add(s.fallbackThreshold)) {
			return "", false
		}
	}

	if intent.SourceAmount == nil || intent.DestinationAmount == nil {
		return "invalid_amounts", false
	}
	spread := new(big.Int).Sub(intent.SourceAmount, intent.DestinationAmount)
	if spread.Cmp(s.minSpread) < 0 {
		return "unprofitable", false
	}

	return "", true
}
