package relayer

import (
	"context"
	"sort"
	"time"

	"github.com/rozo-hq/intent-relayer/pkg/metrics"
	"github.com/rozo-hq/intent-relayer/pkg/types"
)

const (
	retryTickInterval = 10 * time.Second
	maxRetryQueueSize = 1000
	maxRetriesPerTick = 10
)

// retryHandler manages the retry queue
func (s *Service) retryHandler(ctx context.Context) {
	ticker := time.NewTicker(retryTickInterval)
	defer ticker.Stop()

	var queue []retryJob

	for {
		select {
		case <-ctx.Done():
			return
		case job := <-s.retryJobs:
			if len(queue) >= maxRetryQueueSize {
				s.logger.Error("Retry queue at capacity (%d jobs), dropping retry for intent %s",
					maxRetryQueueSize, job.Job.Intent.ID.Hex())
				metrics.DroppedRetries.WithLabelValues(chainLabel(job.Job.Intent.DestinationChainID)).Inc()
				continue
			}
			queue = append(queue, job)
			sort.Slice(queue, func(i, j int) bool {
				return queue[i].NextAttempt.Before(queue[j].NextAttempt)
			})
			metrics.RetryQueueSize.Set(float64(len(queue)))
		case <-ticker.C:
			now := s.now()
			var remaining []retryJob
			processed := 0

			for _, job := range queue {
				if !job.NextAttempt.Before(now) || processed >= maxRetriesPerTick {
					remaining = append(remaining, job)
					continue
				}

				// The intent may have been filled or refunded while parked.
				if !s.stillPending(ctx, job.Job.SourceChainID, job.Job.Intent.ID) {
					s.logger.Info("Intent %s no longer pending, dropping retry", job.Job.Intent.ID.Hex())
					metrics.IntentsSkipped.WithLabelValues(chainLabel(job.Job.SourceChainID), "not_pending").Inc()
					continue
				}

				s.logger.Info("Retrying intent %s (attempt #%d, error type: %s)",
					job.Job.Intent.ID.Hex(), job.Job.RetryCount, job.ErrorType)
				metrics.RetriesExecuted.WithLabelValues(chainLabel(job.Job.Intent.DestinationChainID), job.ErrorType).Inc()
				select {
				case s.pendingJobs <- job.Job:
				case <-ctx.Done():
					return
				}
				processed++
			}

			queue = remaining
			metrics.RetryQueueSize.Set(float64(len(queue)))
		}
	}
}

// stillPending re-checks the source ledger before burning a retry. A lookup
// failure counts as pending: better a wasted attempt than a dropped intent.
func (s *Service) stillPending(ctx context.Context, sourceChainID uint64, id types.IntentID) bool {
	client, ok := s.chains[sourceChainID]
	if !ok {
		return false
	}
	intent, err := client.GetIntent(ctx, id)
	if err != nil {
		return true
	}
	return intent.Status == types.StatusPending
}
