package relayer

import (
	"context"
	"math"
	"strconv"
	"time"

	"github.com/pkg/errors"

	"github.com/rozo-hq/intent-relayer/pkg/gate"
	"github.com/rozo-hq/intent-relayer/pkg/messenger"
	"github.com/rozo-hq/intent-relayer/pkg/metrics"
	"github.com/rozo-hq/intent-relayer/pkg/vault"
)

const (
	retryBaseDelay = 10 * time.Second
	maxRetryDelay  = 2 * time.Minute
)

// worker processes fill jobs from the job queue. It is registered in the
// WaitGroup at spawn, so Start's Wait only returns after every worker has
// finished its current job and observed the cancellation.
func (s *Service) worker(ctx context.Context, id int) {
	defer s.wg.Done()
	s.logger.Debug("Starting worker %d", id)
	for {
		select {
		case <-ctx.Done():
			s.logger.Debug("Worker %d shutting down", id)
			return
		case job, ok := <-s.pendingJobs:
			if !ok {
				s.logger.Debug("Worker %d shutting down: channel closed", id)
				return
			}
			s.processJob(ctx, id, job)
		}
	}
}

func (s *Service) processJob(ctx context.Context, workerID int, job fillJob) {
	destChainID := job.Intent.DestinationChainID
	destLabel := chainLabel(destChainID)

	// A job can sit in the queue or the retry backlog long enough for the
	// deadline to pass. Abandon instead of submitting a guaranteed bounce.
	if !s.now().Before(job.Intent.Deadline) {
		s.logger.InfoWithChain(destChainID, "Worker %d: intent %s past deadline, abandoning",
			workerID, job.Intent.ID.Hex())
		metrics.IntentsSkipped.WithLabelValues(destLabel, "expired").Inc()
		return
	}

	cb := s.circuitBreakers[destChainID]
	if cb != nil && cb.IsOpen() {
		s.logger.InfoWithChain(destChainID, "Worker %d: circuit breaker open, skipping intent %s",
			workerID, job.Intent.ID.Hex())
		metrics.IntentsSkipped.WithLabelValues(destLabel, "circuit_open").Inc()
		metrics.CircuitBreakerOpen.WithLabelValues(destLabel).Set(1)
		return
	}

	client, ok := s.chains[destChainID]
	if !ok {
		metrics.IntentsSkipped.WithLabelValues(destLabel, "unknown_destination").Inc()
		return
	}

	adapterID := s.adapterOrder[job.AdapterIndex%len(s.adapterOrder)]
	s.logger.InfoWithChain(destChainID, "Worker %d filling intent %s (source: %d, amount: %s, adapter: %d)",
		workerID, job.Intent.ID.Hex(), job.SourceChainID, job.Intent.DestinationAmount.String(), adapterID)

	startTime := time.Now()
	_, err := client.SubmitFill(ctx, s.relayer, job.Intent.Data(job.SourceChainID), s.repayment, adapterID)
	metrics.IntentProcessingTime.WithLabelValues(destLabel).Observe(time.Since(startTime).Seconds())

	if err == nil {
		s.logger.InfoWithChain(destChainID, "Worker %d filled intent %s", workerID, job.Intent.ID.Hex())
		metrics.IntentsFilled.WithLabelValues(destLabel).Inc()
		if cb != nil {
			cb.RecordSuccess()
			metrics.CircuitBreakerOpen.WithLabelValues(destLabel).Set(0)
		}
		return
	}

	shouldRetry, errorType := classifyError(err)
	s.logger.ErrorWithChain(destChainID, "Worker %d failed to fill intent %s: %v (type: %s, retry: %v)",
		workerID, job.Intent.ID.Hex(), err, errorType, shouldRetry)
	metrics.FillErrors.WithLabelValues(destLabel, errorType).Inc()

	// Someone else got there first; nothing to retry or repay.
	if errorType == "already_filled" {
		metrics.IntentsSkipped.WithLabelValues(destLabel, errorType).Inc()
		return
	}

	circuitTripped := false
	if cb != nil {
		circuitTripped = cb.RecordFailure()
		if circuitTripped {
			metrics.CircuitBreakerOpen.WithLabelValues(destLabel).Set(1)
		}
	}

	if !shouldRetry {
		metrics.PermanentErrors.WithLabelValues(destLabel, errorType).Inc()
		return
	}
	if circuitTripped {
		s.logger.ErrorWithChain(destChainID, "Skipping retry for intent %s: circuit breaker tripped", job.Intent.ID.Hex())
		return
	}
	if job.RetryCount >= s.maxRetries {
		s.logger.ErrorWithChain(destChainID, "Max retries reached for intent %s, giving up (error: %s)",
			job.Intent.ID.Hex(), errorType)
		metrics.MaxRetriesReached.WithLabelValues(destLabel, errorType).Inc()
		return
	}

	backoff := time.Duration(math.Pow(2, float64(job.RetryCount))) * retryBaseDelay
	if backoff > maxRetryDelay {
		backoff = maxRetryDelay
	}

	s.logger.InfoWithChain(destChainID, "Scheduling retry #%d for intent %s in %v",
		job.RetryCount+1, job.Intent.ID.Hex(), backoff)

	// Rotate to the next adapter so a dead messenger route does not pin the
	// intent forever.
	next := job
	next.RetryCount++
	next.AdapterIndex++

	s.retryJobs <- retryJob{
		Job:         next,
		NextAttempt: s.now().Add(backoff),
		ErrorType:   errorType,
	}
}

// classifyError determines whether a fill error is worth retrying.
// Returns (shouldRetry, errorType).
func classifyError(err error) (bool, string) {
	switch {
	case errors.Is(err, gate.ErrAlreadyFilled):
		return false, "already_filled"
	case errors.Is(err, gate.ErrIntentExpired):
		return false, "expired"
	case errors.Is(err, gate.ErrWrongChain):
		return false, "wrong_chain"
	case errors.Is(err, messenger.ErrUnknownAdapter):
		return false, "unknown_adapter"
	case errors.Is(err, vault.ErrInsufficientBalance):
		return false, "insufficient_funds"
	// The exclusivity window may open later.
	case errors.Is(err, gate.ErrNotAssignedRelayer):
		return true, "not_authorized"
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return true, "timeout"
	}
	return true, "unknown_error"
}

func chainLabel(chainID uint64) string {
	return strconv.FormatUint(chainID, 10)
}

func adapterLabel(adapterID uint8) string {
	return strconv.Itoa(int(adapterID))
}
