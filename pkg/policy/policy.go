// Package policy decides which relayer may fill an intent at a given time.
package policy

import (
	"time"

	"github.com/rozo-hq/intent-relayer/pkg/types"
)

// FallbackPolicy authorizes fills. An off-chain auction assigns a specific
// relayer for best pricing; the fallback relayer is a backstop that may step
// in once the assigned relayer's grace window has elapsed, so a single
// relayer's unavailability can never strand funds before the deadline.
type FallbackPolicy struct {
	FallbackRelayer   types.Address
	FallbackThreshold time.Duration
}

// Authorized reports whether caller may fill an intent with the given
// assignment at time now. An open (zero) assignment admits any caller.
func (p FallbackPolicy) Authorized(caller, assigned types.Address, createdAt, now time.Time) bool {
	if assigned.IsZero() {
		return true
	}
	if caller.Equal(assigned) {
		return true
	}
	if !p.FallbackRelayer.IsZero() && caller.Equal(p.FallbackRelayer) {
		return !now.Before(createdAt.Add(p.FallbackThreshold))
	}
	return false
}
