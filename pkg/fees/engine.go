// Package fees computes the protocol fee split applied when a filled
// intent's locked funds are released to the relayer.
package fees

import (
	"math/big"

	"github.com/pkg/errors"
)

// MaxFeeBps is the protocol cap on the fee rate.
const MaxFeeBps = 30

// ErrInvalidFee is returned when the configured fee exceeds the protocol cap.
var ErrInvalidFee = errors.New("fee exceeds protocol maximum")

var bpsDenominator = big.NewInt(10000)

// Engine splits a deposited amount into protocol fee and relayer payout.
// It is a pure calculator; bounds are validated once at construction.
type Engine struct {
	feeBps int64
}

// NewEngine creates a fee engine for the given rate in basis points.
func NewEngine(feeBps int64) (*Engine, error) {
	if feeBps < 0 || feeBps > MaxFeeBps {
		return nil, errors.Wrapf(ErrInvalidFee, "%d bps > %d bps", feeBps, MaxFeeBps)
	}
	return &Engine{feeBps: feeBps}, nil
}

// FeeBps returns the configured rate.
func (e *Engine) FeeBps() int64 {
	return e.feeBps
}

// ComputePayout splits sourceAmount into (fee, payout). The fee uses floor
// division, so fee + payout == sourceAmount exactly.
func (e *Engine) ComputePayout(sourceAmount *big.Int) (fee, payout *big.Int) {
	fee = new(big.Int).Mul(sourceAmount, big.NewInt(e.feeBps))
	fee.Div(fee, bpsDenominator)
	payout = new(big.Int).Sub(sourceAmount, fee)
	return fee, payout
}
