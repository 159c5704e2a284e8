package ledger

import (
	"context"
	"math/big"

	"github.com/pkg/errors"

	"github.com/rozo-hq/intent-relayer/pkg/types"
)

// Admin is the separately-authorized escape hatch for operational recovery.
// It is a distinct API on purpose: none of these transitions are reachable
// through Notify or Refund, and every call is gated on the owner address.
type Admin struct {
	ledger       *Ledger
	owner        types.Address
	feeRecipient types.Address
}

// Admin creates the administrative API for this ledger.
func (l *Ledger) Admin(owner, feeRecipient types.Address) *Admin {
	return &Admin{ledger: l, owner: owner, feeRecipient: feeRecipient}
}

func (a *Admin) authorize(caller types.Address) error {
	if !caller.Equal(a.owner) {
		return errors.Wrapf(ErrNotAuthorized, "caller %s is not the owner", caller.Hex())
	}
	return nil
}

// SetIntentStatus force-sets an intent's status. The only supported use is
// recovering a Failed intent back to Pending after off-chain investigation.
func (a *Admin) SetIntentStatus(caller types.Address, id types.IntentID, status types.IntentStatus) error {
	if err := a.authorize(caller); err != nil {
		return err
	}

	l := a.ledger
	l.mu.Lock()
	defer l.mu.Unlock()

	intent, ok := l.intents[id]
	if !ok {
		return errors.Wrapf(ErrIntentNotFound, "intent %s", id.Hex())
	}
	old := intent.Status
	intent.Status = status
	l.logger.NoticeWithChain(l.chainID, "Admin set intent %s status %s -> %s", id.Hex(), old, status)
	return nil
}

// SetIntentRelayer reassigns the relayer on a stored intent.
func (a *Admin) SetIntentRelayer(caller types.Address, id types.IntentID, relayer types.Address) error {
	if err := a.authorize(caller); err != nil {
		return err
	}

	l := a.ledger
	l.mu.Lock()
	defer l.mu.Unlock()

	intent, ok := l.intents[id]
	if !ok {
		return errors.Wrapf(ErrIntentNotFound, "intent %s", id.Hex())
	}
	intent.AssignedRelayer = relayer
	l.logger.NoticeWithChain(l.chainID, "Admin reassigned intent %s to relayer %s", id.Hex(), relayer.Hex())
	return nil
}

// ForceRefund refunds a non-terminal intent regardless of deadline.
func (a *Admin) ForceRefund(ctx context.Context, caller types.Address, id types.IntentID) error {
	if err := a.authorize(caller); err != nil {
		return err
	}

	l := a.ledger
	l.mu.Lock()
	defer l.mu.Unlock()

	intent, ok := l.intents[id]
	if !ok {
		return errors.Wrapf(ErrIntentNotFound, "intent %s", id.Hex())
	}
	if intent.Status.Terminal() {
		return errors.Wrapf(ErrInvalidStatus, "intent %s is %s", id.Hex(), intent.Status)
	}

	if err := l.vault.Transfer(ctx, intent.SourceToken, l.escrow, intent.RefundAddress, intent.SourceAmount); err != nil {
		return errors.Wrap(err, "failed to refund")
	}
	intent.Status = types.StatusRefunded
	l.logger.NoticeWithChain(l.chainID, "Admin force-refunded intent %s", id.Hex())
	return nil
}

// WithdrawFees transfers all accrued protocol fees for a token to the fee
// recipient.
func (a *Admin) WithdrawFees(ctx context.Context, caller types.Address, token types.Address) (*big.Int, error) {
	if err := a.authorize(caller); err != nil {
		return nil, err
	}

	l := a.ledger
	l.mu.Lock()
	defer l.mu.Unlock()

	acc, ok := l.accrued[token]
	if !ok || acc.Sign() <= 0 {
		return nil, errors.Wrap(ErrInvalidAmount, "no fees accrued")
	}

	amount := new(big.Int).Set(acc)
	if err := l.vault.Transfer(ctx, token, l.escrow, a.feeRecipient, amount); err != nil {
		return nil, errors.Wrap(err, "failed to withdraw fees")
	}
	acc.SetInt64(0)

	l.logger.NoticeWithChain(l.chainID, "Withdrew %s accrued fees for token %s", amount.String(), token.Hex())
	return amount, nil
}
