package contract

import (
	"strings"

	"commons_treasury/contract/dao"
	"commons_treasury/sdk"
)

// MultisigGate is an N-of-M approval step in front of irreversible transfers.
// Owners and the threshold come from Init and never change.
type MultisigGate struct {
	s      *LedgerState
	payout PayoutExecutor
}

func NewMultisigGate(s *LedgerState, payout PayoutExecutor) *MultisigGate {
	return &MultisigGate{s: s, payout: payout}
}

func (g *MultisigGate) requireOwner() (*Settings, error) {
	cfg, err := g.s.Settings()
	if err != nil {
		return nil, err
	}
	if !cfg.isOwner(g.s.Sender()) {
		return nil, fail(ErrNotOwner, "%s is not a multisig owner", g.s.Sender())
	}
	return cfg, nil
}

func (g *MultisigGate) Tx(id uint64) (*dao.MultisigTx, error) {
	ptr := g.s.kv.Get(multisigTxKey(id))
	if ptr == nil || *ptr == "" {
		return nil, fail(ErrTransactionNotFound, "transaction %d not found", id)
	}
	return dao.DecodeMultisigTx([]byte(*ptr))
}

func (g *MultisigGate) saveTx(tx *dao.MultisigTx) {
	g.s.kv.Set(multisigTxKey(tx.ID), string(dao.EncodeMultisigTx(tx)))
}

func (g *MultisigGate) Confirmed(txID uint64, owner sdk.Address) bool {
	ptr := g.s.kv.Get(confirmationKey(txID, owner.Canonical()))
	return ptr != nil && *ptr != ""
}

// Reserve is the gate's own balance inside the contract.
func (g *MultisigGate) Reserve() dao.Amount {
	return g.s.getAmount(GateReserve)
}

// -----------------------------------------------------------------------------
// Operations
// -----------------------------------------------------------------------------

// Propose queues a plain transfer out of the gate reserve.
// Example payload: gate.Propose("hive:vendor", dao.Ether(5))
func (g *MultisigGate) Propose(to sdk.Address, value dao.Amount) (*dao.MultisigTx, error) {
	return g.propose(to, value, nil)
}

// ProposePayout queues a ledger payout that runs with gate authority once confirmed.
func (g *MultisigGate) ProposePayout(to sdk.Address, value dao.Amount, projectID uint64, payoutID string) (*dao.MultisigTx, error) {
	payoutID = strings.TrimSpace(payoutID)
	if payoutID == "" {
		return nil, fail(ErrInvalidArgument, "payout id is required")
	}
	return g.propose(to, value, &dao.PayoutRef{ProjectID: projectID, PayoutID: payoutID})
}

func (g *MultisigGate) propose(to sdk.Address, value dao.Amount, ref *dao.PayoutRef) (*dao.MultisigTx, error) {
	if _, err := g.requireOwner(); err != nil {
		return nil, err
	}
	if value.IsZero() {
		return nil, ErrZeroAmount
	}
	if !to.IsValid() {
		return nil, fail(ErrInvalidArgument, "invalid recipient %q", to)
	}
	tx := &dao.MultisigTx{
		ID:        g.s.nextCount(MultisigCount),
		To:        to.Canonical(),
		Value:     value,
		Proposer:  g.s.Sender(),
		CreatedAt: g.s.Now(),
		Payout:    ref,
	}
	g.saveTx(tx)
	g.s.emitGateProposedEvent(tx)
	return tx, nil
}

// Confirm records the sender's approval; each owner counts once.
func (g *MultisigGate) Confirm(txID uint64) (*dao.MultisigTx, error) {
	if _, err := g.requireOwner(); err != nil {
		return nil, err
	}
	tx, err := g.Tx(txID)
	if err != nil {
		return nil, err
	}
	owner := g.s.Sender()
	if g.Confirmed(txID, owner) {
		return nil, fail(ErrAlreadyConfirmed, "%s already confirmed transaction %d", owner, txID)
	}
	if tx.Executed {
		return nil, fail(ErrAlreadyExecuted, "transaction %d already executed", txID)
	}
	g.s.kv.Set(confirmationKey(txID, owner), "1")
	tx.Confirmations++
	g.saveTx(tx)
	g.s.emitGateConfirmEvent("gc", txID, tx.Confirmations)
	return tx, nil
}

// Revoke withdraws the sender's confirmation before execution.
func (g *MultisigGate) Revoke(txID uint64) (*dao.MultisigTx, error) {
	if _, err := g.requireOwner(); err != nil {
		return nil, err
	}
	tx, err := g.Tx(txID)
	if err != nil {
		return nil, err
	}
	if tx.Executed {
		return nil, fail(ErrAlreadyExecuted, "transaction %d already executed", txID)
	}
	owner := g.s.Sender()
	if !g.Confirmed(txID, owner) {
		return nil, fail(ErrNotConfirmed, "%s has not confirmed transaction %d", owner, txID)
	}
	g.s.kv.Delete(confirmationKey(txID, owner))
	tx.Confirmations--
	g.saveTx(tx)
	g.s.emitGateConfirmEvent("gr", txID, tx.Confirmations)
	return tx, nil
}

// Execute marks the transaction executed, then moves the value. A failed transfer
// fails the call, so the host drops the executed flag too and the owners can retry.
func (g *MultisigGate) Execute(txID uint64) (*dao.MultisigTx, error) {
	cfg, err := g.requireOwner()
	if err != nil {
		return nil, err
	}
	tx, err := g.Tx(txID)
	if err != nil {
		return nil, err
	}
	if tx.Executed {
		return nil, fail(ErrAlreadyExecuted, "transaction %d already executed", txID)
	}
	if tx.Confirmations < cfg.Required {
		return nil, fail(ErrNotEnoughConfirmations, "transaction %d has %d of %d confirmations", txID, tx.Confirmations, cfg.Required)
	}
	tx.Executed = true
	g.saveTx(tx)

	if tx.Payout != nil {
		if _, err := g.payout.ExecutePayout(tx.To, tx.Payout.ProjectID, tx.Value, tx.Payout.PayoutID); err != nil {
			return nil, err
		}
	} else {
		reserve := g.Reserve()
		rest, err := reserve.Sub(tx.Value)
		if err != nil {
			return nil, fail(ErrInsufficientGateBalance, "gate holds %s, transaction %d needs %s", reserve, txID, tx.Value)
		}
		g.s.setAmount(GateReserve, rest)
		if err := g.s.host.Transfer(tx.To, tx.Value.Uint256()); err != nil {
			return nil, wrap(ErrTransferFailed, err)
		}
	}
	g.s.emitGateExecutedEvent(tx)
	return tx, nil
}

// Fund draws value from the sender into the gate reserve. Anyone may fund the gate.
func (g *MultisigGate) Fund(amount dao.Amount) (dao.Amount, error) {
	if _, err := g.s.Settings(); err != nil {
		return dao.Amount{}, err
	}
	if amount.IsZero() {
		return dao.Amount{}, ErrZeroAmount
	}
	reserve, err := g.Reserve().Add(amount)
	if err != nil {
		return dao.Amount{}, wrap(ErrAmountOverflow, err)
	}
	if err := g.s.host.Draw(amount.Uint256()); err != nil {
		return dao.Amount{}, wrap(ErrDrawFailed, err)
	}
	g.s.setAmount(GateReserve, reserve)
	g.s.emitGateFundedEvent(amount, reserve)
	return reserve, nil
}
