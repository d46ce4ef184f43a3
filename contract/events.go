package contract

import (
	"strconv"
	"strings"

	"commons_treasury/contract/dao"
)

func u64(v uint64) string { return strconv.FormatUint(v, 10) }

func joinIDs(ids []uint64) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = u64(id)
	}
	return strings.Join(parts, ",")
}

// emitDonationEvent writes the "dn" line indexers use to rebuild donor totals.
func (s *LedgerState) emitDonationEvent(amount, weight dao.Amount) {
	s.emit("dn", nil, map[string]string{
		"am": amount.String(),
		"w":  weight.String(),
	})
}

// emitAllocationEvent covers allocate and top up; kind is "al" or "tu".
func (s *LedgerState) emitAllocationEvent(kind string, splits []dao.Split) {
	ids := make([]uint64, len(splits))
	amounts := make([]string, len(splits))
	for i, sp := range splits {
		ids[i] = sp.ProjectID
		amounts[i] = sp.Amount.String()
	}
	s.emit(kind, map[string]string{"id": joinIDs(ids)}, map[string]string{"am": strings.Join(amounts, ",")})
}

func (s *LedgerState) emitReassignEvent(from, to uint64, amount dao.Amount) {
	s.emit("ra", map[string]string{
		"from": u64(from),
		"to":   u64(to),
	}, map[string]string{"am": amount.String()})
}

// emitPayoutEvent is keyed by the payout id so indexers can dedupe.
func (s *LedgerState) emitPayoutEvent(rec *dao.PayoutRecord) {
	s.emit("po", map[string]string{
		"pid": rec.ID,
		"id":  u64(rec.ProjectID),
		"to":  rec.To.String(),
	}, map[string]string{"am": rec.Amount.String()})
}

func (s *LedgerState) emitRefundEvent(projectID uint64, policy dao.RefundPolicy, amount dao.Amount) {
	s.emit("rf", map[string]string{
		"id": u64(projectID),
		"to": policy.String(),
	}, map[string]string{"am": amount.String()})
}

func (s *LedgerState) emitWithdrawEvent(amount dao.Amount) {
	s.emit("wd", nil, map[string]string{"am": amount.String()})
}

func (s *LedgerState) emitRefundPolicyEvent(policy dao.RefundPolicy) {
	s.emit("rp", map[string]string{"p": policy.String()}, nil)
}

func (s *LedgerState) emitProjectCreatedEvent(p *dao.Project) {
	s.emit("pc", map[string]string{
		"id":  u64(p.ID),
		"cat": p.Category,
		"s":   p.Status.String(),
	}, map[string]string{"target": p.Target.String()})
}

// emitProjectStatusEvent is written for every status flip, automatic or manual.
func (s *LedgerState) emitProjectStatusEvent(id uint64, from, to dao.ProjectStatus) {
	s.emit("ps", map[string]string{
		"id":   u64(id),
		"from": from.String(),
		"s":    to.String(),
	}, nil)
}

func (s *LedgerState) emitFundingEvent(id uint64, allocated, paidOut dao.Amount) {
	s.emit("pf", map[string]string{"id": u64(id)}, map[string]string{
		"alloc": allocated.String(),
		"paid":  paidOut.String(),
	})
}

func (s *LedgerState) emitPriorityEvent(id, priority uint64) {
	s.emit("pp", map[string]string{"id": u64(id), "p": u64(priority)}, nil)
}

func (s *LedgerState) emitCategoryLimitEvent(category string, limit uint64) {
	s.emit("cl", map[string]string{"cat": category, "l": u64(limit)}, nil)
}

func (s *LedgerState) emitRoundStartedEvent(rd *dao.Round) {
	s.emit("rs", map[string]string{
		"rid":    u64(rd.ID),
		"id":     joinIDs(rd.Projects),
		"m":      rd.Method.String(),
		"commit": strconv.FormatInt(rd.CommitDeadline, 10),
		"reveal": strconv.FormatInt(rd.RevealDeadline, 10),
	}, nil)
}

// emitCommitEvent carries the hash only; choices stay secret until reveal.
func (s *LedgerState) emitCommitEvent(roundID uint64, hash string) {
	s.emit("rc", map[string]string{"rid": u64(roundID), "h": hash}, nil)
}

func (s *LedgerState) emitRevealEvent(roundID uint64, weight dao.Amount) {
	s.emit("rv", map[string]string{"rid": u64(roundID)}, map[string]string{"w": weight.String()})
}

func (s *LedgerState) emitRoundFinalizedEvent(rd *dao.Round) {
	s.emit("rz", map[string]string{
		"rid":  u64(rd.ID),
		"rank": joinIDs(rd.Ranking),
		"t":    strconv.FormatUint(uint64(rd.TurnoutBps), 10),
	}, nil)
}

func (s *LedgerState) emitRoundCancelledEvent(rd *dao.Round, reason string) {
	s.emit("rx", map[string]string{
		"rid": u64(rd.ID),
		"t":   strconv.FormatUint(uint64(rd.TurnoutBps), 10),
		"why": reason,
	}, nil)
}

func (s *LedgerState) emitGateProposedEvent(tx *dao.MultisigTx) {
	ent := map[string]string{"tid": u64(tx.ID), "to": tx.To.String()}
	if tx.Payout != nil {
		ent["id"] = u64(tx.Payout.ProjectID)
		ent["pid"] = tx.Payout.PayoutID
	}
	s.emit("gp", ent, map[string]string{"am": tx.Value.String()})
}

// emitGateConfirmEvent covers confirm ("gc") and revoke ("gr").
func (s *LedgerState) emitGateConfirmEvent(kind string, txID uint64, confirmations uint32) {
	s.emit(kind, map[string]string{
		"tid": u64(txID),
		"n":   strconv.FormatUint(uint64(confirmations), 10),
	}, nil)
}

func (s *LedgerState) emitGateExecutedEvent(tx *dao.MultisigTx) {
	s.emit("ge", map[string]string{"tid": u64(tx.ID), "to": tx.To.String()}, map[string]string{"am": tx.Value.String()})
}

func (s *LedgerState) emitGateFundedEvent(amount, reserve dao.Amount) {
	s.emit("gf", nil, map[string]string{
		"am":  amount.String(),
		"bal": reserve.String(),
	})
}
