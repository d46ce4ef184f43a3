package contract

import (
	"strings"

	"commons_treasury/contract/dao"
	"commons_treasury/sdk"
)

// PayoutExecutor is the ledger's payout path as seen by the multisig gate.
type PayoutExecutor interface {
	ExecutePayout(to sdk.Address, projectID uint64, amount dao.Amount, payoutID string) (*dao.PayoutRecord, error)
}

// AllocationLedger records donations and where they are earmarked.
// For every donor: unallocated + sum(allocations) == donated, after every call.
type AllocationLedger struct {
	s       *LedgerState
	funding FundingSink
	weights WeightSink
}

func NewAllocationLedger(s *LedgerState, funding FundingSink, weights WeightSink) *AllocationLedger {
	return &AllocationLedger{s: s, funding: funding, weights: weights}
}

// -----------------------------------------------------------------------------
// Storage
// -----------------------------------------------------------------------------

func (l *AllocationLedger) loadDonor(addr sdk.Address) (*dao.Donor, bool, error) {
	ptr := l.s.kv.Get(donorKey(addr))
	if ptr == nil || *ptr == "" {
		return &dao.Donor{Address: addr}, false, nil
	}
	d, err := dao.DecodeDonor([]byte(*ptr))
	if err != nil {
		return nil, false, err
	}
	return d, true, nil
}

func (l *AllocationLedger) saveDonor(d *dao.Donor) {
	l.s.kv.Set(donorKey(d.Address), string(dao.EncodeDonor(d)))
}

// appendReceipt writes the next receipt for the donor. Receipts are never rewritten.
func (l *AllocationLedger) appendReceipt(d *dao.Donor, kind dao.ReceiptKind, amount dao.Amount, splits []dao.Split) {
	d.ReceiptCount++
	rc := &dao.Receipt{
		Seq:       d.ReceiptCount,
		Donor:     d.Address,
		Kind:      kind,
		Amount:    amount,
		Timestamp: l.s.Now(),
		Splits:    splits,
		TxID:      l.s.env.TxID,
	}
	l.s.kv.Set(receiptKey(d.Address, rc.Seq), string(dao.EncodeReceipt(rc)))
}

func (l *AllocationLedger) Allocation(addr sdk.Address, projectID uint64) dao.Amount {
	return l.s.getAmount(allocationKey(projectID, addr.Canonical()))
}

func (l *AllocationLedger) setAllocation(addr sdk.Address, projectID uint64, a dao.Amount) {
	l.s.setAmount(allocationKey(projectID, addr), a)
}

// Donor returns the stored record or ErrDonorNotFound.
func (l *AllocationLedger) Donor(addr sdk.Address) (*dao.Donor, error) {
	d, ok, err := l.loadDonor(addr.Canonical())
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fail(ErrDonorNotFound, "no donor %s", addr)
	}
	return d, nil
}

// Receipts lists the donor's receipts oldest first.
func (l *AllocationLedger) Receipts(addr sdk.Address) ([]dao.Receipt, error) {
	d, err := l.Donor(addr)
	if err != nil {
		return nil, err
	}
	out := make([]dao.Receipt, 0, d.ReceiptCount)
	for seq := uint64(1); seq <= d.ReceiptCount; seq++ {
		ptr := l.s.kv.Get(receiptKey(d.Address, seq))
		if ptr == nil {
			continue
		}
		rc, err := dao.DecodeReceipt([]byte(*ptr))
		if err != nil {
			return nil, err
		}
		out = append(out, *rc)
	}
	return out, nil
}

// treasuryBalance is what payouts may spend: the contract balance minus the gate
// reserve and personal balances still owed to donors.
func (l *AllocationLedger) treasuryBalance() dao.Amount {
	bal := dao.AmountFromUint256(l.s.host.Balance(l.s.host.ContractID()))
	for _, key := range []string{GateReserve, PersonalSum} {
		next, err := bal.Sub(l.s.getAmount(key))
		if err != nil {
			return dao.Amount{}
		}
		bal = next
	}
	return bal
}

// allocatable rejects projects that can no longer take money.
func allocatable(p *dao.Project) error {
	switch p.Status {
	case dao.StatusCancelled:
		return fail(ErrProjectCancelled, "project %d is cancelled", p.ID)
	case dao.StatusPaid:
		return fail(ErrProjectAlreadyPaid, "project %d is paid", p.ID)
	case dao.StatusArchived:
		return fail(ErrProjectArchived, "project %d is archived", p.ID)
	}
	return nil
}

// -----------------------------------------------------------------------------
// Donations
// -----------------------------------------------------------------------------

// Donate draws amount from the sender and credits it as unallocated.
// Example payload: ledger.Donate(dao.Ether(10))
func (l *AllocationLedger) Donate(amount dao.Amount) (*dao.Donor, error) {
	if _, err := l.s.Settings(); err != nil {
		return nil, err
	}
	if amount.IsZero() {
		return nil, ErrZeroAmount
	}
	donor := l.s.Sender()
	d, _, err := l.loadDonor(donor)
	if err != nil {
		return nil, err
	}
	if d.TotalDonated, err = d.TotalDonated.Add(amount); err != nil {
		return nil, wrap(ErrAmountOverflow, err)
	}
	if d.TotalUnallocated, err = d.TotalUnallocated.Add(amount); err != nil {
		return nil, wrap(ErrAmountOverflow, err)
	}
	if err := l.s.host.Draw(amount.Uint256()); err != nil {
		return nil, wrap(ErrDrawFailed, err)
	}
	l.appendReceipt(d, dao.ReceiptDonation, amount, nil)
	l.saveDonor(d)
	weight, err := l.weights.UpdateWeight(donor, d.TotalDonated)
	if err != nil {
		return nil, err
	}
	l.s.emitDonationEvent(amount, weight)
	return d, nil
}

// SetRefundPolicy chooses where refunds from cancelled projects go.
func (l *AllocationLedger) SetRefundPolicy(policy dao.RefundPolicy) error {
	if _, err := l.s.Settings(); err != nil {
		return err
	}
	d, err := l.Donor(l.s.Sender())
	if err != nil {
		return err
	}
	d.RefundPolicy = policy
	l.saveDonor(d)
	l.s.emitRefundPolicyEvent(policy)
	return nil
}

// -----------------------------------------------------------------------------
// Allocations
// -----------------------------------------------------------------------------

// Allocate earmarks part of the sender's unallocated balance for one project.
func (l *AllocationLedger) Allocate(projectID uint64, amount dao.Amount) error {
	return l.allocate([]uint64{projectID}, []dao.Amount{amount}, dao.ReceiptAllocation)
}

// AllocateMultiple does several allocations in one call; all succeed or none do.
// Example payload: ledger.AllocateMultiple([]uint64{1, 2}, []dao.Amount{dao.Ether(3), dao.Ether(2)})
func (l *AllocationLedger) AllocateMultiple(ids []uint64, amounts []dao.Amount) error {
	return l.allocate(ids, amounts, dao.ReceiptAllocation)
}

// TopUp is Allocate for a project the sender already backs.
func (l *AllocationLedger) TopUp(projectID uint64, amount dao.Amount) error {
	if _, err := l.s.Settings(); err != nil {
		return err
	}
	if l.Allocation(l.s.Sender(), projectID).IsZero() {
		return fail(ErrNoExistingAllocation, "no allocation to project %d", projectID)
	}
	return l.allocate([]uint64{projectID}, []dao.Amount{amount}, dao.ReceiptTopUp)
}

func (l *AllocationLedger) allocate(ids []uint64, amounts []dao.Amount, kind dao.ReceiptKind) error {
	if _, err := l.s.Settings(); err != nil {
		return err
	}
	if len(ids) == 0 || len(ids) != len(amounts) {
		return fail(ErrInvalidArgument, "got %d project ids and %d amounts", len(ids), len(amounts))
	}
	seen := make(map[uint64]bool, len(ids))
	for i, id := range ids {
		if amounts[i].IsZero() {
			return ErrZeroAmount
		}
		if seen[id] {
			return fail(ErrInvalidArgument, "project %d listed twice", id)
		}
		seen[id] = true
	}
	total, err := dao.Sum(amounts...)
	if err != nil {
		return wrap(ErrAmountOverflow, err)
	}

	donor := l.s.Sender()
	d, _, err := l.loadDonor(donor)
	if err != nil {
		return err
	}
	if d.TotalUnallocated.Lt(total) {
		return fail(ErrInsufficientUnallocatedFunds, "unallocated %s, requested %s", d.TotalUnallocated, total)
	}

	splits := make([]dao.Split, len(ids))
	for i, id := range ids {
		p, err := l.funding.Project(id)
		if err != nil {
			return err
		}
		if err := allocatable(p); err != nil {
			return err
		}
		projectTotal, err := p.TotalAllocated.Add(amounts[i])
		if err != nil {
			return wrap(ErrAmountOverflow, err)
		}
		mine, err := l.Allocation(donor, id).Add(amounts[i])
		if err != nil {
			return wrap(ErrAmountOverflow, err)
		}
		if _, err := l.funding.UpdateFunding(id, projectTotal, p.TotalPaidOut); err != nil {
			return err
		}
		l.setAllocation(donor, id, mine)
		splits[i] = dao.Split{ProjectID: id, Amount: amounts[i]}
	}

	if d.TotalUnallocated, err = d.TotalUnallocated.Sub(total); err != nil {
		return wrap(ErrInsufficientUnallocatedFunds, err)
	}
	l.appendReceipt(d, kind, total, splits)
	l.saveDonor(d)
	eventKind := "al"
	if kind == dao.ReceiptTopUp {
		eventKind = "tu"
	}
	l.s.emitAllocationEvent(eventKind, splits)
	return nil
}

// Reassign moves part of an allocation between projects. Unallocated balance is untouched.
// Example payload: ledger.Reassign(1, 2, dao.Ether(2))
func (l *AllocationLedger) Reassign(from, to uint64, amount dao.Amount) error {
	if _, err := l.s.Settings(); err != nil {
		return err
	}
	if amount.IsZero() {
		return ErrZeroAmount
	}
	if from == to {
		return fail(ErrSameProject, "cannot reassign project %d to itself", from)
	}
	donor := l.s.Sender()
	held := l.Allocation(donor, from)
	if held.Lt(amount) {
		return fail(ErrInsufficientAllocation, "allocated %s to project %d, requested %s", held, from, amount)
	}
	src, err := l.funding.Project(from)
	if err != nil {
		return err
	}
	if src.Status == dao.StatusPaid {
		return fail(ErrProjectAlreadyPaid, "project %d is paid", from)
	}
	dst, err := l.funding.Project(to)
	if err != nil {
		return err
	}
	if err := allocatable(dst); err != nil {
		return err
	}

	srcTotal, err := src.TotalAllocated.Sub(amount)
	if err != nil {
		return wrap(ErrInsufficientProjectAllocation, err)
	}
	dstTotal, err := dst.TotalAllocated.Add(amount)
	if err != nil {
		return wrap(ErrAmountOverflow, err)
	}
	if _, err := l.funding.UpdateFunding(from, srcTotal, src.TotalPaidOut); err != nil {
		return err
	}
	if _, err := l.funding.UpdateFunding(to, dstTotal, dst.TotalPaidOut); err != nil {
		return err
	}
	rest, _ := held.Sub(amount)
	mine, err := l.Allocation(donor, to).Add(amount)
	if err != nil {
		return wrap(ErrAmountOverflow, err)
	}
	l.setAllocation(donor, from, rest)
	l.setAllocation(donor, to, mine)
	l.s.emitReassignEvent(from, to, amount)
	return nil
}

// -----------------------------------------------------------------------------
// Payouts and refunds
// -----------------------------------------------------------------------------

// Payout sends project funds to a recipient. Admin only; the gate uses ExecutePayout.
// Example payload: ledger.Payout("hive:builder", 1, dao.Ether(4), "invoice-7")
func (l *AllocationLedger) Payout(to sdk.Address, projectID uint64, amount dao.Amount, payoutID string) (*dao.PayoutRecord, error) {
	if err := l.s.requireAdmin(); err != nil {
		return nil, err
	}
	return l.ExecutePayout(to, projectID, amount, payoutID)
}

// ExecutePayout runs the payout without the admin check. The caller is responsible for authority.
func (l *AllocationLedger) ExecutePayout(to sdk.Address, projectID uint64, amount dao.Amount, payoutID string) (*dao.PayoutRecord, error) {
	if _, err := l.s.Settings(); err != nil {
		return nil, err
	}
	if amount.IsZero() {
		return nil, ErrZeroAmount
	}
	payoutID = strings.TrimSpace(payoutID)
	if payoutID == "" {
		return nil, fail(ErrInvalidArgument, "payout id is required")
	}
	if !to.IsValid() {
		return nil, fail(ErrInvalidArgument, "invalid recipient %q", to)
	}
	if ptr := l.s.kv.Get(payoutKey(payoutID)); ptr != nil {
		return nil, fail(ErrDuplicatePayout, "payout %q already executed", payoutID)
	}
	p, err := l.funding.Project(projectID)
	if err != nil {
		return nil, err
	}
	switch p.Status {
	case dao.StatusReadyToPayout:
	case dao.StatusPaid:
		return nil, fail(ErrProjectAlreadyPaid, "project %d is paid", projectID)
	case dao.StatusCancelled:
		return nil, fail(ErrProjectCancelled, "project %d is cancelled", projectID)
	default:
		return nil, fail(ErrProjectNotReady, "project %d is %s", projectID, p.Status)
	}
	if remaining := p.Remaining(); remaining.Lt(amount) {
		return nil, fail(ErrInsufficientProjectAllocation, "project %d has %s left, requested %s", projectID, remaining, amount)
	}
	if bal := l.treasuryBalance(); bal.Lt(amount) {
		return nil, fail(ErrInsufficientTreasuryBalance, "treasury holds %s, requested %s", bal, amount)
	}
	paid, err := p.TotalPaidOut.Add(amount)
	if err != nil {
		return nil, wrap(ErrAmountOverflow, err)
	}
	if _, err := l.funding.UpdateFunding(projectID, p.TotalAllocated, paid); err != nil {
		return nil, err
	}
	rec := &dao.PayoutRecord{
		ID:        payoutID,
		ProjectID: projectID,
		To:        to.Canonical(),
		Amount:    amount,
		Timestamp: l.s.Now(),
		TxID:      l.s.env.TxID,
	}
	l.s.kv.Set(payoutKey(payoutID), string(dao.EncodePayoutRecord(rec)))
	if err := l.s.host.Transfer(rec.To, amount.Uint256()); err != nil {
		return nil, wrap(ErrTransferFailed, err)
	}
	l.s.emitPayoutEvent(rec)
	return rec, nil
}

// PayoutRecord looks up a spent payout id.
func (l *AllocationLedger) PayoutRecord(payoutID string) (*dao.PayoutRecord, bool, error) {
	ptr := l.s.kv.Get(payoutKey(payoutID))
	if ptr == nil {
		return nil, false, nil
	}
	rec, err := dao.DecodePayoutRecord([]byte(*ptr))
	if err != nil {
		return nil, false, err
	}
	return rec, true, nil
}

// RefundCancelledProject returns the sender's allocation to a cancelled project.
// ToPersonalBalance moves it out of the donated total into a withdrawable balance and
// re-derives weight; ToGeneralTreasury puts it back to unallocated.
func (l *AllocationLedger) RefundCancelledProject(projectID uint64) (dao.Amount, error) {
	if _, err := l.s.Settings(); err != nil {
		return dao.Amount{}, err
	}
	p, err := l.funding.Project(projectID)
	if err != nil {
		return dao.Amount{}, err
	}
	if p.Status != dao.StatusCancelled {
		return dao.Amount{}, fail(ErrProjectNotCancelled, "project %d is %s", projectID, p.Status)
	}
	donor := l.s.Sender()
	held := l.Allocation(donor, projectID)
	if held.IsZero() {
		return dao.Amount{}, fail(ErrNoAllocation, "no allocation to project %d", projectID)
	}
	d, _, err := l.loadDonor(donor)
	if err != nil {
		return dao.Amount{}, err
	}
	projectTotal, err := p.TotalAllocated.Sub(held)
	if err != nil {
		return dao.Amount{}, wrap(ErrInsufficientProjectAllocation, err)
	}
	if _, err := l.funding.UpdateFunding(projectID, projectTotal, p.TotalPaidOut); err != nil {
		return dao.Amount{}, err
	}
	l.setAllocation(donor, projectID, dao.Amount{})

	switch d.RefundPolicy {
	case dao.RefundToGeneralTreasury:
		if d.TotalUnallocated, err = d.TotalUnallocated.Add(held); err != nil {
			return dao.Amount{}, wrap(ErrAmountOverflow, err)
		}
		l.saveDonor(d)
	default:
		if d.TotalDonated, err = d.TotalDonated.Sub(held); err != nil {
			return dao.Amount{}, wrap(ErrInsufficientAllocation, err)
		}
		if d.PersonalBalance, err = d.PersonalBalance.Add(held); err != nil {
			return dao.Amount{}, wrap(ErrAmountOverflow, err)
		}
		owed, err := l.s.getAmount(PersonalSum).Add(held)
		if err != nil {
			return dao.Amount{}, wrap(ErrAmountOverflow, err)
		}
		l.s.setAmount(PersonalSum, owed)
		l.saveDonor(d)
		if _, err := l.weights.UpdateWeight(donor, d.TotalDonated); err != nil {
			return dao.Amount{}, err
		}
	}
	l.s.emitRefundEvent(projectID, d.RefundPolicy, held)
	return held, nil
}

// WithdrawPersonalBalance pays out the sender's whole personal balance.
func (l *AllocationLedger) WithdrawPersonalBalance() (dao.Amount, error) {
	if _, err := l.s.Settings(); err != nil {
		return dao.Amount{}, err
	}
	donor := l.s.Sender()
	d, _, err := l.loadDonor(donor)
	if err != nil {
		return dao.Amount{}, err
	}
	amount := d.PersonalBalance
	if amount.IsZero() {
		return dao.Amount{}, ErrNoBalance
	}
	d.PersonalBalance = dao.Amount{}
	owed, err := l.s.getAmount(PersonalSum).Sub(amount)
	if err != nil {
		return dao.Amount{}, wrap(ErrNoBalance, err)
	}
	l.s.setAmount(PersonalSum, owed)
	l.saveDonor(d)
	if err := l.s.host.Transfer(donor, amount.Uint256()); err != nil {
		return dao.Amount{}, wrap(ErrTransferFailed, err)
	}
	l.s.emitWithdrawEvent(amount)
	return amount, nil
}
