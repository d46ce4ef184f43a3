package contract

import "commons_treasury/contract/dao"

// Totals are a project's funding figures after an update.
type Totals struct {
	Allocated dao.Amount
	PaidOut   dao.Amount
}

// Caps are the thresholds a project was created with.
type Caps struct {
	Target         dao.Amount
	SoftCap        dao.Amount
	HardCap        dao.Amount
	SoftCapEnabled bool
}

func capsOf(p *dao.Project) Caps {
	return Caps{Target: p.Target, SoftCap: p.SoftCap, HardCap: p.HardCap, SoftCapEnabled: p.SoftCapEnabled}
}

func totalsOf(p *dao.Project) Totals {
	return Totals{Allocated: p.TotalAllocated, PaidOut: p.TotalPaidOut}
}

// NextStatus is the automatic part of the project state machine. It only moves
// forward: terminal statuses come back unchanged and Voting waits for the ballot.
func NextStatus(current dao.ProjectStatus, totals Totals, caps Caps) dao.ProjectStatus {
	next := current
	for {
		step := autoStep(next, totals, caps)
		if step == next {
			return next
		}
		next = step
	}
}

func autoStep(st dao.ProjectStatus, totals Totals, caps Caps) dao.ProjectStatus {
	switch st {
	case dao.StatusDraft:
		return dao.StatusActive
	case dao.StatusActive:
		if !caps.Target.IsZero() && totals.Allocated.Gte(caps.Target) {
			return dao.StatusReadyToPayout
		}
		if caps.SoftCapEnabled && totals.Allocated.Gte(caps.SoftCap) {
			return dao.StatusFundingReady
		}
	case dao.StatusFundingReady:
		if !caps.Target.IsZero() && totals.Allocated.Gte(caps.Target) {
			return dao.StatusReadyToPayout
		}
	case dao.StatusReadyToPayout:
		if !totals.Allocated.IsZero() && totals.PaidOut.Gte(totals.Allocated) {
			return dao.StatusPaid
		}
	}
	return st
}
