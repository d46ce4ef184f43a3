package contract

import (
	"commons_treasury/contract/dao"
	"commons_treasury/sdk"
)

// WeightSink is what the ledger tells about cumulative donations.
type WeightSink interface {
	UpdateWeight(account sdk.Address, totalDonated dao.Amount) (dao.Amount, error)
}

// WeightSource is what the ballot reads.
type WeightSource interface {
	WeightOf(account sdk.Address) dao.Amount
	Holders() uint64
}

// WeightRegistry maps accounts to non-transferable voting weight.
type WeightRegistry struct {
	s *LedgerState
}

func NewWeightRegistry(s *LedgerState) *WeightRegistry {
	return &WeightRegistry{s: s}
}

// Compute derives weight from a cumulative donation total:
// zero below the minimum donation, otherwise total / baseUnit capped at WeightCap (zero cap = no cap).
func (w *WeightRegistry) Compute(totalDonated dao.Amount) (dao.Amount, error) {
	cfg, err := w.s.Settings()
	if err != nil {
		return dao.Amount{}, err
	}
	if totalDonated.IsZero() || totalDonated.Lt(cfg.MinDonation) {
		return dao.Amount{}, nil
	}
	weight, err := totalDonated.Div(cfg.WeightBaseUnit)
	if err != nil {
		return dao.Amount{}, wrap(ErrInvalidArgument, err)
	}
	if !cfg.WeightCap.IsZero() {
		weight = dao.Min(weight, cfg.WeightCap)
	}
	return weight, nil
}

// UpdateWeight recomputes and stores the weight, keeping the holder count in step.
func (w *WeightRegistry) UpdateWeight(account sdk.Address, totalDonated dao.Amount) (dao.Amount, error) {
	next, err := w.Compute(totalDonated)
	if err != nil {
		return dao.Amount{}, err
	}
	prev := w.WeightOf(account)
	if prev.Eq(next) {
		return next, nil
	}
	switch {
	case prev.IsZero():
		w.s.setCount(HoldersCount, w.s.getCount(HoldersCount)+1)
	case next.IsZero():
		if n := w.s.getCount(HoldersCount); n > 0 {
			w.s.setCount(HoldersCount, n-1)
		}
	}
	w.s.setAmount(weightKey(account), next)
	w.s.emit("wt", map[string]string{"acct": account.String()}, map[string]string{"w": next.String()})
	return next, nil
}

func (w *WeightRegistry) WeightOf(account sdk.Address) dao.Amount {
	return w.s.getAmount(weightKey(account))
}

// Holders is the number of accounts with non-zero weight.
func (w *WeightRegistry) Holders() uint64 {
	return w.s.getCount(HoldersCount)
}
