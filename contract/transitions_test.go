package contract_test

import (
	"testing"

	"commons_treasury/contract"
	"commons_treasury/contract/dao"

	"github.com/stretchr/testify/assert"
)

func TestNextStatus(t *testing.T) {
	caps := contract.Caps{Target: eth(10), SoftCap: eth(5), SoftCapEnabled: true}
	noSoft := contract.Caps{Target: eth(10)}
	alloc := func(a, p uint64) contract.Totals {
		return contract.Totals{Allocated: eth(a), PaidOut: eth(p)}
	}

	tests := []struct {
		name    string
		current dao.ProjectStatus
		totals  contract.Totals
		caps    contract.Caps
		want    dao.ProjectStatus
	}{
		{"draft activates", dao.StatusDraft, alloc(0, 0), caps, dao.StatusActive},
		{"active below soft cap", dao.StatusActive, alloc(4, 0), caps, dao.StatusActive},
		{"soft cap reached", dao.StatusActive, alloc(5, 0), caps, dao.StatusFundingReady},
		{"soft cap disabled", dao.StatusActive, alloc(5, 0), noSoft, dao.StatusActive},
		{"target skips funding ready", dao.StatusActive, alloc(10, 0), caps, dao.StatusReadyToPayout},
		{"funding ready to payout", dao.StatusFundingReady, alloc(12, 0), caps, dao.StatusReadyToPayout},
		{"voting waits for the ballot", dao.StatusVoting, alloc(10, 0), caps, dao.StatusVoting},
		{"partially paid", dao.StatusReadyToPayout, alloc(10, 4), caps, dao.StatusReadyToPayout},
		{"fully paid", dao.StatusReadyToPayout, alloc(10, 10), caps, dao.StatusPaid},
		{"draft all the way", dao.StatusDraft, alloc(10, 10), caps, dao.StatusPaid},
		{"cancelled stays", dao.StatusCancelled, alloc(10, 0), caps, dao.StatusCancelled},
		{"archived stays", dao.StatusArchived, alloc(10, 0), caps, dao.StatusArchived},
		{"never regresses", dao.StatusFundingReady, alloc(0, 0), caps, dao.StatusFundingReady},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := contract.NextStatus(tt.current, tt.totals, tt.caps)
			assert.Equal(t, tt.want, got)
			assert.GreaterOrEqual(t, got.Rank(), tt.current.Rank())
		})
	}
}

func TestParseProjectStatus(t *testing.T) {
	st, ok := dao.ParseProjectStatus("ready_to_payout")
	assert.True(t, ok)
	assert.Equal(t, dao.StatusReadyToPayout, st)

	st, ok = dao.ParseProjectStatus("6")
	assert.True(t, ok)
	assert.Equal(t, dao.StatusCancelled, st)

	_, ok = dao.ParseProjectStatus("done")
	assert.False(t, ok)
}
