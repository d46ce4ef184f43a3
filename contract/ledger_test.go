package contract_test

import (
	"errors"
	"fmt"
	"testing"

	"commons_treasury/contract"
	"commons_treasury/contract/dao"
	"commons_treasury/sdk"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Donation Tests
// =============================================================================

// TestDonateCreditsUnallocated checks the donate flow so we dont break it again.
func TestDonateCreditsUnallocated(t *testing.T) {
	host := SetupContractTest(t)
	donate(t, host, "hive:someone", "10eth")

	d := getDonor(t, host, "hive:someone")
	requireAmount(t, eth(10), d.TotalDonated)
	requireAmount(t, eth(10), d.TotalUnallocated)
	assert.Equal(t, uint64(1), d.ReceiptCount)
	requireAmount(t, eth(10), dao.AmountFromUint256(host.BalanceOf(contractID)))
	requireAmount(t, eth(990), dao.AmountFromUint256(host.BalanceOf("hive:someone")))

	var weight dao.Amount
	readOnly(t, host, func(c *contract.Contract) { weight = c.Weights.WeightOf("hive:someone") })
	requireAmount(t, dao.NewAmount(10), weight)
}

// TestDonateZeroAmount makes sure zero donations are rejected as validation errors.
func TestDonateZeroAmount(t *testing.T) {
	host := SetupContractTest(t)
	res := CallContract(t, host, "donate", "0", transferIntent("1eth"), "hive:someone", false)
	requireCode(t, res, contract.ErrZeroAmount)
	assert.Equal(t, contract.KindValidation, contract.KindOf(res.Err))
}

// TestDonateNeedsAllowance checks the transfer.allow intent bounds the draw.
func TestDonateNeedsAllowance(t *testing.T) {
	host := SetupContractTest(t)
	res := CallContract(t, host, "donate", "5eth", nil, "hive:someone", false)
	requireCode(t, res, contract.ErrDrawFailed)
	assert.ErrorIs(t, res.Err, sdk.ErrAllowanceExceeded)

	res = CallContract(t, host, "donate", "5eth", transferIntent("4eth"), "hive:someone", false)
	requireCode(t, res, contract.ErrDrawFailed)
	requireAmount(t, eth(1000), dao.AmountFromUint256(host.BalanceOf("hive:someone")))
}

// TestDonateBeforeInit keeps every operation locked until init ran.
func TestDonateBeforeInit(t *testing.T) {
	host := sdk.NewMemoryHost(contractID)
	host.Deposit("hive:someone", eth(5).Uint256())
	res := CallContract(t, host, "donate", "1eth", transferIntent("1eth"), "hive:someone", false)
	requireCode(t, res, contract.ErrNotInitialized)
}

// TestInitTwice checks init is one-shot.
func TestInitTwice(t *testing.T) {
	host := SetupContractTest(t)
	res := CallContract(t, host, "init", "hive:owner1|1", nil, adminAddress, false)
	requireCode(t, res, contract.ErrAlreadyInitialized)
}

// =============================================================================
// Allocation Tests
// =============================================================================

// TestScenarioAllocateTransitions walks a project from Active to ReadyToPayout through allocations.
func TestScenarioAllocateTransitions(t *testing.T) {
	host := SetupContractTest(t)
	createProject(t, host, 1, "water", "10eth", "5eth", "")
	donate(t, host, "hive:someone", "10eth")

	assert.Equal(t, dao.StatusActive, getProject(t, host, 1).Status)

	CallContract(t, host, "allocate", "1|6eth", nil, "hive:someone", true)
	p := getProject(t, host, 1)
	assert.Equal(t, dao.StatusFundingReady, p.Status)
	requireAmount(t, eth(6), p.TotalAllocated)

	CallContract(t, host, "allocate", "1|4eth", nil, "hive:someone", true)
	p = getProject(t, host, 1)
	assert.Equal(t, dao.StatusReadyToPayout, p.Status)
	requireAmount(t, eth(10), p.TotalAllocated)

	requireAmount(t, dao.Amount{}, getDonor(t, host, "hive:someone").TotalUnallocated)
	requireConservation(t, host, []string{"hive:someone"}, []uint64{1})
}

// TestAllocateInsufficientUnallocated checks donors cannot earmark more than they gave.
func TestAllocateInsufficientUnallocated(t *testing.T) {
	host := SetupContractTest(t)
	createProject(t, host, 1, "", "10eth", "", "")
	donate(t, host, "hive:someone", "2eth")

	res := CallContract(t, host, "allocate", "1|3eth", nil, "hive:someone", false)
	requireCode(t, res, contract.ErrInsufficientUnallocatedFunds)
	assert.Equal(t, contract.KindInsufficientFunds, contract.KindOf(res.Err))

	res = CallContract(t, host, "allocate", "1|1eth", nil, "hive:outsider", false)
	requireCode(t, res, contract.ErrInsufficientUnallocatedFunds)
}

// TestAllocateToTerminalProjects checks cancelled and unknown projects are refused.
func TestAllocateToTerminalProjects(t *testing.T) {
	host := SetupContractTest(t)
	createProject(t, host, 1, "", "10eth", "", "")
	donate(t, host, "hive:someone", "5eth")
	CallContract(t, host, "project_status", "1|cancelled", nil, adminAddress, true)

	res := CallContract(t, host, "allocate", "1|1eth", nil, "hive:someone", false)
	requireCode(t, res, contract.ErrProjectCancelled)

	res = CallContract(t, host, "allocate", "42|1eth", nil, "hive:someone", false)
	requireCode(t, res, contract.ErrProjectNotFound)
	assert.Equal(t, contract.KindNotFound, contract.KindOf(res.Err))
}

// TestAllocateMultipleIsAtomic makes sure one bad leg rolls back the whole batch.
func TestAllocateMultipleIsAtomic(t *testing.T) {
	host := SetupContractTest(t)
	createProject(t, host, 1, "", "10eth", "", "")
	createProject(t, host, 2, "", "10eth", "", "")
	createProject(t, host, 3, "", "10eth", "", "")
	CallContract(t, host, "project_status", "3|cancelled", nil, adminAddress, true)
	donate(t, host, "hive:someone", "6eth")

	res := CallContract(t, host, "allocate_multiple", "1,2,3|1eth,1eth,1eth", nil, "hive:someone", false)
	requireCode(t, res, contract.ErrProjectCancelled)
	requireAmount(t, dao.Amount{}, getProject(t, host, 1).TotalAllocated)
	requireAmount(t, eth(6), getDonor(t, host, "hive:someone").TotalUnallocated)

	CallContract(t, host, "allocate_multiple", "1,2|2eth,3eth", nil, "hive:someone", true)
	requireAmount(t, eth(2), allocationOf(t, host, "hive:someone", 1))
	requireAmount(t, eth(3), allocationOf(t, host, "hive:someone", 2))
	requireAmount(t, eth(1), getDonor(t, host, "hive:someone").TotalUnallocated)

	res = CallContract(t, host, "allocate_multiple", "1,2|1eth", nil, "hive:someone", false)
	requireCode(t, res, contract.ErrInvalidArgument)
	requireConservation(t, host, []string{"hive:someone"}, []uint64{1, 2, 3})
}

// TestTopUpNeedsExistingAllocation checks top_up only works on projects the donor already backs.
func TestTopUpNeedsExistingAllocation(t *testing.T) {
	host := SetupContractTest(t)
	createProject(t, host, 1, "", "10eth", "", "")
	donate(t, host, "hive:someone", "5eth")

	res := CallContract(t, host, "top_up", "1|1eth", nil, "hive:someone", false)
	requireCode(t, res, contract.ErrNoExistingAllocation)

	CallContract(t, host, "allocate", "1|1eth", nil, "hive:someone", true)
	CallContract(t, host, "top_up", "1|2eth", nil, "hive:someone", true)
	requireAmount(t, eth(3), allocationOf(t, host, "hive:someone", 1))

	var receipts []dao.Receipt
	readOnly(t, host, func(c *contract.Contract) {
		var err error
		receipts, err = c.Ledger.Receipts("hive:someone")
		require.NoError(t, err)
	})
	require.Len(t, receipts, 3)
	assert.Equal(t, dao.ReceiptDonation, receipts[0].Kind)
	assert.Equal(t, dao.ReceiptAllocation, receipts[1].Kind)
	assert.Equal(t, dao.ReceiptTopUp, receipts[2].Kind)
	assert.Equal(t, []dao.Split{{ProjectID: 1, Amount: eth(2)}}, receipts[2].Splits)
}

// =============================================================================
// Reassign Tests
// =============================================================================

// TestScenarioReassign moves part of an allocation between two projects.
func TestScenarioReassign(t *testing.T) {
	host := SetupContractTest(t)
	createProject(t, host, 1, "", "10eth", "", "")
	createProject(t, host, 2, "", "10eth", "", "")
	donate(t, host, "hive:someone", "3eth")
	CallContract(t, host, "allocate", "1|3eth", nil, "hive:someone", true)

	CallContract(t, host, "reassign", "1|2|2eth", nil, "hive:someone", true)
	requireAmount(t, eth(1), allocationOf(t, host, "hive:someone", 1))
	requireAmount(t, eth(2), allocationOf(t, host, "hive:someone", 2))
	requireAmount(t, eth(1), getProject(t, host, 1).TotalAllocated)
	requireAmount(t, eth(2), getProject(t, host, 2).TotalAllocated)
	requireAmount(t, dao.Amount{}, getDonor(t, host, "hive:someone").TotalUnallocated)
	requireConservation(t, host, []string{"hive:someone"}, []uint64{1, 2})
}

// TestReassignValidation covers the reassign error paths.
func TestReassignValidation(t *testing.T) {
	host := SetupContractTest(t)
	createProject(t, host, 1, "", "10eth", "", "")
	createProject(t, host, 2, "", "10eth", "", "")
	createProject(t, host, 3, "", "10eth", "", "")
	donate(t, host, "hive:someone", "3eth")
	CallContract(t, host, "allocate", "1|3eth", nil, "hive:someone", true)
	CallContract(t, host, "project_status", "3|cancelled", nil, adminAddress, true)

	requireCode(t, CallContract(t, host, "reassign", "1|2|4eth", nil, "hive:someone", false), contract.ErrInsufficientAllocation)
	requireCode(t, CallContract(t, host, "reassign", "1|1|1eth", nil, "hive:someone", false), contract.ErrSameProject)
	requireCode(t, CallContract(t, host, "reassign", "1|3|1eth", nil, "hive:someone", false), contract.ErrProjectCancelled)
	requireCode(t, CallContract(t, host, "reassign", "1|2|0", nil, "hive:someone", false), contract.ErrZeroAmount)
	requireAmount(t, eth(3), allocationOf(t, host, "hive:someone", 1))
}

// =============================================================================
// Payout Tests
// =============================================================================

// readyProject creates project 1 with target 10 and fully funds it from hive:someone.
func readyProject(t *testing.T, host *sdk.MemoryHost) {
	t.Helper()
	createProject(t, host, 1, "", "10eth", "", "")
	donate(t, host, "hive:someone", "10eth")
	CallContract(t, host, "allocate", "1|10eth", nil, "hive:someone", true)
	require.Equal(t, dao.StatusReadyToPayout, getProject(t, host, 1).Status)
}

// TestPayoutFlow checks the payout flow so we dont break it again.
func TestPayoutFlow(t *testing.T) {
	host := SetupContractTest(t)
	readyProject(t, host)

	res := CallContract(t, host, "payout", "hive:builder|1|4eth|inv-1", nil, adminAddress, true)
	assert.Equal(t, "inv-1", res.Ret)
	requireAmount(t, eth(4), dao.AmountFromUint256(host.BalanceOf("hive:builder")))
	p := getProject(t, host, 1)
	requireAmount(t, eth(4), p.TotalPaidOut)
	requireAmount(t, eth(10), p.TotalAllocated)
	assert.Equal(t, dao.StatusReadyToPayout, p.Status)

	requireCode(t, CallContract(t, host, "payout", "hive:builder|1|1eth|inv-1", nil, adminAddress, false), contract.ErrDuplicatePayout)
	res = CallContract(t, host, "payout", "hive:builder|1|1eth|inv-2", nil, "hive:someone", false)
	requireCode(t, res, contract.ErrNotAdmin)
	assert.Equal(t, contract.KindAuthorization, contract.KindOf(res.Err))
	requireCode(t, CallContract(t, host, "payout", "hive:builder|1|7eth|inv-2", nil, adminAddress, false), contract.ErrInsufficientProjectAllocation)

	CallContract(t, host, "payout", "hive:builder|1|6eth|inv-2", nil, adminAddress, true)
	p = getProject(t, host, 1)
	assert.Equal(t, dao.StatusPaid, p.Status)
	requireAmount(t, eth(10), p.TotalPaidOut)

	donate(t, host, "hive:someoneelse", "1eth")
	requireCode(t, CallContract(t, host, "allocate", "1|1eth", nil, "hive:someoneelse", false), contract.ErrProjectAlreadyPaid)
	requireConservation(t, host, []string{"hive:someone", "hive:someoneelse"}, []uint64{1})
	require.NoError(t, sdk.VerifyChain(host.Events()))
}

// TestPayoutNotReady refuses payouts before the project is funded.
func TestPayoutNotReady(t *testing.T) {
	host := SetupContractTest(t)
	createProject(t, host, 1, "", "10eth", "", "")
	donate(t, host, "hive:someone", "5eth")
	CallContract(t, host, "allocate", "1|5eth", nil, "hive:someone", true)

	requireCode(t, CallContract(t, host, "payout", "hive:builder|1|1eth|inv-1", nil, adminAddress, false), contract.ErrProjectNotReady)
}

// TestPayoutTreasuryBalance checks the contract balance bounds payouts even when totals say otherwise.
func TestPayoutTreasuryBalance(t *testing.T) {
	host := SetupContractTest(t)
	readyProject(t, host)
	// value leaves the contract account behind the ledger's back
	drained := host.Apply(sdk.Call{Sender: adminAddress, Timestamp: defaultTimestamp}, func(h sdk.Host) (string, error) {
		return "", h.Transfer("hive:elsewhere", eth(8).Uint256())
	})
	require.True(t, drained.Success, "%v", drained.Err)

	res := CallContract(t, host, "payout", "hive:builder|1|5eth|inv-1", nil, adminAddress, false)
	requireCode(t, res, contract.ErrInsufficientTreasuryBalance)
	assert.Equal(t, contract.KindInsufficientFunds, contract.KindOf(res.Err))
}

// TestPayoutRollsBackOnTransferFailure makes sure nothing sticks when the recipient refuses value.
func TestPayoutRollsBackOnTransferFailure(t *testing.T) {
	host := SetupContractTest(t)
	readyProject(t, host)
	host.RejectTransfersTo("hive:builder", errors.New("account frozen"))
	eventsBefore := len(host.Events())

	res := CallContract(t, host, "payout", "hive:builder|1|4eth|inv-1", nil, adminAddress, false)
	requireCode(t, res, contract.ErrTransferFailed)
	assert.ErrorIs(t, res.Err, sdk.ErrTransferRejected)
	requireAmount(t, dao.Amount{}, getProject(t, host, 1).TotalPaidOut)
	requireAmount(t, eth(10), dao.AmountFromUint256(host.BalanceOf(contractID)))
	assert.Len(t, host.Events(), eventsBefore)

	host.RejectTransfersTo("hive:builder", nil)
	CallContract(t, host, "payout", "hive:builder|1|4eth|inv-1", nil, adminAddress, true)
	requireAmount(t, eth(4), getProject(t, host, 1).TotalPaidOut)
}

// =============================================================================
// Refund Tests
// =============================================================================

// TestScenarioRefundToPersonalBalance cancels a project and pays the donor back through withdraw.
func TestScenarioRefundToPersonalBalance(t *testing.T) {
	host := SetupContractTest(t)
	createProject(t, host, 3, "", "10eth", "", "")
	donate(t, host, "hive:someoneelse", "4eth")
	CallContract(t, host, "allocate", "3|4eth", nil, "hive:someoneelse", true)
	CallContract(t, host, "project_status", "3|cancelled", nil, adminAddress, true)

	res := CallContract(t, host, "refund_cancelled", "3", nil, "hive:someoneelse", true)
	assert.Equal(t, eth(4).String(), res.Ret)
	d := getDonor(t, host, "hive:someoneelse")
	requireAmount(t, eth(4), d.PersonalBalance)
	requireAmount(t, dao.Amount{}, d.TotalDonated)
	requireAmount(t, dao.Amount{}, allocationOf(t, host, "hive:someoneelse", 3))
	requireAmount(t, dao.Amount{}, getProject(t, host, 3).TotalAllocated)

	var holders uint64
	readOnly(t, host, func(c *contract.Contract) { holders = c.Weights.Holders() })
	assert.Equal(t, uint64(0), holders)

	CallContract(t, host, "withdraw_personal", "", nil, "hive:someoneelse", true)
	requireAmount(t, eth(1000), dao.AmountFromUint256(host.BalanceOf("hive:someoneelse")))
	requireAmount(t, dao.Amount{}, getDonor(t, host, "hive:someoneelse").PersonalBalance)

	requireCode(t, CallContract(t, host, "withdraw_personal", "", nil, "hive:someoneelse", false), contract.ErrNoBalance)
	requireCode(t, CallContract(t, host, "refund_cancelled", "3", nil, "hive:someoneelse", false), contract.ErrNoAllocation)
	requireConservation(t, host, []string{"hive:someoneelse"}, []uint64{3})
}

// TestRefundToGeneralTreasury puts the allocation back to unallocated when the donor asks for it.
func TestRefundToGeneralTreasury(t *testing.T) {
	host := SetupContractTest(t)
	createProject(t, host, 1, "", "10eth", "", "")
	donate(t, host, "hive:someone", "5eth")
	CallContract(t, host, "allocate", "1|4eth", nil, "hive:someone", true)
	CallContract(t, host, "set_refund_policy", "treasury", nil, "hive:someone", true)

	requireCode(t, CallContract(t, host, "refund_cancelled", "1", nil, "hive:someone", false), contract.ErrProjectNotCancelled)

	CallContract(t, host, "project_status", "1|cancelled", nil, adminAddress, true)
	CallContract(t, host, "refund_cancelled", "1", nil, "hive:someone", true)

	d := getDonor(t, host, "hive:someone")
	requireAmount(t, eth(5), d.TotalUnallocated)
	requireAmount(t, eth(5), d.TotalDonated)
	requireAmount(t, dao.Amount{}, d.PersonalBalance)
	requireConservation(t, host, []string{"hive:someone"}, []uint64{1})
}

// TestRefundPolicyNeedsDonor checks the policy can only be set by someone who donated.
func TestRefundPolicyNeedsDonor(t *testing.T) {
	host := SetupContractTest(t)
	requireCode(t, CallContract(t, host, "set_refund_policy", "treasury", nil, "hive:outsider", false), contract.ErrDonorNotFound)
	requireCode(t, CallContract(t, host, "set_refund_policy", "nowhere", nil, "hive:outsider", false), contract.ErrInvalidPayload)
}

// TestConservationAcrossDonors runs a mixed sequence and checks both conservation invariants at the end.
func TestConservationAcrossDonors(t *testing.T) {
	host := SetupContractTest(t)
	donors := []string{"hive:someone", "hive:someoneelse", "hive:member2"}
	for id := uint64(1); id <= 3; id++ {
		createProject(t, host, id, "", "20eth", "5eth", "30eth")
	}
	for i, d := range donors {
		donate(t, host, d, fmt.Sprintf("%deth", 5*(i+1)))
	}
	CallContract(t, host, "allocate_multiple", "1,2|2eth,2eth", nil, donors[0], true)
	CallContract(t, host, "allocate", "2|7eth", nil, donors[1], true)
	CallContract(t, host, "reassign", "2|3|3eth", nil, donors[1], true)
	CallContract(t, host, "allocate", "3|15eth", nil, donors[2], true)
	CallContract(t, host, "top_up", "1|1eth", nil, donors[0], true)
	CallContract(t, host, "project_status", "1|cancelled", nil, adminAddress, true)
	CallContract(t, host, "refund_cancelled", "1", nil, donors[0], true)

	requireConservation(t, host, donors, []uint64{1, 2, 3})
}

// TestFundingEntryPointKeepsConservation checks the admin funding path cannot rewrite ledger totals.
func TestFundingEntryPointKeepsConservation(t *testing.T) {
	host := SetupContractTest(t)
	createProject(t, host, 1, "", "10eth", "", "")
	donate(t, host, "hive:someone", "10eth")

	res := CallContract(t, host, "project_funding", "1|10eth|0", nil, adminAddress, false)
	requireCode(t, res, contract.ErrFundingMismatch)
	requireCode(t, CallContract(t, host, "project_funding", "1|0|1eth", nil, adminAddress, false), contract.ErrFundingMismatch)
	requireCode(t, CallContract(t, host, "project_funding", "1|0|0", nil, "hive:someone", false), contract.ErrNotAdmin)
	assert.Equal(t, dao.StatusActive, getProject(t, host, 1).Status)

	// unallocated money stays out of reach of payouts
	requireCode(t, CallContract(t, host, "payout", "hive:builder|1|10eth|x", nil, adminAddress, false), contract.ErrProjectNotReady)
	requireConservation(t, host, []string{"hive:someone"}, []uint64{1})

	CallContract(t, host, "allocate", "1|4eth", nil, "hive:someone", true)
	res = CallContract(t, host, "project_funding", "1|4eth|0", nil, adminAddress, true)
	assert.Equal(t, "active", res.Ret)
	requireConservation(t, host, []string{"hive:someone"}, []uint64{1})
	requireAmount(t, eth(6), getDonor(t, host, "hive:someone").TotalUnallocated)
}
