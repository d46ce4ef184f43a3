package contract_test

import (
	"encoding/json"
	"errors"
	"testing"

	"commons_treasury/contract"
	"commons_treasury/contract/dao"
	"commons_treasury/sdk"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func getGateTx(t *testing.T, host *sdk.MemoryHost, id string) dao.MultisigTx {
	t.Helper()
	res := CallContract(t, host, "gate_tx_get", id, nil, owners[0], true)
	var tx dao.MultisigTx
	require.NoError(t, json.Unmarshal([]byte(res.Ret), &tx))
	return tx
}

func fundGate(t *testing.T, host *sdk.MemoryHost, amount string) {
	t.Helper()
	CallContract(t, host, "gate_fund", amount, transferIntent(amount), owners[0], true)
}

// =============================================================================
// Multisig Gate Tests
// =============================================================================

// TestScenarioTwoOfThree checks the propose/confirm/execute flow so we dont break it again.
func TestScenarioTwoOfThree(t *testing.T) {
	host := SetupContractTest(t)
	fundGate(t, host, "10eth")

	res := CallContract(t, host, "gate_propose", "hive:vendor|5eth", nil, owners[0], true)
	assert.Equal(t, "1", res.Ret)

	res = CallContract(t, host, "gate_confirm", "1", nil, owners[0], true)
	assert.Equal(t, "1/1", res.Ret)
	requireCode(t, CallContract(t, host, "gate_execute", "1", nil, owners[0], false), contract.ErrNotEnoughConfirmations)

	res = CallContract(t, host, "gate_confirm", "1", nil, owners[1], true)
	assert.Equal(t, "1/2", res.Ret)
	CallContract(t, host, "gate_execute", "1", nil, owners[2], true)

	requireAmount(t, eth(5), dao.AmountFromUint256(host.BalanceOf("hive:vendor")))
	tx := getGateTx(t, host, "1")
	assert.True(t, tx.Executed)
	assert.Equal(t, uint32(2), tx.Confirmations)
	assert.Equal(t, dao.Address(owners[0]), tx.Proposer)

	var reserve dao.Amount
	readOnly(t, host, func(c *contract.Contract) { reserve = c.Gate.Reserve() })
	requireAmount(t, eth(5), reserve)

	requireCode(t, CallContract(t, host, "gate_execute", "1", nil, owners[0], false), contract.ErrAlreadyExecuted)
	// an owner who already confirmed hears about their confirmation first
	requireCode(t, CallContract(t, host, "gate_confirm", "1", nil, owners[0], false), contract.ErrAlreadyConfirmed)
	requireCode(t, CallContract(t, host, "gate_confirm", "1", nil, owners[2], false), contract.ErrAlreadyExecuted)
	require.NoError(t, sdk.VerifyChain(host.Events()))
}

// TestGateOwnersOnly keeps non-owners away from every gate step.
func TestGateOwnersOnly(t *testing.T) {
	host := SetupContractTest(t)
	res := CallContract(t, host, "gate_propose", "hive:vendor|5eth", nil, "hive:someone", false)
	requireCode(t, res, contract.ErrNotOwner)
	assert.Equal(t, contract.KindAuthorization, contract.KindOf(res.Err))

	CallContract(t, host, "gate_propose", "hive:vendor|5eth", nil, owners[0], true)
	requireCode(t, CallContract(t, host, "gate_confirm", "1", nil, adminAddress, false), contract.ErrNotOwner)
	requireCode(t, CallContract(t, host, "gate_execute", "1", nil, "hive:someone", false), contract.ErrNotOwner)
	requireCode(t, CallContract(t, host, "gate_confirm", "9", nil, owners[0], false), contract.ErrTransactionNotFound)
	requireCode(t, CallContract(t, host, "gate_propose", "hive:vendor|0", nil, owners[0], false), contract.ErrZeroAmount)
}

// TestGateConfirmAndRevoke checks each owner counts once and can take it back.
func TestGateConfirmAndRevoke(t *testing.T) {
	host := SetupContractTest(t)
	CallContract(t, host, "gate_propose", "hive:vendor|1eth", nil, owners[0], true)

	CallContract(t, host, "gate_confirm", "1", nil, owners[1], true)
	requireCode(t, CallContract(t, host, "gate_confirm", "1", nil, owners[1], false), contract.ErrAlreadyConfirmed)

	res := CallContract(t, host, "gate_revoke", "1", nil, owners[1], true)
	assert.Equal(t, "1/0", res.Ret)
	requireCode(t, CallContract(t, host, "gate_revoke", "1", nil, owners[1], false), contract.ErrNotConfirmed)

	CallContract(t, host, "gate_confirm", "1", nil, owners[1], true)
	assert.Equal(t, uint32(1), getGateTx(t, host, "1").Confirmations)
}

// TestGateInsufficientReserve leaves the transaction pending when the reserve is short.
func TestGateInsufficientReserve(t *testing.T) {
	host := SetupContractTest(t)
	fundGate(t, host, "1eth")
	donate(t, host, "hive:someone", "20eth")
	CallContract(t, host, "gate_propose", "hive:vendor|5eth", nil, owners[0], true)
	CallContract(t, host, "gate_confirm", "1", nil, owners[0], true)
	CallContract(t, host, "gate_confirm", "1", nil, owners[1], true)

	// donated funds are not the gate's to spend
	res := CallContract(t, host, "gate_execute", "1", nil, owners[0], false)
	requireCode(t, res, contract.ErrInsufficientGateBalance)
	assert.False(t, getGateTx(t, host, "1").Executed)

	fundGate(t, host, "4eth")
	CallContract(t, host, "gate_execute", "1", nil, owners[0], true)
	requireAmount(t, eth(20), dao.AmountFromUint256(host.BalanceOf(contractID)))
}

// TestGateRetryAfterFailedTransfer makes sure a refused transfer does not burn the transaction.
func TestGateRetryAfterFailedTransfer(t *testing.T) {
	host := SetupContractTest(t)
	fundGate(t, host, "10eth")
	CallContract(t, host, "gate_propose", "hive:vendor|5eth", nil, owners[0], true)
	CallContract(t, host, "gate_confirm", "1", nil, owners[0], true)
	CallContract(t, host, "gate_confirm", "1", nil, owners[1], true)

	host.RejectTransfersTo("hive:vendor", errors.New("closed"))
	res := CallContract(t, host, "gate_execute", "1", nil, owners[0], false)
	requireCode(t, res, contract.ErrTransferFailed)
	assert.False(t, getGateTx(t, host, "1").Executed)

	host.RejectTransfersTo("hive:vendor", nil)
	CallContract(t, host, "gate_execute", "1", nil, owners[0], true)
	requireAmount(t, eth(5), dao.AmountFromUint256(host.BalanceOf("hive:vendor")))
}

// TestGatePayout runs a ledger payout with gate authority instead of the admin.
func TestGatePayout(t *testing.T) {
	host := SetupContractTest(t)
	readyProject(t, host)
	fundGate(t, host, "3eth")

	res := CallContract(t, host, "gate_propose_payout", "hive:builder|1|4eth|inv-g1", nil, owners[0], true)
	assert.Equal(t, "1", res.Ret)
	tx := getGateTx(t, host, "1")
	require.NotNil(t, tx.Payout)
	assert.Equal(t, uint64(1), tx.Payout.ProjectID)
	assert.Equal(t, "inv-g1", tx.Payout.PayoutID)

	CallContract(t, host, "gate_confirm", "1", nil, owners[1], true)
	CallContract(t, host, "gate_confirm", "1", nil, owners[2], true)
	CallContract(t, host, "gate_execute", "1", nil, owners[1], true)

	requireAmount(t, eth(4), getProject(t, host, 1).TotalPaidOut)
	requireAmount(t, eth(4), dao.AmountFromUint256(host.BalanceOf("hive:builder")))

	var reserve dao.Amount
	readOnly(t, host, func(c *contract.Contract) { reserve = c.Gate.Reserve() })
	requireAmount(t, eth(3), reserve)

	requireCode(t, CallContract(t, host, "payout", "hive:builder|1|1eth|inv-g1", nil, adminAddress, false), contract.ErrDuplicatePayout)
	requireCode(t, CallContract(t, host, "gate_propose_payout", "hive:builder|1|1eth|", nil, owners[0], false), contract.ErrInvalidPayload)

	// the reserve is not part of the treasury, so only 6 eth remain for payouts
	CallContract(t, host, "payout", "hive:builder|1|6eth|inv-2", nil, adminAddress, true)
	requireAmount(t, eth(3), dao.AmountFromUint256(host.BalanceOf(contractID)))
}
