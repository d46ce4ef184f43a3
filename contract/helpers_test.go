package contract_test

import (
	"encoding/json"
	"fmt"
	"testing"

	"commons_treasury/contract"
	"commons_treasury/contract/dao"
	"commons_treasury/sdk"

	"github.com/stretchr/testify/require"
)

const (
	contractID       = sdk.Address("contract:treasury")
	adminAddress     = "hive:admin"
	defaultTimestamp = int64(1_756_857_600) // 2025-09-03T00:00:00Z
	commitWindow     = int64(3600)
	revealWindow     = int64(3600)
)

var owners = []string{"hive:owner1", "hive:owner2", "hive:owner3"}

// SetupContractTest builds an initialized contract on a fresh memory host and funds the usual accounts.
func SetupContractTest(t *testing.T) *sdk.MemoryHost {
	t.Helper()
	host := sdk.NewMemoryHost(contractID)
	for _, acct := range []string{"hive:someone", "hive:someoneelse", "hive:member2", "hive:outsider", owners[0]} {
		host.Deposit(sdk.Address(acct), dao.Ether(1000).Uint256())
	}
	payload := fmt.Sprintf("%s,%s,%s|2|1eth||||%d|%d|0|weighted", owners[0], owners[1], owners[2], commitWindow, revealWindow)
	CallContract(t, host, "init", payload, nil, adminAddress, true)
	return host
}

// CallContract executes a contract action at the default timestamp and asserts the outcome.
func CallContract(t *testing.T, host *sdk.MemoryHost, action, payload string, intents []sdk.Intent, authUser string, expectedResult bool) sdk.Result {
	t.Helper()
	return CallContractAt(t, host, action, payload, intents, authUser, expectedResult, defaultTimestamp)
}

// CallContractAt lets tests move the clock for phase and deadline checks.
func CallContractAt(t *testing.T, host *sdk.MemoryHost, action, payload string, intents []sdk.Intent, authUser string, expectedResult bool, timestamp int64) sdk.Result {
	t.Helper()
	res := host.Apply(sdk.Call{
		Sender:    sdk.Address(authUser),
		Timestamp: timestamp,
		Intents:   intents,
		TxID:      fmt.Sprintf("%s-tx", action),
	}, contract.Action(action, payload))
	if res.Success != expectedResult {
		t.Fatalf("%s(%q) by %s: expected success=%v, got %v (%v)", action, payload, authUser, expectedResult, res.Success, res.Err)
	}
	return res
}

// transferIntent allows the call to draw up to amount from the sender.
func transferIntent(amount string) []sdk.Intent {
	return []sdk.Intent{sdk.AllowIntent(dao.MustParseAmount(amount).Uint256())}
}

// readOnly opens the contract on a throwaway call so tests can inspect state directly.
func readOnly(t *testing.T, host *sdk.MemoryHost, fn func(c *contract.Contract)) {
	t.Helper()
	host.Apply(sdk.Call{Sender: adminAddress, Timestamp: defaultTimestamp}, func(h sdk.Host) (string, error) {
		fn(contract.Open(h))
		return "", fmt.Errorf("read only")
	})
}

// createProject adds a project through the admin entry point; soft and hard may be "".
func createProject(t *testing.T, host *sdk.MemoryHost, id uint64, category, target, soft, hard string) {
	t.Helper()
	payload := fmt.Sprintf("%d|project %d|desc|%s|%s|%s|%s|", id, id, category, target, soft, hard)
	CallContract(t, host, "project_create", payload, nil, adminAddress, true)
}

func donate(t *testing.T, host *sdk.MemoryHost, donor, amount string) {
	t.Helper()
	CallContract(t, host, "donate", amount, transferIntent(amount), donor, true)
}

func getProject(t *testing.T, host *sdk.MemoryHost, id uint64) dao.Project {
	t.Helper()
	res := CallContract(t, host, "project_get", fmt.Sprintf("%d", id), nil, adminAddress, true)
	var p dao.Project
	require.NoError(t, json.Unmarshal([]byte(res.Ret), &p))
	return p
}

func getDonor(t *testing.T, host *sdk.MemoryHost, addr string) dao.Donor {
	t.Helper()
	res := CallContract(t, host, "donor_get", addr, nil, addr, true)
	var d dao.Donor
	require.NoError(t, json.Unmarshal([]byte(res.Ret), &d))
	return d
}

func allocationOf(t *testing.T, host *sdk.MemoryHost, addr string, projectID uint64) dao.Amount {
	t.Helper()
	var out dao.Amount
	readOnly(t, host, func(c *contract.Contract) {
		out = c.Ledger.Allocation(sdk.Address(addr), projectID)
	})
	return out
}

// requireConservation checks unallocated + sum(allocations) == donated for each donor,
// and totalAllocated == sum over donors for each project.
func requireConservation(t *testing.T, host *sdk.MemoryHost, donors []string, projects []uint64) {
	t.Helper()
	perProject := map[uint64]dao.Amount{}
	for _, d := range donors {
		donor := getDonor(t, host, d)
		sum := donor.TotalUnallocated
		for _, id := range projects {
			a := allocationOf(t, host, d, id)
			var err error
			sum, err = sum.Add(a)
			require.NoError(t, err)
			perProject[id], err = perProject[id].Add(a)
			require.NoError(t, err)
		}
		require.Truef(t, sum.Eq(donor.TotalDonated), "donor %s: unallocated+allocations=%s, donated=%s", d, sum, donor.TotalDonated)
	}
	for _, id := range projects {
		p := getProject(t, host, id)
		require.Truef(t, p.TotalAllocated.Eq(perProject[id]), "project %d: allocated=%s, sum=%s", id, p.TotalAllocated, perProject[id])
		require.Truef(t, p.TotalPaidOut.Lt(p.TotalAllocated) || p.TotalPaidOut.Eq(p.TotalAllocated), "project %d paid out more than allocated", id)
	}
}

// eth is a shorthand for whole-ether amounts in assertions.
func eth(n uint64) dao.Amount { return dao.Ether(n) }

func requireAmount(t *testing.T, want, got dao.Amount) {
	t.Helper()
	require.Truef(t, want.Eq(got), "expected %s, got %s", want.Ether(), got.Ether())
}

func requireCode(t *testing.T, res sdk.Result, want *contract.Error) {
	t.Helper()
	require.Error(t, res.Err)
	require.ErrorIs(t, res.Err, want)
}
