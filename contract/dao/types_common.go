package dao

import (
	"strconv"

	"commons_treasury/sdk"

	"github.com/ethereum/go-ethereum/common"
)

type Address = sdk.Address

// ProjectStatus is the lifecycle position of a project. The numeric order is the
// lifecycle order for the funding path; Cancelled and Archived sit outside it.
type ProjectStatus uint8

const (
	StatusDraft         ProjectStatus = 0
	StatusActive        ProjectStatus = 1
	StatusFundingReady  ProjectStatus = 2
	StatusVoting        ProjectStatus = 3
	StatusReadyToPayout ProjectStatus = 4
	StatusPaid          ProjectStatus = 5
	StatusCancelled     ProjectStatus = 6
	StatusArchived      ProjectStatus = 7
)

// String prints the status as lower-case text for events and logs.
// Example payload: dao.StatusFundingReady.String()
func (s ProjectStatus) String() string {
	switch s {
	case StatusDraft:
		return "draft"
	case StatusActive:
		return "active"
	case StatusFundingReady:
		return "funding_ready"
	case StatusVoting:
		return "voting"
	case StatusReadyToPayout:
		return "ready_to_payout"
	case StatusPaid:
		return "paid"
	case StatusCancelled:
		return "cancelled"
	case StatusArchived:
		return "archived"
	default:
		return "unknown"
	}
}

// Terminal statuses never change again.
func (s ProjectStatus) Terminal() bool {
	return s == StatusPaid || s == StatusCancelled || s == StatusArchived
}

// Rank orders statuses for the no-regression check. Terminal statuses share the top rank.
func (s ProjectStatus) Rank() int {
	if s.Terminal() {
		return int(StatusPaid)
	}
	return int(s)
}

// ParseProjectStatus accepts the String form or the numeric code.
// Example payload: dao.ParseProjectStatus("cancelled")
func ParseProjectStatus(s string) (ProjectStatus, bool) {
	for st := StatusDraft; st <= StatusArchived; st++ {
		if s == st.String() || s == strconv.Itoa(int(st)) {
			return st, true
		}
	}
	return 0, false
}

// Choice is one voter's position on one project in a round.
type Choice uint8

const (
	ChoiceNotParticipating Choice = 0
	ChoiceAbstain          Choice = 1
	ChoiceAgainst          Choice = 2
	ChoiceFor              Choice = 3
)

func (c Choice) String() string {
	switch c {
	case ChoiceAbstain:
		return "abstain"
	case ChoiceAgainst:
		return "against"
	case ChoiceFor:
		return "for"
	default:
		return "none"
	}
}

// ParseChoice reads "for", "against", "abstain" or "none" (empty counts as none).
func ParseChoice(s string) (Choice, bool) {
	switch s {
	case "for", "3":
		return ChoiceFor, true
	case "against", "2":
		return ChoiceAgainst, true
	case "abstain", "1":
		return ChoiceAbstain, true
	case "none", "", "0":
		return ChoiceNotParticipating, true
	default:
		return 0, false
	}
}

// RefundPolicy decides where a cancelled project's allocation goes back to.
type RefundPolicy uint8

const (
	RefundToPersonalBalance RefundPolicy = 0
	RefundToGeneralTreasury RefundPolicy = 1
)

func (p RefundPolicy) String() string {
	if p == RefundToGeneralTreasury {
		return "treasury"
	}
	return "personal"
}

// ParseRefundPolicy reads "personal" or "treasury".
func ParseRefundPolicy(s string) (RefundPolicy, bool) {
	switch s {
	case "personal", "0":
		return RefundToPersonalBalance, true
	case "treasury", "1":
		return RefundToGeneralTreasury, true
	}
	return 0, false
}

// CountingMethod selects how a finalized round ranks its projects.
type CountingMethod uint8

const (
	CountWeightedSum CountingMethod = 0
	CountBorda       CountingMethod = 1
)

func (m CountingMethod) String() string {
	if m == CountBorda {
		return "borda"
	}
	return "weighted"
}

// ParseCountingMethod reads "weighted" or "borda"; empty yields ok=false.
func ParseCountingMethod(s string) (CountingMethod, bool) {
	switch s {
	case "weighted", "0":
		return CountWeightedSum, true
	case "borda", "1":
		return CountBorda, true
	}
	return 0, false
}

func (m CountingMethod) MarshalText() ([]byte, error) { return []byte(m.String()), nil }

func (m *CountingMethod) UnmarshalText(b []byte) error {
	v, ok := ParseCountingMethod(string(b))
	if !ok {
		return ErrInvalidMethod
	}
	*m = v
	return nil
}

// RoundStatus tracks a ballot round. The phase inside an open round comes from the clock.
type RoundStatus uint8

const (
	RoundOpen      RoundStatus = 0
	RoundFinalized RoundStatus = 1
	RoundCancelled RoundStatus = 2
)

func (s RoundStatus) String() string {
	switch s {
	case RoundFinalized:
		return "finalized"
	case RoundCancelled:
		return "cancelled"
	default:
		return "open"
	}
}

// RoundPhase is derived from a round and the current timestamp.
type RoundPhase uint8

const (
	PhaseCommit RoundPhase = iota
	PhaseReveal
	PhaseTally
	PhaseClosed
)

func (p RoundPhase) String() string {
	switch p {
	case PhaseCommit:
		return "commit"
	case PhaseReveal:
		return "reveal"
	case PhaseTally:
		return "tally"
	default:
		return "closed"
	}
}

// Donor is created implicitly on the first donation and never deleted.
type Donor struct {
	Address          Address      `json:"address"`
	TotalDonated     Amount       `json:"totalDonated"`
	TotalUnallocated Amount       `json:"totalUnallocated"`
	PersonalBalance  Amount       `json:"personalBalance"`
	RefundPolicy     RefundPolicy `json:"refundPolicy"`
	ReceiptCount     uint64       `json:"receiptCount"`
}

// Split is one (project, amount) leg of a receipt.
type Split struct {
	ProjectID uint64 `json:"projectId"`
	Amount    Amount `json:"amount"`
}

// ReceiptKind says which operation wrote the receipt.
type ReceiptKind uint8

const (
	ReceiptDonation   ReceiptKind = 0
	ReceiptAllocation ReceiptKind = 1
	ReceiptTopUp      ReceiptKind = 2
)

func (k ReceiptKind) String() string {
	switch k {
	case ReceiptAllocation:
		return "allocation"
	case ReceiptTopUp:
		return "top_up"
	default:
		return "donation"
	}
}

// Receipt is append-only; it is written once and never touched again.
type Receipt struct {
	Seq       uint64      `json:"seq"`
	Donor     Address     `json:"donor"`
	Kind      ReceiptKind `json:"kind"`
	Amount    Amount      `json:"amount"`
	Timestamp int64       `json:"timestamp"`
	Splits    []Split     `json:"splits,omitempty"`
	TxID      string      `json:"tx"`
}

type Project struct {
	ID             uint64        `json:"id"`
	Seq            uint64        `json:"seq"`
	Name           string        `json:"name"`
	Description    string        `json:"description"`
	Category       string        `json:"category"`
	Target         Amount        `json:"target"`
	SoftCap        Amount        `json:"softCap"`
	HardCap        Amount        `json:"hardCap"`
	SoftCapEnabled bool          `json:"softCapEnabled"`
	Priority       uint64        `json:"priority"`
	Status         ProjectStatus `json:"status"`
	TotalAllocated Amount        `json:"totalAllocated"`
	TotalPaidOut   Amount        `json:"totalPaidOut"`
	CreatedAt      int64         `json:"createdAt"`
	Deadline       int64         `json:"deadline"`
	Creator        Address       `json:"creator"`
}

// Remaining is what can still be paid out.
func (p *Project) Remaining() Amount {
	r, err := p.TotalAllocated.Sub(p.TotalPaidOut)
	if err != nil {
		return Amount{}
	}
	return r
}

type CreateProjectArgs struct {
	ID          uint64
	Name        string
	Description string
	Category    string
	Target      Amount
	SoftCap     Amount
	HardCap     Amount
	Deadline    int64
}

type Round struct {
	ID                    uint64         `json:"id"`
	Projects              []uint64       `json:"projects"`
	StartedAt             int64          `json:"startedAt"`
	CommitDeadline        int64          `json:"commitDeadline"`
	RevealDeadline        int64          `json:"revealDeadline"`
	Method                CountingMethod `json:"method"`
	CancellationThreshold uint32         `json:"cancellationThresholdBps"`
	Status                RoundStatus    `json:"status"`
	CommitCount           uint64         `json:"commits"`
	RevealCount           uint64         `json:"reveals"`
	EligibleVoters        uint64         `json:"eligibleVoters"`
	TurnoutBps            uint32         `json:"turnoutBps"`
	Ranking               []uint64       `json:"ranking,omitempty"`
}

// Phase maps now onto the round windows: [start, commit) commit, [commit, reveal) reveal.
func (r *Round) Phase(now int64) RoundPhase {
	if r.Status != RoundOpen {
		return PhaseClosed
	}
	switch {
	case now < r.CommitDeadline:
		return PhaseCommit
	case now < r.RevealDeadline:
		return PhaseReveal
	default:
		return PhaseTally
	}
}

// Index returns the position of projectID inside the round, or -1.
func (r *Round) Index(projectID uint64) int {
	for i, id := range r.Projects {
		if id == projectID {
			return i
		}
	}
	return -1
}

type StartRoundArgs struct {
	Projects              []uint64
	CommitDuration        int64
	RevealDuration        int64
	Method                *CountingMethod
	CancellationThreshold *uint32
}

// Ballot is one voter's commitment in a round, filled in on reveal.
type Ballot struct {
	Hash     common.Hash `json:"hash"`
	Revealed bool        `json:"revealed"`
	Weight   Amount      `json:"weight"`
	Choices  []Choice    `json:"choices,omitempty"`
}

// Tally is the running per-project total inside a round.
type Tally struct {
	ForWeight             Amount `json:"forWeight"`
	AgainstWeight         Amount `json:"againstWeight"`
	AbstainCount          uint64 `json:"abstainCount"`
	NotParticipatingCount uint64 `json:"notParticipatingCount"`
	BordaPoints           Amount `json:"bordaPoints"`
}

// Approved means strictly more weight for than against.
func (t *Tally) Approved() bool {
	return t.ForWeight.Gt(t.AgainstWeight)
}

type MultisigTx struct {
	ID            uint64  `json:"id"`
	To            Address `json:"to"`
	Value         Amount  `json:"value"`
	Executed      bool    `json:"executed"`
	Confirmations uint32  `json:"confirmations"`
	Proposer      Address `json:"proposer"`
	CreatedAt     int64   `json:"createdAt"`
	// Payout is set when executing the transaction pays a project out of the ledger.
	Payout *PayoutRef `json:"payout,omitempty"`
}

type PayoutRef struct {
	ProjectID uint64 `json:"projectId"`
	PayoutID  string `json:"payoutId"`
}

// PayoutRecord marks a payout id as spent.
type PayoutRecord struct {
	ID        string  `json:"id"`
	ProjectID uint64  `json:"projectId"`
	To        Address `json:"to"`
	Amount    Amount  `json:"amount"`
	Timestamp int64   `json:"timestamp"`
	TxID      string  `json:"tx"`
}
