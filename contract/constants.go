package contract

// -----------------------------------------------------------------------------
// Storage Key Prefixes
// -----------------------------------------------------------------------------

const (
	// kDonor stores encoded Donor records keyed by address.
	kDonor byte = 0x01
	// kReceipt stores append-only receipts under donor address + sequence.
	kReceipt byte = 0x02
	// kAllocation holds the earmarked amount per (project, donor).
	kAllocation byte = 0x03
	// kProject contains encoded Project records.
	kProject byte = 0x10
	// kProjectSeq maps creation sequence to project id for ordered listing.
	kProjectSeq byte = 0x11
	// kCategoryCount counts non-terminal projects per category.
	kCategoryCount byte = 0x12
	// kCategoryLimit stores per-category overrides of the default limit.
	kCategoryLimit byte = 0x13
	// kWeight stores governance weight per account.
	kWeight byte = 0x20
	// kRound stores round headers.
	kRound byte = 0x30
	// kBallot stores one voter's commitment per round.
	kBallot byte = 0x31
	// kTally stores per-project running totals per round.
	kTally byte = 0x32
	// kMultisigTx stores gate transactions.
	kMultisigTx byte = 0x40
	// kConfirmation marks one owner's confirmation of one gate transaction.
	kConfirmation byte = 0x41
	// kPayout marks a payout id as spent.
	kPayout byte = 0x50
)

// -----------------------------------------------------------------------------
// Singleton Keys
// -----------------------------------------------------------------------------

const (
	// SettingsKey holds the CBOR encoded Settings written by Init.
	SettingsKey = "cfg"
	// ProjectsCount is the creation sequence counter for projects.
	ProjectsCount = "count:proj"
	// RoundsCount holds the id of the newest round.
	RoundsCount = "count:rounds"
	// MultisigCount holds the id of the newest gate transaction.
	MultisigCount = "count:msig"
	// HoldersCount counts accounts with non-zero weight.
	HoldersCount = "count:holders"
	// AllocatedSum is the global sum of totalAllocated across projects.
	AllocatedSum = "sum:alloc"
	// GateReserve is the part of the contract balance owned by the multisig gate.
	GateReserve = "bal:gate"
	// PersonalSum is the total of donor personal balances awaiting withdrawal.
	PersonalSum = "sum:personal"
)

// -----------------------------------------------------------------------------
// Defaults
// -----------------------------------------------------------------------------

const (
	FallbackCommitDuration        int64  = 72 * 3600
	FallbackRevealDuration        int64  = 48 * 3600
	FallbackCancellationThreshold uint32 = 0
	FallbackCategoryLimit         uint64 = 0 // unlimited
	MaxBasisPoints                uint32 = 10_000
	MaxNameLength                        = 200
	MaxDescriptionLength                 = 2000
	MaxSaltLength                        = 256
)
