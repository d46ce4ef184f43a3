package contract

import (
	"errors"
	"fmt"
)

// Kind is the coarse error class callers branch on.
type Kind uint8

const (
	KindValidation Kind = iota + 1
	KindAuthorization
	KindState
	KindInsufficientFunds
	KindNotFound
	KindCryptographicMismatch
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "ValidationError"
	case KindAuthorization:
		return "AuthorizationError"
	case KindState:
		return "StateError"
	case KindInsufficientFunds:
		return "InsufficientFundsError"
	case KindNotFound:
		return "NotFoundError"
	case KindCryptographicMismatch:
		return "CryptographicMismatchError"
	default:
		return "Error"
	}
}

// Error is every failure an operation returns. Code names the exact condition,
// Reason is for humans.
type Error struct {
	Kind   Kind
	Code   string
	Reason string
	Err    error
}

func (e *Error) Error() string {
	msg := e.Code
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches another *Error by code, so errors.Is(err, ErrZeroAmount) works on
// copies carrying a more specific reason.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// KindOf returns the kind of err, or 0 when err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

func newErr(kind Kind, code, reason string) *Error {
	return &Error{Kind: kind, Code: code, Reason: reason}
}

// fail returns a copy of base with a formatted reason.
func fail(base *Error, format string, args ...any) error {
	return &Error{Kind: base.Kind, Code: base.Code, Reason: fmt.Sprintf(format, args...)}
}

// wrap attaches a cause to a copy of base.
func wrap(base *Error, err error) error {
	return &Error{Kind: base.Kind, Code: base.Code, Reason: base.Reason, Err: err}
}

var (
	// validation
	ErrZeroAmount       = newErr(KindValidation, "ZeroAmount", "amount must be greater than zero")
	ErrInvalidCaps      = newErr(KindValidation, "InvalidCaps", "caps must satisfy softCap <= target <= hardCap")
	ErrEmptyName        = newErr(KindValidation, "EmptyName", "name must not be empty")
	ErrZeroTarget       = newErr(KindValidation, "ZeroTarget", "target must be greater than zero")
	ErrDuplicateProject = newErr(KindValidation, "DuplicateProject", "project id already exists")
	ErrInvalidArgument  = newErr(KindValidation, "InvalidArgument", "invalid argument")
	ErrInvalidPayload   = newErr(KindValidation, "InvalidPayload", "invalid payload")
	ErrAmountOverflow   = newErr(KindValidation, "AmountOverflow", "amount out of range")
	ErrUnknownAction    = newErr(KindValidation, "UnknownAction", "unknown action")
	ErrFundingMismatch  = newErr(KindValidation, "FundingMismatch", "funding totals differ from the ledger")

	// authorization
	ErrNotAdmin    = newErr(KindAuthorization, "NotAdmin", "caller is not the admin")
	ErrNotOwner    = newErr(KindAuthorization, "NotOwner", "caller is not a multisig owner")
	ErrNotEligible = newErr(KindAuthorization, "NotEligible", "caller holds no governance weight")

	// state
	ErrNotInitialized         = newErr(KindState, "NotInitialized", "contract not initialized")
	ErrAlreadyInitialized     = newErr(KindState, "AlreadyInitialized", "contract already initialized")
	ErrProjectCancelled       = newErr(KindState, "ProjectCancelled", "project is cancelled")
	ErrProjectAlreadyPaid     = newErr(KindState, "ProjectAlreadyPaid", "project is already paid")
	ErrProjectArchived        = newErr(KindState, "ProjectArchived", "project is archived")
	ErrProjectNotReady        = newErr(KindState, "ProjectNotReady", "project is not ready for payout")
	ErrProjectNotCancelled    = newErr(KindState, "ProjectNotCancelled", "project is not cancelled")
	ErrProjectHasPayouts      = newErr(KindState, "ProjectHasPayouts", "project already paid out funds")
	ErrInvalidTransition      = newErr(KindState, "InvalidTransition", "status transition not allowed")
	ErrCategoryLimitExceeded  = newErr(KindState, "CategoryLimitExceeded", "category has reached its active project limit")
	ErrHardCapExceeded        = newErr(KindState, "HardCapExceeded", "allocation would exceed the hard cap")
	ErrGlobalCapExceeded      = newErr(KindState, "GlobalCapExceeded", "allocation would exceed the global soft cap")
	ErrNoExistingAllocation   = newErr(KindState, "NoExistingAllocation", "top up needs an existing allocation")
	ErrSameProject            = newErr(KindState, "SameProject", "source and destination are the same project")
	ErrDuplicatePayout        = newErr(KindState, "DuplicatePayout", "payout id already used")
	ErrRoundInProgress        = newErr(KindState, "RoundInProgress", "another round is still open")
	ErrPhaseClosed            = newErr(KindState, "PhaseClosed", "round phase is closed")
	ErrRoundClosed            = newErr(KindState, "RoundClosed", "round is finalized or cancelled")
	ErrNotCurrentRound        = newErr(KindState, "NotCurrentRound", "round is not the current round")
	ErrProjectNotVotable      = newErr(KindState, "ProjectNotVotable", "project is not ready for a vote")
	ErrAlreadyCommitted       = newErr(KindState, "AlreadyCommitted", "already committed in this round")
	ErrAlreadyRevealed        = newErr(KindState, "AlreadyRevealed", "already revealed in this round")
	ErrNoCommitment           = newErr(KindState, "NoCommitment", "no commitment found")
	ErrAlreadyConfirmed       = newErr(KindState, "AlreadyConfirmed", "already confirmed")
	ErrNotConfirmed           = newErr(KindState, "NotConfirmed", "no confirmation to revoke")
	ErrAlreadyExecuted        = newErr(KindState, "AlreadyExecuted", "transaction already executed")
	ErrNotEnoughConfirmations = newErr(KindState, "NotEnoughConfirmations", "not enough confirmations")

	// funds
	ErrInsufficientUnallocatedFunds  = newErr(KindInsufficientFunds, "InsufficientUnallocatedFunds", "unallocated balance too low")
	ErrInsufficientAllocation        = newErr(KindInsufficientFunds, "InsufficientAllocation", "allocation too low")
	ErrInsufficientTreasuryBalance   = newErr(KindInsufficientFunds, "InsufficientTreasuryBalance", "treasury balance too low")
	ErrInsufficientProjectAllocation = newErr(KindInsufficientFunds, "InsufficientProjectAllocation", "project allocation too low")
	ErrInsufficientGateBalance       = newErr(KindInsufficientFunds, "InsufficientGateBalance", "gate reserve too low")
	ErrNoBalance                     = newErr(KindInsufficientFunds, "NoBalance", "personal balance is zero")
	ErrNoAllocation                  = newErr(KindInsufficientFunds, "NoAllocation", "no allocation to refund")
	ErrDrawFailed                    = newErr(KindInsufficientFunds, "DrawFailed", "could not draw funds from sender")
	ErrTransferFailed                = newErr(KindState, "TransferFailed", "native transfer failed")

	// lookups
	ErrProjectNotFound     = newErr(KindNotFound, "ProjectNotFound", "project not found")
	ErrRoundNotFound       = newErr(KindNotFound, "RoundNotFound", "round not found")
	ErrTransactionNotFound = newErr(KindNotFound, "TransactionNotFound", "transaction not found")
	ErrDonorNotFound       = newErr(KindNotFound, "DonorNotFound", "donor not found")

	// crypto
	ErrRevealMismatch = newErr(KindCryptographicMismatch, "RevealMismatch", "reveal does not match commitment")
)
