package sdk

import (
	"errors"

	"github.com/holiman/uint256"
)

// Host failures. Contract code wraps these and aborts the call so the host rolls back.
var (
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrAllowanceExceeded   = errors.New("draw exceeds transfer.allow limit")
	ErrTransferRejected    = errors.New("transfer rejected by recipient")
	ErrInvalidAddress      = errors.New("invalid address")
)

// Env is the per-call snapshot the substrate hands to the contract.
type Env struct {
	TxID      string   `json:"tx.id"`
	Sender    Address  `json:"msg.sender"`
	Timestamp int64    `json:"block.timestamp"`
	Intents   []Intent `json:"intents,omitempty"`
}

// State is the contract kv store. Get returns nil for missing keys.
type State interface {
	Set(key string, value string)
	Get(key string) *string
	Delete(key string)
}

// Host is everything a contract call may touch. One Host lives for exactly one call.
type Host interface {
	State() State
	Env() Env
	ContractID() Address

	// Log writes a free-form line to the host console.
	Log(msg string)
	// Emit appends a structured entry to the audit log; dropped on rollback.
	Emit(ev Event)

	// Balance reports the native balance of any account.
	Balance(addr Address) *uint256.Int
	// Draw pulls amount from the sender into the contract, bounded by the transfer.allow intent.
	// Example payload: h.Draw(uint256.NewInt(1000))
	Draw(amount *uint256.Int) error
	// Transfer sends amount from the contract to the recipient.
	// Example payload: h.Transfer("hive:alice", uint256.NewInt(1000))
	Transfer(to Address, amount *uint256.Int) error
}

// Call describes one transaction submitted to a host.
type Call struct {
	Sender    Address
	Timestamp int64
	Intents   []Intent
	// TxID is generated when empty.
	TxID string
}

// Result is what a host reports back after applying a call.
type Result struct {
	TxID    string
	Success bool
	Ret     string
	Err     error
	Events  []SealedEvent
	Logs    []string
}

// Func is the body of one transaction.
type Func func(h Host) (string, error)
