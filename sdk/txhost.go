package sdk

import (
	"fmt"

	"github.com/holiman/uint256"
	"go.uber.org/zap"
)

// balancePrefix keeps native balances in the same kv as contract state,
// so a rolled back call also rolls back every value movement.
const balancePrefix = "\xffbal:"

// TxHost is the Host handed to one call. Hosts build it over their own
// transactional State and keep the buffered events and logs when the call succeeds.
type TxHost struct {
	env      Env
	contract Address
	state    State
	events   []Event
	logs     []string
	drawn    uint256.Int
	refuse   func(Address) error
}

// NewTxHost wraps st for a single call. refuse may be nil.
func NewTxHost(env Env, contract Address, st State, refuse func(Address) error) *TxHost {
	return &TxHost{env: env, contract: contract, state: st, refuse: refuse}
}

func (h *TxHost) State() State        { return h.state }
func (h *TxHost) Env() Env            { return h.env }
func (h *TxHost) ContractID() Address { return h.contract }

// Events returns what the call emitted so far.
func (h *TxHost) Events() []Event { return h.events }

// Logs returns the console lines of the call.
func (h *TxHost) Logs() []string { return h.logs }

func (h *TxHost) Log(msg string) {
	h.logs = append(h.logs, msg)
	log.Debug(msg, zap.String("tx", h.env.TxID))
}

func (h *TxHost) Emit(ev Event) {
	if ev.TxID == "" {
		ev.TxID = h.env.TxID
	}
	if ev.Timestamp == 0 {
		ev.Timestamp = h.env.Timestamp
	}
	if ev.Actor == "" {
		ev.Actor = h.env.Sender
	}
	h.events = append(h.events, ev)
	h.Log(ev.Line())
}

func (h *TxHost) Balance(addr Address) *uint256.Int {
	return readBalance(h.state, addr)
}

func (h *TxHost) Draw(amount *uint256.Int) error {
	limit, ok, err := allowance(h.env.Intents)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrAllowanceExceeded, err)
	}
	if !ok {
		return fmt.Errorf("%w: no transfer.allow intent", ErrAllowanceExceeded)
	}
	var next uint256.Int
	if _, overflow := next.AddOverflow(&h.drawn, amount); overflow || next.Gt(limit) {
		return ErrAllowanceExceeded
	}
	if err := move(h.state, h.env.Sender, h.contract, amount); err != nil {
		return err
	}
	h.drawn = next
	return nil
}

func (h *TxHost) Transfer(to Address, amount *uint256.Int) error {
	if !to.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidAddress, to)
	}
	if h.refuse != nil {
		if err := h.refuse(to); err != nil {
			return fmt.Errorf("%w: %v", ErrTransferRejected, err)
		}
	}
	return move(h.state, h.contract, to, amount)
}

func balanceKey(addr Address) string {
	return balancePrefix + addr.Canonical().String()
}

func readBalance(st State, addr Address) *uint256.Int {
	ptr := st.Get(balanceKey(addr))
	if ptr == nil || *ptr == "" {
		return new(uint256.Int)
	}
	v, err := uint256.FromDecimal(*ptr)
	if err != nil {
		return new(uint256.Int)
	}
	return v
}

func writeBalance(st State, addr Address, v *uint256.Int) {
	if v.IsZero() {
		st.Delete(balanceKey(addr))
		return
	}
	st.Set(balanceKey(addr), v.Dec())
}

// Credit seeds a native balance inside st outside of any contract call.
// Hosts use it for deposits; contract code never sees it.
func Credit(st State, addr Address, amount *uint256.Int) error {
	return credit(st, addr, amount)
}

// credit adds amount to addr; used when seeding accounts outside a call.
func credit(st State, addr Address, amount *uint256.Int) error {
	bal := readBalance(st, addr)
	if _, overflow := bal.AddOverflow(bal, amount); overflow {
		return fmt.Errorf("balance overflow for %s", addr)
	}
	writeBalance(st, addr, bal)
	return nil
}

func move(st State, from, to Address, amount *uint256.Int) error {
	if amount.IsZero() || from.Canonical() == to.Canonical() {
		return nil
	}
	src := readBalance(st, from)
	if src.Lt(amount) {
		return fmt.Errorf("%w: %s holds %s, needs %s", ErrInsufficientBalance, from, src.Dec(), amount.Dec())
	}
	src.Sub(src, amount)
	writeBalance(st, from, src)
	return credit(st, to, amount)
}
