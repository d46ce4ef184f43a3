package sdk

import (
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/holiman/uint256"
	"go.uber.org/zap"
)

// MemoryHost is an in-process substrate: a map kv, native balances and an
// audit log. Calls are applied one at a time; a failed call leaves no trace.
type MemoryHost struct {
	mu       sync.Mutex
	contract Address
	kv       map[string]string
	events   EventLog
	refusals map[Address]error
}

// NewMemoryHost creates an empty host for the contract account.
// Example payload: sdk.NewMemoryHost("contract:treasury")
func NewMemoryHost(contract Address) *MemoryHost {
	return &MemoryHost{
		contract: contract,
		kv:       map[string]string{},
		refusals: map[Address]error{},
	}
}

// ContractID returns the account the contract holds funds under.
func (m *MemoryHost) ContractID() Address { return m.contract }

// Deposit credits an account outside of any call, like a faucet.
func (m *MemoryHost) Deposit(addr Address, amount *uint256.Int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := credit(mapState(m.kv), addr, amount); err != nil {
		log.Warn("deposit failed", zap.String("addr", addr.String()), zap.Error(err))
	}
}

// RejectTransfersTo makes every transfer towards addr fail with err; nil clears it.
func (m *MemoryHost) RejectTransfersTo(addr Address, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.refusals, addr.Canonical())
		return
	}
	m.refusals[addr.Canonical()] = err
}

// BalanceOf reads a committed native balance.
func (m *MemoryHost) BalanceOf(addr Address) *uint256.Int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return readBalance(mapState(m.kv), addr)
}

// Events returns the committed audit log.
func (m *MemoryHost) Events() []SealedEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.events.Entries()
}

// Keys lists committed contract keys in sorted order; balances are left out.
func (m *MemoryHost) Keys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	keys := make([]string, 0, len(m.kv))
	for k := range m.kv {
		if len(k) >= len(balancePrefix) && k[:len(balancePrefix)] == balancePrefix {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Apply runs fn as one transaction. Writes, balance moves and events are
// buffered and only become visible when fn returns a nil error.
func (m *MemoryHost) Apply(call Call, fn Func) Result {
	m.mu.Lock()
	defer m.mu.Unlock()

	txID := call.TxID
	if txID == "" {
		txID = uuid.NewString()
	}
	env := Env{TxID: txID, Sender: call.Sender.Canonical(), Timestamp: call.Timestamp, Intents: call.Intents}
	ov := newOverlay(m.kv)
	h := NewTxHost(env, m.contract, ov, m.refusal)

	ret, err := fn(h)
	res := Result{TxID: txID, Ret: ret, Logs: h.Logs()}
	if err != nil {
		res.Err = err
		res.Ret = err.Error()
		log.Debug("call rolled back", zap.String("tx", txID), zap.Error(err))
		return res
	}
	sealed, err := m.events.Append(h.Events()...)
	if err != nil {
		res.Err = err
		res.Ret = err.Error()
		return res
	}
	ov.commit()
	res.Success = true
	res.Events = sealed
	return res
}

func (m *MemoryHost) refusal(to Address) error {
	return m.refusals[to.Canonical()]
}

type mapState map[string]string

func (s mapState) Set(key, value string) { s[key] = value }
func (s mapState) Delete(key string)     { delete(s, key) }
func (s mapState) Get(key string) *string {
	v, ok := s[key]
	if !ok {
		return nil
	}
	return &v
}

// overlay buffers writes on top of a base map; nil marks a delete.
type overlay struct {
	base   map[string]string
	writes map[string]*string
}

func newOverlay(base map[string]string) *overlay {
	return &overlay{base: base, writes: map[string]*string{}}
}

func (o *overlay) Set(key, value string) {
	v := value
	o.writes[key] = &v
}

func (o *overlay) Delete(key string) {
	o.writes[key] = nil
}

func (o *overlay) Get(key string) *string {
	if w, ok := o.writes[key]; ok {
		if w == nil {
			return nil
		}
		v := *w
		return &v
	}
	v, ok := o.base[key]
	if !ok {
		return nil
	}
	return &v
}

func (o *overlay) commit() {
	for k, w := range o.writes {
		if w == nil {
			delete(o.base, k)
			continue
		}
		o.base[k] = *w
	}
	o.writes = map[string]*string{}
}
