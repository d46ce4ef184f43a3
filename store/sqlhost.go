package store

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"commons_treasury/sdk"

	"github.com/google/uuid"
	"github.com/holiman/uint256"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// SQLHost applies contract calls against a gorm database. Each call runs in
// one SQL transaction; state writes, balance moves and audit entries commit
// together or not at all.
type SQLHost struct {
	mu       sync.Mutex
	db       *gorm.DB
	contract sdk.Address
	kv       KVEntryDAO
	audit    AuditEntryDAO
}

// NewSQLHost binds the contract account to db.
func NewSQLHost(db *gorm.DB, contract sdk.Address) *SQLHost {
	return &SQLHost{
		db:       db,
		contract: contract.Canonical(),
		kv:       GetKVEntryDAOImpl(),
		audit:    GetAuditEntryDAOImpl(),
	}
}

func (h *SQLHost) ContractID() sdk.Address { return h.contract }

// Apply runs fn as one transaction, the same way MemoryHost does, but
// durable. A database failure is reported like a contract error.
func (h *SQLHost) Apply(ctx context.Context, call sdk.Call, fn sdk.Func) sdk.Result {
	h.mu.Lock()
	defer h.mu.Unlock()

	txID := call.TxID
	if txID == "" {
		txID = uuid.NewString()
	}
	res := sdk.Result{TxID: txID}
	env := sdk.Env{TxID: txID, Sender: call.Sender.Canonical(), Timestamp: call.Timestamp, Intents: call.Intents}

	err := h.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		st := newTxState(ctx, tx, h.kv)
		th := sdk.NewTxHost(env, h.contract, st, nil)

		ret, callErr := fn(th)
		res.Ret = ret
		res.Logs = th.Logs()
		if st.err != nil {
			return st.err
		}
		if callErr != nil {
			return callErr
		}
		sealed, err := h.seal(ctx, tx, th.Events())
		if err != nil {
			return err
		}
		if err := st.flush(); err != nil {
			return err
		}
		res.Events = sealed
		return nil
	})
	if err != nil {
		res.Err = err
		res.Ret = err.Error()
		res.Events = nil
		log.Debug("call rolled back", zap.String("tx", txID), zap.Error(err))
		return res
	}
	res.Success = true
	return res
}

func (h *SQLHost) seal(ctx context.Context, tx *gorm.DB, events []sdk.Event) ([]sdk.SealedEvent, error) {
	if len(events) == 0 {
		return nil, nil
	}
	seq, prev, err := h.audit.Head(ctx, tx)
	if err != nil {
		return nil, fmt.Errorf("reading audit head: %w", err)
	}
	sealed := make([]sdk.SealedEvent, 0, len(events))
	for _, ev := range events {
		seq++
		s, err := sdk.Seal(seq, prev, ev)
		if err != nil {
			return nil, err
		}
		sealed = append(sealed, s)
		prev = s.Hash
	}
	if err := h.audit.Append(ctx, tx, sealed); err != nil {
		return nil, fmt.Errorf("appending audit entries: %w", err)
	}
	return sealed, nil
}

// Deposit credits addr outside of any contract call.
func (h *SQLHost) Deposit(ctx context.Context, addr sdk.Address, amount *uint256.Int) error {
	if !addr.IsValid() {
		return sdk.ErrInvalidAddress
	}
	res := h.Apply(ctx, sdk.Call{Sender: h.contract}, func(th sdk.Host) (string, error) {
		return "", sdk.Credit(th.State(), addr, amount)
	})
	return res.Err
}

// BalanceOf reads the committed native balance of addr.
func (h *SQLHost) BalanceOf(ctx context.Context, addr sdk.Address) (*uint256.Int, error) {
	var bal *uint256.Int
	res := h.Apply(ctx, sdk.Call{Sender: h.contract}, func(th sdk.Host) (string, error) {
		bal = th.Balance(addr)
		return "", nil
	})
	if res.Err != nil {
		return nil, res.Err
	}
	return bal, nil
}

// AuditLog returns the whole committed chain in sequence order.
func (h *SQLHost) AuditLog(ctx context.Context) ([]sdk.SealedEvent, error) {
	return h.audit.List(ctx, h.db, 1, 0)
}

// VerifyAudit recomputes the stored chain.
func (h *SQLHost) VerifyAudit(ctx context.Context) error {
	entries, err := h.AuditLog(ctx)
	if err != nil {
		return err
	}
	return sdk.VerifyChain(entries)
}

// txState buffers contract writes over the rows visible to tx. nil marks a delete.
// The first database error sticks and fails the call.
type txState struct {
	ctx    context.Context
	tx     *gorm.DB
	dao    KVEntryDAO
	writes map[string]*string
	err    error
}

var errStoreRead = errors.New("store read failed")

func newTxState(ctx context.Context, tx *gorm.DB, dao KVEntryDAO) *txState {
	return &txState{ctx: ctx, tx: tx, dao: dao, writes: map[string]*string{}}
}

func (s *txState) Set(key, value string) {
	v := value
	s.writes[key] = &v
}

func (s *txState) Delete(key string) {
	s.writes[key] = nil
}

func (s *txState) Get(key string) *string {
	if w, ok := s.writes[key]; ok {
		if w == nil {
			return nil
		}
		v := *w
		return &v
	}
	if s.err != nil {
		return nil
	}
	v, err := s.dao.Get(s.ctx, s.tx, key)
	if err != nil {
		s.err = fmt.Errorf("%w: %v", errStoreRead, err)
		return nil
	}
	return v
}

func (s *txState) flush() error {
	for k, w := range s.writes {
		var err error
		if w == nil {
			err = s.dao.Delete(s.ctx, s.tx, k)
		} else {
			err = s.dao.Put(s.ctx, s.tx, k, *w)
		}
		if err != nil {
			return fmt.Errorf("writing %q: %w", k, err)
		}
	}
	return nil
}
