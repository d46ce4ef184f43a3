package contract

import (
	"fmt"
	"strconv"

	"commons_treasury/codec"
	"commons_treasury/contract/dao"
	"commons_treasury/sdk"

	lru "github.com/hashicorp/golang-lru/v2"
)

// projectCacheSize bounds the decoded-project cache of one call.
const projectCacheSize = 256

// LedgerState is the single aggregate every module reads and writes through.
// One LedgerState lives for exactly one call; nothing here is package level.
type LedgerState struct {
	host     sdk.Host
	kv       sdk.State
	env      sdk.Env
	settings *Settings
	projects *lru.Cache[uint64, dao.Project]
}

// NewLedgerState binds the aggregate to the host of the current call.
func NewLedgerState(h sdk.Host) *LedgerState {
	cache, err := lru.New[uint64, dao.Project](projectCacheSize)
	if err != nil {
		panic(err)
	}
	return &LedgerState{host: h, kv: h.State(), env: h.Env(), projects: cache}
}

func (s *LedgerState) Host() sdk.Host      { return s.host }
func (s *LedgerState) Sender() sdk.Address { return s.env.Sender.Canonical() }
func (s *LedgerState) Now() int64          { return s.env.Timestamp }

// Initialized reports whether Init ran.
func (s *LedgerState) Initialized() bool {
	ptr := s.kv.Get(SettingsKey)
	return ptr != nil && *ptr != ""
}

// Settings loads the deployment settings once per call.
func (s *LedgerState) Settings() (*Settings, error) {
	if s.settings != nil {
		return s.settings, nil
	}
	ptr := s.kv.Get(SettingsKey)
	if ptr == nil || *ptr == "" {
		return nil, ErrNotInitialized
	}
	var cfg Settings
	if err := codec.Unmarshal([]byte(*ptr), &cfg); err != nil {
		return nil, fmt.Errorf("decode settings: %w", err)
	}
	s.settings = &cfg
	return s.settings, nil
}

func (s *LedgerState) saveSettings(cfg *Settings) error {
	data, err := codec.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}
	s.kv.Set(SettingsKey, string(data))
	s.settings = cfg
	return nil
}

// requireAdmin gates operator entry points.
func (s *LedgerState) requireAdmin() error {
	cfg, err := s.Settings()
	if err != nil {
		return err
	}
	if s.Sender() != cfg.Admin.Canonical() {
		return fail(ErrNotAdmin, "%s is not the admin", s.Sender())
	}
	return nil
}

// -----------------------------------------------------------------------------
// Counters
// -----------------------------------------------------------------------------

// getCount reads the string counter under the key and defaults to zero.
func (s *LedgerState) getCount(key string) uint64 {
	ptr := s.kv.Get(key)
	if ptr == nil || *ptr == "" {
		return 0
	}
	n, _ := strconv.ParseUint(*ptr, 10, 64)
	return n
}

// setCount stores uint64 counters back as decimal strings for the host kv.
func (s *LedgerState) setCount(key string, n uint64) {
	if n == 0 {
		s.kv.Delete(key)
		return
	}
	s.kv.Set(key, strconv.FormatUint(n, 10))
}

// nextCount increments and returns the new value, so ids start at 1.
func (s *LedgerState) nextCount(key string) uint64 {
	n := s.getCount(key) + 1
	s.setCount(key, n)
	return n
}

// -----------------------------------------------------------------------------
// Amount slots
// -----------------------------------------------------------------------------

func (s *LedgerState) getAmount(key string) dao.Amount {
	ptr := s.kv.Get(key)
	if ptr == nil || *ptr == "" {
		return dao.Amount{}
	}
	a, err := dao.ParseAmount(*ptr)
	if err != nil {
		return dao.Amount{}
	}
	return a
}

func (s *LedgerState) setAmount(key string, a dao.Amount) {
	if a.IsZero() {
		s.kv.Delete(key)
		return
	}
	s.kv.Set(key, a.String())
}

// emit stamps the audit entry with the caller and hands it to the host.
func (s *LedgerState) emit(kind string, entities, amounts map[string]string) {
	s.host.Emit(sdk.Event{
		Kind:      kind,
		Actor:     s.Sender(),
		TxID:      s.env.TxID,
		Timestamp: s.Now(),
		Entities:  entities,
		Amounts:   amounts,
	})
}
