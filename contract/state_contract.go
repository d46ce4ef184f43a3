package contract

import (
	"strconv"
	"strings"

	"commons_treasury/contract/dao"
	"commons_treasury/sdk"
)

// -----------------------------------------------------------------------------
// Contract Settings
// -----------------------------------------------------------------------------

// Settings is written once by Init. Only the explicit admin operations below change it later.
type Settings struct {
	Admin                 sdk.Address        `cbor:"1,keyasint" json:"admin"`
	Owners                []sdk.Address      `cbor:"2,keyasint" json:"owners"`
	Required              uint32             `cbor:"3,keyasint" json:"required"`
	WeightCap             dao.Amount         `cbor:"4,keyasint" json:"weightCap"`
	WeightBaseUnit        dao.Amount         `cbor:"5,keyasint" json:"weightBaseUnit"`
	MinDonation           dao.Amount         `cbor:"6,keyasint" json:"minDonation"`
	DefaultCategoryLimit  uint64             `cbor:"7,keyasint" json:"defaultCategoryLimit"`
	CategoryLimits        map[string]uint64  `cbor:"8,keyasint,omitempty" json:"categoryLimits,omitempty"`
	CommitDuration        int64              `cbor:"9,keyasint" json:"commitDuration"`
	RevealDuration        int64              `cbor:"10,keyasint" json:"revealDuration"`
	CancellationThreshold uint32             `cbor:"11,keyasint" json:"cancellationThresholdBps"`
	CountingMethod        dao.CountingMethod `cbor:"12,keyasint" json:"countingMethod"`
	GlobalSoftCapEnabled  bool               `cbor:"13,keyasint" json:"globalSoftCapEnabled"`
	GlobalSoftCap         dao.Amount         `cbor:"14,keyasint" json:"globalSoftCap"`
}

// Validate checks the settings on their own; it does not look at state.
func (c *Settings) Validate() error {
	if c.Admin != "" && !c.Admin.IsValid() {
		return fail(ErrInvalidArgument, "invalid admin %q", c.Admin)
	}
	if len(c.Owners) == 0 {
		return fail(ErrInvalidArgument, "multisig needs at least one owner")
	}
	seen := make(map[sdk.Address]bool, len(c.Owners))
	for _, o := range c.Owners {
		if !o.IsValid() {
			return fail(ErrInvalidArgument, "invalid owner %q", o)
		}
		if seen[o.Canonical()] {
			return fail(ErrInvalidArgument, "duplicate owner %s", o)
		}
		seen[o.Canonical()] = true
	}
	if c.Required == 0 || int(c.Required) > len(c.Owners) {
		return fail(ErrInvalidArgument, "required must be between 1 and %d", len(c.Owners))
	}
	if c.WeightBaseUnit.IsZero() {
		return fail(ErrInvalidArgument, "weight base unit must be greater than zero")
	}
	if c.CommitDuration <= 0 || c.RevealDuration <= 0 {
		return fail(ErrInvalidArgument, "commit and reveal durations must be positive")
	}
	if c.CancellationThreshold > MaxBasisPoints {
		return fail(ErrInvalidArgument, "cancellation threshold above %d bps", MaxBasisPoints)
	}
	if c.GlobalSoftCapEnabled && c.GlobalSoftCap.IsZero() {
		return fail(ErrInvalidArgument, "global soft cap enabled without a ceiling")
	}
	return nil
}

func (c *Settings) isOwner(addr sdk.Address) bool {
	for _, o := range c.Owners {
		if o.Canonical() == addr.Canonical() {
			return true
		}
	}
	return false
}

// applyDefaults fills zero durations from the fallbacks.
func (c *Settings) applyDefaults() {
	if c.CommitDuration == 0 {
		c.CommitDuration = FallbackCommitDuration
	}
	if c.RevealDuration == 0 {
		c.RevealDuration = FallbackRevealDuration
	}
}

// -----------------------------------------------------------------------------
// Contract Initialization
// -----------------------------------------------------------------------------

// Init stores the deployment settings. An empty admin makes the caller admin.
// Example payload: contract.Init(state, contract.Settings{Owners: owners, Required: 2, WeightBaseUnit: dao.Ether(1)})
func Init(s *LedgerState, cfg Settings) error {
	if s.Initialized() {
		return ErrAlreadyInitialized
	}
	if cfg.Admin == "" {
		cfg.Admin = s.Sender()
	}
	cfg.Admin = cfg.Admin.Canonical()
	owners := make([]sdk.Address, len(cfg.Owners))
	for i, o := range cfg.Owners {
		owners[i] = o.Canonical()
	}
	cfg.Owners = owners
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return err
	}
	for category, limit := range cfg.CategoryLimits {
		s.setCategoryLimit(category, limit)
	}
	cfg.CategoryLimits = nil
	if err := s.saveSettings(&cfg); err != nil {
		return err
	}
	s.emit("in", map[string]string{
		"admin":    cfg.Admin.String(),
		"owners":   joinAddresses(cfg.Owners),
		"required": strconv.FormatUint(uint64(cfg.Required), 10),
	}, nil)
	return nil
}

// SetBallotDefaults changes the round defaults used when StartRound leaves them out.
func SetBallotDefaults(s *LedgerState, commit, reveal int64, thresholdBps uint32, method dao.CountingMethod) error {
	if err := s.requireAdmin(); err != nil {
		return err
	}
	cfg, _ := s.Settings()
	next := *cfg
	next.CommitDuration = commit
	next.RevealDuration = reveal
	next.CancellationThreshold = thresholdBps
	next.CountingMethod = method
	if err := next.Validate(); err != nil {
		return err
	}
	if err := s.saveSettings(&next); err != nil {
		return err
	}
	s.emit("cfg", map[string]string{
		"commit": strconv.FormatInt(commit, 10),
		"reveal": strconv.FormatInt(reveal, 10),
		"th":     strconv.FormatUint(uint64(thresholdBps), 10),
		"m":      method.String(),
	}, nil)
	return nil
}

// SetGlobalSoftCap toggles the aggregate ceiling across all projects.
// Lowering the ceiling below what is already allocated only blocks new allocations.
func SetGlobalSoftCap(s *LedgerState, enabled bool, ceiling dao.Amount) error {
	if err := s.requireAdmin(); err != nil {
		return err
	}
	cfg, _ := s.Settings()
	next := *cfg
	next.GlobalSoftCapEnabled = enabled
	next.GlobalSoftCap = ceiling
	if err := next.Validate(); err != nil {
		return err
	}
	if err := s.saveSettings(&next); err != nil {
		return err
	}
	s.emit("cfg", map[string]string{"gsc": strconv.FormatBool(enabled)}, map[string]string{"ceiling": ceiling.String()})
	return nil
}

func joinAddresses(addrs []sdk.Address) string {
	parts := make([]string, len(addrs))
	for i, a := range addrs {
		parts[i] = a.String()
	}
	return strings.Join(parts, ",")
}
