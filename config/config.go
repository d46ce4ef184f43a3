// Package config loads the treasury node configuration.
//
// Values resolve in order: built-in defaults, then the YAML file, then
// TREASURY_* environment variables for the settings that differ between
// deployments (store driver and DSN, log level and file).
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"commons_treasury/contract"
	"commons_treasury/contract/dao"
	"commons_treasury/sdk"

	"go.uber.org/multierr"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix of every environment override.
const EnvPrefix = "TREASURY_"

// Config is the full node configuration.
type Config struct {
	Contract ContractConfig `yaml:"contract"`
	Store    StoreConfig    `yaml:"store"`
	Log      LogConfig      `yaml:"log"`
}

// ContractConfig is what `init` is called with on a fresh store.
// Amounts take the text form: "1eth", "0.5ether", "1000gwei" or plain wei.
type ContractConfig struct {
	// ID is the contract's own account on the host.
	ID       string   `yaml:"id"`
	Admin    string   `yaml:"admin"`
	Owners   []string `yaml:"owners"`
	Required uint32   `yaml:"required"`

	WeightBaseUnit dao.Amount `yaml:"weight_base_unit"`
	WeightCap      dao.Amount `yaml:"weight_cap"`
	MinDonation    dao.Amount `yaml:"min_donation"`

	DefaultCategoryLimit uint64            `yaml:"default_category_limit"`
	CategoryLimits       map[string]uint64 `yaml:"category_limits"`

	CommitDuration           time.Duration      `yaml:"commit_duration"`
	RevealDuration           time.Duration      `yaml:"reveal_duration"`
	CancellationThresholdBps uint32             `yaml:"cancellation_threshold_bps"`
	CountingMethod           dao.CountingMethod `yaml:"counting_method"`

	// GlobalSoftCap bounds allocations across all projects; zero disables it.
	GlobalSoftCap dao.Amount `yaml:"global_soft_cap"`
}

// StoreConfig selects the persistence backend.
type StoreConfig struct {
	// Driver is "sqlite" or "mysql".
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

// LogConfig controls the zap logger and the optional rotating file.
type LogConfig struct {
	Level string `yaml:"level"`
	// File enables a rotating log file next to stderr output.
	File string `yaml:"file"`
	// RotateKB is the size at which the file rolls over.
	RotateKB int64 `yaml:"rotate_kb"`
	// MaxRolls is how many rolled files are kept.
	MaxRolls int `yaml:"max_rolls"`
}

// Default returns the configuration used before the file is read.
func Default() *Config {
	return &Config{
		Contract: ContractConfig{
			ID:             "contract:treasury",
			Required:       1,
			WeightBaseUnit: dao.WeiPerEther,
			CommitDuration: 24 * time.Hour,
			RevealDuration: 24 * time.Hour,
			CountingMethod: dao.CountWeightedSum,
		},
		Store: StoreConfig{
			Driver: "sqlite",
			DSN:    "treasury.db",
		},
		Log: LogConfig{
			Level:    "info",
			RotateKB: 10 * 1024,
			MaxRolls: 30,
		},
	}
}

// Load reads path on top of the defaults and applies environment overrides.
// An empty path skips the file. The result is validated.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("parsing config %s: %w", path, err)
		}
	}
	cfg.applyEnv(os.LookupEnv)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) {
	set := func(name string, dst *string) {
		if v, ok := lookup(EnvPrefix + name); ok && v != "" {
			*dst = v
		}
	}
	set("STORE_DRIVER", &c.Store.Driver)
	set("STORE_DSN", &c.Store.DSN)
	set("LOG_LEVEL", &c.Log.Level)
	set("LOG_FILE", &c.Log.File)
	set("CONTRACT_ID", &c.Contract.ID)
}

// Validate reports every problem with the node settings at once. The contract
// section is checked separately by ContractConfig.Validate.
func (c *Config) Validate() error {
	var err error
	if !sdk.Address(c.Contract.ID).IsValid() {
		err = multierr.Append(err, fmt.Errorf("contract.id: invalid address %q", c.Contract.ID))
	}
	switch strings.ToLower(c.Store.Driver) {
	case "sqlite", "mysql":
	default:
		err = multierr.Append(err, fmt.Errorf("store.driver: unsupported driver %q", c.Store.Driver))
	}
	if c.Store.DSN == "" {
		err = multierr.Append(err, errors.New("store.dsn: required"))
	}
	if _, lvlErr := zapcore.ParseLevel(c.Log.Level); lvlErr != nil {
		err = multierr.Append(err, fmt.Errorf("log.level: %w", lvlErr))
	}
	if c.Log.File != "" && (c.Log.RotateKB <= 0 || c.Log.MaxRolls < 0) {
		err = multierr.Append(err, errors.New("log: rotate_kb must be positive and max_rolls non-negative"))
	}
	return err
}

// Validate checks the section `init` is built from. Other actions run against
// an already initialized store and never read it.
func (c ContractConfig) Validate() error {
	var err error
	if c.CommitDuration%time.Second != 0 || c.RevealDuration%time.Second != 0 {
		err = multierr.Append(err, errors.New("contract: durations must be whole seconds"))
	}
	// an empty admin is allowed; Init makes the caller admin
	settings := c.ToSettings()
	if sErr := settings.Validate(); sErr != nil {
		err = multierr.Append(err, fmt.Errorf("contract: %w", sErr))
	}
	return err
}

// ToSettings converts the contract section into the value Init stores.
func (c ContractConfig) ToSettings() contract.Settings {
	owners := make([]sdk.Address, 0, len(c.Owners))
	for _, o := range c.Owners {
		owners = append(owners, sdk.Address(strings.TrimSpace(o)))
	}
	var limits map[string]uint64
	if len(c.CategoryLimits) > 0 {
		limits = make(map[string]uint64, len(c.CategoryLimits))
		for k, v := range c.CategoryLimits {
			limits[strings.TrimSpace(k)] = v
		}
	}
	return contract.Settings{
		Admin:                 sdk.Address(c.Admin),
		Owners:                owners,
		Required:              c.Required,
		WeightCap:             c.WeightCap,
		WeightBaseUnit:        c.WeightBaseUnit,
		MinDonation:           c.MinDonation,
		DefaultCategoryLimit:  c.DefaultCategoryLimit,
		CategoryLimits:        limits,
		CommitDuration:        int64(c.CommitDuration / time.Second),
		RevealDuration:        int64(c.RevealDuration / time.Second),
		CancellationThreshold: c.CancellationThresholdBps,
		CountingMethod:        c.CountingMethod,
		GlobalSoftCapEnabled:  !c.GlobalSoftCap.IsZero(),
		GlobalSoftCap:         c.GlobalSoftCap,
	}
}
