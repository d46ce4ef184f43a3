package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"commons_treasury/contract/dao"
	"commons_treasury/sdk"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"
)

const sampleYAML = `
contract:
  id: contract:treasury
  admin: hive:admin
  owners: [hive:owner1, hive:owner2, hive:owner3]
  required: 2
  weight_base_unit: 1eth
  weight_cap: "100"
  min_donation: 0.1eth
  default_category_limit: 5
  category_limits:
    grants: 2
  commit_duration: 2h
  reveal_duration: 30m
  cancellation_threshold_bps: 2500
  counting_method: borda
  global_soft_cap: 500eth
store:
  driver: mysql
  dsn: "user:pw@tcp(127.0.0.1:3306)/treasury?parseTime=True"
log:
  level: debug
  file: /tmp/treasury/node.log
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "treasury.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleYAML))
	require.NoError(t, err)

	assert.Equal(t, []string{"hive:owner1", "hive:owner2", "hive:owner3"}, cfg.Contract.Owners)
	assert.True(t, cfg.Contract.WeightBaseUnit.Eq(dao.Ether(1)))
	assert.True(t, cfg.Contract.WeightCap.Eq(dao.NewAmount(100)))
	assert.True(t, cfg.Contract.MinDonation.Eq(dao.MustParseAmount("0.1eth")))
	assert.Equal(t, 2*time.Hour, cfg.Contract.CommitDuration)
	assert.Equal(t, dao.CountBorda, cfg.Contract.CountingMethod)
	assert.Equal(t, "mysql", cfg.Store.Driver)
	assert.Equal(t, "debug", cfg.Log.Level)
	// untouched by the file
	assert.Equal(t, int64(10*1024), cfg.Log.RotateKB)
	assert.Equal(t, 30, cfg.Log.MaxRolls)
}

func TestToSettings(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleYAML))
	require.NoError(t, err)

	s := cfg.Contract.ToSettings()
	assert.Equal(t, sdk.Address("hive:admin"), s.Admin)
	assert.Equal(t, uint32(2), s.Required)
	assert.Equal(t, int64(7200), s.CommitDuration)
	assert.Equal(t, int64(1800), s.RevealDuration)
	assert.Equal(t, uint32(2500), s.CancellationThreshold)
	assert.Equal(t, map[string]uint64{"grants": 2}, s.CategoryLimits)
	assert.True(t, s.GlobalSoftCapEnabled)
	assert.True(t, s.GlobalSoftCap.Eq(dao.Ether(500)))
	require.NoError(t, s.Validate())
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("TREASURY_STORE_DRIVER", "sqlite")
	t.Setenv("TREASURY_STORE_DSN", "file::memory:")
	t.Setenv("TREASURY_LOG_LEVEL", "warn")

	cfg, err := Load(writeConfig(t, sampleYAML))
	require.NoError(t, err)
	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "file::memory:", cfg.Store.DSN)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestValidateCollectsEveryProblem(t *testing.T) {
	body := `
contract:
  id: treasury
  owners: [hive:owner1]
  required: 3
store:
  driver: postgres
  dsn: ""
log:
  level: loud
`
	_, err := Load(writeConfig(t, body))
	require.Error(t, err)
	errs := multierr.Errors(err)
	assert.Len(t, errs, 4)
	assert.Contains(t, err.Error(), "contract.id")
	assert.Contains(t, err.Error(), "store.driver")
	assert.Contains(t, err.Error(), "store.dsn")
	assert.Contains(t, err.Error(), "log.level")

	cfg := Default()
	require.NoError(t, yaml.Unmarshal([]byte(body), cfg))
	err = cfg.Contract.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "required must be between 1 and 1")

	cfg.Contract.CommitDuration = 1500 * time.Millisecond
	assert.Len(t, multierr.Errors(cfg.Contract.Validate()), 2)
}

// TestLoadWithoutOwners keeps the defaults usable for actions other than init.
func TestLoadWithoutOwners(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Empty(t, cfg.Contract.Owners)
	assert.Error(t, cfg.Contract.Validate())

	cfg, err = Load(writeConfig(t, "store:\n  driver: sqlite\n  dsn: \"file::memory:\"\n"))
	require.NoError(t, err)
	assert.Equal(t, "file::memory:", cfg.Store.DSN)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, "contract:\n  weight_cap: lots\n"))
	assert.ErrorIs(t, err, dao.ErrInvalidAmount)
}
