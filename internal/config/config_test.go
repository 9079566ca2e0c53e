package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ---------------------------------------------------------------------------
// Helper function tests
// ---------------------------------------------------------------------------

func TestGetEnv(t *testing.T) {
	tests := []struct {
		name     string
		key      string
		setVal   *string // nil = don't set; pointer to distinguish "" from unset
		fallback string
		want     string
	}{
		{name: "returns fallback when unset", key: "GRIOT_TEST_GETENV_UNSET", setVal: nil, fallback: "default", want: "default"},
		{name: "returns env value when set", key: "GRIOT_TEST_GETENV_SET", setVal: strPtr("custom"), fallback: "default", want: "custom"},
		{name: "returns fallback when empty string", key: "GRIOT_TEST_GETENV_EMPTY", setVal: strPtr(""), fallback: "default", want: "default"},
		{name: "preserves whitespace", key: "GRIOT_TEST_GETENV_WS", setVal: strPtr("  spaced  "), fallback: "x", want: "  spaced  "},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if tc.setVal != nil {
				t.Setenv(tc.key, *tc.setVal)
			}

			got := getEnv(tc.key, tc.fallback)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestGetEnvInt(t *testing.T) {
	tests := []struct {
		name     string
		key      string
		setVal   *string
		fallback int
		want     int
		wantErr  bool
	}{
		{name: "returns fallback when unset", key: "GRIOT_TEST_INT_UNSET", setVal: nil, fallback: 42, want: 42},
		{name: "parses valid int", key: "GRIOT_TEST_INT_VALID", setVal: strPtr("8080"), fallback: 0, want: 8080},
		{name: "parses negative int", key: "GRIOT_TEST_INT_NEG", setVal: strPtr("-1"), fallback: 0, want: -1},
		{name: "parses zero", key: "GRIOT_TEST_INT_ZERO", setVal: strPtr("0"), fallback: 99, want: 0},
		{name: "returns fallback for empty string", key: "GRIOT_TEST_INT_EMPTY", setVal: strPtr(""), fallback: 25, want: 25},
		{name: "errors on non-numeric", key: "GRIOT_TEST_INT_NAN", setVal: strPtr("abc"), fallback: 0, wantErr: true},
		{name: "errors on float", key: "GRIOT_TEST_INT_FLOAT", setVal: strPtr("3.14"), fallback: 0, wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if tc.setVal != nil {
				t.Setenv(tc.key, *tc.setVal)
			}

			got, err := getEnvInt(tc.key, tc.fallback)
			if tc.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tc.key)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestGetEnvDuration(t *testing.T) {
	tests := []struct {
		name     string
		key      string
		setVal   *string
		fallback time.Duration
		want     time.Duration
		wantErr  bool
	}{
		{name: "returns fallback when unset", key: "GRIOT_TEST_DUR_UNSET", setVal: nil, fallback: 5 * time.Second, want: 5 * time.Second},
		{name: "parses seconds", key: "GRIOT_TEST_DUR_SEC", setVal: strPtr("30s"), fallback: 0, want: 30 * time.Second},
		{name: "parses composite", key: "GRIOT_TEST_DUR_COMP", setVal: strPtr("1h30m"), fallback: 0, want: 90 * time.Minute},
		{name: "parses zero", key: "GRIOT_TEST_DUR_ZERO", setVal: strPtr("0s"), fallback: 5 * time.Second, want: 0},
		{name: "errors on invalid", key: "GRIOT_TEST_DUR_INV", setVal: strPtr("notaduration"), fallback: 0, wantErr: true},
		{name: "errors on bare number", key: "GRIOT_TEST_DUR_BARE", setVal: strPtr("30"), fallback: 0, wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if tc.setVal != nil {
				t.Setenv(tc.key, *tc.setVal)
			}

			got, err := getEnvDuration(tc.key, tc.fallback)
			if tc.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tc.key)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestGetEnvList(t *testing.T) {
	tests := []struct {
		name     string
		key      string
		setVal   *string
		fallback []string
		want     []string
	}{
		{name: "returns fallback when unset", key: "GRIOT_TEST_LIST_UNSET", setVal: nil, fallback: nil, want: nil},
		{name: "single value", key: "GRIOT_TEST_LIST_ONE", setVal: strPtr("tenant_id"), want: []string{"tenant_id"}},
		{name: "splits on comma", key: "GRIOT_TEST_LIST_MANY", setVal: strPtr("tenant_id,order_id"), want: []string{"tenant_id", "order_id"}},
		{name: "trims whitespace", key: "GRIOT_TEST_LIST_WS", setVal: strPtr(" tenant_id , order_id "), want: []string{"tenant_id", "order_id"}},
		{name: "drops empty items", key: "GRIOT_TEST_LIST_EMPTYITEM", setVal: strPtr("tenant_id,,order_id,"), want: []string{"tenant_id", "order_id"}},
		{name: "keeps case", key: "GRIOT_TEST_LIST_CASE", setVal: strPtr("TenantID"), want: []string{"TenantID"}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if tc.setVal != nil {
				t.Setenv(tc.key, *tc.setVal)
			}

			got := getEnvList(tc.key, tc.fallback)
			assert.Equal(t, tc.want, got)
		})
	}
}

// ---------------------------------------------------------------------------
// Load() happy paths
// ---------------------------------------------------------------------------

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)
	require.NotNil(t, cfg)

	// Database defaults.
	assert.Equal(t, "localhost", cfg.Database.Host)
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.Equal(t, "griot", cfg.Database.User)
	assert.Empty(t, cfg.Database.Password)
	assert.Equal(t, "griot_dev", cfg.Database.DBName)
	assert.Equal(t, "disable", cfg.Database.SSLMode)
	assert.Equal(t, 25, cfg.Database.MaxConns)

	// Server defaults.
	assert.Equal(t, "127.0.0.1:9544", cfg.Server.Addr)
	assert.Equal(t, 10*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, 30*time.Second, cfg.Server.WriteTimeout)

	// Maintenance defaults.
	assert.Equal(t, "17 2 * * *", cfg.Maintenance.Schedule)
	assert.Equal(t, 1, cfg.Maintenance.PartitionLeadMonths)
	assert.Nil(t, cfg.Maintenance.HotKeys)
	assert.Equal(t, "UTC", cfg.Maintenance.IndexTimeZone)
}

func TestLoad_AllCustomValues(t *testing.T) {
	envs := map[string]string{
		// Database
		"GRIOT_DB_HOST":      "db.prod.internal",
		"GRIOT_DB_PORT":      "5433",
		"GRIOT_DB_USER":      "prod_user",
		"GRIOT_DB_PASSWORD":  "s3cret!",
		"GRIOT_DB_NAME":      "griot_prod",
		"GRIOT_DB_SSLMODE":   "require",
		"GRIOT_DB_MAX_CONNS": "50",
		// Server
		"GRIOT_SERVER_ADDR":          ":9090",
		"GRIOT_SERVER_READ_TIMEOUT":  "5s",
		"GRIOT_SERVER_WRITE_TIMEOUT": "15s",
		// Maintenance
		"GRIOT_MAINTENANCE_SCHEDULE":  "0 4 * * 0",
		"GRIOT_PARTITION_LEAD_MONTHS": "3",
		"GRIOT_HOT_KEYS":              "tenant_id,order_id",
		"GRIOT_INDEX_TIMEZONE":        "UTC",
	}

	for k, v := range envs {
		t.Setenv(k, v)
	}

	cfg, err := Load()
	require.NoError(t, err)
	require.NotNil(t, cfg)

	// Database
	assert.Equal(t, "db.prod.internal", cfg.Database.Host)
	assert.Equal(t, 5433, cfg.Database.Port)
	assert.Equal(t, "prod_user", cfg.Database.User)
	assert.Equal(t, "s3cret!", cfg.Database.Password)
	assert.Equal(t, "griot_prod", cfg.Database.DBName)
	assert.Equal(t, "require", cfg.Database.SSLMode)
	assert.Equal(t, 50, cfg.Database.MaxConns)

	// Server
	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, 5*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, 15*time.Second, cfg.Server.WriteTimeout)

	// Maintenance
	assert.Equal(t, "0 4 * * 0", cfg.Maintenance.Schedule)
	assert.Equal(t, 3, cfg.Maintenance.PartitionLeadMonths)
	assert.Equal(t, []string{"tenant_id", "order_id"}, cfg.Maintenance.HotKeys)
	assert.Equal(t, "UTC", cfg.Maintenance.IndexTimeZone)
}

// ---------------------------------------------------------------------------
// Load() error cases
// ---------------------------------------------------------------------------

func TestLoad_InvalidEnvVars(t *testing.T) {
	tests := []struct {
		name   string
		envKey string
		envVal string
		errMsg string
	}{
		// DB_PORT parse errors
		{name: "DB_PORT not a number", envKey: "GRIOT_DB_PORT", envVal: "abc", errMsg: "GRIOT_DB_PORT"},
		{name: "DB_PORT float", envKey: "GRIOT_DB_PORT", envVal: "3.14", errMsg: "GRIOT_DB_PORT"},

		// DB_PORT validation errors (parses fine, fails bounds)
		{name: "DB_PORT zero", envKey: "GRIOT_DB_PORT", envVal: "0", errMsg: "GRIOT_DB_PORT"},
		{name: "DB_PORT negative", envKey: "GRIOT_DB_PORT", envVal: "-1", errMsg: "GRIOT_DB_PORT"},
		{name: "DB_PORT too high", envKey: "GRIOT_DB_PORT", envVal: "65536", errMsg: "GRIOT_DB_PORT"},

		// DB_MAX_CONNS
		{name: "DB_MAX_CONNS zero", envKey: "GRIOT_DB_MAX_CONNS", envVal: "0", errMsg: "GRIOT_DB_MAX_CONNS"},
		{name: "DB_MAX_CONNS negative", envKey: "GRIOT_DB_MAX_CONNS", envVal: "-5", errMsg: "GRIOT_DB_MAX_CONNS"},
		{name: "DB_MAX_CONNS not a number", envKey: "GRIOT_DB_MAX_CONNS", envVal: "many", errMsg: "GRIOT_DB_MAX_CONNS"},

		// Server timeouts
		{name: "SERVER_READ_TIMEOUT invalid", envKey: "GRIOT_SERVER_READ_TIMEOUT", envVal: "notduration", errMsg: "GRIOT_SERVER_READ_TIMEOUT"},
		{name: "SERVER_WRITE_TIMEOUT invalid", envKey: "GRIOT_SERVER_WRITE_TIMEOUT", envVal: "notduration", errMsg: "GRIOT_SERVER_WRITE_TIMEOUT"},
		{name: "SERVER_READ_TIMEOUT zero", envKey: "GRIOT_SERVER_READ_TIMEOUT", envVal: "0s", errMsg: "GRIOT_SERVER_READ_TIMEOUT"},
		{name: "SERVER_WRITE_TIMEOUT zero", envKey: "GRIOT_SERVER_WRITE_TIMEOUT", envVal: "0s", errMsg: "GRIOT_SERVER_WRITE_TIMEOUT"},

		// Maintenance
		{name: "LEAD_MONTHS negative", envKey: "GRIOT_PARTITION_LEAD_MONTHS", envVal: "-1", errMsg: "GRIOT_PARTITION_LEAD_MONTHS"},
		{name: "LEAD_MONTHS not a number", envKey: "GRIOT_PARTITION_LEAD_MONTHS", envVal: "soon", errMsg: "GRIOT_PARTITION_LEAD_MONTHS"},
		{name: "SCHEDULE not a cron expression", envKey: "GRIOT_MAINTENANCE_SCHEDULE", envVal: "whenever", errMsg: "GRIOT_MAINTENANCE_SCHEDULE"},
		{name: "SCHEDULE too many fields", envKey: "GRIOT_MAINTENANCE_SCHEDULE", envVal: "* * * * * * *", errMsg: "GRIOT_MAINTENANCE_SCHEDULE"},
		{name: "TIMEZONE unknown", envKey: "GRIOT_INDEX_TIMEZONE", envVal: "Not/AZone", errMsg: "GRIOT_INDEX_TIMEZONE"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv(tc.envKey, tc.envVal)

			cfg, err := Load()
			require.Error(t, err, "expected error for %s=%q", tc.envKey, tc.envVal)
			assert.Nil(t, cfg)
			assert.Contains(t, err.Error(), tc.errMsg)
		})
	}
}

// ---------------------------------------------------------------------------
// Load() edge cases -- boundary values
// ---------------------------------------------------------------------------

func TestLoad_BoundaryValues(t *testing.T) {
	tests := []struct {
		name     string
		envs     map[string]string
		assertFn func(t *testing.T, cfg *Config)
	}{
		{
			name: "port min boundary 1",
			envs: map[string]string{"GRIOT_DB_PORT": "1"},
			assertFn: func(t *testing.T, cfg *Config) {
				t.Helper()
				assert.Equal(t, 1, cfg.Database.Port)
			},
		},
		{
			name: "port max boundary 65535",
			envs: map[string]string{"GRIOT_DB_PORT": "65535"},
			assertFn: func(t *testing.T, cfg *Config) {
				t.Helper()
				assert.Equal(t, 65535, cfg.Database.Port)
			},
		},
		{
			name: "MaxConns min boundary 1",
			envs: map[string]string{"GRIOT_DB_MAX_CONNS": "1"},
			assertFn: func(t *testing.T, cfg *Config) {
				t.Helper()
				assert.Equal(t, 1, cfg.Database.MaxConns)
			},
		},
		{
			name: "lead months zero disables lookahead",
			envs: map[string]string{"GRIOT_PARTITION_LEAD_MONTHS": "0"},
			assertFn: func(t *testing.T, cfg *Config) {
				t.Helper()
				assert.Equal(t, 0, cfg.Maintenance.PartitionLeadMonths)
			},
		},
		{
			name: "cron descriptor accepted",
			envs: map[string]string{"GRIOT_MAINTENANCE_SCHEDULE": "@hourly"},
			assertFn: func(t *testing.T, cfg *Config) {
				t.Helper()
				assert.Equal(t, "@hourly", cfg.Maintenance.Schedule)
			},
		},
		{
			name: "duration 1ns is valid",
			envs: map[string]string{
				"GRIOT_SERVER_READ_TIMEOUT":  "1ns",
				"GRIOT_SERVER_WRITE_TIMEOUT": "1ns",
			},
			assertFn: func(t *testing.T, cfg *Config) {
				t.Helper()
				assert.Equal(t, time.Nanosecond, cfg.Server.ReadTimeout)
				assert.Equal(t, time.Nanosecond, cfg.Server.WriteTimeout)
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			for k, v := range tc.envs {
				t.Setenv(k, v)
			}

			cfg, err := Load()
			require.NoError(t, err)
			require.NotNil(t, cfg)
			tc.assertFn(t, cfg)
		})
	}
}

// ---------------------------------------------------------------------------
// DSN() output format
// ---------------------------------------------------------------------------

func TestDatabaseConfig_DSN(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		cfg  DatabaseConfig
		want string
	}{
		{
			name: "default dev values",
			cfg: DatabaseConfig{
				Host: "localhost", Port: 5432, User: "griot",
				Password: "", DBName: "griot_dev", SSLMode: "disable",
			},
			want: "host=localhost port=5432 user=griot password= dbname=griot_dev sslmode=disable",
		},
		{
			name: "production values",
			cfg: DatabaseConfig{
				Host: "db.prod", Port: 5433, User: "admin",
				Password: "p@ss!", DBName: "griot_prod", SSLMode: "require",
			},
			want: "host=db.prod port=5433 user=admin password=p@ss! dbname=griot_prod sslmode=require",
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, tc.cfg.DSN())
		})
	}
}

// ---------------------------------------------------------------------------
// validate() direct tests
// ---------------------------------------------------------------------------

func TestValidate(t *testing.T) {
	t.Parallel()

	// validBase returns a Config that passes validation.
	validBase := func() *Config {
		return &Config{
			Database: DatabaseConfig{Port: 5432, MaxConns: 25},
			Server: ServerConfig{
				ReadTimeout:  10 * time.Second,
				WriteTimeout: 30 * time.Second,
			},
			Maintenance: MaintenanceConfig{
				Schedule:            "17 2 * * *",
				PartitionLeadMonths: 1,
				IndexTimeZone:       "UTC",
			},
		}
	}

	t.Run("valid config passes", func(t *testing.T) {
		t.Parallel()
		assert.NoError(t, validBase().validate())
	})

	t.Run("port 0 fails", func(t *testing.T) {
		t.Parallel()
		c := validBase()
		c.Database.Port = 0
		assert.ErrorContains(t, c.validate(), "GRIOT_DB_PORT")
	})

	t.Run("port 65536 fails", func(t *testing.T) {
		t.Parallel()
		c := validBase()
		c.Database.Port = 65536
		assert.ErrorContains(t, c.validate(), "GRIOT_DB_PORT")
	})

	t.Run("MaxConns 0 fails", func(t *testing.T) {
		t.Parallel()
		c := validBase()
		c.Database.MaxConns = 0
		assert.ErrorContains(t, c.validate(), "GRIOT_DB_MAX_CONNS")
	})

	t.Run("ReadTimeout 0 fails", func(t *testing.T) {
		t.Parallel()
		c := validBase()
		c.Server.ReadTimeout = 0
		assert.ErrorContains(t, c.validate(), "GRIOT_SERVER_READ_TIMEOUT")
	})

	t.Run("WriteTimeout negative fails", func(t *testing.T) {
		t.Parallel()
		c := validBase()
		c.Server.WriteTimeout = -time.Second
		assert.ErrorContains(t, c.validate(), "GRIOT_SERVER_WRITE_TIMEOUT")
	})

	t.Run("negative lead months fails", func(t *testing.T) {
		t.Parallel()
		c := validBase()
		c.Maintenance.PartitionLeadMonths = -1
		assert.ErrorContains(t, c.validate(), "GRIOT_PARTITION_LEAD_MONTHS")
	})

	t.Run("bad schedule fails", func(t *testing.T) {
		t.Parallel()
		c := validBase()
		c.Maintenance.Schedule = "every now and then"
		assert.ErrorContains(t, c.validate(), "GRIOT_MAINTENANCE_SCHEDULE")
	})

	t.Run("bad timezone fails", func(t *testing.T) {
		t.Parallel()
		c := validBase()
		c.Maintenance.IndexTimeZone = "Not/AZone"
		assert.ErrorContains(t, c.validate(), "GRIOT_INDEX_TIMEZONE")
	})
}

// ---------------------------------------------------------------------------
// Test helper
// ---------------------------------------------------------------------------

func strPtr(s string) *string {
	return &s
}
