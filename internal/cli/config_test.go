package cli

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	tcerrors "github.com/vnykmshr/taskchain/pkg/common/errors"
)

func newFlags(t *testing.T, args ...string) *viper.Viper {
	t.Helper()
	v := viper.New()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	require.NoError(t, BindFlags(fs, v))
	require.NoError(t, fs.Parse(args))
	return v
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, 10, cfg.Workers)
	assert.Equal(t, "taskchain", cfg.Name)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, 100, cfg.Log.MaxSizeMB)
	assert.Equal(t, "/metrics", cfg.Metrics.Path)
	assert.Equal(t, "taskchain:events", cfg.Redis.Channel)
	assert.Equal(t, 1.0, cfg.Demo.Scale)
	assert.Equal(t, time.Second, cfg.Demo.SyncTimeout)
	assert.Equal(t, 3*time.Second, cfg.Demo.TimerDelay)
	assert.Equal(t, 2*time.Second, cfg.Demo.ShutdownTimeout)
	assert.NoError(t, cfg.Validate())
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(newFlags(t), "")
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoadPrecedence(t *testing.T) {
	file := filepath.Join(t.TempDir(), "taskchain.yaml")
	require.NoError(t, os.WriteFile(file, []byte(`
workers: 3
name: from-file
log:
  level: debug
  format: console
demo:
  sync-timeout: 250ms
  scale: 0.5
`), 0o600))

	t.Setenv("TASKCHAIN_NAME", "from-env")
	t.Setenv("TASKCHAIN_DEMO_TIMER_DELAY", "750ms")

	cfg, err := Load(newFlags(t, "--log-format=json"), file)
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.Workers)
	assert.Equal(t, "from-env", cfg.Name)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 250*time.Millisecond, cfg.Demo.SyncTimeout)
	assert.Equal(t, 750*time.Millisecond, cfg.Demo.TimerDelay)
	assert.Equal(t, 0.5, cfg.Demo.Scale)
	assert.Equal(t, 2*time.Second, cfg.Demo.ShutdownTimeout)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(newFlags(t), filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"zero workers", []string{"--workers=0"}},
		{"unknown format", []string{"--log-format=xml"}},
		{"negative scale", []string{"--demo-scale=-1"}},
		{"zero shutdown timeout", []string{"--demo-shutdown-timeout=0s"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(newFlags(t, tt.args...), "")
			require.Error(t, err)
			assert.True(t, tcerrors.IsValidationError(err))
		})
	}
}
