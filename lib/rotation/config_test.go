package rotation

import (
	"testing"

	"github.com/onkernel/amirotate/lib/templates"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	require.Equal(t, 3, cfg.Keep)
	require.Equal(t, templates.DefaultVersion, cfg.SourceVersion)
	require.Equal(t, 1, cfg.Parallelism)
	require.False(t, cfg.DryRun)
	require.NoError(t, cfg.Validate())
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		valid  bool
	}{
		{"keep zero", func(c *Config) { c.Keep = 0 }, true},
		{"negative keep", func(c *Config) { c.Keep = -1 }, false},
		{"latest source", func(c *Config) { c.SourceVersion = templates.LatestVersion }, true},
		{"numeric source", func(c *Config) { c.SourceVersion = "4" }, false},
		{"zero parallelism", func(c *Config) { c.Parallelism = 0 }, false},
		{"parallel", func(c *Config) { c.Parallelism = 8 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.valid {
				require.NoError(t, err)
			} else {
				require.ErrorIs(t, err, ErrInvalidConfig)
			}
		})
	}
}
