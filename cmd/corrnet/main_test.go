package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dd0wney/cluso-corrnet/pkg/config"
	"github.com/dd0wney/cluso-corrnet/pkg/validation"
)

func configWith(t *testing.T, args ...string) (*config.Config, error) {
	t.Helper()
	opts, err := parseOptions(args)
	require.NoError(t, err)
	cfg := config.Default()
	opts.apply(cfg)
	return cfg, cfg.Validate()
}

func TestOptions_Threshold(t *testing.T) {
	defaultThreshold := config.Default().Network.Threshold

	tests := []struct {
		name    string
		args    []string
		want    float64
		wantErr bool
	}{
		{"not given keeps config", nil, defaultThreshold, false},
		{"zero is applied", []string{"-threshold", "0"}, 0, false},
		{"in range", []string{"-threshold=0.35"}, 0.35, false},
		{"negative is rejected", []string{"-threshold", "-0.2"}, -0.2, true},
		{"above one is rejected", []string{"-threshold", "1.1"}, 1.1, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := configWith(t, tt.args...)
			assert.Equal(t, tt.want, cfg.Network.Threshold)
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			var cfgErr *validation.ConfigurationError
			require.ErrorAs(t, err, &cfgErr)
			assert.Contains(t, err.Error(), "Threshold")
		})
	}
}

func TestOptions_Overrides(t *testing.T) {
	cfg, err := configWith(t,
		"-prices", "wide.csv",
		"-output", "out",
		"-workers", "3",
		"-log-level", "debug",
		"-quiet")
	require.NoError(t, err)

	assert.Equal(t, "wide.csv", cfg.Data.PricesFile)
	assert.Empty(t, cfg.Data.PricesDir)
	assert.Equal(t, "out", cfg.Run.OutputDir)
	assert.Equal(t, 3, cfg.Correlation.Workers)
	assert.Equal(t, "debug", cfg.Logging.Level)

	_, err = configWith(t, "-workers", "-1")
	var cfgErr *validation.ConfigurationError
	assert.ErrorAs(t, err, &cfgErr)
}

func TestParseOptions_UnknownFlag(t *testing.T) {
	_, err := parseOptions([]string{"-treshold", "0.4"})
	assert.Error(t, err)
}
