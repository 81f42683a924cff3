package config_test

import (
	"os"
	"path/filepath"
	"pairscan/internal/config"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()

	p := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(p, []byte(body), 0o600))

	return p
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := config.Load(writeConfig(t, "verifier:\n  endpoint: https://verify.example.com/check\n"))
	require.NoError(t, err)

	require.Equal(t, "development", cfg.Environment)
	require.Equal(t, ":8080", cfg.HTTP.Addr)
	require.Equal(t, config.PolicySequential, cfg.Scan.SecondSlotPolicy)
	require.Equal(t, 200, cfg.Scan.AimSize)
	require.Equal(t, 3*time.Second, cfg.Scan.SettleDelay)
	require.Equal(t, 100*time.Millisecond, cfg.Scan.RestartDelay)
	require.True(t, cfg.Scan.AutoRestart)
	require.Equal(t, "environment", cfg.Capture.Facing)
	require.Equal(t, "dp", cfg.Verifier.FirstField)
	require.Equal(t, "productQr", cfg.Verifier.SecondField)
	require.Equal(t, "OK", cfg.Verifier.SuccessMarker)
	require.Equal(t, 8, cfg.Preview.MaxDisplayLength)
}

func TestLoad_Overrides(t *testing.T) {
	cfg, err := config.Load(writeConfig(t, `
scan:
  secondSlotPolicy: eager
  autoAuthorizeSecond: true
  aimSize: 240
verifier:
  endpoint: https://verify.example.com/check
  successMarker: MATCH
`))
	require.NoError(t, err)
	require.Equal(t, config.PolicyEager, cfg.Scan.SecondSlotPolicy)
	require.True(t, cfg.Scan.AutoAuthorizeSecond)
	require.Equal(t, 240, cfg.Scan.AimSize)
	require.Equal(t, "MATCH", cfg.Verifier.SuccessMarker)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "missing endpoint", body: "environment: production\n"},
		{name: "unknown policy", body: "scan:\n  secondSlotPolicy: parallel\nverifier:\n  endpoint: http://x\n"},
		{name: "negative aim size", body: "scan:\n  aimSize: -5\nverifier:\n  endpoint: http://x\n"},
		{name: "negative fps", body: "preview:\n  fps: -1\nverifier:\n  endpoint: http://x\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := config.Load(writeConfig(t, tt.body))
			require.Error(t, err)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "nope.yml"))
	require.Error(t, err)
}
