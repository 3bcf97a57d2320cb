package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRiskThresholdsValidate(t *testing.T) {
	cases := []struct {
		name       string
		thresholds RiskThresholds
		wantErr    bool
	}{
		{"defaults", RiskThresholds{Medium: 75, High: 95, Critical: 97}, false},
		{"custom ordering", RiskThresholds{Medium: 50, High: 70, Critical: 90}, false},
		{"equal bands", RiskThresholds{Medium: 75, High: 75, Critical: 97}, true},
		{"descending", RiskThresholds{Medium: 95, High: 75, Critical: 97}, true},
		{"zero medium", RiskThresholds{Medium: 0, High: 50, Critical: 90}, true},
		{"critical at cap", RiskThresholds{Medium: 75, High: 95, Critical: 100}, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.thresholds.Validate()
			if tc.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestHTTPAddress(t *testing.T) {
	require.Equal(t, ":8080", Config{AppPort: "8080"}.HTTPAddress())
	require.Equal(t, ":9000", Config{AppPort: ":9000"}.HTTPAddress())
}

func TestSplitList(t *testing.T) {
	require.Nil(t, splitList(""))
	require.Equal(t, []string{"a@x.test"}, splitList("a@x.test"))
	require.Equal(t, []string{"a@x.test", "b@x.test"}, splitList(" a@x.test , b@x.test ,"))
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("EWS_JWT_SECRET", "test-secret")

	cfg, err := Load()
	require.NoError(t, err)

	require.Equal(t, "Early Warning API", cfg.AppName)
	require.Equal(t, "8080", cfg.AppPort)
	require.Equal(t, 5*time.Minute, cfg.FollowupCacheTTL)
	require.Equal(t, 4, cfg.BatchWorkers)
	require.Equal(t, "ews:alerts", cfg.NotifyChannel)
	require.InDelta(t, 75, cfg.Thresholds.Medium, 0.001)
	require.InDelta(t, 95, cfg.Thresholds.High, 0.001)
	require.InDelta(t, 97, cfg.Thresholds.Critical, 0.001)
}

func TestLoadRequiresJWTSecret(t *testing.T) {
	t.Setenv("EWS_JWT_SECRET", "")

	_, err := Load()
	require.Error(t, err)
}

func TestLoadRejectsBadThresholds(t *testing.T) {
	t.Setenv("EWS_JWT_SECRET", "test-secret")
	t.Setenv("EWS_RISK_THRESHOLD_MEDIUM", "96")

	_, err := Load()
	require.Error(t, err)
}

func TestLoadParsesOverrides(t *testing.T) {
	t.Setenv("EWS_JWT_SECRET", "test-secret")
	t.Setenv("EWS_APP_PORT", "9090")
	t.Setenv("EWS_BATCH_WORKERS", "8")
	t.Setenv("EWS_FOLLOWUP_CACHE_TTL", "90s")
	t.Setenv("EWS_NOTIFY_RECIPIENTS", "a@x.test,b@x.test")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "9090", cfg.AppPort)
	require.Equal(t, 8, cfg.BatchWorkers)
	require.Equal(t, 90*time.Second, cfg.FollowupCacheTTL)
	require.Equal(t, []string{"a@x.test", "b@x.test"}, cfg.NotifyRecipients)
}
