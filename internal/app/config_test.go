package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "github.com/odyssey-erp/qbportal/testing"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "s")
	t.Setenv("QBO_CLIENT_SECRET", "cs")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "sandbox", cfg.QBOEnvironment)
	assert.Equal(t, 30*time.Second, cfg.QBOUpstreamTimeout)
	assert.Equal(t, 10*time.Second, cfg.QBORefreshMargin)
	assert.Equal(t, 45*time.Second, cfg.AppRequestTimeout)
	assert.Equal(t, 5*time.Minute, cfg.OverviewCacheTTL)
	assert.Equal(t, 240*time.Hour, cfg.TokenSweepWindow)
	assert.Equal(t, 75, cfg.QBOMinorVersion)
	assert.Equal(t, []string{"com.intuit.quickbooks.accounting"}, cfg.QBOScopes)
	assert.Equal(t, StorePostgres, cfg.CredentialStore)
	assert.False(t, cfg.IsProduction())
}

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("JWT_SECRET", "s")
	t.Setenv("QBO_CLIENT_SECRET", "cs")
}

func TestLoadConfigOverrides(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("QBO_ENVIRONMENT", "Production")
	t.Setenv("APP_ENV", "production")
	t.Setenv("CREDENTIAL_STORE", "memory")
	t.Setenv("QBO_SCOPES", "com.intuit.quickbooks.accounting,openid")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "production", cfg.QBOEnvironment)
	assert.Equal(t, StoreMemory, cfg.CredentialStore)
	assert.Equal(t, []string{"com.intuit.quickbooks.accounting", "openid"}, cfg.QBOScopes)
	assert.True(t, cfg.IsProduction())
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoadConfigValidation(t *testing.T) {
	cases := map[string]map[string]string{
		"missing jwt secret": {"JWT_SECRET": ""},
		"unknown env":        {"QBO_ENVIRONMENT": "staging"},
		"unknown store":      {"CREDENTIAL_STORE": "sqlite"},
		"zero timeout":       {"QBO_UPSTREAM_TIMEOUT": "0s"},
		"negative margin":    {"QBO_REFRESH_MARGIN": "-1s"},
		"unknown log level":  {"LOG_LEVEL": "verbose"},
	}
	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			setRequiredEnv(t)
			for k, v := range env {
				t.Setenv(k, v)
			}
			_, err := LoadConfig()
			assert.Error(t, err)
		})
	}
}

func TestInTestMode(t *testing.T) {
	RefreshTestMode()
	assert.True(t, InTestMode())
}
