package app

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestApplyRuntimeDefaultsGeneratesMissingSecrets(t *testing.T) {
	cfg := &Config{}

	generated, err := ApplyRuntimeDefaults(cfg)
	require.NoError(t, err)

	require.NotEmpty(t, cfg.Auth.JWT.AccessSecret)
	require.NotEmpty(t, cfg.Auth.JWT.RefreshSecret)
	require.NotEqual(t, cfg.Auth.JWT.AccessSecret, cfg.Auth.JWT.RefreshSecret)
	require.True(t, generated["auth.jwt.access_secret"])
	require.True(t, generated["auth.jwt.refresh_secret"])

	cfg.Server.Port = 8080
	require.NoError(t, cfg.Validate())
}

func TestApplyRuntimeDefaultsPreservesExistingSecrets(t *testing.T) {
	cfg := &Config{}
	cfg.Auth.JWT.AccessSecret = "existing"

	generated, err := ApplyRuntimeDefaults(cfg)
	require.NoError(t, err)
	require.Equal(t, "existing", cfg.Auth.JWT.AccessSecret)
	require.NotContains(t, generated, "auth.jwt.access_secret")
	require.True(t, generated["auth.jwt.refresh_secret"])

	_, err = ApplyRuntimeDefaults(nil)
	require.Error(t, err)
}
