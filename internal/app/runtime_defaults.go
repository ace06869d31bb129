package app

import (
	"fmt"
	"strings"

	"github.com/MarcosLauremiro/miKan-api/pkg/crypto"
)

const jwtSecretBytes = 48

// ApplyRuntimeDefaults fills missing JWT secrets with random values so a
// development instance starts without a config file. Generated secrets do not
// survive a restart, so every issued token becomes invalid on the next boot.
// It returns the keys that were generated so callers can log them without
// exposing values.
func ApplyRuntimeDefaults(cfg *Config) (map[string]bool, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is nil")
	}

	generated := make(map[string]bool)
	secrets := []struct {
		key    string
		target *string
	}{
		{"auth.jwt.access_secret", &cfg.Auth.JWT.AccessSecret},
		{"auth.jwt.refresh_secret", &cfg.Auth.JWT.RefreshSecret},
	}
	for _, s := range secrets {
		if strings.TrimSpace(*s.target) != "" {
			continue
		}
		secret, err := crypto.GenerateToken(jwtSecretBytes)
		if err != nil {
			return nil, fmt.Errorf("generate %s: %w", s.key, err)
		}
		*s.target = secret
		generated[s.key] = true
	}

	return generated, nil
}
