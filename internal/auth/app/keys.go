package app

import (
	"fmt"
	"log/slog"

	"github.com/aussiebroadwan/clientauth/pkg/jwtx"
)

// InitAuthKeys generates the in-memory signing key pool. Keys are not
// persisted, so every token issued before a restart stops verifying and
// clients must authenticate again.
func InitAuthKeys(cfg Config, logger *slog.Logger) (*jwtx.KeyManager, error) {
	logger.Info("initializing ephemeral key manager",
		"algorithm", cfg.Keys.Algorithm,
		"num_keys", cfg.Keys.NumKeys,
	)

	keyManager, err := jwtx.NewEphemeralKeyManager(jwtx.KeyManagerOptions{
		Algorithm: cfg.Keys.Algorithm,
		Issuer:    cfg.Issuer,
		NumKeys:   cfg.Keys.NumKeys,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize ephemeral key manager: %w", err)
	}

	logger.Info("generated ephemeral signing keys",
		"algorithm", keyManager.Algorithm(),
		"num_keys", keyManager.NumSigners(),
		"issuer", cfg.Issuer,
	)
	logger.Warn("tokens issued before this start no longer verify")

	return keyManager, nil
}
