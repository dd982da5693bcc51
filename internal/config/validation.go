package config

import (
	"fmt"
	"strings"
)

// Validate performs comprehensive configuration validation.
// It is called by Load after all sources are merged; commands that build a
// Config by hand (tests) should call it explicitly.
func (c *Config) Validate() error {
	if c.MaxDepth < 1 || c.MaxDepth > 10000 {
		return fmt.Errorf("%w: must be between 1 and 10000, got %d", ErrInvalidMaxDepth, c.MaxDepth)
	}

	if c.TokenBudget < 1 {
		return fmt.Errorf("%w: must be positive, got %d", ErrInvalidTokenBudget, c.TokenBudget)
	}

	if c.SimilarityThreshold <= 0 || c.SimilarityThreshold > 1 {
		return fmt.Errorf("%w: must be in (0, 1], got %g", ErrInvalidSimilarityThreshold, c.SimilarityThreshold)
	}

	if strings.TrimSpace(c.MirrorDir) == "" {
		return fmt.Errorf("%w: mirror_dir must not be empty", ErrInvalidMirrorDir)
	}

	switch c.EmbedderProvider {
	case EmbedderGoogleAI, EmbedderNone:
	default:
		return fmt.Errorf("%w: %q, must be one of: %s, %s",
			ErrInvalidEmbedderProvider, c.EmbedderProvider, EmbedderGoogleAI, EmbedderNone)
	}

	if c.EmbedderProvider != EmbedderNone && strings.TrimSpace(c.EmbedderModel) == "" {
		return fmt.Errorf("%w: embedder_model must not be empty", ErrInvalidEmbedderModel)
	}

	if c.PostgresEnabled {
		if err := c.validatePostgres(); err != nil {
			return err
		}
	}

	return nil
}

// validatePostgres checks the PostgreSQL connection settings.
func (c *Config) validatePostgres() error {
	if strings.TrimSpace(c.PostgresHost) == "" {
		return fmt.Errorf("%w: host must not be empty", ErrInvalidPostgresHost)
	}

	if c.PostgresPort < 1 || c.PostgresPort > 65535 {
		return fmt.Errorf("%w: must be between 1 and 65535, got %d", ErrInvalidPostgresPort, c.PostgresPort)
	}

	if strings.TrimSpace(c.PostgresDBName) == "" {
		return fmt.Errorf("%w: database name must not be empty", ErrInvalidPostgresDBName)
	}

	validSSLModes := map[string]struct{}{
		"disable": {}, "allow": {}, "prefer": {},
		"require": {}, "verify-ca": {}, "verify-full": {},
	}
	if _, ok := validSSLModes[c.PostgresSSLMode]; !ok {
		return fmt.Errorf("%w: %q", ErrInvalidPostgresSSLMode, c.PostgresSSLMode)
	}

	return nil
}
