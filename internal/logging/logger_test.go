package logging

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"storefront-catalog/internal/config"
)

func TestNewLogger_ParsesLevel(t *testing.T) {
	logger := NewLogger(&config.Config{AppEnv: "production", LogLevel: "warn"})
	assert.Equal(t, zerolog.WarnLevel, logger.GetLevel())
}

func TestNewLogger_FallsBackToInfo(t *testing.T) {
	logger := NewLogger(&config.Config{AppEnv: "production", LogLevel: "loud"})
	assert.Equal(t, zerolog.InfoLevel, logger.GetLevel())

	logger = NewLogger(&config.Config{AppEnv: "development"})
	assert.Equal(t, zerolog.InfoLevel, logger.GetLevel())
}
