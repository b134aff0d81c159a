package logging

import (
	"io"
	"os"

	"github.com/rs/zerolog"

	"storefront-catalog/internal/config"
)

// NewLogger creates the root zerolog.Logger tagged with the service name and
// environment. Development builds get human-readable console output.
func NewLogger(cfg *config.Config) zerolog.Logger {
	var out io.Writer = os.Stdout
	if !cfg.IsProduction() {
		out = zerolog.ConsoleWriter{Out: os.Stdout}
	}

	ctx := zerolog.New(out).With().Timestamp()
	if cfg.ServiceName != "" {
		ctx = ctx.Str("service", cfg.ServiceName)
	}
	if cfg.AppEnv != "" {
		ctx = ctx.Str("env", cfg.AppEnv)
	}
	logger := ctx.Logger()

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	return logger.Level(level)
}
