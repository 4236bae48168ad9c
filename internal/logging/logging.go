// Package logging builds the zap logger shared by harrowctl and the
// buffer package, grounded on the teacher pack's
// zap.NewDevelopmentConfig/NewProductionConfig convention (e.g.
// e2b-dev-infra's orchestrator nfsproxy tests).
package logging

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds a SugaredLogger at the given level ("debug", "info",
// "warn", or "error"). Output is human-readable, matching a CLI
// tool's console rather than a long-running service's JSON logs.
func New(level string) (*zap.SugaredLogger, error) {
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("logging: invalid level %q: %w", level, err)
	}

	cfg := zap.NewDevelopmentConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.DisableStacktrace = true

	logger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("logging: build: %w", err)
	}

	return logger.Sugar(), nil
}
