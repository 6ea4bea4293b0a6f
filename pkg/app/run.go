package app

import (
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	ShutdownTimeout = time.Second * 5
)

// Logger builds the production logger. Entries containing any of noisy are dropped.
func Logger(level string, noisy ...string) *zap.Logger {

	cfg := zap.NewProductionConfig()

	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		panic(err)
	}
	cfg.Level.SetLevel(lvl)

	lg, err := cfg.Build(zap.WrapCore(func(core zapcore.Core) zapcore.Core {
		return NoiseFilter(core, noisy)
	}))
	if err != nil {
		panic(err)
	}

	return lg
}
