package app

import (
	"strings"

	"go.uber.org/zap/zapcore"
)

type noiseFilter struct {
	zapcore.Core
	patterns []string
}

// NoiseFilter wraps core and drops entries whose message or string/error fields contain one of patterns.
// Upstream libraries log a handful of known harmless warnings on every reconnect; this keeps them out of the output.
func NoiseFilter(core zapcore.Core, patterns []string) zapcore.Core {
	var cleaned []string
	for _, p := range patterns {
		if p = strings.TrimSpace(p); p != "" {
			cleaned = append(cleaned, p)
		}
	}
	if len(cleaned) == 0 {
		return core
	}
	return &noiseFilter{Core: core, patterns: cleaned}
}

func (f *noiseFilter) With(fields []zapcore.Field) zapcore.Core {
	return &noiseFilter{Core: f.Core.With(fields), patterns: f.patterns}
}

func (f *noiseFilter) Check(ent zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if f.noisy(ent.Message) {
		return ce
	}
	if f.Enabled(ent.Level) {
		return ce.AddCore(ent, f)
	}
	return ce
}

func (f *noiseFilter) Write(ent zapcore.Entry, fields []zapcore.Field) error {
	for _, field := range fields {
		switch field.Type {
		case zapcore.StringType:
			if f.noisy(field.String) {
				return nil
			}
		case zapcore.ErrorType:
			if err, ok := field.Interface.(error); ok && f.noisy(err.Error()) {
				return nil
			}
		}
	}
	return f.Core.Write(ent, fields)
}

func (f *noiseFilter) noisy(s string) bool {
	for _, p := range f.patterns {
		if strings.Contains(s, p) {
			return true
		}
	}
	return false
}
