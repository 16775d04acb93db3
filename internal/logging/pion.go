package logging

import (
	pionlog "github.com/pion/logging"
)

// pionLogger forwards pion's leveled log calls onto a scoped zerolog logger
// so ICE/DTLS/SCTP internals share the process output stream.
type pionLogger struct {
	scope string
}

func (p *pionLogger) Trace(msg string) {
	GetDefaultLogger().Trace().Str("scope", p.scope).Msg(msg)
}

func (p *pionLogger) Tracef(format string, args ...interface{}) {
	GetDefaultLogger().Trace().Str("scope", p.scope).Msgf(format, args...)
}

func (p *pionLogger) Debug(msg string) {
	GetDefaultLogger().Debug().Str("scope", p.scope).Msg(msg)
}

func (p *pionLogger) Debugf(format string, args ...interface{}) {
	GetDefaultLogger().Debug().Str("scope", p.scope).Msgf(format, args...)
}

func (p *pionLogger) Info(msg string) {
	GetDefaultLogger().Info().Str("scope", p.scope).Msg(msg)
}

func (p *pionLogger) Infof(format string, args ...interface{}) {
	GetDefaultLogger().Info().Str("scope", p.scope).Msgf(format, args...)
}

func (p *pionLogger) Warn(msg string) {
	GetDefaultLogger().Warn().Str("scope", p.scope).Msg(msg)
}

func (p *pionLogger) Warnf(format string, args ...interface{}) {
	GetDefaultLogger().Warn().Str("scope", p.scope).Msgf(format, args...)
}

func (p *pionLogger) Error(msg string) {
	GetDefaultLogger().Error().Str("scope", p.scope).Msg(msg)
}

func (p *pionLogger) Errorf(format string, args ...interface{}) {
	GetDefaultLogger().Error().Str("scope", p.scope).Msgf(format, args...)
}

type pionLoggerFactory struct{}

func (f *pionLoggerFactory) NewLogger(scope string) pionlog.LeveledLogger {
	return &pionLogger{scope: scope}
}

// GetPionDefaultLoggerFactory adapts the process logger to pion's
// LoggerFactory interface.
func GetPionDefaultLoggerFactory() pionlog.LoggerFactory {
	return &pionLoggerFactory{}
}
