package console

import (
	"go.uber.org/zap"

	"github.com/caffeineduck/quickjs/value"
)

// ZapBackend routes console output through a zap logger, mapping console
// severities onto zap levels.
type ZapBackend struct {
	logger *zap.SugaredLogger
}

func NewZapBackend(logger *zap.Logger) *ZapBackend {
	return &ZapBackend{logger: logger.Sugar()}
}

func (b *ZapBackend) Log(level Level, values []value.Value) {
	args := make([]any, len(values))
	for i, v := range values {
		args[i] = Render(v)
	}

	switch level {
	case Trace, Debug:
		b.logger.Debug(args...)
	case Log, Info:
		b.logger.Info(args...)
	case Warn:
		b.logger.Warn(args...)
	case Error:
		b.logger.Error(args...)
	}
}
