package scribdlink

import (
	"context"

	"github.com/rs/zerolog"
)

// loggerFrom returns the logger carried by ctx when it is enabled,
// otherwise fallback.
func loggerFrom(ctx context.Context, fallback *zerolog.Logger) *zerolog.Logger {
	if ctx != nil {
		if ctxLog := zerolog.Ctx(ctx); ctxLog != nil && ctxLog.GetLevel() != zerolog.Disabled {
			return ctxLog
		}
	}
	return fallback
}
