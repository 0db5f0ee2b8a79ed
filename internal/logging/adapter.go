package logging

import (
	"context"
	"errors"
	"log/slog"
	"time"

	gormlogger "gorm.io/gorm/logger"
)

// GormAdapter adapts an slog.Logger to gorm's logger.Interface so the
// persistence layers emit through the same structured pipeline as the
// rest of the application.
type GormAdapter struct {
	logger *slog.Logger

	// SlowThreshold marks queries slower than this as warnings.
	SlowThreshold time.Duration
}

// NewGormAdapter creates a GormAdapter wrapping the given slog.Logger.
// If logger is nil, slog.Default() is used.
func NewGormAdapter(logger *slog.Logger) *GormAdapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &GormAdapter{
		logger:        WithComponent(logger, "gorm"),
		SlowThreshold: 200 * time.Millisecond,
	}
}

// LogMode is part of gorm's logger.Interface. Level filtering is owned
// by the slog handler, so the adapter returns itself unchanged.
func (a *GormAdapter) LogMode(gormlogger.LogLevel) gormlogger.Interface {
	return a
}

// Info logs an informational message from gorm.
func (a *GormAdapter) Info(ctx context.Context, msg string, args ...interface{}) {
	a.logger.InfoContext(ctx, msg, slog.Any("args", args))
}

// Warn logs a warning message from gorm.
func (a *GormAdapter) Warn(ctx context.Context, msg string, args ...interface{}) {
	a.logger.WarnContext(ctx, msg, slog.Any("args", args))
}

// Error logs an error message from gorm.
func (a *GormAdapter) Error(ctx context.Context, msg string, args ...interface{}) {
	a.logger.ErrorContext(ctx, msg, slog.Any("args", args))
}

// Trace logs a completed query. Failed queries log at error level and
// slow queries at warn; routine traffic stays at debug to keep the
// default output quiet.
func (a *GormAdapter) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	elapsed := time.Since(begin)
	sql, rows := fc()

	attrs := []slog.Attr{
		slog.String("sql", sql),
		slog.Int64("rows", rows),
		Duration(elapsed),
	}

	switch {
	case err != nil && !errors.Is(err, gormlogger.ErrRecordNotFound):
		a.logger.LogAttrs(ctx, slog.LevelError, "query failed", append(attrs, Err(err))...)
	case a.SlowThreshold > 0 && elapsed > a.SlowThreshold:
		a.logger.LogAttrs(ctx, slog.LevelWarn, "slow query", attrs...)
	default:
		a.logger.LogAttrs(ctx, slog.LevelDebug, "query", attrs...)
	}
}
