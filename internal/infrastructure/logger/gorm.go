package logger

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	gormlogger "gorm.io/gorm/logger"
)

const defaultSlowQuery = 200 * time.Millisecond

// GormLogger sends GORM statements to zap, tagged with the request ID of
// the context they run under. Lookups that find nothing are not errors.
type GormLogger struct {
	logger        *zap.Logger
	logLevel      gormlogger.LogLevel
	slowThreshold time.Duration
	parameterized bool
}

type GormLoggerOption func(*GormLogger)

// WithSlowThreshold sets when a statement counts as slow; zero turns the
// warning off
func WithSlowThreshold(threshold time.Duration) GormLoggerOption {
	return func(l *GormLogger) { l.slowThreshold = threshold }
}

// WithParameterizedQueries logs SQL with placeholders instead of bound
// values, keeping client names and emails out of the logs.
func WithParameterizedQueries(enabled bool) GormLoggerOption {
	return func(l *GormLogger) { l.parameterized = enabled }
}

func NewGormLogger(zapLogger *zap.Logger, level gormlogger.LogLevel, opts ...GormLoggerOption) *GormLogger {
	gl := &GormLogger{
		logger:        zapLogger.Named("gorm"),
		logLevel:      level,
		slowThreshold: defaultSlowQuery,
	}
	for _, opt := range opts {
		opt(gl)
	}
	return gl
}

func (l *GormLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	clone := *l
	clone.logLevel = level
	return &clone
}

func (l *GormLogger) Info(ctx context.Context, msg string, data ...any) {
	l.printf(ctx, gormlogger.Info, (*zap.SugaredLogger).Infof, msg, data)
}

func (l *GormLogger) Warn(ctx context.Context, msg string, data ...any) {
	l.printf(ctx, gormlogger.Warn, (*zap.SugaredLogger).Warnf, msg, data)
}

func (l *GormLogger) Error(ctx context.Context, msg string, data ...any) {
	l.printf(ctx, gormlogger.Error, (*zap.SugaredLogger).Errorf, msg, data)
}

func (l *GormLogger) printf(ctx context.Context, min gormlogger.LogLevel, logf func(*zap.SugaredLogger, string, ...any), msg string, data []any) {
	if l.logLevel >= min {
		logf(For(ctx, l.logger).Sugar(), msg, data...)
	}
}

// ParamsFilter implements gormlogger.ParamsFilter
func (l *GormLogger) ParamsFilter(ctx context.Context, sql string, params ...any) (string, []any) {
	if l.parameterized {
		return sql, nil
	}
	return sql, params
}

// Trace logs one statement: failures at error, slow ones at warn and the
// rest at debug
func (l *GormLogger) Trace(ctx context.Context, begin time.Time, fc func() (sql string, rowsAffected int64), err error) {
	if l.logLevel <= gormlogger.Silent || errors.Is(err, gormlogger.ErrRecordNotFound) {
		return
	}

	elapsed := time.Since(begin)
	sql, rows := fc()
	log := For(ctx, l.logger).With(
		zap.Duration("elapsed", elapsed),
		zap.Int64("rows", rows),
		zap.String("sql", sql))

	switch {
	case err != nil:
		if l.logLevel >= gormlogger.Error {
			log.Error("SQL Error", zap.Error(err))
		}
	case l.slowThreshold > 0 && elapsed > l.slowThreshold:
		if l.logLevel >= gormlogger.Warn {
			log.Warn("Slow SQL", zap.Duration("threshold", l.slowThreshold))
		}
	case l.logLevel >= gormlogger.Info:
		log.Debug("SQL Query")
	}
}

// MapGormLogLevel derives GORM's verbosity from the application log level
func MapGormLogLevel(level string) gormlogger.LogLevel {
	switch level {
	case "silent":
		return gormlogger.Silent
	case "error":
		return gormlogger.Error
	case "info", "debug":
		return gormlogger.Info
	default:
		return gormlogger.Warn
	}
}
