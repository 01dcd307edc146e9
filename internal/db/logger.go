package db

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const slowQueryThreshold = 200 * time.Millisecond

// GormLogger sends gorm's output through zerolog. The request logger in ctx
// wins over base, so SQL lines carry the request id.
type GormLogger struct {
	base  *zerolog.Logger
	level gormlogger.LogLevel
	slow  time.Duration
}

var _ gormlogger.Interface = GormLogger{}

func NewGormLogger(base *zerolog.Logger) GormLogger {
	return GormLogger{base: base, level: gormlogger.Warn, slow: slowQueryThreshold}
}

func (l GormLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	l.level = level
	return l
}

func (l GormLogger) logger(ctx context.Context) *zerolog.Logger {
	if ctx != nil {
		if lg := zerolog.Ctx(ctx); lg.GetLevel() != zerolog.Disabled {
			return lg
		}
	}
	return l.base
}

func (l GormLogger) Info(ctx context.Context, msg string, data ...interface{}) {
	if l.level >= gormlogger.Info {
		l.logger(ctx).Info().Msgf(msg, data...)
	}
}

func (l GormLogger) Warn(ctx context.Context, msg string, data ...interface{}) {
	if l.level >= gormlogger.Warn {
		l.logger(ctx).Warn().Msgf(msg, data...)
	}
}

func (l GormLogger) Error(ctx context.Context, msg string, data ...interface{}) {
	if l.level >= gormlogger.Error {
		l.logger(ctx).Error().Msgf(msg, data...)
	}
}

// Trace logs failed queries, slow queries, and at Info level every query.
// Missing records are not failures.
func (l GormLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.level <= gormlogger.Silent {
		return
	}
	elapsed := time.Since(begin)

	switch {
	case err != nil && l.level >= gormlogger.Error && !errors.Is(err, gorm.ErrRecordNotFound):
		sql, rows := fc()
		l.logger(ctx).Error().Err(err).Str("sql", sql).Int64("rows", rows).Dur("elapsed", elapsed).Msg("sql query failed")
	case l.slow > 0 && elapsed > l.slow && l.level >= gormlogger.Warn:
		sql, rows := fc()
		l.logger(ctx).Warn().Str("sql", sql).Int64("rows", rows).Dur("elapsed", elapsed).Dur("threshold", l.slow).Msg("slow sql query")
	case l.level >= gormlogger.Info:
		sql, rows := fc()
		l.logger(ctx).Debug().Str("sql", sql).Int64("rows", rows).Dur("elapsed", elapsed).Msg("sql query")
	}
}
