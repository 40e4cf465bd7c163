package database

import (
	"fmt"
	"time"

	"go.uber.org/zap"
	gormlogger "gorm.io/gorm/logger"
)

// zapWriter adapts a zap logger to the Printf sink gorm's logger writes to.
type zapWriter struct {
	logger *zap.Logger
}

func (w zapWriter) Printf(format string, args ...interface{}) {
	w.logger.Warn(fmt.Sprintf(format, args...))
}

// newGormLogger reports slow and failed statements through zap. Statements
// are logged with placeholders only, never with bound values, and missing
// rows are not treated as failures.
func newGormLogger(logger *zap.Logger) gormlogger.Interface {
	return gormlogger.New(zapWriter{logger: logger.Named("gorm")}, gormlogger.Config{
		SlowThreshold:             200 * time.Millisecond,
		LogLevel:                  gormlogger.Warn,
		IgnoreRecordNotFoundError: true,
		ParameterizedQueries:      true,
		Colorful:                  false,
	})
}
