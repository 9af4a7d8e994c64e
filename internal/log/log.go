// Package log provides the process-wide structured logger used by the
// capture, dissection, aggregation, and broadcast components. Every
// component logs through the Logger interface rather than calling
// logrus directly, so the adapter can be swapped without touching
// call sites.
package log

import "sync"

type Logger interface {
	Print(args ...interface{})
	Printf(format string, args ...interface{})

	Trace(args ...interface{})
	Tracef(format string, args ...interface{})

	Debug(args ...interface{})
	Debugf(format string, args ...interface{})

	Info(args ...interface{})
	Infof(format string, args ...interface{})

	Warn(args ...interface{})
	Warnf(format string, args ...interface{})

	Error(args ...interface{})
	Errorf(format string, args ...interface{})

	Fatal(args ...interface{})
	Fatalf(format string, args ...interface{})

	Panic(args ...interface{})
	Panicf(format string, args ...interface{})

	WithField(field string, value interface{}) Logger
	WithFields(fields map[string]interface{}) Logger
	WithError(err error) Logger

	IsTraceEnabled() bool
	IsDebugEnabled() bool
	IsInfoEnabled() bool
}

var (
	once   sync.Once
	logger Logger
)

// GetLogger returns the process-wide logger. Init must run first;
// every component boots after Init, so this is never called on a nil
// logger in practice.
func GetLogger() Logger {
	return logger
}

// Init installs the process-wide logger from cfg. Only the first call
// takes effect — later calls are no-ops, since the pipeline never
// reconfigures logging after startup.
func Init(cfg *LoggerConfig) {
	once.Do(func() {
		if err := initByConfig(cfg); err != nil {
			panic(err)
		}
	})
}
