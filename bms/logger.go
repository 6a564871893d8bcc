package bms

import (
	"log"
)

type LogLevel int

const (
	LogLevelNone LogLevel = iota
	LogLevelError
	LogLevelWarning
	LogLevelInfo
	LogLevelDebug
)

// Logger is a small leveled wrapper over the stdlib logger. Component code
// gets a scoped copy via WithComponent so log lines carry their origin.
type Logger struct {
	logger    *log.Logger
	level     LogLevel
	component string
}

func NewLogger(logger *log.Logger, level LogLevel) *Logger {
	return &Logger{
		logger: logger,
		level:  level,
	}
}

// WithComponent returns a copy of the logger that prefixes every line with
// the component name.
func (l *Logger) WithComponent(name string) *Logger {
	return &Logger{
		logger:    l.logger,
		level:     l.level,
		component: "[" + name + "] ",
	}
}

func (l *Logger) Debugf(format string, v ...interface{}) {
	if l.level >= LogLevelDebug {
		l.logger.Printf(l.component+"DEBUG: "+format, v...)
	}
}

func (l *Logger) Infof(format string, v ...interface{}) {
	if l.level >= LogLevelInfo {
		l.logger.Printf(l.component+format, v...)
	}
}

func (l *Logger) Warnf(format string, v ...interface{}) {
	if l.level >= LogLevelWarning {
		l.logger.Printf(l.component+"WARN: "+format, v...)
	}
}

func (l *Logger) Errorf(format string, v ...interface{}) {
	if l.level >= LogLevelError {
		l.logger.Printf(l.component+"ERROR: "+format, v...)
	}
}

func (l *Logger) Fatalf(format string, v ...interface{}) {
	l.logger.Fatalf(l.component+"FATAL: "+format, v...)
}
