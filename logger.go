package bdispatch

import (
	"log"
	"sync/atomic"
	"testing"
)

// Logger can be implemented to get informed about important states.
type Logger interface {
	LogUnhandledServeError(err error)
	LogImplicitFlushError(err error)
	LogPanic(v any, err error)
	LogUpgradeError(protocol string, err error)
}

type stdLogger struct{ *log.Logger }

func (l stdLogger) LogUnhandledServeError(err error) {
	l.Logger.Printf("bdispatch: unhandled server error: %s", err)
}

func (l stdLogger) LogImplicitFlushError(err error) {
	l.Logger.Printf("bdispatch: error while flushing implicitly: %s", err)
}

func (l stdLogger) LogPanic(v any, err error) {
	l.Logger.Printf("bdispatch: recovered panic %v: %+v", v, err)
}

func (l stdLogger) LogUpgradeError(protocol string, err error) {
	l.Logger.Printf("bdispatch: %s upgrade failed: %s", protocol, err)
}

func NewStdLogger(l *log.Logger) Logger {
	return stdLogger{l}
}

type TestLogger struct {
	tb testing.TB

	NumLogUnhandledServeError int64
	NumLogImplicitFlushError  int64
	NumLogPanic               int64
	NumLogUpgradeError        int64
}

func NewTestLogger(tb testing.TB) *TestLogger {
	return &TestLogger{tb: tb}
}

func (l *TestLogger) LogUnhandledServeError(err error) {
	atomic.AddInt64(&l.NumLogUnhandledServeError, 1)
	l.tb.Logf("bdispatch: unhandled server error: %s", err)
}

func (l *TestLogger) LogImplicitFlushError(err error) {
	atomic.AddInt64(&l.NumLogImplicitFlushError, 1)
	l.tb.Logf("bdispatch: error while flushing implicitly: %s", err)
}

func (l *TestLogger) LogPanic(v any, err error) {
	atomic.AddInt64(&l.NumLogPanic, 1)
	l.tb.Logf("bdispatch: recovered panic %v: %s", v, err)
}

func (l *TestLogger) LogUpgradeError(protocol string, err error) {
	atomic.AddInt64(&l.NumLogUpgradeError, 1)
	l.tb.Logf("bdispatch: %s upgrade failed: %s", protocol, err)
}

var _ Logger = &TestLogger{}
