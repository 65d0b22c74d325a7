// Copyright (c) 2025 The Norsh developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package log

import (
	"os"
	"sync/atomic"
)

var root atomic.Value // Logger

func init() {
	root.Store(NewLogger(NewTerminalHandler(os.Stderr, false)))
}

// SetDefault installs l as the process root logger.
func SetDefault(l Logger) {
	root.Store(l)
}

// Root returns the process root logger.
func Root() Logger {
	return root.Load().(Logger)
}

// WithContext returns a child of the root logger with the given key-value
// pairs bound. Packages conventionally declare
//
//	var logger = log.WithContext("pkg", "name")
//
// at file scope; the binding resolves against the root logger installed at
// call time.
func WithContext(ctx ...interface{}) Logger {
	return &lazyLogger{ctx: ctx}
}

// lazyLogger defers root resolution to each write, so package-level loggers
// created before SetDefault still honor the final handler.
type lazyLogger struct {
	ctx []interface{}
}

func (l *lazyLogger) resolve() Logger {
	return Root().With(l.ctx...)
}

func (l *lazyLogger) With(ctx ...interface{}) Logger {
	merged := make([]interface{}, 0, len(l.ctx)+len(ctx))
	merged = append(merged, l.ctx...)
	merged = append(merged, ctx...)
	return &lazyLogger{ctx: merged}
}

func (l *lazyLogger) Trace(msg string, ctx ...interface{}) { l.resolve().Trace(msg, ctx...) }
func (l *lazyLogger) Debug(msg string, ctx ...interface{}) { l.resolve().Debug(msg, ctx...) }
func (l *lazyLogger) Info(msg string, ctx ...interface{})  { l.resolve().Info(msg, ctx...) }
func (l *lazyLogger) Warn(msg string, ctx ...interface{})  { l.resolve().Warn(msg, ctx...) }
func (l *lazyLogger) Error(msg string, ctx ...interface{}) { l.resolve().Error(msg, ctx...) }
func (l *lazyLogger) Crit(msg string, ctx ...interface{})  { l.resolve().Crit(msg, ctx...) }

// Convenience writers on the root logger.

func Trace(msg string, ctx ...interface{}) { Root().Trace(msg, ctx...) }
func Debug(msg string, ctx ...interface{}) { Root().Debug(msg, ctx...) }
func Info(msg string, ctx ...interface{})  { Root().Info(msg, ctx...) }
func Warn(msg string, ctx ...interface{})  { Root().Warn(msg, ctx...) }
func Error(msg string, ctx ...interface{}) { Root().Error(msg, ctx...) }
func Crit(msg string, ctx ...interface{})  { Root().Crit(msg, ctx...) }
