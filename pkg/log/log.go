// Copyright 2026 The Microkernel Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package log implements a leveled, glog-style logging facility that the
// rest of the microkernel writes through instead of the standard library's
// log package or fmt.Println.
package log

import (
	"fmt"
	"sync/atomic"
	"time"
)

// Level is the log level.
type Level int32

const (
	// Warning indicates a condition that deserves attention but does not
	// interrupt execution.
	Warning Level = iota
	// Info is the default level for steady-state operational messages.
	Info
	// Debug is reserved for high-frequency, per-VMExit style tracing.
	Debug
)

// Emitter is the final destination for a log message.
type Emitter interface {
	Emit(level Level, timestamp time.Time, format string, args ...interface{})
}

// Logger is a level-gated wrapper around an Emitter.
type Logger struct {
	level  int32
	target atomic.Value // Emitter
}

// NewLogger returns a new Logger at Info level writing to target.
func NewLogger(target Emitter) *Logger {
	l := &Logger{level: int32(Info)}
	l.target.Store(target)
	return l
}

// SetLevel adjusts the logging level.
func (l *Logger) SetLevel(level Level) {
	atomic.StoreInt32(&l.level, int32(level))
}

// Level returns the current logging level.
func (l *Logger) Level() Level {
	return Level(atomic.LoadInt32(&l.level))
}

// SetTarget replaces the emitter.
func (l *Logger) SetTarget(target Emitter) {
	l.target.Store(target)
}

// IsLogging returns whether the given level would currently be emitted.
func (l *Logger) IsLogging(level Level) bool {
	return level <= l.Level()
}

func (l *Logger) emit(level Level, format string, args ...interface{}) {
	if !l.IsLogging(level) {
		return
	}
	t, _ := l.target.Load().(Emitter)
	if t == nil {
		return
	}
	t.Emit(level, time.Now(), format, args...)
}

// Debugf logs at Debug level.
func (l *Logger) Debugf(format string, args ...interface{}) { l.emit(Debug, format, args...) }

// Infof logs at Info level.
func (l *Logger) Infof(format string, args ...interface{}) { l.emit(Info, format, args...) }

// Warningf logs at Warning level.
func (l *Logger) Warningf(format string, args ...interface{}) { l.emit(Warning, format, args...) }

// MultiEmitter fans a single Emit call out to several emitters.
type MultiEmitter []Emitter

// Emit implements Emitter.
func (m MultiEmitter) Emit(level Level, timestamp time.Time, format string, args ...interface{}) {
	for _, e := range m {
		e.Emit(level, timestamp, format, args...)
	}
}

// Writer adapts an io.Writer into an Emitter consumer used by the concrete
// emitter implementations in emitter.go.
type Writer struct {
	Next interface {
		Write([]byte) (int, error)
	}
}

func (w *Writer) write(b []byte) {
	if w == nil || w.Next == nil {
		return
	}
	_, _ = w.Next.Write(b)
}

var defaultLogger = NewLogger(GoogleEmitter{&Writer{Next: discard{}}})

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }

// SetTarget replaces the default logger's emitter.
func SetTarget(e Emitter) { defaultLogger.SetTarget(e) }

// SetLevel adjusts the default logger's level.
func SetLevel(level Level) { defaultLogger.SetLevel(level) }

// Debugf logs at Debug level on the default logger.
func Debugf(format string, args ...interface{}) { defaultLogger.Debugf(format, args...) }

// Infof logs at Info level on the default logger.
func Infof(format string, args ...interface{}) { defaultLogger.Infof(format, args...) }

// Warningf logs at Warning level on the default logger.
func Warningf(format string, args ...interface{}) { defaultLogger.Warningf(format, args...) }

// Sprint is a convenience used by callers building a message from a status
// value and a context string.
func Sprint(format string, args ...interface{}) string {
	return fmt.Sprintf(format, args...)
}
