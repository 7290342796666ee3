/*
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package logger

import (
	"sync/atomic"

	"github.com/rs/zerolog"
)

// zeroLogger adapts a zerolog.Logger to Logger. The level lives in an atomic
// so SetLevel may race with logging goroutines.
type zeroLogger struct {
	base  zerolog.Logger
	level atomic.Int32
}

// Wrap adapts zlog to Logger, starting at zlog's own level.
func Wrap(zlog zerolog.Logger) Logger {
	l := &zeroLogger{base: zlog}
	l.level.Store(int32(zlog.GetLevel()))

	return l
}

func (l *zeroLogger) current() zerolog.Logger {
	return l.base.Level(zerolog.Level(l.level.Load()))
}

func (l *zeroLogger) Trace() *zerolog.Event {
	lg := l.current()
	return lg.Trace()
}

func (l *zeroLogger) Debug() *zerolog.Event {
	lg := l.current()
	return lg.Debug()
}

func (l *zeroLogger) Info() *zerolog.Event {
	lg := l.current()
	return lg.Info()
}

func (l *zeroLogger) Warn() *zerolog.Event {
	lg := l.current()
	return lg.Warn()
}

func (l *zeroLogger) Error() *zerolog.Event {
	lg := l.current()
	return lg.Error()
}

func (l *zeroLogger) Fatal() *zerolog.Event {
	lg := l.current()
	return lg.Fatal()
}

func (l *zeroLogger) Panic() *zerolog.Event {
	lg := l.current()
	return lg.Panic()
}

func (l *zeroLogger) With() zerolog.Context {
	return l.current().With()
}

func (l *zeroLogger) WithComponent(component string) zerolog.Logger {
	return l.current().With().Str("component", component).Logger()
}

func (l *zeroLogger) WithFields(fields map[string]interface{}) zerolog.Logger {
	return l.current().With().Fields(fields).Logger()
}

func (l *zeroLogger) SetLevel(level zerolog.Level) {
	l.level.Store(int32(level))
}

func (l *zeroLogger) SetDebug(debug bool) {
	if debug {
		l.SetLevel(zerolog.DebugLevel)

		return
	}

	l.SetLevel(zerolog.InfoLevel)
}
