// Copyright (C) 2021 Nippon Telegraph and Telephone Corporation.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or
// implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package log

import "sync"

// TestLogger records the messages logged at each level so tests can assert
// on them. It is safe for use from several goroutines.
type TestLogger struct {
	mu       sync.Mutex
	Logger   *DefaultLogger
	messages map[LogLevel][]string
	level    LogLevel
}

func NewTestLogger() *TestLogger {
	return &TestLogger{
		Logger:   NewDefaultLogger(),
		messages: make(map[LogLevel][]string),
		level:    InfoLevel,
	}
}

func (m *TestLogger) record(level LogLevel, msg string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages[level] = append(m.messages[level], msg)
}

// Messages returns a copy of the messages logged at level.
func (m *TestLogger) Messages(level LogLevel) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.messages[level]...)
}

// Count returns how many times msg was logged at level.
func (m *TestLogger) Count(level LogLevel, msg string) int {
	n := 0
	for _, s := range m.Messages(level) {
		if s == msg {
			n++
		}
	}
	return n
}

func (m *TestLogger) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = make(map[LogLevel][]string)
}

func (m *TestLogger) Panic(msg string, fields Fields) {
	m.record(PanicLevel, msg)
	m.Logger.Panic(msg, fields)
}

func (m *TestLogger) Fatal(msg string, fields Fields) {
	m.record(FatalLevel, msg)
	m.Logger.Fatal(msg, fields)
}

func (m *TestLogger) Error(msg string, fields Fields) {
	m.record(ErrorLevel, msg)
	m.Logger.Error(msg, fields)
}

func (m *TestLogger) Warn(msg string, fields Fields) {
	m.record(WarnLevel, msg)
	m.Logger.Warn(msg, fields)
}

func (m *TestLogger) Info(msg string, fields Fields) {
	m.record(InfoLevel, msg)
	m.Logger.Info(msg, fields)
}

func (m *TestLogger) Debug(msg string, fields Fields) {
	m.record(DebugLevel, msg)
	m.Logger.Debug(msg, fields)
}

func (m *TestLogger) SetLevel(level LogLevel) {
	m.Logger.SetLevel(level)
	m.mu.Lock()
	m.level = level
	m.mu.Unlock()
}

func (m *TestLogger) GetLevel() LogLevel {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.level
}
