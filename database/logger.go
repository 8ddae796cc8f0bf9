/*
 * Copyright 2025 tomoncle.
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

package database

import (
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/tomoncle/todostore/utils"
)

const loggerName = "DATABASE"

// LogLevel is the logrus level a Logger filters at.
type LogLevel = logrus.Level

const (
	LogLevelDebug = logrus.DebugLevel
	LogLevelInfo  = logrus.InfoLevel
	LogLevelWarn  = logrus.WarnLevel
	LogLevelError = logrus.ErrorLevel
)

// Logger is the key/value logging facade shared by the database and
// repository packages. Fields are alternating key, value pairs.
type Logger interface {
	SetLevel(LogLevel)
	Debug(msg string, fields ...interface{})
	Info(msg string, fields ...interface{})
	Warn(msg string, fields ...interface{})
	Error(msg string, fields ...interface{})
}

var std struct {
	sync.Mutex
	logger Logger
}

// InitLogger installs l as the package logger unless one is already set.
func InitLogger(l Logger) {
	if l == nil {
		return
	}
	std.Lock()
	defer std.Unlock()
	if std.logger == nil {
		std.logger = l
	}
}

// GetLogger returns the package logger, defaulting to the DATABASE logrus logger.
func GetLogger() Logger {
	std.Lock()
	defer std.Unlock()
	if std.logger == nil {
		std.logger = NewDefaultLogger(loggerName)
	}
	return std.logger
}

// DefaultLogger adapts a named logrus logger to Logger.
type DefaultLogger struct {
	*logrus.Logger
}

// NewDefaultLogger returns a Logger backed by the registered logrus logger name.
func NewDefaultLogger(name string) *DefaultLogger {
	return &DefaultLogger{Logger: utils.GetLogger(name)}
}

func (l *DefaultLogger) Debug(msg string, fields ...interface{}) {
	l.with(fields).Debug(msg)
}

func (l *DefaultLogger) Info(msg string, fields ...interface{}) {
	l.with(fields).Info(msg)
}

func (l *DefaultLogger) Warn(msg string, fields ...interface{}) {
	l.with(fields).Warn(msg)
}

func (l *DefaultLogger) Error(msg string, fields ...interface{}) {
	l.with(fields).Error(msg)
}

// with turns key/value pairs into logrus fields. A trailing key without a
// value is dropped.
func (l *DefaultLogger) with(kv []interface{}) *logrus.Entry {
	data := logrus.Fields{}
	for i := 1; i < len(kv); i += 2 {
		data[fmt.Sprint(kv[i-1])] = kv[i]
	}
	return l.WithFields(data)
}
