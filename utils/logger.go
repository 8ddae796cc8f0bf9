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

package utils

import (
	"fmt"
	"io"
	"os"
	"path"
	"runtime"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
)

type Logger = logrus.Logger

const timestampFormat = "2006-01-02 15:04:05.000"

// registry owns the named loggers and the settings new ones start from.
type registry struct {
	mu      sync.RWMutex
	loggers map[string]*logrus.Logger
	level   logrus.Level
	json    bool
	out     io.Writer
}

var loggers = &registry{
	loggers: map[string]*logrus.Logger{},
	level:   ParseLogLevel(EnvDefaultString("LOG_LEVEL", "info")),
	json:    isJSONFormat(EnvDefaultString("CONSOLE_LOG_FORMAT", "text")),
	out:     os.Stdout,
}

func isJSONFormat(format string) bool {
	return strings.EqualFold(strings.TrimSpace(format), "json")
}

func (r *registry) lookup(name string) (*logrus.Logger, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	l, ok := r.loggers[name]
	return l, ok
}

// each applies fn to every registered logger. Callers hold mu.
func (r *registry) each(fn func(*logrus.Logger)) {
	for _, l := range r.loggers {
		fn(l)
	}
}

func (r *registry) create(name string) *logrus.Logger {
	r.mu.Lock()
	defer r.mu.Unlock()

	l := logrus.New()
	l.SetOutput(r.out)
	l.SetLevel(r.level)
	l.SetReportCaller(true)
	l.SetFormatter(r.formatter())
	l.AddHook(loggerName(name))
	r.loggers[name] = l
	return l
}

func (r *registry) formatter() logrus.Formatter {
	if r.json {
		return &logrus.JSONFormatter{
			TimestampFormat:  timestampFormat,
			CallerPrettyfier: caller,
			FieldMap:         logrus.FieldMap{logrus.FieldKeyMsg: "message"},
		}
	}
	return &logrus.TextFormatter{
		FullTimestamp:    true,
		TimestampFormat:  timestampFormat,
		CallerPrettyfier: caller,
	}
}

// ConfigureConsoleLogFormat switches newly created loggers between "text" and "json".
func ConfigureConsoleLogFormat(format string) {
	loggers.mu.Lock()
	loggers.json = isJSONFormat(format)
	loggers.mu.Unlock()
}

// ConfigureOutput redirects every registered logger, and loggers created
// afterwards, to w. A nil w restores stdout.
func ConfigureOutput(w io.Writer) {
	if w == nil {
		w = os.Stdout
	}
	loggers.mu.Lock()
	defer loggers.mu.Unlock()
	loggers.out = w
	loggers.each(func(l *logrus.Logger) { l.SetOutput(w) })
}

// ConfigureLogLevel sets the level of every registered logger and the default
// for loggers created later.
func ConfigureLogLevel(level string) {
	lvl := ParseLogLevel(level)
	loggers.mu.Lock()
	defer loggers.mu.Unlock()
	loggers.level = lvl
	loggers.each(func(l *logrus.Logger) { l.SetLevel(lvl) })
	logrus.SetLevel(lvl)
}

// ParseLogLevel is logrus.ParseLevel that falls back to info.
func ParseLogLevel(s string) logrus.Level {
	lvl, err := logrus.ParseLevel(strings.TrimSpace(s))
	if err != nil {
		return logrus.InfoLevel
	}
	return lvl
}

// GetLogger returns the registered logger for name, creating it on first use.
func GetLogger(name string) *logrus.Logger {
	if l, ok := loggers.lookup(name); ok {
		return l
	}
	return NewLogger(name)
}

// NewLogger creates and registers a logger, replacing any previous one of
// the same name.
func NewLogger(name string) *logrus.Logger {
	return loggers.create(name)
}

// SetLoggerLevel reports false when no logger is registered under name.
func SetLoggerLevel(name string, level string) bool {
	l, ok := loggers.lookup(name)
	if ok {
		l.SetLevel(ParseLogLevel(level))
	}
	return ok
}

// loggerName stamps every entry with the logger it came from.
type loggerName string

func (loggerName) Levels() []logrus.Level { return logrus.AllLevels }

func (n loggerName) Fire(e *logrus.Entry) error {
	e.Data["logger"] = string(n)
	return nil
}

// caller renders the call site as "dir/file.go:line".
func caller(f *runtime.Frame) (string, string) {
	dir, file := path.Split(strings.ReplaceAll(f.File, "\\", "/"))
	return "", fmt.Sprintf("%s:%d", path.Join(path.Base(dir), file), f.Line)
}
