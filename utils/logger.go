/*
 * Copyright 2026 absnotary.
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
	"os"
	"strings"
	"sync"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
)

// Logger is an alias so callers do not import logrus directly.
type Logger = logrus.Logger

var (
	loggerRegistryMu sync.RWMutex
	loggerRegistry   = map[string]*logrus.Logger{}
	defaultLevel     = ParseLogLevel(EnvDefaultString("ABSORM_LOG_LEVEL", "info"))
)

// ConsoleFormatter renders "2006-01-02 15:04:05.000 LEVEL [name] message"
// with the level colored when the output supports it.
type ConsoleFormatter struct {
	LoggerName      string
	TimestampFormat string
	NameWidth       int
}

func (f *ConsoleFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	ts := entry.Time.Format(f.TimestampFormat)
	level := strings.ToUpper(entry.Level.String())

	switch entry.Level {
	case logrus.TraceLevel, logrus.DebugLevel:
		level = color.New(color.FgCyan).Sprintf("%-5s", level)
	case logrus.InfoLevel:
		level = color.New(color.FgGreen).Sprintf("%-5s", level)
	case logrus.WarnLevel:
		level = color.New(color.FgYellow).Sprintf("%-5s", level)
	default:
		level = color.New(color.FgRed).Sprintf("%-5s", level)
	}

	name := f.LoggerName
	if f.NameWidth > 0 {
		name = fmt.Sprintf("%-*s", f.NameWidth, name)
	}

	var fields string
	if len(entry.Data) > 0 {
		var b strings.Builder
		for _, k := range sortedKeys(entry.Data) {
			fmt.Fprintf(&b, " %s=%v", k, entry.Data[k])
		}
		fields = b.String()
	}

	line := fmt.Sprintf("%s %s [%s] %s%s\n", ts, level, name, entry.Message, fields)
	return []byte(line), nil
}

func sortedKeys(data logrus.Fields) []string {
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	for i := 1; i < len(keys); i++ {
		for j := i; j > 0 && keys[j] < keys[j-1]; j-- {
			keys[j], keys[j-1] = keys[j-1], keys[j]
		}
	}
	return keys
}

// NewLogger returns the named logger, creating and registering it on first use.
func NewLogger(name string) *logrus.Logger {
	loggerRegistryMu.Lock()
	defer loggerRegistryMu.Unlock()

	if l, ok := loggerRegistry[name]; ok {
		return l
	}

	l := logrus.New()
	l.SetOutput(os.Stdout)
	l.SetLevel(defaultLevel)
	l.SetFormatter(&ConsoleFormatter{
		LoggerName:      name,
		TimestampFormat: "2006-01-02 15:04:05.000",
		NameWidth:       10,
	})
	loggerRegistry[name] = l
	return l
}

// SetLoggerLevel changes the level of a registered logger. It reports whether
// a logger with that name exists.
func SetLoggerLevel(name string, lvlStr string) bool {
	loggerRegistryMu.RLock()
	l, ok := loggerRegistry[name]
	loggerRegistryMu.RUnlock()
	if !ok {
		return false
	}
	l.SetLevel(ParseLogLevel(lvlStr))
	return true
}

// SetAllLoggersLevel changes the level of every registered logger and the
// default applied to loggers created afterwards.
func SetAllLoggersLevel(lvlStr string) {
	lvl := ParseLogLevel(lvlStr)
	loggerRegistryMu.Lock()
	defaultLevel = lvl
	for _, l := range loggerRegistry {
		l.SetLevel(lvl)
	}
	loggerRegistryMu.Unlock()
}

// ParseLogLevel maps a level name to a logrus level, defaulting to info.
func ParseLogLevel(s string) logrus.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "trace":
		return logrus.TraceLevel
	case "debug":
		return logrus.DebugLevel
	case "info", "":
		return logrus.InfoLevel
	case "warn", "warning":
		return logrus.WarnLevel
	case "error":
		return logrus.ErrorLevel
	case "fatal":
		return logrus.FatalLevel
	case "panic":
		return logrus.PanicLevel
	default:
		return logrus.InfoLevel
	}
}
