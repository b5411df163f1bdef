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
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

const defaultTimestampFormat = "2006-01-02 15:04:05.000"

// Options configures a logger built by NewLogger.
type Options struct {
	Level  string    // trace, debug, info, warn, error
	Format string    // text or json
	Output io.Writer // defaults to os.Stdout
	Color  bool      // ANSI colors for the text format
}

// NewLogger returns a named logrus logger writing to opts.Output.
func NewLogger(name string, opts Options) *logrus.Logger {
	l := logrus.New()
	if opts.Output != nil {
		l.SetOutput(opts.Output)
	} else {
		l.SetOutput(os.Stdout)
	}
	l.SetLevel(ParseLogLevel(opts.Level))
	if strings.EqualFold(strings.TrimSpace(opts.Format), "json") {
		l.SetFormatter(&JSONLogFormatter{LoggerName: name})
	} else {
		l.SetFormatter(&Log4jColorFormatter{LoggerName: name, NameWidth: 10, DisableColor: !opts.Color})
	}
	return l
}

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

// Log4jColorFormatter renders "ts LEVEL pid - [main] name : msg k=v".
type Log4jColorFormatter struct {
	LoggerName      string
	TimestampFormat string
	NameWidth       int
	DisableColor    bool
}

func (f *Log4jColorFormatter) tsFormat() string {
	if f.TimestampFormat != "" {
		return f.TimestampFormat
	}
	return defaultTimestampFormat
}

func (f *Log4jColorFormatter) paint(s, code string) string {
	if f.DisableColor {
		return s
	}
	return colorWrap(s, code)
}

func (f *Log4jColorFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	ts := entry.Time.Format(f.tsFormat())
	lvl := padLeft(strings.ToUpper(entry.Level.String()), 7)
	if !f.DisableColor {
		lvl = colorLevel(lvl, entry.Level)
	}
	pid := f.paint(fmt.Sprintf("%-6d", os.Getpid()), ansiMagenta)
	thread := f.paint("[main]", ansiMagenta)
	name := f.LoggerName
	if f.NameWidth > 0 {
		name = padLeft(limitRunes(name, f.NameWidth), f.NameWidth)
	}
	name = f.paint(name, ansiCyan)
	sep := f.paint(":", ansiFaint)

	var b strings.Builder
	fmt.Fprintf(&b, "%s %s %s - %s %s %s %s", ts, lvl, pid, thread, name, sep, entry.Message)
	for _, k := range sortedKeys(entry.Data) {
		fmt.Fprintf(&b, " %s=%v", f.paint(k, ansiFaint), entry.Data[k])
	}
	b.WriteByte('\n')
	return []byte(b.String()), nil
}

// JSONLogFormatter renders one JSON object per entry. HTTP request fields
// are lifted to top-level keys.
type JSONLogFormatter struct {
	LoggerName      string
	TimestampFormat string
}

func (f *JSONLogFormatter) tsFormat() string {
	if f.TimestampFormat != "" {
		return f.TimestampFormat
	}
	return defaultTimestampFormat
}

func (f *JSONLogFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	type jsonLogRecord struct {
		Time        string                 `json:"time"`
		Level       string                 `json:"level"`
		Model       string                 `json:"model"`
		Message     string                 `json:"message"`
		ClientIP    string                 `json:"client_ip,omitempty"`
		Method      string                 `json:"method,omitempty"`
		Path        string                 `json:"path,omitempty"`
		StatusCode  int                    `json:"status_code,omitempty"`
		LatencyTime string                 `json:"latency_time,omitempty"`
		RequestID   string                 `json:"request_id,omitempty"`
		Fields      map[string]interface{} `json:"fields,omitempty"`
	}

	rec := jsonLogRecord{
		Time:    entry.Time.Format(f.tsFormat()),
		Level:   strings.ToLower(entry.Level.String()),
		Model:   f.LoggerName,
		Message: entry.Message,
	}

	extra := make(map[string]interface{}, len(entry.Data))
	for k, v := range entry.Data {
		s, isString := v.(string)
		switch {
		case k == "req_uri" && isString:
			rec.Path = s
		case k == "req_method" && isString:
			rec.Method = s
		case k == "client_ip" && isString:
			rec.ClientIP = s
		case k == "latency_time" && isString:
			rec.LatencyTime = s
		case k == "request_id" && isString:
			rec.RequestID = s
		case k == "status_code":
			if n, ok := v.(int); ok {
				rec.StatusCode = n
			} else {
				extra[k] = v
			}
		case k == logrus.ErrorKey:
			if err, ok := v.(error); ok {
				extra[k] = err.Error()
			} else {
				extra[k] = v
			}
		default:
			extra[k] = v
		}
	}
	if len(extra) > 0 {
		rec.Fields = extra
	}

	b, err := json.Marshal(rec)
	if err != nil {
		return nil, err
	}
	return append(b, '\n'), nil
}

const (
	ansiReset   = "\x1b[0m"
	ansiFaint   = "\x1b[2m"
	ansiRed     = "\x1b[31m"
	ansiYellow  = "\x1b[33m"
	ansiGreen   = "\x1b[32m"
	ansiBlue    = "\x1b[34m"
	ansiMagenta = "\x1b[35m"
	ansiCyan    = "\x1b[36m"
)

func colorWrap(s, code string) string { return code + s + ansiReset }

func colorLevel(s string, level logrus.Level) string {
	switch level {
	case logrus.TraceLevel, logrus.DebugLevel:
		return colorWrap(s, ansiBlue)
	case logrus.InfoLevel:
		return colorWrap(s, ansiGreen)
	case logrus.WarnLevel:
		return colorWrap(s, ansiYellow)
	default:
		return colorWrap(s, ansiRed)
	}
}

func padLeft(s string, width int) string { return fmt.Sprintf("%*s", width, s) }

func limitRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

func sortedKeys(m logrus.Fields) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Since formats the elapsed time since start for log fields.
func Since(start time.Time) string {
	return time.Since(start).Round(time.Microsecond).String()
}
