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
	"context"
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/tomoncle/scholar/types"
	"github.com/uptrace/bun"
)

const previewLength = 100

var connectPattern = regexp.MustCompile(`(?im)^[ \t]*\\c(onnect)?\b.*$`)

// OnStatementError decides what the loader does after a statement fails.
type OnStatementError int

const (
	StatementErrorContinue OnStatementError = iota
	StatementErrorAbort
)

var statementErrorPolicies = []OnStatementError{StatementErrorContinue, StatementErrorAbort}

var _ types.BaseEnum = StatementErrorContinue

func (p OnStatementError) IsValid() bool {
	return p == StatementErrorContinue || p == StatementErrorAbort
}

func (p OnStatementError) Number() int {
	if !p.IsValid() {
		return types.IllegalValue
	}
	return int(p)
}

func (p OnStatementError) Name() string {
	switch p {
	case StatementErrorContinue:
		return "continue"
	case StatementErrorAbort:
		return "abort"
	default:
		return types.IllegalName
	}
}

func (p OnStatementError) String() string { return p.Name() }

func (p OnStatementError) Desc() string {
	switch p {
	case StatementErrorContinue:
		return "log the failure and run the next statement"
	case StatementErrorAbort:
		return "stop at the first failing statement"
	default:
		return types.IllegalDesc
	}
}

// ParseOnStatementError accepts "continue" or "abort"; empty means continue.
func ParseOnStatementError(s string) (OnStatementError, error) {
	if strings.TrimSpace(s) == "" {
		return StatementErrorContinue, nil
	}
	p, ok := types.LookupEnum(statementErrorPolicies, s)
	if !ok {
		return StatementErrorContinue, fmt.Errorf("unknown statement error policy %q", s)
	}
	return p, nil
}

// StatementError records one failed statement.
type StatementError struct {
	Index   int
	Preview string
	Kind    SQLError
	Err     error
}

func (e StatementError) Error() string {
	return fmt.Sprintf("statement %d (%s): %v", e.Index, e.Preview, e.Err)
}

func (e StatementError) Unwrap() error { return e.Err }

// LoadResult summarises one schema application.
type LoadResult struct {
	Path     string
	Total    int
	Applied  int
	Failed   int
	Errors   []StatementError
	Duration time.Duration
}

// SchemaLoader applies a SQL schema script statement by statement.
// Statements are not wrapped in a transaction; whatever succeeded stays.
type SchemaLoader struct {
	db     bun.IDB
	logger Logger
	policy OnStatementError
}

// NewSchemaLoader returns a loader over db. When db is a pool, each Apply
// acquires one connection for its statements.
func NewSchemaLoader(db bun.IDB, logger Logger, policy OnStatementError) *SchemaLoader {
	if logger == nil {
		logger = NopLogger()
	}
	return &SchemaLoader{db: db, logger: logger, policy: policy}
}

// LoadFile reads path and applies it. A read failure is returned before any
// statement runs.
func (l *SchemaLoader) LoadFile(ctx context.Context, path string) (*LoadResult, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read schema file %s: %w", path, err)
	}
	l.logger.Info("Loading schema", "path", path, "bytes", len(content))
	result, err := l.Apply(ctx, string(content))
	if result != nil {
		result.Path = path
	}
	return result, err
}

// Apply executes the Statements of text on one dedicated connection.
func (l *SchemaLoader) Apply(ctx context.Context, text string) (*LoadResult, error) {
	start := time.Now()
	statements := Statements(text)
	result := &LoadResult{Total: len(statements)}
	if len(statements) == 0 {
		l.logger.Warn("Schema contains no statements")
		return result, nil
	}

	var conn bun.IConn = l.db
	if pool, ok := l.db.(*bun.DB); ok {
		c, err := pool.Conn(ctx)
		if err != nil {
			return result, fmt.Errorf("failed to acquire connection: %w", err)
		}
		defer c.Close()
		conn = c
	}

	for i, stmt := range statements {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		if _, execErr := conn.ExecContext(ctx, stmt); execErr != nil {
			se := StatementError{
				Index:   i + 1,
				Preview: Preview(stmt),
				Kind:    ClassifyError(execErr),
				Err:     execErr,
			}
			result.Failed++
			result.Errors = append(result.Errors, se)

			if se.Kind.AlreadyExists() {
				l.logger.Warn("Schema statement skipped", "index", se.Index, "kind", se.Kind.String(), "error", execErr, "statement", se.Preview)
			} else {
				l.logger.Error("Schema statement failed", "index", se.Index, "kind", se.Kind.String(), "error", execErr, "statement", se.Preview)
			}

			if l.policy == StatementErrorAbort {
				result.Duration = time.Since(start)
				return result, fmt.Errorf("schema load aborted: %w", se)
			}
			continue
		}
		result.Applied++
	}

	result.Duration = time.Since(start)
	l.logger.Info("Schema applied",
		"total", result.Total,
		"applied", result.Applied,
		"failed", result.Failed,
		"duration", result.Duration.Round(time.Millisecond),
	)
	return result, nil
}

// Statements returns the executable statements of a schema script: psql
// connect lines are stripped, the rest is split and CREATE DATABASE
// statements are dropped.
func Statements(text string) []string {
	all := Split(Strip(text))
	out := all[:0]
	for _, stmt := range all {
		if !createsDatabase(stmt) {
			out = append(out, stmt)
		}
	}
	return out
}

// Strip removes psql \c and \connect lines.
func Strip(text string) string {
	return connectPattern.ReplaceAllString(text, "")
}

// createsDatabase reports whether stmt, already free of comments, starts
// with CREATE DATABASE.
func createsDatabase(stmt string) bool {
	words := strings.Fields(stmt)
	return len(words) >= 2 &&
		strings.EqualFold(words[0], "CREATE") &&
		strings.EqualFold(words[1], "DATABASE")
}

// Split cuts text into statements on semicolons that are outside quoted
// strings, quoted identifiers, comments and dollar-quoted bodies. Comments
// are dropped and blank statements are discarded.
func Split(text string) []string {
	var (
		statements []string
		current    strings.Builder
	)
	flush := func() {
		if stmt := strings.TrimSpace(current.String()); stmt != "" {
			statements = append(statements, stmt)
		}
		current.Reset()
	}

	n := len(text)
	for i := 0; i < n; {
		c := text[i]
		switch {
		case c == '-' && i+1 < n && text[i+1] == '-':
			end := strings.IndexByte(text[i:], '\n')
			if end < 0 {
				i = n
				continue
			}
			i += end
		case c == '/' && i+1 < n && text[i+1] == '*':
			end := strings.Index(text[i+2:], "*/")
			if end < 0 {
				i = n
				continue
			}
			current.WriteByte(' ')
			i += end + 4
		case c == '\'' || c == '"':
			j := closingQuote(text, i)
			current.WriteString(text[i:j])
			i = j
		case c == '$':
			if tag, ok := dollarTag(text, i); ok {
				end := strings.Index(text[i+len(tag):], tag)
				j := n
				if end >= 0 {
					j = i + len(tag) + end + len(tag)
				}
				current.WriteString(text[i:j])
				i = j
				continue
			}
			current.WriteByte(c)
			i++
		case c == ';':
			flush()
			i++
		default:
			current.WriteByte(c)
			i++
		}
	}
	flush()
	return statements
}

// closingQuote returns the index just past the quote that closes the one at
// start. Doubled quotes are escapes.
func closingQuote(text string, start int) int {
	q := text[start]
	for i := start + 1; i < len(text); i++ {
		if text[i] != q {
			continue
		}
		if i+1 < len(text) && text[i+1] == q {
			i++
			continue
		}
		return i + 1
	}
	return len(text)
}

// dollarTag recognises $$ or $tag$ at start. Positional parameters such as
// $1 are not tags.
func dollarTag(text string, start int) (string, bool) {
	for i := start + 1; i < len(text); i++ {
		c := text[i]
		switch {
		case c == '$':
			return text[start : i+1], true
		case c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z'):
		case c >= '0' && c <= '9' && i > start+1:
		default:
			return "", false
		}
	}
	return "", false
}

// Preview collapses whitespace and truncates stmt for log output.
func Preview(stmt string) string {
	s := strings.Join(strings.Fields(stmt), " ")
	r := []rune(s)
	if len(r) <= previewLength {
		return s
	}
	return string(r[:previewLength]) + "..."
}
