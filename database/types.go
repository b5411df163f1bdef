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
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
)

var (
	ErrUnsupportedDatabase = errors.New("unsupported database type")
	ErrNotConnected        = errors.New("database not connected")
)

// Supported database types.
const (
	TypePostgres = "postgres"
	TypeMySQL    = "mysql"
	TypeSQLite   = "sqlite"
)

// ConnectionConfig describes how to connect to a database and tune its pool.
// When URL is set it takes precedence over the discrete parameters.
type ConnectionConfig struct {
	Type            string        `json:"type"` // postgres, mysql, sqlite
	URL             string        `json:"url"`
	Host            string        `json:"host"`
	Port            int           `json:"port"`
	Username        string        `json:"username"`
	Password        string        `json:"password"`
	DBName          string        `json:"dbname"`
	SSLMode         string        `json:"sslmode"`
	MaxIdleConns    int           `json:"max_idle_conns"`
	MaxOpenConns    int           `json:"max_open_conns"`
	ConnMaxLifetime time.Duration `json:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `json:"conn_max_idle_time"`
	ConnectTimeout  time.Duration `json:"connect_timeout"`
	EnableQueryLog  bool          `json:"enable_query_log"`
	SlowQueryTime   time.Duration `json:"slow_query_time"`
	// ColorLogs paints query hook messages; only for the text log format.
	ColorLogs bool `json:"color_logs"`
}

// DefaultConnectionConfig returns a connection config with sensible defaults.
func DefaultConnectionConfig() *ConnectionConfig {
	return &ConnectionConfig{
		Type:            TypePostgres,
		Host:            "localhost",
		Port:            5432,
		MaxIdleConns:    2,
		MaxOpenConns:    10,
		ConnMaxLifetime: time.Hour,
		ConnMaxIdleTime: time.Minute * 30,
		ConnectTimeout:  time.Second * 10,
		SlowQueryTime:   time.Second * 2,
	}
}

// NormalizedType maps aliases such as "postgresql" or "sqlite3" onto the
// canonical type names.
func (c *ConnectionConfig) NormalizedType() string {
	switch strings.ToLower(strings.TrimSpace(c.Type)) {
	case "postgres", "postgresql", "pg":
		return TypePostgres
	case "mysql", "mariadb":
		return TypeMySQL
	case "sqlite", "sqlite3":
		return TypeSQLite
	default:
		return strings.ToLower(c.Type)
	}
}

// DSN builds the driver data source name for the configured type.
func (c *ConnectionConfig) DSN() (string, error) {
	switch c.NormalizedType() {
	case TypePostgres:
		return c.postgresDSN()
	case TypeMySQL:
		if c.URL != "" {
			return c.URL, nil
		}
		return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=UTC&timeout=%s",
			c.Username, c.Password, c.Host, c.Port, c.DBName, c.ConnectTimeout), nil
	case TypeSQLite:
		if c.URL != "" {
			return c.URL, nil
		}
		if c.DBName == "" {
			return "", fmt.Errorf("sqlite requires a database name")
		}
		if strings.HasSuffix(c.DBName, ".db") {
			return c.DBName, nil
		}
		return fmt.Sprintf("%s.db", c.DBName), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedDatabase, c.Type)
	}
}

// postgresDSN prefers URL and requires TLS there unless sslmode is given,
// which is what managed hosts expect.
func (c *ConnectionConfig) postgresDSN() (string, error) {
	timeout := int(c.ConnectTimeout.Seconds())
	if c.URL != "" {
		u, err := url.Parse(c.URL)
		if err != nil {
			return "", fmt.Errorf("invalid database url: %w", err)
		}
		q := u.Query()
		if q.Get("sslmode") == "" {
			sslMode := c.SSLMode
			if sslMode == "" {
				sslMode = "require"
			}
			q.Set("sslmode", sslMode)
		}
		if q.Get("connect_timeout") == "" && timeout > 0 {
			q.Set("connect_timeout", fmt.Sprint(timeout))
		}
		u.RawQuery = q.Encode()
		return u.String(), nil
	}

	sslMode := c.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(c.Username, c.Password),
		Host:   fmt.Sprintf("%s:%d", c.Host, c.Port),
		Path:   "/" + c.DBName,
	}
	q := url.Values{}
	q.Set("sslmode", sslMode)
	if timeout > 0 {
		q.Set("connect_timeout", fmt.Sprint(timeout))
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Target describes the connection for logs without leaking credentials.
func (c *ConnectionConfig) Target() string {
	if c.URL != "" {
		if u, err := url.Parse(c.URL); err == nil && u.Host != "" {
			return fmt.Sprintf("%s%s", u.Host, u.Path)
		}
		return c.NormalizedType()
	}
	if c.NormalizedType() == TypeSQLite {
		return c.DBName
	}
	return fmt.Sprintf("%s:%d/%s", c.Host, c.Port, c.DBName)
}
