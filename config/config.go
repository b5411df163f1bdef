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

// Package config builds the process configuration once at start-up from
// the environment and an optional .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"github.com/tomoncle/scholar/database"
	"github.com/tomoncle/scholar/health"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Environment string         `mapstructure:"environment"`
	Version     string         `mapstructure:"version"`
	Port        int            `mapstructure:"port"`
	FrontendURL string         `mapstructure:"frontend_url"`
	Render      bool           `mapstructure:"render"`
	Log         LogConfig      `mapstructure:"log"`
	Database    DatabaseConfig `mapstructure:"database"`
	Schema      SchemaConfig   `mapstructure:"schema"`
	Seed        SeedConfig     `mapstructure:"seed"`
	Kobo        KoboConfig     `mapstructure:"kobo"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Color  bool   `mapstructure:"color"`
}

type DatabaseConfig struct {
	URL            string        `mapstructure:"url"`
	Type           string        `mapstructure:"type"`
	Host           string        `mapstructure:"host"`
	Port           int           `mapstructure:"port"`
	User           string        `mapstructure:"user"`
	Password       string        `mapstructure:"password"`
	Name           string        `mapstructure:"name"`
	SSLMode        string        `mapstructure:"sslmode"`
	MaxOpenConns   int           `mapstructure:"max_open_conns"`
	MaxIdleConns   int           `mapstructure:"max_idle_conns"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
	EnableQueryLog bool          `mapstructure:"enable_query_log"`
	SlowQueryTime  time.Duration `mapstructure:"slow_query_time"`
}

type SchemaConfig struct {
	Path    string `mapstructure:"path"`
	OnError string `mapstructure:"on_error"`
}

type SeedConfig struct {
	// Catalog is a YAML file path; empty uses the built-in catalog.
	Catalog string `mapstructure:"catalog"`
}

type KoboConfig struct {
	APIURL  string `mapstructure:"api_url"`
	Token   string `mapstructure:"token"`
	FormUID string `mapstructure:"form_uid"`
}

// bindings maps configuration keys to the environment variables read for
// them, first match wins.
var bindings = map[string][]string{
	"environment":               {"APP_ENV", "NODE_ENV"},
	"version":                   {"APP_VERSION"},
	"port":                      {"PORT"},
	"frontend_url":              {"FRONTEND_URL"},
	"render":                    {"RENDER"},
	"log.level":                 {"LOG_LEVEL"},
	"log.format":                {"LOG_FORMAT"},
	"log.color":                 {"LOG_COLOR"},
	"database.url":              {"DATABASE_URL"},
	"database.type":             {"DB_TYPE"},
	"database.host":             {"DB_HOST"},
	"database.port":             {"DB_PORT"},
	"database.user":             {"DB_USER"},
	"database.password":         {"DB_PASSWORD"},
	"database.name":             {"DB_NAME"},
	"database.sslmode":          {"DB_SSLMODE"},
	"database.max_open_conns":   {"DB_MAX_OPEN_CONNS"},
	"database.max_idle_conns":   {"DB_MAX_IDLE_CONNS"},
	"database.connect_timeout":  {"DB_CONNECT_TIMEOUT"},
	"database.enable_query_log": {"DB_ENABLE_QUERY_LOG"},
	"database.slow_query_time":  {"DB_SLOW_QUERY_TIME"},
	"schema.path":               {"SCHEMA_PATH"},
	"schema.on_error":           {"SCHEMA_ON_ERROR"},
	"seed.catalog":              {"SEED_CATALOG"},
	"kobo.api_url":              {"KOBO_API_URL"},
	"kobo.token":                {"KOBO_TOKEN"},
	"kobo.form_uid":             {"FORM_UID"},
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", EnvDevelopment)
	v.SetDefault("version", "1.0.0")
	v.SetDefault("port", 3000)
	v.SetDefault("render", false)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("log.color", false)

	v.SetDefault("database.type", database.TypePostgres)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.name", "scholar")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 2)
	v.SetDefault("database.connect_timeout", 10*time.Second)
	v.SetDefault("database.enable_query_log", false)
	v.SetDefault("database.slow_query_time", 2*time.Second)

	v.SetDefault("schema.path", "configs/sql/schema.sql")
	v.SetDefault("schema.on_error", database.StatementErrorContinue.Name())
}

// Load reads .env files (default ".env"; missing files are ignored), then
// the environment.
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("loading %s: %w", f, err)
		}
	}

	v := viper.New()
	setDefaults(v)
	for key, envs := range bindings {
		if err := v.BindEnv(append([]string{key}, envs...)...); err != nil {
			return nil, fmt.Errorf("binding %s: %w", key, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}
	cfg.Environment = strings.ToLower(strings.TrimSpace(cfg.Environment))

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid PORT %d", c.Port)
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("invalid LOG_FORMAT %q, want text or json", c.Log.Format)
	}
	if _, err := c.StatementErrorPolicy(); err != nil {
		return fmt.Errorf("invalid SCHEMA_ON_ERROR: %w", err)
	}
	if c.Database.URL == "" && c.Database.Type == "" {
		return errors.New("either DATABASE_URL or DB_TYPE is required")
	}
	return nil
}

func (c *Config) IsProduction() bool { return c.Environment == EnvProduction }

func (c *Config) StatementErrorPolicy() (database.OnStatementError, error) {
	return database.ParseOnStatementError(c.Schema.OnError)
}

// ConnectionConfig derives the database connection settings. DATABASE_URL
// wins over discrete parameters and is read as a DSN of DB_TYPE. TLS is
// required for URLs without an sslmode and, in production, for discrete
// parameters too.
func (c *Config) ConnectionConfig() *database.ConnectionConfig {
	d := c.Database
	cc := database.DefaultConnectionConfig()
	cc.Type = d.Type
	cc.URL = d.URL
	cc.Host = d.Host
	cc.Port = d.Port
	cc.Username = d.User
	cc.Password = d.Password
	cc.DBName = d.Name
	cc.SSLMode = d.SSLMode
	cc.EnableQueryLog = d.EnableQueryLog
	cc.SlowQueryTime = d.SlowQueryTime
	cc.ColorLogs = c.Log.Color && strings.EqualFold(c.Log.Format, "text")
	if d.MaxOpenConns > 0 {
		cc.MaxOpenConns = d.MaxOpenConns
	}
	if d.MaxIdleConns > 0 {
		cc.MaxIdleConns = d.MaxIdleConns
	}
	if d.ConnectTimeout > 0 {
		cc.ConnectTimeout = d.ConnectTimeout
	}

	if cc.SSLMode == "" && cc.URL == "" && c.IsProduction() {
		cc.SSLMode = "require"
	}
	return cc
}

// HealthOptions are the reporter settings derived from the configuration.
func (c *Config) HealthOptions() health.Options {
	return health.Options{
		Environment: c.Environment,
		Version:     c.Version,
		Kobo: health.KoboConfig{
			APIURL:  c.Kobo.APIURL,
			Token:   c.Kobo.Token,
			FormUID: c.Kobo.FormUID,
		},
	}
}

// AllowedOrigins is the CORS allow list: the frontend in production when
// it is set, anything otherwise.
func (c *Config) AllowedOrigins() []string {
	if c.IsProduction() && c.FrontendURL != "" {
		return []string{c.FrontendURL}
	}
	return []string{"*"}
}
