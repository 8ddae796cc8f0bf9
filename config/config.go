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

// Package config loads todostore settings from a YAML file and the
// environment.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/davecgh/go-spew/spew"
	"github.com/spf13/viper"
	"github.com/tomoncle/todostore/database"
	"github.com/tomoncle/todostore/utils"
)

// EnvPrefix prefixes every environment override, e.g. TODOSTORE_DATABASE_HOST.
const EnvPrefix = "TODOSTORE"

// Application environment names
const (
	Development = "development"
	Test        = "test"
	Production  = "production"
)

// LogConfig holds logger settings.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // text or json
}

// Config is the full todostore configuration.
type Config struct {
	database.Config `mapstructure:",squash"`
	Log             LogConfig `mapstructure:"log"`
}

// Load reads the YAML file at path, when given, on top of the defaults and
// applies TODOSTORE_* environment overrides.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return cfg, nil
}

// ApplyLogging configures the process-wide loggers from the log section.
func (c *Config) ApplyLogging() {
	if c.Log.Format != "" {
		utils.ConfigureConsoleLogFormat(c.Log.Format)
	}
	if c.Log.Level != "" {
		utils.ConfigureLogLevel(c.Log.Level)
	}
}

// Dump renders the configuration for debug logs with the password masked.
func (c *Config) Dump() string {
	masked := *c
	if masked.ConnectionConfig.Password != "" {
		masked.ConnectionConfig.Password = "******"
	}
	return spew.Sdump(masked)
}

func appEnv() string {
	if env := os.Getenv("APP_ENV"); env != "" {
		return env
	}
	return Development
}

func setDefaults(v *viper.Viper) {
	conn := database.DefaultConnectionConfig()
	defaults := map[string]interface{}{
		"database.type":                  conn.Type,
		"database.driver":                conn.Driver,
		"database.host":                  conn.Host,
		"database.port":                  conn.Port,
		"database.username":              conn.Username,
		"database.password":              conn.Password,
		"database.dbname":                conn.DBName,
		"database.sslmode":               conn.SSLMode,
		"database.max_idle_conns":        conn.MaxIdleConns,
		"database.max_open_conns":        conn.MaxOpenConns,
		"database.conn_max_lifetime":     conn.ConnMaxLifetime,
		"database.conn_max_idle_time":    conn.ConnMaxIdleTime,
		"database.connect_timeout":       conn.ConnectTimeout,
		"database.read_timeout":          conn.ReadTimeout,
		"database.write_timeout":         conn.WriteTimeout,
		"database.enable_reconnect":      conn.EnableReconnect,
		"database.reconnect_interval":    conn.ReconnectInterval,
		"database.max_reconnect_tries":   conn.MaxReconnectTries,
		"database.health_check_interval": conn.HealthCheckInterval,
		"database.enable_query_log":      conn.EnableQueryLog,
		"database.slow_query_time":       conn.SlowQueryTime,

		"migrate.enable_migrate_on_startup": true,

		"data_init.auto_init_on_startup":   false,
		"data_init.auto_init_on_migration": false,
		"data_init.filepath":               "",
		"data_init.environment":            appEnv(),

		"log.level":  "",
		"log.format": "",
	}
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
}
