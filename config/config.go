/*
Package config loads server settings and builds the logger.

PRECEDENCE:
  command-line flag > environment variable > .env file > default

  The .env file only fills variables that are not already set in the
  environment (godotenv semantics).

SETTINGS:
  -port          PORT          HTTP server port (default: 8080)
  -db            DB_PATH       SQLite database path (default: backoffice.db)
                               Use ":memory:" for an in-memory database
  -log-level     LOG_LEVEL     debug | info | warn | error (default: info)
  -log-format    LOG_FORMAT    console | json (default: console)
  -cors-origins  CORS_ORIGINS  comma-separated allowed origins (default: *)
  -env                         path of the .env file (default: .env)
*/
package config

import (
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

type Config struct {
	Port        int
	DBPath      string
	CORSOrigins []string
	Log         LogConfig
}

type LogConfig struct {
	Level  string
	Format string
}

func defaults() Config {
	return Config{
		Port:        8080,
		DBPath:      "backoffice.db",
		CORSOrigins: []string{"*"},
		Log:         LogConfig{Level: "info", Format: "console"},
	}
}

// Load parses args (without the program name) on top of the environment.
func Load(args []string) (*Config, error) {
	cfg := defaults()

	flags := flag.NewFlagSet("backoffice", flag.ContinueOnError)
	port := flags.Int("port", cfg.Port, "HTTP server port")
	dbPath := flags.String("db", cfg.DBPath, "SQLite database path")
	logLevel := flags.String("log-level", cfg.Log.Level, "log level (debug, info, warn, error)")
	logFormat := flags.String("log-format", cfg.Log.Format, "log format (console, json)")
	origins := flags.String("cors-origins", strings.Join(cfg.CORSOrigins, ","), "comma-separated allowed CORS origins")
	envFile := flags.String("env", ".env", "path of the .env file")
	if err := flags.Parse(args); err != nil {
		return nil, err
	}

	if err := loadEnvFile(*envFile); err != nil {
		return nil, err
	}

	set := make(map[string]bool)
	flags.Visit(func(f *flag.Flag) { set[f.Name] = true })

	// Environment first, then explicit flags on top.
	if v, ok := os.LookupEnv("PORT"); ok {
		p, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid PORT %q: %w", v, err)
		}
		cfg.Port = p
	}
	if v, ok := os.LookupEnv("DB_PATH"); ok {
		cfg.DBPath = v
	}
	if v, ok := os.LookupEnv("LOG_LEVEL"); ok {
		cfg.Log.Level = v
	}
	if v, ok := os.LookupEnv("LOG_FORMAT"); ok {
		cfg.Log.Format = v
	}
	if v, ok := os.LookupEnv("CORS_ORIGINS"); ok {
		cfg.CORSOrigins = splitList(v)
	}

	if set["port"] {
		cfg.Port = *port
	}
	if set["db"] {
		cfg.DBPath = *dbPath
	}
	if set["log-level"] {
		cfg.Log.Level = *logLevel
	}
	if set["log-format"] {
		cfg.Log.Format = *logFormat
	}
	if set["cors-origins"] {
		cfg.CORSOrigins = splitList(*origins)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("port out of range: %d", c.Port)
	}
	if c.DBPath == "" {
		return errors.New("database path is required")
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log level %q", c.Log.Level)
	}
	switch c.Log.Format {
	case "console", "json":
	default:
		return fmt.Errorf("unknown log format %q", c.Log.Format)
	}
	return nil
}

func loadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// NewLogger builds a zap logger: JSON production encoding for "json",
// the development console encoder otherwise.
func NewLogger(cfg LogConfig) (*zap.Logger, error) {
	var zapCfg zap.Config

	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
	}

	switch cfg.Level {
	case "debug":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	case "info":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	case "warn":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	case "error":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.ErrorLevel)
	}

	return zapCfg.Build()
}
