package config

import (
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	StorageFile   = "file"
	StorageMemory = "memory"
	StorageSQL    = "sql"
)

type Config struct {
	Env             string        `yaml:"env"`
	HTTPAddr        string        `yaml:"http_addr"`
	Storage         string        `yaml:"storage"`
	DataFile        string        `yaml:"data_file"`
	DBDriver        string        `yaml:"db_driver"`
	DBDSN           string        `yaml:"db_dsn"`
	DBSlowQuery     time.Duration `yaml:"db_slow_query"`
	LogLevel        string        `yaml:"log_level"`
	LogFormat       string        `yaml:"log_format"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

func Default() Config {
	return Config{
		Env:             "dev",
		HTTPAddr:        ":8080",
		Storage:         StorageFile,
		DataFile:        "users.json",
		DBDriver:        "sqlite3",
		DBDSN:           "./database.db",
		DBSlowQuery:     200 * time.Millisecond,
		LogLevel:        "info",
		LogFormat:       "console",
		ReadTimeout:     15 * time.Second,
		WriteTimeout:    15 * time.Second,
		ShutdownTimeout: 5 * time.Second,
	}
}

// Load resolves the configuration. Later sources win: defaults, the YAML
// file named by CONFIG_FILE, the environment (a .env file fills in
// variables that are not already set), then command line flags.
func Load(args []string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	cfg := Default()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}
	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}

	flags := flag.NewFlagSet("api", flag.ContinueOnError)
	flags.StringVar(&cfg.HTTPAddr, "http", cfg.HTTPAddr, "listen address")
	flags.StringVar(&cfg.Storage, "storage", cfg.Storage, "storage backend: file, memory or sql")
	flags.StringVar(&cfg.Env, "env", cfg.Env, "environment name")
	flags.StringVar(&cfg.DataFile, "data-file", cfg.DataFile, "users file for the file backend")
	flags.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "debug, info, warn or error")
	if err := flags.Parse(args); err != nil {
		return Config{}, err
	}
	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	switch c.Storage {
	case StorageFile, StorageMemory, StorageSQL:
	default:
		return fmt.Errorf("unknown storage %q", c.Storage)
	}
	if c.Storage == StorageFile && c.DataFile == "" {
		return errors.New("data file is required for file storage")
	}
	if c.Storage == StorageSQL && (c.DBDriver == "" || c.DBDSN == "") {
		return errors.New("db driver and dsn are required for sql storage")
	}
	return nil
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config) error {
	setenv(&cfg.Env, "APP_ENV")
	setenv(&cfg.HTTPAddr, "HTTP_ADDR")
	setenv(&cfg.Storage, "STORAGE")
	setenv(&cfg.DataFile, "DATA_FILE")
	setenv(&cfg.LogLevel, "LOG_LEVEL")
	setenv(&cfg.LogFormat, "LOG_FORMAT")
	if v := os.Getenv("DATABASE_URL"); v != "" {
		driver, dsn, err := ParseDatabaseURL(v)
		if err != nil {
			return err
		}
		cfg.DBDriver, cfg.DBDSN = driver, dsn
	}
	setenv(&cfg.DBDriver, "DB_DRIVER")
	setenv(&cfg.DBDSN, "DB_DSN")
	for key, dst := range map[string]*time.Duration{
		"DB_SLOW_QUERY":    &cfg.DBSlowQuery,
		"READ_TIMEOUT":     &cfg.ReadTimeout,
		"WRITE_TIMEOUT":    &cfg.WriteTimeout,
		"SHUTDOWN_TIMEOUT": &cfg.ShutdownTimeout,
	} {
		if err := setdur(dst, key); err != nil {
			return err
		}
	}
	return nil
}

func setenv(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setdur(dst *time.Duration, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = d
	return nil
}

// ParseDatabaseURL maps a database URL to a database/sql driver and DSN.
// sqlite:///./database.db opens ./database.db with sqlite3; postgres and
// postgresql URLs are handed to pgx unchanged.
func ParseDatabaseURL(raw string) (driver, dsn string, err error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", "", fmt.Errorf("DATABASE_URL: %w", err)
	}
	switch u.Scheme {
	case "sqlite", "sqlite3":
		path := strings.TrimPrefix(raw, u.Scheme+"://")
		path = strings.TrimPrefix(path, "/")
		if path == "" {
			return "", "", errors.New("DATABASE_URL: missing sqlite path")
		}
		return "sqlite3", path, nil
	case "postgres", "postgresql":
		return "pgx", raw, nil
	default:
		return "", "", fmt.Errorf("DATABASE_URL: unsupported scheme %q", u.Scheme)
	}
}
