package main

import (
	"fmt"
	"os"
	"time"

	"practicelab/internal/common/cache"
	"practicelab/internal/common/db"
	"practicelab/internal/common/storage"
	"practicelab/internal/practice/fetcher"
	"practicelab/internal/practice/service"
	"practicelab/pkg/utils/logger"

	"gopkg.in/yaml.v3"
)

const (
	defaultHTTPAddr        = "0.0.0.0:8090"
	defaultReadTimeout     = 5 * time.Second
	defaultWriteTimeout    = 30 * time.Second
	defaultIdleTimeout     = 60 * time.Second
	defaultShutdownTimeout = 10 * time.Second
)

// Dataset payload sources for questions that carry none inline.
const (
	FetchNone   = "none"
	FetchHTTP   = "http"
	FetchObject = "object"
	FetchMySQL  = "mysql"
)

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr         string        `yaml:"addr"`
	ReadTimeout  time.Duration `yaml:"readTimeout"`
	WriteTimeout time.Duration `yaml:"writeTimeout"`
	IdleTimeout  time.Duration `yaml:"idleTimeout"`
}

// FetchConfig selects and configures the dataset fetcher.
type FetchConfig struct {
	Mode  string              `yaml:"mode"`
	HTTP  fetcher.HTTPConfig  `yaml:"http"`
	MinIO storage.MinIOConfig `yaml:"minio"`
	MySQL db.MySQLConfig      `yaml:"mysql"`
	// Redis enables a shared payload cache when addr is set.
	Redis cache.RedisConfig    `yaml:"redis"`
	Cache fetcher.CachedConfig `yaml:"cache"`
}

// AppConfig holds practice-service configuration.
type AppConfig struct {
	Server   ServerConfig   `yaml:"server"`
	Logger   logger.Config  `yaml:"logger"`
	Practice service.Config `yaml:"practice"`
	Fetch    FetchConfig    `yaml:"fetch"`
}

func loadYAML(path string, out interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file failed: %w", err)
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("parse config file failed: %w", err)
	}
	return nil
}

func loadAppConfig(path string) (*AppConfig, error) {
	var cfg AppConfig
	if err := loadYAML(path, &cfg); err != nil {
		return nil, err
	}
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = defaultHTTPAddr
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = defaultReadTimeout
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = defaultWriteTimeout
	}
	if cfg.Server.IdleTimeout == 0 {
		cfg.Server.IdleTimeout = defaultIdleTimeout
	}
	cfg.Practice.ApplyDefaults()

	switch cfg.Fetch.Mode {
	case "":
		cfg.Fetch.Mode = FetchNone
	case FetchNone, FetchHTTP, FetchObject, FetchMySQL:
	default:
		return nil, fmt.Errorf("unknown fetch mode %q", cfg.Fetch.Mode)
	}
	if cfg.Fetch.Mode == FetchObject && cfg.Fetch.MinIO.Bucket == "" {
		return nil, fmt.Errorf("fetch.minio.bucket is required")
	}
	if cfg.Fetch.Mode == FetchMySQL && cfg.Fetch.MySQL.DSN == "" {
		return nil, fmt.Errorf("fetch.mysql.dsn is required")
	}
	return &cfg, nil
}
