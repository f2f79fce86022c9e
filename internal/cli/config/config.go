package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"practicelab/internal/practice/fetcher"
	"practicelab/internal/practice/service"
	"practicelab/pkg/utils/logger"

	"github.com/spf13/viper"
)

const (
	DefaultHistoryFile = ".practice_history"
	envPrefix          = "PRACTICE"
)

// Config holds CLI configuration.
type Config struct {
	HistoryFile string             `mapstructure:"historyFile"`
	PrettyJSON  bool               `mapstructure:"prettyJSON"`
	Logger      logger.Config      `mapstructure:"logger"`
	Practice    service.Config     `mapstructure:"practice"`
	Fetch       fetcher.HTTPConfig `mapstructure:"fetch"`
}

// Load reads path when it exists, then PRACTICE_* environment overrides.
// An empty path looks for practice.yaml in the working directory.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetDefault("historyFile", DefaultHistoryFile)
	v.SetDefault("prettyJSON", true)
	v.SetDefault("logger.level", "warn")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.outputPath", "stderr")
	v.SetDefault("practice.statementTimeout", "10s")
	v.SetDefault("practice.loadTimeout", "10s")
	v.SetDefault("fetch.baseURL", "")
	v.SetDefault("fetch.timeout", 5*time.Second)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("practice")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config file failed: %w", err)
		}
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse config failed: %w", err)
	}
	cfg.Practice.ApplyDefaults()
	// A local REPL holds a single session.
	cfg.Practice.MaxSessions = 1
	return cfg, nil
}
