package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config stores all configuration of the engine. Values are read by viper
// from a config file, environment variables, or defaults.
type Config struct {
	Index IndexConfig `mapstructure:"index"`
	Watch WatchConfig `mapstructure:"watch"`
	Log   LogConfig   `mapstructure:"log"`
}

// IndexConfig controls discovery and parsing.
type IndexConfig struct {
	LogDirName   string   `mapstructure:"logDirName"`
	Extensions   []string `mapstructure:"extensions"`
	Workers      int      `mapstructure:"workers"`
	FlattenDepth int      `mapstructure:"flattenDepth"`
	StoreDir     string   `mapstructure:"storeDir"`
}

// WatchConfig controls the polling watcher.
type WatchConfig struct {
	IntervalSeconds int  `mapstructure:"intervalSeconds"`
	Live            bool `mapstructure:"live"`
}

// LogConfig controls engine logging.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
}

// Interval returns the watch interval as a duration.
func (w WatchConfig) Interval() time.Duration {
	return time.Duration(w.IntervalSeconds) * time.Second
}

// Load reads configuration from configPath, or from a logdex.yaml next to
// the working directory when configPath is empty. Missing config files are
// not an error; defaults apply.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("logdex")
		v.SetConfigType("yaml")
	}

	v.SetDefault("index.logDirName", ".smooai-logs")
	v.SetDefault("index.extensions", []string{".ansi", ".log", ".json", ".jsonl"})
	v.SetDefault("index.workers", 0) // 0 = derive from CPU count
	v.SetDefault("index.flattenDepth", 32)
	v.SetDefault("index.storeDir", "")
	v.SetDefault("watch.intervalSeconds", 2)
	v.SetDefault("watch.live", true)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)

	v.SetEnvPrefix("LOGDEX")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return &cfg, nil
}
