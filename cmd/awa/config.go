package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// serveConfig holds everything the serve command wires together.
// Priority: flags > AWA_* env vars > awa.yaml > defaults.
type serveConfig struct {
	Listen string `mapstructure:"listen"`
	DBPath string `mapstructure:"db_path"`
	AIKey  string `mapstructure:"ai_key"`
	MCP    bool   `mapstructure:"mcp"`
	Log    struct {
		Level  string `mapstructure:"level"`
		Format string `mapstructure:"format"`
	} `mapstructure:"log"`
	Scheduler struct {
		Interval time.Duration `mapstructure:"interval"`
	} `mapstructure:"scheduler"`
}

// flagBindings maps serve flag names to config keys.
var flagBindings = map[string]string{
	"listen":             "listen",
	"db":                 "db_path",
	"ai-key":             "ai_key",
	"mcp":                "mcp",
	"log-level":          "log.level",
	"log-format":         "log.format",
	"scheduler-interval": "scheduler.interval",
}

// loadServeConfig layers the configuration sources. The config file is
// optional; a missing awa.yaml is not an error.
func loadServeConfig(flags *pflag.FlagSet) (serveConfig, error) {
	v := viper.New()
	v.SetConfigName("awa")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.awa")

	v.SetDefault("listen", ":8420")
	v.SetDefault("db_path", "")
	v.SetDefault("ai_key", "")
	v.SetDefault("mcp", false)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("scheduler.interval", 30*time.Second)

	v.SetEnvPrefix("AWA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for flagName, key := range flagBindings {
		if f := flags.Lookup(flagName); f != nil {
			if err := v.BindPFlag(key, f); err != nil {
				return serveConfig{}, fmt.Errorf("bind flag %s: %w", flagName, err)
			}
		}
	}

	if err := v.ReadInConfig(); err != nil {
		if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound {
			return serveConfig{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg serveConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return serveConfig{}, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}
