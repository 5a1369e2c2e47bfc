// Package config layers an optional ~/.staticld.yaml file, environment
// variables, and the STATICLD_LOG override into the process-wide log
// level, following the teacher's cmd/root.go initConfig shape.
package config

import (
	"os"
	"strings"

	"github.com/spf13/viper"
)

const defaultLogLevel = "info"

// Load reads ~/.staticld.yaml (if present) and the environment into viper,
// returning the resolved log level name. STATICLD_LOG, when set, wins over
// anything the config file or its own default provides.
func Load() string {
	viper.SetConfigName(".staticld")
	viper.SetConfigType("yaml")

	if home, err := os.UserHomeDir(); err == nil {
		viper.AddConfigPath(home)
	}

	viper.SetDefault("log_level", defaultLogLevel)
	_ = viper.BindEnv("log_level", "STATICLD_LOG")
	viper.AutomaticEnv()

	_ = viper.ReadInConfig() // absent config file is not an error

	if env := strings.TrimSpace(os.Getenv("STATICLD_LOG")); env != "" {
		return env
	}
	return viper.GetString("log_level")
}

// DefaultOutput returns the configured default output path, falling back
// to "a.out" when unset, matching spec.md §6's -o default.
func DefaultOutput() string {
	if out := viper.GetString("default_output"); out != "" {
		return out
	}
	return "a.out"
}
