// Package config resolves harrowctl's cache capacity, cache block
// size, and log level from, in order of precedence: CLI flags,
// HARROW_-prefixed environment variables, an optional YAML config
// file, then the package defaults — grounded on the pack's
// spf13/viper convention (marmos91-dittofs's pkg/config).
package config

import (
	"fmt"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Defaults match SPEC_FULL.md §6.2 / spec.md §6.2.
const (
	DefaultCapacity  = 5
	DefaultBlockSize = 128 << 20 // 128 MiB
	DefaultLogLevel  = "info"
)

// Config is the resolved configuration for a harrowctl invocation.
type Config struct {
	Capacity  int    `mapstructure:"cache_capacity"`
	BlockSize int64  `mapstructure:"cache_block_size"`
	LogLevel  string `mapstructure:"log_level"`
}

// Load resolves Config from flags (already parsed onto fs), the
// environment, and an optional config file named by the --config
// flag, if fs defines one.
func Load(fs *pflag.FlagSet) (Config, error) {
	v := viper.New()

	v.SetDefault("cache_capacity", DefaultCapacity)
	v.SetDefault("cache_block_size", DefaultBlockSize)
	v.SetDefault("log_level", DefaultLogLevel)

	v.SetEnvPrefix("HARROW")
	v.AutomaticEnv()

	// Flags are registered with dashed names (--cache-capacity) but
	// the struct tags and defaults above use underscored keys; viper
	// does not treat '-' and '_' as equivalent, so each flag is bound
	// to its underscore key explicitly rather than via BindPFlags
	// (which would bind "cache-capacity" verbatim and leave the
	// underscore key, and therefore the flag value, unread by
	// Unmarshal).
	binds := map[string]string{
		"cache_capacity":   "cache-capacity",
		"cache_block_size": "cache-block-size",
		"log_level":        "log-level",
	}

	for key, flagName := range binds {
		if err := v.BindPFlag(key, fs.Lookup(flagName)); err != nil {
			return Config{}, fmt.Errorf("config: bind flag %q: %w", flagName, err)
		}
	}

	if path, err := fs.GetString("config"); err == nil && path != "" {
		v.SetConfigFile(path)

		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("config: read %q: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: unmarshal: %w", err)
	}

	if cfg.BlockSize == 0 {
		// A cache block size of 0 is promoted to one alignment unit
		// by the buffer package itself; config treats 0 as "inherit
		// the package default" instead, since an operator passing
		// --cache-block-size=0 almost certainly means "unset".
		cfg.BlockSize = DefaultBlockSize
	}

	return cfg, nil
}

// RegisterFlags adds the flags Load reads onto fs.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.Int("cache-capacity", DefaultCapacity, "number of blocks kept in the available cache")
	fs.Int64("cache-block-size", DefaultBlockSize, "size in bytes of each cached block")
	fs.String("log-level", DefaultLogLevel, "debug, info, warn, or error")
	fs.String("config", "", "path to an optional YAML config file")
}
