// Package config holds the tunables shared by the disk manager, buffer
// pool, and heap file layer: page size, buffer pool capacity, and the
// replacement policy the pool should use.
package config

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/viper"
)

// DefaultPageSize matches the classic 4KB OS page.
const DefaultPageSize = 4096

// DefaultBufferPoolSize is the number of frames the reference buffer pool
// allocates when none is configured.
const DefaultBufferPoolSize = 16

// DefaultReplacementPolicy is the buffer pool eviction policy used when
// none is configured.
const DefaultReplacementPolicy = "LRU"

// Config carries the parameters the storage layer is built around.
type Config struct {
	Dir               string `mapstructure:"dir"`
	PageSize          int    `mapstructure:"page_size"`
	BufferPoolSize    int    `mapstructure:"buffer_pool_size"`
	ReplacementPolicy string `mapstructure:"replacement_policy"`
}

// Default returns a Config with sensible defaults: 4096-byte pages, 16
// buffer frames, LRU replacement.
func Default(dir string) *Config {
	return &Config{
		Dir:               dir,
		PageSize:          DefaultPageSize,
		BufferPoolSize:    DefaultBufferPoolSize,
		ReplacementPolicy: DefaultReplacementPolicy,
	}
}

// Load reads a YAML or JSON configuration file through viper and fills in
// any field left at its zero value with the package default; an empty Dir
// becomes the directory that holds the configuration file.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal %s: %w", path, err)
	}

	if cfg.Dir == "" {
		cfg.Dir = filepath.Dir(path)
	}
	if cfg.PageSize == 0 {
		cfg.PageSize = DefaultPageSize
	}
	if cfg.BufferPoolSize == 0 {
		cfg.BufferPoolSize = DefaultBufferPoolSize
	}
	if cfg.ReplacementPolicy == "" {
		cfg.ReplacementPolicy = DefaultReplacementPolicy
	}
	return cfg, nil
}
