package config

import (
	"time"

	redisclient "github.com/AugustoL/openscan/internal/infra/redis"
	"github.com/AugustoL/openscan/internal/infra/storage/postgres"
)

// AppConfig represents the top-level configuration.
type AppConfig struct {
	Server         ServerConfig       `yaml:"server"`
	Networks       []NetworkConfig    `yaml:"networks"`
	DefaultNetwork string             `yaml:"default_network"`
	Sync           SyncConfig         `yaml:"sync"`
	Redis          redisclient.Config `yaml:"redis"`
	Logging        LoggingConfig      `yaml:"logging"`
	Database       postgres.Config    `yaml:"database"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}

// NetworkConfig holds settings for one EVM chain.
type NetworkConfig struct {
	Name    string `yaml:"name"`
	ChainID uint64 `yaml:"chain_id"`
	RPCURL  string `yaml:"rpc_url"`
}

// SyncConfig holds sync-loop settings.
type SyncConfig struct {
	PollInterval  time.Duration `yaml:"poll_interval"`
	BlocksToIndex uint64        `yaml:"blocks_to_index"`
}

// Network returns the configured network with the given name.
func (c *AppConfig) Network(name string) (NetworkConfig, bool) {
	for _, n := range c.Networks {
		if n.Name == name {
			return n, true
		}
	}
	return NetworkConfig{}, false
}
