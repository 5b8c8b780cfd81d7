package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of environment overrides, e.g. SHARDSIM_PROTOCOL_SHARDS
const EnvPrefix = "SHARDSIM"

// Load loads the bundle from multiple sources in priority order:
// 1. Default values
// 2. Configuration file (toml, yaml or json)
// 3. Environment variables (SHARDSIM_ prefix)
// 4. Stake file, when the distribution is "file"
func Load(path string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if path != "" {
		if err := loadConfigFile(v, path); err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	config.configPath = path

	if config.UsesFileStakes() {
		stakes, err := LoadStakes(config.ResolvePath(config.Stake.File), config.Network.Size)
		if err != nil {
			return nil, fmt.Errorf("failed to load stakes: %w", err)
		}
		config.Stakes = stakes
	}

	if err := ValidateConfig(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

// Default returns the default bundle without reading any file or environment
func Default() *Config {
	v := viper.New()
	setDefaults(v)

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		panic(fmt.Sprintf("config: invalid defaults: %v", err))
	}
	return &config
}

// loadConfigFile reads the configuration file into v
func loadConfigFile(v *viper.Viper, configPath string) error {
	v.SetConfigFile(configPath)

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return fmt.Errorf("config file does not exist: %s", configPath)
	}

	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("failed to read config file %s: %w", configPath, err)
	}

	return nil
}
