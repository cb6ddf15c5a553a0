package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Load reads configuration from defaults, then the TOML file at
// configPath (if it exists), then LEDGERD_-prefixed environment
// variables, in that priority order, and validates the result.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			v.SetConfigFile(configPath)
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("config: read %s: %w", configPath, err)
			}
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("config: stat %s: %w", configPath, err)
		}
	}

	v.SetEnvPrefix("LEDGERD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	cfg.configPath = configPath

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return &cfg, nil
}

// Validate checks the constraints the spec places on configuration
// values (e.g. block_size must be >= 1) that viper's unmarshal step does
// not itself enforce.
func Validate(cfg *Config) error {
	if cfg.Ledger.BlockSize < 1 {
		return fmt.Errorf("ledger.block_size must be >= 1, got %d", cfg.Ledger.BlockSize)
	}
	if cfg.Ledger.BatchMaxEvents < 1 {
		return fmt.Errorf("ledger.batch_max_events must be >= 1, got %d", cfg.Ledger.BatchMaxEvents)
	}
	if cfg.Ledger.MailboxCapacity < 1 {
		return fmt.Errorf("ledger.mailbox_capacity must be >= 1, got %d", cfg.Ledger.MailboxCapacity)
	}
	if cfg.Settlement.MaxWindowsBeforeFail < 1 {
		return fmt.Errorf("settlement.max_windows_before_fail must be >= 1, got %d", cfg.Settlement.MaxWindowsBeforeFail)
	}
	switch cfg.HSM.Type {
	case "softkey", "ecdsa-secp256k1", "pkcs11":
	default:
		return fmt.Errorf("hsm.type must be one of softkey, ecdsa-secp256k1, pkcs11, got %q", cfg.HSM.Type)
	}
	switch cfg.Storage.Backend {
	case "pebble", "bbolt":
	default:
		return fmt.Errorf("storage.backend must be one of pebble, bbolt, got %q", cfg.Storage.Backend)
	}
	if cfg.Storage.Path == "" {
		return fmt.Errorf("storage.path must not be empty")
	}
	return nil
}
