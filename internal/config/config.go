// Package config loads ledgerd's runtime configuration from a TOML file
// and LEDGERD_-prefixed environment variables, mirroring the teacher's
// viper-based layered config (internal/config: defaults, then file, then
// env) generalized from rippled.cfg's server/peer/ripple sections down to
// the ledger's own writer, HSM and settlement knobs.
package config

import "time"

// Config is ledgerd's complete runtime configuration.
type Config struct {
	Ledger     LedgerConfig     `toml:"ledger" mapstructure:"ledger"`
	Settlement SettlementConfig `toml:"settlement" mapstructure:"settlement"`
	HSM        HSMConfig        `toml:"hsm" mapstructure:"hsm"`
	Storage    StorageConfig    `toml:"storage" mapstructure:"storage"`
	GRPC       GRPCConfig       `toml:"grpc" mapstructure:"grpc"`
	Log        LogConfig        `toml:"log" mapstructure:"log"`

	configPath string `toml:"-" mapstructure:"-"`
}

// LedgerConfig controls the single-writer actor's batching and block
// closing, per §6 of the spec.
type LedgerConfig struct {
	BlockSize       int           `toml:"block_size" mapstructure:"block_size"`
	BlockTimeoutMs  int           `toml:"block_timeout_ms" mapstructure:"block_timeout_ms"`
	BatchMaxEvents  int           `toml:"batch_max_events" mapstructure:"batch_max_events"`
	BatchMaxDelayMs int           `toml:"batch_max_delay_ms" mapstructure:"batch_max_delay_ms"`
	MailboxCapacity int           `toml:"mailbox_capacity" mapstructure:"mailbox_capacity"`
	AppendTimeoutMs int           `toml:"append_timeout_ms" mapstructure:"append_timeout_ms"`
}

// SettlementConfig controls the settlement window manager's schedule and
// retry budget.
type SettlementConfig struct {
	WindowCron         string `toml:"window_cron" mapstructure:"window_cron"`
	WindowIntervalMs   int    `toml:"window_interval_ms" mapstructure:"window_interval_ms"`
	MaxWindowsBeforeFail int  `toml:"max_windows_before_fail" mapstructure:"max_windows_before_fail"`
}

// HSMConfig selects and parameterizes the signing capability. Type is
// one of "softkey", "ecdsa-secp256k1", or "pkcs11".
type HSMConfig struct {
	Type      string `toml:"type" mapstructure:"type"`
	KeyID     string `toml:"key_id" mapstructure:"key_id"`
	Epoch     string `toml:"epoch" mapstructure:"epoch"`
	Algorithm string `toml:"algorithm" mapstructure:"algorithm"`
	Seed      string `toml:"seed" mapstructure:"seed"`
	ModulePath string `toml:"module_path" mapstructure:"module_path"`
	SlotID    uint   `toml:"slot_id" mapstructure:"slot_id"`
	PIN       string `toml:"pin" mapstructure:"pin"`
}

// StorageConfig selects and parameterizes the KV backend. Backend is one
// of "pebble" or "bbolt".
type StorageConfig struct {
	Backend string `toml:"backend" mapstructure:"backend"`
	Path    string `toml:"path" mapstructure:"path"`
}

// GRPCConfig controls the external submission/query/subscribe surface.
type GRPCConfig struct {
	ListenAddr string `toml:"listen_addr" mapstructure:"listen_addr"`
}

// LogConfig controls the structured logger.
type LogConfig struct {
	Level       string `toml:"level" mapstructure:"level"`
	Development bool   `toml:"development" mapstructure:"development"`
}

func (c *Config) GetConfigPath() string { return c.configPath }

func (c LedgerConfig) BlockTimeout() time.Duration {
	return time.Duration(c.BlockTimeoutMs) * time.Millisecond
}

func (c LedgerConfig) BatchMaxDelay() time.Duration {
	return time.Duration(c.BatchMaxDelayMs) * time.Millisecond
}

func (c LedgerConfig) AppendTimeout() time.Duration {
	return time.Duration(c.AppendTimeoutMs) * time.Millisecond
}

func (c SettlementConfig) WindowInterval() time.Duration {
	return time.Duration(c.WindowIntervalMs) * time.Millisecond
}
