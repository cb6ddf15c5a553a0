package config

import "github.com/spf13/viper"

// setDefaults sets every default value enumerated in §6 of the spec
// before the config file or environment is layered on top.
func setDefaults(v *viper.Viper) {
	v.SetDefault("ledger.block_size", 1000)
	v.SetDefault("ledger.block_timeout_ms", 5000)
	v.SetDefault("ledger.batch_max_events", 512)
	v.SetDefault("ledger.batch_max_delay_ms", 10)
	v.SetDefault("ledger.mailbox_capacity", 1024)
	v.SetDefault("ledger.append_timeout_ms", 5000)

	v.SetDefault("settlement.window_interval_ms", int(6*60*60*1000)) // 6h
	v.SetDefault("settlement.max_windows_before_fail", 4)

	v.SetDefault("hsm.type", "softkey")
	v.SetDefault("hsm.algorithm", "ed25519")
	v.SetDefault("hsm.key_id", "writer-key-1")
	v.SetDefault("hsm.epoch", "epoch-1")

	v.SetDefault("storage.backend", "pebble")
	v.SetDefault("storage.path", "./data/ledgerd")

	v.SetDefault("grpc.listen_addr", "127.0.0.1:7070")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)
}
