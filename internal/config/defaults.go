package config

import "github.com/spf13/viper"

// setDefaults sets the default values of a Harmony throughput run
func setDefaults(v *viper.Viper) {
	v.SetDefault("seed", 0)

	// Network defaults
	v.SetDefault("network.size", 1000)
	v.SetDefault("network.placement", "random")
	v.SetDefault("network.overlay_degree", 0) // 0 means no gossip overlay
	v.SetDefault("network.discard_time_ms", 0)

	// Protocol defaults
	v.SetDefault("protocol.epochs", 3)
	v.SetDefault("protocol.epoch_slots", 300)
	v.SetDefault("protocol.slot_duration_ms", 10)
	v.SetDefault("protocol.shards", 4)
	v.SetDefault("protocol.lambda", 600) // recommended security parameter
	v.SetDefault("protocol.vdf_slots", 5)
	v.SetDefault("protocol.leader_selection", "scheduled")
	v.SetDefault("protocol.header_size", 80)
	v.SetDefault("protocol.tx_size", 670)
	v.SetDefault("protocol.expected_tx", 500)

	// Stake defaults
	v.SetDefault("stake.distribution", "uniform")

	// Latency defaults
	v.SetDefault("latency.model", "fixed")
	v.SetDefault("latency.fixed_ms", 50)

	// Attack defaults
	v.SetDefault("attack.byzantine_nodes", 0)
	v.SetDefault("attack.dos", false)
	v.SetDefault("attack.dos_nodes", 1)

	// Output defaults
	v.SetDefault("output.dir", "")

	// Log defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)
}
