package config

import (
	"errors"
	"path/filepath"
)

// ErrInvalidConfiguration is returned for any bundle the simulator cannot run with.
var ErrInvalidConfiguration = errors.New("invalid configuration")

// Config is the complete simulation bundle.
// This mirrors the layout of shardsim.toml
type Config struct {
	// Seed of the single random generator driving the run
	Seed int64 `toml:"seed" mapstructure:"seed"`

	Network  NetworkConfig  `toml:"network" mapstructure:"network"`
	Protocol ProtocolConfig `toml:"protocol" mapstructure:"protocol"`
	Stake    StakeConfig    `toml:"stake" mapstructure:"stake"`
	Latency  LatencyConfig  `toml:"latency" mapstructure:"latency"`
	Attack   AttackConfig   `toml:"attack" mapstructure:"attack"`
	Scenario []EventConfig  `toml:"scenario" mapstructure:"scenario"`
	Output   OutputConfig   `toml:"output" mapstructure:"output"`
	Log      LogConfig      `toml:"log" mapstructure:"log"`

	// Stakes holds the per node stakes when Stake.Distribution is "file".
	// Filled by Load, never read from the file itself.
	Stakes []int64 `toml:"-" mapstructure:"-"`

	configPath string
}

// NetworkConfig describes the simulated nodes
type NetworkConfig struct {
	Size          int    `toml:"size" mapstructure:"size"`
	Placement     string `toml:"placement" mapstructure:"placement"` // fixed, random or cities
	Cities        []City `toml:"cities" mapstructure:"cities"`
	OverlayDegree int    `toml:"overlay_degree" mapstructure:"overlay_degree"`
	DiscardTimeMs int64  `toml:"discard_time_ms" mapstructure:"discard_time_ms"`
}

// City is a named location nodes can be placed at
type City struct {
	Name string `toml:"name" mapstructure:"name"`
	X    int    `toml:"x" mapstructure:"x"`
	Y    int    `toml:"y" mapstructure:"y"`
}

// ProtocolConfig holds the consensus parameters
type ProtocolConfig struct {
	Epochs          int    `toml:"epochs" mapstructure:"epochs"`
	EpochSlots      int    `toml:"epoch_slots" mapstructure:"epoch_slots"`
	SlotDurationMs  int64  `toml:"slot_duration_ms" mapstructure:"slot_duration_ms"`
	Shards          int    `toml:"shards" mapstructure:"shards"`
	Lambda          int    `toml:"lambda" mapstructure:"lambda"`
	VDFSlots        int    `toml:"vdf_slots" mapstructure:"vdf_slots"`
	LeaderSelection string `toml:"leader_selection" mapstructure:"leader_selection"` // scheduled or vrf
	HeaderSize      int    `toml:"header_size" mapstructure:"header_size"`
	TxSize          int    `toml:"tx_size" mapstructure:"tx_size"`
	ExpectedTx      int    `toml:"expected_tx" mapstructure:"expected_tx"`
}

// StakeConfig selects where the initial stakes come from
type StakeConfig struct {
	Distribution string `toml:"distribution" mapstructure:"distribution"` // uniform or file
	File         string `toml:"file" mapstructure:"file"`
}

// LatencyConfig selects the latency model
type LatencyConfig struct {
	Model    string  `toml:"model" mapstructure:"model"`
	FixedMs  int64   `toml:"fixed_ms" mapstructure:"fixed_ms"`
	MaxMs    int64   `toml:"max_ms" mapstructure:"max_ms"`
	PerUnit  float64 `toml:"per_unit" mapstructure:"per_unit"`
	JitterMs int64   `toml:"jitter_ms" mapstructure:"jitter_ms"`
	Props    []int   `toml:"props" mapstructure:"props"`
	Vals     []int64 `toml:"vals" mapstructure:"vals"`
}

// AttackConfig describes byzantine nodes and the DoS plan
type AttackConfig struct {
	ByzantineNodes int  `toml:"byzantine_nodes" mapstructure:"byzantine_nodes"`
	DoS            bool `toml:"dos" mapstructure:"dos"`
	DoSNodes       int  `toml:"dos_nodes" mapstructure:"dos_nodes"`
}

// EventConfig is one scripted scenario action
type EventConfig struct {
	AtMs     int64   `toml:"at_ms" mapstructure:"at_ms"`
	Action   string  `toml:"action" mapstructure:"action"` // stop, start, partition or heal
	Node     int     `toml:"node" mapstructure:"node"`
	Fraction float64 `toml:"fraction" mapstructure:"fraction"`
}

// OutputConfig lists where statistics go
type OutputConfig struct {
	Dir   string       `toml:"dir" mapstructure:"dir"`
	Sinks []SinkConfig `toml:"sinks" mapstructure:"sinks"`
}

// SinkConfig describes one statistics sink
type SinkConfig struct {
	Type     string `toml:"type" mapstructure:"type"` // memory, csv, jsonl, sql, kv, metrics
	Path     string `toml:"path" mapstructure:"path"`
	Driver   string `toml:"driver" mapstructure:"driver"` // sqlite or postgres
	DSN      string `toml:"dsn" mapstructure:"dsn"`
	Compress bool   `toml:"compress" mapstructure:"compress"`
}

// LogConfig configures the zap logger
type LogConfig struct {
	Level       string `toml:"level" mapstructure:"level"`
	Development bool   `toml:"development" mapstructure:"development"`
}

// ConfigPath returns the file the bundle was loaded from
func (c *Config) ConfigPath() string {
	return c.configPath
}

// ResolvePath resolves p relative to the config file directory
func (c *Config) ResolvePath(p string) string {
	if p == "" || filepath.IsAbs(p) || c.configPath == "" {
		return p
	}
	return filepath.Join(filepath.Dir(c.configPath), p)
}

// SinkPath resolves a sink path relative to the output directory
func (c *Config) SinkPath(p string) string {
	if p == "" || filepath.IsAbs(p) || c.Output.Dir == "" {
		return p
	}
	return filepath.Join(c.Output.Dir, p)
}

// UsesFileStakes reports whether stakes are read from a CSV file
func (c *Config) UsesFileStakes() bool {
	return c.Stake.Distribution == "file"
}

// BeaconStartSlot is the slot at which the randomness generation starts
func (c *Config) BeaconStartSlot() int {
	return c.Protocol.EpochSlots - 2*c.Protocol.VDFSlots
}
