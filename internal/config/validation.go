package config

import (
	"fmt"
	"strings"
)

// ValidateConfig performs validation on the complete bundle.
// Every error wraps ErrInvalidConfiguration.
func ValidateConfig(config *Config) error {
	if err := validateNetwork(&config.Network); err != nil {
		return fmt.Errorf("%w: network: %v", ErrInvalidConfiguration, err)
	}
	if err := validateProtocol(&config.Protocol, config.Network.Size); err != nil {
		return fmt.Errorf("%w: protocol: %v", ErrInvalidConfiguration, err)
	}
	if err := validateStake(config); err != nil {
		return fmt.Errorf("%w: stake: %v", ErrInvalidConfiguration, err)
	}
	if err := validateLatency(&config.Latency); err != nil {
		return fmt.Errorf("%w: latency: %v", ErrInvalidConfiguration, err)
	}
	if err := validateAttack(&config.Attack, config.Network.Size); err != nil {
		return fmt.Errorf("%w: attack: %v", ErrInvalidConfiguration, err)
	}
	for i, ev := range config.Scenario {
		if err := validateEvent(ev, config.Network.Size); err != nil {
			return fmt.Errorf("%w: scenario[%d]: %v", ErrInvalidConfiguration, i, err)
		}
	}
	for i, s := range config.Output.Sinks {
		if err := validateSink(s); err != nil {
			return fmt.Errorf("%w: output.sinks[%d]: %v", ErrInvalidConfiguration, i, err)
		}
	}
	if err := validateLog(&config.Log); err != nil {
		return fmt.Errorf("%w: log: %v", ErrInvalidConfiguration, err)
	}
	return nil
}

func validateNetwork(n *NetworkConfig) error {
	if n.Size <= 0 {
		return fmt.Errorf("size must be positive, got %d", n.Size)
	}
	switch n.Placement {
	case "fixed", "random":
	case "cities":
		if len(n.Cities) == 0 {
			return fmt.Errorf("placement cities requires at least one city")
		}
	default:
		return fmt.Errorf("unknown placement %q (supported: fixed, random, cities)", n.Placement)
	}
	if n.OverlayDegree < 0 || (n.OverlayDegree > 0 && n.OverlayDegree >= n.Size) {
		return fmt.Errorf("overlay_degree must be in [0, %d), got %d", n.Size, n.OverlayDegree)
	}
	if n.DiscardTimeMs < 0 {
		return fmt.Errorf("discard_time_ms cannot be negative")
	}
	return nil
}

func validateProtocol(p *ProtocolConfig, size int) error {
	if p.Epochs <= 0 {
		return fmt.Errorf("epochs must be positive, got %d", p.Epochs)
	}
	if p.EpochSlots <= 0 {
		return fmt.Errorf("epoch_slots must be positive, got %d", p.EpochSlots)
	}
	if p.SlotDurationMs <= 0 {
		return fmt.Errorf("slot_duration_ms must be positive, got %d", p.SlotDurationMs)
	}
	if p.Shards <= 0 || p.Shards > size {
		return fmt.Errorf("shards must be in [1, %d], got %d", size, p.Shards)
	}
	if p.Lambda <= 0 {
		return fmt.Errorf("lambda must be positive, got %d", p.Lambda)
	}
	if p.VDFSlots <= 0 || 2*p.VDFSlots >= p.EpochSlots {
		return fmt.Errorf("vdf_slots must be in [1, %d), got %d", (p.EpochSlots+1)/2, p.VDFSlots)
	}
	switch strings.ToLower(p.LeaderSelection) {
	case "scheduled", "vrf":
	default:
		return fmt.Errorf("unknown leader_selection %q (supported: scheduled, vrf)", p.LeaderSelection)
	}
	if p.HeaderSize < 0 || p.TxSize < 0 || p.ExpectedTx < 0 {
		return fmt.Errorf("block sizes cannot be negative")
	}
	return nil
}

func validateStake(c *Config) error {
	switch c.Stake.Distribution {
	case "uniform":
		return nil
	case "file":
		if len(c.Stakes) != c.Network.Size {
			return fmt.Errorf("expected %d stakes, got %d", c.Network.Size, len(c.Stakes))
		}
		return nil
	default:
		return fmt.Errorf("unknown distribution %q (supported: uniform, file)", c.Stake.Distribution)
	}
}

func validateLatency(l *LatencyConfig) error {
	switch l.Model {
	case "", "none":
	case "fixed":
		if l.FixedMs <= 0 {
			return fmt.Errorf("fixed_ms must be positive")
		}
	case "uniform":
		if l.MaxMs <= 0 {
			return fmt.Errorf("max_ms must be positive")
		}
	case "distance":
		if l.FixedMs < 0 || l.PerUnit < 0 || l.JitterMs < 0 {
			return fmt.Errorf("distance parameters cannot be negative")
		}
	case "measured":
		if len(l.Props) == 0 || len(l.Props) != len(l.Vals) {
			return fmt.Errorf("props and vals must be non empty and of the same length")
		}
	default:
		return fmt.Errorf("unknown model %q (supported: none, fixed, uniform, distance, measured)", l.Model)
	}
	return nil
}

func validateAttack(a *AttackConfig, size int) error {
	if a.ByzantineNodes < 0 || a.ByzantineNodes > size {
		return fmt.Errorf("byzantine_nodes must be in [0, %d], got %d", size, a.ByzantineNodes)
	}
	if a.DoSNodes < 0 {
		return fmt.Errorf("dos_nodes cannot be negative")
	}
	return nil
}

func validateEvent(ev EventConfig, size int) error {
	if ev.AtMs <= 0 {
		return fmt.Errorf("at_ms must be positive, got %d", ev.AtMs)
	}
	switch ev.Action {
	case "stop", "start":
		if ev.Node < 0 || ev.Node >= size {
			return fmt.Errorf("node %d out of range", ev.Node)
		}
	case "partition":
		if ev.Fraction <= 0 || ev.Fraction >= 1 {
			return fmt.Errorf("fraction must be in (0, 1), got %v", ev.Fraction)
		}
	case "heal":
	default:
		return fmt.Errorf("unknown action %q (supported: stop, start, partition, heal)", ev.Action)
	}
	return nil
}

func validateSink(s SinkConfig) error {
	switch s.Type {
	case "memory", "metrics":
	case "csv", "jsonl", "kv":
		if s.Path == "" {
			return fmt.Errorf("%s sink requires a path", s.Type)
		}
	case "sql":
		switch s.Driver {
		case "sqlite":
			if s.DSN == "" && s.Path == "" {
				return fmt.Errorf("sqlite sink requires a path or dsn")
			}
		case "postgres":
			if s.DSN == "" {
				return fmt.Errorf("postgres sink requires a dsn")
			}
		default:
			return fmt.Errorf("unknown sql driver %q (supported: sqlite, postgres)", s.Driver)
		}
	default:
		return fmt.Errorf("unknown sink type %q", s.Type)
	}
	return nil
}

func validateLog(l *LogConfig) error {
	switch strings.ToLower(l.Level) {
	case "debug", "info", "warn", "error":
		return nil
	default:
		return fmt.Errorf("unknown level %q", l.Level)
	}
}
