package sim

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/LeJamon/goshardsim/internal/config"
	"github.com/LeJamon/goshardsim/internal/core/beacon"
	"github.com/LeJamon/goshardsim/internal/core/fbft"
	"github.com/LeJamon/goshardsim/internal/core/leader"
	"github.com/LeJamon/goshardsim/internal/core/network"
	"github.com/LeJamon/goshardsim/internal/core/stake"
)

// RunMs advances the virtual clock by ms milliseconds.
func (s *Simulation) RunMs(ms int64) {
	s.net.Run(network.Time(ms))
}

func (s *Simulation) node(id network.NodeID) (*network.Node, error) {
	if id < 0 || int(id) >= s.net.Size() {
		return nil, fmt.Errorf("%w: node %d out of range", network.ErrNodeID, id)
	}
	return s.net.Node(id), nil
}

// StopNode takes a node down. Messages to and from it are dropped until
// it is started again.
func (s *Simulation) StopNode(id network.NodeID) error {
	n, err := s.node(id)
	if err != nil {
		return err
	}
	n.Stop()
	return nil
}

// StartNode brings a node back. It does not replay anything it missed.
func (s *Simulation) StartNode(id network.NodeID) error {
	n, err := s.node(id)
	if err != nil {
		return err
	}
	n.Start()
	return nil
}

// Partition splits the map at fraction of its width.
func (s *Simulation) Partition(fraction float64) error {
	return s.net.Partition(fraction)
}

// Heal removes every partition.
func (s *Simulation) Heal() {
	s.net.EndPartition()
}

// Schedule registers a scenario event as a network task.
func (s *Simulation) Schedule(ev config.EventConfig) error {
	var fn func()
	node := network.NodeID(0)
	switch ev.Action {
	case "stop":
		node = network.NodeID(ev.Node)
		if _, err := s.node(node); err != nil {
			return err
		}
		fn = func() { s.net.Node(node).Stop() }
	case "start":
		node = network.NodeID(ev.Node)
		if _, err := s.node(node); err != nil {
			return err
		}
		fn = func() { s.net.Node(node).Start() }
	case "partition":
		fraction := ev.Fraction
		fn = func() {
			if err := s.net.Partition(fraction); err != nil {
				s.log.Warn("scenario partition ignored", zap.Error(err))
			}
		}
	case "heal":
		fn = s.net.EndPartition
	default:
		return fmt.Errorf("%w: unknown scenario action %q", config.ErrInvalidConfiguration, ev.Action)
	}
	action := ev.Action
	wrapped := func() {
		s.log.Info("scenario event", zap.String("action", action), zap.Int64("time", int64(s.net.Now())))
		fn()
	}
	if err := s.net.RegisterTask(wrapped, network.Time(ev.AtMs), node); err != nil {
		return fmt.Errorf("failed to schedule %s: %w", ev.Action, err)
	}
	return nil
}

// Leader returns the leader of a shard for a slot of the current epoch.
func (s *Simulation) Leader(shard, slot int) network.NodeID {
	return s.selectors[shard].Leader(slot)
}

// ProposeSlot makes the slot leader of the shard propose. It returns nil
// when the leader is down.
func (s *Simulation) ProposeSlot(epoch, slot, shard int) *fbft.Block {
	id := s.Leader(shard, slot)
	if id == leader.NoLeader {
		return nil
	}
	b := s.engines[id].Propose(epoch, slot, shard)
	if b == nil {
		s.log.Debug("leader down, slot skipped",
			zap.Int("node", int(id)),
			zap.Int("epoch", epoch),
			zap.Int("slot", slot),
			zap.Int("shard", shard),
		)
	}
	return b
}

// Engine returns the protocol engine of a node.
func (s *Simulation) Engine(id network.NodeID) *fbft.Engine { return s.engines[id] }

// BeaconOf returns the randomness beacon state of a node.
func (s *Simulation) BeaconOf(id network.NodeID) *beacon.Beacon { return s.beacons[id] }

// Distribution returns the stake distribution.
func (s *Simulation) Distribution() *stake.Distribution { return s.dist }

// Network returns the simulated network.
func (s *Simulation) Network() *network.Network { return s.net }

// Overlay returns the gossip overlay, nil when none is configured.
func (s *Simulation) Overlay() *network.Overlay { return s.overlay }
