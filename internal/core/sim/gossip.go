package sim

import (
	"github.com/RoaringBitmap/roaring"
	"go.uber.org/zap"

	"github.com/LeJamon/goshardsim/internal/core/fbft"
	"github.com/LeJamon/goshardsim/internal/core/network"
)

// RandomnessGossip floods a committed random value over the overlay so
// every shard learns the seed of the next epoch.
type RandomnessGossip struct {
	Epoch int
	Value uint64
}

func (m *RandomnessGossip) Size() int { return 8 + 8 + fbft.SignatureSize }

type gossipKey struct {
	epoch int
	value uint64
}

func (s *Simulation) gossip(from network.NodeID, v uint64) {
	seen := roaring.New()
	seen.Add(uint32(from))
	s.seen[gossipKey{s.epoch, v}] = seen
	n := s.overlay.Broadcast(s.net, &RandomnessGossip{Epoch: s.epoch, Value: v}, from)
	s.log.Debug("randomness gossiped", zap.Uint64("value", v), zap.Int("peers", n))
}

// onGossip records the value and forwards it once to every other peer.
func (s *Simulation) onGossip(from, to network.NodeID, m *RandomnessGossip) {
	seen := s.seen[gossipKey{m.Epoch, m.Value}]
	if seen == nil || seen.Contains(uint32(to)) {
		return
	}
	seen.Add(uint32(to))
	var peers []network.NodeID
	for _, p := range s.overlay.Peers(to) {
		if p != from {
			peers = append(peers, p)
		}
	}
	if len(peers) > 0 {
		s.net.Send(m, to, peers...)
	}
}

// Informed returns how many nodes received a value gossiped in the current
// epoch, the committing leader included.
func (s *Simulation) Informed(v uint64) int {
	if seen := s.seen[gossipKey{s.epoch, v}]; seen != nil {
		return int(seen.GetCardinality())
	}
	return 0
}
