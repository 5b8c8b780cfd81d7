// Package beacon produces the randomness that seeds the shard assignment
// of the next epoch. The beacon shard leader asks its validators for
// simulated VRF outputs and combines a third of them into a pseudo random
// value handed to the block proposer.
package beacon

import (
	"math/rand"

	"go.uber.org/zap"

	"github.com/LeJamon/goshardsim/internal/core/fbft"
	"github.com/LeJamon/goshardsim/internal/core/network"
	"github.com/LeJamon/goshardsim/internal/core/stake"
)

// Init asks the beacon validators for a contribution.
type Init struct {
	Hash uint64
}

func (m *Init) Size() int { return fbft.HashSize + fbft.SignatureSize }

// Contribution is a validator's simulated VRF output for a window.
type Contribution struct {
	Hash  uint64
	Value uint64
}

func (m *Contribution) Size() int { return fbft.HashSize + 8 + fbft.SignatureSize }

// Adaptor connects a Beacon to the simulation.
type Adaptor interface {
	Send(c network.Content, from network.NodeID, to ...network.NodeID)
	Node(id network.NodeID) *network.Node
	Shard(id int) *stake.Shard
	Rand() *rand.Rand
}

// Beacon is the randomness protocol state of one node.
type Beacon struct {
	id        network.NodeID
	adaptor   Adaptor
	log       *zap.Logger
	window    uint64
	collector Collector
}

// New creates the beacon of node id.
func New(id network.NodeID, adaptor Adaptor, log *zap.Logger) *Beacon {
	if log == nil {
		log = zap.NewNop()
	}
	return &Beacon{id: id, adaptor: adaptor, log: log.With(zap.Int("node", int(id)))}
}

// Collector returns the contributions of the current window.
func (b *Beacon) Collector() *Collector { return &b.collector }

// Start opens a generation window on the hash of the last finalized beacon
// block and asks every beacon validator to contribute.
func (b *Beacon) Start(last *fbft.Block) bool {
	if last == nil || b.adaptor.Node(b.id).Down() {
		return false
	}
	b.window = last.Hash()
	b.collector.Clear()
	b.log.Info("randomness generation started",
		zap.Int("epoch", last.Epoch()),
		zap.Int("slot", last.Slot()),
	)
	b.adaptor.Send(&Init{Hash: b.window}, b.id, b.adaptor.Shard(stake.BeaconShard).Members()...)
	return true
}

// OnInit answers the leader with a simulated VRF output.
func (b *Beacon) OnInit(from network.NodeID, m *Init) {
	n := b.adaptor.Node(b.id)
	if n.Byzantine || n.Down() {
		return
	}
	v := b.adaptor.Rand().Uint64() ^ m.Hash
	b.adaptor.Send(&Contribution{Hash: m.Hash, Value: v}, b.id, from)
}

// OnContribution collects a contribution. Once a third of the beacon shard
// contributed, the combined value is sent once to the node itself for
// inclusion in its next block.
func (b *Beacon) OnContribution(from network.NodeID, m *Contribution) {
	if m.Hash != b.window || b.collector.Sent() {
		return
	}
	if !b.adaptor.Shard(stake.BeaconShard).Contains(from) {
		return
	}
	b.collector.Add(m.Value)
	if !b.collector.ReachedThird(b.adaptor.Shard(stake.BeaconShard).Size()) {
		return
	}
	b.collector.MarkSent()
	b.adaptor.Send(&fbft.PseudoRand{Value: b.collector.XOR()}, b.id, b.id)
}

// Handle dispatches a beacon message. It returns false for other contents.
func (b *Beacon) Handle(from network.NodeID, c network.Content) bool {
	switch m := c.(type) {
	case *Init:
		b.OnInit(from, m)
	case *Contribution:
		b.OnContribution(from, m)
	default:
		return false
	}
	return true
}
