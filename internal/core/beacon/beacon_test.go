package beacon

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LeJamon/goshardsim/internal/core/fbft"
	"github.com/LeJamon/goshardsim/internal/core/network"
	"github.com/LeJamon/goshardsim/internal/core/stake"
)

type harness struct {
	net     *network.Network
	dist    *stake.Distribution
	rng     *rand.Rand
	beacons []*Beacon
	pRand   []uint64
	contrib []uint64
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{rng: rand.New(rand.NewSource(4))}
	h.net = network.New(h.rng, network.WithLatency(network.FixedLatency{Delay: 2}))
	h.net.Populate(12, network.FixedPositions{})
	h.net.SetHandler(network.HandlerFunc(func(from, to *network.Node, c network.Content) {
		switch m := c.(type) {
		case *fbft.PseudoRand:
			h.pRand = append(h.pRand, m.Value)
		case *Contribution:
			h.contrib = append(h.contrib, m.Value)
			h.beacons[to.ID].Handle(from.ID, c)
		default:
			h.beacons[to.ID].Handle(from.ID, c)
		}
	}))

	stakes := make([]int64, 12)
	for i := range stakes {
		stakes[i] = 500
	}
	d, err := stake.NewDistribution(stakes, 3, 4, h.rng, nil)
	require.NoError(t, err)
	require.NoError(t, d.Redistribute(9, 0))
	h.dist = d

	for i := 0; i < 12; i++ {
		h.beacons = append(h.beacons, New(network.NodeID(i), h, nil))
	}
	return h
}

func (h *harness) Send(c network.Content, from network.NodeID, to ...network.NodeID) {
	h.net.Send(c, from, to...)
}
func (h *harness) Node(id network.NodeID) *network.Node { return h.net.Node(id) }
func (h *harness) Shard(id int) *stake.Shard            { return h.dist.Shard(id) }
func (h *harness) Rand() *rand.Rand                     { return h.rng }

func (h *harness) leader() *Beacon { return h.beacons[h.dist.Shard(stake.BeaconShard).Leader] }

func lastBlock() *fbft.Block {
	return fbft.NewBlock(fbft.BlockParams{Epoch: 0, Slot: 7, TxCount: 3})
}

func TestCollector(t *testing.T) {
	var c Collector
	assert.True(t, c.ReachedThird(0))
	assert.False(t, c.ReachedThird(1))

	c.Add(0b1100)
	c.Add(0b1010)
	assert.Equal(t, uint64(0b0110), c.XOR())
	assert.Equal(t, 2, c.Len())
	assert.True(t, c.ReachedThird(6))
	assert.False(t, c.ReachedThird(7))

	c.MarkSent()
	c.Clear()
	assert.False(t, c.Sent())
	assert.Zero(t, c.Len())
	assert.Zero(t, c.XOR())
}

func TestBeacon_GeneratesOnce(t *testing.T) {
	h := newHarness(t)
	require.Equal(t, 4, h.dist.Shard(stake.BeaconShard).Size())

	require.True(t, h.leader().Start(lastBlock()))
	h.net.Run(20)

	require.Len(t, h.pRand, 1)
	require.Len(t, h.contrib, 4)
	// Two contributions out of four reach the third.
	assert.Equal(t, h.contrib[0]^h.contrib[1], h.pRand[0])
	assert.True(t, h.leader().Collector().Sent())
}

func TestBeacon_SilentValidators(t *testing.T) {
	h := newHarness(t)
	shard := h.dist.Shard(stake.BeaconShard)
	for _, id := range shard.Members() {
		if id != shard.Leader {
			h.net.Node(id).Byzantine = true
		}
	}

	require.True(t, h.leader().Start(lastBlock()))
	h.net.Run(20)
	assert.Len(t, h.contrib, 1)
	assert.Empty(t, h.pRand)
}

func TestBeacon_IgnoresOtherWindows(t *testing.T) {
	h := newHarness(t)
	shard := h.dist.Shard(stake.BeaconShard)
	require.True(t, h.leader().Start(lastBlock()))

	for _, id := range shard.Members() {
		h.leader().OnContribution(id, &Contribution{Hash: 1, Value: 5})
	}
	assert.Zero(t, h.leader().Collector().Len())

	outsider := h.dist.Shard(1).Members()[0]
	h.leader().OnContribution(outsider, &Contribution{Hash: lastBlock().Hash(), Value: 5})
	assert.Zero(t, h.leader().Collector().Len())
}

func TestBeacon_StartRequiresBlockAndLiveness(t *testing.T) {
	h := newHarness(t)
	assert.False(t, h.leader().Start(nil))

	h.net.Node(h.dist.Shard(stake.BeaconShard).Leader).Stop()
	assert.False(t, h.leader().Start(lastBlock()))
}
