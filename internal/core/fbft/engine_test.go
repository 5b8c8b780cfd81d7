package fbft

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LeJamon/goshardsim/internal/core/network"
	"github.com/LeJamon/goshardsim/internal/core/stake"
)

type finalization struct {
	node  network.NodeID
	block *Block
}

// harness wires engines to a real network. Shard leaders are the epoch
// leaders of the distribution.
type harness struct {
	net     *network.Network
	dist    *stake.Distribution
	engines []*Engine
	rng     *rand.Rand
	epoch   int
	beacon  RandQueue

	finalized  []finalization
	randomness []uint64
	sent       map[string]int
}

func newHarness(t *testing.T, nodes, shards int, cfg Config) *harness {
	t.Helper()
	h := &harness{
		rng:  rand.New(rand.NewSource(1)),
		sent: make(map[string]int),
	}
	h.net = network.New(h.rng, network.WithLatency(network.FixedLatency{Delay: 1}))
	h.net.Populate(nodes, network.FixedPositions{})
	h.net.SetHandler(network.HandlerFunc(func(from, to *network.Node, c network.Content) {
		h.engines[to.ID].Handle(from.ID, c)
	}))

	stakes := make([]int64, nodes)
	for i := range stakes {
		stakes[i] = 1000
	}
	// One token per node.
	d, err := stake.NewDistribution(stakes, shards, nodes/shards, h.rng, nil)
	require.NoError(t, err)
	require.NoError(t, d.Redistribute(0, 0))
	h.dist = d

	for i := 0; i < nodes; i++ {
		h.engines = append(h.engines, NewEngine(network.NodeID(i), cfg, h, nil))
	}
	return h
}

func (h *harness) Send(c network.Content, from network.NodeID, to ...network.NodeID) {
	h.sent[fmt.Sprintf("%T", c)]++
	h.net.Send(c, from, to...)
}
func (h *harness) Node(id network.NodeID) *network.Node { return h.net.Node(id) }
func (h *harness) Shard(id int) *stake.Shard            { return h.dist.Shard(id) }
func (h *harness) IsLeader(id network.NodeID, shard, _ int) bool {
	return h.dist.Shard(shard).Leader == id
}
func (h *harness) Epoch() int         { return h.epoch }
func (h *harness) Rand() *rand.Rand   { return h.rng }
func (h *harness) Beacon() *RandQueue { return &h.beacon }
func (h *harness) Finalized(id network.NodeID, b *Block) {
	h.finalized = append(h.finalized, finalization{node: id, block: b})
}
func (h *harness) RandomnessCommitted(_ network.NodeID, v uint64) { h.randomness = append(h.randomness, v) }

func (h *harness) leader(shard int) *Engine { return h.engines[h.dist.Shard(shard).Leader] }

var testConfig = Config{HeaderSize: 250, TxSize: 100, ExpectedTx: 100, VDFSlots: 2}

func TestMajoritySigned(t *testing.T) {
	tests := []struct {
		validators, signers int
		want                bool
	}{
		{3, 2, true},
		{3, 1, false},
		{9, 6, true},
		{9, 5, false},
		{4, 3, true},
		{4, 2, false},
		{1, 1, true},
		{1, 0, false},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d_of_%d", tt.signers, tt.validators), func(t *testing.T) {
			assert.Equal(t, tt.want, MajoritySigned(tt.signers, tt.validators))

			bs := NewBlockSigners(NewBlock(BlockParams{}), tt.validators)
			for i := 0; i < tt.signers; i++ {
				require.NoError(t, bs.Sign(i))
			}
			assert.Equal(t, tt.want, bs.MajoritySigned())
		})
	}
}

func TestBlockSigners(t *testing.T) {
	bs := NewBlockSigners(NewBlock(BlockParams{Slot: 3}), 4)

	require.ErrorIs(t, bs.Sign(4), ErrSignerIndex)
	require.ErrorIs(t, bs.Sign(-1), ErrSignerIndex)

	require.NoError(t, bs.Sign(1))
	require.NoError(t, bs.Sign(1))
	assert.Equal(t, 1, bs.Count())
	assert.True(t, bs.Signed(1))
	assert.False(t, bs.Signed(0))

	cert := bs.Certificate()
	require.NoError(t, bs.Sign(2))
	assert.Equal(t, 1, cert.Count(), "certificates are snapshots")
	assert.Equal(t, 2, bs.Count())

	assert.False(t, bs.Sent())
	bs.MarkSent()
	assert.True(t, bs.Sent())
}

func TestBlock(t *testing.T) {
	b := NewBlock(BlockParams{Shard: 1, Epoch: 2, Slot: 3, TxCount: 10, HeaderSize: 250, TxSize: 100})
	assert.Equal(t, 1250, b.Size())
	assert.True(t, b.HeaderValid())
	assert.True(t, b.PayloadValid())
	assert.Equal(t, Absent, b.PRand().State)

	same := NewBlock(BlockParams{Shard: 1, Epoch: 2, Slot: 3, TxCount: 10, HeaderSize: 250, TxSize: 100})
	assert.Equal(t, b.Hash(), same.Hash())
	other := NewBlock(BlockParams{Shard: 1, Epoch: 2, Slot: 3, TxCount: 10, PRand: ReadyRand(5)})
	assert.NotEqual(t, b.Hash(), other.Hash())

	assert.False(t, NewBlock(BlockParams{Slot: -1}).HeaderValid())
	assert.False(t, NewBlock(BlockParams{TxCount: -1}).PayloadValid())
}

func TestRandQueue_VDF(t *testing.T) {
	var q RandQueue
	assert.Equal(t, Rand{}, q.PopRnd())
	assert.Equal(t, Rand{}, q.PopPRand())

	q.StartVDF(99, 3)
	assert.Equal(t, PendingRand(), q.PopRnd())
	assert.Equal(t, PendingRand(), q.PopRnd())
	assert.Equal(t, ReadyRand(99), q.PopRnd())
	assert.Equal(t, Absent, q.PopRnd().State)

	q.StartVDF(7, 1)
	assert.Equal(t, ReadyRand(7), q.PopRnd())

	q.PushPRand(4)
	p, r := q.Len()
	assert.Equal(t, 1, p)
	assert.Zero(t, r)
	assert.Equal(t, ReadyRand(4), q.PopPRand())
}

func TestEngine_SingleShard(t *testing.T) {
	h := newHarness(t, 12, 3, testConfig)
	shard := h.dist.Shard(0)
	require.Equal(t, 4, shard.Size())

	h.net.Run(2)
	require.NotNil(t, h.leader(0).Propose(0, 0, 0))
	h.net.Run(10)

	for _, id := range shard.Members() {
		e := h.engines[id]
		require.NotNil(t, e.Prepared(0, 0), "node %d", id)
		require.NotNil(t, e.Committed(0, 0), "node %d", id)
		assert.True(t, e.Prepared(0, 0).MajoritySigned())
		assert.True(t, e.Committed(0, 0).MajoritySigned())
		assert.NotNil(t, e.Finalized(0, 0))
	}
	assert.Len(t, h.finalized, 4)
	assert.Equal(t, 1, h.sent["*fbft.Prepared"])
	assert.Equal(t, 1, h.sent["*fbft.Committed"])
}

func TestEngine_AllShards(t *testing.T) {
	h := newHarness(t, 12, 3, testConfig)

	for _, s := range h.dist.Shards() {
		h.leader(s.ID).Propose(0, 0, s.ID)
	}
	h.net.Run(10)

	for _, s := range h.dist.Shards() {
		for _, id := range s.Members() {
			assert.True(t, h.engines[id].Committed(0, s.ID).MajoritySigned())
		}
		// Nodes outside the shard know nothing of its blocks.
		for _, other := range h.dist.Shards() {
			if other.ID == s.ID {
				continue
			}
			for _, id := range other.Members() {
				assert.Nil(t, h.engines[id].Prepared(0, s.ID))
			}
		}
	}
	assert.Len(t, h.finalized, 12)
}

func TestEngine_PrepareCertificateSentOnce(t *testing.T) {
	h := newHarness(t, 12, 3, testConfig)
	shard := h.dist.Shard(0)
	leader := h.leader(0)
	b := NewBlock(BlockParams{Shard: 0, Slot: 4, TxCount: 1})

	members := shard.Members()
	leader.OnPrepareSig(members[0], &PrepareSig{Block: b, Signer: members[0]})
	leader.OnPrepareSig(members[1], &PrepareSig{Block: b, Signer: members[1]})
	assert.Zero(t, h.sent["*fbft.Prepared"])

	leader.OnPrepareSig(members[2], &PrepareSig{Block: b, Signer: members[2]})
	assert.Equal(t, 1, h.sent["*fbft.Prepared"])

	leader.OnPrepareSig(members[2], &PrepareSig{Block: b, Signer: members[2]})
	leader.OnPrepareSig(members[3], &PrepareSig{Block: b, Signer: members[3]})
	assert.Equal(t, 1, h.sent["*fbft.Prepared"])
	assert.Equal(t, 3, leader.Prepared(4, 0).Count())
}

func TestEngine_DropsInvalidMessages(t *testing.T) {
	h := newHarness(t, 12, 3, testConfig)
	shard := h.dist.Shard(0)
	leader := h.leader(0)
	var validator *Engine
	for _, id := range shard.Members() {
		if id != shard.Leader {
			validator = h.engines[id]
			break
		}
	}

	t.Run("stale epoch", func(t *testing.T) {
		h.epoch = 1
		defer func() { h.epoch = 0 }()
		validator.OnAnnounce(shard.Leader, &Announce{Block: NewBlock(BlockParams{Slot: 1})})
		assert.Zero(t, h.sent["*fbft.PrepareSig"])
	})

	t.Run("signature to a non leader", func(t *testing.T) {
		validator.OnPrepareSig(shard.Leader, &PrepareSig{Block: NewBlock(BlockParams{Slot: 1}), Signer: shard.Leader})
		assert.Nil(t, validator.Prepared(1, 0))
	})

	t.Run("signature from outside the shard", func(t *testing.T) {
		outsider := h.dist.Shard(1).Members()[0]
		leader.OnPrepareSig(outsider, &PrepareSig{Block: NewBlock(BlockParams{Slot: 2}), Signer: outsider})
		assert.Nil(t, leader.Prepared(2, 0))
	})

	t.Run("under threshold certificate", func(t *testing.T) {
		bs := NewBlockSigners(NewBlock(BlockParams{Slot: 3}), shard.Size())
		require.NoError(t, bs.Sign(0))
		validator.OnPrepared(shard.Leader, &Prepared{Cert: bs.Certificate()})
		assert.Nil(t, validator.Prepared(3, 0))
		assert.Zero(t, h.sent["*fbft.CommitSig"])
	})

	t.Run("commit from a non leader", func(t *testing.T) {
		bs := NewBlockSigners(NewBlock(BlockParams{Slot: 5}), shard.Size())
		for i := 0; i < shard.Size(); i++ {
			require.NoError(t, bs.Sign(i))
		}
		validator.OnCommitted(validator.ID(), &Committed{Cert: bs.Certificate()})
		assert.Nil(t, validator.Finalized(5, 0))

		validator.OnCommitted(shard.Leader, &Committed{Cert: bs.Certificate()})
		validator.OnCommitted(shard.Leader, &Committed{Cert: bs.Certificate()})
		assert.NotNil(t, validator.Finalized(5, 0))
		assert.Len(t, h.finalized, 1, "duplicates are ignored")
	})
}

func TestEngine_ByzantineValidators(t *testing.T) {
	t.Run("one silent validator out of four", func(t *testing.T) {
		h := newHarness(t, 12, 3, testConfig)
		shard := h.dist.Shard(0)
		for _, id := range shard.Members() {
			if id != shard.Leader {
				h.net.Node(id).Byzantine = true
				break
			}
		}
		h.leader(0).Propose(0, 0, 0)
		h.net.Run(10)
		assert.Equal(t, 3, h.leader(0).Committed(0, 0).Count())
		assert.Len(t, h.finalized, 4, "byzantine nodes still finalize")
	})

	t.Run("two silent validators out of four", func(t *testing.T) {
		h := newHarness(t, 12, 3, testConfig)
		shard := h.dist.Shard(0)
		silenced := 0
		for _, id := range shard.Members() {
			if id != shard.Leader && silenced < 2 {
				h.net.Node(id).Byzantine = true
				silenced++
			}
		}
		h.leader(0).Propose(0, 0, 0)
		h.net.Run(10)
		assert.Equal(t, 2, h.leader(0).Prepared(0, 0).Count())
		assert.Zero(t, h.sent["*fbft.Prepared"])
		assert.Empty(t, h.finalized)
	})
}

func TestEngine_LeaderDown(t *testing.T) {
	h := newHarness(t, 12, 3, testConfig)
	h.net.Node(h.dist.Shard(0).Leader).Stop()

	assert.Nil(t, h.leader(0).Propose(0, 0, 0))
	h.net.Run(10)
	for _, id := range h.dist.Shard(0).Members() {
		assert.Nil(t, h.engines[id].Committed(0, 0))
	}

	h.net.Node(h.dist.Shard(0).Leader).Start()
	require.NotNil(t, h.leader(0).Propose(0, 1, 0))
	h.net.Run(10)
	assert.NotNil(t, h.leader(0).Finalized(1, 0))
}

func TestEngine_Reset(t *testing.T) {
	h := newHarness(t, 12, 3, testConfig)
	h.leader(0).Propose(0, 0, 0)
	h.net.Run(10)
	require.NotNil(t, h.leader(0).Finalized(0, 0))
	require.NotNil(t, h.leader(0).LastFinalized(0))

	h.leader(0).Reset()
	assert.Nil(t, h.leader(0).Finalized(0, 0))
	assert.Nil(t, h.leader(0).Prepared(0, 0))
	assert.Nil(t, h.leader(0).LastFinalized(0))
}

func TestEngine_BeaconRandomness(t *testing.T) {
	h := newHarness(t, 12, 3, testConfig)
	leader := h.leader(stake.BeaconShard)

	h.net.Send(&PseudoRand{Value: 0xabcd}, leader.ID(), leader.ID())
	h.net.Run(5)

	// pRand, then one pending placeholder, then the final value.
	states := make([][2]RandState, 4)
	for slot := 0; slot < 4; slot++ {
		b := leader.Propose(0, slot, stake.BeaconShard)
		require.NotNil(t, b)
		states[slot] = [2]RandState{b.PRand().State, b.Rnd().State}
		h.net.Run(10)
		require.NotNil(t, leader.Finalized(slot, stake.BeaconShard))
	}
	assert.Equal(t, [][2]RandState{
		{Ready, Absent},
		{Absent, Pending},
		{Absent, Ready},
		{Absent, Absent},
	}, states)
	require.Len(t, h.randomness, 1)
	assert.Equal(t, leader.Finalized(2, 0).Rnd().Value, h.randomness[0])

	// Other shards never carry randomness.
	h.beacon.PushPRand(1)
	b := h.leader(1).Propose(0, 5, 1)
	assert.Equal(t, Absent, b.PRand().State)
}

func TestEngine_TxCount(t *testing.T) {
	h := newHarness(t, 3, 1, Config{ExpectedTx: 1000})
	var sum int
	for i := 0; i < 1000; i++ {
		n := h.engines[0].TxCount()
		require.GreaterOrEqual(t, n, 0)
		sum += n
	}
	assert.InDelta(t, 1000, sum/1000, 15)
}
