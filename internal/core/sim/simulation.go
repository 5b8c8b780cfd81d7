// Package sim drives a sharded FBFT network: it owns the virtual network,
// the stake distribution, the per shard leader selectors and the per node
// protocol engines, and runs them epoch by epoch.
package sim

import (
	"fmt"
	"math/rand"

	"github.com/RoaringBitmap/roaring"
	"go.uber.org/zap"

	"github.com/LeJamon/goshardsim/internal/config"
	"github.com/LeJamon/goshardsim/internal/core/beacon"
	"github.com/LeJamon/goshardsim/internal/core/fbft"
	"github.com/LeJamon/goshardsim/internal/core/leader"
	"github.com/LeJamon/goshardsim/internal/core/network"
	"github.com/LeJamon/goshardsim/internal/core/stake"
	"github.com/LeJamon/goshardsim/internal/stats"
)

// Simulation is one seeded run. It is not safe for concurrent use; run
// independent simulations in parallel instead.
type Simulation struct {
	cfg *config.Config
	log *zap.Logger
	rng *rand.Rand

	net     *network.Network
	overlay *network.Overlay
	dist    *stake.Distribution

	policy    leader.Policy
	selectors []leader.Selector
	engines   []*fbft.Engine
	beacons   []*beacon.Beacon
	rand      fbft.RandQueue

	sink  stats.Sink
	epoch int
	slot  int
	dos   *dosPlan

	// nodes that have seen a gossiped randomness value, current epoch only
	seen map[gossipKey]*roaring.Bitmap

	// first sink error, reported at the end of the slot
	err error
}

// Option configures a Simulation.
type Option func(*Simulation)

// WithLogger sets the logger. The default discards everything.
func WithLogger(log *zap.Logger) Option {
	return func(s *Simulation) {
		if log != nil {
			s.log = log
		}
	}
}

// WithSink sets the statistics sink. The default drops every record.
func WithSink(sink stats.Sink) Option {
	return func(s *Simulation) {
		if sink != nil {
			s.sink = sink
		}
	}
}

func invalid(err error) error {
	return fmt.Errorf("%w: %w", config.ErrInvalidConfiguration, err)
}

// New initializes the network, the stake distribution of epoch 0 and every
// node's protocol state.
func New(cfg *config.Config, opts ...Option) (*Simulation, error) {
	s := &Simulation{
		cfg:  cfg,
		log:  zap.NewNop(),
		rng:  rand.New(rand.NewSource(cfg.Seed)),
		sink: stats.NewFanout(),
		seen: make(map[gossipKey]*roaring.Bitmap),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.With(zap.Int64("seed", cfg.Seed))

	latency, err := network.ParseLatency(latencySpec(cfg.Latency))
	if err != nil {
		return nil, invalid(err)
	}
	s.net = network.New(s.rng,
		network.WithLatency(latency),
		network.WithHandler(s),
		network.WithLogger(s.log),
		network.WithDiscardTime(network.Time(cfg.Network.DiscardTimeMs)),
	)
	builder, err := s.nodeBuilder()
	if err != nil {
		return nil, invalid(err)
	}
	s.net.Populate(cfg.Network.Size, builder)

	stakes := cfg.Stakes
	if !cfg.UsesFileStakes() {
		stakes = stake.UniformStakes(cfg.Network.Size, s.rng)
	}
	for _, id := range stake.SelectByzantine(cfg.Network.Size, cfg.Attack.ByzantineNodes, s.rng) {
		s.net.Node(id).Byzantine = true
	}

	s.dist, err = stake.NewDistribution(stakes, cfg.Protocol.Shards, cfg.Protocol.Lambda, s.rng, s.log)
	if err != nil {
		return nil, invalid(err)
	}
	if err := s.dist.Redistribute(0, 0); err != nil {
		return nil, invalid(err)
	}

	s.policy, err = leader.ParsePolicy(cfg.Protocol.LeaderSelection)
	if err != nil {
		return nil, invalid(err)
	}
	for i := 0; i < cfg.Protocol.Shards; i++ {
		sel, err := leader.NewSelector(s.policy, cfg.Protocol.EpochSlots)
		if err != nil {
			return nil, invalid(err)
		}
		if err := sel.Reset(0, s.dist.Shard(i)); err != nil {
			return nil, invalid(err)
		}
		s.selectors = append(s.selectors, sel)
	}

	engineCfg := fbft.Config{
		HeaderSize: cfg.Protocol.HeaderSize,
		TxSize:     cfg.Protocol.TxSize,
		ExpectedTx: cfg.Protocol.ExpectedTx,
		VDFSlots:   cfg.Protocol.VDFSlots,
	}
	for _, n := range s.net.Nodes() {
		s.engines = append(s.engines, fbft.NewEngine(n.ID, engineCfg, s, s.log))
		s.beacons = append(s.beacons, beacon.New(n.ID, s, s.log))
	}

	if d := cfg.Network.OverlayDegree; d > 0 {
		s.overlay = network.NewOverlay()
		ids := make([]network.NodeID, cfg.Network.Size)
		for i := range ids {
			ids[i] = network.NodeID(i)
		}
		s.overlay.ConnectRandom(ids, d, s.rng)
	}

	for _, ev := range cfg.Scenario {
		if err := s.Schedule(ev); err != nil {
			return nil, err
		}
	}

	s.prepareDoS()

	s.log.Info("simulation initialized",
		zap.Int("nodes", cfg.Network.Size),
		zap.Int("shards", cfg.Protocol.Shards),
		zap.Int64("tokenSize", s.dist.TokenSize()),
		zap.Stringer("policy", s.policy),
	)
	return s, nil
}

func latencySpec(l config.LatencyConfig) network.LatencySpec {
	vals := make([]network.Time, len(l.Vals))
	for i, v := range l.Vals {
		vals[i] = network.Time(v)
	}
	return network.LatencySpec{
		Kind:    l.Model,
		Fixed:   network.Time(l.FixedMs),
		Max:     network.Time(l.MaxMs),
		PerUnit: l.PerUnit,
		Jitter:  network.Time(l.JitterMs),
		Props:   l.Props,
		Vals:    vals,
	}
}

func (s *Simulation) nodeBuilder() (network.NodeBuilder, error) {
	switch s.cfg.Network.Placement {
	case "fixed":
		return network.FixedPositions{}, nil
	case "", "random":
		return network.RandomPositions{Rng: s.rng}, nil
	case "cities":
		cities := make([]network.City, len(s.cfg.Network.Cities))
		for i, c := range s.cfg.Network.Cities {
			cities[i] = network.City{Name: c.Name, X: c.X, Y: c.Y}
		}
		return network.CityPositions{Rng: s.rng, Cities: cities}, nil
	default:
		return nil, fmt.Errorf("unknown placement %q", s.cfg.Network.Placement)
	}
}

// Deliver implements network.Handler.
func (s *Simulation) Deliver(from, to *network.Node, c network.Content) {
	if s.engines[to.ID].Handle(from.ID, c) {
		return
	}
	if s.beacons[to.ID].Handle(from.ID, c) {
		return
	}
	if g, ok := c.(*RandomnessGossip); ok {
		s.onGossip(from.ID, to.ID, g)
		return
	}
	s.log.Warn("unhandled content", zap.String("type", fmt.Sprintf("%T", c)), zap.Int("node", int(to.ID)))
}

// Send implements fbft.Adaptor and beacon.Adaptor.
func (s *Simulation) Send(c network.Content, from network.NodeID, to ...network.NodeID) {
	s.net.Send(c, from, to...)
}

// Node implements fbft.Adaptor and beacon.Adaptor.
func (s *Simulation) Node(id network.NodeID) *network.Node { return s.net.Node(id) }

// Shard implements fbft.Adaptor and beacon.Adaptor.
func (s *Simulation) Shard(id int) *stake.Shard { return s.dist.Shard(id) }

// IsLeader implements fbft.Adaptor.
func (s *Simulation) IsLeader(id network.NodeID, shard, slot int) bool {
	return s.Leader(shard, slot) == id
}

// Epoch implements fbft.Adaptor.
func (s *Simulation) Epoch() int { return s.epoch }

// Rand implements fbft.Adaptor and beacon.Adaptor.
func (s *Simulation) Rand() *rand.Rand { return s.rng }

// Beacon implements fbft.Adaptor. The queue belongs to the beacon shard so
// it survives leader rotation.
func (s *Simulation) Beacon() *fbft.RandQueue { return &s.rand }

// Finalized implements fbft.Adaptor by writing a slot record.
func (s *Simulation) Finalized(id network.NodeID, b *fbft.Block) {
	n := s.net.Node(id)
	err := s.sink.RecordSlot(stats.SlotRecord{
		Node:          int(id),
		Shard:         b.Shard(),
		Slot:          b.Slot(),
		Epoch:         b.Epoch(),
		TxCount:       b.TxCount(),
		Time:          int64(s.net.Now()),
		BytesSent:     n.BytesSent,
		BytesReceived: n.BytesReceived,
		MsgSent:       n.MsgSent,
		MsgReceived:   n.MsgReceived,
		Leader:        s.IsLeader(id, b.Shard(), b.Slot()),
	})
	s.fail(err)
}

// RandomnessCommitted implements fbft.Adaptor. The value seeds the next
// epoch and is gossiped when an overlay is configured.
func (s *Simulation) RandomnessCommitted(id network.NodeID, v uint64) {
	s.dist.PushRandomness(v)
	if s.overlay != nil {
		s.gossip(id, v)
	}
}

func (s *Simulation) fail(err error) {
	if err != nil && s.err == nil {
		s.err = err
	}
}
