package fbft

import (
	"math/rand"

	"go.uber.org/zap"

	"github.com/LeJamon/goshardsim/internal/core/network"
	"github.com/LeJamon/goshardsim/internal/core/stake"
)

// Adaptor connects an Engine to the simulation.
type Adaptor interface {
	// Send sends a message through the simulated network.
	Send(c network.Content, from network.NodeID, to ...network.NodeID)

	// Node returns the network record of a node.
	Node(id network.NodeID) *network.Node

	// Shard returns the current membership of a shard.
	Shard(id int) *stake.Shard

	// IsLeader reports whether id leads the shard for the slot.
	IsLeader(id network.NodeID, shard, slot int) bool

	// Epoch returns the current epoch.
	Epoch() int

	// Rand returns the simulation random generator.
	Rand() *rand.Rand

	// Beacon returns the randomness waiting for beacon shard blocks.
	Beacon() *RandQueue

	// Finalized is called each time a node finalizes a block.
	Finalized(id network.NodeID, b *Block)

	// RandomnessCommitted is called on the leader that committed a final
	// random value.
	RandomnessCommitted(id network.NodeID, v uint64)
}

// Config holds the block and randomness parameters of the engine.
type Config struct {
	HeaderSize int
	TxSize     int
	ExpectedTx int
	VDFSlots   int
}

type key struct {
	slot, shard int
}

// Engine runs the protocol for one node. Tracking tables are keyed by
// (slot, shard) and cleared at every epoch.
type Engine struct {
	id      network.NodeID
	cfg     Config
	adaptor Adaptor
	log     *zap.Logger

	prepare   map[key]*BlockSigners
	commit    map[key]*BlockSigners
	finalized map[key]*Block
	last      map[int]*Block
}

// NewEngine creates the engine of node id.
func NewEngine(id network.NodeID, cfg Config, adaptor Adaptor, log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	e := &Engine{
		id:      id,
		cfg:     cfg,
		adaptor: adaptor,
		log:     log.With(zap.Int("node", int(id))),
	}
	e.Reset()
	return e
}

// ID returns the node the engine runs for.
func (e *Engine) ID() network.NodeID { return e.id }

// Reset forgets every block of the previous epoch.
func (e *Engine) Reset() {
	e.prepare = make(map[key]*BlockSigners)
	e.commit = make(map[key]*BlockSigners)
	e.finalized = make(map[key]*Block)
	e.last = make(map[int]*Block)
}

// Prepared returns the first round signers known for a slot.
func (e *Engine) Prepared(slot, shard int) *BlockSigners { return e.prepare[key{slot, shard}] }

// Committed returns the second round signers known for a slot.
func (e *Engine) Committed(slot, shard int) *BlockSigners { return e.commit[key{slot, shard}] }

// Finalized returns the block finalized for a slot, if any.
func (e *Engine) Finalized(slot, shard int) *Block { return e.finalized[key{slot, shard}] }

// LastFinalized returns the finalized block of the shard with the highest
// slot in the current epoch.
func (e *Engine) LastFinalized(shard int) *Block { return e.last[shard] }

// Handle dispatches a protocol message. It returns false for contents the
// engine does not handle.
func (e *Engine) Handle(from network.NodeID, c network.Content) bool {
	switch m := c.(type) {
	case *Announce:
		e.OnAnnounce(from, m)
	case *PrepareSig:
		e.OnPrepareSig(from, m)
	case *Prepared:
		e.OnPrepared(from, m)
	case *CommitSig:
		e.OnCommitSig(from, m)
	case *Committed:
		e.OnCommitted(from, m)
	case *PseudoRand:
		e.OnPseudoRand(m)
	default:
		return false
	}
	return true
}

func (e *Engine) silent() bool {
	n := e.adaptor.Node(e.id)
	return n.Byzantine || n.Down()
}

func (e *Engine) stale(b *Block) bool {
	return b.Epoch() < e.adaptor.Epoch()
}

// TxCount draws the number of transactions of a new block.
func (e *Engine) TxCount() int {
	expected := e.cfg.ExpectedTx
	n := expected + int(e.adaptor.Rand().NormFloat64()*float64(expected/10))
	return max(n, 0)
}

// Propose builds the block of the slot and announces it to the shard.
// Beacon shard blocks carry the pending randomness. It returns nil when the
// node is down.
func (e *Engine) Propose(epoch, slot, shard int) *Block {
	if e.adaptor.Node(e.id).Down() {
		return nil
	}
	p := BlockParams{
		Shard:      shard,
		Epoch:      epoch,
		Slot:       slot,
		TxCount:    e.TxCount(),
		HeaderSize: e.cfg.HeaderSize,
		TxSize:     e.cfg.TxSize,
	}
	if shard == stake.BeaconShard {
		q := e.adaptor.Beacon()
		p.PRand = q.PopPRand()
		p.Rnd = q.PopRnd()
	}
	b := NewBlock(p)
	e.log.Debug("announce", zap.Int("epoch", epoch), zap.Int("slot", slot), zap.Int("shard", shard))
	e.adaptor.Send(&Announce{Block: b}, e.id, e.adaptor.Shard(shard).Members()...)
	return b
}

// OnAnnounce checks the header and returns the first signature to the
// leader. The payload is only checked once the block is prepared.
func (e *Engine) OnAnnounce(from network.NodeID, m *Announce) {
	if e.stale(m.Block) || !m.Block.HeaderValid() || e.silent() {
		return
	}
	e.adaptor.Send(&PrepareSig{Block: m.Block, Signer: e.id}, e.id, from)
}

// OnPrepareSig accumulates first round signatures and broadcasts the
// prepare certificate once two thirds of the shard signed.
func (e *Engine) OnPrepareSig(from network.NodeID, m *PrepareSig) {
	if cert, ok := e.accumulate(e.prepare, from, m.Block); ok {
		e.adaptor.Send(&Prepared{Cert: cert}, e.id, e.adaptor.Shard(m.Block.Shard()).Members()...)
	}
}

// OnPrepared checks the prepare certificate and the payload, then returns
// the second signature to the leader.
func (e *Engine) OnPrepared(from network.NodeID, m *Prepared) {
	b := m.Cert.Block
	if e.stale(b) || !m.Cert.MajoritySigned() {
		return
	}
	k := key{b.Slot(), b.Shard()}
	if cur := e.prepare[k]; cur != nil {
		if cur.Certified() {
			return
		}
	} else {
		e.prepare[k] = fromCertificate(m.Cert)
	}
	if !b.PayloadValid() || e.silent() {
		return
	}
	e.adaptor.Send(&CommitSig{Block: b, Signer: e.id}, e.id, from)
}

// OnCommitSig accumulates second round signatures and broadcasts the
// commit certificate once two thirds of the shard signed.
func (e *Engine) OnCommitSig(from network.NodeID, m *CommitSig) {
	if cert, ok := e.accumulate(e.commit, from, m.Block); ok {
		e.adaptor.Send(&Committed{Cert: cert}, e.id, e.adaptor.Shard(m.Block.Shard()).Members()...)
	}
}

// accumulate records the signature of from. It returns the certificate
// when the threshold is reached for the first time.
func (e *Engine) accumulate(table map[key]*BlockSigners, from network.NodeID, b *Block) (Certificate, bool) {
	if e.stale(b) || !e.adaptor.IsLeader(e.id, b.Shard(), b.Slot()) {
		return Certificate{}, false
	}
	k := key{b.Slot(), b.Shard()}
	bs := table[k]
	if bs != nil && (bs.Sent() || bs.Block().Hash() != b.Hash()) {
		return Certificate{}, false
	}
	shard := e.adaptor.Shard(b.Shard())
	idx, ok := shard.Index(from)
	if !ok {
		return Certificate{}, false
	}
	if bs == nil {
		bs = NewBlockSigners(b, shard.Size())
		table[k] = bs
	}
	if err := bs.Sign(idx); err != nil {
		return Certificate{}, false
	}
	if !bs.MajoritySigned() {
		return Certificate{}, false
	}
	bs.MarkSent()
	return bs.Certificate(), true
}

// OnCommitted finalizes the block when the certificate comes from the slot
// leader. The leader then moves the beacon randomness forward.
func (e *Engine) OnCommitted(from network.NodeID, m *Committed) {
	b := m.Cert.Block
	if e.stale(b) || !e.adaptor.IsLeader(from, b.Shard(), b.Slot()) || !m.Cert.MajoritySigned() {
		return
	}
	k := key{b.Slot(), b.Shard()}
	if e.finalized[k] != nil {
		return
	}
	if e.commit[k] == nil {
		e.commit[k] = fromCertificate(m.Cert)
	}
	e.finalized[k] = b
	if last := e.last[b.Shard()]; last == nil || last.Slot() < b.Slot() {
		e.last[b.Shard()] = b
	}
	e.adaptor.Finalized(e.id, b)

	if !e.adaptor.IsLeader(e.id, b.Shard(), b.Slot()) {
		return
	}
	if p := b.PRand(); p.IsReady() {
		e.log.Info("pseudo random committed",
			zap.Uint64("pRand", p.Value),
			zap.Int("epoch", b.Epoch()),
			zap.Int("slot", b.Slot()),
		)
		e.adaptor.Beacon().StartVDF(e.adaptor.Rand().Uint64()^p.Value, e.cfg.VDFSlots)
	}
	if r := b.Rnd(); r.IsReady() {
		e.log.Info("randomness committed",
			zap.Uint64("rnd", r.Value),
			zap.Int("epoch", b.Epoch()),
			zap.Int("slot", b.Slot()),
		)
		e.adaptor.RandomnessCommitted(e.id, r.Value)
	}
}

// OnPseudoRand queues the aggregated beacon value for the next beacon block.
func (e *Engine) OnPseudoRand(m *PseudoRand) {
	e.adaptor.Beacon().PushPRand(m.Value)
}
