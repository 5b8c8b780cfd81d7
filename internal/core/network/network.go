// Package network is a deterministic discrete event network simulator.
// A single virtual clock drives message deliveries and tasks in strictly
// increasing time order; no real time or I/O is involved.
package network

import (
	"errors"
	"fmt"
	"math/rand"
	"sort"

	"go.uber.org/zap"
)

// Time is virtual time in milliseconds.
type Time int64

var (
	// ErrSchedulingViolation is returned when an event is scheduled at or
	// before the current virtual time. It always denotes a programming error.
	ErrSchedulingViolation = errors.New("scheduling violation")

	// ErrInvalidPartition is returned for an out of range or duplicate cut.
	ErrInvalidPartition = errors.New("invalid partition")

	// ErrNodeID is returned when node ids would not be contiguous.
	ErrNodeID = errors.New("node ids must be contiguous from 0")

	// ErrInFlight is returned when an operation requires an empty queue.
	ErrInFlight = errors.New("messages in flight")
)

// Content is the payload of a message. Contents are shared between all the
// destinations of a broadcast and must not be mutated once sent.
type Content interface {
	// Size is the number of bytes accounted for the message.
	Size() int
}

// Handler receives the messages delivered by the network.
type Handler interface {
	Deliver(from, to *Node, c Content)
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(from, to *Node, c Content)

// Deliver implements Handler.
func (f HandlerFunc) Deliver(from, to *Node, c Content) { f(from, to, c) }

type task struct {
	run    func()
	period Time
	cont   func() bool
}

func (*task) Size() int { return 0 }

type conditionalTask struct {
	run      func()
	startIf  func() bool
	repeatIf func() bool
	period   Time
	minStart Time
}

// Network owns the virtual clock, the node registry and the pending events.
type Network struct {
	now     Time
	nodes   []*Node
	latency LatencyModel
	handler Handler
	rng     *rand.Rand
	log     *zap.Logger

	msgs        store
	conditional []*conditionalTask
	cuts        []int
	discardTime Time
}

// Option configures a Network.
type Option func(*Network)

// WithLatency sets the latency model. Defaults to NoLatency.
func WithLatency(l LatencyModel) Option {
	return func(n *Network) {
		n.latency = l
	}
}

// WithHandler sets the receiver of delivered messages.
func WithHandler(h Handler) Option {
	return func(n *Network) {
		n.handler = h
	}
}

// WithLogger sets the logger.
func WithLogger(log *zap.Logger) Option {
	return func(n *Network) {
		n.log = log
	}
}

// WithDiscardTime drops every message whose latency is at least d.
func WithDiscardTime(d Time) Option {
	return func(n *Network) {
		n.discardTime = d
	}
}

// New creates an empty network at time 0. rng is the only source of
// randomness used for message seeds.
func New(rng *rand.Rand, opts ...Option) *Network {
	n := &Network{
		latency: NoLatency{},
		rng:     rng,
		log:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Now returns the current virtual time.
func (n *Network) Now() Time { return n.now }

// SetHandler replaces the message handler.
func (n *Network) SetHandler(h Handler) { n.handler = h }

// SetLatency replaces the latency model. Not allowed with messages pending.
func (n *Network) SetLatency(l LatencyModel) error {
	if n.msgs.messages != 0 {
		return fmt.Errorf("set latency: %w (%d pending)", ErrInFlight, n.msgs.messages)
	}
	n.latency = l
	return nil
}

// AddNode registers a node. Its id must equal the current registry size.
func (n *Network) AddNode(node *Node) error {
	if int(node.ID) != len(n.nodes) {
		return fmt.Errorf("%w: got %d, want %d", ErrNodeID, node.ID, len(n.nodes))
	}
	n.nodes = append(n.nodes, node)
	return nil
}

// Populate builds and registers count nodes.
func (n *Network) Populate(count int, b NodeBuilder) {
	for i := 0; i < count; i++ {
		n.nodes = append(n.nodes, b.Build(NodeID(len(n.nodes))))
	}
}

// Node returns the node with the given id.
func (n *Network) Node(id NodeID) *Node { return n.nodes[id] }

// Nodes returns all registered nodes ordered by id.
func (n *Network) Nodes() []*Node { return n.nodes }

// Size returns the number of registered nodes.
func (n *Network) Size() int { return len(n.nodes) }

// Pending returns the number of queued message deliveries. Tasks are not
// counted.
func (n *Network) Pending() int { return n.msgs.messages }

// Send sends c from one node to the destinations at now+1.
func (n *Network) Send(c Content, from NodeID, dests ...NodeID) {
	n.schedule(c, n.now+1, from, dests)
}

// SendAt sends c at the given virtual time, which must be in the future.
func (n *Network) SendAt(c Content, at Time, from NodeID, dests []NodeID) error {
	if at <= n.now {
		return fmt.Errorf("%w: send at %d, now %d", ErrSchedulingViolation, at, n.now)
	}
	n.schedule(c, at, from, dests)
	return nil
}

func (n *Network) schedule(c Content, at Time, from NodeID, dests []NodeID) {
	src := n.nodes[from]
	seed := n.rng.Uint32()
	size := int64(c.Size())

	arrivals := make([]arrival, 0, len(dests))
	for _, id := range dests {
		src.MsgSent++
		src.BytesSent += size
		lat := n.latency.Latency(src, n.nodes[id], PseudoRandom(id, seed))
		if n.discardTime > 0 && lat >= n.discardTime {
			continue
		}
		arrivals = append(arrivals, arrival{to: id, at: at + lat})
	}
	if len(arrivals) == 0 {
		return
	}
	sort.SliceStable(arrivals, func(i, j int) bool { return arrivals[i].at < arrivals[j].at })
	n.msgs.add(&envelope{content: c, from: from, dests: arrivals})
}

// RegisterTask runs fn at the given time on behalf of node.
func (n *Network) RegisterTask(fn func(), at Time, node NodeID) error {
	return n.addTask(&task{run: fn}, at, node)
}

// RegisterPeriodicTask runs fn at the given time then every period while
// cont returns true. A nil cont repeats forever.
func (n *Network) RegisterPeriodicTask(fn func(), at, period Time, node NodeID, cont func() bool) error {
	if period <= 0 {
		return fmt.Errorf("%w: period %d", ErrSchedulingViolation, period)
	}
	return n.addTask(&task{run: fn, period: period, cont: cont}, at, node)
}

func (n *Network) addTask(t *task, at Time, node NodeID) error {
	if at <= n.now {
		return fmt.Errorf("%w: task at %d, now %d", ErrSchedulingViolation, at, n.now)
	}
	n.msgs.add(&envelope{content: t, from: node, dests: []arrival{{to: node, at: at}}})
	return nil
}

// RegisterConditionalTask runs fn, no earlier than at, each time the clock
// moves to a new delivery time and startIf holds. After a run the task
// waits period before it may start again. The task is dropped the first
// time repeatIf fails.
func (n *Network) RegisterConditionalTask(fn func(), at, period Time, node NodeID, startIf, repeatIf func() bool) error {
	if at <= n.now {
		return fmt.Errorf("%w: conditional task at %d, now %d", ErrSchedulingViolation, at, n.now)
	}
	n.conditional = append(n.conditional, &conditionalTask{
		run:      fn,
		startIf:  startIf,
		repeatIf: repeatIf,
		period:   period,
		minStart: at,
	})
	return nil
}

// Run delivers every event due up to now+ms included, then sets the clock
// to now+ms.
func (n *Network) Run(ms Time) {
	end := n.now + ms
	n.receiveUntil(end)
	n.now = end
}

// Drain runs step sized increments until no message is pending or limit
// milliseconds have elapsed. Queued tasks do not keep it running. It
// returns the elapsed time.
func (n *Network) Drain(step, limit Time) Time {
	var elapsed Time
	for n.msgs.messages > 0 && elapsed < limit {
		n.Run(step)
		elapsed += step
	}
	return elapsed
}

func (n *Network) receiveUntil(until Time) {
	prev := n.now
	for e := n.nextEnvelope(until); e != nil; e = n.nextEnvelope(until) {
		if n.now != prev {
			n.runConditional()
		}
		n.deliver(e)
		e.next++
		if e.next < len(e.dests) {
			n.msgs.add(e)
		}
		prev = n.now
	}
}

func (n *Network) nextEnvelope(until Time) *envelope {
	for n.now <= until {
		if e := n.msgs.poll(n.now); e != nil {
			return e
		}
		start, ok := n.msgs.first(n.now)
		switch {
		case !ok:
			n.now = until + 1
		case start > n.now:
			n.now = min(start, until+1)
		default:
			n.now++
		}
	}
	return nil
}

func (n *Network) runConditional() {
	kept := n.conditional[:0]
	for _, ct := range n.conditional {
		if !ct.repeatIf() {
			continue
		}
		if n.now >= ct.minStart && ct.startIf() {
			ct.run()
			ct.minStart = n.now + ct.period
		}
		kept = append(kept, ct)
	}
	for i := len(kept); i < len(n.conditional); i++ {
		n.conditional[i] = nil
	}
	n.conditional = kept
}

func (n *Network) deliver(e *envelope) {
	if t, ok := e.content.(*task); ok {
		t.run()
		if t.period > 0 && (t.cont == nil || t.cont()) {
			n.msgs.add(&envelope{content: t, from: e.from, dests: []arrival{{to: e.from, at: n.now + t.period}}})
		}
		return
	}

	from, to := n.nodes[e.from], n.nodes[e.dests[e.next].to]
	if from.down || to.down || n.PartitionOf(from) != n.PartitionOf(to) {
		return
	}
	to.MsgReceived++
	to.BytesReceived += int64(e.content.Size())
	if n.handler != nil {
		n.handler.Deliver(from, to, e.content)
	}
}

// Partition adds a vertical cut at fraction*MaxX. Nodes on different
// sides of any cut can no longer exchange messages.
func (n *Network) Partition(fraction float64) error {
	if fraction <= 0 || fraction >= 1 {
		return fmt.Errorf("%w: fraction %v not in (0, 1)", ErrInvalidPartition, fraction)
	}
	x := int(MaxX * fraction)
	for _, c := range n.cuts {
		if c == x {
			return fmt.Errorf("%w: cut at x=%d exists", ErrInvalidPartition, x)
		}
	}
	n.cuts = append(n.cuts, x)
	sort.Ints(n.cuts)
	n.log.Debug("network partitioned", zap.Int("x", x), zap.Int64("now", int64(n.now)))
	return nil
}

// EndPartition removes every cut.
func (n *Network) EndPartition() {
	n.cuts = n.cuts[:0]
	n.log.Debug("network healed", zap.Int64("now", int64(n.now)))
}

// PartitionOf returns the index of the partition the node belongs to.
func (n *Network) PartitionOf(node *Node) int {
	for i, x := range n.cuts {
		if x > node.X {
			return i
		}
	}
	return len(n.cuts)
}
