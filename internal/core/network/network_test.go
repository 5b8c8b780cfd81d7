package network

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type payload struct {
	name string
	size int
}

func (p *payload) Size() int { return p.size }

type delivery struct {
	at   Time
	from NodeID
	to   NodeID
	c    Content
}

func newTestNetwork(t *testing.T, count int, opts ...Option) (*Network, *[]delivery) {
	t.Helper()
	var got []delivery
	n := New(rand.New(rand.NewSource(1)), opts...)
	n.SetHandler(HandlerFunc(func(from, to *Node, c Content) {
		got = append(got, delivery{at: n.Now(), from: from.ID, to: to.ID, c: c})
	}))
	n.Populate(count, FixedPositions{})
	return n, &got
}

func TestNetwork_DeliveryTimeOrder(t *testing.T) {
	n, got := newTestNetwork(t, 3, WithLatency(FixedLatency{Delay: 5}))

	n.Send(&payload{name: "a", size: 10}, 0, 1)
	n.Run(2)
	n.Send(&payload{name: "b", size: 10}, 0, 2)
	n.Run(20)

	require.Len(t, *got, 2)
	assert.Equal(t, Time(6), (*got)[0].at)
	assert.Equal(t, Time(8), (*got)[1].at)
	assert.Equal(t, Time(22), n.Now())
}

func TestNetwork_SameTimeIsFIFO(t *testing.T) {
	n, got := newTestNetwork(t, 2, WithLatency(FixedLatency{Delay: 3}))

	for i := 0; i < 5; i++ {
		n.Send(&payload{name: string(rune('a' + i)), size: 1}, 0, 1)
	}
	n.Run(10)

	require.Len(t, *got, 5)
	for i, d := range *got {
		assert.Equal(t, string(rune('a'+i)), d.c.(*payload).name)
		assert.Equal(t, Time(4), d.at)
	}
}

func TestNetwork_BroadcastSharesContent(t *testing.T) {
	n, got := newTestNetwork(t, 5, WithLatency(UniformLatency{Max: 50}))

	p := &payload{name: "bcast", size: 100}
	n.Send(p, 0, 1, 2, 3, 4)
	n.Run(100)

	require.Len(t, *got, 4)
	prev := Time(0)
	for _, d := range *got {
		assert.Same(t, p, d.c)
		assert.GreaterOrEqual(t, d.at, prev)
		prev = d.at
	}
	assert.Equal(t, int64(4), n.Node(0).MsgSent)
	assert.Equal(t, int64(400), n.Node(0).BytesSent)
	assert.Equal(t, int64(1), n.Node(3).MsgReceived)
	assert.Equal(t, int64(100), n.Node(3).BytesReceived)
}

func TestNetwork_SchedulingViolation(t *testing.T) {
	n, _ := newTestNetwork(t, 2)
	n.Run(10)

	err := n.SendAt(&payload{size: 1}, 10, 0, []NodeID{1})
	require.ErrorIs(t, err, ErrSchedulingViolation)

	err = n.SendAt(&payload{size: 1}, 5, 0, []NodeID{1})
	require.ErrorIs(t, err, ErrSchedulingViolation)

	require.ErrorIs(t, n.RegisterTask(func() {}, 10, 0), ErrSchedulingViolation)
	require.ErrorIs(t, n.RegisterPeriodicTask(func() {}, 20, 0, 0, nil), ErrSchedulingViolation)
	require.ErrorIs(t, n.RegisterConditionalTask(func() {}, 3, 1, 0, nil, nil), ErrSchedulingViolation)

	require.NoError(t, n.SendAt(&payload{size: 1}, 11, 0, []NodeID{1}))
}

func TestNetwork_WindowBoundaries(t *testing.T) {
	n, got := newTestNetwork(t, 2, WithLatency(FixedLatency{Delay: 70000}))

	n.Send(&payload{size: 1}, 0, 1)
	n.Run(59999)
	assert.Empty(t, *got)
	assert.Equal(t, 1, n.Pending())

	n.Run(20000)
	require.Len(t, *got, 1)
	assert.Equal(t, Time(70001), (*got)[0].at)
	assert.Equal(t, 0, n.Pending())
	assert.Empty(t, n.msgs.windows)
}

func TestNetwork_DiscardTime(t *testing.T) {
	n, got := newTestNetwork(t, 2, WithLatency(FixedLatency{Delay: 500}), WithDiscardTime(400))

	n.Send(&payload{size: 8}, 0, 1)
	n.Run(1000)

	assert.Empty(t, *got)
	assert.Equal(t, int64(1), n.Node(0).MsgSent)
}

func TestNetwork_Partition(t *testing.T) {
	n, got := newTestNetwork(t, 0)
	require.NoError(t, n.AddNode(&Node{ID: 0, X: 100, Y: 1}))
	require.NoError(t, n.AddNode(&Node{ID: 1, X: 900, Y: 1}))
	require.NoError(t, n.AddNode(&Node{ID: 2, X: 200, Y: 1}))

	require.NoError(t, n.Partition(0.5))
	assert.Equal(t, 0, n.PartitionOf(n.Node(0)))
	assert.Equal(t, 1, n.PartitionOf(n.Node(1)))

	n.Send(&payload{size: 5}, 0, 1, 2)
	n.Run(10)
	require.Len(t, *got, 1)
	assert.Equal(t, NodeID(2), (*got)[0].to)
	assert.Equal(t, int64(2), n.Node(0).MsgSent, "cross partition sends are charged")
	assert.Zero(t, n.Node(1).MsgReceived)

	n.EndPartition()
	n.Send(&payload{size: 5}, 0, 1)
	n.Run(10)
	require.Len(t, *got, 2)
	assert.Equal(t, NodeID(1), (*got)[1].to)
}

func TestNetwork_PartitionErrors(t *testing.T) {
	n, _ := newTestNetwork(t, 1)

	for _, f := range []float64{0, 1, -0.2, 1.5} {
		require.ErrorIs(t, n.Partition(f), ErrInvalidPartition, "fraction %v", f)
	}
	require.NoError(t, n.Partition(0.3))
	require.ErrorIs(t, n.Partition(0.3), ErrInvalidPartition)
}

func TestNetwork_DownNodes(t *testing.T) {
	n, got := newTestNetwork(t, 3)

	n.Node(1).Stop()
	n.Send(&payload{size: 1}, 0, 1, 2)
	n.Run(5)
	require.Len(t, *got, 1)
	assert.Equal(t, NodeID(2), (*got)[0].to)

	// Stopping the sender after the send still drops the message.
	n.Node(1).Start()
	n.Send(&payload{size: 1}, 0, 1)
	n.Node(0).Stop()
	n.Run(5)
	assert.Len(t, *got, 1)

	n.Node(0).Start()
	n.Send(&payload{size: 1}, 0, 1)
	n.Run(5)
	assert.Len(t, *got, 2)
}

func TestNetwork_AddNodeContiguous(t *testing.T) {
	n, _ := newTestNetwork(t, 2)
	require.ErrorIs(t, n.AddNode(&Node{ID: 5}), ErrNodeID)
	require.NoError(t, n.AddNode(&Node{ID: 2}))
	assert.Equal(t, 3, n.Size())
}

func TestNetwork_SetLatencyWithPending(t *testing.T) {
	n, _ := newTestNetwork(t, 2)
	n.Send(&payload{size: 1}, 0, 1)
	require.ErrorIs(t, n.SetLatency(FixedLatency{Delay: 3}), ErrInFlight)
	n.Run(5)
	require.NoError(t, n.SetLatency(FixedLatency{Delay: 3}))

	require.NoError(t, n.RegisterTask(func() {}, 1000, 0))
	assert.Equal(t, 0, n.Pending())
	require.NoError(t, n.SetLatency(FixedLatency{Delay: 4}), "tasks are not in flight")
}

func TestNetwork_Tasks(t *testing.T) {
	n, _ := newTestNetwork(t, 1)

	var once []Time
	require.NoError(t, n.RegisterTask(func() { once = append(once, n.Now()) }, 7, 0))

	var periodic []Time
	require.NoError(t, n.RegisterPeriodicTask(func() {
		periodic = append(periodic, n.Now())
	}, 10, 10, 0, func() bool { return len(periodic) < 3 }))

	n.Node(0).Stop()
	n.Run(100)

	assert.Equal(t, []Time{7}, once, "tasks ignore liveness")
	assert.Equal(t, []Time{10, 20, 30}, periodic)
	assert.Equal(t, 0, n.Pending())
}

func TestNetwork_ConditionalTask(t *testing.T) {
	n, _ := newTestNetwork(t, 1)

	// A periodic tick keeps the clock moving through deliveries.
	ticks := 0
	require.NoError(t, n.RegisterPeriodicTask(func() { ticks++ }, 1, 1, 0, nil))

	var runs []Time
	open := false
	require.NoError(t, n.RegisterConditionalTask(func() {
		runs = append(runs, n.Now())
	}, 5, 10, 0, func() bool { return open }, func() bool { return len(runs) < 3 }))

	n.Run(8)
	assert.Empty(t, runs)

	open = true
	n.Run(100)
	assert.Equal(t, []Time{9, 19, 29}, runs)
	assert.Empty(t, n.conditional)
}

func TestNetwork_Drain(t *testing.T) {
	n, got := newTestNetwork(t, 2, WithLatency(FixedLatency{Delay: 250}))
	n.Send(&payload{size: 1}, 0, 1)

	elapsed := n.Drain(100, 10000)
	assert.Equal(t, Time(300), elapsed)
	assert.Len(t, *got, 1)
	assert.Equal(t, 0, n.Pending())
}

func TestNetwork_DrainIgnoresTasks(t *testing.T) {
	n, got := newTestNetwork(t, 2, WithLatency(FixedLatency{Delay: 250}))
	fired := false
	require.NoError(t, n.RegisterTask(func() { fired = true }, 1_000_000, 0))
	n.Send(&payload{size: 1}, 0, 1)
	assert.Equal(t, 1, n.Pending())

	elapsed := n.Drain(100, 10000)
	assert.Equal(t, Time(300), elapsed)
	assert.Len(t, *got, 1)
	assert.Equal(t, 0, n.Pending())
	assert.False(t, fired)

	n.Run(1_000_000)
	assert.True(t, fired, "the task stays queued after the drain")
}

func TestNetwork_Deterministic(t *testing.T) {
	run := func() []delivery {
		n, got := newTestNetwork(t, 10, WithLatency(UniformLatency{Max: 200}))
		for i := 0; i < 10; i++ {
			dests := make([]NodeID, 0, 9)
			for j := 0; j < 10; j++ {
				if j != i {
					dests = append(dests, NodeID(j))
				}
			}
			n.Send(&payload{size: 1}, NodeID(i), dests...)
			n.Run(3)
		}
		n.Run(500)
		return *got
	}
	a, b := run(), run()
	require.Len(t, a, 90)
	for i := range a {
		assert.Equal(t, a[i].at, b[i].at)
		assert.Equal(t, a[i].from, b[i].from)
		assert.Equal(t, a[i].to, b[i].to)
	}
}
