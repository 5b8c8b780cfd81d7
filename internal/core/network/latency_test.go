package network

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPseudoRandom(t *testing.T) {
	counts := make([]int, 10)
	for id := 0; id < 1000; id++ {
		v := PseudoRandom(NodeID(id), 12345)
		require.GreaterOrEqual(t, v, 0)
		require.Less(t, v, 100)
		require.Equal(t, v, PseudoRandom(NodeID(id), 12345))
		counts[v/10]++
	}
	for _, c := range counts {
		assert.InDelta(t, 100, c, 50)
	}
}

func TestLatencyModels(t *testing.T) {
	a := &Node{ID: 0, X: 10, Y: 10}
	b := &Node{ID: 1, X: 990, Y: 10}

	tests := []struct {
		name  string
		model LatencyModel
		delta int
		want  Time
	}{
		{"none", NoLatency{}, 50, 1},
		{"fixed", FixedLatency{Delay: 42}, 99, 42},
		{"fixed zero", FixedLatency{}, 0, 1},
		{"uniform", UniformLatency{Max: 200}, 50, 100},
		{"uniform floor", UniformLatency{Max: 200}, 0, 1},
		{"distance wraps", DistanceLatency{Fixed: 5, PerUnit: 1, Jitter: 10}, 50, 5 + 20 + 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.model.Latency(a, b, tt.delta))
		})
	}
}

func TestMeasuredLatency(t *testing.T) {
	m, err := NewMeasuredLatency([]int{10, 50, 100}, []Time{5, 20, 300})
	require.NoError(t, err)

	assert.Equal(t, Time(5), m.Latency(nil, nil, 0))
	assert.Equal(t, Time(5), m.Latency(nil, nil, 9))
	assert.Equal(t, Time(20), m.Latency(nil, nil, 10))
	assert.Equal(t, Time(300), m.Latency(nil, nil, 99))

	_, err = NewMeasuredLatency([]int{10, 50}, []Time{5})
	require.ErrorIs(t, err, ErrInvalidLatency)
	_, err = NewMeasuredLatency([]int{50, 10, 100}, []Time{1, 2, 3})
	require.ErrorIs(t, err, ErrInvalidLatency)
	_, err = NewMeasuredLatency([]int{10, 90}, []Time{1, 2})
	require.ErrorIs(t, err, ErrInvalidLatency)
}

func TestParseLatency(t *testing.T) {
	l, err := ParseLatency(LatencySpec{Kind: "fixed", Fixed: 3})
	require.NoError(t, err)
	assert.Equal(t, FixedLatency{Delay: 3}, l)

	l, err = ParseLatency(LatencySpec{})
	require.NoError(t, err)
	assert.Equal(t, NoLatency{}, l)

	_, err = ParseLatency(LatencySpec{Kind: "uniform"})
	require.ErrorIs(t, err, ErrInvalidLatency)

	_, err = ParseLatency(LatencySpec{Kind: "teleport"})
	require.ErrorIs(t, err, ErrInvalidLatency)
}

func TestNode_Dist(t *testing.T) {
	a := &Node{X: 1, Y: 1}
	assert.Equal(t, 0, a.Dist(a))
	assert.Equal(t, 5, a.Dist(&Node{X: 4, Y: 5}))
	assert.Equal(t, 2, a.Dist(&Node{X: 999, Y: 1}))
}

func TestNodeBuilders(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	for i := 0; i < 100; i++ {
		n := RandomPositions{Rng: rng}.Build(NodeID(i))
		require.True(t, n.X >= 1 && n.X <= MaxX)
		require.True(t, n.Y >= 1 && n.Y <= MaxY)
	}
	cities := []City{{Name: "Paris", X: 500, Y: 300}, {Name: "Tokyo", X: 900, Y: 400}}
	n := CityPositions{Rng: rng, Cities: cities}.Build(7)
	assert.Contains(t, []string{"Paris", "Tokyo"}, n.City)
	assert.Equal(t, NodeID(7), n.ID)
}

func TestOverlay(t *testing.T) {
	o := NewOverlay()
	assert.False(t, o.Connect(1, 1))
	assert.True(t, o.Connect(1, 2))
	assert.False(t, o.Connect(2, 1))
	assert.True(t, o.Connected(2, 1))
	assert.Equal(t, []NodeID{2}, o.Peers(1))
	assert.True(t, o.Disconnect(1, 2))
	assert.False(t, o.Connected(1, 2))

	nodes := []NodeID{0, 1, 2, 3, 4, 5}
	o.ConnectRandom(nodes, 3, rand.New(rand.NewSource(9)))
	for _, id := range nodes {
		assert.GreaterOrEqual(t, len(o.Peers(id)), 3)
	}

	n, got := newTestNetwork(t, 6)
	sent := o.Broadcast(n, &payload{size: 1}, 0)
	n.Run(5)
	assert.Len(t, *got, sent)
}
