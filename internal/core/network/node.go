package network

import (
	"math"
	"math/rand"
)

// Map bounds. Node coordinates lie in [1, MaxX] x [1, MaxY] and distances
// wrap around both axes.
const (
	MaxX = 1000
	MaxY = 1000
)

// NodeID identifies a node. IDs are dense and start at 0.
type NodeID int

// Node is the protocol independent record of a network participant.
type Node struct {
	ID        NodeID
	X, Y      int
	City      string
	Byzantine bool

	down bool

	MsgSent       int64
	MsgReceived   int64
	BytesSent     int64
	BytesReceived int64
}

// Stop marks the node as down. Messages to or from a down node are dropped
// at delivery time.
func (n *Node) Stop() { n.down = true }

// Start revives a stopped node. Nothing missed while down is replayed.
func (n *Node) Start() { n.down = false }

// Down reports whether the node is stopped.
func (n *Node) Down() bool { return n.down }

// ResetCounters zeroes the message and byte counters.
func (n *Node) ResetCounters() {
	n.MsgSent = 0
	n.MsgReceived = 0
	n.BytesSent = 0
	n.BytesReceived = 0
}

// Dist returns the euclidean distance to other on the wrapping map.
func (n *Node) Dist(other *Node) int {
	dx := wrap(n.X-other.X, MaxX)
	dy := wrap(n.Y-other.Y, MaxY)
	return int(math.Sqrt(float64(dx*dx + dy*dy)))
}

func wrap(d, size int) int {
	if d < 0 {
		d = -d
	}
	if size-d < d {
		return size - d
	}
	return d
}

// City is a named map location used by CityPositions.
type City struct {
	Name string
	X, Y int
}

// NodeBuilder places new nodes on the map.
type NodeBuilder interface {
	Build(id NodeID) *Node
}

// FixedPositions puts every node at the same location.
type FixedPositions struct{}

// Build implements NodeBuilder.
func (FixedPositions) Build(id NodeID) *Node {
	return &Node{ID: id, X: 1, Y: 1}
}

// RandomPositions spreads nodes uniformly over the map.
type RandomPositions struct {
	Rng *rand.Rand
}

// Build implements NodeBuilder.
func (b RandomPositions) Build(id NodeID) *Node {
	return &Node{ID: id, X: b.Rng.Intn(MaxX) + 1, Y: b.Rng.Intn(MaxY) + 1}
}

// CityPositions assigns each node to a random city from the list.
type CityPositions struct {
	Rng    *rand.Rand
	Cities []City
}

// Build implements NodeBuilder.
func (b CityPositions) Build(id NodeID) *Node {
	if len(b.Cities) == 0 {
		return FixedPositions{}.Build(id)
	}
	c := b.Cities[b.Rng.Intn(len(b.Cities))]
	return &Node{ID: id, X: c.X, Y: c.Y, City: c.Name}
}
