package network

import (
	"math/rand"
	"sort"
)

// Overlay is an undirected peer graph for gossip style protocols. It is
// independent from message delivery, which always uses the latency model.
type Overlay struct {
	links map[NodeID]map[NodeID]struct{}
}

// NewOverlay creates an overlay with no links.
func NewOverlay() *Overlay {
	return &Overlay{links: make(map[NodeID]map[NodeID]struct{})}
}

// Connect links two nodes. It returns false for self links and existing links.
func (o *Overlay) Connect(a, b NodeID) bool {
	if a == b || o.Connected(a, b) {
		return false
	}
	o.link(a, b)
	o.link(b, a)
	return true
}

func (o *Overlay) link(from, to NodeID) {
	if o.links[from] == nil {
		o.links[from] = make(map[NodeID]struct{})
	}
	o.links[from][to] = struct{}{}
}

// Disconnect removes the link between two nodes.
func (o *Overlay) Disconnect(a, b NodeID) bool {
	if !o.Connected(a, b) {
		return false
	}
	delete(o.links[a], b)
	delete(o.links[b], a)
	return true
}

// Connected reports whether a and b are linked.
func (o *Overlay) Connected(a, b NodeID) bool {
	_, ok := o.links[a][b]
	return ok
}

// Peers returns the peers of id in ascending order.
func (o *Overlay) Peers(id NodeID) []NodeID {
	peers := make([]NodeID, 0, len(o.links[id]))
	for p := range o.links[id] {
		peers = append(peers, p)
	}
	sort.Slice(peers, func(i, j int) bool { return peers[i] < peers[j] })
	return peers
}

// ConnectRandom links every node to at least degree random peers.
func (o *Overlay) ConnectRandom(nodes []NodeID, degree int, rng *rand.Rand) {
	if degree >= len(nodes) {
		degree = len(nodes) - 1
	}
	for _, a := range nodes {
		for len(o.links[a]) < degree {
			o.Connect(a, nodes[rng.Intn(len(nodes))])
		}
	}
}

// Broadcast sends c from a node to all of its peers.
func (o *Overlay) Broadcast(n *Network, c Content, from NodeID) int {
	peers := o.Peers(from)
	if len(peers) > 0 {
		n.Send(c, from, peers...)
	}
	return len(peers)
}
