package stake

import (
	"github.com/RoaringBitmap/roaring"

	"github.com/LeJamon/goshardsim/internal/core/network"
)

// BeaconShard is the shard that produces the cross epoch randomness.
const BeaconShard = 0

// Shard is the membership of one shard for one epoch.
type Shard struct {
	ID     int
	Epoch  int
	Leader network.NodeID

	members []network.NodeID
	set     *roaring.Bitmap
	tokens  map[network.NodeID]int
	index   map[network.NodeID]int
}

func newShard(id, epoch int, bucket []network.NodeID) *Shard {
	s := &Shard{
		ID:     id,
		Epoch:  epoch,
		Leader: bucket[0],
		set:    roaring.New(),
		tokens: make(map[network.NodeID]int),
		index:  make(map[network.NodeID]int),
	}
	for _, owner := range bucket {
		s.tokens[owner]++
		s.set.Add(uint32(owner))
	}
	s.members = make([]network.NodeID, 0, s.set.GetCardinality())
	it := s.set.Iterator()
	for it.HasNext() {
		id := network.NodeID(it.Next())
		s.index[id] = len(s.members)
		s.members = append(s.members, id)
	}
	return s
}

// Members returns the member ids in ascending order.
func (s *Shard) Members() []network.NodeID { return s.members }

// Size is the number of validators in the shard.
func (s *Shard) Size() int { return len(s.members) }

// Contains reports whether id is a member.
func (s *Shard) Contains(id network.NodeID) bool { return s.set.Contains(uint32(id)) }

// Index returns the signer bit position of a member.
func (s *Shard) Index(id network.NodeID) (int, bool) {
	i, ok := s.index[id]
	return i, ok
}

// Tokens returns the number of tokens id holds in this shard.
func (s *Shard) Tokens(id network.NodeID) int { return s.tokens[id] }

// Weights returns the token count of each member, aligned with Members.
func (s *Shard) Weights() []float64 {
	w := make([]float64, len(s.members))
	for i, id := range s.members {
		w[i] = float64(s.tokens[id])
	}
	return w
}
