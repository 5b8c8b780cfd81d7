package leader

import (
	"fmt"
	"math/rand"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/LeJamon/goshardsim/internal/core/network"
	"github.com/LeJamon/goshardsim/internal/core/stake"
)

// Policy selects how slot leaders are chosen.
type Policy int

const (
	// Scheduled computes the whole epoch schedule when the epoch starts.
	Scheduled Policy = iota
	// VRF reveals each slot leader only when the slot is queried.
	VRF
)

// ParsePolicy parses "scheduled" or "vrf".
func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(s) {
	case "scheduled", "":
		return Scheduled, nil
	case "vrf":
		return VRF, nil
	default:
		return 0, fmt.Errorf("unknown leader selection policy %q", s)
	}
}

func (p Policy) String() string {
	switch p {
	case Scheduled:
		return "scheduled"
	case VRF:
		return "vrf"
	default:
		return fmt.Sprintf("Policy(%d)", int(p))
	}
}

// Selector picks the leader of every slot of a shard. Reset must be
// called at every epoch start, after the shard membership is known.
type Selector interface {
	Reset(epoch int, shard *stake.Shard) error
	Leader(slot int) network.NodeID
	Epoch() int
}

// NoLeader is returned by a selector that was never reset.
const NoLeader network.NodeID = -1

// NewSelector returns the selector implementing policy.
func NewSelector(policy Policy, slotsPerEpoch int) (Selector, error) {
	switch policy {
	case Scheduled:
		return &ScheduledSelector{slots: slotsPerEpoch}, nil
	case VRF:
		return NewVRFSelector(slotsPerEpoch)
	default:
		return nil, fmt.Errorf("unknown leader selection policy %v", policy)
	}
}

// Seed offsets, so that schedules and revealed leaders differ for the same
// epoch.
const (
	scheduleSeedOffset = 42
	vrfSeedOffset      = 0x1234
)

func seedFor(epoch, offset, shard int) int64 {
	return int64(epoch+offset)*1_000_003 + int64(shard)
}

// ScheduledSelector precomputes one leader per slot.
type ScheduledSelector struct {
	slots    int
	epoch    int
	schedule []network.NodeID
}

// Reset implements Selector.
func (s *ScheduledSelector) Reset(epoch int, shard *stake.Shard) error {
	rng := rand.New(rand.NewSource(seedFor(epoch, scheduleSeedOffset, shard.ID)))
	a, err := NewAlias(shard.Weights(), rng)
	if err != nil {
		return fmt.Errorf("shard %d epoch %d: %w", shard.ID, epoch, err)
	}
	members := shard.Members()
	s.epoch = epoch
	s.schedule = make([]network.NodeID, s.slots)
	for i := range s.schedule {
		s.schedule[i] = members[a.Next()]
	}
	return nil
}

// Leader implements Selector. Slots outside the epoch wrap around. It
// returns NoLeader before the first Reset.
func (s *ScheduledSelector) Leader(slot int) network.NodeID {
	n := len(s.schedule)
	if n == 0 {
		return NoLeader
	}
	return s.schedule[(slot%n+n)%n]
}

// Epoch implements Selector.
func (s *ScheduledSelector) Epoch() int { return s.epoch }

// Schedule returns the leaders of every slot of the epoch.
func (s *ScheduledSelector) Schedule() []network.NodeID { return s.schedule }

// VRFSelector draws the leader of a slot on first query and memoizes it for
// the rest of the epoch. Each draw only depends on the epoch, the shard and
// the slot.
type VRFSelector struct {
	epoch   int
	shard   int
	members []network.NodeID
	table   *Alias
	cache   *lru.Cache[int, network.NodeID]
}

// NewVRFSelector creates a selector remembering up to slotsPerEpoch slots.
func NewVRFSelector(slotsPerEpoch int) (*VRFSelector, error) {
	cache, err := lru.New[int, network.NodeID](max(slotsPerEpoch, 1))
	if err != nil {
		return nil, fmt.Errorf("failed to create leader cache: %w", err)
	}
	return &VRFSelector{cache: cache}, nil
}

// Reset implements Selector.
func (s *VRFSelector) Reset(epoch int, shard *stake.Shard) error {
	a, err := NewAlias(shard.Weights(), nil)
	if err != nil {
		return fmt.Errorf("shard %d epoch %d: %w", shard.ID, epoch, err)
	}
	s.epoch = epoch
	s.shard = shard.ID
	s.members = shard.Members()
	s.table = a
	s.cache.Purge()
	return nil
}

// Leader implements Selector. It returns NoLeader before the first Reset.
func (s *VRFSelector) Leader(slot int) network.NodeID {
	if s.table == nil {
		return NoLeader
	}
	if id, ok := s.cache.Get(slot); ok {
		return id
	}
	rng := rand.New(rand.NewSource(seedFor(s.epoch, vrfSeedOffset, s.shard) ^ int64(slot)<<20))
	id := s.members[s.table.Draw(rng)]
	s.cache.Add(slot, id)
	return id
}

// Epoch implements Selector.
func (s *VRFSelector) Epoch() int { return s.epoch }

// Revealed returns the number of slots drawn so far in the epoch.
func (s *VRFSelector) Revealed() int { return s.cache.Len() }
