package stake

import (
	"sort"

	"github.com/LeJamon/goshardsim/internal/core/network"
)

// MostFrequent returns the k nodes appearing most often in a leader
// schedule. Ties go to the lower id.
func MostFrequent(schedule []network.NodeID, k int) []network.NodeID {
	counts := make(map[network.NodeID]int)
	for _, id := range schedule {
		counts[id]++
	}
	ids := make([]network.NodeID, 0, len(counts))
	for id := range counts {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		if counts[ids[i]] != counts[ids[j]] {
			return counts[ids[i]] > counts[ids[j]]
		}
		return ids[i] < ids[j]
	})
	return ids[:min(k, len(ids))]
}

// Richest returns the k members of the shard holding the most tokens.
// Ties go to the lower id.
func Richest(s *Shard, k int) []network.NodeID {
	ids := append([]network.NodeID(nil), s.Members()...)
	sort.SliceStable(ids, func(i, j int) bool { return s.Tokens(ids[i]) > s.Tokens(ids[j]) })
	return ids[:min(k, len(ids))]
}
