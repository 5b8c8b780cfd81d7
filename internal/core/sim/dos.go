package sim

import (
	"go.uber.org/zap"

	"github.com/LeJamon/goshardsim/internal/core/leader"
	"github.com/LeJamon/goshardsim/internal/core/network"
	"github.com/LeJamon/goshardsim/internal/core/stake"
)

// dosPlan is a graduating attack over one epoch: every step one more shard
// loses its most likely leaders, until all shards are attacked. Every node
// the plan stopped is restarted one step before the epoch ends.
type dosPlan struct {
	step    int
	stops   map[int][]network.NodeID
	restart int
	stopped []network.NodeID
}

// prepareDoS builds the plan of the current epoch, if enabled.
func (s *Simulation) prepareDoS() {
	s.dos = nil
	if !s.cfg.Attack.DoS {
		return
	}
	shards := len(s.selectors)
	slots := s.cfg.Protocol.EpochSlots
	step := slots / (2 * shards)
	if step == 0 {
		s.log.Warn("epoch too short for the DoS plan", zap.Int("slots", slots), zap.Int("shards", shards))
		return
	}

	p := &dosPlan{step: step, stops: make(map[int][]network.NodeID), restart: slots - step}
	for k := 1; k <= shards && k*step < slots; k++ {
		var targets []network.NodeID
		for shard := 0; shard < k; shard++ {
			targets = append(targets, s.dosTargets(shard)...)
		}
		p.stops[k*step] = targets
	}
	s.dos = p
	s.log.Info("DoS plan prepared", zap.Int("epoch", s.epoch), zap.Int("step", step), zap.Int("restart", p.restart))
}

// dosTargets returns the nodes attacked in a shard: the richest members
// when leaders are unpredictable, the most scheduled leaders otherwise.
func (s *Simulation) dosTargets(shard int) []network.NodeID {
	k := s.cfg.Attack.DoSNodes
	if sch, ok := s.selectors[shard].(*leader.ScheduledSelector); ok {
		return stake.MostFrequent(sch.Schedule(), k)
	}
	return stake.Richest(s.dist.Shard(shard), k)
}

func (s *Simulation) applyDoS(slot int) {
	if s.dos == nil {
		return
	}
	for _, id := range s.dos.stops[slot] {
		n := s.net.Node(id)
		if n.Down() {
			continue
		}
		n.Stop()
		s.dos.stopped = append(s.dos.stopped, id)
	}
	if slot == s.dos.restart {
		for _, id := range s.dos.stopped {
			s.net.Node(id).Start()
		}
		s.log.Info("DoS ended", zap.Int("epoch", s.epoch), zap.Int("restarted", len(s.dos.stopped)))
		s.dos.stopped = nil
	}
}
