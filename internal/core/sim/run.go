package sim

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/LeJamon/goshardsim/internal/core/network"
	"github.com/LeJamon/goshardsim/internal/core/stake"
	"github.com/LeJamon/goshardsim/internal/stats"
)

// Run simulates every configured epoch. It stops at the first sink error or
// when ctx is cancelled, checked between slots.
func (s *Simulation) Run(ctx context.Context) error {
	for epoch := 0; epoch < s.cfg.Protocol.Epochs; epoch++ {
		if err := s.RunEpoch(ctx, epoch); err != nil {
			return err
		}
	}
	s.log.Info("simulation finished", zap.Int64("time", int64(s.net.Now())))
	return nil
}

// RunEpoch runs one epoch. Epoch 0 uses the assignment built by New; later
// epochs update the stakes and redistribute the tokens first. Every message
// of the epoch is delivered before it returns.
func (s *Simulation) RunEpoch(ctx context.Context, epoch int) error {
	if epoch > 0 {
		if err := s.nextEpoch(epoch); err != nil {
			return err
		}
	}
	if err := s.recordEpoch(epoch); err != nil {
		return err
	}

	slots := s.cfg.Protocol.EpochSlots
	every := max(slots/10, 1)
	for slot := 0; slot < slots; slot++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		s.runSlot(epoch, slot)
		if s.err != nil {
			return fmt.Errorf("failed to record statistics: %w", s.err)
		}
		if slot%every == 0 {
			s.log.Info("simulating",
				zap.Int("epoch", epoch),
				zap.Int("slot", slot),
				zap.Float64("progress", float64(slot)/float64(slots)*100),
			)
		}
	}

	duration := network.Time(s.cfg.Protocol.SlotDurationMs)
	s.net.Drain(duration, duration*network.Time(slots))
	if s.err != nil {
		return fmt.Errorf("failed to record statistics: %w", s.err)
	}
	if err := s.sink.Flush(); err != nil {
		return fmt.Errorf("failed to flush statistics: %w", err)
	}
	return nil
}

func (s *Simulation) runSlot(epoch, slot int) {
	s.slot = slot
	s.net.Run(network.Time(s.cfg.Protocol.SlotDurationMs))
	s.applyDoS(slot)
	if slot == s.cfg.BeaconStartSlot() {
		s.startBeacon(slot)
	}
	for shard := range s.selectors {
		s.ProposeSlot(epoch, slot, shard)
	}
}

// nextEpoch moves the stake state to the given epoch. It must run after the
// previous epoch drained.
func (s *Simulation) nextEpoch(epoch int) error {
	if err := s.dist.Update(); err != nil {
		return invalid(err)
	}
	seed, ok := s.dist.PopRandomness()
	if !ok {
		seed = s.rng.Uint64()
		s.log.Warn("no randomness committed, using fallback seed", zap.Int("epoch", epoch))
	}
	if err := s.dist.Redistribute(int64(seed), epoch); err != nil {
		return invalid(err)
	}
	s.log.Info("tokens redistributed", zap.Int("epoch", epoch), zap.Uint64("seed", seed))

	s.epoch = epoch
	for i, sel := range s.selectors {
		if err := sel.Reset(epoch, s.dist.Shard(i)); err != nil {
			return invalid(err)
		}
	}
	for _, e := range s.engines {
		e.Reset()
	}
	for _, n := range s.net.Nodes() {
		n.ResetCounters()
	}
	clear(s.seen)
	s.prepareDoS()
	return nil
}

// recordEpoch writes the stake of every node and the shard leaders.
func (s *Simulation) recordEpoch(epoch int) error {
	for _, n := range s.net.Nodes() {
		err := s.sink.RecordStake(stats.StakeRecord{
			Node:        int(n.ID),
			Epoch:       epoch,
			Stake:       s.dist.Stake(n.ID),
			Tokens:      s.dist.Tokens(n.ID),
			Byzantine:   n.Byzantine,
			ShardTokens: s.dist.ShardTokens(n.ID),
		})
		if err != nil {
			return fmt.Errorf("failed to record stake: %w", err)
		}
	}
	for _, l := range s.dist.Leaders() {
		if l.Epoch != epoch {
			continue
		}
		if err := s.sink.RecordLeader(stats.LeaderRecord{Node: int(l.Node), Epoch: l.Epoch, Shard: l.Shard}); err != nil {
			return fmt.Errorf("failed to record leader: %w", err)
		}
	}
	return nil
}

// startBeacon asks the beacon shard leader of the slot to open a randomness
// window on its last finalized beacon block.
func (s *Simulation) startBeacon(slot int) {
	id := s.Leader(stake.BeaconShard, slot)
	last := s.engines[id].LastFinalized(stake.BeaconShard)
	if !s.beacons[id].Start(last) {
		s.log.Warn("randomness generation skipped",
			zap.Int("node", int(id)),
			zap.Int("epoch", s.epoch),
			zap.Int("slot", slot),
			zap.Bool("down", s.net.Node(id).Down()),
		)
	}
}
