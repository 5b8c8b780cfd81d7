// Package stake converts node stakes into tokens and distributes them over
// shards at every epoch.
package stake

import (
	"errors"
	"fmt"
	"math/rand"
	"sort"

	"go.uber.org/zap"

	"github.com/LeJamon/goshardsim/internal/core/network"
)

var (
	// ErrZeroTokenSize is returned when the stake is too small for the
	// number of shards and security parameter.
	ErrZeroTokenSize = errors.New("token size is not positive")

	// ErrTooFewTokens is returned when some shard would receive no token.
	ErrTooFewTokens = errors.New("not enough tokens for every shard")
)

// Leader is the epoch leader of a shard.
type Leader struct {
	Node  network.NodeID
	Epoch int
	Shard int
}

// Distribution owns the stake table and the shard assignment. It is only
// mutated between epochs.
type Distribution struct {
	stakes    []int64
	tokens    []int64
	total     int64
	tokenSize int64
	numShards int
	lambda    int

	rng        *rand.Rand
	shards     []*Shard
	leaders    []Leader
	randomness []uint64
	log        *zap.Logger
}

// TokenSize returns floor(total / (numShards * lambda)).
func TokenSize(total int64, numShards, lambda int) (int64, error) {
	if numShards <= 0 || lambda <= 0 {
		return 0, fmt.Errorf("%w: %d shards, lambda %d", ErrZeroTokenSize, numShards, lambda)
	}
	size := total / int64(numShards*lambda)
	if size <= 0 {
		return 0, fmt.Errorf("%w: total stake %d, %d shards, lambda %d", ErrZeroTokenSize, total, numShards, lambda)
	}
	return size, nil
}

// NewDistribution assigns tokens to the given stakes. rng drives the stake
// updates between epochs.
func NewDistribution(stakes []int64, numShards, lambda int, rng *rand.Rand, log *zap.Logger) (*Distribution, error) {
	if log == nil {
		log = zap.NewNop()
	}
	d := &Distribution{
		stakes:    append([]int64(nil), stakes...),
		numShards: numShards,
		lambda:    lambda,
		rng:       rng,
		log:       log,
	}
	if err := d.assignTokens(); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *Distribution) assignTokens() error {
	d.total = 0
	for _, s := range d.stakes {
		d.total += s
	}
	size, err := TokenSize(d.total, d.numShards, d.lambda)
	if err != nil {
		return err
	}
	d.tokenSize = size
	d.tokens = make([]int64, len(d.stakes))
	for i, s := range d.stakes {
		d.tokens[i] = s / size
	}
	return nil
}

// UniformStakes draws n stakes around 80 with a standard deviation of 20.
func UniformStakes(n int, rng *rand.Rand) []int64 {
	stakes := make([]int64, n)
	for i := range stakes {
		s := 180 - int64(rng.NormFloat64()*20+100)
		stakes[i] = max(s, 0)
	}
	return stakes
}

// Redistribute shuffles all tokens with a generator seeded by seed and cuts
// the sequence into contiguous, near equal buckets, one per shard. The
// first token owner of a bucket leads the shard for the epoch. Calling it
// again for the same epoch replaces that epoch's leader records.
func (d *Distribution) Redistribute(seed int64, epoch int) error {
	var flat []network.NodeID
	for id, t := range d.tokens {
		for k := int64(0); k < t; k++ {
			flat = append(flat, network.NodeID(id))
		}
	}
	if len(flat) < d.numShards {
		return fmt.Errorf("%w: %d tokens, %d shards", ErrTooFewTokens, len(flat), d.numShards)
	}

	r := rand.New(rand.NewSource(seed))
	r.Shuffle(len(flat), func(i, j int) { flat[i], flat[j] = flat[j], flat[i] })

	kept := d.leaders[:0]
	for _, l := range d.leaders {
		if l.Epoch != epoch {
			kept = append(kept, l)
		}
	}
	d.leaders = kept

	d.shards = make([]*Shard, d.numShards)
	for i := range d.shards {
		lo, hi := i*len(flat)/d.numShards, (i+1)*len(flat)/d.numShards
		d.shards[i] = newShard(i, epoch, flat[lo:hi])
		d.leaders = append(d.leaders, Leader{Node: d.shards[i].Leader, Epoch: epoch, Shard: i})
	}
	d.log.Debug("tokens redistributed",
		zap.Int("epoch", epoch),
		zap.Int64("seed", seed),
		zap.Int("tokens", len(flat)),
	)
	return nil
}

// Update applies a gaussian perturbation of one percent to every stake and
// recomputes the tokens. Stakes never go below zero.
func (d *Distribution) Update() error {
	for i, old := range d.stakes {
		delta := int64(d.rng.NormFloat64() * float64(old) / 100)
		d.stakes[i] = max(old+delta, 0)
	}
	return d.assignTokens()
}

// Stake returns the stake of a node.
func (d *Distribution) Stake(id network.NodeID) int64 { return d.stakes[id] }

// Tokens returns the token count of a node.
func (d *Distribution) Tokens(id network.NodeID) int64 { return d.tokens[id] }

// Total returns the total stake.
func (d *Distribution) Total() int64 { return d.total }

// TokenSize returns the stake represented by one token.
func (d *Distribution) TokenSize() int64 { return d.tokenSize }

// NumShards returns the number of shards.
func (d *Distribution) NumShards() int { return d.numShards }

// Shards returns the current shards.
func (d *Distribution) Shards() []*Shard { return d.shards }

// Shard returns the shard with the given id.
func (d *Distribution) Shard(id int) *Shard { return d.shards[id] }

// Leaders returns every epoch leader recorded so far.
func (d *Distribution) Leaders() []Leader { return d.leaders }

// Probabilities returns each node's share of the total stake.
func (d *Distribution) Probabilities() []float64 {
	p := make([]float64, len(d.stakes))
	if d.total == 0 {
		return p
	}
	for i, s := range d.stakes {
		p[i] = float64(s) / float64(d.total)
	}
	return p
}

// ShardTokens returns the number of tokens id holds in every shard it
// belongs to.
func (d *Distribution) ShardTokens(id network.NodeID) map[int]int {
	res := make(map[int]int)
	for _, s := range d.shards {
		if t := s.Tokens(id); t > 0 {
			res[s.ID] = t
		}
	}
	return res
}

// PushRandomness queues a committed random value for a future epoch.
func (d *Distribution) PushRandomness(v uint64) {
	d.randomness = append(d.randomness, v)
}

// PopRandomness dequeues the oldest committed random value.
func (d *Distribution) PopRandomness() (uint64, bool) {
	if len(d.randomness) == 0 {
		return 0, false
	}
	v := d.randomness[0]
	d.randomness = d.randomness[1:]
	return v, true
}

// SelectByzantine picks count distinct node ids out of n, in ascending order.
func SelectByzantine(n, count int, rng *rand.Rand) []network.NodeID {
	count = min(max(count, 0), n)
	ids := make([]network.NodeID, count)
	for i, v := range rng.Perm(n)[:count] {
		ids[i] = network.NodeID(v)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
