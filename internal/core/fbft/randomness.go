package fbft

// RandQueue holds the randomness waiting to be carried by beacon shard
// blocks: aggregated pseudo random values, then final values delayed by
// the simulated VDF.
type RandQueue struct {
	pRand []uint64
	rnd   []Rand
}

// PushPRand queues an aggregated pseudo random value.
func (q *RandQueue) PushPRand(v uint64) { q.pRand = append(q.pRand, v) }

// PopPRand returns the next pseudo random value, or an absent one.
func (q *RandQueue) PopPRand() Rand {
	if len(q.pRand) == 0 {
		return Rand{}
	}
	v := q.pRand[0]
	q.pRand = q.pRand[1:]
	return ReadyRand(v)
}

// StartVDF schedules v to be carried by the delay-th next block. The
// blocks before it carry a pending placeholder.
func (q *RandQueue) StartVDF(v uint64, delay int) {
	for i := 1; i < delay; i++ {
		q.rnd = append(q.rnd, PendingRand())
	}
	q.rnd = append(q.rnd, ReadyRand(v))
}

// PopRnd returns the next final value slot, or an absent one.
func (q *RandQueue) PopRnd() Rand {
	if len(q.rnd) == 0 {
		return Rand{}
	}
	r := q.rnd[0]
	q.rnd = q.rnd[1:]
	return r
}

// Len returns the number of queued pseudo random and final slots.
func (q *RandQueue) Len() (pRand, rnd int) { return len(q.pRand), len(q.rnd) }
