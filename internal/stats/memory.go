package stats

import "sync"

// MemorySink keeps every record in memory. Used by tests and by the sweep
// summary.
type MemorySink struct {
	mu      sync.Mutex
	slots   []SlotRecord
	stakes  []StakeRecord
	leaders []LeaderRecord
	flushes int
	closed  bool
}

// NewMemorySink creates an empty memory sink
func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

func (m *MemorySink) RecordSlot(r SlotRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	m.slots = append(m.slots, r)
	return nil
}

func (m *MemorySink) RecordStake(r StakeRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	m.stakes = append(m.stakes, r)
	return nil
}

func (m *MemorySink) RecordLeader(r LeaderRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	m.leaders = append(m.leaders, r)
	return nil
}

func (m *MemorySink) Flush() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.flushes++
	return nil
}

func (m *MemorySink) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Slots returns a copy of the slot records
func (m *MemorySink) Slots() []SlotRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]SlotRecord(nil), m.slots...)
}

// Stakes returns a copy of the stake records
func (m *MemorySink) Stakes() []StakeRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]StakeRecord(nil), m.stakes...)
}

// Leaders returns a copy of the leader records
func (m *MemorySink) Leaders() []LeaderRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]LeaderRecord(nil), m.leaders...)
}

// Flushes returns how many times Flush was called
func (m *MemorySink) Flushes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.flushes
}

// Summary aggregates the finalized blocks of a run
type Summary struct {
	Blocks       int
	Transactions int64
	BlocksShard  map[int]int
}

// Summarize counts the blocks finalized by their leaders.
// Each block is counted once, from the leader's record.
func (m *MemorySink) Summarize() Summary {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := Summary{BlocksShard: make(map[int]int)}
	for _, r := range m.slots {
		if !r.Leader {
			continue
		}
		s.Blocks++
		s.Transactions += int64(r.TxCount)
		s.BlocksShard[r.Shard]++
	}
	return s
}
