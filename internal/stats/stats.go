//go:generate mockgen -destination=mock/sink.go -package=mock github.com/LeJamon/goshardsim/internal/stats Sink

// Package stats defines the simulation records and the sinks they are written to.
package stats

import (
	"errors"
	"sort"
)

// ErrClosed is returned when recording into a closed sink
var ErrClosed = errors.New("sink closed")

// SlotRecord is written by a node when it finalizes a block
type SlotRecord struct {
	Node          int   `json:"node" codec:"node"`
	Shard         int   `json:"shard" codec:"shard"`
	Slot          int   `json:"slot" codec:"slot"`
	Epoch         int   `json:"epoch" codec:"epoch"`
	TxCount       int   `json:"transactions" codec:"transactions"`
	Time          int64 `json:"time" codec:"time"`
	BytesSent     int64 `json:"bytesSent" codec:"bytesSent"`
	BytesReceived int64 `json:"bytesReceived" codec:"bytesReceived"`
	MsgSent       int64 `json:"msgSent" codec:"msgSent"`
	MsgReceived   int64 `json:"msgReceived" codec:"msgReceived"`
	Leader        bool  `json:"leader" codec:"leader"`
}

// StakeRecord is written once per node at the start of every epoch
type StakeRecord struct {
	Node        int         `json:"node" codec:"node"`
	Epoch       int         `json:"epoch" codec:"epoch"`
	Stake       int64       `json:"stake" codec:"stake"`
	Tokens      int64       `json:"tokens" codec:"tokens"`
	Byzantine   bool        `json:"byzantine" codec:"byzantine"`
	ShardTokens map[int]int `json:"shardTokens" codec:"shardTokens"`
}

// LeaderRecord names the epoch leader of a shard
type LeaderRecord struct {
	Node  int `json:"node" codec:"node"`
	Epoch int `json:"epoch" codec:"epoch"`
	Shard int `json:"shard" codec:"shard"`
}

// Sink receives records as the simulation produces them.
// Implementations may buffer until Flush.
type Sink interface {
	RecordSlot(r SlotRecord) error
	RecordStake(r StakeRecord) error
	RecordLeader(r LeaderRecord) error
	Flush() error
	Close() error
}

// Fanout writes every record to all its sinks
type Fanout struct {
	sinks []Sink
}

// NewFanout creates a fan-out over sinks
func NewFanout(sinks ...Sink) *Fanout {
	return &Fanout{sinks: sinks}
}

// Add adds a sink
func (f *Fanout) Add(s Sink) {
	f.sinks = append(f.sinks, s)
}

// Len returns the number of sinks
func (f *Fanout) Len() int { return len(f.sinks) }

func (f *Fanout) each(fn func(Sink) error) error {
	for _, s := range f.sinks {
		if err := fn(s); err != nil {
			return err
		}
	}
	return nil
}

func (f *Fanout) RecordSlot(r SlotRecord) error {
	return f.each(func(s Sink) error { return s.RecordSlot(r) })
}

func (f *Fanout) RecordStake(r StakeRecord) error {
	return f.each(func(s Sink) error { return s.RecordStake(r) })
}

func (f *Fanout) RecordLeader(r LeaderRecord) error {
	return f.each(func(s Sink) error { return s.RecordLeader(r) })
}

func (f *Fanout) Flush() error {
	return f.each(Sink.Flush)
}

// Close closes every sink and returns all errors joined
func (f *Fanout) Close() error {
	var errs []error
	for _, s := range f.sinks {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// shardIDs returns the keys of a shard token map in order
func shardIDs(m map[int]int) []int {
	ids := make([]int, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}
