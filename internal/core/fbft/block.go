// Package fbft implements the two round threshold signature finalization
// protocol run inside every shard.
package fbft

import (
	"encoding/binary"
	"fmt"

	"github.com/cespare/xxhash/v2"
)

// RandState tells whether an optional random value is known.
type RandState int

const (
	// Absent means the block carries no value.
	Absent RandState = iota
	// Pending means a value is being computed and will be carried by a
	// later block.
	Pending
	// Ready means Value holds the computed value.
	Ready
)

func (s RandState) String() string {
	switch s {
	case Absent:
		return "absent"
	case Pending:
		return "pending"
	case Ready:
		return "ready"
	default:
		return fmt.Sprintf("RandState(%d)", int(s))
	}
}

// Rand is an optional random value carried by a block.
type Rand struct {
	State RandState
	Value uint64
}

// ReadyRand returns a computed value.
func ReadyRand(v uint64) Rand { return Rand{State: Ready, Value: v} }

// PendingRand returns a placeholder for a value still being computed.
func PendingRand() Rand { return Rand{State: Pending} }

// IsReady reports whether the value is known.
func (r Rand) IsReady() bool { return r.State == Ready }

// BlockParams holds the fields of a new block.
type BlockParams struct {
	Shard      int
	Epoch      int
	Slot       int
	TxCount    int
	HeaderSize int
	TxSize     int
	PRand      Rand
	Rnd        Rand
}

// Block is a shard block. It is immutable once created.
type Block struct {
	p    BlockParams
	hash uint64
}

// NewBlock creates a block.
func NewBlock(p BlockParams) *Block {
	b := &Block{p: p}
	buf := make([]byte, 0, 64)
	for _, v := range []int{p.Shard, p.Epoch, p.Slot, p.TxCount} {
		buf = binary.BigEndian.AppendUint64(buf, uint64(v))
	}
	for _, r := range []Rand{p.PRand, p.Rnd} {
		buf = append(buf, byte(r.State))
		buf = binary.BigEndian.AppendUint64(buf, r.Value)
	}
	b.hash = xxhash.Sum64(buf)
	return b
}

func (b *Block) Shard() int   { return b.p.Shard }
func (b *Block) Epoch() int   { return b.p.Epoch }
func (b *Block) Slot() int    { return b.p.Slot }
func (b *Block) TxCount() int { return b.p.TxCount }
func (b *Block) PRand() Rand  { return b.p.PRand }
func (b *Block) Rnd() Rand    { return b.p.Rnd }
func (b *Block) Hash() uint64 { return b.hash }

// Size is the header size plus the size of every transaction.
func (b *Block) Size() int { return b.p.HeaderSize + b.p.TxCount*b.p.TxSize }

// HeaderValid checks the block header.
func (b *Block) HeaderValid() bool {
	return b.p.Shard >= 0 && b.p.Epoch >= 0 && b.p.Slot >= 0
}

// PayloadValid checks the transactions carried by the block.
func (b *Block) PayloadValid() bool { return b.p.TxCount >= 0 }

func (b *Block) String() string {
	return fmt.Sprintf("block{epoch=%d slot=%d shard=%d txs=%d}", b.p.Epoch, b.p.Slot, b.p.Shard, b.p.TxCount)
}
