package fbft

import "github.com/LeJamon/goshardsim/internal/core/network"

// Sizes used for bandwidth accounting.
const (
	HashSize      = 32
	SignatureSize = 96
)

// Announce is sent by the leader to the shard with the new block.
type Announce struct {
	Block *Block
}

func (m *Announce) Size() int { return m.Block.Size() + SignatureSize }

// PrepareSig is a validator's first round signature.
type PrepareSig struct {
	Block  *Block
	Signer network.NodeID
}

func (m *PrepareSig) Size() int { return HashSize + SignatureSize }

// Prepared carries the first round certificate.
type Prepared struct {
	Cert Certificate
}

func (m *Prepared) Size() int { return HashSize + SignatureSize + m.Cert.bitmapSize() }

// CommitSig is a validator's second round signature.
type CommitSig struct {
	Block  *Block
	Signer network.NodeID
}

func (m *CommitSig) Size() int { return HashSize + SignatureSize }

// Committed carries the second round certificate. It finalizes the block.
type Committed struct {
	Cert Certificate
}

func (m *Committed) Size() int { return HashSize + SignatureSize + m.Cert.bitmapSize() }

// PseudoRand hands the aggregated beacon contributions to the leader.
type PseudoRand struct {
	Value uint64
}

func (m *PseudoRand) Size() int { return 8 }
