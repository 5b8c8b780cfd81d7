package fbft

import (
	"errors"
	"fmt"

	"github.com/bits-and-blooms/bitset"
)

// ErrSignerIndex is returned when a signer index is outside the shard.
var ErrSignerIndex = errors.New("signer index out of range")

// MajoritySigned reports whether count signatures out of validators reach
// two thirds.
func MajoritySigned(count, validators int) bool {
	return float64(count) >= float64(validators)*(2.0/3.0)
}

// BlockSigners tracks who signed a block during one phase. Its capacity is
// the shard size and never changes.
type BlockSigners struct {
	block      *Block
	bits       *bitset.BitSet
	validators int
	sent       bool
	certified  bool
}

// NewBlockSigners creates an empty signer set for a shard of the given size.
func NewBlockSigners(b *Block, validators int) *BlockSigners {
	return &BlockSigners{
		block:      b,
		bits:       bitset.New(uint(validators)),
		validators: validators,
	}
}

func fromCertificate(c Certificate) *BlockSigners {
	return &BlockSigners{
		block:      c.Block,
		bits:       c.signers.Clone(),
		validators: c.validators,
		certified:  true,
	}
}

// Block returns the signed block.
func (s *BlockSigners) Block() *Block { return s.block }

// Sign records the signature of the validator at index.
func (s *BlockSigners) Sign(index int) error {
	if index < 0 || index >= s.validators {
		return fmt.Errorf("%w: %d not in [0, %d)", ErrSignerIndex, index, s.validators)
	}
	s.bits.Set(uint(index))
	return nil
}

// Signed reports whether the validator at index signed.
func (s *BlockSigners) Signed(index int) bool {
	return index >= 0 && s.bits.Test(uint(index))
}

// Count returns the number of signers.
func (s *BlockSigners) Count() int { return int(s.bits.Count()) }

// Validators returns the shard size.
func (s *BlockSigners) Validators() int { return s.validators }

// MajoritySigned reports whether two thirds of the shard signed.
func (s *BlockSigners) MajoritySigned() bool { return MajoritySigned(s.Count(), s.validators) }

// Sent reports whether the aggregated certificate was broadcast.
func (s *BlockSigners) Sent() bool { return s.sent }

// MarkSent records that the certificate was broadcast.
func (s *BlockSigners) MarkSent() { s.sent = true }

// Certified reports whether the set was received as a certificate.
func (s *BlockSigners) Certified() bool { return s.certified }

// Certificate snapshots the current signers.
func (s *BlockSigners) Certificate() Certificate {
	return Certificate{Block: s.block, signers: s.bits.Clone(), validators: s.validators}
}

// Certificate is an aggregated signature: a block and its signer bitmap.
type Certificate struct {
	Block      *Block
	signers    *bitset.BitSet
	validators int
}

// Count returns the number of signers.
func (c Certificate) Count() int {
	if c.signers == nil {
		return 0
	}
	return int(c.signers.Count())
}

// MajoritySigned reports whether the certificate holds two thirds of the shard.
func (c Certificate) MajoritySigned() bool { return MajoritySigned(c.Count(), c.validators) }

func (c Certificate) bitmapSize() int { return (c.validators + 7) / 8 }
