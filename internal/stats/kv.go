package stats

import (
	"encoding/binary"
	"fmt"

	"github.com/cockroachdb/pebble"
	"github.com/ugorji/go/codec"
)

// Key prefixes. Keys are big endian so iteration follows (epoch, slot, shard, node).
const (
	prefixSlot   byte = 's'
	prefixStake  byte = 't'
	prefixLeader byte = 'l'
)

var msgpack = &codec.MsgpackHandle{}

// KVSink stores msgpack encoded records in a pebble database.
// Writes are batched and committed on Flush.
type KVSink struct {
	db     *pebble.DB
	batch  *pebble.Batch
	closed bool
}

// NewKVSink opens or creates the pebble database at path
func NewKVSink(path string) (*KVSink, error) {
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("failed to open pebble database %s: %w", path, err)
	}
	return &KVSink{db: db, batch: db.NewBatch()}, nil
}

func key(prefix byte, parts ...int) []byte {
	k := make([]byte, 1+4*len(parts))
	k[0] = prefix
	for i, p := range parts {
		binary.BigEndian.PutUint32(k[1+4*i:], uint32(p))
	}
	return k
}

func encode(v any) ([]byte, error) {
	var buf []byte
	if err := codec.NewEncoderBytes(&buf, msgpack).Encode(v); err != nil {
		return nil, err
	}
	return buf, nil
}

func (s *KVSink) set(k []byte, v any) error {
	if s.closed {
		return ErrClosed
	}
	val, err := encode(v)
	if err != nil {
		return fmt.Errorf("failed to encode record: %w", err)
	}
	return s.batch.Set(k, val, nil)
}

func (s *KVSink) RecordSlot(r SlotRecord) error {
	return s.set(key(prefixSlot, r.Epoch, r.Slot, r.Shard, r.Node), r)
}

func (s *KVSink) RecordStake(r StakeRecord) error {
	return s.set(key(prefixStake, r.Epoch, r.Node), r)
}

func (s *KVSink) RecordLeader(r LeaderRecord) error {
	return s.set(key(prefixLeader, r.Epoch, r.Shard), r)
}

func (s *KVSink) Flush() error {
	if s.closed {
		return ErrClosed
	}
	if s.batch.Empty() {
		return nil
	}
	if err := s.batch.Commit(pebble.Sync); err != nil {
		return fmt.Errorf("failed to commit batch: %w", err)
	}
	s.batch.Close()
	s.batch = s.db.NewBatch()
	return nil
}

func (s *KVSink) Close() error {
	if s.closed {
		return nil
	}
	err := s.Flush()
	s.closed = true
	s.batch.Close()
	if cerr := s.db.Close(); err == nil {
		err = cerr
	}
	return err
}

// Slots returns the committed slot records of an epoch in key order
func (s *KVSink) Slots(epoch int) ([]SlotRecord, error) {
	var out []SlotRecord
	err := s.scan(key(prefixSlot, epoch), key(prefixSlot, epoch+1), func(v []byte) error {
		var r SlotRecord
		if err := codec.NewDecoderBytes(v, msgpack).Decode(&r); err != nil {
			return err
		}
		out = append(out, r)
		return nil
	})
	return out, err
}

// Replay feeds every committed record to sink, leaders first, then stakes
// and slots, each in key order
func (s *KVSink) Replay(sink Sink) error {
	steps := []struct {
		prefix byte
		fn     func(v []byte) error
	}{
		{prefixLeader, func(v []byte) error {
			var r LeaderRecord
			if err := codec.NewDecoderBytes(v, msgpack).Decode(&r); err != nil {
				return err
			}
			return sink.RecordLeader(r)
		}},
		{prefixStake, func(v []byte) error {
			var r StakeRecord
			if err := codec.NewDecoderBytes(v, msgpack).Decode(&r); err != nil {
				return err
			}
			return sink.RecordStake(r)
		}},
		{prefixSlot, func(v []byte) error {
			var r SlotRecord
			if err := codec.NewDecoderBytes(v, msgpack).Decode(&r); err != nil {
				return err
			}
			return sink.RecordSlot(r)
		}},
	}
	for _, st := range steps {
		if err := s.scan([]byte{st.prefix}, []byte{st.prefix + 1}, st.fn); err != nil {
			return err
		}
	}
	return nil
}

func (s *KVSink) scan(lower, upper []byte, fn func(v []byte) error) error {
	if s.closed {
		return ErrClosed
	}
	iter, err := s.db.NewIter(&pebble.IterOptions{LowerBound: lower, UpperBound: upper})
	if err != nil {
		return fmt.Errorf("failed to create iterator: %w", err)
	}
	for iter.First(); iter.Valid(); iter.Next() {
		if err := fn(iter.Value()); err != nil {
			iter.Close()
			return fmt.Errorf("failed to decode record: %w", err)
		}
	}
	if err := iter.Error(); err != nil {
		iter.Close()
		return err
	}
	return iter.Close()
}
