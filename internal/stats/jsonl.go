package stats

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/pierrec/lz4"
)

// entry is one line of a JSONL stream
type entry struct {
	Type   string          `json:"type"`
	Record json.RawMessage `json:"record"`
}

const (
	typeSlot   = "slot"
	typeStake  = "stake"
	typeLeader = "leader"
)

// JSONLSink writes one JSON object per line, optionally inside an lz4 frame
type JSONLSink struct {
	f      *os.File
	buf    *bufio.Writer
	zw     *lz4.Writer
	enc    *json.Encoder
	closed bool
}

// NewJSONLSink creates the file at path. With compress the stream is lz4 framed.
func NewJSONLSink(path string, compress bool) (*JSONLSink, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create output directory %s: %w", dir, err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", path, err)
	}
	s := &JSONLSink{f: f, buf: bufio.NewWriter(f)}
	var w io.Writer = s.buf
	if compress {
		s.zw = lz4.NewWriter(s.buf)
		w = s.zw
	}
	s.enc = json.NewEncoder(w)
	return s, nil
}

func (s *JSONLSink) write(typ string, v any) error {
	if s.closed {
		return ErrClosed
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s record: %w", typ, err)
	}
	return s.enc.Encode(entry{Type: typ, Record: raw})
}

func (s *JSONLSink) RecordSlot(r SlotRecord) error     { return s.write(typeSlot, r) }
func (s *JSONLSink) RecordStake(r StakeRecord) error   { return s.write(typeStake, r) }
func (s *JSONLSink) RecordLeader(r LeaderRecord) error { return s.write(typeLeader, r) }

func (s *JSONLSink) Flush() error {
	if s.closed {
		return ErrClosed
	}
	if s.zw != nil {
		if err := s.zw.Flush(); err != nil {
			return fmt.Errorf("failed to flush lz4 frame: %w", err)
		}
	}
	return s.buf.Flush()
}

func (s *JSONLSink) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	var err error
	if s.zw != nil {
		err = s.zw.Close()
	}
	if ferr := s.buf.Flush(); err == nil {
		err = ferr
	}
	if cerr := s.f.Close(); err == nil {
		err = cerr
	}
	return err
}

// ReadJSONL replays a stream written by JSONLSink into sink
func ReadJSONL(r io.Reader, compressed bool, sink Sink) error {
	if compressed {
		r = lz4.NewReader(r)
	}
	dec := json.NewDecoder(r)
	for {
		var e entry
		if err := dec.Decode(&e); err == io.EOF {
			return nil
		} else if err != nil {
			return fmt.Errorf("failed to decode entry: %w", err)
		}

		var err error
		switch e.Type {
		case typeSlot:
			var rec SlotRecord
			if err = json.Unmarshal(e.Record, &rec); err == nil {
				err = sink.RecordSlot(rec)
			}
		case typeStake:
			var rec StakeRecord
			if err = json.Unmarshal(e.Record, &rec); err == nil {
				err = sink.RecordStake(rec)
			}
		case typeLeader:
			var rec LeaderRecord
			if err = json.Unmarshal(e.Record, &rec); err == nil {
				err = sink.RecordLeader(rec)
			}
		default:
			err = fmt.Errorf("unknown record type %q", e.Type)
		}
		if err != nil {
			return err
		}
	}
}
