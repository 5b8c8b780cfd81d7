package stats

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

var (
	slotHeader   = []string{"node", "shard", "slot", "epoch", "transactions", "time", "bytesSent", "bytesReceived", "msgSent", "msgReceived", "leader"}
	stakeHeader  = []string{"node", "epoch", "stake", "tokens", "byzantine", "shardTokens"}
	leaderHeader = []string{"node", "epoch", "shard"}
)

// CSVSink writes slots.csv, stakes.csv and leaders.csv into a directory
type CSVSink struct {
	files   []*os.File
	slots   *csv.Writer
	stakes  *csv.Writer
	leaders *csv.Writer
	closed  bool
}

// NewCSVSink creates dir and the three files, each starting with its header
func NewCSVSink(dir string) (*CSVSink, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory %s: %w", dir, err)
	}
	s := &CSVSink{}
	open := func(name string, header []string) (*csv.Writer, error) {
		f, err := os.Create(filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("failed to create %s: %w", name, err)
		}
		s.files = append(s.files, f)
		w := csv.NewWriter(f)
		if err := w.Write(header); err != nil {
			return nil, err
		}
		return w, nil
	}

	var err error
	if s.slots, err = open("slots.csv", slotHeader); err != nil {
		s.closeFiles()
		return nil, err
	}
	if s.stakes, err = open("stakes.csv", stakeHeader); err != nil {
		s.closeFiles()
		return nil, err
	}
	if s.leaders, err = open("leaders.csv", leaderHeader); err != nil {
		s.closeFiles()
		return nil, err
	}
	return s, nil
}

func itoa(v int) string     { return strconv.Itoa(v) }
func i64toa(v int64) string { return strconv.FormatInt(v, 10) }

// FormatShardTokens renders a shard token map as "shard:tokens" pairs
// separated by ';' in shard order
func FormatShardTokens(m map[int]int) string {
	var b strings.Builder
	for i, id := range shardIDs(m) {
		if i > 0 {
			b.WriteByte(';')
		}
		b.WriteString(strconv.Itoa(id))
		b.WriteByte(':')
		b.WriteString(strconv.Itoa(m[id]))
	}
	return b.String()
}

// ParseShardTokens is the inverse of FormatShardTokens
func ParseShardTokens(s string) (map[int]int, error) {
	m := make(map[int]int)
	if s == "" {
		return m, nil
	}
	for _, pair := range strings.Split(s, ";") {
		k, v, ok := strings.Cut(pair, ":")
		if !ok {
			return nil, fmt.Errorf("malformed shard tokens %q", pair)
		}
		id, err := strconv.Atoi(k)
		if err != nil {
			return nil, err
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, err
		}
		m[id] = n
	}
	return m, nil
}

func (s *CSVSink) RecordSlot(r SlotRecord) error {
	if s.closed {
		return ErrClosed
	}
	return s.slots.Write([]string{
		itoa(r.Node), itoa(r.Shard), itoa(r.Slot), itoa(r.Epoch), itoa(r.TxCount), i64toa(r.Time),
		i64toa(r.BytesSent), i64toa(r.BytesReceived), i64toa(r.MsgSent), i64toa(r.MsgReceived),
		strconv.FormatBool(r.Leader),
	})
}

func (s *CSVSink) RecordStake(r StakeRecord) error {
	if s.closed {
		return ErrClosed
	}
	return s.stakes.Write([]string{
		itoa(r.Node), itoa(r.Epoch), i64toa(r.Stake), i64toa(r.Tokens),
		strconv.FormatBool(r.Byzantine), FormatShardTokens(r.ShardTokens),
	})
}

func (s *CSVSink) RecordLeader(r LeaderRecord) error {
	if s.closed {
		return ErrClosed
	}
	return s.leaders.Write([]string{itoa(r.Node), itoa(r.Epoch), itoa(r.Shard)})
}

func (s *CSVSink) Flush() error {
	if s.closed {
		return ErrClosed
	}
	for _, w := range []*csv.Writer{s.slots, s.stakes, s.leaders} {
		w.Flush()
		if err := w.Error(); err != nil {
			return fmt.Errorf("failed to flush csv: %w", err)
		}
	}
	return nil
}

func (s *CSVSink) Close() error {
	if s.closed {
		return nil
	}
	err := s.Flush()
	s.closed = true
	if cerr := s.closeFiles(); err == nil {
		err = cerr
	}
	return err
}

func (s *CSVSink) closeFiles() error {
	var first error
	for _, f := range s.files {
		if err := f.Close(); err != nil && first == nil {
			first = err
		}
	}
	s.files = nil
	return first
}
