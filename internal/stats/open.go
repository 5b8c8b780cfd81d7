package stats

import (
	"context"
	"fmt"

	"github.com/LeJamon/goshardsim/internal/config"
)

// Open builds the sinks listed in the output section. Paths are relative to
// the output directory. On error the sinks already opened are closed.
func Open(ctx context.Context, cfg *config.Config) (*Fanout, error) {
	f := NewFanout()
	for i, sc := range cfg.Output.Sinks {
		s, err := openSink(ctx, cfg, sc)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to open sink %d (%s): %w", i, sc.Type, err)
		}
		f.Add(s)
	}
	return f, nil
}

func openSink(ctx context.Context, cfg *config.Config, sc config.SinkConfig) (Sink, error) {
	path := cfg.SinkPath(sc.Path)
	switch sc.Type {
	case "memory":
		return NewMemorySink(), nil
	case "csv":
		return NewCSVSink(path)
	case "jsonl":
		return NewJSONLSink(path, sc.Compress)
	case "sql":
		dsn := sc.DSN
		if dsn == "" {
			dsn = path
		}
		return NewSQLSink(ctx, sc.Driver, dsn)
	case "kv":
		return NewKVSink(path)
	case "metrics":
		return NewMetricsSink(path), nil
	default:
		return nil, fmt.Errorf("unknown sink type %q", sc.Type)
	}
}
