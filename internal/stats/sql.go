package stats

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/lib/pq" // PostgreSQL driver
	_ "modernc.org/sqlite"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS slots (
		node INTEGER NOT NULL,
		shard INTEGER NOT NULL,
		slot INTEGER NOT NULL,
		epoch INTEGER NOT NULL,
		transactions INTEGER NOT NULL,
		at_ms BIGINT NOT NULL,
		bytes_sent BIGINT NOT NULL,
		bytes_received BIGINT NOT NULL,
		msg_sent BIGINT NOT NULL,
		msg_received BIGINT NOT NULL,
		leader BOOLEAN NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS stakes (
		node INTEGER NOT NULL,
		epoch INTEGER NOT NULL,
		stake BIGINT NOT NULL,
		tokens BIGINT NOT NULL,
		byzantine BOOLEAN NOT NULL,
		shard_tokens TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS leaders (
		node INTEGER NOT NULL,
		epoch INTEGER NOT NULL,
		shard INTEGER NOT NULL
	)`,
}

// SQLSink buffers records and writes them in one transaction per Flush
type SQLSink struct {
	db      *sql.DB
	driver  string
	slots   []SlotRecord
	stakes  []StakeRecord
	leaders []LeaderRecord
	closed  bool
}

// NewSQLSink opens the database and creates the schema.
// driver is "sqlite" or "postgres".
func NewSQLSink(ctx context.Context, driver, dsn string) (*SQLSink, error) {
	switch driver {
	case "sqlite", "postgres":
	default:
		return nil, fmt.Errorf("unsupported sql driver %q", driver)
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}
	if driver == "sqlite" {
		// a single writer avoids SQLITE_BUSY between pooled connections
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to create schema: %w", err)
		}
	}
	return &SQLSink{db: db, driver: driver}, nil
}

// DB returns the underlying connection pool
func (s *SQLSink) DB() *sql.DB { return s.db }

// insert builds an INSERT statement with the driver placeholders
func (s *SQLSink) insert(table string, columns ...string) string {
	ph := make([]string, len(columns))
	for i := range columns {
		if s.driver == "postgres" {
			ph[i] = fmt.Sprintf("$%d", i+1)
		} else {
			ph[i] = "?"
		}
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", table, strings.Join(columns, ", "), strings.Join(ph, ", "))
}

func (s *SQLSink) RecordSlot(r SlotRecord) error {
	if s.closed {
		return ErrClosed
	}
	s.slots = append(s.slots, r)
	return nil
}

func (s *SQLSink) RecordStake(r StakeRecord) error {
	if s.closed {
		return ErrClosed
	}
	s.stakes = append(s.stakes, r)
	return nil
}

func (s *SQLSink) RecordLeader(r LeaderRecord) error {
	if s.closed {
		return ErrClosed
	}
	s.leaders = append(s.leaders, r)
	return nil
}

func (s *SQLSink) Flush() error {
	if s.closed {
		return ErrClosed
	}
	if len(s.slots)+len(s.stakes)+len(s.leaders) == 0 {
		return nil
	}
	ctx := context.Background()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := s.write(ctx, tx); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	s.slots = s.slots[:0]
	s.stakes = s.stakes[:0]
	s.leaders = s.leaders[:0]
	return nil
}

func (s *SQLSink) write(ctx context.Context, tx *sql.Tx) error {
	if len(s.slots) > 0 {
		stmt, err := tx.PrepareContext(ctx, s.insert("slots", "node", "shard", "slot", "epoch", "transactions",
			"at_ms", "bytes_sent", "bytes_received", "msg_sent", "msg_received", "leader"))
		if err != nil {
			return fmt.Errorf("failed to prepare slots insert: %w", err)
		}
		defer stmt.Close()
		for _, r := range s.slots {
			if _, err := stmt.ExecContext(ctx, r.Node, r.Shard, r.Slot, r.Epoch, r.TxCount, r.Time,
				r.BytesSent, r.BytesReceived, r.MsgSent, r.MsgReceived, r.Leader); err != nil {
				return fmt.Errorf("failed to insert slot: %w", err)
			}
		}
	}
	if len(s.stakes) > 0 {
		stmt, err := tx.PrepareContext(ctx, s.insert("stakes", "node", "epoch", "stake", "tokens", "byzantine", "shard_tokens"))
		if err != nil {
			return fmt.Errorf("failed to prepare stakes insert: %w", err)
		}
		defer stmt.Close()
		for _, r := range s.stakes {
			if _, err := stmt.ExecContext(ctx, r.Node, r.Epoch, r.Stake, r.Tokens, r.Byzantine,
				FormatShardTokens(r.ShardTokens)); err != nil {
				return fmt.Errorf("failed to insert stake: %w", err)
			}
		}
	}
	if len(s.leaders) > 0 {
		stmt, err := tx.PrepareContext(ctx, s.insert("leaders", "node", "epoch", "shard"))
		if err != nil {
			return fmt.Errorf("failed to prepare leaders insert: %w", err)
		}
		defer stmt.Close()
		for _, r := range s.leaders {
			if _, err := stmt.ExecContext(ctx, r.Node, r.Epoch, r.Shard); err != nil {
				return fmt.Errorf("failed to insert leader: %w", err)
			}
		}
	}
	return nil
}

func (s *SQLSink) Close() error {
	if s.closed {
		return nil
	}
	err := s.Flush()
	s.closed = true
	if cerr := s.db.Close(); err == nil {
		err = cerr
	}
	return err
}
