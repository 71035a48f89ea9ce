// Package tracestore persists a per-instruction execution trace into a
// SQLite database for post-run analysis.
package tracestore

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/wudi/stick/opcodes"
)

// commitEvery bounds how many rows ride in one transaction, so an
// interrupted run still keeps the bulk of its trace.
const commitEvery = 10000

const schema = `
CREATE TABLE IF NOT EXISTS execution_trace (
	seq         INTEGER PRIMARY KEY,
	ip          INTEGER NOT NULL,
	opcode      INTEGER NOT NULL,
	op_name     TEXT    NOT NULL,
	a           INTEGER NOT NULL,
	b           INTEGER NOT NULL,
	c           INTEGER NOT NULL,
	frame_depth INTEGER NOT NULL
)`

const insertRow = `
INSERT INTO execution_trace (seq, ip, opcode, op_name, a, b, c, frame_depth)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

// Store implements vm.Tracer on a SQLite database. Rows are batched in a
// transaction; the first write error sticks and is reported by Close.
type Store struct {
	db      *sql.DB
	tx      *sql.Tx
	stmt    *sql.Stmt
	pending int
	err     error
}

// Open creates (or appends to) the trace database at dsn. Pass
// ":memory:" for an ephemeral store.
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("tracestore: open: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("tracestore: create table: %w", err)
	}
	s := &Store{db: db}
	if err := s.begin(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) begin() error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("tracestore: begin: %w", err)
	}
	stmt, err := tx.Prepare(insertRow)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("tracestore: prepare: %w", err)
	}
	s.tx = tx
	s.stmt = stmt
	s.pending = 0
	return nil
}

func (s *Store) commit() error {
	s.stmt.Close()
	if err := s.tx.Commit(); err != nil {
		return fmt.Errorf("tracestore: commit: %w", err)
	}
	return nil
}

// Trace records one executed instruction. Errors stick; later calls
// become no-ops and Close surfaces the first failure.
func (s *Store) Trace(seq uint64, ip uint32, ins opcodes.Instruction, frameDepth int) {
	if s.err != nil {
		return
	}
	op := ins.Op()
	_, err := s.stmt.Exec(seq, ip, byte(op), op.String(), ins.A(), ins.B(), ins.C(), frameDepth)
	if err != nil {
		s.err = fmt.Errorf("tracestore: insert: %w", err)
		return
	}
	s.pending++
	if s.pending >= commitEvery {
		if err := s.commit(); err != nil {
			s.err = err
			return
		}
		s.err = s.begin()
	}
}

// Close flushes the open transaction and releases the database.
func (s *Store) Close() error {
	if s.tx != nil {
		if err := s.commit(); err != nil && s.err == nil {
			s.err = err
		}
		s.tx = nil
		s.stmt = nil
	}
	if err := s.db.Close(); err != nil && s.err == nil {
		s.err = fmt.Errorf("tracestore: close: %w", err)
	}
	return s.err
}
