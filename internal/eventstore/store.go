// Package eventstore is the append-only, idempotent, durable event log
// (spec §4.1, §6). It is backed by a single-writer SQLite database —
// grounded on the teacher pack's modernc.org/sqlite + database/sql usage
// (poorman-SynapseStrike/store/tactics.go) and on the original system's
// own choice of a SQLite event log (original_source/pipeline/stream.go
// passes db_path="data/events.sqlite" into the runner).
package eventstore

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/themirrorplatform/constitutional-trader/pkg/types"
)

//go:embed schema.sql
var schemaSQL string

// Store is a single-writer, durable, idempotent-by-id event log.
type Store struct {
	db *sql.DB
}

// Open opens (creating if necessary) the SQLite database at path and
// installs the schema. Safe to call repeatedly — schema install is
// idempotent.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("eventstore: open %s: %w", path, err)
	}
	db.SetMaxOpenConns(1) // single-writer: spec §5 shared-resources.
	s := &Store{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) initSchema() error {
	if _, err := s.db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("eventstore: init schema: %w", err)
	}
	return nil
}

// Close closes the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Append durably inserts e. Primary key is (stream_id, event_id); a
// re-append of an event with an id already present in the stream is a
// no-op and returns inserted=false (spec §4.1, P1).
func (s *Store) Append(ctx context.Context, e types.Event) (inserted bool, err error) {
	payload, err := json.Marshal(e.Payload)
	if err != nil {
		return false, fmt.Errorf("eventstore: marshal payload: %w", err)
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO events (stream_id, event_id, ts, type, payload_json, config_hash, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.StreamID, e.EventID, e.Timestamp.Format(time.RFC3339Nano), string(e.Type),
		payload, e.ConfigHash, e.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return false, fmt.Errorf("eventstore: append: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("eventstore: rows affected: %w", err)
	}
	return n > 0, nil
}

// ReadStream returns every event for streamID in insertion (ts, rowid) order.
func (s *Store) ReadStream(ctx context.Context, streamID string) ([]types.Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT event_id, ts, type, payload_json, config_hash, created_at
		FROM events
		WHERE stream_id = ?
		ORDER BY ts ASC, rowid ASC`, streamID)
	if err != nil {
		return nil, fmt.Errorf("eventstore: read stream: %w", err)
	}
	defer rows.Close()

	var out []types.Event
	for rows.Next() {
		var (
			eventID, tsStr, typ, payloadJSON, configHash, createdAtStr string
		)
		if err := rows.Scan(&eventID, &tsStr, &typ, &payloadJSON, &configHash, &createdAtStr); err != nil {
			return nil, fmt.Errorf("eventstore: scan: %w", err)
		}
		ts, err := time.Parse(time.RFC3339Nano, tsStr)
		if err != nil {
			return nil, fmt.Errorf("eventstore: parse ts: %w", err)
		}
		createdAt, err := time.Parse(time.RFC3339Nano, createdAtStr)
		if err != nil {
			return nil, fmt.Errorf("eventstore: parse created_at: %w", err)
		}
		var payload any
		if err := json.Unmarshal([]byte(payloadJSON), &payload); err != nil {
			return nil, fmt.Errorf("eventstore: unmarshal payload: %w", err)
		}
		out = append(out, types.Event{
			EventID:    eventID,
			StreamID:   streamID,
			Timestamp:  ts,
			Type:       types.EventType(typ),
			Payload:    payload,
			ConfigHash: configHash,
			CreatedAt:  createdAt,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("eventstore: rows: %w", err)
	}
	return out, nil
}

// ReadSince returns events across all streams with rowid > lastSeen, up
// to limit rows, in insertion order — the downstream mirror's poll
// contract (spec §6).
func (s *Store) ReadSince(ctx context.Context, lastSeen int64, limit int) (events []types.Event, maxRowID int64, err error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT rowid, stream_id, event_id, ts, type, payload_json, config_hash, created_at
		FROM events
		WHERE rowid > ?
		ORDER BY rowid ASC
		LIMIT ?`, lastSeen, limit)
	if err != nil {
		return nil, lastSeen, fmt.Errorf("eventstore: read since: %w", err)
	}
	defer rows.Close()

	maxRowID = lastSeen
	for rows.Next() {
		var (
			rowID                                                     int64
			streamID, eventID, tsStr, typ, payloadJSON, configHash, createdAtStr string
		)
		if err := rows.Scan(&rowID, &streamID, &eventID, &tsStr, &typ, &payloadJSON, &configHash, &createdAtStr); err != nil {
			return nil, lastSeen, fmt.Errorf("eventstore: scan: %w", err)
		}
		ts, err := time.Parse(time.RFC3339Nano, tsStr)
		if err != nil {
			return nil, lastSeen, fmt.Errorf("eventstore: parse ts: %w", err)
		}
		createdAt, err := time.Parse(time.RFC3339Nano, createdAtStr)
		if err != nil {
			return nil, lastSeen, fmt.Errorf("eventstore: parse created_at: %w", err)
		}
		var payload any
		if err := json.Unmarshal([]byte(payloadJSON), &payload); err != nil {
			return nil, lastSeen, fmt.Errorf("eventstore: unmarshal payload: %w", err)
		}
		events = append(events, types.Event{
			EventID: eventID, StreamID: streamID, Timestamp: ts, Type: types.EventType(typ),
			Payload: payload, ConfigHash: configHash, CreatedAt: createdAt,
		})
		if rowID > maxRowID {
			maxRowID = rowID
		}
	}
	return events, maxRowID, rows.Err()
}
