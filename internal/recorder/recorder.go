package recorder

import (
	"context"
	"database/sql"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/nerrad567/ble-adv-core/internal/codecs"
)

// Logger defines the logging interface for the recorder.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Recorder writes sighting records to SQLite. It is called on the receive
// path for every advertisement, so writes are single-statement upserts on
// prepared statements.
//
// Thread Safety: All methods are safe for concurrent use.
type Recorder struct {
	db     *sql.DB
	logger Logger

	identityStmt *sql.Stmt
	rawStmt      *sql.Stmt
	stmtMu       sync.Mutex

	closed bool
	mu     sync.RWMutex
}

// New creates a recorder over an opened database. The ble_identities and
// ble_raw_advertisements tables must exist (created by migrations).
func New(db *sql.DB) *Recorder {
	return &Recorder{db: db}
}

// SetLogger sets the logger for the recorder.
func (r *Recorder) SetLogger(logger Logger) {
	r.logger = logger
}

// Start prepares the upsert statements. Must be called before recording.
func (r *Recorder) Start() error {
	r.stmtMu.Lock()
	defer r.stmtMu.Unlock()

	if r.identityStmt != nil {
		return nil // Already started
	}

	identityStmt, err := r.db.Prepare(`
		INSERT INTO ble_identities (codec_id, forced_id, sub_index, first_seen, last_seen, message_count, last_command)
		VALUES (?, ?, ?, ?, ?, 1, ?)
		ON CONFLICT(codec_id, forced_id, sub_index) DO UPDATE SET
			last_seen = excluded.last_seen,
			message_count = message_count + 1,
			last_command = excluded.last_command
	`)
	if err != nil {
		return fmt.Errorf("preparing identity upsert statement: %w", err)
	}

	rawStmt, err := r.db.Prepare(`
		INSERT INTO ble_raw_advertisements (raw_hex, ble_type, first_seen, last_seen, message_count)
		VALUES (?, ?, ?, ?, 1)
		ON CONFLICT(raw_hex) DO UPDATE SET
			last_seen = excluded.last_seen,
			message_count = message_count + 1
	`)
	if err != nil {
		identityStmt.Close()
		return fmt.Errorf("preparing raw upsert statement: %w", err)
	}

	r.identityStmt = identityStmt
	r.rawStmt = rawStmt
	r.log("recorder started")
	return nil
}

// Stop closes the recorder and releases resources.
func (r *Recorder) Stop() {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()

	r.stmtMu.Lock()
	defer r.stmtMu.Unlock()

	if r.identityStmt != nil {
		r.identityStmt.Close()
		r.identityStmt = nil
	}
	if r.rawStmt != nil {
		r.rawStmt.Close()
		r.rawStmt = nil
	}

	r.log("recorder stopped")
}

// RecordDecoded records one successful decode: the identity's sighting
// count grows and its last decoded command is kept for diagnostics.
func (r *Recorder) RecordDecoded(id codecs.Identity, cmd codecs.Command, at time.Time) {
	stmt := r.stmt(&r.identityStmt)
	if stmt == nil {
		return
	}
	ts := at.Unix()
	if _, err := stmt.Exec(id.CodecID, int64(id.ID), int64(id.Index), ts, ts, fmt.Sprintf("%v", cmd)); err != nil {
		r.logError("recording identity", err)
	}
}

// RecordUnknown keeps a buffer no registered codec accepted.
func (r *Recorder) RecordUnknown(raw []byte, bleType byte, at time.Time) {
	stmt := r.stmt(&r.rawStmt)
	if stmt == nil {
		return
	}
	ts := at.Unix()
	if _, err := stmt.Exec(hex.EncodeToString(raw), int64(bleType), ts, ts); err != nil {
		r.logError("recording raw advertisement", err)
	}
}

// stmt returns the prepared statement if the recorder is started and open.
func (r *Recorder) stmt(p **sql.Stmt) *sql.Stmt {
	r.mu.RLock()
	if r.closed {
		r.mu.RUnlock()
		return nil
	}
	r.mu.RUnlock()

	r.stmtMu.Lock()
	defer r.stmtMu.Unlock()
	return *p
}

// SeenIdentity is one recorded identity with its sighting statistics.
type SeenIdentity struct {
	Identity     codecs.Identity
	FirstSeen    time.Time
	LastSeen     time.Time
	MessageCount int64
	LastCommand  string
}

// RecentIdentities returns recorded identities, most recently seen first.
func (r *Recorder) RecentIdentities(ctx context.Context, limit int) ([]SeenIdentity, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT codec_id, forced_id, sub_index, first_seen, last_seen, message_count, COALESCE(last_command, '')
		FROM ble_identities
		ORDER BY last_seen DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SeenIdentity
	for rows.Next() {
		var s SeenIdentity
		var forcedID, subIndex, firstSeen, lastSeen int64
		if err := rows.Scan(&s.Identity.CodecID, &forcedID, &subIndex, &firstSeen, &lastSeen, &s.MessageCount, &s.LastCommand); err != nil {
			return nil, err
		}
		s.Identity.ID = uint32(forcedID)
		s.Identity.Index = uint8(subIndex)
		s.FirstSeen = time.Unix(firstSeen, 0)
		s.LastSeen = time.Unix(lastSeen, 0)
		out = append(out, s)
	}
	return out, rows.Err()
}

// IdentityCount returns the number of distinct recorded identities.
func (r *Recorder) IdentityCount(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM ble_identities`).Scan(&count)
	return count, err
}

// UnknownCount returns the number of distinct unknown buffers recorded.
func (r *Recorder) UnknownCount(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM ble_raw_advertisements`).Scan(&count)
	return count, err
}

func (r *Recorder) log(msg string, keysAndValues ...any) {
	if r.logger != nil {
		r.logger.Info(msg, keysAndValues...)
	}
}

func (r *Recorder) logError(msg string, err error) {
	if r.logger != nil {
		r.logger.Error(msg, "error", err)
	}
}
