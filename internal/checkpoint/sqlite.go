package checkpoint

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/cchalm/memochat/internal/ai"
)

const createCheckpointsTable = `
CREATE TABLE IF NOT EXISTS checkpoints (
	thread_id  TEXT PRIMARY KEY,
	state      BLOB NOT NULL,
	updated_at INTEGER NOT NULL
)`

// SQLiteStore implements Store in a SQLite database: one row per thread, holding the CBOR-encoded latest state.
//
// The checkpoints table is created by the first Save. Until then reads find no table and report no state, which
// is how a fresh database behaves on first run.
type SQLiteStore struct {
	pool   *sqlitex.Pool
	logger *slog.Logger
	path   string
	now    func() time.Time
}

// SQLiteConfig holds the parameters for opening a SQLite checkpoint store
type SQLiteConfig struct {
	// Path is the database file. It is created if it does not exist; its parent directory must exist.
	Path string

	// PoolSize is the number of connections. Defaults to 4 if zero or negative.
	PoolSize int

	Logger *slog.Logger
}

// OpenSQLiteStore opens a connection pool on the database. The caller must call Close.
func OpenSQLiteStore(cfg SQLiteConfig) (*SQLiteStore, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("sqlite checkpoint store: path is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	poolSize := cfg.PoolSize
	if poolSize <= 0 {
		poolSize = 4
	}

	pool, err := sqlitex.NewPool(cfg.Path, sqlitex.PoolOptions{
		PoolSize:    poolSize,
		PrepareConn: prepareConnection,
	})
	if err != nil {
		return nil, fmt.Errorf("sqlite checkpoint store: opening %s: %w", cfg.Path, err)
	}

	logger.Info("checkpoint store opened", "path", cfg.Path, "pool_size", poolSize)

	return &SQLiteStore{
		pool:   pool,
		logger: logger,
		path:   cfg.Path,
		now:    time.Now,
	}, nil
}

// Close closes all connections, blocking until borrowed connections are returned
func (s *SQLiteStore) Close() error {
	if err := s.pool.Close(); err != nil {
		return fmt.Errorf("sqlite checkpoint store: closing %s: %w", s.path, err)
	}
	s.logger.Info("checkpoint store closed", "path", s.path)
	return nil
}

func (s *SQLiteStore) Get(ctx context.Context, threadID string) (*ai.ConversationState, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to take connection: %w", err)
	}
	defer s.pool.Put(conn)

	var state *ai.ConversationState
	err = sqlitex.Execute(conn, `SELECT state FROM checkpoints WHERE thread_id = ?`, &sqlitex.ExecOptions{
		Args: []any{threadID},
		ResultFunc: func(stmt *sqlite.Stmt) error {
			b := make([]byte, stmt.ColumnLen(0))
			stmt.ColumnBytes(0, b)
			decoded, err := decodeState(b)
			if err != nil {
				return err
			}
			state = &decoded
			return nil
		},
	})
	err = classifyError(err)
	if errors.Is(err, ErrStorageUnavailable) {
		s.logger.Debug("no checkpoint storage yet, reading as empty", "thread_id", threadID)
		return nil, nil
	} else if err != nil {
		return nil, fmt.Errorf("failed to load checkpoint for thread %q: %w", threadID, err)
	}
	return state, nil
}

func (s *SQLiteStore) Save(ctx context.Context, threadID string, state ai.ConversationState) (err error) {
	if err := validateSave(threadID, state); err != nil {
		return err
	}
	b, err := encodeState(state)
	if err != nil {
		return err
	}

	conn, err := s.pool.Take(ctx)
	if err != nil {
		return fmt.Errorf("failed to take connection: %w", err)
	}
	defer s.pool.Put(conn)

	endTransaction, err := sqlitex.ImmediateTransaction(conn)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer endTransaction(&err)

	if err = sqlitex.ExecuteTransient(conn, createCheckpointsTable, nil); err != nil {
		return fmt.Errorf("failed to create checkpoints table: %w", err)
	}
	err = sqlitex.Execute(conn, `
		INSERT INTO checkpoints (thread_id, state, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(thread_id) DO UPDATE SET state = excluded.state, updated_at = excluded.updated_at`,
		&sqlitex.ExecOptions{
			Args: []any{threadID, b, s.now().UnixMilli()},
		})
	if err != nil {
		return fmt.Errorf("failed to save checkpoint for thread %q: %w", threadID, err)
	}
	return nil
}

func (s *SQLiteStore) ListThreadIDs(ctx context.Context) ([]string, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to take connection: %w", err)
	}
	defer s.pool.Put(conn)

	ids := []string{}
	err = sqlitex.Execute(conn, `SELECT DISTINCT thread_id FROM checkpoints ORDER BY thread_id DESC`, &sqlitex.ExecOptions{
		ResultFunc: func(stmt *sqlite.Stmt) error {
			ids = append(ids, stmt.ColumnText(0))
			return nil
		},
	})
	err = classifyError(err)
	if errors.Is(err, ErrStorageUnavailable) {
		return []string{}, nil
	} else if err != nil {
		return nil, fmt.Errorf("failed to list threads: %w", err)
	}
	// SQLite's default collation is byte order, the same as Go string comparison
	return ids, nil
}

// prepareConnection applies WAL-mode pragmas to every pooled connection
func prepareConnection(conn *sqlite.Conn) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if err := sqlitex.ExecuteTransient(conn, pragma, nil); err != nil {
			return fmt.Errorf("%s: %w", pragma, err)
		}
	}
	return nil
}

// classifyError maps a missing checkpoints table to ErrStorageUnavailable
func classifyError(err error) error {
	if err != nil && strings.Contains(err.Error(), "no such table") {
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	return err
}
