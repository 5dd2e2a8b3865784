package history

import (
	"context"
	"errors"
	"fmt"
	"runtime"

	"github.com/pion/logging"
	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/backkem/txpermissions/pkg/ledger"
	"github.com/backkem/txpermissions/pkg/wire"
)

const schema = `
CREATE TABLE IF NOT EXISTS transactions (
	id         TEXT PRIMARY KEY,
	height     INTEGER NOT NULL,
	sequence   INTEGER NOT NULL,
	type_group INTEGER NOT NULL,
	type       INTEGER NOT NULL,
	version    INTEGER NOT NULL,
	sender     BLOB NOT NULL,
	subject    TEXT NOT NULL,
	asset      BLOB NOT NULL
);
CREATE INDEX IF NOT EXISTS transactions_type_position
	ON transactions (type_group, type, height, sequence);
CREATE INDEX IF NOT EXISTS transactions_subject_position
	ON transactions (type_group, type, subject, height, sequence);
`

const selectColumns = `SELECT id, height, sequence, type_group, type, version, sender, asset FROM transactions`

// SQLiteConfig configures a SQLite history.
type SQLiteConfig struct {
	// Path is the database file. Required.
	Path string

	// PoolSize is the number of pooled connections.
	// Default: NumCPU, at least 4.
	PoolSize int

	// LoggerFactory is optional.
	LoggerFactory logging.LoggerFactory
}

// SQLite is a persistent history backed by a pooled SQLite database.
// Assets are stored in their wire encoding, so only transaction types the
// wire package knows can be appended.
//
// Thread Safety: All methods are safe for concurrent use. Scan holds one
// pooled connection for the duration of the callback.
type SQLite struct {
	pool *sqlitex.Pool
	path string
	log  logging.LeveledLogger
}

// OpenSQLite opens (or creates) the database and applies the schema.
func OpenSQLite(ctx context.Context, config SQLiteConfig) (*SQLite, error) {
	if config.Path == "" {
		return nil, errors.New("history: SQLite path is required")
	}

	poolSize := config.PoolSize
	if poolSize <= 0 {
		poolSize = runtime.NumCPU()
		if poolSize < 4 {
			poolSize = 4
		}
	}

	pool, err := sqlitex.NewPool(config.Path, sqlitex.PoolOptions{
		PoolSize:    poolSize,
		PrepareConn: prepareConn,
	})
	if err != nil {
		return nil, fmt.Errorf("history: opening %s: %w", config.Path, err)
	}

	s := &SQLite{
		pool: pool,
		path: config.Path,
	}
	if config.LoggerFactory != nil {
		s.log = config.LoggerFactory.NewLogger("history")
	}

	conn, err := pool.Take(ctx)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("history: take: %w", err)
	}
	err = sqlitex.ExecuteScript(conn, schema, nil)
	pool.Put(conn)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("history: applying schema: %w", err)
	}

	if s.log != nil {
		s.log.Infof("opened %s (pool size %d)", config.Path, poolSize)
	}
	return s, nil
}

func prepareConn(conn *sqlite.Conn) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if err := sqlitex.ExecuteTransient(conn, pragma, nil); err != nil {
			return fmt.Errorf("history: %s: %w", pragma, err)
		}
	}
	return nil
}

// Close closes every pooled connection.
func (s *SQLite) Close() error {
	if err := s.pool.Close(); err != nil {
		return fmt.Errorf("history: closing %s: %w", s.path, err)
	}
	return nil
}

// Append records a confirmed transaction.
func (s *SQLite) Append(ctx context.Context, tx *ledger.Transaction) (err error) {
	if err := validateAppend(tx); err != nil {
		return err
	}
	asset, err := wire.Encode(tx.Asset)
	if err != nil {
		return fmt.Errorf("history: encoding %s: %w", tx.ID, err)
	}

	conn, err := s.pool.Take(ctx)
	if err != nil {
		return fmt.Errorf("history: take: %w", err)
	}
	defer s.pool.Put(conn)

	endTransaction, err := sqlitex.ImmediateTransaction(conn)
	if err != nil {
		return fmt.Errorf("history: begin transaction: %w", err)
	}
	defer endTransaction(&err)

	exists := false
	err = sqlitex.Execute(conn, `SELECT 1 FROM transactions WHERE id = ?`, &sqlitex.ExecOptions{
		Args: []any{tx.ID},
		ResultFunc: func(*sqlite.Stmt) error {
			exists = true
			return nil
		},
	})
	if err != nil {
		return fmt.Errorf("history: append %s: %w", tx.ID, err)
	}
	if exists {
		return ErrDuplicateID
	}

	err = sqlitex.Execute(conn, `INSERT INTO transactions
		(id, height, sequence, type_group, type, version, sender, subject, asset)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`, &sqlitex.ExecOptions{
		Args: []any{
			tx.ID,
			int64(tx.Position.Height),
			int64(tx.Position.Sequence),
			int64(tx.Type.Group),
			int64(tx.Type.Type),
			int64(tx.Version),
			tx.SenderPublicKey[:],
			tx.Subject(),
			asset,
		},
	})
	if err != nil {
		return fmt.Errorf("history: append %s: %w", tx.ID, err)
	}

	if s.log != nil {
		s.log.Tracef("appended %s (%s) at %d/%d", tx.ID, tx.Type, tx.Position.Height, tx.Position.Sequence)
	}
	return nil
}

// Remove deletes a transaction by ID.
func (s *SQLite) Remove(ctx context.Context, id string) error {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return fmt.Errorf("history: take: %w", err)
	}
	defer s.pool.Put(conn)

	err = sqlitex.Execute(conn, `DELETE FROM transactions WHERE id = ?`, &sqlitex.ExecOptions{
		Args: []any{id},
	})
	if err != nil {
		return fmt.Errorf("history: remove %s: %w", id, err)
	}
	if conn.Changes() == 0 {
		return ErrNotFound
	}
	return nil
}

// Scan calls fn for each transaction of typ in chain order.
func (s *SQLite) Scan(ctx context.Context, typ ledger.TypeKey, fn func(*ledger.Transaction) error) error {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return fmt.Errorf("history: take: %w", err)
	}
	defer s.pool.Put(conn)

	query := selectColumns + ` WHERE type_group = ? AND type = ? ORDER BY height, sequence`
	return sqlitex.Execute(conn, query, &sqlitex.ExecOptions{
		Args: []any{int64(typ.Group), int64(typ.Type)},
		ResultFunc: func(stmt *sqlite.Stmt) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			tx, err := readTransaction(stmt)
			if err != nil {
				return err
			}
			return fn(tx)
		},
	})
}

// LatestBefore returns the last transaction of typ and subject strictly
// before pos, or nil.
func (s *SQLite) LatestBefore(ctx context.Context, typ ledger.TypeKey, subject string, pos ledger.Position) (*ledger.Transaction, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return nil, fmt.Errorf("history: take: %w", err)
	}
	defer s.pool.Put(conn)

	query := selectColumns + ` WHERE type_group = ? AND type = ? AND subject = ?
		AND (height < ? OR (height = ? AND sequence < ?))
		ORDER BY height DESC, sequence DESC LIMIT 1`

	var found *ledger.Transaction
	err = sqlitex.Execute(conn, query, &sqlitex.ExecOptions{
		Args: []any{
			int64(typ.Group),
			int64(typ.Type),
			subject,
			int64(pos.Height),
			int64(pos.Height),
			int64(pos.Sequence),
		},
		ResultFunc: func(stmt *sqlite.Stmt) error {
			tx, err := readTransaction(stmt)
			if err != nil {
				return err
			}
			found = tx
			return nil
		},
	})
	if err != nil {
		return nil, fmt.Errorf("history: latest %s %q: %w", typ, subject, err)
	}
	return found, nil
}

func readTransaction(stmt *sqlite.Stmt) (*ledger.Transaction, error) {
	tx := &ledger.Transaction{
		ID: stmt.ColumnText(0),
		Position: ledger.Position{
			Height:   uint64(stmt.ColumnInt64(1)),
			Sequence: uint32(stmt.ColumnInt64(2)),
		},
		Type: ledger.TypeKey{
			Group: uint32(stmt.ColumnInt64(3)),
			Type:  uint32(stmt.ColumnInt64(4)),
		},
		Version: uint8(stmt.ColumnInt64(5)),
	}
	if n := stmt.ColumnLen(6); n != ledger.PublicKeySize {
		return nil, fmt.Errorf("history: %s: sender is %d bytes: %w", tx.ID, n, ledger.ErrInvalidPublicKey)
	}
	stmt.ColumnBytes(6, tx.SenderPublicKey[:])

	data := make([]byte, stmt.ColumnLen(7))
	stmt.ColumnBytes(7, data)
	asset, err := wire.Decode(tx.Type, data)
	if err != nil {
		return nil, fmt.Errorf("history: %s: %w", tx.ID, err)
	}
	tx.Asset = asset
	return tx, nil
}

var _ Store = (*SQLite)(nil)
