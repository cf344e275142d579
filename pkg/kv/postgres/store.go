package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/speleodb/speleodb/pkg/kv"
)

const (
	DriverName = "postgres"

	DefaultTableName = "kv"
	// runtime connection parameter that overrides the table name, e.g.
	// "postgres://...?speleodbkv_table=kv_test"
	paramTableName = "speleodbkv_table"
)

type Driver struct{}

// Store keeps every record in a single key/value table. The table name is
// sanitized once at open and interpolated into statements; keys and values
// always travel as bind parameters.
type Store struct {
	pool  *pgxpool.Pool
	table string
}

//nolint:gochecknoinits
func init() {
	kv.Register(DriverName, &Driver{})
}

func (d *Driver) Open(ctx context.Context, dsn string) (kv.Store, error) {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", kv.ErrDriverConfiguration, err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", kv.ErrConnectFailed, err)
	}

	table := DefaultTableName
	if name, ok := config.ConnConfig.RuntimeParams[paramTableName]; ok {
		table = name
	}
	store := &Store{
		pool:  pool,
		table: pgx.Identifier{table}.Sanitize(),
	}
	if err := store.setup(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return store, nil
}

// setup reaches the database and creates the table when missing.
func (s *Store) setup(ctx context.Context) error {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("%w: %s", kv.ErrConnectFailed, err)
	}
	defer conn.Release()
	if err := conn.Conn().Ping(ctx); err != nil {
		return fmt.Errorf("%w: %s", kv.ErrConnectFailed, err)
	}
	_, err = conn.Exec(ctx, `CREATE TABLE IF NOT EXISTS `+s.table+` (
    key BYTEA NOT NULL PRIMARY KEY,
    value BYTEA NOT NULL)`)
	if err != nil {
		return fmt.Errorf("%w: %s", kv.ErrSetupFailed, err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, key []byte) ([]byte, error) {
	if key == nil {
		return nil, kv.ErrMissingKey
	}
	var value []byte
	err := s.pool.QueryRow(ctx, `SELECT value FROM `+s.table+` WHERE key = $1`, key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, kv.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", err, kv.ErrOperationFailed)
	}
	return value, nil
}

func (s *Store) Set(ctx context.Context, key, value []byte) error {
	if key == nil {
		return kv.ErrMissingKey
	}
	if value == nil {
		return kv.ErrMissingValue
	}
	_, err := s.pool.Exec(ctx, `INSERT INTO `+s.table+`(key,value) VALUES($1,$2)
		ON CONFLICT (key) DO UPDATE SET value = $2`, key, value)
	if err != nil {
		return fmt.Errorf("%s: %w", err, kv.ErrOperationFailed)
	}
	return nil
}

func (s *Store) SetIf(ctx context.Context, key, value, valuePredicate []byte) error {
	if key == nil {
		return kv.ErrMissingKey
	}
	if value == nil {
		return kv.ErrMissingValue
	}
	var (
		tag pgconn.CommandTag
		err error
	)
	if valuePredicate == nil {
		// insert-if-absent: the conflict target guarantees at most one writer wins
		tag, err = s.pool.Exec(ctx, `INSERT INTO `+s.table+`(key,value) VALUES($1,$2)
			ON CONFLICT DO NOTHING`, key, value)
	} else {
		// compare-and-swap on the stored value
		tag, err = s.pool.Exec(ctx, `UPDATE `+s.table+` SET value = $2
			WHERE key = $1 AND value = $3`, key, value, valuePredicate)
	}
	if err != nil {
		return fmt.Errorf("%s: %w", err, kv.ErrOperationFailed)
	}
	if tag.RowsAffected() != 1 {
		return kv.ErrPredicateFailed
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, key []byte) error {
	if key == nil {
		return kv.ErrMissingKey
	}
	_, err := s.pool.Exec(ctx, `DELETE FROM `+s.table+` WHERE key = $1`, key)
	if err != nil {
		return fmt.Errorf("%s: %w", err, kv.ErrOperationFailed)
	}
	return nil
}

func (s *Store) Scan(ctx context.Context, start []byte) (kv.EntriesIterator, error) {
	var (
		rows pgx.Rows
		err  error
	)
	if start == nil {
		rows, err = s.pool.Query(ctx, `SELECT key,value FROM `+s.table+` ORDER BY key`)
	} else {
		rows, err = s.pool.Query(ctx, `SELECT key,value FROM `+s.table+` WHERE key >= $1 ORDER BY key`, start)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", err, kv.ErrOperationFailed)
	}
	return &EntriesIterator{rows: rows}, nil
}

func (s *Store) Close() {
	s.pool.Close()
}

// EntriesIterator streams Scan results off a pgx row cursor.
type EntriesIterator struct {
	rows  pgx.Rows
	entry *kv.Entry
	err   error
}

func (e *EntriesIterator) Next() bool {
	if e.err != nil {
		return false
	}
	e.entry = nil
	if !e.rows.Next() {
		return false
	}
	var entry kv.Entry
	if err := e.rows.Scan(&entry.Key, &entry.Value); err != nil {
		e.err = fmt.Errorf("%s: %w", err, kv.ErrOperationFailed)
		return false
	}
	e.entry = &entry
	return true
}

func (e *EntriesIterator) Entry() *kv.Entry {
	return e.entry
}

func (e *EntriesIterator) Err() error {
	if e.err != nil {
		return e.err
	}
	if err := e.rows.Err(); err != nil {
		e.err = fmt.Errorf("%s: %w", err, kv.ErrOperationFailed)
		return err
	}
	return nil
}

func (e *EntriesIterator) Close() {
	e.rows.Close()
	e.entry = nil
	e.err = kv.ErrClosedEntries
}
