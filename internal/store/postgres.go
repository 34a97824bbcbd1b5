package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/jackc/pgx/v5/pgconn"
)

const uniqueViolation = "23505"

// PostgresStore keeps every collection in one records table keyed by (collection, id).
type PostgresStore struct {
	db          *sql.DB
	schemaReady atomic.Bool
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Ping checks the connection. The first successful ping also ensures the schema, so a
// store created while the database was down is usable once it answers.
func (s *PostgresStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return err
	}
	if s.schemaReady.Load() {
		return nil
	}
	if err := EnsureSchema(ctx, s.db); err != nil {
		return err
	}
	s.schemaReady.Store(true)
	return nil
}

func (s *PostgresStore) List(ctx context.Context, collection Collection) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, body
		FROM records
		WHERE collection = $1
		ORDER BY created_at, id
	`, string(collection))
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", collection, err)
	}
	defer rows.Close()

	items := make([]Record, 0)
	for rows.Next() {
		var item Record
		var body []byte
		if err := rows.Scan(&item.ID, &body); err != nil {
			return nil, fmt.Errorf("scan %s: %w", collection, err)
		}
		item.Body = body
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", collection, err)
	}
	return items, nil
}

func (s *PostgresStore) Insert(ctx context.Context, collection Collection, record Record) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO records (collection, id, body)
		VALUES ($1, $2, $3)
	`, string(collection), record.ID, []byte(record.Body))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return fmt.Errorf("insert %s/%s: %w", collection, record.ID, ErrDuplicateID)
		}
		return fmt.Errorf("insert %s/%s: %w", collection, record.ID, err)
	}
	return nil
}

func (s *PostgresStore) Replace(ctx context.Context, collection Collection, record Record) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE records
		SET body = $3, updated_at = NOW()
		WHERE collection = $1 AND id = $2
	`, string(collection), record.ID, []byte(record.Body))
	if err != nil {
		return fmt.Errorf("replace %s/%s: %w", collection, record.ID, err)
	}
	return expectRow(result, "replace", collection, record.ID)
}

func (s *PostgresStore) Delete(ctx context.Context, collection Collection, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM records WHERE collection = $1 AND id = $2`, string(collection), id)
	if err != nil {
		return fmt.Errorf("delete %s/%s: %w", collection, id, err)
	}
	return expectRow(result, "delete", collection, id)
}

// DeleteBatch removes every ref inside one transaction.
func (s *PostgresStore) DeleteBatch(ctx context.Context, refs []Ref) error {
	if len(refs) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete batch: %w", err)
	}
	for _, ref := range refs {
		if _, err := tx.ExecContext(ctx, `DELETE FROM records WHERE collection = $1 AND id = $2`, string(ref.Collection), ref.ID); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("delete batch %s/%s: %w", ref.Collection, ref.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit delete batch: %w", err)
	}
	return nil
}

func expectRow(result sql.Result, op string, collection Collection, id string) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s %s/%s: %w", op, collection, id, err)
	}
	if affected == 0 {
		return fmt.Errorf("%s %s/%s: %w", op, collection, id, ErrNotFound)
	}
	return nil
}
