package docstore

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pressly/goose/v3"
	"go.uber.org/multierr"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrations embed.FS

// SQLite stores documents as JSON rows in a single table and evaluates field
// filters and ordering with json_extract.
type SQLite struct {
	db *sql.DB
}

// Open opens (or creates) the database at path and runs migrations. Use
// ":memory:" for an ephemeral store.
func Open(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, multierr.Append(fmt.Errorf("ping db: %w", err), db.Close())
	}

	if err := runMigrations(db); err != nil {
		return nil, multierr.Append(fmt.Errorf("run migrations: %w", err), db.Close())
	}

	return &SQLite{db: db}, nil
}

func runMigrations(db *sql.DB) error {
	goose.SetBaseFS(migrations)

	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}

	if err := goose.Up(db, "migrations"); err != nil {
		return fmt.Errorf("goose up: %w", err)
	}

	return nil
}

func (s *SQLite) Close() error {
	return s.db.Close()
}

func (s *SQLite) Query(ctx context.Context, collection string, filters []Filter, order *Order) ([]Document, error) {
	// Field names come from code, never from user input, so building the
	// json paths by concatenation is safe here.
	q := `SELECT id, data FROM documents WHERE collection = ?`
	args := []any{collection}
	for _, f := range filters {
		q += ` AND json_extract(data, '$.` + f.Field + `') = ?`
		args = append(args, bindValue(f.Value))
	}
	if order != nil {
		q += ` ORDER BY json_extract(data, '$.` + order.Field + `')`
		if order.Desc {
			q += ` DESC`
		}
	}

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", collection, err)
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		docs = append(docs, *d)
	}
	return docs, rows.Err()
}

func (s *SQLite) Get(ctx context.Context, collection, id string) (*Document, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, data FROM documents WHERE collection = ? AND id = ?`, collection, id)
	d, err := scanDocument(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get document: %w", err)
	}
	return d, nil
}

func (s *SQLite) Add(ctx context.Context, collection string, fields map[string]any) (string, error) {
	id := uuid.NewString()
	data, err := marshalFields(fields)
	if err != nil {
		return "", fmt.Errorf("encode document: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO documents (collection, id, data) VALUES (?, ?, ?)`,
		collection, id, data)
	if err != nil {
		return "", fmt.Errorf("insert document: %w", err)
	}
	return id, nil
}

func (s *SQLite) Update(ctx context.Context, collection, id string, fields map[string]any) error {
	patch, err := marshalFields(fields)
	if err != nil {
		return fmt.Errorf("encode patch: %w", err)
	}
	return applyUpdate(ctx, s.db, collection, id, patch)
}

func (s *SQLite) Delete(ctx context.Context, collection, id string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM documents WHERE collection = ? AND id = ?`, collection, id)
	if err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	return nil
}

func (s *SQLite) Batch() Batch {
	return &sqliteBatch{store: s}
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// applyUpdate merges a JSON patch into an existing row. json_patch keeps
// fields absent from the patch, which gives partial-update semantics.
func applyUpdate(ctx context.Context, db execer, collection, id, patch string) error {
	res, err := db.ExecContext(ctx,
		`UPDATE documents SET data = json_patch(data, ?) WHERE collection = ? AND id = ?`,
		patch, collection, id)
	if err != nil {
		return fmt.Errorf("update document: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

type batchOp struct {
	delete     bool
	collection string
	id         string
	fields     map[string]any
}

type sqliteBatch struct {
	store *SQLite
	ops   []batchOp
}

func (b *sqliteBatch) Update(collection, id string, fields map[string]any) {
	b.ops = append(b.ops, batchOp{collection: collection, id: id, fields: fields})
}

func (b *sqliteBatch) Delete(collection, id string) {
	b.ops = append(b.ops, batchOp{delete: true, collection: collection, id: id})
}

func (b *sqliteBatch) Commit(ctx context.Context) error {
	tx, err := b.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	for _, op := range b.ops {
		if op.delete {
			if _, err := tx.ExecContext(ctx,
				`DELETE FROM documents WHERE collection = ? AND id = ?`, op.collection, op.id); err != nil {
				return multierr.Append(fmt.Errorf("batch delete: %w", err), tx.Rollback())
			}
			continue
		}
		patch, err := marshalFields(op.fields)
		if err != nil {
			return multierr.Append(fmt.Errorf("encode patch: %w", err), tx.Rollback())
		}
		if err := applyUpdate(ctx, tx, op.collection, op.id, patch); err != nil {
			return multierr.Append(fmt.Errorf("batch update: %w", err), tx.Rollback())
		}
	}

	return tx.Commit()
}

func scanDocument(scanner interface{ Scan(...any) error }) (*Document, error) {
	var d Document
	var data string
	if err := scanner.Scan(&d.ID, &data); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(data), &d.Fields); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	return &d, nil
}

// timeLayout is RFC 3339 with a fixed-width fraction. RFC3339Nano trims
// trailing zeros, which breaks lexicographic ordering of the stored strings.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// marshalFields encodes a field map as JSON, writing timestamps as fixed-width
// UTC strings so json_extract ordering stays chronological.
func marshalFields(fields map[string]any) (string, error) {
	norm := make(map[string]any, len(fields))
	for k, v := range fields {
		norm[k] = bindValue(v)
	}
	data, err := json.Marshal(norm)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func bindValue(v any) any {
	if t, ok := v.(time.Time); ok {
		return t.UTC().Format(timeLayout)
	}
	return v
}
