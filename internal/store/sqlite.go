package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// SQLiteStore persists documents as JSON bodies in a single SQLite table.
type SQLiteStore struct {
	conn *sqlx.DB
}

// OpenSQLite opens or creates a SQLite database at the given path.
func OpenSQLite(path string) (*SQLiteStore, error) {
	conn, err := sqlx.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// One writer avoids SQLITE_BUSY between the read and write halves of Update.
	conn.SetMaxOpenConns(1)

	s := &SQLiteStore{conn: conn}
	if err := s.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.conn.Close()
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS documents (
		collection TEXT NOT NULL,
		id TEXT NOT NULL,
		body TEXT NOT NULL,
		PRIMARY KEY (collection, id)
	);

	CREATE INDEX IF NOT EXISTS idx_documents_auction_territory
		ON documents(collection, json_extract(body, '$.territoryId'), json_extract(body, '$.status'));
	`
	_, err := s.conn.Exec(schema)
	return err
}

// Get returns the document stored under id, or ErrDocumentNotFound.
func (s *SQLiteStore) Get(ctx context.Context, collection, id string) (Document, error) {
	var body string
	err := s.conn.GetContext(ctx, &body,
		`SELECT body FROM documents WHERE collection = ? AND id = ?`, collection, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrDocumentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get %s/%s: %w", collection, id, err)
	}
	return unmarshalBody(body)
}

// Set replaces the document stored under id.
func (s *SQLiteStore) Set(ctx context.Context, collection, id string, doc Document) error {
	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("set %s/%s: %w", collection, id, err)
	}
	_, err = s.conn.ExecContext(ctx,
		`INSERT INTO documents (collection, id, body) VALUES (?, ?, ?)
		 ON CONFLICT (collection, id) DO UPDATE SET body = excluded.body`,
		collection, id, string(body))
	if err != nil {
		return fmt.Errorf("set %s/%s: %w", collection, id, err)
	}
	return nil
}

// Update merges patch into the top level of an existing document.
func (s *SQLiteStore) Update(ctx context.Context, collection, id string, patch Document) error {
	tx, err := s.conn.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("update %s/%s: %w", collection, id, err)
	}
	defer tx.Rollback()

	var body string
	err = tx.GetContext(ctx, &body,
		`SELECT body FROM documents WHERE collection = ? AND id = ?`, collection, id)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrDocumentNotFound
	}
	if err != nil {
		return fmt.Errorf("update %s/%s: %w", collection, id, err)
	}

	doc, err := unmarshalBody(body)
	if err != nil {
		return err
	}
	for k, v := range patch {
		doc[k] = v
	}
	merged, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("update %s/%s: %w", collection, id, err)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE documents SET body = ? WHERE collection = ? AND id = ?`,
		string(merged), collection, id); err != nil {
		return fmt.Errorf("update %s/%s: %w", collection, id, err)
	}
	return tx.Commit()
}

// Query returns the documents matching every filter.
func (s *SQLiteStore) Query(ctx context.Context, collection string, q Query) ([]Document, error) {
	if err := validateQuery(q); err != nil {
		return nil, err
	}

	var sb strings.Builder
	args := []any{collection}
	sb.WriteString(`SELECT body FROM documents WHERE collection = ?`)

	for _, f := range q.Filters {
		v, err := normalize(f.Value)
		if err != nil {
			return nil, fmt.Errorf("query %s: %w", collection, err)
		}
		path := "json_extract(body, '$." + f.Field + "')"
		switch tv := v.(type) {
		case nil:
			sb.WriteString(" AND " + path + " IS NULL")
		case bool:
			sb.WriteString(" AND " + path + " = ?")
			if tv {
				args = append(args, 1)
			} else {
				args = append(args, 0)
			}
		case string:
			sb.WriteString(" AND " + path + " = ?")
			args = append(args, tv)
		case json.Number:
			sb.WriteString(" AND " + path + " = ?")
			if i, err := tv.Int64(); err == nil {
				args = append(args, i)
			} else {
				f, _ := tv.Float64()
				args = append(args, f)
			}
		default:
			return nil, fmt.Errorf("query %s: unsupported filter value for %q", collection, f.Field)
		}
	}

	if q.OrderBy != nil {
		sb.WriteString(" ORDER BY json_extract(body, '$." + q.OrderBy.Field + "')")
		if q.OrderBy.Desc {
			sb.WriteString(" DESC")
		}
	}
	if q.Limit > 0 {
		sb.WriteString(" LIMIT ?")
		args = append(args, q.Limit)
	}

	var bodies []string
	if err := s.conn.SelectContext(ctx, &bodies, sb.String(), args...); err != nil {
		return nil, fmt.Errorf("query %s: %w", collection, err)
	}

	result := make([]Document, 0, len(bodies))
	for _, body := range bodies {
		doc, err := unmarshalBody(body)
		if err != nil {
			return nil, err
		}
		result = append(result, doc)
	}
	return result, nil
}

func unmarshalBody(body string) (Document, error) {
	var doc Document
	if err := unmarshalNumbers([]byte(body), &doc); err != nil {
		return nil, fmt.Errorf("decode document body: %w", err)
	}
	return doc, nil
}
