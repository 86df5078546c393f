// Copyright © 2024 The ELPS authors

package stub

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	_ "modernc.org/sqlite"
)

const sqliteDriverName = "sqlite"

const schema = `
CREATE TABLE IF NOT EXISTS stubs (
	path TEXT PRIMARY KEY,
	namespace TEXT NOT NULL,
	version INTEGER NOT NULL,
	data BLOB NOT NULL,
	updated_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS stubs_namespace ON stubs(namespace);
`

// Store persists stubs in a sqlite database.  It is safe for concurrent
// use.
type Store struct {
	db *sql.DB
}

// OpenStore opens or creates the database at path.  The path ":memory:"
// opens a private in-memory database.
func OpenStore(path string) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("stub store path is empty")
	}
	var dsn string
	if path == ":memory:" {
		dsn = "file::memory:?_pragma=busy_timeout(5000)"
	} else {
		clean := filepath.Clean(path)
		if err := os.MkdirAll(filepath.Dir(clean), 0o755); err != nil {
			return nil, fmt.Errorf("create stub store directory: %w", err)
		}
		dsn = fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", clean)
	}
	db, err := sql.Open(sqliteDriverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open stub store %q: %w", path, err)
	}
	if path == ":memory:" {
		// Each connection to :memory: is a separate database.
		db.SetMaxOpenConns(1)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping stub store %q: %w", path, err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate stub store %q: %w", path, err)
	}
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Put stores or replaces the stub of s.Path.
func (s *Store) Put(ctx context.Context, st *Stub) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO stubs (path, namespace, version, data, updated_at)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT(path) DO UPDATE SET
	namespace = excluded.namespace,
	version = excluded.version,
	data = excluded.data,
	updated_at = excluded.updated_at`,
		st.Path, st.Namespace, Version, st.Marshal(), time.Now().Unix())
	if err != nil {
		return fmt.Errorf("put stub %q: %w", st.Path, err)
	}
	return nil
}

// Load returns the stub stored for path.  A missing stub yields an error
// wrapping os.ErrNotExist.
func (s *Store) Load(ctx context.Context, path string) (*Stub, error) {
	ctx, span := otel.Tracer("github.com/luthersystems/cljsym/stub").Start(ctx, "stub.Store.Load")
	span.SetAttributes(attribute.String("cljsym.path", path))
	defer span.End()

	var data []byte
	err := s.db.QueryRowContext(ctx, `SELECT data FROM stubs WHERE path = ?`, path).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("load stub %q: %w", path, os.ErrNotExist)
	}
	if err == nil {
		var st *Stub
		st, err = Unmarshal(path, data)
		if err == nil {
			return st, nil
		}
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return nil, fmt.Errorf("load stub %q: %w", path, err)
}

// Delete removes the stub of path.  Deleting a missing stub is not an
// error.
func (s *Store) Delete(ctx context.Context, path string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM stubs WHERE path = ?`, path); err != nil {
		return fmt.Errorf("delete stub %q: %w", path, err)
	}
	return nil
}

// Namespaces maps every stored path to its namespace.
func (s *Store) Namespaces(ctx context.Context) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT path, namespace FROM stubs`)
	if err != nil {
		return nil, fmt.Errorf("list stub namespaces: %w", err)
	}
	defer rows.Close()
	out := make(map[string]string)
	for rows.Next() {
		var path, ns string
		if err := rows.Scan(&path, &ns); err != nil {
			return nil, fmt.Errorf("scan stub namespace: %w", err)
		}
		out[path] = ns
	}
	return out, rows.Err()
}

// FilesDeclaring returns the stored paths whose namespace is ns, sorted.
func (s *Store) FilesDeclaring(ctx context.Context, ns string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT path FROM stubs WHERE namespace = ? ORDER BY path`, ns)
	if err != nil {
		return nil, fmt.Errorf("query files declaring %q: %w", ns, err)
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var path string
		if err := rows.Scan(&path); err != nil {
			return nil, fmt.Errorf("scan stub path: %w", err)
		}
		out = append(out, path)
	}
	return out, rows.Err()
}
