// Package persistent serves the "persistent" scheme from a local SQLite
// store. The URL path names an entry: persistent:///settings/user.json.
//
// GET and HEAD read an entry, POST and PUT store the request body, DELETE
// removes it. Other methods answer 405.
package persistent

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/kind-men/uxios"
	"github.com/kind-men/uxios/internal/singleflight"
)

// Scheme is the URL scheme served by Transport.
const Scheme = "persistent"

const allowedMethods = "GET, HEAD, POST, PUT, DELETE"

// readTimeout bounds a shared read, which outlives the request that started it.
const readTimeout = 30 * time.Second

// ErrNoPath is returned for a URL without an entry path, typically written
// with two slashes after the scheme instead of three.
var ErrNoPath = errors.New("persistent: no file path was provided, check that there are 3 slashes after the scheme instead of 2")

type entry struct {
	content     []byte
	contentType string
	updatedAt   time.Time
}

// Transport stores entries in a SQLite database.
type Transport struct {
	db    *sql.DB
	reads *singleflight.Group[*entry]
}

// Open opens or creates the store at dbPath.
func Open(dbPath string) (*Transport, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create store directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS entries (
		path TEXT PRIMARY KEY,
		content BLOB NOT NULL,
		content_type TEXT NOT NULL DEFAULT '',
		updated_at INTEGER NOT NULL
	)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create entries table: %w", err)
	}

	return &Transport{db: db, reads: singleflight.New[*entry]()}, nil
}

// Close closes the underlying database.
func (t *Transport) Close() error {
	return t.db.Close()
}

// Schemes implements uxios.Transport.
func (t *Transport) Schemes() []string { return []string{Scheme} }

// PerformRequest implements uxios.Transport.
func (t *Transport) PerformRequest(ctx context.Context, req *uxios.Request) (*uxios.RawResponse, error) {
	path := strings.TrimLeft(req.URL.Path, "/\\")
	if path == "" {
		return nil, ErrNoPath
	}

	switch req.Method {
	case http.MethodGet, http.MethodHead:
		return t.read(ctx, path, req.Method == http.MethodHead)
	case http.MethodPost, http.MethodPut:
		return t.write(ctx, path, req)
	case http.MethodDelete:
		return t.remove(ctx, path)
	default:
		header := http.Header{}
		header.Set("Allow", allowedMethods)
		return &uxios.RawResponse{Status: http.StatusMethodNotAllowed, Header: header}, nil
	}
}

func (t *Transport) read(ctx context.Context, path string, headOnly bool) (*uxios.RawResponse, error) {
	if err := context.Cause(ctx); err != nil {
		return nil, err
	}

	ch := t.reads.DoChan(path, func() (*entry, error) {
		qctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), readTimeout)
		defer cancel()

		var (
			found   entry
			updated int64
		)
		row := t.db.QueryRowContext(qctx, `SELECT content, content_type, updated_at FROM entries WHERE path = ?`, path)
		if err := row.Scan(&found.content, &found.contentType, &updated); err != nil {
			return nil, err
		}
		found.updatedAt = time.Unix(0, updated).UTC()
		return &found, nil
	})

	var res singleflight.Result[*entry]
	select {
	case <-ctx.Done():
		return nil, context.Cause(ctx)
	case res = <-ch:
	}
	e, err := res.Val, res.Err
	if errors.Is(err, sql.ErrNoRows) {
		raw := notFound(path)
		if headOnly {
			raw.Body = nil
		}
		return raw, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %q: %w", path, err)
	}

	header := http.Header{}
	if e.contentType != "" {
		header.Set("Content-Type", e.contentType)
	}
	header.Set("Content-Length", strconv.Itoa(len(e.content)))
	header.Set("Last-Modified", e.updatedAt.Format(http.TimeFormat))

	raw := &uxios.RawResponse{Status: http.StatusOK, Header: header}
	if !headOnly {
		raw.Body = e.content
	}
	return raw, nil
}

func (t *Transport) write(ctx context.Context, path string, req *uxios.Request) (*uxios.RawResponse, error) {
	content := req.Body
	if content == nil {
		content = []byte{}
	}
	_, err := t.db.ExecContext(ctx, `INSERT INTO entries (path, content, content_type, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			content = excluded.content,
			content_type = excluded.content_type,
			updated_at = excluded.updated_at`,
		path, content, req.Header.Get("Content-Type"), time.Now().UnixNano(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to write %q: %w", path, err)
	}
	t.reads.Forget(path)
	return &uxios.RawResponse{Status: http.StatusOK, Header: http.Header{}}, nil
}

func (t *Transport) remove(ctx context.Context, path string) (*uxios.RawResponse, error) {
	res, err := t.db.ExecContext(ctx, `DELETE FROM entries WHERE path = ?`, path)
	if err != nil {
		return nil, fmt.Errorf("failed to delete %q: %w", path, err)
	}
	t.reads.Forget(path)

	n, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return notFound(path), nil
	}
	return &uxios.RawResponse{Status: http.StatusNoContent, Header: http.Header{}}, nil
}

func notFound(path string) *uxios.RawResponse {
	header := http.Header{}
	header.Set("Content-Type", "text/plain; charset=utf-8")
	return &uxios.RawResponse{
		Status: http.StatusNotFound,
		Header: header,
		Body:   []byte(fmt.Sprintf("entry %q not found", path)),
	}
}
