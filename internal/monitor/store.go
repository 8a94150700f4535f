package monitor

import (
	"context"
	"database/sql"
	"encoding/json"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/KaramelBytes/dashloom-cli/internal/errors"
	"github.com/KaramelBytes/dashloom-cli/internal/utils"
)

// Store persists snapshots across processes.
type Store interface {
	// Append stores s after every snapshot already stored.
	Append(ctx context.Context, s Snapshot) error
	// List returns every stored snapshot, oldest first.
	List(ctx context.Context) ([]Snapshot, error)
	// Clear removes every stored snapshot.
	Clear(ctx context.Context) error
	Close() error
}

// StoreOption configures a Store.
type StoreOption func(*storeConfig)

type storeConfig struct {
	keep int
}

// KeepLast bounds a store to the n newest snapshots; older ones are dropped
// on Append. n <= 0 keeps everything.
func KeepLast(n int) StoreOption {
	return func(c *storeConfig) { c.keep = n }
}

func newStoreConfig(opts []StoreOption) storeConfig {
	var c storeConfig
	for _, o := range opts {
		o(&c)
	}
	return c
}

// FileStore keeps snapshots in one JSON file, rewritten atomically on change.
type FileStore struct {
	mu   sync.Mutex
	path string
	keep int
}

type snapshotFile struct {
	Snapshots []Snapshot `json:"snapshots"`
}

// NewFileStore returns a store backed by path. The file is created on the
// first Append.
func NewFileStore(path string, opts ...StoreOption) (*FileStore, error) {
	if err := utils.EnsureDir(filepath.Dir(path)); err != nil {
		return nil, errors.Wrap(err, "ensure history dir")
	}
	return &FileStore{path: path, keep: newStoreConfig(opts).keep}, nil
}

func (f *FileStore) read() ([]Snapshot, error) {
	b, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "read history")
	}
	var sf snapshotFile
	if err := json.Unmarshal(b, &sf); err != nil {
		return nil, errors.Wrapf(err, "parse history %s", f.path)
	}
	return sf.Snapshots, nil
}

func (f *FileStore) write(snaps []Snapshot) error {
	data, err := utils.PrettyJSON(snapshotFile{Snapshots: snaps})
	if err != nil {
		return err
	}
	return utils.SafeWriteFile(f.path, data)
}

func (f *FileStore) Append(_ context.Context, s Snapshot) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	snaps, err := f.read()
	if err != nil {
		return err
	}
	snaps = append(snaps, s)
	if over := len(snaps) - f.keep; f.keep > 0 && over > 0 {
		snaps = snaps[over:]
	}
	return f.write(snaps)
}

func (f *FileStore) List(_ context.Context) ([]Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.read()
}

func (f *FileStore) Clear(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.write([]Snapshot{})
}

func (f *FileStore) Close() error { return nil }

const snapshotSchema = `
CREATE TABLE IF NOT EXISTS snapshots (
    seq         INTEGER PRIMARY KEY AUTOINCREMENT,
    id          TEXT NOT NULL UNIQUE,
    taken_at    TEXT NOT NULL,
    label       TEXT NOT NULL,
    row_count   INTEGER NOT NULL,
    col_count   INTEGER NOT NULL,
    quality     INTEGER NOT NULL,
    indicators  TEXT NOT NULL
);
`

// SQLiteStore keeps snapshots in a SQLite table.
type SQLiteStore struct {
	db   *sql.DB
	keep int
}

// OpenSQLite opens (or creates) the database at path. ":memory:" works for tests.
func OpenSQLite(path string, opts ...StoreOption) (*SQLiteStore, error) {
	if path != ":memory:" {
		if err := utils.EnsureDir(filepath.Dir(path)); err != nil {
			return nil, errors.Wrap(err, "ensure history dir")
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrap(err, "open sqlite")
	}
	// A single connection keeps ":memory:" databases shared across calls.
	db.SetMaxOpenConns(1)
	return NewSQLiteStore(db, opts...)
}

// NewSQLiteStore creates the schema on db.
func NewSQLiteStore(db *sql.DB, opts ...StoreOption) (*SQLiteStore, error) {
	if _, err := db.Exec(snapshotSchema); err != nil {
		return nil, errors.Wrap(err, "snapshot schema")
	}
	return &SQLiteStore{db: db, keep: newStoreConfig(opts).keep}, nil
}

func (s *SQLiteStore) Append(ctx context.Context, snap Snapshot) error {
	inds, err := json.Marshal(snap.Indicators)
	if err != nil {
		return errors.Wrap(err, "encode indicators")
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO snapshots (id, taken_at, label, row_count, col_count, quality, indicators)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		snap.ID, snap.Timestamp.UTC().Format(time.RFC3339Nano), snap.Label, snap.Rows, snap.Columns, snap.Quality, string(inds))
	if err != nil {
		return errors.Wrap(err, "insert snapshot")
	}
	if s.keep <= 0 {
		return nil
	}
	_, err = s.db.ExecContext(ctx,
		`DELETE FROM snapshots WHERE seq <= (SELECT seq FROM snapshots ORDER BY seq DESC LIMIT 1 OFFSET ?)`,
		s.keep)
	if err != nil {
		return errors.Wrap(err, "trim snapshots")
	}
	return nil
}

func (s *SQLiteStore) List(ctx context.Context) ([]Snapshot, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, taken_at, label, row_count, col_count, quality, indicators FROM snapshots ORDER BY seq`)
	if err != nil {
		return nil, errors.Wrap(err, "query snapshots")
	}
	defer rows.Close()

	var out []Snapshot
	for rows.Next() {
		var (
			snap    Snapshot
			takenAt string
			inds    string
		)
		if err := rows.Scan(&snap.ID, &takenAt, &snap.Label, &snap.Rows, &snap.Columns, &snap.Quality, &inds); err != nil {
			return nil, errors.Wrap(err, "scan snapshot")
		}
		if snap.Timestamp, err = time.Parse(time.RFC3339Nano, takenAt); err != nil {
			return nil, errors.Wrapf(err, "parse timestamp of %s", snap.ID)
		}
		if err := json.Unmarshal([]byte(inds), &snap.Indicators); err != nil {
			return nil, errors.Wrapf(err, "decode indicators of %s", snap.ID)
		}
		out = append(out, snap)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM snapshots`); err != nil {
		return errors.Wrap(err, "clear snapshots")
	}
	return nil
}

func (s *SQLiteStore) Close() error { return s.db.Close() }

// Store kinds accepted by OpenStore.
const (
	StoreFile   = "file"
	StoreSQLite = "sqlite"
)

// OpenStore opens a store of the given kind at path.
func OpenStore(kind, path string, opts ...StoreOption) (Store, error) {
	switch kind {
	case StoreFile, "":
		return NewFileStore(path, opts...)
	case StoreSQLite:
		return OpenSQLite(path, opts...)
	}
	return nil, errors.NewInvalidRequestError("unknown history store %q (want file or sqlite)", kind)
}
