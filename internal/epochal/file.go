// Public domain.

package epochal

import (
	"bytes"
	"database/sql"
	"encoding/gob"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"sync"

	"github.com/ctessum/sparse"
	_ "modernc.org/sqlite" // sqlite driver

	"github.com/viscoinv/occam/internal/occerr"
)

const schema = `
CREATE TABLE epochs (
	key  TEXT PRIMARY KEY,
	data BLOB NOT NULL
);
CREATE TABLE info (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL,
	attrs TEXT NOT NULL
);`

// File is a Store persisted in an SQLite database.  Arrays are kept one
// row per epoch, keyed by the zero padded epoch, and read only when
// looked up.
//
// A File is safe for concurrent reads.  Writes must not overlap reads.
type File struct {
	path string
	db   *sql.DB

	mu     sync.RWMutex
	epochs []Epoch
	info   infoMap
}

// blob is the gob encoded form of one array.
type blob struct {
	Shape    []int
	Elements []float64
}

// Create creates a new, empty file.  It is an error if path exists.
func Create(path string) (*File, error) {
	if _, err := os.Stat(path); err == nil {
		return nil, occerr.Wrap(occerr.ErrConfiguration, "epochal.Create",
			&fs.PathError{Op: "create", Path: path, Err: fs.ErrExist})
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	if _, err = db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("epochal.Create %s: %w", path, err)
	}
	return &File{path: path, db: db, info: infoMap{}}, nil
}

// Open opens an existing file, reading its epoch keys and annotations.
func Open(path string) (*File, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, occerr.Wrap(occerr.ErrConfiguration, "epochal.Open", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	f := &File{path: path, db: db, info: infoMap{}}
	if err = f.load(); err != nil {
		db.Close()
		return nil, fmt.Errorf("epochal.Open %s: %w", path, err)
	}
	return f, nil
}

func (f *File) load() error {
	rows, err := f.db.Query(`SELECT key FROM epochs ORDER BY CAST(key AS INTEGER)`)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var k string
		if err = rows.Scan(&k); err != nil {
			return err
		}
		e, err := strconv.Atoi(k)
		if err != nil {
			return occerr.Consistency("epochal.Open", "bad epoch key %q", k)
		}
		f.epochs = append(f.epochs, Epoch(e))
	}
	if err = rows.Err(); err != nil {
		return err
	}
	if _, err = NewList(f.epochs...); err != nil {
		return err
	}
	irows, err := f.db.Query(`SELECT key, value, attrs FROM info`)
	if err != nil {
		return err
	}
	defer irows.Close()
	for irows.Next() {
		var k, v, a string
		if err = irows.Scan(&k, &v, &a); err != nil {
			return err
		}
		var ie infoEntry
		if err = json.Unmarshal([]byte(v), &ie.Value); err != nil {
			return fmt.Errorf("info %s: %w", k, err)
		}
		if err = json.Unmarshal([]byte(a), &ie.Attrs); err != nil {
			return fmt.Errorf("info %s attrs: %w", k, err)
		}
		f.info[k] = ie
	}
	return irows.Err()
}

// Path returns the file name.
func (f *File) Path() string { return f.path }

func (f *File) Close() error { return f.db.Close() }

func (f *File) Epochs() List {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return List{append([]Epoch(nil), f.epochs...)}
}

func (f *File) At(e Epoch) (*sparse.DenseArray, error) {
	l := f.Epochs()
	return lookup(l, e, func(i int) (*sparse.DenseArray, error) {
		return f.read(l.At(i))
	})
}

func (f *File) read(e Epoch) (*sparse.DenseArray, error) {
	var data []byte
	err := f.db.QueryRow(`SELECT data FROM epochs WHERE key = ?`, Key(e)).Scan(&data)
	if err != nil {
		return nil, fmt.Errorf("epochal: read %s epoch %d: %w", f.path, e, err)
	}
	var b blob
	if err = gob.NewDecoder(bytes.NewReader(data)).Decode(&b); err != nil {
		return nil, fmt.Errorf("epochal: decode %s epoch %d: %w", f.path, e, err)
	}
	n := 1
	for _, d := range b.Shape {
		n *= d
	}
	if n != len(b.Elements) {
		return nil, occerr.Consistency("epochal.At",
			"epoch %d: shape %v holds %d elements, found %d", e, b.Shape, n, len(b.Elements))
	}
	v := sparse.ZerosDense(b.Shape...)
	copy(v.Elements, b.Elements)
	return v, nil
}

// Put appends v at epoch e.
func (f *File) Put(e Epoch, v *sparse.DenseArray) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	var last Epoch
	if n := len(f.epochs); n > 0 {
		last = f.epochs[n-1]
	}
	if err := checkPut(len(f.epochs), last, e, v); err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(blob{v.Shape, v.Elements}); err != nil {
		return err
	}
	if _, err := f.db.Exec(`INSERT INTO epochs (key, data) VALUES (?, ?)`,
		Key(e), buf.Bytes()); err != nil {
		return fmt.Errorf("epochal: write %s epoch %d: %w", f.path, e, err)
	}
	f.epochs = append(f.epochs, e)
	return nil
}

func (f *File) SetInfo(key string, value any, attrs map[string]any) error {
	if key == "" {
		return occerr.Configuration("epochal.SetInfo", "empty key")
	}
	if attrs == nil {
		attrs = map[string]any{}
	}
	v, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("epochal: info %s: %w", key, err)
	}
	a, err := json.Marshal(attrs)
	if err != nil {
		return fmt.Errorf("epochal: info %s attrs: %w", key, err)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, err = f.db.Exec(`INSERT OR REPLACE INTO info (key, value, attrs) VALUES (?, ?, ?)`,
		key, string(v), string(a)); err != nil {
		return fmt.Errorf("epochal: info %s: %w", key, err)
	}
	// keep the in-memory copy in decoded form, as Open would see it
	var ie infoEntry
	if err = errors.Join(json.Unmarshal(v, &ie.Value), json.Unmarshal(a, &ie.Attrs)); err != nil {
		return err
	}
	f.info[key] = ie
	return nil
}

func (f *File) HasInfo(key string) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.info.has(key)
}

func (f *File) Info(key, attr string) (any, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.info.get(key, attr)
}

func (f *File) Attrs(key string) map[string]any {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.info.attrs(key)
}

// InfoKeys lists annotation keys in sorted order.
func (f *File) InfoKeys() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.info.keys()
}
