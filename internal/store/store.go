// Package store persists merged records as JSON documents and keeps the
// SQLite ledger of pipeline runs.
package store

import (
	"context"
	"encoding/json"
	"path"
	"sort"
	"strings"
	"sync"

	"github.com/rotisserie/eris"
	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/islamic-data/internal/model"
)

// ErrNotFound is returned when a document does not exist.
var ErrNotFound = eris.New("store: document not found")

// ErrInvalidKey is returned for empty or path-like category and name parts.
var ErrInvalidKey = eris.New("store: invalid document key")

const docExt = ".json"

// FileStore reads and writes {category}/{name}.json documents under a root
// directory. Writes are full-file replacements (temp file + rename) and are
// serialized per document.
type FileStore struct {
	fs    afero.Fs
	root  string
	locks keyedMutex
}

// NewFileStore returns a FileStore rooted at root on fs.
func NewFileStore(fs afero.Fs, root string) *FileStore {
	return &FileStore{fs: fs, root: root}
}

// NewOSFileStore returns a FileStore on the operating system filesystem.
func NewOSFileStore(root string) *FileStore {
	return NewFileStore(afero.NewOsFs(), root)
}

// Root returns the directory documents are stored under.
func (s *FileStore) Root() string {
	return s.root
}

// Path returns the document path for category and name.
func (s *FileStore) Path(category, name string) string {
	return path.Join(s.root, category, name+docExt)
}

func validate(category, name string) error {
	if !validPart(category) || !validPart(name) {
		return eris.Wrapf(ErrInvalidKey, "store: key %q/%q", category, name)
	}
	return nil
}

func validPart(part string) bool {
	return part != "" && part != "." && part != ".." && !strings.ContainsAny(part, `/\`)
}

// Write marshals v as indented JSON and replaces the document.
func (s *FileStore) Write(category, name string, v any) error {
	data, err := json.MarshalIndent(v, "", "    ")
	if err != nil {
		return eris.Wrapf(err, "store: marshal %s/%s", category, name)
	}
	return s.WriteRaw(category, name, append(data, '\n'))
}

// WriteRecord persists rec under its category and ID.
func (s *FileStore) WriteRecord(rec model.Record) error {
	return s.Write(rec.Category, rec.ID, rec)
}

// WriteRaw replaces the document with data.
func (s *FileStore) WriteRaw(category, name string, data []byte) error {
	if err := validate(category, name); err != nil {
		return err
	}
	unlock := s.locks.lock(category + "/" + name)
	defer unlock()

	dir := path.Join(s.root, category)
	if err := s.fs.MkdirAll(dir, 0o755); err != nil {
		return eris.Wrapf(err, "store: mkdir %s", dir)
	}

	tmp, err := afero.TempFile(s.fs, dir, "."+name+".*.tmp")
	if err != nil {
		return eris.Wrapf(err, "store: temp file for %s/%s", category, name)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()          //nolint:errcheck
		s.fs.Remove(tmpName) //nolint:errcheck
		return eris.Wrapf(err, "store: write %s/%s", category, name)
	}
	if err := tmp.Close(); err != nil {
		s.fs.Remove(tmpName) //nolint:errcheck
		return eris.Wrapf(err, "store: close %s/%s", category, name)
	}
	if err := s.fs.Rename(tmpName, s.Path(category, name)); err != nil {
		s.fs.Remove(tmpName) //nolint:errcheck
		return eris.Wrapf(err, "store: rename %s/%s", category, name)
	}
	return nil
}

// ReadRaw returns the document bytes, or ErrNotFound.
func (s *FileStore) ReadRaw(category, name string) ([]byte, error) {
	if err := validate(category, name); err != nil {
		return nil, err
	}
	ok, err := s.Exists(category, name)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, eris.Wrapf(ErrNotFound, "store: read %s/%s", category, name)
	}
	data, err := afero.ReadFile(s.fs, s.Path(category, name))
	if err != nil {
		return nil, eris.Wrapf(err, "store: read %s/%s", category, name)
	}
	return data, nil
}

// Read decodes the document into v, or returns ErrNotFound.
func (s *FileStore) Read(category, name string, v any) error {
	data, err := s.ReadRaw(category, name)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return eris.Wrapf(err, "store: decode %s/%s", category, name)
	}
	return nil
}

// ReadRecord loads a stored record.
func (s *FileStore) ReadRecord(category, name string) (*model.Record, error) {
	var rec model.Record
	if err := s.Read(category, name, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// Exists reports whether the document exists.
func (s *FileStore) Exists(category, name string) (bool, error) {
	if err := validate(category, name); err != nil {
		return false, err
	}
	ok, err := afero.Exists(s.fs, s.Path(category, name))
	if err != nil {
		return false, eris.Wrapf(err, "store: stat %s/%s", category, name)
	}
	return ok, nil
}

// List returns the document names of category, sorted. A missing category
// is empty.
func (s *FileStore) List(category string) ([]string, error) {
	if !validPart(category) {
		return nil, eris.Wrapf(ErrInvalidKey, "store: category %q", category)
	}
	dir := path.Join(s.root, category)
	ok, err := afero.DirExists(s.fs, dir)
	if err != nil {
		return nil, eris.Wrapf(err, "store: stat %s", dir)
	}
	if !ok {
		return nil, nil
	}
	infos, err := afero.ReadDir(s.fs, dir)
	if err != nil {
		return nil, eris.Wrapf(err, "store: list %s", dir)
	}

	var names []string
	for _, fi := range infos {
		n := fi.Name()
		if fi.IsDir() || strings.HasPrefix(n, ".") || !strings.HasSuffix(n, docExt) {
			continue
		}
		names = append(names, strings.TrimSuffix(n, docExt))
	}
	sort.Strings(names)
	return names, nil
}

// Categories returns the category directories under the root, sorted.
func (s *FileStore) Categories() ([]string, error) {
	ok, err := afero.DirExists(s.fs, s.root)
	if err != nil {
		return nil, eris.Wrapf(err, "store: stat %s", s.root)
	}
	if !ok {
		return nil, nil
	}
	infos, err := afero.ReadDir(s.fs, s.root)
	if err != nil {
		return nil, eris.Wrapf(err, "store: list %s", s.root)
	}
	var cats []string
	for _, fi := range infos {
		if fi.IsDir() && !strings.HasPrefix(fi.Name(), ".") {
			cats = append(cats, fi.Name())
		}
	}
	sort.Strings(cats)
	return cats, nil
}

// LoadAll reads every document of category with at most workers concurrent
// reads and returns them keyed by name.
func (s *FileStore) LoadAll(ctx context.Context, category string, workers int) (map[string]json.RawMessage, error) {
	names, err := s.List(category)
	if err != nil {
		return nil, err
	}
	if workers < 1 {
		workers = 1
	}

	docs := make([]json.RawMessage, len(names))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, name := range names {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			data, err := s.ReadRaw(category, name)
			if err != nil {
				return err
			}
			if !json.Valid(data) {
				return eris.Errorf("store: %s/%s is not valid json", category, name)
			}
			docs[i] = data
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, eris.Wrapf(err, "store: load %s", category)
	}

	out := make(map[string]json.RawMessage, len(names))
	for i, name := range names {
		out[name] = docs[i]
	}
	return out, nil
}

// keyedMutex hands out one mutex per key.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func (k *keyedMutex) lock(key string) func() {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = map[string]*sync.Mutex{}
	}
	m, ok := k.locks[key]
	if !ok {
		m = &sync.Mutex{}
		k.locks[key] = m
	}
	k.mu.Unlock()

	m.Lock()
	return m.Unlock
}
