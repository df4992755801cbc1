// Package memfs is an in-memory host.FS test double (spec §6's "FS is
// specified only by the interface the core consumes" — no real backend
// ships here, only a fixture usable from tests). Grounded on
// server/transport.go's connection-event bookkeeping style translated
// to file bookkeeping: a flat name-indexed map guarded by one mutex,
// no directory tree beyond "/"-delimited name prefixes.
package memfs

import (
	"errors"
	"sort"
	"strings"
	"sync"

	"github.com/m8rscript/m8r/internal/host"
)

var (
	ErrNotFound     = errors.New("memfs: file not found")
	ErrExists       = errors.New("memfs: file exists")
	ErrNotMounted   = errors.New("memfs: not mounted")
	ErrNotDirectory = errors.New("memfs: not a directory")
)

// FS is an in-memory filesystem: a flat map of name to byte slice plus
// a set of known directory names.
type FS struct {
	mu      sync.Mutex
	mounted bool
	files   map[string][]byte
	dirs    map[string]bool
}

// New returns an unmounted, empty FS.
func New() *FS {
	return &FS{files: make(map[string][]byte), dirs: map[string]bool{"/": true}}
}

func (f *FS) Mount() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.mounted = true
	return nil
}

func (f *FS) Mounted() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.mounted
}

func (f *FS) Unmount() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.mounted = false
	return nil
}

// Format discards all file contents, matching spec.md's filesystem
// semantics of Format as a destructive full-wipe operation.
func (f *FS) Format() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.files = make(map[string][]byte)
	f.dirs = map[string]bool{"/": true}
	return nil
}

func (f *FS) Exists(name string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, isFile := f.files[name]
	return isFile || f.dirs[name]
}

func (f *FS) MakeDirectory(name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.dirs[name] {
		return ErrExists
	}
	f.dirs[name] = true
	return nil
}

func (f *FS) Remove(name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.files[name]; !ok {
		return ErrNotFound
	}
	delete(f.files, name)
	return nil
}

func (f *FS) Rename(from, to string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.files[from]
	if !ok {
		return ErrNotFound
	}
	f.files[to] = data
	delete(f.files, from)
	return nil
}

// Open returns a seekable, read/write handle. Create mode preserves
// any existing contents; Write truncates; Append seeks to the end.
func (f *FS) Open(name string, mode host.Mode) (host.File, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, existed := f.files[name]
	switch mode {
	case host.Read, host.ReadUpdate:
		if !existed {
			return nil, ErrNotFound
		}
	case host.Write, host.WriteUpdate:
		data = nil
		f.files[name] = data
	case host.Append, host.AppendUpdate, host.Create:
		if !existed {
			f.files[name] = nil
		}
	}

	handle := &file{fs: f, name: name}
	if mode == host.Append || mode == host.AppendUpdate {
		handle.pos = int64(len(f.files[name]))
	}
	return handle, nil
}

func (f *FS) OpenDirectory(name string) (host.Directory, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.dirs[name] {
		return nil, ErrNotDirectory
	}
	prefix := name
	if !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	var names []string
	for n := range f.files {
		if strings.HasPrefix(n, prefix) && !strings.Contains(n[len(prefix):], "/") {
			names = append(names, n[len(prefix):])
		}
	}
	sort.Strings(names)
	return &directory{name: name, entries: names}, nil
}

type file struct {
	fs   *FS
	name string
	pos  int64
}

func (fh *file) Read(p []byte) (int, error) {
	fh.fs.mu.Lock()
	defer fh.fs.mu.Unlock()
	data := fh.fs.files[fh.name]
	if fh.pos >= int64(len(data)) {
		return 0, nil
	}
	n := copy(p, data[fh.pos:])
	fh.pos += int64(n)
	return n, nil
}

func (fh *file) Write(p []byte) (int, error) {
	fh.fs.mu.Lock()
	defer fh.fs.mu.Unlock()
	data := fh.fs.files[fh.name]
	end := fh.pos + int64(len(p))
	if end > int64(len(data)) {
		grown := make([]byte, end)
		copy(grown, data)
		data = grown
	}
	copy(data[fh.pos:end], p)
	fh.fs.files[fh.name] = data
	fh.pos = end
	return len(p), nil
}

func (fh *file) Seek(offset int64, whence int) (int64, error) {
	fh.fs.mu.Lock()
	size := int64(len(fh.fs.files[fh.name]))
	fh.fs.mu.Unlock()
	switch whence {
	case 0:
		fh.pos = offset
	case 1:
		fh.pos += offset
	case 2:
		fh.pos = size + offset
	}
	return fh.pos, nil
}

func (fh *file) Close() error { return nil }

type directory struct {
	name    string
	entries []string
	idx     int
}

func (d *directory) Name() string { return d.name }

func (d *directory) Next() (string, bool) {
	if d.idx >= len(d.entries) {
		return "", false
	}
	n := d.entries[d.idx]
	d.idx++
	return n, true
}

func (d *directory) Close() error { return nil }
