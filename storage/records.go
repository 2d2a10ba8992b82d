package storage

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Ext is the file extension of saved recordings.
const Ext = ".record"

const tmpPrefix = ".tmp-"

// ErrInvalidName is returned for names that are empty, contain path
// separators, or use characters Windows does not allow in file names.
var ErrInvalidName = errors.New("invalid recording name")

// ErrSessionNotFound is returned when deleting an unknown journal entry.
var ErrSessionNotFound = errors.New("session not found")

// Error describes a failed store operation on a named recording.
type Error struct {
	Op   string
	Name string
	Err  error
}

func (e *Error) Error() string {
	if e.Name == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.Name, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// RecordStore keeps one file per recording in a flat directory.
type RecordStore struct {
	dir string
}

// NewRecordStore opens dir, creating it if needed.
func NewRecordStore(dir string) (*RecordStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, &Error{Op: "create dir", Name: dir, Err: err}
	}
	return &RecordStore{dir: dir}, nil
}

// Dir returns the directory the store reads and writes.
func (s *RecordStore) Dir() string {
	return s.dir
}

// List returns the recording names, without extension, sorted.
func (s *RecordStore) List() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, &Error{Op: "list", Err: err}
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), tmpPrefix) || !strings.EqualFold(filepath.Ext(e.Name()), Ext) {
			continue
		}
		names = append(names, strings.TrimSuffix(e.Name(), filepath.Ext(e.Name())))
	}
	sort.Strings(names)
	return names, nil
}

// Open returns a reader for the named recording.
func (s *RecordStore) Open(name string) (io.ReadCloser, error) {
	path, err := s.path(name)
	if err != nil {
		return nil, &Error{Op: "open", Name: name, Err: err}
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, &Error{Op: "open", Name: name, Err: err}
	}
	return f, nil
}

// Create returns a writer for the named recording. The data replaces any
// existing recording of that name only when Close succeeds.
func (s *RecordStore) Create(name string) (io.WriteCloser, error) {
	path, err := s.path(name)
	if err != nil {
		return nil, &Error{Op: "create", Name: name, Err: err}
	}
	f, err := os.CreateTemp(s.dir, tmpPrefix+"*"+Ext)
	if err != nil {
		return nil, &Error{Op: "create", Name: name, Err: err}
	}
	return &pendingFile{f: f, name: name, path: path}, nil
}

// Exists reports whether a recording with this name is present.
func (s *RecordStore) Exists(name string) bool {
	path, err := s.path(name)
	if err != nil {
		return false
	}
	_, err = os.Stat(path)
	return err == nil
}

// ValidName reports whether name can be saved, without touching the disk.
func (s *RecordStore) ValidName(name string) error {
	if _, err := s.path(name); err != nil {
		return &Error{Op: "validate", Name: name, Err: err}
	}
	return nil
}

func (s *RecordStore) path(name string) (string, error) {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\<>:"|?*`) {
		return "", ErrInvalidName
	}
	if strings.HasSuffix(name, ".") || strings.HasSuffix(name, " ") {
		return "", ErrInvalidName
	}
	for _, r := range name {
		if r < 0x20 {
			return "", ErrInvalidName
		}
	}
	return filepath.Join(s.dir, name+Ext), nil
}

type pendingFile struct {
	f    *os.File
	name string
	path string
}

func (p *pendingFile) Write(b []byte) (int, error) {
	n, err := p.f.Write(b)
	if err != nil {
		return n, &Error{Op: "write", Name: p.name, Err: err}
	}
	return n, nil
}

func (p *pendingFile) Close() error {
	tmp := p.f.Name()
	if err := p.f.Close(); err != nil {
		os.Remove(tmp)
		return &Error{Op: "close", Name: p.name, Err: err}
	}
	if err := os.Rename(tmp, p.path); err != nil {
		os.Remove(tmp)
		return &Error{Op: "rename", Name: p.name, Err: err}
	}
	return nil
}

// IsNotExist reports whether err means the recording does not exist.
func IsNotExist(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}
