package source

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
)

// Loader locates and loads a document by name.
//
// The name is tried as given first, then joined with each of Dirs in
// order. Only a missing file moves the search on to the next candidate; any
// other read error ends the search.
type Loader struct {
	// Name is the document file name, e.g. "main.json".
	Name string

	// Dirs are fallback directories searched when Name is relative.
	Dirs []string

	// ReadFile reads a candidate path. Defaults to os.ReadFile.
	ReadFile func(path string) ([]byte, error)
}

// NewLoader creates a Loader for name with the given fallback directories.
func NewLoader(name string, dirs ...string) *Loader {
	return &Loader{Name: name, Dirs: dirs}
}

// Candidates returns the paths Load tries, in order, without duplicates.
func (l *Loader) Candidates() []string {
	if filepath.IsAbs(l.Name) {
		return []string{filepath.Clean(l.Name)}
	}

	seen := make(map[string]bool)
	var paths []string
	add := func(p string) {
		p = filepath.Clean(p)
		if !seen[p] {
			seen[p] = true
			paths = append(paths, p)
		}
	}
	add(l.Name)
	for _, dir := range l.Dirs {
		if dir == "" {
			continue
		}
		add(filepath.Join(dir, l.Name))
	}
	return paths
}

// Load reads and parses the document. Every call reads the file again;
// nothing is cached between calls.
func (l *Loader) Load() (*Document, error) {
	if l.Name == "" {
		return nil, NewNotFoundError(l.Name, errors.New("no document name configured"))
	}

	read := l.ReadFile
	if read == nil {
		read = os.ReadFile
	}

	var lastErr error
	for _, path := range l.Candidates() {
		data, err := read(path)
		if errors.Is(err, fs.ErrNotExist) {
			lastErr = err
			continue
		}
		if err != nil {
			return nil, NewNotFoundError(l.Name, err)
		}

		doc, err := Parse(l.Name, data)
		if err != nil {
			return nil, err
		}
		doc.Path = path
		return doc, nil
	}
	return nil, NewNotFoundError(l.Name, lastErr)
}
