package glossary

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

type document struct {
	Entries []Entry `yaml:"entries"`
}

// FileStore persists the glossary as a YAML document. Every mutation rewrites the file.
type FileStore struct {
	mu   sync.Mutex
	path string
	mem  *MemoryStore
}

// OpenFileStore loads path, seeding it with Defaults when it does not exist yet.
func OpenFileStore(path string) (*FileStore, error) {
	if path == "" {
		return nil, errors.New("glossary file path is required")
	}
	s := &FileStore{path: path, mem: NewMemoryStore(nil)}

	entries, err := readFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		s.mem.Replace(Defaults())
		if err := s.save(); err != nil {
			return nil, err
		}
		zap.S().Infof("glossary: seeded %s with %d default entries", path, len(Defaults()))
	case err != nil:
		return nil, err
	default:
		s.mem.Replace(entries)
	}
	return s, nil
}

func (s *FileStore) Path() string { return s.path }

func (s *FileStore) List() ([]Entry, error) { return s.mem.List() }

func (s *FileStore) Add(term, translation string, category Category) (Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, err := s.mem.Add(term, translation, category)
	if err != nil {
		return Entry{}, err
	}
	if err := s.save(); err != nil {
		_ = s.mem.Delete(e.ID)
		return Entry{}, err
	}
	return e, nil
}

func (s *FileStore) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	before, _ := s.mem.List()
	if err := s.mem.Delete(id); err != nil {
		return err
	}
	if err := s.save(); err != nil {
		s.mem.Replace(before)
		return err
	}
	return nil
}

// Reload re-reads the file, picking up edits made outside the process.
func (s *FileStore) Reload() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	entries, err := readFile(s.path)
	if err != nil {
		return err
	}
	s.mem.Replace(entries)
	return nil
}

func (s *FileStore) Close() error { return nil }

func (s *FileStore) save() error {
	entries, _ := s.mem.List()
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create glossary directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".glossary-*.yaml")
	if err != nil {
		return fmt.Errorf("failed to create temp glossary file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := Export(tmp, entries); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write glossary: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("failed to replace glossary file: %w", err)
	}
	return nil
}

func readFile(path string) ([]Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	entries, err := Import(f)
	if err != nil {
		return nil, fmt.Errorf("failed to parse glossary %s: %w", path, err)
	}
	return entries, nil
}

// Export writes entries as a YAML document.
func Export(w io.Writer, entries []Entry) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(document{Entries: entries}); err != nil {
		return fmt.Errorf("failed to encode glossary: %w", err)
	}
	return enc.Close()
}

// Import reads a YAML document written by Export. Entries without an ID get one;
// entries with an empty term or translation are rejected.
func Import(r io.Reader) ([]Entry, error) {
	var doc document
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return []Entry{}, nil
		}
		return nil, err
	}

	out := make([]Entry, 0, len(doc.Entries))
	for i, raw := range doc.Entries {
		cat, err := ParseCategory(string(raw.Category))
		if err != nil {
			return nil, fmt.Errorf("entry %d: %w", i+1, err)
		}
		e, err := NewEntry(raw.Term, raw.Translation, cat)
		if err != nil {
			return nil, fmt.Errorf("entry %d: %w", i+1, err)
		}
		if raw.ID != "" {
			e.ID = raw.ID
		}
		out = append(out, e)
	}
	return out, nil
}
