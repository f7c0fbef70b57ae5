package theme

import (
	"fmt"
	"os"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"
)

// Library is the set of known themes, safe for concurrent lookup while a
// watcher reloads it in the background.
type Library struct {
	mu     sync.RWMutex
	themes map[string]Theme
}

// NewLibrary builds a library from the given themes. Duplicate IDs and
// invalid themes are rejected.
func NewLibrary(themes ...Theme) (*Library, error) {
	byID, err := index(themes)
	if err != nil {
		return nil, err
	}
	return &Library{themes: byID}, nil
}

// LoadFile reads a YAML theme list from path.
func LoadFile(path string) (*Library, error) {
	lib := &Library{themes: make(map[string]Theme)}
	if err := lib.Reload(path); err != nil {
		return nil, err
	}
	return lib, nil
}

// Reload re-reads path and atomically swaps in the new theme set. On any
// error the previous set stays in place.
func (l *Library) Reload(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("theme: read %s: %w", path, err)
	}
	var themes []Theme
	if err := yaml.Unmarshal(data, &themes); err != nil {
		return fmt.Errorf("theme: parse %s: %w", path, err)
	}
	byID, err := index(themes)
	if err != nil {
		return fmt.Errorf("theme: %s: %w", path, err)
	}
	l.mu.Lock()
	l.themes = byID
	l.mu.Unlock()
	return nil
}

func index(themes []Theme) (map[string]Theme, error) {
	byID := make(map[string]Theme, len(themes))
	for _, t := range themes {
		if err := t.Validate(); err != nil {
			return nil, err
		}
		if _, dup := byID[t.ID]; dup {
			return nil, fmt.Errorf("duplicate theme id %q", t.ID)
		}
		byID[t.ID] = t
	}
	return byID, nil
}

// Get returns the theme with the given id.
func (l *Library) Get(id string) (Theme, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	t, ok := l.themes[id]
	return t, ok
}

// IDs returns the sorted ids of all themes.
func (l *Library) IDs() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	ids := make([]string, 0, len(l.themes))
	for id := range l.themes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Len returns the number of themes.
func (l *Library) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.themes)
}
