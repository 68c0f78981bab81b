package intent

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

// Loader loads and optionally hot-reloads intent schemas from YAML files.
type Loader struct {
	dir string

	mu      sync.RWMutex
	schemas map[string]*Schema
}

// NewLoader creates a schema loader for the given directory.
func NewLoader(dir string) *Loader {
	return &Loader{
		dir:     dir,
		schemas: make(map[string]*Schema),
	}
}

// LoadAll loads all .yaml and .yml files from the configured directory.
func (l *Loader) LoadAll() (map[string]*Schema, error) {
	entries, err := os.ReadDir(l.dir)
	if err != nil {
		return nil, fmt.Errorf("read schema dir %q: %w", l.dir, err)
	}

	result := make(map[string]*Schema)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := filepath.Ext(entry.Name())
		if ext != ".yaml" && ext != ".yml" {
			continue
		}

		path := filepath.Join(l.dir, entry.Name())
		s, err := l.loadFile(path)
		if err != nil {
			return nil, fmt.Errorf("load %q: %w", path, err)
		}
		result[s.Name] = s
	}

	l.mu.Lock()
	l.schemas = result
	l.mu.Unlock()

	return result, nil
}

// Get returns a loaded schema by name.
func (l *Loader) Get(name string) (*Schema, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	s, ok := l.schemas[name]
	return s, ok
}

// All returns all loaded schemas.
func (l *Loader) All() map[string]*Schema {
	l.mu.RLock()
	defer l.mu.RUnlock()
	result := make(map[string]*Schema, len(l.schemas))
	for k, v := range l.schemas {
		result[k] = v
	}
	return result
}

func (l *Loader) loadFile(path string) (*Schema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var s Schema
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse YAML: %w", err)
	}

	if s.Name == "" {
		s.Name = filepath.Base(path)
	}

	// Slot maps key intents by name; fill the name field from the key when
	// the file omits it.
	for name, in := range s.Intents {
		if in.Name == "" {
			in.Name = name
			s.Intents[name] = in
		}
	}

	if err := s.Validate(); err != nil {
		return nil, err
	}

	return &s, nil
}

// WatchAndReload watches the schema directory for changes and reloads.
// Blocks until the done channel is closed.
func (l *Loader) WatchAndReload(done <-chan struct{}) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(l.dir); err != nil {
		return fmt.Errorf("watch dir %q: %w", l.dir, err)
	}

	for {
		select {
		case <-done:
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
				ext := filepath.Ext(event.Name)
				if ext == ".yaml" || ext == ".yml" {
					l.LoadAll()
				}
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			return err
		}
	}
}
