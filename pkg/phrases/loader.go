package phrases

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

// Loader loads and optionally hot-reloads phrase sets from YAML files, one
// file per language.
type Loader struct {
	dir string

	mu   sync.RWMutex
	sets map[string]Set
}

// NewLoader creates a loader for dir. An empty dir serves only the
// built-in set.
func NewLoader(dir string) *Loader {
	return &Loader{
		dir:  dir,
		sets: map[string]Set{Default().Language: Default()},
	}
}

// LoadAll loads all .yaml and .yml files from the configured directory.
// Missing fields fall back to the built-in set.
func (l *Loader) LoadAll() (map[string]Set, error) {
	result := map[string]Set{Default().Language: Default()}
	if l.dir == "" {
		return result, nil
	}

	entries, err := os.ReadDir(l.dir)
	if err != nil {
		return nil, fmt.Errorf("read phrases dir %q: %w", l.dir, err)
	}

	for _, entry := range entries {
		if entry.IsDir() || !isYAML(entry.Name()) {
			continue
		}

		path := filepath.Join(l.dir, entry.Name())
		set, err := l.loadFile(path)
		if err != nil {
			return nil, fmt.Errorf("load %q: %w", path, err)
		}
		result[set.Language] = set
	}

	l.mu.Lock()
	l.sets = result
	l.mu.Unlock()

	return result, nil
}

// Get returns the set for lang. Unknown languages try the two-letter
// language prefix, then the built-in set.
func (l *Loader) Get(lang string) Set {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if s, ok := l.sets[lang]; ok {
		return s
	}
	if len(lang) >= 2 {
		tags := make([]string, 0, len(l.sets))
		for tag := range l.sets {
			tags = append(tags, tag)
		}
		sort.Strings(tags)
		for _, tag := range tags {
			if strings.HasPrefix(tag, lang[:2]) {
				return l.sets[tag]
			}
		}
	}
	if s, ok := l.sets[Default().Language]; ok {
		return s
	}
	return Default()
}

// Languages returns the loaded language tags.
func (l *Loader) Languages() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]string, 0, len(l.sets))
	for tag := range l.sets {
		out = append(out, tag)
	}
	return out
}

func (l *Loader) loadFile(path string) (Set, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Set{}, err
	}

	var s Set
	if err := yaml.Unmarshal(data, &s); err != nil {
		return Set{}, fmt.Errorf("parse YAML: %w", err)
	}

	if s.Language == "" {
		s.Language = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return s.merge(Default()), nil
}

// WatchAndReload watches the phrases directory and reloads on change.
// It blocks until done is closed.
func (l *Loader) WatchAndReload(done <-chan struct{}) error {
	if l.dir == "" {
		<-done
		return nil
	}

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
			if (event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Remove)) && isYAML(event.Name) {
				if _, err := l.LoadAll(); err != nil {
					slog.Warn("phrase reload failed, keeping previous sets", slog.String("error", err.Error()))
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

func isYAML(name string) bool {
	ext := filepath.Ext(name)
	return ext == ".yaml" || ext == ".yml"
}
