package pattern

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"
	"gopkg.in/fsnotify.v1"
	"gopkg.in/yaml.v3"
)

// Registry manages a collection of citation pattern sets.
type Registry interface {
	// Register adds a pattern set to the registry
	Register(set *PatternSet) error

	// Unregister removes a pattern set from the registry
	Unregister(setID string) error

	// Get returns a pattern set by its ID
	Get(setID string) (*PatternSet, bool)

	// List returns all registered pattern sets ordered by ID
	List() []*PatternSet

	// Matcher returns a matcher for the given set ID
	Matcher(setID string) (*Matcher, error)

	// Reload reloads all pattern sets from the configured directory
	Reload() error

	// Watch starts watching the pattern directory for changes
	Watch() error

	// StopWatch stops watching the pattern directory
	StopWatch()

	// LoadDirectory loads all pattern sets from a directory
	LoadDirectory(dir string) error

	// LoadFile loads a single pattern set file
	LoadFile(path string) error
}

// DefaultRegistry is the default implementation of Registry.
type DefaultRegistry struct {
	mu       sync.RWMutex
	sets     map[string]*PatternSet
	files    map[string]string // file path -> set ID
	dir      string
	watcher  *fsnotify.Watcher
	stopChan chan struct{}
	onChange func(event string, set *PatternSet)
	logger   *zap.Logger
}

// NewRegistry creates an empty registry. A nil logger disables logging.
func NewRegistry(logger *zap.Logger) *DefaultRegistry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DefaultRegistry{
		sets:   make(map[string]*PatternSet),
		files:  make(map[string]string),
		logger: logger,
	}
}

// NewRegistryWithDirectory creates a registry and loads pattern sets from dir.
func NewRegistryWithDirectory(dir string, logger *zap.Logger) (*DefaultRegistry, error) {
	r := NewRegistry(logger)
	if err := r.LoadDirectory(dir); err != nil {
		return nil, err
	}
	return r, nil
}

// Register adds a pattern set to the registry. A set whose ID is already
// registered is only replaced when the version differs.
func (r *DefaultRegistry) Register(set *PatternSet) error {
	if set == nil {
		return fmt.Errorf("pattern set cannot be nil")
	}

	if err := set.Validate(); err != nil {
		return fmt.Errorf("invalid pattern set: %w", err)
	}

	if !set.IsCompiled() {
		if err := set.Compile(); err != nil {
			return fmt.Errorf("compiling pattern set %q: %w", set.SetID, err)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.sets[set.SetID]; ok && existing.Version == set.Version {
		return fmt.Errorf("pattern set %q version %s already registered", set.SetID, set.Version)
	}

	r.sets[set.SetID] = set
	return nil
}

// Unregister removes a pattern set from the registry.
func (r *DefaultRegistry) Unregister(setID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sets[setID]; !ok {
		return fmt.Errorf("pattern set %q not found", setID)
	}

	delete(r.sets, setID)
	return nil
}

// Get returns a pattern set by its ID.
func (r *DefaultRegistry) Get(setID string) (*PatternSet, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	set, ok := r.sets[setID]
	return set, ok
}

// List returns all registered pattern sets ordered by ID.
func (r *DefaultRegistry) List() []*PatternSet {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sets := make([]*PatternSet, 0, len(r.sets))
	for _, set := range r.sets {
		sets = append(sets, set)
	}
	sort.Slice(sets, func(i, j int) bool {
		return sets[i].SetID < sets[j].SetID
	})
	return sets
}

// Count returns the number of registered pattern sets.
func (r *DefaultRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sets)
}

// Matcher returns a matcher for setID. The built-in set answers for
// DefaultSetID unless a file overrides it.
func (r *DefaultRegistry) Matcher(setID string) (*Matcher, error) {
	if set, ok := r.Get(setID); ok {
		return NewMatcher(set)
	}
	if setID == DefaultSetID || setID == "" {
		return DefaultMatcher(), nil
	}
	return nil, fmt.Errorf("pattern set %q not found", setID)
}

// LoadDirectory loads all YAML pattern set files from a directory.
func (r *DefaultRegistry) LoadDirectory(dir string) error {
	r.mu.Lock()
	r.dir = dir
	r.mu.Unlock()

	// Check if directory exists
	info, err := os.Stat(dir)
	if err != nil {
		if os.IsNotExist(err) {
			// Directory doesn't exist, nothing to load
			return nil
		}
		return fmt.Errorf("checking directory %s: %w", dir, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", dir)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("reading directory %s: %w", dir, err)
	}

	var loadErrors []string
	for _, entry := range entries {
		if entry.IsDir() || !isYAMLFile(entry.Name()) {
			continue
		}

		path := filepath.Join(dir, entry.Name())
		if err := r.LoadFile(path); err != nil {
			loadErrors = append(loadErrors, fmt.Sprintf("%s: %v", entry.Name(), err))
		}
	}

	if len(loadErrors) > 0 {
		return fmt.Errorf("errors loading pattern sets: %s", strings.Join(loadErrors, "; "))
	}

	return nil
}

// LoadFile loads a single pattern set file.
func (r *DefaultRegistry) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading file: %w", err)
	}

	var set PatternSet
	if err := yaml.Unmarshal(data, &set); err != nil {
		return fmt.Errorf("parsing YAML: %w", err)
	}

	if err := r.Register(&set); err != nil {
		return fmt.Errorf("registering pattern set: %w", err)
	}

	r.mu.Lock()
	r.files[path] = set.SetID
	r.mu.Unlock()

	r.logger.Debug("loaded pattern set",
		zap.String("set_id", set.SetID),
		zap.String("version", set.Version),
		zap.String("path", path))
	return nil
}

// Reload replaces the registered sets with the contents of the configured
// directory. On failure, including a directory that no longer exists, the
// previous sets stay registered.
func (r *DefaultRegistry) Reload() error {
	dir := r.directory()
	if dir == "" {
		return fmt.Errorf("no directory configured for reload")
	}
	if _, err := os.Stat(dir); err != nil {
		return fmt.Errorf("reloading pattern directory %s: %w", dir, err)
	}

	fresh := NewRegistry(r.logger)
	if err := fresh.LoadDirectory(dir); err != nil {
		return err
	}

	r.mu.Lock()
	r.sets = fresh.sets
	r.files = fresh.files
	r.mu.Unlock()
	return nil
}

// SetOnChange sets a callback invoked after the watched directory changes.
// The set is nil for removals.
func (r *DefaultRegistry) SetOnChange(fn func(event string, set *PatternSet)) {
	r.mu.Lock()
	r.onChange = fn
	r.mu.Unlock()
}

func (r *DefaultRegistry) directory() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.dir
}

func (r *DefaultRegistry) notify(event string, set *PatternSet) {
	r.mu.RLock()
	fn := r.onChange
	r.mu.RUnlock()
	if fn != nil {
		fn(event, set)
	}
}

// Watch starts watching the pattern directory for changes.
func (r *DefaultRegistry) Watch() error {
	dir := r.directory()
	if dir == "" {
		return fmt.Errorf("no directory configured for watching")
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}

	r.watcher = watcher
	r.stopChan = make(chan struct{})

	go r.watchLoop(watcher, r.stopChan)

	if err := watcher.Add(dir); err != nil {
		r.watcher.Close()
		return fmt.Errorf("watching directory %s: %w", dir, err)
	}

	r.logger.Info("watching pattern directory", zap.String("dir", dir))
	return nil
}

// watchLoop handles file system events.
func (r *DefaultRegistry) watchLoop(watcher *fsnotify.Watcher, stop <-chan struct{}) {
	for {
		select {
		case <-stop:
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}

			if !isYAMLFile(event.Name) {
				continue
			}

			switch {
			case event.Op&fsnotify.Create == fsnotify.Create:
				r.handleFileChange(event.Name, "create")

			case event.Op&fsnotify.Write == fsnotify.Write:
				r.handleFileChange(event.Name, "modify")

			case event.Op&fsnotify.Remove == fsnotify.Remove:
				r.handleFileRemove(event.Name)

			case event.Op&fsnotify.Rename == fsnotify.Rename:
				r.handleFileRemove(event.Name)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			r.logger.Warn("pattern watcher error", zap.Error(err))
		}
	}
}

// handleFileChange reloads the directory after a file is created or modified.
func (r *DefaultRegistry) handleFileChange(path string, eventType string) {
	if err := r.Reload(); err != nil {
		r.logger.Error("reloading pattern sets",
			zap.String("event", eventType),
			zap.String("path", path),
			zap.Error(err))
		return
	}

	r.mu.RLock()
	setID := r.files[path]
	r.mu.RUnlock()

	set, _ := r.Get(setID)
	r.logger.Info("pattern sets reloaded",
		zap.String("event", eventType),
		zap.String("set_id", setID))

	r.notify(eventType, set)
}

// handleFileRemove reloads the directory after a file is removed or renamed.
func (r *DefaultRegistry) handleFileRemove(path string) {
	if err := r.Reload(); err != nil {
		r.logger.Error("reloading pattern sets",
			zap.String("event", "remove"),
			zap.String("path", path),
			zap.Error(err))
		return
	}

	r.logger.Info("pattern sets reloaded", zap.String("event", "remove"), zap.String("path", path))

	r.notify("remove", nil)
}

// StopWatch stops watching the pattern directory.
func (r *DefaultRegistry) StopWatch() {
	if r.stopChan != nil {
		close(r.stopChan)
		r.stopChan = nil
	}
	if r.watcher != nil {
		r.watcher.Close()
		r.watcher = nil
	}
}

// Clear removes all pattern sets from the registry.
func (r *DefaultRegistry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sets = make(map[string]*PatternSet)
	r.files = make(map[string]string)
}

func isYAMLFile(name string) bool {
	return strings.HasSuffix(name, ".yaml") || strings.HasSuffix(name, ".yml")
}
