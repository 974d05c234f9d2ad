package persona

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"convoke/internal/logging"
)

// ErrExists reports an id collision on AddCustom.
var ErrExists = errors.New("persona already exists")

// Rejection records a persona file that failed validation during load.
type Rejection struct {
	File   string `json:"file"`
	Reason string `json:"reason"`
}

// LoadReport summarizes a LoadAll pass.
type LoadReport struct {
	Loaded   int         `json:"loaded"`
	Rejected []Rejection `json:"rejected"`
}

// Registry holds the loaded personas and the current selection.
type Registry struct {
	mu       sync.RWMutex
	personas map[string]*Persona
	current  string
	dir      string

	watcher *fsnotify.Watcher
	done    chan struct{}
	log     *zap.Logger
}

// NewRegistry returns an empty registry. Current() is never nil: until a
// load succeeds the synthetic fallback persona is installed.
func NewRegistry() *Registry {
	r := &Registry{
		personas: make(map[string]*Persona),
		log:      logging.Named("persona"),
	}
	fb := Fallback()
	r.personas[fb.ID] = fb
	r.current = fb.ID
	return r
}

// LoadAll reads every *.json file under dir (one level deep, including a
// custom/ subdirectory), validates each, and registers the valid ones.
// A bad file is reported in the returned LoadReport and skipped; it never
// aborts the load.
func (r *Registry) LoadAll(dir string) (*LoadReport, error) {
	entries, err := collectFiles(dir)
	if err != nil {
		return nil, fmt.Errorf("read persona directory: %w", err)
	}

	report := &LoadReport{}
	loaded := make(map[string]*Persona)

	for _, path := range entries {
		p, err := loadFile(path)
		if err != nil {
			r.log.Warn("rejecting persona file", zap.String("file", path), zap.Error(err))
			report.Rejected = append(report.Rejected, Rejection{File: filepath.Base(path), Reason: err.Error()})
			continue
		}
		if _, dup := loaded[p.ID]; dup {
			r.log.Warn("rejecting duplicate persona id", zap.String("file", path), zap.String("id", p.ID))
			report.Rejected = append(report.Rejected, Rejection{File: filepath.Base(path), Reason: fmt.Sprintf("duplicate id %q", p.ID)})
			continue
		}
		if strings.Contains(filepath.Dir(path), "custom") {
			p.Custom = true
		}
		loaded[p.ID] = p
		report.Loaded++
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.dir = dir
	if len(loaded) == 0 {
		fb := Fallback()
		r.personas = map[string]*Persona{fb.ID: fb}
		r.current = fb.ID
		r.log.Warn("no personas loaded, installed fallback", zap.String("dir", dir))
		return report, nil
	}

	r.personas = loaded
	r.current = defaultSelection(loaded, r.current)
	r.log.Info("personas loaded",
		zap.Int("loaded", report.Loaded),
		zap.Int("rejected", len(report.Rejected)),
		zap.String("current", r.current))
	return report, nil
}

// defaultSelection picks the current persona after a load: keep the
// previous selection when it survived, else vanilla, else default, else
// the first id in lexical order.
func defaultSelection(personas map[string]*Persona, previous string) string {
	if _, ok := personas[previous]; ok && previous != "" {
		return previous
	}
	if _, ok := personas["vanilla"]; ok {
		return "vanilla"
	}
	if _, ok := personas["default"]; ok {
		return "default"
	}
	ids := make([]string, 0, len(personas))
	for id := range personas {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids[0]
}

// List returns all personas sorted by id.
func (r *Registry) List() []*Persona {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Persona, 0, len(r.personas))
	for _, p := range r.personas {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Get returns the persona with the given id.
func (r *Registry) Get(id string) (*Persona, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.personas[id]
	return p, ok
}

// Current returns the active persona. Never nil.
func (r *Registry) Current() *Persona {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if p, ok := r.personas[r.current]; ok {
		return p
	}
	return Fallback()
}

// Switch changes the active persona. Returns false when id is unknown.
func (r *Registry) Switch(id string) (*Persona, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.personas[id]
	if !ok {
		return nil, false
	}
	r.current = id
	r.log.Info("switched persona", zap.String("id", id))
	return p, true
}

// AddCustom validates and installs a runtime-created persona. The id is
// derived from the name when absent. Fails on id collision.
func (r *Registry) AddCustom(p *Persona) (*Persona, error) {
	if p.ID == "" {
		p.ID = DeriveID(p.Name)
	}
	if p.Description == "" {
		p.Description = p.Name
	}
	if p.Greeting == "" {
		p.Greeting = fmt.Sprintf("Hello! I'm %s.", p.Name)
	}
	p.Custom = true
	if err := p.Validate(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.personas[p.ID]; exists {
		return nil, fmt.Errorf("persona %q: %w", p.ID, ErrExists)
	}
	r.personas[p.ID] = p
	r.log.Info("installed custom persona", zap.String("id", p.ID))
	return p, nil
}

// SaveCustom persists a custom persona under <dir>/custom/<id>.json so it
// survives restarts.
func (r *Registry) SaveCustom(p *Persona) error {
	r.mu.RLock()
	dir := r.dir
	r.mu.RUnlock()
	if dir == "" {
		return fmt.Errorf("registry has no backing directory")
	}
	customDir := filepath.Join(dir, "custom")
	if err := os.MkdirAll(customDir, 0o755); err != nil {
		return fmt.Errorf("create custom persona directory: %w", err)
	}
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal persona: %w", err)
	}
	path := filepath.Join(customDir, p.ID+".json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write persona file: %w", err)
	}
	return nil
}

// Watch starts an fsnotify watcher on the registry's directory and
// re-runs LoadAll when persona files change. Stop with Close.
func (r *Registry) Watch() error {
	r.mu.RLock()
	dir := r.dir
	r.mu.RUnlock()
	if dir == "" {
		return fmt.Errorf("LoadAll must run before Watch")
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	if err := w.Add(dir); err != nil {
		w.Close()
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	// The custom subdirectory may not exist yet; ignore the error.
	_ = w.Add(filepath.Join(dir, "custom"))

	r.mu.Lock()
	r.watcher = w
	r.done = make(chan struct{})
	r.mu.Unlock()

	go r.watchLoop(w, dir)
	return nil
}

func (r *Registry) watchLoop(w *fsnotify.Watcher, dir string) {
	for {
		select {
		case <-r.done:
			return
		case ev, ok := <-w.Events:
			if !ok {
				return
			}
			if filepath.Ext(ev.Name) != ".json" {
				continue
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			r.log.Debug("persona directory changed", zap.String("file", ev.Name), zap.String("op", ev.Op.String()))
			if _, err := r.LoadAll(dir); err != nil {
				r.log.Warn("persona reload failed", zap.Error(err))
			}
		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			r.log.Warn("persona watcher error", zap.Error(err))
		}
	}
}

// Close stops the directory watcher if one is running.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.watcher == nil {
		return nil
	}
	close(r.done)
	err := r.watcher.Close()
	r.watcher = nil
	return err
}

func collectFiles(dir string) ([]string, error) {
	var files []string
	top, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	for _, e := range top {
		if e.IsDir() {
			if e.Name() != "custom" {
				continue
			}
			sub, err := os.ReadDir(filepath.Join(dir, "custom"))
			if err != nil {
				continue
			}
			for _, s := range sub {
				if !s.IsDir() && filepath.Ext(s.Name()) == ".json" {
					files = append(files, filepath.Join(dir, "custom", s.Name()))
				}
			}
			continue
		}
		if filepath.Ext(e.Name()) == ".json" {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(files)
	return files, nil
}

func loadFile(path string) (*Persona, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	p, err := parse(data)
	if err != nil {
		return nil, err
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}
