package channel

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	"convoke/internal/logging"
)

// ValidationResult is the outcome of ValidateMessage.
type ValidationResult struct {
	OK    bool `json:"ok"`
	Limit int  `json:"limit,omitempty"`
}

// Stats summarizes the registry for telemetry.
type Stats struct {
	TotalChannels         int      `json:"totalChannels"`
	TotalCapabilities     int      `json:"totalCapabilities"`
	SupportedCapabilities int      `json:"supportedCapabilities"`
	CurrentChannel        string   `json:"currentChannel"`
	Channels              []string `json:"channels"`
}

// Registry holds the channel catalog and the current selection.
type Registry struct {
	mu       sync.RWMutex
	channels map[string]*Channel
	current  string
	log      *zap.Logger
}

// NewRegistry returns a registry seeded with the built-in catalog,
// current channel "web".
func NewRegistry() *Registry {
	r := &Registry{
		channels: make(map[string]*Channel),
		current:  "web",
		log:      logging.Named("channel"),
	}
	for _, c := range Builtins() {
		r.channels[c.ID] = c
	}
	return r
}

// LoadDir overlays channel definitions from *.json files in dir on top
// of the built-ins. Invalid files are logged and skipped.
func (r *Registry) LoadDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read channel directory: %w", err)
	}

	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".json" {
			continue
		}
		path := filepath.Join(dir, e.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			r.log.Warn("skipping channel file", zap.String("file", path), zap.Error(err))
			continue
		}
		var c Channel
		if err := json.Unmarshal(data, &c); err != nil {
			r.log.Warn("skipping invalid channel file", zap.String("file", path), zap.Error(err))
			continue
		}
		if strings.TrimSpace(c.ID) == "" || strings.TrimSpace(c.Name) == "" {
			r.log.Warn("skipping channel with missing id/name", zap.String("file", path))
			continue
		}
		r.mu.Lock()
		r.channels[c.ID] = &c
		r.mu.Unlock()
	}
	return nil
}

// List returns all channels sorted by id.
func (r *Registry) List() []*Channel {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Channel, 0, len(r.channels))
	for _, c := range r.channels {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Get returns the channel with the given id.
func (r *Registry) Get(id string) (*Channel, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.channels[id]
	return c, ok
}

// Current returns the active channel; falls back to web.
func (r *Registry) Current() *Channel {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if c, ok := r.channels[r.current]; ok {
		return c
	}
	return r.channels["web"]
}

// Switch changes the active channel. Returns false when id is unknown.
func (r *Registry) Switch(id string) (*Channel, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.channels[id]
	if !ok {
		return nil, false
	}
	r.current = id
	r.log.Info("switched channel", zap.String("id", id))
	return c, true
}

// Capabilities returns the capability map for a channel, nil when
// unknown.
func (r *Registry) Capabilities(id string) map[string]Capability {
	c, ok := r.Get(id)
	if !ok {
		return nil
	}
	return c.Capabilities
}

// ValidateMessage checks text against the channel's message constraints.
func (r *Registry) ValidateMessage(id, text string) ValidationResult {
	c, ok := r.Get(id)
	if !ok {
		return ValidationResult{OK: true}
	}
	if limit := c.Constraints.MaxMessageLength; limit > 0 && len(text) > limit {
		return ValidationResult{OK: false, Limit: limit}
	}
	return ValidationResult{OK: true}
}

// ValidateArtifact reports whether the channel accepts the artifact type.
func (r *Registry) ValidateArtifact(id, artifactType string) bool {
	c, ok := r.Get(id)
	if !ok {
		return false
	}
	return c.SupportsArtifact(artifactType)
}

// Stats returns registry counters for the system status endpoint.
func (r *Registry) Stats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s := Stats{
		TotalChannels:  len(r.channels),
		CurrentChannel: r.current,
	}
	for id, c := range r.channels {
		s.Channels = append(s.Channels, id)
		s.TotalCapabilities += len(c.Capabilities)
		for _, cap := range c.Capabilities {
			if cap.Supported {
				s.SupportedCapabilities++
			}
		}
	}
	sort.Strings(s.Channels)
	return s
}
