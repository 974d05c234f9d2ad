// Package persona manages the registry of prompt profiles that mediate
// every conversation. Personas are loaded from JSON files, validated,
// and immutable once registered.
package persona

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

var idPattern = regexp.MustCompile(`^[a-z0-9-]+$`)

// Persona is a named prompt profile.
type Persona struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Description  string   `json:"description"`
	Greeting     string   `json:"greeting"`
	SystemPrompt string   `json:"systemPrompt"`
	Capabilities []string `json:"capabilities,omitempty"`
	// Channel ids the persona is compatible with; empty = all.
	Channels []string `json:"channels,omitempty"`
	Examples []string `json:"examples,omitempty"`
	// Custom marks personas created at runtime rather than loaded from disk.
	Custom bool `json:"custom,omitempty"`

	// Unknown fields from the source file, preserved but ignored.
	Extra map[string]json.RawMessage `json:"-"`
}

// Validate checks the required fields and id shape.
func (p *Persona) Validate() error {
	var missing []string
	for field, value := range map[string]string{
		"id":           p.ID,
		"name":         p.Name,
		"description":  p.Description,
		"greeting":     p.Greeting,
		"systemPrompt": p.SystemPrompt,
	} {
		if strings.TrimSpace(value) == "" {
			missing = append(missing, field)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required fields: %s", strings.Join(missing, ", "))
	}
	if !idPattern.MatchString(p.ID) {
		return fmt.Errorf("id %q must match [a-z0-9-]+", p.ID)
	}
	return nil
}

// SupportsChannel reports whether the persona is compatible with a channel.
func (p *Persona) SupportsChannel(channelID string) bool {
	if len(p.Channels) == 0 {
		return true
	}
	for _, c := range p.Channels {
		if c == channelID || c == "*" {
			return true
		}
	}
	return false
}

// parse decodes a persona file, keeping unknown fields around so a
// round-trip through the registry does not destroy them.
func parse(data []byte) (*Persona, error) {
	var p Persona
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err == nil {
		known := map[string]bool{
			"id": true, "name": true, "description": true, "greeting": true,
			"systemPrompt": true, "capabilities": true, "channels": true,
			"examples": true, "custom": true,
		}
		for k, v := range raw {
			if !known[k] {
				if p.Extra == nil {
					p.Extra = make(map[string]json.RawMessage)
				}
				p.Extra[k] = v
			}
		}
	}
	return &p, nil
}

// DeriveID derives a registry id from a display name: lowercase,
// non-alphanumeric runs collapse to a single dash.
func DeriveID(name string) string {
	var b strings.Builder
	lastDash := true
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastDash = false
		default:
			if !lastDash {
				b.WriteByte('-')
				lastDash = true
			}
		}
	}
	return strings.Trim(b.String(), "-")
}

// Fallback returns the synthetic minimal persona installed when a
// registry would otherwise be empty.
func Fallback() *Persona {
	return &Persona{
		ID:           "vanilla",
		Name:         "Vanilla Assistant",
		Description:  "General-purpose automation assistant",
		Greeting:     "Hello! I can help you turn plain requests into runnable scripts.",
		SystemPrompt: "You are a helpful automation assistant. You write clear, safe, well-documented scripts and explain what they do.",
		Capabilities: []string{"conversation", "script-generation"},
	}
}
