package channel

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestBuiltinsRegistered(t *testing.T) {
	r := NewRegistry()
	for _, id := range []string{"web", "slack", "teams", "discord", "twitch", "whatsapp", "apple-business-chat"} {
		if _, ok := r.Get(id); !ok {
			t.Errorf("builtin channel %s missing", id)
		}
	}
	if r.Current().ID != "web" {
		t.Errorf("default current should be web, got %s", r.Current().ID)
	}
}

func TestSwitchAndCapabilities(t *testing.T) {
	r := NewRegistry()
	if _, ok := r.Switch("discord"); !ok {
		t.Fatal("switch to discord should succeed")
	}
	if r.Current().ID != "discord" {
		t.Errorf("current should be discord, got %s", r.Current().ID)
	}
	if _, ok := r.Switch("irc"); ok {
		t.Error("switch to unknown channel must fail")
	}

	caps := r.Capabilities("discord")
	if caps == nil {
		t.Fatal("discord capabilities missing")
	}
	if !caps["embeds"].Supported {
		t.Error("discord embeds should be supported")
	}
	if caps["voice"].Supported {
		t.Error("discord voice should be unsupported")
	}
	if r.Capabilities("irc") != nil {
		t.Error("unknown channel capabilities should be nil")
	}
}

func TestValidateMessage(t *testing.T) {
	r := NewRegistry()

	long := strings.Repeat("a", 2001)
	res := r.ValidateMessage("discord", long)
	if res.OK {
		t.Error("2001 chars should exceed discord limit")
	}
	if res.Limit != 2000 {
		t.Errorf("expected limit 2000, got %d", res.Limit)
	}

	if res := r.ValidateMessage("discord", "short"); !res.OK {
		t.Error("short message should pass")
	}
	// web declares no limit
	if res := r.ValidateMessage("web", long); !res.OK {
		t.Error("web has no message limit")
	}
}

func TestValidateArtifact(t *testing.T) {
	r := NewRegistry()
	if !r.ValidateArtifact("slack", "blocks") {
		t.Error("slack should accept blocks")
	}
	if r.ValidateArtifact("slack", "embeds") {
		t.Error("slack should not accept embeds")
	}
	if r.ValidateArtifact("irc", "blocks") {
		t.Error("unknown channel accepts nothing")
	}
}

func TestLoadDirOverlay(t *testing.T) {
	dir := t.TempDir()
	custom := Channel{
		ID:            "sms",
		Name:          "SMS",
		Description:   "Plain text messaging",
		ArtifactTypes: []string{"text"},
		Constraints:   Constraints{MaxMessageLength: 160},
	}
	data, _ := json.Marshal(custom)
	if err := os.WriteFile(filepath.Join(dir, "sms.json"), data, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "bad.json"), []byte("{"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	r := NewRegistry()
	if err := r.LoadDir(dir); err != nil {
		t.Fatalf("LoadDir: %v", err)
	}
	c, ok := r.Get("sms")
	if !ok {
		t.Fatal("sms channel should be loaded")
	}
	if c.Constraints.MaxMessageLength != 160 {
		t.Errorf("expected limit 160, got %d", c.Constraints.MaxMessageLength)
	}

	stats := r.Stats()
	if stats.TotalChannels != 8 {
		t.Errorf("expected 8 channels, got %d", stats.TotalChannels)
	}
}
