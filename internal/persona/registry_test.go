package persona

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

func writePersona(t *testing.T, dir, file string, p map[string]any) {
	t.Helper()
	data, err := json.Marshal(p)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, file), data, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func validPersona(id string) map[string]any {
	return map[string]any{
		"id":           id,
		"name":         "Persona " + id,
		"description":  "test persona",
		"greeting":     "hi",
		"systemPrompt": "You are a test persona.",
	}
}

func TestLoadAll_FailSoft(t *testing.T) {
	dir := t.TempDir()
	writePersona(t, dir, "good.json", validPersona("good"))
	writePersona(t, dir, "missing.json", map[string]any{"id": "missing", "name": "x"})
	if err := os.WriteFile(filepath.Join(dir, "broken.json"), []byte("{nope"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	r := NewRegistry()
	report, err := r.LoadAll(dir)
	if err != nil {
		t.Fatalf("LoadAll: %v", err)
	}
	if report.Loaded != 1 {
		t.Errorf("expected 1 loaded, got %d", report.Loaded)
	}
	if len(report.Rejected) != 2 {
		t.Errorf("expected 2 rejections, got %d: %+v", len(report.Rejected), report.Rejected)
	}
	if _, ok := r.Get("good"); !ok {
		t.Error("good persona should be registered")
	}
	if _, ok := r.Get("missing"); ok {
		t.Error("invalid persona must not be registered")
	}
}

func TestDefaultSelection(t *testing.T) {
	dir := t.TempDir()
	writePersona(t, dir, "b.json", validPersona("bravo"))
	writePersona(t, dir, "a.json", validPersona("alpha"))

	r := NewRegistry()
	if _, err := r.LoadAll(dir); err != nil {
		t.Fatalf("LoadAll: %v", err)
	}
	if got := r.Current().ID; got != "alpha" {
		t.Errorf("expected first lexical id alpha, got %s", got)
	}

	writePersona(t, dir, "v.json", validPersona("vanilla"))
	r2 := NewRegistry()
	if _, err := r2.LoadAll(dir); err != nil {
		t.Fatalf("LoadAll: %v", err)
	}
	if got := r2.Current().ID; got != "vanilla" {
		t.Errorf("expected vanilla preferred, got %s", got)
	}
}

func TestEmptyRegistryInstallsFallback(t *testing.T) {
	r := NewRegistry()
	if _, err := r.LoadAll(t.TempDir()); err != nil {
		t.Fatalf("LoadAll: %v", err)
	}
	cur := r.Current()
	if cur == nil || cur.SystemPrompt == "" {
		t.Fatal("Current must never be nil or empty after load of empty dir")
	}
}

func TestSwitch(t *testing.T) {
	dir := t.TempDir()
	writePersona(t, dir, "a.json", validPersona("alpha"))
	writePersona(t, dir, "b.json", validPersona("bravo"))

	r := NewRegistry()
	if _, err := r.LoadAll(dir); err != nil {
		t.Fatalf("LoadAll: %v", err)
	}
	if _, ok := r.Switch("bravo"); !ok {
		t.Fatal("switch to bravo should succeed")
	}
	if r.Current().ID != "bravo" {
		t.Errorf("current should be bravo, got %s", r.Current().ID)
	}
	if _, ok := r.Switch("ghost"); ok {
		t.Error("switch to unknown id must fail")
	}
	if r.Current().ID != "bravo" {
		t.Error("failed switch must not change selection")
	}
}

func TestAddCustom(t *testing.T) {
	r := NewRegistry()

	p, err := r.AddCustom(&Persona{Name: "Deploy Bot!", SystemPrompt: "You deploy things."})
	if err != nil {
		t.Fatalf("AddCustom: %v", err)
	}
	if p.ID != "deploy-bot" {
		t.Errorf("expected derived id deploy-bot, got %s", p.ID)
	}
	if !p.Custom {
		t.Error("custom flag must be set")
	}

	if _, err := r.AddCustom(&Persona{ID: "deploy-bot", Name: "Dup", SystemPrompt: "x"}); err == nil {
		t.Error("duplicate id must be rejected")
	}

	if _, err := r.AddCustom(&Persona{Name: "No Prompt"}); err == nil {
		t.Error("missing systemPrompt must be rejected")
	}
}

func TestRoundTrip(t *testing.T) {
	dir := t.TempDir()
	in := validPersona("round-trip")
	in["capabilities"] = []string{"a", "b"}
	in["channels"] = []string{"web"}
	in["examples"] = []string{"do the thing"}
	in["futureField"] = map[string]any{"kept": true}
	writePersona(t, dir, "rt.json", in)

	r := NewRegistry()
	if _, err := r.LoadAll(dir); err != nil {
		t.Fatalf("LoadAll: %v", err)
	}
	got, ok := r.Get("round-trip")
	if !ok {
		t.Fatal("persona not found")
	}

	want := &Persona{
		ID:           "round-trip",
		Name:         "Persona round-trip",
		Description:  "test persona",
		Greeting:     "hi",
		SystemPrompt: "You are a test persona.",
		Capabilities: []string{"a", "b"},
		Channels:     []string{"web"},
		Examples:     []string{"do the thing"},
	}
	if diff := cmp.Diff(want, got, cmpopts.IgnoreFields(Persona{}, "Extra")); diff != "" {
		t.Errorf("persona round-trip mismatch (-want +got):\n%s", diff)
	}
	if _, ok := got.Extra["futureField"]; !ok {
		t.Error("unknown fields should be preserved")
	}
}

func TestDeriveID(t *testing.T) {
	cases := map[string]string{
		"Deploy Bot!":      "deploy-bot",
		"  spaces  here  ": "spaces-here",
		"Already-Fine":     "already-fine",
		"A__B__C":          "a-b-c",
	}
	for in, want := range cases {
		if got := DeriveID(in); got != want {
			t.Errorf("DeriveID(%q) = %q, want %q", in, got, want)
		}
	}
}
