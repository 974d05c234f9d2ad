package template

import (
	"strings"
	"testing"
)

func TestBackupMatchesPowershell(t *testing.T) {
	g := NewGenerator(0)
	s := g.Generate("backup my documents folder", "powershell")

	if s.Platform != "powershell" {
		t.Errorf("platform = %s", s.Platform)
	}
	if s.TemplateName != "backup" {
		t.Errorf("expected backup template, got %q", s.TemplateName)
	}
	if !strings.Contains(s.Content, "param(") {
		t.Error("powershell output must declare param(")
	}
	if !strings.Contains(s.Content, "try {") {
		t.Error("powershell output must contain try {")
	}
	if s.Documentation == "" || s.SafetyHint == "" {
		t.Error("documentation and safety hint must be populated")
	}
}

func TestNoMatchFallsBackToSkeleton(t *testing.T) {
	g := NewGenerator(0)
	s := g.Generate("frobnicate the quux", "bash")

	if s.TemplateName != "" {
		t.Errorf("expected skeleton, got template %q", s.TemplateName)
	}
	if !strings.Contains(s.Content, "set -euo pipefail") {
		t.Error("bash skeleton must set strict mode")
	}
	if !strings.Contains(s.Content, "trap") {
		t.Error("bash skeleton must install an error trap")
	}
	if s.Content == "" {
		t.Fatal("generator must never return an empty script")
	}
}

func TestUnknownPlatformDefaultsToBash(t *testing.T) {
	g := NewGenerator(0)
	s := g.Generate("anything at all", "cobol")
	if s.Platform != "bash" {
		t.Errorf("expected bash fallback, got %s", s.Platform)
	}
}

func TestAppleScriptSkeletonShape(t *testing.T) {
	g := NewGenerator(0)
	s := g.Skeleton("say hello", "applescript", "")
	if !strings.Contains(s.Content, "on run") {
		t.Error("applescript skeleton must have on run handler")
	}
	if !strings.Contains(s.Content, "on error") {
		t.Error("applescript skeleton must have error handling")
	}
}

func TestJaccardScoring(t *testing.T) {
	tokens := tokenize("backup the documents folder")
	high := jaccard(tokens, []string{"backup", "documents", "folder"})
	low := jaccard(tokens, []string{"service", "restart", "daemon"})
	if high <= low {
		t.Errorf("backup keywords should outscore service keywords: %f vs %f", high, low)
	}
	if jaccard(map[string]bool{}, []string{"x"}) != 0 {
		t.Error("empty token set scores zero")
	}
}

func TestTieBreakByCatalogOrder(t *testing.T) {
	g := NewGenerator(0.01)
	// "files" hits backup and "old" hits disk-cleanup with equal scores;
	// backup comes first in the catalog and must win the tie.
	s := g.Generate("old files", "bash")
	if s.TemplateName != "backup" {
		t.Errorf("tie should break by catalog order, got %q", s.TemplateName)
	}
}

func TestSanitizeStripsBreakouts(t *testing.T) {
	g := NewGenerator(0)
	s := g.Generate("backup \"$(rm -rf /)\" `evil` files folder", "bash")
	if strings.Contains(s.Content, "$(") {
		t.Error("command substitution must be stripped from interpolated description")
	}
	if strings.Contains(s.Content, "`evil`") {
		t.Error("backticks must be stripped")
	}
}
