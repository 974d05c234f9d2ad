// Package template is the deterministic, offline script generator. It
// matches a request description against per-platform keyword catalogs
// and instantiates the best template, falling back to a basic skeleton.
package template

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"convoke/internal/logging"
)

// DefaultMatchThreshold is the minimum Jaccard score for a catalog hit.
const DefaultMatchThreshold = 0.3

// Template is one parameterized catalog entry.
type Template struct {
	Name             string
	Keywords         []string
	Filename         string
	Content          string
	Documentation    string
	SafetyHint       string
	EstimatedRuntime string
}

// Script is the generator output.
type Script struct {
	Platform         string `json:"platform"`
	Filename         string `json:"filename"`
	Content          string `json:"content"`
	Documentation    string `json:"documentation"`
	SafetyHint       string `json:"safetyHint"`
	EstimatedRuntime string `json:"estimatedRuntime,omitempty"`
	TemplateName     string `json:"templateName,omitempty"`
}

// Generator holds the catalogs and the match threshold.
type Generator struct {
	catalogs  map[string][]Template
	threshold float64
	log       *zap.Logger
}

// NewGenerator builds a generator with the built-in catalogs.
func NewGenerator(threshold float64) *Generator {
	if threshold <= 0 {
		threshold = DefaultMatchThreshold
	}
	return &Generator{
		catalogs: map[string][]Template{
			"powershell":  powershellCatalog(),
			"applescript": applescriptCatalog(),
			"bash":        bashCatalog(),
		},
		threshold: threshold,
		log:       logging.Named("template"),
	}
}

// Platforms lists the supported platform tags.
func (g *Generator) Platforms() []string {
	return []string{"powershell", "applescript", "bash"}
}

// Supported reports whether platform has a catalog.
func (g *Generator) Supported(platform string) bool {
	_, ok := g.catalogs[platform]
	return ok
}

// Generate never fails: the worst case is the platform's basic skeleton
// with an explanatory comment.
func (g *Generator) Generate(description, platform string) Script {
	catalog, ok := g.catalogs[platform]
	if !ok {
		platform = "bash"
		catalog = g.catalogs[platform]
	}

	tokens := tokenize(description)
	best := -1
	bestScore := 0.0
	for i, tpl := range catalog {
		score := jaccard(tokens, tpl.Keywords)
		// ties break by catalog order: strictly-greater keeps the first
		if score > bestScore {
			best, bestScore = i, score
		}
	}

	if best >= 0 && bestScore >= g.threshold {
		tpl := catalog[best]
		g.log.Debug("template matched",
			zap.String("platform", platform),
			zap.String("template", tpl.Name),
			zap.Float64("score", bestScore))
		return Script{
			Platform:         platform,
			Filename:         tpl.Filename,
			Content:          instantiate(tpl.Content, description),
			Documentation:    tpl.Documentation,
			SafetyHint:       tpl.SafetyHint,
			EstimatedRuntime: tpl.EstimatedRuntime,
			TemplateName:     tpl.Name,
		}
	}

	return g.Skeleton(description, platform, "")
}

// Skeleton emits the platform's basic skeleton. A non-empty note is
// embedded as a comment explaining why the skeleton was chosen.
func (g *Generator) Skeleton(description, platform, note string) Script {
	var content, filename string
	switch platform {
	case "powershell":
		content, filename = powershellSkeleton(description, note), "script.ps1"
	case "applescript":
		content, filename = applescriptSkeleton(description, note), "script.applescript"
	default:
		platform = "bash"
		content, filename = bashSkeleton(description, note), "script.sh"
	}
	return Script{
		Platform:      platform,
		Filename:      filename,
		Content:       content,
		Documentation: fmt.Sprintf("Basic %s skeleton for: %s. Fill in the marked body before use.", platform, description),
		SafetyHint:    "Review the script before running it; the body is a stub.",
	}
}

// tokenize lowercases and splits a description into a word set.
func tokenize(s string) map[string]bool {
	out := make(map[string]bool)
	for _, w := range strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9')
	}) {
		if len(w) > 1 {
			out[w] = true
		}
	}
	return out
}

// jaccard computes |A∩B| / |A∪B| between the description tokens and a
// template's keyword set.
func jaccard(tokens map[string]bool, keywords []string) float64 {
	if len(tokens) == 0 || len(keywords) == 0 {
		return 0
	}
	kw := make(map[string]bool, len(keywords))
	for _, k := range keywords {
		kw[k] = true
	}
	inter := 0
	for t := range tokens {
		if kw[t] {
			inter++
		}
	}
	union := len(tokens) + len(kw) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

// instantiate substitutes template placeholders with sanitized inputs.
func instantiate(content, description string) string {
	return strings.ReplaceAll(content, "{{DESCRIPTION}}", sanitize(description))
}

// sanitize strips characters that could break out of a comment or
// string context in any of the target languages.
func sanitize(s string) string {
	replacer := strings.NewReplacer(
		"\n", " ", "\r", " ", "\"", "'", "`", "'", "$", "", "\\", "/",
	)
	out := replacer.Replace(s)
	if len(out) > 200 {
		out = out[:200]
	}
	return strings.TrimSpace(out)
}
