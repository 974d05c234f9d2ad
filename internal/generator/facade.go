// Package generator orchestrates prompt assembly, the LLM gateway, and
// the offline template fallback into the script production facade.
package generator

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"convoke/internal/channel"
	"convoke/internal/llm"
	"convoke/internal/logging"
	"convoke/internal/memory"
	"convoke/internal/persona"
	"convoke/internal/prompt"
	"convoke/internal/safety"
	"convoke/internal/template"
)

// Source of a produced script.
type Source string

const (
	SourceLLM      Source = "llm"
	SourceTemplate Source = "template"
)

// Script is the facade output.
type Script struct {
	Platform      string        `json:"platform"`
	Filename      string        `json:"filename"`
	Content       string        `json:"content"`
	Documentation string        `json:"documentation,omitempty"`
	Source        Source        `json:"source"`
	Provider      string        `json:"provider,omitempty"`
	SafetyReport  safety.Report `json:"safetyReport"`
}

// ValidationReport is the structured verdict of Validate.
type ValidationReport struct {
	Score           int            `json:"score"`
	Issues          []safety.Issue `json:"issues"`
	Recommendations []string       `json:"recommendations"`
	Source          Source         `json:"source"`
}

// Gateway is the slice of the LLM gateway the facade needs.
type Gateway interface {
	Generate(ctx context.Context, env prompt.Envelope) (llm.Completion, error)
}

// Facade wires the assembler, gateway, templates, and validator.
type Facade struct {
	assembler *prompt.Assembler
	gateway   Gateway
	templates *template.Generator
	validator *safety.Validator
	log       *zap.Logger
}

// New builds the facade.
func New(assembler *prompt.Assembler, gateway Gateway, templates *template.Generator, validator *safety.Validator) *Facade {
	return &Facade{
		assembler: assembler,
		gateway:   gateway,
		templates: templates,
		validator: validator,
		log:       logging.Named("generator"),
	}
}

// SupportedPlatform reports whether the platform tag is recognized.
func (f *Facade) SupportedPlatform(platform string) bool {
	return f.templates.Supported(platform)
}

// Generate produces a script for the description, preferring the LLM
// and falling back to templates. Never returns an empty script.
func (f *Facade) Generate(ctx context.Context, description, platform string, p *persona.Persona, ch *channel.Channel, history []memory.Message) Script {
	env := f.assembler.Assemble(prompt.Input{
		Kind:     prompt.KindGenerate,
		Persona:  p,
		Channel:  ch,
		Platform: platform,
		History:  history,
		UserText: description,
	})

	if completion, err := f.gateway.Generate(ctx, env); err == nil {
		if content := extractCode(completion.Text, platform); content != "" {
			return f.finish(Script{
				Platform: platform,
				Filename: defaultFilename(platform),
				Content:  content,
				Source:   SourceLLM,
				Provider: completion.ProviderName,
			})
		}
		f.log.Warn("no usable code block in completion, falling back to template",
			zap.String("provider", completion.ProviderName))
	} else {
		f.log.Info("llm generation failed, falling back to template",
			zap.String("kind", string(llm.KindOf(err))))
	}

	tpl := f.templates.Generate(description, platform)
	return f.finish(Script{
		Platform:      tpl.Platform,
		Filename:      tpl.Filename,
		Content:       tpl.Content,
		Documentation: tpl.Documentation,
		Source:        SourceTemplate,
	})
}

// Improve rewrites a script per feedback; the LLM is required, there is
// no template fallback for improvement.
func (f *Facade) Improve(ctx context.Context, script, feedback, platform string, p *persona.Persona) (Script, error) {
	env := f.assembler.Assemble(prompt.Input{
		Kind:        prompt.KindImprove,
		Persona:     p,
		Platform:    platform,
		PriorScript: script,
		Feedback:    feedback,
	})

	completion, err := f.gateway.Generate(ctx, env)
	if err != nil {
		return Script{}, fmt.Errorf("improve: %w", err)
	}
	content := extractCode(completion.Text, platform)
	if content == "" {
		return Script{}, &llm.Error{Kind: llm.KindProtocol, Provider: completion.ProviderName, Err: fmt.Errorf("no code block in improvement response")}
	}
	return f.finish(Script{
		Platform: platform,
		Filename: defaultFilename(platform),
		Content:  content,
		Source:   SourceLLM,
		Provider: completion.ProviderName,
	}), nil
}

// llmVerdict is the JSON shape requested from the model by validation
// prompts.
type llmVerdict struct {
	Score  int `json:"score"`
	Issues []struct {
		Severity string `json:"severity"`
		Message  string `json:"message"`
		Line     int    `json:"line"`
	} `json:"issues"`
	Recommendations []string `json:"recommendations"`
}

// Validate reviews a script. When the LLM is unavailable it degrades to
// the syntactic report: safety findings plus lint heuristics.
func (f *Facade) Validate(ctx context.Context, script, platform string, p *persona.Persona) ValidationReport {
	env := f.assembler.Assemble(prompt.Input{
		Kind:     prompt.KindValidate,
		Persona:  p,
		Platform: platform,
		UserText: script,
	})

	if completion, err := f.gateway.Generate(ctx, env); err == nil {
		if report, ok := parseVerdict(completion.Text); ok {
			report.Source = SourceLLM
			return report
		}
		// unstructured review text still carries value
		return ValidationReport{
			Score:           f.validator.Validate(script, platform, safety.PolicyStandard).Score,
			Issues:          safety.LintHeuristics(script, platform),
			Recommendations: []string{strings.TrimSpace(completion.Text)},
			Source:          SourceLLM,
		}
	}

	return f.syntacticReport(script, platform)
}

func (f *Facade) syntacticReport(script, platform string) ValidationReport {
	safetyReport := f.validator.Validate(script, platform, safety.PolicyStandard)
	issues := append(safetyReport.Issues, safety.LintHeuristics(script, platform)...)

	recs := make([]string, 0, len(issues))
	for _, i := range issues {
		if i.Severity != safety.SeverityInfo {
			recs = append(recs, "address: "+i.Message)
		}
	}
	return ValidationReport{
		Score:           safetyReport.Score,
		Issues:          issues,
		Recommendations: recs,
		Source:          SourceTemplate,
	}
}

// parseVerdict pulls a JSON verdict out of completion text, tolerating
// a fenced json block around it.
func parseVerdict(text string) (ValidationReport, bool) {
	candidate := text
	if block := extractCode(text, "json"); block != "" {
		candidate = block
	}
	start := strings.Index(candidate, "{")
	end := strings.LastIndex(candidate, "}")
	if start < 0 || end <= start {
		return ValidationReport{}, false
	}

	var v llmVerdict
	if err := json.Unmarshal([]byte(candidate[start:end+1]), &v); err != nil {
		return ValidationReport{}, false
	}

	report := ValidationReport{Score: v.Score, Recommendations: v.Recommendations}
	if report.Score < 0 {
		report.Score = 0
	}
	if report.Score > 100 {
		report.Score = 100
	}
	for _, i := range v.Issues {
		sev := safety.Severity(i.Severity)
		switch sev {
		case safety.SeverityInfo, safety.SeverityWarn, safety.SeverityError:
		default:
			sev = safety.SeverityInfo
		}
		report.Issues = append(report.Issues, safety.Issue{Severity: sev, Message: i.Message, Line: i.Line})
	}
	return report, true
}

// finish post-processes content and attaches the dry-run safety report.
func (f *Facade) finish(s Script) Script {
	s.Content = postprocess(s.Content, s.Platform)
	s.SafetyReport = f.validator.Validate(s.Content, s.Platform, safety.PolicyStandard)
	return s
}

var fencePattern = regexp.MustCompile("(?s)```([a-zA-Z0-9_-]*)[ \t]*\n(.*?)```")

// extractCode returns the first fenced code block matching the platform
// tag, falling back to the first bare fence, else empty.
func extractCode(text, platform string) string {
	matches := fencePattern.FindAllStringSubmatch(text, -1)
	var bare string
	for _, m := range matches {
		tag, body := strings.ToLower(m[1]), m[2]
		if tag == strings.ToLower(platform) {
			return strings.TrimSpace(body)
		}
		if bare == "" && tag == "" {
			bare = strings.TrimSpace(body)
		}
	}
	if bare != "" {
		return bare
	}
	// Responses sometimes skip fences entirely; accept text that looks
	// like a script rather than prose.
	trimmed := strings.TrimSpace(text)
	if strings.HasPrefix(trimmed, "#!") || strings.HasPrefix(trimmed, "param(") || strings.HasPrefix(trimmed, "on run") {
		return trimmed
	}
	return ""
}

// postprocess normalizes line endings, strips trailing whitespace,
// guarantees a trailing newline, and prepends the generated-by header.
func postprocess(content, platform string) string {
	content = strings.ReplaceAll(content, "\r\n", "\n")
	lines := strings.Split(content, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimRight(l, " \t")
	}
	content = strings.Join(lines, "\n")
	content = strings.TrimRight(content, "\n") + "\n"

	header := headerFor(platform)
	if strings.Contains(content, "generated by convoke") {
		return content
	}

	// keep the shebang on line one
	if strings.HasPrefix(content, "#!") {
		if idx := strings.Index(content, "\n"); idx >= 0 {
			return content[:idx+1] + header + content[idx+1:]
		}
	}
	return header + content
}

func headerFor(platform string) string {
	if platform == "applescript" {
		return "-- generated by convoke\n"
	}
	return "# generated by convoke\n"
}

func defaultFilename(platform string) string {
	switch platform {
	case "powershell":
		return "script.ps1"
	case "applescript":
		return "script.applescript"
	default:
		return "script.sh"
	}
}
