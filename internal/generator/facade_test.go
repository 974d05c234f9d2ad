package generator

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"convoke/internal/llm"
	"convoke/internal/prompt"
	"convoke/internal/safety"
	"convoke/internal/template"
)

type stubGateway struct {
	text string
	err  error
}

func (s *stubGateway) Generate(ctx context.Context, env prompt.Envelope) (llm.Completion, error) {
	if s.err != nil {
		return llm.Completion{}, s.err
	}
	return llm.Completion{Text: s.text, ProviderName: "stub"}, nil
}

func newFacade(gw Gateway) *Facade {
	return New(
		prompt.NewAssembler(prompt.Params{Temperature: 0.1, MaxTokens: 512}, 10),
		gw,
		template.NewGenerator(0),
		safety.NewValidator(),
	)
}

func TestGenerateFromLLM(t *testing.T) {
	gw := &stubGateway{text: "Here you go:\n```bash\n#!/usr/bin/env bash\necho hi\n```\nEnjoy!"}
	s := newFacade(gw).Generate(context.Background(), "say hi", "bash", nil, nil, nil)

	require.Equal(t, SourceLLM, s.Source)
	require.Equal(t, "stub", s.Provider)
	require.Contains(t, s.Content, "echo hi")
	require.NotContains(t, s.Content, "Enjoy!")
	require.Contains(t, s.Content, "generated by convoke")
	require.True(t, strings.HasSuffix(s.Content, "\n"))
	// shebang stays on line one
	require.True(t, strings.HasPrefix(s.Content, "#!/usr/bin/env bash\n"))
}

func TestGenerateFallsBackWhenLLMDown(t *testing.T) {
	gw := &stubGateway{err: &llm.Error{Kind: llm.KindUnavailable, Provider: "all"}}
	s := newFacade(gw).Generate(context.Background(), "backup my documents folder", "powershell", nil, nil, nil)

	require.Equal(t, SourceTemplate, s.Source)
	require.Equal(t, "powershell", s.Platform)
	require.NotEmpty(t, s.Content)
	require.Contains(t, s.Content, "param(")
	require.Contains(t, s.Content, "try {")
}

func TestGenerateFallsBackOnEmptyExtraction(t *testing.T) {
	gw := &stubGateway{text: "Sorry, I cannot help with that."}
	s := newFacade(gw).Generate(context.Background(), "backup files folder", "bash", nil, nil, nil)
	require.Equal(t, SourceTemplate, s.Source)
	require.NotEmpty(t, s.Content)
}

func TestGenerateAttachesSafetyReport(t *testing.T) {
	gw := &stubGateway{text: "```bash\nrm -rf /\n```"}
	s := newFacade(gw).Generate(context.Background(), "clean up", "bash", nil, nil, nil)
	require.Equal(t, safety.DecisionDeny, s.SafetyReport.Decision)
}

func TestImproveRequiresLLM(t *testing.T) {
	gw := &stubGateway{err: &llm.Error{Kind: llm.KindUnavailable, Provider: "all"}}
	_, err := newFacade(gw).Improve(context.Background(), "echo hi", "add logging", "bash", nil)
	require.Error(t, err)

	gw2 := &stubGateway{text: "```bash\necho hi\nlogger improved\n```"}
	s, err := newFacade(gw2).Improve(context.Background(), "echo hi", "add logging", "bash", nil)
	require.NoError(t, err)
	require.Contains(t, s.Content, "logger improved")
}

func TestValidateParsesStructuredVerdict(t *testing.T) {
	gw := &stubGateway{text: "```json\n{\"score\": 72, \"issues\": [{\"severity\": \"warn\", \"message\": \"no logging\", \"line\": 3}], \"recommendations\": [\"add logging\"]}\n```"}
	r := newFacade(gw).Validate(context.Background(), "echo hi", "bash", nil)

	require.Equal(t, SourceLLM, r.Source)
	require.Equal(t, 72, r.Score)
	require.Len(t, r.Issues, 1)
	require.Equal(t, safety.SeverityWarn, r.Issues[0].Severity)
	require.Equal(t, []string{"add logging"}, r.Recommendations)
}

func TestValidateFallsBackToSyntacticReport(t *testing.T) {
	gw := &stubGateway{err: &llm.Error{Kind: llm.KindUnavailable, Provider: "all"}}
	r := newFacade(gw).Validate(context.Background(), "echo hi", "bash", nil)

	require.Equal(t, SourceTemplate, r.Source)
	var sawLint bool
	for _, i := range r.Issues {
		if strings.Contains(i.Message, "set -e") {
			sawLint = true
		}
	}
	require.True(t, sawLint, "lint heuristics should surface missing error trap")
}

func TestExtractCode(t *testing.T) {
	cases := []struct {
		in, platform, want string
	}{
		{"```bash\necho a\n```", "bash", "echo a"},
		{"```powershell\nWrite-Host x\n```\n```bash\necho b\n```", "bash", "echo b"},
		{"```\nplain fence\n```", "bash", "plain fence"},
		{"param(\n)\ntry { } catch { }", "powershell", "param(\n)\ntry { } catch { }"},
		{"no code here", "bash", ""},
	}
	for _, c := range cases {
		if got := extractCode(c.in, c.platform); got != c.want {
			t.Errorf("extractCode(%q, %s) = %q, want %q", c.in, c.platform, got, c.want)
		}
	}
}

func TestPostprocessNormalizes(t *testing.T) {
	out := postprocess("echo a  \r\necho b\t\n\n\n", "bash")
	require.Equal(t, "# generated by convoke\necho a\necho b\n", out)
}
