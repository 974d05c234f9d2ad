package prompt

import (
	"strings"
	"testing"

	"convoke/internal/channel"
	"convoke/internal/memory"
	"convoke/internal/persona"
)

func testAssembler() *Assembler {
	return NewAssembler(Params{Temperature: 0.1, MaxTokens: 2048}, 4)
}

func testPersona() *persona.Persona {
	return &persona.Persona{
		ID: "tester", Name: "Tester", Description: "d", Greeting: "g",
		SystemPrompt: "You are the tester persona.",
	}
}

func TestAssembleChat(t *testing.T) {
	env := testAssembler().Assemble(Input{
		Kind:     KindChat,
		Persona:  testPersona(),
		UserText: "hello there",
	})
	if !strings.Contains(env.SystemPrompt, "tester persona") {
		t.Error("persona system prompt missing")
	}
	if len(env.Messages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(env.Messages))
	}
	if env.Messages[0].Role != "user" || env.Messages[0].Content != "hello there" {
		t.Errorf("unexpected final turn: %+v", env.Messages[0])
	}
	if env.Params.MaxTokens != 2048 {
		t.Errorf("defaults not applied: %+v", env.Params)
	}
}

func TestAssembleGenerateIncludesPlatformBlock(t *testing.T) {
	for platform, marker := range map[string]string{
		"powershell":  "param()",
		"applescript": "on run",
		"bash":        "set -euo pipefail",
	} {
		env := testAssembler().Assemble(Input{
			Kind: KindGenerate, Persona: testPersona(),
			Platform: platform, UserText: "backup files",
		})
		if !strings.Contains(env.SystemPrompt, marker) {
			t.Errorf("%s practices block missing marker %q", platform, marker)
		}
		if !strings.Contains(env.SystemPrompt, "fenced code block") {
			t.Errorf("%s output format missing", platform)
		}
	}
}

func TestAssembleImproveEmbedsScript(t *testing.T) {
	env := testAssembler().Assemble(Input{
		Kind: KindImprove, Persona: testPersona(), Platform: "bash",
		PriorScript: "#!/bin/bash\necho hi\n", Feedback: "add logging",
	})
	final := env.Messages[len(env.Messages)-1].Content
	if !strings.Contains(final, "FEEDBACK: add logging") {
		t.Error("feedback missing from final turn")
	}
	if !strings.Contains(final, "echo hi") {
		t.Error("prior script must be embedded verbatim")
	}
}

func TestAssembleValidateRequestsVerdict(t *testing.T) {
	env := testAssembler().Assemble(Input{
		Kind: KindValidate, Persona: testPersona(), Platform: "powershell",
		UserText: "Write-Host hi",
	})
	if !strings.Contains(env.SystemPrompt, "score from 0 to 100") {
		t.Error("structured verdict instruction missing")
	}
}

func TestHistoryWindow(t *testing.T) {
	var hist []memory.Message
	for i := 0; i < 10; i++ {
		role := memory.RoleUser
		if i%2 == 1 {
			role = memory.RoleAssistant
		}
		hist = append(hist, memory.Message{Role: role, Content: strings.Repeat("x", i+1)})
	}
	// include a system message that must be filtered out
	hist = append(hist, memory.Message{Role: memory.RoleSystem, Content: "internal"})

	env := testAssembler().Assemble(Input{
		Kind: KindChat, Persona: testPersona(), History: hist, UserText: "q",
	})
	// context window 4 + final user turn
	if len(env.Messages) > 5 {
		t.Errorf("history window exceeded: %d messages", len(env.Messages))
	}
	for _, m := range env.Messages[:len(env.Messages)-1] {
		if m.Role != "user" && m.Role != "assistant" {
			t.Errorf("unexpected role in history: %s", m.Role)
		}
	}
	if env.Messages[len(env.Messages)-1].Content != "q" {
		t.Error("final user turn must come last")
	}
}

func TestChannelDirectives(t *testing.T) {
	reg := channel.NewRegistry()
	discord, _ := reg.Get("discord")

	env := testAssembler().Assemble(Input{
		Kind: KindChat, Persona: testPersona(), Channel: discord, UserText: "hi",
	})
	if !strings.Contains(env.SystemPrompt, "Discord") {
		t.Error("channel name missing from directives")
	}
	if !strings.Contains(env.SystemPrompt, "2000") {
		t.Error("message limit missing from directives")
	}

	web, _ := reg.Get("web")
	envWeb := testAssembler().Assemble(Input{
		Kind: KindChat, Persona: testPersona(), Channel: web, UserText: "hi",
	})
	if strings.Contains(envWeb.SystemPrompt, "Output is delivered") {
		t.Error("web channel block should be minimal")
	}
}
