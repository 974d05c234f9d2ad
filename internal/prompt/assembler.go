// Package prompt assembles provider-agnostic prompt envelopes from
// persona, channel, platform, and conversation context.
package prompt

import (
	"fmt"
	"strings"

	"convoke/internal/channel"
	"convoke/internal/memory"
	"convoke/internal/persona"
)

// Kind selects the prompt shape.
type Kind string

const (
	KindChat     Kind = "chat"
	KindGenerate Kind = "generate"
	KindImprove  Kind = "improve"
	KindValidate Kind = "validate"
)

// Params are the sampling parameters carried with an envelope.
type Params struct {
	Temperature float64  `json:"temperature"`
	MaxTokens   int      `json:"maxTokens"`
	TimeoutMs   int      `json:"timeoutMs,omitempty"`
	Stop        []string `json:"stop,omitempty"`
}

// TurnMessage is one prior turn included for context.
type TurnMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Envelope is the assembled prompt package handed to a provider.
type Envelope struct {
	SystemPrompt      string        `json:"systemPrompt"`
	Messages          []TurnMessage `json:"messages"`
	Params            Params        `json:"params"`
	PreferredProvider string        `json:"preferredProvider,omitempty"`
}

// Assembler composes envelopes. Defaults apply when fields are zero.
type Assembler struct {
	Defaults      Params
	ContextWindow int
}

// NewAssembler builds an assembler with the given sampling defaults.
func NewAssembler(defaults Params, contextWindow int) *Assembler {
	if contextWindow <= 0 {
		contextWindow = 10
	}
	return &Assembler{Defaults: defaults, ContextWindow: contextWindow}
}

// Input carries everything an envelope composition may draw from.
type Input struct {
	Kind     Kind
	Persona  *persona.Persona
	Channel  *channel.Channel
	Platform string // powershell, applescript, bash; generate/improve/validate only
	History  []memory.Message

	// UserText is the final user turn: the chat message, the generation
	// description, or the script to validate.
	UserText string

	// Improve-only fields.
	PriorScript string
	Feedback    string
}

// Assemble builds the envelope for the given input.
func (a *Assembler) Assemble(in Input) Envelope {
	var sys strings.Builder

	if in.Persona != nil && in.Persona.SystemPrompt != "" {
		sys.WriteString(in.Persona.SystemPrompt)
	} else {
		sys.WriteString(persona.Fallback().SystemPrompt)
	}

	if block := channelDirectives(in.Channel); block != "" {
		sys.WriteString("\n\n")
		sys.WriteString(block)
	}

	switch in.Kind {
	case KindGenerate:
		sys.WriteString("\n\n")
		sys.WriteString(platformPractices(in.Platform))
		sys.WriteString("\n\n")
		sys.WriteString(outputFormat(in.Platform))
	case KindImprove:
		sys.WriteString("\n\n")
		sys.WriteString(fmt.Sprintf(
			"You are improving an existing %s script based on feedback. Analyze the script, address the feedback, and return a complete replacement script. Preserve the script's core behavior unless the feedback says otherwise.",
			platformLabel(in.Platform)))
		sys.WriteString("\n\n")
		sys.WriteString(outputFormat(in.Platform))
	case KindValidate:
		sys.WriteString("\n\n")
		sys.WriteString(fmt.Sprintf(
			"You are reviewing a %s script. Respond with a structured verdict: a score from 0 to 100, a list of issues each tagged info, warn, or error with an optional line number, and a list of recommendations.",
			platformLabel(in.Platform)))
	}

	env := Envelope{
		SystemPrompt: sys.String(),
		Params:       a.Defaults,
	}

	// Prior turns, bounded by the context window, user/assistant order
	// preserved.
	history := in.History
	if len(history) > a.ContextWindow {
		history = history[len(history)-a.ContextWindow:]
	}
	for _, m := range history {
		if m.Role != memory.RoleUser && m.Role != memory.RoleAssistant {
			continue
		}
		env.Messages = append(env.Messages, TurnMessage{Role: string(m.Role), Content: m.Content})
	}

	// Final user turn last.
	env.Messages = append(env.Messages, TurnMessage{Role: "user", Content: a.finalTurn(in)})
	return env
}

func (a *Assembler) finalTurn(in Input) string {
	switch in.Kind {
	case KindGenerate:
		return fmt.Sprintf("Create a %s script for: %s", platformLabel(in.Platform), in.UserText)
	case KindImprove:
		return fmt.Sprintf("Improve the following %s script based on this feedback.\n\nFEEDBACK: %s\n\nORIGINAL SCRIPT:\n%s",
			platformLabel(in.Platform), in.Feedback, in.PriorScript)
	case KindValidate:
		return fmt.Sprintf("Review and validate this %s script:\n\n%s", platformLabel(in.Platform), in.UserText)
	default:
		return in.UserText
	}
}

// channelDirectives builds the channel-aware block. Minimal for web.
func channelDirectives(c *channel.Channel) string {
	if c == nil || c.ID == "web" {
		return ""
	}
	var supported []string
	for name, cap := range c.Capabilities {
		if cap.Supported {
			supported = append(supported, name)
		}
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Output is delivered through %s.", c.Name)
	if len(supported) > 0 {
		fmt.Fprintf(&b, " Output must fit these capabilities: %s.", strings.Join(sorted(supported), ", "))
	}
	if c.Constraints.MaxMessageLength > 0 {
		fmt.Fprintf(&b, " Keep messages under %d characters.", c.Constraints.MaxMessageLength)
	}
	return b.String()
}

func sorted(ss []string) []string {
	out := append([]string(nil), ss...)
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j] < out[j-1]; j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out
}

func platformLabel(platform string) string {
	switch platform {
	case "powershell":
		return "PowerShell"
	case "applescript":
		return "AppleScript"
	case "bash":
		return "Bash"
	default:
		return platform
	}
}

// platformPractices returns the best-practices block appended for
// generation prompts.
func platformPractices(platform string) string {
	switch platform {
	case "powershell":
		return `You are an expert PowerShell automation engineer. You create production-ready PowerShell scripts that follow Microsoft best practices.

Requirements:
- Declare parameters with param() and validate them
- Wrap the body in try/catch with meaningful error messages
- Use Write-Host for progress and feedback
- Exit with a non-zero code on failure
- Use approved cmdlets and avoid deprecated commands`
	case "applescript":
		return `You are an expert AppleScript automation engineer. You create production-ready AppleScripts that follow Apple's best practices.

Requirements:
- Handle arguments in an on run handler
- Wrap risky operations in try/on error blocks
- Use display notification or display dialog for feedback
- Check application availability before controlling it
- Use modern AppleScript syntax`
	case "bash":
		return `You are an expert Bash automation engineer. You create production-ready, portable Bash scripts that follow Unix best practices.

Requirements:
- Start with set -euo pipefail and an ERR trap
- Parse arguments and provide a usage function
- Echo progress to the user and errors to stderr
- Exit with meaningful status codes
- Prefer portable commands over system-specific ones`
	default:
		return platformPractices("bash")
	}
}

func outputFormat(platform string) string {
	var ext string
	switch platform {
	case "powershell":
		ext = ".ps1"
	case "applescript":
		ext = ".applescript"
	default:
		ext = ".sh"
	}
	return fmt.Sprintf("Generate only the %s script code inside a single fenced code block. Do not add explanations outside the block. The output must be a complete script that can be saved directly to a %s file.",
		platformLabel(platform), ext)
}
