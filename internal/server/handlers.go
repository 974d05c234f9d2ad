package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"convoke/internal/llm"
	"convoke/internal/memory"
	"convoke/internal/persona"
	"convoke/internal/prompt"
)

// chatContextMaxChars bounds the history text included per chat turn.
const chatContextMaxChars = 8000

func (s *Server) handlePersonaList(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"personas": s.personas.List(),
		"current":  s.personas.Current().ID,
	})
}

func (s *Server) handlePersonaCurrent(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.personas.Current())
}

func (s *Server) handlePersonaGet(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	p, ok := s.personas.Get(id)
	if !ok {
		writeError(w, r, http.StatusNotFound, codePersonaNotFound, "no persona with id "+id, nil)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handlePersonaSwitch(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	p, ok := s.personas.Switch(id)
	if !ok {
		writeError(w, r, http.StatusNotFound, codePersonaNotFound, "no persona with id "+id, nil)
		return
	}
	s.log.Info("persona switched", zap.String("personaId", p.ID))
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "persona": p})
}

func (s *Server) handlePersonaCreate(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ID           string   `json:"id"`
		Name         string   `json:"name"`
		Description  string   `json:"description"`
		Greeting     string   `json:"greeting"`
		SystemPrompt string   `json:"systemPrompt"`
		Capabilities []string `json:"capabilities"`
		Channels     []string `json:"channels"`
		Examples     []string `json:"examples"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	if body.Name == "" || body.SystemPrompt == "" {
		writeError(w, r, http.StatusBadRequest, codeValidation, "name and systemPrompt are required", nil)
		return
	}

	created, err := s.personas.AddCustom(&persona.Persona{
		ID:           body.ID,
		Name:         body.Name,
		Description:  body.Description,
		Greeting:     body.Greeting,
		SystemPrompt: body.SystemPrompt,
		Capabilities: body.Capabilities,
		Channels:     body.Channels,
		Examples:     body.Examples,
	})
	if err != nil {
		if errors.Is(err, persona.ErrExists) {
			writeError(w, r, http.StatusConflict, codeConflict, err.Error(), nil)
			return
		}
		writeError(w, r, http.StatusBadRequest, codeValidation, err.Error(), nil)
		return
	}
	if err := s.personas.SaveCustom(created); err != nil {
		s.log.Warn("persist custom persona failed", zap.String("personaId", created.ID), zap.Error(err))
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleChannelList(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"channels": s.channels.List(),
		"current":  s.channels.Current().ID,
	})
}

func (s *Server) handleChannelCurrent(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.channels.Current())
}

func (s *Server) handleChannelGet(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	ch, ok := s.channels.Get(id)
	if !ok {
		writeError(w, r, http.StatusNotFound, codeChannelNotFound, "no channel with id "+id, nil)
		return
	}
	writeJSON(w, http.StatusOK, ch)
}

func (s *Server) handleChannelCapabilities(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, ok := s.channels.Get(id); !ok {
		writeError(w, r, http.StatusNotFound, codeChannelNotFound, "no channel with id "+id, nil)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"channelId":    id,
		"capabilities": s.channels.Capabilities(id),
	})
}

func (s *Server) handleChannelSwitch(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	ch, ok := s.channels.Switch(id)
	if !ok {
		writeError(w, r, http.StatusNotFound, codeChannelNotFound, "no channel with id "+id, nil)
		return
	}
	s.log.Info("channel switched", zap.String("channelId", ch.ID))
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "channel": ch})
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Message        string `json:"message"`
		ConversationID string `json:"conversationId"`
		Context        string `json:"context"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	if body.Message == "" {
		writeError(w, r, http.StatusBadRequest, codeValidation, "message is required", nil)
		return
	}
	conversationID := body.ConversationID
	if conversationID == "" {
		conversationID = uuid.NewString()
	}

	p := s.personas.Current()
	ch := s.channels.Current()
	history := s.memory.ContextFor(conversationID, s.assembler.ContextWindow, chatContextMaxChars)

	userText := body.Message
	if body.Context != "" {
		userText = body.Context + "\n\n" + body.Message
	}
	env := s.assembler.Assemble(prompt.Input{
		Kind:     prompt.KindChat,
		Persona:  p,
		Channel:  ch,
		History:  history,
		UserText: userText,
	})

	completion, err := s.gateway.Generate(r.Context(), env)
	if err != nil {
		s.log.Warn("chat generation failed", zap.Error(err))
		writeError(w, r, http.StatusServiceUnavailable, codeLLMUnavailable,
			"no provider could serve the request", string(llm.KindOf(err)))
		return
	}

	now := time.Now().UTC()
	s.memory.Append(conversationID, memory.Message{
		Role: memory.RoleUser, Content: body.Message,
		PersonaID: p.ID, ChannelID: ch.ID, Timestamp: now,
	})
	s.memory.Append(conversationID, memory.Message{
		Role: memory.RoleAssistant, Content: completion.Text,
		PersonaID: p.ID, ChannelID: ch.ID, Timestamp: now,
	})

	writeJSON(w, http.StatusOK, map[string]any{
		"response":       completion.Text,
		"conversationId": conversationID,
		"personaId":      p.ID,
		"channelId":      ch.ID,
		"timestamp":      now,
	})
}

func (s *Server) handleGenerateScript(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Prompt         string `json:"prompt"`
		Platform       string `json:"platform"`
		ConversationID string `json:"conversationId"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	if body.Prompt == "" {
		writeError(w, r, http.StatusBadRequest, codeValidation, "prompt is required", nil)
		return
	}
	if !s.gen.SupportedPlatform(body.Platform) {
		writeError(w, r, http.StatusBadRequest, codePlatformNotSupported,
			"platform must be one of powershell, applescript, bash", body.Platform)
		return
	}

	var history []memory.Message
	if body.ConversationID != "" {
		history = s.memory.ContextFor(body.ConversationID, s.assembler.ContextWindow, chatContextMaxChars)
	}
	script := s.gen.Generate(r.Context(), body.Prompt, body.Platform,
		s.personas.Current(), s.channels.Current(), history)
	writeJSON(w, http.StatusOK, script)
}

func (s *Server) handleImproveScript(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Script   string `json:"script"`
		Feedback string `json:"feedback"`
		Platform string `json:"platform"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	if body.Script == "" || body.Feedback == "" {
		writeError(w, r, http.StatusBadRequest, codeValidation, "script and feedback are required", nil)
		return
	}
	if !s.gen.SupportedPlatform(body.Platform) {
		writeError(w, r, http.StatusBadRequest, codePlatformNotSupported,
			"platform must be one of powershell, applescript, bash", body.Platform)
		return
	}

	improved, err := s.gen.Improve(r.Context(), body.Script, body.Feedback, body.Platform, s.personas.Current())
	if err != nil {
		if kind := llm.KindOf(err); kind == llm.KindUnavailable || kind == llm.KindTimeout || kind == llm.KindRateLimited {
			writeError(w, r, http.StatusServiceUnavailable, codeLLMUnavailable,
				"no provider could serve the request", string(kind))
			return
		}
		writeError(w, r, http.StatusBadGateway, codeExecutionFailed, err.Error(), nil)
		return
	}
	writeJSON(w, http.StatusOK, improved)
}

func (s *Server) handleValidateScript(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Script   string `json:"script"`
		Platform string `json:"platform"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	if body.Script == "" {
		writeError(w, r, http.StatusBadRequest, codeValidation, "script is required", nil)
		return
	}
	if !s.gen.SupportedPlatform(body.Platform) {
		writeError(w, r, http.StatusBadRequest, codePlatformNotSupported,
			"platform must be one of powershell, applescript, bash", body.Platform)
		return
	}
	report := s.gen.Validate(r.Context(), body.Script, body.Platform, s.personas.Current())
	writeJSON(w, http.StatusOK, report)
}
