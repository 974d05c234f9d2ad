package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// Error codes of the HTTP surface.
const (
	codeValidation           = "VALIDATION_ERROR"
	codePersonaNotFound      = "PERSONA_NOT_FOUND"
	codeChannelNotFound      = "CHANNEL_NOT_FOUND"
	codePlatformNotSupported = "PLATFORM_NOT_SUPPORTED"
	codePolicyDenied         = "POLICY_DENIED"
	codeExecutionFailed      = "EXECUTION_FAILED"
	codeLLMUnavailable       = "LLM_UNAVAILABLE"
	codeNotFound             = "NOT_FOUND"
	codeConflict             = "CONFLICT"
)

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

type errorEnvelope struct {
	Success   bool      `json:"success"`
	Error     apiError  `json:"error"`
	Timestamp time.Time `json:"timestamp"`
	RequestID string    `json:"requestId"`
}

type ctxKey int

const requestIDKey ctxKey = 0

// withRequestID assigns a request id and echoes it in the response
// header.
func withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-Id")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-Id", id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey, id)))
	})
}

func requestID(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey).(string); ok {
		return id
	}
	return ""
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string, details any) {
	writeJSON(w, status, errorEnvelope{
		Success:   false,
		Error:     apiError{Code: code, Message: message, Details: details},
		Timestamp: time.Now().UTC(),
		RequestID: requestID(r.Context()),
	})
}

// decodeBody parses a JSON request body, rejecting unknown garbage
// politely.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, r, http.StatusBadRequest, codeValidation, "invalid JSON body", err.Error())
		return false
	}
	return true
}
