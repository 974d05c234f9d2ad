// Package server exposes the HTTP/JSON API: personas, channels, chat,
// script generation, and execution scheduling.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"convoke/internal/channel"
	"convoke/internal/config"
	"convoke/internal/generator"
	"convoke/internal/llm"
	"convoke/internal/logging"
	"convoke/internal/memory"
	"convoke/internal/monitor"
	"convoke/internal/persona"
	"convoke/internal/prompt"
)

// Server wires the component registries behind the HTTP API.
type Server struct {
	cfg       *config.Config
	version   string
	startedAt time.Time

	personas  *persona.Registry
	channels  *channel.Registry
	memory    *memory.Store
	assembler *prompt.Assembler
	gateway   *llm.Gateway
	gen       *generator.Facade
	sched     *monitor.Scheduler

	log *zap.Logger
}

// Deps collects the constructed components.
type Deps struct {
	Config    *config.Config
	Version   string
	Personas  *persona.Registry
	Channels  *channel.Registry
	Memory    *memory.Store
	Assembler *prompt.Assembler
	Gateway   *llm.Gateway
	Generator *generator.Facade
	Scheduler *monitor.Scheduler
}

// New builds a server from its dependencies.
func New(d Deps) *Server {
	return &Server{
		cfg:       d.Config,
		version:   d.Version,
		startedAt: time.Now(),
		personas:  d.Personas,
		channels:  d.Channels,
		memory:    d.Memory,
		assembler: d.Assembler,
		gateway:   d.Gateway,
		gen:       d.Generator,
		sched:     d.Scheduler,
		log:       logging.Named("server"),
	}
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /api/system/status", s.handleSystemStatus)

	mux.HandleFunc("GET /api/personas", s.handlePersonaList)
	mux.HandleFunc("GET /api/personas/current", s.handlePersonaCurrent)
	mux.HandleFunc("GET /api/personas/{id}", s.handlePersonaGet)
	mux.HandleFunc("POST /api/personas/{id}/switch", s.handlePersonaSwitch)
	mux.HandleFunc("POST /api/personas/create", s.handlePersonaCreate)

	mux.HandleFunc("GET /api/channels", s.handleChannelList)
	mux.HandleFunc("GET /api/channels/current", s.handleChannelCurrent)
	mux.HandleFunc("GET /api/channels/{id}", s.handleChannelGet)
	mux.HandleFunc("GET /api/channels/{id}/capabilities", s.handleChannelCapabilities)
	mux.HandleFunc("POST /api/channels/{id}/switch", s.handleChannelSwitch)

	mux.HandleFunc("POST /api/chat", s.handleChat)
	mux.HandleFunc("POST /api/generate/script", s.handleGenerateScript)
	mux.HandleFunc("POST /api/scripts/improve", s.handleImproveScript)
	mux.HandleFunc("POST /api/scripts/validate", s.handleValidateScript)

	mux.HandleFunc("POST /api/execute/script", s.handleExecuteSubmit)
	mux.HandleFunc("GET /api/execute/task/{id}", s.handleExecuteGet)
	mux.HandleFunc("DELETE /api/execute/task/{id}", s.handleExecuteCancel)
	mux.HandleFunc("GET /api/execute/history", s.handleExecuteHistory)
	mux.HandleFunc("GET /api/execute/statistics", s.handleExecuteStatistics)
	mux.HandleFunc("GET /api/execute/running", s.handleExecuteRunning)

	return withRequestID(mux)
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Server.Addr(),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.log.Info("listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":        "ok",
		"version":       s.version,
		"uptimeSeconds": int64(time.Since(s.startedAt).Seconds()),
	})
}

func (s *Server) handleSystemStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"version":       s.version,
		"uptimeSeconds": int64(time.Since(s.startedAt).Seconds()),
		"personas": map[string]any{
			"count":   len(s.personas.List()),
			"current": s.personas.Current().ID,
		},
		"channels": map[string]any{
			"count":   len(s.channels.List()),
			"current": s.channels.Current().ID,
		},
		"memory":    s.memory.Summary(),
		"providers": s.gateway.Health(),
		"scheduler": s.sched.Statistics(),
	})
}
