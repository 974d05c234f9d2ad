package server

import (
	"net/http"
	"strconv"

	"convoke/internal/monitor"
	"convoke/internal/safety"
)

func (s *Server) handleExecuteSubmit(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Script         string            `json:"script"`
		Platform       string            `json:"platform"`
		Policy         string            `json:"policy"`
		Parameters     []string          `json:"parameters"`
		Env            map[string]string `json:"env"`
		WorkingDir     string            `json:"workingDir"`
		TimeoutSeconds int               `json:"timeoutSeconds"`
		Priority       string            `json:"priority"`
		ConfirmToken   string            `json:"confirmToken"`
	}
	if !decodeBody(w, r, &body) {
		return
	}

	policy := safety.Policy(body.Policy)
	if policy == safety.PolicyElevated &&
		s.cfg.Scheduler.RequireConfirmTokenForElevated && body.ConfirmToken == "" {
		writeError(w, r, http.StatusForbidden, codePolicyDenied,
			"elevated policy requires a confirm token", nil)
		return
	}

	id, err := s.sched.Submit(monitor.Request{
		Platform:       body.Platform,
		Script:         body.Script,
		Policy:         policy,
		WorkingDir:     body.WorkingDir,
		Env:            body.Env,
		Parameters:     body.Parameters,
		TimeoutSeconds: body.TimeoutSeconds,
	}, monitor.Priority(body.Priority), monitor.Callbacks{})
	if err != nil {
		writeError(w, r, http.StatusBadRequest, codeValidation, err.Error(), nil)
		return
	}

	task, _ := s.sched.Get(id)
	resp := map[string]any{"taskId": id, "state": task.State}
	if task.ErrorKind != "" {
		resp["errorKind"] = task.ErrorKind
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleExecuteGet(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	task, ok := s.sched.Get(id)
	if !ok {
		writeError(w, r, http.StatusNotFound, codeNotFound, "no task with id "+id, nil)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (s *Server) handleExecuteCancel(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	switch outcome := s.sched.Cancel(id); outcome {
	case monitor.CancelDone:
		writeJSON(w, http.StatusOK, map[string]any{"result": outcome})
	case monitor.CancelAlreadyTerminal:
		writeError(w, r, http.StatusConflict, codeConflict, "task is already terminal", nil)
	default:
		writeError(w, r, http.StatusNotFound, codeNotFound, "no task with id "+id, nil)
	}
}

func (s *Server) handleExecuteHistory(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))

	tasks := s.sched.History(monitor.TaskState(q.Get("status")), limit, offset)
	writeJSON(w, http.StatusOK, map[string]any{
		"tasks": tasks,
		"count": len(tasks),
	})
}

func (s *Server) handleExecuteStatistics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.sched.Statistics())
}

func (s *Server) handleExecuteRunning(w http.ResponseWriter, r *http.Request) {
	tasks := s.sched.Running()
	writeJSON(w, http.StatusOK, map[string]any{
		"tasks": tasks,
		"count": len(tasks),
	})
}
