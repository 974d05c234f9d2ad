package monitor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"convoke/internal/executor"
	"convoke/internal/logging"
	"convoke/internal/safety"
)

// Archiver receives terminal tasks for durable history. Append failures
// are logged, never surfaced to the task.
type Archiver interface {
	Append(Task) error
}

// Options tune the scheduler. Zero values fall back to defaults.
type Options struct {
	MaxConcurrent     int
	HistoryMax        int
	MaxTimeoutSeconds int
	// AgingThreshold bumps the effective priority of a queued task one
	// level per elapsed threshold, bounded at high.
	AgingThreshold         time.Duration
	GracePeriod            time.Duration
	ResourceSampleInterval time.Duration
	// TickInterval drives the idle timer; submits and terminal
	// transitions tick immediately.
	TickInterval time.Duration
}

func (o *Options) applyDefaults() {
	if o.MaxConcurrent <= 0 {
		o.MaxConcurrent = 5
	}
	if o.HistoryMax <= 0 {
		o.HistoryMax = 500
	}
	if o.MaxTimeoutSeconds <= 0 {
		o.MaxTimeoutSeconds = 300
	}
	if o.AgingThreshold <= 0 {
		o.AgingThreshold = 60 * time.Second
	}
	if o.TickInterval <= 0 {
		o.TickInterval = time.Second
	}
}

// entry wraps a task with its scheduling state. All fields except the
// cancel pair are guarded by the scheduler mutex.
type entry struct {
	task          Task
	callbacks     Callbacks
	effectiveRank int

	cancel     chan struct{}
	cancelOnce sync.Once
}

func (e *entry) requestCancel() {
	e.cancelOnce.Do(func() { close(e.cancel) })
}

// Scheduler is the single source of truth for task state.
type Scheduler struct {
	opts Options
	exec *executor.Executor
	val  *safety.Validator
	arch Archiver
	log  *zap.Logger

	mu      sync.Mutex
	queue   []*entry
	running map[string]*entry
	history []*entry
	byID    map[string]*entry
	stats   statistics

	kick    chan struct{}
	stop    chan struct{}
	loopWg  sync.WaitGroup
	taskWg  sync.WaitGroup
	started bool

	now func() time.Time
}

// NewScheduler builds a scheduler; arch may be nil.
func NewScheduler(exec *executor.Executor, val *safety.Validator, arch Archiver, opts Options) *Scheduler {
	opts.applyDefaults()
	return &Scheduler{
		opts:    opts,
		exec:    exec,
		val:     val,
		arch:    arch,
		log:     logging.Named("scheduler"),
		running: make(map[string]*entry),
		byID:    make(map[string]*entry),
		stats:   newStatistics(),
		kick:    make(chan struct{}, 1),
		stop:    make(chan struct{}),
		now:     time.Now,
	}
}

// Start launches the tick loop. Idempotent.
func (s *Scheduler) Start() {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return
	}
	s.started = true
	s.mu.Unlock()

	s.loopWg.Add(1)
	go func() {
		defer s.loopWg.Done()
		ticker := time.NewTicker(s.opts.TickInterval)
		defer ticker.Stop()
		for {
			select {
			case <-s.stop:
				return
			case <-s.kick:
			case <-ticker.C:
			}
			s.tick()
		}
	}()
}

// Stop cancels every non-terminal task and waits for workers and the
// tick loop to drain.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.started = false
	queued := append([]*entry(nil), s.queue...)
	for _, e := range s.running {
		e.requestCancel()
	}
	s.mu.Unlock()

	for _, e := range queued {
		s.Cancel(e.task.ID)
	}
	close(s.stop)
	s.loopWg.Wait()

	// a final tick may have promoted a task after the snapshot above
	s.mu.Lock()
	for _, e := range s.running {
		e.requestCancel()
	}
	s.mu.Unlock()
	s.taskWg.Wait()
}

// Submit validates and admits a request. A policy deny produces a task
// that is already terminal; its id is still returned so callers can
// inspect the safety report.
func (s *Scheduler) Submit(req Request, priority Priority, cb Callbacks) (string, error) {
	if req.TimeoutSeconds == 0 {
		req.TimeoutSeconds = 30
	}
	if err := validateRequest(req, s.opts.MaxTimeoutSeconds); err != nil {
		return "", err
	}
	if priority == "" {
		priority = PriorityNormal
	}
	if !KnownPriority(priority) {
		return "", fmt.Errorf("unknown priority %q", priority)
	}
	policy := req.Policy
	if policy == "" {
		policy = safety.PolicyStandard
		req.Policy = policy
	}

	report := s.val.Validate(req.Script, req.Platform, policy)
	now := s.now()
	e := &entry{
		task: Task{
			ID:                uuid.NewString(),
			SubmittedAt:       now,
			Request:           req,
			Priority:          priority,
			EffectivePriority: priority,
			State:             StateQueued,
			SafetyReport:      &report,
		},
		callbacks:     cb,
		effectiveRank: priorityRank(priority),
		cancel:        make(chan struct{}),
	}

	if report.Decision == safety.DecisionDeny {
		e.task.State = StateFailed
		e.task.ErrorKind = ErrPolicyDenied
		completed := now
		e.task.CompletedAt = &completed
		s.mu.Lock()
		s.byID[e.task.ID] = e
		s.pushHistoryLocked(e)
		s.stats.recordTerminal(e.task, s.now())
		snapshot := e.task
		s.mu.Unlock()
		s.log.Warn("submission denied by policy",
			zap.String("taskId", snapshot.ID),
			zap.String("policy", string(policy)),
			zap.String("rule", report.DeniedBy))
		s.archive(snapshot)
		if cb.OnComplete != nil {
			cb.OnComplete(snapshot)
		}
		return snapshot.ID, nil
	}

	s.mu.Lock()
	s.byID[e.task.ID] = e
	snapshot := e.task
	s.mu.Unlock()
	s.log.Info("task queued",
		zap.String("taskId", snapshot.ID),
		zap.String("platform", req.Platform),
		zap.String("priority", string(priority)))
	// The queued notification is delivered before the task becomes
	// promotable, so per-task callback order holds even when the tick
	// loop fires immediately after enqueue.
	if cb.OnStateChange != nil {
		cb.OnStateChange(snapshot)
	}
	s.mu.Lock()
	if e.task.State == StateQueued {
		s.queue = append(s.queue, e)
	}
	s.mu.Unlock()
	s.requestTick()
	return snapshot.ID, nil
}

// Cancel requests termination of a task. Idempotent; a second cancel of
// a running task is a no-op, and cancelling a terminal task reports
// alreadyTerminal.
func (s *Scheduler) Cancel(id string) CancelOutcome {
	s.mu.Lock()
	e, ok := s.byID[id]
	if !ok {
		s.mu.Unlock()
		return CancelNotFound
	}
	if e.task.State.Terminal() {
		s.mu.Unlock()
		return CancelAlreadyTerminal
	}
	if e.task.State == StateQueued {
		s.removeQueuedLocked(id)
		e.task.State = StateCancelled
		e.task.ErrorKind = string(executor.ErrCancelled)
		completed := s.now()
		e.task.CompletedAt = &completed
		s.pushHistoryLocked(e)
		s.stats.recordTerminal(e.task, s.now())
		snapshot := e.task
		cb := e.callbacks
		s.mu.Unlock()
		s.log.Info("queued task cancelled", zap.String("taskId", id))
		s.archive(snapshot)
		if cb.OnStateChange != nil {
			cb.OnStateChange(snapshot)
		}
		if cb.OnComplete != nil {
			cb.OnComplete(snapshot)
		}
		s.requestTick()
		return CancelDone
	}
	// preparing or running: signal and let the worker converge
	s.mu.Unlock()
	e.requestCancel()
	s.log.Info("cancel signalled", zap.String("taskId", id))
	return CancelDone
}

// Get returns a snapshot of the task.
func (s *Scheduler) Get(id string) (Task, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.byID[id]
	if !ok {
		return Task{}, false
	}
	return e.task, true
}

// Running snapshots the running set, newest start first.
func (s *Scheduler) Running() []Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Task, 0, len(s.running))
	for _, e := range s.running {
		out = append(out, e.task)
	}
	sortTasksByStart(out)
	return out
}

// History returns a page of terminal tasks, most recent first. An empty
// state matches all.
func (s *Scheduler) History(state TaskState, limit, offset int) []Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	if limit <= 0 {
		limit = 50
	}
	out := make([]Task, 0, limit)
	skipped := 0
	for i := len(s.history) - 1; i >= 0 && len(out) < limit; i-- {
		t := s.history[i].task
		if state != "" && t.State != state {
			continue
		}
		if skipped < offset {
			skipped++
			continue
		}
		out = append(out, t)
	}
	return out
}

// Statistics snapshots the aggregate counters.
func (s *Scheduler) Statistics() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats.snapshot(len(s.queue), len(s.running), s.now())
}

func (s *Scheduler) requestTick() {
	select {
	case s.kick <- struct{}{}:
	default:
	}
}

// tick ages the queue, then promotes at most one task so that
// equal-priority submitters interleave instead of starving.
func (s *Scheduler) tick() {
	s.mu.Lock()
	s.ageQueueLocked()
	if len(s.running) >= s.opts.MaxConcurrent || len(s.queue) == 0 {
		s.mu.Unlock()
		return
	}
	e := s.popBestLocked()
	e.task.State = StatePreparing
	started := s.now()
	e.task.StartedAt = &started
	s.running[e.task.ID] = e
	snapshot := e.task
	cb := e.callbacks
	morePending := len(s.queue) > 0 && len(s.running) < s.opts.MaxConcurrent
	s.mu.Unlock()

	if cb.OnStateChange != nil {
		cb.OnStateChange(snapshot)
	}
	s.taskWg.Add(1)
	go s.runTask(e)
	if morePending {
		s.requestTick()
	}
}

func (s *Scheduler) ageQueueLocked() {
	now := s.now()
	for _, e := range s.queue {
		base := priorityRank(e.task.Priority)
		age := now.Sub(e.task.SubmittedAt)
		bump := int(age / s.opts.AgingThreshold)
		rank := base + bump
		if rank > priorityRank(PriorityHigh) {
			rank = priorityRank(PriorityHigh)
		}
		if rank > e.effectiveRank {
			e.effectiveRank = rank
			e.task.EffectivePriority = rankPriority(rank)
		}
	}
}

// popBestLocked removes the entry with the highest effective rank,
// breaking ties by submit time.
func (s *Scheduler) popBestLocked() *entry {
	best := 0
	for i := 1; i < len(s.queue); i++ {
		cand, cur := s.queue[i], s.queue[best]
		if cand.effectiveRank > cur.effectiveRank ||
			(cand.effectiveRank == cur.effectiveRank && cand.task.SubmittedAt.Before(cur.task.SubmittedAt)) {
			best = i
		}
	}
	e := s.queue[best]
	s.queue = append(s.queue[:best], s.queue[best+1:]...)
	return e
}

func (s *Scheduler) removeQueuedLocked(id string) {
	for i, e := range s.queue {
		if e.task.ID == id {
			s.queue = append(s.queue[:i], s.queue[i+1:]...)
			return
		}
	}
}

func (s *Scheduler) runTask(e *entry) {
	defer s.taskWg.Done()

	// cancel may have landed between promotion and here
	select {
	case <-e.cancel:
		s.finishTask(e, StateCancelled, string(executor.ErrCancelled), nil)
		return
	default:
	}

	s.mu.Lock()
	e.task.State = StateRunning
	snapshot := e.task
	cb := e.callbacks
	s.mu.Unlock()
	if cb.OnStateChange != nil {
		cb.OnStateChange(snapshot)
	}

	req := snapshot.Request
	res, err := s.exec.Run(context.Background(), executor.Prepared{
		Platform:               req.Platform,
		Script:                 req.Script,
		InterpreterArgs:        req.Parameters,
		WorkingDir:             req.WorkingDir,
		Env:                    req.Env,
		TimeoutSeconds:         req.TimeoutSeconds,
		GracePeriod:            s.opts.GracePeriod,
		ResourceSampleInterval: s.opts.ResourceSampleInterval,
		Cancel:                 e.cancel,
	})

	switch {
	case err != nil && res.ErrorKind == executor.ErrSpawnFailed:
		s.finishTask(e, StateFailed, string(executor.ErrSpawnFailed), &res)
	case err != nil:
		s.log.Error("executor failure", zap.String("taskId", snapshot.ID), zap.Error(err))
		s.finishTask(e, StateFailed, ErrInternal, &res)
	default:
		switch res.ErrorKind {
		case executor.ErrNone:
			s.finishTask(e, StateCompleted, "", &res)
		case executor.ErrNonZeroExit:
			s.finishTask(e, StateFailed, string(executor.ErrNonZeroExit), &res)
		case executor.ErrTimedOut:
			s.finishTask(e, StateTimedOut, string(executor.ErrTimedOut), &res)
		case executor.ErrCancelled:
			s.finishTask(e, StateCancelled, string(executor.ErrCancelled), &res)
		default:
			s.finishTask(e, StateFailed, ErrInternal, &res)
		}
	}
}

// finishTask records the terminal transition, moves the entry to
// history, and fires callbacks after the state is durable.
func (s *Scheduler) finishTask(e *entry, state TaskState, errorKind string, res *executor.Result) {
	s.mu.Lock()
	e.task.State = state
	e.task.ErrorKind = errorKind
	e.task.Result = res
	completed := s.now()
	e.task.CompletedAt = &completed
	delete(s.running, e.task.ID)
	s.pushHistoryLocked(e)
	s.stats.recordTerminal(e.task, completed)
	snapshot := e.task
	cb := e.callbacks
	s.mu.Unlock()

	s.log.Info("task finished",
		zap.String("taskId", snapshot.ID),
		zap.String("state", string(state)),
		zap.String("errorKind", errorKind))
	s.archive(snapshot)
	if cb.OnStateChange != nil {
		cb.OnStateChange(snapshot)
	}
	if cb.OnComplete != nil {
		cb.OnComplete(snapshot)
	}
	s.requestTick()
}

// pushHistoryLocked appends to the ring and drops byId entries that
// fall off the far end.
func (s *Scheduler) pushHistoryLocked(e *entry) {
	s.history = append(s.history, e)
	for len(s.history) > s.opts.HistoryMax {
		evicted := s.history[0]
		s.history = s.history[1:]
		delete(s.byID, evicted.task.ID)
	}
}

func (s *Scheduler) archive(t Task) {
	if s.arch == nil || !t.State.Terminal() {
		return
	}
	if err := s.arch.Append(t); err != nil {
		s.log.Warn("history archive append failed",
			zap.String("taskId", t.ID), zap.Error(err))
	}
}
