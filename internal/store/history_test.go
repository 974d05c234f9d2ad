package store

import (
	"path/filepath"
	"testing"
	"time"

	"convoke/internal/executor"
	"convoke/internal/monitor"
	"convoke/internal/safety"
)

func openTestStore(t *testing.T) *SQLiteHistory {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func terminalTask(id string, state monitor.TaskState, platform string, completedAt time.Time) monitor.Task {
	submitted := completedAt.Add(-time.Minute)
	return monitor.Task{
		ID:          id,
		SubmittedAt: submitted,
		CompletedAt: &completedAt,
		Request: monitor.Request{
			Platform:       platform,
			Script:         "true\n",
			Policy:         safety.PolicyStandard,
			TimeoutSeconds: 30,
		},
		Priority: monitor.PriorityNormal,
		State:    state,
		Result: &executor.Result{
			ExitCode: 0,
			Metrics:  executor.Metrics{WallTimeMs: 42},
		},
	}
}

func TestAppendAndQueryRoundTrip(t *testing.T) {
	s := openTestStore(t)
	now := time.Now().Truncate(time.Second)

	task := terminalTask("t1", monitor.StateCompleted, "bash", now)
	if err := s.Append(task); err != nil {
		t.Fatalf("Append: %v", err)
	}

	got, err := s.Query(Filter{})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d tasks, want 1", len(got))
	}
	if got[0].ID != "t1" || got[0].State != monitor.StateCompleted {
		t.Errorf("round trip = %+v", got[0])
	}
	if got[0].Result == nil || got[0].Result.Metrics.WallTimeMs != 42 {
		t.Errorf("result lost in round trip: %+v", got[0].Result)
	}
}

func TestAppendRejectsNonTerminal(t *testing.T) {
	s := openTestStore(t)
	if err := s.Append(monitor.Task{ID: "t1", State: monitor.StateRunning}); err == nil {
		t.Error("Append: want error for non-terminal task")
	}
}

func TestAppendIsIdempotent(t *testing.T) {
	s := openTestStore(t)
	now := time.Now()

	task := terminalTask("t1", monitor.StateCompleted, "bash", now)
	for i := 0; i < 2; i++ {
		if err := s.Append(task); err != nil {
			t.Fatalf("Append #%d: %v", i+1, err)
		}
	}
	got, err := s.Query(Filter{})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(got) != 1 {
		t.Errorf("got %d tasks after double append, want 1", len(got))
	}
}

func TestQueryFilters(t *testing.T) {
	s := openTestStore(t)
	base := time.Now().Add(-time.Hour)

	seed := []monitor.Task{
		terminalTask("t1", monitor.StateCompleted, "bash", base),
		terminalTask("t2", monitor.StateFailed, "bash", base.Add(time.Minute)),
		terminalTask("t3", monitor.StateCompleted, "powershell", base.Add(2*time.Minute)),
	}
	for _, task := range seed {
		if err := s.Append(task); err != nil {
			t.Fatalf("Append %s: %v", task.ID, err)
		}
	}

	completed, err := s.Query(Filter{State: monitor.StateCompleted})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(completed) != 2 {
		t.Errorf("state filter: got %d, want 2", len(completed))
	}

	bash, err := s.Query(Filter{Platform: "bash"})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(bash) != 2 {
		t.Errorf("platform filter: got %d, want 2", len(bash))
	}

	recent, err := s.Query(Filter{Since: base.Add(90 * time.Second)})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(recent) != 1 || recent[0].ID != "t3" {
		t.Errorf("since filter: got %v", recent)
	}

	all, err := s.Query(Filter{})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(all) != 3 || all[0].ID != "t3" {
		t.Errorf("ordering: want most recent first, got %v", ids(all))
	}

	page, err := s.Query(Filter{Limit: 1, Offset: 1})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(page) != 1 || page[0].ID != "t2" {
		t.Errorf("pagination: got %v", ids(page))
	}
}

func TestPruneDropsOldRecords(t *testing.T) {
	s := openTestStore(t)
	base := time.Now().Add(-time.Hour)

	if err := s.Append(terminalTask("old", monitor.StateCompleted, "bash", base)); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := s.Append(terminalTask("new", monitor.StateCompleted, "bash", base.Add(30*time.Minute))); err != nil {
		t.Fatalf("Append: %v", err)
	}

	if err := s.Prune(base.Add(15 * time.Minute)); err != nil {
		t.Fatalf("Prune: %v", err)
	}
	got, err := s.Query(Filter{})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(got) != 1 || got[0].ID != "new" {
		t.Errorf("after prune: got %v, want [new]", ids(got))
	}
}

func ids(tasks []monitor.Task) []string {
	out := make([]string, len(tasks))
	for i, t := range tasks {
		out[i] = t.ID
	}
	return out
}
