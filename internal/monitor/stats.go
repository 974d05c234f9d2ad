package monitor

import (
	"sort"
	"time"
)

// Stats is the aggregate view returned to callers.
type Stats struct {
	TotalsByState           map[TaskState]int  `json:"totalsByState"`
	QueueDepth              int                `json:"queueDepth"`
	RunningCount            int                `json:"runningCount"`
	SuccessRate24h          float64            `json:"successRate24h"`
	AvgWallTimeMsByPlatform map[string]float64 `json:"avgWallTimeMsByPlatform"`
}

type outcome struct {
	at      time.Time
	success bool
}

type platformTiming struct {
	count int64
	sumMs int64
}

// statistics holds the running aggregates. Guarded by the scheduler
// mutex.
type statistics struct {
	totals   map[TaskState]int
	outcomes []outcome
	timings  map[string]*platformTiming
}

func newStatistics() statistics {
	return statistics{
		totals:  make(map[TaskState]int),
		timings: make(map[string]*platformTiming),
	}
}

func (st *statistics) recordTerminal(t Task, now time.Time) {
	st.totals[t.State]++
	st.outcomes = append(st.outcomes, outcome{at: now, success: t.State == StateCompleted})
	st.pruneOutcomes(now)
	if t.Result != nil {
		pt := st.timings[t.Request.Platform]
		if pt == nil {
			pt = &platformTiming{}
			st.timings[t.Request.Platform] = pt
		}
		pt.count++
		pt.sumMs += t.Result.Metrics.WallTimeMs
	}
}

func (st *statistics) pruneOutcomes(now time.Time) {
	cutoff := now.Add(-24 * time.Hour)
	i := 0
	for i < len(st.outcomes) && st.outcomes[i].at.Before(cutoff) {
		i++
	}
	st.outcomes = st.outcomes[i:]
}

func (st *statistics) snapshot(queueDepth, runningCount int, now time.Time) Stats {
	st.pruneOutcomes(now)

	totals := make(map[TaskState]int, len(st.totals)+2)
	for k, v := range st.totals {
		totals[k] = v
	}
	totals[StateQueued] = queueDepth
	totals[StateRunning] = runningCount

	rate := 0.0
	if n := len(st.outcomes); n > 0 {
		ok := 0
		for _, o := range st.outcomes {
			if o.success {
				ok++
			}
		}
		rate = float64(ok) / float64(n)
	}

	avg := make(map[string]float64, len(st.timings))
	for platform, pt := range st.timings {
		if pt.count > 0 {
			avg[platform] = float64(pt.sumMs) / float64(pt.count)
		}
	}

	return Stats{
		TotalsByState:           totals,
		QueueDepth:              queueDepth,
		RunningCount:            runningCount,
		SuccessRate24h:          rate,
		AvgWallTimeMsByPlatform: avg,
	}
}

func sortTasksByStart(tasks []Task) {
	sort.Slice(tasks, func(i, j int) bool {
		a, b := tasks[i].StartedAt, tasks[j].StartedAt
		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		default:
			return a.After(*b)
		}
	})
}
