//go:build linux

package executor

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// usageSample accumulates peak resource observations.
type usageSample struct {
	peakMemoryBytes int64
	cpuPercentPeak  float64
	ioBytesRead     int64
	ioBytesWritten  int64
	haveMemory      bool
	haveCPU         bool
	haveIO          bool
}

func (u *usageSample) merge(s usageSample) {
	if s.haveMemory {
		u.haveMemory = true
		if s.peakMemoryBytes > u.peakMemoryBytes {
			u.peakMemoryBytes = s.peakMemoryBytes
		}
	}
	if s.haveCPU {
		u.haveCPU = true
		if s.cpuPercentPeak > u.cpuPercentPeak {
			u.cpuPercentPeak = s.cpuPercentPeak
		}
	}
	if s.haveIO {
		u.haveIO = true
		// io counters are cumulative; latest wins
		u.ioBytesRead = s.ioBytesRead
		u.ioBytesWritten = s.ioBytesWritten
	}
}

func (u *usageSample) fill(m *Metrics) {
	if u.haveMemory {
		v := u.peakMemoryBytes
		m.PeakMemoryBytes = &v
	}
	if u.haveCPU {
		v := u.cpuPercentPeak
		m.CPUPercentPeak = &v
	}
	if u.haveIO {
		r, w := u.ioBytesRead, u.ioBytesWritten
		m.IOBytesRead = &r
		m.IOBytesWritten = &w
	}
}

// cpuSample is the previous CPU tick reading used for delta
// computation.
type cpuSample struct {
	ticks int64
	valid bool
}

// sampleUsage reads /proc/<pid> counters. ok is false once the process
// is gone, which ends the sampler.
func sampleUsage(pid int, prev cpuSample, interval time.Duration) (usageSample, cpuSample, bool) {
	var s usageSample

	status, err := os.ReadFile("/proc/" + strconv.Itoa(pid) + "/status")
	if err != nil {
		return s, prev, false
	}
	for _, line := range strings.Split(string(status), "\n") {
		if strings.HasPrefix(line, "VmHWM:") {
			fields := strings.Fields(line)
			if len(fields) >= 2 {
				if kb, err := strconv.ParseInt(fields[1], 10, 64); err == nil {
					s.peakMemoryBytes = kb * 1024
					s.haveMemory = true
				}
			}
			break
		}
	}

	if stat, err := os.ReadFile("/proc/" + strconv.Itoa(pid) + "/stat"); err == nil {
		// fields after the parenthesized comm; utime is field 14,
		// stime field 15 (1-based)
		if idx := strings.LastIndex(string(stat), ")"); idx >= 0 {
			fields := strings.Fields(string(stat)[idx+1:])
			if len(fields) >= 13 {
				utime, err1 := strconv.ParseInt(fields[11], 10, 64)
				stime, err2 := strconv.ParseInt(fields[12], 10, 64)
				if err1 == nil && err2 == nil {
					total := utime + stime
					if prev.valid && interval > 0 {
						const clockTick = 100 // USER_HZ on practically all systems
						deltaSeconds := float64(total-prev.ticks) / clockTick
						pct := deltaSeconds / interval.Seconds() * 100
						if pct >= 0 {
							s.cpuPercentPeak = pct
							s.haveCPU = true
						}
					}
					prev = cpuSample{ticks: total, valid: true}
				}
			}
		}
	}

	// /proc/pid/io needs no special privileges for own children
	if io, err := os.ReadFile("/proc/" + strconv.Itoa(pid) + "/io"); err == nil {
		for _, line := range strings.Split(string(io), "\n") {
			if v, ok := strings.CutPrefix(line, "read_bytes: "); ok {
				if n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64); err == nil {
					s.ioBytesRead = n
					s.haveIO = true
				}
			}
			if v, ok := strings.CutPrefix(line, "write_bytes: "); ok {
				if n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64); err == nil {
					s.ioBytesWritten = n
					s.haveIO = true
				}
			}
		}
	}

	return s, prev, true
}
