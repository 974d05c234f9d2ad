//go:build !linux

package executor

import "time"

// Resource sampling is only wired up on Linux. Elsewhere the sampler
// exits on its first tick and the metric fields stay unset.

type usageSample struct{}

func (u *usageSample) merge(usageSample) {}

func (u *usageSample) fill(*Metrics) {}

type cpuSample struct{}

func sampleUsage(pid int, prev cpuSample, interval time.Duration) (usageSample, cpuSample, bool) {
	return usageSample{}, prev, false
}
