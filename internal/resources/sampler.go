package resources

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/procfs"
)

// Sample is one observation of host load.
type Sample struct {
	CPUPercent           float64
	AvailableMemoryBytes uint64
}

// AvailableMemoryGiB returns the available memory in GiB.
func (s Sample) AvailableMemoryGiB() float64 {
	return float64(s.AvailableMemoryBytes) / (1 << 30)
}

// Sampler observes host load.
type Sampler interface {
	Sample(ctx context.Context) (Sample, error)
}

// ProcSampler reads /proc/stat twice, window apart, for CPU utilisation and
// /proc/meminfo for available memory.
type ProcSampler struct {
	fs     procfs.FS
	window time.Duration
}

// NewProcSampler opens the default procfs mount.
func NewProcSampler(window time.Duration) (*ProcSampler, error) {
	fs, err := procfs.NewDefaultFS()
	if err != nil {
		return nil, fmt.Errorf("open procfs: %w", err)
	}
	return NewProcSamplerFS(fs, window), nil
}

// NewProcSamplerFS uses an explicit procfs mount.
func NewProcSamplerFS(fs procfs.FS, window time.Duration) *ProcSampler {
	if window <= 0 {
		window = time.Second
	}
	return &ProcSampler{fs: fs, window: window}
}

// Sample blocks for the sampling window.
func (p *ProcSampler) Sample(ctx context.Context) (Sample, error) {
	before, err := p.fs.Stat()
	if err != nil {
		return Sample{}, fmt.Errorf("read /proc/stat: %w", err)
	}
	timer := time.NewTimer(p.window)
	select {
	case <-ctx.Done():
		timer.Stop()
		return Sample{}, ctx.Err()
	case <-timer.C:
	}
	after, err := p.fs.Stat()
	if err != nil {
		return Sample{}, fmt.Errorf("read /proc/stat: %w", err)
	}

	mem, err := p.fs.Meminfo()
	if err != nil {
		return Sample{}, fmt.Errorf("read /proc/meminfo: %w", err)
	}

	return Sample{
		CPUPercent:           cpuPercent(before.CPUTotal, after.CPUTotal),
		AvailableMemoryBytes: availableBytes(mem),
	}, nil
}

func cpuPercent(before, after procfs.CPUStat) float64 {
	idle := (after.Idle + after.Iowait) - (before.Idle + before.Iowait)
	total := cpuTotal(after) - cpuTotal(before)
	if total <= 0 {
		return 0
	}
	busy := (total - idle) / total * 100
	switch {
	case busy < 0:
		return 0
	case busy > 100:
		return 100
	}
	return busy
}

func cpuTotal(s procfs.CPUStat) float64 {
	return s.User + s.Nice + s.System + s.Idle + s.Iowait + s.IRQ + s.SoftIRQ + s.Steal
}

// availableBytes prefers MemAvailable and falls back to free+cached on
// kernels that do not report it.
func availableBytes(mem procfs.Meminfo) uint64 {
	if mem.MemAvailable != nil {
		return *mem.MemAvailable * 1024
	}
	var kb uint64
	if mem.MemFree != nil {
		kb += *mem.MemFree
	}
	if mem.Buffers != nil {
		kb += *mem.Buffers
	}
	if mem.Cached != nil {
		kb += *mem.Cached
	}
	return kb * 1024
}
