package services

import (
	"runtime"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/sirupsen/logrus"
)

// ResourceSnapshot describes the host the worker pool is sized for
type ResourceSnapshot struct {
	LogicalCores int     `json:"logical_cores"`
	MemoryGB     float64 `json:"memory_gb"`
	Workers      int     `json:"workers"`
}

// cpuCounter is swapped in tests.
var cpuCounter = cpu.Counts

// WorkerCount returns override when positive, otherwise the logical core count reported by
// gopsutil, falling back to runtime.NumCPU.
func WorkerCount(override int) int {
	if override > 0 {
		return override
	}
	if n, err := cpuCounter(true); err == nil && n > 0 {
		return n
	}
	return runtime.NumCPU()
}

// DetectResources sizes the pool and logs the host resources.
func DetectResources(override int, logger *logrus.Logger) ResourceSnapshot {
	snap := ResourceSnapshot{
		LogicalCores: WorkerCount(0),
		Workers:      WorkerCount(override),
	}

	if memInfo, err := mem.VirtualMemory(); err == nil {
		snap.MemoryGB = float64(memInfo.Total) / (1024 * 1024 * 1024)
	} else {
		logger.WithError(err).Warn("Could not get memory info")
	}

	logger.WithFields(logrus.Fields{
		"cpu_cores": snap.LogicalCores,
		"memory_gb": snap.MemoryGB,
		"workers":   snap.Workers,
	}).Info("Worker pool sized")
	return snap
}
