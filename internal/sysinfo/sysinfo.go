// Package sysinfo reports the free-disk and system-info blob a remote
// recording agent attaches to its heartbeat (C8), backed by
// shirou/gopsutil/v3.
package sysinfo

import (
	"fmt"
	"runtime"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"
)

// Snapshot is the heartbeat payload.
type Snapshot struct {
	FreeDiskGB float64
	Info       map[string]string
}

// Collect gathers free disk space on the volume containing path, plus a
// small descriptive system-info blob.
func Collect(path string) (Snapshot, error) {
	usage, err := disk.Usage(path)
	if err != nil {
		return Snapshot{}, err
	}
	freeGB := float64(usage.Free) / (1024 * 1024 * 1024)

	info := map[string]string{
		"os":   runtime.GOOS,
		"arch": runtime.GOARCH,
	}
	if hi, err := host.Info(); err == nil {
		info["hostname"] = hi.Hostname
		info["platform"] = hi.Platform
		info["uptime_s"] = fmt.Sprintf("%d", hi.Uptime)
	}
	if counts, err := cpu.Counts(true); err == nil {
		info["cpu_count"] = fmt.Sprintf("%d", counts)
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		info["mem_total_gb"] = fmt.Sprintf("%.1f", float64(vm.Total)/(1024*1024*1024))
	}

	return Snapshot{FreeDiskGB: freeGB, Info: info}, nil
}
