package agent

import (
	"context"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/host"
	"github.com/shirou/gopsutil/v4/mem"
	"github.com/shirou/gopsutil/v4/process"

	"github.com/rookery-io/rook/models"
)

// hostInfo collects the static host facts returned by getInfo.
func hostInfo(ctx context.Context) (*models.HostInfo, error) {
	hi, err := host.InfoWithContext(ctx)
	if err != nil {
		return nil, err
	}
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return nil, err
	}
	cpus, err := cpu.InfoWithContext(ctx)
	if err != nil {
		return nil, err
	}

	info := &models.HostInfo{
		Hostname:    hi.Hostname,
		OS:          hi.OS,
		Platform:    hi.Platform,
		Arch:        hi.KernelArch,
		Release:     hi.PlatformVersion,
		UptimeSec:   hi.Uptime,
		TotalMemory: vm.Total,
		CPUs:        make([]models.CPUInfo, 0, len(cpus)),
	}
	for _, c := range cpus {
		info.CPUs = append(info.CPUs, models.CPUInfo{
			Model:    c.ModelName,
			ClockMhz: c.Mhz,
		})
	}
	return info, nil
}

// processUsage samples CPU and memory usage for one pid. Fails when the pid
// is not observable.
func processUsage(ctx context.Context, pid int) (*models.ResourceUsage, error) {
	p, err := process.NewProcessWithContext(ctx, int32(pid))
	if err != nil {
		return nil, err
	}
	cpuPct, err := p.CPUPercentWithContext(ctx)
	if err != nil {
		return nil, err
	}
	memInfo, err := p.MemoryInfoWithContext(ctx)
	if err != nil {
		return nil, err
	}
	return &models.ResourceUsage{
		CPUPercent: cpuPct,
		MemoryRSS:  memInfo.RSS,
	}, nil
}
