// Package sysinfo samples host metrics for the idle monitor and renders the
// /sysinfo command report.
package sysinfo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/host"
	"github.com/shirou/gopsutil/v4/load"
	"github.com/shirou/gopsutil/v4/mem"
)

// CPUPercent returns an instantaneous host CPU utilization sample in [0, 100].
func CPUPercent(ctx context.Context) (float64, error) {
	percents, err := cpu.PercentWithContext(ctx, 0, false)
	if err != nil {
		return 0, fmt.Errorf("sample cpu percent: %w", err)
	}
	if len(percents) == 0 {
		return 0, errors.New("cpu percent sample is empty")
	}
	return percents[0], nil
}

// Report renders a plain-text host status summary.
func Report(ctx context.Context) (string, error) {
	var b strings.Builder

	info, err := host.InfoWithContext(ctx)
	if err != nil {
		return "", fmt.Errorf("read host info: %w", err)
	}
	fmt.Fprintf(&b, "host: %s (%s %s)\n", info.Hostname, info.Platform, info.PlatformVersion)
	fmt.Fprintf(&b, "uptime: %s\n", (time.Duration(info.Uptime) * time.Second).String())

	if avg, err := load.AvgWithContext(ctx); err == nil {
		fmt.Fprintf(&b, "load: %.2f %.2f %.2f\n", avg.Load1, avg.Load5, avg.Load15)
	}
	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		fmt.Fprintf(&b, "memory: %.1f%% of %s\n", vm.UsedPercent, formatBytes(vm.Total))
	}
	if usage, err := disk.UsageWithContext(ctx, "/"); err == nil {
		fmt.Fprintf(&b, "disk /: %.1f%% of %s\n", usage.UsedPercent, formatBytes(usage.Total))
	}

	return strings.TrimSpace(b.String()), nil
}

func formatBytes(n uint64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := uint64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
