package ops

import (
	"fmt"

	"github.com/shirou/gopsutil/v3/disk"
)

// DiskProbe checks filesystem usage under the spool root. The health loop
// uses it to force the "filesystem" breaker open when the disk fills up.
type DiskProbe struct {
	path      string
	threshold float64 // usage percent; 0 disables the probe
}

// NewDiskProbe creates a probe over path.
func NewDiskProbe(path string, threshold float64) *DiskProbe {
	return &DiskProbe{path: path, threshold: threshold}
}

// Enabled reports whether the probe is active.
func (p *DiskProbe) Enabled() bool {
	return p.threshold > 0 && p.path != ""
}

// Check returns the current usage percentage and whether it exceeds the
// threshold.
func (p *DiskProbe) Check() (float64, bool, error) {
	if !p.Enabled() {
		return 0, false, nil
	}
	usage, err := disk.Usage(p.path)
	if err != nil {
		return 0, false, fmt.Errorf("failed to probe disk usage: %w", err)
	}
	return usage.UsedPercent, usage.UsedPercent >= p.threshold, nil
}
