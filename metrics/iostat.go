package metrics

import (
	"time"

	"github.com/lufia/iostat"

	"github.com/lumenct/fdkrecon/cmn/nlog"
)

// DiskMonitor periodically samples per-disk I/O counters so a slow
// projection directory or volume output disk shows up in the same
// verbose logging channel as the rest of the pipeline, rather than
// only manifesting as pipeline backpressure with no obvious cause.
type DiskMonitor struct {
	Interval time.Duration
	stop     chan struct{}
}

func NewDiskMonitor(interval time.Duration) *DiskMonitor {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &DiskMonitor{Interval: interval, stop: make(chan struct{})}
}

func (m *DiskMonitor) Start() {
	go func() {
		ticker := time.NewTicker(m.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				m.sample()
			case <-m.stop:
				return
			}
		}
	}()
}

func (m *DiskMonitor) Stop() { close(m.stop) }

func (m *DiskMonitor) sample() {
	drives, err := iostat.ReadDriveStats()
	if err != nil {
		nlog.Warningf("metrics: reading disk I/O stats: %v", err)
		return
	}
	for _, d := range drives {
		if nlog.FastV(4, "metrics") {
			nlog.Infof("disk %s: read=%d write=%d", d.Name, d.BytesRead, d.BytesWritten)
		}
	}
}
