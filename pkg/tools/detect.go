package tools

import (
	"context"
	"log/slog"
	"sync"
)

// Availability records which optional tools responded to a probe.
type Availability map[Tool]bool

// Versions holds the best-effort version string per available tool.
type Versions map[Tool]string

// Prober is the probe capability the detector needs; ExecRunner implements
// it, tests substitute fakes.
type Prober interface {
	Probe(ctx context.Context, tool Tool) (string, error)
}

// Detector probes the optional external binaries. It never errors: a failed
// probe just marks the tool unavailable, and every downstream fail-soft
// decision keys off the resulting map.
type Detector struct {
	prober Prober
	log    *slog.Logger
}

// NewDetector creates a detector over the given prober.
func NewDetector(p Prober, logger *slog.Logger) *Detector {
	if logger == nil {
		logger = slog.Default()
	}
	return &Detector{prober: p, log: logger}
}

// Detect probes all tools concurrently and returns availability plus
// whatever version strings could be captured.
func (d *Detector) Detect(ctx context.Context) (Availability, Versions) {
	avail := make(Availability, len(AllTools))
	versions := make(Versions, len(AllTools))

	var mu sync.Mutex
	var wg sync.WaitGroup
	for _, tool := range AllTools {
		wg.Add(1)
		go func(tool Tool) {
			defer wg.Done()
			version, err := d.prober.Probe(ctx, tool)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				avail[tool] = false
				d.log.Info("tool unavailable", "tool", tool, "error", err)
				return
			}
			avail[tool] = true
			if version != "" {
				versions[tool] = version
			}
			d.log.Debug("tool detected", "tool", tool, "version", version)
		}(tool)
	}
	wg.Wait()

	return avail, versions
}
