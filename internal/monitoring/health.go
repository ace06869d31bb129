// Package monitoring evaluates dependency health for the /health endpoint.
package monitoring

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// ProbeStatus encodes the outcome of a health probe.
type ProbeStatus string

const (
	StatusUp       ProbeStatus = "up"
	StatusDown     ProbeStatus = "down"
	StatusDegraded ProbeStatus = "degraded"
)

const defaultProbeTimeout = 2 * time.Second

// ProbeResult captures a single dependency check outcome.
type ProbeResult struct {
	Component string      `json:"component"`
	Status    ProbeStatus `json:"status"`
	Details   string      `json:"details,omitempty"`
	LatencyMS int64       `json:"latency_ms"`
}

// HealthReport aggregates probe results.
type HealthReport struct {
	Status    ProbeStatus   `json:"status"`
	Checks    []ProbeResult `json:"checks"`
	CheckedAt time.Time     `json:"checked_at"`
}

// Healthy reports whether the service can take traffic. Degraded counts as
// healthy because only optional dependencies degrade.
func (r HealthReport) Healthy() bool {
	return r.Status != StatusDown
}

// Check is a named dependency probe. A failing critical check takes the
// service down; a failing optional check only degrades it.
type Check struct {
	Name     string
	Critical bool
	Probe    func(ctx context.Context) error
}

// HealthManager runs registered checks concurrently, each under a timeout.
type HealthManager struct {
	mu      sync.RWMutex
	checks  []Check
	timeout time.Duration
	now     func() time.Time
}

// NewHealthManager constructs an empty health manager. A non-positive timeout
// falls back to two seconds per probe.
func NewHealthManager(timeout time.Duration) *HealthManager {
	if timeout <= 0 {
		timeout = defaultProbeTimeout
	}
	return &HealthManager{timeout: timeout, now: time.Now}
}

// Register appends a probe. Checks without a name or probe are ignored.
func (m *HealthManager) Register(check Check) {
	if check.Name == "" || check.Probe == nil {
		return
	}
	m.mu.Lock()
	m.checks = append(m.checks, check)
	m.mu.Unlock()
}

// Evaluate executes every probe and folds the results into one report.
func (m *HealthManager) Evaluate(ctx context.Context) HealthReport {
	m.mu.RLock()
	checks := append([]Check(nil), m.checks...)
	m.mu.RUnlock()

	results := make([]ProbeResult, len(checks))
	var wg sync.WaitGroup
	for i, check := range checks {
		wg.Add(1)
		go func(i int, check Check) {
			defer wg.Done()
			results[i] = m.run(ctx, check)
		}(i, check)
	}
	wg.Wait()

	report := HealthReport{Status: StatusUp, Checks: results, CheckedAt: m.now().UTC()}
	for _, r := range results {
		switch r.Status {
		case StatusDown:
			report.Status = StatusDown
		case StatusDegraded:
			if report.Status != StatusDown {
				report.Status = StatusDegraded
			}
		}
	}
	return report
}

func (m *HealthManager) run(ctx context.Context, check Check) (result ProbeResult) {
	start := time.Now()
	result.Component = check.Name

	defer func() {
		if rec := recover(); rec != nil {
			err := fmt.Errorf("panic: %v", rec)
			result = resultFromError(check, err)
		}
		result.LatencyMS = time.Since(start).Milliseconds()
	}()

	probeCtx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	return resultFromError(check, check.Probe(probeCtx))
}

func resultFromError(check Check, err error) ProbeResult {
	result := ProbeResult{Component: check.Name, Status: StatusUp}
	if err == nil {
		return result
	}
	result.Details = err.Error()
	switch {
	case !check.Critical:
		result.Status = StatusDegraded
	case errors.Is(err, context.DeadlineExceeded):
		result.Status = StatusDegraded
	default:
		result.Status = StatusDown
	}
	return result
}
