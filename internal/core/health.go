package core

import (
	"context"
	"fmt"
	"os"
	"time"
)

// HealthStatus is the overall verdict of a health check.
type HealthStatus string

const (
	HealthHealthy   HealthStatus = "healthy"
	HealthDegraded  HealthStatus = "degraded"
	HealthUnhealthy HealthStatus = "unhealthy"
)

// HealthReport is the body of GET /health.
type HealthReport struct {
	Status     HealthStatus      `json:"status"`
	Database   string            `json:"database"`
	Components map[string]string `json:"components"`
	Timestamp  time.Time         `json:"timestamp"`
}

// Healthy reports whether the service can accept uploads. A degraded
// report still counts: only the database is essential.
func (h HealthReport) Healthy() bool {
	return h.Status != HealthUnhealthy
}

// Health pings the store and probes that the spool directory is writable.
func (s *Service) Health(ctx context.Context) HealthReport {
	report := HealthReport{
		Status:     HealthHealthy,
		Database:   "connected",
		Components: make(map[string]string, 2),
		Timestamp:  s.now(),
	}

	if err := s.store.Ping(ctx); err != nil {
		report.Database = "error: " + err.Error()
		report.Components["database"] = report.Database
		report.Status = HealthUnhealthy
	} else {
		report.Components["database"] = "connected"
	}

	if err := probeWritable(s.opts.TempDir); err != nil {
		report.Components["filesystem"] = "error: " + err.Error()
		if report.Status == HealthHealthy {
			report.Status = HealthDegraded
		}
	} else {
		report.Components["filesystem"] = "writable"
	}

	return report
}

func probeWritable(dir string) error {
	f, err := os.CreateTemp(dir, ".health-*")
	if err != nil {
		return fmt.Errorf("temp dir not writable: %w", err)
	}
	name := f.Name()
	f.Close()
	return os.Remove(name)
}
