package application

import (
	"context"
	"time"
)

// HealthStatus is the overall state reported by the health endpoint.
type HealthStatus string

const (
	HealthOK       HealthStatus = "ok"
	HealthDegraded HealthStatus = "degraded"
	HealthDown     HealthStatus = "down"
)

// Pinger is implemented by anything that can report its own reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthCheck is the result of one probe.
type HealthCheck struct {
	Name   string
	Status HealthStatus
	Error  string
}

// HealthSummary aggregates every probe.
type HealthSummary struct {
	Status        HealthStatus
	Authenticated bool
	Checks        []HealthCheck
}

// HealthService probes the local database and, when a session is active, the
// GitHub token.
type HealthService struct {
	db       Pinger
	identity *IdentityService
	timeout  time.Duration
}

// NewHealthService creates a new HealthService with the required dependencies.
func NewHealthService(db Pinger, identity *IdentityService) *HealthService {
	return &HealthService{
		db:       db,
		identity: identity,
		timeout:  5 * time.Second,
	}
}

// Check runs every probe and computes the combined status.
func (s *HealthService) Check(ctx context.Context) HealthSummary {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	checks := make([]HealthCheck, 0, 2)

	dbCheck := HealthCheck{Name: "database", Status: HealthOK}
	if err := s.db.Ping(ctx); err != nil {
		dbCheck.Status = HealthDown
		dbCheck.Error = err.Error()
	}
	checks = append(checks, dbCheck)

	authenticated := s.identity.Current() != nil
	if authenticated {
		ghCheck := HealthCheck{Name: "github", Status: HealthOK}
		if !s.identity.CheckLiveness(ctx) {
			ghCheck.Status = HealthDegraded
			ghCheck.Error = "token failed the rate limit probe"
		}
		checks = append(checks, ghCheck)
	}

	return HealthSummary{
		Status:        combineHealth(checks),
		Authenticated: authenticated,
		Checks:        checks,
	}
}

// combineHealth reduces probe results to one status.
// Priority: down > degraded > ok.
func combineHealth(checks []HealthCheck) HealthStatus {
	var hasDown, hasDegraded bool
	for _, c := range checks {
		switch c.Status {
		case HealthDown:
			hasDown = true
		case HealthDegraded:
			hasDegraded = true
		}
	}

	switch {
	case hasDown:
		return HealthDown
	case hasDegraded:
		return HealthDegraded
	default:
		return HealthOK
	}
}
