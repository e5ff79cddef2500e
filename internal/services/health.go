package services

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

// HealthCheck probes one dependency.
type HealthCheck func(ctx context.Context) error

// HealthStatus is the health endpoint payload.
type HealthStatus struct {
	Status    string            `json:"status"`
	Services  map[string]string `json:"services"`
	Critical  []string          `json:"critical_failures,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}

// HealthService runs registered dependency probes. Deployments register
// only the backends they actually run: a file-catalog, memory-vector
// deployment has nothing to probe and always reports healthy.
type HealthService struct {
	critical    map[string]HealthCheck
	nonCritical map[string]HealthCheck
	logger      *logrus.Logger
}

func NewHealthService(logger *logrus.Logger) *HealthService {
	return &HealthService{
		critical:    make(map[string]HealthCheck),
		nonCritical: make(map[string]HealthCheck),
		logger:      logger,
	}
}

func (s *HealthService) RegisterCritical(name string, check HealthCheck) {
	s.critical[name] = check
}

func (s *HealthService) RegisterNonCritical(name string, check HealthCheck) {
	s.nonCritical[name] = check
}

// CheckHealth probes every dependency. Any critical failure makes the
// overall status "unhealthy"; non-critical failures degrade it.
func (s *HealthService) CheckHealth(ctx context.Context) *HealthStatus {
	status := &HealthStatus{
		Timestamp: time.Now().UTC(),
		Services:  make(map[string]string),
	}

	allCriticalHealthy := true
	for name, check := range s.critical {
		if err := s.probe(ctx, check); err != nil {
			status.Services[name] = "unhealthy"
			status.Critical = append(status.Critical, name)
			allCriticalHealthy = false
			s.logger.WithError(err).Errorf("Critical service %s is unhealthy", name)
		} else {
			status.Services[name] = "healthy"
		}
	}

	degraded := false
	for name, check := range s.nonCritical {
		if err := s.probe(ctx, check); err != nil {
			status.Services[name] = "unhealthy"
			degraded = true
			s.logger.WithError(err).Warnf("Non-critical service %s is unhealthy", name)
		} else {
			status.Services[name] = "healthy"
		}
	}

	switch {
	case !allCriticalHealthy:
		status.Status = "unhealthy"
	case degraded:
		status.Status = "degraded"
	default:
		status.Status = "healthy"
	}
	return status
}

func (s *HealthService) probe(ctx context.Context, check HealthCheck) error {
	probeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return check(probeCtx)
}
