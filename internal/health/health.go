package health

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

// Service answers the standard gRPC health check: SERVING while every
// pinger answers, NOT_SERVING otherwise.
type Service struct {
	healthpb.UnimplementedHealthServer
	pingers map[string]Pinger
	timeout time.Duration
	log     logrus.FieldLogger
}

func NewService(log logrus.FieldLogger, timeout time.Duration) *Service {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &Service{
		pingers: make(map[string]Pinger),
		timeout: timeout,
		log:     log,
	}
}

// Add registers a dependency under name. Not safe to call once serving.
func (s *Service) Add(name string, p Pinger) *Service {
	s.pingers[name] = p
	return s
}

func (s *Service) Check(ctx context.Context, req *healthpb.HealthCheckRequest) (*healthpb.HealthCheckResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	for name, p := range s.pingers {
		if err := p.Ping(ctx); err != nil {
			s.log.WithField("dependency", name).Warnf("health check failed: %v", err)
			return &healthpb.HealthCheckResponse{Status: healthpb.HealthCheckResponse_NOT_SERVING}, nil
		}
	}
	return &healthpb.HealthCheckResponse{Status: healthpb.HealthCheckResponse_SERVING}, nil
}
