// SPDX-License-Identifier: MIT
//
// Package status exposes subsystem health over the standard gRPC health
// protocol so supervisors can query the capture and LED state of a running
// process.
package status

import (
	"fmt"
	"net"
	"sync"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	applog "audioviz/internal/log"
)

var logger = applog.New("status")

// Check reports the health of one subsystem; nil means serving.
type Check func() error

type service struct {
	name  string
	check Check
	last  error
	known bool
}

// Server is a gRPC server carrying only the health service. Registered
// checks are polled on a fixed interval; the overall service "" is serving
// only while every check passes.
type Server struct {
	grpcServer *grpc.Server
	health     *health.Server
	interval   time.Duration

	mu       sync.Mutex
	services []*service
	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewServer returns a server polling its checks every interval.
func NewServer(interval time.Duration) *Server {
	if interval <= 0 {
		interval = time.Second
	}
	s := &Server{
		grpcServer: grpc.NewServer(),
		health:     health.NewServer(),
		interval:   interval,
		done:       make(chan struct{}),
	}
	healthpb.RegisterHealthServer(s.grpcServer, s.health)
	s.health.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	return s
}

// Register adds a named check. It reports NOT_SERVING until first polled.
func (s *Server) Register(name string, check Check) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.services = append(s.services, &service{name: name, check: check})
	s.health.SetServingStatus(name, healthpb.HealthCheckResponse_NOT_SERVING)
}

// Refresh runs every check once and publishes the results.
func (s *Server) Refresh() {
	s.mu.Lock()
	defer s.mu.Unlock()

	overall := healthpb.HealthCheckResponse_SERVING
	for _, svc := range s.services {
		err := svc.check()
		st := healthpb.HealthCheckResponse_SERVING
		if err != nil {
			st = healthpb.HealthCheckResponse_NOT_SERVING
			overall = healthpb.HealthCheckResponse_NOT_SERVING
		}
		if changed(svc, err) {
			if err != nil {
				logger.Warnf("%s is not serving: %v", svc.name, err)
			} else {
				logger.Infof("%s is serving", svc.name)
			}
		}
		svc.last, svc.known = err, true
		s.health.SetServingStatus(svc.name, st)
	}
	s.health.SetServingStatus("", overall)
}

func changed(svc *service, err error) bool {
	if !svc.known {
		return true
	}
	return (svc.last == nil) != (err == nil)
}

// Serve polls the checks and serves gRPC on lis until Stop.
func (s *Server) Serve(lis net.Listener) error {
	s.Refresh()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.Refresh()
			case <-s.done:
				return
			}
		}
	}()

	logger.Infof("Health service listening on %s", lis.Addr())
	if err := s.grpcServer.Serve(lis); err != nil && err != grpc.ErrServerStopped {
		return fmt.Errorf("status server: %w", err)
	}
	return nil
}

// ListenAndServe listens on addr and calls Serve.
func (s *Server) ListenAndServe(addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	return s.Serve(lis)
}

// Stop marks every service NOT_SERVING, stops polling and shuts the server
// down gracefully.
func (s *Server) Stop() {
	s.stopOnce.Do(func() {
		s.health.Shutdown()
		close(s.done)
		s.grpcServer.GracefulStop()
	})
	s.wg.Wait()
}
