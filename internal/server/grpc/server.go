// Package grpc exposes the auth subsystem over gRPC. Every call except the
// standard health checks must carry a bearer access token in the
// "authorization" metadata.
package grpc

import (
	"context"
	"net"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/todovault/todovault/internal/logging"
	"github.com/todovault/todovault/internal/server/auth"
	"github.com/todovault/todovault/internal/server/services"
)

// tokenVerifier is the slice of TokenService the transport needs.
type tokenVerifier interface {
	VerifyToken(ctx context.Context, raw string, kind auth.Kind) (*auth.Claims, error)
}

type GRPCServer struct {
	address string
	tokens  tokenVerifier
	logger  logging.Logger
}

func NewGRPCServer(a string, l logging.Logger, ts *services.TokenService) (*GRPCServer, error) {
	return &GRPCServer{
		address: a,
		logger:  l.With("module", "grpc_server"),
		tokens:  ts,
	}, nil
}

func (s *GRPCServer) Run(ctx context.Context) error {

	// announces address
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}

	// creates gRPC-server
	srv := grpc.NewServer(grpc.ChainUnaryInterceptor(s.accessTokenInterceptor))

	// registers the health service so load balancers can probe readiness
	healthpb.RegisterHealthServer(srv, health.NewServer())

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping gRPC server...")
		srv.GracefulStop()
	}()

	s.logger.Info(ctx, "Starting gRPC server", "address", s.address)

	// starts accepting incoming connections
	if err := srv.Serve(listen); err != nil {
		return err
	}

	return nil
}
