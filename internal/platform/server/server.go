package server

import (
	"context"
	"errors"
	"fmt"
	"net"

	"google.golang.org/grpc"

	"github.com/ogurasousui/site-roster/internal/adapters/grpc/handler"
	"github.com/ogurasousui/site-roster/internal/core/roster"
)

// Server は gRPC サーバーのライフサイクルを管理します。
type Server struct {
	listenAddr string
	grpcServer *grpc.Server
}

// New は指定されたアドレスで待ち受け、roster サービスを公開する gRPC サーバーを構築します。
func New(listenAddr string, svc roster.UseCase, opts ...grpc.ServerOption) *Server {
	srv := grpc.NewServer(opts...)
	handler.RegisterRosterServiceServer(srv, handler.NewRosterGrpcHandler(svc))

	return &Server{
		listenAddr: listenAddr,
		grpcServer: srv,
	}
}

// Run はサーバーを起動し、コンテキストがキャンセルされると GracefulStop します。
func (s *Server) Run(ctx context.Context) error {
	lis, err := net.Listen("tcp", s.listenAddr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.listenAddr, err)
	}
	return s.Serve(ctx, lis)
}

// Serve は lis で待ち受けます。コンテキストがキャンセルされると GracefulStop します。
func (s *Server) Serve(ctx context.Context, lis net.Listener) error {
	stopped := make(chan struct{})
	defer close(stopped)
	go func() {
		select {
		case <-ctx.Done():
			s.grpcServer.GracefulStop()
		case <-stopped:
		}
	}()

	if err := s.grpcServer.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return fmt.Errorf("serve gRPC: %w", err)
	}

	return nil
}

// GracefulStop はサーバーを安全に停止します。
func (s *Server) GracefulStop() {
	s.grpcServer.GracefulStop()
}
