package server

import (
	"context"
	"net"

	"crowdfund-platform/pkg/config"
	"crowdfund-platform/internal/endpoint"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// ProvideGRPCServer constructs the gRPC server with health and reflection services.
func ProvideGRPCServer() *grpc.Server {
	srv := grpc.NewServer()
	grpc_health_v1.RegisterHealthServer(srv, health.NewServer())
	reflection.Register(srv)
	return srv
}

// RunGRPCServer wires the gRPC server lifecycle to the fx application.
func RunGRPCServer(lc fx.Lifecycle, logger *zap.Logger, cfg *config.Config, srv *grpc.Server) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			lis, err := net.Listen("tcp", endpoint.Normalize(cfg.Grpc.Addr))
			if err != nil {
				return err
			}
			go func() {
				logger.Info("Starting gRPC server...", zap.String("addr", cfg.Grpc.Addr))
				if err := srv.Serve(lis); err != nil {
					logger.Fatal("gRPC server failed", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Info("Shutting down gRPC server...", zap.String("addr", cfg.Grpc.Addr))
			srv.GracefulStop()
			return nil
		},
	})
}

var GRPCModule = fx.Module("server:grpc",
	fx.Provide(ProvideGRPCServer),
	fx.Invoke(RunGRPCServer),
)
