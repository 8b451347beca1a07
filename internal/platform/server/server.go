package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/ogurasousui/codex-library-loans/internal/platform/config"
)

const (
	// ServiceName は gRPC ヘルスチェックで公開するサービス名です。
	ServiceName = "library.loans"

	pingTimeout = 2 * time.Second

	logMsgHTTPListening = "http server listening"
	logMsgGRPCListening = "grpc health server listening"
	logMsgShuttingDown  = "shutting down servers"
	logMsgHealthChanged = "health status changed"
	logAttrAddr         = "addr"
	logAttrStatus       = "status"
	logAttrError        = "error"
)

// Pinger はデータベースの疎通確認を行います。
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server は HTTP API と gRPC ヘルスサーバーのライフサイクルを管理します。
type Server struct {
	cfg        config.ServerConfig
	httpServer *http.Server
	grpcServer *grpc.Server
	health     *health.Server
	checker    Pinger
	logger     *slog.Logger
	lastStatus healthpb.HealthCheckResponse_ServingStatus
}

// New は HTTP サーバーと、grpc_addr が設定されていれば gRPC ヘルスサーバーを構築します。
func New(cfg config.ServerConfig, handler http.Handler, checker Pinger, logger *slog.Logger, opts ...grpc.ServerOption) *Server {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	s := &Server{
		cfg: cfg,
		httpServer: &http.Server{
			Addr:              cfg.HTTPAddr,
			Handler:           handler,
			ReadTimeout:       cfg.ReadTimeout,
			ReadHeaderTimeout: cfg.ReadTimeout,
			WriteTimeout:      cfg.WriteTimeout,
		},
		checker:    checker,
		logger:     logger,
		lastStatus: healthpb.HealthCheckResponse_UNKNOWN,
	}

	if cfg.GRPCAddr != "" {
		s.grpcServer = grpc.NewServer(opts...)
		s.health = health.NewServer()
		healthpb.RegisterHealthServer(s.grpcServer, s.health)
		reflection.Register(s.grpcServer)
	}

	return s
}

// Run はサーバーを起動し、コンテキストがキャンセルされると順に停止します。
func (s *Server) Run(ctx context.Context) error {
	httpLis, err := net.Listen("tcp", s.cfg.HTTPAddr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.cfg.HTTPAddr, err)
	}

	var grpcLis net.Listener
	if s.grpcServer != nil {
		grpcLis, err = net.Listen("tcp", s.cfg.GRPCAddr)
		if err != nil {
			_ = httpLis.Close()
			return fmt.Errorf("listen on %s: %w", s.cfg.GRPCAddr, err)
		}
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.logger.InfoContext(gctx, logMsgHTTPListening, logAttrAddr, httpLis.Addr().String())
		if err := s.httpServer.Serve(httpLis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve http: %w", err)
		}
		return nil
	})

	if grpcLis != nil {
		g.Go(func() error {
			s.logger.InfoContext(gctx, logMsgGRPCListening, logAttrAddr, grpcLis.Addr().String())
			if err := s.grpcServer.Serve(grpcLis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
				return fmt.Errorf("serve gRPC: %w", err)
			}
			return nil
		})

		g.Go(func() error {
			s.watchHealth(gctx)
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		s.logger.Info(logMsgShuttingDown)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()

		if s.grpcServer != nil {
			s.health.Shutdown()
			s.grpcServer.GracefulStop()
		}

		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown http: %w", err)
		}
		return nil
	})

	return g.Wait()
}

func (s *Server) watchHealth(ctx context.Context) {
	interval := s.cfg.HealthInterval
	if interval <= 0 {
		interval = 10 * time.Second
	}

	s.checkHealth(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.checkHealth(ctx)
		}
	}
}

// checkHealth はデータベースへの疎通結果をヘルスサーバーへ反映します。
func (s *Server) checkHealth(ctx context.Context) {
	if s.health == nil {
		return
	}

	status := healthpb.HealthCheckResponse_SERVING
	var pingErr error
	if s.checker != nil {
		pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
		pingErr = s.checker.Ping(pingCtx)
		cancel()
		if pingErr != nil {
			status = healthpb.HealthCheckResponse_NOT_SERVING
		}
	}

	s.health.SetServingStatus("", status)
	s.health.SetServingStatus(ServiceName, status)

	if status != s.lastStatus {
		attrs := []any{logAttrStatus, status.String()}
		if pingErr != nil {
			attrs = append(attrs, logAttrError, pingErr.Error())
		}
		s.logger.InfoContext(ctx, logMsgHealthChanged, attrs...)
		s.lastStatus = status
	}
}
