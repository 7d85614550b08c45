// server runs the console HTTP API and the gRPC health endpoint.
package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	grpchealth "google.golang.org/grpc/health"

	"github.com/hugo617/healthcare-admin-sub001/internal/audit"
	auditrepo "github.com/hugo617/healthcare-admin-sub001/internal/audit/repository"
	"github.com/hugo617/healthcare-admin-sub001/internal/config"
	"github.com/hugo617/healthcare-admin-sub001/internal/db"
	"github.com/hugo617/healthcare-admin-sub001/internal/health"
	identityservice "github.com/hugo617/healthcare-admin-sub001/internal/identity/service"
	permissionrepo "github.com/hugo617/healthcare-admin-sub001/internal/permission/repository"
	"github.com/hugo617/healthcare-admin-sub001/internal/platform/rbac"
	"github.com/hugo617/healthcare-admin-sub001/internal/policy/engine"
	policyrepo "github.com/hugo617/healthcare-admin-sub001/internal/policy/repository"
	"github.com/hugo617/healthcare-admin-sub001/internal/security"
	"github.com/hugo617/healthcare-admin-sub001/internal/server"
	"github.com/hugo617/healthcare-admin-sub001/internal/server/httpapi"
	sessionrepo "github.com/hugo617/healthcare-admin-sub001/internal/session/repository"
	sessionservice "github.com/hugo617/healthcare-admin-sub001/internal/session/service"
	"github.com/hugo617/healthcare-admin-sub001/internal/telemetry"
	telemetryotel "github.com/hugo617/healthcare-admin-sub001/internal/telemetry/otel"
	"github.com/hugo617/healthcare-admin-sub001/internal/telemetry/producer"
	"github.com/hugo617/healthcare-admin-sub001/internal/tenant"
	tenantrepo "github.com/hugo617/healthcare-admin-sub001/internal/tenant/repository"
	userrepo "github.com/hugo617/healthcare-admin-sub001/internal/user/repository"
)

const (
	healthInterval  = 15 * time.Second
	shutdownTimeout = 30 * time.Second
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	logger, err := newLogger(cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, "logger:", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg); err != nil {
		logger.Fatal("server exited", zap.Error(err))
	}
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	var (
		logger *zap.Logger
		err    error
	)
	if cfg.IsProduction() {
		logger, err = zap.NewProduction()
	} else {
		logger, err = zap.NewDevelopment()
	}
	if err != nil {
		return nil, err
	}
	zap.ReplaceGlobals(logger)
	return logger, nil
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	providers, err := telemetryotel.NewProviders(ctx, telemetryotel.Config{
		Endpoint:    cfg.OTLPEndpoint,
		ServiceName: cfg.ServiceName,
		Insecure:    cfg.OTLPInsecure,
	})
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	providers.SetGlobal()

	conn, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("db: %w", err)
	}
	defer conn.Close()

	kafkaProducer, err := producer.NewKafkaProducer(cfg.KafkaBrokersList(), cfg.AuditKafkaTopic)
	if err != nil {
		return fmt.Errorf("kafka: %w", err)
	}
	emitters := []telemetry.EventEmitter{telemetryotel.NewEventEmitter(providers.LoggerProvider)}
	if kafkaProducer != nil {
		emitters = append(emitters, kafkaProducer)
		defer func() { _ = kafkaProducer.Close() }()
	}
	emitter := telemetry.NewFanout(emitters...)

	tenants := tenantrepo.NewPostgresRepository(conn)
	users := userrepo.NewPostgresRepository(conn)
	perms := permissionrepo.NewPostgresRepository(conn)
	auditLogs := auditrepo.NewPostgresRepository(conn)

	tokens, err := security.NewTokenCodec([]byte(cfg.JWTSecret), cfg.TokenTTL(), cfg.TokenLongTTL())
	if err != nil {
		return fmt.Errorf("tokens: %w", err)
	}
	sessions := sessionservice.NewManager(sessionrepo.NewPostgresRepository(conn), sessionservice.Config{
		TTL:           cfg.SessionTTL(),
		LongTTL:       cfg.TokenLongTTL(),
		TouchInterval: cfg.SessionTouchInterval(),
	})
	tenantManager := tenant.NewManager(tenants)
	resolver := tenant.NewResolver(tenants, tenant.ResolverConfig{
		BaseDomain:     cfg.TenantBaseDomain,
		DefaultEnabled: cfg.DefaultTenantEnabled,
		DefaultID:      cfg.DefaultTenantID,
	})

	policy := engine.NewOPAEvaluator(policyrepo.NewPostgresRepository(conn))
	if cfg.ScopePolicyFile != "" {
		if err := policy.LoadDefaultPolicy(cfg.ScopePolicyFile); err != nil {
			return err
		}
	}
	guard := rbac.NewGuard(tokens, sessions, users, perms, policy)
	auditLogger := audit.NewLogger(auditLogs, emitter, nil)
	authService := identityservice.NewAuthService(users, security.NewHasher(cfg.BcryptCost), tokens, sessions, resolver, tenantManager, auditLogger)
	authenticator := identityservice.NewAuthenticator(tokens, sessions, resolver, tenantManager)
	checker := health.NewChecker(conn, policy)

	authH := httpapi.NewAuthHandler(authService, tokens, guard, httpapi.CookieConfig{Secure: cfg.AuthCookieSecure})
	httpServer := &http.Server{
		Addr: cfg.HTTPAddr,
		Handler: httpapi.NewRouter(httpapi.Deps{
			Auth:              authenticator,
			AuthH:             authH,
			Sessions:          httpapi.NewSessionHandler(sessions, guard, auditLogger, authH, cfg.SessionRetentionDays),
			Audit:             httpapi.NewAuditHandler(auditLogs, guard),
			Health:            checker,
			CORSOrigins:       cfg.CORSOrigins(),
			TrustProxyHeaders: cfg.TrustProxyHeaders,
		}),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
	}

	healthServer := grpchealth.NewServer()
	grpcServer := server.NewGRPCServer(server.Deps{
		Auth:    authenticator,
		Audit:   auditLogger,
		Emitter: emitter,
		Health:  healthServer,
	})
	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}

	errCh := make(chan error, 2)
	go func() {
		zap.L().Info("http server listening", zap.String("addr", cfg.HTTPAddr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http: %w", err)
		}
	}()
	go func() {
		zap.L().Info("grpc server listening", zap.String("addr", cfg.GRPCAddr))
		if err := grpcServer.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			errCh <- fmt.Errorf("grpc: %w", err)
		}
	}()
	go checker.Run(ctx, healthServer, healthInterval, server.ServiceName)

	var serveErr error
	select {
	case <-ctx.Done():
		zap.L().Info("shutting down")
	case serveErr = <-errCh:
		zap.L().Error("server failed, shutting down", zap.Error(serveErr))
	}

	healthServer.Shutdown()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		zap.L().Warn("http shutdown", zap.Error(err))
	}
	grpcServer.GracefulStop()

	// Let in-flight audit emits finish before the exporters go away.
	time.Sleep(telemetry.ShutdownDrainDuration)
	if err := providers.Shutdown(shutdownCtx); err != nil {
		zap.L().Warn("telemetry shutdown", zap.Error(err))
	}
	zap.L().Info("server stopped")
	return serveErr
}
