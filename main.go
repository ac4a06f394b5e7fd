package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"

	"message-relay/internal/auth"
	"message-relay/internal/config"
	"message-relay/internal/db"
	grpcserver "message-relay/internal/grpc"
	"message-relay/internal/handlers"
	"message-relay/internal/logging"
	"message-relay/internal/middleware"
	"message-relay/internal/observability"
	"message-relay/internal/rabbitmq"
	"message-relay/internal/relay"
	"message-relay/internal/telemetry"
	"message-relay/internal/ws"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := run(); err != nil {
		log.Fatalf("message-relay: %v", err)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracer, err := telemetry.InitTracer(ctx, cfg.ServiceName, cfg.Environment, cfg.OTLPEndpoint)
	if err != nil {
		return fmt.Errorf("init tracer: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdownTracer(sctx); err != nil {
			logger.Warnw("tracer shutdown failed", "error", err)
		}
	}()

	publisher := rabbitmq.NewPublisher(cfg.AMQPURL, cfg.AMQPExchange, logger)
	defer func() { _ = publisher.Close() }()
	mode, reason := rabbitmq.Describe(publisher)
	logger.Infow("rabbitmq publisher ready", "mode", mode, "noop_reason", reason)
	observability.SetPublisher(publisher)
	auditEmitter := telemetry.NewAuditEmitter(publisher, cfg.AuditRoutingKey, cfg.ServiceName, cfg.Environment, logger)

	store, closeStore, err := db.OpenMessageStore(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("open message store: %w", err)
	}
	defer func() {
		if err := closeStore(); err != nil {
			logger.Warnw("closing message store failed", "error", err)
		}
	}()
	logger.Infow("message store ready", "driver", cfg.StoreDriver)

	authenticator := auth.FromSecret(cfg.JWTSecret)
	if authenticator == nil {
		logger.Warn("JWT_SECRET is empty, join trusts the user id sent by the client")
	}

	dir := relay.NewDirectory()
	hub := ws.NewHub(logger)
	messageRelay := relay.New(dir, store, hub, logger,
		relay.PersistTimeout(cfg.PersistTimeout),
		relay.WithAuditor(auditEmitter),
	)

	relayWS := ws.NewRelayWebSocketHandler(hub, messageRelay, authenticator, logger,
		ws.SendBufferSize(cfg.SendBufferSize),
		ws.WriteTimeout(cfg.WriteTimeout),
	)
	historyHandler := handlers.NewHistoryHandler(store, logger)

	router := newRouter(cfg, logger)
	router.GET("/ws", relayWS.Handle)
	router.GET("/messages/:user_id", middleware.AuthMiddleware(authenticator), historyHandler.GetConversation)
	handlers.RegisterOpsRoutes(router, hub, dir)
	handlers.RegisterDebugRoutes(router, auditEmitter, cfg.DebugRoutes)

	srv := &http.Server{
		Addr:              ":" + strconv.Itoa(cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 2)

	var health *grpcserver.HealthServer
	if cfg.GRPCPort > 0 {
		health = grpcserver.NewHealthServer(logger)
		go func() {
			if err := health.Serve(":" + strconv.Itoa(cfg.GRPCPort)); err != nil {
				errCh <- fmt.Errorf("grpc server: %w", err)
			}
		}()
		health.SetServing(true)
	}

	go func() {
		logger.Infow("http server listening", "address", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err = <-errCh:
		logger.Errorw("server failed", "error", err)
	}

	if health != nil {
		health.Stop()
	}
	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if shutdownErr := srv.Shutdown(sctx); shutdownErr != nil {
		logger.Warnw("http shutdown failed", "error", shutdownErr)
	}
	return err
}

func newRouter(cfg config.Config, logger *zap.SugaredLogger) *gin.Engine {
	if cfg.LogLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware(cfg.ServiceName))
	router.Use(observability.HTTPMetricsMiddleware())
	router.Use(requestLogger(logger))
	return router
}

func requestLogger(logger *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debugw("http request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(start),
			"request_id", observability.RequestIDFromRequest(c.Request),
		)
	}
}
