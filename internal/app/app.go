package app

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"paygate_backend/internal/auth"
	"paygate_backend/internal/config"
	"paygate_backend/internal/email"
	"paygate_backend/internal/gateway"
	"paygate_backend/internal/handlers"
	"paygate_backend/internal/ledger"
	"paygate_backend/internal/logger"
	"paygate_backend/internal/middleware"
	"paygate_backend/internal/routes"
	"paygate_backend/internal/services"
	"paygate_backend/internal/storage"
	"paygate_backend/internal/validator"
	"paygate_backend/internal/views"
	"paygate_backend/internal/workers"
	"paygate_backend/pkg/apperrors"

	"github.com/gin-gonic/gin"
)

// Dependencies are the stateful collaborators built from configuration.
type Dependencies struct {
	Ledger   ledger.Ledger
	Gateways *gateway.Registry
	Storage  storage.Storage
	Mailer   email.Mailer
}

func Run() {
	config.LoadConfig()
	cfg := config.AppConfig
	logger.Init(cfg.Server.Env)
	logger.Info("Logger initialized", "env", cfg.Server.Env)

	deps, err := BuildDependencies(cfg)
	if err != nil {
		logger.Fatal("Failed to initialize dependencies", "error", err)
	}

	ginRouter := SetupRouter(cfg, deps)

	workerCtx, stopWorkers := context.WithCancel(context.Background())
	defer stopWorkers()
	snapshotWorker := workers.NewSnapshotWorker(services.NewSnapshotService(deps.Ledger, deps.Storage), cfg.Storage.SnapshotInterval)
	snapshotWorker.Start(workerCtx)

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           ginRouter,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("Server starting", "address", cfg.Addr())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server startup error", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server")
	stopWorkers()
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Gateway.Timeout+5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.WithError(err).Error("Server forced to shutdown")
	}
	if closer, ok := deps.Ledger.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			logger.WithError(err).Error("Failed to close ledger")
		}
	}
}

// BuildDependencies opens the ledger, object storage and mailer and registers
// the payment gateways.
func BuildDependencies(cfg *config.Config) (Dependencies, error) {
	l, err := ledger.Open(cfg.Ledger.Driver, cfg.Ledger.Path, cfg.Ledger.DSN)
	if err != nil {
		return Dependencies{}, err
	}
	logger.Info("Ledger opened", "driver", cfg.Ledger.Driver)

	storageInstance, err := storage.NewStorage(storage.Config{
		Type:      cfg.Storage.Type,
		BasePath:  cfg.Storage.BasePath,
		BaseURL:   cfg.Storage.BaseURL,
		Bucket:    cfg.Storage.Bucket,
		Region:    cfg.Storage.Region,
		AccessKey: cfg.Storage.AccessKey,
		SecretKey: cfg.Storage.SecretKey,
		Endpoint:  cfg.Storage.Endpoint,
		UseSSL:    cfg.Storage.UseSSL,
	})
	if err != nil {
		return Dependencies{}, err
	}
	logger.Info("Storage initialized", "type", cfg.Storage.Type)

	var mailer email.Mailer = email.NoopMailer{}
	if cfg.Email.Enabled {
		smtpMailer, err := email.NewSMTPMailer(email.Config{
			Enabled:   cfg.Email.Enabled,
			SMTPHost:  cfg.Email.SMTPHost,
			SMTPPort:  cfg.Email.SMTPPort,
			Username:  cfg.Email.SMTPUsername,
			Password:  cfg.Email.SMTPPassword,
			FromEmail: cfg.Email.FromEmail,
			FromName:  cfg.Email.FromName,
			UseTLS:    cfg.Email.UseTLS,
		})
		if err != nil {
			return Dependencies{}, err
		}
		mailer = smtpMailer
	} else {
		logger.Warn("Receipt emails disabled")
	}

	return Dependencies{
		Ledger:   l,
		Gateways: NewGatewayRegistry(cfg),
		Storage:  storageInstance,
		Mailer:   mailer,
	}, nil
}

// NewGatewayRegistry registers every gateway; the default comes from config.
func NewGatewayRegistry(cfg *config.Config) *gateway.Registry {
	registry := gateway.NewRegistry(cfg.Gateway.Default, cfg.Gateway.Timeout)

	registry.Register(gateway.NewWebpayClient(gateway.WebpayConfig{
		BaseURL:      cfg.Webpay.BaseURL,
		CommerceCode: cfg.Webpay.CommerceCode,
		APIKey:       cfg.Webpay.APIKey,
		Timeout:      cfg.Gateway.Timeout,
	}))
	registry.Register(gateway.NewMercadoPagoClient(gateway.MercadoPagoConfig{
		BaseURL:     cfg.MercadoPago.BaseURL,
		AccessToken: cfg.MercadoPago.AccessToken,
		Currency:    cfg.MercadoPago.Currency,
		Sandbox:     cfg.MercadoPago.Sandbox,
		Timeout:     cfg.Gateway.Timeout,
	}))
	registry.Register(gateway.NewMockClient())

	if !registry.Has(cfg.Gateway.Default) {
		logger.Warn("Configured default gateway is unknown", "gateway", cfg.Gateway.Default, "available", registry.Names())
	}
	return registry
}

func SetupRouter(cfg *config.Config, deps Dependencies) *gin.Engine {
	apperrors.SetDebug(cfg.Server.Debug)

	// 1. Services
	serviceContainer, tokens := initializeServices(cfg, deps)

	// 2. Handlers
	appHandlers := initializeHandlers(serviceContainer, deps.Gateways, tokens)

	// 3. Gin
	ginRouter := initializeGinRouter(cfg)

	routes.RegisterRoutes(ginRouter, appHandlers)
	return ginRouter
}

func initializeServices(cfg *config.Config, deps Dependencies) (*services.ServiceContainer, *auth.TokenManager) {
	container := &services.ServiceContainer{
		PaymentService:  services.NewPaymentService(deps.Gateways, deps.Ledger, deps.Mailer, cfg.Gateway.ReturnURL),
		HistoryService:  services.NewHistoryService(deps.Ledger),
		SnapshotService: services.NewSnapshotService(deps.Ledger, deps.Storage),
	}

	if !cfg.AdminEnabled() {
		return container, nil
	}
	tokens := auth.NewTokenManager(cfg.Admin.JWTSecret, cfg.Admin.TokenTTL)
	container.AdminService = services.NewAdminService(cfg.Admin.Username, cfg.Admin.PasswordHash, tokens)
	return container, tokens
}

func initializeHandlers(svc *services.ServiceContainer, gateways *gateway.Registry, tokens *auth.TokenManager) *handlers.AppHandlers {
	customValidator := validator.New(validator.WithGateways(gateways.Names()...))
	baseHandler := handlers.NewBaseHandler(customValidator)

	appHandlers := &handlers.AppHandlers{
		PaymentHandler: handlers.NewPaymentHandler(baseHandler, svc.PaymentService),
		HistoryHandler: handlers.NewHistoryHandler(baseHandler, svc.HistoryService),
		HealthHandler:  handlers.NewHealthHandler(gateways.Names()),
	}
	if svc.AdminService != nil {
		appHandlers.AdminHandler = handlers.NewAdminHandler(baseHandler, svc.AdminService, svc.SnapshotService, tokens)
	}
	return appHandlers
}

func initializeGinRouter(cfg *config.Config) *gin.Engine {
	if !cfg.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.SetHTMLTemplate(views.Templates())
	router.Use(gin.Recovery())
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.LoggingMiddleware())
	router.Use(middleware.CORSMiddleware(cfg.Server.CORSOrigins))
	router.NoRoute(func(c *gin.Context) {
		apperrors.HandleError(c, apperrors.NewNotFoundError("route", "Route not found"))
	})
	return router
}
