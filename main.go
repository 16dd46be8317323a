package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gowa-broadcast/config"
	"gowa-broadcast/database"
	"gowa-broadcast/internal/dispatch"
	"gowa-broadcast/internal/handler"
	"gowa-broadcast/internal/logging"
	customMiddleware "gowa-broadcast/internal/middleware"
	"gowa-broadcast/internal/model"
	"gowa-broadcast/internal/reconcile"
	"gowa-broadcast/internal/service"
	"gowa-broadcast/internal/session"
	"gowa-broadcast/internal/wa"
	"gowa-broadcast/internal/ws"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

func main() {
	cfg := config.Load()
	logger := logging.New(cfg.LogLevel, cfg.LogFormat, os.Stdout)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("server stopped")
	}
}

func run(ctx context.Context, cfg *config.Config, logger zerolog.Logger) error {
	db, err := database.Open(ctx, cfg.AppDatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()
	logger.Info().Str("dialect", string(db.Dialect)).Msg("app database connected")

	if err := model.EnsureSchema(ctx, db); err != nil {
		return err
	}
	if len(os.Args) > 1 && os.Args[1] == "--createschema" {
		logger.Info().Msg("schema created")
		return nil
	}

	container, err := database.OpenDeviceStore(ctx, cfg.DeviceDatabaseURL, logging.WA(logger, "Database"))
	if err != nil {
		return err
	}
	wa.SetDeviceName(cfg.DeviceName)

	if cfg.JWTSecret == "" {
		logger.Warn().Msg("JWT_SECRET is not set")
	}
	if cfg.AdminPasswordHash == "" {
		logger.Warn().Msg("ADMIN_PASSWORD_HASH is not set, login is disabled")
	}

	contacts := model.NewContactStore(db)
	categories := model.NewCategoryStore(db)
	templates := model.NewTemplateStore(db)
	jobStore := model.NewDispatchJobStore(db)

	hub := ws.NewHub(logger)
	hubCtx, stopHub := context.WithCancel(context.Background())
	defer stopHub()
	go hub.Run(hubCtx)

	webhook := service.NewWebhook(cfg.WebhookURL, cfg.WebhookSecret, logger)
	reconciler := reconcile.New(contacts, cfg.Phone.MinDigits, logger)
	events := service.NewEvents(contacts, reconciler, hub, webhook, cfg.Phone.MinDigits, logger)

	manager := session.NewManager(
		cfg.Session,
		wa.NewDialer(container, logger),
		wa.NewDeviceStore(container),
		logger,
		session.WithEventSink(events.Handle),
		session.WithStatusHook(events.Status),
		session.WithQRHook(events.QR),
	)
	if err := manager.Start(ctx); err != nil {
		logger.Error().Err(err).Msg("failed to resume session")
	}

	scheduler := dispatch.NewScheduler(manager, contacts, cfg.Phone, logger)
	registry := dispatch.NewRegistry(scheduler, cfg.Dispatch, logger,
		dispatch.WithRecorder(jobStore),
		dispatch.WithObserver(events),
	)
	broadcaster := service.NewBroadcaster(contacts, categories, templates, registry, cfg.Phone, logger)
	auth := service.NewAuth(cfg.JWTSecret, cfg.JWTAccessExpiry, cfg.AdminUsername, cfg.AdminPasswordHash)

	e := newServer(cfg, logger)
	h := &handler.Handler{
		Session:       manager,
		Jobs:          registry,
		History:       jobStore,
		Contacts:      contacts,
		Categories:    categories,
		Templates:     templates,
		Broadcast:     broadcaster,
		Auth:          auth,
		Hub:           hub,
		Phones:        cfg.Phone,
		MediaMaxBytes: cfg.MediaMaxBytes,
		Log:           logger,
	}
	h.Register(e, customMiddleware.JWTAuth(auth))

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("port", cfg.Port).Msg("http server listening")
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		logger.Info().Msg("shutting down")
	case err := <-errCh:
		if err != nil {
			logger.Error().Err(err).Msg("http server failed")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("http shutdown")
	}
	if err := registry.Close(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("dispatch jobs did not stop in time")
	}
	if err := manager.Close(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("session close")
	}
	stopHub()
	webhook.Wait()

	logger.Info().Msg("bye")
	return nil
}

func newServer(cfg *config.Config, logger zerolog.Logger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HTTPErrorHandler = handler.HTTPErrorHandler
	e.Use(middleware.Recover())

	httpLog := logger.With().Str("component", "http").Logger()
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:   true,
		LogURIPath:  true,
		LogStatus:   true,
		LogLatency:  true,
		LogRemoteIP: true,
		LogError:    true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			ev := httpLog.Debug()
			if v.Error != nil || v.Status >= http.StatusInternalServerError {
				ev = httpLog.Warn().Err(v.Error)
			}
			ev.Str("method", v.Method).
				Str("path", v.URIPath).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Str("ip", v.RemoteIP).
				Msg("request")
			return nil
		},
	}))

	if len(cfg.CORSAllowOrigins) > 0 {
		e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
			AllowOrigins: cfg.CORSAllowOrigins,
			AllowMethods: []string{
				echo.GET,
				echo.POST,
				echo.PUT,
				echo.DELETE,
				echo.OPTIONS,
			},
			AllowHeaders: []string{
				echo.HeaderOrigin,
				echo.HeaderContentType,
				echo.HeaderAccept,
				echo.HeaderXRequestedWith,
				echo.HeaderAuthorization,
			},
			AllowCredentials: true,
		}))
	}

	e.Use(middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
		Store: middleware.NewRateLimiterMemoryStoreWithConfig(
			middleware.RateLimiterMemoryStoreConfig{
				Rate:      rate.Limit(cfg.RateLimitPerSecond),
				Burst:     cfg.RateLimitBurst,
				ExpiresIn: cfg.RateLimitWindow,
			},
		),
	}))
	return e
}
