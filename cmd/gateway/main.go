package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"time"

	"github.com/codearena/portal-gateway/internal/config"
	"github.com/codearena/portal-gateway/internal/db"
	"github.com/codearena/portal-gateway/internal/notify"
	"github.com/codearena/portal-gateway/internal/pipeline"
	"github.com/codearena/portal-gateway/internal/proxy"
	"github.com/codearena/portal-gateway/internal/refresh"
	"github.com/codearena/portal-gateway/internal/tokenstore"
	"github.com/getsentry/sentry-go"
	sentryecho "github.com/getsentry/sentry-go/echo"
	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"
)

func main() {
	// Logging setup
	slog.SetDefault(jsonLogger)
	// Load configuration
	ch := config.NewConfigHandler()
	gwConfig, err := ch.Config()
	if err != nil {
		slog.Error("loading the configuration failed", "error", err)
		os.Exit(1)
	}
	slog.Info("loaded config", "config", gwConfig)
	err = gwConfig.Validate()
	if err != nil {
		slog.Error("the config validation failed", "error", err)
		os.Exit(1)
	}
	// Set log level to "debug" if activated
	if gwConfig.DebugMode {
		logLevel.Set(slog.LevelDebug)
	}
	// Setup
	e := echo.New()
	e.Pre(middleware.RequestID(), middleware.RemoveTrailingSlash())
	e.Use(middleware.Recover())
	e.HTTPErrorHandler = proxy.ErrorHandler()
	// The banner and the port do not respect the logger formatting we set below so we remove them
	// the port will be logged further down when the server starts.
	e.HideBanner = true
	e.HidePort = true
	// Health check
	e.GET("/health", func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})
	// Version endpoint
	buildInfo, ok := debug.ReadBuildInfo()
	version := ""
	if ok && buildInfo != nil {
		version = buildInfo.Main.Version
	}
	e.GET("/version", func(c echo.Context) error {
		return c.String(http.StatusOK, version)
	})
	// Initialize the db adapter
	dbAdapter, err := db.NewRedisAdapter(db.WithRedisConfig(gwConfig.Redis))
	if err != nil {
		slog.Error("DB adapter initialization failed", "error", err)
		os.Exit(1)
	}
	// Initialize the token store and load any token pair persisted by a previous run
	tokenStore, err := tokenstore.NewTokenStore(tokenstore.WithTokenRepository(dbAdapter))
	if err != nil {
		slog.Error("token store initialization failed", "error", err)
		os.Exit(1)
	}
	err = tokenStore.Hydrate(context.Background())
	if err != nil {
		slog.Error("restoring the persisted token pair failed", "error", err)
		os.Exit(1)
	}
	// Initialize the refresh coordinator against the upstream token endpoint
	upstreamClient := &http.Client{Timeout: time.Duration(gwConfig.Upstream.RequestTimeoutSeconds) * time.Second}
	exchanger, err := refresh.NewHTTPExchanger(
		refresh.WithRefreshURL(gwConfig.Upstream.BaseURL.JoinPath(gwConfig.Upstream.RefreshPath)),
		refresh.WithHTTPClient(upstreamClient),
	)
	if err != nil {
		slog.Error("exchanger initialization failed", "error", err)
		os.Exit(1)
	}
	coordinator, err := refresh.NewCoordinator(
		refresh.WithTokenStore(tokenStore),
		refresh.WithExchanger(exchanger),
	)
	if err != nil {
		slog.Error("refresh coordinator initialization failed", "error", err)
		os.Exit(1)
	}
	// Sentry
	var sink notify.Sink = notify.SlogSink{}
	if gwConfig.Monitoring.Sentry.Enabled {
		err := sentry.Init(sentry.ClientOptions{
			Dsn:              string(gwConfig.Monitoring.Sentry.Dsn),
			TracesSampleRate: gwConfig.Monitoring.Sentry.SampleRate,
			Environment:      gwConfig.Monitoring.Sentry.Environment,
		})
		if err != nil {
			slog.Error("sentry initialization failed", "error", err)
		} else {
			sink = notify.NewSentrySink()
		}
		e.Use(sentryecho.New(sentryecho.Options{}))
	}
	// Initialize the request pipeline
	requestPipeline, err := pipeline.NewPipeline(
		pipeline.WithTransport(upstreamClient),
		pipeline.WithTokenStore(tokenStore),
		pipeline.WithRefreshCoordinator(coordinator),
		pipeline.WithNotificationSink(sink),
	)
	if err != nil {
		slog.Error("pipeline initialization failed", "error", err)
		os.Exit(1)
	}
	// Initialize the gateway proxy
	gwProxy, err := proxy.NewServer(proxy.WithConfig(gwConfig.Upstream), proxy.WithPipeline(requestPipeline))
	if err != nil {
		slog.Error("proxy handlers initialization failed", "error", err)
		os.Exit(1)
	}
	gwProxy.RegisterHandlers(e, commonMiddlewares...)
	// Proactive token refresh
	if gwConfig.Refresh.ProactiveEnabled {
		scheduler, err := refresh.ScheduleProactiveRefresh(
			context.Background(),
			coordinator,
			tokenStore,
			time.Duration(gwConfig.Refresh.ExpiryMarginSeconds)*time.Second,
			time.Duration(gwConfig.Refresh.ProactiveIntervalSeconds)*time.Second,
		)
		if err != nil {
			slog.Error("scheduling the proactive token refresh failed", "error", err)
			os.Exit(1)
		}
		defer scheduler.Stop()
	}
	// Rate limiting
	if gwConfig.Server.RateLimits.Enabled {
		e.Use(middleware.RateLimiter(
			middleware.NewRateLimiterMemoryStoreWithConfig(
				middleware.RateLimiterMemoryStoreConfig{
					Rate:      rate.Limit(gwConfig.Server.RateLimits.Rate),
					Burst:     gwConfig.Server.RateLimits.Burst,
					ExpiresIn: 3 * time.Minute,
				}),
		),
		)
	}
	// CORS
	if len(gwConfig.Server.AllowOrigin) > 0 {
		e.Use(middleware.CORSWithConfig(middleware.CORSConfig{AllowOrigins: gwConfig.Server.AllowOrigin}))
	}
	// Prometheus
	if gwConfig.Monitoring.Prometheus.Enabled {
		e.Use(echoprometheus.NewMiddleware("gateway"))
		go func() {
			metrics := echo.New()
			metrics.HideBanner = true
			metrics.HidePort = true
			metrics.GET("/metrics", echoprometheus.NewHandler())
			err := metrics.Start(fmt.Sprintf(":%d", gwConfig.Monitoring.Prometheus.Port))
			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("prometheus server failed to start", "error", err)
				os.Exit(1)
			}
		}()
	}
	// Start server
	address := fmt.Sprintf("%s:%d", gwConfig.Server.Host, gwConfig.Server.Port)
	slog.Info("starting the server on address " + address)
	go func() {
		err := e.Start(address)
		if err != nil && err != http.ErrServerClosed {
			slog.Error("shutting down the server gracefuly failed", "error", err)
			os.Exit(1)
		}
	}()
	// Wait for interrupt signal to gracefully shutdown the server with a timeout of 10 seconds.
	// Use a buffered channel to avoid missing signals as recommended for signal.Notify
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt)
	<-quit
	slog.Info("received signal to shut down the server")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		slog.Error("shutting down the server gracefully failed", "error", err)
		os.Exit(1)
	}
}
