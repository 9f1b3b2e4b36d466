package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/joinhub/console/internal/api"
	"github.com/joinhub/console/internal/config"
	"github.com/joinhub/console/internal/convert"
	"github.com/joinhub/console/internal/export"
	"github.com/joinhub/console/internal/joinapi"
	"github.com/joinhub/console/internal/logging"
	"github.com/joinhub/console/internal/preview"
	"github.com/joinhub/console/internal/review"
	"github.com/joinhub/console/internal/session"
	"github.com/joinhub/console/internal/storage"
	"github.com/joinhub/console/internal/tracker"
	"github.com/joinhub/console/internal/unlock"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
)

// Version info (set during build)
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "join console: %v\n", err)
		os.Exit(1)
	}
}

func configPath() (string, error) {
	if p := os.Getenv("JOIN_CONSOLE_CONFIG"); p != "" {
		return p, nil
	}
	// Get the executable's directory for config resolution
	exePath, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("failed to get executable path: %w", err)
	}
	return filepath.Join(filepath.Dir(exePath), config.DefaultFileName), nil
}

func run() error {
	path, err := configPath()
	if err != nil {
		return err
	}

	// Load XML configuration
	cfg, err := config.LoadConfig(path)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := logging.New(cfg.Advanced.LogLevel, logging.FormatJSON)
	if err != nil {
		return err
	}
	defer logger.Sync()

	// Ensure all data directories exist
	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}

	client, err := joinapi.New(cfg.Backend.BaseURL,
		joinapi.WithTimeout(cfg.BackendTimeout()),
		joinapi.WithLogger(logger.Named("joinapi")))
	if err != nil {
		return err
	}

	// Initialize storage
	fileStore, err := storage.NewLocalStore(cfg.Storage.UploadsDirectory)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	downloads, err := storage.NewDownloads(cfg.Storage.DownloadsDirectory)
	if err != nil {
		return fmt.Errorf("failed to initialize downloads: %w", err)
	}

	previewer, err := preview.New(cfg.Processing.PreviewRows)
	if err != nil {
		return err
	}
	defer previewer.Close()

	sessionMgr := session.NewManager(client,
		session.WithMaxSessions(cfg.Processing.MaxSessions),
		session.WithRelease(fileStore.Release),
		session.WithLogger(logger.Named("session")))
	convertMgr := convert.NewManager(client, logger.Named("convert"), convert.WithRelease(fileStore.Release))

	deps := &api.Dependencies{
		Store:         fileStore,
		Downloads:     downloads,
		Sessions:      sessionMgr,
		Tracker:       tracker.New(client, logger.Named("tracker")),
		Board:         review.NewBoard(client, logger.Named("review")),
		Exporter:      export.New(client, export.WithPause(cfg.ExportPause()), export.WithLogger(logger.Named("export"))),
		Converter:     convertMgr,
		Previewer:     previewer,
		Unlock:        unlock.New(cfg.Security.UnlockTaps, cfg.UnlockWindow()),
		RequireUnlock: cfg.Security.RequireAdminUnlock,
		BackendURL:    client.BaseURL(),
		Version:       Version,
		Logger:        logger,

		WebSocketMaxMessageSize: int64(cfg.Advanced.WebSocketMaxMessageSize) * 1024,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Start background cleanup
	go func() {
		ticker := time.NewTicker(cfg.CleanupInterval())
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				sessions := sessionMgr.CleanupExpired(cfg.SessionTimeout())
				convertMgr.CleanupOldJobs(cfg.JobRetention())
				// staged files outlive their session only if something leaked
				files := fileStore.CleanupOlderThan(cfg.SessionTimeout() + cfg.JobRetention())
				if sessions > 0 || files > 0 {
					logger.Info("cleanup", zap.Int("sessions", sessions), zap.Int("files", files))
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	handlers := api.NewHandlers(deps)
	defer handlers.Hub.Close()

	api.SetupMiddleware(e, logger, cfg.Advanced.LogLevel == "debug")
	configureMiddleware(e, cfg, logger)
	api.RegisterRoutes(e, handlers)
	api.RegisterWebSocketRoutes(e, handlers)

	// Configure server with settings from XML config
	s := &http.Server{
		Addr:         cfg.GetServerAddr(),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
	}

	logger.Info("join console starting",
		zap.String("version", Version),
		zap.String("buildTime", BuildTime),
		zap.String("config", path),
		zap.String("listen", "http://"+cfg.GetServerAddr()),
		zap.String("backend", client.BaseURL()),
		zap.String("dataDir", cfg.Storage.DataDirectory))

	errCh := make(chan error, 1)
	go func() {
		if err := e.StartServer(s); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}

func configureMiddleware(e *echo.Echo, cfg *config.AppConfig, logger *zap.Logger) {
	accessLog := logger.Named("http")
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		Skipper: func(c echo.Context) bool {
			// Skip logging if disabled in config
			if !cfg.Advanced.EnableRequestLogging {
				return true
			}
			path := c.Request().URL.Path
			return path == "/api/health" ||
				(c.Request().Method == http.MethodGet && strings.HasPrefix(path, "/api/convert/"))
		},
		LogMethod:   true,
		LogURI:      true,
		LogStatus:   true,
		LogLatency:  true,
		LogRemoteIP: true,
		LogError:    true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			fields := []zap.Field{
				zap.String("method", v.Method),
				zap.String("uri", v.URI),
				zap.Int("status", v.Status),
				zap.Duration("latency", v.Latency),
				zap.String("remote", v.RemoteIP),
			}
			if v.Error != nil {
				fields = append(fields, zap.Error(v.Error))
			}
			accessLog.Info("request", fields...)
			return nil
		},
	}))

	e.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{
		StackSize: 1024 * 4,
		LogErrorFunc: func(c echo.Context, err error, stack []byte) error {
			logger.Error("panic recovered", zap.Error(err), zap.ByteString("stack", stack))
			return err
		},
	}))

	e.Use(middleware.TimeoutWithConfig(middleware.TimeoutConfig{
		Timeout: time.Duration(cfg.Server.RequestTimeout) * time.Second,
		Skipper: func(c echo.Context) bool {
			return strings.HasPrefix(c.Request().URL.Path, "/api/ws/")
		},
		ErrorMessage: "Request timeout - join backend took too long",
	}))

	// Compression middleware
	e.Use(middleware.GzipWithConfig(middleware.GzipConfig{
		Skipper: func(c echo.Context) bool {
			return strings.HasPrefix(c.Request().URL.Path, "/api/ws/")
		},
	}))

	// Body limit middleware
	e.Use(middleware.BodyLimit(cfg.Server.BodyLimit))

	// CORS configuration
	if cfg.Server.EnableCORS {
		origins := strings.Split(cfg.Server.AllowOrigins, ",")
		for i := range origins {
			origins[i] = strings.TrimSpace(origins[i])
		}
		if len(origins) == 0 || (len(origins) == 1 && origins[0] == "") {
			origins = []string{"*"}
		}
		e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
			AllowOrigins:  origins,
			AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
			AllowHeaders:  []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept},
			ExposeHeaders: []string{echo.HeaderContentDisposition},
		}))
	}
}
