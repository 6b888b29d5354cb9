package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/project-optimizer/console/internal/analytics"
	"github.com/project-optimizer/console/internal/api"
	"github.com/project-optimizer/console/internal/backend"
	"github.com/project-optimizer/console/internal/config"
	"github.com/project-optimizer/console/internal/render"
	"github.com/project-optimizer/console/internal/session"
	"github.com/project-optimizer/console/internal/storage"
	"github.com/project-optimizer/console/internal/upload"
	"github.com/project-optimizer/console/internal/web"
)

// Version info (set during build)
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	configPath := flag.String("config", "", "path to console.yaml (default: next to the executable)")
	flag.Parse()

	if *configPath == "" {
		exePath, err := os.Executable()
		if err != nil {
			fmt.Printf("Failed to get executable path: %v\n", err)
			os.Exit(1)
		}
		*configPath = filepath.Join(filepath.Dir(exePath), "console.yaml")
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.Advanced)
	slog.SetDefault(logger)

	if err := run(cfg, *configPath, logger); err != nil {
		logger.Error("console stopped", "error", err)
		os.Exit(1)
	}
}

func newLogger(cfg config.AdvancedConfig) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(cfg.LogFormat, "json") {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}

func run(cfg *config.AppConfig, configPath string, logger *slog.Logger) error {
	if err := cfg.EnsureDirectories(); err != nil {
		return fmt.Errorf("creating directories: %w", err)
	}

	fileStore, err := storage.NewLocalStore(cfg.GetStagingDir())
	if err != nil {
		return fmt.Errorf("initializing staging storage: %w", err)
	}

	files := upload.NewManager(fileStore, upload.Options{
		MaxFileSize:  cfg.MaxFileSize(),
		AllowedTypes: cfg.Upload.AllowedTypes,
	}, logger)

	client := backend.NewClient(backend.Options{
		BaseURL:       cfg.Backend.BaseURL,
		Timeout:       cfg.Backend.RequestTimeout,
		UploadTimeout: cfg.Backend.UploadTimeout,
	}, logger)

	renderOpts := render.Options{Markdown: render.NewGoldmark()}
	projects, err := analytics.NewProjectStore(analytics.Options{
		Threads:     cfg.Advanced.DuckDBThreads,
		MemoryLimit: cfg.Advanced.DuckDBMemoryLimit,
	}, logger)
	if err != nil {
		logger.Warn("analytics store unavailable, charts computed in process", "error", err)
	} else {
		defer projects.Close()
		renderOpts.Charts = projects
	}
	renderer := render.NewRenderer(renderOpts, logger)

	ctrl := session.NewController(client, files, session.Options{PollInterval: cfg.Backend.PollInterval}, logger)
	defer ctrl.Shutdown()

	h := api.NewHandler(api.Dependencies{
		Session:  ctrl,
		Files:    files,
		Backend:  client,
		Renderer: renderer,
		Version:  Version,
		Logger:   logger,
	})
	wsHandler := api.NewWebSocketHandler(ctrl, logger)

	embeddedMode := web.HasEmbeddedFiles()
	e := newEcho(cfg, embeddedMode, logger)
	api.RegisterRoutes(e, h, wsHandler)

	if embeddedMode {
		if err := web.RegisterStaticRoutes(e); err != nil {
			logger.Warn("failed to register static routes", "error", err)
		}
	}

	s := &http.Server{
		Addr:         cfg.GetServerAddr(),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
	}

	printBanner(cfg, configPath)
	checkBackend(client, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

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

func newEcho(cfg *config.AppConfig, embeddedMode bool, logger *slog.Logger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = api.NewErrorHandler(logger, strings.EqualFold(cfg.Advanced.LogLevel, "debug"))

	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		Skipper: func(c echo.Context) bool {
			if !cfg.Advanced.EnableRequestLogging {
				return true
			}
			path := c.Request().URL.Path
			return path == "/api/health" || path == "/api/session" || path == "/api/ws"
		},
		LogMethod:   true,
		LogURI:      true,
		LogStatus:   true,
		LogLatency:  true,
		LogError:    true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			attrs := []any{"method", v.Method, "uri", v.URI, "status", v.Status, "latency", v.Latency}
			if v.Error != nil {
				attrs = append(attrs, "error", v.Error)
			}
			logger.Info("request", attrs...)
			return nil
		},
	}))

	e.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{
		StackSize: 4 * 1024,
	}))

	e.Use(middleware.BodyLimit(cfg.Server.BodyLimit))

	if cfg.Server.EnableCORS {
		origins := []string{
			"http://localhost:5173", "http://127.0.0.1:5173",
			"http://localhost:3000", "http://127.0.0.1:3000",
		}
		if embeddedMode {
			origins = origins[:0]
			for _, o := range strings.Split(cfg.Server.AllowOrigins, ",") {
				if o = strings.TrimSpace(o); o != "" {
					origins = append(origins, o)
				}
			}
			if len(origins) == 0 {
				origins = []string{"*"}
			}
		}
		e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
			AllowOrigins: origins,
			AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
			AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept},
		}))
	}

	return e
}

// checkBackend logs whether the analysis backend answers. The console
// starts either way.
func checkBackend(client *backend.Client, logger *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	h, err := client.Health(ctx)
	if err != nil {
		logger.Warn("analysis backend not reachable", "url", client.BaseURL(), "error", err)
		return
	}
	logger.Info("analysis backend reachable", "url", client.BaseURL(), "status", h.Status, "orchestrator_ready", h.OrchestratorReady)
}

func printBanner(cfg *config.AppConfig, configPath string) {
	fmt.Printf("\n")
	fmt.Printf("╔═══════════════════════════════════════════════════════════╗\n")
	fmt.Printf("║           Project Optimizer Console                       ║\n")
	fmt.Printf("╠═══════════════════════════════════════════════════════════╣\n")
	fmt.Printf("║  Version:    %-45s║\n", Version)
	fmt.Printf("║  Build Time: %-45s║\n", BuildTime)
	fmt.Printf("╠═══════════════════════════════════════════════════════════╣\n")
	fmt.Printf("║  Config:    %-46s║\n", configPath)
	fmt.Printf("║  Listen:    http://%-38s║\n", cfg.GetServerAddr())
	fmt.Printf("║  Backend:   %-46s║\n", cfg.Backend.BaseURL)
	fmt.Printf("║  Data Dir:  %-46s║\n", cfg.GetDataDir())
	fmt.Printf("╚═══════════════════════════════════════════════════════════╝\n")
	fmt.Printf("\n")
}
