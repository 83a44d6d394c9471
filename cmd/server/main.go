package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"therapy-intake/internal/instrument"
	"therapy-intake/internal/intake"
	"therapy-intake/internal/platform/config"
	"therapy-intake/internal/platform/logging"
	"therapy-intake/internal/platform/telegram"
	"therapy-intake/internal/report"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logging: %v\n", err)
		os.Exit(1)
	}

	os.Exit(exitCode(logger, run(cfg, logger)))
}

// exitCode logs err and flushes the logger before main exits; os.Exit skips
// deferred calls.
func exitCode(logger *zap.Logger, err error) int {
	code := 0
	if err != nil {
		logger.Error("server stopped", zap.Error(err))
		code = 1
	}
	_ = logger.Sync()
	return code
}

func run(cfg config.Config, logger *zap.Logger) error {
	// 1. Instruments are validated before anything else so a broken
	// definition never reaches a client.
	catalog, err := loadCatalog(cfg.InstrumentsDir)
	if err != nil {
		return fmt.Errorf("load instruments: %w", err)
	}
	for _, in := range catalog.List() {
		logger.Info("instrument loaded", zap.String("id", in.ID), zap.Int("questions", in.QuestionCount()), zap.Int("max_score", in.MaxScore()))
	}

	// 2. Infrastructure
	db, err := connectDB(cfg, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := runMigrations(cfg); err != nil {
		return err
	}
	logger.Info("migrations applied")

	// 3. Services
	var reporter intake.Reporter
	if cfg.ReportsEnabled() {
		tgClient := telegram.NewClient(cfg.TelegramBotToken)
		reporter = report.NewService(tgClient, cfg.PracticeChatID, catalog, cfg.ReportFontPaths, logger.Named("report"))
	} else {
		logger.Warn("TELEGRAM_BOT_TOKEN or PRACTICE_CHAT_ID not set, submissions will not be forwarded")
	}

	repo := intake.NewRepository(db)
	intakeSvc := intake.NewService(catalog, repo, reporter, logger.Named("intake"), cfg.SessionIdleTTL)
	intakeHandler := intake.NewHandler(intakeSvc, logger.Named("http"))

	// 4. Router
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(logger.Named("http")))
	r.Use(middleware.Recoverer)
	r.Use(cors(cfg.AllowedOrigin))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := db.PingContext(r.Context()); err != nil {
			http.Error(w, "database unavailable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})
	r.Route("/api", func(r chi.Router) {
		intake.RegisterRoutes(r, intakeHandler)
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", zap.String("port", cfg.Port))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func loadCatalog(dir string) (*instrument.Catalog, error) {
	if dir == "" {
		return instrument.Default()
	}
	return instrument.LoadDir(dir)
}

// connectDB retries until postgres accepts connections; in compose setups the
// server usually starts first.
func connectDB(cfg config.Config, logger *zap.Logger) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	for i := 1; i <= cfg.DBConnectAttempts; i++ {
		if err = db.Ping(); err == nil {
			logger.Info("connected to database")
			return db, nil
		}
		logger.Info("waiting for database", zap.Int("attempt", i), zap.Int("of", cfg.DBConnectAttempts), zap.Error(err))
		if i < cfg.DBConnectAttempts {
			time.Sleep(cfg.DBConnectBackoff)
		}
	}
	db.Close()
	return nil, fmt.Errorf("could not connect to database: %w", err)
}

func runMigrations(cfg config.Config) error {
	m, err := migrate.New(cfg.MigrationsPath, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("migration init failed: %w", err)
	}
	defer m.Close()
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration up failed: %w", err)
	}
	return nil
}

func requestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			logger.Debug("request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())),
			)
		})
	}
}

// CORS for frontend
func cors(origin string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS, PUT")
			w.Header().Set("Access-Control-Allow-Headers", "Accept, Content-Type, Content-Length, Accept-Encoding")
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
