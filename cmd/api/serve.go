package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"

	"github.com/BradenHooton/carecheck/internal/access"
	"github.com/BradenHooton/carecheck/internal/analytics"
	"github.com/BradenHooton/carecheck/internal/auth"
	"github.com/BradenHooton/carecheck/internal/background"
	"github.com/BradenHooton/carecheck/internal/config"
	"github.com/BradenHooton/carecheck/internal/handlers"
	middlewareCustom "github.com/BradenHooton/carecheck/internal/middleware"
	"github.com/BradenHooton/carecheck/internal/routes"
	pkghttp "github.com/BradenHooton/carecheck/pkg/http"
	pkglogger "github.com/BradenHooton/carecheck/pkg/logger"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the admin API server",
	RunE:  runServe,
}

func init() {
	registerServeFlags(serveCmd)
}

// registerServeFlags defines the explicit overrides. Only flags set on the
// command line take part in configuration.
func registerServeFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("config", "", "path to the bundle configuration file (TOML)")
	f.String("port", "", "listen port")
	f.Duration("session-timeout", 0, "admin idle timeout")
	f.Int("max-failures", 0, "failed sign-ins before lockout")
	f.Duration("attempt-spacing", 0, "minimum time between sign-in attempts")
	f.Duration("base-lockout", 0, "first lockout duration")
	f.Duration("max-lockout", 0, "longest lockout duration")
}

func overridesFromFlags(cmd *cobra.Command) (config.Overrides, error) {
	f := cmd.Flags()
	var o config.Overrides
	var err error

	if o.BundlePath, err = f.GetString("config"); err != nil {
		return o, err
	}
	if f.Changed("port") {
		port, err := f.GetString("port")
		if err != nil {
			return o, err
		}
		o.Port = &port
	}
	if f.Changed("max-failures") {
		n, err := f.GetInt("max-failures")
		if err != nil {
			return o, err
		}
		o.MaxFailuresBeforeLockout = &n
	}

	durations := []struct {
		name   string
		target **time.Duration
	}{
		{"session-timeout", &o.SessionIdleTimeout},
		{"attempt-spacing", &o.MinimumAttemptSpacing},
		{"base-lockout", &o.BaseLockout},
		{"max-lockout", &o.MaxLockout},
	}
	for _, d := range durations {
		if !f.Changed(d.name) {
			continue
		}
		v, err := f.GetDuration(d.name)
		if err != nil {
			return o, err
		}
		*d.target = &v
	}
	return o, nil
}

func runServe(cmd *cobra.Command, _ []string) error {
	overrides, err := overridesFromFlags(cmd)
	if err != nil {
		return err
	}

	cfg, err := config.Load(overrides)
	if err != nil {
		slog.Error("failed to load configuration", slog.Any("error", err))
		return err
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: pkglogger.ParseLevel(cfg.Server.LogLevel),
	}))
	slog.SetDefault(logger)

	logger.Info("configuration loaded",
		slog.String("env", cfg.Server.Env),
		slog.Duration("session_idle_timeout", cfg.Session.IdleTimeout),
		slog.Int("max_failures_before_lockout", cfg.Login.MaxFailuresBeforeLockout))

	auditLogger := pkglogger.NewAuditLogger(logger, cfg.Server.Env)

	creds, err := access.NewStaticCredentials(cfg.Admin.Username, cfg.Admin.Password, cfg.Admin.PasswordHash)
	if err != nil {
		return fmt.Errorf("admin credentials: %w", err)
	}

	throttle := access.NewLoginThrottle(access.ThrottleConfig{
		MaxFailuresBeforeLockout: cfg.Login.MaxFailuresBeforeLockout,
		MinimumAttemptSpacing:    cfg.Login.MinimumAttemptSpacing,
		BaseLockout:              cfg.Login.BaseLockout,
		MaxLockout:               cfg.Login.MaxLockout,
		ResetFailuresOnLockout:   cfg.Login.ResetFailuresOnLockout,
	}, creds, access.WithThrottleLogger(logger))

	guard := access.NewSessionGuard(access.GuardConfig{Timeout: cfg.Session.IdleTimeout},
		access.WithGuardLogger(logger))
	guard.OnRevoked(func(reason access.RevokeReason) {
		auditLogger.LogSessionEvent(pkglogger.SessionEvent{
			EventType: "revoked",
			Reason:    reason.String(),
		})
	})

	timingDelay := auth.NewTimingDelay(auth.TimingConfig{
		BaseDelayMs:    cfg.Login.TimingDelayBaseMs,
		RandomDelayMs:  cfg.Login.TimingDelayRandomMs,
		DelayOnSuccess: cfg.Login.TimingDelayOnSuccess,
	})

	ipConfig := &pkghttp.IPConfig{TrustedProxies: cfg.Server.TrustedProxies}

	authHandler := handlers.NewAuthHandler(throttle, guard, timingDelay, auditLogger, ipConfig, logger)
	checkIns := analytics.NewMemorySource(nil)
	adminHandler := handlers.NewAdminHandler(checkIns, logger)
	checkInHandler := handlers.NewCheckInHandler(checkIns, nil, logger)

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middlewareCustom.SecurityHeaders(middlewareCustom.SecurityHeadersConfig{Env: cfg.Server.Env}))
	router.Use(middlewareCustom.SecureLogger(logger, ipConfig))
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(30 * time.Second))

	routes.RegisterRoutes(router, authHandler, adminHandler, checkInHandler, guard, middlewareCustom.RateLimitConfig{
		RequestsPerMinute: cfg.Server.RequestsPerMin,
		IPConfig:          ipConfig,
	})

	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		pkghttp.WriteJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
	})

	server := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	watcher := background.NewExpiryWatcher(guard, logger, cfg.Session.ExpirySweepInterval)
	go watcher.Start(ctx)

	done := make(chan error, 1)
	go func() {
		logger.Info("starting server", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			done <- fmt.Errorf("server failed: %w", err)
			return
		}
		done <- nil
	}()

	select {
	case err := <-done:
		watcher.Stop()
		guard.Close()
		return err
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	watcher.Stop()
	// Tear the guard down first so no idle callback runs during shutdown
	guard.Close()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", slog.Any("error", err))
		return err
	}

	logger.Info("server stopped gracefully")
	return nil
}
