package main

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/capabusiness/verification/assets"
	"github.com/capabusiness/verification/internal"
	"github.com/capabusiness/verification/internal/auth"
	"github.com/capabusiness/verification/internal/identity/firebase"
	"github.com/capabusiness/verification/internal/identity/memory"
	"github.com/capabusiness/verification/internal/logging"
	"github.com/capabusiness/verification/internal/observability"
	"github.com/capabusiness/verification/internal/web"
	"github.com/capabusiness/verification/internal/web/sessions"
	"github.com/capabusiness/verification/internal/web/view"
)

// sessionMaxAge is the lifetime of the session cookie in seconds.
const sessionMaxAge = 7 * 24 * 60 * 60

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	os.Exit(run(ctx, os.Stderr))
}

func run(ctx context.Context, w io.Writer) int {
	logger := slog.New(slog.NewTextHandler(w, nil))

	// Variables already in the environment win over the .env file.
	err := godotenv.Load()
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		logger.Error("failed to load .env file", "error", err)
		return 1
	}

	cfg, err := configFromEnv()
	if err != nil {
		logger.Error("failed to get config from environment", "error", err)
		return 1
	}

	logger = logging.New(w, cfg.log.format, cfg.log.level)

	viewRenderer, err := newViewRenderer(cfg, logger)
	if err != nil {
		logger.Error("failed to load templates", "error", err)
		return 1
	}

	authSvc := auth.NewService(newIdentityProvider(cfg, logger), func(err error) {
		// The visitor is never told about these, but we want to know.
		if errors.Is(err, auth.ErrAccountExists) || errors.Is(err, auth.ErrAccountNotFound) {
			logger.Info("identity request declined", "error", err)
			return
		}
		logging.LogError(logger, "auth worker failed", err)
	}, cfg.auth)

	registry := observability.NewRegistry()
	metrics := observability.NewMetrics(registry)

	sessionStore := sessions.NewStore(sessions.NewCookieStore(sessions.CookieConfig{
		Keys:   cfg.http.cookieKeys,
		Secure: cfg.http.server.SecureCookie,
		MaxAge: sessionMaxAge,
	}))

	server := web.NewServer(&web.ServerDeps{
		Logger:       logger,
		ViewRenderer: viewRenderer,
		AuthService:  authSvc,
		SessionStore: sessionStore,
		DistFS:       http.FS(assets.DistFS),
		Metrics:      metrics,
	}, cfg.http.server)

	srv := &http.Server{
		Addr:         cfg.http.addr,
		ReadTimeout:  cfg.http.readTimeout,
		WriteTimeout: cfg.http.writeTimeout,
		IdleTimeout:  cfg.http.idleTimeout,
		Handler:      server,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelWarn),
	}

	var metricsSrv *http.Server
	if cfg.metricsAddr != "" {
		metricsSrv = &http.Server{
			Addr:        cfg.metricsAddr,
			ReadTimeout: cfg.http.readTimeout,
			IdleTimeout: cfg.http.idleTimeout,
			Handler:     observability.Handler(registry),
		}
	}

	// We need to run these tasks concurrently:
	// - Listen and serving of the HTTP server.
	// - Listen and serving of the metrics server, if enabled.
	// - Waiting for a signal to stop the servers.

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("starting http server", "addr", cfg.http.addr, internal.BuildAttrs())
		// ListenAndServe always returns a non-nil error,
		// g will cancel gCtx when an error is returned, so
		// this will also stop the other goroutines.
		return srv.ListenAndServe()
	})

	if metricsSrv != nil {
		g.Go(func() error {
			logger.Info("starting metrics server", "addr", cfg.metricsAddr)
			return metricsSrv.ListenAndServe()
		})
	}

	g.Go(func() error {
		<-gCtx.Done()
		logger.Info("stopping http server")

		shutCtx, cancel := context.WithTimeout(context.Background(), cfg.http.shutdownTimeout)
		defer cancel()

		var errs []error
		if metricsSrv != nil {
			errs = append(errs, metricsSrv.Shutdown(shutCtx))
		}
		errs = append(errs, srv.Shutdown(shutCtx))

		return errors.Join(errs...)
	})

	err = g.Wait()

	// Registrations and password resets may still be in flight.
	authSvc.Wait()

	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("http server stopped with error", "error", err)
		return 1
	}

	logger.Info("http server stopped successfully")

	return 0
}

func newViewRenderer(cfg config, logger *slog.Logger) (web.ViewRenderer, error) {
	if cfg.http.viewDir != "" {
		logger.Info("loading templates from disk", "dir", cfg.http.viewDir)
		return view.NewFSRenderer(os.DirFS(cfg.http.viewDir)), nil
	}

	return view.NewMemRenderer(assets.TemplateFS)
}

func newIdentityProvider(cfg config, logger *slog.Logger) auth.IdentityProvider {
	if cfg.identity.driver == identityDriverFirebase {
		logger.Info("using firebase identity provider", "url", cfg.identity.firebase.APIURL.String())
		client := &http.Client{
			Timeout: cfg.identity.timeout,
		}
		return firebase.NewProvider(client, cfg.identity.firebase)
	}

	logger.Warn("using in-memory identity provider, accounts are lost on restart",
		"autoVerify", cfg.identity.memoryAutoVerify,
	)
	return memory.NewProvider(logger, cfg.identity.memoryAutoVerify)
}
