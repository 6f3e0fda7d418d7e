// Command server runs the uploads HTTP API.
//
// @title           Recruit Uploads API
// @version         1.0
// @description     Reconciles each candidate's attachment set (videos, certificates, achievements) against a posted target list.
// @BasePath        /api/v1
package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/tbourn/go-recruit-uploads/internal/bootstrap"
	"github.com/tbourn/go-recruit-uploads/internal/config"
	httpapi "github.com/tbourn/go-recruit-uploads/internal/http"
	"github.com/tbourn/go-recruit-uploads/internal/observability"
	"github.com/tbourn/go-recruit-uploads/internal/sysutil"
)

var version = "dev"

const shutdownTimeout = 10 * time.Second

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}
	log.Logger = sysutil.NewLogger(os.Stdout, cfg.LogLevel, cfg.LogPretty)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, nil); err != nil {
		log.Fatal().Err(err).Msg("server exited")
	}
}

// run serves until ctx is cancelled, then drains in-flight requests. When
// ready is non-nil it receives the bound address once the listener is up.
func run(ctx context.Context, cfg config.Config, ready chan<- string) error {
	gin.SetMode(cfg.GinMode)

	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, version, observability.StoreAttributes(cfg.Store)...)
	if err != nil {
		return err
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdownOTel(sctx); err != nil {
			log.Warn().Err(err).Msg("otel shutdown")
		}
	}()

	app, err := bootstrap.Build(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = app.Close() }()

	r := gin.New()
	httpapi.RegisterRoutes(r, httpapi.Deps{Uploads: app.Uploads, DB: app.DB}, cfg)

	srv := newHTTPServer(cfg, r)
	ln, err := net.Listen("tcp", srv.Addr)
	if err != nil {
		return err
	}

	log.Info().
		Str("addr", ln.Addr().String()).
		Str("store", cfg.Store.Backend).
		Str("version", version).
		Msg("listening")
	if ready != nil {
		ready <- ln.Addr().String()
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(sctx)
}

func newHTTPServer(cfg config.Config, h http.Handler) *http.Server {
	return &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           h,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}
}
