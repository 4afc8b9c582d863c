package main

import (
	"context"
	"errors"
	"flag"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/tckz/view-counter/internal/config"
	"github.com/tckz/view-counter/internal/counter"
	"github.com/tckz/view-counter/internal/handler"
	"github.com/tckz/view-counter/internal/log"
	"github.com/tckz/view-counter/internal/store"
	"go.uber.org/zap"
)

var (
	myName  = filepath.Base(os.Args[0])
	logger  *zap.SugaredLogger
	version string
)

var (
	optShutdownTimeout = flag.Duration("shutdown-timeout", 10*time.Second, "Grace period for in-flight requests")
)

func main() {
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Must(log.NewLogger()).Sugar().Fatalf("*** config.Load: %v", err)
	}

	zl := log.Must(log.NewLogger(log.WithLogLevel(cfg.LogLevel), log.WithFields(zap.String("app", myName))))
	logger = zl.Sugar()
	logger.Infof("ver=%s, args=%s", version, os.Args)
	defer logger.Infof("done")

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg, zl); err != nil {
		logger.Fatalf("*** run: %v", err)
	}
}

func run(ctx context.Context, cfg *config.Config, zl *zap.Logger) error {
	svc, closer, err := store.NewService(ctx, cfg, counter.WithLogger(zl))
	if err != nil {
		return err
	}
	defer closer()

	srv := &http.Server{
		Addr:              net.JoinHostPort("", cfg.Port),
		Handler:           handler.NewHTTPHandler(svc, zl),
		ReadHeaderTimeout: 5 * time.Second,
	}

	chErr := make(chan error, 1)
	go func() {
		logger.Infof("listen on %s, backend=%s, table=%s, key=%s", srv.Addr, cfg.Backend, cfg.Table, cfg.Key)
		chErr <- srv.ListenAndServe()
	}()

	select {
	case err := <-chErr:
		return err
	case <-ctx.Done():
		logger.Infof("Received signal, shutting down")
	}

	ctxShutdown, cancel := context.WithTimeout(context.Background(), *optShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctxShutdown); err != nil {
		return err
	}
	if err := <-chErr; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
