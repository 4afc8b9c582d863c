package main

import (
	"context"
	"os"
	"path/filepath"

	"github.com/aws/aws-lambda-go/lambda"
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

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Must(log.NewLogger()).Sugar().Fatalf("*** config.Load: %v", err)
	}

	zl := log.Must(log.NewLogger(log.WithLogLevel(cfg.LogLevel), log.WithFields(zap.String("app", myName))))
	logger = zl.Sugar()
	logger.Infof("ver=%s, backend=%s, table=%s, key=%s, mode=%s", version, cfg.Backend, cfg.Table, cfg.Key, cfg.HandlerMode)

	// Store clients live for the whole container so warm invocations reuse them.
	svc, closer, err := store.NewService(context.Background(), cfg, counter.WithLogger(zl))
	if err != nil {
		logger.Fatalf("*** store.NewService: %v", err)
	}
	defer closer()

	switch cfg.HandlerMode {
	case config.HandlerModeAPIGW:
		lambda.Start(handler.APIGateway(svc, zl))
	default:
		lambda.Start(handler.Invoke(svc))
	}
}
