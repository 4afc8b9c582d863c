package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/tckz/view-counter/internal/config"
	"github.com/tckz/view-counter/internal/log"
	"github.com/tckz/view-counter/internal/store"
	"go.uber.org/zap"
)

// verb names what this command does, for the memory-backend guard message.
const verb = "read"

var (
	myName  = filepath.Base(os.Args[0])
	logger  *zap.SugaredLogger
	version string
)

var (
	optLogLevel = flag.String("log-level", "info", "info|warn|error")
	optTable    = flag.String("table", "", "table name, overrides COUNTER_TABLE")
	optKey      = flag.String("key", "", "counter key, overrides COUNTER_KEY")
)

func init() {
	flag.Parse()

	logger = log.Must(log.NewLogger(log.WithLogLevel(*optLogLevel))).Sugar().With(zap.String("app", myName))
}

func main() {
	logger.Infof("ver=%s, args=%s", version, os.Args)

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("*** config.Load: %v", err)
	}
	if !cfg.Persistent() {
		logger.Fatalf("*** COUNTER_BACKEND=%s has nothing to %s outside this process.", cfg.Backend, verb)
	}
	if *optTable != "" {
		cfg.Table = *optTable
	}
	if *optKey != "" {
		cfg.Key = *optKey
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	svc, closer, err := store.NewService(ctx, cfg)
	if err != nil {
		logger.Fatalf("*** store.NewService: %v", err)
	}
	defer closer()

	v, err := svc.Read(ctx)
	if err != nil {
		logger.Errorf("Read: %v", err)
		return
	}

	fmt.Fprintf(os.Stdout, "%s/%s=%d\n", svc.Table(), svc.Key(), v)
}
