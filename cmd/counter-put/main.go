package main

import (
	"context"
	"flag"
	"os"
	"path/filepath"

	"github.com/tckz/view-counter/internal/config"
	"github.com/tckz/view-counter/internal/counter"
	"github.com/tckz/view-counter/internal/log"
	"github.com/tckz/view-counter/internal/store"
	"go.uber.org/zap"
)

// Seeds or overwrites the counter record, e.g. to migrate a count from another table.

// verb names what this command does, for the memory-backend guard message.
const verb = "seed"

var (
	myName  = filepath.Base(os.Args[0])
	logger  *zap.SugaredLogger
	version string
)

var (
	optLogLevel = flag.String("log-level", "info", "info|warn|error")
	optTable    = flag.String("table", "", "table name, overrides COUNTER_TABLE")
	optKey      = flag.String("key", "", "counter key, overrides COUNTER_KEY")
	optValue    = flag.Int64("value", 0, "value to store")
	optIfAbsent = flag.Bool("if-absent", false, "write only when the record does not exist yet")
)

func init() {
	flag.Parse()

	logger = log.Must(log.NewLogger(log.WithLogLevel(*optLogLevel))).Sugar().With(zap.String("app", myName))
}

func main() {
	logger.Infof("ver=%s, args=%s", version, os.Args)

	if *optValue < 0 {
		logger.Fatalf("*** --value must not be negative.")
	}

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

	st, closer, err := store.Open(ctx, cfg)
	if err != nil {
		logger.Fatalf("*** store.Open: %v", err)
	}
	defer closer()

	var pre *counter.Precondition
	if *optIfAbsent {
		pre = &counter.Precondition{}
	}

	rec := counter.Record{Key: cfg.Key, Value: *optValue}
	if err := st.PutItem(ctx, cfg.Table, rec, pre); err != nil {
		logger.Errorf("PutItem: %v", err)
		return
	}
	logger.Infof("put %s/%s=%d", cfg.Table, rec.Key, rec.Value)
}
