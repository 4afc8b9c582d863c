package main

// Fires hits at the counter at a fixed rate and reports how many increments were lost.
// With COUNTER_GUARD_WRITES=false concurrent hits race on read-then-write, so
// "lost" is expected to be positive under enough concurrency.

import (
	"context"
	"flag"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/tckz/view-counter/internal/config"
	"github.com/tckz/view-counter/internal/loadreport"
	"github.com/tckz/view-counter/internal/log"
	vh "github.com/tckz/vegetahelper"
	vegeta "github.com/tsenart/vegeta/v12/lib"
	"go.uber.org/zap"
)

var (
	myName  = filepath.Base(os.Args[0])
	logger  *zap.SugaredLogger
	version string
)

var (
	optRate = &vh.RateFlag{
		Rate: &vegeta.Rate{
			Freq: 30,
			Per:  1 * time.Second,
		}}
	optDuration = flag.Duration("duration", 10*time.Second, "Duration of the test [0 = forever]")
	optOutput   = flag.String("output", "", "/path/to/results.bin or 'stdout', no output if empty")
	optWorkers  = flag.Uint64("workers", vegeta.DefaultWorkers, "Number of workers")
	optLogLevel = flag.String("log-level", "info", "info|warn|error")
	optTarget   = flag.String("target", targetLocal, "local|http|pubsub")
	optURL      = flag.String("url", "", "endpoint of counter-http for --target=http")
	optAudience = flag.String("audience", "", "aud of id token for --target=http, no auth if empty")
	optTopic    = flag.String("topic", "", "topic name for --target=pubsub")
	optSettle   = flag.Duration("settle", 10*time.Second, "wait before reading the final count for --target=pubsub")
)

func init() {
	godotenv.Load()

	flag.Var(optRate, "rate", "Number of requests per time unit")
	flag.Parse()

	logger = log.Must(log.NewLogger(log.WithLogLevel(*optLogLevel))).Sugar().With(zap.String("app", myName))
}

type nopWriteCloser struct {
	io.Writer
}

func (c nopWriteCloser) Close() error {
	return nil
}

func openResultFile(out string) (io.WriteCloser, error) {
	switch out {
	case "":
		return &nopWriteCloser{io.Discard}, nil
	case "stdout":
		return &nopWriteCloser{os.Stdout}, nil
	default:
		return os.Create(out)
	}
}

func main() {
	logger.Infof("ver=%s, args=%s", version, os.Args)
	defer logger.Infof("done")

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("*** config.Load: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tg, err := newTarget(ctx, *optTarget, cfg)
	if err != nil {
		logger.Fatalf("*** newTarget: %v", err)
	}
	defer tg.Close()

	before, err := tg.Count(ctx)
	if err != nil {
		logger.Fatalf("*** Count.before: %v", err)
	}

	atk := vh.NewAttacker(func(ctx context.Context) (result *vh.HitResult, retErr error) {
		return result, tg.Hit(ctx)
	}, vh.WithWorkers(*optWorkers))
	res := atk.Attack(ctx, *optRate.Rate, *optDuration, "counter-"+*optTarget)

	out, err := openResultFile(*optOutput)
	if err != nil {
		logger.Fatal(err)
	}
	defer out.Close()
	enc := vegeta.NewEncoder(out)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT)

	var metrics vegeta.Metrics
	var succeeded int64
loop:
	for {
		select {
		case s := <-sig:
			logger.Infof("Received signal: %s", s)
			cancel()
			// keep loop until 'res' is closed.
		case r, ok := <-res:
			if !ok {
				break loop
			}
			metrics.Add(r)
			if r.Error == "" {
				succeeded++
			}
			if err := enc.Encode(r); err != nil {
				logger.Errorf("*** Encode: %v", err)
				break loop
			}
		}
	}
	metrics.Close()

	if err := tg.Flush(); err != nil {
		logger.Errorf("Flush: %v", err)
	}

	ctxReport, cancelReport := context.WithTimeout(context.Background(), *optSettle+10*time.Second)
	defer cancelReport()
	if *optTarget == targetPubSub {
		logger.Infof("Waiting %s for subscribers", *optSettle)
		time.Sleep(*optSettle)
	}
	after, err := tg.Count(ctxReport)
	if err != nil {
		logger.Errorf("Count.after: %v", err)
		return
	}

	r := loadreport.New(before, after, succeeded)
	b, a, h, l := r.Fields()
	logger.With(
		zap.Uint64("requests", metrics.Requests),
		zap.Float64("success", metrics.Success),
		zap.Duration("p99", metrics.Latencies.P99),
		zap.Strings("errors", metrics.Errors),
	).Infof("before=%s, after=%s, hits=%s, lost=%s: %s", b, a, h, l, r.Verdict())
}
