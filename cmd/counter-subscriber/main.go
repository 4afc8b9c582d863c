package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"cloud.google.com/go/pubsub"
	"github.com/joho/godotenv"
	"github.com/tckz/view-counter/internal/config"
	"github.com/tckz/view-counter/internal/counter"
	"github.com/tckz/view-counter/internal/dedup"
	"github.com/tckz/view-counter/internal/log"
	"github.com/tckz/view-counter/internal/store"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var (
	myName  = filepath.Base(os.Args[0])
	logger  *zap.SugaredLogger
	version string
)

var (
	optWorkers      = flag.Int("workers", 4, "Number of workers")
	optLogLevel     = flag.String("log-level", "info", "info|warn|error")
	optSubscription = flag.String("subscription", "", "subscription name")
	optMarkerRedis  = flag.String("marker-redis", "", "addr:port of redis for redelivery marker; local marker if empty")
	optMarkerTTL    = flag.Duration("marker-ttl", 10*time.Minute, "How long a message id is remembered")
	optLogStep      = flag.Int64("log-step", 1000, "Log every N-th count")
)

var zl *zap.Logger

func init() {
	godotenv.Load()

	flag.Parse()

	zl = log.Must(log.NewLogger(log.WithLogLevel(*optLogLevel), log.WithFields(zap.String("app", myName))))
	logger = zl.Sugar()
}

func main() {
	logger.Infof("ver=%s, args=%s", version, os.Args)
	defer logger.Infof("done")

	if *optSubscription == "" {
		logger.Fatalf("*** --subscription must be specified.")
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("*** config.Load: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cl, err := pubsub.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		logger.Fatalf("*** pubsub.NewClient: %v", err)
	}
	defer cl.Close()

	svc, closer, err := store.NewService(ctx, cfg, counter.WithLogger(zl))
	if err != nil {
		logger.Fatalf("*** store.NewService: %v", err)
	}
	defer closer()

	var marker dedup.Marker
	if *optMarkerRedis == "" {
		marker = dedup.NewLocalMarker(*optMarkerTTL)
	} else {
		rc := store.NewRedisClient(*optMarkerRedis)
		defer rc.Close()
		marker = dedup.NewRedisMarker(rc, *optMarkerTTL)
	}

	eg, ctx := errgroup.WithContext(ctx)
	for i := 0; i < *optWorkers; i++ {
		eg.Go(func() error {
			subs := cl.Subscription(*optSubscription)
			return subs.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
				handleMessage(ctx, svc, marker, msg)
			})
		})
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	select {
	case s := <-sig:
		logger.Infof("Received signal: %v", s)
	case <-ctx.Done():
	}
	cancel()

	logger.Infof("Waiting goroutines exit")
	if err := eg.Wait(); err != nil {
		logger.Errorf("Wait: %v", err)
	}

	{
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		v, err := svc.Read(ctx)
		if err != nil {
			logger.Errorf("Read: %v", err)
			return
		}
		logger.Infof("Counter=%d", v)
	}
}

func handleMessage(ctx context.Context, svc *counter.Service, marker dedup.Marker, msg *pubsub.Message) {
	if got, err := marker.Acquire(ctx, msg.ID); err != nil {
		logger.Errorf("Acquire: %v", err)
		msg.Nack()
		return
	} else if !got {
		logger.Infof("msgID=%s already marked to be processed by other", msg.ID)
		msg.Ack()
		return
	}

	n, err := svc.HandleRequest(ctx, msg.Data)
	if err != nil {
		logger.With(zap.Error(err)).Errorf("HandleRequest: msgID=%s", msg.ID)
		if err := marker.Release(ctx, msg.ID); err != nil {
			logger.Errorf("Release: %v", err)
		}
		msg.Nack()
		return
	}
	if n%*optLogStep == 0 {
		logger.Infof("count=%d", n)
	}
	msg.Ack()
}
