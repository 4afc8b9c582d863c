package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"cloud.google.com/go/pubsub"
	"github.com/google/uuid"
	"github.com/tckz/view-counter/internal/config"
	"github.com/tckz/view-counter/internal/counter"
	"github.com/tckz/view-counter/internal/handler"
	"github.com/tckz/view-counter/internal/store"
	"golang.org/x/oauth2"
	"golang.org/x/sync/errgroup"
	"google.golang.org/api/idtoken"
)

const (
	targetLocal  = "local"
	targetHTTP   = "http"
	targetPubSub = "pubsub"
)

type Target interface {
	Hit(ctx context.Context) error
	Count(ctx context.Context) (int64, error)
	// Flush waits for hits still in flight.
	Flush() error
	Close() error
}

func newTarget(ctx context.Context, name string, cfg *config.Config) (Target, error) {
	switch name {
	case targetLocal:
		svc, closer, err := store.NewService(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return &localTarget{svc: svc, closer: closer}, nil
	case targetHTTP:
		if *optURL == "" {
			return nil, errors.New("--url must be specified")
		}
		cl := http.DefaultClient
		if *optAudience != "" {
			ts, err := idtoken.NewTokenSource(ctx, *optAudience)
			if err != nil {
				return nil, fmt.Errorf("idtoken.NewTokenSource: %w", err)
			}
			cl = oauth2.NewClient(ctx, ts)
		}
		return &httpTarget{client: cl, url: *optURL}, nil
	case targetPubSub:
		if *optTopic == "" {
			return nil, errors.New("--topic must be specified")
		}
		return newPubSubTarget(ctx, cfg, *optTopic)
	default:
		return nil, fmt.Errorf("unknown target: %s", name)
	}
}

var _ Target = (*localTarget)(nil)

type localTarget struct {
	svc    *counter.Service
	closer func() error
}

func (t *localTarget) Hit(ctx context.Context) error {
	_, err := t.svc.HandleRequest(ctx, nil)
	return err
}

func (t *localTarget) Count(ctx context.Context) (int64, error) { return t.svc.Read(ctx) }
func (t *localTarget) Flush() error                             { return nil }
func (t *localTarget) Close() error                             { return t.closer() }

var _ Target = (*httpTarget)(nil)

type httpTarget struct {
	client *http.Client
	url    string
}

func (t *httpTarget) do(ctx context.Context, method string) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, method, t.url, bytes.NewReader([]byte("{}")))
	if err != nil {
		return 0, fmt.Errorf("http.NewRequest: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	res, err := t.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("client.Do: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		var e handler.ErrorResponse
		json.NewDecoder(res.Body).Decode(&e)
		return 0, fmt.Errorf("status=%d, %s", res.StatusCode, e.Error)
	}
	var body handler.CountResponse
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		return 0, fmt.Errorf("json.Decode: %w", err)
	}
	return body.Count, nil
}

func (t *httpTarget) Hit(ctx context.Context) error {
	_, err := t.do(ctx, http.MethodPost)
	return err
}

func (t *httpTarget) Count(ctx context.Context) (int64, error) { return t.do(ctx, http.MethodGet) }
func (t *httpTarget) Flush() error                             { return nil }
func (t *httpTarget) Close() error                             { return nil }

var _ Target = (*pubsubTarget)(nil)

// pubsubTarget publishes one message per hit; counter-subscriber does the counting.
// The count is read straight from the configured store.
type pubsubTarget struct {
	client *pubsub.Client
	topic  *pubsub.Topic
	local  *localTarget
	chRes  chan *pubsub.PublishResult
	eg     *errgroup.Group
	egCtx  context.Context
}

func newPubSubTarget(ctx context.Context, cfg *config.Config, topicName string) (*pubsubTarget, error) {
	cl, err := pubsub.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("pubsub.NewClient: %w", err)
	}
	svc, closer, err := store.NewService(ctx, cfg)
	if err != nil {
		cl.Close()
		return nil, err
	}

	topic := cl.Topic(topicName)
	topic.PublishSettings.NumGoroutines = 30

	t := &pubsubTarget{
		client: cl,
		topic:  topic,
		local:  &localTarget{svc: svc, closer: closer},
		chRes:  make(chan *pubsub.PublishResult, 30),
	}

	t.eg, t.egCtx = errgroup.WithContext(context.Background())
	for i := 0; i < 30; i++ {
		t.eg.Go(func() error {
			for res := range t.chRes {
				if _, err := res.Get(t.egCtx); err != nil {
					logger.Errorf("*** Get: %v", err)
					return err
				}
			}
			return nil
		})
	}
	return t, nil
}

func (t *pubsubTarget) Hit(ctx context.Context) error {
	msg := &pubsub.Message{
		Data: []byte(fmt.Sprintf(`{"hit":%q}`, uuid.New().String())),
	}
	select {
	case t.chRes <- t.topic.Publish(ctx, msg):
		return nil
	case <-t.egCtx.Done():
		return t.egCtx.Err()
	}
}

func (t *pubsubTarget) Count(ctx context.Context) (int64, error) { return t.local.Count(ctx) }

func (t *pubsubTarget) Flush() error {
	close(t.chRes)
	logger.Infof("waiting goroutines for res.Get exit")
	return t.eg.Wait()
}

func (t *pubsubTarget) Close() error {
	t.topic.Stop()
	t.local.Close()
	return t.client.Close()
}
