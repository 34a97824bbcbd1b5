package remote

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/PeacockIllustrated/project-manager/internal/store"
)

const changePrefix = "pm:changes:"

// Notifier announces committed changes over Redis pub/sub so every process watching
// the same database refreshes the affected collection.
type Notifier struct {
	client *redis.Client
	prefix string
}

func NewNotifier(redisURL string) (*Notifier, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return NewNotifierWithClient(client), nil
}

func NewNotifierWithClient(client *redis.Client) *Notifier {
	return &Notifier{
		client: client,
		prefix: changePrefix,
	}
}

func (n *Notifier) channel(collection store.Collection) string {
	return n.prefix + string(collection)
}

func (n *Notifier) Publish(ctx context.Context, collection store.Collection) error {
	if err := n.client.Publish(ctx, n.channel(collection), string(collection)).Err(); err != nil {
		return fmt.Errorf("publish change %s: %w", collection, err)
	}
	return nil
}

// Listen calls fn with the collection name of every change announced by any process.
// The returned function stops listening and waits for the reader goroutine to exit.
func (n *Notifier) Listen(ctx context.Context, fn func(store.Collection)) (func(), error) {
	pubsub := n.client.PSubscribe(ctx, n.prefix+"*")
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("subscribe to changes: %w", err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for msg := range pubsub.Channel() {
			collection := store.Collection(strings.TrimPrefix(msg.Channel, n.prefix))
			if !collection.Valid() {
				log.Warn().Str("channel", msg.Channel).Msg("remote: ignoring change on unknown collection")
				continue
			}
			fn(collection)
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			_ = pubsub.Close()
			<-done
		})
	}, nil
}

func (n *Notifier) Close() error {
	return n.client.Close()
}
