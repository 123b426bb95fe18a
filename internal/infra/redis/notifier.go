package redis

import (
	"context"
	"encoding/json"
	"fmt"

	goredis "github.com/redis/go-redis/v9"
	"github.com/vidstream/vidstream-processing-service/internal/domain/entity"
)

// Notifier publishes each event on the recipient's pub/sub channel, so every
// gateway holding a session for that user can forward it.
type Notifier struct {
	client *goredis.Client
	prefix string
}

func NewNotifier(client *goredis.Client, channelPrefix string) *Notifier {
	return &Notifier{client: client, prefix: channelPrefix}
}

// NewClient parses a redis:// URL.
func NewClient(url string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return goredis.NewClient(opts), nil
}

func (n *Notifier) Channel(recipientID string) string {
	return n.prefix + recipientID
}

func (n *Notifier) Emit(ctx context.Context, recipientID, event string, payload any) error {
	body, err := json.Marshal(entity.NewEnvelope(recipientID, event, payload))
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := n.client.Publish(ctx, n.Channel(recipientID), body).Err(); err != nil {
		return fmt.Errorf("publish event: %w", err)
	}
	return nil
}
