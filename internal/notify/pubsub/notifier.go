// Package pubsub implements a Google Cloud Pub/Sub notifier.
package pubsub

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"cloud.google.com/go/pubsub"
	"google.golang.org/api/option"
)

// Notifier publishes completion events to Pub/Sub. Topic handles are cached
// because each handle owns the goroutines that batch outgoing messages.
type Notifier struct {
	client *pubsub.Client

	mu     sync.Mutex
	topics map[string]*pubsub.Topic
}

// New creates a Notifier for the provided project. It authenticates using
// Google Cloud's Application Default Credentials unless opts override that.
func New(ctx context.Context, projectID string, opts ...option.ClientOption) (*Notifier, error) {
	if projectID == "" {
		return nil, fmt.Errorf("pubsub project id is required")
	}
	client, err := pubsub.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("create pubsub client: %w", err)
	}
	return NewWithClient(client), nil
}

// NewWithClient wraps an existing client. Close releases the client.
func NewWithClient(client *pubsub.Client) *Notifier {
	return &Notifier{
		client: client,
		topics: make(map[string]*pubsub.Topic),
	}
}

// VerifyTopic confirms the topic exists and is publishable. Meant for boot
// checks so a misconfigured topic fails fast instead of on the first summary.
func (n *Notifier) VerifyTopic(ctx context.Context, topic string) error {
	exists, err := n.topic(topic).Exists(ctx)
	if err != nil {
		return fmt.Errorf("check pubsub topic %q: %w", topic, err)
	}
	if !exists {
		return fmt.Errorf("pubsub topic %q does not exist", topic)
	}
	return nil
}

// Notify marshals the payload to JSON and publishes it, blocking until the
// server acknowledges. It returns the server-assigned message ID.
func (n *Notifier) Notify(ctx context.Context, topic string, payload any) (string, error) {
	if topic == "" {
		return "", fmt.Errorf("pubsub topic is required")
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}

	result := n.topic(topic).Publish(ctx, &pubsub.Message{Data: data})
	id, err := result.Get(ctx)
	if err != nil {
		return "", fmt.Errorf("publish to %q: %w", topic, err)
	}
	return id, nil
}

func (n *Notifier) topic(id string) *pubsub.Topic {
	n.mu.Lock()
	defer n.mu.Unlock()
	t, ok := n.topics[id]
	if !ok {
		t = n.client.Topic(id)
		n.topics[id] = t
	}
	return t
}

// Close stops the cached topic publishers and closes the underlying client.
func (n *Notifier) Close() error {
	n.mu.Lock()
	for _, t := range n.topics {
		t.Stop()
	}
	n.topics = make(map[string]*pubsub.Topic)
	n.mu.Unlock()

	if err := n.client.Close(); err != nil {
		return fmt.Errorf("close pubsub client: %w", err)
	}
	return nil
}
