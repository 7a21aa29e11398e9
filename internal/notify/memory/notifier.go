// Package memory contains an in-memory notifier implementation for tests.
package memory

import (
	"context"
	"fmt"
	"sync"
)

// Notifier stores published notifications for inspection.
type Notifier struct {
	mu       sync.RWMutex
	messages []Notification
	err      error
}

// Notification captures one Notify call.
type Notification struct {
	Topic   string
	Payload any
}

// New returns a memory Notifier.
func New() *Notifier {
	return &Notifier{}
}

// Notify records the notification and returns a pseudo ID.
func (n *Notifier) Notify(_ context.Context, topic string, payload any) (string, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return "", n.err
	}
	n.messages = append(n.messages, Notification{Topic: topic, Payload: payload})
	return fmt.Sprintf("memory-%d", len(n.messages)), nil
}

// Fail makes every subsequent Notify call return err.
func (n *Notifier) Fail(err error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.err = err
}

// Notifications returns the recorded notifications.
func (n *Notifier) Notifications() []Notification {
	n.mu.RLock()
	defer n.mu.RUnlock()
	out := make([]Notification, len(n.messages))
	copy(out, n.messages)
	return out
}
