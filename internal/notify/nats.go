package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
)

// NATSNotifier publishes lifecycle events to NATS subjects. Event names
// map to subjects under the configured prefix with dots preserved, e.g.
// "order.paid" becomes "storefront.events.order.paid".
type NATSNotifier struct {
	conn   *nats.Conn
	prefix string
}

// NewNATSNotifier connects to the NATS server and returns a notifier.
func NewNATSNotifier(url, prefix string) (*NATSNotifier, error) {
	conn, err := nats.Connect(url,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to nats: %w", err)
	}
	if prefix == "" {
		prefix = "storefront.events"
	}
	return &NATSNotifier{conn: conn, prefix: strings.TrimSuffix(prefix, ".")}, nil
}

// Publish implements Notifier.
func (n *NATSNotifier) Publish(ctx context.Context, event string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode event payload: %w", err)
	}
	if err := n.conn.Publish(n.prefix+"."+event, data); err != nil {
		return fmt.Errorf("failed to publish %s: %w", event, err)
	}
	return nil
}

// Close drains the connection, flushing buffered events.
func (n *NATSNotifier) Close() {
	if n.conn != nil {
		n.conn.Drain()
	}
}
