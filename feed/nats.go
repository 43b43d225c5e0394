package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// Publisher is the part of *nats.Conn the bridge needs.
type Publisher interface {
	Publish(subject string, data []byte) error
}

// NATSBridge forwards hub events to NATS as JSON on
// "<prefix>.<collection>.<type>".
type NATSBridge struct {
	pub    Publisher
	prefix string
}

func NewNATSBridge(pub Publisher, prefix string) *NATSBridge {
	return &NATSBridge{pub: pub, prefix: prefix}
}

// Subject returns the subject an event is published on.
func (b *NATSBridge) Subject(ev Event) string {
	return fmt.Sprintf("%s.%s.%s", b.prefix, ev.Collection, ev.Type)
}

func (b *NATSBridge) Forward(_ context.Context, ev Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := b.pub.Publish(b.Subject(ev), data); err != nil {
		return fmt.Errorf("publish %s: %w", b.Subject(ev), err)
	}
	return nil
}

// ConnectNATS dials url with reconnects enabled and connection state logged.
func ConnectNATS(url string, logger *zap.Logger) (*nats.Conn, error) {
	conn, err := nats.Connect(url,
		nats.Name("conference-portal"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", zap.Error(err))
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info("nats reconnected", zap.String("url", c.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats %s: %w", url, err)
	}
	return conn, nil
}
