// ABOUTME: NATS feed subscribing to a workflow's event subject.
// ABOUTME: Messages carry the same {event, data} envelope as the WebSocket channel.
package feed

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
)

// Subject returns the NATS subject carrying a workflow's events. Characters
// that are not valid inside a subject token are replaced with '_'.
func Subject(workflowID string) string {
	token := strings.Map(func(r rune) rune {
		switch r {
		case '.', '*', '>', ' ', '\t', '\r', '\n':
			return '_'
		}
		return r
	}, workflowID)
	return "workflow." + token + ".events"
}

// DialNATS connects to url with reconnects enabled and disconnects logged.
func DialNATS(url string) (*nats.Conn, error) {
	nc, err := nats.Connect(url,
		nats.Name("switchboard"),
		nats.Timeout(5*time.Second),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Printf("component=feed action=disconnected transport=nats err=%v", err)
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			log.Printf("component=feed action=reconnected transport=nats url=%s", c.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats %s: %w", url, err)
	}
	return nc, nil
}

// NATSFeed streams workflow events from a NATS connection it does not own.
type NATSFeed struct {
	nc      *nats.Conn
	handler *Handler
}

// NewNATSFeed creates a feed over nc.
func NewNATSFeed(nc *nats.Conn, handler *Handler) *NATSFeed {
	return &NATSFeed{nc: nc, handler: handler}
}

// Run subscribes to the workflow subject and blocks until ctx is cancelled.
func (f *NATSFeed) Run(ctx context.Context, workflowID string) error {
	subject := Subject(workflowID)
	sub, err := f.nc.Subscribe(subject, func(msg *nats.Msg) {
		if err := f.handler.Handle(msg.Data); err != nil {
			log.Printf("component=feed action=bad_event transport=nats subject=%s err=%v", subject, err)
		}
	})
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", subject, err)
	}
	log.Printf("component=feed action=subscribed transport=nats subject=%s", subject)

	<-ctx.Done()
	if err := sub.Unsubscribe(); err != nil && f.nc.IsConnected() {
		return fmt.Errorf("unsubscribe %s: %w", subject, err)
	}
	return nil
}
