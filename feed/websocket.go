// ABOUTME: WebSocket feed subscribing to a workflow:{id} channel on the platform's push endpoint.
// ABOUTME: Reconnects with backoff until the context is cancelled or the handshake is rejected.
package feed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/2389-research/switchboard/api"
	"github.com/gorilla/websocket"
)

// WebSocketPath is appended to the WebSocket base URL.
const WebSocketPath = "/ws"

// Channel returns the push channel name of a workflow.
func Channel(workflowID string) string {
	return "workflow:" + workflowID
}

// subscribeMessage is sent right after the handshake.
type subscribeMessage struct {
	Action  string `json:"action"`
	Channel string `json:"channel"`
}

// WebSocketFeed streams workflow events over a WebSocket.
type WebSocketFeed struct {
	url     string
	apiKey  string
	dialer  *websocket.Dialer
	handler *Handler
	backoff api.Backoff
}

// NewWebSocketFeed creates a feed dialing baseURL + WebSocketPath.
func NewWebSocketFeed(baseURL, apiKey string, handler *Handler) *WebSocketFeed {
	return &WebSocketFeed{
		url:    strings.TrimRight(baseURL, "/") + WebSocketPath,
		apiKey: apiKey,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: 10 * time.Second,
		},
		handler: handler,
		backoff: api.Backoff{Initial: 500 * time.Millisecond, Max: 15 * time.Second, Factor: 2, Jitter: true},
	}
}

// Run subscribes to workflowID and applies events until ctx is cancelled. A
// dropped connection is re-established with backoff. A handshake rejected
// with a non-retryable status (bad key, forbidden) is returned.
func (f *WebSocketFeed) Run(ctx context.Context, workflowID string) error {
	for attempt := 0; ; attempt++ {
		received, err := f.session(ctx, workflowID)
		if ctx.Err() != nil {
			return nil
		}
		var apiErr interface{ IsRetryable() bool }
		if errors.As(err, &apiErr) && !apiErr.IsRetryable() {
			return err
		}
		if received {
			attempt = 0
		}
		delay := f.backoff.Delay(attempt)
		log.Printf("component=feed action=reconnect transport=websocket workflow=%s delay=%s err=%v",
			workflowID, delay.Round(time.Millisecond), err)
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(delay):
		}
	}
}

// session runs one connection. It reports whether any message was received.
func (f *WebSocketFeed) session(ctx context.Context, workflowID string) (bool, error) {
	header := http.Header{}
	header.Set(api.APIKeyHeader, f.apiKey)

	conn, resp, err := f.dialer.DialContext(ctx, f.url, header)
	if err != nil {
		if resp != nil {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			resp.Body.Close()
			return false, api.ErrorFromStatus(resp.StatusCode, "GET "+WebSocketPath, body, nil)
		}
		return false, fmt.Errorf("dial %s: %w", f.url, err)
	}
	defer conn.Close()

	// Unblock ReadMessage when the caller cancels.
	stop := context.AfterFunc(ctx, func() {
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		conn.Close()
	})
	defer stop()

	if err := conn.WriteJSON(subscribeMessage{Action: "subscribe", Channel: Channel(workflowID)}); err != nil {
		return false, fmt.Errorf("subscribe %s: %w", Channel(workflowID), err)
	}

	received := false
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return received, err
		}
		received = true
		if err := f.handler.Handle(msg); err != nil {
			log.Printf("component=feed action=bad_event transport=websocket workflow=%s err=%v", workflowID, err)
		}
	}
}
