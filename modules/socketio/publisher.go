// Package socketio publishes QA summaries to a socket.io endpoint. Each
// summary is emitted as a binary event named after the topic.
package socketio

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net/url"
	"sync/atomic"
	"time"

	"github.com/vk/dprepgo/internal/ctxlog"
	"github.com/zishang520/engine.io-client-go/transports"
	"github.com/zishang520/engine.io/v2/types"
	"github.com/zishang520/socket.io-client-go/socket"
)

// DefaultConnectTimeout bounds the initial handshake.
const DefaultConnectTimeout = 15 * time.Second

// ErrNotConnected is returned by Publish after the connection dropped.
var ErrNotConnected = errors.New("socket.io publisher is not connected")

// Options configures Connect.
type Options struct {
	Namespace          string
	InsecureSkipVerify bool
	ConnectTimeout     time.Duration
}

// Publisher is a connected socket.io client.
type Publisher struct {
	io        *socket.Socket
	connected atomic.Bool
	closed    atomic.Bool
}

// Connect dials rawURL over websocket and waits for the handshake.
func Connect(ctx context.Context, rawURL string, o Options) (*Publisher, error) {
	logger := ctxlog.FromContext(ctx).With("publisher", "socketio", "url", rawURL)

	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse URL: %w", err)
	}
	if parsedURL.Host == "" {
		return nil, fmt.Errorf("queue url %q has no host", rawURL)
	}
	if o.ConnectTimeout <= 0 {
		o.ConnectTimeout = DefaultConnectTimeout
	}
	if o.Namespace == "" {
		o.Namespace = "/"
	}

	opts := socket.DefaultOptions()
	if parsedURL.Path != "" && parsedURL.Path != "/" {
		opts.SetPath(parsedURL.Path)
	}
	if o.InsecureSkipVerify {
		logger.Warn("Skipping TLS certificate verification")
		opts.SetTLSClientConfig(&tls.Config{InsecureSkipVerify: true})
	}
	opts.SetTransports(types.NewSet(transports.WebSocket))

	connectChan := make(chan error, 1)

	baseURL := fmt.Sprintf("%s://%s", parsedURL.Scheme, parsedURL.Host)
	manager := socket.NewManager(baseURL, opts)
	io := manager.Socket(o.Namespace, opts)
	p := &Publisher{io: io}

	io.Once(types.EventName("connect"), func(...any) {
		p.connected.Store(true)
		logger.Info("🔌 QA publisher connected.", "sid", io.Id())
		signal(connectChan, nil)
	})
	io.Once(types.EventName("connect_error"), func(errs ...any) {
		var err error = errors.New("connect_error")
		if len(errs) > 0 {
			if e, ok := errs[0].(error); ok {
				err = e
			}
		}
		logger.Debug("EVENT HANDLER: 'connect_error' event fired", "error", err)
		signal(connectChan, err)
	})
	io.On(types.EventName("disconnect"), func(reason ...any) {
		p.connected.Store(false)
		logger.Debug("QA publisher disconnected.", "reason", reason)
	})

	logger.Debug("Initiating connection...")
	io.Connect()

	select {
	case err := <-connectChan:
		if err != nil {
			io.Disconnect()
			return nil, fmt.Errorf("socket.io connection failed: %w", err)
		}
		return p, nil
	case <-ctx.Done():
		io.Disconnect()
		return nil, fmt.Errorf("context cancelled while waiting for socket.io connection: %w", ctx.Err())
	case <-time.After(o.ConnectTimeout):
		io.Disconnect()
		return nil, fmt.Errorf("timed out after %s waiting for socket.io connection", o.ConnectTimeout)
	}
}

// signal delivers the first handshake outcome and drops later ones.
func signal(ch chan<- error, err error) {
	select {
	case ch <- err:
	default:
	}
}

// Publish emits payload as a single binary argument of the topic event.
func (p *Publisher) Publish(ctx context.Context, topic string, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if p.closed.Load() || !p.connected.Load() {
		return ErrNotConnected
	}
	if topic == "" {
		return errors.New("topic must not be empty")
	}
	p.io.Emit(topic, payload)
	return nil
}

// Connected reports whether the socket is currently up.
func (p *Publisher) Connected() bool {
	return p.connected.Load() && !p.closed.Load()
}

// Close disconnects. It is safe to call more than once.
func (p *Publisher) Close() error {
	if p.closed.Swap(true) {
		return nil
	}
	p.connected.Store(false)
	p.io.Disconnect()
	return nil
}
