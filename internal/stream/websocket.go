package stream

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"

	"github.com/xtxerr/feedlog/config"
	"github.com/xtxerr/feedlog/internal/errors"
	"github.com/xtxerr/feedlog/internal/logging"
)

// WebSocketOptions configures the websocket relay client.
type WebSocketOptions struct {
	// Endpoint is the relay URL (ws:// or wss://).
	Endpoint string

	// Credentials are sent as handshake headers.
	Credentials Credentials

	// Dialer overrides the default dialer.
	Dialer *websocket.Dialer

	Logger *slog.Logger
}

// WebSocketClient receives one payload per websocket message from a relay
// that fronts the feed. The stream filter travels as query parameters.
type WebSocketClient struct {
	endpoint *url.URL
	creds    Credentials
	dialer   *websocket.Dialer
	log      *slog.Logger
}

var _ Client = (*WebSocketClient)(nil)

// NewWebSocketClient creates a websocket relay client.
func NewWebSocketClient(opts WebSocketOptions) (*WebSocketClient, error) {
	u, err := url.Parse(opts.Endpoint)
	if err != nil {
		return nil, errors.NewInvalidValue("endpoint", opts.Endpoint, err.Error())
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return nil, errors.NewInvalidValue("endpoint", opts.Endpoint, "scheme must be ws or wss")
	}
	if opts.Dialer == nil {
		opts.Dialer = &websocket.Dialer{
			Proxy:             http.ProxyFromEnvironment,
			HandshakeTimeout:  config.DefaultHandshakeTimeout,
			EnableCompression: true,
		}
	}
	if opts.Logger == nil {
		opts.Logger = logging.Component("stream")
	}
	return &WebSocketClient{
		endpoint: u,
		creds:    opts.Credentials,
		dialer:   opts.Dialer,
		log:      opts.Logger,
	}, nil
}

// Stream dials the relay and delivers each message to h until a fault.
func (c *WebSocketClient) Stream(ctx context.Context, req Request, h Handler) error {
	target := c.url(req)

	conn, resp, err := c.dialer.DialContext(ctx, target, c.header())
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if resp != nil {
			return errors.NewUpstreamStatus(resp.StatusCode, err.Error())
		}
		return fmt.Errorf("dial %s: %w", c.endpoint.Redacted(), err)
	}
	defer conn.Close()

	c.log.Debug("websocket connected", "endpoint", c.endpoint.Redacted(), "mode", string(req.Mode))
	h.OnConnect()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		<-gctx.Done()
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		conn.Close()
		return nil
	})
	g.Go(func() error {
		for {
			mt, data, err := conn.ReadMessage()
			if err != nil {
				return errors.NewTransientRead("read message", err)
			}
			if mt != websocket.TextMessage && mt != websocket.BinaryMessage {
				continue
			}
			if err := h.OnData(data); err != nil {
				return err
			}
		}
	})

	err = g.Wait()
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

func (c *WebSocketClient) url(req Request) string {
	u := *c.endpoint
	q := u.Query()
	q.Set("mode", string(req.Mode))
	switch req.Mode {
	case ModeKeyword:
		q.Set("track", req.TrackValue())
	case ModeLocation:
		q.Set("locations", req.LocationsValue())
	}
	u.RawQuery = q.Encode()
	return u.String()
}

func (c *WebSocketClient) header() http.Header {
	header := http.Header{}
	header.Set("Authorization", "Bearer "+c.creds.AccessToken)
	header.Set("X-Consumer-Key", c.creds.ConsumerKey)
	header.Set("X-Consumer-Secret", c.creds.ConsumerSecret)
	header.Set("X-Access-Token-Secret", c.creds.AccessTokenSecret)
	return header
}
