package stream

import (
	"log/slog"
	"strings"

	"github.com/xtxerr/feedlog/internal/errors"
)

// Transports.
const (
	TransportHTTP      = "http"
	TransportWebSocket = "websocket"
)

// Config selects and configures a transport.
type Config struct {
	// Transport is http or websocket. Empty means http.
	Transport string

	// Endpoint is the transport's base URL. Empty uses the http default;
	// websocket requires one.
	Endpoint string

	Credentials Credentials

	// MaxLineSize bounds a single http line. Zero uses the default.
	MaxLineSize int

	Logger *slog.Logger
}

// New builds the client for the configured transport.
func New(cfg Config) (Client, error) {
	switch strings.ToLower(cfg.Transport) {
	case TransportHTTP, "":
		return NewHTTPClient(HTTPOptions{
			Endpoint:    cfg.Endpoint,
			Credentials: cfg.Credentials,
			MaxLineSize: cfg.MaxLineSize,
			Logger:      cfg.Logger,
		})
	case TransportWebSocket:
		return NewWebSocketClient(WebSocketOptions{
			Endpoint:    cfg.Endpoint,
			Credentials: cfg.Credentials,
			Logger:      cfg.Logger,
		})
	default:
		return nil, errors.NewInvalidValue("transport", cfg.Transport, "must be http or websocket")
	}
}
