package stream

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/dghubble/oauth1"
	"github.com/klauspost/compress/gzip"

	"github.com/xtxerr/feedlog/config"
	"github.com/xtxerr/feedlog/internal/errors"
	"github.com/xtxerr/feedlog/internal/logging"
)

// HTTPOptions configures the HTTP streaming client.
type HTTPOptions struct {
	// Endpoint is the API base URL, for example https://stream.twitter.com/1.1.
	Endpoint string

	// Credentials sign every request with OAuth 1.0a.
	Credentials Credentials

	// BaseClient is the client the OAuth transport wraps.
	// Default: http.DefaultClient
	BaseClient *http.Client

	// MaxLineSize is the longest line, excluding its terminator, the client
	// delivers. A longer line ends the stream with ErrLineTooLong.
	// Default: 1MB
	MaxLineSize int

	Logger *slog.Logger
}

// HTTPClient streams newline-delimited payloads from a long-lived HTTP
// response.
type HTTPClient struct {
	endpoint *url.URL
	config   *oauth1.Config
	token    *oauth1.Token
	base     *http.Client
	maxLine  int
	log      *slog.Logger
}

var _ Client = (*HTTPClient)(nil)

// NewHTTPClient creates an HTTP streaming client.
func NewHTTPClient(opts HTTPOptions) (*HTTPClient, error) {
	if opts.Endpoint == "" {
		opts.Endpoint = config.DefaultHTTPEndpoint
	}
	u, err := url.Parse(strings.TrimRight(opts.Endpoint, "/"))
	if err != nil {
		return nil, errors.NewInvalidValue("endpoint", opts.Endpoint, err.Error())
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, errors.NewInvalidValue("endpoint", opts.Endpoint, "scheme must be http or https")
	}
	if opts.BaseClient == nil {
		opts.BaseClient = http.DefaultClient
	}
	if opts.MaxLineSize <= 0 {
		opts.MaxLineSize = config.DefaultMaxLineSize
	}
	if opts.Logger == nil {
		opts.Logger = logging.Component("stream")
	}

	creds := opts.Credentials
	return &HTTPClient{
		endpoint: u,
		config:   oauth1.NewConfig(creds.ConsumerKey, creds.ConsumerSecret),
		token:    oauth1.NewToken(creds.AccessToken, creds.AccessTokenSecret),
		base:     opts.BaseClient,
		maxLine:  opts.MaxLineSize,
		log:      opts.Logger,
	}, nil
}

// Stream opens the stream for req and delivers each line to h until a fault.
func (c *HTTPClient) Stream(ctx context.Context, req Request, h Handler) error {
	httpReq, err := c.newRequest(ctx, req)
	if err != nil {
		return err
	}

	client := c.config.Client(context.WithValue(ctx, oauth1.HTTPClient, c.base), c.token)
	resp, err := client.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("connect %s: %w", httpReq.URL.Redacted(), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return errors.NewUpstreamStatus(resp.StatusCode, strings.TrimSpace(string(body)))
	}

	h.OnConnect()

	var body io.Reader = resp.Body
	if strings.EqualFold(resp.Header.Get("Content-Encoding"), "gzip") {
		zr, err := gzip.NewReader(resp.Body)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return errors.NewTransientRead("read gzip header", err)
		}
		defer zr.Close()
		body = zr
	}

	return c.readLines(ctx, bufio.NewReaderSize(body, config.ReadBufferSize), h)
}

// readLines delivers every complete line. A trailing partial line at a read
// fault is discarded. The delivered slice is reused for the next line.
func (c *HTTPClient) readLines(ctx context.Context, br *bufio.Reader, h Handler) error {
	// A line may carry "\r\n" on top of maxLine payload bytes.
	limit := c.maxLine + 2
	var line []byte
	for {
		chunk, err := br.ReadSlice('\n')
		if len(line)+len(chunk) > limit {
			return errors.NewLineTooLong(c.maxLine)
		}
		line = append(line, chunk...)
		if err == bufio.ErrBufferFull {
			continue
		}
		if err == nil {
			payload := bytes.TrimRight(line, "\r\n")
			if len(payload) > c.maxLine {
				return errors.NewLineTooLong(c.maxLine)
			}
			if herr := h.OnData(payload); herr != nil {
				return herr
			}
			line = line[:0]
			continue
		}

		if ctx.Err() != nil {
			return ctx.Err()
		}
		if len(line) > 0 {
			c.log.Debug("discarding partial line", "bytes", len(line))
		}
		return errors.NewTransientRead("read stream", err)
	}
}

func (c *HTTPClient) newRequest(ctx context.Context, req Request) (*http.Request, error) {
	var (
		httpReq *http.Request
		err     error
	)

	switch req.Mode {
	case ModeSample:
		httpReq, err = http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint.String()+"/statuses/sample.json", nil)
	case ModeKeyword, ModeLocation:
		form := url.Values{}
		if req.Mode == ModeKeyword {
			form.Set("track", req.TrackValue())
		} else {
			form.Set("locations", req.LocationsValue())
		}
		httpReq, err = http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint.String()+"/statuses/filter.json", strings.NewReader(form.Encode()))
		if err == nil {
			httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		}
	default:
		return nil, errors.NewInvalidValue("stream mode", req.Mode, "unsupported")
	}
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	httpReq.Header.Set("Accept-Encoding", "gzip")
	httpReq.Header.Set("User-Agent", "feedlog")
	return httpReq, nil
}
