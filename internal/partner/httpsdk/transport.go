package httpsdk

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/thenexusengine/bidmachine_adapter/pkg/logger"
)

// errResponseTooLarge is returned when the ad server response exceeds the size limit
var errResponseTooLarge = errors.New("response too large")

// response is a fully read ad server response
type response struct {
	StatusCode int
	Body       []byte
	Headers    http.Header
}

// transport sends requests to the ad server over a pooled HTTP client
type transport struct {
	client  *http.Client
	maxSize int64
	log     zerolog.Logger
}

// newTransport creates a transport with connection pooling.
// A loaded ad is fetched once per placement, so the pool is sized for a single host.
func newTransport(timeout time.Duration, maxSize int64) *transport {
	t := &http.Transport{
		MaxIdleConns:        20,
		MaxIdleConnsPerHost: 10,
		MaxConnsPerHost:     50,
		IdleConnTimeout:     90 * time.Second,

		TLSClientConfig: &tls.Config{
			ClientSessionCache: tls.NewLRUClientSessionCache(16),
			MinVersion:         tls.VersionTLS12,
		},

		DialContext: (&net.Dialer{
			Timeout:   5 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   5 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		ResponseHeaderTimeout: 10 * time.Second,
	}

	return &transport{
		client:  &http.Client{Timeout: timeout, Transport: t},
		maxSize: maxSize,
		log:     logger.SDK(),
	}
}

// do executes a request, using the shorter of the parent deadline and timeout
func (t *transport) do(ctx context.Context, method, uri string, body []byte, headers http.Header, timeout time.Duration) (*response, error) {
	if timeout > 0 {
		if deadline, ok := ctx.Deadline(); ok {
			if remaining := time.Until(deadline); remaining < timeout {
				timeout = remaining
			}
		}
		if timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}
	}

	var reader io.Reader
	if len(body) > 0 {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, uri, reader)
	if err != nil {
		return nil, err
	}
	for k, v := range headers {
		req.Header[k] = v
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, t.maxSize+1))
	if err != nil {
		if ctx.Err() != nil {
			t.log.Debug().Err(err).Str("uri", uri).Msg("read error masked by cancellation")
			return nil, ctx.Err()
		}
		return nil, err
	}
	if int64(len(data)) > t.maxSize {
		return nil, fmt.Errorf("%w: exceeded %d bytes", errResponseTooLarge, t.maxSize)
	}

	return &response{StatusCode: resp.StatusCode, Body: data, Headers: resp.Header}, nil
}

// close releases idle connections
func (t *transport) close() {
	t.client.CloseIdleConnections()
}
