package hostfunc

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/caffeineduck/quickjs/bridge"
	"github.com/caffeineduck/quickjs/value"
)

const (
	DefaultMaxURLLength   = 8192
	DefaultMaxBodySize    = 1 << 20 // 1MB
	DefaultRequestTimeout = 30 * time.Second
)

// HTTPConfig controls the http_get global. Requests are limited to the
// allowed hosts; an empty list disables the capability entirely.
type HTTPConfig struct {
	AllowedHosts   []string
	MaxBodySize    int64
	MaxURLLength   int
	RequestTimeout time.Duration
}

// HTTP exposes a restricted http_get(url) global returning an object with
// status, body, and headers fields.
type HTTP struct {
	cfg    HTTPConfig
	client *http.Client
}

func NewHTTP(cfg HTTPConfig) *HTTP {
	if cfg.MaxBodySize == 0 {
		cfg.MaxBodySize = DefaultMaxBodySize
	}
	if cfg.MaxURLLength == 0 {
		cfg.MaxURLLength = DefaultMaxURLLength
	}
	if cfg.RequestTimeout == 0 {
		cfg.RequestTimeout = DefaultRequestTimeout
	}

	return &HTTP{
		cfg: cfg,
		client: &http.Client{
			Timeout: cfg.RequestTimeout,
		},
	}
}

func (h *HTTP) Install(ctx context.Context, qjs *bridge.Context) error {
	return qjs.RegisterCallback(ctx, "http_get", 1, func(args []value.Value) (value.Value, error) {
		rawURL, ok := argString(args, 0)
		if !ok || rawURL == "" {
			return value.Value{}, errors.New("url required")
		}
		return h.get(rawURL)
	})
}

func (h *HTTP) get(rawURL string) (value.Value, error) {
	if len(rawURL) > h.cfg.MaxURLLength {
		return value.Value{}, errors.New("url exceeds max length")
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return value.Value{}, errors.New("invalid url")
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return value.Value{}, errors.New("scheme must be http or https")
	}

	if len(h.cfg.AllowedHosts) == 0 {
		return value.Value{}, errors.New("http not enabled")
	}
	host := parsed.Hostname()
	if !h.isHostAllowed(host) {
		return value.Value{}, fmt.Errorf("host not allowed: %s", host)
	}

	resp, err := h.client.Get(rawURL)
	if err != nil {
		return value.Value{}, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, h.cfg.MaxBodySize))
	if err != nil {
		return value.Value{}, fmt.Errorf("failed to read response: %w", err)
	}

	headers := make(map[string]value.Value)
	for k, v := range resp.Header {
		if len(v) > 0 {
			headers[k] = value.String(v[0])
		}
	}

	return value.Object(map[string]value.Value{
		"status":  value.Int(int32(resp.StatusCode)),
		"body":    value.String(string(body)),
		"headers": value.Object(headers),
	}), nil
}

func (h *HTTP) isHostAllowed(host string) bool {
	for _, allowed := range h.cfg.AllowedHosts {
		if host == allowed || strings.HasSuffix(host, "."+allowed) {
			return true
		}
	}
	return false
}
