package blob

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/vctfence/scrapbee/pkg/version"
)

// HTTPBackend talks to a WebDAV-like blob service: GET, PUT and DELETE on
// baseURL/path with a bearer token.
type HTTPBackend struct {
	baseURL *url.URL
	token   string
	client  *http.Client
	now     func() time.Time
}

// HTTPConfig holds configuration for HTTPBackend.
type HTTPConfig struct {
	BaseURL string
	Token   string
	Timeout time.Duration
}

// NewHTTPBackend creates a backend for cfg.BaseURL.
func NewHTTPBackend(cfg HTTPConfig) (*HTTPBackend, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("http base url is required")
	}
	u, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid http base url: %w", err)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPBackend{
		baseURL: u,
		token:   cfg.Token,
		client:  &http.Client{Timeout: timeout},
		now:     time.Now,
	}, nil
}

// checkToken rejects a JWT bearer token whose exp claim has passed, without
// a round trip. Opaque tokens are left to the server.
func (h *HTTPBackend) checkToken() error {
	if h.token == "" {
		return fmt.Errorf("no access token: %w", ErrNotAuthorized)
	}
	claims := jwt.MapClaims{}
	if _, _, err := new(jwt.Parser).ParseUnverified(h.token, claims); err != nil {
		return nil
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return nil
	}
	if !h.now().Before(exp.Time) {
		return fmt.Errorf("access token expired at %s: %w", exp.Time.UTC().Format(time.RFC3339), ErrNotAuthorized)
	}
	return nil
}

func (h *HTTPBackend) do(ctx context.Context, method, p string, body []byte, header http.Header) (*http.Response, error) {
	if err := h.checkToken(); err != nil {
		return nil, err
	}
	c, err := cleanPath(p)
	if err != nil {
		return nil, err
	}
	u := h.baseURL.JoinPath(strings.Split(c, "/")...)

	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), rd)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("Authorization", "Bearer "+h.token)
	req.Header.Set("User-Agent", version.UserAgent())

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, transient(strings.ToLower(method), p, err)
	}
	return resp, nil
}

func statusError(op, p string, resp *http.Response) error {
	switch resp.StatusCode {
	case http.StatusNotFound, http.StatusGone:
		return fmt.Errorf("%s: %w", p, ErrNotFound)
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%s %s: %w", op, p, ErrNotAuthorized)
	case http.StatusPreconditionFailed, http.StatusConflict:
		return fmt.Errorf("%s: %w", p, ErrExists)
	}
	msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return transient(op, p, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg))))
}

func (h *HTTPBackend) Download(ctx context.Context, p string) ([]byte, error) {
	resp, err := h.do(ctx, http.MethodGet, p, nil, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, statusError("download", p, resp)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, transient("download", p, err)
	}
	return data, nil
}

func (h *HTTPBackend) Upload(ctx context.Context, p string, data []byte, overwrite bool) error {
	header := http.Header{}
	header.Set("Content-Type", "application/octet-stream")
	if !overwrite {
		header.Set("If-None-Match", "*")
	}
	resp, err := h.do(ctx, http.MethodPut, p, data, header)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return statusError("upload", p, resp)
	}
	return nil
}

func (h *HTTPBackend) Delete(ctx context.Context, p string) error {
	resp, err := h.do(ctx, http.MethodDelete, p, nil, nil)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		err := statusError("delete", p, resp)
		if IsNotFound(err) {
			return nil
		}
		return err
	}
	return nil
}
