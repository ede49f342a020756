// Package httpdoc はバックエンドの文書 API (GET/POST) をスナップショットの保存先として利用します。
package httpdoc

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ogurasousui/site-roster/internal/core/persist"
)

const (
	defaultTimeout = 10 * time.Second
	maxErrorBody   = 512
)

// Client は {endpoint}/{key} に対して文書を読み書きします。
type Client struct {
	endpoint string
	http     *http.Client
}

var _ persist.DocumentStore = (*Client)(nil)

// NewClient は Client を生成します。timeout が 0 以下の場合は 10 秒を用います。
func NewClient(endpoint string, timeout time.Duration) (*Client, error) {
	u, err := url.Parse(strings.TrimSpace(endpoint))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("httpdoc: invalid endpoint %q", endpoint)
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		endpoint: strings.TrimRight(u.String(), "/"),
		http:     &http.Client{Timeout: timeout},
	}, nil
}

// Fetch は GET で文書を取得します。404 は persist.ErrDocumentNotFound になります。
func (c *Client) Fetch(ctx context.Context, key string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.documentURL(key), nil)
	if err != nil {
		return nil, fmt.Errorf("httpdoc: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("httpdoc: get %s: %w", key, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, persist.ErrDocumentNotFound
	}
	if err := checkStatus(resp); err != nil {
		return nil, fmt.Errorf("httpdoc: get %s: %w", key, err)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("httpdoc: read %s: %w", key, err)
	}
	if len(bytes.TrimSpace(body)) == 0 || bytes.Equal(bytes.TrimSpace(body), []byte("null")) {
		return nil, persist.ErrDocumentNotFound
	}
	return body, nil
}

// Store は POST で文書全体を送信します。
func (c *Client) Store(ctx context.Context, key string, doc []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.documentURL(key), bytes.NewReader(doc))
	if err != nil {
		return fmt.Errorf("httpdoc: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("httpdoc: post %s: %w", key, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBody))

	if err := checkStatus(resp); err != nil {
		return fmt.Errorf("httpdoc: post %s: %w", key, err)
	}
	return nil
}

func (c *Client) documentURL(key string) string {
	return c.endpoint + "/" + url.PathEscape(key)
}

// StatusError は 2xx 以外の応答を表します。
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("unexpected status %d", e.Code)
	}
	return fmt.Sprintf("unexpected status %d: %s", e.Code, e.Body)
}

func checkStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	b, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(b))}
}
