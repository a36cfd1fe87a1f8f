// Package fetch is the shared outbound HTTP client for scrapers: timeouts,
// a global rate limit, bounded retries and Korean charset handling.
package fetch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/text/encoding/korean"
	"golang.org/x/text/transform"
	"golang.org/x/time/rate"

	"github.com/selivandex/stock-qa-bot/internal/adapters/config"
	"github.com/selivandex/stock-qa-bot/pkg/logger"
)

const maxBodySize = 8 << 20

// StatusError is returned for non-2xx responses
type StatusError struct {
	StatusCode int
	URL        string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP %d from %s", e.StatusCode, e.URL)
}

// Retryable reports whether the status is worth another attempt
func (e *StatusError) Retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// Client performs rate-limited GET requests with retry
type Client struct {
	http       *http.Client
	limiter    *rate.Limiter
	userAgent  string
	maxRetries int
	backoff    time.Duration
}

// NewClient creates fetch client from HTTP config
func NewClient(cfg *config.HTTPConfig) *Client {
	rps := cfg.RateLimit
	if rps <= 0 {
		rps = 5
	}
	burst := int(rps)
	if burst < 1 {
		burst = 1
	}
	return &Client{
		http:       &http.Client{Timeout: cfg.Timeout},
		limiter:    rate.NewLimiter(rate.Limit(rps), burst),
		userAgent:  cfg.UserAgent,
		maxRetries: cfg.MaxRetries,
		backoff:    500 * time.Millisecond,
	}
}

// Get fetches url and returns the body decoded to UTF-8
func (c *Client) Get(ctx context.Context, url string, headers map[string]string) ([]byte, error) {
	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			wait := c.backoff * time.Duration(1<<(attempt-1))
			logger.Debug("retrying fetch",
				zap.String("url", url),
				zap.Int("attempt", attempt+1),
				zap.Duration("backoff", wait),
			)
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return nil, fmt.Errorf("fetch canceled: %w", ctx.Err())
			}
		}

		body, err := c.do(ctx, url, headers)
		if err == nil {
			return body, nil
		}
		lastErr = err
		if !isRetryable(err) {
			return nil, err
		}
	}

	return nil, fmt.Errorf("fetch %s failed after %d attempts: %w", url, c.maxRetries+1, lastErr)
}

func (c *Client) do(ctx context.Context, url string, headers map[string]string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	req.Header.Set("Accept-Language", "ko-KR,ko;q=0.9")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, &StatusError{StatusCode: resp.StatusCode, URL: url}
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("failed to read body: %w", err)
	}

	return ToUTF8(raw, resp.Header.Get("Content-Type"))
}

func isRetryable(err error) bool {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Retryable()
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	return errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, context.DeadlineExceeded)
}

// ToUTF8 decodes EUC-KR/CP949 bodies, detected from the Content-Type header or
// a charset declaration near the top of the document. Other bodies pass through.
func ToUTF8(body []byte, contentType string) ([]byte, error) {
	if !isKoreanLegacy(contentType, body) {
		return body, nil
	}
	out, err := io.ReadAll(transform.NewReader(bytes.NewReader(body), korean.EUCKR.NewDecoder()))
	if err != nil {
		return nil, fmt.Errorf("failed to decode euc-kr body: %w", err)
	}
	return out, nil
}

func isKoreanLegacy(contentType string, body []byte) bool {
	head := strings.ToLower(contentType)
	if len(body) > 0 {
		n := len(body)
		if n > 1024 {
			n = 1024
		}
		head += " " + strings.ToLower(string(body[:n]))
	}
	for _, label := range []string{"euc-kr", "euc_kr", "ks_c_5601", "cp949", "x-windows-949"} {
		if strings.Contains(head, label) {
			return true
		}
	}
	return false
}
