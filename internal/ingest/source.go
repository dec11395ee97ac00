package ingest

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jlaffaye/ftp"

	"github.com/lox/airquality/internal/httputil"
	"github.com/lox/airquality/internal/metrics"
)

// Fetcher retrieves the raw dataset bytes for a source, which is either a
// local path or an http(s):// or ftp:// URL.
type Fetcher struct {
	client         *http.Client
	maxElapsedTime time.Duration
	ftpTimeout     time.Duration
}

func NewFetcher() *Fetcher {
	return &Fetcher{
		client:         httputil.NewClient(),
		maxElapsedTime: 2 * time.Minute,
		ftpTimeout:     30 * time.Second,
	}
}

// Scheme reports how a source will be fetched: "file", "http" or "ftp".
func Scheme(source string) string {
	u, err := url.Parse(source)
	if err != nil {
		return "file"
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
		return "http"
	case "ftp":
		return "ftp"
	default:
		return "file"
	}
}

func (f *Fetcher) Fetch(ctx context.Context, source string) ([]byte, error) {
	scheme := Scheme(source)
	start := time.Now()
	defer func() {
		metrics.SourceFetchLatency.WithLabelValues(scheme).Observe(time.Since(start).Seconds())
	}()

	switch scheme {
	case "http":
		return f.fetchHTTP(ctx, source)
	case "ftp":
		return f.fetchFTP(ctx, source)
	default:
		data, err := os.ReadFile(strings.TrimPrefix(source, "file://"))
		if err != nil {
			return nil, fmt.Errorf("read file: %w", err)
		}
		return data, nil
	}
}

func (f *Fetcher) fetchHTTP(ctx context.Context, source string) ([]byte, error) {
	var body []byte
	operation := func() error {
		req, err := httputil.NewRequest(source)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("build request: %w", err))
		}
		resp, err := f.client.Do(req.WithContext(ctx))
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			return fmt.Errorf("fetch dataset: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return fmt.Errorf("fetch dataset: status %d", resp.StatusCode)
		}
		if resp.StatusCode != http.StatusOK {
			b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			return backoff.Permanent(fmt.Errorf("fetch dataset: status %d: %s", resp.StatusCode, string(b)))
		}

		body, err = io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("read body: %w", err)
		}
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = f.maxElapsedTime
	if err := backoff.Retry(operation, backoff.WithContext(bo, ctx)); err != nil {
		return nil, err
	}
	return body, nil
}

func (f *Fetcher) fetchFTP(ctx context.Context, source string) ([]byte, error) {
	u, err := url.Parse(source)
	if err != nil {
		return nil, fmt.Errorf("parse ftp url: %w", err)
	}
	host := u.Host
	if u.Port() == "" {
		host += ":21"
	}

	conn, err := ftp.Dial(host, ftp.DialWithTimeout(f.ftpTimeout), ftp.DialWithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("ftp dial: %w", err)
	}
	defer conn.Quit()

	user, pass := "anonymous", "anonymous"
	if u.User != nil {
		user = u.User.Username()
		if p, ok := u.User.Password(); ok {
			pass = p
		}
	}
	if err := conn.Login(user, pass); err != nil {
		return nil, fmt.Errorf("ftp login: %w", err)
	}

	resp, err := conn.Retr(u.Path)
	if err != nil {
		return nil, fmt.Errorf("ftp retr: %w", err)
	}
	defer resp.Close()

	body, err := io.ReadAll(resp)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return body, nil
}
