// Package feeds retrieves and parses remote syndication feeds, one source at a time
package feeds

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"prophecywatch/models"

	"github.com/mmcdole/gofeed"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	log "github.com/sirupsen/logrus"
)

var (
	fetchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "prophecywatch_feed_fetch_duration_seconds",
		Help:    "Duration of a single feed fetch including parsing",
		Buckets: prometheus.ExponentialBuckets(0.05, 2, 10), // 50ms doubling up to ~25s
	}, []string{"source"})

	fetchResults = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "prophecywatch_feed_fetch_total",
		Help: "Feed fetches by source and result",
	}, []string{"source", "result"})
)

const (
	DefaultTimeout      = 15 * time.Second
	DefaultMaxBodyBytes = 10 << 20
	DefaultUserAgent    = "prophecywatch/1.0"

	acceptHeader = "application/rss+xml, application/atom+xml, application/feed+json, application/xml;q=0.9, text/xml;q=0.9, */*;q=0.8"
)

// ErrBodyTooLarge is returned when a feed document exceeds the configured size limit
var ErrBodyTooLarge = errors.New("feed body exceeds size limit")

// Fetcher retrieves the raw entries of one feed source
type Fetcher interface {
	Fetch(ctx context.Context, source models.FeedSource) ([]models.RawEntry, error)
}

// FetcherFunc adapts a function to the Fetcher interface
type FetcherFunc func(ctx context.Context, source models.FeedSource) ([]models.RawEntry, error)

func (f FetcherFunc) Fetch(ctx context.Context, source models.FeedSource) ([]models.RawEntry, error) {
	return f(ctx, source)
}

// FetchError is the failure of a single source. It never affects other sources.
type FetchError struct {
	Source string
	Err    error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.Source, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// StatusError reports a non-2xx response from a feed server
type StatusError struct {
	StatusCode int
	Status     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected response status %s", e.Status)
}

type HTTPFetcherConfig struct {
	// Timeout bounds the whole request including reading the body
	Timeout time.Duration
	// UserAgent is sent with every request, some publishers reject blank agents
	UserAgent string
	// MaxBodyBytes caps how much of a response is read
	MaxBodyBytes int64
	// Client defaults to a fresh http.Client when nil
	Client *http.Client
}

// HTTPFetcher fetches feeds over HTTP and parses RSS, Atom and JSON Feed documents
type HTTPFetcher struct {
	client       *http.Client
	timeout      time.Duration
	userAgent    string
	maxBodyBytes int64
}

func NewHTTPFetcher(config HTTPFetcherConfig) *HTTPFetcher {
	f := &HTTPFetcher{
		client:       config.Client,
		timeout:      config.Timeout,
		userAgent:    config.UserAgent,
		maxBodyBytes: config.MaxBodyBytes,
	}
	if f.client == nil {
		f.client = &http.Client{}
	}
	if f.timeout <= 0 {
		f.timeout = DefaultTimeout
	}
	if f.userAgent == "" {
		f.userAgent = DefaultUserAgent
	}
	if f.maxBodyBytes <= 0 {
		f.maxBodyBytes = DefaultMaxBodyBytes
	}
	return f
}

// Fetch retrieves and parses one source. Any failure is returned as a *FetchError.
func (f *HTTPFetcher) Fetch(ctx context.Context, source models.FeedSource) ([]models.RawEntry, error) {
	start := time.Now()
	entries, err := f.fetch(ctx, source)
	fetchDuration.WithLabelValues(source.Name).Observe(time.Since(start).Seconds())

	if err != nil {
		fetchResults.WithLabelValues(source.Name, "error").Inc()
		return nil, &FetchError{Source: source.Name, Err: err}
	}

	fetchResults.WithLabelValues(source.Name, "ok").Inc()
	log.WithFields(log.Fields{
		"source":  source.Name,
		"entries": len(entries),
		"latency": time.Since(start),
	}).Debug("Fetched feed")

	return entries, nil
}

func (f *HTTPFetcher) fetch(ctx context.Context, source models.FeedSource) ([]models.RawEntry, error) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, source.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", acceptHeader)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{StatusCode: resp.StatusCode, Status: resp.Status}
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBodyBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if int64(len(data)) > f.maxBodyBytes {
		return nil, ErrBodyTooLarge
	}

	return Parse(data)
}

// Parse converts a feed document into raw entries
func Parse(data []byte) ([]models.RawEntry, error) {
	// gofeed parsers keep per-document state, so one per call
	feed, err := gofeed.NewParser().Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("parse feed: %w", err)
	}

	entries := make([]models.RawEntry, 0, len(feed.Items))
	for _, item := range feed.Items {
		if item == nil {
			continue
		}
		entries = append(entries, models.RawEntry{
			Title:     item.Title,
			Link:      item.Link,
			Published: item.Published,
			Updated:   item.Updated,
			Summary:   item.Description,
			Content:   item.Content,
		})
	}
	return entries, nil
}
