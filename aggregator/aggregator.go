// Package aggregator fetches every configured feed concurrently and merges the classified
// entries into one newest-first result.
package aggregator

import (
	"context"
	"errors"
	"slices"
	"strings"
	"time"

	"prophecywatch/feeds"
	"prophecywatch/models"

	"github.com/araddon/dateparse"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

var (
	runDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "prophecywatch_aggregation_duration_seconds",
		Help:    "Duration of a full aggregation run across all sources",
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 10),
	})

	runItems = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "prophecywatch_aggregation_items",
		Help: "Number of items produced by the latest aggregation run",
	})

	runFailedSources = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "prophecywatch_aggregation_failed_sources",
		Help: "Number of sources that failed in the latest aggregation run",
	})
)

// UntitledPlaceholder replaces missing entry titles
const UntitledPlaceholder = "Untitled"

// Classifier maps free text to topic keys
type Classifier interface {
	ClassifyEntry(parts ...string) []string
}

// Aggregator runs one fetch per source and merges the results
type Aggregator struct {
	sources    []models.FeedSource
	fetcher    feeds.Fetcher
	classifier Classifier
}

func New(sources []models.FeedSource, fetcher feeds.Fetcher, classifier Classifier) *Aggregator {
	return &Aggregator{
		sources:    append([]models.FeedSource(nil), sources...),
		fetcher:    fetcher,
		classifier: classifier,
	}
}

func (a *Aggregator) Sources() []models.FeedSource {
	return append([]models.FeedSource(nil), a.sources...)
}

// sourceResult is one slot of the fan-in buffer
type sourceResult struct {
	entries []models.RawEntry
	err     error
}

// Run fetches all sources concurrently and returns their items sorted newest first.
//
// A failing source is logged and contributes nothing. Run never fails; when every source
// fails the result is empty. Items are merged in source order before a stable sort, so
// fetch completion order has no effect on the output.
func (a *Aggregator) Run(ctx context.Context) []models.NewsItem {
	start := time.Now()
	runID := uuid.New().String()

	results := make([]sourceResult, len(a.sources))
	g, gctx := errgroup.WithContext(ctx)
	for i, source := range a.sources {
		g.Go(func() error {
			entries, err := a.fetcher.Fetch(gctx, source)
			results[i] = sourceResult{entries: entries, err: err}
			return nil
		})
	}
	_ = g.Wait()

	items := []models.NewsItem{}
	failed := 0
	for i, res := range results {
		source := a.sources[i]
		if res.err != nil {
			failed++
			log.WithFields(log.Fields{
				"run":    runID,
				"source": source.Name,
				"error":  describe(res.err),
			}).Warn("Feed error")
			continue
		}
		for _, entry := range res.entries {
			items = append(items, a.newsItem(source, entry))
		}
	}

	SortNewestFirst(items)

	runDuration.Observe(time.Since(start).Seconds())
	runItems.Set(float64(len(items)))
	runFailedSources.Set(float64(failed))

	log.WithFields(log.Fields{
		"run":     runID,
		"sources": len(a.sources),
		"failed":  failed,
		"items":   len(items),
		"latency": time.Since(start),
	}).Info("Aggregated feeds")

	return items
}

func (a *Aggregator) newsItem(source models.FeedSource, entry models.RawEntry) models.NewsItem {
	title := strings.TrimSpace(entry.Title)
	if title == "" {
		title = UntitledPlaceholder
	}

	return models.NewsItem{
		Source:  source.Name,
		Title:   title,
		Link:    strings.TrimSpace(entry.Link),
		IsoDate: ParseDate(entry.Published, entry.Updated),
		Topics:  a.classifier.ClassifyEntry(entry.Title, entry.Summary, entry.Content),
	}
}

// ParseDate parses the first non-empty date field. A first field that does not parse
// yields nil; later fields are only consulted when the earlier ones are empty.
func ParseDate(fields ...string) *time.Time {
	for _, field := range fields {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}
		t, err := dateparse.ParseAny(field)
		if err != nil {
			return nil
		}
		t = t.UTC()
		return &t
	}
	return nil
}

// SortNewestFirst stably sorts items by timestamp descending. Items without a timestamp
// go last, in their original order.
func SortNewestFirst(items []models.NewsItem) {
	slices.SortStableFunc(items, func(a, b models.NewsItem) int {
		switch {
		case a.IsoDate == nil && b.IsoDate == nil:
			return 0
		case a.IsoDate == nil:
			return 1
		case b.IsoDate == nil:
			return -1
		}
		return b.IsoDate.Compare(*a.IsoDate)
	})
}

func describe(err error) string {
	var fetchErr *feeds.FetchError
	if errors.As(err, &fetchErr) {
		return fetchErr.Err.Error()
	}
	return err.Error()
}
