package server

import (
	"context"
	"strings"
	"time"

	"prophecywatch/cache"
	"prophecywatch/models"

	"github.com/samber/lo"
)

// NewsCacheKey is the single cache slot holding the aggregated news
const NewsCacheKey = "ALL_NEWS"

// NewsProvider returns the current aggregated news, newest first
type NewsProvider interface {
	News(ctx context.Context) ([]models.NewsItem, error)
}

// Runner performs one aggregation run
type Runner interface {
	Run(ctx context.Context) []models.NewsItem
}

// CachedNews serves aggregation results from a TTL cache, running the aggregator at most
// once per expiry no matter how many requests arrive.
type CachedNews struct {
	runner Runner
	cache  *cache.Cache[[]models.NewsItem]
}

func NewCachedNews(runner Runner, ttl time.Duration, opts ...cache.Option) *CachedNews {
	return &CachedNews{
		runner: runner,
		cache:  cache.New[[]models.NewsItem](ttl, opts...),
	}
}

func (n *CachedNews) News(ctx context.Context) ([]models.NewsItem, error) {
	return n.cache.GetOrCompute(ctx, NewsCacheKey, func(ctx context.Context) ([]models.NewsItem, error) {
		return n.runner.Run(ctx), nil
	})
}

// Invalidate drops the cached news so the next request aggregates again
func (n *CachedNews) Invalidate() {
	n.cache.Invalidate(NewsCacheKey)
}

// NewsFilter narrows a news list the same way the dashboard does
type NewsFilter struct {
	// Topic key, empty for all topics
	Topic string
	// Case-insensitive text matched against "title source"
	Query string
	// Maximum number of items, zero for no limit
	Limit int
}

// Apply returns a new slice and never modifies items
func (f NewsFilter) Apply(items []models.NewsItem) []models.NewsItem {
	query := strings.ToLower(strings.TrimSpace(f.Query))

	filtered := lo.Filter(items, func(item models.NewsItem, _ int) bool {
		if f.Topic != "" && !item.HasTopic(f.Topic) {
			return false
		}
		if query != "" && !strings.Contains(strings.ToLower(item.Title+" "+item.Source), query) {
			return false
		}
		return true
	})

	if f.Limit > 0 && len(filtered) > f.Limit {
		filtered = filtered[:f.Limit]
	}
	return filtered
}
