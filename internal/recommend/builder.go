package recommend

import (
	"context"
	"sort"
	"strings"

	"shopper-service/internal/models"
	"shopper-service/internal/util"

	"go.uber.org/zap"
)

// ProductSource is the catalog query collaborator. SearchByScentKeywords
// returns active products whose scent-note text contains any of the
// keywords; TrendingActive returns active products ordered trending-first.
type ProductSource interface {
	SearchByScentKeywords(ctx context.Context, keywords []string, limit int) ([]models.Product, error)
	TrendingActive(ctx context.Context, limit int) ([]models.Product, error)
}

// Builder translates the fixed season/mood vocabulary into ranked product
// lists. Recommendations are a non-critical enhancement: backing-store errors
// degrade to a plain trending list, never to an error.
type Builder struct {
	source ProductSource
	logger *zap.Logger
}

// NewBuilder creates a recommendation builder over a product source
func NewBuilder(source ProductSource) *Builder {
	return &Builder{
		source: source,
		logger: util.GetLogger(),
	}
}

// ForMood returns up to limit products matching the mood's keyword set.
func (b *Builder) ForMood(ctx context.Context, mood string, limit int) []models.Product {
	return b.pick(ctx, MoodKeywords(mood), limit)
}

// ForSeason returns up to limit products matching the season's keyword set.
func (b *Builder) ForSeason(ctx context.Context, season string, limit int) []models.Product {
	return b.pick(ctx, SeasonKeywords(season), limit)
}

func (b *Builder) pick(ctx context.Context, keywords []string, limit int) []models.Product {
	if limit <= 0 {
		limit = 8
	}

	products, err := b.source.SearchByScentKeywords(ctx, keywords, limit)
	if err != nil {
		b.logger.Warn("Keyword product search failed, falling back to trending",
			zap.Strings("keywords", keywords), zap.Error(err))
		return b.fallback(ctx, limit)
	}

	ranked := Rank(keywords, products, limit)
	util.RecommendationsServedTotal.WithLabelValues("keywords").Inc()
	return ranked
}

func (b *Builder) fallback(ctx context.Context, limit int) []models.Product {
	products, err := b.source.TrendingActive(ctx, limit)
	if err != nil {
		b.logger.Warn("Trending fallback failed, serving empty list", zap.Error(err))
		return []models.Product{}
	}
	util.RecommendationsServedTotal.WithLabelValues("trending_fallback").Inc()
	return products
}

// Rank filters products down to those whose scent-note text contains any
// keyword (case-insensitive substring) and orders them trending-first,
// preserving the collection's native order below the trending flag.
func Rank(keywords []string, products []models.Product, limit int) []models.Product {
	matched := make([]models.Product, 0, len(products))
	for _, p := range products {
		if matchesAny(p, keywords) {
			matched = append(matched, p)
		}
	}

	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].IsTrending && !matched[j].IsTrending
	})

	if limit > 0 && len(matched) > limit {
		matched = matched[:limit]
	}
	return matched
}

func matchesAny(p models.Product, keywords []string) bool {
	notes := strings.ToLower(strings.Join(p.ScentNotes.All(), " "))
	for _, kw := range keywords {
		if kw == "" {
			continue
		}
		if strings.Contains(notes, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}
