package ingest

import (
	"context"
	"errors"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/tindahan/api/internal/domain"
)

const blobScheme = "gs://"

// categoryNames maps legacy category ids to display names for products that
// were written before categories were denormalized onto the document.
var categoryNames = map[string]string{
	"cat-apparel":     "Apparel",
	"cat-beauty":      "Beauty & Personal Care",
	"cat-electronics": "Electronics",
	"cat-food":        "Food & Beverage",
	"cat-health":      "Health & Wellness",
	"cat-home":        "Home & Living",
	"cat-crafts":      "Local Crafts",
	"cat-toys":        "Toys & Games",
}

// ProductFetcher loads one product document referenced by a line item.
type ProductFetcher interface {
	FindByID(ctx context.Context, productID string) (domain.Product, error)
}

// ImageURLResolver converts provider-internal blob paths into retrievable URLs.
type ImageURLResolver interface {
	ResolveURL(ctx context.Context, path string) (string, error)
}

// ProductCache memoizes product fetches for one snapshot-handling run so each
// distinct product id is fetched at most once. The cache is intentionally not
// shared across runs; stale categories must not survive a reload.
type ProductCache struct {
	mu      sync.Mutex
	entries map[string]*productEntry
}

type productEntry struct {
	once    sync.Once
	product *domain.Product
}

// NewProductCache constructs an empty per-run cache.
func NewProductCache() *ProductCache {
	return &ProductCache{entries: make(map[string]*productEntry)}
}

// GetOrFetch returns the cached product or fetches it once. A failed fetch is
// cached as absent so the run does not retry it.
func (c *ProductCache) GetOrFetch(ctx context.Context, productID string, fetch func(context.Context, string) (domain.Product, error)) *domain.Product {
	if c == nil || fetch == nil {
		return nil
	}
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return nil
	}

	c.mu.Lock()
	entry, ok := c.entries[productID]
	if !ok {
		entry = &productEntry{}
		c.entries[productID] = entry
	}
	c.mu.Unlock()

	entry.once.Do(func() {
		product, err := fetch(ctx, productID)
		if err != nil {
			return
		}
		entry.product = &product
	})
	return entry.product
}

// EnricherDeps bundles collaborators for the hydration passes.
type EnricherDeps struct {
	Products ProductFetcher
	Images   ImageURLResolver
	Logger   *zap.Logger
}

// Enricher backfills fields that cannot be resolved from the order document
// alone. Both passes are best-effort: a fetch or resolve failure leaves the
// order unchanged, never rejects it.
type Enricher struct {
	products ProductFetcher
	images   ImageURLResolver
	logger   *zap.Logger
}

// NewEnricher wires the hydration collaborators.
func NewEnricher(deps EnricherDeps) (*Enricher, error) {
	if deps.Products == nil {
		return nil, errors.New("enricher: product fetcher is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Enricher{
		products: deps.Products,
		images:   deps.Images,
		logger:   logger,
	}, nil
}

// EnrichOrders hydrates every order in the batch concurrently and waits for
// all of them. The caller supplies the cache and controls its scope.
func (e *Enricher) EnrichOrders(ctx context.Context, orders []domain.Order, cache *ProductCache) []domain.Order {
	if e == nil || len(orders) == 0 {
		return orders
	}
	if cache == nil {
		cache = NewProductCache()
	}

	var wg sync.WaitGroup
	for i := range orders {
		wg.Add(1)
		go func(order *domain.Order) {
			defer wg.Done()
			e.hydrateCategories(ctx, order, cache)
			e.hydrateImage(ctx, order, cache)
		}(&orders[i])
	}
	wg.Wait()

	return orders
}

func (e *Enricher) hydrateCategories(ctx context.Context, order *domain.Order, cache *ProductCache) {
	changed := false
	for i := range order.Items {
		item := &order.Items[i]
		if item.Category != "" && item.CategoryID != "" && item.Cost != nil {
			continue
		}
		product := cache.GetOrFetch(ctx, item.ProductID, e.fetchProduct)
		if product == nil {
			continue
		}
		if item.Category == "" {
			if product.Category != "" {
				item.Category = product.Category
			} else if name, ok := categoryNames[product.CategoryID]; ok {
				item.Category = name
			}
		}
		if item.CategoryID == "" {
			item.CategoryID = product.CategoryID
		}
		if item.Subcategory == "" {
			item.Subcategory = product.Subcategory
		}
		if item.Cost == nil && product.Cost != nil {
			cost := *product.Cost
			item.Cost = &cost
		}
		if item.ImageURL == "" {
			item.ImageURL = product.ImageURL
		}
		changed = true
	}
	if changed {
		RecomputeMargins(order)
	}
}

func (e *Enricher) hydrateImage(ctx context.Context, order *domain.Order, cache *ProductCache) {
	if len(order.Items) == 0 {
		return
	}

	thumbnail := order.Items[0].ImageURL
	if thumbnail == "" {
		if product := cache.GetOrFetch(ctx, order.Items[0].ProductID, e.fetchProduct); product != nil {
			thumbnail = product.ImageURL
		}
	}
	if thumbnail == "" {
		order.ImageURL = ""
		return
	}

	if strings.HasPrefix(thumbnail, blobScheme) {
		if e.images == nil {
			order.ImageURL = ""
			return
		}
		resolved, err := e.images.ResolveURL(ctx, thumbnail)
		if err != nil {
			e.logger.Debug("order thumbnail resolve failed",
				zap.String("order", order.ID),
				zap.Error(err))
			order.ImageURL = ""
			return
		}
		order.ImageURL = resolved
		return
	}

	order.ImageURL = thumbnail
}

func (e *Enricher) fetchProduct(ctx context.Context, productID string) (domain.Product, error) {
	product, err := e.products.FindByID(ctx, productID)
	if err != nil {
		e.logger.Debug("product hydration fetch failed",
			zap.String("product", productID),
			zap.Error(err))
		return domain.Product{}, err
	}
	return product, nil
}
