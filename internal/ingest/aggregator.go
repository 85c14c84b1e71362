package ingest

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/tindahan/api/internal/domain"
	"github.com/tindahan/api/internal/repositories"
)

// AggregatorDeps bundles collaborators for the order source aggregator.
type AggregatorDeps struct {
	Orders   repositories.OrderDocumentRepository
	Enricher *Enricher
	Logger   *zap.Logger
}

// Aggregator subscribes to every (collection × query shape) source for a
// seller, normalizes and enriches each pushed batch, and emits one merged,
// time-sorted list whenever any source changes. It performs no deduplication
// across sources: batches are keyed strictly by source, and the query shapes
// are mutually exclusive by field presence in the data.
type Aggregator struct {
	orders   repositories.OrderDocumentRepository
	enricher *Enricher
	logger   *zap.Logger
}

// NewAggregator wires the aggregator dependencies.
func NewAggregator(deps AggregatorDeps) (*Aggregator, error) {
	if deps.Orders == nil {
		return nil, errors.New("aggregator: order repository is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Aggregator{
		orders:   deps.Orders,
		enricher: deps.Enricher,
		logger:   logger,
	}, nil
}

// Subscribe opens all source subscriptions for the seller (all orders when
// sellerID is empty) and invokes emit with the merged list on every source
// change. The returned function stops every subscription; it is safe to call
// multiple times and after the underlying subscriptions already failed.
func (a *Aggregator) Subscribe(ctx context.Context, sellerID string, emit func([]domain.Order)) (func(), error) {
	if a == nil {
		return nil, errors.New("aggregator: not initialised")
	}
	if emit == nil {
		return nil, errors.New("aggregator: emit callback is required")
	}

	subCtx, cancel := context.WithCancel(ctx)
	state := &subscriptionState{
		batches: make(map[string][]domain.Order),
		emit:    emit,
	}

	queries := repositories.OrderQueriesForSeller(sellerID)
	var wg sync.WaitGroup
	for _, query := range queries {
		wg.Add(1)
		go func(query repositories.OrderQuery) {
			defer wg.Done()
			err := a.orders.Listen(subCtx, query, func(docs []domain.RawOrderDocument) {
				a.handleSnapshot(subCtx, state, query.Key(), docs)
			})
			if err != nil && subCtx.Err() == nil {
				a.logger.Warn("order source subscription ended",
					zap.String("source", query.Key()),
					zap.Error(err))
			}
		}(query)
	}

	var once sync.Once
	unsubscribe := func() {
		once.Do(func() {
			cancel()
			wg.Wait()
		})
	}
	return unsubscribe, nil
}

func (a *Aggregator) handleSnapshot(ctx context.Context, state *subscriptionState, sourceKey string, docs []domain.RawOrderDocument) {
	orders := make([]domain.Order, 0, len(docs))
	for _, doc := range docs {
		orders = append(orders, Normalize(doc))
	}

	// One cache per snapshot-handling run: duplicate product refs within the
	// batch resolve to a single fetch, nothing outlives the run.
	if a.enricher != nil {
		cache := NewProductCache()
		orders = a.enricher.EnrichOrders(ctx, orders, cache)
	}

	state.replaceAndEmit(sourceKey, orders)
}

type subscriptionState struct {
	mu      sync.Mutex
	batches map[string][]domain.Order
	emit    func([]domain.Order)
}

// replaceAndEmit applies last-write-wins per source key and delivers the
// merged view. Emissions are serialised under the lock so callers observe
// monotonic snapshots.
func (s *subscriptionState) replaceAndEmit(sourceKey string, batch []domain.Order) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.batches[sourceKey] = batch
	s.emit(MergeBatches(s.batches))
}

// MergeBatches flattens the latest batch of every source into one list sorted
// by creation time, newest first. Ties order by id for determinism.
func MergeBatches(batches map[string][]domain.Order) []domain.Order {
	total := 0
	for _, batch := range batches {
		total += len(batch)
	}
	merged := make([]domain.Order, 0, total)
	for _, batch := range batches {
		merged = append(merged, batch...)
	}
	slices.SortFunc(merged, func(a, b domain.Order) int {
		if cmp := b.CreatedAt.Compare(a.CreatedAt); cmp != 0 {
			return cmp
		}
		return strings.Compare(a.ID, b.ID)
	})
	return merged
}
