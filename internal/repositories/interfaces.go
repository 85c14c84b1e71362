package repositories

import (
	"context"
	"fmt"
	"strings"

	domain "github.com/tindahan/api/internal/domain"
)

// Physical order collections. Checkout generations disagree on casing, so
// every read and every subscription covers both names.
const (
	OrdersCollection       = "orders"
	OrdersCollectionLegacy = "Orders"
)

// OrderCollections lists the physical collections in lookup order.
var OrderCollections = []string{OrdersCollection, OrdersCollectionLegacy}

// RepositoryError wraps low-level persistence failures with categorisation used by services.
type RepositoryError interface {
	error
	IsNotFound() bool
	IsConflict() bool
	IsUnavailable() bool
}

// OrderQueryField selects the seller predicate applied to a subscription.
type OrderQueryField string

const (
	// QueryAllOrders subscribes without a seller predicate (admin view).
	QueryAllOrders OrderQueryField = ""
	// QuerySellerIDs matches documents whose sellerIds array contains the seller.
	QuerySellerIDs OrderQueryField = "sellerIds"
	// QueryLegacySellerID matches documents carrying the legacy singular field.
	QueryLegacySellerID OrderQueryField = "sellerId"
)

// OrderQuery is one source shape: a physical collection plus a seller
// predicate. The aggregator opens one push subscription per query.
type OrderQuery struct {
	Collection string
	Field      OrderQueryField
	SellerID   string
}

// Key returns the stable per-subscription identity used to track the latest
// batch from this source.
func (q OrderQuery) Key() string {
	if q.Field == QueryAllOrders {
		return fmt.Sprintf("%s/all", q.Collection)
	}
	return fmt.Sprintf("%s/%s=%s", q.Collection, q.Field, q.SellerID)
}

// OrderQueriesForSeller expands a seller identity into the full set of source
// shapes. An empty seller id yields the all-orders admin view.
func OrderQueriesForSeller(sellerID string) []OrderQuery {
	sellerID = strings.TrimSpace(sellerID)
	queries := make([]OrderQuery, 0, 2*len(OrderCollections))
	for _, collection := range OrderCollections {
		if sellerID == "" {
			queries = append(queries, OrderQuery{Collection: collection, Field: QueryAllOrders})
			continue
		}
		queries = append(queries,
			OrderQuery{Collection: collection, Field: QuerySellerIDs, SellerID: sellerID},
			OrderQuery{Collection: collection, Field: QueryLegacySellerID, SellerID: sellerID},
		)
	}
	return queries
}

// OrderSnapshotHandler receives the full current batch for one source every
// time the store pushes a change.
type OrderSnapshotHandler func(docs []domain.RawOrderDocument)

// OrderDocumentRepository reads and mutates raw order documents across both
// physical collections.
type OrderDocumentRepository interface {
	// FindRaw tries each physical collection until the id is found.
	FindRaw(ctx context.Context, orderID string) (domain.RawOrderDocument, error)
	// Listen streams snapshot batches for one query until ctx is done.
	Listen(ctx context.Context, query OrderQuery, handler OrderSnapshotHandler) error
	// UpdateLifecycle applies status/stage/history field updates to the
	// document in its home collection.
	UpdateLifecycle(ctx context.Context, collection, orderID string, update OrderLifecycleUpdate) error
}

// OrderLifecycleUpdate carries the mutation written by the fulfillment
// service. The stored statusHistory becomes PriorHistory followed by the
// encoded Appended entries: prior entries are carried verbatim, so legacy
// records the normalizer cannot type still survive the write.
type OrderLifecycleUpdate struct {
	Status       *domain.OrderStatus
	Stage        *domain.FulfillmentStage
	PriorHistory []any
	Appended     []domain.StatusHistoryEntry
}

// ProductRepository loads catalog documents referenced by order line items.
type ProductRepository interface {
	FindByID(ctx context.Context, productID string) (domain.Product, error)
}

// ReturnRequestRepository loads return/refund sub-entities.
type ReturnRequestRepository interface {
	FindByID(ctx context.Context, returnID string) (domain.ReturnRequest, error)
	ListAll(ctx context.Context) ([]domain.ReturnRequest, error)
}
