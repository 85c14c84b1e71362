package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"cloud.google.com/go/firestore"
	"go.uber.org/zap"

	domain "github.com/tindahan/api/internal/domain"
	pfirestore "github.com/tindahan/api/internal/platform/firestore"
	"github.com/tindahan/api/internal/repositories"
)

// OrderRepository reads and mutates raw order documents across both physical
// collections. Decoding is deliberately loose: documents come from several
// checkout generations, so a document that fails to decode is skipped rather
// than failing the batch.
type OrderRepository struct {
	provider *pfirestore.Provider
	logger   *zap.Logger
}

// NewOrderRepository constructs a Firestore-backed order document repository.
func NewOrderRepository(provider *pfirestore.Provider, logger *zap.Logger) (*OrderRepository, error) {
	if provider == nil {
		return nil, errors.New("order repository: firestore provider is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OrderRepository{provider: provider, logger: logger}, nil
}

// FindRaw tries each physical collection until the id is found.
func (r *OrderRepository) FindRaw(ctx context.Context, orderID string) (domain.RawOrderDocument, error) {
	if r == nil || r.provider == nil {
		return domain.RawOrderDocument{}, errors.New("order repository not initialised")
	}
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return domain.RawOrderDocument{}, errors.New("order repository: order id is required")
	}

	client, err := r.provider.Client(ctx)
	if err != nil {
		return domain.RawOrderDocument{}, err
	}

	var lastErr error
	for _, collection := range repositories.OrderCollections {
		snap, err := client.Collection(collection).Doc(orderID).Get(ctx)
		if err != nil {
			lastErr = pfirestore.WrapError(fmt.Sprintf("%s.get", collection), err)
			var repoErr repositories.RepositoryError
			if errors.As(lastErr, &repoErr) && repoErr.IsNotFound() {
				continue
			}
			return domain.RawOrderDocument{}, lastErr
		}

		var raw domain.RawOrder
		if err := snap.DataTo(&raw); err != nil {
			return domain.RawOrderDocument{}, fmt.Errorf("order repository: decode document %s: %w", orderID, err)
		}
		return domain.RawOrderDocument{Collection: collection, ID: snap.Ref.ID, Data: raw}, nil
	}

	if lastErr != nil {
		return domain.RawOrderDocument{}, lastErr
	}
	return domain.RawOrderDocument{}, pfirestore.WrapError("orders.get", errors.New("order not found in any collection"))
}

// Listen streams snapshot batches for one source query until ctx is done.
func (r *OrderRepository) Listen(ctx context.Context, query repositories.OrderQuery, handler repositories.OrderSnapshotHandler) error {
	if r == nil || r.provider == nil {
		return errors.New("order repository not initialised")
	}
	if handler == nil {
		return errors.New("order repository: snapshot handler is required")
	}

	client, err := r.provider.Client(ctx)
	if err != nil {
		return err
	}

	fsQuery := client.Collection(query.Collection).Query
	switch query.Field {
	case repositories.QuerySellerIDs:
		fsQuery = fsQuery.Where("sellerIds", "array-contains", query.SellerID)
	case repositories.QueryLegacySellerID:
		fsQuery = fsQuery.Where("sellerId", "==", query.SellerID)
	case repositories.QueryAllOrders:
		// No predicate: the admin view observes the whole collection.
	default:
		return fmt.Errorf("order repository: unsupported query field %q", query.Field)
	}

	op := fmt.Sprintf("%s.listen", query.Collection)
	return pfirestore.ListenQuery(ctx, fsQuery, op, func(docs []*firestore.DocumentSnapshot) {
		batch := make([]domain.RawOrderDocument, 0, len(docs))
		for _, snap := range docs {
			var raw domain.RawOrder
			if err := snap.DataTo(&raw); err != nil {
				r.logger.Warn("order document decode failed, skipping",
					zap.String("source", query.Key()),
					zap.String("order", snap.Ref.ID),
					zap.Error(err))
				continue
			}
			batch = append(batch, domain.RawOrderDocument{
				Collection: query.Collection,
				ID:         snap.Ref.ID,
				Data:       raw,
			})
		}
		handler(batch)
	})
}

// UpdateLifecycle writes the mutation back to the document's home collection.
// The stored history becomes the prior raw entries followed by the appended
// ones, so the array never shrinks on a mutation.
func (r *OrderRepository) UpdateLifecycle(ctx context.Context, collection, orderID string, update repositories.OrderLifecycleUpdate) error {
	if r == nil || r.provider == nil {
		return errors.New("order repository not initialised")
	}
	collection = strings.TrimSpace(collection)
	orderID = strings.TrimSpace(orderID)
	if collection == "" || orderID == "" {
		return errors.New("order repository: collection and order id are required")
	}

	updates := make([]firestore.Update, 0, 3)
	if update.Status != nil {
		updates = append(updates, firestore.Update{Path: "status", Value: string(*update.Status)})
	}
	if update.Stage != nil {
		updates = append(updates, firestore.Update{Path: "fulfillmentStage", Value: string(*update.Stage)})
	}
	if len(update.Appended) > 0 {
		updates = append(updates, firestore.Update{Path: "statusHistory", Value: encodeHistory(update.PriorHistory, update.Appended)})
	}
	if len(updates) == 0 {
		return nil
	}

	client, err := r.provider.Client(ctx)
	if err != nil {
		return err
	}

	// statusHistory is assembled from the caller's read, so concurrent
	// mutations of the same order stay last-write-wins. The transaction only
	// turns a write against a vanished document into a NotFound.
	doc := client.Collection(collection).Doc(orderID)
	return r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		if _, err := tx.Get(doc); err != nil {
			return pfirestore.WrapError(fmt.Sprintf("%s.get", collection), err)
		}
		if err := tx.Update(doc, updates); err != nil {
			return pfirestore.WrapError(fmt.Sprintf("%s.update", collection), err)
		}
		return nil
	})
}

// encodeHistory builds the stored statusHistory array: prior raw entries
// verbatim, then the newly appended entries as records.
func encodeHistory(prior []any, appended []domain.StatusHistoryEntry) []any {
	encoded := make([]any, 0, len(prior)+len(appended))
	encoded = append(encoded, prior...)
	for _, entry := range appended {
		record := map[string]any{
			"status":    entry.Status,
			"timestamp": entry.Timestamp,
		}
		if entry.Note != "" {
			record["note"] = entry.Note
		}
		encoded = append(encoded, record)
	}
	return encoded
}
