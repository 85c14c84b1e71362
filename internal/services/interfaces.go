package services

import (
	"context"

	"github.com/tindahan/api/internal/domain"
)

// FulfillmentService exposes the sanctioned mutations of order status,
// fulfillment stage, and status history. Orders are created by the external
// checkout pipeline; this service only transitions them.
type FulfillmentService interface {
	// UpdateOrderStatus sets the canonical status and appends history. When
	// the new status is to_ship and no stage exists yet, the order also
	// enters to-pack with its own history entry.
	UpdateOrderStatus(ctx context.Context, orderID string, status domain.OrderStatus) (domain.Order, error)
	// UpdateFulfillmentStage sets the stage unconditionally and appends a
	// history entry with the fixed note for that stage.
	UpdateFulfillmentStage(ctx context.Context, orderID string, stage domain.FulfillmentStage) (domain.Order, error)
	// MoveOrderToPreviousStage rolls the stage back, rejecting the move when
	// the order's current stage does not match fromStage.
	MoveOrderToPreviousStage(ctx context.Context, orderID string, fromStage, toStage domain.FulfillmentStage) (domain.Order, error)
}

// OrderQueryService reads single orders in their canonical, hydrated form.
type OrderQueryService interface {
	GetOrder(ctx context.Context, orderID string) (domain.Order, error)
}

// ReturnService resolves return/refund sub-entities linked to orders.
type ReturnService interface {
	// FetchReturnRequest returns the linked entity or nil when absent or on
	// error; it never fails loudly.
	FetchReturnRequest(ctx context.Context, returnID string) *domain.ReturnRequest
	// FetchReturnRequestsForSeller scans all return requests and keeps those
	// whose parent order belongs to one of the given sellers.
	FetchReturnRequestsForSeller(ctx context.Context, sellerIDs []string) ([]domain.ReturnRequest, error)
}

// ReportingSyncPublisher is the external reporting collaborator notified
// after a successful status mutation. Failures are swallowed by callers.
type ReportingSyncPublisher interface {
	SyncOrder(ctx context.Context, order domain.Order) error
}
