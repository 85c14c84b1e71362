package domain

import (
	"time"
)

// OrderStatus enumerates the canonical lifecycle states assigned to an order
// after reconciling all raw status-like fields.
type OrderStatus string

const (
	// OrderStatusPending indicates the order awaits payment or confirmation.
	OrderStatusPending OrderStatus = "pending"
	// OrderStatusConfirmed indicates the order was confirmed but not yet packed.
	OrderStatusConfirmed OrderStatus = "confirmed"
	// OrderStatusToShip indicates the order is paid and moving through fulfillment.
	OrderStatusToShip OrderStatus = "to_ship"
	// OrderStatusShipping indicates the order is in transit.
	OrderStatusShipping OrderStatus = "shipping"
	// OrderStatusCompleted indicates the order was delivered.
	OrderStatusCompleted OrderStatus = "completed"
	// OrderStatusFailedDelivery indicates the courier could not deliver the order.
	OrderStatusFailedDelivery OrderStatus = "failed-delivery"
	// OrderStatusCancelled indicates the order was cancelled or payment failed.
	OrderStatusCancelled OrderStatus = "cancelled"
	// OrderStatusReturnRequested indicates the buyer opened a return request.
	OrderStatusReturnRequested OrderStatus = "return_requested"
	// OrderStatusReturnApproved indicates the seller approved the return.
	OrderStatusReturnApproved OrderStatus = "return_approved"
	// OrderStatusReturnRejected indicates the seller rejected the return.
	OrderStatusReturnRejected OrderStatus = "return_rejected"
	// OrderStatusReturned indicates the items arrived back at the seller.
	OrderStatusReturned OrderStatus = "returned"
	// OrderStatusRefunded indicates the payment was refunded.
	OrderStatusRefunded OrderStatus = "refunded"
	// OrderStatusReturnRefund indicates a combined return-and-refund flow.
	OrderStatusReturnRefund OrderStatus = "return_refund"
)

// FulfillmentStage describes packing progress while an order is in to_ship.
type FulfillmentStage string

const (
	// StageToPack means the order entered the packing queue.
	StageToPack FulfillmentStage = "to-pack"
	// StageToArrangement means the package is packed and awaits courier arrangement.
	StageToArrangement FulfillmentStage = "to-arrangement"
	// StageToHandOver means a courier is arranged and the package awaits hand-over.
	StageToHandOver FulfillmentStage = "to-hand-over"
)

// Customer is the best-effort buyer extraction from a raw order document.
type Customer struct {
	Name    string
	Contact string
}

// OrderItem is one normalized line item. Optional leaves stay nil when the
// source document or product hydration could not supply them.
type OrderItem struct {
	Name        string
	Quantity    int
	Price       *float64
	ProductID   string
	SKU         string
	ImageURL    string
	Category    string
	Subcategory string
	CategoryID  string
	Cost        *float64
}

// PackageInfo carries packing hints for the fulfillment flow.
type PackageInfo struct {
	Size     string
	Priority string
}

// StatusHistoryEntry is one append-only lifecycle record on an order.
type StatusHistoryEntry struct {
	Status    string
	Note      string
	Timestamp time.Time
}

// OrderSummary preserves the nested financial summary written by checkout.
type OrderSummary struct {
	Subtotal             *float64
	ShippingCost         *float64
	TaxAmount            *float64
	DiscountAmount       *float64
	Total                *float64
	TotalItems           *float64
	SellerShippingCharge *float64
	BuyerShippingCharge  *float64
	ShippingSplitRule    string
}

// FeesBreakdown preserves the nested platform fee structure.
type FeesBreakdown struct {
	PaymentProcessingFee *float64
	PlatformFee          *float64
	TotalSellerFees      *float64
	PaymentMethod        string
}

// PayoutInfo preserves the nested seller payout calculation.
type PayoutInfo struct {
	NetPayoutToSeller *float64
	CalculatedAt      *time.Time
}

// Order is the canonical order entity produced by normalization. It is
// immutable by convention; only the fulfillment service mutates status,
// stage, and history, and always via read-then-append.
type Order struct {
	ID        string
	CreatedAt time.Time
	// Timestamp is the accrual-basis calendar date derived from CreatedAt.
	Timestamp time.Time

	Customer  Customer
	SellerIDs []string

	Items      []OrderItem
	ItemsBrief string
	ImageURL   string

	Total       *float64
	Currency    string
	Tax         *float64
	Discount    *float64
	Shipping    *float64
	Fees        *float64
	COGS        *float64
	GrossMargin *float64

	Summary *OrderSummary
	FeesRaw *FeesBreakdown
	Payout  *PayoutInfo

	Region  string
	Package PackageInfo

	Status           OrderStatus
	FulfillmentStage FulfillmentStage
	StatusHistory    []StatusHistoryEntry

	TrackingNumber string
	PaymentMethod  string

	PackedAt    *time.Time
	HandoverAt  *time.Time
	DeliveredAt *time.Time

	ReturnRequestID string
}

// Product is the related catalog document used for hydration.
type Product struct {
	ID          string
	Name        string
	Category    string
	CategoryID  string
	Subcategory string
	Cost        *float64
	ImageURL    string
}

// ReturnRequest is the return/refund sub-entity linked to an order.
type ReturnRequest struct {
	ID             string
	OrderID        string
	Reason         string
	CustomReason   string
	Status         string
	RequestedAt    *time.Time
	ResolvedAt     *time.Time
	RefundAmount   *float64
	EvidenceImages []string
}
