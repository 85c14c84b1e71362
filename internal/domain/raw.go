package domain

// Raw document schema for order ingestion. Every field is optional: checkout
// writers have produced several generations of shapes, so temporal and
// numeric leaves are decoded as `any` and coerced by the ingest package. This
// type is the single boundary between store documents and the canonical
// Order entity.

// RawOrder mirrors the union of recognized order document shapes.
type RawOrder struct {
	SellerID  string   `firestore:"sellerId"`
	SellerIDs []string `firestore:"sellerIds"`

	Status           string `firestore:"status"`
	FulfillmentStage string `firestore:"fulfillmentStage"`

	CustomerName  string `firestore:"customerName"`
	BuyerName     string `firestore:"buyerName"`
	ContactNumber string `firestore:"contactNumber"`
	Email         string `firestore:"email"`

	ShippingInfo RawShippingInfo `firestore:"shippingInfo"`
	PaymentInfo  RawPaymentInfo  `firestore:"paymentInfo"`

	Items []RawItem `firestore:"items"`

	Summary RawSummary `firestore:"summary"`
	Fees    RawFees    `firestore:"fees"`
	Payout  RawPayout  `firestore:"payout"`

	Total    any    `firestore:"total"`
	Currency string `firestore:"currency"`

	Package RawPackage `firestore:"package"`

	// StatusHistory and StatusTimestamps are free-form: lists of entry maps
	// in newer documents, label-keyed maps in older ones.
	StatusHistory    any `firestore:"statusHistory"`
	StatusTimestamps any `firestore:"statusTimestamps"`

	CreatedAt any `firestore:"createdAt"`
	OrderDate any `firestore:"orderDate"`
	PlacedAt  any `firestore:"placedAt"`

	ReturnRequestID string `firestore:"returnRequestId"`
}

// RawShippingInfo is the recipient/courier block of an order document.
type RawShippingInfo struct {
	Status string `firestore:"status"`

	FullName    string `firestore:"fullName"`
	PhoneNumber string `firestore:"phoneNumber"`

	AddressLine1 string `firestore:"addressLine1"`
	AddressLine2 string `firestore:"addressLine2"`
	City         string `firestore:"city"`
	State        string `firestore:"state"`
	PostalCode   string `firestore:"postalCode"`
	Country      string `firestore:"country"`

	Barangay     string `firestore:"barangay"`
	Brgy         string `firestore:"brgy"`
	Municipality string `firestore:"municipality"`
	Town         string `firestore:"town"`
	Province     string `firestore:"province"`
	Zip          string `firestore:"zip"`

	TrackingNumber string `firestore:"trackingNumber"`

	PackedAt     any `firestore:"packedAt"`
	HandoverAt   any `firestore:"handoverAt"`
	DispatchedAt any `firestore:"dispatchedAt"`
	DeliveredAt  any `firestore:"deliveredAt"`
}

// RawPaymentInfo is the payment block of an order document.
type RawPaymentInfo struct {
	Status        string `firestore:"status"`
	Method        string `firestore:"method"`
	Type          string `firestore:"type"`
	Channel       string `firestore:"channel"`
	Currency      string `firestore:"currency"`
	Amount        any    `firestore:"amount"`
	TransactionID string `firestore:"transactionId"`
	PaidAt        any    `firestore:"paidAt"`
	RefundedAt    any    `firestore:"refundedAt"`
}

// RawItem is one line item as written by any checkout generation.
type RawItem struct {
	ProductName string `firestore:"productName"`
	Name        string `firestore:"name"`

	Quantity any `firestore:"quantity"`
	Price    any `firestore:"price"`

	ProductID  string `firestore:"productId"`
	ProductID2 string `firestore:"productID"`

	SKU  string `firestore:"sku"`
	SKU2 string `firestore:"SKU"`

	ImageURL  string `firestore:"imageURL"`
	ImageURL2 string `firestore:"imageUrl"`

	Category   string `firestore:"category"`
	CategoryID string `firestore:"categoryId"`
	Cost       any    `firestore:"cost"`
}

// RawSummary is the nested monetary breakdown written by checkout.
type RawSummary struct {
	Subtotal             any    `firestore:"subtotal"`
	ShippingCost         any    `firestore:"shippingCost"`
	TaxAmount            any    `firestore:"taxAmount"`
	DiscountAmount       any    `firestore:"discountAmount"`
	Total                any    `firestore:"total"`
	TotalItems           any    `firestore:"totalItems"`
	SellerShippingCharge any    `firestore:"sellerShippingCharge"`
	BuyerShippingCharge  any    `firestore:"buyerShippingCharge"`
	ShippingSplitRule    string `firestore:"shippingSplitRule"`
}

// RawFees is the nested platform fee breakdown.
type RawFees struct {
	PaymentProcessingFee any    `firestore:"paymentProcessingFee"`
	PlatformFee          any    `firestore:"platformFee"`
	TotalSellerFees      any    `firestore:"totalSellerFees"`
	PaymentMethod        string `firestore:"paymentMethod"`
}

// RawPayout is the nested seller payout calculation.
type RawPayout struct {
	NetPayoutToSeller any `firestore:"netPayoutToSeller"`
	CalculatedAt      any `firestore:"calculatedAt"`
}

// RawPackage carries packing hints; both leaves default when absent.
type RawPackage struct {
	Size     string `firestore:"size"`
	Priority string `firestore:"priority"`
}

// RawReturnRequest mirrors a return-request document.
type RawReturnRequest struct {
	OrderID        string   `firestore:"orderId"`
	Reason         string   `firestore:"reason"`
	CustomReason   string   `firestore:"customReason"`
	Status         string   `firestore:"status"`
	RequestedAt    any      `firestore:"requestedAt"`
	ResolvedAt     any      `firestore:"resolvedAt"`
	RefundAmount   any      `firestore:"refundAmount"`
	EvidenceImages []string `firestore:"evidenceImages"`
}

// RawProduct mirrors a catalog product document consumed during hydration.
type RawProduct struct {
	Name        string `firestore:"name"`
	ProductName string `firestore:"productName"`
	Category    string `firestore:"category"`
	CategoryID  string `firestore:"categoryId"`
	Subcategory string `firestore:"subcategory"`
	Cost        any    `firestore:"cost"`
	ImageURL    string `firestore:"imageURL"`
	ImageURL2   string `firestore:"imageUrl"`
}

// RawOrderDocument pairs a decoded raw order with its physical location so
// mutations can write back to the collection the document came from.
type RawOrderDocument struct {
	Collection string
	ID         string
	Data       RawOrder
}
