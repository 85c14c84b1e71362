package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/tindahan/api/internal/domain"
	"github.com/tindahan/api/internal/ingest"
	"github.com/tindahan/api/internal/platform/auth"
	"github.com/tindahan/api/internal/platform/httpx"
	"github.com/tindahan/api/internal/services"
)

const maxOrderMutationBodySize = 4 * 1024

type updateStatusRequest struct {
	Status string `json:"status"`
}

type updateStageRequest struct {
	Stage string `json:"stage"`
}

type revertStageRequest struct {
	FromStage string `json:"fromStage"`
	ToStage   string `json:"toStage"`
}

// OrderHandlers exposes order reads, lifecycle mutations, and the live feed.
type OrderHandlers struct {
	authn       *auth.Authenticator
	queries     services.OrderQueryService
	fulfillment services.FulfillmentService
	feed        *ingest.Aggregator
	logger      *zap.Logger
}

// NewOrderHandlers constructs a new OrderHandlers instance.
func NewOrderHandlers(authn *auth.Authenticator, queries services.OrderQueryService, fulfillment services.FulfillmentService, feed *ingest.Aggregator, logger *zap.Logger) *OrderHandlers {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OrderHandlers{
		authn:       authn,
		queries:     queries,
		fulfillment: fulfillment,
		feed:        feed,
		logger:      logger,
	}
}

// Routes registers the /orders endpoints.
func (h *OrderHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	if h.authn != nil {
		r.Use(h.authn.RequireAuth())
	}
	r.Get("/feed", h.streamOrders)
	r.Get("/{orderID}", h.getOrder)
	r.Post("/{orderID}/status", h.updateStatus)
	r.Post("/{orderID}/stage", h.updateStage)
	r.Post("/{orderID}/stage/revert", h.revertStage)
}

func (h *OrderHandlers) getOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.queries == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service unavailable", http.StatusServiceUnavailable))
		return
	}

	orderID := strings.TrimSpace(chi.URLParam(r, "orderID"))
	if orderID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "order id is required", http.StatusBadRequest))
		return
	}

	order, err := h.queries.GetOrder(ctx, orderID)
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, orderResponse{Order: buildOrderPayload(order)})
}

func (h *OrderHandlers) updateStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.fulfillment == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service unavailable", http.StatusServiceUnavailable))
		return
	}

	orderID := strings.TrimSpace(chi.URLParam(r, "orderID"))
	if orderID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "order id is required", http.StatusBadRequest))
		return
	}

	var req updateStatusRequest
	if !decodeMutationBody(ctx, w, r, &req) {
		return
	}
	status := domain.OrderStatus(strings.TrimSpace(req.Status))
	if status == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "status is required", http.StatusBadRequest))
		return
	}

	order, err := h.fulfillment.UpdateOrderStatus(ctx, orderID, status)
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, orderResponse{Order: buildOrderPayload(order)})
}

func (h *OrderHandlers) updateStage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.fulfillment == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service unavailable", http.StatusServiceUnavailable))
		return
	}

	orderID := strings.TrimSpace(chi.URLParam(r, "orderID"))
	if orderID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "order id is required", http.StatusBadRequest))
		return
	}

	var req updateStageRequest
	if !decodeMutationBody(ctx, w, r, &req) {
		return
	}
	stage := domain.FulfillmentStage(strings.TrimSpace(req.Stage))
	if stage == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "stage is required", http.StatusBadRequest))
		return
	}

	order, err := h.fulfillment.UpdateFulfillmentStage(ctx, orderID, stage)
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, orderResponse{Order: buildOrderPayload(order)})
}

func (h *OrderHandlers) revertStage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.fulfillment == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service unavailable", http.StatusServiceUnavailable))
		return
	}

	orderID := strings.TrimSpace(chi.URLParam(r, "orderID"))
	if orderID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "order id is required", http.StatusBadRequest))
		return
	}

	var req revertStageRequest
	if !decodeMutationBody(ctx, w, r, &req) {
		return
	}
	fromStage := domain.FulfillmentStage(strings.TrimSpace(req.FromStage))
	toStage := domain.FulfillmentStage(strings.TrimSpace(req.ToStage))
	if fromStage == "" || toStage == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "fromStage and toStage are required", http.StatusBadRequest))
		return
	}

	order, err := h.fulfillment.MoveOrderToPreviousStage(ctx, orderID, fromStage, toStage)
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, orderResponse{Order: buildOrderPayload(order)})
}

// streamOrders serves the merged live order view as server-sent events. The
// optional seller query parameter scopes the subscription; without it the
// stream observes every order.
func (h *OrderHandlers) streamOrders(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.feed == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_feed_unavailable", "order feed unavailable", http.StatusServiceUnavailable))
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		httpx.WriteError(ctx, w, httpx.NewError("streaming_unsupported", "response writer does not support streaming", http.StatusInternalServerError))
		return
	}

	sellerID := strings.TrimSpace(r.URL.Query().Get("seller"))
	if sellerID == "" {
		// Non-admin callers fall back to their own seller scope.
		if identity, ok := auth.IdentityFromContext(ctx); ok && !identity.Admin && len(identity.SellerIDs) > 0 {
			sellerID = identity.SellerIDs[0]
		}
	}

	// Buffered channel with latest-wins overwrite: a slow client only ever
	// skips intermediate snapshots, never blocks the listener goroutines.
	events := make(chan []domain.Order, 1)
	emit := func(orders []domain.Order) {
		for {
			select {
			case events <- orders:
				return
			default:
				select {
				case <-events:
				default:
				}
			}
		}
	}

	unsubscribe, err := h.feed.Subscribe(ctx, sellerID, emit)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_feed_error", "failed to open order feed", http.StatusInternalServerError))
		return
	}
	defer unsubscribe()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case <-ctx.Done():
			return
		case batch := <-events:
			payloads := make([]orderPayload, 0, len(batch))
			for _, order := range batch {
				payloads = append(payloads, buildOrderPayload(order))
			}
			data, err := json.Marshal(orderListEvent{Orders: payloads})
			if err != nil {
				h.logger.Warn("order feed encode failed", zap.Error(err))
				continue
			}
			if _, err := fmt.Fprintf(w, "id: %s\nevent: orders\ndata: %s\n\n", ulid.Make().String(), data); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func decodeMutationBody(ctx context.Context, w http.ResponseWriter, r *http.Request, out any) bool {
	body, err := readLimitedBody(r, maxOrderMutationBodySize)
	if err != nil {
		if errors.Is(err, errBodyTooLarge) {
			httpx.WriteError(ctx, w, httpx.NewError("payload_too_large", "request body exceeds allowed size", http.StatusRequestEntityTooLarge))
		} else {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		}
		return false
	}
	if len(body) == 0 {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "request body is required", http.StatusBadRequest))
		return false
	}
	if err := json.Unmarshal(body, out); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "invalid JSON body", http.StatusBadRequest))
		return false
	}
	return true
}

func writeOrderError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	switch {
	case errors.Is(err, services.ErrInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusUnprocessableEntity))
	case errors.Is(err, services.ErrOrderNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("order_not_found", "order not found", http.StatusNotFound))
	case errors.Is(err, services.ErrInvalidStageTransition):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_stage_transition", err.Error(), http.StatusConflict))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("order_error", "failed to process order request", http.StatusInternalServerError))
	}
}

type orderResponse struct {
	Order orderPayload `json:"order"`
}

type orderListEvent struct {
	Orders []orderPayload `json:"orders"`
}

type orderPayload struct {
	ID               string                `json:"id"`
	CreatedAt        string                `json:"createdAt"`
	Timestamp        string                `json:"timestamp"`
	Customer         customerPayload       `json:"customer"`
	SellerIDs        []string              `json:"sellerIds,omitempty"`
	Items            []orderItemPayload    `json:"items"`
	ItemsBrief       string                `json:"itemsBrief"`
	ImageURL         string                `json:"imageUrl,omitempty"`
	Total            *float64              `json:"total,omitempty"`
	Currency         string                `json:"currency"`
	Tax              *float64              `json:"tax,omitempty"`
	Discount         *float64              `json:"discount,omitempty"`
	Shipping         *float64              `json:"shipping,omitempty"`
	Fees             *float64              `json:"fees,omitempty"`
	COGS             *float64              `json:"cogs,omitempty"`
	GrossMargin      *float64              `json:"grossMargin,omitempty"`
	Summary          *orderSummaryPayload  `json:"summary,omitempty"`
	FeesBreakdown    *feesBreakdownPayload `json:"feesBreakdown,omitempty"`
	Payout           *payoutPayload        `json:"payout,omitempty"`
	Region           string                `json:"region,omitempty"`
	Package          packagePayload        `json:"package"`
	Status           string                `json:"status"`
	FulfillmentStage string                `json:"fulfillmentStage,omitempty"`
	StatusHistory    []historyEntryPayload `json:"statusHistory,omitempty"`
	TrackingNumber   string                `json:"trackingNumber,omitempty"`
	PaymentMethod    string                `json:"paymentMethod,omitempty"`
	PackedAt         string                `json:"packedAt,omitempty"`
	HandoverAt       string                `json:"handoverAt,omitempty"`
	DeliveredAt      string                `json:"deliveredAt,omitempty"`
	ReturnRequestID  string                `json:"returnRequestId,omitempty"`
}

type customerPayload struct {
	Name    string `json:"name"`
	Contact string `json:"contact,omitempty"`
}

type orderItemPayload struct {
	Name        string   `json:"name"`
	Quantity    int      `json:"quantity"`
	Price       *float64 `json:"price,omitempty"`
	ProductID   string   `json:"productId,omitempty"`
	SKU         string   `json:"sku,omitempty"`
	ImageURL    string   `json:"imageUrl,omitempty"`
	Category    string   `json:"category,omitempty"`
	Subcategory string   `json:"subcategory,omitempty"`
	CategoryID  string   `json:"categoryId,omitempty"`
	Cost        *float64 `json:"cost,omitempty"`
}

type orderSummaryPayload struct {
	Subtotal             *float64 `json:"subtotal,omitempty"`
	ShippingCost         *float64 `json:"shippingCost,omitempty"`
	TaxAmount            *float64 `json:"taxAmount,omitempty"`
	DiscountAmount       *float64 `json:"discountAmount,omitempty"`
	Total                *float64 `json:"total,omitempty"`
	TotalItems           *float64 `json:"totalItems,omitempty"`
	SellerShippingCharge *float64 `json:"sellerShippingCharge,omitempty"`
	BuyerShippingCharge  *float64 `json:"buyerShippingCharge,omitempty"`
	ShippingSplitRule    string   `json:"shippingSplitRule,omitempty"`
}

type feesBreakdownPayload struct {
	PaymentProcessingFee *float64 `json:"paymentProcessingFee,omitempty"`
	PlatformFee          *float64 `json:"platformFee,omitempty"`
	TotalSellerFees      *float64 `json:"totalSellerFees,omitempty"`
	PaymentMethod        string   `json:"paymentMethod,omitempty"`
}

type payoutPayload struct {
	NetPayoutToSeller *float64 `json:"netPayoutToSeller,omitempty"`
	CalculatedAt      string   `json:"calculatedAt,omitempty"`
}

type packagePayload struct {
	Size     string `json:"size"`
	Priority string `json:"priority"`
}

type historyEntryPayload struct {
	Status    string `json:"status"`
	Note      string `json:"note,omitempty"`
	Timestamp string `json:"timestamp"`
}

func buildOrderPayload(order domain.Order) orderPayload {
	payload := orderPayload{
		ID:        order.ID,
		CreatedAt: formatTime(order.CreatedAt),
		Timestamp: formatTime(order.Timestamp),
		Customer: customerPayload{
			Name:    order.Customer.Name,
			Contact: order.Customer.Contact,
		},
		SellerIDs:        order.SellerIDs,
		Items:            make([]orderItemPayload, 0, len(order.Items)),
		ItemsBrief:       order.ItemsBrief,
		ImageURL:         order.ImageURL,
		Total:            order.Total,
		Currency:         order.Currency,
		Tax:              order.Tax,
		Discount:         order.Discount,
		Shipping:         order.Shipping,
		Fees:             order.Fees,
		COGS:             order.COGS,
		GrossMargin:      order.GrossMargin,
		Region:           order.Region,
		Package:          packagePayload{Size: order.Package.Size, Priority: order.Package.Priority},
		Status:           string(order.Status),
		FulfillmentStage: string(order.FulfillmentStage),
		TrackingNumber:   order.TrackingNumber,
		PaymentMethod:    order.PaymentMethod,
		PackedAt:         formatTimePtr(order.PackedAt),
		HandoverAt:       formatTimePtr(order.HandoverAt),
		DeliveredAt:      formatTimePtr(order.DeliveredAt),
		ReturnRequestID:  order.ReturnRequestID,
	}

	for _, item := range order.Items {
		payload.Items = append(payload.Items, orderItemPayload{
			Name:        item.Name,
			Quantity:    item.Quantity,
			Price:       item.Price,
			ProductID:   item.ProductID,
			SKU:         item.SKU,
			ImageURL:    item.ImageURL,
			Category:    item.Category,
			Subcategory: item.Subcategory,
			CategoryID:  item.CategoryID,
			Cost:        item.Cost,
		})
	}

	if len(order.StatusHistory) > 0 {
		payload.StatusHistory = make([]historyEntryPayload, 0, len(order.StatusHistory))
		for _, entry := range order.StatusHistory {
			payload.StatusHistory = append(payload.StatusHistory, historyEntryPayload{
				Status:    entry.Status,
				Note:      entry.Note,
				Timestamp: formatTime(entry.Timestamp),
			})
		}
	}

	if order.Summary != nil {
		payload.Summary = &orderSummaryPayload{
			Subtotal:             order.Summary.Subtotal,
			ShippingCost:         order.Summary.ShippingCost,
			TaxAmount:            order.Summary.TaxAmount,
			DiscountAmount:       order.Summary.DiscountAmount,
			Total:                order.Summary.Total,
			TotalItems:           order.Summary.TotalItems,
			SellerShippingCharge: order.Summary.SellerShippingCharge,
			BuyerShippingCharge:  order.Summary.BuyerShippingCharge,
			ShippingSplitRule:    order.Summary.ShippingSplitRule,
		}
	}
	if order.FeesRaw != nil {
		payload.FeesBreakdown = &feesBreakdownPayload{
			PaymentProcessingFee: order.FeesRaw.PaymentProcessingFee,
			PlatformFee:          order.FeesRaw.PlatformFee,
			TotalSellerFees:      order.FeesRaw.TotalSellerFees,
			PaymentMethod:        order.FeesRaw.PaymentMethod,
		}
	}
	if order.Payout != nil {
		payload.Payout = &payoutPayload{
			NetPayoutToSeller: order.Payout.NetPayoutToSeller,
			CalculatedAt:      formatTimePtr(order.Payout.CalculatedAt),
		}
	}

	return payload
}
