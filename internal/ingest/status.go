package ingest

import (
	"strings"

	"github.com/tindahan/api/internal/domain"
)

// Status reconciliation. Checkout writers disagree on where the lifecycle
// state lives (shippingInfo.status, paymentInfo.status, top-level status) and
// on vocabulary. ResolveStatus applies a fixed priority over the three fields
// and returns exactly one canonical status. Branch order matters: the
// vocabularies overlap, and later branches must not shadow earlier ones.

var returnStatuses = map[string]domain.OrderStatus{
	"return_requested": domain.OrderStatusReturnRequested,
	"return_approved":  domain.OrderStatusReturnApproved,
	"return_rejected":  domain.OrderStatusReturnRejected,
	"returned":         domain.OrderStatusReturned,
	"refunded":         domain.OrderStatusRefunded,
	"return_refund":    domain.OrderStatusReturnRefund,
}

var deliveredSynonyms = stringSet("delivered", "completed", "complete", "received", "order_received")

var failedDeliverySynonyms = stringSet("failed-delivery", "failed_delivery", "delivery_failed", "failed")

var shippingSynonyms = stringSet("shipping", "shipped", "in_transit", "in-transit", "dispatched", "out_for_delivery")

var shipReadySynonyms = stringSet("to_ship", "to-ship", "ready_to_ship", "ready-to-ship", "packed", "for_pickup")

var paymentSuccessSynonyms = stringSet("paid", "success", "succeeded", "captured", "settled")

var cancelledSynonyms = stringSet("cancelled", "canceled", "cancel", "voided")

var paymentFailedSynonyms = stringSet("failed", "refused", "declined", "error")

var pendingSynonyms = stringSet("pending", "unpaid", "awaiting_payment", "cod_pending", "unconfirmed")

// ResolveStatus reduces the raw status-like fields to one canonical status.
// It is total: unrecognized combinations fall through to pending.
func ResolveStatus(shippingStatus, paymentStatus, topStatus string) domain.OrderStatus {
	shipping := foldStatus(shippingStatus)
	payment := foldStatus(paymentStatus)
	top := foldStatus(topStatus)

	// Return/refund states override everything else.
	if status, ok := returnStatuses[top]; ok {
		return status
	}
	if status, ok := returnStatuses[shipping]; ok {
		return status
	}

	if deliveredSynonyms[shipping] || deliveredSynonyms[top] {
		return domain.OrderStatusCompleted
	}

	if failedDeliverySynonyms[shipping] || failedDeliverySynonyms[top] {
		return domain.OrderStatusFailedDelivery
	}

	if shippingSynonyms[shipping] || shippingSynonyms[top] || top == "processing" {
		return domain.OrderStatusShipping
	}

	// Confirmed is checked before the ship-ready branch: a confirmed order
	// has not necessarily been packed yet.
	if top == "confirmed" {
		return domain.OrderStatusConfirmed
	}

	if shipReadySynonyms[shipping] || shipReadySynonyms[top] || paymentSuccessSynonyms[payment] {
		return domain.OrderStatusToShip
	}

	if cancelledSynonyms[shipping] || cancelledSynonyms[top] || paymentFailedSynonyms[payment] {
		return domain.OrderStatusCancelled
	}

	if pendingSynonyms[payment] || pendingSynonyms[top] {
		return domain.OrderStatusPending
	}

	return domain.OrderStatusPending
}

func foldStatus(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}

func stringSet(values ...string) map[string]bool {
	set := make(map[string]bool, len(values))
	for _, value := range values {
		set[value] = true
	}
	return set
}
