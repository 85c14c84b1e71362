package ingest

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/tindahan/api/internal/domain"
)

const (
	placeholderCustomerName    = "Unknown Customer"
	placeholderCustomerContact = "N/A"
	defaultCurrency            = "PHP"
	defaultPackageSize         = "normal"
	defaultPackagePriority     = "normal"
)

var packedLabels = []string{"packed", "to-arrangement", "to_arrangement"}

var handoverLabels = []string{"handed_over", "handover", "to-hand-over", "to_hand_over", "dispatched"}

var deliveredLabels = []string{"delivered", "completed"}

// Normalize maps one raw order document into the canonical Order entity.
// It is pure and deterministic: normalizing the same document twice yields
// structurally equal Orders. Enrichment that needs I/O lives in Enricher.
func Normalize(doc domain.RawOrderDocument) domain.Order {
	raw := doc.Data

	order := domain.Order{
		ID:        doc.ID,
		SellerIDs: normalizeSellers(raw),
		Customer: domain.Customer{
			Name:    firstNonEmpty(raw.ShippingInfo.FullName, raw.CustomerName, raw.BuyerName, placeholderCustomerName),
			Contact: firstNonEmpty(raw.ShippingInfo.PhoneNumber, raw.ContactNumber, raw.Email, placeholderCustomerContact),
		},
		Items:    normalizeItems(raw.Items),
		Currency: firstNonEmpty(raw.Currency, raw.PaymentInfo.Currency, defaultCurrency),
		Region:   formatRegion(raw.ShippingInfo),
		Package: domain.PackageInfo{
			Size:     firstNonEmpty(raw.Package.Size, defaultPackageSize),
			Priority: firstNonEmpty(raw.Package.Priority, defaultPackagePriority),
		},
		Status:          ResolveStatus(raw.ShippingInfo.Status, raw.PaymentInfo.Status, raw.Status),
		StatusHistory:   HistoryEntries(raw.StatusHistory),
		TrackingNumber:  strings.TrimSpace(raw.ShippingInfo.TrackingNumber),
		PaymentMethod:   firstNonEmpty(raw.PaymentInfo.Method, raw.PaymentInfo.Type, raw.PaymentInfo.Channel, raw.Fees.PaymentMethod),
		ReturnRequestID: strings.TrimSpace(raw.ReturnRequestID),
	}

	order.ItemsBrief = buildItemsBrief(order.Items)
	if len(order.Items) > 0 {
		order.ImageURL = order.Items[0].ImageURL
	}

	if createdAt, ok := ResolveTime(raw.CreatedAt, raw.OrderDate, raw.PlacedAt, raw.PaymentInfo.PaidAt); ok {
		order.CreatedAt = createdAt
		order.Timestamp = createdAt.Truncate(24 * time.Hour)
	}

	order.FulfillmentStage = normalizeStage(order.Status, raw.FulfillmentStage)

	order.Total = resolveAmount(raw.Summary.Total, raw.Total, raw.PaymentInfo.Amount)
	order.Tax = coerceFloatPtr(raw.Summary.TaxAmount)
	order.Discount = coerceFloatPtr(raw.Summary.DiscountAmount)
	order.Shipping = coerceFloatPtr(raw.Summary.ShippingCost)
	order.Fees = coerceFloatPtr(raw.Fees.TotalSellerFees)

	order.Summary = normalizeSummary(raw.Summary)
	order.FeesRaw = normalizeFees(raw.Fees)
	order.Payout = normalizePayout(raw.Payout)

	order.PackedAt = resolveLifecycleInstant(raw, packedLabels, raw.ShippingInfo.PackedAt)
	order.HandoverAt = resolveLifecycleInstant(raw, handoverLabels, raw.ShippingInfo.HandoverAt, raw.ShippingInfo.DispatchedAt)
	order.DeliveredAt = resolveLifecycleInstant(raw, deliveredLabels, raw.ShippingInfo.DeliveredAt)

	RecomputeMargins(&order)

	return order
}

// RecomputeMargins derives COGS from line item costs and the gross margin
// from total minus COGS. Both stay nil unless every input is known; the
// enricher calls this again after cost hydration.
func RecomputeMargins(order *domain.Order) {
	if order == nil || len(order.Items) == 0 {
		return
	}

	var cogs float64
	for _, item := range order.Items {
		if item.Cost == nil {
			order.COGS = nil
			order.GrossMargin = nil
			return
		}
		quantity := item.Quantity
		if quantity <= 0 {
			quantity = 1
		}
		cogs += *item.Cost * float64(quantity)
	}

	order.COGS = &cogs
	if order.Total != nil {
		margin := *order.Total - cogs
		order.GrossMargin = &margin
	} else {
		order.GrossMargin = nil
	}
}

func normalizeSellers(raw domain.RawOrder) []string {
	if len(raw.SellerIDs) > 0 {
		sellers := make([]string, 0, len(raw.SellerIDs))
		seen := make(map[string]bool, len(raw.SellerIDs))
		for _, seller := range raw.SellerIDs {
			trimmed := strings.TrimSpace(seller)
			if trimmed == "" || seen[trimmed] {
				continue
			}
			seen[trimmed] = true
			sellers = append(sellers, trimmed)
		}
		return sellers
	}
	if trimmed := strings.TrimSpace(raw.SellerID); trimmed != "" {
		return []string{trimmed}
	}
	return nil
}

func normalizeItems(items []domain.RawItem) []domain.OrderItem {
	if len(items) == 0 {
		return nil
	}
	normalized := make([]domain.OrderItem, 0, len(items))
	for _, item := range items {
		normalized = append(normalized, domain.OrderItem{
			Name:       firstNonEmpty(item.ProductName, item.Name),
			Quantity:   coerceInt(item.Quantity),
			Price:      coerceFloatPtr(item.Price),
			ProductID:  firstNonEmpty(item.ProductID, item.ProductID2),
			SKU:        firstNonEmpty(item.SKU, item.SKU2),
			ImageURL:   firstNonEmpty(item.ImageURL, item.ImageURL2),
			Category:   strings.TrimSpace(item.Category),
			CategoryID: strings.TrimSpace(item.CategoryID),
			Cost:       coerceFloatPtr(item.Cost),
		})
	}
	return normalized
}

func buildItemsBrief(items []domain.OrderItem) string {
	if len(items) == 0 {
		return ""
	}
	first := items[0]
	brief := fmt.Sprintf("%s x %d", first.Name, first.Quantity)
	if rest := len(items) - 1; rest > 0 {
		brief = fmt.Sprintf("%s + %d more", brief, rest)
	}
	return brief
}

func formatRegion(info domain.RawShippingInfo) string {
	barangay := firstNonEmpty(info.Barangay, info.Brgy)
	municipality := firstNonEmpty(info.Municipality, info.City, info.Town)

	parts := make([]string, 0, 2)
	if barangay != "" {
		parts = append(parts, barangay)
	}
	if municipality != "" {
		parts = append(parts, municipality)
	}
	if len(parts) == 0 {
		return ""
	}

	title := cases.Title(language.English)
	return title.String(strings.ToLower(strings.Join(parts, ", ")))
}

func normalizeStage(status domain.OrderStatus, rawStage string) domain.FulfillmentStage {
	if status != domain.OrderStatusToShip {
		return ""
	}
	switch stage := domain.FulfillmentStage(strings.TrimSpace(rawStage)); stage {
	case domain.StageToPack, domain.StageToArrangement, domain.StageToHandOver:
		return stage
	default:
		// Entering to_ship without a recorded stage starts at packing.
		return domain.StageToPack
	}
}

// HistoryEntries converts a free-form raw statusHistory value into typed
// entries, dropping records that carry neither a status nor a note.
func HistoryEntries(history any) []domain.StatusHistoryEntry {
	entries, ok := history.([]any)
	if !ok {
		return nil
	}
	normalized := make([]domain.StatusHistoryEntry, 0, len(entries))
	for _, raw := range entries {
		entry, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		status, _ := entry["status"].(string)
		note, _ := entry["note"].(string)
		record := domain.StatusHistoryEntry{
			Status: strings.TrimSpace(status),
			Note:   strings.TrimSpace(note),
		}
		if ts, ok := ResolveTime(entry["timestamp"], entry["at"], entry["time"]); ok {
			record.Timestamp = ts
		}
		if record.Status == "" && record.Note == "" {
			continue
		}
		normalized = append(normalized, record)
	}
	if len(normalized) == 0 {
		return nil
	}
	return normalized
}

// RawHistory returns the statusHistory value as a list suitable for
// write-back. List-shaped histories come back verbatim, including records the
// normalizer cannot type; label-keyed maps from the oldest documents are
// converted to entry records (sorted by label) so nothing is lost when a
// mutation rewrites the array.
func RawHistory(history any) []any {
	switch entries := history.(type) {
	case []any:
		return entries
	case map[string]any:
		labels := make([]string, 0, len(entries))
		for label := range entries {
			labels = append(labels, label)
		}
		sort.Strings(labels)
		converted := make([]any, 0, len(labels))
		for _, label := range labels {
			converted = append(converted, map[string]any{"status": label, "timestamp": entries[label]})
		}
		return converted
	default:
		return nil
	}
}

func normalizeSummary(raw domain.RawSummary) *domain.OrderSummary {
	summary := domain.OrderSummary{
		Subtotal:             coerceFloatPtr(raw.Subtotal),
		ShippingCost:         coerceFloatPtr(raw.ShippingCost),
		TaxAmount:            coerceFloatPtr(raw.TaxAmount),
		DiscountAmount:       coerceFloatPtr(raw.DiscountAmount),
		Total:                coerceFloatPtr(raw.Total),
		TotalItems:           coerceFloatPtr(raw.TotalItems),
		SellerShippingCharge: coerceFloatPtr(raw.SellerShippingCharge),
		BuyerShippingCharge:  coerceFloatPtr(raw.BuyerShippingCharge),
		ShippingSplitRule:    strings.TrimSpace(raw.ShippingSplitRule),
	}
	if summary == (domain.OrderSummary{}) {
		return nil
	}
	return &summary
}

func normalizeFees(raw domain.RawFees) *domain.FeesBreakdown {
	fees := domain.FeesBreakdown{
		PaymentProcessingFee: coerceFloatPtr(raw.PaymentProcessingFee),
		PlatformFee:          coerceFloatPtr(raw.PlatformFee),
		TotalSellerFees:      coerceFloatPtr(raw.TotalSellerFees),
		PaymentMethod:        strings.TrimSpace(raw.PaymentMethod),
	}
	if fees == (domain.FeesBreakdown{}) {
		return nil
	}
	return &fees
}

func normalizePayout(raw domain.RawPayout) *domain.PayoutInfo {
	payout := domain.PayoutInfo{
		NetPayoutToSeller: coerceFloatPtr(raw.NetPayoutToSeller),
		CalculatedAt:      ResolveTimePtr(raw.CalculatedAt),
	}
	if payout == (domain.PayoutInfo{}) {
		return nil
	}
	return &payout
}

func resolveAmount(candidates ...any) *float64 {
	for _, candidate := range candidates {
		if amount, ok := coerceFloat(candidate); ok {
			return &amount
		}
	}
	return nil
}

func resolveLifecycleInstant(raw domain.RawOrder, labels []string, explicit ...any) *time.Time {
	if ts, ok := ResolveTime(explicit...); ok {
		return &ts
	}
	if ts, ok := ExtractFromHistory(raw.StatusTimestamps, labels...); ok {
		return &ts
	}
	if ts, ok := ExtractFromHistory(raw.StatusHistory, labels...); ok {
		return &ts
	}
	return nil
}
