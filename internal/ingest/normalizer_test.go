package ingest

import (
	"reflect"
	"testing"
	"time"

	"github.com/tindahan/api/internal/domain"
)

func floatPtr(v float64) *float64 { return &v }

func rawDoc(data domain.RawOrder) domain.RawOrderDocument {
	return domain.RawOrderDocument{Collection: "orders", ID: "ord-1", Data: data}
}

func TestNormalizeFullDocument(t *testing.T) {
	doc := rawDoc(domain.RawOrder{
		SellerIDs: []string{"seller-1", " seller-1 ", "seller-2", ""},
		Status:    "to_ship",
		ShippingInfo: domain.RawShippingInfo{
			FullName:       "Maria Santos",
			PhoneNumber:    "09171234567",
			Barangay:       "POBLACION",
			Municipality:   "santa rosa",
			TrackingNumber: " TRK-001 ",
		},
		PaymentInfo: domain.RawPaymentInfo{Method: "gcash"},
		Items: []domain.RawItem{
			{ProductName: "Banana Chips", Quantity: int64(3), Price: float64(50), ProductID: "prod-1", Cost: float64(30)},
			{Name: "Dried Mangoes", Quantity: "2", Price: "120.00", ProductID2: "prod-2", Cost: "80"},
		},
		Summary: domain.RawSummary{
			Total:     "1,390.00",
			TaxAmount: float64(10),
		},
		CreatedAt: "2024-06-01T08:30:00Z",
	})

	order := Normalize(doc)

	if order.ID != "ord-1" {
		t.Fatalf("ID = %q", order.ID)
	}
	if got, want := order.SellerIDs, []string{"seller-1", "seller-2"}; len(got) != 2 || got[0] != want[0] || got[1] != want[1] {
		t.Fatalf("SellerIDs = %v, want %v", got, want)
	}
	if order.Customer.Name != "Maria Santos" || order.Customer.Contact != "09171234567" {
		t.Fatalf("Customer = %+v", order.Customer)
	}
	if order.ItemsBrief != "Banana Chips x 3 + 1 more" {
		t.Fatalf("ItemsBrief = %q", order.ItemsBrief)
	}
	if order.Region != "Poblacion, Santa Rosa" {
		t.Fatalf("Region = %q", order.Region)
	}
	if order.Currency != "PHP" {
		t.Fatalf("Currency = %q, want default PHP", order.Currency)
	}
	if order.Status != domain.OrderStatusToShip {
		t.Fatalf("Status = %q", order.Status)
	}
	if order.FulfillmentStage != domain.StageToPack {
		t.Fatalf("FulfillmentStage = %q, want implicit to-pack", order.FulfillmentStage)
	}
	if order.TrackingNumber != "TRK-001" {
		t.Fatalf("TrackingNumber = %q", order.TrackingNumber)
	}
	if order.PaymentMethod != "gcash" {
		t.Fatalf("PaymentMethod = %q", order.PaymentMethod)
	}

	wantCreated := time.Date(2024, 6, 1, 8, 30, 0, 0, time.UTC)
	if !order.CreatedAt.Equal(wantCreated) {
		t.Fatalf("CreatedAt = %v", order.CreatedAt)
	}
	if !order.Timestamp.Equal(wantCreated.Truncate(24 * time.Hour)) {
		t.Fatalf("Timestamp = %v, want calendar date of CreatedAt", order.Timestamp)
	}

	if order.Total == nil || *order.Total != 1390 {
		t.Fatalf("Total = %v, want 1390", order.Total)
	}
	if order.Tax == nil || *order.Tax != 10 {
		t.Fatalf("Tax = %v", order.Tax)
	}

	// COGS = 3*30 + 2*80 = 250; margin = 1390 - 250.
	if order.COGS == nil || *order.COGS != 250 {
		t.Fatalf("COGS = %v, want 250", order.COGS)
	}
	if order.GrossMargin == nil || *order.GrossMargin != 1140 {
		t.Fatalf("GrossMargin = %v, want 1140", order.GrossMargin)
	}
}

func TestNormalizeIsDeterministic(t *testing.T) {
	doc := rawDoc(domain.RawOrder{
		SellerID:  "seller-1",
		Status:    "delivered",
		Items:     []domain.RawItem{{Name: "Abaca Bag", Quantity: int64(1), Cost: float64(200)}},
		Total:     float64(450),
		CreatedAt: float64(1717230600),
	})

	first := Normalize(doc)
	second := Normalize(doc)

	if first.Status != second.Status || first.ItemsBrief != second.ItemsBrief ||
		!first.CreatedAt.Equal(second.CreatedAt) || *first.GrossMargin != *second.GrossMargin {
		t.Fatalf("normalization is not deterministic: %+v vs %+v", first, second)
	}
}

func TestNormalizePlaceholders(t *testing.T) {
	order := Normalize(rawDoc(domain.RawOrder{}))

	if order.Customer.Name != "Unknown Customer" {
		t.Fatalf("Customer.Name = %q", order.Customer.Name)
	}
	if order.Customer.Contact != "N/A" {
		t.Fatalf("Customer.Contact = %q", order.Customer.Contact)
	}
	if order.Package.Size != "normal" || order.Package.Priority != "normal" {
		t.Fatalf("Package = %+v", order.Package)
	}
	if order.Status != domain.OrderStatusPending {
		t.Fatalf("Status = %q, want pending default", order.Status)
	}
	if order.ItemsBrief != "" {
		t.Fatalf("ItemsBrief = %q, want empty for no items", order.ItemsBrief)
	}
	if order.Total != nil || order.COGS != nil || order.GrossMargin != nil {
		t.Fatal("monetary fields should stay nil when unknown")
	}
}

func TestNormalizeSingleItemBrief(t *testing.T) {
	order := Normalize(rawDoc(domain.RawOrder{
		Items: []domain.RawItem{{ProductName: "Ube Jam", Quantity: float64(2)}},
	}))
	if order.ItemsBrief != "Ube Jam x 2" {
		t.Fatalf("ItemsBrief = %q", order.ItemsBrief)
	}
}

func TestNormalizeRegionVariants(t *testing.T) {
	cases := []struct {
		name string
		info domain.RawShippingInfo
		want string
	}{
		{name: "both parts", info: domain.RawShippingInfo{Barangay: "San Isidro", Municipality: "Antipolo"}, want: "San Isidro, Antipolo"},
		{name: "legacy field names", info: domain.RawShippingInfo{Brgy: "bagong silang", City: "CALOOCAN"}, want: "Bagong Silang, Caloocan"},
		{name: "municipality only", info: domain.RawShippingInfo{Town: "Vigan"}, want: "Vigan"},
		{name: "barangay only", info: domain.RawShippingInfo{Barangay: "Poblacion"}, want: "Poblacion"},
		{name: "nothing known", info: domain.RawShippingInfo{}, want: ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			order := Normalize(rawDoc(domain.RawOrder{ShippingInfo: tc.info}))
			if order.Region != tc.want {
				t.Fatalf("Region = %q, want %q", order.Region, tc.want)
			}
		})
	}
}

func TestNormalizeStagePreservedOutsideToShip(t *testing.T) {
	order := Normalize(rawDoc(domain.RawOrder{
		Status:           "delivered",
		FulfillmentStage: "to-arrangement",
	}))
	if order.FulfillmentStage != "" {
		t.Fatalf("FulfillmentStage = %q, want empty outside to_ship", order.FulfillmentStage)
	}

	order = Normalize(rawDoc(domain.RawOrder{
		Status:           "to_ship",
		FulfillmentStage: "to-arrangement",
	}))
	if order.FulfillmentStage != domain.StageToArrangement {
		t.Fatalf("FulfillmentStage = %q, want recorded stage", order.FulfillmentStage)
	}
}

func TestNormalizeLifecycleInstants(t *testing.T) {
	packed := time.Date(2024, 6, 2, 9, 0, 0, 0, time.UTC)
	handover := time.Date(2024, 6, 3, 10, 0, 0, 0, time.UTC)
	delivered := time.Date(2024, 6, 5, 14, 0, 0, 0, time.UTC)

	order := Normalize(rawDoc(domain.RawOrder{
		ShippingInfo: domain.RawShippingInfo{PackedAt: packed},
		StatusTimestamps: map[string]any{
			"handed_over": handover.Format(time.RFC3339),
		},
		StatusHistory: []any{
			map[string]any{"status": "delivered", "timestamp": delivered.Format(time.RFC3339)},
		},
	}))

	if order.PackedAt == nil || !order.PackedAt.Equal(packed) {
		t.Fatalf("PackedAt = %v, want explicit field", order.PackedAt)
	}
	if order.HandoverAt == nil || !order.HandoverAt.Equal(handover) {
		t.Fatalf("HandoverAt = %v, want statusTimestamps entry", order.HandoverAt)
	}
	if order.DeliveredAt == nil || !order.DeliveredAt.Equal(delivered) {
		t.Fatalf("DeliveredAt = %v, want history entry", order.DeliveredAt)
	}
}

func TestHistoryEntries(t *testing.T) {
	at := time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)
	entries := HistoryEntries([]any{
		map[string]any{"status": "pending", "timestamp": at.Format(time.RFC3339)},
		map[string]any{"note": " packed by staff "},
		map[string]any{"status": "", "note": ""},
		"garbage",
	})

	if len(entries) != 2 {
		t.Fatalf("len(entries) = %d, want 2", len(entries))
	}
	if entries[0].Status != "pending" || !entries[0].Timestamp.Equal(at) {
		t.Fatalf("entries[0] = %+v", entries[0])
	}
	if entries[1].Note != "packed by staff" {
		t.Fatalf("entries[1].Note = %q", entries[1].Note)
	}

	if got := HistoryEntries(map[string]any{"pending": "x"}); got != nil {
		t.Fatalf("non-list history = %v, want nil", got)
	}
}

func TestRawHistory(t *testing.T) {
	t.Run("list returned verbatim", func(t *testing.T) {
		history := []any{
			map[string]any{"status": "pending"},
			map[string]any{"migratedFrom": "v1"},
			"garbage",
		}
		got := RawHistory(history)
		if !reflect.DeepEqual(got, history) {
			t.Fatalf("RawHistory = %#v, want untyped entries preserved", got)
		}
	})

	t.Run("label map converted to sorted records", func(t *testing.T) {
		got := RawHistory(map[string]any{
			"shipped": "2024-06-02T10:00:00Z",
			"pending": "2024-06-01T08:00:00Z",
		})
		want := []any{
			map[string]any{"status": "pending", "timestamp": "2024-06-01T08:00:00Z"},
			map[string]any{"status": "shipped", "timestamp": "2024-06-02T10:00:00Z"},
		}
		if !reflect.DeepEqual(got, want) {
			t.Fatalf("RawHistory = %#v", got)
		}
	})

	t.Run("other shapes yield nil", func(t *testing.T) {
		if got := RawHistory("pending"); got != nil {
			t.Fatalf("RawHistory = %#v, want nil", got)
		}
		if got := RawHistory(nil); got != nil {
			t.Fatalf("RawHistory(nil) = %#v, want nil", got)
		}
	})
}

func TestRecomputeMargins(t *testing.T) {
	t.Run("missing cost clears both", func(t *testing.T) {
		order := domain.Order{
			Total: floatPtr(500),
			Items: []domain.OrderItem{
				{Quantity: 1, Cost: floatPtr(100)},
				{Quantity: 2},
			},
		}
		RecomputeMargins(&order)
		if order.COGS != nil || order.GrossMargin != nil {
			t.Fatalf("COGS = %v, GrossMargin = %v, want nil", order.COGS, order.GrossMargin)
		}
	})

	t.Run("unknown total keeps cogs only", func(t *testing.T) {
		order := domain.Order{
			Items: []domain.OrderItem{{Quantity: 2, Cost: floatPtr(50)}},
		}
		RecomputeMargins(&order)
		if order.COGS == nil || *order.COGS != 100 {
			t.Fatalf("COGS = %v, want 100", order.COGS)
		}
		if order.GrossMargin != nil {
			t.Fatalf("GrossMargin = %v, want nil without total", order.GrossMargin)
		}
	})

	t.Run("non-positive quantity counts once", func(t *testing.T) {
		order := domain.Order{
			Total: floatPtr(200),
			Items: []domain.OrderItem{{Quantity: 0, Cost: floatPtr(60)}},
		}
		RecomputeMargins(&order)
		if order.COGS == nil || *order.COGS != 60 {
			t.Fatalf("COGS = %v, want 60", order.COGS)
		}
		if order.GrossMargin == nil || *order.GrossMargin != 140 {
			t.Fatalf("GrossMargin = %v, want 140", order.GrossMargin)
		}
	})
}

func TestNormalizeNestedBlocks(t *testing.T) {
	calculatedAt := time.Date(2024, 6, 7, 0, 0, 0, 0, time.UTC)
	order := Normalize(rawDoc(domain.RawOrder{
		Summary: domain.RawSummary{
			Subtotal:          float64(900),
			ShippingSplitRule: "seller_pays",
		},
		Fees: domain.RawFees{
			PlatformFee:   "45.50",
			PaymentMethod: "gcash",
		},
		Payout: domain.RawPayout{
			NetPayoutToSeller: float64(854.50),
			CalculatedAt:      calculatedAt.Format(time.RFC3339),
		},
	}))

	if order.Summary == nil || order.Summary.Subtotal == nil || *order.Summary.Subtotal != 900 {
		t.Fatalf("Summary = %+v", order.Summary)
	}
	if order.Summary.ShippingSplitRule != "seller_pays" {
		t.Fatalf("ShippingSplitRule = %q", order.Summary.ShippingSplitRule)
	}
	if order.FeesRaw == nil || order.FeesRaw.PlatformFee == nil || *order.FeesRaw.PlatformFee != 45.5 {
		t.Fatalf("FeesRaw = %+v", order.FeesRaw)
	}
	if order.Payout == nil || order.Payout.CalculatedAt == nil || !order.Payout.CalculatedAt.Equal(calculatedAt) {
		t.Fatalf("Payout = %+v", order.Payout)
	}

	empty := Normalize(rawDoc(domain.RawOrder{}))
	if empty.Summary != nil || empty.FeesRaw != nil || empty.Payout != nil {
		t.Fatal("nested blocks should stay nil when the document carries none")
	}
}
