package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tindahan/api/internal/domain"
)

type stubReturnService struct {
	fetchFn     func(ctx context.Context, returnID string) *domain.ReturnRequest
	forSellerFn func(ctx context.Context, sellerIDs []string) ([]domain.ReturnRequest, error)
}

func (s *stubReturnService) FetchReturnRequest(ctx context.Context, returnID string) *domain.ReturnRequest {
	if s.fetchFn != nil {
		return s.fetchFn(ctx, returnID)
	}
	return nil
}

func (s *stubReturnService) FetchReturnRequestsForSeller(ctx context.Context, sellerIDs []string) ([]domain.ReturnRequest, error) {
	if s.forSellerFn != nil {
		return s.forSellerFn(ctx, sellerIDs)
	}
	return nil, errors.New("not implemented")
}

func newReturnRouter(returns *stubReturnService) http.Handler {
	handlers := NewReturnHandlers(nil, returns)
	router := chi.NewRouter()
	router.Route("/returns", handlers.Routes)
	return router
}

func TestGetReturnSuccess(t *testing.T) {
	requestedAt := time.Date(2024, 6, 3, 10, 0, 0, 0, time.UTC)
	refund := 250.0
	returns := &stubReturnService{
		fetchFn: func(_ context.Context, returnID string) *domain.ReturnRequest {
			return &domain.ReturnRequest{
				ID:           returnID,
				OrderID:      "ord-1",
				Reason:       "damaged on arrival",
				Status:       "pending",
				RequestedAt:  &requestedAt,
				RefundAmount: &refund,
			}
		},
	}
	router := newReturnRouter(returns)

	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/returns/ret-1", nil))

	if recorder.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", recorder.Code, recorder.Body.String())
	}

	var payload struct {
		Return struct {
			ID           string   `json:"id"`
			OrderID      string   `json:"orderId"`
			Reason       string   `json:"reason"`
			RequestedAt  string   `json:"requestedAt"`
			RefundAmount *float64 `json:"refundAmount"`
		} `json:"return"`
	}
	if err := json.Unmarshal(recorder.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payload.Return.ID != "ret-1" || payload.Return.OrderID != "ord-1" {
		t.Fatalf("payload = %+v", payload.Return)
	}
	if payload.Return.RequestedAt != "2024-06-03T10:00:00Z" {
		t.Fatalf("requestedAt = %q", payload.Return.RequestedAt)
	}
	if payload.Return.RefundAmount == nil || *payload.Return.RefundAmount != refund {
		t.Fatalf("refundAmount = %v", payload.Return.RefundAmount)
	}
}

func TestGetReturnNotFound(t *testing.T) {
	returns := &stubReturnService{
		fetchFn: func(context.Context, string) *domain.ReturnRequest {
			return nil
		},
	}
	router := newReturnRouter(returns)

	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/returns/ret-404", nil))

	if recorder.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", recorder.Code)
	}
	if !strings.Contains(recorder.Body.String(), "return_not_found") {
		t.Fatalf("body = %s", recorder.Body.String())
	}
}

func TestListReturnsForwardsSellerParams(t *testing.T) {
	var gotSellers []string
	returns := &stubReturnService{
		forSellerFn: func(_ context.Context, sellerIDs []string) ([]domain.ReturnRequest, error) {
			gotSellers = sellerIDs
			return []domain.ReturnRequest{{ID: "ret-1", OrderID: "ord-1", Status: "pending"}}, nil
		},
	}
	router := newReturnRouter(returns)

	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/returns/?seller=seller-1,seller-2&seller=seller-3", nil))

	if recorder.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", recorder.Code, recorder.Body.String())
	}
	want := []string{"seller-1", "seller-2", "seller-3"}
	if len(gotSellers) != len(want) {
		t.Fatalf("sellers = %v, want %v", gotSellers, want)
	}
	for i := range want {
		if gotSellers[i] != want[i] {
			t.Fatalf("sellers = %v, want %v", gotSellers, want)
		}
	}

	var payload struct {
		Items []struct {
			ID string `json:"id"`
		} `json:"items"`
	}
	if err := json.Unmarshal(recorder.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(payload.Items) != 1 || payload.Items[0].ID != "ret-1" {
		t.Fatalf("items = %+v", payload.Items)
	}
}

func TestListReturnsRequiresSeller(t *testing.T) {
	router := newReturnRouter(&stubReturnService{})

	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/returns/", nil))

	if recorder.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", recorder.Code)
	}
}

func TestListReturnsServiceFailure(t *testing.T) {
	returns := &stubReturnService{
		forSellerFn: func(context.Context, []string) ([]domain.ReturnRequest, error) {
			return nil, errors.New("store unavailable")
		},
	}
	router := newReturnRouter(returns)

	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/returns/?seller=seller-1", nil))

	if recorder.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", recorder.Code)
	}
}

func TestParseSellerParams(t *testing.T) {
	got := parseSellerParams([]string{" seller-1 , seller-2", "", "seller-3,,"})
	want := []string{"seller-1", "seller-2", "seller-3"}
	if len(got) != len(want) {
		t.Fatalf("parseSellerParams = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("parseSellerParams = %v, want %v", got, want)
		}
	}
}
