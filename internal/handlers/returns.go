package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/tindahan/api/internal/domain"
	"github.com/tindahan/api/internal/platform/auth"
	"github.com/tindahan/api/internal/platform/httpx"
	"github.com/tindahan/api/internal/services"
)

// ReturnHandlers exposes return/refund request reads.
type ReturnHandlers struct {
	authn   *auth.Authenticator
	returns services.ReturnService
}

// NewReturnHandlers constructs a new ReturnHandlers instance.
func NewReturnHandlers(authn *auth.Authenticator, returns services.ReturnService) *ReturnHandlers {
	return &ReturnHandlers{authn: authn, returns: returns}
}

// Routes registers the /returns endpoints.
func (h *ReturnHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	if h.authn != nil {
		r.Use(h.authn.RequireAuth())
	}
	r.Get("/", h.listReturns)
	r.Get("/{returnID}", h.getReturn)
}

func (h *ReturnHandlers) getReturn(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.returns == nil {
		httpx.WriteError(ctx, w, httpx.NewError("return_service_unavailable", "return service unavailable", http.StatusServiceUnavailable))
		return
	}

	returnID := strings.TrimSpace(chi.URLParam(r, "returnID"))
	if returnID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "return id is required", http.StatusBadRequest))
		return
	}

	request := h.returns.FetchReturnRequest(ctx, returnID)
	if request == nil {
		httpx.WriteError(ctx, w, httpx.NewError("return_not_found", "return request not found", http.StatusNotFound))
		return
	}

	writeJSONResponse(w, http.StatusOK, returnResponse{Return: buildReturnPayload(*request)})
}

func (h *ReturnHandlers) listReturns(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.returns == nil {
		httpx.WriteError(ctx, w, httpx.NewError("return_service_unavailable", "return service unavailable", http.StatusServiceUnavailable))
		return
	}

	sellers := parseSellerParams(r.URL.Query()["seller"])
	if len(sellers) == 0 {
		if identity, ok := auth.IdentityFromContext(ctx); ok {
			sellers = identity.SellerIDs
		}
	}
	if len(sellers) == 0 {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "at least one seller parameter is required", http.StatusBadRequest))
		return
	}

	requests, err := h.returns.FetchReturnRequestsForSeller(ctx, sellers)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("return_error", "failed to list return requests", http.StatusInternalServerError))
		return
	}

	items := make([]returnPayload, 0, len(requests))
	for _, request := range requests {
		items = append(items, buildReturnPayload(request))
	}
	writeJSONResponse(w, http.StatusOK, returnListResponse{Items: items})
}

func parseSellerParams(values []string) []string {
	sellers := make([]string, 0, len(values))
	for _, value := range values {
		for _, part := range strings.Split(value, ",") {
			if trimmed := strings.TrimSpace(part); trimmed != "" {
				sellers = append(sellers, trimmed)
			}
		}
	}
	return sellers
}

type returnResponse struct {
	Return returnPayload `json:"return"`
}

type returnListResponse struct {
	Items []returnPayload `json:"items"`
}

type returnPayload struct {
	ID             string   `json:"id"`
	OrderID        string   `json:"orderId"`
	Reason         string   `json:"reason,omitempty"`
	CustomReason   string   `json:"customReason,omitempty"`
	Status         string   `json:"status"`
	RequestedAt    string   `json:"requestedAt,omitempty"`
	ResolvedAt     string   `json:"resolvedAt,omitempty"`
	RefundAmount   *float64 `json:"refundAmount,omitempty"`
	EvidenceImages []string `json:"evidenceImages,omitempty"`
}

func buildReturnPayload(request domain.ReturnRequest) returnPayload {
	return returnPayload{
		ID:             request.ID,
		OrderID:        request.OrderID,
		Reason:         request.Reason,
		CustomReason:   request.CustomReason,
		Status:         request.Status,
		RequestedAt:    formatTimePtr(request.RequestedAt),
		ResolvedAt:     formatTimePtr(request.ResolvedAt),
		RefundAmount:   request.RefundAmount,
		EvidenceImages: request.EvidenceImages,
	}
}
