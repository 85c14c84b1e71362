package firestore

import (
	"context"
	"errors"
	"strings"
	"time"

	domain "github.com/tindahan/api/internal/domain"
	pfirestore "github.com/tindahan/api/internal/platform/firestore"
)

const returnRequestsCollection = "returnRequests"

// returnRequestDocument mirrors the persisted return/refund sub-entity.
// Returns are written by the current pipeline only, so timestamps decode as
// native store timestamps.
type returnRequestDocument struct {
	OrderID        string     `firestore:"orderId"`
	Reason         string     `firestore:"reason"`
	CustomReason   string     `firestore:"customReason"`
	Status         string     `firestore:"status"`
	RequestedAt    *time.Time `firestore:"requestedAt"`
	ResolvedAt     *time.Time `firestore:"resolvedAt"`
	RefundAmount   *float64   `firestore:"refundAmount"`
	EvidenceImages []string   `firestore:"evidenceImages"`
}

// ReturnRequestRepository loads return/refund documents.
type ReturnRequestRepository struct {
	returns *pfirestore.Collection[returnRequestDocument]
}

// NewReturnRequestRepository constructs a Firestore-backed return repository.
func NewReturnRequestRepository(provider *pfirestore.Provider) (*ReturnRequestRepository, error) {
	if provider == nil {
		return nil, errors.New("return repository: firestore provider is required")
	}
	return &ReturnRequestRepository{
		returns: pfirestore.NewCollection[returnRequestDocument](provider, returnRequestsCollection),
	}, nil
}

// FindByID fetches a single return request.
func (r *ReturnRequestRepository) FindByID(ctx context.Context, returnID string) (domain.ReturnRequest, error) {
	if r == nil || r.returns == nil {
		return domain.ReturnRequest{}, errors.New("return repository not initialised")
	}
	returnID = strings.TrimSpace(returnID)
	if returnID == "" {
		return domain.ReturnRequest{}, errors.New("return repository: return id is required")
	}

	doc, err := r.returns.Get(ctx, returnID)
	if err != nil {
		return domain.ReturnRequest{}, err
	}
	return decodeReturnRequest(doc.ID, doc.Data), nil
}

// ListAll returns every return-request document. The caller filters by
// seller; no index supports that predicate directly.
func (r *ReturnRequestRepository) ListAll(ctx context.Context) ([]domain.ReturnRequest, error) {
	if r == nil || r.returns == nil {
		return nil, errors.New("return repository not initialised")
	}

	docs, err := r.returns.Query(ctx, nil)
	if err != nil {
		return nil, err
	}

	requests := make([]domain.ReturnRequest, 0, len(docs))
	for _, doc := range docs {
		requests = append(requests, decodeReturnRequest(doc.ID, doc.Data))
	}
	return requests, nil
}

func decodeReturnRequest(id string, doc returnRequestDocument) domain.ReturnRequest {
	return domain.ReturnRequest{
		ID:             id,
		OrderID:        strings.TrimSpace(doc.OrderID),
		Reason:         doc.Reason,
		CustomReason:   doc.CustomReason,
		Status:         strings.TrimSpace(doc.Status),
		RequestedAt:    doc.RequestedAt,
		ResolvedAt:     doc.ResolvedAt,
		RefundAmount:   doc.RefundAmount,
		EvidenceImages: doc.EvidenceImages,
	}
}
