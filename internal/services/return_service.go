package services

import (
	"context"
	"errors"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"go.uber.org/zap"

	"github.com/tindahan/api/internal/domain"
	"github.com/tindahan/api/internal/repositories"
)

// ReturnServiceDeps bundles collaborators for the return request service.
type ReturnServiceDeps struct {
	Returns repositories.ReturnRequestRepository
	Orders  repositories.OrderDocumentRepository
	Logger  *zap.Logger
}

type returnService struct {
	returns   repositories.ReturnRequestRepository
	orders    repositories.OrderDocumentRepository
	sanitizer *bluemonday.Policy
	logger    *zap.Logger
}

// NewReturnService wires dependencies into a ReturnService. Buyer-supplied
// free text (reason, custom reason) is stripped of markup before surfacing.
func NewReturnService(deps ReturnServiceDeps) (ReturnService, error) {
	if deps.Returns == nil {
		return nil, errors.New("return service: return repository is required")
	}
	if deps.Orders == nil {
		return nil, errors.New("return service: order repository is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &returnService{
		returns:   deps.Returns,
		orders:    deps.Orders,
		sanitizer: bluemonday.StrictPolicy(),
		logger:    logger,
	}, nil
}

func (s *returnService) FetchReturnRequest(ctx context.Context, returnID string) *domain.ReturnRequest {
	returnID = strings.TrimSpace(returnID)
	if returnID == "" {
		return nil
	}
	request, err := s.returns.FindByID(ctx, returnID)
	if err != nil {
		s.logger.Warn("return request fetch failed",
			zap.String("return", returnID),
			zap.Error(err))
		return nil
	}
	s.sanitizeRequest(&request)
	return &request
}

// FetchReturnRequestsForSeller scans every return request and keeps those
// whose parent order belongs to one of the sellers. This is a full scan with
// one parent lookup per return; acceptable at the assumed scale.
func (s *returnService) FetchReturnRequestsForSeller(ctx context.Context, sellerIDs []string) ([]domain.ReturnRequest, error) {
	wanted := make(map[string]bool, len(sellerIDs))
	for _, seller := range sellerIDs {
		if trimmed := strings.TrimSpace(seller); trimmed != "" {
			wanted[trimmed] = true
		}
	}
	if len(wanted) == 0 {
		return nil, nil
	}

	requests, err := s.returns.ListAll(ctx)
	if err != nil {
		return nil, err
	}

	matches := make([]domain.ReturnRequest, 0, len(requests))
	for _, request := range requests {
		orderID := strings.TrimSpace(request.OrderID)
		if orderID == "" {
			continue
		}
		doc, err := s.orders.FindRaw(ctx, orderID)
		if err != nil {
			s.logger.Warn("return request parent order lookup failed",
				zap.String("return", request.ID),
				zap.String("order", orderID),
				zap.Error(err))
			continue
		}
		if !orderBelongsToSellers(doc.Data, wanted) {
			continue
		}
		s.sanitizeRequest(&request)
		matches = append(matches, request)
	}
	return matches, nil
}

func (s *returnService) sanitizeRequest(request *domain.ReturnRequest) {
	request.Reason = strings.TrimSpace(s.sanitizer.Sanitize(request.Reason))
	request.CustomReason = strings.TrimSpace(s.sanitizer.Sanitize(request.CustomReason))
}

func orderBelongsToSellers(raw domain.RawOrder, wanted map[string]bool) bool {
	for _, seller := range raw.SellerIDs {
		if wanted[strings.TrimSpace(seller)] {
			return true
		}
	}
	return wanted[strings.TrimSpace(raw.SellerID)]
}
