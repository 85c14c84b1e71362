package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/tindahan/api/internal/domain"
	"github.com/tindahan/api/internal/ingest"
	"github.com/tindahan/api/internal/repositories"
)

// OrderQueryServiceDeps bundles collaborators for single-order reads.
type OrderQueryServiceDeps struct {
	Orders   repositories.OrderDocumentRepository
	Enricher *ingest.Enricher
	Logger   *zap.Logger
}

type orderQueryService struct {
	orders   repositories.OrderDocumentRepository
	enricher *ingest.Enricher
	logger   *zap.Logger
}

// NewOrderQueryService wires dependencies into an OrderQueryService.
func NewOrderQueryService(deps OrderQueryServiceDeps) (OrderQueryService, error) {
	if deps.Orders == nil {
		return nil, errors.New("order query service: order repository is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &orderQueryService{
		orders:   deps.Orders,
		enricher: deps.Enricher,
		logger:   logger,
	}, nil
}

// GetOrder loads one raw document and returns its hydrated canonical form.
func (s *orderQueryService) GetOrder(ctx context.Context, orderID string) (domain.Order, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return domain.Order{}, fmt.Errorf("%w: order id is required", ErrInvalidInput)
	}

	doc, err := s.orders.FindRaw(ctx, orderID)
	if err != nil {
		var repoErr repositories.RepositoryError
		if errors.As(err, &repoErr) && repoErr.IsNotFound() {
			return domain.Order{}, fmt.Errorf("%w: %v", ErrOrderNotFound, err)
		}
		return domain.Order{}, err
	}

	order := ingest.Normalize(doc)
	if s.enricher != nil {
		enriched := s.enricher.EnrichOrders(ctx, []domain.Order{order}, ingest.NewProductCache())
		order = enriched[0]
	}
	return order, nil
}
