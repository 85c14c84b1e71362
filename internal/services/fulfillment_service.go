package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/tindahan/api/internal/domain"
	"github.com/tindahan/api/internal/ingest"
	"github.com/tindahan/api/internal/repositories"
)

var (
	// ErrOrderNotFound indicates the order id exists in none of the physical collections.
	ErrOrderNotFound = errors.New("fulfillment: order not found")
	// ErrInvalidInput signals the caller provided invalid data.
	ErrInvalidInput = errors.New("fulfillment: invalid input")
	// ErrInvalidStageTransition indicates the order is not at the expected stage.
	ErrInvalidStageTransition = errors.New("fulfillment: invalid stage transition")
)

// stageNotes are the fixed human-readable history notes appended per stage.
var stageNotes = map[domain.FulfillmentStage]string{
	domain.StageToPack:        "Order moved to packing queue",
	domain.StageToArrangement: "Package packed, awaiting courier arrangement",
	domain.StageToHandOver:    "Courier arranged, package ready for hand-over",
}

var validStages = map[domain.FulfillmentStage]bool{
	domain.StageToPack:        true,
	domain.StageToArrangement: true,
	domain.StageToHandOver:    true,
}

var validStatuses = map[domain.OrderStatus]bool{
	domain.OrderStatusPending:         true,
	domain.OrderStatusConfirmed:       true,
	domain.OrderStatusToShip:          true,
	domain.OrderStatusShipping:        true,
	domain.OrderStatusCompleted:       true,
	domain.OrderStatusFailedDelivery:  true,
	domain.OrderStatusCancelled:       true,
	domain.OrderStatusReturnRequested: true,
	domain.OrderStatusReturnApproved:  true,
	domain.OrderStatusReturnRejected:  true,
	domain.OrderStatusReturned:        true,
	domain.OrderStatusRefunded:        true,
	domain.OrderStatusReturnRefund:    true,
}

// FulfillmentServiceDeps bundles collaborators for the fulfillment service.
type FulfillmentServiceDeps struct {
	Orders    repositories.OrderDocumentRepository
	Reporting ReportingSyncPublisher
	Clock     func() time.Time
	Logger    *zap.Logger
}

type fulfillmentService struct {
	orders    repositories.OrderDocumentRepository
	reporting ReportingSyncPublisher
	clock     func() time.Time
	logger    *zap.Logger
}

// NewFulfillmentService wires dependencies into a FulfillmentService.
func NewFulfillmentService(deps FulfillmentServiceDeps) (FulfillmentService, error) {
	if deps.Orders == nil {
		return nil, errors.New("fulfillment service: order repository is required")
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &fulfillmentService{
		orders:    deps.Orders,
		reporting: deps.Reporting,
		clock: func() time.Time {
			return clock().UTC()
		},
		logger: logger,
	}, nil
}

func (s *fulfillmentService) UpdateOrderStatus(ctx context.Context, orderID string, status domain.OrderStatus) (domain.Order, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return domain.Order{}, fmt.Errorf("%w: order id is required", ErrInvalidInput)
	}
	if !validStatuses[status] {
		return domain.Order{}, fmt.Errorf("%w: unknown status %q", ErrInvalidInput, status)
	}

	doc, err := s.orders.FindRaw(ctx, orderID)
	if err != nil {
		return domain.Order{}, s.mapRepositoryError(err)
	}

	now := s.clock()
	appended := []domain.StatusHistoryEntry{{
		Status:    string(status),
		Note:      fmt.Sprintf("Status updated to %s", status),
		Timestamp: now,
	}}

	update := repositories.OrderLifecycleUpdate{Status: &status}

	// Entering to_ship without a recorded stage implies the packing queue;
	// that implicit transition gets its own history entry.
	var impliedStage *domain.FulfillmentStage
	if status == domain.OrderStatusToShip && strings.TrimSpace(doc.Data.FulfillmentStage) == "" {
		stage := domain.StageToPack
		impliedStage = &stage
		appended = append(appended, domain.StatusHistoryEntry{
			Status:    string(stage),
			Note:      stageNotes[stage],
			Timestamp: now,
		})
	}
	update.Stage = impliedStage
	update.PriorHistory = ingest.RawHistory(doc.Data.StatusHistory)
	update.Appended = appended

	if err := s.orders.UpdateLifecycle(ctx, doc.Collection, doc.ID, update); err != nil {
		return domain.Order{}, s.mapRepositoryError(err)
	}

	order := s.projectOrder(doc, update)
	s.notifyReporting(ctx, order)
	return order, nil
}

func (s *fulfillmentService) UpdateFulfillmentStage(ctx context.Context, orderID string, stage domain.FulfillmentStage) (domain.Order, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return domain.Order{}, fmt.Errorf("%w: order id is required", ErrInvalidInput)
	}
	if !validStages[stage] {
		return domain.Order{}, fmt.Errorf("%w: unknown fulfillment stage %q", ErrInvalidInput, stage)
	}

	doc, err := s.orders.FindRaw(ctx, orderID)
	if err != nil {
		return domain.Order{}, s.mapRepositoryError(err)
	}

	now := s.clock()
	update := repositories.OrderLifecycleUpdate{
		Stage:        &stage,
		PriorHistory: ingest.RawHistory(doc.Data.StatusHistory),
		Appended: []domain.StatusHistoryEntry{{
			Status:    string(stage),
			Note:      stageNotes[stage],
			Timestamp: now,
		}},
	}
	if err := s.orders.UpdateLifecycle(ctx, doc.Collection, doc.ID, update); err != nil {
		return domain.Order{}, s.mapRepositoryError(err)
	}

	return s.projectOrder(doc, update), nil
}

func (s *fulfillmentService) MoveOrderToPreviousStage(ctx context.Context, orderID string, fromStage, toStage domain.FulfillmentStage) (domain.Order, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return domain.Order{}, fmt.Errorf("%w: order id is required", ErrInvalidInput)
	}
	if !validStages[fromStage] || !validStages[toStage] {
		return domain.Order{}, fmt.Errorf("%w: unknown fulfillment stage", ErrInvalidInput)
	}

	doc, err := s.orders.FindRaw(ctx, orderID)
	if err != nil {
		return domain.Order{}, s.mapRepositoryError(err)
	}

	current := domain.FulfillmentStage(strings.TrimSpace(doc.Data.FulfillmentStage))
	if current != fromStage {
		return domain.Order{}, fmt.Errorf("%w: order is at %q, expected %q", ErrInvalidStageTransition, current, fromStage)
	}

	now := s.clock()
	update := repositories.OrderLifecycleUpdate{
		Stage:        &toStage,
		PriorHistory: ingest.RawHistory(doc.Data.StatusHistory),
		Appended: []domain.StatusHistoryEntry{{
			Status:    string(toStage),
			Note:      fmt.Sprintf("Moved back to %s", toStage),
			Timestamp: now,
		}},
	}
	if err := s.orders.UpdateLifecycle(ctx, doc.Collection, doc.ID, update); err != nil {
		return domain.Order{}, s.mapRepositoryError(err)
	}

	return s.projectOrder(doc, update), nil
}

// projectOrder builds the post-mutation canonical view without re-reading the
// store; the next push notification carries the authoritative document.
func (s *fulfillmentService) projectOrder(doc domain.RawOrderDocument, update repositories.OrderLifecycleUpdate) domain.Order {
	order := ingest.Normalize(doc)
	if update.Status != nil {
		order.Status = *update.Status
	}
	switch {
	case update.Stage != nil:
		order.FulfillmentStage = *update.Stage
	case order.Status == domain.OrderStatusToShip:
		stage := domain.FulfillmentStage(strings.TrimSpace(doc.Data.FulfillmentStage))
		if !validStages[stage] {
			stage = domain.StageToPack
		}
		order.FulfillmentStage = stage
	default:
		order.FulfillmentStage = ""
	}
	order.StatusHistory = append(order.StatusHistory, update.Appended...)
	return order
}

func (s *fulfillmentService) notifyReporting(ctx context.Context, order domain.Order) {
	if s.reporting == nil {
		return
	}
	if err := s.reporting.SyncOrder(ctx, order); err != nil {
		s.logger.Warn("reporting sync failed",
			zap.String("order", order.ID),
			zap.String("status", string(order.Status)),
			zap.Error(err))
	}
}

func (s *fulfillmentService) mapRepositoryError(err error) error {
	if err == nil {
		return nil
	}
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			return fmt.Errorf("%w: %v", ErrOrderNotFound, err)
		case repoErr.IsUnavailable():
			return fmt.Errorf("fulfillment: repository unavailable: %w", err)
		}
	}
	return err
}
