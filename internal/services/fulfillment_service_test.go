package services

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/tindahan/api/internal/domain"
	"github.com/tindahan/api/internal/repositories"
)

type stubOrderRepository struct {
	findRawFn         func(ctx context.Context, orderID string) (domain.RawOrderDocument, error)
	listenFn          func(ctx context.Context, query repositories.OrderQuery, handler repositories.OrderSnapshotHandler) error
	updateLifecycleFn func(ctx context.Context, collection, orderID string, update repositories.OrderLifecycleUpdate) error
}

func (s *stubOrderRepository) FindRaw(ctx context.Context, orderID string) (domain.RawOrderDocument, error) {
	if s.findRawFn != nil {
		return s.findRawFn(ctx, orderID)
	}
	return domain.RawOrderDocument{}, errors.New("not implemented")
}

func (s *stubOrderRepository) Listen(ctx context.Context, query repositories.OrderQuery, handler repositories.OrderSnapshotHandler) error {
	if s.listenFn != nil {
		return s.listenFn(ctx, query, handler)
	}
	return errors.New("not implemented")
}

func (s *stubOrderRepository) UpdateLifecycle(ctx context.Context, collection, orderID string, update repositories.OrderLifecycleUpdate) error {
	if s.updateLifecycleFn != nil {
		return s.updateLifecycleFn(ctx, collection, orderID, update)
	}
	return errors.New("not implemented")
}

type stubRepositoryError struct {
	notFound    bool
	conflict    bool
	unavailable bool
}

func (e stubRepositoryError) Error() string       { return "repository error" }
func (e stubRepositoryError) IsNotFound() bool    { return e.notFound }
func (e stubRepositoryError) IsConflict() bool    { return e.conflict }
func (e stubRepositoryError) IsUnavailable() bool { return e.unavailable }

type stubReportingPublisher struct {
	syncFn func(ctx context.Context, order domain.Order) error
	synced []domain.Order
}

func (s *stubReportingPublisher) SyncOrder(ctx context.Context, order domain.Order) error {
	s.synced = append(s.synced, order)
	if s.syncFn != nil {
		return s.syncFn(ctx, order)
	}
	return nil
}

func fixedClock(at time.Time) func() time.Time {
	return func() time.Time { return at }
}

func orderDoc(data domain.RawOrder) domain.RawOrderDocument {
	return domain.RawOrderDocument{Collection: repositories.OrdersCollection, ID: "ord-1", Data: data}
}

func TestUpdateOrderStatusAppendsHistory(t *testing.T) {
	now := time.Date(2024, 6, 10, 9, 0, 0, 0, time.UTC)
	var captured repositories.OrderLifecycleUpdate

	repo := &stubOrderRepository{
		findRawFn: func(_ context.Context, orderID string) (domain.RawOrderDocument, error) {
			return orderDoc(domain.RawOrder{
				Status: "shipping",
				StatusHistory: []any{
					map[string]any{"status": "pending", "timestamp": "2024-06-01T08:00:00Z"},
				},
			}), nil
		},
		updateLifecycleFn: func(_ context.Context, collection, orderID string, update repositories.OrderLifecycleUpdate) error {
			if collection != repositories.OrdersCollection || orderID != "ord-1" {
				t.Fatalf("update target = %s/%s", collection, orderID)
			}
			captured = update
			return nil
		},
	}

	service, err := NewFulfillmentService(FulfillmentServiceDeps{Orders: repo, Clock: fixedClock(now)})
	if err != nil {
		t.Fatalf("NewFulfillmentService: %v", err)
	}

	order, err := service.UpdateOrderStatus(context.Background(), "ord-1", domain.OrderStatusCompleted)
	if err != nil {
		t.Fatalf("UpdateOrderStatus: %v", err)
	}

	if captured.Status == nil || *captured.Status != domain.OrderStatusCompleted {
		t.Fatalf("captured status = %v", captured.Status)
	}
	if captured.Stage != nil {
		t.Fatalf("captured stage = %v, want nil for non-to_ship status", captured.Stage)
	}
	if len(captured.PriorHistory) != 1 {
		t.Fatalf("len(prior) = %d, want the existing raw entry", len(captured.PriorHistory))
	}
	if len(captured.Appended) != 1 {
		t.Fatalf("len(appended) = %d, want one new entry", len(captured.Appended))
	}
	last := captured.Appended[0]
	if last.Status != string(domain.OrderStatusCompleted) || last.Note != "Status updated to completed" {
		t.Fatalf("appended entry = %+v", last)
	}
	if !last.Timestamp.Equal(now) {
		t.Fatalf("appended timestamp = %v, want clock time", last.Timestamp)
	}

	if order.Status != domain.OrderStatusCompleted {
		t.Fatalf("projected status = %q", order.Status)
	}
	if order.FulfillmentStage != "" {
		t.Fatalf("projected stage = %q, want empty", order.FulfillmentStage)
	}
}

func TestUpdateOrderStatusToShipImpliesPackingQueue(t *testing.T) {
	now := time.Date(2024, 6, 10, 9, 0, 0, 0, time.UTC)
	var captured repositories.OrderLifecycleUpdate

	repo := &stubOrderRepository{
		findRawFn: func(context.Context, string) (domain.RawOrderDocument, error) {
			return orderDoc(domain.RawOrder{Status: "confirmed"}), nil
		},
		updateLifecycleFn: func(_ context.Context, _, _ string, update repositories.OrderLifecycleUpdate) error {
			captured = update
			return nil
		},
	}

	service, err := NewFulfillmentService(FulfillmentServiceDeps{Orders: repo, Clock: fixedClock(now)})
	if err != nil {
		t.Fatalf("NewFulfillmentService: %v", err)
	}

	order, err := service.UpdateOrderStatus(context.Background(), "ord-1", domain.OrderStatusToShip)
	if err != nil {
		t.Fatalf("UpdateOrderStatus: %v", err)
	}

	if captured.Stage == nil || *captured.Stage != domain.StageToPack {
		t.Fatalf("captured stage = %v, want implicit to-pack", captured.Stage)
	}
	if len(captured.Appended) != 2 {
		t.Fatalf("len(appended) = %d, want status entry plus stage entry", len(captured.Appended))
	}
	if captured.Appended[0].Status != string(domain.OrderStatusToShip) {
		t.Fatalf("appended[0] = %+v", captured.Appended[0])
	}
	stageEntry := captured.Appended[1]
	if stageEntry.Status != string(domain.StageToPack) || stageEntry.Note != "Order moved to packing queue" {
		t.Fatalf("history[1] = %+v", stageEntry)
	}
	if order.FulfillmentStage != domain.StageToPack {
		t.Fatalf("projected stage = %q", order.FulfillmentStage)
	}
}

func TestUpdateOrderStatusToShipKeepsRecordedStage(t *testing.T) {
	now := time.Date(2024, 6, 10, 9, 0, 0, 0, time.UTC)
	var captured repositories.OrderLifecycleUpdate

	repo := &stubOrderRepository{
		findRawFn: func(context.Context, string) (domain.RawOrderDocument, error) {
			return orderDoc(domain.RawOrder{Status: "to_ship", FulfillmentStage: "to-arrangement"}), nil
		},
		updateLifecycleFn: func(_ context.Context, _, _ string, update repositories.OrderLifecycleUpdate) error {
			captured = update
			return nil
		},
	}

	service, err := NewFulfillmentService(FulfillmentServiceDeps{Orders: repo, Clock: fixedClock(now)})
	if err != nil {
		t.Fatalf("NewFulfillmentService: %v", err)
	}

	order, err := service.UpdateOrderStatus(context.Background(), "ord-1", domain.OrderStatusToShip)
	if err != nil {
		t.Fatalf("UpdateOrderStatus: %v", err)
	}

	if captured.Stage != nil {
		t.Fatalf("captured stage = %v, want nil when a stage is already recorded", captured.Stage)
	}
	if len(captured.Appended) != 1 {
		t.Fatalf("len(appended) = %d, want only the status entry", len(captured.Appended))
	}
	if order.FulfillmentStage != domain.StageToArrangement {
		t.Fatalf("projected stage = %q, want recorded stage preserved", order.FulfillmentStage)
	}
}

func TestUpdateOrderStatusKeepsUnrecognizedHistoryEntries(t *testing.T) {
	rawHistory := []any{
		map[string]any{"status": "pending", "timestamp": "2024-06-01T08:00:00Z"},
		map[string]any{"migratedFrom": "v1"},
		"corrupt-entry",
	}
	var captured repositories.OrderLifecycleUpdate

	repo := &stubOrderRepository{
		findRawFn: func(context.Context, string) (domain.RawOrderDocument, error) {
			return orderDoc(domain.RawOrder{Status: "shipping", StatusHistory: rawHistory}), nil
		},
		updateLifecycleFn: func(_ context.Context, _, _ string, update repositories.OrderLifecycleUpdate) error {
			captured = update
			return nil
		},
	}

	service, err := NewFulfillmentService(FulfillmentServiceDeps{Orders: repo})
	if err != nil {
		t.Fatalf("NewFulfillmentService: %v", err)
	}

	if _, err := service.UpdateOrderStatus(context.Background(), "ord-1", domain.OrderStatusCompleted); err != nil {
		t.Fatalf("UpdateOrderStatus: %v", err)
	}

	if !reflect.DeepEqual(captured.PriorHistory, rawHistory) {
		t.Fatalf("prior history = %#v, want the raw entries carried verbatim", captured.PriorHistory)
	}
	if len(captured.Appended) != 1 {
		t.Fatalf("len(appended) = %d", len(captured.Appended))
	}
}

func TestUpdateOrderStatusValidation(t *testing.T) {
	repo := &stubOrderRepository{
		findRawFn: func(context.Context, string) (domain.RawOrderDocument, error) {
			t.Fatal("FindRaw must not be called for invalid input")
			return domain.RawOrderDocument{}, nil
		},
	}
	service, err := NewFulfillmentService(FulfillmentServiceDeps{Orders: repo})
	if err != nil {
		t.Fatalf("NewFulfillmentService: %v", err)
	}

	if _, err := service.UpdateOrderStatus(context.Background(), "  ", domain.OrderStatusToShip); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("blank id error = %v, want ErrInvalidInput", err)
	}
	if _, err := service.UpdateOrderStatus(context.Background(), "ord-1", "warehouse"); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("unknown status error = %v, want ErrInvalidInput", err)
	}
}

func TestUpdateOrderStatusNotFound(t *testing.T) {
	repo := &stubOrderRepository{
		findRawFn: func(context.Context, string) (domain.RawOrderDocument, error) {
			return domain.RawOrderDocument{}, stubRepositoryError{notFound: true}
		},
	}
	service, err := NewFulfillmentService(FulfillmentServiceDeps{Orders: repo})
	if err != nil {
		t.Fatalf("NewFulfillmentService: %v", err)
	}

	if _, err := service.UpdateOrderStatus(context.Background(), "ord-404", domain.OrderStatusToShip); !errors.Is(err, ErrOrderNotFound) {
		t.Fatalf("error = %v, want ErrOrderNotFound", err)
	}
}

func TestUpdateOrderStatusNotifiesReporting(t *testing.T) {
	repo := &stubOrderRepository{
		findRawFn: func(context.Context, string) (domain.RawOrderDocument, error) {
			return orderDoc(domain.RawOrder{Status: "shipping"}), nil
		},
		updateLifecycleFn: func(context.Context, string, string, repositories.OrderLifecycleUpdate) error {
			return nil
		},
	}
	reporting := &stubReportingPublisher{}
	service, err := NewFulfillmentService(FulfillmentServiceDeps{Orders: repo, Reporting: reporting})
	if err != nil {
		t.Fatalf("NewFulfillmentService: %v", err)
	}

	if _, err := service.UpdateOrderStatus(context.Background(), "ord-1", domain.OrderStatusCompleted); err != nil {
		t.Fatalf("UpdateOrderStatus: %v", err)
	}
	if len(reporting.synced) != 1 || reporting.synced[0].Status != domain.OrderStatusCompleted {
		t.Fatalf("synced = %+v, want one completed order", reporting.synced)
	}
}

func TestUpdateOrderStatusReportingFailureIsNotFatal(t *testing.T) {
	repo := &stubOrderRepository{
		findRawFn: func(context.Context, string) (domain.RawOrderDocument, error) {
			return orderDoc(domain.RawOrder{Status: "shipping"}), nil
		},
		updateLifecycleFn: func(context.Context, string, string, repositories.OrderLifecycleUpdate) error {
			return nil
		},
	}
	reporting := &stubReportingPublisher{
		syncFn: func(context.Context, domain.Order) error {
			return errors.New("topic unavailable")
		},
	}
	service, err := NewFulfillmentService(FulfillmentServiceDeps{Orders: repo, Reporting: reporting})
	if err != nil {
		t.Fatalf("NewFulfillmentService: %v", err)
	}

	if _, err := service.UpdateOrderStatus(context.Background(), "ord-1", domain.OrderStatusCompleted); err != nil {
		t.Fatalf("reporting failure should not fail the mutation: %v", err)
	}
}

func TestUpdateFulfillmentStage(t *testing.T) {
	now := time.Date(2024, 6, 10, 9, 0, 0, 0, time.UTC)
	var captured repositories.OrderLifecycleUpdate

	repo := &stubOrderRepository{
		findRawFn: func(context.Context, string) (domain.RawOrderDocument, error) {
			return orderDoc(domain.RawOrder{Status: "to_ship", FulfillmentStage: "to-pack"}), nil
		},
		updateLifecycleFn: func(_ context.Context, _, _ string, update repositories.OrderLifecycleUpdate) error {
			captured = update
			return nil
		},
	}

	service, err := NewFulfillmentService(FulfillmentServiceDeps{Orders: repo, Clock: fixedClock(now)})
	if err != nil {
		t.Fatalf("NewFulfillmentService: %v", err)
	}

	order, err := service.UpdateFulfillmentStage(context.Background(), "ord-1", domain.StageToArrangement)
	if err != nil {
		t.Fatalf("UpdateFulfillmentStage: %v", err)
	}

	if captured.Status != nil {
		t.Fatalf("captured status = %v, want nil for a stage move", captured.Status)
	}
	if captured.Stage == nil || *captured.Stage != domain.StageToArrangement {
		t.Fatalf("captured stage = %v", captured.Stage)
	}
	if len(captured.Appended) != 1 || captured.Appended[0].Note != "Package packed, awaiting courier arrangement" {
		t.Fatalf("appended = %+v", captured.Appended)
	}
	if order.FulfillmentStage != domain.StageToArrangement {
		t.Fatalf("projected stage = %q", order.FulfillmentStage)
	}
}

func TestUpdateFulfillmentStageRejectsUnknownStage(t *testing.T) {
	service, err := NewFulfillmentService(FulfillmentServiceDeps{Orders: &stubOrderRepository{}})
	if err != nil {
		t.Fatalf("NewFulfillmentService: %v", err)
	}
	if _, err := service.UpdateFulfillmentStage(context.Background(), "ord-1", "to-warehouse"); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("error = %v, want ErrInvalidInput", err)
	}
}

func TestMoveOrderToPreviousStage(t *testing.T) {
	now := time.Date(2024, 6, 10, 9, 0, 0, 0, time.UTC)
	var captured repositories.OrderLifecycleUpdate

	repo := &stubOrderRepository{
		findRawFn: func(context.Context, string) (domain.RawOrderDocument, error) {
			return orderDoc(domain.RawOrder{Status: "to_ship", FulfillmentStage: "to-arrangement"}), nil
		},
		updateLifecycleFn: func(_ context.Context, _, _ string, update repositories.OrderLifecycleUpdate) error {
			captured = update
			return nil
		},
	}

	service, err := NewFulfillmentService(FulfillmentServiceDeps{Orders: repo, Clock: fixedClock(now)})
	if err != nil {
		t.Fatalf("NewFulfillmentService: %v", err)
	}

	order, err := service.MoveOrderToPreviousStage(context.Background(), "ord-1", domain.StageToArrangement, domain.StageToPack)
	if err != nil {
		t.Fatalf("MoveOrderToPreviousStage: %v", err)
	}

	if captured.Stage == nil || *captured.Stage != domain.StageToPack {
		t.Fatalf("captured stage = %v", captured.Stage)
	}
	if len(captured.Appended) != 1 || captured.Appended[0].Note != "Moved back to to-pack" {
		t.Fatalf("appended = %+v", captured.Appended)
	}
	if order.FulfillmentStage != domain.StageToPack {
		t.Fatalf("projected stage = %q", order.FulfillmentStage)
	}
}

func TestMoveOrderToPreviousStagePreconditionFailure(t *testing.T) {
	updated := false
	repo := &stubOrderRepository{
		findRawFn: func(context.Context, string) (domain.RawOrderDocument, error) {
			return orderDoc(domain.RawOrder{Status: "to_ship", FulfillmentStage: "to-hand-over"}), nil
		},
		updateLifecycleFn: func(context.Context, string, string, repositories.OrderLifecycleUpdate) error {
			updated = true
			return nil
		},
	}

	service, err := NewFulfillmentService(FulfillmentServiceDeps{Orders: repo})
	if err != nil {
		t.Fatalf("NewFulfillmentService: %v", err)
	}

	_, err = service.MoveOrderToPreviousStage(context.Background(), "ord-1", domain.StageToArrangement, domain.StageToPack)
	if !errors.Is(err, ErrInvalidStageTransition) {
		t.Fatalf("error = %v, want ErrInvalidStageTransition", err)
	}
	if updated {
		t.Fatal("UpdateLifecycle must not run when the precondition fails")
	}
}
