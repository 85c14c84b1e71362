package jobs

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/pubsub/pstest"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/tindahan/api/internal/domain"
)

func TestPubSubReportingPublisherPublishesMessage(t *testing.T) {
	ctx := context.Background()
	srv := pstest.NewServer()
	defer srv.Close()

	client, err := pubsub.NewClient(ctx, "test-project",
		option.WithEndpoint(srv.Addr),
		option.WithoutAuthentication(),
		option.WithGRPCDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())),
	)
	if err != nil {
		t.Fatalf("pubsub.NewClient: %v", err)
	}
	defer func() {
		_ = client.Close()
	}()

	topic, err := client.CreateTopic(ctx, "order-reporting")
	if err != nil {
		t.Fatalf("CreateTopic: %v", err)
	}

	publisher, err := NewPubSubReportingPublisher(topic)
	if err != nil {
		t.Fatalf("NewPubSubReportingPublisher: %v", err)
	}

	total := 1390.0
	margin := 1140.0
	createdAt := time.Date(2024, 6, 1, 8, 30, 0, 0, time.UTC)
	order := domain.Order{
		ID:               "ord-1",
		Status:           domain.OrderStatusToShip,
		FulfillmentStage: domain.StageToPack,
		Total:            &total,
		GrossMargin:      &margin,
		Region:           "Poblacion, Santa Rosa",
		SellerIDs:        []string{"seller-1"},
		CreatedAt:        createdAt,
	}

	if err := publisher.SyncOrder(ctx, order); err != nil {
		t.Fatalf("SyncOrder: %v", err)
	}

	messages := srv.Messages()
	if len(messages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(messages))
	}

	var payload struct {
		OrderID     string   `json:"orderId"`
		Status      string   `json:"status"`
		Stage       string   `json:"stage"`
		Total       *float64 `json:"total"`
		GrossMargin *float64 `json:"grossMargin"`
		Region      string   `json:"region"`
	}
	if err := json.Unmarshal(messages[0].Data, &payload); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if payload.OrderID != "ord-1" || payload.Status != "to_ship" || payload.Stage != "to-pack" {
		t.Fatalf("unexpected payload %#v", payload)
	}
	if payload.Total == nil || *payload.Total != total {
		t.Fatalf("total = %v", payload.Total)
	}

	attrs := messages[0].Attributes
	if attrs["orderId"] != "ord-1" || attrs["status"] != "to_ship" || attrs["region"] != "Poblacion, Santa Rosa" {
		t.Fatalf("attributes = %v", attrs)
	}
}

func TestNewPubSubReportingPublisherRequiresTopic(t *testing.T) {
	if _, err := NewPubSubReportingPublisher(nil); err == nil {
		t.Fatal("expected error for nil topic")
	}
}
