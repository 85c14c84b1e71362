package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/pubsub"

	"github.com/tindahan/api/internal/domain"
)

// reportingEvent is the wire shape consumed by the downstream reporting sink.
type reportingEvent struct {
	OrderID     string     `json:"orderId"`
	Status      string     `json:"status"`
	Stage       string     `json:"stage,omitempty"`
	Total       *float64   `json:"total,omitempty"`
	GrossMargin *float64   `json:"grossMargin,omitempty"`
	Region      string     `json:"region,omitempty"`
	SellerIDs   []string   `json:"sellerIds,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	DeliveredAt *time.Time `json:"deliveredAt,omitempty"`
}

// PubSubReportingPublisher publishes order lifecycle changes to a Pub/Sub
// topic feeding the reporting pipeline.
type PubSubReportingPublisher struct {
	topic   *pubsub.Topic
	marshal func(any) ([]byte, error)
}

// NewPubSubReportingPublisher constructs a Pub/Sub backed reporting publisher.
func NewPubSubReportingPublisher(topic *pubsub.Topic) (*PubSubReportingPublisher, error) {
	if topic == nil {
		return nil, errors.New("pubsub reporting publisher: topic is required")
	}
	return &PubSubReportingPublisher{
		topic:   topic,
		marshal: json.Marshal,
	}, nil
}

// SyncOrder enqueues the order's reporting projection on the configured topic.
func (p *PubSubReportingPublisher) SyncOrder(ctx context.Context, order domain.Order) error {
	if p == nil || p.topic == nil {
		return errors.New("pubsub reporting publisher: not initialised")
	}

	event := reportingEvent{
		OrderID:     order.ID,
		Status:      string(order.Status),
		Stage:       string(order.FulfillmentStage),
		Total:       order.Total,
		GrossMargin: order.GrossMargin,
		Region:      order.Region,
		SellerIDs:   order.SellerIDs,
		CreatedAt:   order.CreatedAt,
		DeliveredAt: order.DeliveredAt,
	}

	data, err := p.marshal(event)
	if err != nil {
		return fmt.Errorf("marshal reporting event: %w", err)
	}

	attrs := make(map[string]string)
	setAttr(attrs, "orderId", order.ID)
	setAttr(attrs, "status", string(order.Status))
	setAttr(attrs, "region", order.Region)

	result := p.topic.Publish(ctx, &pubsub.Message{
		Data:       data,
		Attributes: attrs,
	})

	if _, err := result.Get(ctx); err != nil {
		return fmt.Errorf("publish reporting event: %w", err)
	}
	return nil
}

func setAttr(attrs map[string]string, key string, value string) {
	if v := strings.TrimSpace(value); v != "" {
		attrs[key] = v
	}
}
