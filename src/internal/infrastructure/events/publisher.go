// Package events 領域事件發布器
package events

import (
	"log/slog"

	"github.com/jackyeh168/loyalty_ledger/src/internal/domain/points"
	"github.com/jackyeh168/loyalty_ledger/src/internal/domain/shared"
	"github.com/jackyeh168/loyalty_ledger/src/internal/domain/tier"
)

// Recorder 事件計數（由 observability.Metrics 實作）
type Recorder interface {
	ObserveDomainEvent(eventType string)
}

// LogPublisher 把已提交的領域事件寫入結構化日誌並計數
//
// 同步執行、不會失敗；下游訂閱（例如通知）可包裝此發布器
type LogPublisher struct {
	logger   *slog.Logger
	recorder Recorder
}

var _ shared.EventPublisher = (*LogPublisher)(nil)

// NewLogPublisher 創建事件發布器；recorder 可為 nil
func NewLogPublisher(logger *slog.Logger, recorder Recorder) *LogPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogPublisher{
		logger:   logger.With("component", "domain_events"),
		recorder: recorder,
	}
}

// Publish 發布單一事件
func (p *LogPublisher) Publish(event shared.DomainEvent) error {
	if event == nil {
		return nil
	}
	p.logger.Info("domain event", attrsOf(event)...)
	if p.recorder != nil {
		p.recorder.ObserveDomainEvent(event.EventType())
	}
	return nil
}

// PublishBatch 依序發布
func (p *LogPublisher) PublishBatch(events []shared.DomainEvent) error {
	for _, event := range events {
		if err := p.Publish(event); err != nil {
			return err
		}
	}
	return nil
}

func attrsOf(event shared.DomainEvent) []any {
	attrs := []any{
		"event_id", event.EventID(),
		"event_type", event.EventType(),
		"aggregate_id", event.AggregateID(),
		"occurred_at", event.OccurredAt(),
	}

	switch e := event.(type) {
	case *points.AccountOpenedEvent:
		attrs = append(attrs,
			"merchant_id", e.MerchantID().String(),
			"customer_ref", e.CustomerRef(),
		)
	case *points.PointsEarnedEvent:
		attrs = append(attrs,
			"merchant_id", e.MerchantID().String(),
			"transaction_id", e.TransactionID().String(),
			"kind", e.Kind().String(),
			"amount", e.Amount().Value(),
			"correlation", e.Correlation().String(),
		)
	case *points.PointsDeductedEvent:
		attrs = append(attrs,
			"merchant_id", e.MerchantID().String(),
			"transaction_id", e.TransactionID().String(),
			"kind", e.Kind().String(),
			"amount", e.Amount().Value(),
			"correlation", e.Correlation().String(),
		)
	case *points.TierChangedEvent:
		attrs = append(attrs,
			"merchant_id", e.MerchantID().String(),
			"from_tier", tierRef(e.From()),
			"to_tier", tierRef(e.To()),
			"total_points", e.TotalPoints(),
		)
	}
	return attrs
}

// tierRef 無等級時為空字串
func tierRef(id tier.TierID) string {
	if id.IsEmpty() {
		return ""
	}
	return id.String()
}
