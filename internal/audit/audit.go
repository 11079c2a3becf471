package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"custody-core/internal/model"
	"custody-core/pkg/logger"
	"custody-core/pkg/monitor"
)

// Event 一条审计事件 (unknown sender / sender mismatch / ...)
type Event struct {
	Level   string
	Kind    string
	Payload map[string]interface{}
}

// Sink 审计事件出口。Emit 是 fire-and-forget:
// 写入失败只记录日志，绝不阻塞或影响主流程。
type Sink interface {
	Emit(ctx context.Context, e Event)
}

// Recorder 将事件写入通知存储表并投递到 Kafka
type Recorder struct {
	db     *gorm.DB
	writer *kafka.Writer
}

// NewRecorder 创建审计记录器。writer 可为 nil (仅落库)。
func NewRecorder(db *gorm.DB, brokers []string, topic string) *Recorder {
	var writer *kafka.Writer
	if len(brokers) > 0 {
		writer = &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Topic:                  topic,
			Balancer:               &kafka.Hash{},
			AllowAutoTopicCreation: true,
			RequiredAcks:           kafka.RequireOne,
			BatchTimeout:           10 * time.Millisecond,
		}
	}
	return &Recorder{db: db, writer: writer}
}

func (r *Recorder) Emit(ctx context.Context, e Event) {
	payload, err := json.Marshal(e.Payload)
	if err != nil {
		logger.Error("audit payload marshal failed", zap.String("kind", e.Kind), zap.Error(err))
		return
	}

	row := model.AuditEvent{
		ID:      uuid.NewString(),
		Level:   e.Level,
		Kind:    e.Kind,
		Payload: payload,
	}
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		logger.Error("audit event store failed", zap.String("kind", e.Kind), zap.Error(err))
	}

	if r.writer != nil {
		msg := kafka.Message{
			Key:   []byte(e.Kind),
			Value: payload,
		}
		if err := r.writer.WriteMessages(ctx, msg); err != nil {
			logger.Error("audit event publish failed", zap.String("kind", e.Kind), zap.Error(err))
		}
	}

	if monitor.Business != nil {
		monitor.Business.AuditEventsTotal.WithLabelValues(e.Kind).Inc()
	}
}

// Close flushes the kafka writer.
func (r *Recorder) Close() error {
	if r.writer != nil {
		return r.writer.Close()
	}
	return nil
}
