package intake

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"kitchenprint/internal/config"
	"kitchenprint/internal/models"
	"kitchenprint/internal/service"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
)

// OrderHandler dispatches one order.
type OrderHandler interface {
	HandleOrder(ctx context.Context, tenantID int64, order *models.Order) (*service.DispatchResult, error)
}

// MessageReader is the subset of *kafka.Reader the consumer needs.
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Consumer reads order events from Kafka and dispatches them. Offsets are committed
// after dispatch, so a crash re-delivers the order; job creation is idempotent.
type Consumer struct {
	reader  MessageReader
	handler OrderHandler
	logger  *zerolog.Logger
}

func NewKafkaReader(cfg config.KafkaConfig) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers: cfg.Brokers,
		Topic:   cfg.OrdersTopic,
		GroupID: cfg.GroupID,
	})
}

func NewConsumer(reader MessageReader, handler OrderHandler, logger *zerolog.Logger) *Consumer {
	return &Consumer{reader: reader, handler: handler, logger: logger}
}

// Run consumes until ctx is canceled or the reader fails.
func (c *Consumer) Run(ctx context.Context) error {
	c.logger.Info().Msg("Order consumer started")
	defer func() {
		if err := c.reader.Close(); err != nil {
			c.logger.Warn().Err(err).Msg("Failed to close kafka reader")
		}
	}()

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				c.logger.Info().Msg("Order consumer stopped")
				return nil
			}
			return fmt.Errorf("fetch order message: %w", err)
		}

		if err := c.HandleMessage(ctx, msg.Value); err != nil {
			c.logger.Warn().
				Err(err).
				Int("partition", msg.Partition).
				Int64("offset", msg.Offset).
				Msg("Skipping order message")
		}

		if err := c.reader.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
			c.logger.Error().Err(err).Int64("offset", msg.Offset).Msg("Failed to commit order message")
		}
	}
}

// HandleMessage decodes and dispatches one order event. Returned errors mean the message is unusable.
func (c *Consumer) HandleMessage(ctx context.Context, value []byte) error {
	var order models.Order
	if err := json.Unmarshal(value, &order); err != nil {
		return fmt.Errorf("decode order: %w", err)
	}
	if order.TenantID <= 0 {
		return errors.New("order has no tenant_id")
	}

	result, err := c.handler.HandleOrder(ctx, order.TenantID, &order)
	if err != nil {
		return err
	}

	c.logger.Debug().
		Int64("tenant_id", order.TenantID).
		Int64("order_id", order.OrderID).
		Int("jobs", len(result.Jobs)).
		Msg("Order event dispatched")
	return nil
}
