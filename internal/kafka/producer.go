package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/enrollhub/enrollment-service/pkg/logger"
)

// Топики событий жизненного цикла регистрации
const (
	TopicRegistrationApplied   = "registration_applied"
	TopicRegistrationCompleted = "registration_completed"
	TopicPaymentCancelled      = "payment_cancelled"
)

// Producer определяет интерфейс для публикации событий в Kafka
type Producer interface {
	// Publish отправляет событие в указанный топик. Ключ сообщения
	// используется Kafka для партиционирования: события одного
	// пользователя попадают в одну партицию и сохраняют порядок.
	Publish(ctx context.Context, topic, key string, event any) error
	// Close закрывает соединение продюсера
	Close() error
}

// messageWriter часть kafka.Writer, нужная продюсеру
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// EventProducer реализует Producer через segmentio/kafka-go
type EventProducer struct {
	writer messageWriter
	log    *logger.Logger
}

// NewProducer создает и настраивает новый продюсер Kafka
func NewProducer(brokers []string, log *logger.Logger) (*EventProducer, error) {
	if len(brokers) == 0 {
		log.Errorw("Kafka brokers list is empty in config, cannot create producer")
		return nil, errors.New("kafka brokers are not configured")
	}

	writer := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Balancer:               &kafka.LeastBytes{},
		RequiredAcks:           kafka.RequireOne,
		BatchSize:              100,
		BatchTimeout:           10 * time.Millisecond,
		WriteTimeout:           10 * time.Second,
		ReadTimeout:            10 * time.Second,
		AllowAutoTopicCreation: true,
	}

	log.Infow("Kafka producer initialized", "brokers", brokers)

	return &EventProducer{
		writer: writer,
		log:    log,
	}, nil
}

// Publish преобразует событие в JSON и отправляет в указанный топик
func (p *EventProducer) Publish(ctx context.Context, topic, key string, event any) error {
	value, err := json.Marshal(event)
	if err != nil {
		p.log.Errorw("Failed to marshal event for Kafka", "error", err, "topic", topic, "key", key)
		return fmt.Errorf("kafka: failed to marshal message data: %w", err)
	}

	message := kafka.Message{
		Topic: topic,
		Key:   []byte(key),
		Value: value,
		Time:  time.Now(),
	}

	writeCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	if err := p.writer.WriteMessages(writeCtx, message); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			p.log.Errorw("Kafka write timeout exceeded", "error", err, "topic", topic, "key", key)
			return fmt.Errorf("kafka: write timeout: %w", err)
		}
		p.log.Errorw("Failed to write message to Kafka", "error", err, "topic", topic, "key", key)
		return fmt.Errorf("kafka: failed to write message: %w", err)
	}

	p.log.Debugw("Published message to Kafka", "topic", topic, "key", key)
	return nil
}

// Close закрывает соединение продюсера. Вызывается при остановке сервиса.
func (p *EventProducer) Close() error {
	if err := p.writer.Close(); err != nil {
		p.log.Errorw("Failed to close Kafka writer", "error", err)
		return fmt.Errorf("kafka: failed to close writer: %w", err)
	}
	p.log.Infow("Kafka producer closed")
	return nil
}
