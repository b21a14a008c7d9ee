package kafka

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/enrollhub/enrollment-service/pkg/logger"
)

// Ключом сообщений служит ID пользователя, поэтому порядок событий
// одного пользователя сохраняется при любом числе партиций
var requiredTopics = []kafka.TopicConfig{
	{Topic: TopicRegistrationApplied, NumPartitions: 3, ReplicationFactor: 1},
	{Topic: TopicRegistrationCompleted, NumPartitions: 3, ReplicationFactor: 1},
	{Topic: TopicPaymentCancelled, NumPartitions: 3, ReplicationFactor: 1},
}

// EnsureTopics проверяет и создает топики событий сервиса
func EnsureTopics(brokers []string, log *logger.Logger) error {
	if len(brokers) == 0 || brokers[0] == "" {
		return errors.New("kafka brokers are not configured")
	}
	broker := brokers[0]
	if _, _, err := net.SplitHostPort(broker); err != nil {
		return fmt.Errorf("invalid broker address %s: %w", broker, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	conn, err := kafka.DialContext(ctx, "tcp", broker)
	if err != nil {
		return fmt.Errorf("kafka connection failed: %w", err)
	}
	defer conn.Close()

	partitions, err := conn.ReadPartitions()
	if err != nil {
		return fmt.Errorf("kafka read partitions failed: %w", err)
	}

	existing := make(map[string]bool)
	for _, p := range partitions {
		existing[p.Topic] = true
	}

	var missing []kafka.TopicConfig
	for _, tc := range requiredTopics {
		if !existing[tc.Topic] {
			missing = append(missing, tc)
		}
	}
	if len(missing) == 0 {
		log.Debugw("All Kafka topics already exist")
		return nil
	}

	// Создание топиков принимает только контроллер кластера
	controller, err := conn.Controller()
	if err != nil {
		return fmt.Errorf("kafka controller lookup failed: %w", err)
	}

	controllerConn, err := kafka.DialContext(ctx, "tcp",
		net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	if err != nil {
		return fmt.Errorf("kafka controller connection failed: %w", err)
	}
	defer controllerConn.Close()

	if err := controllerConn.CreateTopics(missing...); err != nil {
		if errors.Is(err, kafka.TopicAlreadyExists) {
			return nil
		}
		return fmt.Errorf("kafka create topics failed: %w", err)
	}

	log.Infow("Created Kafka topics", "topics", topicNames(missing))
	return nil
}

func topicNames(configs []kafka.TopicConfig) []string {
	names := make([]string, 0, len(configs))
	for _, tc := range configs {
		names = append(names, tc.Topic)
	}
	return names
}
