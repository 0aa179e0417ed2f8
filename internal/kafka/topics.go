package kafka

import (
	"errors"
	"fmt"
	"net"
	"strconv"

	"ms-watchmarket/internal/logger"

	"github.com/segmentio/kafka-go"
)

// EnsureTopicsExist creates any missing topic through the cluster controller.
func EnsureTopicsExist(brokers []string, topics []string, partitions int, log *logger.Logger) error {
	if len(brokers) == 0 {
		return errors.New("no kafka brokers configured")
	}
	if partitions <= 0 {
		partitions = 1
	}

	conn, err := kafka.Dial("tcp", brokers[0])
	if err != nil {
		return err
	}
	defer conn.Close()

	controller, err := conn.Controller()
	if err != nil {
		return err
	}
	controllerConn, err := kafka.Dial("tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	if err != nil {
		return err
	}
	defer controllerConn.Close()

	for _, topic := range topics {
		err = controllerConn.CreateTopics(kafka.TopicConfig{
			Topic:             topic,
			NumPartitions:     partitions,
			ReplicationFactor: 1,
		})
		switch {
		case err == nil:
			log.LogKafka("CREATE", topic, "topic created")
		case errors.Is(err, kafka.TopicAlreadyExists):
			log.Debug("KAFKA", fmt.Sprintf("topic %s already exists", topic))
		default:
			return fmt.Errorf("create topic %s: %w", topic, err)
		}
	}
	return nil
}
