package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/nsqio/go-nsq"

	"github.com/kyc-flow/kyc_flow/internal/logging"
)

// Publisher is the subset of *nsq.Producer used for delivery.
type Publisher interface {
	PublishAsync(topic string, body []byte, doneChan chan *nsq.ProducerTransaction, args ...interface{}) error
}

// NSQNotifier publishes messages to an NSQ topic for an out-of-band delivery
// worker (SMS gateway) to consume.
type NSQNotifier struct {
	producer Publisher
	topic    string
	logger   *slog.Logger
}

// NewNSQNotifier builds a notifier publishing to topic.
func NewNSQNotifier(producer Publisher, topic string, logger *slog.Logger) *NSQNotifier {
	if logger == nil {
		logger = logging.Discard()
	}
	return &NSQNotifier{producer: producer, topic: topic, logger: logger}
}

// Send hands message to nsqd without waiting for the acknowledgement. Publish
// failures reported later are only logged.
func (n *NSQNotifier) Send(_ context.Context, message Message) error {
	body, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("encode notification: %w", err)
	}
	done := make(chan *nsq.ProducerTransaction, 1)
	if err := n.producer.PublishAsync(n.topic, body, done, message.Kind, message.Destination); err != nil {
		return fmt.Errorf("publish notification: %w", err)
	}
	go func() {
		tx := <-done
		if tx.Error != nil {
			n.logger.Warn("notification publish failed",
				"topic", n.topic,
				"kind", message.Kind,
				"destination", logging.MaskPhone(message.Destination),
				"error", tx.Error)
		}
	}()
	return nil
}
