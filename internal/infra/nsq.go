package infra

import (
	"fmt"
	"log/slog"

	"github.com/nsqio/go-nsq"
)

// NewNSQProducer connects a producer to nsqd at addr and pings it.
func NewNSQProducer(addr string, logger *slog.Logger) (*nsq.Producer, error) {
	if addr == "" {
		return nil, fmt.Errorf("nsq address is required")
	}

	producer, err := nsq.NewProducer(addr, nsq.NewConfig())
	if err != nil {
		return nil, fmt.Errorf("create nsq producer: %w", err)
	}
	if logger != nil {
		producer.SetLogger(slogAdapter{logger}, nsq.LogLevelWarning)
	} else {
		producer.SetLoggerLevel(nsq.LogLevelWarning)
	}

	if err := producer.Ping(); err != nil {
		producer.Stop()
		return nil, fmt.Errorf("ping nsq: %w", err)
	}

	return producer, nil
}

// slogAdapter satisfies the go-nsq logger interface.
type slogAdapter struct{ logger *slog.Logger }

func (a slogAdapter) Output(_ int, s string) error {
	a.logger.Warn(s, "component", "nsq")
	return nil
}
