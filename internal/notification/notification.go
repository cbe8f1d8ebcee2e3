package notification

import (
	"context"
	"log/slog"

	"github.com/kyc-flow/kyc_flow/internal/logging"
)

const (
	// KindSignupOTP carries the code for a new signup.
	KindSignupOTP = "signup_otp"
	// KindReverifyOTP carries the code for re-verifying a registered phone.
	KindReverifyOTP = "reverify_otp"
)

// Message describes a notification payload.
type Message struct {
	Kind        string `json:"kind"`
	Destination string `json:"destination"`
	Body        string `json:"body"`
}

// Notifier delivers notifications to downstream systems. Delivery is fire and
// forget: a nil error only means the message was handed off.
type Notifier interface {
	Send(ctx context.Context, message Message) error
}

// LoggerNotifier writes notifications to the logger instead of delivering
// them.
type LoggerNotifier struct {
	logger     *slog.Logger
	exposeBody bool
}

// NewLoggerNotifier constructs a logging notifier. The message body is only
// written when exposeBody is set.
func NewLoggerNotifier(logger *slog.Logger, exposeBody bool) *LoggerNotifier {
	return &LoggerNotifier{logger: logger, exposeBody: exposeBody}
}

// Send writes the message to the structured logger.
func (n *LoggerNotifier) Send(_ context.Context, message Message) error {
	if n == nil || n.logger == nil {
		return nil
	}
	attrs := []any{"kind", message.Kind, "destination", logging.MaskPhone(message.Destination)}
	if n.exposeBody {
		attrs = append(attrs, "body", message.Body)
	}
	n.logger.Info("notification", attrs...)
	return nil
}
