package service

import (
	"context"

	"go.uber.org/zap"
)

// Notifier delivers a text message to one account on the messaging
// platform.
type Notifier interface {
	Notify(ctx context.Context, accountID int64, text string) error
}

type logNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier returns a Notifier that records deliveries in the log.
// It is used when no platform client is wired in.
func NewLogNotifier(logger *zap.Logger) Notifier {
	return &logNotifier{logger: logger}
}

func (n *logNotifier) Notify(_ context.Context, accountID int64, text string) error {
	n.logger.Info("notification delivered",
		zap.Int64("user_id", accountID),
		zap.Int("length", len(text)),
	)
	return nil
}
