package notify

import (
	"context"

	"go.uber.org/zap"
)

// Notifier delivers operator messages. Failures are reported, never fatal.
type Notifier interface {
	Send(ctx context.Context, msg string) error
}

// StatusSource answers the /status command.
type StatusSource interface {
	Status() string
}

// Stdout: fallback when no Telegram token is configured.
type Stdout struct {
	log *zap.Logger
}

func NewStdout(log *zap.Logger) *Stdout {
	if log == nil {
		log = zap.NewNop()
	}
	return &Stdout{log: log}
}

func (s *Stdout) Send(_ context.Context, msg string) error {
	s.log.Info("notification", zap.String("text", msg))
	return nil
}
