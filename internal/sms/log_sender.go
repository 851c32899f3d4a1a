package sms

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/qcom/phoneotp/internal/logging"
)

// LogSender writes messages to the log instead of sending them. Development only:
// the body, and therefore the code, ends up in the log.
type LogSender struct {
	logger *logrus.Logger
}

func NewLogSender(logger *logrus.Logger) *LogSender {
	return &LogSender{logger: logger}
}

func (s *LogSender) Send(ctx context.Context, to, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.logger.WithFields(logrus.Fields{
		"to":   logging.MaskPhone(to),
		"body": body,
	}).Info("SMS (logged for development)")
	return nil
}
