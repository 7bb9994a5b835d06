package notify

import (
	"context"

	"econbot/pkg/logx"
)

// LogNotifier writes messages to the log instead of delivering them. Used
// for the log channel and for dry runs.
type LogNotifier struct {
	log logx.Logger
}

func NewLogNotifier(log logx.Logger) *LogNotifier {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &LogNotifier{log: log.With(logx.String("comp", "notify.log"))}
}

func (n *LogNotifier) Send(_ context.Context, r Recipient, message string) error {
	n.log.Info("message", logx.String("to", r.String()), logx.String("body", message))
	return nil
}
