package notify

import (
	log "github.com/sirupsen/logrus"
)

// Notifier delivers a reminder to the user. Fire-and-forget; no delivery
// guarantee is expected by callers.
type Notifier interface {
	Notify(title, message string)
}

// LogNotifier writes notifications to the structured log. The consuming UI
// shell substitutes its own implementation for native toasts.
type LogNotifier struct {
	logger *log.Logger
}

func NewLogNotifier(logger *log.Logger) *LogNotifier {
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Notify(title, message string) {
	n.logger.WithFields(log.Fields{
		"title":   title,
		"message": message,
	}).Info("reminder.notification")
}
