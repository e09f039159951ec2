package chemtrack

import "context"

// Notification is an outbound message to a person, typically carrying a
// magic-link URL.
type Notification struct {
	To      string
	Subject string
	Body    string
	Link    string
}

// Notifier delivers notifications. The concrete transport (SMTP, webhook) is
// wired by the host application.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// NotifierFunc adapts a function to the Notifier interface.
type NotifierFunc func(ctx context.Context, n Notification) error

func (f NotifierFunc) Notify(ctx context.Context, n Notification) error {
	return f(ctx, n)
}

// logNotifier is the default delivery: log the notification and move on.
// Useful in development where no mail transport exists.
type logNotifier struct {
	logger Logger
}

func (l logNotifier) Notify(_ context.Context, n Notification) error {
	logger := l.logger
	if logger == nil {
		logger = defLogger{}
	}
	logger.Info("notification to=%s subject=%q link=%s", n.To, n.Subject, n.Link)
	return nil
}
