package notifier

// TextNotifier defines a minimal text notification interface.
// It is intentionally small so different components can depend on it without
// importing concrete implementations (e.g. Telegram, Discord).
type TextNotifier interface {
	SendText(text string) error
}

// Noop discards every message. Used when notifications are disabled and in
// tests.
type Noop struct{}

func (Noop) SendText(string) error { return nil }

// Multi fans one message out to several sinks; the first error wins but every
// sink is attempted.
type Multi []TextNotifier

func (m Multi) SendText(text string) error {
	var firstErr error
	for _, n := range m {
		if n == nil {
			continue
		}
		if err := n.SendText(text); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
