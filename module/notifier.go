package module

// Notifier wakes a single worker routine when new work is queued. Notifications coalesce:
// any number of Notify calls before the worker reads the channel wake it once. Copies of a
// Notifier share the same state.
type Notifier struct {
	ch chan struct{}
}

func NewNotifier() Notifier {
	return Notifier{ch: make(chan struct{}, 1)}
}

// Notify never blocks.
func (n Notifier) Notify() {
	select {
	case n.ch <- struct{}{}:
	default:
	}
}

// Channel receives one value per coalesced batch of notifications.
func (n Notifier) Channel() <-chan struct{} {
	return n.ch
}
