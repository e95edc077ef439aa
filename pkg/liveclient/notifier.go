package liveclient

// Sound patterns played for incoming notifications, by priority.
const (
	SoundAlert   = "alert"
	SoundSuccess = "success"
	SoundChime   = "chime"
	SoundNone    = "none"
)

// Notifier receives the user-visible side effects of a freshly applied push.
// Implementations render toasts and play sounds however the host application
// sees fit; the store guarantees at most one call of each per notification id
// within the de-duplication window.
type Notifier interface {
	Toast(n Notification)
	PlaySound(pattern string)
}

// NoopNotifier discards all effects. It is the default when no notifier is
// injected.
type NoopNotifier struct{}

// Toast implements Notifier.
func (NoopNotifier) Toast(Notification) {}

// PlaySound implements Notifier.
func (NoopNotifier) PlaySound(string) {}

// payment-success produces no toast: the companion order-placed notification
// already covers the user-visible event, and a second toast reads as a
// duplicate.
var toastSuppressed = map[string]struct{}{
	TypePaymentSuccess: {},
}

// SoundPattern maps a notification priority to the pattern to play.
func SoundPattern(priority string) string {
	switch priority {
	case PriorityUrgent:
		return SoundAlert
	case PriorityHigh:
		return SoundSuccess
	case PriorityMedium:
		return SoundChime
	default:
		return SoundNone
	}
}

// ToastSuppressed reports whether the notification type intentionally skips
// its toast.
func ToastSuppressed(notificationType string) bool {
	_, ok := toastSuppressed[notificationType]
	return ok
}
