package events

// Topic constants for domain events emitted by the booking platform.
const (
	TopicBookingCreated  = "booking.created"
	TopicBookingPaid     = "booking.paid"
	TopicBookingCanceled = "booking.canceled"
	TopicPaymentPending  = "payment.pending"
	TopicPaymentFailed   = "payment.failed"
	TopicCartCheckedOut  = "cart.checked_out"
)

// DefaultTopics returns the canonical list of topics that support notifications.
func DefaultTopics() []string {
	return []string{
		TopicBookingCreated,
		TopicBookingPaid,
		TopicBookingCanceled,
		TopicPaymentPending,
		TopicPaymentFailed,
		TopicCartCheckedOut,
	}
}
