package models

const (
	StatusPending    = "pending"
	StatusAccepted   = "accepted"
	StatusRejected   = "rejected"
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
	StatusCancelled  = "cancelled"
)

// Booking payment status.
const (
	PaymentStatusPending  = "pending"
	PaymentStatusPaid     = "paid"
	PaymentStatusRefunded = "refunded"
	PaymentStatusFailed   = "failed"
)

// Payment record status.
const (
	PaymentPending    = "pending"
	PaymentProcessing = "processing"
	PaymentCompleted  = "completed"
	PaymentFailed     = "failed"
	PaymentRefunded   = "refunded"
)

const (
	MethodCard       = "card"
	MethodUPI        = "upi"
	MethodWallet     = "wallet"
	MethodCash       = "cash"
	MethodNetBanking = "net_banking"
)

const (
	RoleCustomer = "customer"
	RoleProvider = "provider"
	RoleAdmin    = "admin"
)

const (
	NotificationBookingCreated   = "booking_created"
	NotificationBookingAccepted  = "booking_accepted"
	NotificationBookingRejected  = "booking_rejected"
	NotificationBookingStarted   = "booking_started"
	NotificationBookingCompleted = "booking_completed"
	NotificationBookingCancelled = "booking_cancelled"
	NotificationPaymentReceived  = "payment_received"
	NotificationReviewReceived   = "review_received"
)

const (
	DefaultPage  = 1
	DefaultLimit = 10
	MaxLimit     = 100
)

// ValidPaymentMethod reports whether m is a supported payment method.
func ValidPaymentMethod(m string) bool {
	switch m {
	case MethodCard, MethodUPI, MethodWallet, MethodCash, MethodNetBanking:
		return true
	}
	return false
}

// ValidRole reports whether r is a known caller role.
func ValidRole(r string) bool {
	return r == RoleCustomer || r == RoleProvider || r == RoleAdmin
}
