package types

// NotificationType is the kind of a persisted user notification
type NotificationType string

const (
	NotificationTypeUpdateQuote NotificationType = "UPDATE_QUOTE"
)

// Broadcast event names published on the outbound event port
const (
	EventUpdateQuote = "update_quote"
)
