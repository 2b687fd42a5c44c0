package protocol

// Event names pushed from the gateway to subscribed clients.
const (
	EventMessageCreate = "message.create"
	EventMessageUpdate = "message.update"
	EventMessageDelete = "message.delete"

	// EventSubscriptionClosed is sent when the gateway ends a subscription on
	// its own (session revoked, channel deleted). Payload is an ErrorShape.
	EventSubscriptionClosed = "subscription.closed"
)
