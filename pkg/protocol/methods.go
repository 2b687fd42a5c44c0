package protocol

// RPC method names.
const (
	MethodConnect = "connect"
	MethodPing    = "ping"

	MethodAuthInit   = "auth.init"
	MethodAuthStatus = "auth.status"
	MethodAuthRevoke = "auth.revoke"

	MethodGuildsList   = "guilds.list"
	MethodChannelsList = "channels.list"

	MethodMessagesList        = "messages.list"
	MethodMessagesSubscribe   = "messages.subscribe"
	MethodMessagesUnsubscribe = "messages.unsubscribe"
)
