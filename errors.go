package pageracer

// Standard error messages
const (
	// Protocol errors
	ErrInvalidMessageFormat = "invalid message format"
	ErrUnknownMessageType   = "unknown message type"
	ErrPayloadTooLarge      = "payload too large"

	// Connection errors
	ErrConnectionClosed = "connection is closed"
	ErrAlreadyConnected = "already connected"
	ErrDialFailed       = "failed to dial server"
	ErrFailedToEncode   = "failed to encode message"
)
