package lsp

// ConnectionError indicates that the underlying stream ended at a point
// where more bytes were required: the peer closed the connection before or
// in the middle of a message. It is terminal for the connection; no partial
// message is ever returned alongside it.
type ConnectionError struct {
	message string
	cause   error
}

func connectionLost(cause error) *ConnectionError {
	return &ConnectionError{message: "connection lost", cause: cause}
}

func (e *ConnectionError) Error() string {
	if e.cause != nil {
		return e.message + ": " + e.cause.Error()
	}
	return e.message
}

// Unwrap returns the underlying stream error, if any.
func (e *ConnectionError) Unwrap() error {
	return e.cause
}

// ProtocolError indicates that bytes were available but violate the framing
// contract: a malformed header terminator, an unsupported content type or an
// unsupported charset. The stream position after a ProtocolError from the
// receive path is consistent (the entire declared body has been consumed),
// so the caller may keep reading subsequent messages.
type ProtocolError struct {
	message string
}

func (e *ProtocolError) Error() string {
	return e.message
}
