package lsp

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
)

// WebSocketStream adapts a websocket connection into the byte stream pair a
// Connection needs. Incoming binary messages are drained as one continuous
// byte sequence, so a framed message may span websocket message boundaries;
// each Write becomes one outgoing binary message.
//
// The adapter is not independently thread-safe per direction, which is fine
// under the Connection's single lock.
type WebSocketStream struct {
	conn    *websocket.Conn
	current io.Reader // remainder of the websocket message being drained
}

// NewWebSocketStream wraps an established websocket connection.
func NewWebSocketStream(conn *websocket.Conn) *WebSocketStream {
	return &WebSocketStream{conn: conn}
}

// DialWebSocket connects to a websocket endpoint and wraps the result.
func DialWebSocket(ctx context.Context, url string, header http.Header) (*WebSocketStream, error) {
	dialer := &websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
		ReadBufferSize:   4096,
		WriteBufferSize:  4096,
	}

	conn, _, err := dialer.DialContext(ctx, url, header)
	if err != nil {
		return nil, errors.Wrap(err, "dial websocket")
	}

	return NewWebSocketStream(conn), nil
}

// Read returns bytes from the current websocket message, fetching the next
// message when the current one is exhausted. A closed connection yields the
// underlying close error, which the Connection reports as connection loss.
func (s *WebSocketStream) Read(p []byte) (int, error) {
	for {
		if s.current == nil {
			_, r, err := s.conn.NextReader()
			if err != nil {
				if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					return 0, io.EOF
				}
				return 0, err
			}
			s.current = r
		}

		n, err := s.current.Read(p)
		if err == io.EOF {
			s.current = nil
			if n > 0 {
				return n, nil
			}
			continue
		}
		return n, err
	}
}

// Write sends p as one binary websocket message.
func (s *WebSocketStream) Write(p []byte) (int, error) {
	if err := s.conn.WriteMessage(websocket.BinaryMessage, p); err != nil {
		return 0, errors.Wrap(err, "write websocket message")
	}
	return len(p), nil
}

// Close closes the underlying websocket connection, unblocking any pending
// Read.
func (s *WebSocketStream) Close() error {
	return s.conn.Close()
}

// NewWebSocketConnection frames messages over an established websocket
// connection.
func NewWebSocketConnection(conn *websocket.Conn, opts ...Option) *Connection {
	stream := NewWebSocketStream(conn)
	return NewConnection(stream, stream, opts...)
}
