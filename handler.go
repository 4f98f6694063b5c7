package lsp

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/triberger/lsp-framework/jsonrpc"
)

// RequestHandlerFunc handles one incoming request. The returned value is
// serialized into the response result. Returning a *jsonrpc.ResponseError
// controls the error code sent to the peer; any other error is reported as
// InternalError.
type RequestHandlerFunc func(id jsonrpc.ID, params json.RawMessage) (any, error)

// NotificationHandlerFunc handles one incoming notification. Errors are
// logged and dropped since notifications have no reply.
type NotificationHandlerFunc func(params json.RawMessage) error

// RequestHandler drives a Connection at message level: it dispatches
// incoming requests and notifications to registered handlers, replies to
// batches in order, and matches incoming responses to requests sent with
// SendRequest.
//
// Dispatch is synchronous: the receive loop handles each message and sends
// its reply before the next Receive. This matters because the connection's
// single lock is held for the whole of a blocked Receive, so a reply sent
// from another goroutine would wait until the peer's next message arrives.
// For the same reason, never wait on a SendRequest future from the
// goroutine running Run.
type RequestHandler struct {
	conn   *Connection
	logger Logger

	mu            sync.Mutex
	requests      map[string]RequestHandlerFunc
	notifications map[string]NotificationHandlerFunc

	pendingMu sync.Mutex
	pending   map[string]chan *jsonrpc.Response
}

// HandlerOption configures a RequestHandler.
type HandlerOption func(*RequestHandler)

// HandlerLoggerOption sets the logger for the request handler.
func HandlerLoggerOption(logger Logger) HandlerOption {
	return func(h *RequestHandler) {
		h.logger = logger
	}
}

// NewRequestHandler creates a RequestHandler on top of the given connection.
func NewRequestHandler(conn *Connection, opts ...HandlerOption) *RequestHandler {
	h := &RequestHandler{
		conn:          conn,
		logger:        defaultLogger(),
		requests:      make(map[string]RequestHandlerFunc),
		notifications: make(map[string]NotificationHandlerFunc),
		pending:       make(map[string]chan *jsonrpc.Response),
	}

	for _, opt := range opts {
		opt(h)
	}

	return h
}

// AddRequestHandler registers the handler for a request method, replacing
// any previous registration. Returns the handler for chaining.
func (h *RequestHandler) AddRequestHandler(method string, fn RequestHandlerFunc) *RequestHandler {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.requests[method] = fn
	return h
}

// AddNotificationHandler registers the handler for a notification method,
// replacing any previous registration. Returns the handler for chaining.
func (h *RequestHandler) AddNotificationHandler(method string, fn NotificationHandlerFunc) *RequestHandler {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.notifications[method] = fn
	return h
}

// Run receives and dispatches messages until the connection is lost or the
// context is canceled. Pending SendRequest futures are failed (closed
// without a value) when Run returns.
//
// Cancellation is observed between messages only: a Receive blocked on a
// silent peer keeps blocking until the stream is closed.
func (h *RequestHandler) Run(ctx context.Context) error {
	err := h.receiveLoop(ctx)
	h.failPending()
	return err
}

func (h *RequestHandler) receiveLoop(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		message, batch, err := h.conn.Receive()
		if err != nil {
			var connErr *ConnectionError
			if errors.As(err, &connErr) {
				return err
			}

			var protoErr *ProtocolError
			if errors.As(err, &protoErr) {
				// The stream is positioned at the next message; report
				// and keep going.
				h.logger.Warn("protocol error", "error", err)
				continue
			}

			// A decode failure from the jsonrpc layer. The frame itself was
			// consumed, so reply with a parse error and keep going.
			h.logger.Warn("failed to decode message", "error", err)
			if sendErr := h.conn.Send(jsonrpc.NewErrorResponse(jsonrpc.ID{}, &jsonrpc.ResponseError{
				Code:    jsonrpc.ParseError,
				Message: err.Error(),
			})); sendErr != nil {
				return sendErr
			}
			continue
		}

		if message != nil {
			err = h.handleMessage(message)
		} else {
			err = h.handleBatch(batch)
		}
		if err != nil {
			return err
		}
	}
}

// handleMessage processes one message and sends the reply, if any. The
// returned error is a send failure, which is terminal.
func (h *RequestHandler) handleMessage(message jsonrpc.Message) error {
	switch m := message.(type) {
	case *jsonrpc.Request:
		response := h.processRequest(m)
		if response == nil {
			return nil
		}
		return h.conn.Send(response)
	case *jsonrpc.Response:
		h.resolvePending(m)
	}
	return nil
}

// handleBatch processes a batch sequentially and replies with one batch
// containing the responses in request order. Notifications contribute no
// response; a batch of only notifications produces no reply at all.
func (h *RequestHandler) handleBatch(batch jsonrpc.MessageBatch) error {
	responses := make(jsonrpc.MessageBatch, 0, len(batch))

	for _, message := range batch {
		switch m := message.(type) {
		case *jsonrpc.Request:
			if response := h.processRequest(m); response != nil {
				responses = append(responses, response)
			}
		case *jsonrpc.Response:
			h.resolvePending(m)
		}
	}

	if len(responses) == 0 {
		return nil
	}
	return h.conn.SendBatch(responses)
}

// processRequest runs the registered handler and builds the response.
// Returns nil for notifications.
func (h *RequestHandler) processRequest(request *jsonrpc.Request) *jsonrpc.Response {
	if request.IsNotification() {
		h.mu.Lock()
		fn := h.notifications[request.Method]
		h.mu.Unlock()

		if fn == nil {
			h.logger.Debug("no handler for notification", "method", request.Method)
			return nil
		}
		if err := fn(request.Params); err != nil {
			h.logger.Error("notification handler failed", "method", request.Method, "error", err)
		}
		return nil
	}

	h.mu.Lock()
	fn := h.requests[request.Method]
	h.mu.Unlock()

	if fn == nil {
		return jsonrpc.NewErrorResponse(*request.ID, &jsonrpc.ResponseError{
			Code:    jsonrpc.MethodNotFound,
			Message: "method not found: " + request.Method,
		})
	}

	result, err := fn(*request.ID, request.Params)
	if err != nil {
		var respErr *jsonrpc.ResponseError
		if !errors.As(err, &respErr) {
			respErr = &jsonrpc.ResponseError{Code: jsonrpc.InternalError, Message: err.Error()}
		}
		return jsonrpc.NewErrorResponse(*request.ID, respErr)
	}

	response, err := jsonrpc.NewResponse(*request.ID, result)
	if err != nil {
		return jsonrpc.NewErrorResponse(*request.ID, &jsonrpc.ResponseError{
			Code:    jsonrpc.InternalError,
			Message: err.Error(),
		})
	}
	return response
}

// SendRequest sends a request with a fresh unique ID and returns a future
// for its response. The future receives exactly one value when the response
// arrives, or is closed without a value if the connection is lost first.
// Run must be active on this handler for the future to resolve.
func (h *RequestHandler) SendRequest(method string, params any) (<-chan *jsonrpc.Response, error) {
	request, err := jsonrpc.NewRequest(method, params)
	if err != nil {
		return nil, err
	}

	future := make(chan *jsonrpc.Response, 1)
	key := request.ID.String()

	h.pendingMu.Lock()
	h.pending[key] = future
	h.pendingMu.Unlock()

	if err := h.conn.Send(request); err != nil {
		h.pendingMu.Lock()
		delete(h.pending, key)
		h.pendingMu.Unlock()
		return nil, err
	}

	return future, nil
}

// SendNotification sends a notification for the given method.
func (h *RequestHandler) SendNotification(method string, params any) error {
	notification, err := jsonrpc.NewNotification(method, params)
	if err != nil {
		return err
	}
	return h.conn.Send(notification)
}

func (h *RequestHandler) resolvePending(response *jsonrpc.Response) {
	key := response.ID.String()

	h.pendingMu.Lock()
	future, ok := h.pending[key]
	delete(h.pending, key)
	h.pendingMu.Unlock()

	if !ok {
		h.logger.Warn("response with no matching request", "id", key)
		return
	}

	future <- response
	close(future)
}

// failPending closes all outstanding futures without a value.
func (h *RequestHandler) failPending() {
	h.pendingMu.Lock()
	defer h.pendingMu.Unlock()

	for key, future := range h.pending {
		close(future)
		delete(h.pending, key)
	}
}
