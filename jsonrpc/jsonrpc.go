// Package jsonrpc implements the JSON-RPC 2.0 message model carried by the
// transport framing layer: requests, notifications, responses and batches,
// plus decoding of raw message bodies into those shapes.
package jsonrpc

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Version is the protocol version carried in every message.
const Version = "2.0"

// Message is a single JSON-RPC message: a *Request (which doubles as a
// notification when it has no ID) or a *Response.
type Message interface {
	isMessage()
}

// MessageBatch is an ordered sequence of messages transmitted as a single
// framed body containing a JSON array.
type MessageBatch []Message

// Request is a JSON-RPC request or notification. A nil ID marks a
// notification: the peer must not reply to it.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      *ID             `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// Response is the reply to a request. Exactly one of Result and Error is
// set.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      ID              `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *ResponseError  `json:"error,omitempty"`
}

func (*Request) isMessage()  {}
func (*Response) isMessage() {}

// IsNotification reports whether the request carries no ID and therefore
// expects no response.
func (r *Request) IsNotification() bool {
	return r.ID == nil
}

// NewRequest creates a request for the given method with a fresh unique ID.
// params may be nil for methods without parameters.
func NewRequest(method string, params any) (*Request, error) {
	raw, err := marshalParams(params)
	if err != nil {
		return nil, err
	}
	id := NewStringID(uuid.NewString())
	return &Request{JSONRPC: Version, ID: &id, Method: method, Params: raw}, nil
}

// NewNotification creates a notification for the given method.
func NewNotification(method string, params any) (*Request, error) {
	raw, err := marshalParams(params)
	if err != nil {
		return nil, err
	}
	return &Request{JSONRPC: Version, Method: method, Params: raw}, nil
}

// NewResponse creates a successful response to the request identified by id.
func NewResponse(id ID, result any) (*Response, error) {
	raw, err := json.Marshal(result)
	if err != nil {
		return nil, err
	}
	return &Response{JSONRPC: Version, ID: id, Result: raw}, nil
}

// NewErrorResponse creates an error response to the request identified by id.
func NewErrorResponse(id ID, respErr *ResponseError) *Response {
	return &Response{JSONRPC: Version, ID: id, Error: respErr}
}

func marshalParams(params any) (json.RawMessage, error) {
	if params == nil {
		return nil, nil
	}
	return json.Marshal(params)
}

// DecodeMessage decodes a raw message body. A top-level JSON object decodes
// to a single message, a top-level array to a batch; exactly one of the two
// return values is non-nil on success.
func DecodeMessage(data []byte) (Message, MessageBatch, error) {
	trimmed := bytes.TrimLeft(data, " \t\r\n")
	if len(trimmed) == 0 {
		return nil, nil, errors.New("empty message body")
	}

	if trimmed[0] != '[' {
		message, err := decodeSingleMessage(data)
		if err != nil {
			return nil, nil, err
		}
		return message, nil, nil
	}

	var elements []json.RawMessage
	if err := json.Unmarshal(data, &elements); err != nil {
		return nil, nil, err
	}
	if len(elements) == 0 {
		return nil, nil, errors.New("empty message batch")
	}

	batch := make(MessageBatch, 0, len(elements))
	for _, element := range elements {
		message, err := decodeSingleMessage(element)
		if err != nil {
			return nil, nil, err
		}
		batch = append(batch, message)
	}
	return nil, batch, nil
}

// decodeSingleMessage decodes one message object, using the presence of the
// method member to tell requests from responses.
func decodeSingleMessage(data []byte) (Message, error) {
	var probe struct {
		JSONRPC string `json:"jsonrpc"`
		Method  string `json:"method"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, err
	}
	if probe.JSONRPC != Version {
		return nil, fmt.Errorf("unsupported jsonrpc version %q", probe.JSONRPC)
	}

	if probe.Method != "" {
		var request Request
		if err := json.Unmarshal(data, &request); err != nil {
			return nil, err
		}
		return &request, nil
	}

	var response Response
	if err := json.Unmarshal(data, &response); err != nil {
		return nil, err
	}
	if response.Result == nil && response.Error == nil {
		return nil, errors.New("message has neither method, result nor error")
	}
	return &response, nil
}
