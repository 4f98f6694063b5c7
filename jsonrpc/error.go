package jsonrpc

import (
	"encoding/json"
	"strconv"
)

// ErrorCode is a JSON-RPC error code.
type ErrorCode int

// Standard JSON-RPC 2.0 error codes.
const (
	ParseError     ErrorCode = -32700
	InvalidRequest ErrorCode = -32600
	MethodNotFound ErrorCode = -32601
	InvalidParams  ErrorCode = -32602
	InternalError  ErrorCode = -32603
)

// ResponseError is the error member of a failed response. Handlers may
// return a *ResponseError to control the code and data sent to the peer;
// any other error is reported as InternalError.
type ResponseError struct {
	Code    ErrorCode       `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (e *ResponseError) Error() string {
	return "jsonrpc error " + strconv.Itoa(int(e.Code)) + ": " + e.Message
}
