package lsp

import (
	"bufio"
	"io"
	"strconv"
	"strings"
)

// DefaultContentType is the value assumed for incoming messages that carry
// no Content-Type header field.
const DefaultContentType = "application/vscode-jsonrpc; charset=utf-8"

// messageHeader is the parsed header block preceding a message body. It is
// built fresh for every message and never outlives the receive or send call
// that produced it.
type messageHeader struct {
	contentLength uint64
	contentType   string
}

// headerFields maps recognized field names to their setters. Fields not in
// this table are ignored so peers can introduce new ones without breaking us.
var headerFields = map[string]func(*messageHeader, string){
	"Content-Length": func(h *messageHeader, value string) {
		if n, err := strconv.ParseUint(value, 10, 64); err == nil {
			h.contentLength = n
		}
	},
	"Content-Type": func(h *messageHeader, value string) {
		h.contentType = value
	},
}

// readMessageHeader reads field lines until the blank line separating the
// header block from the body. The reader is left positioned at the first
// body byte.
func readMessageHeader(r *bufio.Reader) (messageHeader, error) {
	header := messageHeader{contentType: DefaultContentType}

	for {
		next, err := r.Peek(1)
		if err != nil {
			return header, connectionLost(err)
		}
		if next[0] == '\r' {
			break
		}
		if err := readMessageHeaderField(r, &header); err != nil {
			return header, err
		}
	}

	if _, err := r.Discard(1); err != nil { // \r
		return header, connectionLost(err)
	}

	next, err := r.Peek(1)
	if err != nil || next[0] != '\n' {
		return header, &ProtocolError{message: "invalid message header format"}
	}

	if _, err := r.Discard(1); err != nil { // \n
		return header, connectionLost(err)
	}

	return header, nil
}

// readMessageHeaderField consumes one header line and applies it to header.
// Lines without a ':' separator are skipped, matching the tolerance for
// unknown fields.
func readMessageHeaderField(r *bufio.Reader, header *messageHeader) error {
	line, err := r.ReadString('\n')
	if err != nil {
		return connectionLost(err)
	}

	name, value, found := strings.Cut(strings.TrimRight(line, "\r\n"), ":")
	if !found {
		return nil
	}

	if set, ok := headerFields[strings.TrimSpace(name)]; ok {
		set(header, strings.TrimSpace(value))
	}

	return nil
}

// writeMessageHeader emits the header block for a body of the given length.
// Outgoing messages always use the default content type, so only the
// Content-Length field is written.
func writeMessageHeader(w io.Writer, contentLength int) error {
	if contentLength <= 0 {
		return errEmptyMessageBody
	}
	_, err := w.Write([]byte("Content-Length: " + strconv.Itoa(contentLength) + "\r\n\r\n"))
	if err != nil {
		return connectionLost(err)
	}
	return nil
}
