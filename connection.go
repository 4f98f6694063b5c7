// Package lsp implements the length-delimited transport framing used by
// JSON-RPC based editor protocols. It converts a bidirectional byte stream
// into discrete messages and back: a line-based header block announcing the
// body length, followed by exactly that many bytes of UTF-8 JSON.
package lsp

import (
	"bufio"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"sync"

	"github.com/triberger/lsp-framework/jsonrpc"
)

// contentTypePrefix is the MIME type every incoming Content-Type value must
// start with.
const contentTypePrefix = "application/vscode-jsonrpc"

// errEmptyMessageBody is returned when a message serializes to zero bytes.
// That never happens for well-formed jsonrpc values, so hitting it means a
// broken caller rather than a wire-level problem.
var errEmptyMessageBody = errors.New("message body is empty")

// Connection frames messages over one stream pair. It borrows the streams,
// which must outlive it, and holds no message state across calls: each
// Receive or Send is a self-contained transaction.
//
// All methods are safe for concurrent use. A single mutex serializes the
// receive path and every send path, so a header and its body are always
// contiguous on the wire and reads never observe a torn frame. This also
// covers stream implementations (a duplex pipe, for example) that are not
// independently thread-safe per direction.
type Connection struct {
	reader *bufio.Reader
	writer *bufio.Writer

	opts options

	// mu guards all stream access, reads and writes alike.
	mu sync.Mutex
}

// NewConnection creates a Connection over the given stream pair. The reader
// and writer are borrowed; closing them is the caller's responsibility and
// unblocks any pending Receive.
func NewConnection(r io.Reader, w io.Writer, opt ...Option) *Connection {
	var opts options
	for _, o := range opt {
		o(&opts)
	}
	checkOptions(&opts)

	return &Connection{
		reader: bufio.NewReader(r),
		writer: bufio.NewWriter(w),
		opts:   opts,
	}
}

// Receive reads one framed body from the stream and decodes it. A top-level
// JSON object decodes to a single message, a top-level array to a batch;
// exactly one of the two return values is non-nil on success.
//
// A closed stream yields a *ConnectionError. Framing violations yield a
// *ProtocolError after the entire declared body has been consumed, so the
// stream stays positioned at the start of the next message and the caller
// may continue receiving. Decode errors from the jsonrpc layer propagate
// unchanged.
//
// Receive blocks until a full message arrives or the stream reports
// closure; apply timeouts at the stream layer if they are needed.
func (c *Connection) Receive() (jsonrpc.Message, jsonrpc.MessageBatch, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, err := c.reader.Peek(1); err != nil {
		return nil, nil, connectionLost(err)
	}

	header, err := readMessageHeader(c.reader)
	if err != nil {
		return nil, nil, err
	}

	if header.contentLength == 0 {
		return nil, nil, &ProtocolError{message: "missing or zero Content-Length"}
	}

	if header.contentLength > c.opts.maxContentLength {
		// Skip the oversized body so the stream stays consistent for the
		// next message.
		if _, err := io.CopyN(io.Discard, c.reader, int64(header.contentLength)); err != nil {
			return nil, nil, connectionLost(err)
		}
		return nil, nil, &ProtocolError{message: "message exceeds maximum content length"}
	}

	content := make([]byte, header.contentLength)
	if _, err := io.ReadFull(c.reader, content); err != nil {
		return nil, nil, connectionLost(err)
	}

	// Validate only after the entire body has been read so a rejected
	// message leaves no unread bytes behind.
	if err := validateContentType(header.contentType); err != nil {
		return nil, nil, err
	}

	return jsonrpc.DecodeMessage(content)
}

// Send frames and writes a single message, flushing the stream before it
// returns.
func (c *Connection) Send(message jsonrpc.Message) error {
	content, err := json.Marshal(message)
	if err != nil {
		return err
	}
	return c.writeMessage(content)
}

// SendBatch frames and writes an ordered batch as one body containing a
// JSON array. Input order is preserved.
func (c *Connection) SendBatch(batch jsonrpc.MessageBatch) error {
	content, err := json.Marshal(batch)
	if err != nil {
		return err
	}
	return c.writeMessage(content)
}

func (c *Connection) writeMessage(content []byte) error {
	if len(content) == 0 {
		return errEmptyMessageBody
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := writeMessageHeader(c.writer, len(content)); err != nil {
		return err
	}
	if _, err := c.writer.Write(content); err != nil {
		return connectionLost(err)
	}
	if err := c.writer.Flush(); err != nil {
		return connectionLost(err)
	}
	return nil
}

// validateContentType checks the MIME prefix and, when present, the charset
// parameter. Only the literal spellings utf-8 and utf8 are accepted; the
// comparison is case-sensitive.
func validateContentType(contentType string) error {
	if !strings.HasPrefix(contentType, contentTypePrefix) {
		return &ProtocolError{message: "unsupported or invalid content type: " + contentType}
	}

	const charsetKey = "charset="
	if idx := strings.Index(contentType, charsetKey); idx >= 0 {
		charset := contentType[idx+len(charsetKey):]
		if semi := strings.IndexByte(charset, ';'); semi >= 0 {
			charset = charset[:semi]
		}
		charset = strings.TrimSpace(charset)

		if charset != "utf-8" && charset != "utf8" {
			return &ProtocolError{message: "unsupported or invalid character encoding: " + charset}
		}
	}

	return nil
}
