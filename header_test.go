package lsp

import (
	"bufio"
	"bytes"
	"errors"
	"strings"
	"testing"
)

func TestReadMessageHeader(t *testing.T) {
	tests := []struct {
		name       string
		input      string
		wantLength uint64
		wantType   string
	}{
		{
			name:       "content length only",
			input:      "Content-Length: 18\r\n\r\n",
			wantLength: 18,
			wantType:   DefaultContentType,
		},
		{
			name:       "content length and type",
			input:      "Content-Length: 5\r\nContent-Type: application/vscode-jsonrpc; charset=utf-8\r\n\r\n",
			wantLength: 5,
			wantType:   "application/vscode-jsonrpc; charset=utf-8",
		},
		{
			name:       "fields in reverse order",
			input:      "Content-Type: application/vscode-jsonrpc\r\nContent-Length: 7\r\n\r\n",
			wantLength: 7,
			wantType:   "application/vscode-jsonrpc",
		},
		{
			name:       "unknown field ignored",
			input:      "X-Custom: whatever\r\nContent-Length: 3\r\n\r\n",
			wantLength: 3,
			wantType:   DefaultContentType,
		},
		{
			name:       "whitespace around name and value trimmed",
			input:      "  Content-Length  :   42  \r\n\r\n",
			wantLength: 42,
			wantType:   DefaultContentType,
		},
		{
			name:       "line without separator skipped",
			input:      "not a header field\r\nContent-Length: 9\r\n\r\n",
			wantLength: 9,
			wantType:   DefaultContentType,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			header, err := readMessageHeader(bufio.NewReader(strings.NewReader(tt.input)))
			if err != nil {
				t.Fatalf("readMessageHeader() error = %v", err)
			}
			if header.contentLength != tt.wantLength {
				t.Errorf("contentLength = %d, want %d", header.contentLength, tt.wantLength)
			}
			if header.contentType != tt.wantType {
				t.Errorf("contentType = %q, want %q", header.contentType, tt.wantType)
			}
		})
	}
}

func TestReadMessageHeader_LeavesReaderAtBody(t *testing.T) {
	r := bufio.NewReader(strings.NewReader("Content-Length: 4\r\n\r\nbody"))

	header, err := readMessageHeader(r)
	if err != nil {
		t.Fatalf("readMessageHeader() error = %v", err)
	}
	if header.contentLength != 4 {
		t.Fatalf("contentLength = %d, want 4", header.contentLength)
	}

	rest := make([]byte, 4)
	if _, err := r.Read(rest); err != nil {
		t.Fatalf("reading body: %v", err)
	}
	if string(rest) != "body" {
		t.Errorf("body = %q, want %q", rest, "body")
	}
}

func TestReadMessageHeader_ConnectionLost(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{name: "empty stream", input: ""},
		{name: "stream ends after field line", input: "Content-Length: 5\r\n"},
		{name: "stream ends mid line", input: "Content-Len"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := readMessageHeader(bufio.NewReader(strings.NewReader(tt.input)))

			var connErr *ConnectionError
			if !errors.As(err, &connErr) {
				t.Fatalf("readMessageHeader() error = %v, want *ConnectionError", err)
			}
		})
	}
}

func TestReadMessageHeader_MalformedTerminator(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{name: "carriage return without line feed", input: "Content-Length: 5\r\n\rX"},
		{name: "stream ends after carriage return", input: "Content-Length: 5\r\n\r"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := readMessageHeader(bufio.NewReader(strings.NewReader(tt.input)))

			var protoErr *ProtocolError
			if !errors.As(err, &protoErr) {
				t.Fatalf("readMessageHeader() error = %v, want *ProtocolError", err)
			}
		})
	}
}

func TestWriteMessageHeader(t *testing.T) {
	var buf bytes.Buffer

	if err := writeMessageHeader(&buf, 42); err != nil {
		t.Fatalf("writeMessageHeader() error = %v", err)
	}

	want := "Content-Length: 42\r\n\r\n"
	if buf.String() != want {
		t.Errorf("writeMessageHeader() wrote %q, want %q", buf.String(), want)
	}
}

func TestWriteMessageHeader_ZeroLength(t *testing.T) {
	var buf bytes.Buffer

	if err := writeMessageHeader(&buf, 0); err == nil {
		t.Fatal("writeMessageHeader() with zero length should fail")
	}
	if buf.Len() != 0 {
		t.Errorf("writeMessageHeader() wrote %q, want nothing", buf.String())
	}
}
