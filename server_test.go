package lsp

import (
	"context"
	"encoding/json"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/triberger/lsp-framework/jsonrpc"
)

// echoHandler serves each connection with a RequestHandler exposing an
// "echo" method.
type echoHandler struct{}

func (echoHandler) Handle(conn *Connection) {
	handler := NewRequestHandler(conn)
	handler.AddRequestHandler("echo", func(id jsonrpc.ID, params json.RawMessage) (any, error) {
		var text any
		if err := json.Unmarshal(params, &text); err != nil {
			return nil, err
		}
		return text, nil
	})
	_ = handler.Run(context.Background())
}

func newLocalAddr(t *testing.T) *net.TCPAddr {
	t.Helper()
	return &net.TCPAddr{IP: net.ParseIP("127.0.0.1"), Port: 0}
}

func TestNewServer(t *testing.T) {
	server, err := NewServer(newLocalAddr(t))
	if err != nil {
		t.Fatalf("NewServer() error = %v", err)
	}
	defer server.Close()

	if server.Addr() == nil {
		t.Error("Addr() = nil, want a bound address")
	}
}

func TestNewServer_AddressInUse(t *testing.T) {
	first, err := NewServer(newLocalAddr(t))
	if err != nil {
		t.Fatalf("NewServer() error = %v", err)
	}
	defer first.Close()

	_, err = NewServer(first.Addr().(*net.TCPAddr))
	if err == nil {
		t.Fatal("NewServer() on a bound address should fail")
	}
	if !strings.Contains(err.Error(), "listen") {
		t.Errorf("error = %v, want it wrapped with listen context", err)
	}
}

func TestServer_Close(t *testing.T) {
	server, err := NewServer(newLocalAddr(t))
	if err != nil {
		t.Fatalf("NewServer() error = %v", err)
	}

	if err := server.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	// Closing twice reports the listener error but must not panic.
	_ = server.Close()
}

func TestServer_Serve(t *testing.T) {
	server, err := NewServer(newLocalAddr(t))
	if err != nil {
		t.Fatalf("NewServer() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- server.Serve(ctx, echoHandler{})
	}()

	conn, err := net.Dial("tcp", server.Addr().String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	client := NewConnection(conn, conn)
	request, err := jsonrpc.NewRequest("echo", "hello over tcp")
	if err != nil {
		t.Fatalf("NewRequest() error = %v", err)
	}
	if err := client.Send(request); err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	message, _, err := client.Receive()
	if err != nil {
		t.Fatalf("Receive() error = %v", err)
	}
	response := message.(*jsonrpc.Response)

	var result string
	if err := json.Unmarshal(response.Result, &result); err != nil {
		t.Fatalf("unmarshal result: %v", err)
	}
	if result != "hello over tcp" {
		t.Errorf("result = %q, want %q", result, "hello over tcp")
	}

	cancel()
	select {
	case <-serveErr:
	case <-time.After(2 * time.Second):
		t.Fatal("Serve() did not stop after context cancellation")
	}
}

func TestServer_Serve_MultipleConnections(t *testing.T) {
	server, err := NewServer(newLocalAddr(t))
	if err != nil {
		t.Fatalf("NewServer() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		_ = server.Serve(ctx, echoHandler{})
	}()

	for i := 0; i < 3; i++ {
		conn, err := net.Dial("tcp", server.Addr().String())
		if err != nil {
			t.Fatalf("dial %d: %v", i, err)
		}

		client := NewConnection(conn, conn)
		request, err := jsonrpc.NewRequest("echo", "ping")
		if err != nil {
			t.Fatalf("NewRequest() error = %v", err)
		}
		if err := client.Send(request); err != nil {
			t.Fatalf("Send() %d error = %v", i, err)
		}
		if _, _, err := client.Receive(); err != nil {
			t.Fatalf("Receive() %d error = %v", i, err)
		}
		_ = conn.Close()
	}
}

func TestServer_Serve_ShutdownTimeoutBypassedByClose(t *testing.T) {
	server, err := NewServer(newLocalAddr(t), ServerShutdownTimeoutOption(time.Minute))
	if err != nil {
		t.Fatalf("NewServer() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- server.Serve(ctx, echoHandler{})
	}()

	// Give Serve a moment to start accepting.
	time.Sleep(50 * time.Millisecond)

	cancel()
	_ = server.Close()

	select {
	case <-serveErr:
	case <-time.After(2 * time.Second):
		t.Fatal("Serve() waited for the full shutdown timeout despite Close()")
	}
}
