// Command editor is a demo language-tool server. It listens for framed
// JSON-RPC connections, answers document/lineCount requests, and runs a
// small client session against itself to show the client side of the API.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"golang.org/x/sync/errgroup"

	lsp "github.com/triberger/lsp-framework"
	"github.com/triberger/lsp-framework/jsonrpc"
)

type toolHandler struct{}

func (toolHandler) Handle(conn *lsp.Connection) {
	handler := lsp.NewRequestHandler(conn)

	handler.AddRequestHandler("document/lineCount", func(id jsonrpc.ID, params json.RawMessage) (any, error) {
		var p struct {
			Text string `json:"text"`
		}
		if err := json.Unmarshal(params, &p); err != nil {
			return nil, &jsonrpc.ResponseError{Code: jsonrpc.InvalidParams, Message: err.Error()}
		}
		return map[string]int{"lines": strings.Count(p.Text, "\n") + 1}, nil
	})

	handler.AddNotificationHandler("document/didSave", func(params json.RawMessage) error {
		slog.Info("document saved")
		return nil
	})

	if err := handler.Run(context.Background()); err != nil {
		slog.Debug("connection ended", "error", err)
	}
}

// runDemoSession connects to the server and issues one request, logging the
// result.
func runDemoSession(addr string) error {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return err
	}
	defer conn.Close()

	client := lsp.NewConnection(conn, conn)
	request, err := jsonrpc.NewRequest("document/lineCount", map[string]string{"text": "alpha\nbeta\ngamma"})
	if err != nil {
		return err
	}
	if err := client.Send(request); err != nil {
		return err
	}

	message, _, err := client.Receive()
	if err != nil {
		return err
	}
	response, ok := message.(*jsonrpc.Response)
	if !ok || response.Error != nil {
		slog.Error("unexpected reply", "message", message)
		return nil
	}

	var result map[string]int
	if err := json.Unmarshal(response.Result, &result); err != nil {
		return err
	}
	slog.Info("demo request answered", "lines", result["lines"])
	return nil
}

func main() {
	configPath := flag.String("config", "", "path to a TOML config file")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	addr, err := net.ResolveTCPAddr("tcp", cfg.Addr)
	if err != nil {
		slog.Error("invalid listen address", "addr", cfg.Addr, "error", err)
		os.Exit(1)
	}

	serverOpts := []lsp.ServerOption{
		lsp.ServerShutdownTimeoutOption(cfg.ShutdownTimeout),
	}
	if cfg.MaxContentLength > 0 {
		serverOpts = append(serverOpts, lsp.ServerConnOptions(lsp.MaxContentLengthOption(cfg.MaxContentLength)))
	}

	server, err := lsp.NewServer(addr, serverOpts...)
	if err != nil {
		slog.Error("failed to start server", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return server.Serve(ctx, toolHandler{})
	})
	group.Go(func() error {
		return runDemoSession(server.Addr().String())
	})

	if err := group.Wait(); err != nil && ctx.Err() == nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}
