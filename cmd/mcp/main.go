// The mcp entrypoint serves retrieval tools over stdio for MCP clients.
// Logs go to stderr so stdout stays a clean protocol channel.
package main

import (
	"context"
	"log"
	"log/slog"
	"os"

	mcpadapter "github.com/kirillkom/retrieval-core/internal/adapters/mcp"
	"github.com/kirillkom/retrieval-core/internal/bootstrap"
	"github.com/kirillkom/retrieval-core/internal/config"
	"github.com/kirillkom/retrieval-core/internal/observability/logging"
)

func main() {
	cfg := config.Load()
	logger := logging.NewJSONLoggerTo(os.Stderr, "retrieval-mcp", cfg.LogLevel)
	slog.SetDefault(logger)

	app, err := bootstrap.New(context.Background(), cfg, logger)
	if err != nil {
		log.Fatalf("bootstrap error: %v", err)
	}
	defer app.Close()

	server := mcpadapter.NewServer(app.SearchUC, app.Tracer, logger)
	if err := server.ServeStdio(); err != nil {
		log.Fatalf("mcp server error: %v", err)
	}
}
