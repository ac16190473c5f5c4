package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/rybalko/askfirm/internal/api"
	"github.com/rybalko/askfirm/internal/chunk"
	"github.com/rybalko/askfirm/internal/composer"
	"github.com/rybalko/askfirm/internal/config"
	"github.com/rybalko/askfirm/internal/extract"
	"github.com/rybalko/askfirm/internal/fetch"
	"github.com/rybalko/askfirm/internal/genai"
	"github.com/rybalko/askfirm/internal/pipeline"
	"github.com/rybalko/askfirm/internal/session"
	"github.com/rybalko/askfirm/internal/storage"
	"github.com/rybalko/askfirm/internal/websearch"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the askfirm server (foreground)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer()
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running askfirm server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return stopServer()
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show askfirm system status",
	RunE: func(cmd *cobra.Command, args []string) error {
		return showStatus()
	},
}

func pidFilePath(dataDir string) string {
	return filepath.Join(dataDir, "askfirm.pid")
}

func writePIDFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0o644)
}

func readPIDFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(data)))
}

func removePIDFile(path string) {
	os.Remove(path)
}

func setupLogging(level string) {
	logLevel := slog.LevelInfo
	switch {
	case strings.EqualFold(level, "debug"):
		logLevel = slog.LevelDebug
	case strings.EqualFold(level, "warn"):
		logLevel = slog.LevelWarn
	case strings.EqualFold(level, "error"):
		logLevel = slog.LevelError
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})))
}

// buildAnswerer wires the pipeline from configuration. store may be nil
// when the interaction log is disabled.
func buildAnswerer(cfg config.Config, store *storage.Store) *pipeline.Answerer {
	gemini := genai.New(cfg.Gemini.BaseURL, cfg.Gemini.APIKey)

	opts := pipeline.Options{
		Chat:            gemini,
		ChatModel:       cfg.Gemini.ChatModel,
		Extractor:       extract.NewExtractor(gemini, cfg.Gemini.ExtractModel),
		Search:          websearch.New(cfg.Search.APIKey, cfg.Search.EngineID),
		Embedder:        genai.NewModelEmbedder(gemini, cfg.Gemini.EmbedModel),
		Splitter:        chunk.NewSplitter(cfg.Retrieval.MaxChunkChars),
		Composer:        composer.New(0),
		TopK:            cfg.Retrieval.TopK,
		ResultCount:     cfg.Search.ResultCount,
		HistoryTurns:    cfg.Retrieval.HistoryTurns,
		MinSnippetChars: cfg.Fetch.MinSnippetChars,
	}
	if cfg.Fetch.Enabled {
		opts.Fetcher = fetch.New(
			time.Duration(cfg.Fetch.TimeoutSecs)*time.Second,
			cfg.Fetch.UserAgent,
			cfg.Fetch.MaxPageChars,
		)
	}
	if store != nil {
		opts.Recorder = store
	}
	return pipeline.NewAnswerer(opts)
}

func runServer() error {
	fmt.Fprintf(os.Stderr, "askfirm version %s\n", version)

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	setupLogging(cfg.Log.Level)

	// Check if a server is already running before claiming the PID file.
	pidPath := pidFilePath(cfg.Storage.DataDir)
	healthURL := fmt.Sprintf("http://127.0.0.1:%d/health", cfg.Server.Port)
	healthClient := &http.Client{Timeout: 2 * time.Second}
	if resp, err := healthClient.Get(healthURL); err == nil {
		resp.Body.Close()
		if pid, pidErr := readPIDFile(pidPath); pidErr == nil {
			printWarning("askfirm is already running (PID %d)", pid)
			return fmt.Errorf("server already running (PID %d)", pid)
		}
		printWarning("askfirm is already running on port %d", cfg.Server.Port)
		return fmt.Errorf("server already running on port %d", cfg.Server.Port)
	}
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("writing PID file: %w", err)
	}
	defer removePIDFile(pidPath)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := storage.Open(cfg.Storage.DataDir)
	if err != nil {
		return fmt.Errorf("opening storage: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "warning: closing storage: %v\n", err)
		}
	}()

	sessions := session.NewStore()
	answerer := buildAnswerer(cfg, store)
	handler := api.NewHandler(answerer, sessions, store)

	addr := fmt.Sprintf("127.0.0.1:%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: handler,
	}

	// MCP server over stdio in a goroutine.
	mcpSrv := api.NewMCPServer(api.MCPDeps{
		Answerer: answerer,
		Sessions: sessions,
		Log:      store,
	})
	stdioSrv := server.NewStdioServer(mcpSrv)
	go func() {
		if err := stdioSrv.Listen(ctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("MCP stdio server error", "error", err)
		}
	}()
	slog.Info("MCP server started (stdio transport)")

	errCh := make(chan error, 1)
	go func() {
		fmt.Fprintf(os.Stderr, "askfirm listening on %s\n", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		fmt.Fprintln(os.Stderr, "shutting down...")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func stopServer() error {
	cfg, err := config.Load()
	if err != nil {
		printError("could not load config: %v", err)
		return err
	}

	pidPath := pidFilePath(cfg.Storage.DataDir)
	pid, err := readPIDFile(pidPath)
	if err != nil {
		printError("askfirm is not running (no PID file)")
		return fmt.Errorf("not running: %w", err)
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		printError("could not find process %d", pid)
		return err
	}

	if err := process.Signal(syscall.SIGTERM); err != nil {
		printError("could not stop askfirm (PID %d): %v", pid, err)
		removePIDFile(pidPath)
		return err
	}

	printSuccess("Sent stop signal to askfirm (PID %d)", pid)
	return nil
}

func showStatus() error {
	cfg, err := config.Load()
	if err != nil {
		// Still show partial status even if config fails.
		printError("config error: %v", err)
		return nil
	}

	serverURL := fmt.Sprintf("http://127.0.0.1:%d", cfg.Server.Port)
	client := &http.Client{Timeout: 2 * time.Second}

	resp, err := client.Get(serverURL + "/health")
	running := false
	if err != nil {
		printStatus("Server", "stopped")
	} else {
		resp.Body.Close()
		if resp.StatusCode == 200 {
			running = true
			printStatus("Server", "running on port %d", cfg.Server.Port)
		} else {
			printStatus("Server", "error (HTTP %d)", resp.StatusCode)
		}
	}

	printStatus("Chat model", "%s", cfg.Gemini.ChatModel)
	printStatus("Extract model", "%s", cfg.Gemini.ExtractModel)
	printStatus("Embed model", "%s", cfg.Gemini.EmbedModel)
	printStatus("Full-page fetch", "%s", enabledLabel(cfg.Fetch.Enabled))

	if running {
		interResp, err := client.Get(serverURL + "/interactions?limit=100")
		if err == nil {
			var interactions []json.RawMessage
			if json.NewDecoder(interResp.Body).Decode(&interactions) == nil {
				printStatus("Interactions", "%s", countLabel(len(interactions), 100))
			}
			interResp.Body.Close()
		}
	}

	printStatus("Data dir", "%s", cfg.Storage.DataDir)
	return nil
}

func enabledLabel(b bool) string {
	if b {
		return "enabled"
	}
	return "disabled"
}

func countLabel(count, limit int) string {
	if count >= limit {
		return fmt.Sprintf("%d+", count)
	}
	return fmt.Sprintf("%d", count)
}
