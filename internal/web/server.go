package web

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/hpungsan/buddy/internal/ops"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static/*
var staticFS embed.FS

// NewServer creates the HTTP server for the Buddy dashboard.
func NewServer(deps *ops.Deps, version, bind string, port int) *http.Server {
	return &http.Server{
		Addr:              fmt.Sprintf("%s:%d", bind, port),
		Handler:           NewHandler(deps, version),
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// NewHandler builds the routed and wrapped dashboard handler.
func NewHandler(deps *ops.Deps, version string) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("component", "web"))

	templateSub, err := fs.Sub(templateFS, "templates")
	if err != nil {
		logger.Fatal("failed to create template sub-FS", zap.Error(err))
	}
	staticSub, err := fs.Sub(staticFS, "static")
	if err != nil {
		logger.Fatal("failed to create static sub-FS", zap.Error(err))
	}

	h := &Handlers{
		deps:     deps,
		logger:   logger,
		renderer: NewRenderer(templateSub, version, logger),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/context", http.StatusFound)
	})
	mux.HandleFunc("GET /context", h.HandleList)
	mux.HandleFunc("GET /context/summary", h.HandleSummary)
	mux.HandleFunc("GET /context/export", h.HandleExport)
	mux.HandleFunc("GET /context/items/{id}", h.HandleDetail)
	mux.HandleFunc("DELETE /context/items/{id}", h.HandleDelete)
	mux.HandleFunc("POST /context/clear", h.HandleClear)
	mux.HandleFunc("GET /status", h.HandleStatus)
	mux.Handle("GET /metrics", deps.Metrics.Handler())
	mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServerFS(staticSub)))

	// The metrics middleware sits closest to the mux so it sees the matched
	// route pattern.
	return chain(mux,
		securityHeaders,
		requestID,
		recovery(logger),
		requestLogger(logger),
		recordMetrics(deps),
	)
}

// Run starts the HTTP server and handles graceful shutdown on SIGINT/SIGTERM.
func Run(srv *http.Server, logger *zap.Logger) error {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	fmt.Fprintf(os.Stderr, "Buddy dashboard running at http://%s\n", srv.Addr)
	logger.Info("dashboard listening", zap.String("addr", srv.Addr))

	if strings.Contains(srv.Addr, "0.0.0.0") || strings.Contains(srv.Addr, "::") {
		fmt.Fprintln(os.Stderr, "WARNING: Server is binding to all interfaces and may be accessible from the network")
	}

	select {
	case err := <-errCh:
		return err
	case <-sigCh:
		logger.Info("dashboard shutting down")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(ctx)
	}
}
