package main

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"log"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"tailscale.com/tsnet"

	"github.com/imeyer/leaseqa/pkg/board"
	"github.com/imeyer/leaseqa/pkg/leaseqa"
)

func createConfigDir(dir string) error {
	err := os.MkdirAll(dir, 0o700)
	if err != nil {
		return err
	}

	err = os.MkdirAll(filepath.Join(dir, "tsnet"), 0o700)
	if err != nil {
		return err
	}

	return nil
}

// newLogger builds the process logger. Records also go to extra, when
// given, so they reach the OTLP log pipeline.
func newLogger(logLevel *slog.Level, extra slog.Handler) *slog.Logger {
	var handler slog.Handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		AddSource: true,
		Level:     logLevel,
	})
	if extra != nil {
		handler = teeHandler{handler, extra}
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)

	return logger
}

// teeHandler hands every record to each of its handlers.
type teeHandler []slog.Handler

func (t teeHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range t {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (t teeHandler) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, h := range t {
		if h.Enabled(ctx, r.Level) {
			errs = append(errs, h.Handle(ctx, r.Clone()))
		}
	}
	return errors.Join(errs...)
}

func (t teeHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make(teeHandler, len(t))
	for i, h := range t {
		out[i] = h.WithAttrs(attrs)
	}
	return out
}

func (t teeHandler) WithGroup(name string) slog.Handler {
	out := make(teeHandler, len(t))
	for i, h := range t {
		out[i] = h.WithGroup(name)
	}
	return out
}

func dataLocation() string {
	if dir, ok := os.LookupEnv("DATA_DIR"); ok {
		return dir
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return os.Getenv("DATA_DIR")
	}
	return filepath.Join(dir, "leaseqa")
}

func envOr(key, defaultVal string) string {
	if result, ok := os.LookupEnv(key); ok {
		return result
	}
	return defaultVal
}

func formatTimestamp(t time.Time) string {
	return t.Format("2006-01-02 15:04:05")
}

func formatDate(t time.Time) string {
	return t.Format("Jan 2, 2006")
}

func truncate(n int, s string) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return strings.TrimSpace(string(r[:n])) + "…"
}

func answerTypeLabel(t string) string {
	switch t {
	case "lawyer_opinion":
		return "Lawyer opinion"
	case "community_answer":
		return "Community answer"
	default:
		return "Answer"
	}
}

func templateFuncs() template.FuncMap {
	return template.FuncMap{
		"formatTimestamp": formatTimestamp,
		"formatDate":      formatDate,
		"folderName": func(folders []leaseqa.Folder, slug string) string {
			return board.DisplayName(folders, slug)
		},
		"plain":           board.PlainText,
		"truncate":        truncate,
		"answerTypeLabel": answerTypeLabel,
		"body": func(s string) template.HTML {
			// nosemgrep
			return template.HTML(parseHTMLLessStrict(s))
		},
		"contains": func(list []string, s string) bool {
			for _, v := range list {
				if v == s {
					return true
				}
			}
			return false
		},
		"indent": func(depth int) int {
			return min(depth, 8) * 24
		},
	}
}

func setupTemplates(files fs.FS) (*template.Template, error) {
	return template.New("any").Funcs(templateFuncs()).ParseFS(files, "tmpl/*.html")
}

func setupTsNetServer(ctx context.Context, config *Config, logger *slog.Logger) (*tsnet.Server, error) {
	err := createConfigDir(config.DataDir)
	if err != nil {
		logger.Info(fmt.Sprintf("creating configuration directory (%s) failed: %v", config.DataDir, err), "data-dir", config.DataDir)
	}

	s := NewTsNetServer(config.DataDir, config.Hostname)

	if config.TsnetLog {
		s.Logf = log.Printf
	}

	if err := s.Start(); err != nil {
		return nil, fmt.Errorf("starting tsnet server: %w", err)
	}

	lc, err := s.LocalClient()
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("creating tsnet local client: %w", err)
	}

	if err := checkTailscaleReady(ctx, lc, logger); err != nil {
		s.Close()
		return nil, fmt.Errorf("tailscale not ready: %w", err)
	}

	return s, nil
}

func createHTTPServer(handler http.Handler, addr string) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       30 * time.Second,
	}
}

// startListeners opens the plain and TLS listeners on the tailnet.
func startListeners(s *tsnet.Server) (net.Listener, net.Listener, error) {
	ln, err := s.Listen("tcp", ":80")
	if err != nil {
		return nil, nil, fmt.Errorf("creating non-TLS listener: %w", err)
	}

	tln, err := s.ListenTLS("tcp", ":443")
	if err != nil {
		ln.Close()
		return nil, nil, fmt.Errorf("creating TLS listener: %w", err)
	}

	return ln, tln, nil
}

func startServer(server *http.Server, ln net.Listener, logger *slog.Logger, scheme, hostname string) {
	logger.Info(fmt.Sprintf("Listening on %s://%s", scheme, hostname))
	if err := server.Serve(ln); err != nil && err != http.ErrServerClosed {
		logger.Error(fmt.Sprintf("%s server failed", scheme), slog.String("error", err.Error()))
	}
}

func waitForShutdown(sigChan chan os.Signal, ctx context.Context, logger *slog.Logger, servers ...*http.Server) int {
	sig := <-sigChan
	logger.Info("Shutting down gracefully", slog.String("signal", sig.String()))

	shutdownCtx, shutdownCancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer shutdownCancel()

	for _, srv := range servers {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Failed to gracefully shutdown server",
				slog.String("addr", srv.Addr),
				slog.String("error", err.Error()))
		}
	}

	logger.Info("Servers stopped")

	if sigNum, ok := sig.(syscall.Signal); ok {
		return 128 + int(sigNum)
	}
	return 0
}

func expandSNIName(ctx context.Context, lc TailscaleClient, hostname string, logger *slog.Logger) string {
	sni, ok := lc.ExpandSNIName(ctx, hostname)
	if !ok {
		logger.Error("error expanding SNI name")
		return hostname
	}
	return sni
}
