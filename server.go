package main

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"path/filepath"
	"time"

	"tailscale.com/ipn/ipnstate"
	"tailscale.com/tsnet"
	tsnetlog "tailscale.com/types/logger"

	"github.com/imeyer/leaseqa/middleware"
	"github.com/imeyer/leaseqa/pkg/session"
)

// TailscaleClient is the part of the tsnet local client used at startup.
type TailscaleClient interface {
	ExpandSNIName(ctx context.Context, name string) (fqdn string, ok bool)
	Status(ctx context.Context) (*ipnstate.Status, error)
	StatusWithoutPeers(ctx context.Context) (*ipnstate.Status, error)
}

var (
	tailscalePollInterval  = 5 * time.Second
	tailscaleLoginInterval = 30 * time.Second
)

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func checkTailscaleReady(ctx context.Context, lc TailscaleClient, logger *slog.Logger) error {
	for {
		st, err := lc.Status(ctx)
		if err != nil {
			return fmt.Errorf("error retrieving tailscale status: %w", err)
		}

		var wait time.Duration
		switch st.BackendState {
		case "NoState", "Starting", "NeedsMachineAuth":
			logger.DebugContext(ctx, "waiting for tsnet", slog.String("state", st.BackendState))
			wait = tailscalePollInterval
		case "NeedsLogin":
			logger.InfoContext(ctx, "needs login to tailscale", slog.String("auth_url", st.AuthURL))
			wait = tailscaleLoginInterval
		case "Stopped":
			logger.InfoContext(ctx, "tsnet stopped")
			return nil
		case "Running":
			nopeers, err := lc.StatusWithoutPeers(ctx)
			if err != nil {
				logger.ErrorContext(ctx, err.Error())
				return nil
			}
			logger.InfoContext(ctx, "tsnet running", "certDomains", nopeers.CertDomains)
			return nil
		default:
			return fmt.Errorf("unexpected tailscale state %q", st.BackendState)
		}

		if err := sleepCtx(ctx, wait); err != nil {
			return err
		}
	}
}

func NewTsNetServer(dataDir, hostname string) *tsnet.Server {
	return &tsnet.Server{
		Dir:      filepath.Join(dataDir, "tsnet"),
		Hostname: hostname,
		UserLogf: tsnetlog.Discard,
		Logf:     tsnetlog.Discard,
	}
}

// LeaseService renders the LeaseQA pages. It holds no domain data: every
// request reads from the backend through a client bound to the visitor's
// browser session.
type LeaseService struct {
	backendFor BackendFactory
	sessions   *session.Registry
	auth       *SessionAuthProvider
	logger     *slog.Logger
	tmpls      *template.Template
	telemetry  *TelemetryConfig
	maxUpload  int64
	version    string
	gitSha     string
	now        func() time.Time
}

func NewLeaseService(backendFor BackendFactory,
	sessions *session.Registry,
	logger *slog.Logger,
	tmpls *template.Template,
	telemetry *TelemetryConfig,
	config *Config,
	version string,
	gitSha string,
) *LeaseService {
	return &LeaseService{
		backendFor: backendFor,
		sessions:   sessions,
		auth:       NewSessionAuthProvider(sessions, backendFor, config.SessionTTL, config.SecureCookies, logger),
		logger:     logger,
		tmpls:      tmpls,
		telemetry:  telemetry,
		maxUpload:  middleware.DefaultMaxUploadBytes,
		version:    version,
		gitSha:     gitSha,
		now:        time.Now,
	}
}

// entry returns the browser session the session middleware resolved.
func (s *LeaseService) entry(r *http.Request) (*session.Entry, bool) {
	return s.sessions.Get(middleware.GetSessionID(r.Context()))
}

// backend returns a client carrying the visitor's backend cookies.
func (s *LeaseService) backend(r *http.Request) Backend {
	if e, ok := s.entry(r); ok {
		return s.backendFor(e.Jar)
	}
	return s.backendFor(nil)
}

var errNoSession = errors.New("no browser session")
