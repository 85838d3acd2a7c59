package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os/signal"
	"path/filepath"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	promcollect "github.com/prometheus/client_golang/prometheus/collectors"

	"git.home.luguber.info/inful/docvars/internal/build"
	"git.home.luguber.info/inful/docvars/internal/config"
	ferrors "git.home.luguber.info/inful/docvars/internal/foundation/errors"
	"git.home.luguber.info/inful/docvars/internal/logfields"
	"git.home.luguber.info/inful/docvars/internal/metrics"
	"git.home.luguber.info/inful/docvars/internal/watch"
)

// WatchCmd rebuilds whenever a source document or the configuration changes.
type WatchCmd struct {
	ReplacementFlags

	Serve    string        `help:"Serve the output directory (and metrics when enabled) on this address, e.g. :8080" placeholder:"ADDR"`
	Debounce time.Duration `help:"Quiet period before a rebuild starts" default:"300ms"`
	Interval time.Duration `help:"Also rebuild on a fixed interval; 0 disables" default:"0s"`
}

func (w *WatchCmd) Run(g *Global, root *CLI) error {
	ctx, cancel := signal.NotifyContext(g.Context, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := loadConfig(g, root, w.ReplacementFlags)
	if err != nil {
		return err
	}

	notifyOpts, closeNotifier := notifyOptions(g, cfg)
	defer closeNotifier()

	session := newWatchSession(g, root, w.ReplacementFlags, cfg, notifyOpts...)
	session.rebuild(ctx, "initial")

	watcher, err := watch.New(root.Config, watch.Options{
		QuietWindow: w.Debounce,
		Ignore:      []string{cfg.Output.Directory},
		Logger:      g.Logger,
	})
	if err != nil {
		return err
	}
	defer func() { _ = watcher.Close() }()
	if err := watcher.AddTree(cfg.Source); err != nil {
		return err
	}

	if w.Serve != "" {
		ln, err := net.Listen("tcp", w.Serve)
		if err != nil {
			return ferrors.WrapError(err, ferrors.CategoryRuntime, "failed to listen").
				WithContext("addr", w.Serve).
				Build()
		}
		srv := session.server()
		go func() {
			if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
				g.Logger.Error("HTTP server error", logfields.Error(err))
			}
		}()
		g.Logger.Info("Serving output", logfields.Addr(ln.Addr().String()))
		fmt.Fprintf(g.Stdout, "Serving %s on http://%s\n", cfg.Output.Directory, ln.Addr())
		defer func() {
			shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
			defer stop()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	if w.Interval > 0 {
		sched, err := watch.NewScheduler(g.Logger)
		if err != nil {
			return err
		}
		if err := sched.Every(ctx, "periodic-rebuild", w.Interval, func(ctx context.Context) {
			session.rebuild(ctx, "scheduled")
		}); err != nil {
			_ = sched.Stop()
			return err
		}
		sched.Start()
		defer func() { _ = sched.Stop() }()
	}

	return watcher.Run(ctx, func(ctx context.Context, t watch.Trigger) {
		if t.ConfigChanged {
			if next := session.reload(); next != nil {
				watcher.SetIgnore([]string{next.Output.Directory})
				if err := watcher.AddTree(next.Source); err != nil {
					session.log().Warn("Failed to watch source directory", logfields.Error(err))
				}
			}
		}
		session.rebuild(ctx, fmt.Sprintf("%d change(s)", t.Events))
	})
}

// watchSession holds the state shared by rebuilds and the HTTP server.
type watchSession struct {
	g         *Global
	root      *CLI
	overrides ReplacementFlags

	cfg      atomic.Pointer[config.Config]
	logger   atomic.Pointer[slog.Logger]
	registry *prom.Registry
	recorder *metrics.PrometheusRecorder
	opts     []build.Option

	// mu serializes rebuilds from file events and the scheduler.
	mu     sync.Mutex
	builds atomic.Int64
}

func newWatchSession(g *Global, root *CLI, overrides ReplacementFlags, cfg *config.Config, opts ...build.Option) *watchSession {
	reg := prom.NewRegistry()
	reg.MustRegister(promcollect.NewGoCollector(), promcollect.NewProcessCollector(promcollect.ProcessCollectorOpts{}))

	s := &watchSession{
		g:         g,
		root:      root,
		overrides: overrides,
		registry:  reg,
		recorder:  metrics.NewPrometheusRecorder(reg),
		opts:      opts,
	}
	s.cfg.Store(cfg)
	s.logger.Store(g.Logger)
	return s
}

func (s *watchSession) log() *slog.Logger {
	return s.logger.Load()
}

// reload re-reads the configuration file. On failure the previous
// configuration stays active and nil is returned. Safe to call while a rebuild
// is running; the new configuration and logger apply from the next rebuild.
func (s *watchSession) reload() *config.Config {
	next, err := readConfig(s.root, s.overrides)
	if err != nil {
		s.log().Error("Configuration reload failed; keeping previous configuration", logfields.Error(err))
		return nil
	}
	s.logger.Store(configLogger(s.g.Stderr, next, s.root.Verbose))
	s.cfg.Store(next)
	s.log().Info("Configuration reloaded", logfields.Tokens(next.Replacements().Len()))
	return next
}

// rebuild runs one build with the current configuration. Failures are logged
// and the session keeps watching.
func (s *watchSession) rebuild(ctx context.Context, reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	logger := s.log()
	opts := append([]build.Option{build.WithLogger(logger), build.WithRecorder(s.recorder)}, s.opts...)
	builder, err := build.NewBuilder(s.cfg.Load(), opts...)
	if err != nil {
		logger.Error("Cannot start build", logfields.Error(err))
		return
	}

	logger.Info("Rebuilding", slog.String("reason", reason))
	report, err := builder.Build(ctx)
	s.builds.Add(1)
	if err != nil {
		if ctx.Err() == nil {
			fmt.Fprintln(s.g.Stderr, ferrors.NewCLIErrorAdapter(false, logger).FormatError(err))
		}
		return
	}
	fmt.Fprintf(s.g.Stdout, "Rebuilt %d documents (%d replacements)\n", report.Documents, report.Replacements)
}

// server serves the current output directory, and the metrics endpoint when
// metrics.enabled is set.
func (s *watchSession) server() *http.Server {
	mux := http.NewServeMux()
	cfg := s.cfg.Load()
	if cfg.Metrics.Enabled {
		mux.Handle(cfg.Metrics.Path, metrics.HTTPHandler(s.registry))
	}
	mux.Handle("/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.FileServer(http.Dir(s.outputRoot())).ServeHTTP(w, r)
	}))
	return &http.Server{Handler: mux, ReadTimeout: 30 * time.Second, WriteTimeout: 30 * time.Second, IdleTimeout: 120 * time.Second}
}

func (s *watchSession) outputRoot() string {
	out := s.cfg.Load().Output.Directory
	if abs, err := filepath.Abs(out); err == nil {
		return abs
	}
	return out
}
