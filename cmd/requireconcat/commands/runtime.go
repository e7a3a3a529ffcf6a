package commands

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"

	"git.home.luguber.info/inful/requireconcat/internal/build"
	"git.home.luguber.info/inful/requireconcat/internal/config"
	"git.home.luguber.info/inful/requireconcat/internal/eventstore"
	ferrors "git.home.luguber.info/inful/requireconcat/internal/foundation/errors"
	"git.home.luguber.info/inful/requireconcat/internal/logfields"
	"git.home.luguber.info/inful/requireconcat/internal/metrics"
	"git.home.luguber.info/inful/requireconcat/internal/notify"
	"git.home.luguber.info/inful/requireconcat/internal/sink"
)

// buildRuntime holds the optional side channels of a build command.
type buildRuntime struct {
	service   *build.DefaultBuildService
	recorder  metrics.Recorder
	store     *eventstore.SQLiteStore
	publisher notify.Publisher
	server    *http.Server
	addr      string // Bound metrics address, set when metrics are served
}

// newBuildRuntime wires the build service from cfg. History and metrics
// failures are fatal because the user asked for them; an unreachable NATS
// server only disables notifications.
func newBuildRuntime(cfg *config.Config, console io.Writer) (*buildRuntime, error) {
	rt := &buildRuntime{
		recorder:  metrics.NoopRecorder{},
		publisher: notify.NoopPublisher{},
	}

	if cfg.History.Path != "" {
		store, err := eventstore.NewSQLiteStore(cfg.History.Path)
		if err != nil {
			return nil, err
		}
		rt.store = store
	}

	if cfg.Notify.NATSURL != "" {
		pub, err := notify.NewNATSPublisher(cfg.Notify.NATSURL, cfg.Notify.Subject)
		if err != nil {
			slog.Warn("Build notifications disabled", logfields.Error(err), logfields.URL(cfg.Notify.NATSURL))
		} else {
			rt.publisher = pub
		}
	}

	if cfg.Metrics.ListenAddr != "" {
		reg := prom.NewRegistry()
		rt.recorder = metrics.NewPrometheusRecorder(reg)
		if err := rt.serveMetrics(cfg.Metrics.ListenAddr, reg); err != nil {
			rt.Close(context.Background())
			return nil, err
		}
	}

	rt.service = build.NewBuildService().
		WithSinkFactory(func(output string) (sink.Sink, error) {
			if output == "" {
				return sink.NewConsoleSink(console), nil
			}
			return sink.NewFileSink(output)
		}).
		WithPublisher(rt.publisher).
		WithRecorder(rt.recorder)
	if rt.store != nil {
		rt.service = rt.service.WithEventStore(rt.store)
	}
	return rt, nil
}

func (rt *buildRuntime) serveMetrics(addr string, reg *prom.Registry) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return ferrors.WrapError(err, ferrors.CategoryConfig, "failed to bind metrics listener").
			Fatal().
			WithContext("listen_addr", addr).
			Build()
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.HTTPHandler(reg))
	rt.addr = ln.Addr().String()
	rt.server = &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := rt.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Metrics server stopped", logfields.Error(err))
		}
	}()
	slog.Info("Serving metrics", slog.String("listen_addr", rt.addr))
	return nil
}

// Close releases every side channel. Errors are logged only.
func (rt *buildRuntime) Close(ctx context.Context) {
	if rt.server != nil {
		shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		if err := rt.server.Shutdown(shutdownCtx); err != nil {
			slog.Warn("Metrics server shutdown failed", logfields.Error(err))
		}
		cancel()
	}
	if err := rt.publisher.Close(); err != nil {
		slog.Warn("Failed to close notification publisher", logfields.Error(err))
	}
	if rt.store != nil {
		if err := rt.store.Close(); err != nil {
			slog.Warn("Failed to close history store", logfields.Error(err))
		}
	}
}
