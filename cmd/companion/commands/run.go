package commands

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"git.home.luguber.info/inful/companion/internal/companion"
	"git.home.luguber.info/inful/companion/internal/config"
	"git.home.luguber.info/inful/companion/internal/events"
	ferrors "git.home.luguber.info/inful/companion/internal/foundation/errors"
	"git.home.luguber.info/inful/companion/internal/logfields"
	"git.home.luguber.info/inful/companion/internal/metrics"
)

const consoleBuffer = 256

// RunCmd implements the 'run' command.
type RunCmd struct {
	MetricsListen string `name:"metrics-listen" help:"Serve Prometheus metrics on this address (overrides metrics.listen)"`
	NoWatch       bool   `name:"no-watch" help:"Do not reload the configuration file on change"`
	Interactive   bool   `short:"i" help:"Read user messages from stdin, one per line"`
}

func (r *RunCmd) Run(g *Global, root *CLI) error {
	cfg, err := root.LoadConfig()
	if err != nil {
		return err
	}
	if r.MetricsListen != "" {
		cfg.Metrics.Listen = r.MetricsListen
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	return RunCompanion(ctx, cfg, root.Config, r, out(g), os.Stdin)
}

// RunCompanion runs the engine, the console printer and the optional metrics endpoint until
// ctx is done.
func RunCompanion(ctx context.Context, cfg *config.Config, configPath string, r *RunCmd, w io.Writer, in io.Reader) error {
	reg := prom.NewRegistry()
	opts := []companion.Option{companion.WithRecorder(metrics.NewPrometheusRecorder(reg))}
	if !r.NoWatch {
		opts = append(opts, companion.WithConfigWatch(configPath, 0))
	}

	e, err := companion.New(cfg, opts...)
	if err != nil {
		return err
	}

	notes, unsubNotes := events.Subscribe[events.NotificationAccepted](e.Bus(), consoleBuffer)
	defer unsubNotes()
	reloads, unsubReloads := events.Subscribe[events.ConfigReloaded](e.Bus(), 4)
	defer unsubReloads()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return e.Run(gctx) })
	g.Go(func() error {
		printConsole(w, notes, reloads)
		return nil
	})
	if cfg.Metrics.Listen != "" {
		g.Go(func() error { return serveMetrics(gctx, cfg.Metrics.Listen, reg) })
	}
	if r.Interactive {
		// Scanner reads cannot be interrupted; the goroutine ends with the process.
		go readMessages(gctx, e, in)
	}

	slog.Info("Companion started, waiting for shutdown signal")
	return g.Wait()
}

// printConsole prints deliveries until the bus closes the notification channel.
func printConsole(w io.Writer, notes <-chan events.NotificationAccepted, reloads <-chan events.ConfigReloaded) {
	for {
		select {
		case evt, ok := <-notes:
			if !ok {
				return
			}
			fmt.Fprintf(w, "[%s] %-11s %s\n", evt.Timestamp.Local().Format("15:04"), evt.Source, evt.Text)
		case evt, ok := <-reloads:
			if !ok {
				reloads = nil
				continue
			}
			fmt.Fprintf(w, "[%s] configuration reloaded (%d messages/hour)\n",
				evt.ReloadedAt.Local().Format("15:04"), evt.MessagesPerHour)
		}
	}
}

func readMessages(ctx context.Context, e *companion.Engine, in io.Reader) {
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}
		if _, err := e.Say(ctx, scanner.Text()); err != nil && !ferrors.HasCategory(err, ferrors.CategoryValidation) {
			slog.Warn("Failed to record message", logfields.Error(err))
		}
	}
}

func serveMetrics(ctx context.Context, addr string, reg *prom.Registry) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.HTTPHandler(reg))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	slog.Info("Serving metrics", slog.String("addr", addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return ferrors.WrapError(err, ferrors.CategoryRuntime, "metrics server failed").
			WithContext("addr", addr).Build()
	}
	return nil
}
