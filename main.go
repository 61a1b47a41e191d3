// ABOUTME: Entry point for the CRAS stream client
// ABOUTME: Parses CLI flags and runs one playback or capture stream session
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Resonate-Protocol/cras-go/internal/app"
	"github.com/Resonate-Protocol/cras-go/internal/config"
	"github.com/Resonate-Protocol/cras-go/internal/logging"
	"github.com/Resonate-Protocol/cras-go/internal/ui"
	"github.com/Resonate-Protocol/cras-go/internal/version"
	"github.com/Resonate-Protocol/cras-go/pkg/metrics"
)

var (
	configPath  = flag.String("config", "", "Path to YAML config file")
	input       = flag.String("input", "", "Audio file to stream (default: 440Hz test tone)")
	output      = flag.String("output", "", "WAV file receiving the streamed audio")
	direction   = flag.String("direction", "", "Stream direction: playback or capture (overrides config)")
	duration    = flag.Duration("duration", 0, "Stop after this much audio (0 = until input ends)")
	streamID    = flag.Uint("stream-id", 1, "Stream id")
	realtime    = flag.Bool("realtime", true, "Pace the server at the stream rate")
	logFile     = flag.String("log-file", "", "Log file path (default: cras-go.log with the TUI)")
	metricsAddr = flag.String("metrics-addr", "", "Serve Prometheus metrics on this address")
	noTUI       = flag.Bool("no-tui", false, "Disable TUI, use streaming logs instead")
	showVersion = flag.Bool("version", false, "Print version and exit")
)

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Printf("%s %s\n", version.Product, version.Version)
		return
	}

	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if *direction != "" {
		cfg.Stream.Direction = *direction
		if err := cfg.Stream.Validate(); err != nil {
			return fmt.Errorf("stream config: %w", err)
		}
	}
	if *logFile != "" {
		cfg.Logging.File = *logFile
	}
	if *metricsAddr != "" {
		cfg.Metrics.Enabled = true
		cfg.Metrics.Address = *metricsAddr
	}

	useTUI := !*noTUI
	if useTUI && cfg.Logging.File == "" {
		cfg.Logging.File = "cras-go.log"
	}

	// Set up logging
	var logOut io.Writer = os.Stdout
	if cfg.Logging.File != "" {
		f, err := os.OpenFile(cfg.Logging.File, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
		if err != nil {
			return fmt.Errorf("error opening log file: %w", err)
		}
		defer func() { _ = f.Close() }()

		if useTUI {
			// TUI mode: log only to file
			logOut = f
		} else {
			logOut = io.MultiWriter(os.Stdout, f)
		}
	}
	logger, err := logging.New(cfg.Logging, logOut)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	logger.Info("starting", slog.String("product", version.Product), slog.String("version", version.Version))

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		reg := prometheus.NewRegistry()
		m = metrics.New(reg)
		srv := serveMetrics(cfg.Metrics.Address, reg, logger)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	session := app.New(app.Config{
		StreamID: uint32(*streamID),
		Stream:   cfg.Stream,
		Input:    *input,
		Output:   *output,
		Duration: *duration,
		Realtime: *realtime,
	}, logger, m)

	// TUI setup
	var tuiProg *tea.Program
	tuiDone := make(chan struct{})
	if useTUI {
		ctrl := ui.NewControl()
		tuiProg = ui.Run(streamInfo(cfg), ctrl)
		go func() {
			defer close(tuiDone)
			if _, err := tuiProg.Run(); err != nil {
				logger.Error("TUI failed", slog.Any("error", err))
			}
			stop()
		}()
		go func() {
			select {
			case <-ctrl.Quit:
				logger.Info("received quit signal from TUI")
				stop()
			case <-ctx.Done():
			}
		}()
		go statusUpdateLoop(ctx, session, tuiProg)
	} else {
		close(tuiDone)
	}

	runErr := session.Run(ctx)
	if runErr != nil {
		logger.Error("session failed", slog.Any("error", runErr))
	}

	status := session.Status()
	logger.Info("session ended",
		slog.String("state", status.State),
		slog.Uint64("buffers", status.Buffers),
		slog.Uint64("frames", status.Frames),
	)

	if tuiProg != nil {
		tuiProg.Send(statusMsg(status))
		// Keep the final state on screen until the user quits
		<-ctx.Done()
		tuiProg.Quit()
	}
	<-tuiDone

	return runErr
}

func streamInfo(cfg *config.Config) ui.StreamInfo {
	source := *input
	if source == "" {
		source = "test tone"
	}
	return ui.StreamInfo{
		StreamID:  uint32(*streamID),
		Direction: cfg.Stream.Direction,
		Format:    fmt.Sprintf("%s %dHz %dch", cfg.Stream.Format, cfg.Stream.Rate, cfg.Stream.Channels),
		BlockSize: uint32(cfg.Stream.BlockSize),
		Rate:      cfg.Stream.Rate,
		Source:    source,
		Output:    *output,
	}
}

func serveMetrics(addr string, reg *prometheus.Registry, logger *slog.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux}

	go func() {
		logger.Info("serving metrics", slog.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", slog.Any("error", err))
		}
	}()
	return srv
}

func statusMsg(status app.Status) ui.StatusMsg {
	return ui.StatusMsg{
		State:     status.State,
		Buffers:   status.Buffers,
		Frames:    status.Frames,
		Requests:  status.Requests,
		Errors:    status.Errors,
		LastError: status.LastError,
	}
}

// statusUpdateLoop periodically updates the TUI with session progress
func statusUpdateLoop(ctx context.Context, session *app.Session, prog *tea.Program) {
	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()

	// Use a slower ticker for expensive runtime stats to avoid GC pauses
	runtimeStatsTicker := time.NewTicker(2 * time.Second)
	defer runtimeStatsTicker.Stop()

	for {
		select {
		case <-runtimeStatsTicker.C:
			var mem runtime.MemStats
			runtime.ReadMemStats(&mem)
			prog.Send(ui.StatusMsg{
				Goroutines: runtime.NumGoroutine(),
				MemAlloc:   mem.Alloc,
			})

		case <-ticker.C:
			prog.Send(statusMsg(session.Status()))

		case <-ctx.Done():
			return
		}
	}
}
