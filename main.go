package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/openclaw/qrgen/api"
	"github.com/openclaw/qrgen/config"
	"github.com/openclaw/qrgen/encoder"
	"github.com/openclaw/qrgen/store"
	"github.com/openclaw/qrgen/studio"
)

var version = "v0.1.0"

func main() {
	root := &cobra.Command{
		Use:          "qrgen",
		Short:        "QR code generator page and CLI",
		SilenceUsage: true,
	}

	var configPath string
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "Path to config file")

	// --- serve command -------------------------------------------------------
	root.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Serve the QR code generator page",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(configPath)
		},
	})

	// --- generate command ----------------------------------------------------
	var (
		genSize    int
		genOut     string
		genEncoder string
	)
	genCmd := &cobra.Command{
		Use:   "generate [text]",
		Short: "Render a QR code to a PNG file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGenerate(configPath, args[0], genSize, genOut, genEncoder)
		},
	}
	genCmd.Flags().IntVarP(&genSize, "size", "s", 0, "Pixel size (one of the configured presets)")
	genCmd.Flags().StringVarP(&genOut, "out", "o", "qrcode.png", "Output file")
	genCmd.Flags().StringVar(&genEncoder, "encoder", "", "Encoder: image or surface (default from config)")
	root.AddCommand(genCmd)

	// --- history command -----------------------------------------------------
	var histLimit int
	histCmd := &cobra.Command{
		Use:   "history",
		Short: "List recently generated QR codes",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(configPath, histLimit)
		},
	}
	histCmd.Flags().IntVarP(&histLimit, "limit", "n", 20, "Number of entries")
	root.AddCommand(histCmd)

	// --- status command ------------------------------------------------------
	var statusAddr string
	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Check a running qrgen server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(statusAddr, os.Stdout)
		},
	}
	statusCmd.Flags().StringVar(&statusAddr, "addr", "http://localhost:8565", "Server HTTP address")
	root.AddCommand(statusCmd)

	// --- version command -----------------------------------------------------
	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("qrgen %s\n", version)
		},
	})

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger(level string) *slog.Logger {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))
}

func controllerConfig(cfg *config.Config, log *slog.Logger) studio.Config {
	return studio.Config{
		Sizes:           cfg.Sizes,
		DefaultSize:     cfg.DefaultSize,
		AnimationDelay:  cfg.AnimationDelay.Duration,
		SlideDuration:   cfg.Notification.Slide.Duration,
		VisibleDuration: cfg.Notification.Visible.Duration,
		Log:             log,
	}
}

// openHistory returns nil when the generation log is disabled.
func openHistory(cfg *config.Config) (*store.HistoryStore, error) {
	if !cfg.History {
		return nil, nil
	}
	if err := cfg.EnsureDataDir(); err != nil {
		return nil, fmt.Errorf("ensure data dir: %w", err)
	}
	h, err := store.NewHistoryStore(cfg.HistoryPath())
	if err != nil {
		return nil, fmt.Errorf("open history store: %w", err)
	}
	return h, nil
}

// runServe is the main service entrypoint that wires all components together.
func runServe(configPath string) error {
	// 1. Load config
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// 2. Setup logger
	log := newLogger(cfg.LogLevel)
	slog.SetDefault(log)
	log.Info("starting qrgen", "version", version, "port", cfg.Port, "encoder", cfg.Encoder)

	// 3. Pick the encoder
	enc, err := encoder.New(cfg.Encoder)
	if err != nil {
		return fmt.Errorf("select encoder: %w", err)
	}

	// 4. Open the generation log
	history, err := openHistory(cfg)
	if err != nil {
		return err
	}
	if history != nil {
		defer history.Close()
	}

	// 5. Session table
	opts := api.SessionOptions{
		Encoder:    enc,
		Controller: controllerConfig(cfg, log),
		TTL:        cfg.SessionTTL.Duration,
		Log:        log,
	}
	if history != nil {
		opts.OnRender = api.HistoryRecorder(history, cfg.Encoder, log)
	}
	sessions := api.NewSessions(opts)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sessions.StartSweeper(ctx, time.Minute)

	// 6. Start HTTP server
	srv := &http.Server{
		Addr: fmt.Sprintf(":%d", cfg.Port),
		Handler: api.NewRouter(&api.Server{
			Sessions: sessions,
			History:  history,
			Log:      log,
			Version:  version,
		}),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("HTTP server listening", "addr", srv.Addr, "url", fmt.Sprintf("http://localhost:%d/", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// 7. Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	}

	log.Info("shutting down...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown error", "error", err)
	}

	log.Info("goodbye")
	return nil
}

// printingSlot echoes each notification to stderr as it is mounted.
type printingSlot struct {
	studio.MemSlot
}

func (p *printingSlot) Mount(n *studio.Notification) {
	p.MemSlot.Mount(n)
	fmt.Fprintf(os.Stderr, "[%s] %s\n", n.Kind, n.Message)
}

// runGenerate drives the page controller headlessly: type, pick a size,
// click generate, click download.
func runGenerate(configPath, text string, size int, out, encName string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log := newLogger(cfg.LogLevel)

	if encName == "" {
		encName = cfg.Encoder
	}
	enc, err := encoder.New(encName)
	if err != nil {
		return fmt.Errorf("select encoder: %w", err)
	}

	history, err := openHistory(cfg)
	if err != nil {
		return err
	}
	if history != nil {
		defer history.Close()
	}

	ccfg := controllerConfig(cfg, log)
	if history != nil {
		record := api.HistoryRecorder(history, encName, log)
		ccfg.OnRender = func(req studio.Request) { record("cli", req) }
	}

	sched := studio.NewFakeScheduler()
	field := &studio.MemTextField{}
	link := &studio.MemLink{}
	ctrl := studio.NewController(studio.Widgets{
		Text:      field,
		Link:      link,
		Button:    &studio.MemButton{},
		Container: &studio.MemContainer{},
		Slot:      &printingSlot{},
	}, enc, sched, ccfg)
	defer sched.Drain()

	field.SetValue(text)
	if size != 0 {
		if err := ctrl.OnSizeChange(size); err != nil {
			return fmt.Errorf("size %d (choose from %v): %w", size, ctrl.Sizes(), err)
		}
	}
	if res := ctrl.OnGenerateClick(); res.Err != nil {
		return fmt.Errorf("generate: %w", res.Err)
	}

	ev := ctrl.Download()
	if ev.Prevented {
		return errors.New(studio.MsgNoArtifact)
	}
	_, data, err := studio.DecodeDataURL(link.Href)
	if err != nil {
		return fmt.Errorf("decode download: %w", err)
	}
	if err := os.WriteFile(out, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", out, err)
	}
	log.Info("qr code written", "path", out, "bytes", len(data), "size", ctrl.Size())
	return nil
}

// runStatus queries the server's health endpoint.
func runStatus(addr string, out io.Writer) error {
	resp, err := http.Get(strings.TrimRight(addr, "/") + "/healthz")
	if err != nil {
		return fmt.Errorf("failed to reach qrgen at %s: %w", addr, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned %s", resp.Status)
	}
	var health struct {
		Status   string `json:"status"`
		Sessions int    `json:"sessions"`
		Uptime   string `json:"uptime"`
		Version  string `json:"version"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		return fmt.Errorf("decode health response: %w", err)
	}
	fmt.Fprintf(out, "status:   %s\nversion:  %s\nuptime:   %s\nsessions: %d\n",
		health.Status, health.Version, health.Uptime, health.Sessions)
	return nil
}

// runHistory prints the newest entries of the generation log.
func runHistory(configPath string, limit int) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if !cfg.History {
		return errors.New("history is disabled in config")
	}
	history, err := openHistory(cfg)
	if err != nil {
		return err
	}
	defer history.Close()

	gens, err := history.Recent(context.Background(), limit)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tSIZE\tENCODER\tSESSION\tCONTENT")
	for _, g := range gens {
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\t%s\n",
			time.Unix(g.Timestamp, 0).Format(time.DateTime), g.Size, g.Encoder, g.Session, g.Content)
	}
	return tw.Flush()
}
