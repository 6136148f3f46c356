package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/banshee-data/mausbridge/internal/bridge"
	"github.com/banshee-data/mausbridge/internal/config"
	"github.com/banshee-data/mausbridge/internal/db"
	"github.com/banshee-data/mausbridge/internal/metrics"
	"github.com/banshee-data/mausbridge/internal/monitoring"
	"github.com/banshee-data/mausbridge/internal/serialport"
	"github.com/banshee-data/mausbridge/internal/version"
)

var (
	configPath   = flag.String("config", "", "Path to a JSON config file (defaults built in when empty)")
	listen       = flag.String("listen", "", "HTTP listen address, overrides the config")
	debug        = flag.Bool("debug", false, "Log every decoded frame and CRC failure")
	disableLidar = flag.Bool("disable-lidar", false, "Do not open the lidar port")
	disableBoard = flag.Bool("disable-board", false, "Do not open the board port")
	showVersion  = flag.Bool("version", false, "Print version and exit")
)

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Println(version.Get())
		return
	}
	if *debug {
		monitoring.SetDebugLogger(os.Stderr)
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	applyFlags(cfg, *listen, *disableLidar, *disableBoard)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, nil, nil); err != nil {
		log.Fatal(err)
	}
	log.Printf("Graceful shutdown complete")
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Default(), nil
	}
	return config.Load(path)
}

func applyFlags(cfg *config.Config, listenAddr string, noLidar, noBoard bool) {
	if listenAddr != "" {
		cfg.Listen = &listenAddr
	}
	if noLidar {
		cfg.SetEnabled(config.DeviceLidar, false)
	}
	if noBoard {
		cfg.SetEnabled(config.DeviceBoard, false)
	}
}

// run starts the bridge and the HTTP server and blocks until ctx is done.
// A nil opener uses real serial ports. ready, if set, receives the bound
// HTTP address.
func run(ctx context.Context, cfg *config.Config, opener serialport.Opener, ready chan<- string) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	opts := bridge.Options{Opener: opener}

	var recorder *db.DB
	if path := cfg.GetRecorderPath(); path != "" {
		var err error
		recorder, err = db.NewDB(path)
		if err != nil {
			return fmt.Errorf("failed to open recorder: %w", err)
		}
		defer recorder.Close()
		opts.Recorder = recorder
		log.Printf("recording to %s", path)
	}

	b := bridge.New(cfg, opts)
	log.Printf("%s session %s", version.Get(), b.SessionID)

	reg := metrics.NewRegistry()
	if err := b.RegisterMetrics(reg); err != nil {
		return err
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler(reg))
	b.AttachAdminRoutes(mux)
	if recorder != nil {
		if err := recorder.AttachAdminRoutes(mux); err != nil {
			return err
		}
	}

	ln, err := net.Listen("tcp", cfg.GetListen())
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", cfg.GetListen(), err)
	}
	log.Printf("listening on http://%s/debug/", ln.Addr())
	if ready != nil {
		ready <- ln.Addr().String()
	}

	if err := b.Start(); err != nil {
		log.Printf("some devices failed to start: %v", err)
	}

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := b.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("bridge stopped: %v", err)
		}
		log.Print("bridge routine terminated")
	}()

	server := &http.Server{Handler: mux}
	wg.Add(1)
	go func() {
		defer wg.Done()
		<-ctx.Done()
		log.Println("shutting down HTTP server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("HTTP server shutdown error: %v", err)
			if err := server.Close(); err != nil {
				log.Printf("HTTP server force close error: %v", err)
			}
		}
	}()

	serveErr := server.Serve(ln)
	if errors.Is(serveErr, http.ErrServerClosed) {
		serveErr = nil
	}
	cancel()
	wg.Wait()
	return serveErr
}
