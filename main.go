// ABOUTME: Entry point for the vbancast receiver
// ABOUTME: Parses CLI flags, starts the receiver session and optional control, mDNS and TUI
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/vbancast/vbancast-go/internal/control"
	"github.com/vbancast/vbancast-go/internal/discovery"
	"github.com/vbancast/vbancast-go/internal/protocol"
	"github.com/vbancast/vbancast-go/internal/ui"
	"github.com/vbancast/vbancast-go/internal/version"
	"github.com/vbancast/vbancast-go/pkg/audio/output"
	"github.com/vbancast/vbancast-go/pkg/endpoint"
	"github.com/vbancast/vbancast-go/pkg/vbancast"
	"golang.org/x/sync/errgroup"
)

var (
	configPath  = flag.String("config", "", "Endpoint list file (default: user config dir)")
	stream      = flag.String("stream", "", "Add a receiver endpoint for this stream name if missing")
	port        = flag.Int("port", endpoint.DefaultPort, "UDP port for -stream")
	quality     = flag.String("quality", "fast", "Jitter buffer tier for -stream (optimal, fast, medium, slow, veryslow)")
	denoiseRx   = flag.Bool("denoise", false, "Denoise the -stream endpoint")
	host        = flag.String("host", "", "Address to bind listeners on (default: all interfaces)")
	backend     = flag.String("output", "oto", fmt.Sprintf("Playback backend %v", output.Backends))
	gain        = flag.Float64("gain", 1.0, "Master gain")
	controlAddr = flag.String("control", "", "Serve the WebSocket control API on this address (e.g. :6990)")
	mdnsEnabled = flag.Bool("mdns", true, "Advertise listening ports via mDNS")
	logFile     = flag.String("log-file", "vbancast.log", "Log file path")
	noTUI       = flag.Bool("no-tui", false, "Disable TUI, use streaming logs instead")
	debug       = flag.Bool("debug", false, "Verbose logging")
	showVersion = flag.Bool("version", false, "Print version and exit")
)

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		return
	}

	useTUI := !*noTUI

	// Set up logging
	f, err := os.OpenFile(*logFile, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		log.Fatalf("error opening log file: %v", err)
	}
	defer func() { _ = f.Close() }()

	if useTUI {
		// TUI mode: log only to file
		log.SetOutput(f)
	} else {
		log.SetOutput(io.MultiWriter(os.Stdout, f))
	}

	log.Printf("Starting %s receiver", version.String())

	reg, err := openRegistry(*configPath)
	if err != nil {
		log.Fatalf("Failed to load endpoints: %v", err)
	}

	if *stream != "" {
		q, err := endpoint.ParseQuality(*quality)
		if err != nil {
			log.Fatalf("Invalid -quality: %v", err)
		}
		if err := ensureReceiver(reg, *stream, *port, q, *denoiseRx); err != nil {
			log.Fatalf("Failed to add stream: %v", err)
		}
	}

	rx, err := vbancast.NewReceiver(vbancast.ReceiverConfig{
		Registry: reg,
		Output:   *backend,
		Host:     *host,
		Gain:     *gain,
		Debug:    *debug,
	})
	if err != nil {
		log.Fatalf("Failed to create receiver: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rx.Start(ctx); err != nil {
		log.Fatalf("Failed to start receiver: %v", err)
	}

	stats := control.CollectStats(rx, nil)
	g, gctx := errgroup.WithContext(ctx)

	if *controlAddr != "" {
		srv := control.New(control.Config{
			Addr:     *controlAddr,
			Registry: reg,
			Gain:     rx,
			Stats:    stats,
			Debug:    *debug,
		})
		g.Go(func() error {
			if err := srv.Run(gctx); err != nil {
				log.Printf("Control server error: %v", err)
			}
			return nil
		})
	}

	if *mdnsEnabled {
		mgr := discovery.NewManager(discovery.Config{})
		g.Go(func() error {
			defer mgr.Stop()
			return followRegistry(gctx, reg, mgr.Sync)
		})
	}

	if useTUI {
		tui := ui.New(version.String(), rx)
		g.Go(func() error {
			return statsLoop(gctx, tui, stats)
		})
		g.Go(func() error {
			select {
			case <-gctx.Done():
				tui.Stop()
			case <-tui.QuitChan():
				log.Printf("Received quit signal from TUI")
				stop()
			}
			return nil
		})
		if err := tui.Run(); err != nil {
			log.Printf("TUI error: %v", err)
		}
		stop()
	}

	<-gctx.Done()
	log.Printf("Shutdown signal received")
	stop()

	if err := g.Wait(); err != nil {
		log.Printf("Background service error: %v", err)
	}
	if err := rx.Stop(); err != nil {
		log.Printf("Receiver stopped with error: %v", err)
	}
	log.Printf("Receiver stopped")
}

func openRegistry(path string) (*endpoint.Registry, error) {
	if path == "" {
		p, err := endpoint.DefaultStorePath()
		if err != nil {
			return nil, err
		}
		path = p
	}
	log.Printf("Endpoint list: %s", path)
	return endpoint.NewRegistry(endpoint.NewStore(path))
}

// ensureReceiver adds a receiver endpoint for name on port unless one exists
func ensureReceiver(reg *endpoint.Registry, name string, port int, q endpoint.Quality, denoise bool) error {
	for _, ep := range reg.ListRole(endpoint.RoleReceiver) {
		if ep.Name == name && ep.Port == port {
			return nil
		}
	}
	ep := endpoint.New(endpoint.RoleReceiver, name, "", port)
	ep.Quality = q
	ep.Denoise = denoise
	added, err := reg.Add(ep)
	if err != nil {
		return err
	}
	log.Printf("Added receiver endpoint %s", added)
	return nil
}

// followRegistry calls apply with the full list now and after every change
func followRegistry(ctx context.Context, reg *endpoint.Registry, apply func([]endpoint.Endpoint)) error {
	events, unsubscribe := reg.Subscribe(16)
	defer unsubscribe()

	apply(reg.List())
	for {
		select {
		case <-ctx.Done():
			return nil
		case _, ok := <-events:
			if !ok {
				return nil
			}
			apply(reg.List())
		}
	}
}

// statsLoop pushes stats to the TUI twice a second
func statsLoop(ctx context.Context, tui *ui.TUI, stats func() protocol.Stats) error {
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			tui.Update(stats())
		}
	}
}
