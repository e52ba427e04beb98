// ABOUTME: Entry point for the vbancast sender
// ABOUTME: Parses CLI flags, resolves targets and streams captured audio over VBAN
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
	"github.com/vbancast/vbancast-go/internal/version"
	"github.com/vbancast/vbancast-go/pkg/audio"
	"github.com/vbancast/vbancast-go/pkg/endpoint"
	"github.com/vbancast/vbancast-go/pkg/vbancast"
)

var (
	source      = flag.String("source", "tone", "Capture source: tone, device, or an .mp3/.flac file")
	rate        = flag.Int("rate", 48000, "Capture sample rate for tone and device sources")
	channels    = flag.Int("channels", 2, "Capture channels for tone and device sources")
	bits        = flag.Int("bits", 16, "Capture bit depth for tone and device sources")
	configPath  = flag.String("config", "", "Endpoint list file (default: user config dir)")
	stream      = flag.String("stream", "", "Add a sender endpoint with this stream name if missing")
	host        = flag.String("host", "", "Target host for -stream")
	port        = flag.Int("port", endpoint.DefaultPort, "Target UDP port for -stream")
	quality     = flag.String("quality", "fast", "Packet size tier for -stream (optimal, fast, medium, slow, veryslow)")
	volume      = flag.Float64("volume", 1.0, "Volume for -stream")
	denoiseTx   = flag.Bool("denoise", false, "Denoise the -stream endpoint")
	discover    = flag.Duration("discover", 0, "Browse mDNS for this long and add a sender endpoint per advertised stream")
	localAddr   = flag.String("local", ":0", "Local UDP address to send from")
	controlAddr = flag.String("control", "", "Serve the WebSocket control API on this address (e.g. :6991)")
	logFile     = flag.String("log-file", "vban-send.log", "Log file path")
	debug       = flag.Bool("debug", false, "Verbose logging")
	showVersion = flag.Bool("version", false, "Print version and exit")
)

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		return
	}

	// Set up logging (both file and console)
	f, err := os.OpenFile(*logFile, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		log.Fatalf("error opening log file: %v", err)
	}
	defer func() { _ = f.Close() }()
	log.SetOutput(io.MultiWriter(os.Stdout, f))

	log.Printf("Starting %s sender", version.String())
	if *debug {
		log.Printf("Debug logging enabled")
	}

	reg, err := openRegistry(*configPath)
	if err != nil {
		log.Fatalf("Failed to load endpoints: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *stream != "" {
		if *host == "" {
			log.Fatalf("-stream requires -host")
		}
		q, err := endpoint.ParseQuality(*quality)
		if err != nil {
			log.Fatalf("Invalid -quality: %v", err)
		}
		ep := endpoint.New(endpoint.RoleSender, *stream, *host, *port)
		ep.Quality = q
		ep.Volume = *volume
		ep.Denoise = *denoiseTx
		if err := ensureSender(reg, ep); err != nil {
			log.Fatalf("Failed to add stream: %v", err)
		}
	}

	if *discover > 0 {
		if err := addDiscovered(ctx, reg, *discover); err != nil {
			log.Printf("Discovery failed: %v", err)
		}
	}

	if len(reg.ListRole(endpoint.RoleSender)) == 0 {
		log.Printf("No sender endpoints configured yet; waiting for control API changes")
	}

	tx, err := vbancast.NewSender(vbancast.SenderConfig{
		Registry: reg,
		Source:   *source,
		Format: audio.Format{
			SampleRate: *rate,
			Channels:   *channels,
			BitDepth:   *bits,
		},
		LocalAddr: *localAddr,
		Debug:     *debug,
	})
	if err != nil {
		log.Fatalf("Failed to create sender: %v", err)
	}

	if err := tx.Start(ctx); err != nil {
		log.Fatalf("Failed to start sender: %v", err)
	}
	log.Printf("Press Ctrl-C to stop")

	if *controlAddr != "" {
		srv := control.New(control.Config{
			Addr:     *controlAddr,
			Registry: reg,
			Stats:    control.CollectStats(nil, tx),
			Debug:    *debug,
		})
		go func() {
			if err := srv.Run(ctx); err != nil {
				log.Printf("Control server error: %v", err)
			}
		}()
	}

	if *debug {
		go logStats(ctx, tx)
	}

	select {
	case <-ctx.Done():
		log.Printf("Shutdown signal received")
	case <-tx.Done():
		log.Printf("Sender pipeline ended")
	}

	if err := tx.Stop(); err != nil {
		log.Printf("Sender stopped with error: %v", err)
	}
	log.Printf("Sender stopped")
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

// ensureSender adds ep unless a sender with the same name and target exists
func ensureSender(reg *endpoint.Registry, ep endpoint.Endpoint) error {
	for _, existing := range reg.ListRole(endpoint.RoleSender) {
		if existing.Name == ep.Name && existing.Host == ep.Host && existing.Port == ep.Port {
			return nil
		}
	}
	added, err := reg.Add(ep)
	if err != nil {
		return err
	}
	log.Printf("Added sender endpoint %s", added)
	return nil
}

// addDiscovered browses for receivers and adds a sender endpoint per stream
func addDiscovered(ctx context.Context, reg *endpoint.Registry, timeout time.Duration) error {
	found, err := discovery.Browse(ctx, timeout)
	if err != nil {
		return err
	}
	if len(found) == 0 {
		log.Printf("No VBAN receivers found")
		return nil
	}
	for _, r := range found {
		for _, name := range r.Streams {
			if err := ensureSender(reg, endpoint.New(endpoint.RoleSender, name, r.Host, r.Port)); err != nil {
				log.Printf("Skipping discovered stream %s at %s:%d: %v", name, r.Host, r.Port, err)
			}
		}
	}
	return nil
}

// logStats prints per-target counters every few seconds
func logStats(ctx context.Context, tx *vbancast.Sender) {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, t := range tx.Stats() {
				log.Printf("Target %s %s: packets=%d errors=%d bytes=%d", t.Name, t.Addr, t.Packets, t.Errors, t.Bytes)
			}
		}
	}
}
