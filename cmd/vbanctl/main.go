// ABOUTME: Command line client for the vbancast control API
// ABOUTME: Lists, adds, updates and removes endpoints, sets gain and watches stats
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/vbancast/vbancast-go/internal/client"
	"github.com/vbancast/vbancast-go/internal/protocol"
	"github.com/vbancast/vbancast-go/pkg/endpoint"
)

var addr = flag.String("addr", "localhost:6990", "Control server address")

const usage = `usage: vbanctl [-addr host:port] <command> [flags]

commands:
  list
  add    -role receiver|sender -name NAME [-host HOST] [-port N] [-quality Q] [-volume V] [-denoise] [-disabled]
  update -id UUID [-name NAME] [-host HOST] [-port N] [-quality Q] [-volume V] [-denoise=BOOL] [-enabled=BOOL]
  remove -id UUID
  gain   VALUE
  watch
`

func main() {
	log.SetFlags(0)
	flag.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		flag.Usage()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dialCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	c, err := client.Dial(dialCtx, *addr)
	cancel()
	if err != nil {
		log.Fatalf("Failed to connect to %s: %v", *addr, err)
	}
	defer c.Close()

	if err := run(ctx, c, args[0], args[1:]); err != nil {
		log.Fatalf("%s: %v", args[0], err)
	}
}

func run(ctx context.Context, c *client.Client, cmd string, args []string) error {
	reqCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	switch cmd {
	case "list":
		endpoints, err := c.List(reqCtx)
		if err != nil {
			return err
		}
		printEndpoints(endpoints)
		return nil

	case "add":
		patch, err := parsePatch(cmd, args, true)
		if err != nil {
			return err
		}
		ep, err := c.Add(reqCtx, patch)
		if err != nil {
			return err
		}
		fmt.Printf("added %s %s\n", ep.ID, ep)
		return nil

	case "update":
		patch, err := parsePatch(cmd, args, false)
		if err != nil {
			return err
		}
		ep, err := c.Update(reqCtx, patch)
		if err != nil {
			return err
		}
		fmt.Printf("updated %s %s\n", ep.ID, ep)
		return nil

	case "remove":
		fs := flag.NewFlagSet(cmd, flag.ContinueOnError)
		id := fs.String("id", "", "Endpoint ID")
		if err := fs.Parse(args); err != nil {
			return err
		}
		parsed, err := uuid.Parse(*id)
		if err != nil {
			return fmt.Errorf("invalid -id: %w", err)
		}
		return c.Remove(reqCtx, parsed)

	case "gain":
		if len(args) != 1 {
			return fmt.Errorf("expected one gain value")
		}
		var g float64
		if _, err := fmt.Sscanf(args[0], "%g", &g); err != nil {
			return fmt.Errorf("invalid gain %q: %w", args[0], err)
		}
		applied, err := c.SetGain(reqCtx, g)
		if err != nil {
			return err
		}
		fmt.Printf("gain %.2f\n", applied)
		return nil

	case "watch":
		return watch(ctx, c)
	}

	return fmt.Errorf("unknown command (see -h)")
}

// parsePatch reads endpoint flags; only flags given on the command line are set
func parsePatch(cmd string, args []string, add bool) (protocol.EndpointPatch, error) {
	fs := flag.NewFlagSet(cmd, flag.ContinueOnError)
	id := fs.String("id", "", "Endpoint ID")
	role := fs.String("role", "receiver", "Endpoint role")
	name := fs.String("name", "", "Stream name")
	host := fs.String("host", "", "Remote host")
	port := fs.Int("port", endpoint.DefaultPort, "UDP port")
	quality := fs.String("quality", "fast", "Quality tier")
	volume := fs.Float64("volume", 1.0, "Volume")
	denoise := fs.Bool("denoise", false, "Denoise")
	enabled := fs.Bool("enabled", true, "Enabled")
	disabled := fs.Bool("disabled", false, "Add disabled")
	if err := fs.Parse(args); err != nil {
		return protocol.EndpointPatch{}, err
	}

	set := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })

	var patch protocol.EndpointPatch
	if set["id"] || !add {
		parsed, err := uuid.Parse(*id)
		if err != nil {
			return patch, fmt.Errorf("invalid -id: %w", err)
		}
		patch.ID = parsed
	}
	if add || set["role"] {
		r := endpoint.Role(*role)
		if r != endpoint.RoleReceiver && r != endpoint.RoleSender {
			return patch, fmt.Errorf("invalid -role %q", *role)
		}
		patch.Role = &r
	}
	if add || set["name"] {
		patch.Name = name
	}
	if set["host"] {
		patch.Host = host
	}
	if add || set["port"] {
		patch.Port = port
	}
	if set["quality"] {
		q, err := endpoint.ParseQuality(*quality)
		if err != nil {
			return patch, err
		}
		patch.Quality = &q
	}
	if set["volume"] {
		patch.Volume = volume
	}
	if set["denoise"] {
		patch.Denoise = denoise
	}
	if set["enabled"] {
		patch.Enabled = enabled
	}
	if add && *disabled {
		off := false
		patch.Enabled = &off
	}
	return patch, nil
}

func printEndpoints(endpoints []endpoint.Endpoint) {
	if len(endpoints) == 0 {
		fmt.Println("no endpoints")
		return
	}
	for _, ep := range endpoints {
		state := "on"
		if !ep.Enabled {
			state = "off"
		}
		flags := []string{ep.Quality.String(), fmt.Sprintf("vol=%.2f", ep.Volume)}
		if ep.Denoise {
			flags = append(flags, "denoise")
		}
		fmt.Printf("%s  %-8s %-3s %s  [%s]\n", ep.ID, ep.Role, state, ep, strings.Join(flags, " "))
	}
}

// watch prints endpoint events and stats until interrupted
func watch(ctx context.Context, c *client.Client) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-c.Done():
			return client.ErrClosed
		case ev := <-c.Events:
			if ev.Changed != "" {
				fmt.Printf("%s %s (%s)\n", ev.Kind, ev.Endpoint, ev.Changed)
			} else {
				fmt.Printf("%s %s\n", ev.Kind, ev.Endpoint)
			}
		case s := <-c.Stats:
			fmt.Printf("gain=%.2f", s.Gain)
			for _, st := range s.Streams {
				fmt.Printf("  %s %dms drop=%d under=%d", st.Name, st.BufferedMs, st.Dropped, st.Underruns)
			}
			for _, t := range s.Targets {
				fmt.Printf("  %s->%s pkts=%d err=%d", t.Name, t.Addr, t.Packets, t.Errors)
			}
			fmt.Println()
		}
	}
}
