// ABOUTME: mDNS discovery for VBAN receivers
// ABOUTME: Advertises one _vban._udp service per listening port and browses for them
package discovery

import (
	"context"
	"fmt"
	"log"
	"net"
	"os"
	"slices"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/mdns"
	"github.com/vbancast/vbancast-go/pkg/endpoint"
)

// ServiceType is the advertised DNS-SD service
const ServiceType = "_vban._udp"

// Config holds discovery configuration
type Config struct {
	// Instance is the advertised host label, defaults to the hostname
	Instance string
	Debug    bool
}

// Receiver describes a discovered listening port
type Receiver struct {
	Instance string
	Host     string
	Port     int
	Streams  []string
}

type shutdowner interface {
	Shutdown() error
}

type advert struct {
	streams []string
	server  shutdowner
}

// Manager keeps the advertisements in line with the receiver endpoints
type Manager struct {
	config Config

	mu      sync.Mutex
	adverts map[int]*advert

	// serve starts a responder for one service
	serve func(*mdns.MDNSService) (shutdowner, error)
}

// NewManager creates a discovery manager
func NewManager(config Config) *Manager {
	return &Manager{
		config:  config,
		adverts: make(map[int]*advert),
		serve: func(service *mdns.MDNSService) (shutdowner, error) {
			return mdns.NewServer(&mdns.Config{Zone: service})
		},
	}
}

// Sync advertises every port used by an enabled receiver endpoint and
// withdraws the rest. Ports whose stream list is unchanged are left alone.
func (m *Manager) Sync(endpoints []endpoint.Endpoint) {
	want := make(map[int][]string)
	for _, ep := range endpoints {
		if ep.Role != endpoint.RoleReceiver || !ep.Enabled || ep.Port <= 0 {
			continue
		}
		want[ep.Port] = append(want[ep.Port], ep.Name)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for port, a := range m.adverts {
		if streams, ok := want[port]; !ok || !slices.Equal(streams, a.streams) {
			a.server.Shutdown()
			delete(m.adverts, port)
			log.Printf("Withdrew mDNS advertisement for port %d", port)
		}
	}

	ports := make([]int, 0, len(want))
	for port := range want {
		if _, ok := m.adverts[port]; !ok {
			ports = append(ports, port)
		}
	}
	sort.Ints(ports)

	for _, port := range ports {
		if err := m.advertise(port, want[port]); err != nil {
			log.Printf("Failed to advertise port %d: %v", port, err)
		}
	}
}

// advertise must be called with mu held
func (m *Manager) advertise(port int, streams []string) error {
	ips, err := getLocalIPs()
	if err != nil {
		return fmt.Errorf("failed to get local IPs: %w", err)
	}
	if len(ips) == 0 {
		ips = []net.IP{net.IPv4(127, 0, 0, 1)}
	}

	service, err := mdns.NewMDNSService(
		fmt.Sprintf("%s-%d", instanceName(m.config.Instance), port),
		ServiceType,
		"",
		"",
		port,
		ips,
		txtRecords(streams),
	)
	if err != nil {
		return fmt.Errorf("failed to create service: %w", err)
	}

	server, err := m.serve(service)
	if err != nil {
		return fmt.Errorf("failed to create mdns server: %w", err)
	}

	m.adverts[port] = &advert{streams: streams, server: server}
	log.Printf("Advertising mDNS service %s on port %d (streams: %s)", ServiceType, port, strings.Join(streams, ", "))
	return nil
}

// Advertised returns the advertised ports in order
func (m *Manager) Advertised() []int {
	m.mu.Lock()
	defer m.mu.Unlock()

	ports := make([]int, 0, len(m.adverts))
	for port := range m.adverts {
		ports = append(ports, port)
	}
	sort.Ints(ports)
	return ports
}

// Stop withdraws every advertisement
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for port, a := range m.adverts {
		a.server.Shutdown()
		delete(m.adverts, port)
	}
}

// Browse queries the network for VBAN receivers for up to timeout
func Browse(ctx context.Context, timeout time.Duration) ([]Receiver, error) {
	entries := make(chan *mdns.ServiceEntry, 16)
	var found []Receiver
	done := make(chan struct{})

	go func() {
		defer close(done)
		seen := make(map[string]bool)
		for entry := range entries {
			r, ok := fromEntry(entry)
			if !ok {
				continue
			}
			key := net.JoinHostPort(r.Host, strconv.Itoa(r.Port))
			if seen[key] {
				continue
			}
			seen[key] = true
			log.Printf("Discovered VBAN receiver %s at %s (streams: %s)", r.Instance, key, strings.Join(r.Streams, ", "))
			found = append(found, r)
		}
	}()

	qctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	params := mdns.DefaultParams(ServiceType)
	params.Entries = entries
	params.Timeout = timeout
	params.DisableIPv6 = true

	err := mdns.QueryContext(qctx, params)
	close(entries)
	<-done

	if err != nil && ctx.Err() == nil {
		return found, fmt.Errorf("mdns query failed: %w", err)
	}
	return found, nil
}

func fromEntry(entry *mdns.ServiceEntry) (Receiver, bool) {
	if entry == nil || entry.AddrV4 == nil || entry.Port <= 0 {
		return Receiver{}, false
	}
	return Receiver{
		Instance: strings.TrimSuffix(entry.Name, "."+ServiceType+".local."),
		Host:     entry.AddrV4.String(),
		Port:     entry.Port,
		Streams:  parseTXT(entry.InfoFields),
	}, true
}

func txtRecords(streams []string) []string {
	txt := make([]string, 0, len(streams))
	for _, s := range streams {
		txt = append(txt, "stream="+s)
	}
	return txt
}

func parseTXT(fields []string) []string {
	var streams []string
	for _, f := range fields {
		if name, ok := strings.CutPrefix(f, "stream="); ok && name != "" {
			streams = append(streams, name)
		}
	}
	return streams
}

func instanceName(configured string) string {
	if configured != "" {
		return configured
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return strings.Split(host, ".")[0]
	}
	return "vbancast"
}

// getLocalIPs returns local IPv4 addresses
func getLocalIPs() ([]net.IP, error) {
	var ips []net.IP

	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, err
	}

	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}

		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}

		for _, addr := range addrs {
			if ipnet, ok := addr.(*net.IPNet); ok && !ipnet.IP.IsLoopback() {
				if ipnet.IP.To4() != nil {
					ips = append(ips, ipnet.IP)
				}
			}
		}
	}

	return ips, nil
}
