// ABOUTME: mDNS advertisement and browsing for phonograph monitors
// ABOUTME: Lets remote dashboards find a running player's event monitor
package discovery

import (
	"context"
	"fmt"
	"log"
	"net"
	"strings"
	"time"

	"github.com/hashicorp/mdns"

	"github.com/Sendspin/phonograph-go/internal/version"
)

// ServiceType is the DNS-SD type of a phonograph monitor
const ServiceType = "_phonograph._tcp"

// Config holds discovery configuration
type Config struct {
	ServiceName string
	Port        int
	// Path is the monitor WebSocket path, published in the TXT record
	Path string
	// BrowseInterval is the pause between browse queries
	BrowseInterval time.Duration
}

// Manager handles mDNS operations
type Manager struct {
	config Config
	ctx    context.Context
	cancel context.CancelFunc
	peers  chan *PeerInfo
	server *mdns.Server
}

// PeerInfo describes a discovered monitor
type PeerInfo struct {
	Name string
	Host string
	Port int
	Path string
}

// Address returns the monitor WebSocket URL
func (p *PeerInfo) Address() string {
	return fmt.Sprintf("ws://%s%s", net.JoinHostPort(p.Host, fmt.Sprint(p.Port)), p.Path)
}

// NewManager creates a discovery manager
func NewManager(config Config) *Manager {
	if config.BrowseInterval <= 0 {
		config.BrowseInterval = 5 * time.Second
	}
	ctx, cancel := context.WithCancel(context.Background())

	return &Manager{
		config: config,
		ctx:    ctx,
		cancel: cancel,
		peers:  make(chan *PeerInfo, 10),
	}
}

// txtRecords returns the TXT record published with the service
func (m *Manager) txtRecords() []string {
	return []string{
		"path=" + m.config.Path,
		"version=" + version.Version,
		"product=" + version.Product,
	}
}

// Advertise advertises the monitor via mDNS
func (m *Manager) Advertise() error {
	ips, err := getLocalIPs()
	if err != nil {
		return fmt.Errorf("failed to get local IPs: %w", err)
	}

	service, err := mdns.NewMDNSService(
		m.config.ServiceName,
		ServiceType,
		"",
		"",
		m.config.Port,
		ips,
		m.txtRecords(),
	)
	if err != nil {
		return fmt.Errorf("failed to create service: %w", err)
	}

	server, err := mdns.NewServer(&mdns.Config{Zone: service})
	if err != nil {
		return fmt.Errorf("failed to create mdns server: %w", err)
	}
	m.server = server

	log.Printf("Advertising mDNS service: %s on port %d (type: %s)", m.config.ServiceName, m.config.Port, ServiceType)

	go func() {
		<-m.ctx.Done()
		server.Shutdown()
	}()

	return nil
}

// Browse searches for other phonograph monitors
func (m *Manager) Browse() error {
	go m.browseLoop()
	return nil
}

func (m *Manager) browseLoop() {
	for {
		entries := make(chan *mdns.ServiceEntry, 10)

		go func() {
			for entry := range entries {
				peer := peerFromEntry(entry)
				if peer == nil || m.isSelf(peer.Name) {
					continue
				}

				log.Printf("Discovered monitor: %s at %s", peer.Name, peer.Address())

				select {
				case m.peers <- peer:
				case <-m.ctx.Done():
					return
				}
			}
		}()

		params := mdns.DefaultParams(ServiceType)
		params.Entries = entries
		params.Timeout = 3 * time.Second
		params.DisableIPv6 = true
		if err := mdns.Query(params); err != nil {
			log.Printf("mDNS query failed: %v", err)
		}
		close(entries)

		select {
		case <-m.ctx.Done():
			return
		case <-time.After(m.config.BrowseInterval):
		}
	}
}

// isSelf reports whether an instance name is our own advertisement
func (m *Manager) isSelf(name string) bool {
	if m.config.ServiceName == "" {
		return false
	}
	return name == m.config.ServiceName || strings.HasPrefix(name, m.config.ServiceName+".")
}

// peerFromEntry converts a browse result, or returns nil without an address
func peerFromEntry(entry *mdns.ServiceEntry) *PeerInfo {
	if entry == nil || entry.AddrV4 == nil {
		return nil
	}
	peer := &PeerInfo{
		Name: entry.Name,
		Host: entry.AddrV4.String(),
		Port: entry.Port,
	}
	for _, field := range entry.InfoFields {
		if path, ok := strings.CutPrefix(field, "path="); ok {
			peer.Path = path
		}
	}
	return peer
}

// Peers returns the channel of discovered monitors
func (m *Manager) Peers() <-chan *PeerInfo {
	return m.peers
}

// Stop stops advertising and browsing
func (m *Manager) Stop() {
	m.cancel()
}

// getLocalIPs returns local IP addresses
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
