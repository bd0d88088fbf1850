// Package discovery advertises the node API over mDNS and browses for
// other nodes.
package discovery

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/enbility/zeroconf/v3"
	"github.com/pion/logging"
)

const (
	// DefaultService is the DNS-SD service type of the node API.
	DefaultService = "_ftm-node._tcp"
	// DefaultDomain is the mDNS domain.
	DefaultDomain = "local."

	// MaxInstanceNameLen is the DNS label limit for instance names.
	MaxInstanceNameLen = 63
)

// ErrNotAdvertising is returned by Update before Advertise.
var ErrNotAdvertising = errors.New("discovery: not advertising")

// Info is what a node publishes in its TXT record.
type Info struct {
	Mode    string // initiator or responder
	Version string
	MAC     string
	SSID    string
	Role    string
}

// EncodeTXT renders info as sorted key=value strings. Empty values are
// omitted.
func EncodeTXT(info Info) []string {
	pairs := map[string]string{
		"mode": info.Mode,
		"ver":  info.Version,
		"mac":  info.MAC,
		"ssid": info.SSID,
		"role": info.Role,
	}
	txt := make([]string, 0, len(pairs))
	for k, v := range pairs {
		if v != "" {
			txt = append(txt, k+"="+v)
		}
	}
	sort.Strings(txt)
	return txt
}

// DecodeTXT parses key=value strings back into Info. Unknown keys are
// ignored.
func DecodeTXT(txt []string) Info {
	var info Info
	for _, kv := range txt {
		k, v, ok := strings.Cut(kv, "=")
		if !ok {
			continue
		}
		switch k {
		case "mode":
			info.Mode = v
		case "ver":
			info.Version = v
		case "mac":
			info.MAC = v
		case "ssid":
			info.SSID = v
		case "role":
			info.Role = v
		}
	}
	return info
}

// AdvertiserConfig configures an Advertiser.
type AdvertiserConfig struct {
	Instance string
	Service  string // defaults to DefaultService
	Domain   string // defaults to DefaultDomain

	// Interface restricts advertising to one interface. Empty means all.
	Interface string

	// TTL overrides the record TTL when positive.
	TTL time.Duration

	LoggerFactory logging.LoggerFactory
}

type registration interface {
	SetText([]string)
	Shutdown()
}

type registerFunc func(instance, service, domain string, port int, txt []string, ifaces []net.Interface, opts ...zeroconf.ServerOption) (registration, error)

func zeroconfRegister(instance, service, domain string, port int, txt []string, ifaces []net.Interface, opts ...zeroconf.ServerOption) (registration, error) {
	return zeroconf.Register(instance, service, domain, port, txt, ifaces, opts...)
}

// Advertiser publishes one service instance.
type Advertiser struct {
	cfg      AdvertiserConfig
	log      logging.LeveledLogger
	register registerFunc

	mu     sync.Mutex
	server registration
}

// NewAdvertiser creates an advertiser.
func NewAdvertiser(cfg AdvertiserConfig) *Advertiser {
	if cfg.Service == "" {
		cfg.Service = DefaultService
	}
	if cfg.Domain == "" {
		cfg.Domain = DefaultDomain
	}
	if len(cfg.Instance) > MaxInstanceNameLen {
		cfg.Instance = cfg.Instance[:MaxInstanceNameLen]
	}
	if cfg.LoggerFactory == nil {
		cfg.LoggerFactory = logging.NewDefaultLoggerFactory()
	}
	return &Advertiser{
		cfg:      cfg,
		log:      cfg.LoggerFactory.NewLogger("discovery"),
		register: zeroconfRegister,
	}
}

// Advertise starts advertising port with info, replacing any earlier
// advertisement.
func (a *Advertiser) Advertise(port int, info Info) error {
	if port <= 0 || port > 65535 {
		return fmt.Errorf("discovery: invalid port %d", port)
	}
	if a.cfg.Instance == "" {
		return errors.New("discovery: instance name required")
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.server != nil {
		a.server.Shutdown()
		a.server = nil
	}

	var opts []zeroconf.ServerOption
	if a.cfg.TTL > 0 {
		opts = append(opts, zeroconf.TTL(uint32(a.cfg.TTL.Seconds())))
	}
	server, err := a.register(a.cfg.Instance, a.cfg.Service, a.cfg.Domain, port, EncodeTXT(info), interfaces(a.cfg.Interface), opts...)
	if err != nil {
		return fmt.Errorf("failed to register service: %w", err)
	}
	a.server = server
	a.log.Infof("advertising %s.%s%s on port %d", a.cfg.Instance, a.cfg.Service, a.cfg.Domain, port)
	return nil
}

// Update replaces the TXT record of the running advertisement.
func (a *Advertiser) Update(info Info) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.server == nil {
		return ErrNotAdvertising
	}
	a.server.SetText(EncodeTXT(info))
	return nil
}

// Stop withdraws the advertisement. It is safe to call more than once.
func (a *Advertiser) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.server != nil {
		a.server.Shutdown()
		a.server = nil
		a.log.Infof("stopped advertising %s", a.cfg.Instance)
	}
}

// Node is a discovered node.
type Node struct {
	Instance  string
	Host      string
	Port      int
	Addresses []string
	Info      Info
}

// Browse looks for nodes of service until ctx ends and sends each one on
// the returned channel, which is closed at the end.
func Browse(ctx context.Context, service, domain, iface string) (<-chan Node, error) {
	if service == "" {
		service = DefaultService
	}
	if domain == "" {
		domain = DefaultDomain
	}

	entries := make(chan *zeroconf.ServiceEntry)
	removed := make(chan *zeroconf.ServiceEntry)
	out := make(chan Node)

	var opts []zeroconf.ClientOption
	if ifaces := interfaces(iface); ifaces != nil {
		opts = append(opts, zeroconf.SelectIfaces(ifaces))
	}

	go func() {
		defer close(out)
		seen := make(map[string]bool)
		for {
			select {
			case entry, ok := <-entries:
				if !ok {
					return
				}
				if seen[entry.Instance] {
					continue
				}
				seen[entry.Instance] = true
				select {
				case out <- entryToNode(entry):
				case <-ctx.Done():
					return
				}
			case entry, ok := <-removed:
				if ok {
					delete(seen, entry.Instance)
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		_ = zeroconf.Browse(ctx, service, domain, entries, removed, opts...)
	}()
	return out, nil
}

func entryToNode(entry *zeroconf.ServiceEntry) Node {
	addrs := make([]string, 0, len(entry.AddrIPv4)+len(entry.AddrIPv6))
	for _, ip := range entry.AddrIPv4 {
		addrs = append(addrs, ip.String())
	}
	for _, ip := range entry.AddrIPv6 {
		addrs = append(addrs, ip.String())
	}
	return Node{
		Instance:  entry.Instance,
		Host:      entry.HostName,
		Port:      entry.Port,
		Addresses: addrs,
		Info:      DecodeTXT(entry.Text),
	}
}

func interfaces(name string) []net.Interface {
	if name == "" {
		return nil
	}
	iface, err := net.InterfaceByName(name)
	if err != nil {
		return nil
	}
	return []net.Interface{*iface}
}
