package discovery

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/grandcat/zeroconf"
	"go.uber.org/zap"

	"github.com/muurk/wifiprov/internal/logging"
	"github.com/muurk/wifiprov/internal/portal"
)

const (
	// DefaultScanTimeout is the default browse duration
	DefaultScanTimeout = 5 * time.Second

	drainTimeout = 200 * time.Millisecond
)

// Scanner browses for advertised provisioning portals
type Scanner struct {
	// Timeout is the maximum time to browse
	Timeout time.Duration
}

// NewScanner creates a scanner with default settings
func NewScanner() *Scanner {
	return &Scanner{
		Timeout: DefaultScanTimeout,
	}
}

// Scan browses for the scanner's timeout and returns every portal seen
func (s *Scanner) Scan(ctx context.Context) ([]*Portal, error) {
	var (
		mu      sync.Mutex
		portals []*Portal
	)
	err := s.browse(ctx, func(p *Portal) bool {
		mu.Lock()
		defer mu.Unlock()
		portals = append(portals, p)
		return false
	})
	if err != nil {
		return nil, err
	}
	mu.Lock()
	defer mu.Unlock()
	return dedupe(portals), nil
}

// WaitFor browses until a portal for accessPoint shows up. An empty
// accessPoint accepts the first portal seen.
func (s *Scanner) WaitFor(ctx context.Context, accessPoint string) (*Portal, error) {
	found := make(chan *Portal, 1)
	err := s.browse(ctx, func(p *Portal) bool {
		if accessPoint != "" && p.AccessPoint != accessPoint {
			return false
		}
		select {
		case found <- p:
		default:
		}
		return true
	})
	if err != nil {
		return nil, err
	}

	select {
	case p := <-found:
		return p, nil
	default:
		if accessPoint == "" {
			return nil, fmt.Errorf("no portal found within %s", s.Timeout)
		}
		return nil, fmt.Errorf("portal for access point %s not found within %s", accessPoint, s.Timeout)
	}
}

// browse feeds parsed portals to visit until the timeout, or until visit
// returns true
func (s *Scanner) browse(ctx context.Context, visit func(*Portal) bool) error {
	ctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()

	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return fmt.Errorf("failed to create mDNS resolver: %w", err)
	}

	entries := make(chan *zeroconf.ServiceEntry)
	consumed := make(chan struct{})
	go func() {
		defer close(consumed)
		for entry := range entries {
			p := parseServiceEntry(entry)
			if p == nil {
				continue
			}
			logging.Debug("Portal discovered",
				zap.String("access_point", p.AccessPoint),
				zap.String("url", p.BaseURL()),
			)
			if visit(p) {
				cancel()
			}
		}
	}()

	if err := resolver.Browse(ctx, portal.ServiceType, portal.ServiceDomain, entries); err != nil {
		return fmt.Errorf("failed to browse for mDNS services: %w", err)
	}

	<-ctx.Done()
	// Give the resolver a moment to drain and close entries
	select {
	case <-consumed:
	case <-time.After(drainTimeout):
	}
	return nil
}

// parseServiceEntry converts a service entry to a Portal. It returns nil
// for entries without a usable address or port.
func parseServiceEntry(entry *zeroconf.ServiceEntry) *Portal {
	if entry == nil || entry.Port == 0 {
		return nil
	}

	var ip string
	if len(entry.AddrIPv4) > 0 {
		ip = entry.AddrIPv4[0].String()
	} else if len(entry.AddrIPv6) > 0 {
		ip = entry.AddrIPv6[0].String()
	}
	if ip == "" {
		return nil
	}

	metadata := make(map[string]string)
	for _, txt := range entry.Text {
		key, value, _ := strings.Cut(txt, "=")
		metadata[key] = value
	}

	ap := metadata["ap"]
	if ap == "" {
		ap = entry.Instance
	}

	return &Portal{
		Instance:     entry.Instance,
		AccessPoint:  ap,
		Hostname:     entry.HostName,
		IP:           ip,
		Port:         entry.Port,
		Metadata:     metadata,
		DiscoveredAt: time.Now(),
	}
}

// dedupe keeps the first sighting of each instance
func dedupe(portals []*Portal) []*Portal {
	seen := make(map[string]bool, len(portals))
	out := make([]*Portal, 0, len(portals))
	for _, p := range portals {
		key := p.Instance + "|" + p.BaseURL()
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, p)
	}
	return out
}
