package discovery

import (
	"fmt"
	"net"
	"strconv"
	"time"
)

// Portal represents a provisioning portal found on the network
type Portal struct {
	// Instance is the DNS-SD instance name, normally the access point name
	Instance string

	// AccessPoint is the provisioning access point name from the "ap" TXT record
	AccessPoint string

	// Hostname is the mDNS hostname (e.g., "sensor.local.")
	Hostname string

	// IP is the advertised address, IPv4 when available
	IP string

	// Port is the portal HTTP port
	Port int

	// Metadata contains the TXT record data, e.g. "ap=sensor-setup", "path=/params"
	Metadata map[string]string

	// DiscoveredAt is when the portal was discovered
	DiscoveredAt time.Time
}

// String returns a human-readable summary
func (p *Portal) String() string {
	return fmt.Sprintf("Portal %s (%s) at %s", p.AccessPoint, p.Hostname, net.JoinHostPort(p.IP, strconv.Itoa(p.Port)))
}

// BaseURL returns the HTTP base URL for the portal
func (p *Portal) BaseURL() string {
	return "http://" + net.JoinHostPort(p.IP, strconv.Itoa(p.Port))
}

// GetMetadata retrieves a metadata value by key, or returns empty string if not found
func (p *Portal) GetMetadata(key string) string {
	if p.Metadata == nil {
		return ""
	}
	return p.Metadata[key]
}
