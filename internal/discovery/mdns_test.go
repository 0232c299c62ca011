package discovery

import (
	"net"
	"testing"
	"time"

	"github.com/grandcat/zeroconf"

	"github.com/muurk/wifiprov/internal/portal"
)

func entry(instance, host string, port int, v4, v6 []net.IP, txt ...string) *zeroconf.ServiceEntry {
	e := zeroconf.NewServiceEntry(instance, portal.ServiceType, portal.ServiceDomain)
	e.HostName = host
	e.Port = port
	e.AddrIPv4 = v4
	e.AddrIPv6 = v6
	e.Text = txt
	return e
}

func TestParseServiceEntry(t *testing.T) {
	tests := []struct {
		name   string
		entry  *zeroconf.ServiceEntry
		wantAP string
		wantIP string
	}{
		{
			name:   "advertised portal",
			entry:  entry("sensor-setup", "sensor.local.", 8080, []net.IP{net.ParseIP("192.168.4.1")}, nil, "ap=sensor-setup", "path=/params"),
			wantAP: "sensor-setup",
			wantIP: "192.168.4.1",
		},
		{
			name:   "ap falls back to instance",
			entry:  entry("kitchen", "kitchen.local.", 80, []net.IP{net.ParseIP("10.0.0.5")}, nil),
			wantAP: "kitchen",
			wantIP: "10.0.0.5",
		},
		{
			name:   "IPv6 only",
			entry:  entry("hall", "hall.local.", 80, nil, []net.IP{net.ParseIP("fe80::1")}),
			wantAP: "hall",
			wantIP: "fe80::1",
		},
		{
			name:   "prefers IPv4",
			entry:  entry("hall", "hall.local.", 80, []net.IP{net.ParseIP("192.168.1.50")}, []net.IP{net.ParseIP("fe80::2")}),
			wantAP: "hall",
			wantIP: "192.168.1.50",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := parseServiceEntry(tt.entry)
			if p == nil {
				t.Fatal("parseServiceEntry() = nil")
			}
			if p.AccessPoint != tt.wantAP {
				t.Errorf("AccessPoint = %q, want %q", p.AccessPoint, tt.wantAP)
			}
			if p.IP != tt.wantIP {
				t.Errorf("IP = %q, want %q", p.IP, tt.wantIP)
			}
			if p.Port != tt.entry.Port {
				t.Errorf("Port = %d, want %d", p.Port, tt.entry.Port)
			}
			if time.Since(p.DiscoveredAt) > time.Second {
				t.Errorf("DiscoveredAt is not recent: %v", p.DiscoveredAt)
			}
		})
	}
}

func TestParseServiceEntry_Rejects(t *testing.T) {
	tests := []struct {
		name  string
		entry *zeroconf.ServiceEntry
	}{
		{"nil", nil},
		{"no port", entry("a", "a.local.", 0, []net.IP{net.ParseIP("10.0.0.1")}, nil)},
		{"no address", entry("a", "a.local.", 80, nil, nil)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if p := parseServiceEntry(tt.entry); p != nil {
				t.Errorf("parseServiceEntry() = %v, want nil", p)
			}
		})
	}
}

func TestParseServiceEntry_Metadata(t *testing.T) {
	p := parseServiceEntry(entry("a", "a.local.", 80, []net.IP{net.ParseIP("10.0.0.1")}, nil,
		"ap=a", "path=/params", "flag", "note=x=y"))
	if p == nil {
		t.Fatal("parseServiceEntry() = nil")
	}

	want := map[string]string{"ap": "a", "path": "/params", "flag": "", "note": "x=y"}
	if len(p.Metadata) != len(want) {
		t.Errorf("Metadata has %d entries, want %d", len(p.Metadata), len(want))
	}
	for k, v := range want {
		if got := p.GetMetadata(k); got != v {
			t.Errorf("GetMetadata(%q) = %q, want %q", k, got, v)
		}
	}
}

func TestPortal_BaseURL(t *testing.T) {
	tests := []struct {
		ip   string
		port int
		want string
	}{
		{"192.168.4.1", 80, "http://192.168.4.1:80"},
		{"10.0.0.5", 8080, "http://10.0.0.5:8080"},
		{"fe80::1", 8080, "http://[fe80::1]:8080"},
	}
	for _, tt := range tests {
		p := &Portal{IP: tt.ip, Port: tt.port}
		if got := p.BaseURL(); got != tt.want {
			t.Errorf("BaseURL() = %q, want %q", got, tt.want)
		}
	}
}

func TestPortal_String(t *testing.T) {
	p := &Portal{AccessPoint: "sensor-setup", Hostname: "sensor.local.", IP: "192.168.4.1", Port: 80}
	want := "Portal sensor-setup (sensor.local.) at 192.168.4.1:80"
	if p.String() != want {
		t.Errorf("String() = %q, want %q", p.String(), want)
	}
	if (&Portal{}).GetMetadata("ap") != "" {
		t.Error("GetMetadata on nil map should return empty")
	}
}

func TestDedupe(t *testing.T) {
	a := &Portal{Instance: "a", IP: "10.0.0.1", Port: 80}
	b := &Portal{Instance: "a", IP: "10.0.0.1", Port: 80}
	c := &Portal{Instance: "c", IP: "10.0.0.2", Port: 80}

	got := dedupe([]*Portal{a, b, c})
	if len(got) != 2 || got[0] != a || got[1] != c {
		t.Errorf("dedupe() = %v, want [a c]", got)
	}
}

func TestNewScanner(t *testing.T) {
	if s := NewScanner(); s.Timeout != DefaultScanTimeout {
		t.Errorf("Timeout = %v, want %v", s.Timeout, DefaultScanTimeout)
	}
}
