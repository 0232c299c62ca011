package nmdriver

import (
	"errors"
	"fmt"
	"testing"

	"github.com/godbus/dbus/v5"

	"github.com/muurk/wifiprov/internal/coordinator"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		old, new uint32
		want     coordinator.EventKind
		wantOK   bool
	}{
		{"activated", stateIPCheck, stateActivated, coordinator.EventConnected, true},
		{"deactivating", stateActivated, stateDeactivating, coordinator.EventDisconnected, true},
		{"dropped", stateActivated, stateDisconnected, coordinator.EventDisconnected, true},
		{"config step", statePrepare, stateConfig, 0, false},
		{"failed attempt", stateNeedAuth, stateFailed, 0, false},
		{"still activated", stateActivated, stateActivated, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := classify(tt.old, tt.new)
			if ok != tt.wantOK || (ok && got != tt.want) {
				t.Errorf("classify(%d, %d) = %v, %v; want %v, %v", tt.old, tt.new, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestParseStateChanged(t *testing.T) {
	n, o, ok := parseStateChanged([]interface{}{stateActivated, stateIPCheck, uint32(0)})
	if !ok || n != stateActivated || o != stateIPCheck {
		t.Errorf("parseStateChanged() = %d, %d, %v", n, o, ok)
	}

	if _, _, ok := parseStateChanged([]interface{}{stateActivated}); ok {
		t.Error("short body should be rejected")
	}
	if _, _, ok := parseStateChanged([]interface{}{"100", "70"}); ok {
		t.Error("wrong types should be rejected")
	}
}

func TestActivationResult(t *testing.T) {
	tests := []struct {
		name     string
		state    uint32
		started  bool
		wantDone bool
		wantErr  bool
	}{
		{"activated", stateActivated, true, true, false},
		{"failed", stateFailed, true, true, true},
		{"waiting for secrets", stateNeedAuth, true, false, false},
		{"not started yet", stateDisconnected, false, false, false},
		{"fell back", stateDisconnected, true, true, true},
		{"in progress", stateIPConfig, true, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			done, err := activationResult(tt.state, tt.started)
			if done != tt.wantDone || (err != nil) != tt.wantErr {
				t.Errorf("activationResult(%d, %v) = %v, %v", tt.state, tt.started, done, err)
			}
		})
	}
}

func TestStationSettings(t *testing.T) {
	s := stationSettings("home", "secret")

	if ssid, _ := s[wirelessType]["ssid"].Value().([]byte); string(ssid) != "home" {
		t.Errorf("ssid = %q", ssid)
	}
	if psk, _ := s[wirelessSecurity]["psk"].Value().(string); psk != "secret" {
		t.Errorf("psk = %q", psk)
	}
	if !isStationWifi(s) {
		t.Error("station settings should count as a saved network")
	}

	open := stationSettings("cafe", "")
	if _, ok := open[wirelessSecurity]; ok {
		t.Error("open network should carry no security section")
	}
}

func TestAccessPointSettings(t *testing.T) {
	s := accessPointSettings("sensor-setup")

	if mode, _ := s[wirelessType]["mode"].Value().(string); mode != "ap" {
		t.Errorf("mode = %q, want ap", mode)
	}
	if method, _ := s["ipv4"]["method"].Value().(string); method != "shared" {
		t.Errorf("ipv4.method = %q, want shared", method)
	}
	if isStationWifi(s) {
		t.Error("hotspot profile must not be forgotten as credentials")
	}
}

func TestIsStationWifi_Wired(t *testing.T) {
	wired := settingsMap{
		"connection": {"type": dbus.MakeVariant("802-3-ethernet")},
	}
	if isStationWifi(wired) {
		t.Error("wired profile is not Wi-Fi")
	}
	if isStationWifi(settingsMap{}) {
		t.Error("empty settings are not Wi-Fi")
	}
}

func TestDBusErrorName(t *testing.T) {
	err := fmt.Errorf("disconnect: %w", dbus.Error{Name: errNotActive})
	if got := dbusErrorName(err); got != errNotActive {
		t.Errorf("dbusErrorName() = %q", got)
	}
	if got := dbusErrorName(errors.New("plain")); got != "" {
		t.Errorf("dbusErrorName(plain) = %q, want empty", got)
	}
}
