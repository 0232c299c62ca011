package nmdriver

import (
	"errors"
	"fmt"

	"github.com/godbus/dbus/v5"

	"github.com/muurk/wifiprov/internal/coordinator"
)

// NetworkManager device states (NMDeviceState)
const (
	stateUnknown      uint32 = 0
	stateUnmanaged    uint32 = 10
	stateUnavailable  uint32 = 20
	stateDisconnected uint32 = 30
	statePrepare      uint32 = 40
	stateConfig       uint32 = 50
	stateNeedAuth     uint32 = 60
	stateIPConfig     uint32 = 70
	stateIPCheck      uint32 = 80
	stateSecondaries  uint32 = 90
	stateActivated    uint32 = 100
	stateDeactivating uint32 = 110
	stateFailed       uint32 = 120
)

const (
	wirelessType     = "802-11-wireless"
	wirelessSecurity = "802-11-wireless-security"
	deviceTypeWifi   = uint32(2)
)

// settingsMap is the a{sa{sv}} connection settings dictionary
type settingsMap map[string]map[string]dbus.Variant

// classify maps a device state transition to a link event. Only entering
// and leaving the activated state count.
func classify(oldState, newState uint32) (coordinator.EventKind, bool) {
	switch {
	case newState == stateActivated && oldState != stateActivated:
		return coordinator.EventConnected, true
	case oldState == stateActivated && newState != stateActivated:
		return coordinator.EventDisconnected, true
	default:
		return 0, false
	}
}

// parseStateChanged decodes the body of Device.StateChanged (uuu)
func parseStateChanged(body []interface{}) (newState, oldState uint32, ok bool) {
	if len(body) < 2 {
		return 0, 0, false
	}
	newState, ok1 := body[0].(uint32)
	oldState, ok2 := body[1].(uint32)
	if !ok1 || !ok2 {
		return 0, 0, false
	}
	return newState, oldState, true
}

// activationResult reports whether waiting on an activation is over.
// started tells whether the device has left the disconnected state since
// the activation began.
func activationResult(state uint32, started bool) (done bool, err error) {
	switch {
	case state == stateActivated:
		return true, nil
	case state == stateFailed:
		return true, errors.New("activation failed")
	case state == stateNeedAuth:
		return false, nil
	case started && state <= stateDisconnected:
		return true, fmt.Errorf("device fell back to state %d", state)
	default:
		return false, nil
	}
}

func inProgress(state uint32) bool {
	return state >= statePrepare && state <= stateSecondaries
}

// stationSettings builds a client connection for ssid. An empty password
// yields an open network.
func stationSettings(ssid, password string) settingsMap {
	s := settingsMap{
		"connection": {
			"id":   dbus.MakeVariant(ssid),
			"type": dbus.MakeVariant(wirelessType),
		},
		wirelessType: {
			"ssid": dbus.MakeVariant([]byte(ssid)),
			"mode": dbus.MakeVariant("infrastructure"),
		},
		"ipv4": {"method": dbus.MakeVariant("auto")},
		"ipv6": {"method": dbus.MakeVariant("auto")},
	}
	if password != "" {
		s[wirelessType]["security"] = dbus.MakeVariant(wirelessSecurity)
		s[wirelessSecurity] = map[string]dbus.Variant{
			"key-mgmt": dbus.MakeVariant("wpa-psk"),
			"psk":      dbus.MakeVariant(password),
		}
	}
	return s
}

// accessPointSettings builds an open hotspot named name that shares the
// host's connectivity
func accessPointSettings(name string) settingsMap {
	return settingsMap{
		"connection": {
			"id":          dbus.MakeVariant(name),
			"type":        dbus.MakeVariant(wirelessType),
			"autoconnect": dbus.MakeVariant(false),
		},
		wirelessType: {
			"ssid": dbus.MakeVariant([]byte(name)),
			"mode": dbus.MakeVariant("ap"),
		},
		"ipv4": {"method": dbus.MakeVariant("shared")},
		"ipv6": {"method": dbus.MakeVariant("ignore")},
	}
}

// isStationWifi reports whether settings describe a saved client Wi-Fi
// network, as opposed to a hotspot or a wired profile
func isStationWifi(s settingsMap) bool {
	conn, ok := s["connection"]
	if !ok {
		return false
	}
	if typ, _ := conn["type"].Value().(string); typ != wirelessType {
		return false
	}
	if wifi, ok := s[wirelessType]; ok {
		if mode, _ := wifi["mode"].Value().(string); mode == "ap" || mode == "adhoc" {
			return false
		}
	}
	return true
}

// dbusErrorName returns the D-Bus error name carried by err, if any
func dbusErrorName(err error) string {
	var e dbus.Error
	if errors.As(err, &e) {
		return e.Name
	}
	var pe *dbus.Error
	if errors.As(err, &pe) {
		return pe.Name
	}
	return ""
}
