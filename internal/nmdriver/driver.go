package nmdriver

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/godbus/dbus/v5"
	"go.uber.org/zap"

	"github.com/muurk/wifiprov/internal/coordinator"
	"github.com/muurk/wifiprov/internal/linkevents"
	"github.com/muurk/wifiprov/internal/logging"
	"github.com/muurk/wifiprov/internal/portal"
)

const (
	nmDest        = "org.freedesktop.NetworkManager"
	nmPath        = dbus.ObjectPath("/org/freedesktop/NetworkManager")
	nmIface       = "org.freedesktop.NetworkManager"
	deviceIface   = "org.freedesktop.NetworkManager.Device"
	settingsPath  = dbus.ObjectPath("/org/freedesktop/NetworkManager/Settings")
	settingsIface = "org.freedesktop.NetworkManager.Settings"
	connIface     = "org.freedesktop.NetworkManager.Settings.Connection"
	activeIface   = "org.freedesktop.NetworkManager.Connection.Active"

	errNotActive = "org.freedesktop.NetworkManager.Device.NotActive"

	// DefaultActivateTimeout bounds how long Connect and Join wait for the
	// device to come up
	DefaultActivateTimeout = 45 * time.Second

	pollInterval = 250 * time.Millisecond
)

// ErrNoCredentials is returned by Connect when no Wi-Fi network is saved
var ErrNoCredentials = errors.New("no saved Wi-Fi connections")

// Driver controls one NetworkManager Wi-Fi device over the system bus and
// reports its link state changes.
type Driver struct {
	*linkevents.Registry

	conn    *dbus.Conn
	device  dbus.ObjectPath
	iface   string
	signals chan *dbus.Signal
	done    chan struct{}
	wg      sync.WaitGroup

	// mu protects the hotspot bookkeeping
	mu       sync.Mutex
	apPath   dbus.ObjectPath
	linkIsAP bool

	// ActivateTimeout bounds activation waits; zero uses the default
	ActivateTimeout time.Duration
}

// Open connects to the system bus and binds to the Wi-Fi device named
// iface, or to the first Wi-Fi device when iface is empty.
func Open(ctx context.Context, iface string) (*Driver, error) {
	conn, err := dbus.ConnectSystemBus()
	if err != nil {
		return nil, fmt.Errorf("connect to system bus: %w", err)
	}

	d := &Driver{
		Registry: linkevents.NewRegistry(),
		conn:     conn,
		signals:  make(chan *dbus.Signal, 16),
		done:     make(chan struct{}),
	}

	d.device, d.iface, err = d.findDevice(ctx, iface)
	if err != nil {
		conn.Close()
		return nil, err
	}

	if err := conn.AddMatchSignal(
		dbus.WithMatchObjectPath(d.device),
		dbus.WithMatchInterface(deviceIface),
		dbus.WithMatchMember("StateChanged"),
	); err != nil {
		conn.Close()
		return nil, fmt.Errorf("subscribe to device state: %w", err)
	}
	conn.Signal(d.signals)

	d.wg.Add(1)
	go d.watch()

	logging.Info("NetworkManager driver ready",
		zap.String("interface", d.iface),
		zap.String("device", string(d.device)),
	)
	return d, nil
}

// Interface returns the bound network interface name
func (d *Driver) Interface() string {
	return d.iface
}

// Close stops delivering events and releases the bus connection
func (d *Driver) Close() error {
	d.conn.RemoveSignal(d.signals)
	close(d.done)
	d.wg.Wait()
	return d.conn.Close()
}

func (d *Driver) findDevice(ctx context.Context, want string) (dbus.ObjectPath, string, error) {
	nm := d.conn.Object(nmDest, nmPath)

	if want != "" {
		var path dbus.ObjectPath
		if err := nm.CallWithContext(ctx, nmIface+".GetDeviceByIpIface", 0, want).Store(&path); err != nil {
			return "", "", fmt.Errorf("find device %s: %w", want, err)
		}
		typ, err := d.deviceUint(path, "DeviceType")
		if err != nil {
			return "", "", err
		}
		if typ != deviceTypeWifi {
			return "", "", fmt.Errorf("device %s is not a Wi-Fi device", want)
		}
		return path, want, nil
	}

	var devices []dbus.ObjectPath
	if err := nm.CallWithContext(ctx, nmIface+".GetDevices", 0).Store(&devices); err != nil {
		return "", "", fmt.Errorf("list devices: %w", err)
	}
	for _, path := range devices {
		typ, err := d.deviceUint(path, "DeviceType")
		if err != nil || typ != deviceTypeWifi {
			continue
		}
		v, err := d.conn.Object(nmDest, path).GetProperty(deviceIface + ".Interface")
		if err != nil {
			continue
		}
		name, _ := v.Value().(string)
		return path, name, nil
	}
	return "", "", errors.New("no Wi-Fi device managed by NetworkManager")
}

func (d *Driver) deviceUint(path dbus.ObjectPath, prop string) (uint32, error) {
	v, err := d.conn.Object(nmDest, path).GetProperty(deviceIface + "." + prop)
	if err != nil {
		return 0, fmt.Errorf("read %s: %w", prop, err)
	}
	n, ok := v.Value().(uint32)
	if !ok {
		return 0, fmt.Errorf("unexpected %s type %T", prop, v.Value())
	}
	return n, nil
}

// watch turns device StateChanged signals into link events. Events are
// delivered one at a time on this goroutine.
func (d *Driver) watch() {
	defer d.wg.Done()
	for {
		select {
		case <-d.done:
			return
		case sig, ok := <-d.signals:
			if !ok {
				return
			}
			d.handleSignal(sig)
		}
	}
}

func (d *Driver) handleSignal(sig *dbus.Signal) {
	if sig.Path != d.device || sig.Name != deviceIface+".StateChanged" {
		return
	}
	newState, oldState, ok := parseStateChanged(sig.Body)
	if !ok {
		logging.Debug("Ignoring malformed StateChanged signal")
		return
	}
	logging.Debug("Device state changed",
		zap.Uint32("old", oldState),
		zap.Uint32("new", newState),
	)
	kind, ok := classify(oldState, newState)
	if !ok {
		return
	}

	// The provisioning hotspot coming up or going down is not a link event
	d.mu.Lock()
	switch kind {
	case coordinator.EventConnected:
		d.linkIsAP = d.apPath != "" && d.activeProfile() == d.apPath
		ok = !d.linkIsAP
	case coordinator.EventDisconnected:
		ok = !d.linkIsAP
		d.linkIsAP = false
	}
	d.mu.Unlock()

	if !ok {
		logging.Debug("Ignoring access point state change", zap.String("event", kind.String()))
		return
	}
	d.Emit(kind)
}

// activeProfile returns the settings path of the device's active connection
func (d *Driver) activeProfile() dbus.ObjectPath {
	v, err := d.conn.Object(nmDest, d.device).GetProperty(deviceIface + ".ActiveConnection")
	if err != nil {
		return ""
	}
	active, _ := v.Value().(dbus.ObjectPath)
	if active == "" || active == "/" {
		return ""
	}
	v, err = d.conn.Object(nmDest, active).GetProperty(activeIface + ".Connection")
	if err != nil {
		return ""
	}
	profile, _ := v.Value().(dbus.ObjectPath)
	return profile
}

// Connect activates the best saved Wi-Fi connection and waits for the link
func (d *Driver) Connect(ctx context.Context) error {
	saved, err := d.stationConnections(ctx)
	if err != nil {
		return err
	}
	if len(saved) == 0 {
		return ErrNoCredentials
	}

	nm := d.conn.Object(nmDest, nmPath)
	var active dbus.ObjectPath
	if err := nm.CallWithContext(ctx, nmIface+".ActivateConnection", 0,
		dbus.ObjectPath("/"), d.device, dbus.ObjectPath("/")).Store(&active); err != nil {
		return fmt.Errorf("activate saved connection: %w", err)
	}
	return d.waitActivated(ctx)
}

// Join saves a client connection for ssid and activates it. A connection
// that fails to come up is deleted again.
func (d *Driver) Join(ctx context.Context, ssid, password string) error {
	path, err := d.addAndActivate(ctx, stationSettings(ssid, password))
	if err != nil {
		return fmt.Errorf("join %s: %w", ssid, err)
	}
	if err := d.waitActivated(ctx); err != nil {
		d.deleteConnection(path)
		return fmt.Errorf("join %s: %w", ssid, err)
	}
	return nil
}

// StartAccessPoint raises an open hotspot named name. The returned function
// tears it down and deletes its profile.
func (d *Driver) StartAccessPoint(ctx context.Context, name string) (func() error, error) {
	path, err := d.addAndActivate(ctx, accessPointSettings(name))
	if err != nil {
		return nil, fmt.Errorf("start access point: %w", err)
	}
	d.mu.Lock()
	d.apPath = path
	d.mu.Unlock()

	if err := d.waitActivated(ctx); err != nil {
		d.mu.Lock()
		d.apPath = ""
		d.mu.Unlock()
		d.deleteConnection(path)
		return nil, fmt.Errorf("start access point: %w", err)
	}
	logging.Info("Access point up", zap.String("ssid", name), zap.String("interface", d.iface))

	return func() error {
		d.mu.Lock()
		d.apPath = ""
		d.mu.Unlock()
		if err := d.conn.Object(nmDest, path).Call(connIface+".Delete", 0).Err; err != nil {
			return fmt.Errorf("stop access point: %w", err)
		}
		logging.Info("Access point down", zap.String("ssid", name))
		return nil
	}, nil
}

// ForgetCredentials deletes every saved client Wi-Fi connection
func (d *Driver) ForgetCredentials() error {
	saved, err := d.stationConnections(context.Background())
	if err != nil {
		return err
	}
	var errs []error
	for _, path := range saved {
		if err := d.conn.Object(nmDest, path).Call(connIface+".Delete", 0).Err; err != nil {
			errs = append(errs, fmt.Errorf("delete %s: %w", path, err))
		}
	}
	logging.Info("Forgot saved Wi-Fi networks", zap.Int("count", len(saved)-len(errs)))
	return errors.Join(errs...)
}

// Disconnect deactivates the device. A device that is not active is not an
// error.
func (d *Driver) Disconnect() error {
	err := d.conn.Object(nmDest, d.device).Call(deviceIface+".Disconnect", 0).Err
	if err != nil && dbusErrorName(err) != errNotActive {
		return fmt.Errorf("disconnect %s: %w", d.iface, err)
	}
	return nil
}

func (d *Driver) addAndActivate(ctx context.Context, s settingsMap) (dbus.ObjectPath, error) {
	var path, active dbus.ObjectPath
	call := d.conn.Object(nmDest, nmPath).CallWithContext(ctx, nmIface+".AddAndActivateConnection", 0,
		map[string]map[string]dbus.Variant(s), d.device, dbus.ObjectPath("/"))
	if err := call.Store(&path, &active); err != nil {
		return "", err
	}
	return path, nil
}

func (d *Driver) deleteConnection(path dbus.ObjectPath) {
	if err := d.conn.Object(nmDest, path).Call(connIface+".Delete", 0).Err; err != nil {
		logging.Warn("Could not delete connection profile",
			zap.String("path", string(path)),
			zap.Error(err),
		)
	}
}

// stationConnections lists saved client Wi-Fi profiles
func (d *Driver) stationConnections(ctx context.Context) ([]dbus.ObjectPath, error) {
	var all []dbus.ObjectPath
	if err := d.conn.Object(nmDest, settingsPath).CallWithContext(ctx, settingsIface+".ListConnections", 0).Store(&all); err != nil {
		return nil, fmt.Errorf("list connections: %w", err)
	}

	var out []dbus.ObjectPath
	for _, path := range all {
		var s map[string]map[string]dbus.Variant
		if err := d.conn.Object(nmDest, path).CallWithContext(ctx, connIface+".GetSettings", 0).Store(&s); err != nil {
			logging.Debug("Skipping unreadable connection",
				zap.String("path", string(path)),
				zap.Error(err),
			)
			continue
		}
		if isStationWifi(s) {
			out = append(out, path)
		}
	}
	return out, nil
}

// waitActivated polls the device state until it activates or gives up
func (d *Driver) waitActivated(ctx context.Context) error {
	timeout := d.ActivateTimeout
	if timeout <= 0 {
		timeout = DefaultActivateTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	started := false
	for {
		state, err := d.deviceUint(d.device, "State")
		if err != nil {
			return err
		}
		if inProgress(state) {
			started = true
		}
		if done, err := activationResult(state, started); done {
			return err
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("waiting for %s: %w", d.iface, ctx.Err())
		case <-ticker.C:
		}
	}
}

var (
	_ coordinator.NetworkDriver = (*Driver)(nil)
	_ portal.Connector          = (*Driver)(nil)
	_ portal.AccessPointHost    = (*Driver)(nil)
)
